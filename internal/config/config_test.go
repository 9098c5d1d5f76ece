package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestSaveLoadRoundTripKeepsDurations(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "herald.yaml")
	cfg := Default()
	cfg.Account.Username = "persona"
	cfg.Engagement.MinDelay = 5 * time.Second
	cfg.Engagement.MaxDelay = 9 * time.Second
	require.NoError(t, Save(path, cfg))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "persona", got.Account.Username)
	assert.Equal(t, 5*time.Second, got.Engagement.MinDelay)
	assert.Equal(t, 9*time.Second, got.Engagement.MaxDelay)
	assert.Equal(t, 24*time.Hour, got.Engagement.Cooldown)
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "herald.yaml")
	require.NoError(t, os.WriteFile(path, []byte("engagement:\n  maxPerHour: 2\n  cooldown: 90m\n"), 0o600))
	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Engagement.MaxPerHour)
	assert.Equal(t, 40, got.Engagement.MaxPerDay)
	assert.Equal(t, 90*time.Minute, got.Engagement.Cooldown)
}

func TestResolveEnvOverridesCredentials(t *testing.T) {
	t.Setenv("X_CONSUMER_KEY", "ck")
	t.Setenv("X_CONSUMER_SECRET", "cs")
	t.Setenv("X_ACCESS_TOKEN", "at")
	t.Setenv("X_ACCESS_SECRET", "as")
	t.Setenv("HERALD_PASSWORD", "hunter2")
	t.Setenv("HERALD_HEADLESS", "false")
	cfg := Default()
	require.NoError(t, cfg.ResolveEnv())
	assert.True(t, cfg.Credentials.HasAPI())
	assert.Equal(t, "hunter2", cfg.Account.Password)
	assert.False(t, cfg.Browser.Headless)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := map[string]func(*Config){
		"delay range":   func(c *Config) { c.Engagement.MaxDelay = c.Engagement.MinDelay - time.Second },
		"confidence":    func(c *Config) { c.Engagement.MinConfidence = 1 },
		"per run":       func(c *Config) { c.Engagement.MaxPerRun = c.Engagement.DiscoverCount + 1 },
		"quiet hour":    func(c *Config) { c.Engagement.QuietHours = []int{24} },
		"driver":        func(c *Config) { c.Storage.Driver = "mysql" },
		"dynamo table":  func(c *Config) { c.Storage.CookieBackend = "dynamodb" },
		"negative caps": func(c *Config) { c.Engagement.MaxPerDay = -1 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
