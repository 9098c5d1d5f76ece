package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config is the application's configuration model.
// It captures the account, API credentials, persona rules, engagement limits,
// browser settings and storage.
type Config struct {
	Account     AccountConfig     `yaml:"account"`
	Credentials CredentialsConfig `yaml:"credentials"`
	Persona     PersonaConfig     `yaml:"persona"`
	Engagement  EngagementConfig  `yaml:"engagement"`
	Browser     BrowserConfig     `yaml:"browser"`
	LLM         LLMConfig         `yaml:"llm"`
	Storage     StorageConfig     `yaml:"storage"`
	Server      ServerConfig      `yaml:"server"`
}

type AccountConfig struct {
	Username string `yaml:"username"`
	// Password is normally supplied through HERALD_PASSWORD.
	Password string `yaml:"password,omitempty"`
	// Email answers the identity challenge X sometimes shows during login.
	Email string `yaml:"email,omitempty"`
}

type CredentialsConfig struct {
	// OAuth1.0a user-context credentials for write actions (like/retweet/reply)
	ConsumerKey    string `yaml:"consumerKey"`
	ConsumerSecret string `yaml:"consumerSecret"`
	AccessToken    string `yaml:"accessToken"`
	AccessSecret   string `yaml:"accessSecret"`
}

// HasAPI reports whether enough credentials exist to use the official API.
func (c CredentialsConfig) HasAPI() bool {
	return c.ConsumerKey != "" && c.ConsumerSecret != "" && c.AccessToken != "" && c.AccessSecret != ""
}

// PersonaConfig feeds the policy prompt.
type PersonaConfig struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Topics      []string `yaml:"topics"`
	Promotion   string   `yaml:"promotion"`
	// Posts containing any of these phrases are ignored without asking the model.
	BlockedPhrases []string `yaml:"blockedPhrases"`
}

type TypeBudget struct {
	MaxPerHour int `yaml:"maxPerHour"`
	MaxPerDay  int `yaml:"maxPerDay"`
}

type EngagementConfig struct {
	// Max executed actions per trailing hour and per UTC day (0 disables)
	MaxPerHour int `yaml:"maxPerHour"`
	MaxPerDay  int `yaml:"maxPerDay"`
	// Optional per-action budgets keyed by like/reply/retweet
	PerType map[string]TypeBudget `yaml:"perType,omitempty"`
	// Minimum time before engaging the same author again
	Cooldown time.Duration `yaml:"cooldown"`
	// Posts scraped per run and candidates acted on per run
	DiscoverCount int `yaml:"discoverCount"`
	MaxPerRun     int `yaml:"maxPerRun"`
	MaxScrolls    int `yaml:"maxScrolls"`
	// Randomized wait between candidates
	MinDelay time.Duration `yaml:"minDelay"`
	MaxDelay time.Duration `yaml:"maxDelay"`
	// Retries of the execute step for a single candidate
	Retries    int           `yaml:"retries"`
	RetryDelay time.Duration `yaml:"retryDelay"`
	// Decisions at or below this confidence are ignored
	MinConfidence float64 `yaml:"minConfidence"`
	// Quiet hours (UTC) to avoid low-quality time windows
	QuietHours []int `yaml:"quietHours"`
	// Cron expressions for automatic runs
	Schedules []string `yaml:"schedules"`
}

type BrowserConfig struct {
	Headless          bool          `yaml:"headless"`
	Bin               string        `yaml:"bin,omitempty"`
	UserAgent         string        `yaml:"userAgent,omitempty"`
	SlowMotion        time.Duration `yaml:"slowMotion"`
	NavigationTimeout time.Duration `yaml:"navigationTimeout"`
	StepTimeout       time.Duration `yaml:"stepTimeout"`
	SessionKey        string        `yaml:"sessionKey"`
	BaseURL           string        `yaml:"baseURL"`
}

type LLMConfig struct {
	Provider string `yaml:"provider"` // "openai" or "none"
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"baseURL"`
	// If empty, read from env OPENAI_API_KEY
	APIKey string `yaml:"apiKey,omitempty"`
	// USD per 1K tokens, used for cost accounting only
	InputCostPer1K  float64       `yaml:"inputCostPer1K"`
	OutputCostPer1K float64       `yaml:"outputCostPer1K"`
	Timeout         time.Duration `yaml:"timeout"`
}

type StorageConfig struct {
	// sqlite or postgres
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
	// sql (same database as the action log) or dynamodb
	CookieBackend string `yaml:"cookieBackend"`
	DynamoTable   string `yaml:"dynamoTable,omitempty"`
	AWSRegion     string `yaml:"awsRegion,omitempty"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns a sensible default configuration.
func Default() Config {
	return Config{
		Persona: PersonaConfig{
			Name:        "herald",
			Description: "an AI persona that follows crypto markets, AI tooling and onchain culture",
			Topics:      []string{"ai agents", "crypto markets", "defi", "onchain art", "llm tooling"},
			Promotion:   "Mention the persona's own project only when the post is directly about it; never shill.",
			BlockedPhrases: []string{
				"drop your wallet", "wallet address", "send your address", "drop your address",
				"airdrop to the first", "free mint for wallets",
			},
		},
		Engagement: EngagementConfig{
			MaxPerHour:    6,
			MaxPerDay:     40,
			Cooldown:      24 * time.Hour,
			DiscoverCount: 20,
			MaxPerRun:     5,
			MaxScrolls:    5,
			MinDelay:      45 * time.Second,
			MaxDelay:      120 * time.Second,
			Retries:       2,
			RetryDelay:    30 * time.Second,
			MinConfidence: 0.5,
			QuietHours:    []int{0, 1, 2, 3, 4, 5},
			Schedules:     []string{"0 */4 * * *"},
		},
		Browser: BrowserConfig{
			Headless:          true,
			NavigationTimeout: 30 * time.Second,
			StepTimeout:       10 * time.Second,
			SessionKey:        "x-session",
			BaseURL:           "https://x.com",
		},
		LLM: LLMConfig{
			Provider:        "none",
			Model:           "gpt-4o-mini",
			BaseURL:         "https://api.openai.com/v1",
			InputCostPer1K:  0.00015,
			OutputCostPer1K: 0.0006,
			Timeout:         60 * time.Second,
		},
		Storage: StorageConfig{Driver: "sqlite", DSN: "./herald.db", CookieBackend: "sql"},
		Server:  ServerConfig{Addr: ":9090"},
	}
}

// envOverrides lists the environment variables that win over the file.
type envOverrides struct {
	Username       string `envconfig:"HERALD_USERNAME"`
	Password       string `envconfig:"HERALD_PASSWORD"`
	Email          string `envconfig:"HERALD_EMAIL"`
	ConsumerKey    string `envconfig:"X_CONSUMER_KEY"`
	ConsumerSecret string `envconfig:"X_CONSUMER_SECRET"`
	AccessToken    string `envconfig:"X_ACCESS_TOKEN"`
	AccessSecret   string `envconfig:"X_ACCESS_SECRET"`
	OpenAIKey      string `envconfig:"OPENAI_API_KEY"`
	DBDriver       string `envconfig:"HERALD_DB_DRIVER"`
	DBDSN          string `envconfig:"HERALD_DB_DSN"`
	MetricsAddr    string `envconfig:"METRICS_ADDR"`
	Headless       string `envconfig:"HERALD_HEADLESS"`
}

// ResolveEnv fills in config fields from environment variables if set.
func (c *Config) ResolveEnv() error {
	var o envOverrides
	if err := envconfig.Process("", &o); err != nil {
		return fmt.Errorf("env: %w", err)
	}
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&c.Account.Username, o.Username)
	set(&c.Account.Password, o.Password)
	set(&c.Account.Email, o.Email)
	set(&c.Credentials.ConsumerKey, o.ConsumerKey)
	set(&c.Credentials.ConsumerSecret, o.ConsumerSecret)
	set(&c.Credentials.AccessToken, o.AccessToken)
	set(&c.Credentials.AccessSecret, o.AccessSecret)
	if c.LLM.APIKey == "" && c.LLM.Provider == "openai" {
		c.LLM.APIKey = o.OpenAIKey
	}
	set(&c.Storage.Driver, o.DBDriver)
	set(&c.Storage.DSN, o.DBDSN)
	set(&c.Server.Addr, o.MetricsAddr)
	switch o.Headless {
	case "0", "false":
		c.Browser.Headless = false
	case "1", "true":
		c.Browser.Headless = true
	}
	return nil
}

// Validate checks values the scheduler relies on.
func (c Config) Validate() error {
	e := c.Engagement
	if e.MaxPerHour < 0 || e.MaxPerDay < 0 {
		return errors.New("engagement caps must not be negative")
	}
	if e.MinDelay < 0 || e.MaxDelay < e.MinDelay {
		return fmt.Errorf("invalid delay range [%s, %s]", e.MinDelay, e.MaxDelay)
	}
	if e.MinConfidence < 0 || e.MinConfidence >= 1 {
		return fmt.Errorf("minConfidence must be in [0,1), got %v", e.MinConfidence)
	}
	if e.DiscoverCount <= 0 {
		return errors.New("discoverCount must be positive")
	}
	if e.MaxPerRun <= 0 || e.MaxPerRun > e.DiscoverCount {
		return fmt.Errorf("maxPerRun must be in [1, discoverCount], got %d", e.MaxPerRun)
	}
	if e.Retries < 0 {
		return errors.New("retries must not be negative")
	}
	for _, h := range e.QuietHours {
		if h < 0 || h > 23 {
			return fmt.Errorf("quiet hour out of range: %d", h)
		}
	}
	switch c.Storage.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported storage driver %q", c.Storage.Driver)
	}
	switch c.Storage.CookieBackend {
	case "", "sql":
	case "dynamodb":
		if c.Storage.DynamoTable == "" {
			return errors.New("dynamodb cookie backend needs storage.dynamoTable")
		}
	default:
		return fmt.Errorf("unsupported cookie backend %q", c.Storage.CookieBackend)
	}
	return nil
}

// Load reads YAML config from path on top of the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, err
	}
	if err := cfg.ResolveEnv(); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// Save writes YAML config to path, creating directories as needed.
func Save(path string, cfg Config) error {
	if path == "" {
		return errors.New("empty path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o600)
}
