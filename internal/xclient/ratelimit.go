package xclient

import "github.com/kelseyhightower/envconfig"

// limits are the client's throttling knobs, overridable from the environment.
type limits struct {
	RPS           float64 `envconfig:"X_API_RPS" default:"2"`
	Burst         int     `envconfig:"X_API_BURST" default:"10"`
	MaxAttempts   int     `envconfig:"X_API_MAX_ATTEMPTS" default:"5"`
	BaseBackoffMS int     `envconfig:"X_API_BASE_BACKOFF_MS" default:"500"`
}

func defaultLimits() limits {
	return limits{RPS: 2, Burst: 10, MaxAttempts: 5, BaseBackoffMS: 500}
}

// loadLimits reads env overrides; malformed or non-positive values fall back
// to the defaults.
func loadLimits() limits {
	def := defaultLimits()
	var l limits
	if err := envconfig.Process("", &l); err != nil {
		return def
	}
	if l.RPS <= 0 {
		l.RPS = def.RPS
	}
	if l.Burst <= 0 {
		l.Burst = def.Burst
	}
	if l.MaxAttempts <= 0 {
		l.MaxAttempts = def.MaxAttempts
	}
	if l.BaseBackoffMS <= 0 {
		l.BaseBackoffMS = def.BaseBackoffMS
	}
	return l
}
