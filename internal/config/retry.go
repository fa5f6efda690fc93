package config

import "time"

// RetryBackoffMode selects the backoff curve for transient-failure retries.
type RetryBackoffMode string

const (
	RetryBackoffFixed       RetryBackoffMode = "fixed"
	RetryBackoffLinear      RetryBackoffMode = "linear"
	RetryBackoffExponential RetryBackoffMode = "exponential"
)

// RetryConfig configures retries for clone and push operations.
type RetryConfig struct {
	Backoff    RetryBackoffMode `yaml:"backoff,omitempty"`
	Initial    time.Duration    `yaml:"initial,omitempty"`
	Max        time.Duration    `yaml:"max,omitempty"`
	MaxRetries int              `yaml:"max_retries,omitempty"`
}

func (r RetryConfig) withDefaults() RetryConfig {
	if r.Backoff == "" {
		r.Backoff = RetryBackoffLinear
	}
	if r.Initial <= 0 {
		r.Initial = time.Second
	}
	if r.Max <= 0 {
		r.Max = 30 * time.Second
	}
	if r.MaxRetries == 0 {
		r.MaxRetries = 2
	}
	return r
}
