// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() returning a Config with defaults.
// - Load() layers defaults, optional YAML file, and environment variables.
// - External errors must be wrapped via this package's sentinel errors.
package config

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the operational HTTP listen address, e.g. ":9090".
	Addr string `koanf:"addr"`

	// Relays lists the relay endpoints events are published to and read from.
	Relays []string `koanf:"relays"`

	// PublishTimeoutMS bounds how long a publish waits for the first relay ack.
	PublishTimeoutMS int `koanf:"publish_timeout_ms"`

	// DedupeSize caps each subscription's duplicate-suppression cache.
	DedupeSize int `koanf:"dedupe_size"`

	// SessionQueueSize bounds each session's inbound command queue.
	SessionQueueSize int `koanf:"session_queue_size"`

	// BasePoints is awarded for a correct answer when the question carries none.
	BasePoints int `koanf:"base_points"`

	// TimeBonus enables speed-based bonus points.
	TimeBonus bool `koanf:"time_bonus"`

	// MaxTimeBonus caps the bonus for an instant correct answer.
	MaxTimeBonus int `koanf:"max_time_bonus"`

	// QuestionDelayMS is the pause between reveal and the next question
	// when the session runs in timed reveal mode.
	QuestionDelayMS int `koanf:"question_delay_ms"`

	// DefaultTimePerQuestion is the answer window, in seconds, for questions
	// that do not set their own limit.
	DefaultTimePerQuestion int `koanf:"default_time_per_question"`

	// SecretKey is the host's signing key material. When empty an ephemeral
	// key is generated at startup, which makes the host identity change
	// across restarts.
	SecretKey string `koanf:"secret_key"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel: "info",
		Addr:     ":9090",
		Relays: []string{
			"wss://relay.damus.io",
			"wss://nos.lol",
			"wss://relay.nostr.band",
			"wss://nostr-pub.wellorder.net",
		},
		PublishTimeoutMS:       5_000,
		DedupeSize:             50_000,
		SessionQueueSize:       1_024,
		BasePoints:             100,
		TimeBonus:              true,
		MaxTimeBonus:           50,
		QuestionDelayMS:        2_000,
		DefaultTimePerQuestion: 30,
	}
}
