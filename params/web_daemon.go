package params

import "time"

type WebDaemonConfig struct {
	ListenerConfig `mapstructure:",squash"`

	// CacheTTL is how long an extraction result is remembered for an identical request body.
	// Zero disables the cache.
	CacheTTL time.Duration `mapstructure:"cache_ttl"`

	// MaxBodyBytes bounds the size of a POSTed waypoint batch.
	MaxBodyBytes int64 `mapstructure:"max_body_bytes"`

	// Token, if set, must be sent with every POST as the X-Tripd-Token header
	// or the api_token query parameter.
	Token string `mapstructure:"token" json:"-"`

	// Pipeline is the config every request is processed with.
	Pipeline *Config `mapstructure:"-"`
}

func DefaultWebListenerConfig() ListenerConfig {
	return ListenerConfig{
		Network: "tcp",
		Address: "localhost:3000",
	}
}

func DefaultWebDaemonConfig() *WebDaemonConfig {
	return &WebDaemonConfig{
		ListenerConfig: DefaultWebListenerConfig(),
		CacheTTL:       10 * time.Minute,
		MaxBodyBytes:   64 << 20,
		Pipeline:       DefaultConfig(),
	}
}

func DefaultTestWebDaemonConfig() *WebDaemonConfig {
	d := DefaultWebDaemonConfig()
	d.ListenerConfig = ListenerConfig{
		Network: "tcp",
		Address: "localhost:3333",
	}
	return d
}
