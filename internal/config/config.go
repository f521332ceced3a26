// Package config provides configuration types for the policy evaluation
// gateway: a minimal schema covering the HTTP listener, the policy
// document location, and logging, loaded from YAML and/or environment
// variables via Viper.
package config

// GatewayConfig is the top-level configuration for the policy gateway.
type GatewayConfig struct {
	// Server configures the HTTP listener.
	Server ServerConfig `yaml:"server" mapstructure:"server"`

	// Policy configures the on-disk policy document the gateway evaluates
	// every request against.
	Policy PolicyConfig `yaml:"policy" mapstructure:"policy"`

	// DevMode enables development mode, which forces debug logging (see
	// SetDevDefaults).
	DevMode bool `yaml:"dev_mode" mapstructure:"dev_mode"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	// Addr is the address to listen on (e.g. "127.0.0.1:8080", "0.0.0.0:8080").
	// Defaults to "127.0.0.1:8080" (localhost only) if empty.
	Addr string `yaml:"addr" mapstructure:"addr" validate:"omitempty,hostname_port"`

	// LogLevel sets the minimum log level.
	// Valid values: "debug", "info", "warn", "error".
	LogLevel string `yaml:"log_level" mapstructure:"log_level" validate:"omitempty,oneof=debug info warn warning error"`

	// ShutdownTimeout bounds how long graceful shutdown waits for
	// in-flight requests to finish (e.g. "10s").
	ShutdownTimeout string `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout" validate:"omitempty"`

	// MaxBodyBytes is a coarse, static cap on the size of a POST /v1/eval
	// request body, independent of the policy document's hot-reloadable
	// pii.max_bytes. Requests over this size are rejected with 413 while the
	// body is being decoded; it exists as a DoS backstop, not as the spec's
	// payload guard.
	MaxBodyBytes int64 `yaml:"max_body_bytes" mapstructure:"max_body_bytes" validate:"omitempty,min=1"`

	// AllowedOrigins restricts which Origin header values are accepted on
	// admin endpoints, guarding against DNS rebinding. Empty means no
	// Origin header is accepted (local-only mode).
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// PolicyConfig configures the policy document the gateway evaluates against.
type PolicyConfig struct {
	// Path is the filesystem path to the YAML policy document.
	// Defaults to "policy.yaml" if empty.
	Path string `yaml:"path" mapstructure:"path" validate:"omitempty"`
}

// SetDefaults applies sensible default values to the configuration.
func (c *GatewayConfig) SetDefaults() {
	if c.Server.Addr == "" {
		// Bind to localhost only for security; operators who need network
		// access must explicitly set addr to ":8080" or "0.0.0.0:8080".
		c.Server.Addr = "127.0.0.1:8080"
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}
	if c.Server.ShutdownTimeout == "" {
		c.Server.ShutdownTimeout = "10s"
	}
	if c.Server.MaxBodyBytes == 0 {
		c.Server.MaxBodyBytes = 1 << 20 // 1 MiB
	}
	if c.Policy.Path == "" {
		c.Policy.Path = "policy.yaml"
	}
}

// SetDevDefaults applies permissive overrides for development mode. Called
// after SetDefaults and before Validate so required fields stay satisfied.
func (c *GatewayConfig) SetDevDefaults() {
	if !c.DevMode {
		return
	}
	c.Server.LogLevel = "debug"
}
