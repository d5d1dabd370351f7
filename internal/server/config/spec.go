package config

import (
	"log/slog"
	"time"
)

// ServerConfig is the root configuration for kvmesh-server.
type ServerConfig struct {
	Server  ServerSection  `koanf:"server"`
	GetWhen GetWhenSection `koanf:"getwhen"`
	Users   UsersSection   `koanf:"users"`
	Metrics MetricsSection `koanf:"metrics"`
	Log     LogSection     `koanf:"log"`
}

// ServerSection configures the client listener and sessions.
type ServerSection struct {
	// Addr is the TCP listen address.
	Addr string `koanf:"addr"`

	// MaxSessions bounds concurrently admitted sessions. Further
	// connections are accepted but wait for a slot.
	MaxSessions int `koanf:"max_sessions"`

	// ReadTimeout closes a session idle for longer. Zero disables it.
	ReadTimeout time.Duration `koanf:"read_timeout"`

	// WriteTimeout bounds a single response write.
	WriteTimeout time.Duration `koanf:"write_timeout"`

	// CommandRate limits commands per second per session. Zero means
	// unlimited.
	CommandRate float64 `koanf:"command_rate"`

	// MaxAuthAttempts bounds failed logins per connection.
	MaxAuthAttempts int `koanf:"max_auth_attempts"`
}

// GetWhenSection configures conditional reads.
type GetWhenSection struct {
	Timeout      time.Duration `koanf:"timeout"`
	PollInterval time.Duration `koanf:"poll_interval"`
}

// UsersSection configures the user registration log.
type UsersSection struct {
	File string `koanf:"file"`
}

// MetricsSection configures the Prometheus endpoint. An empty Addr
// disables it.
type MetricsSection struct {
	Addr string `koanf:"addr"`
}

// LogSection configures logging.
type LogSection struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// LogValue implements slog.LogValuer so the effective configuration can be
// logged at startup.
func (c *ServerConfig) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("addr", c.Server.Addr),
		slog.Int("max_sessions", c.Server.MaxSessions),
		slog.Duration("read_timeout", c.Server.ReadTimeout),
		slog.Duration("write_timeout", c.Server.WriteTimeout),
		slog.Float64("command_rate", c.Server.CommandRate),
		slog.Int("max_auth_attempts", c.Server.MaxAuthAttempts),
		slog.Duration("getwhen_timeout", c.GetWhen.Timeout),
		slog.Duration("getwhen_poll_interval", c.GetWhen.PollInterval),
		slog.String("users_file", c.Users.File),
		slog.String("metrics_addr", c.Metrics.Addr),
		slog.String("log_level", c.Log.Level),
	)
}
