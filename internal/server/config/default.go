package config

import "time"

// Default configuration values.
const (
	DefaultAddr            = "127.0.0.1:11111"
	DefaultMaxSessions     = 5
	DefaultWriteTimeout    = 30 * time.Second
	DefaultMaxAuthAttempts = 3

	DefaultGetWhenTimeout      = 60 * time.Second
	DefaultGetWhenPollInterval = 100 * time.Millisecond

	DefaultUsersFile = "users.csv"

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// Default returns the default server configuration.
func Default() *ServerConfig {
	return &ServerConfig{
		Server: ServerSection{
			Addr:            DefaultAddr,
			MaxSessions:     DefaultMaxSessions,
			WriteTimeout:    DefaultWriteTimeout,
			MaxAuthAttempts: DefaultMaxAuthAttempts,
		},
		GetWhen: GetWhenSection{
			Timeout:      DefaultGetWhenTimeout,
			PollInterval: DefaultGetWhenPollInterval,
		},
		Users: UsersSection{
			File: DefaultUsersFile,
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}

// Flatten returns cfg as a map keyed by dotted koanf path, suitable as the
// lowest priority configuration layer.
func (c *ServerConfig) Flatten() map[string]any {
	return map[string]any{
		"server.addr":              c.Server.Addr,
		"server.max_sessions":      c.Server.MaxSessions,
		"server.read_timeout":      c.Server.ReadTimeout,
		"server.write_timeout":     c.Server.WriteTimeout,
		"server.command_rate":      c.Server.CommandRate,
		"server.max_auth_attempts": c.Server.MaxAuthAttempts,
		"getwhen.timeout":          c.GetWhen.Timeout,
		"getwhen.poll_interval":    c.GetWhen.PollInterval,
		"users.file":               c.Users.File,
		"metrics.addr":             c.Metrics.Addr,
		"log.level":                c.Log.Level,
		"log.format":               c.Log.Format,
	}
}
