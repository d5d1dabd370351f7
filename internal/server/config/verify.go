package config

import (
	"errors"
	"fmt"
	"net"

	"github.com/yndnr/kvmesh-go/internal/telemetry/logger"
)

// Verify validates the configuration.
func Verify(cfg *ServerConfig) error {
	return errors.Join(
		verifyServer(&cfg.Server),
		verifyGetWhen(&cfg.GetWhen),
		verifyUsers(&cfg.Users),
		verifyMetrics(&cfg.Metrics),
		verifyLog(&cfg.Log),
	)
}

func verifyServer(cfg *ServerSection) error {
	var errs []error
	if err := verifyAddr("server.addr", cfg.Addr); err != nil {
		errs = append(errs, err)
	}
	if cfg.MaxSessions < 1 {
		errs = append(errs, fmt.Errorf("server.max_sessions must be at least 1, got %d", cfg.MaxSessions))
	}
	if cfg.ReadTimeout < 0 {
		errs = append(errs, errors.New("server.read_timeout must not be negative"))
	}
	if cfg.WriteTimeout <= 0 {
		errs = append(errs, errors.New("server.write_timeout must be positive"))
	}
	if cfg.CommandRate < 0 {
		errs = append(errs, errors.New("server.command_rate must not be negative"))
	}
	if cfg.MaxAuthAttempts < 1 {
		errs = append(errs, fmt.Errorf("server.max_auth_attempts must be at least 1, got %d", cfg.MaxAuthAttempts))
	}
	return errors.Join(errs...)
}

func verifyGetWhen(cfg *GetWhenSection) error {
	var errs []error
	if cfg.Timeout <= 0 {
		errs = append(errs, errors.New("getwhen.timeout must be positive"))
	}
	if cfg.PollInterval <= 0 {
		errs = append(errs, errors.New("getwhen.poll_interval must be positive"))
	}
	return errors.Join(errs...)
}

func verifyUsers(cfg *UsersSection) error {
	if cfg.File == "" {
		return errors.New("users.file is required")
	}
	return nil
}

func verifyMetrics(cfg *MetricsSection) error {
	if cfg.Addr == "" {
		return nil
	}
	return verifyAddr("metrics.addr", cfg.Addr)
}

func verifyLog(cfg *LogSection) error {
	if _, err := logger.ParseLevel(cfg.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	switch cfg.Format {
	case "", "json", "text", "console":
		return nil
	default:
		return fmt.Errorf("log.format must be json or text, got %q", cfg.Format)
	}
}

func verifyAddr(key, addr string) error {
	if addr == "" {
		return fmt.Errorf("%s is required", key)
	}
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	return nil
}
