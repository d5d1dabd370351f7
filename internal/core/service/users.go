// Package service provides the domain services behind the kvmesh protocol.
package service

import (
	"log/slog"
	"sync"

	"github.com/yndnr/kvmesh-go/internal/core/domain"
	"github.com/yndnr/kvmesh-go/pkg/cmap"
)

// UserLog persists registrations. Append must be durable when it returns.
type UserLog interface {
	Append(acc domain.UserAccount) error
}

// UserDirectory owns the username → password table.
//
// Lookups are served from a sharded map without taking the registration
// lock. Registrations are serialized so the existence check, the log
// append and the insert happen as one step.
type UserDirectory struct {
	users  *cmap.Map[string]
	log    UserLog
	logger *slog.Logger

	registerMu sync.Mutex
}

// NewUserDirectory creates a directory seeded with accounts (typically the
// contents of the user log). Later entries for the same username win.
func NewUserDirectory(log UserLog, accounts []domain.UserAccount, logger *slog.Logger) *UserDirectory {
	if logger == nil {
		logger = slog.Default()
	}

	d := &UserDirectory{
		users:  cmap.New[string](),
		log:    log,
		logger: logger,
	}
	for _, acc := range accounts {
		d.users.Set(acc.Username, acc.Password)
	}
	return d
}

// Register records a new user. It returns domain.ErrDuplicateUser when the
// username is taken and domain.ErrUserStore when the log write fails, in
// which case nothing is recorded.
func (d *UserDirectory) Register(username, password string) error {
	acc := domain.UserAccount{Username: username, Password: password}
	if err := acc.Validate(); err != nil {
		return err
	}

	d.registerMu.Lock()
	defer d.registerMu.Unlock()

	if d.users.Has(username) {
		return domain.ErrDuplicateUser
	}

	if d.log != nil {
		if err := d.log.Append(acc); err != nil {
			d.logger.Error("failed to persist user", "username", username, "error", err)
			return domain.ErrUserStore.WithCause(err)
		}
	}

	d.users.Set(username, password)
	d.logger.Info("user registered", "username", username)
	return nil
}

// Lookup checks credentials and says why they fail: domain.ErrUserNotFound
// or domain.ErrBadPassword.
func (d *UserDirectory) Lookup(username, password string) error {
	stored, ok := d.users.Get(username)
	if !ok {
		return domain.ErrUserNotFound
	}
	if stored != password {
		return domain.ErrBadPassword
	}
	return nil
}

// Authenticate reports whether the credentials match a registered user.
func (d *UserDirectory) Authenticate(username, password string) bool {
	return d.Lookup(username, password) == nil
}

// Count returns the number of registered users.
func (d *UserDirectory) Count() int {
	return d.users.Count()
}
