package kvserver

import (
	"context"
	"crypto/rand"
	"errors"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/semaphore"

	"github.com/yndnr/kvmesh-go/internal/core/domain"
	"github.com/yndnr/kvmesh-go/internal/storage/memory"
)

// Config holds the listener and session settings.
type Config struct {
	// Addr is the TCP listen address.
	Addr string
	// MaxSessions is the number of sessions admitted at once (default: 5).
	MaxSessions int
	// ReadTimeout closes a session that sends nothing for this long.
	// Zero disables it.
	ReadTimeout time.Duration
	// WriteTimeout bounds each response write (default: 30s).
	WriteTimeout time.Duration
	// CommandRate limits commands per second per session. Zero disables it.
	CommandRate float64
	// MaxAuthAttempts is the number of failed logins allowed per
	// connection (default: 3).
	MaxAuthAttempts int
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Addr:            "127.0.0.1:11111",
		MaxSessions:     5,
		WriteTimeout:    30 * time.Second,
		MaxAuthAttempts: 3,
	}
}

func (c *Config) withDefaults() *Config {
	d := DefaultConfig()
	if c == nil {
		return d
	}
	out := *c
	if out.Addr == "" {
		out.Addr = d.Addr
	}
	if out.MaxSessions <= 0 {
		out.MaxSessions = d.MaxSessions
	}
	if out.WriteTimeout <= 0 {
		out.WriteTimeout = d.WriteTimeout
	}
	if out.MaxAuthAttempts <= 0 {
		out.MaxAuthAttempts = d.MaxAuthAttempts
	}
	return &out
}

// Store is the key-value store used by sessions.
type Store interface {
	Put(key string, value []byte)
	Get(key string) ([]byte, bool)
	MultiPut(pairs map[string][]byte)
	MultiGet(keys []string) []memory.Lookup
}

// Users checks and records credentials.
type Users interface {
	Lookup(username, password string) error
	Register(username, password string) error
}

// GetWhen queues conditional reads.
type GetWhen interface {
	Submit(req *domain.GetWhenRequest) error
}

// Recorder receives session metrics.
type Recorder interface {
	SessionOpened(wait time.Duration)
	SessionClosed()
	AuthAttempt(result string)
	CommandProcessed(command string, d time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) SessionOpened(time.Duration)            {}
func (nopRecorder) SessionClosed()                         {}
func (nopRecorder) AuthAttempt(string)                     {}
func (nopRecorder) CommandProcessed(string, time.Duration) {}

// Deps are the services a Server dispatches to.
type Deps struct {
	Store    Store
	Users    Users
	GetWhen  GetWhen
	Recorder Recorder
	Logger   *slog.Logger
}

// Server accepts client connections and runs one session per connection.
type Server struct {
	cfg      *Config
	store    Store
	users    Users
	getwhen  GetWhen
	recorder Recorder
	logger   *slog.Logger

	admission *semaphore.Weighted
	active    atomic.Int64

	mu      sync.Mutex
	ln      net.Listener
	conns   map[*Conn]struct{}
	cancel  context.CancelFunc
	running atomic.Bool
	wg      sync.WaitGroup
}

// New creates a server.
func New(cfg *Config, deps Deps) *Server {
	cfg = cfg.withDefaults()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	recorder := deps.Recorder
	if recorder == nil {
		recorder = nopRecorder{}
	}

	return &Server{
		cfg:       cfg,
		store:     deps.Store,
		users:     deps.Users,
		getwhen:   deps.GetWhen,
		recorder:  recorder,
		logger:    logger,
		admission: semaphore.NewWeighted(int64(cfg.MaxSessions)),
		conns:     make(map[*Conn]struct{}),
	}
}

// ListenAndServe listens on the configured address and serves until ctx
// is cancelled or Shutdown is called.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln. It returns nil after a clean shutdown.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	s.ln = ln
	s.cancel = cancel
	s.mu.Unlock()
	s.running.Store(true)

	// Unblock Accept and session reads when ctx ends without an explicit
	// Shutdown.
	stop := context.AfterFunc(ctx, s.closeAll)
	defer stop()

	s.logger.Info("kv server listening",
		"addr", ln.Addr().String(),
		"max_sessions", s.cfg.MaxSessions)

	for {
		c, err := ln.Accept()
		if err != nil {
			if !s.running.Load() || errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				return nil
			}
			return err
		}

		accepted := time.Now()
		if err := s.admission.Acquire(ctx, 1); err != nil {
			_ = c.Close()
			return nil
		}
		wait := time.Since(accepted)

		conn := newConn(c, s.cfg.ReadTimeout, s.cfg.WriteTimeout)
		if !s.track(ctx, conn) {
			_ = conn.Close()
			s.admission.Release(1)
			return nil
		}

		go func() {
			defer s.wg.Done()
			defer s.admission.Release(1)
			defer s.untrack(conn)
			s.runSession(ctx, conn, wait)
		}()
	}
}

func (s *Server) runSession(ctx context.Context, conn *Conn, wait time.Duration) {
	id := newSessionID()
	logger := s.logger.With("session_id", id, "remote", conn.RemoteAddr().String())

	n := s.active.Add(1)
	s.recorder.SessionOpened(wait)
	logger.Debug("session admitted", "active", n, "admission_wait", wait)

	defer func() {
		_ = conn.Close()
		conn.waitWriter()
		n := s.active.Add(-1)
		s.recorder.SessionClosed()
		logger.Debug("session closed", "active", n)
	}()

	sess := newSession(s, conn, id, logger)
	sess.run(ctx)
}

func (s *Server) track(ctx context.Context, c *Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running.Load() || ctx.Err() != nil {
		return false
	}
	s.conns[c] = struct{}{}
	// Under mu, so a Shutdown past closeAll always waits for this session.
	s.wg.Add(1)
	return true
}

func (s *Server) untrack(c *Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, c)
}

// Addr returns the listener address, or nil before Serve.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// ActiveSessions returns the number of admitted sessions.
func (s *Server) ActiveSessions() int {
	return int(s.active.Load())
}

// Shutdown stops accepting, closes live connections and waits for session
// goroutines to finish or ctx to expire.
func (s *Server) Shutdown(ctx context.Context) error {
	s.running.Store(false)

	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	s.closeAll()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	s.logger.Info("kv server stopped")
	return nil
}

func (s *Server) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln != nil {
		_ = s.ln.Close()
	}
	for c := range s.conns {
		c.Abort()
	}
}

func newSessionID() string {
	return ulid.MustNew(ulid.Now(), rand.Reader).String()
}
