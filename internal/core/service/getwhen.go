package service

import (
	"context"
	"crypto/rand"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/yndnr/kvmesh-go/internal/core/domain"
)

// Default conditional read settings.
const (
	DefaultGetWhenTimeout      = 60 * time.Second
	DefaultGetWhenPollInterval = 100 * time.Millisecond
)

// ErrGetWhenStopped is returned by Submit once the worker has shut down.
var ErrGetWhenStopped = errors.New("getwhen: service stopped")

// KVReader is the read side of the key-value store.
type KVReader interface {
	Get(key string) ([]byte, bool)
}

// GetWhenRecorder receives conditional read metrics.
type GetWhenRecorder interface {
	GetWhenResolved(outcome string, delivered bool)
	GetWhenPending(n int)
}

// GetWhenConfig configures the GetWhenService.
type GetWhenConfig struct {
	// Timeout is how long a request may stay pending.
	Timeout time.Duration
	// PollInterval is the pause between queue cycles when no put
	// notification arrives.
	PollInterval time.Duration
}

// DefaultGetWhenConfig returns the default configuration.
func DefaultGetWhenConfig() GetWhenConfig {
	return GetWhenConfig{
		Timeout:      DefaultGetWhenTimeout,
		PollInterval: DefaultGetWhenPollInterval,
	}
}

// GetWhenOption configures the GetWhenService.
type GetWhenOption func(*GetWhenService)

// WithGetWhenLogger sets the logger.
func WithGetWhenLogger(logger *slog.Logger) GetWhenOption {
	return func(s *GetWhenService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithGetWhenRecorder sets the metrics recorder.
func WithGetWhenRecorder(r GetWhenRecorder) GetWhenOption {
	return func(s *GetWhenService) {
		s.recorder = r
	}
}

// withClock overrides time.Now (tests).
func withClock(now func() time.Time) GetWhenOption {
	return func(s *GetWhenService) {
		s.now = now
	}
}

// GetWhenService resolves conditional reads.
//
// Requests wait in a FIFO queue owned by a single worker (Run). The worker
// works in cycles: it takes every request queued at the start of the cycle
// and evaluates each once, in order. A request whose deadline has passed
// times out; a request whose condition holds is answered; anything else
// goes back to the tail. Between cycles the worker sleeps for the poll
// interval, or less when the store reports a put (KeyChanged).
//
// Each request reaches exactly one terminal outcome and its sink is called
// exactly once. A sink that fails (closed connection) is dropped.
type GetWhenService struct {
	store    KVReader
	cfg      GetWhenConfig
	logger   *slog.Logger
	recorder GetWhenRecorder
	now      func() time.Time

	mu      sync.Mutex
	queue   []*domain.GetWhenRequest
	stopped bool

	wake    chan struct{}
	pending atomic.Int64
}

// NewGetWhenService creates a service reading from store. Zero config
// fields take their defaults.
func NewGetWhenService(store KVReader, cfg GetWhenConfig, opts ...GetWhenOption) *GetWhenService {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultGetWhenTimeout
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultGetWhenPollInterval
	}

	s := &GetWhenService{
		store:  store,
		cfg:    cfg,
		logger: slog.Default(),
		now:    time.Now,
		wake:   make(chan struct{}, 1),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Submit enqueues req at the tail of the queue and returns immediately.
// ID and EnqueuedAt are filled in when empty.
func (s *GetWhenService) Submit(req *domain.GetWhenRequest) error {
	if req.Sink == nil {
		return errors.New("getwhen: request has no sink")
	}
	if req.ID == "" {
		req.ID = newRequestID(s.now())
	}
	if req.EnqueuedAt.IsZero() {
		req.EnqueuedAt = s.now()
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return ErrGetWhenStopped
	}
	s.queue = append(s.queue, req)
	s.mu.Unlock()

	s.recordPending(s.pending.Add(1))
	s.logger.Debug("getwhen enqueued",
		"request_id", req.ID,
		"key", req.Key,
		"cond_key", req.CondKey)

	s.signal()
	return nil
}

// KeyChanged wakes the worker after a put. It never blocks.
func (s *GetWhenService) KeyChanged(string) {
	s.signal()
}

// Pending returns the number of unresolved requests.
func (s *GetWhenService) Pending() int {
	return int(s.pending.Load())
}

func (s *GetWhenService) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Run drives the queue until ctx is cancelled. Requests still pending at
// that point are dropped without a response.
func (s *GetWhenService) Run(ctx context.Context) error {
	s.logger.Info("getwhen worker started",
		"timeout", s.cfg.Timeout,
		"poll_interval", s.cfg.PollInterval)

	timer := time.NewTimer(s.cfg.PollInterval)
	defer timer.Stop()

	for {
		if ctx.Err() != nil {
			s.stop()
			return nil
		}

		remaining := s.cycle()

		var tick <-chan time.Time
		if remaining > 0 {
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(s.cfg.PollInterval)
			tick = timer.C
		}

		select {
		case <-ctx.Done():
			s.stop()
			return nil
		case <-s.wake:
		case <-tick:
		}
	}
}

// cycle evaluates every request queued at its start once and returns the
// number of requests left in the queue afterwards.
func (s *GetWhenService) cycle() int {
	s.mu.Lock()
	batch := s.queue
	s.queue = nil
	s.mu.Unlock()

	var retry []*domain.GetWhenRequest
	for _, req := range batch {
		if !s.evaluate(req) {
			retry = append(retry, req)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// Requests submitted during the cycle are already queued; the retried
	// ones go behind them.
	s.queue = append(s.queue, retry...)
	return len(s.queue)
}

// evaluate applies one step of the state machine to req and reports
// whether it reached a terminal outcome.
func (s *GetWhenService) evaluate(req *domain.GetWhenRequest) bool {
	if req.Expired(s.now(), s.cfg.Timeout) {
		s.resolve(req, domain.OutcomeTimedOut, nil)
		return true
	}

	current, ok := s.store.Get(req.CondKey)
	if !req.Satisfied(current, ok) {
		return false
	}

	value, ok := s.store.Get(req.Key)
	if !ok {
		s.resolve(req, domain.OutcomeNotFound, nil)
		return true
	}
	s.resolve(req, domain.OutcomeDelivered, value)
	return true
}

func (s *GetWhenService) resolve(req *domain.GetWhenRequest, outcome domain.Outcome, value []byte) {
	s.recordPending(s.pending.Add(-1))

	err := req.Sink.Deliver(outcome, value)
	if err != nil {
		s.logger.Debug("getwhen response dropped",
			"request_id", req.ID,
			"outcome", outcome.String(),
			"error", err)
	} else {
		s.logger.Debug("getwhen resolved",
			"request_id", req.ID,
			"outcome", outcome.String(),
			"waited", s.now().Sub(req.EnqueuedAt))
	}

	if s.recorder != nil {
		s.recorder.GetWhenResolved(outcome.String(), err == nil)
	}
}

func (s *GetWhenService) stop() {
	s.mu.Lock()
	dropped := len(s.queue)
	s.queue = nil
	s.stopped = true
	s.mu.Unlock()

	s.recordPending(s.pending.Add(int64(-dropped)))
	s.logger.Info("getwhen worker stopped", "dropped", dropped)
}

func (s *GetWhenService) recordPending(n int64) {
	if s.recorder != nil {
		s.recorder.GetWhenPending(int(n))
	}
}

func newRequestID(t time.Time) string {
	id, err := ulid.New(ulid.Timestamp(t), rand.Reader)
	if err != nil {
		return ""
	}
	return id.String()
}
