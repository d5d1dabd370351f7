package kvserver

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"net"
	"time"

	"golang.org/x/time/rate"

	"github.com/yndnr/kvmesh-go/internal/core/domain"
	"github.com/yndnr/kvmesh-go/pkg/wire"
)

// errExit ends the command loop after an exit command.
var errExit = errors.New("kvserver: client exit")

// Auth results recorded by the metrics recorder.
const (
	authLoginOK        = "login_ok"
	authLoginFailed    = "login_failed"
	authRegisterOK     = "register_ok"
	authRegisterFailed = "register_failed"
)

type session struct {
	srv     *Server
	conn    *Conn
	id      string
	logger  *slog.Logger
	limiter *rate.Limiter

	username string
}

func newSession(srv *Server, conn *Conn, id string, logger *slog.Logger) *session {
	s := &session{
		srv:    srv,
		conn:   conn,
		id:     id,
		logger: logger,
	}
	if r := srv.cfg.CommandRate; r > 0 {
		burst := int(math.Ceil(r))
		s.limiter = rate.NewLimiter(rate.Limit(r), burst)
	}
	return s
}

func (s *session) run(ctx context.Context) {
	if err := s.authenticate(); err != nil {
		s.logEnd("authentication ended", err)
		return
	}
	s.logger = s.logger.With("username", s.username)
	s.logger.Info("session authenticated")

	err := s.serve(ctx)
	if errors.Is(err, errExit) {
		s.logger.Debug("client exited")
		return
	}
	s.logEnd("session ended", err)
}

func (s *session) logEnd(msg string, err error) {
	var netErr net.Error
	switch {
	case err == nil:
		return
	case errors.Is(err, domain.ErrAuthAborted):
		s.logger.Info(msg, "reason", err)
	case errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed), errors.Is(err, context.Canceled):
		s.logger.Debug(msg, "reason", "disconnected")
	case errors.As(err, &netErr) && netErr.Timeout():
		s.logger.Debug(msg, "reason", "timeout")
	case errors.Is(err, wire.ErrLimitExceeded), errors.Is(err, wire.ErrProtocol):
		s.logger.Warn(msg, "reason", "protocol violation", "error", err)
	default:
		s.logger.Debug(msg, "error", err)
	}
}

// authenticate runs the login/register dialogue until the peer is
// authenticated or the dialogue ends.
func (s *session) authenticate() error {
	if err := s.conn.SendString(wire.PromptMenu); err != nil {
		return err
	}
	choice, err := s.conn.ReadString()
	if err != nil {
		return err
	}

	failures := 0
	for {
		switch choice {
		case wire.ChoiceLogin:
			next, err := s.login(&failures)
			if err != nil || next == "" {
				return err
			}
			choice = next
		case wire.ChoiceRegister:
			return s.register()
		default:
			_ = s.conn.SendString(wire.InvalidChoice)
			return domain.ErrAuthAborted.WithDetails("invalid menu choice")
		}
	}
}

// login runs one login attempt. It returns the next menu choice after a
// failure the peer may retry, or "" once authenticated.
func (s *session) login(failures *int) (string, error) {
	username, password, err := s.readCredentials(wire.PromptUsername, wire.PromptPassword)
	if err != nil {
		return "", err
	}

	lerr := s.srv.users.Lookup(username, password)
	if lerr == nil {
		s.srv.recorder.AuthAttempt(authLoginOK)
		s.username = username
		return "", s.conn.SendString(wire.LoginOK)
	}

	*failures++
	s.srv.recorder.AuthAttempt(authLoginFailed)
	s.logger.Info("login failed",
		"username", username,
		"code", domain.GetErrorCode(lerr),
		"attempt", *failures)

	if *failures >= s.srv.cfg.MaxAuthAttempts {
		_ = s.conn.SendString(wire.LoginFailed, wire.PromptTooManyRetries)
		return "", domain.ErrAuthAborted.WithDetails("too many failed attempts")
	}

	unknown := errors.Is(lerr, domain.ErrUserNotFound)
	prompt := wire.PromptBadPassword
	if unknown {
		prompt = wire.PromptUnknownUser
	}
	if err := s.conn.SendString(wire.LoginFailed, prompt); err != nil {
		return "", err
	}

	reply, err := s.conn.ReadString()
	if err != nil {
		return "", err
	}
	switch {
	case reply == wire.ChoiceRetry:
		return wire.ChoiceLogin, nil
	case unknown && reply == wire.ChoiceRegister:
		return wire.ChoiceRegister, nil
	default:
		return "", domain.ErrAuthAborted.WithDetails("retry declined")
	}
}

func (s *session) register() error {
	username, password, err := s.readCredentials(wire.PromptNewUsername, wire.PromptNewPassword)
	if err != nil {
		return err
	}

	if rerr := s.srv.users.Register(username, password); rerr != nil {
		s.srv.recorder.AuthAttempt(authRegisterFailed)
		s.logger.Info("registration failed", "username", username, "error", rerr)
		_ = s.conn.SendString(wire.RegistrationFail + failureReason(rerr))
		return domain.ErrAuthAborted.WithCause(rerr)
	}

	s.srv.recorder.AuthAttempt(authRegisterOK)
	s.username = username
	return s.conn.SendString(wire.RegistrationOK)
}

func (s *session) readCredentials(userPrompt, passPrompt string) (string, string, error) {
	if err := s.conn.SendString(userPrompt); err != nil {
		return "", "", err
	}
	username, err := s.conn.ReadString()
	if err != nil {
		return "", "", err
	}
	if err := s.conn.SendString(passPrompt); err != nil {
		return "", "", err
	}
	password, err := s.conn.ReadString()
	if err != nil {
		return "", "", err
	}
	return username, password, nil
}

func failureReason(err error) string {
	var de *domain.DomainError
	if !errors.As(err, &de) {
		return err.Error()
	}
	if de.Details != "" {
		return de.Message + ": " + de.Details
	}
	return de.Message
}

// serve runs the command loop until the peer exits or an error occurs.
func (s *session) serve(ctx context.Context) error {
	for {
		label, err := s.conn.ReadString()
		if err != nil {
			return err
		}

		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				return err
			}
		}

		start := time.Now()
		err = s.dispatch(label)
		s.srv.recorder.CommandProcessed(metricLabel(label), time.Since(start))
		if err != nil {
			return err
		}
	}
}

func (s *session) dispatch(label string) error {
	switch label {
	case wire.CmdPut:
		return s.handlePut()
	case wire.CmdGet:
		return s.handleGet()
	case wire.CmdMultiPut:
		return s.handleMultiPut()
	case wire.CmdMultiGet:
		return s.handleMultiGet()
	case wire.CmdGetWhen:
		return s.handleGetWhen()
	case wire.CmdExit:
		return errExit
	default:
		s.logger.Debug("unknown command",
			"label", label,
			"code", domain.ErrUnknownCommand.Code)
		return s.conn.SendString(wire.UnknownCommand)
	}
}

func metricLabel(label string) string {
	switch label {
	case wire.CmdPut, wire.CmdGet, wire.CmdMultiPut, wire.CmdMultiGet, wire.CmdGetWhen, wire.CmdExit:
		return label
	default:
		return "unknown"
	}
}

func (s *session) handlePut() error {
	key, err := s.conn.ReadString()
	if err != nil {
		return err
	}
	value, err := s.conn.ReadBytes()
	if err != nil {
		return err
	}

	s.srv.store.Put(key, value)
	return s.conn.SendString(wire.PutOK)
}

func (s *session) handleGet() error {
	key, err := s.conn.ReadString()
	if err != nil {
		return err
	}

	value, ok := s.srv.store.Get(key)
	if !ok {
		return s.conn.SendString(wire.GetNotFound)
	}
	return s.conn.Send(wire.NewFrame().String(wire.GetOK).Bytes(value))
}

func (s *session) handleMultiPut() error {
	n, err := s.conn.ReadCount()
	if err != nil {
		return err
	}

	pairs := make(map[string][]byte, n)
	for i := 0; i < n; i++ {
		key, err := s.conn.ReadString()
		if err != nil {
			return err
		}
		value, err := s.conn.ReadBytes()
		if err != nil {
			return err
		}
		pairs[key] = value
	}

	s.srv.store.MultiPut(pairs)
	return s.conn.SendString(wire.MultiPutOK)
}

func (s *session) handleMultiGet() error {
	n, err := s.conn.ReadCount()
	if err != nil {
		return err
	}

	keys := make([]string, n)
	for i := range keys {
		if keys[i], err = s.conn.ReadString(); err != nil {
			return err
		}
	}

	f := wire.NewFrame().Int(int32(n))
	for _, l := range s.srv.store.MultiGet(keys) {
		f.String(l.Key)
		if l.Found {
			f.Bytes(l.Value)
		} else {
			f.Absent()
		}
	}
	return s.conn.Send(f)
}

func (s *session) handleGetWhen() error {
	key, err := s.conn.ReadString()
	if err != nil {
		return err
	}
	condKey, err := s.conn.ReadString()
	if err != nil {
		return err
	}
	condValue, err := s.conn.ReadBytes()
	if err != nil {
		return err
	}

	req := &domain.GetWhenRequest{
		Key:       key,
		CondKey:   condKey,
		CondValue: condValue,
		Sink:      connSink{conn: s.conn},
	}
	return s.srv.getwhen.Submit(req)
}
