package client

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/yndnr/kvmesh-go/pkg/wire"
)

// DefaultDialTimeout bounds connection establishment when ctx has no
// deadline.
const DefaultDialTimeout = 5 * time.Second

type options struct {
	dialTimeout time.Duration
}

// Option configures Dial.
type Option func(*options)

// WithDialTimeout sets the connect timeout.
func WithDialTimeout(d time.Duration) Option {
	return func(o *options) {
		o.dialTimeout = d
	}
}

type state int

const (
	stateMenu state = iota
	stateRetry
	stateReady
	stateBroken
)

// Entry is one multiget result.
type Entry struct {
	Key   string
	Value []byte
	Found bool
}

// Client is a connection to a kvmesh server.
type Client struct {
	mu    sync.Mutex
	conn  net.Conn
	br    *bufio.Reader
	state state
	user  string
}

// Dial connects to addr and waits for the login menu. A connection
// waiting for an admission slot blocks here until the server admits it
// or ctx ends.
func Dial(ctx context.Context, addr string, opts ...Option) (*Client, error) {
	o := options{dialTimeout: DefaultDialTimeout}
	for _, opt := range opts {
		opt(&o)
	}

	d := net.Dialer{Timeout: o.dialTimeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}

	c := &Client{
		conn: conn,
		br:   bufio.NewReader(conn),
	}

	err = c.do(ctx, func() error {
		return c.expect(wire.PromptMenu)
	})
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("client: waiting for login menu: %w", err)
	}
	c.state = stateMenu
	return c, nil
}

// Username returns the authenticated user, or "".
func (c *Client) Username() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != stateReady {
		return ""
	}
	return c.user
}

// do runs fn with the connection locked and ctx mapped onto the
// connection deadline. A failed exchange leaves the connection in an
// unknown state, so it is closed.
func (c *Client) do(ctx context.Context, fn func() error) error {
	if c.state == stateBroken {
		return ErrClosed
	}

	if dl, ok := ctx.Deadline(); ok {
		_ = c.conn.SetDeadline(dl)
	} else {
		_ = c.conn.SetDeadline(time.Time{})
	}
	stop := context.AfterFunc(ctx, func() {
		_ = c.conn.SetDeadline(time.Unix(1, 0))
	})
	err := fn()
	stop()

	if err != nil && !isReply(err) {
		c.state = stateBroken
		_ = c.conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return err
}

// isReply reports whether err is a well-formed server answer after which
// the connection is still usable.
func isReply(err error) bool {
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae.Retryable
	}
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrUnknownCommand)
}

func (c *Client) send(f *wire.Frame) error {
	_, err := f.WriteTo(c.conn)
	return err
}

func (c *Client) sendStrings(ss ...string) error {
	f := wire.NewFrame()
	for _, s := range ss {
		f.String(s)
	}
	return c.send(f)
}

func (c *Client) readString() (string, error) {
	return wire.ReadString(c.br)
}

func (c *Client) expect(want string) error {
	got, err := c.readString()
	if err != nil {
		return err
	}
	if got != want {
		return fmt.Errorf("%w: got %q, want %q", ErrUnexpectedReply, got, want)
	}
	return nil
}

// Login authenticates with an existing account. On *AuthError with
// Retryable set, Login or (for unknown users) Register may be called
// again.
func (c *Client) Login(ctx context.Context, username, password string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == stateReady {
		return fmt.Errorf("client: already authenticated as %s", c.user)
	}

	return c.do(ctx, func() error {
		if err := c.credentials(wire.ChoiceLogin, wire.PromptUsername, wire.PromptPassword, username, password); err != nil {
			return err
		}

		result, err := c.readString()
		if err != nil {
			return err
		}
		switch result {
		case wire.LoginOK:
			c.state = stateReady
			c.user = username
			return nil
		case wire.LoginFailed:
		default:
			return fmt.Errorf("%w: %q after login", ErrUnexpectedReply, result)
		}

		reason, err := c.readString()
		if err != nil {
			return err
		}
		ae := &AuthError{Kind: ErrLoginFailed, Reason: reason}
		switch reason {
		case wire.PromptUnknownUser, wire.PromptBadPassword:
			ae.Retryable = true
			c.state = stateRetry
		default:
			c.state = stateBroken
			_ = c.conn.Close()
		}
		return ae
	})
}

// Register creates an account and authenticates as it. A failed
// registration ends the connection.
func (c *Client) Register(ctx context.Context, username, password string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == stateReady {
		return fmt.Errorf("client: already authenticated as %s", c.user)
	}

	return c.do(ctx, func() error {
		if err := c.credentials(wire.ChoiceRegister, wire.PromptNewUsername, wire.PromptNewPassword, username, password); err != nil {
			return err
		}

		result, err := c.readString()
		if err != nil {
			return err
		}
		switch {
		case result == wire.RegistrationOK:
			c.state = stateReady
			c.user = username
			return nil
		case strings.HasPrefix(result, wire.RegistrationFail):
			return &AuthError{
				Kind:   ErrRegistrationFailed,
				Reason: strings.TrimPrefix(result, wire.RegistrationFail),
			}
		default:
			return fmt.Errorf("%w: %q after registration", ErrUnexpectedReply, result)
		}
	})
}

func (c *Client) credentials(choice, userPrompt, passPrompt, username, password string) error {
	if err := c.sendStrings(choice); err != nil {
		return err
	}
	if err := c.expect(userPrompt); err != nil {
		return err
	}
	if err := c.sendStrings(username); err != nil {
		return err
	}
	if err := c.expect(passPrompt); err != nil {
		return err
	}
	return c.sendStrings(password)
}

// command runs an authenticated exchange.
func (c *Client) command(ctx context.Context, fn func() error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case stateBroken:
		return ErrClosed
	case stateReady:
	default:
		return ErrNotAuthenticated
	}
	return c.do(ctx, fn)
}

// readReply reads a response label, mapping "Unknown command".
func (c *Client) readReply() (string, error) {
	label, err := c.readString()
	if err != nil {
		return "", err
	}
	if label == wire.UnknownCommand {
		return "", ErrUnknownCommand
	}
	return label, nil
}

// Put stores value under key.
func (c *Client) Put(ctx context.Context, key string, value []byte) error {
	return c.command(ctx, func() error {
		if err := c.send(wire.NewFrame().String(wire.CmdPut).String(key).Bytes(value)); err != nil {
			return err
		}
		label, err := c.readReply()
		if err != nil {
			return err
		}
		if label != wire.PutOK {
			return fmt.Errorf("%w: %q after put", ErrUnexpectedReply, label)
		}
		return nil
	})
}

// Get returns the value under key or ErrNotFound.
func (c *Client) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := c.command(ctx, func() error {
		if err := c.send(wire.NewFrame().String(wire.CmdGet).String(key)); err != nil {
			return err
		}
		label, err := c.readReply()
		if err != nil {
			return err
		}
		switch label {
		case wire.GetOK:
			value, err = wire.ReadBytes(c.br)
			return err
		case wire.GetNotFound:
			return ErrNotFound
		default:
			return fmt.Errorf("%w: %q after get", ErrUnexpectedReply, label)
		}
	})
	return value, err
}

// MultiPut stores every pair in one round trip.
func (c *Client) MultiPut(ctx context.Context, pairs map[string][]byte) error {
	if len(pairs) > wire.MaxBatchLen {
		return fmt.Errorf("%w: %d pairs", wire.ErrLimitExceeded, len(pairs))
	}
	return c.command(ctx, func() error {
		f := wire.NewFrame().String(wire.CmdMultiPut).Int(int32(len(pairs)))
		for k, v := range pairs {
			f.String(k).Bytes(v)
		}
		if err := c.send(f); err != nil {
			return err
		}
		label, err := c.readReply()
		if err != nil {
			return err
		}
		if label != wire.MultiPutOK {
			return fmt.Errorf("%w: %q after multiput", ErrUnexpectedReply, label)
		}
		return nil
	})
}

// MultiGet reads keys in one round trip. Results follow the order of keys.
func (c *Client) MultiGet(ctx context.Context, keys []string) ([]Entry, error) {
	if len(keys) > wire.MaxBatchLen {
		return nil, fmt.Errorf("%w: %d keys", wire.ErrLimitExceeded, len(keys))
	}

	var entries []Entry
	err := c.command(ctx, func() error {
		f := wire.NewFrame().String(wire.CmdMultiGet).Int(int32(len(keys)))
		for _, k := range keys {
			f.String(k)
		}
		if err := c.send(f); err != nil {
			return err
		}

		n, err := wire.ReadCount(c.br)
		if err != nil {
			return err
		}
		entries = make([]Entry, n)
		for i := range entries {
			if entries[i].Key, err = wire.ReadString(c.br); err != nil {
				return err
			}
			if entries[i].Value, entries[i].Found, err = wire.ReadOptionalBytes(c.br); err != nil {
				return err
			}
		}
		return nil
	})
	return entries, err
}

// GetWhen waits until condKey holds condValue and returns the value of
// key at that moment. It returns ErrNotFound when key is absent then, and
// ErrTimeout when the server gives up waiting.
func (c *Client) GetWhen(ctx context.Context, key, condKey string, condValue []byte) ([]byte, error) {
	var value []byte
	err := c.command(ctx, func() error {
		f := wire.NewFrame().String(wire.CmdGetWhen).String(key).String(condKey).Bytes(condValue)
		if err := c.send(f); err != nil {
			return err
		}
		label, err := c.readReply()
		if err != nil {
			return err
		}
		switch label {
		case wire.GetWhenOK:
			value, err = wire.ReadBytes(c.br)
			return err
		case wire.GetWhenNotFound:
			return ErrNotFound
		case wire.GetWhenTimeout:
			return ErrTimeout
		default:
			return fmt.Errorf("%w: %q after getwhen", ErrUnexpectedReply, label)
		}
	})
	return value, err
}

// Close sends exit when authenticated and closes the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == stateBroken {
		return nil
	}
	if c.state == stateReady {
		_ = c.conn.SetWriteDeadline(time.Now().Add(time.Second))
		_ = c.sendStrings(wire.CmdExit)
	}
	c.state = stateBroken
	return c.conn.Close()
}

