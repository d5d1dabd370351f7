package client

import (
	"bufio"
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yndnr/kvmesh-go/pkg/wire"
)

// peer is the server side of a scripted exchange.
type peer struct {
	t    *testing.T
	conn net.Conn
	br   *bufio.Reader
}

func (p *peer) send(ss ...string) {
	f := wire.NewFrame()
	for _, s := range ss {
		f.String(s)
	}
	_, err := f.WriteTo(p.conn)
	assert.NoError(p.t, err)
}

func (p *peer) sendFrame(f *wire.Frame) {
	_, err := f.WriteTo(p.conn)
	assert.NoError(p.t, err)
}

func (p *peer) read() string {
	s, err := wire.ReadString(p.br)
	assert.NoError(p.t, err)
	return s
}

func (p *peer) acceptLogin() {
	assert.Equal(p.t, wire.ChoiceLogin, p.read())
	p.send(wire.PromptUsername)
	p.read()
	p.send(wire.PromptPassword)
	p.read()
	p.send(wire.LoginOK)
}

// serve runs script against the first connection to a fresh listener.
func serve(t *testing.T, script func(p *peer)) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		script(&peer{t: t, conn: conn, br: bufio.NewReader(conn)})
	}()

	t.Cleanup(func() {
		ln.Close()
		<-done
	})
	return ln.Addr().String()
}

func ctxT(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestDial_UnexpectedGreeting(t *testing.T) {
	addr := serve(t, func(p *peer) {
		p.send("hello")
	})

	_, err := Dial(ctxT(t), addr)
	require.ErrorIs(t, err, ErrUnexpectedReply)
}

func TestDial_ContextDeadline(t *testing.T) {
	release := make(chan struct{})
	addr := serve(t, func(p *peer) {
		<-release
	})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := Dial(ctx, addr)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClient_CommandsRequireAuth(t *testing.T) {
	addr := serve(t, func(p *peer) {
		p.send(wire.PromptMenu)
		p.br.ReadByte()
	})

	c, err := Dial(ctxT(t), addr)
	require.NoError(t, err)
	defer c.Close()

	assert.ErrorIs(t, c.Put(ctxT(t), "k", []byte("v")), ErrNotAuthenticated)
	_, err = c.Get(ctxT(t), "k")
	assert.ErrorIs(t, err, ErrNotAuthenticated)
	assert.Empty(t, c.Username())
}

func TestClient_UnknownCommandReply(t *testing.T) {
	addr := serve(t, func(p *peer) {
		p.send(wire.PromptMenu)
		p.acceptLogin()

		assert.Equal(t, wire.CmdGet, p.read())
		p.read()
		p.send(wire.UnknownCommand)

		assert.Equal(t, wire.CmdGet, p.read())
		p.read()
		p.sendFrame(wire.NewFrame().String(wire.GetOK).Bytes([]byte("v")))
		p.br.ReadByte()
	})

	c, err := Dial(ctxT(t), addr)
	require.NoError(t, err)
	defer c.Close()
	require.NoError(t, c.Login(ctxT(t), "u", "p"))

	_, err = c.Get(ctxT(t), "k")
	assert.ErrorIs(t, err, ErrUnknownCommand)

	got, err := c.Get(ctxT(t), "k")
	require.NoError(t, err, "connection must survive an unknown command reply")
	assert.Equal(t, []byte("v"), got)
}

func TestClient_CancelledGetWhenBreaksConnection(t *testing.T) {
	addr := serve(t, func(p *peer) {
		p.send(wire.PromptMenu)
		p.acceptLogin()
		// Never answer the getwhen.
		p.br.ReadByte()
		for {
			if _, err := p.br.ReadByte(); err != nil {
				return
			}
		}
	})

	c, err := Dial(ctxT(t), addr)
	require.NoError(t, err)
	defer c.Close()
	require.NoError(t, c.Login(ctxT(t), "u", "p"))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()
	_, err = c.GetWhen(ctx, "k", "c", []byte("v"))
	require.ErrorIs(t, err, context.Canceled)

	assert.ErrorIs(t, c.Put(ctxT(t), "k", nil), ErrClosed)
}

func TestClient_CloseSendsExit(t *testing.T) {
	got := make(chan string, 1)
	addr := serve(t, func(p *peer) {
		p.send(wire.PromptMenu)
		p.acceptLogin()
		got <- p.read()
	})

	c, err := Dial(ctxT(t), addr)
	require.NoError(t, err)
	require.NoError(t, c.Login(ctxT(t), "u", "p"))
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	select {
	case label := <-got:
		assert.Equal(t, wire.CmdExit, label)
	case <-time.After(time.Second):
		t.Fatal("exit not received")
	}
}

func TestClient_BatchLimits(t *testing.T) {
	addr := serve(t, func(p *peer) {
		p.send(wire.PromptMenu)
		p.acceptLogin()
		p.br.ReadByte()
	})

	c, err := Dial(ctxT(t), addr)
	require.NoError(t, err)
	defer c.Close()
	require.NoError(t, c.Login(ctxT(t), "u", "p"))

	_, err = c.MultiGet(ctxT(t), make([]string, wire.MaxBatchLen+1))
	assert.ErrorIs(t, err, wire.ErrLimitExceeded)
}

func TestAuthError(t *testing.T) {
	err := &AuthError{Kind: ErrLoginFailed, Reason: wire.PromptBadPassword, Retryable: true}
	assert.ErrorIs(t, err, ErrLoginFailed)
	assert.NotErrorIs(t, err, ErrRegistrationFailed)
	assert.Contains(t, err.Error(), "Incorrect password")
}
