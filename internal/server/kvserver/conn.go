package kvserver

import (
	"bufio"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/yndnr/kvmesh-go/pkg/wire"
)

// outboundQueueLen is the number of frames a connection buffers for its
// writer goroutine.
const outboundQueueLen = 16

// errOutboundFull is returned by TrySend when the peer is not draining
// its responses.
var errOutboundFull = errors.New("kvserver: outbound queue full")

// Conn is one client connection. Reads happen only on the session
// goroutine. Outbound frames from the session and the getwhen worker go
// through one queue, written in order by the connection's writer goroutine.
type Conn struct {
	netConn net.Conn
	br      *bufio.Reader

	readTimeout  time.Duration
	writeTimeout time.Duration

	out        chan *wire.Frame
	done       chan struct{}
	writerDone chan struct{}
	closeOnce  sync.Once

	deadlineMu sync.Mutex
	closed     bool
}

func newConn(c net.Conn, readTimeout, writeTimeout time.Duration) *Conn {
	conn := &Conn{
		netConn:      c,
		br:           bufio.NewReader(c),
		readTimeout:  readTimeout,
		writeTimeout: writeTimeout,
		out:          make(chan *wire.Frame, outboundQueueLen),
		done:         make(chan struct{}),
		writerDone:   make(chan struct{}),
	}
	go conn.writeLoop()
	return conn
}

// RemoteAddr returns the peer address.
func (c *Conn) RemoteAddr() net.Addr {
	return c.netConn.RemoteAddr()
}

// Send queues f for writing, waiting while the queue is full.
func (c *Conn) Send(f *wire.Frame) error {
	if err := f.Err(); err != nil {
		return err
	}
	select {
	case <-c.done:
		return net.ErrClosed
	default:
	}
	select {
	case c.out <- f:
		return nil
	case <-c.done:
		return net.ErrClosed
	}
}

// TrySend queues f without waiting. A full queue aborts the connection:
// the peer has stopped reading and can no longer be answered in order.
func (c *Conn) TrySend(f *wire.Frame) error {
	if err := f.Err(); err != nil {
		return err
	}
	select {
	case <-c.done:
		return net.ErrClosed
	default:
	}
	select {
	case c.out <- f:
		return nil
	default:
		c.Abort()
		return errOutboundFull
	}
}

// SendString queues a frame holding the given strings.
func (c *Conn) SendString(ss ...string) error {
	f := wire.NewFrame()
	for _, s := range ss {
		f.String(s)
	}
	return c.Send(f)
}

// ReadString reads one wire string, applying the read timeout.
func (c *Conn) ReadString() (string, error) {
	if err := c.armRead(); err != nil {
		return "", err
	}
	return wire.ReadString(c.br)
}

// ReadBytes reads one wire payload, applying the read timeout.
func (c *Conn) ReadBytes() ([]byte, error) {
	if err := c.armRead(); err != nil {
		return nil, err
	}
	return wire.ReadBytes(c.br)
}

// ReadCount reads a batch size, applying the read timeout.
func (c *Conn) ReadCount() (int, error) {
	if err := c.armRead(); err != nil {
		return 0, err
	}
	return wire.ReadCount(c.br)
}

func (c *Conn) armRead() error {
	c.deadlineMu.Lock()
	defer c.deadlineMu.Unlock()
	if c.closed {
		return net.ErrClosed
	}
	if c.readTimeout <= 0 {
		return nil
	}
	return c.netConn.SetReadDeadline(time.Now().Add(c.readTimeout))
}

func (c *Conn) writeLoop() {
	defer close(c.writerDone)
	defer c.netConn.Close()

	for {
		select {
		case f := <-c.out:
			if err := c.write(f, c.writeDeadline()); err != nil {
				c.Abort()
				return
			}
		case <-c.done:
			c.drain()
			return
		}
	}
}

// drain writes whatever is still queued, within one write timeout.
func (c *Conn) drain() {
	deadline := c.writeDeadline()
	for {
		select {
		case f := <-c.out:
			if err := c.write(f, deadline); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (c *Conn) write(f *wire.Frame, deadline time.Time) error {
	if err := c.netConn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	_, err := f.WriteTo(c.netConn)
	return err
}

func (c *Conn) writeDeadline() time.Time {
	if c.writeTimeout <= 0 {
		return time.Time{}
	}
	return time.Now().Add(c.writeTimeout)
}

// Close stops reads and new sends. Frames already queued are flushed by
// the writer before the socket closes. It is safe to call more than once.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.deadlineMu.Lock()
		c.closed = true
		_ = c.netConn.SetReadDeadline(time.Now())
		c.deadlineMu.Unlock()
		close(c.done)
	})
	return nil
}

// Abort closes the connection without flushing queued frames.
func (c *Conn) Abort() {
	_ = c.Close()
	_ = c.netConn.Close()
}

// waitWriter blocks until the writer goroutine has exited.
func (c *Conn) waitWriter() {
	<-c.writerDone
}
