package kvserver

import (
	"fmt"

	"github.com/yndnr/kvmesh-go/internal/core/domain"
	"github.com/yndnr/kvmesh-go/pkg/wire"
)

// connSink delivers a conditional read response to the connection that
// issued it. Delivery only queues the frame, so a peer that stops reading
// never holds up the getwhen worker.
type connSink struct {
	conn *Conn
}

// Deliver implements domain.Sink.
func (s connSink) Deliver(outcome domain.Outcome, value []byte) error {
	f := wire.NewFrame()
	switch outcome {
	case domain.OutcomeDelivered:
		f.String(wire.GetWhenOK).Bytes(value)
	case domain.OutcomeNotFound:
		f.String(wire.GetWhenNotFound)
	case domain.OutcomeTimedOut:
		f.String(wire.GetWhenTimeout)
	default:
		return fmt.Errorf("kvserver: outcome %s is not terminal", outcome)
	}
	return s.conn.TrySend(f)
}
