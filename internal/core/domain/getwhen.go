package domain

import (
	"bytes"
	"time"
)

// Outcome is the terminal result of a conditional read.
type Outcome int

const (
	// OutcomePending is the state before any terminal event.
	OutcomePending Outcome = iota
	// OutcomeDelivered means the condition held and the key had a value.
	OutcomeDelivered
	// OutcomeNotFound means the condition held but the key was absent.
	OutcomeNotFound
	// OutcomeTimedOut means the deadline passed before the condition held.
	OutcomeTimedOut
)

// String returns the outcome name used in logs and metric labels.
func (o Outcome) String() string {
	switch o {
	case OutcomeDelivered:
		return "delivered"
	case OutcomeNotFound:
		return "not_found"
	case OutcomeTimedOut:
		return "timed_out"
	default:
		return "pending"
	}
}

// Sink receives the terminal response of a conditional read.
// Deliver returns an error when the originating connection is gone.
type Sink interface {
	Deliver(outcome Outcome, value []byte) error
}

// GetWhenRequest is a deferred read of Key, released once CondKey holds
// CondValue or the request outlives its deadline.
type GetWhenRequest struct {
	ID         string
	Key        string
	CondKey    string
	CondValue  []byte
	EnqueuedAt time.Time
	Sink       Sink
}

// Expired reports whether the request has been pending longer than timeout.
func (r *GetWhenRequest) Expired(now time.Time, timeout time.Duration) bool {
	return now.Sub(r.EnqueuedAt) > timeout
}

// Satisfied reports whether current (the condition key's value) meets the
// condition. An absent key never matches, even against an empty value.
func (r *GetWhenRequest) Satisfied(current []byte, present bool) bool {
	return present && bytes.Equal(current, r.CondValue)
}
