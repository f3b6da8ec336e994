// Package circuit provides the run-wide circuit that forbids further calls to the
// source once a blocking response has been seen.
package circuit

import (
	"errors"
	"fmt"
	"sync"
)

// ErrOpen is returned by Allow once the circuit has been tripped.
var ErrOpen = errors.New("circuit is open")

// State represents the state of the circuit.
type State int

const (
	// StateClosed means calls are allowed.
	StateClosed State = iota
	// StateOpen means calls are refused for the rest of the run.
	StateOpen
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// Breaker is a one-way circuit. There is no half-open state: a run that has been
// blocked stays blocked.
type Breaker struct {
	mu            sync.RWMutex
	state         State
	reason        string
	onStateChange func(from, to State, reason string)
}

// Option configures a Breaker.
type Option func(*Breaker)

// WithStateChange registers a callback invoked once when the circuit opens.
func WithStateChange(fn func(from, to State, reason string)) Option {
	return func(b *Breaker) {
		b.onStateChange = fn
	}
}

// New creates a closed breaker.
func New(opts ...Option) *Breaker {
	b := &Breaker{state: StateClosed}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Allow returns ErrOpen when the circuit has been tripped.
func (b *Breaker) Allow() error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.state == StateOpen {
		return fmt.Errorf("%w: %s", ErrOpen, b.reason)
	}
	return nil
}

// Trip opens the circuit. Later trips keep the first reason.
func (b *Breaker) Trip(reason string) {
	b.mu.Lock()
	if b.state == StateOpen {
		b.mu.Unlock()
		return
	}
	b.state = StateOpen
	b.reason = reason
	callback := b.onStateChange
	b.mu.Unlock()

	if callback != nil {
		callback(StateClosed, StateOpen, reason)
	}
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

// Reason returns why the circuit opened, or "" while closed.
func (b *Breaker) Reason() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.reason
}
