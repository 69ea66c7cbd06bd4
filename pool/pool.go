// Package pool provides a bounded connection pool with overflow and
// queue-time measurement.
//
// A Pool owns a fixed set of connections plus an optional overflow margin.
// Callers either Acquire/Release explicitly or, preferably, wrap their work
// in [Run], which guarantees release on every exit path and reports how long
// the caller waited for a connection. Connections are dialed lazily the
// first time a slot is used and handed to exactly one caller at a time.
package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

var (
	// ErrPoolClosed is returned by Acquire after Close has been called.
	ErrPoolClosed = errors.New("rivet: pool is closed")

	// ErrAcquireTimeout is returned when AcquireTimeout expires before a
	// connection becomes available. It is distinct from caller cancellation
	// so callers can treat it as retryable contention.
	ErrAcquireTimeout = errors.New("rivet: timed out waiting for connection")
)

// DialFunc creates one new connection.
type DialFunc[C any] func(ctx context.Context) (C, error)

// CloseFunc tears down one connection.
type CloseFunc[C any] func(C) error

// Pool is a bounded pool of connections of type C.
//
// At any instant, checked-out connections never exceed Size + MaxOverflow.
// Released connections beyond the base Size are closed rather than parked.
type Pool[C any] struct {
	cfg       Config
	dial      DialFunc[C]
	closeConn CloseFunc[C]

	// permits carries one token per allowed connection; taking a token is
	// the only way to check a connection out.
	permits chan struct{}

	mu     sync.Mutex
	idle   []C
	open   int
	closed bool
}

// Stats is a point-in-time snapshot of pool occupancy.
type Stats struct {
	// InUse is the number of connections currently checked out.
	InUse int

	// Idle is the number of dialed connections parked in the pool.
	Idle int

	// Open is the total number of dialed, not-yet-closed connections.
	Open int
}

// New creates a Pool that dials connections with dial and tears them down
// with closeFn. closeFn may be nil for connection types with no teardown.
func New[C any](cfg Config, dial DialFunc[C], closeFn CloseFunc[C]) (*Pool[C], error) {
	if dial == nil {
		return nil, errors.New("rivet: pool requires a dial function")
	}
	cfg.validate()

	p := &Pool[C]{
		cfg:       cfg,
		dial:      dial,
		closeConn: closeFn,
		permits:   make(chan struct{}, cfg.Size+cfg.MaxOverflow),
	}
	for i := 0; i < cap(p.permits); i++ {
		p.permits <- struct{}{}
	}
	return p, nil
}

// Acquire checks a connection out, blocking until one is available or ctx
// is done. If AcquireTimeout is configured, expiry surfaces as
// ErrAcquireTimeout. An abandoned Acquire never consumes a slot.
func (p *Pool[C]) Acquire(ctx context.Context) (C, error) {
	var zero C

	if err := ctx.Err(); err != nil {
		return zero, err
	}
	if p.cfg.AcquireTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.AcquireTimeout)
		defer cancel()
	}

	select {
	case <-p.permits:
	case <-ctx.Done():
		if p.cfg.AcquireTimeout > 0 && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return zero, ErrAcquireTimeout
		}
		return zero, ctx.Err()
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.permits <- struct{}{}
		return zero, ErrPoolClosed
	}
	if n := len(p.idle); n > 0 {
		conn := p.idle[n-1]
		p.idle = p.idle[:n-1]
		p.mu.Unlock()
		return conn, nil
	}
	p.mu.Unlock()

	conn, err := p.dial(ctx)
	if err != nil {
		// Return the permit so the failed dial does not leak a slot.
		p.permits <- struct{}{}
		return zero, fmt.Errorf("rivet: dial connection: %w", err)
	}

	p.mu.Lock()
	p.open++
	p.mu.Unlock()
	return conn, nil
}

// Release returns a connection to the pool. It must be called exactly once
// per successful Acquire, including when the work done with the connection
// failed. Release always succeeds; teardown errors are discarded.
func (p *Pool[C]) Release(conn C) {
	p.mu.Lock()
	if p.closed || len(p.idle) >= p.cfg.Size {
		p.open--
		p.mu.Unlock()
		p.teardown(conn)
		p.permits <- struct{}{}
		return
	}
	p.idle = append(p.idle, conn)
	p.mu.Unlock()
	p.permits <- struct{}{}
}

// Close marks the pool closed and tears down all idle connections.
// Connections still checked out are torn down as they are released.
func (p *Pool[C]) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrPoolClosed
	}
	p.closed = true
	idle := p.idle
	p.idle = nil
	p.open -= len(idle)
	p.mu.Unlock()

	var errs []error
	for _, conn := range idle {
		if err := p.teardown(conn); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Stats returns a snapshot of pool occupancy.
func (p *Pool[C]) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		InUse: p.open - len(p.idle),
		Idle:  len(p.idle),
		Open:  p.open,
	}
}

func (p *Pool[C]) teardown(conn C) error {
	if p.closeConn == nil {
		return nil
	}
	return p.closeConn(conn)
}

// Run checks a connection out, invokes work with it, and releases it on
// every exit path, including a panic inside work. It returns the time spent
// waiting for the connection alongside work's result, so contention and
// store latency can be observed separately.
func Run[C, R any](ctx context.Context, p *Pool[C], work func(C) (R, error)) (time.Duration, R, error) {
	var zero R

	start := time.Now()
	conn, err := p.Acquire(ctx)
	wait := time.Since(start)
	if err != nil {
		return wait, zero, err
	}
	defer p.Release(conn)

	res, err := work(conn)
	return wait, res, err
}
