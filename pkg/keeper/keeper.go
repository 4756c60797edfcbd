// Package keeper serializes access to sketch values. Sketches themselves
// are copy-on-write value types with no locking; a Keeper owns the single
// authoritative value and applies updates and queries strictly in arrival
// order, so sequential callers always read their own writes.
package keeper

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sketchlab/streamsketch/pkg/sketches"
)

// ErrClosed is returned for requests against a closed keeper.
var ErrClosed = errors.New("keeper: closed")

type request struct {
	fn    func(cur sketches.Sketch) (sketches.Sketch, any, error)
	reply chan response
}

type response struct {
	out any
	err error
}

// Keeper owns one sketch value. A single goroutine processes requests one
// at a time; at most one mutation is ever in flight.
type Keeper struct {
	name      string
	createdAt time.Time
	requests  chan request
	done      chan struct{}
	closeOnce sync.Once
}

// New starts a keeper owning initial.
func New(name string, initial sketches.Sketch) *Keeper {
	k := &Keeper{
		name:      name,
		createdAt: time.Now(),
		requests:  make(chan request),
		done:      make(chan struct{}),
	}
	go k.run(initial)
	return k
}

// Name returns the keeper's name.
func (k *Keeper) Name() string {
	return k.name
}

// CreatedAt returns when the keeper was started.
func (k *Keeper) CreatedAt() time.Time {
	return k.createdAt
}

func (k *Keeper) run(cur sketches.Sketch) {
	for {
		select {
		case req := <-k.requests:
			next, out, err := req.fn(cur)
			if next != nil {
				cur = next
			}
			req.reply <- response{out: out, err: err}
		case <-k.done:
			return
		}
	}
}

func (k *Keeper) do(ctx context.Context, fn func(cur sketches.Sketch) (sketches.Sketch, any, error)) (any, error) {
	req := request{fn: fn, reply: make(chan response, 1)}
	select {
	case k.requests <- req:
	case <-k.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case resp := <-req.reply:
		return resp.out, resp.err
	case <-k.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Update applies one value to the sketch.
func (k *Keeper) Update(ctx context.Context, value []byte) error {
	_, err := k.do(ctx, func(cur sketches.Sketch) (sketches.Sketch, any, error) {
		return cur.Apply(value), nil, nil
	})
	return err
}

// Query answers a point query against the current value.
func (k *Keeper) Query(ctx context.Context, value []byte) (sketches.Answer, error) {
	out, err := k.do(ctx, func(cur sketches.Sketch) (sketches.Sketch, any, error) {
		return nil, cur.Query(value), nil
	})
	if err != nil {
		return sketches.Answer{}, err
	}
	return out.(sketches.Answer), nil
}

// Snapshot returns the current sketch value. The value is safe to retain:
// subsequent updates produce new values and never mutate old ones.
func (k *Keeper) Snapshot(ctx context.Context) (sketches.Sketch, error) {
	out, err := k.do(ctx, func(cur sketches.Sketch) (sketches.Sketch, any, error) {
		return nil, cur, nil
	})
	if err != nil {
		return nil, err
	}
	return out.(sketches.Sketch), nil
}

// Replace swaps in a new authoritative value (e.g. one loaded from a
// snapshot store).
func (k *Keeper) Replace(ctx context.Context, next sketches.Sketch) error {
	_, err := k.do(ctx, func(cur sketches.Sketch) (sketches.Sketch, any, error) {
		return next, nil, nil
	})
	return err
}

// Close stops the keeper. In-flight requests complete; later requests
// fail with ErrClosed. Close is idempotent.
func (k *Keeper) Close() {
	k.closeOnce.Do(func() { close(k.done) })
}
