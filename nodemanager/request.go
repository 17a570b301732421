package nodemanager

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Request is the one-shot completion handle of TryToConnect and CheckGenesisHash.
type Request struct {
	ID string

	once  sync.Once
	done  chan struct{}
	event Event
	err   error
}

func newRequest() *Request {
	return &Request{
		ID:   uuid.NewString(),
		done: make(chan struct{}),
	}
}

// Done is closed once the request is resolved.
func (r *Request) Done() <-chan struct{} {
	return r.done
}

// Wait blocks until the request is resolved or ctx is done.
func (r *Request) Wait(ctx context.Context) (Event, error) {
	select {
	case <-r.done:
		return r.event, r.err
	case <-ctx.Done():
		return Event{}, ctx.Err()
	}
}

// resolve is a no-op after the first call.
func (r *Request) resolve(ev Event, err error) {
	r.once.Do(func() {
		ev.RequestID = r.ID
		r.event = ev
		r.err = err
		close(r.done)
	})
}
