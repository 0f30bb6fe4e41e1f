package engine

import (
	"context"
	"errors"
	"sync"
)

var errQueueClosed = errors.New("signer queue closed")

type signerJob struct {
	ctx  context.Context
	fn   func(context.Context) error
	errc chan error
}

// signerQueue runs every on-chain job for the signer on one goroutine, so
// submissions from both tracks never interleave and nonces stay ordered.
type signerQueue struct {
	jobs chan signerJob
	done chan struct{}
	once sync.Once
}

func newSignerQueue() *signerQueue {
	q := &signerQueue{
		jobs: make(chan signerJob),
		done: make(chan struct{}),
	}
	go q.run()
	return q
}

func (q *signerQueue) run() {
	for {
		select {
		case j := <-q.jobs:
			select {
			case <-q.done:
				j.errc <- errQueueClosed
				continue
			default:
			}
			j.errc <- j.fn(j.ctx)
		case <-q.done:
			return
		}
	}
}

// Do blocks until fn has run. Once accepted a job always runs to completion;
// fn is expected to honour ctx itself.
func (q *signerQueue) Do(ctx context.Context, fn func(context.Context) error) error {
	select {
	case <-q.done:
		return errQueueClosed
	default:
	}
	j := signerJob{ctx: ctx, fn: fn, errc: make(chan error, 1)}
	select {
	case q.jobs <- j:
	case <-ctx.Done():
		return ctx.Err()
	case <-q.done:
		return errQueueClosed
	}
	return <-j.errc
}

func (q *signerQueue) Close() {
	q.once.Do(func() { close(q.done) })
}
