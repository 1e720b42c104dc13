package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/aussiebroadwan/portalid/internal/identity/domain"
)

// ErrDispatcherClosed is returned by Send after Close.
var ErrDispatcherClosed = errors.New("notify: dispatcher closed")

// Sender is the shape shared by every dispatcher in this package.
type Sender interface {
	Send(ctx context.Context, e domain.Email) error
}

type asyncJob struct {
	ctx   context.Context
	email domain.Email
}

// AsyncDispatcher queues emails for a background worker so Send returns
// without waiting on the backend. Callers see the same latency whether or
// not the backend is slow.
type AsyncDispatcher struct {
	Next   Sender
	Logger *slog.Logger

	mu     sync.RWMutex
	closed bool
	jobs   chan asyncJob
	doneCh chan struct{}
}

// NewAsyncDispatcher starts the worker. queue bounds the backlog; Send
// blocks only once it is full.
func NewAsyncDispatcher(next Sender, logger *slog.Logger, queue int) *AsyncDispatcher {
	d := &AsyncDispatcher{
		Next:   next,
		Logger: logger,
		jobs:   make(chan asyncJob, max(queue, 1)),
		doneCh: make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *AsyncDispatcher) Send(ctx context.Context, e domain.Email) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrDispatcherClosed
	}
	select {
	case d.jobs <- asyncJob{ctx: context.WithoutCancel(ctx), email: e}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting emails and waits for the backlog to drain or ctx
// to end, whichever comes first.
func (d *AsyncDispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.jobs)
	}
	d.mu.Unlock()

	select {
	case <-d.doneCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *AsyncDispatcher) run() {
	defer close(d.doneCh)
	for job := range d.jobs {
		if err := d.Next.Send(job.ctx, job.email); err != nil {
			d.Logger.LogAttrs(job.ctx, slog.LevelError, "email dispatch failed",
				slog.String("to", job.email.To),
				slog.String("template", string(job.email.Template)),
				slog.Any("error", err),
			)
		}
	}
}
