// Package queue runs deferred jobs drained from the outbox on a bounded
// worker pool.
package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/panjf2000/ants/v2"

	"github.com/paygrid-payments-engine/internal/domain/outbox"
)

// ErrNoHandler indicates a job action nothing registered for
var ErrNoHandler = errors.New("no handler registered for job action")

// Handler processes one job message
type Handler func(ctx context.Context, msg *outbox.Message) error

// Pool dispatches job messages onto an ants worker pool. Run blocks until
// the job finishes so the caller can decide the outbox row's fate from the
// actual result.
type Pool struct {
	pool     *ants.Pool
	handlers map[string]Handler
	logger   *slog.Logger
}

func NewPool(size int, logger *slog.Logger) (*Pool, error) {
	p, err := ants.NewPool(size)
	if err != nil {
		return nil, fmt.Errorf("failed to create worker pool: %w", err)
	}
	return &Pool{
		pool:     p,
		handlers: make(map[string]Handler),
		logger:   logger.With(slog.String("component", "queue")),
	}, nil
}

// Register binds a handler to a job action. Not safe to call after Run
// starts being used.
func (p *Pool) Register(action string, h Handler) {
	p.handlers[action] = h
}

// Run executes the job on the pool and waits for its result
func (p *Pool) Run(ctx context.Context, msg *outbox.Message) error {
	handler, ok := p.handlers[msg.Action]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoHandler, msg.Action)
	}

	resultChan := make(chan error, 1)
	if err := p.pool.Submit(func() {
		resultChan <- handler(ctx, msg)
	}); err != nil {
		return fmt.Errorf("failed to submit job to worker pool: %w", err)
	}

	select {
	case err := <-resultChan:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release tears the pool down after in-flight jobs finish
func (p *Pool) Release() {
	p.pool.Release()
	p.logger.Info("Worker pool released")
}
