package background

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

var ErrShuttingDown = errors.New("background tasks are shutting down")

// Background tracks fire-and-forget tasks so they can be drained on shutdown.
type Background struct {
	mu       sync.Mutex
	wg       sync.WaitGroup
	log      logrus.FieldLogger
	stopping bool
}

func New(log logrus.FieldLogger) *Background {
	return &Background{log: log}
}

func (b *Background) Add(fn func() error) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.stopping {
		return ErrShuttingDown
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				b.log.Error(fmt.Sprintf("background task panic: %v", rec))
			}
		}()

		if err := fn(); err != nil {
			b.log.WithField("message", err).Error("background task failed")
		}
	}()
	return nil
}

func (b *Background) Shutdown(ctx context.Context) error {
	b.mu.Lock()
	b.stopping = true
	b.mu.Unlock()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
