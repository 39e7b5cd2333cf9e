package enrichment

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/angelmondragon/wishlist-backend/pkg/logger"
)

// ErrTriggerBusy is returned when every local worker slot is taken.
var ErrTriggerBusy = errors.New("enrichment workers busy")

// LocalTrigger runs jobs in-process on a bounded set of goroutines. It is used
// when no Pub/Sub topic is configured.
type LocalTrigger struct {
	processor jobProcessor
	slots     chan struct{}
	timeout   time.Duration
	logg      *logger.Logger
	wg        sync.WaitGroup
}

// NewLocalTrigger builds a trigger running at most workers jobs at once, each
// bounded by timeout.
func NewLocalTrigger(processor jobProcessor, workers int, timeout time.Duration, logg *logger.Logger) (*LocalTrigger, error) {
	if processor == nil {
		return nil, errors.New("enrichment processor required")
	}
	if workers <= 0 {
		workers = 1
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &LocalTrigger{
		processor: processor,
		slots:     make(chan struct{}, workers),
		timeout:   timeout,
		logg:      logg,
	}, nil
}

// Trigger starts the job and returns without waiting for it.
func (t *LocalTrigger) Trigger(ctx context.Context, job Job) error {
	if err := job.validate(); err != nil {
		return err
	}
	select {
	case t.slots <- struct{}{}:
	default:
		return ErrTriggerBusy
	}

	// The request context ends with the response; keep its log fields only.
	jobCtx := context.WithoutCancel(ctx)
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		defer func() { <-t.slots }()
		runCtx, cancel := context.WithTimeout(jobCtx, t.timeout)
		defer cancel()
		if _, err := t.processor.Process(runCtx, job); err != nil {
			t.logg.Error(runCtx, "local enrichment failed", err)
		}
	}()
	return nil
}

// Wait blocks until every started job has finished.
func (t *LocalTrigger) Wait() {
	t.wg.Wait()
}
