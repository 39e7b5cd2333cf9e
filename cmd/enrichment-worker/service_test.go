package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/angelmondragon/wishlist-backend/pkg/logger"
)

type fakeConsumer struct {
	err     error
	started chan struct{}
}

func (f *fakeConsumer) Run(ctx context.Context) error {
	if f.started != nil {
		close(f.started)
	}
	if f.err != nil {
		return f.err
	}
	<-ctx.Done()
	return ctx.Err()
}

func okPing(context.Context) error { return nil }

func TestNewServiceRequiresDependencies(t *testing.T) {
	if _, err := NewService(ServiceParams{Consumer: &fakeConsumer{}}); err == nil {
		t.Fatal("expected error without logger")
	}
	if _, err := NewService(ServiceParams{Logger: logger.Nop()}); err == nil {
		t.Fatal("expected error without consumer")
	}
	_, err := NewService(ServiceParams{
		Logger:       logger.Nop(),
		Consumer:     &fakeConsumer{},
		Dependencies: []Dependency{{Name: "redis"}},
	})
	if err == nil {
		t.Fatal("expected error for dependency without ping")
	}
}

func TestRunStopsWhenReadinessFails(t *testing.T) {
	consumer := &fakeConsumer{started: make(chan struct{})}
	svc, err := NewService(ServiceParams{
		Logger:   logger.Nop(),
		Consumer: consumer,
		Dependencies: []Dependency{
			{Name: "database", Ping: okPing},
			{Name: "redis", Ping: func(context.Context) error { return errors.New("connection refused") }},
		},
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	err = svc.Run(context.Background())
	if err == nil || err.Error() != "redis ping failed: connection refused" {
		t.Fatalf("unexpected error: %v", err)
	}
	select {
	case <-consumer.started:
		t.Fatal("consumer should not start when a dependency is down")
	default:
	}
}

func TestRunReturnsConsumerError(t *testing.T) {
	boom := errors.New("subscription deleted")
	svc, err := NewService(ServiceParams{
		Logger:       logger.Nop(),
		Consumer:     &fakeConsumer{err: boom},
		Dependencies: []Dependency{{Name: "pubsub", Ping: okPing}},
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if err := svc.Run(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected consumer error, got %v", err)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	consumer := &fakeConsumer{started: make(chan struct{})}
	svc, err := NewService(ServiceParams{Logger: logger.Nop(), Consumer: consumer})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	<-consumer.started
	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("run did not return after cancel")
	}
}
