package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/angelmondragon/wishlist-backend/pkg/logger"
)

type consumer interface {
	Run(ctx context.Context) error
}

type pinger func(context.Context) error

type ServiceParams struct {
	Logger   *logger.Logger
	Consumer consumer
	// Dependencies are pinged in order before the consumer starts.
	Dependencies []Dependency
	// MetricsServer is optional.
	MetricsServer *http.Server
}

// Dependency names a readiness check.
type Dependency struct {
	Name string
	Ping pinger
}

type Service struct {
	logg          *logger.Logger
	consumer      consumer
	deps          []Dependency
	metricsServer *http.Server
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.Consumer == nil {
		return nil, errors.New("enrichment consumer is required")
	}
	for _, dep := range params.Dependencies {
		if dep.Ping == nil {
			return nil, fmt.Errorf("%s ping is required", dep.Name)
		}
	}
	return &Service{
		logg:          params.Logger,
		consumer:      params.Consumer,
		deps:          params.Dependencies,
		metricsServer: params.MetricsServer,
	}, nil
}

func (s *Service) ensureReadiness(ctx context.Context) error {
	for _, dep := range s.deps {
		if err := pingDependency(ctx, s.logg, dep.Name, dep.Ping); err != nil {
			return err
		}
	}
	s.logg.Info(ctx, "all worker dependencies are ready")
	return nil
}

func pingDependency(ctx context.Context, logg *logger.Logger, name string, fn func(context.Context) error) error {
	if err := fn(ctx); err != nil {
		logg.Error(ctx, fmt.Sprintf("%s ping failed", name), err)
		return fmt.Errorf("%s ping failed: %w", name, err)
	}
	return nil
}

func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if err := s.ensureReadiness(ctx); err != nil {
		return err
	}

	errCh := make(chan error, 2)
	go func() {
		errCh <- s.consumer.Run(ctx)
	}()
	if s.metricsServer != nil {
		go func() {
			if err := s.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("metrics server: %w", err)
			}
		}()
		defer s.shutdownMetrics()
	}

	select {
	case <-ctx.Done():
		s.logg.Info(ctx, "worker context canceled")
		return ctx.Err()
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logg.Error(ctx, "consumer stopped unexpectedly", err)
			return err
		}
		return err
	}
}

func (s *Service) shutdownMetrics() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.metricsServer.Shutdown(ctx); err != nil {
		s.logg.Error(ctx, "metrics server shutdown failed", err)
	}
}
