package main

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/shopfloor-backend/pkg/logger"
)

type pinger interface {
	Ping(context.Context) error
}

type consumer interface {
	Run(ctx context.Context) error
}

type ServiceParams struct {
	Logger          *logger.Logger
	DB              pinger
	Redis           pinger
	PubSub          pinger
	PlanningRunsSub consumer
}

type namedConsumer struct {
	name string
	run  consumer
}

type dependency struct {
	name string
	ping pinger
}

// Service runs the Pub/Sub consumers once every backing store answers.
type Service struct {
	logg      *logger.Logger
	deps      []dependency
	consumers []namedConsumer
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	deps := []dependency{
		{name: "database", ping: params.DB},
		{name: "redis", ping: params.Redis},
		{name: "pubsub", ping: params.PubSub},
	}
	for _, dep := range deps {
		if dep.ping == nil {
			return nil, fmt.Errorf("%s client is required", dep.name)
		}
	}
	if params.PlanningRunsSub == nil {
		return nil, errors.New("planning consumer is required")
	}
	return &Service{
		logg:      params.Logger,
		deps:      deps,
		consumers: []namedConsumer{{name: "planning-runs", run: params.PlanningRunsSub}},
	}, nil
}

func (s *Service) checkDependencies(ctx context.Context) error {
	for _, dep := range s.deps {
		if err := dep.ping.Ping(ctx); err != nil {
			s.logg.Error(s.logg.WithField(ctx, "dependency", dep.name), "dependency not ready", err)
			return fmt.Errorf("%s ping failed: %w", dep.name, err)
		}
	}
	s.logg.Info(ctx, "all worker dependencies are ready")
	return nil
}

// Run blocks until ctx ends or a consumer stops; either way the remaining
// consumers are canceled and the first error is returned.
func (s *Service) Run(ctx context.Context) error {
	if err := s.checkDependencies(ctx); err != nil {
		return err
	}

	group, groupCtx := errgroup.WithContext(ctx)
	for _, c := range s.consumers {
		group.Go(func() error {
			err := c.run.Run(groupCtx)
			if err == nil && groupCtx.Err() == nil {
				err = errors.New("stopped without error")
			}
			if err != nil {
				return fmt.Errorf("%s: %w", c.name, err)
			}
			return nil
		})
	}

	err := group.Wait()
	switch {
	case ctx.Err() != nil:
		s.logg.Info(ctx, "worker context canceled")
	case err != nil:
		s.logg.Error(ctx, "consumer stopped unexpectedly", err)
	}
	return err
}
