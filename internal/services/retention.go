package services

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dmarkin/regimecast-ai-go/internal/database"
)

// RetentionService prunes persisted signals past their retention age on a
// fixed interval so the history table does not grow without bound.
type RetentionService struct {
	repo     *database.SignalRepository
	maxAge   time.Duration
	interval time.Duration
	logger   *logrus.Logger
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewRetentionService creates a new retention service.
func NewRetentionService(repo *database.SignalRepository, maxAge, interval time.Duration, logger *logrus.Logger) *RetentionService {
	ctx, cancel := context.WithCancel(context.Background())
	return &RetentionService{
		repo:     repo,
		maxAge:   maxAge,
		interval: interval,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
}

// Start runs one immediate prune and then prunes on every interval tick.
func (s *RetentionService) Start() {
	s.logger.WithFields(logrus.Fields{
		"max_age":  s.maxAge.String(),
		"interval": s.interval.String(),
	}).Info("Starting signal retention service")

	go func() {
		defer close(s.done)

		s.prune()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.prune()
			}
		}
	}()
}

// Stop cancels the prune loop and waits for it to exit.
func (s *RetentionService) Stop() {
	s.cancel()
	<-s.done
	s.logger.Info("Stopped signal retention service")
}

func (s *RetentionService) prune() {
	removed, err := s.repo.CleanupOlderThan(s.ctx, s.maxAge)
	if err != nil {
		if s.ctx.Err() == nil {
			s.logger.WithError(err).Warn("Signal retention prune failed")
		}
		return
	}
	if removed > 0 {
		s.logger.WithFields(logrus.Fields{
			"removed": removed,
			"max_age": s.maxAge.String(),
		}).Info("Pruned old signal records")
	}
}
