package notifier

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fatflowers/fplcoach/internal/models"
	"github.com/fatflowers/fplcoach/pkg/types"
)

const (
	defaultRelayInterval = time.Minute
	defaultMaxAttempts   = 5
	// relayGrace leaves fresh rows to the goroutine started by Dispatch.
	relayGrace = 30 * time.Second
	relayBatch = 50
)

func (s *Service) maxAttempts() int {
	if s.cfg.Mail.MaxAttempts > 0 {
		return s.cfg.Mail.MaxAttempts
	}
	return defaultMaxAttempts
}

// Relay redelivers pending and failed events that still have attempts left.
// It returns how many were sent.
func (s *Service) Relay(ctx context.Context) (int, error) {
	var events []*models.OutboxEvent
	err := s.db.WithContext(ctx).
		Where("status IN ?", []types.OutboxStatus{types.OutboxStatusPending, types.OutboxStatusFailed}).
		Where("attempts < ? AND updated_at <= ?", s.maxAttempts(), s.now().Add(-relayGrace)).
		Order("created_at").
		Limit(relayBatch).
		Find(&events).Error
	if err != nil {
		return 0, fmt.Errorf("failed to list undelivered events: %w", err)
	}

	sent := 0
	for _, ev := range events {
		if ctx.Err() != nil {
			break
		}
		if s.Deliver(ctx, ev) == nil {
			sent++
		}
	}
	if len(events) > 0 {
		s.log.Infow("outbox relay finished", "picked", len(events), "sent", sent)
	}
	return sent, nil
}

// RunRelay calls Relay every interval until ctx is done.
func (s *Service) RunRelay(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Relay(ctx); err != nil {
				s.log.Errorw("outbox relay failed", "err", err)
			}
		}
	}
}

func runRelay(lc fx.Lifecycle, s *Service, log *zap.SugaredLogger) {
	interval := s.cfg.Mail.RelayInterval
	if interval <= 0 {
		interval = defaultRelayInterval
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			log.Infow("starting outbox relay", "interval", interval, "max_attempts", s.maxAttempts())
			go func() {
				defer close(done)
				s.RunRelay(ctx, interval)
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
				return nil
			case <-stopCtx.Done():
				return stopCtx.Err()
			}
		},
	})
}
