package quota

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/fatflowers/fplcoach/internal/app/service/subscription"
	"github.com/fatflowers/fplcoach/internal/models"
	"github.com/fatflowers/fplcoach/pkg/logctx"
	"github.com/fatflowers/fplcoach/pkg/types"
)

// SweepIfExpired forfeits unused bonus messages of a Free user whose window
// ended: usage returns to (5, 0) and the window becomes [now, now+1 month].
// Before the boundary it only returns the current usage.
func (s *Service) SweepIfExpired(ctx context.Context, userID string) (*models.UsageTracking, error) {
	usage, _, err := s.sweep(ctx, userID)
	return usage, err
}

func (s *Service) sweep(ctx context.Context, userID string) (*models.UsageTracking, *models.Subscription, error) {
	var usage *models.UsageTracking
	var sub *models.Subscription
	var change *subscription.Change
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		sub, err = s.subs.GetForUpdate(ctx, tx, userID)
		if err != nil {
			return err
		}
		now := s.now()
		if !sub.Plan.IsFree() || !sub.PeriodExpired(now) {
			usage, err = s.GetOrCreateUsage(ctx, tx, userID, sub.Plan)
			return err
		}

		previousEnd := *sub.CurrentPeriodEnd
		if usage, err = s.ResetUsage(ctx, tx, userID, types.FreeMessageLimit); err != nil {
			return err
		}
		start, end := now, now.AddDate(0, 1, 0)
		sub.CurrentPeriodStart = &start
		sub.CurrentPeriodEnd = &end
		change, err = s.subs.Upsert(ctx, tx, sub, types.SubscriptionChangeReasonPeriodRollover, map[string]any{
			"previous_period_end": previousEnd,
		})
		return err
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to sweep usage: %w", err)
	}
	if change != nil {
		s.subs.Record(ctx, change)
		logctx.FromCtx(ctx, s.log).Infow("free period rolled over", "user_id", userID, "period_end", sub.CurrentPeriodEnd)
	}
	return usage, sub, nil
}
