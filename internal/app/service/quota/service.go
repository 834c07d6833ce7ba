package quota

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fatflowers/fplcoach/internal/app/service/subscription"
	"github.com/fatflowers/fplcoach/internal/models"
	"github.com/fatflowers/fplcoach/pkg/apperr"
	"github.com/fatflowers/fplcoach/pkg/logctx"
	"github.com/fatflowers/fplcoach/pkg/metrics"
	"github.com/fatflowers/fplcoach/pkg/tool"
	"github.com/fatflowers/fplcoach/pkg/types"
)

// Service meters chat messages per user and calendar month.
type Service struct {
	db      *gorm.DB
	subs    *subscription.Service
	metrics *metrics.Business
	log     *zap.SugaredLogger
	now     func() time.Time
}

func NewService(db *gorm.DB, subs *subscription.Service, m *metrics.Business, log *zap.SugaredLogger) *Service {
	return &Service{db: db, subs: subs, metrics: m, log: log, now: time.Now}
}

// Allowance is the outcome of a pre-send check.
type Allowance struct {
	Allowed   bool       `json:"allowed"`
	Remaining int        `json:"remaining"`
	Used      int        `json:"used"`
	Limit     int        `json:"limit"`
	Plan      types.Plan `json:"plan"`
}

// Hook runs inside the transaction that commits a send.
type Hook func(tx *gorm.DB) error

var usageKey = []clause.Column{{Name: "user_id"}, {Name: "month"}, {Name: "year"}}

// CanSend sweeps an expired Free window, then reports the current allowance.
// It does not reserve a slot; RecordSend re-checks atomically.
func (s *Service) CanSend(ctx context.Context, userID string) (*Allowance, error) {
	usage, sub, err := s.sweep(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &Allowance{
		Allowed:   usage.MessagesUsed < usage.MessagesLimit,
		Remaining: usage.Remaining(),
		Used:      usage.MessagesUsed,
		Limit:     usage.MessagesLimit,
		Plan:      sub.Plan,
	}, nil
}

// RecordSend consumes one message with a conditional increment. Zero affected
// rows means the period is exhausted and yields *apperr.QuotaExceededError.
// Hooks run in the same transaction, so their writes commit with the slot.
func (s *Service) RecordSend(ctx context.Context, userID string, hooks ...Hook) (*models.UsageTracking, error) {
	now := s.now()
	var usage *models.UsageTracking
	var plan types.Plan
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := s.increment(ctx, tx, userID, now)
		if err != nil {
			return err
		}
		if !ok {
			// No row yet for this month: create it from the plan and retry once.
			current, err := s.currentUsage(ctx, tx, userID, now)
			if err != nil {
				return err
			}
			if current == nil {
				sub, err := s.subs.GetForUpdate(ctx, tx, userID)
				if err != nil {
					return err
				}
				if _, err := s.GetOrCreateUsage(ctx, tx, userID, sub.Plan); err != nil {
					return err
				}
				if ok, err = s.increment(ctx, tx, userID, now); err != nil {
					return err
				}
			}
		}
		current, err := s.currentUsage(ctx, tx, userID, now)
		if err != nil {
			return err
		}
		if !ok {
			return &apperr.QuotaExceededError{Used: current.MessagesUsed, Limit: current.MessagesLimit}
		}
		for _, hook := range hooks {
			if err := hook(tx); err != nil {
				return err
			}
		}
		var sub models.Subscription
		if err := tx.WithContext(ctx).Select("plan").Where("user_id = ?", userID).First(&sub).Error; err == nil {
			plan = sub.Plan
		}
		usage = current
		return nil
	})
	if err != nil {
		var qe *apperr.QuotaExceededError
		if errors.As(err, &qe) {
			s.metrics.QuotaRejected()
			logctx.FromCtx(ctx, s.log).Infow("send rejected, quota exhausted", "user_id", userID, "used", qe.Used, "limit", qe.Limit)
			return nil, err
		}
		return nil, fmt.Errorf("failed to record send: %w", err)
	}
	s.metrics.MessageSent(string(plan))
	return usage, nil
}

func (s *Service) increment(ctx context.Context, tx *gorm.DB, userID string, now time.Time) (bool, error) {
	res := tx.WithContext(ctx).Model(&models.UsageTracking{}).
		Where("user_id = ? AND month = ? AND year = ? AND messages_used < messages_limit", userID, int(now.Month()), now.Year()).
		UpdateColumns(map[string]any{
			"messages_used": gorm.Expr("messages_used + ?", 1),
			"updated_at":    now,
		})
	if res.Error != nil {
		return false, fmt.Errorf("failed to increment usage: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (s *Service) currentUsage(ctx context.Context, tx *gorm.DB, userID string, now time.Time) (*models.UsageTracking, error) {
	var usage models.UsageTracking
	err := tx.WithContext(ctx).
		Where("user_id = ? AND month = ? AND year = ?", userID, int(now.Month()), now.Year()).
		First(&usage).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load usage: %w", err)
	}
	return &usage, nil
}

// GetOrCreateUsage returns the current month's row, creating it with the
// plan ceiling (5 for Free) when absent.
func (s *Service) GetOrCreateUsage(ctx context.Context, tx *gorm.DB, userID string, plan types.Plan) (*models.UsageTracking, error) {
	now := s.now()
	row := &models.UsageTracking{
		ID:            tool.GenerateUUIDV7(),
		UserID:        userID,
		Month:         int(now.Month()),
		Year:          now.Year(),
		MessagesLimit: plan.MessageLimit(),
	}
	if err := tx.WithContext(ctx).Clauses(clause.OnConflict{Columns: usageKey, DoNothing: true}).Create(row).Error; err != nil {
		return nil, fmt.Errorf("failed to create usage: %w", err)
	}
	usage, err := s.currentUsage(ctx, tx, userID, now)
	if err != nil {
		return nil, err
	}
	if usage == nil {
		return nil, apperr.NotFound("usage")
	}
	return usage, nil
}

// ResetUsage sets the current month's row to (limit, 0), creating it if needed.
func (s *Service) ResetUsage(ctx context.Context, tx *gorm.DB, userID string, limit int) (*models.UsageTracking, error) {
	now := s.now()
	row := &models.UsageTracking{
		ID:            tool.GenerateUUIDV7(),
		UserID:        userID,
		Month:         int(now.Month()),
		Year:          now.Year(),
		MessagesLimit: limit,
	}
	err := tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: usageKey,
		DoUpdates: clause.Assignments(map[string]any{
			"messages_used":  0,
			"messages_limit": limit,
			"updated_at":     now,
		}),
	}).Create(row).Error
	if err != nil {
		return nil, fmt.Errorf("failed to reset usage: %w", err)
	}
	return s.currentUsage(ctx, tx, userID, now)
}

// CreditLimit raises the current month's limit by amount. A missing row is
// created from the plan first, so a Free user ends at 5+amount.
func (s *Service) CreditLimit(ctx context.Context, tx *gorm.DB, userID string, plan types.Plan, amount int) (*models.UsageTracking, error) {
	usage, err := s.GetOrCreateUsage(ctx, tx, userID, plan)
	if err != nil {
		return nil, err
	}
	err = tx.WithContext(ctx).Model(&models.UsageTracking{}).
		Where("id = ?", usage.ID).
		UpdateColumns(map[string]any{
			"messages_limit": gorm.Expr("messages_limit + ?", amount),
			"updated_at":     s.now(),
		}).Error
	if err != nil {
		return nil, fmt.Errorf("failed to credit usage: %w", err)
	}
	usage.MessagesLimit += amount
	return usage, nil
}
