package subscription

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	models "github.com/fatflowers/fplcoach/internal/models"
	"github.com/fatflowers/fplcoach/pkg/apperr"
	"github.com/fatflowers/fplcoach/pkg/logctx"
	"github.com/fatflowers/fplcoach/pkg/tool"
	types "github.com/fatflowers/fplcoach/pkg/types"
)

// Service owns the subscription row of each user and its change log.
type Service struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

func NewService(db *gorm.DB, log *zap.SugaredLogger) *Service {
	return &Service{db: db, log: log}
}

// Change is a subscription mutation waiting to be logged after commit.
type Change struct {
	Before *models.Subscription
	After  *models.Subscription
	Reason types.SubscriptionChangeReason
	Extra  map[string]any
}

// Get returns the subscription of a user.
func (s *Service) Get(ctx context.Context, userID string) (*models.Subscription, error) {
	return s.get(ctx, s.db, userID, false)
}

// GetForUpdate loads the subscription inside tx and locks the row.
func (s *Service) GetForUpdate(ctx context.Context, tx *gorm.DB, userID string) (*models.Subscription, error) {
	return s.get(ctx, tx, userID, true)
}

func (s *Service) get(ctx context.Context, db *gorm.DB, userID string, lock bool) (*models.Subscription, error) {
	q := db.WithContext(ctx).Where("user_id = ?", userID)
	if lock {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var sub models.Subscription
	if err := q.First(&sub).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("subscription")
		}
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}
	return &sub, nil
}

// GetByStripeSubscriptionID finds the row a provider subscription is bound to.
func (s *Service) GetByStripeSubscriptionID(ctx context.Context, tx *gorm.DB, stripeSubscriptionID string) (*models.Subscription, error) {
	var sub models.Subscription
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("stripe_subscription_id = ?", stripeSubscriptionID).
		First(&sub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("subscription")
		}
		return nil, fmt.Errorf("failed to get subscription by stripe id: %w", err)
	}
	return &sub, nil
}

// NewFree returns the subscription every account starts with.
func NewFree(userID string) *models.Subscription {
	return &models.Subscription{
		UserID: userID,
		Plan:   types.PlanFree,
		Status: types.SubscriptionStatusActive,
	}
}

// Upsert replaces the subscription of m.UserID in tx, keeping the original id
// and creation time. The returned change is logged by Record after commit.
func (s *Service) Upsert(ctx context.Context, tx *gorm.DB, m *models.Subscription, reason types.SubscriptionChangeReason, extra map[string]any) (*Change, error) {
	var original models.Subscription
	if err := tx.WithContext(ctx).Where("user_id = ?", m.UserID).First(&original).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("failed to get original subscription: %w", err)
		}
	}

	if original.ID != "" {
		m.ID = original.ID
		m.CreatedAt = original.CreatedAt
	} else if m.ID == "" {
		m.ID = tool.GenerateUUIDV7()
	}

	before := func() *models.Subscription {
		if original.ID == "" {
			return nil
		}
		cp := original
		return &cp
	}()

	if err := tx.WithContext(ctx).Save(m).Error; err != nil {
		return nil, fmt.Errorf("failed to upsert subscription: %w", err)
	}

	after := *m
	return &Change{Before: before, After: &after, Reason: reason, Extra: extra}, nil
}

// Record writes the change log asynchronously; errors are logged but not returned.
func (s *Service) Record(ctx context.Context, changes ...*Change) {
	logs := make([]*models.SubscriptionLog, 0, len(changes))
	for _, c := range changes {
		if c == nil || c.After == nil {
			continue
		}
		extra := datatypes.JSONMap{}
		for k, v := range c.Extra {
			extra[k] = v
		}
		logs = append(logs, &models.SubscriptionLog{
			ID:     tool.GenerateUUIDV7(),
			UserID: c.After.UserID,
			Reason: c.Reason,
			Before: datatypes.NewJSONType(c.Before),
			After:  datatypes.NewJSONType(c.After),
			Extra:  extra,
		})
	}
	if len(logs) == 0 {
		return
	}
	go func() {
		if err := s.db.Create(logs).Error; err != nil {
			logctx.FromCtx(ctx, s.log).Errorf("failed to save subscription log: %v", err)
		}
	}()
}
