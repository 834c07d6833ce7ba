package billing

import (
	"context"
	"errors"
	"fmt"

	"github.com/samber/lo"
	"gorm.io/gorm"

	"github.com/fatflowers/fplcoach/internal/app/service/subscription"
	"github.com/fatflowers/fplcoach/internal/models"
	"github.com/fatflowers/fplcoach/internal/platform/stripe_billing"
	"github.com/fatflowers/fplcoach/pkg/apperr"
	"github.com/fatflowers/fplcoach/pkg/logctx"
	"github.com/fatflowers/fplcoach/pkg/types"
)

type GrantVIPRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

type CheckoutRequest struct {
	Plan types.Plan `json:"plan" binding:"required,oneof=Premium Elite"`
}

type CheckoutResponse struct {
	SessionID string `json:"session_id"`
	URL       string `json:"url"`
}

// GrantVIP moves a user to the unlimited VIP plan and resets the current
// month's usage to the VIP ceiling.
func (s *Service) GrantVIP(ctx context.Context, userID, operatorID string) (*models.Subscription, error) {
	if err := apperr.Var("user_id", userID, "required"); err != nil {
		return nil, err
	}
	var change *subscription.Change
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.subs.GetForUpdate(ctx, tx, userID)
		if err != nil {
			return err
		}
		m := *current
		m.Plan = types.PlanVIP
		m.Status = types.SubscriptionStatusActive
		m.CurrentPeriodStart = nil
		m.CurrentPeriodEnd = nil
		m.CancelAtPeriodEnd = false
		change, err = s.subs.Upsert(ctx, tx, &m, types.SubscriptionChangeReasonVIPGrant, map[string]any{"operator_id": operatorID})
		if err != nil {
			return err
		}
		_, err = s.quota.ResetUsage(ctx, tx, userID, types.PlanVIP.MessageLimit())
		return err
	})
	if err != nil {
		return nil, err
	}
	s.subs.Record(ctx, change)
	logctx.FromCtx(ctx, s.log).Infow("vip granted", "user_id", userID, "operator_id", operatorID)
	return change.After, nil
}

// CreateCheckoutSession starts a provider checkout for a paid plan.
func (s *Service) CreateCheckoutSession(ctx context.Context, userID string, plan types.Plan) (*CheckoutResponse, error) {
	if err := apperr.Var("plan", plan, "required,oneof=Premium Elite"); err != nil {
		return nil, err
	}
	price := s.cfg.GetPriceByPlan(types.PaymentProviderStripe, plan)
	if price == nil {
		return nil, apperr.Validation("plan %q cannot be purchased", plan)
	}

	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("user")
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	sub, err := s.subs.Get(ctx, userID)
	if err != nil && !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}
	if sub != nil && sub.Plan == plan && sub.Status == types.SubscriptionStatusActive {
		return nil, apperr.Validation("already subscribed to %s", plan)
	}

	in := stripe_billing.CheckoutInput{
		UserID:     userID,
		Email:      user.Email,
		PriceID:    price.ProviderPriceID,
		SuccessURL: s.cfg.Stripe.SuccessURL,
		CancelURL:  s.cfg.Stripe.CancelURL,
	}
	if sub != nil {
		in.CustomerID = lo.FromPtr(sub.StripeCustomerID)
	}
	sess, err := s.provider.CreateCheckoutSession(ctx, in)
	if err != nil {
		return nil, err
	}
	return &CheckoutResponse{SessionID: sess.ID, URL: sess.URL}, nil
}
