package models

import (
	"time"

	"github.com/fatflowers/fplcoach/pkg/types"
)

// Subscription is the single authoritative plan record of a user; the unique
// index on user_id enforces one row per user.
type Subscription struct {
	ID     string                   `gorm:"column:id;type:uuid;primary_key" json:"id"`
	UserID string                   `gorm:"column:user_id;type:uuid;not null;uniqueIndex" json:"user_id"`
	Plan   types.Plan               `gorm:"column:plan;type:varchar(32);not null" json:"plan"`
	Status types.SubscriptionStatus `gorm:"column:status;type:varchar(64);not null" json:"status"`
	// CurrentPeriodStart and CurrentPeriodEnd are nil until a window is tracked.
	CurrentPeriodStart *time.Time `gorm:"column:current_period_start;default:null" json:"current_period_start"`
	CurrentPeriodEnd   *time.Time `gorm:"column:current_period_end;default:null" json:"current_period_end"`
	CancelAtPeriodEnd  bool       `gorm:"column:cancel_at_period_end;not null;default:false" json:"cancel_at_period_end"`
	// Stripe identifiers, set once the user went through checkout.
	StripeCustomerID     *string   `gorm:"column:stripe_customer_id;type:varchar(128)" json:"stripe_customer_id"`
	StripeSubscriptionID *string   `gorm:"column:stripe_subscription_id;type:varchar(128);uniqueIndex" json:"stripe_subscription_id"`
	StripePriceID        *string   `gorm:"column:stripe_price_id;type:varchar(128)" json:"stripe_price_id"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

func (Subscription) TableName() string {
	return "subscription"
}

// PeriodExpired reports whether a tracked window ended strictly before now.
func (s *Subscription) PeriodExpired(now time.Time) bool {
	return s != nil && s.CurrentPeriodEnd != nil && s.CurrentPeriodEnd.Before(now)
}

// Info is the user-facing view of the subscription.
func (s *Subscription) Info() *types.UserSubscriptionInfo {
	if s == nil {
		return &types.UserSubscriptionInfo{Plan: types.PlanFree, Status: types.SubscriptionStatusActive}
	}
	return &types.UserSubscriptionInfo{
		Plan:              s.Plan,
		Status:            s.Status,
		CurrentPeriodEnd:  s.CurrentPeriodEnd,
		CancelAtPeriodEnd: s.CancelAtPeriodEnd,
	}
}
