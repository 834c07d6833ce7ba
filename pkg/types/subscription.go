package types

import "time"

type SubscriptionStatus string

const (
	SubscriptionStatusActive   SubscriptionStatus = "active"
	SubscriptionStatusTrialing SubscriptionStatus = "trialing"
	SubscriptionStatusPastDue  SubscriptionStatus = "past_due"
	SubscriptionStatusCanceled SubscriptionStatus = "canceled"
	SubscriptionStatusInactive SubscriptionStatus = "inactive"
)

type SubscriptionChangeReason string

const (
	SubscriptionChangeReasonSignup              SubscriptionChangeReason = "signup"
	SubscriptionChangeReasonCheckoutCompleted   SubscriptionChangeReason = "checkout_completed"
	SubscriptionChangeReasonSubscriptionUpdated SubscriptionChangeReason = "subscription_updated"
	SubscriptionChangeReasonSubscriptionDeleted SubscriptionChangeReason = "subscription_deleted"
	SubscriptionChangeReasonVIPGrant            SubscriptionChangeReason = "vip_grant"
	SubscriptionChangeReasonPeriodRollover      SubscriptionChangeReason = "period_rollover"
	SubscriptionChangeReasonRewardWindow        SubscriptionChangeReason = "reward_window"
)

type UserSubscriptionInfo struct {
	Plan              Plan               `json:"plan"`
	Status            SubscriptionStatus `json:"status"`
	CurrentPeriodEnd  *time.Time         `json:"current_period_end"`
	CancelAtPeriodEnd bool               `json:"cancel_at_period_end"`
}
