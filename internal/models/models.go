package models

// All lists every model in migration order.
func All() []any {
	return []any{
		&User{},
		&Subscription{},
		&UsageTracking{},
		&SocialAction{},
		&ChatMessage{},
		&SubscriptionLog{},
		&BillingEventLog{},
		&OutboxEvent{},
	}
}
