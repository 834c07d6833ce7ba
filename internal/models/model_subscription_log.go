package models

import (
	"time"

	"github.com/fatflowers/fplcoach/pkg/types"

	"gorm.io/datatypes"
)

// SubscriptionLog records changes to user subscriptions.
// Use case: troubleshooting.
type SubscriptionLog struct {
	ID     string `gorm:"column:id;type:uuid;primary_key" json:"id"`
	UserID string `gorm:"column:user_id;type:uuid;index:idx_subscription_log_user_id,priority:1;not null"`

	// Reason is the change reason.
	Reason types.SubscriptionChangeReason    `gorm:"column:reason;type:varchar(64);not null"`
	Before datatypes.JSONType[*Subscription] `gorm:"column:before;type:jsonb;default:'null'"`
	After  datatypes.JSONType[*Subscription] `gorm:"column:after;type:jsonb;default:'null'"`

	// Extra stores trigger context such as the operator or billing event id.
	Extra     datatypes.JSONMap `gorm:"column:extra;type:jsonb;default:'{}'"`
	CreatedAt time.Time
}

func (SubscriptionLog) TableName() string {
	return "subscription_log"
}
