package models

import (
	"time"

	"github.com/fatflowers/fplcoach/pkg/types"

	"gorm.io/datatypes"
)

// OutboxEvent is a notification written in the same transaction as the state
// change it describes and delivered after commit.
type OutboxEvent struct {
	ID        string             `gorm:"column:id;type:uuid;primary_key" json:"id"`
	Kind      types.OutboxKind   `gorm:"column:kind;type:varchar(64);not null" json:"kind"`
	Recipient string             `gorm:"column:recipient;type:varchar(255);not null" json:"recipient"`
	Payload   datatypes.JSONMap  `gorm:"column:payload;type:jsonb;default:'{}'" json:"payload"`
	Status    types.OutboxStatus `gorm:"column:status;type:varchar(32);not null;index" json:"status"`
	Attempts  int                `gorm:"column:attempts;not null;default:0" json:"attempts"`
	LastError *string            `gorm:"column:last_error;type:text" json:"last_error"`
	SentAt    *time.Time         `gorm:"column:sent_at" json:"sent_at"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

func (OutboxEvent) TableName() string {
	return "outbox_event"
}
