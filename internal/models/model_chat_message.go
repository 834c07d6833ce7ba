package models

import (
	"time"

	"github.com/fatflowers/fplcoach/pkg/types"
)

// ChatMessage is one entry of an append-only conversation thread.
type ChatMessage struct {
	ID             string         `gorm:"column:id;type:uuid;primary_key" json:"id"`
	UserID         string         `gorm:"column:user_id;type:uuid;not null;index" json:"user_id"`
	ConversationID string         `gorm:"column:conversation_id;type:varchar(64);not null;index:idx_chat_conversation_created,priority:1" json:"conversation_id"`
	Role           types.ChatRole `gorm:"column:role;type:varchar(16);not null" json:"role"`
	Content        string         `gorm:"column:content;type:text;not null" json:"content"`
	CreatedAt      time.Time      `gorm:"index:idx_chat_conversation_created,priority:2" json:"created_at"`
}

func (ChatMessage) TableName() string {
	return "chat_message"
}
