package models

import "time"

// UsageTracking meters messages for one user in one calendar (month, year).
// MessagesUsed never exceeds MessagesLimit when a send is accepted.
type UsageTracking struct {
	ID            string    `gorm:"column:id;type:uuid;primary_key" json:"id"`
	UserID        string    `gorm:"column:user_id;type:uuid;not null;uniqueIndex:idx_usage_user_month_year,priority:1" json:"user_id"`
	Month         int       `gorm:"column:month;not null;uniqueIndex:idx_usage_user_month_year,priority:2" json:"month"`
	Year          int       `gorm:"column:year;not null;uniqueIndex:idx_usage_user_month_year,priority:3" json:"year"`
	MessagesUsed  int       `gorm:"column:messages_used;not null;default:0" json:"messages_used"`
	MessagesLimit int       `gorm:"column:messages_limit;not null" json:"messages_limit"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (UsageTracking) TableName() string {
	return "usage_tracking"
}

func (u *UsageTracking) Remaining() int {
	if u == nil || u.MessagesUsed >= u.MessagesLimit {
		return 0
	}
	return u.MessagesLimit - u.MessagesUsed
}
