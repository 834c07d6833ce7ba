package models

import (
	"time"

	"github.com/fatflowers/fplcoach/pkg/types"

	"gorm.io/datatypes"
)

type SocialMetadata struct {
	Handle string `json:"handle,omitempty"`
}

type ReviewMetadata struct {
	Type     types.ReviewType `json:"type"`
	Text     string           `json:"text"`
	Rating   int              `json:"rating"`
	XConsent bool             `json:"x_consent"`
}

type ReferralMetadata struct {
	ReferredEmail string `json:"referred_email"`
}

// ClaimMetadata holds exactly one variant matching the claim's action type.
type ClaimMetadata struct {
	Social   *SocialMetadata   `json:"social,omitempty"`
	Review   *ReviewMetadata   `json:"review,omitempty"`
	Referral *ReferralMetadata `json:"referral,omitempty"`
}

// SocialAction is a reward claim. Status moves once from pending to verified
// or rejected.
type SocialAction struct {
	ID         string           `gorm:"column:id;type:uuid;primary_key" json:"id"`
	UserID     string           `gorm:"column:user_id;type:uuid;not null;index:idx_social_action_user_status,priority:1" json:"user_id"`
	User       *User            `gorm:"foreignKey:UserID" json:"user,omitempty"`
	ActionType types.ActionType `gorm:"column:action_type;type:varchar(32);not null" json:"action_type"`

	// ClaimKey is unique per user and type, or per user and referral slot.
	ClaimKey          string                             `gorm:"column:claim_key;type:varchar(128);not null;uniqueIndex" json:"-"`
	Status            types.ClaimStatus                  `gorm:"column:status;type:varchar(32);not null;index:idx_social_action_user_status,priority:2" json:"status"`
	RewardMessages    int                                `gorm:"column:reward_messages;not null" json:"reward_messages"`
	ProofURL          *string                            `gorm:"column:proof_url;type:text" json:"proof_url"`
	Metadata          datatypes.JSONType[*ClaimMetadata] `gorm:"column:metadata;type:jsonb;default:'null'" json:"metadata"`
	DisplayOnHomepage bool                               `gorm:"column:display_on_homepage;not null;default:false" json:"display_on_homepage"`
	DecidedBy         *string                            `gorm:"column:decided_by;type:uuid" json:"decided_by,omitempty"`
	VerifiedAt        *time.Time                         `gorm:"column:verified_at" json:"verified_at"`
	DecidedAt         *time.Time                         `gorm:"column:decided_at" json:"decided_at"`
	CreatedAt         time.Time                          `gorm:"index" json:"created_at"`
	UpdatedAt         time.Time                          `json:"updated_at"`
}

func (SocialAction) TableName() string {
	return "social_action"
}

func (a *SocialAction) Review() *ReviewMetadata {
	if a == nil || a.Metadata.Data() == nil {
		return nil
	}
	return a.Metadata.Data().Review
}
