package models

import (
	"time"

	"github.com/fatflowers/fplcoach/pkg/types"
)

// User is an account. Email is stored lower-cased and trimmed.
type User struct {
	ID           string         `gorm:"column:id;type:uuid;primary_key" json:"id"`
	Email        string         `gorm:"column:email;type:varchar(255);not null;uniqueIndex" json:"email"`
	Name         string         `gorm:"column:name;type:varchar(128)" json:"name"`
	Role         types.UserRole `gorm:"column:role;type:varchar(32);not null" json:"role"`
	PasswordHash string         `gorm:"column:password_hash;type:varchar(255);not null" json:"-"`
	// EmailVerificationToken is cleared once the address is verified.
	EmailVerificationToken     *string    `gorm:"column:email_verification_token;type:varchar(64);uniqueIndex" json:"-"`
	EmailVerificationExpiresAt *time.Time `gorm:"column:email_verification_expires_at" json:"-"`
	EmailVerifiedAt            *time.Time `gorm:"column:email_verified_at" json:"email_verified_at"`
	ReferralCode               string     `gorm:"column:referral_code;type:varchar(16);not null;uniqueIndex" json:"referral_code"`
	// ReferredBy is the referral code entered at signup, if any.
	ReferredBy *string   `gorm:"column:referred_by;type:varchar(16)" json:"referred_by,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (User) TableName() string {
	return "user_account"
}

func (u *User) EmailVerified() bool {
	return u != nil && u.EmailVerifiedAt != nil
}

func (u *User) IsAdmin() bool {
	return u != nil && u.Role == types.UserRoleAdmin
}
