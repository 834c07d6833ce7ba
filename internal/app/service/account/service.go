package account

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/fatflowers/fplcoach/internal/app/service/quota"
	"github.com/fatflowers/fplcoach/internal/app/service/reward"
	"github.com/fatflowers/fplcoach/internal/app/service/subscription"
	"github.com/fatflowers/fplcoach/internal/models"
	"github.com/fatflowers/fplcoach/internal/platform/db"
	"github.com/fatflowers/fplcoach/pkg/apperr"
	"github.com/fatflowers/fplcoach/pkg/config"
	"github.com/fatflowers/fplcoach/pkg/logctx"
	"github.com/fatflowers/fplcoach/pkg/tool"
	"github.com/fatflowers/fplcoach/pkg/types"
)

const referralCodeLength = 8

type Service struct {
	cfg    *config.Config
	db     *gorm.DB
	subs   *subscription.Service
	quota  *quota.Service
	events reward.Publisher
	tokens *TokenIssuer
	log    *zap.SugaredLogger
	now    func() time.Time
}

func NewService(cfg *config.Config, db *gorm.DB, subs *subscription.Service, q *quota.Service, events reward.Publisher, tokens *TokenIssuer, log *zap.SugaredLogger) *Service {
	return &Service{cfg: cfg, db: db, subs: subs, quota: q, events: events, tokens: tokens, log: log, now: time.Now}
}

type SignupRequest struct {
	Email        string `json:"email" validate:"required,email"`
	Password     string `json:"password" validate:"required,min=8,max=72"`
	Name         string `json:"name" validate:"max=100"`
	ReferralCode string `json:"referral_code,omitempty" validate:"max=32"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *models.User `json:"user"`
}

type Overview struct {
	User         *models.User                `json:"user"`
	Subscription *types.UserSubscriptionInfo `json:"subscription"`
	Usage        *quota.Allowance            `json:"usage"`
}

// NormalizeEmail lower-cases and trims an address and checks its syntax.
func NormalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if err := apperr.Var("email", email, "required,email"); err != nil {
		return "", err
	}
	return email, nil
}

// Signup creates the user with a Free subscription, the baseline usage row
// and a pending verification email.
func (s *Service) Signup(ctx context.Context, req SignupRequest) (*models.User, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Name = strings.TrimSpace(req.Name)
	req.ReferralCode = strings.ToUpper(strings.TrimSpace(req.ReferralCode))
	if err := apperr.Struct(req); err != nil {
		return nil, err
	}
	email := req.Email

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := s.now()
	token := tool.GenerateToken()
	expires := now.Add(s.cfg.Auth.VerificationTTL)
	role := lo.Ternary(lo.ContainsBy(s.cfg.Auth.AdminEmails, func(e string) bool { return strings.EqualFold(e, email) }), types.UserRoleAdmin, types.UserRoleUser)
	user := &models.User{
		ID:                         tool.GenerateUUIDV7(),
		Email:                      email,
		Name:                       req.Name,
		Role:                       role,
		PasswordHash:               string(hash),
		EmailVerificationToken:     &token,
		EmailVerificationExpiresAt: &expires,
		ReferralCode:               tool.ShortCode(referralCodeLength),
	}

	var change *subscription.Change
	var event *models.OutboxEvent
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var taken int64
		if err := tx.WithContext(ctx).Model(&models.User{}).Where("email = ?", email).Count(&taken).Error; err != nil {
			return fmt.Errorf("failed to check email: %w", err)
		}
		if taken > 0 {
			return apperr.ErrEmailTaken
		}
		if code := req.ReferralCode; code != "" {
			var referrer int64
			if err := tx.WithContext(ctx).Model(&models.User{}).Where("referral_code = ?", code).Count(&referrer).Error; err != nil {
				return fmt.Errorf("failed to check referral code: %w", err)
			}
			if referrer == 0 {
				return apperr.Validation("unknown referral code")
			}
			user.ReferredBy = &code
		}

		if err := tx.WithContext(ctx).Create(user).Error; err != nil {
			if db.IsUniqueViolation(err) {
				return apperr.ErrEmailTaken
			}
			return fmt.Errorf("failed to create user: %w", err)
		}

		sub := subscription.NewFree(user.ID)
		if user.IsAdmin() {
			sub.Plan = types.PlanAdmin
		}
		var err error
		if change, err = s.subs.Upsert(ctx, tx, sub, types.SubscriptionChangeReasonSignup, nil); err != nil {
			return err
		}
		if _, err = s.quota.GetOrCreateUsage(ctx, tx, user.ID, sub.Plan); err != nil {
			return err
		}
		event, err = s.events.Enqueue(ctx, tx, types.OutboxKindVerifyEmail, user.Email, map[string]any{
			"name":  lo.CoalesceOrEmpty(user.Name, user.Email),
			"token": token,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.subs.Record(ctx, change)
	s.events.Dispatch(ctx, event)
	logctx.FromCtx(ctx, s.log).Infow("user signed up", "user_id", user.ID, "role", user.Role)
	return user, nil
}

// VerifyEmail consumes a verification token. A used or expired token is a
// validation error.
func (s *Service) VerifyEmail(ctx context.Context, token string) (*models.User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, apperr.Validation("token is required")
	}
	var user models.User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.WithContext(ctx).First(&user, "email_verification_token = ?", token).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.Validation("verification link is invalid or already used")
			}
			return fmt.Errorf("failed to get user: %w", err)
		}
		now := s.now()
		if user.EmailVerificationExpiresAt != nil && now.After(*user.EmailVerificationExpiresAt) {
			return apperr.Validation("verification link has expired")
		}
		user.EmailVerifiedAt = &now
		user.EmailVerificationToken = nil
		user.EmailVerificationExpiresAt = nil
		return tx.WithContext(ctx).Model(&models.User{}).Where("id = ?", user.ID).Updates(map[string]any{
			"email_verified_at":             now,
			"email_verification_token":      nil,
			"email_verification_expires_at": nil,
			"updated_at":                    now,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	logctx.FromCtx(ctx, s.log).Infow("email verified", "user_id", user.ID)
	return &user, nil
}

var errBadCredentials = fmt.Errorf("%w: invalid email or password", apperr.ErrAuthenticationRequired)

func (s *Service) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	email, err := NormalizeEmail(req.Email)
	if err != nil {
		return nil, errBadCredentials
	}
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "email = ?", email).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errBadCredentials
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, errBadCredentials
	}
	token, expiresAt, err := s.tokens.Issue(user.ID, user.Role, s.now())
	if err != nil {
		return nil, err
	}
	return &LoginResponse{Token: token, ExpiresAt: expiresAt, User: &user}, nil
}

// Overview returns the account with its plan and the allowance after sweeping
// an expired Free window.
func (s *Service) Overview(ctx context.Context, userID string) (*Overview, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("user")
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	allowance, err := s.quota.CanSend(ctx, userID)
	if err != nil {
		return nil, err
	}
	sub, err := s.subs.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &Overview{User: &user, Subscription: sub.Info(), Usage: allowance}, nil
}
