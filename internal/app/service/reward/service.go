package reward

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fatflowers/fplcoach/internal/app/service/quota"
	"github.com/fatflowers/fplcoach/internal/app/service/subscription"
	"github.com/fatflowers/fplcoach/internal/models"
	"github.com/fatflowers/fplcoach/internal/platform/db"
	"github.com/fatflowers/fplcoach/pkg/apperr"
	"github.com/fatflowers/fplcoach/pkg/logctx"
	"github.com/fatflowers/fplcoach/pkg/metrics"
	"github.com/fatflowers/fplcoach/pkg/tool"
	"github.com/fatflowers/fplcoach/pkg/types"
)

// Publisher writes notification events inside a transaction and delivers
// them once it committed.
type Publisher interface {
	AdminAddress() string
	Enqueue(ctx context.Context, tx *gorm.DB, kind types.OutboxKind, recipient string, payload map[string]any) (*models.OutboxEvent, error)
	Dispatch(ctx context.Context, events ...*models.OutboxEvent)
}

// Service is the reward ledger: claim submission, admin decisions and the
// credit applied to the quota on approval.
type Service struct {
	db      *gorm.DB
	quota   *quota.Service
	subs    *subscription.Service
	events  Publisher
	metrics *metrics.Business
	log     *zap.SugaredLogger
	now     func() time.Time
}

func NewService(db *gorm.DB, q *quota.Service, subs *subscription.Service, events Publisher, m *metrics.Business, log *zap.SugaredLogger) *Service {
	return &Service{db: db, quota: q, subs: subs, events: events, metrics: m, log: log, now: time.Now}
}

func claimKey(userID string, actionType types.ActionType, slot int) string {
	if actionType == types.ActionTypeReferral {
		return fmt.Sprintf("%s:%s:%d", userID, actionType, slot)
	}
	return fmt.Sprintf("%s:%s", userID, actionType)
}

func (s *Service) lockUser(ctx context.Context, tx *gorm.DB, userID string) (*models.User, error) {
	var user models.User
	err := tx.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).First(&user, "id = ?", userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("user")
		}
		return nil, fmt.Errorf("failed to lock user: %w", err)
	}
	return &user, nil
}

func (s *Service) verifiedTotal(ctx context.Context, tx *gorm.DB, userID string) (int, error) {
	var total int
	err := tx.WithContext(ctx).Model(&models.SocialAction{}).
		Select("COALESCE(SUM(reward_messages), 0)").
		Where("user_id = ? AND status = ?", userID, types.ClaimStatusVerified).
		Scan(&total).Error
	if err != nil {
		return 0, fmt.Errorf("failed to sum verified rewards: %w", err)
	}
	return total, nil
}

// SubmitClaim records a pending claim. The per-type and referral-slot
// uniqueness is enforced by the claim_key index; the lifetime cap counts
// verified rewards under the user row lock.
func (s *Service) SubmitClaim(ctx context.Context, userID string, req SubmitClaimRequest) (*models.SocialAction, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("user")
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if !user.EmailVerified() {
		return nil, apperr.ErrUnverifiedEmail
	}
	sub, err := s.subs.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !sub.Plan.IsFree() {
		return nil, apperr.ErrPlanIneligible
	}
	if err := req.validate(); err != nil {
		return nil, err
	}
	meta, err := req.metadata(user.Email)
	if err != nil {
		return nil, err
	}
	if requiresProof(req.ActionType, meta) && req.ProofURL == "" {
		return nil, apperr.ErrMissingProof
	}
	reward := RewardFor(req.ActionType, meta)

	claim := &models.SocialAction{
		ID:             tool.GenerateUUIDV7(),
		UserID:         userID,
		ActionType:     req.ActionType,
		Status:         types.ClaimStatusPending,
		RewardMessages: reward,
		Metadata:       datatypes.NewJSONType(meta),
	}
	if req.ProofURL != "" {
		claim.ProofURL = lo.ToPtr(req.ProofURL)
	}

	var event *models.OutboxEvent
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.lockUser(ctx, tx, userID); err != nil {
			return err
		}

		var existing []*models.SocialAction
		if err := tx.WithContext(ctx).
			Where("user_id = ? AND action_type = ?", userID, req.ActionType).
			Find(&existing).Error; err != nil {
			return fmt.Errorf("failed to load existing claims: %w", err)
		}
		slot := 1
		if req.ActionType == types.ActionTypeReferral {
			if lo.ContainsBy(existing, func(a *models.SocialAction) bool {
				m := a.Metadata.Data()
				return m != nil && m.Referral != nil && m.Referral.ReferredEmail == meta.Referral.ReferredEmail
			}) {
				return apperr.ErrDuplicateClaim
			}
			if len(existing) >= types.MaxReferralClaims {
				return apperr.ErrReferralLimitReached
			}
			slot = len(existing) + 1
		} else if len(existing) > 0 {
			return apperr.ErrDuplicateClaim
		}

		total, err := s.verifiedTotal(ctx, tx, userID)
		if err != nil {
			return err
		}
		if total+reward > types.LifetimeRewardCap {
			return fmt.Errorf("%w: %d verified + %d requested > %d", apperr.ErrLifetimeCapExceeded, total, reward, types.LifetimeRewardCap)
		}

		claim.ClaimKey = claimKey(userID, req.ActionType, slot)
		if err := tx.WithContext(ctx).Create(claim).Error; err != nil {
			if db.IsUniqueViolation(err) {
				return apperr.ErrDuplicateClaim
			}
			return fmt.Errorf("failed to create claim: %w", err)
		}

		event, err = s.events.Enqueue(ctx, tx, types.OutboxKindClaimSubmitted, s.events.AdminAddress(), map[string]any{
			"claim_id":        claim.ID,
			"email":           user.Email,
			"action_type":     claim.ActionType,
			"reward_messages": claim.RewardMessages,
			"proof_url":       lo.FromPtr(claim.ProofURL),
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.events.Dispatch(ctx, event)
	s.metrics.ClaimSubmitted(string(claim.ActionType))
	logctx.FromCtx(ctx, s.log).Infow("claim submitted", "claim_id", claim.ID, "action_type", claim.ActionType, "reward", claim.RewardMessages)
	return claim, nil
}

// DecideClaim moves a pending claim to verified or rejected exactly once.
// Approval credits the reward to the current month and opens a 30-day window
// for a Free user who has none.
func (s *Service) DecideClaim(ctx context.Context, adminID string, req DecideClaimRequest) (*models.SocialAction, error) {
	if err := apperr.Struct(req); err != nil {
		return nil, err
	}

	var claim models.SocialAction
	var change *subscription.Change
	var event *models.OutboxEvent
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.WithContext(ctx).Preload("User").First(&claim, "id = ?", req.ClaimID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("claim")
			}
			return fmt.Errorf("failed to get claim: %w", err)
		}
		if claim.Status != types.ClaimStatusPending {
			return apperr.ErrAlreadyDecided
		}

		now := s.now()
		updates := map[string]any{
			"decided_by": adminID,
			"decided_at": now,
			"updated_at": now,
		}
		approve := req.Action == types.ClaimDecisionApprove
		if approve {
			if _, err := s.lockUser(ctx, tx, claim.UserID); err != nil {
				return err
			}
			total, err := s.verifiedTotal(ctx, tx, claim.UserID)
			if err != nil {
				return err
			}
			if total+claim.RewardMessages > types.LifetimeRewardCap {
				return fmt.Errorf("%w: %d verified + %d requested > %d", apperr.ErrLifetimeCapExceeded, total, claim.RewardMessages, types.LifetimeRewardCap)
			}
			updates["status"] = types.ClaimStatusVerified
			updates["verified_at"] = now
			updates["display_on_homepage"] = req.DisplayOnHomepage && claim.ActionType == types.ActionTypeReview
		} else {
			updates["status"] = types.ClaimStatusRejected
		}

		res := tx.WithContext(ctx).Model(&models.SocialAction{}).
			Where("id = ? AND status = ?", claim.ID, types.ClaimStatusPending).
			Updates(updates)
		if res.Error != nil {
			return fmt.Errorf("failed to decide claim: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return apperr.ErrAlreadyDecided
		}

		if approve {
			sub, err := s.subs.GetForUpdate(ctx, tx, claim.UserID)
			if err != nil {
				return err
			}
			if _, err := s.quota.CreditLimit(ctx, tx, claim.UserID, sub.Plan, claim.RewardMessages); err != nil {
				return err
			}
			if sub.Plan.IsFree() && sub.CurrentPeriodEnd == nil {
				start, end := now, now.AddDate(0, 0, types.RewardWindowDuration)
				sub.CurrentPeriodStart = &start
				sub.CurrentPeriodEnd = &end
				change, err = s.subs.Upsert(ctx, tx, sub, types.SubscriptionChangeReasonRewardWindow, map[string]any{"claim_id": claim.ID})
				if err != nil {
					return err
				}
			}
		}

		if err := tx.WithContext(ctx).Preload("User").First(&claim, "id = ?", claim.ID).Error; err != nil {
			return fmt.Errorf("failed to reload claim: %w", err)
		}
		recipient := ""
		if claim.User != nil {
			recipient = claim.User.Email
		}
		var err error
		event, err = s.events.Enqueue(ctx, tx, types.OutboxKindClaimDecided, recipient, map[string]any{
			"claim_id":        claim.ID,
			"status":          claim.Status,
			"action_type":     claim.ActionType,
			"reward_messages": claim.RewardMessages,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.subs.Record(ctx, change)
	s.events.Dispatch(ctx, event)
	s.metrics.ClaimDecided(string(claim.ActionType), string(req.Action))
	logctx.FromCtx(ctx, s.log).Infow("claim decided", "claim_id", claim.ID, "status", claim.Status, "admin_id", adminID)
	return &claim, nil
}
