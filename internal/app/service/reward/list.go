package reward

import (
	"context"
	"fmt"
	"time"

	"github.com/samber/lo"
	"gorm.io/gorm/clause"

	"github.com/fatflowers/fplcoach/internal/models"
	"github.com/fatflowers/fplcoach/pkg/apperr"
	"github.com/fatflowers/fplcoach/pkg/types"
)

const defaultHomepageReviews = 6

var listableFields = []string{"user_id", "action_type", "status", "display_on_homepage", "reward_messages", "created_at", "decided_at"}

type ListClaimsRequest struct {
	Filters   []*types.CommonFilter `json:"filters"`
	From      int                   `json:"from"`
	Size      int                   `json:"size"`
	SortBy    string                `json:"sort_by"`
	SortOrder string                `json:"sort_order"`
}

type ListClaimsResponse struct {
	Items []*models.SocialAction `json:"items"`
	Total int64                  `json:"total"`
}

// Summary is a user's view of their reward claims.
type Summary struct {
	Claims        []*models.SocialAction `json:"claims"`
	VerifiedTotal int                    `json:"verified_total"`
	PendingTotal  int                    `json:"pending_total"`
	RemainingCap  int                    `json:"remaining_cap"`
	ReferralsUsed int                    `json:"referrals_used"`
}

// HomepageReview is the public projection of an approved review.
type HomepageReview struct {
	Name      string    `json:"name"`
	Rating    int       `json:"rating"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// filtersAnd combines several CommonFilter into one expression.
type filtersAnd struct{ filters []*types.CommonFilter }

func (w filtersAnd) Build(builder clause.Builder) {
	if len(w.filters) == 0 {
		builder.WriteString("1=1")
		return
	}
	exprs := make([]clause.Expression, 0, len(w.filters))
	for _, f := range w.filters {
		exprs = append(exprs, f)
	}
	clause.And(exprs...).Build(builder)
}

// ListPending returns the review queue, oldest first.
func (s *Service) ListPending(ctx context.Context) ([]*models.SocialAction, error) {
	var rows []*models.SocialAction
	err := s.db.WithContext(ctx).Preload("User").
		Where("status = ?", types.ClaimStatusPending).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list pending claims: %w", err)
	}
	return rows, nil
}

// ListClaims is the paginated admin listing with filters.
func (s *Service) ListClaims(ctx context.Context, req *ListClaimsRequest) (*ListClaimsResponse, error) {
	if req == nil {
		req = &ListClaimsRequest{}
	}
	if req.Size <= 0 || req.Size > 100 {
		req.Size = 20
	}
	if req.From < 0 {
		req.From = 0
	}
	for _, f := range req.Filters {
		if f == nil || !lo.Contains(listableFields, f.Field) {
			return nil, apperr.Validation("cannot filter on %q", lo.FromPtr(f).Field)
		}
		if err := f.Validate(); err != nil {
			return nil, apperr.Validation("%s", err.Error())
		}
	}
	if req.SortBy != "" && !lo.Contains(listableFields, req.SortBy) {
		return nil, apperr.Validation("cannot sort on %q", req.SortBy)
	}

	tx := s.db.WithContext(ctx).Model(&models.SocialAction{})
	if len(req.Filters) > 0 {
		tx = tx.Where(clause.Where{Exprs: []clause.Expression{filtersAnd{filters: req.Filters}}})
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count claims: %w", err)
	}

	q := tx.Preload("User").Limit(req.Size)
	if req.From > 0 {
		q = q.Offset(req.From)
	}
	sortBy := lo.Ternary(req.SortBy == "", "created_at", req.SortBy)
	q = q.Order(clause.OrderBy{Columns: []clause.OrderByColumn{{Column: clause.Column{Name: sortBy}, Desc: req.SortOrder != "asc"}}})

	var rows []*models.SocialAction
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list claims: %w", err)
	}
	return &ListClaimsResponse{Items: rows, Total: total}, nil
}

func (s *Service) UserSummary(ctx context.Context, userID string) (*Summary, error) {
	var rows []*models.SocialAction
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list claims: %w", err)
	}
	sum := &Summary{Claims: rows}
	for _, r := range rows {
		switch r.Status {
		case types.ClaimStatusVerified:
			sum.VerifiedTotal += r.RewardMessages
		case types.ClaimStatusPending:
			sum.PendingTotal += r.RewardMessages
		}
		if r.ActionType == types.ActionTypeReferral {
			sum.ReferralsUsed++
		}
	}
	sum.RemainingCap = max(types.LifetimeRewardCap-sum.VerifiedTotal, 0)
	return sum, nil
}

// HomepageReviews returns approved reviews flagged for display, newest first.
func (s *Service) HomepageReviews(ctx context.Context, limit int) ([]*HomepageReview, error) {
	if limit <= 0 {
		limit = defaultHomepageReviews
	}
	var rows []*models.SocialAction
	err := s.db.WithContext(ctx).Preload("User").
		Where("action_type = ? AND status = ? AND display_on_homepage = ?", types.ActionTypeReview, types.ClaimStatusVerified, true).
		Order("verified_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list homepage reviews: %w", err)
	}
	return lo.FilterMap(rows, func(r *models.SocialAction, _ int) (*HomepageReview, bool) {
		review := r.Review()
		if review == nil || review.Text == "" {
			return nil, false
		}
		name := "FPL manager"
		if r.User != nil && r.User.Name != "" {
			name = r.User.Name
		}
		return &HomepageReview{Name: name, Rating: review.Rating, Text: review.Text, CreatedAt: r.CreatedAt}, true
	}), nil
}
