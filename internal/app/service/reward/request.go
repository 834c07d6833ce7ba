package reward

import (
	"strings"

	"github.com/fatflowers/fplcoach/internal/models"
	"github.com/fatflowers/fplcoach/pkg/apperr"
	"github.com/fatflowers/fplcoach/pkg/types"
)

// ClaimMetadataInput is the flat metadata object accepted from clients. It is
// narrowed to the variant matching the action type.
type ClaimMetadataInput struct {
	Handle        string           `json:"handle,omitempty" validate:"max=100"`
	ReviewType    types.ReviewType `json:"review_type,omitempty" validate:"omitempty,oneof=written xpost"`
	Text          string           `json:"text,omitempty" validate:"max=2000"`
	Rating        int              `json:"rating,omitempty" validate:"omitempty,min=1,max=5"`
	XConsent      bool             `json:"x_consent,omitempty"`
	ReferredEmail string           `json:"referred_email,omitempty" validate:"omitempty,email"`
}

type SubmitClaimRequest struct {
	ActionType types.ActionType    `json:"action_type" validate:"required,oneof=twitter reddit facebook review referral"`
	ProofURL   string              `json:"proof_url,omitempty" validate:"omitempty,http_url"`
	Metadata   *ClaimMetadataInput `json:"metadata,omitempty"`
}

type DecideClaimRequest struct {
	ClaimID           string              `json:"claim_id" validate:"required"`
	Action            types.ClaimDecision `json:"action" validate:"required,oneof=approve reject"`
	DisplayOnHomepage bool                `json:"display_on_homepage"`
}

// validate trims free text and checks field shape. Ownership and limits are
// checked in the store.
func (r *SubmitClaimRequest) validate() error {
	r.ProofURL = strings.TrimSpace(r.ProofURL)
	if r.Metadata != nil {
		in := *r.Metadata
		in.Handle = strings.TrimSpace(in.Handle)
		in.Text = strings.TrimSpace(in.Text)
		in.ReferredEmail = strings.ToLower(strings.TrimSpace(in.ReferredEmail))
		r.Metadata = &in
	}
	return apperr.Struct(r)
}

// metadata builds the tagged variant for the action type and applies the
// rules that depend on it.
func (r *SubmitClaimRequest) metadata(userEmail string) (*models.ClaimMetadata, error) {
	in := r.Metadata
	if in == nil {
		in = &ClaimMetadataInput{}
	}
	switch {
	case r.ActionType.IsSocialShare():
		return &models.ClaimMetadata{Social: &models.SocialMetadata{Handle: in.Handle}}, nil
	case r.ActionType == types.ActionTypeReview:
		reviewType := in.ReviewType
		if reviewType == "" {
			reviewType = types.ReviewTypeWritten
		}
		if in.Rating == 0 {
			return nil, apperr.Validation("rating is required for reviews")
		}
		if reviewType == types.ReviewTypeWritten && in.Text == "" {
			return nil, apperr.Validation("review text is required")
		}
		return &models.ClaimMetadata{Review: &models.ReviewMetadata{
			Type:     reviewType,
			Text:     in.Text,
			Rating:   in.Rating,
			XConsent: reviewType == types.ReviewTypeXPost && in.XConsent,
		}}, nil
	case r.ActionType == types.ActionTypeReferral:
		if in.ReferredEmail == "" {
			return nil, apperr.Validation("referred_email is required")
		}
		if in.ReferredEmail == userEmail {
			return nil, apperr.Validation("you cannot refer yourself")
		}
		return &models.ClaimMetadata{Referral: &models.ReferralMetadata{ReferredEmail: in.ReferredEmail}}, nil
	}
	return nil, apperr.Validation("unknown action_type %q", r.ActionType)
}

// requiresProof reports whether a proof link is mandatory.
func requiresProof(actionType types.ActionType, meta *models.ClaimMetadata) bool {
	if actionType.IsSocialShare() {
		return true
	}
	return meta.Review != nil && meta.Review.Type == types.ReviewTypeXPost
}

// RewardFor returns the message credit promised at submission.
func RewardFor(actionType types.ActionType, meta *models.ClaimMetadata) int {
	switch {
	case actionType.IsSocialShare():
		return types.SocialShareReward
	case actionType == types.ActionTypeReferral:
		return types.ReferralReward
	case actionType == types.ActionTypeReview:
		if meta != nil && meta.Review != nil && meta.Review.Type == types.ReviewTypeXPost && meta.Review.XConsent {
			return types.XPostReviewReward
		}
		return types.WrittenReviewReward
	}
	return 0
}
