package types

type ActionType string

const (
	ActionTypeTwitter  ActionType = "twitter"
	ActionTypeReddit   ActionType = "reddit"
	ActionTypeFacebook ActionType = "facebook"
	ActionTypeReview   ActionType = "review"
	ActionTypeReferral ActionType = "referral"
)

var ActionTypes = []ActionType{
	ActionTypeTwitter,
	ActionTypeReddit,
	ActionTypeFacebook,
	ActionTypeReview,
	ActionTypeReferral,
}

func (a ActionType) Valid() bool {
	for _, t := range ActionTypes {
		if t == a {
			return true
		}
	}
	return false
}

// IsSocialShare reports whether the action is a share on a social network.
func (a ActionType) IsSocialShare() bool {
	return a == ActionTypeTwitter || a == ActionTypeReddit || a == ActionTypeFacebook
}

type ClaimStatus string

const (
	ClaimStatusPending  ClaimStatus = "pending"
	ClaimStatusVerified ClaimStatus = "verified"
	ClaimStatusRejected ClaimStatus = "rejected"
)

type ClaimDecision string

const (
	ClaimDecisionApprove ClaimDecision = "approve"
	ClaimDecisionReject  ClaimDecision = "reject"
)

type ReviewType string

const (
	ReviewTypeWritten ReviewType = "written"
	ReviewTypeXPost   ReviewType = "xpost"
)

const (
	SocialShareReward    = 5
	ReferralReward       = 10
	WrittenReviewReward  = 5
	XPostReviewReward    = 10
	LifetimeRewardCap    = 50
	MaxReferralClaims    = 3
	RewardWindowDuration = 30 // days
)

type UserRole string

const (
	UserRoleUser  UserRole = "user"
	UserRoleAdmin UserRole = "admin"
)
