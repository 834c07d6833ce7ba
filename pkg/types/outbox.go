package types

type OutboxKind string

const (
	OutboxKindVerifyEmail    OutboxKind = "verify_email"
	OutboxKindClaimSubmitted OutboxKind = "claim_submitted"
	OutboxKindClaimDecided   OutboxKind = "claim_decided"
)

type OutboxStatus string

const (
	OutboxStatusPending OutboxStatus = "pending"
	OutboxStatusSent    OutboxStatus = "sent"
	OutboxStatusFailed  OutboxStatus = "failed"
)
