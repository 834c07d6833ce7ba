package types

import "strings"

type Plan string

const (
	PlanFree    Plan = "Free"
	PlanPremium Plan = "Premium"
	PlanElite   Plan = "Elite"
	PlanVIP     Plan = "VIP"
	PlanAdmin   Plan = "Admin"
)

const (
	// FreeMessageLimit is the baseline allowance of a Free account per period.
	FreeMessageLimit = 5
	// UnlimitedMessages is the ceiling used for unlimited plans so that every plan
	// goes through the same used < limit comparison.
	UnlimitedMessages = 999999
)

var planMessageLimits = map[Plan]int{
	PlanFree:    FreeMessageLimit,
	PlanPremium: 100,
	PlanElite:   500,
	PlanVIP:     UnlimitedMessages,
	PlanAdmin:   UnlimitedMessages,
}

// MessageLimit returns the per-period ceiling of the plan. Unknown plans fall back to Free.
func (p Plan) MessageLimit() int {
	if limit, ok := planMessageLimits[p]; ok {
		return limit
	}
	return FreeMessageLimit
}

func (p Plan) IsFree() bool {
	return p == PlanFree || p == ""
}

func (p Plan) Unlimited() bool {
	return p.MessageLimit() >= UnlimitedMessages
}

func (p Plan) Valid() bool {
	_, ok := planMessageLimits[p]
	return ok
}

// ParsePlan accepts plan names case-insensitively.
func ParsePlan(s string) (Plan, bool) {
	for plan := range planMessageLimits {
		if strings.EqualFold(string(plan), strings.TrimSpace(s)) {
			return plan, true
		}
	}
	return "", false
}
