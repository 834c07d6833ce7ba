package handlers

import (
	"github.com/fatflowers/fplcoach/internal/app/service/account"
	"github.com/fatflowers/fplcoach/internal/app/service/billing"
	"github.com/fatflowers/fplcoach/internal/app/service/chat"
	"github.com/fatflowers/fplcoach/internal/app/service/reward"
	"github.com/fatflowers/fplcoach/internal/app/service/statistics"
	"github.com/fatflowers/fplcoach/internal/models"
	"github.com/fatflowers/fplcoach/pkg/response"
)

// RespOK is a generic OK envelope for endpoints returning no specific data.
type RespOK struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    interface{}              `json:"data"`
}

type RespUser struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    models.User              `json:"data"`
}

type RespLogin struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    account.LoginResponse    `json:"data"`
}

type RespOverview struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    account.Overview         `json:"data"`
}

type RespChat struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    chat.SendResponse        `json:"data"`
}

type RespChatHistory struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    []models.ChatMessage     `json:"data"`
}

type RespClaim struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    models.SocialAction      `json:"data"`
}

type RespClaims struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    []models.SocialAction    `json:"data"`
}

type RespListClaims struct {
	Code    response.APIResponseCode  `json:"code"`
	Message string                    `json:"message"`
	Data    reward.ListClaimsResponse `json:"data"`
}

type RespRewardSummary struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    reward.Summary           `json:"data"`
}

type RespReviews struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    []reward.HomepageReview  `json:"data"`
}

type RespCheckout struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    billing.CheckoutResponse `json:"data"`
}

type RespWebhook struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    billing.Outcome          `json:"data"`
}

type RespSubscription struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    models.Subscription      `json:"data"`
}

// RespStatistic wraps StatisticResponse in the standard envelope.
type RespStatistic struct {
	Code    response.APIResponseCode     `json:"code"`
	Message string                       `json:"message"`
	Data    statistics.StatisticResponse `json:"data"`
}
