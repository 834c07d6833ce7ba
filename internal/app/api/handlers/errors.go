package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fatflowers/fplcoach/pkg/apperr"
	"github.com/fatflowers/fplcoach/pkg/logctx"
	"github.com/fatflowers/fplcoach/pkg/response"
)

// errorResponse maps a service error onto an envelope code and a message a
// user can act on. Internal details stay in the logs.
func errorResponse(err error) *response.APIResponse[any] {
	var quotaErr *apperr.QuotaExceededError
	switch {
	case errors.Is(err, apperr.ErrQuotaExceeded):
		resp := response.ErrorMsg(response.APIResponseCodeQuotaExceeded,
			"You have used all of your messages for this period. Upgrade your plan or earn bonus messages from rewards to keep chatting.")
		if errors.As(err, &quotaErr) {
			resp.Data = map[string]int{"used": quotaErr.Used, "limit": quotaErr.Limit}
		}
		return resp
	case errors.Is(err, apperr.ErrExternalServiceTimeout):
		return response.ErrorMsg(response.APIResponseCodeTimeout,
			"The assistant took too long to answer. Try a narrower question, for example one player or one gameweek.")
	case errors.Is(err, apperr.ErrExternalService):
		return response.ErrorMsg(response.APIResponseCodeUpstream,
			"We could not reach an upstream service and your message was not counted. Check your connection, wait a minute and send it again. If it keeps happening, contact support.")
	case errors.Is(err, apperr.ErrDuplicateClaim),
		errors.Is(err, apperr.ErrAlreadyDecided),
		errors.Is(err, apperr.ErrEmailTaken),
		errors.Is(err, apperr.ErrReferralLimitReached),
		errors.Is(err, apperr.ErrLifetimeCapExceeded):
		return response.ErrorMsg(response.APIResponseCodeConflict, err.Error())
	case errors.Is(err, apperr.ErrUnverifiedEmail):
		return response.ErrorMsg(response.APIResponseCodeForbidden, "Please verify your email address first.")
	case errors.Is(err, apperr.ErrPlanIneligible), errors.Is(err, apperr.ErrAuthorizationDenied):
		return response.ErrorMsg(response.APIResponseCodeForbidden, err.Error())
	case errors.Is(err, apperr.ErrValidation), errors.Is(err, apperr.ErrMissingProof):
		return response.ErrorMsg(response.APIResponseCodeBadRequest, err.Error())
	case errors.Is(err, apperr.ErrNotFound):
		return response.ErrorMsg(response.APIResponseCodeNotFound, err.Error())
	case errors.Is(err, apperr.ErrAuthenticationRequired):
		return response.ErrorMsg(response.APIResponseCodeUnauthorized, err.Error())
	default:
		return response.ErrorMsg(response.APIResponseCodeError, "Something went wrong on our side. Refresh the page and try again in a minute. If it keeps happening, contact support.")
	}
}

func writeError(c *gin.Context, log *zap.SugaredLogger, event string, err error) {
	resp := errorResponse(err)
	if resp.Code >= response.APIResponseCodeError {
		logctx.FromGin(c, log).Errorw(event, "error", err.Error())
	} else {
		logctx.FromGin(c, log).Infow(event, "error", err.Error(), "code", resp.Code)
	}
	c.JSON(http.StatusOK, resp)
}

// badRequest answers a body that failed to decode or failed its binding tags.
func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusOK, response.ErrorMsg(response.APIResponseCodeBadRequest, apperr.FromValidator(err).Error()))
}
