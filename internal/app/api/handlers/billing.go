package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fatflowers/fplcoach/internal/app/service/billing"
	"github.com/fatflowers/fplcoach/internal/models"
	"github.com/fatflowers/fplcoach/pkg/apperr"
	"github.com/fatflowers/fplcoach/pkg/logctx"
	"github.com/fatflowers/fplcoach/pkg/response"
	"github.com/fatflowers/fplcoach/pkg/types"
)

// Stripe payloads are small; anything larger is not a real event.
const maxWebhookBodyBytes = 65536

// BillingService is the subset of billing.Service used by the HTTP layer.
type BillingService interface {
	HandleWebhook(ctx context.Context, payload []byte, signature string) (*billing.Outcome, error)
	CreateCheckoutSession(ctx context.Context, userID string, plan types.Plan) (*billing.CheckoutResponse, error)
	GrantVIP(ctx context.Context, userID, operatorID string) (*models.Subscription, error)
}

// @Summary      Start checkout
// @Description  Creates a Stripe Checkout session for a paid plan and returns its redirect URL.
// @Tags         Billing
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body billing.CheckoutRequest true "Target plan"
// @Success      200  {object}  handlers.RespCheckout
// @Router       /api/v1/billing/checkout [post]
func ApiCreateCheckout(svc BillingService, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req billing.CheckoutRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		res, err := svc.CreateCheckoutSession(c.Request.Context(), logctx.UserID(c.Request.Context()), req.Plan)
		if err != nil {
			writeError(c, log, "checkout_failed", err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// @Summary      Stripe webhook
// @Description  Receives Stripe events. Responds 400 when the signature does not verify and 500 when processing fails so Stripe retries.
// @Tags         Webhook
// @Accept       json
// @Produce      json
// @Param        Stripe-Signature header string true "Stripe signature header"
// @Success      200  {object}  handlers.RespWebhook
// @Failure      400  {object}  handlers.RespOK
// @Failure      500  {object}  handlers.RespOK
// @Router       /api/v2/billing/webhook/stripe [post]
func ApiStripeWebhook(svc BillingService, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		lg := logctx.FromGin(c, log)
		payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBodyBytes))
		if err != nil {
			lg.Warnw("webhook_stripe_read_error", "error", err.Error())
			c.JSON(http.StatusBadRequest, response.ErrorMsg(response.APIResponseCodeBadRequest, "unreadable body"))
			return
		}

		out, err := svc.HandleWebhook(c.Request.Context(), payload, c.GetHeader("Stripe-Signature"))
		if err != nil {
			if errors.Is(err, apperr.ErrSignatureVerification) {
				lg.Warnw("webhook_stripe_rejected", "error", err.Error())
				c.JSON(http.StatusBadRequest, response.ErrorMsg(response.APIResponseCodeBadRequest, "signature verification failed"))
				return
			}
			lg.Errorw("webhook_stripe_handle_error", "error", err.Error())
			c.JSON(http.StatusInternalServerError, response.ErrorMsg(response.APIResponseCodeError, "event processing failed"))
			return
		}
		lg.Infow("webhook_stripe_handled", "event_id", out.EventID, "event_type", out.EventType, "handled", out.Handled)
		c.JSON(http.StatusOK, response.OKT(out))
	}
}

func RegisterBillingRoutes(r gin.IRouter, svc BillingService, log *zap.SugaredLogger) {
	r.POST("/billing/checkout", ApiCreateCheckout(svc, log))
}

// RegisterBillingWebhookRoutes mounts the provider callbacks, expected at "/api/v2/billing/webhook".
func RegisterBillingWebhookRoutes(r gin.IRouter, svc BillingService, log *zap.SugaredLogger) {
	r.POST("/stripe", ApiStripeWebhook(svc, log))
}
