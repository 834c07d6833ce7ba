package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fatflowers/fplcoach/internal/app/service/reward"
	"github.com/fatflowers/fplcoach/internal/models"
	"github.com/fatflowers/fplcoach/pkg/logctx"
	"github.com/fatflowers/fplcoach/pkg/response"
)

// RewardService is the subset of reward.Service used by the HTTP layer.
type RewardService interface {
	SubmitClaim(ctx context.Context, userID string, req reward.SubmitClaimRequest) (*models.SocialAction, error)
	DecideClaim(ctx context.Context, adminID string, req reward.DecideClaimRequest) (*models.SocialAction, error)
	ListPending(ctx context.Context) ([]*models.SocialAction, error)
	ListClaims(ctx context.Context, req *reward.ListClaimsRequest) (*reward.ListClaimsResponse, error)
	UserSummary(ctx context.Context, userID string) (*reward.Summary, error)
	HomepageReviews(ctx context.Context, limit int) ([]*reward.HomepageReview, error)
}

// @Summary      Submit a reward claim
// @Description  Records a pending claim for a social action. Bonus messages are credited after admin approval.
// @Tags         Rewards
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body reward.SubmitClaimRequest true "Claim"
// @Success      200  {object}  handlers.RespClaim
// @Router       /api/v1/rewards/claims [post]
func ApiSubmitClaim(svc RewardService, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req reward.SubmitClaimRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		claim, err := svc.SubmitClaim(c.Request.Context(), logctx.UserID(c.Request.Context()), req)
		if err != nil {
			writeError(c, log, "submit_claim_failed", err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(claim))
	}
}

// @Summary      Reward summary
// @Description  Lists the caller's claims with verified and pending totals and the remaining lifetime cap.
// @Tags         Rewards
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  handlers.RespRewardSummary
// @Router       /api/v1/rewards/summary [get]
func ApiRewardSummary(svc RewardService, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := svc.UserSummary(c.Request.Context(), logctx.UserID(c.Request.Context()))
		if err != nil {
			writeError(c, log, "reward_summary_failed", err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// @Summary      Homepage reviews
// @Description  Approved written reviews marked for display.
// @Tags         Rewards
// @Produce      json
// @Param        limit query int false "Maximum number of reviews"
// @Success      200  {object}  handlers.RespReviews
// @Router       /api/v1/rewards/reviews [get]
func ApiHomepageReviews(svc RewardService, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := 0
		if v := c.Query("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				c.JSON(http.StatusOK, response.ErrorMsg(response.APIResponseCodeBadRequest, "invalid limit"))
				return
			}
			limit = n
		}
		res, err := svc.HomepageReviews(c.Request.Context(), limit)
		if err != nil {
			writeError(c, log, "homepage_reviews_failed", err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

func RegisterRewardRoutes(r gin.IRouter, svc RewardService, log *zap.SugaredLogger) {
	r.POST("/rewards/claims", ApiSubmitClaim(svc, log))
	r.GET("/rewards/summary", ApiRewardSummary(svc, log))
}

func RegisterPublicRewardRoutes(r gin.IRouter, svc RewardService, log *zap.SugaredLogger) {
	r.GET("/rewards/reviews", ApiHomepageReviews(svc, log))
}
