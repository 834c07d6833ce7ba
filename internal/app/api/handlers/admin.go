package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/fatflowers/fplcoach/internal/app/service/billing"
	"github.com/fatflowers/fplcoach/internal/app/service/reward"
	"github.com/fatflowers/fplcoach/internal/app/service/statistics"
	"github.com/fatflowers/fplcoach/pkg/logctx"
	"github.com/fatflowers/fplcoach/pkg/response"
)

// StatisticsService is the subset of statistics.Service used by the HTTP layer.
type StatisticsService interface {
	GetStatistic(ctx context.Context, request *statistics.StatisticRequest) (*statistics.StatisticResponse, error)
}

// @Summary      Pending claims (Admin)
// @Description  Claims awaiting a decision, oldest first.
// @Tags         Admin
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  handlers.RespClaims
// @Router       /api/v1/admin/claims/pending [get]
func ApiListPendingClaims(svc RewardService, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		rows, err := svc.ListPending(c.Request.Context())
		if err != nil {
			writeError(c, log, "list_pending_claims_failed", err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(rows))
	}
}

// @Summary      List claims (Admin)
// @Description  Retrieves a paginated and filterable list of reward claims.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body reward.ListClaimsRequest true "List request with filters, pagination, and sorting"
// @Success      200  {object}  handlers.RespListClaims
// @Router       /api/v1/admin/claims/list [post]
func ApiListClaims(svc RewardService, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req reward.ListClaimsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		res, err := svc.ListClaims(c.Request.Context(), &req)
		if err != nil {
			writeError(c, log, "list_claims_failed", err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// @Summary      Decide a claim (Admin)
// @Description  Approves or rejects a pending claim. Approval credits the bonus once.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body reward.DecideClaimRequest true "Decision"
// @Success      200  {object}  handlers.RespClaim
// @Router       /api/v1/admin/claims/decide [post]
func ApiDecideClaim(svc RewardService, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req reward.DecideClaimRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		claim, err := svc.DecideClaim(c.Request.Context(), logctx.UserID(c.Request.Context()), req)
		if err != nil {
			writeError(c, log, "decide_claim_failed", err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(claim))
	}
}

// @Summary      Grant VIP (Admin)
// @Description  Moves a user to the VIP plan with unlimited messages.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body billing.GrantVIPRequest true "Target user"
// @Success      200  {object}  handlers.RespSubscription
// @Router       /api/v1/admin/grant_vip [post]
func ApiGrantVIP(svc BillingService, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req billing.GrantVIPRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		sub, err := svc.GrantVIP(c.Request.Context(), req.UserID, logctx.UserID(c.Request.Context()))
		if err != nil {
			writeError(c, log, "grant_vip_failed", err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(sub))
	}
}

// @Summary      Statistics (Admin)
// @Description  Plan, claim and usage counters. Omit items to compute all of them.
// @Tags         Admin
// @Produce      json
// @Security     BearerAuth
// @Param        items query string false "Comma separated statistic ids, repeatable"
// @Param        days  query int    false "Window for daily series"
// @Success      200  {object}  handlers.RespStatistic
// @Router       /api/v1/admin/statistics [get]
func ApiGetStatistic(svc StatisticsService, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		req := &statistics.StatisticRequest{}
		if v := c.Query("days"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				c.JSON(http.StatusOK, response.ErrorMsg(response.APIResponseCodeBadRequest, "invalid days"))
				return
			}
			req.Days = n
		}
		ids := lo.FlatMap(c.QueryArray("items"), func(v string, _ int) []string { return splitCSV(v) })
		req.DataItems = lo.Map(lo.Uniq(ids), func(id string, _ int) *statistics.StatisticDataItem {
			return &statistics.StatisticDataItem{ID: statistics.StatisticType(id)}
		})

		res, err := svc.GetStatistic(c.Request.Context(), req)
		if err != nil {
			writeError(c, log, "get_statistic_failed", err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// RegisterAdminRoutes mounts the admin endpoints, expected at "/api/v1/admin".
func RegisterAdminRoutes(r gin.IRouter, rewards RewardService, bill BillingService, stats StatisticsService, log *zap.SugaredLogger) {
	r.GET("/claims/pending", ApiListPendingClaims(rewards, log))
	r.POST("/claims/list", ApiListClaims(rewards, log))
	r.POST("/claims/decide", ApiDecideClaim(rewards, log))
	r.POST("/grant_vip", ApiGrantVIP(bill, log))
	r.GET("/statistics", ApiGetStatistic(stats, log))
}

func splitCSV(v string) []string {
	return lo.Compact(lo.Map(strings.Split(v, ","), func(s string, _ int) string { return strings.TrimSpace(s) }))
}
