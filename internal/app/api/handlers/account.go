package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fatflowers/fplcoach/internal/app/service/account"
	"github.com/fatflowers/fplcoach/internal/models"
	"github.com/fatflowers/fplcoach/pkg/logctx"
	"github.com/fatflowers/fplcoach/pkg/response"
)

// AccountService is the subset of account.Service used by the HTTP layer.
type AccountService interface {
	Signup(ctx context.Context, req account.SignupRequest) (*models.User, error)
	VerifyEmail(ctx context.Context, token string) (*models.User, error)
	Login(ctx context.Context, req account.LoginRequest) (*account.LoginResponse, error)
	Overview(ctx context.Context, userID string) (*account.Overview, error)
}

type VerifyEmailRequest struct {
	Token string `json:"token"`
}

// @Summary      Sign up
// @Description  Creates a Free account and sends a verification email.
// @Tags         Account
// @Accept       json
// @Produce      json
// @Param        request body account.SignupRequest true "Signup request"
// @Success      200  {object}  handlers.RespUser
// @Router       /api/v1/auth/signup [post]
func ApiSignup(svc AccountService, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req account.SignupRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		user, err := svc.Signup(c.Request.Context(), req)
		if err != nil {
			writeError(c, log, "signup_failed", err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(user))
	}
}

// @Summary      Verify email
// @Description  Confirms the email address with the token from the verification link.
// @Tags         Account
// @Accept       json
// @Produce      json
// @Param        request body handlers.VerifyEmailRequest true "Verification token"
// @Success      200  {object}  handlers.RespUser
// @Router       /api/v1/auth/verify_email [post]
func ApiVerifyEmail(svc AccountService, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req VerifyEmailRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		user, err := svc.VerifyEmail(c.Request.Context(), req.Token)
		if err != nil {
			writeError(c, log, "verify_email_failed", err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(user))
	}
}

// @Summary      Log in
// @Description  Exchanges email and password for a bearer token.
// @Tags         Account
// @Accept       json
// @Produce      json
// @Param        request body account.LoginRequest true "Credentials"
// @Success      200  {object}  handlers.RespLogin
// @Router       /api/v1/auth/login [post]
func ApiLogin(svc AccountService, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req account.LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		res, err := svc.Login(c.Request.Context(), req)
		if err != nil {
			writeError(c, log, "login_failed", err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// @Summary      Account overview
// @Description  Returns the profile, plan and usage counters of the caller.
// @Tags         Account
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  handlers.RespOverview
// @Router       /api/v1/account [get]
func ApiAccountOverview(svc AccountService, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := svc.Overview(c.Request.Context(), logctx.UserID(c.Request.Context()))
		if err != nil {
			writeError(c, log, "account_overview_failed", err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// RegisterAuthRoutes mounts the public auth endpoints, expected at "/api/v1/auth".
func RegisterAuthRoutes(r gin.IRouter, svc AccountService, log *zap.SugaredLogger) {
	r.POST("/signup", ApiSignup(svc, log))
	r.POST("/login", ApiLogin(svc, log))
	r.POST("/verify_email", ApiVerifyEmail(svc, log))
}

func RegisterAccountRoutes(r gin.IRouter, svc AccountService, log *zap.SugaredLogger) {
	r.GET("/account", ApiAccountOverview(svc, log))
}
