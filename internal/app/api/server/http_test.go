package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fatflowers/fplcoach/internal/app/api/handlers"
	"github.com/fatflowers/fplcoach/internal/app/service/account"
	"github.com/fatflowers/fplcoach/internal/app/service/billing"
	"github.com/fatflowers/fplcoach/internal/app/service/reward"
	"github.com/fatflowers/fplcoach/internal/models"
	"github.com/fatflowers/fplcoach/pkg/apperr"
	"github.com/fatflowers/fplcoach/pkg/response"
	"github.com/fatflowers/fplcoach/pkg/types"
)

type stubAccounts struct{ handlers.AccountService }

func (stubAccounts) Overview(_ context.Context, userID string) (*account.Overview, error) {
	return &account.Overview{User: &models.User{ID: userID}}, nil
}

type stubRewards struct{ handlers.RewardService }

func (stubRewards) ListPending(context.Context) ([]*models.SocialAction, error) {
	return []*models.SocialAction{}, nil
}

func (stubRewards) HomepageReviews(context.Context, int) ([]*reward.HomepageReview, error) {
	return []*reward.HomepageReview{}, nil
}

type stubBilling struct{ handlers.BillingService }

func (stubBilling) HandleWebhook(context.Context, []byte, string) (*billing.Outcome, error) {
	return nil, apperr.ErrSignatureVerification
}

func newTestEngine(t *testing.T) (*gin.Engine, *account.TokenIssuer) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	issuer := account.NewTokenIssuer("test-secret", time.Hour)
	r := gin.New()
	mountAPI(r, zap.NewNop().Sugar(), apiDeps{
		Tokens:   issuer,
		Accounts: stubAccounts{},
		Rewards:  stubRewards{},
		Billing:  stubBilling{},
	})
	return r, issuer
}

func get(t *testing.T, r *gin.Engine, path, token string) response.APIResponse[json.RawMessage] {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	var out response.APIResponse[json.RawMessage]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestRoutes_AccessLevels(t *testing.T) {
	r, issuer := newTestEngine(t)
	userToken, _, err := issuer.Issue("user-1", types.UserRoleUser, time.Now())
	require.NoError(t, err)
	adminToken, _, err := issuer.Issue("admin-1", types.UserRoleAdmin, time.Now())
	require.NoError(t, err)

	assert.Equal(t, response.APIResponseCodeOK, get(t, r, "/healthz", "").Code)
	assert.Equal(t, response.APIResponseCodeOK, get(t, r, "/api/v1/rewards/reviews", "").Code)

	assert.Equal(t, response.APIResponseCodeUnauthorized, get(t, r, "/api/v1/account", "").Code)
	out := get(t, r, "/api/v1/account", userToken)
	assert.Equal(t, response.APIResponseCodeOK, out.Code)
	assert.Contains(t, string(out.Data), `"user-1"`)

	assert.Equal(t, response.APIResponseCodeUnauthorized, get(t, r, "/api/v1/admin/claims/pending", "").Code)
	assert.Equal(t, response.APIResponseCodeForbidden, get(t, r, "/api/v1/admin/claims/pending", userToken).Code)
	assert.Equal(t, response.APIResponseCodeOK, get(t, r, "/api/v1/admin/claims/pending", adminToken).Code)
}

func TestRoutes_StripeWebhookIsPublic(t *testing.T) {
	r, _ := newTestEngine(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v2/billing/webhook/stripe", strings.NewReader(`{}`))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCorsMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(corsMiddleware([]string{"https://fplcoach.example"}))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "https://fplcoach.example")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "https://fplcoach.example", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "https://evil.example")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}
