// Package dbtest opens an isolated in-memory store with the production schema.
package dbtest

import (
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/fatflowers/fplcoach/internal/models"
	"github.com/fatflowers/fplcoach/internal/platform/db"
	"github.com/fatflowers/fplcoach/pkg/types"
)

// New returns a migrated database private to t. A single connection
// serializes writers, so code inside a transaction must use the tx handle.
func New(t testing.TB) *gorm.DB {
	t.Helper()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared&_pragma=busy_timeout(5000)"
	gdb, err := gorm.Open(sqlite.Open(dsn), db.GormConfig(zap.NewNop().Sugar(), gormlogger.Silent))
	require.NoError(t, err)

	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, gdb.AutoMigrate(models.All()...))
	return gdb
}

// UserOption adjusts a seeded user before it is stored.
type UserOption func(u *models.User, s *models.Subscription)

func Verified() UserOption {
	return func(u *models.User, _ *models.Subscription) {
		now := time.Now()
		u.EmailVerifiedAt = &now
	}
}

func Admin() UserOption {
	return func(u *models.User, _ *models.Subscription) { u.Role = types.UserRoleAdmin }
}

func WithPlan(plan types.Plan) UserOption {
	return func(_ *models.User, s *models.Subscription) { s.Plan = plan }
}

func WithPeriodEnd(end time.Time) UserOption {
	return func(_ *models.User, s *models.Subscription) {
		start := end.AddDate(0, -1, 0)
		s.CurrentPeriodStart = &start
		s.CurrentPeriodEnd = &end
	}
}

func WithStripeSubscription(id string) UserOption {
	return func(_ *models.User, s *models.Subscription) { s.StripeSubscriptionID = &id }
}

// SeedUser stores a user with a Free active subscription and no usage row.
func SeedUser(t testing.TB, gdb *gorm.DB, opts ...UserOption) *models.User {
	t.Helper()
	id := uuid.Must(uuid.NewV7()).String()
	u := &models.User{
		ID:           id,
		Email:        id[len(id)-8:] + "@example.com",
		Name:         "Test User",
		Role:         types.UserRoleUser,
		PasswordHash: "x",
		ReferralCode: strings.ToUpper(id[len(id)-10:]),
	}
	s := &models.Subscription{
		ID:     uuid.Must(uuid.NewV7()).String(),
		UserID: id,
		Plan:   types.PlanFree,
		Status: types.SubscriptionStatusActive,
	}
	for _, opt := range opts {
		opt(u, s)
	}
	require.NoError(t, gdb.Create(u).Error)
	require.NoError(t, gdb.Create(s).Error)
	return u
}

// Subscription reloads the subscription of userID.
func Subscription(t testing.TB, gdb *gorm.DB, userID string) *models.Subscription {
	t.Helper()
	var s models.Subscription
	require.NoError(t, gdb.Where("user_id = ?", userID).First(&s).Error)
	return &s
}

// Usage reloads the usage row of userID for the month containing at.
func Usage(t testing.TB, gdb *gorm.DB, userID string, at time.Time) *models.UsageTracking {
	t.Helper()
	var u models.UsageTracking
	require.NoError(t, gdb.Where("user_id = ? AND month = ? AND year = ?", userID, int(at.Month()), at.Year()).First(&u).Error)
	return &u
}
