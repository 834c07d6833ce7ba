package subscription

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/fatflowers/fplcoach/internal/models"
	"github.com/fatflowers/fplcoach/internal/platform/db/dbtest"
	"github.com/fatflowers/fplcoach/pkg/apperr"
	"github.com/fatflowers/fplcoach/pkg/types"
)

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	gdb := dbtest.New(t)
	return NewService(gdb, zap.NewNop().Sugar()), gdb
}

func TestGet_NotFound(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Get(context.Background(), "missing")
	require.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestUpsert_PreservesIDAndLogs(t *testing.T) {
	svc, gdb := newTestService(t)
	ctx := context.Background()
	user := dbtest.SeedUser(t, gdb)
	original := dbtest.Subscription(t, gdb, user.ID)

	end := time.Now().Add(24 * time.Hour)
	var change *Change
	err := gdb.Transaction(func(tx *gorm.DB) error {
		var err error
		change, err = svc.Upsert(ctx, tx, &models.Subscription{
			UserID:           user.ID,
			Plan:             types.PlanPremium,
			Status:           types.SubscriptionStatusActive,
			CurrentPeriodEnd: &end,
		}, types.SubscriptionChangeReasonCheckoutCompleted, map[string]any{"event_id": "evt_1"})
		return err
	})
	require.NoError(t, err)
	require.Equal(t, original.ID, change.After.ID)
	require.Equal(t, types.PlanFree, change.Before.Plan)

	got := dbtest.Subscription(t, gdb, user.ID)
	require.Equal(t, original.ID, got.ID)
	require.Equal(t, types.PlanPremium, got.Plan)

	var count int64
	require.NoError(t, gdb.Model(&models.Subscription{}).Where("user_id = ?", user.ID).Count(&count).Error)
	require.EqualValues(t, 1, count)

	svc.Record(ctx, change, nil)
	require.Eventually(t, func() bool {
		var logs []models.SubscriptionLog
		if err := gdb.Where("user_id = ?", user.ID).Find(&logs).Error; err != nil || len(logs) != 1 {
			return false
		}
		return logs[0].Reason == types.SubscriptionChangeReasonCheckoutCompleted &&
			logs[0].After.Data().Plan == types.PlanPremium &&
			logs[0].Extra["event_id"] == "evt_1"
	}, 2*time.Second, 20*time.Millisecond)
}

func TestUpsert_CreatesWhenMissing(t *testing.T) {
	svc, gdb := newTestService(t)
	ctx := context.Background()
	var change *Change
	require.NoError(t, gdb.Transaction(func(tx *gorm.DB) error {
		var err error
		change, err = svc.Upsert(ctx, tx, NewFree("0190aaaa-0000-7000-8000-000000000001"), types.SubscriptionChangeReasonSignup, nil)
		return err
	}))
	require.Nil(t, change.Before)
	require.NotEmpty(t, change.After.ID)
}

func TestGetByStripeSubscriptionID(t *testing.T) {
	svc, gdb := newTestService(t)
	ctx := context.Background()
	user := dbtest.SeedUser(t, gdb, dbtest.WithStripeSubscription("sub_123"))

	require.NoError(t, gdb.Transaction(func(tx *gorm.DB) error {
		sub, err := svc.GetByStripeSubscriptionID(ctx, tx, "sub_123")
		require.NoError(t, err)
		require.Equal(t, user.ID, sub.UserID)

		_, err = svc.GetByStripeSubscriptionID(ctx, tx, "sub_missing")
		require.True(t, errors.Is(err, apperr.ErrNotFound))
		return nil
	}))
}
