package quota

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/fatflowers/fplcoach/internal/models"
	"github.com/fatflowers/fplcoach/internal/platform/db/dbtest"
	"github.com/fatflowers/fplcoach/pkg/types"
)

func seedUsage(t *testing.T, gdb *gorm.DB, userID string, used, limit int) {
	t.Helper()
	require.NoError(t, gdb.Create(&models.UsageTracking{
		ID:     "0190aaaa-0000-7000-8000-" + userID[len(userID)-12:],
		UserID: userID, Month: int(testNow.Month()), Year: testNow.Year(),
		MessagesUsed: used, MessagesLimit: limit,
	}).Error)
}

func TestSweepIfExpired_ResetsExpiredFreeWindow(t *testing.T) {
	svc, gdb := newTestService(t, testNow)
	user := dbtest.SeedUser(t, gdb, dbtest.WithPeriodEnd(testNow.Add(-time.Hour)))
	seedUsage(t, gdb, user.ID, 7, 15)

	usage, err := svc.SweepIfExpired(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, usage.MessagesLimit)
	assert.Equal(t, 0, usage.MessagesUsed)

	sub := dbtest.Subscription(t, gdb, user.ID)
	require.NotNil(t, sub.CurrentPeriodEnd)
	assert.True(t, sub.CurrentPeriodEnd.Equal(testNow.AddDate(0, 1, 0)), sub.CurrentPeriodEnd)
	assert.True(t, sub.CurrentPeriodStart.Equal(testNow))

	// A second sweep before the new boundary is a no-op.
	_, err = svc.RecordSend(context.Background(), user.ID)
	require.NoError(t, err)
	usage, err = svc.SweepIfExpired(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, usage.MessagesUsed)

	require.Eventually(t, func() bool {
		var n int64
		gdb.Model(&models.SubscriptionLog{}).Where("user_id = ? AND reason = ?", user.ID, types.SubscriptionChangeReasonPeriodRollover).Count(&n)
		return n == 1
	}, 2*time.Second, 20*time.Millisecond)
}

func TestSweepIfExpired_NoOpCases(t *testing.T) {
	tests := []struct {
		name string
		opts []dbtest.UserOption
	}{
		{name: "free without window"},
		{name: "free window in future", opts: []dbtest.UserOption{dbtest.WithPeriodEnd(testNow.Add(time.Hour))}},
		{name: "free window ends exactly now", opts: []dbtest.UserOption{dbtest.WithPeriodEnd(testNow)}},
		{name: "paid plan with past window", opts: []dbtest.UserOption{dbtest.WithPlan(types.PlanPremium), dbtest.WithPeriodEnd(testNow.Add(-time.Hour))}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, gdb := newTestService(t, testNow)
			user := dbtest.SeedUser(t, gdb, tt.opts...)
			seedUsage(t, gdb, user.ID, 3, 15)
			before := dbtest.Subscription(t, gdb, user.ID)

			usage, err := svc.SweepIfExpired(context.Background(), user.ID)
			require.NoError(t, err)
			assert.Equal(t, 3, usage.MessagesUsed)
			assert.Equal(t, 15, usage.MessagesLimit)

			after := dbtest.Subscription(t, gdb, user.ID)
			assert.Equal(t, before.CurrentPeriodEnd == nil, after.CurrentPeriodEnd == nil)
			if before.CurrentPeriodEnd != nil {
				assert.True(t, before.CurrentPeriodEnd.Equal(*after.CurrentPeriodEnd))
			}
		})
	}
}

func TestCanSend_TriggersSweep(t *testing.T) {
	svc, gdb := newTestService(t, testNow)
	user := dbtest.SeedUser(t, gdb, dbtest.WithPeriodEnd(testNow.Add(-time.Minute)))
	seedUsage(t, gdb, user.ID, 15, 15)

	a, err := svc.CanSend(context.Background(), user.ID)
	require.NoError(t, err)
	assert.True(t, a.Allowed)
	assert.Equal(t, 5, a.Limit)
	assert.Equal(t, 0, a.Used)
}
