package notifier

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/fatflowers/fplcoach/internal/models"
	"github.com/fatflowers/fplcoach/internal/platform/db/dbtest"
	cfgpkg "github.com/fatflowers/fplcoach/pkg/config"
	"github.com/fatflowers/fplcoach/pkg/types"
)

type sentMail struct{ to, subject, body string }

type stubMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (m *stubMailer) Send(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMail{to, subject, body})
	return nil
}

func (m *stubMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

func (m *stubMailer) fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func newTestService(t *testing.T, mailer *stubMailer) (*Service, *gorm.DB) {
	gdb := dbtest.New(t)
	cfg := &cfgpkg.Config{
		Auth: cfgpkg.AuthConfig{VerificationTTL: 24 * time.Hour},
		Mail: cfgpkg.MailConfig{AppURL: "https://coach.example/", AdminAddress: "admin@example.com", MaxAttempts: 2},
	}
	return NewService(gdb, mailer, cfg, zap.NewNop().Sugar()), gdb
}

func enqueue(t *testing.T, svc *Service, gdb *gorm.DB, kind types.OutboxKind, to string, payload map[string]any) *models.OutboxEvent {
	t.Helper()
	var ev *models.OutboxEvent
	require.NoError(t, gdb.Transaction(func(tx *gorm.DB) error {
		var err error
		ev, err = svc.Enqueue(context.Background(), tx, kind, to, payload)
		return err
	}))
	return ev
}

func TestDeliver_Sent(t *testing.T) {
	mailer := &stubMailer{}
	svc, gdb := newTestService(t, mailer)
	ev := enqueue(t, svc, gdb, types.OutboxKindVerifyEmail, "u@example.com", map[string]any{"name": "Ann", "token": "abc"})

	require.NoError(t, svc.Deliver(context.Background(), ev))
	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "u@example.com", mailer.sent[0].to)
	assert.True(t, strings.Contains(mailer.sent[0].body, "https://coach.example/verify-email?token=abc"))
	assert.Contains(t, mailer.sent[0].body, "expires in 24 hours")

	var got models.OutboxEvent
	require.NoError(t, gdb.First(&got, "id = ?", ev.ID).Error)
	assert.Equal(t, types.OutboxStatusSent, got.Status)
	assert.Equal(t, 1, got.Attempts)
	assert.NotNil(t, got.SentAt)
}

func TestDeliver_FailureOnlyMarksRow(t *testing.T) {
	mailer := &stubMailer{err: errors.New("smtp down")}
	svc, gdb := newTestService(t, mailer)
	ev := enqueue(t, svc, gdb, types.OutboxKindClaimSubmitted, "admin@example.com", map[string]any{"action_type": "twitter"})

	svc.Dispatch(context.Background(), ev, nil)
	require.Eventually(t, func() bool {
		var got models.OutboxEvent
		if err := gdb.First(&got, "id = ?", ev.ID).Error; err != nil {
			return false
		}
		return got.Status == types.OutboxStatusFailed && got.LastError != nil && *got.LastError == "smtp down"
	}, 2*time.Second, 20*time.Millisecond)
}

func TestEnqueue_EmptyRecipientSkipped(t *testing.T) {
	svc, gdb := newTestService(t, &stubMailer{})
	ev := enqueue(t, svc, gdb, types.OutboxKindClaimSubmitted, " ", nil)
	assert.Nil(t, ev)
	var n int64
	require.NoError(t, gdb.Model(&models.OutboxEvent{}).Count(&n).Error)
	assert.EqualValues(t, 0, n)
}

func TestRender_ClaimDecided(t *testing.T) {
	svc, _ := newTestService(t, &stubMailer{})
	subject, body, err := svc.render(&models.OutboxEvent{Kind: types.OutboxKindClaimDecided, Payload: map[string]any{
		"status": "verified", "action_type": "review", "reward_messages": 10,
	}})
	require.NoError(t, err)
	assert.Equal(t, "Your reward was approved", subject)
	assert.True(t, strings.Contains(body, "10 bonus messages"))

	_, _, err = svc.render(&models.OutboxEvent{Kind: "unknown"})
	require.Error(t, err)
}

func TestRender_VerifyEmailExpiryFollowsConfig(t *testing.T) {
	svc, _ := newTestService(t, &stubMailer{})
	ev := &models.OutboxEvent{Kind: types.OutboxKindVerifyEmail, Payload: map[string]any{"name": "Ann", "token": "abc"}}

	tests := []struct {
		ttl  time.Duration
		want string
	}{
		{ttl: 48 * time.Hour, want: "expires in 2 days."},
		{ttl: 24 * time.Hour, want: "expires in 24 hours."},
		{ttl: time.Hour, want: "expires in 1 hour."},
		{ttl: 30 * time.Minute, want: "expires in 30 minutes."},
	}
	for _, tt := range tests {
		t.Run(tt.ttl.String(), func(t *testing.T) {
			svc.cfg.Auth.VerificationTTL = tt.ttl
			_, body, err := svc.render(ev)
			require.NoError(t, err)
			assert.Contains(t, body, tt.want)
		})
	}

	svc.cfg.Auth.VerificationTTL = 0
	_, body, err := svc.render(ev)
	require.NoError(t, err)
	assert.NotContains(t, body, "expires")
}

func TestRelay_DeliversAfterGrace(t *testing.T) {
	mailer := &stubMailer{}
	svc, gdb := newTestService(t, mailer)
	ev := enqueue(t, svc, gdb, types.OutboxKindVerifyEmail, "u@example.com", map[string]any{"token": "abc"})
	ctx := context.Background()

	sent, err := svc.Relay(ctx)
	require.NoError(t, err)
	assert.Zero(t, sent, "fresh events belong to Dispatch")

	svc.now = func() time.Time { return time.Now().Add(time.Minute) }
	sent, err = svc.Relay(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)

	var got models.OutboxEvent
	require.NoError(t, gdb.First(&got, "id = ?", ev.ID).Error)
	assert.Equal(t, types.OutboxStatusSent, got.Status)

	sent, err = svc.Relay(ctx)
	require.NoError(t, err)
	assert.Zero(t, sent)
	assert.Equal(t, 1, mailer.count())
}

func TestRelay_StopsAtAttemptCap(t *testing.T) {
	mailer := &stubMailer{err: errors.New("smtp down")}
	svc, gdb := newTestService(t, mailer)
	ev := enqueue(t, svc, gdb, types.OutboxKindClaimSubmitted, "admin@example.com", map[string]any{"action_type": "reddit"})
	ctx := context.Background()

	clock := time.Now()
	svc.now = func() time.Time { return clock }
	for i := 0; i < 2; i++ {
		clock = clock.Add(time.Minute)
		sent, err := svc.Relay(ctx)
		require.NoError(t, err)
		assert.Zero(t, sent)
	}

	var got models.OutboxEvent
	require.NoError(t, gdb.First(&got, "id = ?", ev.ID).Error)
	assert.Equal(t, types.OutboxStatusFailed, got.Status)
	assert.Equal(t, 2, got.Attempts)

	mailer.fail(nil)
	clock = clock.Add(time.Minute)
	sent, err := svc.Relay(ctx)
	require.NoError(t, err)
	assert.Zero(t, sent)
	assert.Zero(t, mailer.count())
}

func TestRunRelay_Lifecycle(t *testing.T) {
	mailer := &stubMailer{}
	svc, gdb := newTestService(t, mailer)
	svc.cfg.Mail.RelayInterval = 10 * time.Millisecond
	svc.now = func() time.Time { return time.Now().Add(time.Minute) }
	enqueue(t, svc, gdb, types.OutboxKindVerifyEmail, "u@example.com", map[string]any{"token": "abc"})

	lc := fxtest.NewLifecycle(t)
	runRelay(lc, svc, zap.NewNop().Sugar())
	lc.RequireStart()
	require.Eventually(t, func() bool { return mailer.count() == 1 }, 2*time.Second, 10*time.Millisecond)
	lc.RequireStop()
}
