package reward

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/fatflowers/fplcoach/internal/app/service/quota"
	"github.com/fatflowers/fplcoach/internal/app/service/subscription"
	"github.com/fatflowers/fplcoach/internal/models"
	"github.com/fatflowers/fplcoach/internal/platform/db/dbtest"
	"github.com/fatflowers/fplcoach/pkg/apperr"
	"github.com/fatflowers/fplcoach/pkg/types"
)

type publishedEvent struct {
	kind      types.OutboxKind
	recipient string
	payload   map[string]any
}

type stubPublisher struct {
	mu         sync.Mutex
	enqueued   []publishedEvent
	dispatched int
}

func (p *stubPublisher) AdminAddress() string { return "admin@example.com" }

func (p *stubPublisher) Enqueue(_ context.Context, _ *gorm.DB, kind types.OutboxKind, recipient string, payload map[string]any) (*models.OutboxEvent, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.enqueued = append(p.enqueued, publishedEvent{kind, recipient, payload})
	return &models.OutboxEvent{Kind: kind, Recipient: recipient}, nil
}

func (p *stubPublisher) Dispatch(_ context.Context, events ...*models.OutboxEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dispatched += len(events)
}

func (p *stubPublisher) kinds() []types.OutboxKind {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]types.OutboxKind, 0, len(p.enqueued))
	for _, e := range p.enqueued {
		out = append(out, e.kind)
	}
	return out
}

type fixture struct {
	svc   *Service
	quota *quota.Service
	db    *gorm.DB
	pub   *stubPublisher
	admin *models.User
}

func newFixture(t *testing.T) *fixture {
	gdb := dbtest.New(t)
	log := zap.NewNop().Sugar()
	subs := subscription.NewService(gdb, log)
	q := quota.NewService(gdb, subs, nil, log)
	pub := &stubPublisher{}
	return &fixture{
		svc:   NewService(gdb, q, subs, pub, nil, log),
		quota: q,
		db:    gdb,
		pub:   pub,
		admin: dbtest.SeedUser(t, gdb, dbtest.Verified(), dbtest.Admin()),
	}
}

func twitterClaim() SubmitClaimRequest {
	return SubmitClaimRequest{ActionType: types.ActionTypeTwitter, ProofURL: "https://x.com/someone/status/1"}
}

func seedVerifiedClaim(t *testing.T, gdb *gorm.DB, userID string, actionType types.ActionType, key string, reward int) {
	t.Helper()
	require.NoError(t, gdb.Create(&models.SocialAction{
		ID:             key + "-id",
		UserID:         userID,
		ActionType:     actionType,
		ClaimKey:       key,
		Status:         types.ClaimStatusVerified,
		RewardMessages: reward,
	}).Error)
}

func TestSubmitClaim_Eligibility(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	unverified := dbtest.SeedUser(t, f.db)
	_, err := f.svc.SubmitClaim(ctx, unverified.ID, twitterClaim())
	assert.ErrorIs(t, err, apperr.ErrUnverifiedEmail)

	premium := dbtest.SeedUser(t, f.db, dbtest.Verified(), dbtest.WithPlan(types.PlanPremium))
	_, err = f.svc.SubmitClaim(ctx, premium.ID, twitterClaim())
	assert.ErrorIs(t, err, apperr.ErrPlanIneligible)

	_, err = f.svc.SubmitClaim(ctx, "0190aaaa-0000-7000-8000-00000000beef", twitterClaim())
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	free := dbtest.SeedUser(t, f.db, dbtest.Verified())
	_, err = f.svc.SubmitClaim(ctx, free.ID, SubmitClaimRequest{ActionType: types.ActionTypeReddit})
	assert.ErrorIs(t, err, apperr.ErrMissingProof)

	_, err = f.svc.SubmitClaim(ctx, free.ID, SubmitClaimRequest{ActionType: "tiktok", ProofURL: "https://t.co/x"})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = f.svc.SubmitClaim(ctx, free.ID, SubmitClaimRequest{ActionType: types.ActionTypeReddit, ProofURL: "javascript:alert(1)"})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestSubmitClaim_Rewards(t *testing.T) {
	tests := []struct {
		name   string
		req    SubmitClaimRequest
		reward int
	}{
		{name: "social share", req: twitterClaim(), reward: 5},
		{
			name: "written review",
			req: SubmitClaimRequest{ActionType: types.ActionTypeReview, Metadata: &ClaimMetadataInput{
				Text: "Great captain picks", Rating: 5,
			}},
			reward: 5,
		},
		{
			name: "xpost review with consent",
			req: SubmitClaimRequest{ActionType: types.ActionTypeReview, ProofURL: "https://x.com/a/status/2", Metadata: &ClaimMetadataInput{
				ReviewType: types.ReviewTypeXPost, Rating: 4, XConsent: true,
			}},
			reward: 10,
		},
		{
			name: "xpost review without consent",
			req: SubmitClaimRequest{ActionType: types.ActionTypeReview, ProofURL: "https://x.com/a/status/3", Metadata: &ClaimMetadataInput{
				ReviewType: types.ReviewTypeXPost, Rating: 4,
			}},
			reward: 5,
		},
		{
			name: "referral",
			req: SubmitClaimRequest{ActionType: types.ActionTypeReferral, Metadata: &ClaimMetadataInput{
				ReferredEmail: " Friend@Example.com ",
			}},
			reward: 10,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			user := dbtest.SeedUser(t, f.db, dbtest.Verified())

			claim, err := f.svc.SubmitClaim(context.Background(), user.ID, tt.req)
			require.NoError(t, err)
			assert.Equal(t, types.ClaimStatusPending, claim.Status)
			assert.Equal(t, tt.reward, claim.RewardMessages)
			assert.Equal(t, []types.OutboxKind{types.OutboxKindClaimSubmitted}, f.pub.kinds())
			assert.Equal(t, "admin@example.com", f.pub.enqueued[0].recipient)
		})
	}
}

func TestSubmitClaim_ReferralNormalizesEmail(t *testing.T) {
	f := newFixture(t)
	user := dbtest.SeedUser(t, f.db, dbtest.Verified())

	claim, err := f.svc.SubmitClaim(context.Background(), user.ID, SubmitClaimRequest{
		ActionType: types.ActionTypeReferral,
		Metadata:   &ClaimMetadataInput{ReferredEmail: "Friend@Example.com"},
	})
	require.NoError(t, err)
	require.NotNil(t, claim.Metadata.Data().Referral)
	assert.Equal(t, "friend@example.com", claim.Metadata.Data().Referral.ReferredEmail)

	_, err = f.svc.SubmitClaim(context.Background(), user.ID, SubmitClaimRequest{
		ActionType: types.ActionTypeReferral,
		Metadata:   &ClaimMetadataInput{ReferredEmail: user.Email},
	})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestSubmitClaim_MetadataRules(t *testing.T) {
	tests := []struct {
		name string
		req  SubmitClaimRequest
		want string
	}{
		{
			name: "rating out of range",
			req:  SubmitClaimRequest{ActionType: types.ActionTypeReview, Metadata: &ClaimMetadataInput{Text: "ok", Rating: 6}},
			want: "rating must be at most 5",
		},
		{
			name: "rating missing",
			req:  SubmitClaimRequest{ActionType: types.ActionTypeReview, Metadata: &ClaimMetadataInput{Text: "ok"}},
			want: "rating is required for reviews",
		},
		{
			name: "unknown review type",
			req:  SubmitClaimRequest{ActionType: types.ActionTypeReview, Metadata: &ClaimMetadataInput{ReviewType: "video", Rating: 3}},
			want: "review_type must be one of",
		},
		{
			name: "written review without text",
			req:  SubmitClaimRequest{ActionType: types.ActionTypeReview, Metadata: &ClaimMetadataInput{Text: "  ", Rating: 3}},
			want: "review text is required",
		},
		{
			name: "review too long",
			req:  SubmitClaimRequest{ActionType: types.ActionTypeReview, Metadata: &ClaimMetadataInput{Text: strings.Repeat("é", 2001), Rating: 3}},
			want: "text exceeds 2000 characters",
		},
		{
			name: "referral without email",
			req:  SubmitClaimRequest{ActionType: types.ActionTypeReferral},
			want: "referred_email is required",
		},
		{
			name: "referral with bad email",
			req:  SubmitClaimRequest{ActionType: types.ActionTypeReferral, Metadata: &ClaimMetadataInput{ReferredEmail: "friend at example"}},
			want: "referred_email is not a valid email address",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			user := dbtest.SeedUser(t, f.db, dbtest.Verified())

			_, err := f.svc.SubmitClaim(context.Background(), user.ID, tt.req)
			require.ErrorIs(t, err, apperr.ErrValidation)
			assert.Contains(t, err.Error(), tt.want)
			assert.Empty(t, f.pub.kinds())
		})
	}
}

func TestSubmitClaim_DuplicateRegardlessOfStatus(t *testing.T) {
	for _, status := range []types.ClaimStatus{types.ClaimStatusPending, types.ClaimStatusRejected, types.ClaimStatusVerified} {
		t.Run(string(status), func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			user := dbtest.SeedUser(t, f.db, dbtest.Verified())

			first, err := f.svc.SubmitClaim(ctx, user.ID, twitterClaim())
			require.NoError(t, err)
			if status != types.ClaimStatusPending {
				require.NoError(t, f.db.Model(&models.SocialAction{}).Where("id = ?", first.ID).Update("status", status).Error)
			}

			_, err = f.svc.SubmitClaim(ctx, user.ID, twitterClaim())
			assert.ErrorIs(t, err, apperr.ErrDuplicateClaim)

			// Other types stay available.
			_, err = f.svc.SubmitClaim(ctx, user.ID, SubmitClaimRequest{ActionType: types.ActionTypeReddit, ProofURL: "https://reddit.com/r/fpl/1"})
			assert.NoError(t, err)
		})
	}
}

func TestSubmitClaim_ReferralSlots(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := dbtest.SeedUser(t, f.db, dbtest.Verified())

	refer := func(email string) error {
		_, err := f.svc.SubmitClaim(ctx, user.ID, SubmitClaimRequest{
			ActionType: types.ActionTypeReferral,
			Metadata:   &ClaimMetadataInput{ReferredEmail: email},
		})
		return err
	}
	require.NoError(t, refer("a@example.com"))
	assert.ErrorIs(t, refer("A@example.com"), apperr.ErrDuplicateClaim)
	require.NoError(t, refer("b@example.com"))
	require.NoError(t, refer("c@example.com"))
	assert.ErrorIs(t, refer("d@example.com"), apperr.ErrReferralLimitReached)

	sum, err := f.svc.UserSummary(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, sum.ReferralsUsed)
	assert.Equal(t, 30, sum.PendingTotal)
}

func TestSubmitClaim_LifetimeCap(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := dbtest.SeedUser(t, f.db, dbtest.Verified())

	// 45 verified: reddit 5, facebook 5, review 5, three referrals 30.
	seedVerifiedClaim(t, f.db, user.ID, types.ActionTypeReddit, user.ID+":reddit", 5)
	seedVerifiedClaim(t, f.db, user.ID, types.ActionTypeFacebook, user.ID+":facebook", 5)
	seedVerifiedClaim(t, f.db, user.ID, types.ActionTypeReview, user.ID+":review", 5)
	for i := 1; i <= 3; i++ {
		seedVerifiedClaim(t, f.db, user.ID, types.ActionTypeReferral, user.ID+":referral:"+string(rune('0'+i)), 10)
	}

	// 45 + 5 = 50 is allowed.
	_, err := f.svc.SubmitClaim(ctx, user.ID, twitterClaim())
	require.NoError(t, err)

	sum, err := f.svc.UserSummary(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 45, sum.VerifiedTotal)
	assert.Equal(t, 5, sum.RemainingCap)
}

func TestSubmitClaim_LifetimeCapExceeded(t *testing.T) {
	f := newFixture(t)
	user := dbtest.SeedUser(t, f.db, dbtest.Verified())
	seedVerifiedClaim(t, f.db, user.ID, types.ActionTypeReddit, user.ID+":reddit", 45)

	_, err := f.svc.SubmitClaim(context.Background(), user.ID, SubmitClaimRequest{
		ActionType: types.ActionTypeReferral,
		Metadata:   &ClaimMetadataInput{ReferredEmail: "friend@example.com"},
	})
	assert.ErrorIs(t, err, apperr.ErrLifetimeCapExceeded)

	var count int64
	require.NoError(t, f.db.Model(&models.SocialAction{}).Where("user_id = ? AND status = ?", user.ID, types.ClaimStatusPending).Count(&count).Error)
	assert.Zero(t, count)
}

func TestDecideClaim_ApproveCreditsAndUnlocksSend(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := dbtest.SeedUser(t, f.db, dbtest.Verified())

	for i := 0; i < types.FreeMessageLimit; i++ {
		_, err := f.quota.RecordSend(ctx, user.ID)
		require.NoError(t, err)
	}
	_, err := f.quota.RecordSend(ctx, user.ID)
	require.ErrorIs(t, err, apperr.ErrQuotaExceeded)

	claim, err := f.svc.SubmitClaim(ctx, user.ID, twitterClaim())
	require.NoError(t, err)

	decided, err := f.svc.DecideClaim(ctx, f.admin.ID, DecideClaimRequest{ClaimID: claim.ID, Action: types.ClaimDecisionApprove})
	require.NoError(t, err)
	assert.Equal(t, types.ClaimStatusVerified, decided.Status)
	require.NotNil(t, decided.VerifiedAt)
	require.NotNil(t, decided.DecidedBy)
	assert.Equal(t, f.admin.ID, *decided.DecidedBy)

	usage := dbtest.Usage(t, f.db, user.ID, time.Now())
	assert.Equal(t, 10, usage.MessagesLimit)
	assert.Equal(t, 5, usage.MessagesUsed)

	sub := dbtest.Subscription(t, f.db, user.ID)
	require.NotNil(t, sub.CurrentPeriodEnd)
	assert.WithinDuration(t, time.Now().AddDate(0, 0, 30), *sub.CurrentPeriodEnd, time.Minute)

	usage, err = f.quota.RecordSend(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 6, usage.MessagesUsed)

	assert.Equal(t, []types.OutboxKind{types.OutboxKindClaimSubmitted, types.OutboxKindClaimDecided}, f.pub.kinds())
	assert.Equal(t, user.Email, f.pub.enqueued[1].recipient)
}

func TestDecideClaim_ApproveWithoutUsageRow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := dbtest.SeedUser(t, f.db, dbtest.Verified())

	claim, err := f.svc.SubmitClaim(ctx, user.ID, SubmitClaimRequest{
		ActionType: types.ActionTypeReferral,
		Metadata:   &ClaimMetadataInput{ReferredEmail: "pal@example.com"},
	})
	require.NoError(t, err)
	_, err = f.svc.DecideClaim(ctx, f.admin.ID, DecideClaimRequest{ClaimID: claim.ID, Action: types.ClaimDecisionApprove})
	require.NoError(t, err)

	usage := dbtest.Usage(t, f.db, user.ID, time.Now())
	assert.Equal(t, 15, usage.MessagesLimit)
	assert.Zero(t, usage.MessagesUsed)
}

func TestDecideClaim_KeepsExistingWindow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	end := time.Now().Add(72 * time.Hour).UTC().Truncate(time.Second)
	user := dbtest.SeedUser(t, f.db, dbtest.Verified(), dbtest.WithPeriodEnd(end))

	claim, err := f.svc.SubmitClaim(ctx, user.ID, twitterClaim())
	require.NoError(t, err)
	_, err = f.svc.DecideClaim(ctx, f.admin.ID, DecideClaimRequest{ClaimID: claim.ID, Action: types.ClaimDecisionApprove})
	require.NoError(t, err)

	sub := dbtest.Subscription(t, f.db, user.ID)
	require.NotNil(t, sub.CurrentPeriodEnd)
	assert.True(t, sub.CurrentPeriodEnd.Equal(end))
}

func TestDecideClaim_RejectLeavesQuota(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := dbtest.SeedUser(t, f.db, dbtest.Verified())

	claim, err := f.svc.SubmitClaim(ctx, user.ID, twitterClaim())
	require.NoError(t, err)
	decided, err := f.svc.DecideClaim(ctx, f.admin.ID, DecideClaimRequest{ClaimID: claim.ID, Action: types.ClaimDecisionReject})
	require.NoError(t, err)
	assert.Equal(t, types.ClaimStatusRejected, decided.Status)
	assert.Nil(t, decided.VerifiedAt)

	var count int64
	require.NoError(t, f.db.Model(&models.UsageTracking{}).Where("user_id = ?", user.ID).Count(&count).Error)
	assert.Zero(t, count)
	assert.Nil(t, dbtest.Subscription(t, f.db, user.ID).CurrentPeriodEnd)
}

func TestDecideClaim_OnlyOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := dbtest.SeedUser(t, f.db, dbtest.Verified())

	claim, err := f.svc.SubmitClaim(ctx, user.ID, twitterClaim())
	require.NoError(t, err)
	_, err = f.svc.DecideClaim(ctx, f.admin.ID, DecideClaimRequest{ClaimID: claim.ID, Action: types.ClaimDecisionApprove})
	require.NoError(t, err)

	for _, action := range []types.ClaimDecision{types.ClaimDecisionApprove, types.ClaimDecisionReject} {
		_, err = f.svc.DecideClaim(ctx, f.admin.ID, DecideClaimRequest{ClaimID: claim.ID, Action: action})
		assert.ErrorIs(t, err, apperr.ErrAlreadyDecided)
	}
	usage := dbtest.Usage(t, f.db, user.ID, time.Now())
	assert.Equal(t, 10, usage.MessagesLimit)
}

func TestDecideClaim_ConcurrentApprovalsCreditOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := dbtest.SeedUser(t, f.db, dbtest.Verified())
	claim, err := f.svc.SubmitClaim(ctx, user.ID, twitterClaim())
	require.NoError(t, err)

	var wg sync.WaitGroup
	var mu sync.Mutex
	var ok, already int
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.DecideClaim(ctx, f.admin.ID, DecideClaimRequest{ClaimID: claim.ID, Action: types.ClaimDecisionApprove})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, apperr.ErrAlreadyDecided):
				already++
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, ok)
	assert.Equal(t, 3, already)
	assert.Equal(t, 10, dbtest.Usage(t, f.db, user.ID, time.Now()).MessagesLimit)
}

func TestDecideClaim_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.DecideClaim(ctx, f.admin.ID, DecideClaimRequest{ClaimID: "missing", Action: types.ClaimDecisionApprove})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = f.svc.DecideClaim(ctx, f.admin.ID, DecideClaimRequest{ClaimID: "x", Action: "maybe"})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestHomepageReviews(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	shown := dbtest.SeedUser(t, f.db, dbtest.Verified())
	hidden := dbtest.SeedUser(t, f.db, dbtest.Verified())

	submit := func(userID, text string) string {
		claim, err := f.svc.SubmitClaim(ctx, userID, SubmitClaimRequest{
			ActionType: types.ActionTypeReview,
			Metadata:   &ClaimMetadataInput{Text: text, Rating: 5},
		})
		require.NoError(t, err)
		return claim.ID
	}
	_, err := f.svc.DecideClaim(ctx, f.admin.ID, DecideClaimRequest{ClaimID: submit(shown.ID, "Top tips"), Action: types.ClaimDecisionApprove, DisplayOnHomepage: true})
	require.NoError(t, err)
	_, err = f.svc.DecideClaim(ctx, f.admin.ID, DecideClaimRequest{ClaimID: submit(hidden.ID, "Private"), Action: types.ClaimDecisionApprove})
	require.NoError(t, err)

	reviews, err := f.svc.HomepageReviews(ctx, 0)
	require.NoError(t, err)
	require.Len(t, reviews, 1)
	assert.Equal(t, "Top tips", reviews[0].Text)
	assert.Equal(t, 5, reviews[0].Rating)
}

func TestListPendingAndClaims(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := dbtest.SeedUser(t, f.db, dbtest.Verified())
	b := dbtest.SeedUser(t, f.db, dbtest.Verified())

	first, err := f.svc.SubmitClaim(ctx, a.ID, twitterClaim())
	require.NoError(t, err)
	_, err = f.svc.SubmitClaim(ctx, b.ID, twitterClaim())
	require.NoError(t, err)
	_, err = f.svc.DecideClaim(ctx, f.admin.ID, DecideClaimRequest{ClaimID: first.ID, Action: types.ClaimDecisionReject})
	require.NoError(t, err)

	pending, err := f.svc.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, b.ID, pending[0].UserID)
	require.NotNil(t, pending[0].User)
	assert.Equal(t, b.Email, pending[0].User.Email)

	resp, err := f.svc.ListClaims(ctx, &ListClaimsRequest{Filters: []*types.CommonFilter{
		{Field: "status", Operator: types.CommonFilterOperatorEq, Values: []any{string(types.ClaimStatusRejected)}},
	}})
	require.NoError(t, err)
	assert.EqualValues(t, 1, resp.Total)
	require.Len(t, resp.Items, 1)
	assert.Equal(t, first.ID, resp.Items[0].ID)

	_, err = f.svc.ListClaims(ctx, &ListClaimsRequest{Filters: []*types.CommonFilter{
		{Field: "password_hash", Operator: types.CommonFilterOperatorEq, Values: []any{"x"}},
	}})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = f.svc.ListClaims(ctx, &ListClaimsRequest{Filters: []*types.CommonFilter{
		{Field: "status", Operator: "like", Values: []any{"%"}},
	}})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}
