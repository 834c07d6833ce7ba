package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/samber/lo"
	"github.com/stripe/stripe-go/v79"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/fatflowers/fplcoach/internal/app/service/quota"
	"github.com/fatflowers/fplcoach/internal/app/service/subscription"
	"github.com/fatflowers/fplcoach/internal/models"
	"github.com/fatflowers/fplcoach/internal/platform/stripe_billing"
	"github.com/fatflowers/fplcoach/pkg/apperr"
	"github.com/fatflowers/fplcoach/pkg/config"
	"github.com/fatflowers/fplcoach/pkg/logctx"
	"github.com/fatflowers/fplcoach/pkg/metrics"
	"github.com/fatflowers/fplcoach/pkg/types"
)

const (
	EventCheckoutSessionCompleted    = "checkout.session.completed"
	EventCustomerSubscriptionUpdated = "customer.subscription.updated"
	EventCustomerSubscriptionDeleted = "customer.subscription.deleted"
)

// Provider is the part of the payment provider the reconciler talks to.
type Provider interface {
	ConstructEvent(payload []byte, sigHeader string) (stripe.Event, error)
	GetSubscription(ctx context.Context, id string) (*stripe.Subscription, error)
	CreateCheckoutSession(ctx context.Context, in stripe_billing.CheckoutInput) (*stripe.CheckoutSession, error)
}

// Service reconciles payment provider events into the subscription record.
type Service struct {
	cfg      *config.Config
	db       *gorm.DB
	provider Provider
	subs     *subscription.Service
	quota    *quota.Service
	metrics  *metrics.Business
	log      *zap.SugaredLogger
	now      func() time.Time
}

func NewService(cfg *config.Config, db *gorm.DB, provider Provider, subs *subscription.Service, q *quota.Service, m *metrics.Business, log *zap.SugaredLogger) *Service {
	return &Service{cfg: cfg, db: db, provider: provider, subs: subs, quota: q, metrics: m, log: log, now: time.Now}
}

// Outcome describes how a verified event was applied.
type Outcome struct {
	EventID   string `json:"event_id"`
	EventType string `json:"event_type"`
	UserID    string `json:"user_id,omitempty"`
	Handled   bool   `json:"handled"`
}

// HandleWebhook verifies the signature, then applies the event. Signature
// failures happen before any store access and wrap ErrSignatureVerification;
// any other error means the provider should retry.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) (_ *Outcome, resErr error) {
	event, err := s.provider.ConstructEvent(payload, signature)
	if err != nil {
		s.metrics.BillingEvent("unknown", "bad_signature")
		return nil, err
	}
	eventType := string(event.Type)
	out := &Outcome{EventID: event.ID, EventType: eventType}
	lg := logctx.FromCtx(ctx, s.log).With("event_id", event.ID, "event_type", eventType)

	var data datatypes.JSON
	if event.Data != nil {
		data = datatypes.JSON(event.Data.Raw)
	}
	entry := func(status models.BillingEventLogStatus) *models.BillingEventLog {
		return &models.BillingEventLog{
			ProviderID: types.PaymentProviderStripe,
			EventID:    event.ID,
			EventType:  eventType,
			UserID:     lo.EmptyableToPtr(out.UserID),
			TraceID:    logctx.TraceID(ctx),
			EventTime:  time.Unix(event.Created, 0).UTC(),
			Data:       data,
			Status:     status,
		}
	}
	s.saveLog(ctx, entry(models.BillingEventLogStatusReceived))

	var changes []*subscription.Change
	defer func() {
		status := models.BillingEventLogStatusHandled
		result := map[string]any{"handled": out.Handled}
		metric := lo.Ternary(out.Handled, "handled", "ignored")
		if resErr != nil {
			status = models.BillingEventLogStatusHandleFailed
			result["error"] = resErr.Error()
			metric = "failed"
			lg.Errorw("billing event failed", "err", resErr)
		} else {
			s.subs.Record(ctx, changes...)
			lg.Infow("billing event processed", "handled", out.Handled, "user_id", out.UserID)
		}
		log := entry(status)
		log.Result = resultJSON(result)
		s.saveLog(ctx, log)
		s.metrics.BillingEvent(eventType, metric)
	}()

	switch eventType {
	case EventCheckoutSessionCompleted:
		changes, resErr = s.handleCheckoutCompleted(ctx, event, out)
	case EventCustomerSubscriptionUpdated:
		changes, resErr = s.handleSubscriptionChanged(ctx, event, out, false)
	case EventCustomerSubscriptionDeleted:
		changes, resErr = s.handleSubscriptionChanged(ctx, event, out, true)
	default:
		// Acknowledged without change.
	}
	if resErr != nil {
		return nil, resErr
	}
	return out, nil
}

func decodeObject[T any](event stripe.Event) (*T, error) {
	if event.Data == nil || len(event.Data.Raw) == 0 {
		return nil, apperr.Validation("event %s has no data object", event.ID)
	}
	var obj T
	if err := json.Unmarshal(event.Data.Raw, &obj); err != nil {
		return nil, fmt.Errorf("failed to decode %s object: %w", event.Type, err)
	}
	return &obj, nil
}

func (s *Service) handleCheckoutCompleted(ctx context.Context, event stripe.Event, out *Outcome) ([]*subscription.Change, error) {
	session, err := decodeObject[stripe.CheckoutSession](event)
	if err != nil {
		return nil, err
	}
	if session.Subscription == nil || session.Subscription.ID == "" {
		// One-off payments do not change the plan.
		return nil, nil
	}
	userID := session.ClientReferenceID
	if userID == "" {
		userID = session.Metadata["user_id"]
	}
	if userID == "" {
		return nil, apperr.Validation("checkout session %s carries no user reference", session.ID)
	}
	out.UserID = userID

	stripeSub := session.Subscription
	if stripeSub.Items == nil || len(stripeSub.Items.Data) == 0 {
		if stripeSub, err = s.provider.GetSubscription(ctx, stripeSub.ID); err != nil {
			return nil, err
		}
	}
	priceID := subscriptionPriceID(stripeSub)
	plan, err := s.cfg.GetPlanByProviderPriceID(types.PaymentProviderStripe, priceID)
	if err != nil {
		return nil, err
	}

	var change *subscription.Change
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.WithContext(ctx).Select("id").First(&user, "id = ?", userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("user")
			}
			return fmt.Errorf("failed to get user: %w", err)
		}

		m := subscription.NewFree(userID)
		applyStripeSubscription(m, stripeSub, plan)
		if customerID := customerID(session.Customer, stripeSub.Customer); customerID != "" {
			m.StripeCustomerID = lo.ToPtr(customerID)
		}
		var err error
		change, err = s.subs.Upsert(ctx, tx, m, types.SubscriptionChangeReasonCheckoutCompleted, map[string]any{
			"event_id":   event.ID,
			"session_id": session.ID,
		})
		if err != nil {
			return err
		}
		_, err = s.quota.ResetUsage(ctx, tx, userID, plan.MessageLimit())
		return err
	})
	if err != nil {
		return nil, err
	}
	out.Handled = true
	return []*subscription.Change{change}, nil
}

// handleSubscriptionChanged applies updated and deleted events. Usage is never
// touched here; a deleted subscription falls back to Free and the sweeper resets
// usage once the period has ended.
func (s *Service) handleSubscriptionChanged(ctx context.Context, event stripe.Event, out *Outcome, deleted bool) ([]*subscription.Change, error) {
	stripeSub, err := decodeObject[stripe.Subscription](event)
	if err != nil {
		return nil, err
	}
	if stripeSub.ID == "" {
		return nil, apperr.Validation("event %s has no subscription id", event.ID)
	}

	plan := types.PlanFree
	if !deleted {
		if plan, err = s.cfg.GetPlanByProviderPriceID(types.PaymentProviderStripe, subscriptionPriceID(stripeSub)); err != nil {
			return nil, err
		}
	}
	reason := lo.Ternary(deleted, types.SubscriptionChangeReasonSubscriptionDeleted, types.SubscriptionChangeReasonSubscriptionUpdated)

	var change *subscription.Change
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.subs.GetByStripeSubscriptionID(ctx, tx, stripeSub.ID)
		if err != nil {
			return err
		}
		out.UserID = current.UserID
		m := *current
		applyStripeSubscription(&m, stripeSub, plan)
		if deleted {
			m.CancelAtPeriodEnd = false
		}
		change, err = s.subs.Upsert(ctx, tx, &m, reason, map[string]any{"event_id": event.ID})
		return err
	})
	if err != nil {
		return nil, err
	}
	out.Handled = true
	return []*subscription.Change{change}, nil
}

func applyStripeSubscription(m *models.Subscription, src *stripe.Subscription, plan types.Plan) {
	m.Plan = plan
	m.Status = mapStatus(src.Status)
	m.CancelAtPeriodEnd = src.CancelAtPeriodEnd
	m.CurrentPeriodStart = unixPtr(src.CurrentPeriodStart)
	m.CurrentPeriodEnd = unixPtr(src.CurrentPeriodEnd)
	m.StripeSubscriptionID = lo.ToPtr(src.ID)
	if priceID := subscriptionPriceID(src); priceID != "" {
		m.StripePriceID = lo.ToPtr(priceID)
	}
	if src.Customer != nil && src.Customer.ID != "" {
		m.StripeCustomerID = lo.ToPtr(src.Customer.ID)
	}
}

func subscriptionPriceID(sub *stripe.Subscription) string {
	if sub == nil || sub.Items == nil {
		return ""
	}
	for _, item := range sub.Items.Data {
		if item != nil && item.Price != nil && item.Price.ID != "" {
			return item.Price.ID
		}
	}
	return ""
}

func customerID(customers ...*stripe.Customer) string {
	for _, c := range customers {
		if c != nil && c.ID != "" {
			return c.ID
		}
	}
	return ""
}

func unixPtr(sec int64) *time.Time {
	if sec <= 0 {
		return nil
	}
	t := time.Unix(sec, 0).UTC()
	return &t
}

func mapStatus(status stripe.SubscriptionStatus) types.SubscriptionStatus {
	switch status {
	case stripe.SubscriptionStatusActive:
		return types.SubscriptionStatusActive
	case stripe.SubscriptionStatusTrialing:
		return types.SubscriptionStatusTrialing
	case stripe.SubscriptionStatusPastDue, stripe.SubscriptionStatusUnpaid:
		return types.SubscriptionStatusPastDue
	case stripe.SubscriptionStatusCanceled, stripe.SubscriptionStatusIncompleteExpired:
		return types.SubscriptionStatusCanceled
	default:
		return types.SubscriptionStatusInactive
	}
}
