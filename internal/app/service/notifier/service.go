package notifier

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/fatflowers/fplcoach/internal/models"
	"github.com/fatflowers/fplcoach/internal/platform/mail"
	cfgpkg "github.com/fatflowers/fplcoach/pkg/config"
	"github.com/fatflowers/fplcoach/pkg/logctx"
	"github.com/fatflowers/fplcoach/pkg/tool"
	"github.com/fatflowers/fplcoach/pkg/types"
)

// Service implements a transactional outbox for user and admin emails.
// Events are written with the state change and delivered after commit;
// delivery failures only mark the event failed.
type Service struct {
	db     *gorm.DB
	mailer mail.Mailer
	cfg    *cfgpkg.Config
	log    *zap.SugaredLogger
	now    func() time.Time
}

func NewService(db *gorm.DB, mailer mail.Mailer, cfg *cfgpkg.Config, log *zap.SugaredLogger) *Service {
	return &Service{db: db, mailer: mailer, cfg: cfg, log: log, now: time.Now}
}

// AdminAddress is where claim notifications go; empty disables them.
func (s *Service) AdminAddress() string {
	return s.cfg.Mail.AdminAddress
}

// Enqueue stores a pending event inside tx. An empty recipient is skipped.
func (s *Service) Enqueue(ctx context.Context, tx *gorm.DB, kind types.OutboxKind, recipient string, payload map[string]any) (*models.OutboxEvent, error) {
	if strings.TrimSpace(recipient) == "" {
		return nil, nil
	}
	ev := &models.OutboxEvent{
		ID:        tool.GenerateUUIDV7(),
		Kind:      kind,
		Recipient: recipient,
		Payload:   datatypes.JSONMap(payload),
		Status:    types.OutboxStatusPending,
	}
	if ev.Payload == nil {
		ev.Payload = datatypes.JSONMap{}
	}
	if err := tx.WithContext(ctx).Create(ev).Error; err != nil {
		return nil, fmt.Errorf("failed to enqueue %s event: %w", kind, err)
	}
	return ev, nil
}

// Dispatch delivers committed events in the background.
func (s *Service) Dispatch(ctx context.Context, events ...*models.OutboxEvent) {
	pending := make([]*models.OutboxEvent, 0, len(events))
	for _, ev := range events {
		if ev != nil {
			pending = append(pending, ev)
		}
	}
	if len(pending) == 0 {
		return
	}
	bg := context.WithoutCancel(ctx)
	go func() {
		for _, ev := range pending {
			_ = s.Deliver(bg, ev)
		}
	}()
}

// Deliver sends one event and records the outcome on its row.
func (s *Service) Deliver(ctx context.Context, ev *models.OutboxEvent) error {
	lg := logctx.FromCtx(ctx, s.log)
	subject, body, err := s.render(ev)
	if err == nil {
		err = s.mailer.Send(ctx, ev.Recipient, subject, body)
	}

	updates := map[string]any{
		"attempts":   gorm.Expr("attempts + ?", 1),
		"updated_at": s.now(),
	}
	if err != nil {
		lg.Warnw("outbox delivery failed", "event_id", ev.ID, "kind", ev.Kind, "err", err)
		updates["status"] = types.OutboxStatusFailed
		updates["last_error"] = err.Error()
	} else {
		updates["status"] = types.OutboxStatusSent
		updates["sent_at"] = s.now()
		updates["last_error"] = nil
	}
	if uerr := s.db.WithContext(ctx).Model(&models.OutboxEvent{}).Where("id = ?", ev.ID).Updates(updates).Error; uerr != nil {
		lg.Errorf("failed to update outbox event %s: %v", ev.ID, uerr)
	}
	return err
}

func (s *Service) render(ev *models.OutboxEvent) (string, string, error) {
	p := func(key string) string {
		if v, ok := ev.Payload[key]; ok && v != nil {
			return fmt.Sprint(v)
		}
		return ""
	}
	appURL := strings.TrimRight(s.cfg.Mail.AppURL, "/")
	switch ev.Kind {
	case types.OutboxKindVerifyEmail:
		body := fmt.Sprintf("Hi %s,\n\nConfirm your address to unlock rewards:\n%s/verify-email?token=%s\n", p("name"), appURL, p("token"))
		if ttl := s.cfg.Auth.VerificationTTL; ttl > 0 {
			body += fmt.Sprintf("\nThe link expires in %s.\n", humanizeTTL(ttl))
		}
		return "Verify your FPL Coach email", body, nil
	case types.OutboxKindClaimSubmitted:
		return fmt.Sprintf("New %s claim pending review", p("action_type")),
			fmt.Sprintf("User %s submitted a %s claim worth %s messages.\nProof: %s\nClaim: %s\n",
				p("email"), p("action_type"), p("reward_messages"), p("proof_url"), p("claim_id")), nil
	case types.OutboxKindClaimDecided:
		if p("status") == string(types.ClaimStatusVerified) {
			return "Your reward was approved",
				fmt.Sprintf("Good news: your %s claim was approved and %s bonus messages were added to this month's allowance.\n",
					p("action_type"), p("reward_messages")), nil
		}
		return "Your reward claim was not approved",
			fmt.Sprintf("We could not verify your %s claim. Reply to this email if you think this is a mistake.\n", p("action_type")), nil
	default:
		return "", "", fmt.Errorf("unknown outbox kind %q", ev.Kind)
	}
}

// humanizeTTL spells a link lifetime the way the emails show it.
func humanizeTTL(d time.Duration) string {
	switch {
	case d%(24*time.Hour) == 0 && d > 24*time.Hour:
		return fmt.Sprintf("%d days", int(d/(24*time.Hour)))
	case d == time.Hour:
		return "1 hour"
	case d%time.Hour == 0:
		return fmt.Sprintf("%d hours", int(d/time.Hour))
	case d%time.Minute == 0:
		return fmt.Sprintf("%d minutes", int(d/time.Minute))
	}
	return d.String()
}
