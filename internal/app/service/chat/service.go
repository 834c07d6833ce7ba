package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/fatflowers/fplcoach/internal/app/service/quota"
	"github.com/fatflowers/fplcoach/internal/models"
	"github.com/fatflowers/fplcoach/internal/platform/fpl"
	"github.com/fatflowers/fplcoach/pkg/apperr"
	"github.com/fatflowers/fplcoach/pkg/logctx"
	"github.com/fatflowers/fplcoach/pkg/metrics"
	"github.com/fatflowers/fplcoach/pkg/tool"
	"github.com/fatflowers/fplcoach/pkg/types"
)

// Assistant answers one prompt.
type Assistant interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

type Service struct {
	db        *gorm.DB
	quota     *quota.Service
	source    fpl.Source
	assistant Assistant
	metrics   *metrics.Business
	log       *zap.SugaredLogger
	now       func() time.Time
}

func NewService(db *gorm.DB, q *quota.Service, source fpl.Source, assistant Assistant, m *metrics.Business, log *zap.SugaredLogger) *Service {
	return &Service{db: db, quota: q, source: source, assistant: assistant, metrics: m, log: log, now: time.Now}
}

type SendRequest struct {
	Message        string `json:"message" validate:"required,max=2000"`
	ConversationID string `json:"conversation_id,omitempty" validate:"max=64"`
}

type SendResponse struct {
	ConversationID string `json:"conversation_id"`
	Answer         string `json:"answer"`
	Used           int    `json:"messages_used"`
	Limit          int    `json:"messages_limit"`
	Remaining      int    `json:"messages_remaining"`
}

// Send answers a question. The message is counted, and both sides of the
// exchange are stored, only after the assistant answered.
func (s *Service) Send(ctx context.Context, userID string, req SendRequest) (*SendResponse, error) {
	req.Message = strings.TrimSpace(req.Message)
	req.ConversationID = strings.TrimSpace(req.ConversationID)
	if err := apperr.Struct(req); err != nil {
		return nil, err
	}
	question := req.Message

	var history []*models.ChatMessage
	conversationID := req.ConversationID
	if conversationID == "" {
		conversationID = tool.GenerateUUIDV7()
	} else {
		if err := s.checkOwner(ctx, userID, conversationID); err != nil {
			return nil, err
		}
		var err error
		if history, err = s.History(ctx, userID, conversationID); err != nil {
			return nil, err
		}
	}

	allowance, err := s.quota.CanSend(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !allowance.Allowed {
		s.metrics.QuotaRejected()
		return nil, &apperr.QuotaExceededError{Used: allowance.Used, Limit: allowance.Limit}
	}

	snap, err := s.source.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	start := s.now()
	answer, err := s.assistant.Complete(ctx, BuildPrompt(snap, history, question))
	result := "ok"
	switch {
	case errors.Is(err, apperr.ErrExternalServiceTimeout):
		result = "timeout"
	case err != nil:
		result = "error"
	}
	s.metrics.AssistantLatency(result, float64(s.now().Sub(start).Milliseconds()))
	if err != nil {
		logctx.FromCtx(ctx, s.log).Warnw("assistant call failed", "conversation_id", conversationID, "err", err)
		return nil, err
	}

	now := s.now()
	usage, err := s.quota.RecordSend(ctx, userID, func(tx *gorm.DB) error {
		msgs := []*models.ChatMessage{
			{ID: tool.GenerateUUIDV7(), UserID: userID, ConversationID: conversationID, Role: types.ChatRoleUser, Content: question, CreatedAt: now},
			{ID: tool.GenerateUUIDV7(), UserID: userID, ConversationID: conversationID, Role: types.ChatRoleAssistant, Content: answer, CreatedAt: now.Add(time.Millisecond)},
		}
		if err := tx.WithContext(ctx).Create(msgs).Error; err != nil {
			return fmt.Errorf("failed to save chat messages: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &SendResponse{
		ConversationID: conversationID,
		Answer:         answer,
		Used:           usage.MessagesUsed,
		Limit:          usage.MessagesLimit,
		Remaining:      usage.Remaining(),
	}, nil
}

func (s *Service) checkOwner(ctx context.Context, userID, conversationID string) error {
	var foreign int64
	err := s.db.WithContext(ctx).Model(&models.ChatMessage{}).
		Where("conversation_id = ? AND user_id <> ?", conversationID, userID).
		Count(&foreign).Error
	if err != nil {
		return fmt.Errorf("failed to check conversation: %w", err)
	}
	if foreign > 0 {
		return apperr.NotFound("conversation")
	}
	return nil
}

// History returns the user's messages of a conversation, oldest first.
func (s *Service) History(ctx context.Context, userID, conversationID string) ([]*models.ChatMessage, error) {
	var rows []*models.ChatMessage
	err := s.db.WithContext(ctx).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}
	return rows, nil
}
