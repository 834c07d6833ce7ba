package assistant

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/fatflowers/fplcoach/pkg/apperr"
	cfgpkg "github.com/fatflowers/fplcoach/pkg/config"
)

const systemPrompt = "You are an expert Fantasy Premier League assistant. Answer only from the data provided and say so when the data is missing."

// Client sends one enriched prompt to an OpenAI compatible chat endpoint.
type Client struct {
	api     *openai.Client
	model   string
	timeout time.Duration
}

func New(cfg *cfgpkg.Config) *Client {
	oc := openai.DefaultConfig(cfg.AI.APIKey)
	if cfg.AI.BaseURL != "" {
		oc.BaseURL = strings.TrimRight(cfg.AI.BaseURL, "/")
	}
	oc.HTTPClient = &http.Client{}
	return &Client{
		api:     openai.NewClientWithConfig(oc),
		model:   cfg.AI.Model,
		timeout: cfg.AI.Timeout,
	}
}

// Complete returns the answer text. A call that outlives the configured
// timeout fails with apperr.ErrExternalServiceTimeout, any other failure with
// apperr.ErrExternalService.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: assistant: %v", apperr.ErrExternalServiceTimeout, err)
		}
		return "", fmt.Errorf("%w: assistant: %v", apperr.ErrExternalService, err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", fmt.Errorf("%w: assistant returned an empty answer", apperr.ErrExternalService)
	}
	return resp.Choices[0].Message.Content, nil
}
