package usecase

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"mentor-relay/internal/domain"
)

// User-facing replies for generation failures.
const (
	ReplyInvalidRequest = "There was an error with your request. Please check your input and try again."
	ReplyAuthError      = "There was an authentication error. Please verify your API key."
	ReplyUnexpected     = "An unexpected error occurred. Please try again later."
)

type LLMClient interface {
	Chat(ctx context.Context, model string, maxTokens int64, messages []domain.ChatMessage) (string, error)
}

type httpStatusCoder interface {
	HTTPStatusCode() int
}

// Generator produces reply text and never fails: provider errors degrade to
// fixed apology strings.
type Generator struct {
	llm       LLMClient
	model     string
	maxTokens int64
}

func NewGenerator(llm LLMClient, model string, maxTokens int64) (*Generator, error) {
	if llm == nil {
		return nil, errors.New("usecase: llm client must not be nil")
	}
	if model == "" {
		return nil, errors.New("usecase: model must not be empty")
	}
	return &Generator{llm: llm, model: model, maxTokens: maxTokens}, nil
}

func (g *Generator) Generate(ctx context.Context, messages []domain.ChatMessage) string {
	out, err := g.llm.Chat(ctx, g.model, g.maxTokens, messages)
	if err != nil {
		reply := fallbackReply(err)
		slog.ErrorContext(ctx, "generation failed", "err", err, "reply", reply)
		return reply
	}
	return out
}

func fallbackReply(err error) string {
	status, ok := upstreamStatusCode(err)
	if !ok {
		return ReplyUnexpected
	}
	switch status {
	case http.StatusBadRequest, http.StatusNotFound, http.StatusUnprocessableEntity:
		return ReplyInvalidRequest
	case http.StatusUnauthorized, http.StatusForbidden:
		return ReplyAuthError
	}
	return ReplyUnexpected
}

func upstreamStatusCode(err error) (int, bool) {
	var statusErr httpStatusCoder
	if !errors.As(err, &statusErr) {
		return 0, false
	}
	return statusErr.HTTPStatusCode(), true
}
