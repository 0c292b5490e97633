// Package ai defines the language model abstraction the orchestrators talk to.
package ai

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/mentor-matcher/internal/apperr"
	"github.com/spigell/mentor-matcher/internal/logger"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message of a conversation.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Request is a single model invocation: a system instruction plus ordered
// turns, the last of which is the user message being answered.
type Request struct {
	System string
	Turns  []Turn
}

// Validate checks that the request ends with a non-empty user turn.
func (r Request) Validate() error {
	if len(r.Turns) == 0 {
		return apperr.New(apperr.InvalidArgument, "model request has no turns")
	}
	last := r.Turns[len(r.Turns)-1]
	if last.Role != RoleUser {
		return apperr.New(apperr.InvalidArgument, "model request must end with a user turn, got %q", last.Role)
	}
	if strings.TrimSpace(last.Content) == "" {
		return apperr.New(apperr.InvalidArgument, "model request user turn is empty")
	}
	return nil
}

// Model generates a text completion.
type Model interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Describer is implemented by models that can name their provider and model.
type Describer interface {
	Provider() string
	Model() string
}

// Fields returns the ai_provider/ai_model log fields for m when it describes itself.
func Fields(m Model) []zap.Field {
	d, ok := m.(Describer)
	if !ok {
		return nil
	}
	return logger.AIFields(d.Provider(), d.Model())
}

// ModelFunc adapts a function to Model.
type ModelFunc func(ctx context.Context, req Request) (string, error)

func (f ModelFunc) Generate(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// Unavailable is the model used when AI is disabled or not configured. Every
// call fails with ModelUnavailable so callers take their fallback path.
type Unavailable struct {
	Reason string
}

func (u Unavailable) Generate(context.Context, Request) (string, error) {
	reason := strings.TrimSpace(u.Reason)
	if reason == "" {
		reason = "language model is not configured"
	}
	return "", apperr.New(apperr.ModelUnavailable, "%s", reason)
}

func (u Unavailable) Provider() string { return "none" }

func (u Unavailable) Model() string { return "" }
