// Package chat answers free-form questions, grounding the model with at most
// one directory lookup per turn.
package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	_ "embed"

	"go.uber.org/zap"

	"github.com/spigell/mentor-matcher/internal/ai"
	"github.com/spigell/mentor-matcher/internal/apperr"
	"github.com/spigell/mentor-matcher/internal/tools"
	"github.com/spigell/mentor-matcher/internal/utils"
)

const (
	defaultTimeout      = 30 * time.Second
	defaultMaxLogLength = 200
)

//go:embed system_prompt.md
var systemPromptTemplate string

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Request struct {
	Message string    `json:"message"`
	History []Message `json:"chatHistory"`
}

type StepType string

const (
	StepThinking   StepType = "thinking"
	StepToolCall   StepType = "tool_call"
	StepToolResult StepType = "tool_result"
	StepError      StepType = "error"
)

// ThinkingStep is advisory metadata describing how a response was produced.
type ThinkingStep struct {
	Type     StepType `json:"type"`
	Message  string   `json:"message"`
	ToolName string   `json:"toolName,omitempty"`
}

type Response struct {
	Response      string         `json:"response"`
	ThinkingSteps []ThinkingStep `json:"thinkingSteps"`
}

type Service struct {
	tools     tools.Runner
	model     ai.Model
	now       func() time.Time
	timeout   time.Duration
	maxLogLen int
	logger    *zap.Logger
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func WithMaxLogLength(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxLogLen = n
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

func New(runner tools.Runner, model ai.Model, opts ...Option) *Service {
	if model == nil {
		model = ai.Unavailable{}
	}
	s := &Service{
		tools:     runner,
		model:     model,
		now:       time.Now,
		timeout:   defaultTimeout,
		maxLogLen: defaultMaxLogLength,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(ai.Fields(model)...)
	return s
}

// Apology is the response given whenever a turn cannot be answered.
func Apology(err error) string {
	return fmt.Sprintf("I'm sorry, I ran into a problem while answering your question: %v. Please try again.", err)
}

// Respond answers one chat turn. It never fails: problems become an apology
// response and an error thinking step.
func (s *Service) Respond(ctx context.Context, req Request) *Response {
	steps := make([]ThinkingStep, 0, 5)
	fail := func(err error) *Response {
		s.logger.Warn("chat turn failed", zap.Error(err))
		steps = append(steps, ThinkingStep{Type: StepError, Message: err.Error()})
		return &Response{Response: Apology(err), ThinkingSteps: steps}
	}

	message := strings.TrimSpace(req.Message)
	if message == "" {
		return fail(apperr.New(apperr.InvalidArgument, "message is empty"))
	}

	intent := Classify(message)
	steps = append(steps, ThinkingStep{Type: StepThinking, Message: fmt.Sprintf("Understood the question as %s", intent)})

	var toolContext string
	if call, ok := Plan(intent, message); ok {
		steps = append(steps, ThinkingStep{Type: StepToolCall, Message: describeCall(call), ToolName: call.Name})

		env := s.tools.Execute(ctx, call.Name, call.Args)
		if err := env.Err(); err != nil {
			return fail(err)
		}

		raw, err := json.Marshal(env)
		if err != nil {
			return fail(apperr.Wrap(apperr.Internal, err, "encode tool result"))
		}
		toolContext = string(raw)
		steps = append(steps, ThinkingStep{Type: StepToolResult, Message: describeResult(env), ToolName: call.Name})
	}

	aiReq := ai.Request{
		System: s.systemPrompt(toolContext),
		Turns:  append(historyTurns(req.History), ai.Turn{Role: ai.RoleUser, Content: message}),
	}

	s.logger.Debug("chat request",
		zap.String("intent", string(intent)),
		zap.Int("history_turns", len(aiReq.Turns)-1),
		zap.Bool("grounded", toolContext != ""),
		zap.String("message_preview", utils.TruncateForLog(message, s.maxLogLen)),
	)

	steps = append(steps, ThinkingStep{Type: StepThinking, Message: "Writing the answer"})

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	answer, err := s.model.Generate(callCtx, aiReq)
	if err != nil {
		return fail(err)
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return fail(apperr.New(apperr.ParseFailure, "the model returned an empty answer"))
	}

	s.logger.Debug("chat response",
		zap.Int("response_length", utf8.RuneCountInString(answer)),
		zap.String("response_preview", utils.TruncateForLog(answer, s.maxLogLen)),
	)

	return &Response{Response: answer, ThinkingSteps: steps}
}

func (s *Service) systemPrompt(toolContext string) string {
	prompt := strings.ReplaceAll(systemPromptTemplate, "{{DATE}}", s.now().Format("Monday, 2 January 2006"))
	prompt = strings.TrimSpace(prompt)
	if toolContext != "" {
		prompt += "\n\nTool context:\n" + toolContext
	}
	return prompt
}

// historyTurns maps prior messages onto model turns. Unknown roles and empty
// messages are dropped rather than folded into the system instruction.
func historyTurns(history []Message) []ai.Turn {
	turns := make([]ai.Turn, 0, len(history)+1)
	for _, m := range history {
		content := strings.TrimSpace(m.Content)
		if content == "" {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(m.Role)) {
		case string(ai.RoleUser):
			turns = append(turns, ai.Turn{Role: ai.RoleUser, Content: content})
		case string(ai.RoleAssistant):
			turns = append(turns, ai.Turn{Role: ai.RoleAssistant, Content: content})
		}
	}
	return turns
}

func describeCall(c ToolCall) string {
	if techs, ok := c.Args["technologies"].([]string); ok {
		return fmt.Sprintf("Searching mentors who know %s", strings.Join(techs, ", "))
	}
	switch c.Name {
	case tools.GetAllMentors:
		return "Listing available mentors"
	case tools.GetSystemStatistics:
		return "Looking up platform statistics"
	default:
		return "Calling " + c.Name
	}
}

func describeResult(env *tools.Envelope) string {
	switch {
	case env.Statistics != nil:
		return fmt.Sprintf("Platform has %d mentors and %d mentees", env.Statistics.TotalMentors, env.Statistics.TotalMentees)
	case env.Mentors != nil:
		return fmt.Sprintf("Found %d mentor(s)", len(env.Mentors))
	case env.Message != "":
		return env.Message
	default:
		return "Lookup finished"
	}
}
