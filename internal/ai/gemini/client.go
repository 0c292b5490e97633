// Package gemini implements ai.Model on top of the Google GenAI chat API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/spigell/mentor-matcher/internal/ai"
	"github.com/spigell/mentor-matcher/internal/apperr"
	"github.com/spigell/mentor-matcher/internal/logger"
	"github.com/spigell/mentor-matcher/internal/utils"
)

const (
	Provider = "gemini"

	defaultModel        = "gemini-2.5-flash"
	defaultMaxRetries   = 3
	defaultMaxLogLength = 200

	// Quota errors asking to come back later than this are not retried.
	maxQuotaDelay = 10 * time.Second
	baseBackoff   = time.Second
)

var sleep = time.Sleep

type chats interface {
	Create(ctx context.Context, model string, config *genai.GenerateContentConfig, history []*genai.Content) (chatSession, error)
}

type chatSession interface {
	SendMessage(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

type sdkChats struct {
	chats *genai.Chats
}

func (s sdkChats) Create(ctx context.Context, model string, config *genai.GenerateContentConfig, history []*genai.Content) (chatSession, error) {
	chat, err := s.chats.Create(ctx, model, config, history)
	if err != nil {
		return nil, err
	}
	return chat, nil
}

type Config struct {
	APIKey       string
	Model        string
	MaxRetries   int
	MaxLogLength int
}

// Generator sends chat requests to Gemini, retrying transient API failures.
type Generator struct {
	chats      chats
	model      string
	maxRetries int
	maxLogLen  int
	logger     *zap.Logger
}

var _ ai.Model = (*Generator)(nil)

// New creates a Generator configured for the Gemini API backend.
func New(ctx context.Context, cfg Config, log *zap.Logger) (*Generator, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModel
	}
	retries := cfg.MaxRetries
	if retries <= 0 {
		retries = defaultMaxRetries
	}
	maxLogLen := cfg.MaxLogLength
	if maxLogLen <= 0 {
		maxLogLen = defaultMaxLogLength
	}

	return &Generator{
		chats:      sdkChats{chats: client.Chats},
		model:      model,
		maxRetries: retries,
		maxLogLen:  maxLogLen,
		logger:     logger.WithFields(log, logger.AIFields(Provider, model)...),
	}, nil
}

func (g *Generator) Provider() string { return Provider }

func (g *Generator) Model() string {
	if g == nil {
		return ""
	}
	return g.model
}

// Generate implements ai.Model. Every turn but the last becomes chat history,
// the last one is sent as the new message.
func (g *Generator) Generate(ctx context.Context, req ai.Request) (string, error) {
	if g == nil || g.chats == nil {
		return "", apperr.New(apperr.ModelUnavailable, "gemini generator is not initialized")
	}
	if err := req.Validate(); err != nil {
		return "", err
	}

	config := &genai.GenerateContentConfig{}
	if system := strings.TrimSpace(req.System); system != "" {
		config.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	history := make([]*genai.Content, 0, len(req.Turns)-1)
	for _, turn := range req.Turns[:len(req.Turns)-1] {
		history = append(history, genai.NewContentFromText(turn.Content, toGenaiRole(turn.Role)))
	}
	message := req.Turns[len(req.Turns)-1].Content

	log := g.log()
	log.Debug("gemini chat request",
		zap.Int("history_turns", len(history)),
		zap.Int("message_length", utf8.RuneCountInString(message)),
		zap.String("message_preview", utils.TruncateForLog(message, g.maxLogLen)),
	)

	attempts := max(g.maxRetries, 1)
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		output, err := g.send(ctx, config, history, message)
		if err == nil {
			log.Debug("gemini chat response",
				zap.Int("attempt", attempt),
				zap.Int("response_length", utf8.RuneCountInString(output)),
				zap.String("response_preview", utils.TruncateForLog(output, g.maxLogLen)),
			)
			return output, nil
		}
		lastErr = err

		delay, retry := retryDelay(err, attempt)
		if !retry || attempt == attempts {
			break
		}

		log.Warn("gemini request failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		if err := g.wait(ctx, delay); err != nil {
			lastErr = err
			break
		}
	}

	return "", apperr.Wrap(apperr.ModelUnavailable, lastErr, "gemini request failed")
}

func (g *Generator) send(ctx context.Context, config *genai.GenerateContentConfig, history []*genai.Content, message string) (string, error) {
	chat, err := g.chats.Create(ctx, g.model, config, history)
	if err != nil {
		return "", fmt.Errorf("create chat: %w", err)
	}

	resp, err := chat.SendMessage(ctx, genai.Part{Text: message})
	if err != nil {
		return "", fmt.Errorf("send message: %w", err)
	}

	return responseText(resp)
}

func (g *Generator) log() *zap.Logger {
	if g.logger == nil {
		return zap.NewNop()
	}
	return g.logger
}

// wait sleeps for d unless ctx ends first.
func (g *Generator) wait(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	pause := sleep
	done := make(chan struct{})
	go func() {
		defer close(done)
		pause(d)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

func toGenaiRole(role ai.Role) genai.Role {
	if role == ai.RoleAssistant {
		return genai.RoleModel
	}
	return genai.RoleUser
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", errors.New("gemini api returned no response")
	}

	var builder strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil {
				continue
			}
			text := strings.TrimSpace(part.Text)
			if text == "" {
				continue
			}
			if builder.Len() > 0 {
				builder.WriteString("\n")
			}
			builder.WriteString(text)
		}
	}

	output := strings.TrimSpace(builder.String())
	if output == "" {
		return "", errors.New("gemini api returned empty response")
	}
	return output, nil
}

var retryAfterPattern = regexp.MustCompile(`(?i)retry (?:after|in) ([0-9]+(?:\.[0-9]+)?)\s*(ms|s|sec|secs|seconds?)?`)

// retryDelay reports whether err is worth another attempt and how long to wait first.
func retryDelay(err error, attempt int) (time.Duration, bool) {
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		var apiErrPtr *genai.APIError
		if !errors.As(err, &apiErrPtr) || apiErrPtr == nil {
			return 0, false
		}
		apiErr = *apiErrPtr
	}

	backoff := baseBackoff * time.Duration(attempt)

	switch apiErr.Code {
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return backoff, true
	case http.StatusTooManyRequests:
		delay, ok := quotaDelay(apiErr)
		if !ok {
			return backoff, true
		}
		if delay > maxQuotaDelay {
			return 0, false
		}
		return max(delay, backoff), true
	default:
		return 0, false
	}
}

// quotaDelay extracts the server-suggested wait from a RESOURCE_EXHAUSTED error.
func quotaDelay(apiErr genai.APIError) (time.Duration, bool) {
	for _, detail := range apiErr.Details {
		raw, ok := detail["retryDelay"].(string)
		if !ok {
			continue
		}
		if d, err := time.ParseDuration(strings.TrimSpace(raw)); err == nil {
			return d, true
		}
	}

	match := retryAfterPattern.FindStringSubmatch(apiErr.Message)
	if match == nil {
		return 0, false
	}
	value, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return 0, false
	}
	if strings.EqualFold(match[2], "ms") {
		return time.Duration(value * float64(time.Millisecond)), true
	}
	return time.Duration(value * float64(time.Second)), true
}
