// Package recommend ranks mentors for a mentee's challenge with the language
// model and falls back to a deterministic ranking whenever the model cannot
// produce a usable answer.
package recommend

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	_ "embed"

	"go.uber.org/zap"

	"github.com/spigell/mentor-matcher/internal/ai"
	"github.com/spigell/mentor-matcher/internal/apperr"
	"github.com/spigell/mentor-matcher/internal/directory"
	"github.com/spigell/mentor-matcher/internal/tools"
	"github.com/spigell/mentor-matcher/internal/utils"
)

const (
	searchLimit       = 20
	directoryLimit    = 50
	topMentorsLimit   = 3
	otherMentorsLimit = 10

	NoMentorsMessage = "no mentors found"

	defaultTimeout      = 30 * time.Second
	defaultMaxLogLength = 200
)

//go:embed system_prompt.md
var systemPrompt string

//go:embed user_prompt.md
var userPromptTemplate string

type Request struct {
	MenteeID             string   `json:"menteeId"`
	Technologies         []string `json:"technologies"`
	ChallengeDescription string   `json:"challengeDescription"`
}

// RankedMentor is a directory profile with the reason it was picked.
type RankedMentor struct {
	*directory.Profile
	AIInsight string `json:"aiInsight"`
}

type Result struct {
	TopMentors   []RankedMentor       `json:"topMentors"`
	OtherMentors []*directory.Profile `json:"otherMentors"`
	Message      string               `json:"message"`

	// Fallback is set when the deterministic ranking was used. It is not serialized.
	Fallback bool `json:"-"`
}

type Service struct {
	tools     tools.Runner
	model     ai.Model
	timeout   time.Duration
	maxLogLen int
	logger    *zap.Logger
}

type Option func(*Service)

// WithTimeout bounds the model call.
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

// Recommend returns up to three ranked mentors plus the remaining matches.
// Only a failing directory search is returned as an error; model problems
// end in the deterministic ranking.
func (s *Service) Recommend(ctx context.Context, req Request) (*Result, error) {
	menteeID := strings.TrimSpace(req.MenteeID)
	if menteeID == "" {
		return nil, apperr.New(apperr.InvalidArgument, "menteeId is required")
	}
	technologies := utils.CleanList(req.Technologies)
	if len(technologies) == 0 {
		return nil, apperr.New(apperr.InvalidArgument, "at least one technology is required")
	}

	log := s.logger.With(zap.String("mentee_id", menteeID))

	env := s.tools.Execute(ctx, tools.SearchMentorsByTechnology, map[string]any{
		"technologies": technologies,
		"limit":        searchLimit,
	})
	if err := env.Err(); err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "search mentors")
	}

	candidates := env.Mentors
	if len(candidates) == 0 {
		log.Info("no mentors matched", zap.Strings("technologies", technologies))
		return &Result{TopMentors: []RankedMentor{}, OtherMentors: []*directory.Profile{}, Message: NoMentorsMessage}, nil
	}

	top, err := s.rank(ctx, log, req.ChallengeDescription, technologies, candidates)
	fallback := err != nil
	if fallback {
		log.Warn("using deterministic ranking", zap.String("reason_code", string(apperr.CodeOf(err))), zap.Error(err))
		top = fallbackRanking(technologies, candidates)
	}

	result := &Result{
		TopMentors:   top,
		OtherMentors: otherMentors(top, candidates, s.directoryMentors(ctx, log)),
		Message:      fmt.Sprintf("found %d matching mentors", len(candidates)),
		Fallback:     fallback,
	}

	log.Info("recommendation ready",
		zap.Int("candidates", len(candidates)),
		zap.Int("top_mentors", len(result.TopMentors)),
		zap.Int("other_mentors", len(result.OtherMentors)),
		zap.Bool("fallback", fallback),
	)
	return result, nil
}

func (s *Service) rank(ctx context.Context, log *zap.Logger, challenge string, technologies []string, candidates []*directory.Profile) ([]RankedMentor, error) {
	prompt, err := buildUserPrompt(challenge, technologies, candidates)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "build ranking prompt")
	}

	log.Debug("ranking request",
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, s.maxLogLen)),
	)

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	raw, err := s.model.Generate(callCtx, ai.Request{
		System: systemPrompt,
		Turns:  []ai.Turn{{Role: ai.RoleUser, Content: prompt}},
	})
	if err != nil {
		if apperr.Classified(err) {
			return nil, err
		}
		return nil, apperr.Wrap(apperr.ModelUnavailable, err, "generate ranking")
	}

	log.Debug("ranking response",
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, s.maxLogLen)),
	)

	return parseRanking(raw, candidates, topMentorsLimit)
}

type promptCandidate struct {
	UID               string   `json:"uid"`
	DisplayName       string   `json:"displayName"`
	Bio               string   `json:"bio,omitempty"`
	Technologies      []string `json:"technologies"`
	YearsOfExperience int      `json:"yearsOfExperience"`
	Rating            float64  `json:"rating"`
	TotalMentees      int      `json:"totalMentees"`
	Availability      string   `json:"availability,omitempty"`
}

func buildUserPrompt(challenge string, technologies []string, candidates []*directory.Profile) (string, error) {
	payload := make([]promptCandidate, 0, len(candidates))
	for _, c := range candidates {
		payload = append(payload, promptCandidate{
			UID:               c.UID,
			DisplayName:       c.DisplayName,
			Bio:               c.Bio,
			Technologies:      c.TechnologyNames(),
			YearsOfExperience: c.YearsOfExperience,
			Rating:            c.Rating,
			TotalMentees:      c.TotalMentees,
			Availability:      c.Availability,
		})
	}
	candidatesJSON, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal candidates: %w", err)
	}

	challenge = strings.TrimSpace(challenge)
	if challenge == "" {
		challenge = "(not provided)"
	}

	prompt := strings.ReplaceAll(userPromptTemplate, "{{CHALLENGE}}", challenge)
	prompt = strings.ReplaceAll(prompt, "{{TECHNOLOGIES}}", strings.Join(technologies, ", "))
	prompt = strings.ReplaceAll(prompt, "{{CANDIDATES_JSON}}", string(candidatesJSON))
	return prompt, nil
}

// fallbackRanking keeps the search order and explains each pick from the profile.
func fallbackRanking(technologies []string, candidates []*directory.Profile) []RankedMentor {
	n := min(topMentorsLimit, len(candidates))
	ranked := make([]RankedMentor, 0, n)
	for _, c := range candidates[:n] {
		ranked = append(ranked, RankedMentor{Profile: c, AIInsight: fallbackInsight(technologies, c)})
	}
	return ranked
}

func fallbackInsight(technologies []string, p *directory.Profile) string {
	return fmt.Sprintf("Experienced in %s with %d years of experience and a %s rating.",
		strings.Join(technologies, ", "),
		p.YearsOfExperience,
		strconv.FormatFloat(p.Rating, 'f', -1, 64),
	)
}

// directoryMentors lists mentors beyond the search results. A failure only
// shortens otherMentors, so it is logged and swallowed.
func (s *Service) directoryMentors(ctx context.Context, log *zap.Logger) []*directory.Profile {
	env := s.tools.Execute(ctx, tools.GetAllMentors, map[string]any{"limit": directoryLimit})
	if err := env.Err(); err != nil {
		log.Warn("listing mentors for otherMentors failed", zap.Error(err))
		return nil
	}
	return env.Mentors
}

// otherMentors lists unpicked search matches first, then the rest of the
// directory, skipping anything already in top.
func otherMentors(top []RankedMentor, groups ...[]*directory.Profile) []*directory.Profile {
	seen := make(map[string]struct{}, len(top))
	for _, m := range top {
		seen[m.UID] = struct{}{}
	}

	others := make([]*directory.Profile, 0, otherMentorsLimit)
	for _, group := range groups {
		for _, c := range group {
			if len(others) == otherMentorsLimit {
				return others
			}
			if _, ok := seen[c.UID]; ok {
				continue
			}
			seen[c.UID] = struct{}{}
			others = append(others, c)
		}
	}
	return others
}
