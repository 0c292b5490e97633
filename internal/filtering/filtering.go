// Package filtering narrows the mentor directory down to the candidates worth
// showing for a mentorship, one named step at a time.
package filtering

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/mentor-matcher/internal/directory"
	"github.com/spigell/mentor-matcher/internal/scoring"
)

// Filter represents a single filtering step applied to candidates.
type Filter interface {
	Name() string
	Disable(reason string)
	IsEnabled() bool

	Validate(cfg *Config) error
	Apply(ctx context.Context, deps Deps, c *Candidates) (*Candidates, Step, error)
}

// Deps aggregates dependencies shared across all filtering steps.
type Deps struct {
	Logger     *zap.Logger
	Mentorship *directory.Mentorship
}

// Step describes the result of executing a filtering step.
type Step struct {
	Initial int
	Dropped int
	Left    int
}

// Config contains configuration settings consumed by the filters.
type Config struct {
	RequireAvailable bool
	MinimumScore     int
	// Skip names filters that Browse disables before running.
	Skip []string
}

// Status represents runtime information about a filter.
type Status struct {
	Name    string            `json:"name"`
	Enabled bool              `json:"enabled"`
	Reason  string            `json:"reason,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

type statusProvider interface {
	Status() Status
}

// toggle implements the Disable and IsEnabled half of Filter.
type toggle struct {
	disabled bool
	reason   string
}

func (t *toggle) Disable(reason string) {
	t.disabled = true
	t.reason = reason
}

func (t *toggle) IsEnabled() bool { return !t.disabled }

// Default returns the browse pipeline in the order it runs.
func Default() []Filter {
	return []Filter{
		NewAlreadyInvited(),
		NewTechnology(),
		NewAvailability(),
		NewMinimumScore(),
	}
}

// DisableByName marks a filter with the provided name as disabled while keeping it in the list.
// It reports whether such a filter exists.
func DisableByName(steps []Filter, name, reason string) bool {
	found := false
	for _, step := range steps {
		if step.Name() == name {
			step.Disable(reason)
			found = true
		}
	}
	return found
}

// Pipeline returns Default with every filter named in cfg.Skip disabled.
func Pipeline(cfg *Config) ([]Filter, error) {
	steps := Default()
	if cfg == nil {
		return steps, nil
	}
	for _, name := range cfg.Skip {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if !DisableByName(steps, name, "skipped on request") {
			return nil, fmt.Errorf("unknown filter %q", name)
		}
	}
	return steps, nil
}

// Run executes the supplied filters sequentially.
func Run(ctx context.Context, cfg *Config, deps Deps, steps []Filter, c *Candidates) (*Candidates, error) {
	if deps.Mentorship == nil {
		return nil, fmt.Errorf("mentorship is required")
	}

	for _, step := range steps {
		if !step.IsEnabled() {
			continue
		}
		if err := step.Validate(cfg); err != nil {
			return nil, fmt.Errorf("%s: %w", step.Name(), err)
		}
	}

	for _, step := range steps {
		if !step.IsEnabled() {
			if deps.Logger != nil {
				deps.Logger.Info("filter disabled", zap.String("name", step.Name()))
			}
			continue
		}

		next, info, err := step.Apply(ctx, deps, c)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", step.Name(), err)
		}

		if deps.Logger != nil {
			deps.Logger.Info("filter step",
				zap.String("name", step.Name()),
				zap.String("mentorship_id", deps.Mentorship.ID),
				zap.Int("initial", info.Initial),
				zap.Int("dropped", info.Dropped),
				zap.Int("left", info.Left),
			)
		}

		c = next
	}

	return c, nil
}

// Browse filters mentors for the mentorship and ranks what is left by match score.
func Browse(ctx context.Context, cfg *Config, deps Deps, mentors []*directory.Profile) ([]scoring.Scored, error) {
	steps, err := Pipeline(cfg)
	if err != nil {
		return nil, err
	}
	left, err := Run(ctx, cfg, deps, steps, NewCandidates(mentors))
	if err != nil {
		return nil, err
	}
	return scoring.Rank(deps.Mentorship, left.Items), nil
}

// Describe returns status entries for the provided filters.
func Describe(steps []Filter) []Status {
	statuses := make([]Status, 0, len(steps))
	for _, step := range steps {
		if reporter, ok := step.(statusProvider); ok {
			statuses = append(statuses, reporter.Status())
			continue
		}

		statuses = append(statuses, Status{
			Name:    step.Name(),
			Enabled: step.IsEnabled(),
		})
	}
	return statuses
}
