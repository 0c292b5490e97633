package filtering

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/spigell/mentor-matcher/internal/directory"
	"github.com/spigell/mentor-matcher/internal/scoring"
)

type minimumScoreFilter struct {
	toggle
	minimum int
}

// NewMinimumScore creates a filter that removes mentors scoring below the configured minimum.
func NewMinimumScore() Filter {
	return &minimumScoreFilter{}
}

func (f *minimumScoreFilter) Name() string { return "minimum_score" }

func (f *minimumScoreFilter) Validate(cfg *Config) error {
	f.minimum = 0
	if cfg == nil {
		return nil
	}
	if cfg.MinimumScore < 0 || cfg.MinimumScore > scoring.MaxScore {
		return fmt.Errorf("minimum score must be between 0 and %d, got %d", scoring.MaxScore, cfg.MinimumScore)
	}
	f.minimum = cfg.MinimumScore
	return nil
}

func (f *minimumScoreFilter) Apply(_ context.Context, deps Deps, c *Candidates) (*Candidates, Step, error) {
	initial := c.Len()
	if f.minimum == 0 {
		return c, Step{Initial: initial, Dropped: 0, Left: c.Len()}, nil
	}

	excluded := c.Exclude(func(p *directory.Profile) bool {
		return scoring.Score(scoring.InputFor(deps.Mentorship, p)) < f.minimum
	})
	if deps.Logger != nil && len(excluded) > 0 {
		deps.Logger.Debug("excluding mentors below minimum score",
			zap.Int("minimum_score", f.minimum),
			zap.Strings("excluded_mentors", excluded),
			zap.Int("mentors_left", c.Len()),
		)
	}

	return c, Step{Initial: initial, Dropped: len(excluded), Left: c.Len()}, nil
}

func (f *minimumScoreFilter) Status() Status {
	return Status{
		Name:    f.Name(),
		Enabled: f.IsEnabled(),
		Reason:  f.reason,
		Details: map[string]string{"minimum_score": strconv.Itoa(f.minimum)},
	}
}
