package filtering

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/mentor-matcher/internal/directory"
)

type technologyFilter struct {
	toggle
}

// NewTechnology creates a filter that keeps mentors knowing at least one of the mentorship technologies.
func NewTechnology() Filter {
	return &technologyFilter{}
}

func (f *technologyFilter) Name() string { return "technology" }

func (f *technologyFilter) Validate(*Config) error { return nil }

func (f *technologyFilter) Apply(_ context.Context, deps Deps, c *Candidates) (*Candidates, Step, error) {
	initial := c.Len()
	wanted := deps.Mentorship.Technologies
	if len(wanted) == 0 {
		return c, Step{Initial: initial, Dropped: 0, Left: c.Len()}, nil
	}

	excluded := c.Exclude(func(p *directory.Profile) bool {
		return !p.KnowsAny(wanted)
	})
	if deps.Logger != nil && len(excluded) > 0 {
		deps.Logger.Debug("excluding mentors without matching technologies",
			zap.String("technologies", strings.Join(wanted, ",")),
			zap.Strings("excluded_mentors", excluded),
			zap.Int("mentors_left", c.Len()),
		)
	}

	return c, Step{Initial: initial, Dropped: len(excluded), Left: c.Len()}, nil
}

func (f *technologyFilter) Status() Status {
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason}
}
