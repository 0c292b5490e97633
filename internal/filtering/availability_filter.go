package filtering

import (
	"context"
	"strconv"

	"go.uber.org/zap"

	"github.com/spigell/mentor-matcher/internal/directory"
)

type availabilityFilter struct {
	toggle
	required bool
}

// NewAvailability creates a filter that removes mentors who are not available when requested.
func NewAvailability() Filter {
	return &availabilityFilter{}
}

func (f *availabilityFilter) Name() string { return "availability" }

func (f *availabilityFilter) Validate(cfg *Config) error {
	f.required = cfg != nil && cfg.RequireAvailable
	return nil
}

func (f *availabilityFilter) Apply(_ context.Context, deps Deps, c *Candidates) (*Candidates, Step, error) {
	initial := c.Len()
	if !f.required {
		return c, Step{Initial: initial, Dropped: 0, Left: c.Len()}, nil
	}

	excluded := c.Exclude(func(p *directory.Profile) bool {
		return p.Availability != directory.AvailabilityAvailable
	})
	if deps.Logger != nil && len(excluded) > 0 {
		deps.Logger.Debug("excluding unavailable mentors",
			zap.Strings("excluded_mentors", excluded),
			zap.Int("mentors_left", c.Len()),
		)
	}

	return c, Step{Initial: initial, Dropped: len(excluded), Left: c.Len()}, nil
}

func (f *availabilityFilter) Status() Status {
	return Status{
		Name:    f.Name(),
		Enabled: f.IsEnabled(),
		Reason:  f.reason,
		Details: map[string]string{"require_available": strconv.FormatBool(f.required)},
	}
}
