package filtering

import (
	"context"

	"go.uber.org/zap"

	"github.com/spigell/mentor-matcher/internal/directory"
)

type alreadyInvitedFilter struct {
	toggle
}

// NewAlreadyInvited creates a filter that removes mentors the mentorship was already offered to.
func NewAlreadyInvited() Filter {
	return &alreadyInvitedFilter{}
}

func (f *alreadyInvitedFilter) Name() string { return "already_invited" }

func (f *alreadyInvitedFilter) Validate(*Config) error { return nil }

func (f *alreadyInvitedFilter) Apply(_ context.Context, deps Deps, c *Candidates) (*Candidates, Step, error) {
	initial := c.Len()
	excluded := c.Exclude(func(p *directory.Profile) bool {
		return deps.Mentorship.HasInvited(p.UID)
	})
	if deps.Logger != nil && len(excluded) > 0 {
		deps.Logger.Debug("excluding already invited mentors",
			zap.Strings("excluded_mentors", excluded),
			zap.Int("mentors_left", c.Len()),
		)
	}

	return c, Step{Initial: initial, Dropped: len(excluded), Left: c.Len()}, nil
}

func (f *alreadyInvitedFilter) Status() Status {
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason}
}
