package filtering

import "github.com/spigell/mentor-matcher/internal/directory"

// Candidates is the mutable list of mentors a pipeline works on.
type Candidates struct {
	Items []*directory.Profile
}

func NewCandidates(mentors []*directory.Profile) *Candidates {
	items := make([]*directory.Profile, 0, len(mentors))
	for _, m := range mentors {
		if m != nil && m.UserType == directory.UserTypeMentor {
			items = append(items, m)
		}
	}
	return &Candidates{Items: items}
}

func (c *Candidates) Len() int {
	return len(c.Items)
}

// Exclude removes every candidate for which drop reports true and returns their uids.
func (c *Candidates) Exclude(drop func(*directory.Profile) bool) []string {
	kept := c.Items[:0]
	excluded := make([]string, 0)
	for _, m := range c.Items {
		if drop(m) {
			excluded = append(excluded, m.UID)
			continue
		}
		kept = append(kept, m)
	}
	c.Items = kept
	return excluded
}
