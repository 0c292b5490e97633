// Package scoring computes the deterministic mentor compatibility score used
// when browsing candidates. It does not depend on the language model.
package scoring

import (
	"math"
	"sort"
	"strings"

	"github.com/spigell/mentor-matcher/internal/directory"
)

const (
	base           = 50.0
	overlapWeight  = 30.0
	seniorBonus    = 10.0
	veteranBonus   = 5.0
	availableBonus = 5.0
	seniorYears    = 5
	veteranYears   = 10
	MaxScore       = 99
)

// Input is everything the score depends on.
type Input struct {
	Required          []string
	Offered           []string
	YearsOfExperience int
	Availability      string
}

// InputFor builds the score input for a mentor and a mentorship.
func InputFor(m *directory.Mentorship, mentor *directory.Profile) Input {
	return Input{
		Required:          m.Technologies,
		Offered:           mentor.TechnologyNames(),
		YearsOfExperience: mentor.YearsOfExperience,
		Availability:      mentor.Availability,
	}
}

// Score returns a value in [0, 99]. Technology overlap uses case-insensitive
// exact name equality; an empty Required list contributes nothing.
func Score(in Input) int {
	score := base

	if required := distinct(in.Required); len(required) > 0 {
		offered := distinct(in.Offered)
		overlap := 0
		for name := range required {
			if _, ok := offered[name]; ok {
				overlap++
			}
		}
		score += float64(overlap) / float64(len(required)) * overlapWeight
	}

	if in.YearsOfExperience >= seniorYears {
		score += seniorBonus
	}
	if in.YearsOfExperience >= veteranYears {
		score += veteranBonus
	}
	if in.Availability == directory.AvailabilityAvailable {
		score += availableBonus
	}

	return min(max(int(math.Round(score)), 0), MaxScore)
}

func distinct(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, name := range names {
		name = strings.ToLower(strings.TrimSpace(name))
		if name != "" {
			set[name] = struct{}{}
		}
	}
	return set
}

// Scored pairs a mentor with its score.
type Scored struct {
	Mentor *directory.Profile `json:"mentor"`
	Score  int                `json:"score"`
}

// Rank scores every mentor against m and sorts by score, highest first.
// Equal scores keep the input order.
func Rank(m *directory.Mentorship, mentors []*directory.Profile) []Scored {
	ranked := make([]Scored, 0, len(mentors))
	for _, mentor := range mentors {
		ranked = append(ranked, Scored{Mentor: mentor, Score: Score(InputFor(m, mentor))})
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })
	return ranked
}
