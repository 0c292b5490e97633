package scoring

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/spigell/mentor-matcher/internal/directory"
)

func TestScore(t *testing.T) {
	tests := []struct {
		name string
		in   Input
		want int
	}{
		{name: "nothing in common", in: Input{Required: []string{"react"}, Offered: []string{"go"}}, want: 50},
		{name: "full overlap", in: Input{Required: []string{"React", "Node"}, Offered: []string{"node", "react"}}, want: 80},
		{name: "half overlap rounds", in: Input{Required: []string{"react", "node", "aws"}, Offered: []string{"react"}}, want: 60},
		{name: "substring is not overlap", in: Input{Required: []string{"react"}, Offered: []string{"React Native"}}, want: 50},
		{name: "senior", in: Input{YearsOfExperience: 5}, want: 60},
		{name: "veteran", in: Input{YearsOfExperience: 10}, want: 65},
		{name: "available", in: Input{Availability: directory.AvailabilityAvailable}, want: 55},
		{name: "busy is not rewarded", in: Input{Availability: "busy"}, want: 50},
		{name: "empty required list is only bonuses", in: Input{Offered: []string{"go"}, YearsOfExperience: 12, Availability: "available"}, want: 70},
		{name: "capped at 99", in: Input{Required: []string{"go"}, Offered: []string{"go"}, YearsOfExperience: 30, Availability: "available"}, want: 99},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Score(tt.in); got != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, got)
			}
		})
	}
}

func TestScoreIsMonotonicInOverlap(t *testing.T) {
	required := []string{"react", "node", "aws", "docker", "go"}
	offered := []string{}

	previous := Score(Input{Required: required, Offered: offered, YearsOfExperience: 7})
	for _, tech := range required {
		offered = append(offered, tech)
		got := Score(Input{Required: required, Offered: offered, YearsOfExperience: 7})
		if got < previous {
			t.Fatalf("score decreased from %d to %d after adding %s", previous, got, tech)
		}
		if got < 0 || got > MaxScore {
			t.Fatalf("score %d out of range", got)
		}
		previous = got
	}
}

func TestRankIsStable(t *testing.T) {
	m := &directory.Mentorship{Technologies: []string{"react"}}
	mentors := []*directory.Profile{
		{UID: "a", Technologies: []directory.Technology{{Name: "Go"}}},
		{UID: "b", Technologies: []directory.Technology{{Name: "React"}}},
		{UID: "c", Technologies: []directory.Technology{{Name: "Python"}}},
		{UID: "d", Technologies: []directory.Technology{{Name: "react"}}, YearsOfExperience: 6},
	}

	var got []string
	for _, s := range Rank(m, mentors) {
		got = append(got, s.Mentor.UID)
	}
	if diff := cmp.Diff([]string{"d", "b", "a", "c"}, got); diff != "" {
		t.Fatalf("unexpected order (-want +got):\n%s", diff)
	}
}
