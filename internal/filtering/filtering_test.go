package filtering

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spigell/mentor-matcher/internal/directory"
)

func profile(uid string, years int, availability string, techs ...string) *directory.Profile {
	p := &directory.Profile{UID: uid, UserType: directory.UserTypeMentor, YearsOfExperience: years, Availability: availability}
	for _, tech := range techs {
		p.Technologies = append(p.Technologies, directory.Technology{Name: tech})
	}
	return p
}

func directoryFixture() []*directory.Profile {
	return []*directory.Profile{
		profile("m1", 12, "available", "React", "Node"),
		profile("m2", 2, "busy", "React"),
		profile("m3", 8, "available", "Go"),
		profile("m4", 6, "available", "Node"),
		{UID: "e1", UserType: directory.UserTypeMentee, Technologies: []directory.Technology{{Name: "React"}}},
	}
}

func TestBrowse(t *testing.T) {
	mentorship := &directory.Mentorship{
		ID:               "ms-1",
		Technologies:     []string{"react", "node"},
		InvitedMentorIDs: []string{"m4"},
	}

	tests := []struct {
		name string
		cfg  *Config
		want []string
	}{
		{name: "defaults rank by score", cfg: &Config{}, want: []string{"m1", "m2"}},
		{name: "only available", cfg: &Config{RequireAvailable: true}, want: []string{"m1"}},
		{name: "minimum score", cfg: &Config{MinimumScore: 90}, want: []string{"m1"}},
		{name: "nil config", cfg: nil, want: []string{"m1", "m2"}},
		{name: "skip already invited", cfg: &Config{Skip: []string{"already_invited"}}, want: []string{"m1", "m4", "m2"}},
		{name: "skip technology", cfg: &Config{Skip: []string{" technology "}}, want: []string{"m1", "m2", "m3"}},
		{name: "skip disables minimum score", cfg: &Config{MinimumScore: 90, Skip: []string{"minimum_score"}}, want: []string{"m1", "m2"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ranked, err := Browse(context.Background(), tt.cfg, Deps{Mentorship: mentorship}, directoryFixture())
			if err != nil {
				t.Fatalf("browse: %v", err)
			}
			got := make([]string, 0, len(ranked))
			for _, s := range ranked {
				got = append(got, s.Mentor.UID)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("unexpected candidates (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRunLogsEveryStep(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	mentorship := &directory.Mentorship{ID: "ms-1", Technologies: []string{"go"}}

	steps := Default()
	DisableByName(steps, "already_invited", "testing")

	left, err := Run(context.Background(), &Config{}, Deps{Logger: zap.New(core), Mentorship: mentorship}, steps, NewCandidates(directoryFixture()))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if left.Len() != 1 || left.Items[0].UID != "m3" {
		t.Fatalf("expected only m3, got %+v", left.Items)
	}

	if logs.FilterMessage("filter disabled").Len() != 1 {
		t.Fatalf("expected disabled filter to be logged")
	}
	stepsLogged := logs.FilterMessage("filter step").All()
	if len(stepsLogged) != 3 {
		t.Fatalf("expected 3 step entries, got %d", len(stepsLogged))
	}
	tech := stepsLogged[0].ContextMap()
	if tech["name"] != "technology" || tech["initial"] != int64(4) || tech["dropped"] != int64(3) || tech["left"] != int64(1) {
		t.Fatalf("unexpected technology step: %v", tech)
	}

	statuses := Describe(steps)
	if statuses[0].Enabled || statuses[0].Reason != "testing" {
		t.Fatalf("expected already_invited to be reported disabled, got %+v", statuses[0])
	}
}

func TestPipelineRejectsUnknownSkip(t *testing.T) {
	if _, err := Pipeline(&Config{Skip: []string{"salary"}}); err == nil {
		t.Fatalf("expected unknown filter name to fail")
	}

	mentorship := &directory.Mentorship{ID: "ms-1"}
	if _, err := Browse(context.Background(), &Config{Skip: []string{"salary"}}, Deps{Mentorship: mentorship}, directoryFixture()); err == nil {
		t.Fatalf("expected browse to reject unknown filter name")
	}
}

func TestPipelineReportsSkippedFilters(t *testing.T) {
	steps, err := Pipeline(&Config{Skip: []string{"availability", "technology"}})
	if err != nil {
		t.Fatalf("pipeline: %v", err)
	}

	got := make(map[string]bool)
	for _, status := range Describe(steps) {
		got[status.Name] = status.Enabled
	}
	want := map[string]bool{"already_invited": true, "technology": false, "availability": false, "minimum_score": true}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected filter states (-want +got):\n%s", diff)
	}
}

func TestRunRejectsInvalidConfig(t *testing.T) {
	mentorship := &directory.Mentorship{ID: "ms-1"}
	if _, err := Run(context.Background(), &Config{MinimumScore: 150}, Deps{Mentorship: mentorship}, Default(), NewCandidates(nil)); err == nil {
		t.Fatalf("expected out of range minimum score to fail validation")
	}
	if _, err := Run(context.Background(), &Config{}, Deps{}, Default(), NewCandidates(nil)); err == nil {
		t.Fatalf("expected missing mentorship to fail")
	}
}
