package tools

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spigell/mentor-matcher/internal/apperr"
	"github.com/spigell/mentor-matcher/internal/directory"
	"github.com/spigell/mentor-matcher/internal/directory/memory"
)

func mentor(uid, name string, years int, techs ...string) *directory.Profile {
	p := &directory.Profile{
		UID:               uid,
		DisplayName:       name,
		UserType:          directory.UserTypeMentor,
		YearsOfExperience: years,
		Rating:            4.5,
		Availability:      directory.AvailabilityAvailable,
	}
	for _, tech := range techs {
		p.Technologies = append(p.Technologies, directory.Technology{Name: tech, Level: "expert"})
	}
	return p
}

func seededStore(t *testing.T) *memory.Store {
	t.Helper()
	store := memory.New()
	profiles := []*directory.Profile{
		mentor("m1", "Ada Lovelace", 12, "React", "TypeScript"),
		mentor("m2", "Grace Hopper", 7, "Go", "Kubernetes"),
		mentor("m3", "Alan Turing", 3, "React Native"),
		mentor("m4", "Linus", 20, "C", "Linux"),
		{UID: "e1", DisplayName: "Mentee One", UserType: directory.UserTypeMentee},
	}
	if err := directory.Seed(context.Background(), store, profiles); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return store
}

func uids(profiles []*directory.Profile) []string {
	out := make([]string, 0, len(profiles))
	for _, p := range profiles {
		out = append(out, p.UID)
	}
	return out
}

func TestSearchReturnsOnlyMatchingMentors(t *testing.T) {
	store := seededStore(t)
	reg := New(store, store)

	tests := []struct {
		name  string
		args  map[string]any
		want  []string
		empty bool
	}{
		{name: "substring match keeps order", args: map[string]any{"technologies": []any{"react"}}, want: []string{"m1", "m3"}},
		{name: "any of several terms", args: map[string]any{"technologies": []string{"kubernetes", "LINUX"}}, want: []string{"m2", "m4"}},
		{name: "limit caps result", args: map[string]any{"technologies": []any{"react"}, "limit": float64(1)}, want: []string{"m1"}},
		{name: "no match", args: map[string]any{"technologies": []any{"cobol"}}, empty: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := reg.Execute(context.Background(), SearchMentorsByTechnology, tt.args)
			if !env.Success {
				t.Fatalf("expected success, got %+v", env)
			}
			if tt.empty {
				if len(env.Mentors) != 0 || env.Message == "" {
					t.Fatalf("expected empty result with a message, got %+v", env)
				}
				return
			}
			if diff := cmp.Diff(tt.want, uids(env.Mentors)); diff != "" {
				t.Fatalf("unexpected mentors (-want +got):\n%s", diff)
			}
			if env.Count != len(tt.want) {
				t.Fatalf("expected count %d, got %d", len(tt.want), env.Count)
			}
			terms := tt.args["technologies"]
			for _, m := range env.Mentors {
				if !m.KnowsAny(toStrings(terms)) {
					t.Fatalf("mentor %s does not match %v", m.UID, terms)
				}
			}
		})
	}
}

func toStrings(v any) []string {
	switch s := v.(type) {
	case []string:
		return s
	case []any:
		out := make([]string, 0, len(s))
		for _, item := range s {
			out = append(out, item.(string))
		}
		return out
	}
	return nil
}

func TestSearchRejectsBadArguments(t *testing.T) {
	store := seededStore(t)
	reg := New(store, store)

	tests := []struct {
		name string
		args map[string]any
	}{
		{name: "missing technologies", args: map[string]any{}},
		{name: "empty technologies", args: map[string]any{"technologies": []any{}}},
		{name: "blank technologies", args: map[string]any{"technologies": []any{"  "}}},
		{name: "wrong item type", args: map[string]any{"technologies": []any{42}}},
		{name: "fractional limit", args: map[string]any{"technologies": []any{"go"}, "limit": 1.5}},
		{name: "zero limit", args: map[string]any{"technologies": []any{"go"}, "limit": 0}},
		{name: "unknown key", args: map[string]any{"technologies": []any{"go"}, "page": 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := reg.Execute(context.Background(), SearchMentorsByTechnology, tt.args)
			if env.Success {
				t.Fatalf("expected failure envelope, got %+v", env)
			}
			if env.Error != string(apperr.InvalidArgument) {
				t.Fatalf("expected %s, got %s (%s)", apperr.InvalidArgument, env.Error, env.Message)
			}
		})
	}
}

func TestMentorDetails(t *testing.T) {
	store := seededStore(t)
	reg := New(store, store)
	ctx := context.Background()

	env := reg.Execute(ctx, GetMentorDetails, map[string]any{})
	if env.Success || env.Error != string(apperr.InvalidArgument) {
		t.Fatalf("expected INVALID_ARGUMENT without id and name, got %+v", env)
	}

	env = reg.Execute(ctx, GetMentorDetails, map[string]any{"mentorId": "m2"})
	if !env.Success || env.Mentor == nil || env.Mentor.UID != "m2" {
		t.Fatalf("expected m2 by id, got %+v", env)
	}

	env = reg.Execute(ctx, GetMentorDetails, map[string]any{"mentorName": "linus"})
	if !env.Success || env.Mentor.UID != "m4" {
		t.Fatalf("expected exact name match m4, got %+v", env)
	}

	env = reg.Execute(ctx, GetMentorDetails, map[string]any{"mentorName": "hopper"})
	if !env.Success || env.Mentor.UID != "m2" {
		t.Fatalf("expected substring match m2, got %+v", env)
	}

	for _, args := range []map[string]any{{"mentorId": "nobody"}, {"mentorId": "e1"}, {"mentorName": "nobody"}} {
		env = reg.Execute(ctx, GetMentorDetails, args)
		if env.Success || env.Error != string(apperr.NotFound) {
			t.Fatalf("expected NOT_FOUND for %v, got %+v", args, env)
		}
	}
}

func TestListingToolsApplyDefaults(t *testing.T) {
	store := seededStore(t)
	reg := New(store, store)
	ctx := context.Background()

	env := reg.Execute(ctx, GetAllMentors, nil)
	if diff := cmp.Diff([]string{"m1", "m2", "m3", "m4"}, uids(env.Mentors)); diff != "" {
		t.Fatalf("unexpected mentors (-want +got):\n%s", diff)
	}

	env = reg.Execute(ctx, GetMentees, map[string]any{"limit": 5})
	if diff := cmp.Diff([]string{"e1"}, uids(env.Mentees)); diff != "" {
		t.Fatalf("unexpected mentees (-want +got):\n%s", diff)
	}

	env = reg.Execute(ctx, GetActiveMentorships, nil)
	if !env.Success || len(env.Mentorships) != 0 {
		t.Fatalf("expected no active mentorships, got %+v", env)
	}
}

func TestStatistics(t *testing.T) {
	store := seededStore(t)
	ctx := context.Background()

	m := &directory.Mentorship{ID: "ms-1", MenteeID: "e1", Technologies: []string{"react"}, Status: directory.MentorshipPending}
	invites := []*directory.Invitation{
		{ID: "i1", MentorshipID: "ms-1", MentorID: "m1", Status: directory.InvitationPending},
		{ID: "i2", MentorshipID: "ms-1", MentorID: "m3", Status: directory.InvitationPending},
	}
	if err := store.CreateMentorship(ctx, m, invites); err != nil {
		t.Fatalf("create mentorship: %v", err)
	}

	env := New(store, store).Execute(ctx, GetSystemStatistics, map[string]any{})
	want := &Statistics{TotalMentors: 4, TotalMentees: 1, TotalMentorships: 1, PendingMentorships: 1, PendingInvitations: 2}
	if diff := cmp.Diff(want, env.Statistics); diff != "" {
		t.Fatalf("unexpected statistics (-want +got):\n%s", diff)
	}
}

func TestUnknownTool(t *testing.T) {
	env := NewRegistry().Execute(context.Background(), "drop_tables", nil)
	if env.Success || env.Error != string(apperr.InvalidArgument) || !strings.Contains(env.Message, "drop_tables") {
		t.Fatalf("unexpected envelope: %+v", env)
	}
}

type flakyProfiles struct {
	directory.ProfileStore
	failures int
	calls    int
}

func (f *flakyProfiles) ListProfiles(ctx context.Context, q directory.ProfileQuery) ([]*directory.Profile, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, errors.New("database is locked")
	}
	return f.ProfileStore.ListProfiles(ctx, q)
}

func TestTransientFailuresAreRetried(t *testing.T) {
	original := retryDelay
	retryDelay = 0
	t.Cleanup(func() { retryDelay = original })

	store := seededStore(t)
	core, logs := observer.New(zapcore.WarnLevel)

	flaky := &flakyProfiles{ProfileStore: store, failures: 1}
	reg := New(flaky, store, WithMaxAttempts(2), WithLogger(zap.New(core)))

	env := reg.Execute(context.Background(), GetAllMentors, nil)
	if !env.Success {
		t.Fatalf("expected retry to succeed, got %+v", env)
	}
	if flaky.calls != 2 {
		t.Fatalf("expected 2 calls, got %d", flaky.calls)
	}
	if logs.FilterMessage("tool read failed, retrying").Len() != 1 {
		t.Fatalf("expected one retry log entry, got %v", logs.All())
	}

	flaky = &flakyProfiles{ProfileStore: store, failures: 5}
	env = New(flaky, store, WithMaxAttempts(2)).Execute(context.Background(), GetAllMentors, nil)
	if env.Success || env.Error != string(apperr.Internal) || !strings.Contains(env.Message, "database is locked") {
		t.Fatalf("expected INTERNAL failure envelope, got %+v", env)
	}
	if flaky.calls != 2 {
		t.Fatalf("expected attempts to stop at 2, got %d", flaky.calls)
	}
}

func TestClassifiedFailuresAreNotRetried(t *testing.T) {
	calls := 0
	reg := NewRegistry(WithMaxAttempts(3))
	reg.MustRegister(&Tool{
		Name: "lookup",
		Execute: func(context.Context, map[string]any) (*Envelope, error) {
			calls++
			return nil, apperr.New(apperr.NotFound, "nothing here")
		},
	})

	env := reg.Execute(context.Background(), "lookup", nil)
	if env.Error != string(apperr.NotFound) || calls != 1 {
		t.Fatalf("expected a single NOT_FOUND attempt, got %+v after %d calls", env, calls)
	}
	if err := env.Err(); !apperr.Is(err, apperr.NotFound) {
		t.Fatalf("expected Err to carry NOT_FOUND, got %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Register(&Tool{}); !errors.Is(err, ErrToolNameEmpty) {
		t.Fatalf("expected ErrToolNameEmpty, got %v", err)
	}
	if err := reg.Register(&Tool{Name: "x"}); !errors.Is(err, ErrToolExecuteNil) {
		t.Fatalf("expected ErrToolExecuteNil, got %v", err)
	}
	noop := func(context.Context, map[string]any) (*Envelope, error) { return &Envelope{Success: true}, nil }
	if err := reg.Register(&Tool{Name: "x", Execute: noop}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := reg.Register(&Tool{Name: "x", Execute: noop}); !errors.Is(err, ErrToolAlreadyRegistered) {
		t.Fatalf("expected ErrToolAlreadyRegistered, got %v", err)
	}
}

func TestDefinitionsSerialize(t *testing.T) {
	store := seededStore(t)
	defs := New(store, store).Definitions()
	if len(defs) != 6 {
		t.Fatalf("expected 6 tools, got %d", len(defs))
	}
	if defs[0].Name != GetActiveMentorships {
		t.Fatalf("expected definitions sorted by name, first is %s", defs[0].Name)
	}

	raw, err := json.Marshal(defs)
	if err != nil {
		t.Fatalf("marshal definitions: %v", err)
	}
	if !strings.Contains(string(raw), `"minItems":1`) {
		t.Fatalf("expected search schema to advertise minItems, got %s", raw)
	}
}
