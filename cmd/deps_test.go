package cmd

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spigell/mentor-matcher/internal/ai"
	"github.com/spigell/mentor-matcher/internal/apperr"
	"github.com/spigell/mentor-matcher/internal/directory"
	"github.com/spigell/mentor-matcher/internal/recommend"

	"go.uber.org/zap"
)

const profilesYAML = `profiles:
  - uid: m1
    displayName: Ada
    userType: mentor
    technologies:
      - name: Go
    yearsOfExperience: 7
    availability: available
  - uid: e1
    displayName: Bob
    userType: mentee
`

func writeProfiles(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "profiles.yaml")
	if err := os.WriteFile(path, []byte(profilesYAML), 0o600); err != nil {
		t.Fatalf("write profiles: %v", err)
	}
	return path
}

func TestOpenStoreSeedsProfiles(t *testing.T) {
	ctx := context.Background()
	profiles := writeProfiles(t)

	tests := []struct {
		name string
		cfg  StoreConfig
	}{
		{name: "memory", cfg: StoreConfig{Driver: "memory", ProfilesFile: profiles}},
		{name: "sqlite", cfg: StoreConfig{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "mm.db"), ProfilesFile: profiles}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := openStore(ctx, tt.cfg, zap.NewNop())
			if err != nil {
				t.Fatalf("open store: %v", err)
			}
			defer store.Close()

			mentors, err := store.ListProfiles(ctx, directory.ProfileQuery{UserType: directory.UserTypeMentor})
			if err != nil {
				t.Fatalf("list mentors: %v", err)
			}
			if len(mentors) != 1 || mentors[0].UID != "m1" {
				t.Fatalf("unexpected mentors: %+v", mentors)
			}
		})
	}
}

func TestOpenStoreRejectsUnknownDriver(t *testing.T) {
	if _, err := openStore(context.Background(), StoreConfig{Driver: "postgres"}, zap.NewNop()); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestNewModelFallsBackToUnavailable(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")

	tests := []struct {
		name string
		cfg  AIConfig
	}{
		{name: "disabled", cfg: AIConfig{Enabled: false}},
		{name: "unknown provider", cfg: AIConfig{Enabled: true, Provider: "openai"}},
		{name: "no api key", cfg: AIConfig{Enabled: true, Provider: "gemini"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model := newModel(context.Background(), tt.cfg, zap.NewNop())
			if _, ok := model.(ai.Unavailable); !ok {
				t.Fatalf("expected ai.Unavailable, got %T", model)
			}

			_, err := model.Generate(context.Background(), ai.Request{Turns: []ai.Turn{{Role: ai.RoleUser, Content: "hi"}}})
			if apperr.CodeOf(err) != apperr.ModelUnavailable {
				t.Fatalf("expected ModelUnavailable, got %v", err)
			}
		})
	}
}

func TestSetupWiresServices(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")

	svc, err := setup(context.Background(), &Config{
		Store: StoreConfig{Driver: "memory", ProfilesFile: writeProfiles(t)},
		AI:    AIConfig{Enabled: false},
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	defer svc.Close()

	if got := len(svc.tools.Definitions()); got != 6 {
		t.Fatalf("expected 6 tools, got %d", got)
	}

	result, err := svc.recommend.Recommend(context.Background(), recommend.Request{
		MenteeID:             "e1",
		Technologies:         []string{"go"},
		ChallengeDescription: "learning concurrency",
	})
	if err != nil {
		t.Fatalf("recommend: %v", err)
	}
	if !result.Fallback || len(result.TopMentors) != 1 || result.TopMentors[0].UID != "m1" {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestRedactedHidesInlineKey(t *testing.T) {
	cfg := &Config{AI: AIConfig{Gemini: GeminiConfig{APIKey: "secret"}}}

	if got := redacted(cfg).AI.Gemini.APIKey; got != "<redacted>" {
		t.Fatalf("expected redacted key, got %q", got)
	}
	if cfg.AI.Gemini.APIKey != "secret" {
		t.Fatal("redacted must not modify the original config")
	}
}
