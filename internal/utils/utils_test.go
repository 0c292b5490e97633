package utils

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestTruncateForLog(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		input  string
		limit  int
		expect string
	}{
		{
			name:   "returns empty when limit non-positive",
			input:  "hello world",
			limit:  0,
			expect: "",
		},
		{
			name:   "shorter than limit",
			input:  "hello",
			limit:  10,
			expect: "hello",
		},
		{
			name:   "truncates and adds ellipsis",
			input:  "hello world",
			limit:  5,
			expect: "hello...",
		},
		{
			name:   "counts runes not bytes",
			input:  "привет мир",
			limit:  6,
			expect: "привет...",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := TruncateForLog(tt.input, tt.limit); got != tt.expect {
				t.Fatalf("expected %q, got %q", tt.expect, got)
			}
		})
	}
}

func TestCleanList(t *testing.T) {
	got := CleanList([]string{" React ", "", "node", "react", "  ", "AWS"})
	want := []string{"React", "node", "AWS"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected list (-want +got):\n%s", diff)
	}

	if got := CleanList(nil); len(got) != 0 {
		t.Fatalf("expected empty list, got %v", got)
	}
}

func TestWaitForRespectsContext(t *testing.T) {
	original := sleep
	release := make(chan struct{})
	sleep = func(time.Duration) { <-release }
	defer func() {
		close(release)
		sleep = original
	}()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := WaitFor(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestWaitForZeroDuration(t *testing.T) {
	if err := WaitFor(context.Background(), 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
