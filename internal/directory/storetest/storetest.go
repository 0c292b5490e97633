// Package storetest holds the behaviour every directory.Store must share.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/spigell/mentor-matcher/internal/directory"
)

// Factory returns an empty store. The suite closes it.
type Factory func(t *testing.T) directory.Store

var baseTime = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

// Run executes the conformance suite against stores produced by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	t.Run("profiles keep insertion order and filter by type", func(t *testing.T) {
		testProfiles(t, newStore(t))
	})
	t.Run("mentorship fan-out", func(t *testing.T) {
		testFanOut(t, newStore(t))
	})
	t.Run("decline leaves siblings untouched", func(t *testing.T) {
		testDecline(t, newStore(t))
	})
	t.Run("accept resolves mentorship and declines siblings", func(t *testing.T) {
		testAccept(t, newStore(t))
	})
	t.Run("concurrent accepts have exactly one winner", func(t *testing.T) {
		testConcurrentAccept(t, newStore(t))
	})
	t.Run("add invitation", func(t *testing.T) {
		testAddInvitation(t, newStore(t))
	})
	t.Run("mentorship queries", func(t *testing.T) {
		testMentorshipQueries(t, newStore(t))
	})
}

func testProfiles(t *testing.T, store directory.Store) {
	defer store.Close()
	ctx := context.Background()

	profiles := []*directory.Profile{
		{UID: "m2", DisplayName: "Bea", UserType: directory.UserTypeMentor, Technologies: []directory.Technology{{Name: "Go", Level: "expert"}}},
		{UID: "s1", DisplayName: "Sam", UserType: directory.UserTypeMentee},
		{UID: "m1", DisplayName: "Ada", UserType: directory.UserTypeMentor, YearsOfExperience: 7, Rating: 4.5, Availability: "available"},
	}
	if err := directory.Seed(ctx, store, profiles); err != nil {
		t.Fatalf("seed: %v", err)
	}

	mentors, err := store.ListProfiles(ctx, directory.ProfileQuery{UserType: directory.UserTypeMentor})
	if err != nil {
		t.Fatalf("list mentors: %v", err)
	}
	if got := uids(mentors); !cmp.Equal(got, []string{"m2", "m1"}) {
		t.Fatalf("unexpected mentors order: %v", got)
	}

	limited, err := store.ListProfiles(ctx, directory.ProfileQuery{Limit: 2})
	if err != nil {
		t.Fatalf("list limited: %v", err)
	}
	if got := uids(limited); !cmp.Equal(got, []string{"m2", "s1"}) {
		t.Fatalf("unexpected limited list: %v", got)
	}

	got, err := store.GetProfile(ctx, "m2")
	if err != nil {
		t.Fatalf("get profile: %v", err)
	}
	if diff := cmp.Diff(profiles[0], got); diff != "" {
		t.Fatalf("profile mismatch (-want +got):\n%s", diff)
	}

	// Updating keeps the original position.
	updated := *profiles[0]
	updated.Rating = 5
	if err := store.PutProfile(ctx, &updated); err != nil {
		t.Fatalf("update profile: %v", err)
	}
	mentors, _ = store.ListProfiles(ctx, directory.ProfileQuery{UserType: directory.UserTypeMentor})
	if mentors[0].UID != "m2" || mentors[0].Rating != 5 {
		t.Fatalf("expected updated profile in place, got %+v", mentors[0])
	}

	if _, err := store.GetProfile(ctx, "missing"); !errors.Is(err, directory.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func testFanOut(t *testing.T, store directory.Store) {
	defer store.Close()
	ctx := context.Background()

	m, invitations := newMentorship("ms-1", "mentor-a", "mentor-b", "mentor-c")
	if err := store.CreateMentorship(ctx, m, invitations); err != nil {
		t.Fatalf("create mentorship: %v", err)
	}

	got, err := store.GetMentorship(ctx, "ms-1")
	if err != nil {
		t.Fatalf("get mentorship: %v", err)
	}
	if got.Status != directory.MentorshipPending || got.MentorID != "" {
		t.Fatalf("expected pending mentorship without mentor, got %+v", got)
	}
	if !cmp.Equal(got.InvitedMentorIDs, []string{"mentor-a", "mentor-b", "mentor-c"}) {
		t.Fatalf("unexpected invited mentors: %v", got.InvitedMentorIDs)
	}
	if !cmp.Equal(got.Technologies, []string{"react", "node"}) {
		t.Fatalf("unexpected technologies: %v", got.Technologies)
	}

	pending, err := store.ListInvitations(ctx, directory.InvitationQuery{MentorshipID: "ms-1", Status: directory.InvitationPending})
	if err != nil {
		t.Fatalf("list invitations: %v", err)
	}
	if len(pending) != 3 {
		t.Fatalf("expected 3 pending invitations, got %d", len(pending))
	}

	forB, err := store.ListInvitations(ctx, directory.InvitationQuery{MentorID: "mentor-b"})
	if err != nil {
		t.Fatalf("list invitations for mentor: %v", err)
	}
	if len(forB) != 1 || forB[0].ID != "ms-1-mentor-b" || forB[0].Message != "join us" {
		t.Fatalf("unexpected invitations for mentor-b: %+v", forB)
	}

	if _, err := store.GetInvitation(ctx, "nope"); !errors.Is(err, directory.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func testDecline(t *testing.T, store directory.Store) {
	defer store.Close()
	ctx := context.Background()

	m, invitations := newMentorship("ms-1", "mentor-a", "mentor-b")
	if err := store.CreateMentorship(ctx, m, invitations); err != nil {
		t.Fatalf("create mentorship: %v", err)
	}

	at := baseTime.Add(time.Hour)
	declined, err := store.DeclineInvitation(ctx, "ms-1-mentor-a", at)
	if err != nil {
		t.Fatalf("decline: %v", err)
	}
	if declined.Status != directory.InvitationDeclined || declined.RespondedAt == nil || !declined.RespondedAt.Equal(at) {
		t.Fatalf("unexpected declined invitation: %+v", declined)
	}

	if _, err := store.DeclineInvitation(ctx, "ms-1-mentor-a", at); !errors.Is(err, directory.ErrAlreadyResponded) {
		t.Fatalf("expected ErrAlreadyResponded on second decline, got %v", err)
	}

	sibling, _ := store.GetInvitation(ctx, "ms-1-mentor-b")
	if sibling.Status != directory.InvitationPending {
		t.Fatalf("expected sibling to stay pending, got %s", sibling.Status)
	}
	ms, _ := store.GetMentorship(ctx, "ms-1")
	if ms.Status != directory.MentorshipPending {
		t.Fatalf("expected mentorship to stay pending, got %s", ms.Status)
	}
}

func testAccept(t *testing.T, store directory.Store) {
	defer store.Close()
	ctx := context.Background()

	m, invitations := newMentorship("ms-1", "mentor-a", "mentor-b", "mentor-c")
	if err := store.CreateMentorship(ctx, m, invitations); err != nil {
		t.Fatalf("create mentorship: %v", err)
	}

	at := baseTime.Add(2 * time.Hour)
	inv, ms, err := store.AcceptInvitation(ctx, "ms-1-mentor-b", at)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if inv.Status != directory.InvitationAccepted {
		t.Fatalf("expected accepted invitation, got %s", inv.Status)
	}
	if ms.Status != directory.MentorshipActive || ms.MentorID != "mentor-b" {
		t.Fatalf("unexpected mentorship after accept: %+v", ms)
	}

	for _, id := range []string{"ms-1-mentor-a", "ms-1-mentor-c"} {
		sibling, err := store.GetInvitation(ctx, id)
		if err != nil {
			t.Fatalf("get sibling: %v", err)
		}
		if sibling.Status != directory.InvitationDeclined {
			t.Fatalf("expected sibling %s declined, got %s", id, sibling.Status)
		}
	}

	if _, _, err := store.AcceptInvitation(ctx, "ms-1-mentor-c", at); !errors.Is(err, directory.ErrMentorshipFilled) {
		t.Fatalf("expected ErrMentorshipFilled for sibling accept, got %v", err)
	}

	stored, _ := store.GetMentorship(ctx, "ms-1")
	if stored.MentorID != "mentor-b" {
		t.Fatalf("mentor changed after conflicting accept: %+v", stored)
	}
}

func testConcurrentAccept(t *testing.T, store directory.Store) {
	defer store.Close()
	ctx := context.Background()

	mentors := []string{"mentor-a", "mentor-b", "mentor-c", "mentor-d", "mentor-e"}
	m, invitations := newMentorship("ms-race", mentors...)
	if err := store.CreateMentorship(ctx, m, invitations); err != nil {
		t.Fatalf("create mentorship: %v", err)
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		winners   []string
		conflicts int
		others    []error
	)
	for _, mentor := range mentors {
		wg.Add(1)
		go func(mentor string) {
			defer wg.Done()
			_, ms, err := store.AcceptInvitation(ctx, "ms-race-"+mentor, baseTime)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				winners = append(winners, ms.MentorID)
			case errors.Is(err, directory.ErrConflict):
				conflicts++
			default:
				others = append(others, err)
			}
		}(mentor)
	}
	wg.Wait()

	if len(others) > 0 {
		t.Fatalf("unexpected errors: %v", others)
	}
	if len(winners) != 1 || conflicts != len(mentors)-1 {
		t.Fatalf("expected exactly one winner, got winners=%v conflicts=%d", winners, conflicts)
	}

	accepted, _ := store.ListInvitations(ctx, directory.InvitationQuery{MentorshipID: "ms-race", Status: directory.InvitationAccepted})
	if len(accepted) != 1 || accepted[0].MentorID != winners[0] {
		t.Fatalf("expected single accepted invitation for %s, got %+v", winners[0], accepted)
	}
	pending, _ := store.ListInvitations(ctx, directory.InvitationQuery{MentorshipID: "ms-race", Status: directory.InvitationPending})
	if len(pending) != 0 {
		t.Fatalf("expected no pending invitations, got %d", len(pending))
	}
}

func testAddInvitation(t *testing.T, store directory.Store) {
	defer store.Close()
	ctx := context.Background()

	m, invitations := newMentorship("ms-1", "mentor-a")
	if err := store.CreateMentorship(ctx, m, invitations); err != nil {
		t.Fatalf("create mentorship: %v", err)
	}

	extra := &directory.Invitation{
		ID:           "ms-1-mentor-z",
		MentorshipID: "ms-1",
		MentorID:     "mentor-z",
		Status:       directory.InvitationPending,
		CreatedAt:    baseTime.Add(time.Minute),
	}
	if err := store.AddInvitation(ctx, extra); err != nil {
		t.Fatalf("add invitation: %v", err)
	}

	ms, _ := store.GetMentorship(ctx, "ms-1")
	if !cmp.Equal(ms.InvitedMentorIDs, []string{"mentor-a", "mentor-z"}) {
		t.Fatalf("unexpected invited mentors: %v", ms.InvitedMentorIDs)
	}

	again := &directory.Invitation{ID: "ms-1-mentor-z-again", MentorshipID: "ms-1", MentorID: "mentor-z", Status: directory.InvitationPending, CreatedAt: baseTime.Add(2 * time.Minute)}
	err := store.AddInvitation(ctx, again)
	if !errors.Is(err, directory.ErrAlreadyInvited) || !errors.Is(err, directory.ErrConflict) {
		t.Fatalf("expected ErrAlreadyInvited for a second invitation of the same mentor, got %v", err)
	}
	pair, err := store.ListInvitations(ctx, directory.InvitationQuery{MentorshipID: "ms-1", MentorID: "mentor-z"})
	if err != nil {
		t.Fatalf("list invitations: %v", err)
	}
	if len(pair) != 1 || pair[0].ID != "ms-1-mentor-z" {
		t.Fatalf("expected only the first invitation to be stored, got %+v", pair)
	}

	if _, _, err := store.AcceptInvitation(ctx, "ms-1-mentor-a", baseTime); err != nil {
		t.Fatalf("accept: %v", err)
	}

	late := &directory.Invitation{ID: "late", MentorshipID: "ms-1", MentorID: "mentor-y", Status: directory.InvitationPending, CreatedAt: baseTime}
	if err := store.AddInvitation(ctx, late); !errors.Is(err, directory.ErrMentorshipFilled) {
		t.Fatalf("expected ErrMentorshipFilled, got %v", err)
	}

	orphan := &directory.Invitation{ID: "orphan", MentorshipID: "missing", MentorID: "mentor-y", Status: directory.InvitationPending, CreatedAt: baseTime}
	if err := store.AddInvitation(ctx, orphan); !errors.Is(err, directory.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func testMentorshipQueries(t *testing.T, store directory.Store) {
	defer store.Close()
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		m, invitations := newMentorship(fmt.Sprintf("ms-%d", i), "mentor-a")
		if err := store.CreateMentorship(ctx, m, invitations); err != nil {
			t.Fatalf("create mentorship: %v", err)
		}
	}
	if _, _, err := store.AcceptInvitation(ctx, "ms-2-mentor-a", baseTime); err != nil {
		t.Fatalf("accept: %v", err)
	}

	active, err := store.ListMentorships(ctx, directory.MentorshipQuery{Status: directory.MentorshipActive})
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(active) != 1 || active[0].ID != "ms-2" {
		t.Fatalf("unexpected active mentorships: %+v", active)
	}

	byMentor, _ := store.ListMentorships(ctx, directory.MentorshipQuery{ParticipantID: "mentor-a"})
	if len(byMentor) != 1 || byMentor[0].ID != "ms-2" {
		t.Fatalf("unexpected mentorships for mentor: %+v", byMentor)
	}

	byMentee, _ := store.ListMentorships(ctx, directory.MentorshipQuery{ParticipantID: "mentee-1", Limit: 2})
	if len(byMentee) != 2 || byMentee[0].ID != "ms-1" {
		t.Fatalf("unexpected mentorships for mentee: %+v", byMentee)
	}

	if _, err := store.GetMentorship(ctx, "missing"); !errors.Is(err, directory.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func newMentorship(id string, mentors ...string) (*directory.Mentorship, []*directory.Invitation) {
	m := &directory.Mentorship{
		ID:                   id,
		MenteeID:             "mentee-1",
		Technologies:         []string{"react", "node"},
		ChallengeDescription: "state management",
		Status:               directory.MentorshipPending,
		CreatedAt:            baseTime,
		UpdatedAt:            baseTime,
	}

	invitations := make([]*directory.Invitation, 0, len(mentors))
	for _, mentor := range mentors {
		invitations = append(invitations, &directory.Invitation{
			ID:           id + "-" + mentor,
			MentorshipID: id,
			MentorID:     mentor,
			Status:       directory.InvitationPending,
			Message:      "join us",
			CreatedAt:    baseTime,
		})
	}
	return m, invitations
}

func uids(profiles []*directory.Profile) []string {
	result := make([]string, 0, len(profiles))
	for _, p := range profiles {
		result = append(result, p.UID)
	}
	return result
}
