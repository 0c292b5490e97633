// Package memory implements directory.Store in process memory.
package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/spigell/mentor-matcher/internal/directory"
)

// Store keeps every record behind a single mutex so the acceptance
// compare-and-set observes and mutates mentorship and invitations together.
type Store struct {
	mu sync.Mutex

	profiles     map[string]*directory.Profile
	profileOrder []string

	mentorships     map[string]*directory.Mentorship
	mentorshipOrder []string

	invitations     map[string]*directory.Invitation
	invitationOrder []string
}

var _ directory.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		profiles:    make(map[string]*directory.Profile),
		mentorships: make(map[string]*directory.Mentorship),
		invitations: make(map[string]*directory.Invitation),
	}
}

func (s *Store) Close() error { return nil }

func (s *Store) PutProfile(_ context.Context, p *directory.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.profiles[p.UID]; !ok {
		s.profileOrder = append(s.profileOrder, p.UID)
	}
	s.profiles[p.UID] = cloneProfile(p)
	return nil
}

func (s *Store) GetProfile(_ context.Context, uid string) (*directory.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profiles[uid]
	if !ok {
		return nil, directory.ErrNotFound
	}
	return cloneProfile(p), nil
}

func (s *Store) ListProfiles(_ context.Context, q directory.ProfileQuery) ([]*directory.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]*directory.Profile, 0)
	for _, uid := range s.profileOrder {
		p := s.profiles[uid]
		if q.UserType != "" && p.UserType != q.UserType {
			continue
		}
		result = append(result, cloneProfile(p))
		if q.Limit > 0 && len(result) == q.Limit {
			break
		}
	}
	return result, nil
}

func (s *Store) CreateMentorship(_ context.Context, m *directory.Mentorship, invitations []*directory.Invitation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.mentorships[m.ID]; ok {
		return directory.ErrConflict
	}

	stored := cloneMentorship(m)
	for _, inv := range invitations {
		if _, ok := s.invitations[inv.ID]; ok {
			return directory.ErrConflict
		}
		if !stored.HasInvited(inv.MentorID) {
			stored.InvitedMentorIDs = append(stored.InvitedMentorIDs, inv.MentorID)
		}
	}

	s.mentorships[m.ID] = stored
	s.mentorshipOrder = append(s.mentorshipOrder, m.ID)
	for _, inv := range invitations {
		s.invitations[inv.ID] = cloneInvitation(inv)
		s.invitationOrder = append(s.invitationOrder, inv.ID)
	}
	return nil
}

func (s *Store) GetMentorship(_ context.Context, id string) (*directory.Mentorship, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.mentorships[id]
	if !ok {
		return nil, directory.ErrNotFound
	}
	return cloneMentorship(m), nil
}

func (s *Store) ListMentorships(_ context.Context, q directory.MentorshipQuery) ([]*directory.Mentorship, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]*directory.Mentorship, 0)
	for _, id := range s.mentorshipOrder {
		m := s.mentorships[id]
		if q.Status != "" && m.Status != q.Status {
			continue
		}
		if q.ParticipantID != "" && m.MenteeID != q.ParticipantID && m.MentorID != q.ParticipantID {
			continue
		}
		result = append(result, cloneMentorship(m))
		if q.Limit > 0 && len(result) == q.Limit {
			break
		}
	}
	return result, nil
}

func (s *Store) AddInvitation(_ context.Context, inv *directory.Invitation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.mentorships[inv.MentorshipID]
	if !ok {
		return directory.ErrNotFound
	}
	if !m.IsOpen() {
		return directory.ErrMentorshipFilled
	}
	if _, ok := s.invitations[inv.ID]; ok {
		return directory.ErrConflict
	}
	for _, id := range s.invitationOrder {
		existing := s.invitations[id]
		if existing.MentorshipID == inv.MentorshipID && existing.MentorID == inv.MentorID {
			return directory.ErrAlreadyInvited
		}
	}

	s.invitations[inv.ID] = cloneInvitation(inv)
	s.invitationOrder = append(s.invitationOrder, inv.ID)
	if !m.HasInvited(inv.MentorID) {
		m.InvitedMentorIDs = append(m.InvitedMentorIDs, inv.MentorID)
		m.UpdatedAt = inv.CreatedAt
	}
	return nil
}

func (s *Store) GetInvitation(_ context.Context, id string) (*directory.Invitation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inv, ok := s.invitations[id]
	if !ok {
		return nil, directory.ErrNotFound
	}
	return cloneInvitation(inv), nil
}

func (s *Store) ListInvitations(_ context.Context, q directory.InvitationQuery) ([]*directory.Invitation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]*directory.Invitation, 0)
	for _, id := range s.invitationOrder {
		inv := s.invitations[id]
		if q.MentorshipID != "" && inv.MentorshipID != q.MentorshipID {
			continue
		}
		if q.MentorID != "" && inv.MentorID != q.MentorID {
			continue
		}
		if q.Status != "" && inv.Status != q.Status {
			continue
		}
		result = append(result, cloneInvitation(inv))
	}
	return result, nil
}

func (s *Store) DeclineInvitation(_ context.Context, id string, at time.Time) (*directory.Invitation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inv, ok := s.invitations[id]
	if !ok {
		return nil, directory.ErrNotFound
	}
	if inv.Status != directory.InvitationPending {
		return nil, directory.ErrAlreadyResponded
	}

	inv.Status = directory.InvitationDeclined
	inv.RespondedAt = &at
	return cloneInvitation(inv), nil
}

func (s *Store) AcceptInvitation(_ context.Context, id string, at time.Time) (*directory.Invitation, *directory.Mentorship, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inv, ok := s.invitations[id]
	if !ok {
		return nil, nil, directory.ErrNotFound
	}
	m, ok := s.mentorships[inv.MentorshipID]
	if !ok {
		return nil, nil, directory.ErrNotFound
	}

	// Check the mentorship first: a sibling that lost the race was already
	// auto-declined and must still learn that the mentorship is filled.
	if !m.IsOpen() {
		return nil, nil, directory.ErrMentorshipFilled
	}
	if inv.Status != directory.InvitationPending {
		return nil, nil, directory.ErrAlreadyResponded
	}

	m.Status = directory.MentorshipActive
	m.MentorID = inv.MentorID
	m.UpdatedAt = at

	inv.Status = directory.InvitationAccepted
	inv.RespondedAt = &at

	for _, siblingID := range s.invitationOrder {
		sibling := s.invitations[siblingID]
		if sibling.MentorshipID != m.ID || sibling.ID == inv.ID || sibling.Status != directory.InvitationPending {
			continue
		}
		sibling.Status = directory.InvitationDeclined
		sibling.RespondedAt = &at
	}

	return cloneInvitation(inv), cloneMentorship(m), nil
}

func cloneProfile(p *directory.Profile) *directory.Profile {
	c := *p
	c.Technologies = slices.Clone(p.Technologies)
	return &c
}

func cloneMentorship(m *directory.Mentorship) *directory.Mentorship {
	c := *m
	c.Technologies = slices.Clone(m.Technologies)
	c.InvitedMentorIDs = slices.Clone(m.InvitedMentorIDs)
	if c.InvitedMentorIDs == nil {
		c.InvitedMentorIDs = []string{}
	}
	return &c
}

func cloneInvitation(inv *directory.Invitation) *directory.Invitation {
	c := *inv
	if inv.RespondedAt != nil {
		at := *inv.RespondedAt
		c.RespondedAt = &at
	}
	return &c
}
