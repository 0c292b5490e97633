// Package lifecycle creates mentorships, fans invitations out to mentor
// candidates and resolves each mentorship to exactly one mentor.
package lifecycle

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spigell/mentor-matcher/internal/apperr"
	"github.com/spigell/mentor-matcher/internal/directory"
	"github.com/spigell/mentor-matcher/internal/filtering"
	"github.com/spigell/mentor-matcher/internal/logger"
	"github.com/spigell/mentor-matcher/internal/scoring"
	"github.com/spigell/mentor-matcher/internal/utils"
)

type Decision string

const (
	DecisionAccept  Decision = "accept"
	DecisionDecline Decision = "decline"
)

// ParseDecision accepts "accept" or "decline" in any case.
func ParseDecision(s string) (Decision, error) {
	switch d := Decision(strings.ToLower(strings.TrimSpace(s))); d {
	case DecisionAccept, DecisionDecline:
		return d, nil
	default:
		return "", apperr.New(apperr.InvalidArgument, "decision must be %q or %q, got %q", DecisionAccept, DecisionDecline, s)
	}
}

type CreateRequest struct {
	MenteeID             string   `json:"menteeId"`
	Technologies         []string `json:"technologies"`
	ChallengeDescription string   `json:"challengeDescription"`
	InvitedMentorIDs     []string `json:"invitedMentorIds"`
	Message              string   `json:"message"`
}

type Created struct {
	Mentorship  *directory.Mentorship   `json:"mentorship"`
	Invitations []*directory.Invitation `json:"invitations"`
}

type Outcome struct {
	Invitation *directory.Invitation `json:"invitation"`
	Mentorship *directory.Mentorship `json:"mentorship"`
}

type Service struct {
	store  directory.Store
	now    func() time.Time
	newID  func() string
	logger *zap.Logger

	// inviteMu serializes the lookup-then-insert in Invite.
	inviteMu sync.Mutex
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func WithIDGenerator(newID func() string) Option {
	return func(s *Service) {
		if newID != nil {
			s.newID = newID
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

func New(store directory.Store, opts ...Option) *Service {
	s := &Service{
		store:  store,
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateMentorship stores a pending mentorship and one pending invitation per
// distinct invited mentor in a single step.
func (s *Service) CreateMentorship(ctx context.Context, req CreateRequest) (*Created, error) {
	menteeID := strings.TrimSpace(req.MenteeID)
	if menteeID == "" {
		return nil, apperr.New(apperr.InvalidArgument, "menteeId is required")
	}
	technologies := utils.CleanList(req.Technologies)
	if len(technologies) == 0 {
		return nil, apperr.New(apperr.InvalidArgument, "at least one technology is required")
	}

	mentee, err := s.store.GetProfile(ctx, menteeID)
	if err != nil {
		return nil, translate(err, "mentee %q", menteeID)
	}
	if mentee.UserType != directory.UserTypeMentee {
		return nil, apperr.New(apperr.InvalidArgument, "profile %q is not a mentee", menteeID)
	}

	mentorIDs := uniqueIDs(req.InvitedMentorIDs)
	for _, id := range mentorIDs {
		if err := s.requireMentor(ctx, id); err != nil {
			return nil, err
		}
	}

	now := s.now()
	m := &directory.Mentorship{
		ID:                   s.newID(),
		MenteeID:             menteeID,
		Technologies:         technologies,
		ChallengeDescription: strings.TrimSpace(req.ChallengeDescription),
		Status:               directory.MentorshipPending,
		InvitedMentorIDs:     mentorIDs,
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	invitations := make([]*directory.Invitation, 0, len(mentorIDs))
	for _, mentorID := range mentorIDs {
		invitations = append(invitations, s.newInvitation(m.ID, mentorID, req.Message, now))
	}

	if err := s.store.CreateMentorship(ctx, m, invitations); err != nil {
		return nil, translate(err, "create mentorship")
	}

	s.logger.Info("mentorship created",
		append(logger.LifecycleFields(m.ID, "", ""),
			zap.String(logger.FieldMenteeID, menteeID),
			zap.Strings("invited_mentors", mentorIDs),
		)...,
	)
	return &Created{Mentorship: m, Invitations: invitations}, nil
}

// Invite offers a still pending mentorship to one more mentor. Inviting the
// same mentor twice returns the existing invitation id.
func (s *Service) Invite(ctx context.Context, mentorshipID, mentorID, message string) (string, error) {
	mentorshipID = strings.TrimSpace(mentorshipID)
	mentorID = strings.TrimSpace(mentorID)
	if mentorshipID == "" || mentorID == "" {
		return "", apperr.New(apperr.InvalidArgument, "mentorshipId and mentorId are required")
	}

	s.inviteMu.Lock()
	defer s.inviteMu.Unlock()

	m, err := s.store.GetMentorship(ctx, mentorshipID)
	if err != nil {
		return "", translate(err, "mentorship %q", mentorshipID)
	}
	if err := s.requireMentor(ctx, mentorID); err != nil {
		return "", err
	}

	id, err := s.existingInvitation(ctx, mentorshipID, mentorID)
	if err == nil {
		return id, nil
	}
	if apperr.CodeOf(err) != apperr.NotFound {
		return "", err
	}

	if !m.IsOpen() {
		return "", translate(directory.ErrMentorshipFilled, "invite")
	}

	inv := s.newInvitation(mentorshipID, mentorID, message, s.now())
	if err := s.store.AddInvitation(ctx, inv); err != nil {
		// Another process sharing the store invited the same mentor first.
		if errors.Is(err, directory.ErrAlreadyInvited) {
			return s.existingInvitation(ctx, mentorshipID, mentorID)
		}
		return "", translate(err, "invite mentor %q", mentorID)
	}

	s.logger.Info("mentor invited", logger.LifecycleFields(mentorshipID, inv.ID, mentorID)...)
	return inv.ID, nil
}

func (s *Service) existingInvitation(ctx context.Context, mentorshipID, mentorID string) (string, error) {
	existing, err := s.store.ListInvitations(ctx, directory.InvitationQuery{MentorshipID: mentorshipID, MentorID: mentorID})
	if err != nil {
		return "", translate(err, "list invitations")
	}
	if len(existing) == 0 {
		return "", apperr.New(apperr.NotFound, "mentor %q has no invitation for mentorship %q", mentorID, mentorshipID)
	}
	return existing[0].ID, nil
}

// Respond applies the invited mentor's decision. Accepting is a single
// compare-and-set in the store: it fails with Conflict once another
// invitation of the same mentorship won.
func (s *Service) Respond(ctx context.Context, invitationID string, decision Decision, responderID string) (*Outcome, error) {
	invitationID = strings.TrimSpace(invitationID)
	responderID = strings.TrimSpace(responderID)
	if invitationID == "" || responderID == "" {
		return nil, apperr.New(apperr.InvalidArgument, "invitationId and responderId are required")
	}
	decision, err := ParseDecision(string(decision))
	if err != nil {
		return nil, err
	}

	inv, err := s.store.GetInvitation(ctx, invitationID)
	if err != nil {
		return nil, translate(err, "invitation %q", invitationID)
	}
	if inv.MentorID != responderID {
		return nil, apperr.New(apperr.InvalidArgument, "invitation %q was not sent to %q", invitationID, responderID)
	}

	fields := logger.LifecycleFields(inv.MentorshipID, inv.ID, inv.MentorID)
	at := s.now()

	if decision == DecisionDecline {
		declined, err := s.store.DeclineInvitation(ctx, invitationID, at)
		if err != nil {
			return nil, translate(err, "decline invitation")
		}
		m, err := s.store.GetMentorship(ctx, declined.MentorshipID)
		if err != nil {
			return nil, translate(err, "mentorship %q", declined.MentorshipID)
		}
		s.logger.Info("invitation declined", fields...)
		return &Outcome{Invitation: declined, Mentorship: m}, nil
	}

	accepted, m, err := s.store.AcceptInvitation(ctx, invitationID, at)
	if err != nil {
		if errors.Is(err, directory.ErrConflict) {
			s.logger.Info("invitation acceptance rejected", append(fields, zap.Error(err))...)
		}
		return nil, translate(err, "accept invitation")
	}

	s.logger.Info("invitation accepted", fields...)
	return &Outcome{Invitation: accepted, Mentorship: m}, nil
}

// ListInvitations returns the invitations sent to a mentor, optionally by status.
func (s *Service) ListInvitations(ctx context.Context, mentorID string, status directory.InvitationStatus) ([]*directory.Invitation, error) {
	mentorID = strings.TrimSpace(mentorID)
	if mentorID == "" {
		return nil, apperr.New(apperr.InvalidArgument, "mentorId is required")
	}
	switch status {
	case "", directory.InvitationPending, directory.InvitationAccepted, directory.InvitationDeclined:
	default:
		return nil, apperr.New(apperr.InvalidArgument, "unknown invitation status %q", status)
	}

	invitations, err := s.store.ListInvitations(ctx, directory.InvitationQuery{MentorID: mentorID, Status: status})
	if err != nil {
		return nil, translate(err, "list invitations")
	}
	return invitations, nil
}

func (s *Service) GetMentorship(ctx context.Context, id string) (*directory.Mentorship, error) {
	m, err := s.store.GetMentorship(ctx, strings.TrimSpace(id))
	if err != nil {
		return nil, translate(err, "mentorship %q", id)
	}
	return m, nil
}

// Candidates runs the browse filters for a mentorship and ranks the mentors left by match score.
func (s *Service) Candidates(ctx context.Context, mentorshipID string, cfg filtering.Config) ([]scoring.Scored, error) {
	m, err := s.GetMentorship(ctx, mentorshipID)
	if err != nil {
		return nil, err
	}
	mentors, err := s.store.ListProfiles(ctx, directory.ProfileQuery{UserType: directory.UserTypeMentor})
	if err != nil {
		return nil, translate(err, "list mentors")
	}

	ranked, err := filtering.Browse(ctx, &cfg, filtering.Deps{Logger: s.logger, Mentorship: m}, mentors)
	if err != nil {
		return nil, apperr.Wrap(apperr.InvalidArgument, err, "browse candidates")
	}
	return ranked, nil
}

func (s *Service) requireMentor(ctx context.Context, id string) error {
	p, err := s.store.GetProfile(ctx, id)
	if err != nil {
		return translate(err, "mentor %q", id)
	}
	if p.UserType != directory.UserTypeMentor {
		return apperr.New(apperr.InvalidArgument, "profile %q is not a mentor", id)
	}
	return nil
}

func (s *Service) newInvitation(mentorshipID, mentorID, message string, at time.Time) *directory.Invitation {
	return &directory.Invitation{
		ID:           s.newID(),
		MentorshipID: mentorshipID,
		MentorID:     mentorID,
		Status:       directory.InvitationPending,
		Message:      strings.TrimSpace(message),
		CreatedAt:    at,
	}
}

// translate maps store sentinels onto coded errors. Conflicts keep the
// store's reason as the caller-facing message.
func translate(err error, format string, args ...any) error {
	switch {
	case errors.Is(err, directory.ErrNotFound):
		return apperr.Wrap(apperr.NotFound, err, format+" not found", args...)
	case errors.Is(err, directory.ErrConflict):
		return apperr.Wrap(apperr.Conflict, err, "%s", err.Error())
	default:
		return apperr.Wrap(apperr.Internal, err, format, args...)
	}
}

func uniqueIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
