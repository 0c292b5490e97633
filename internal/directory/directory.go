// Package directory holds the profile, mentorship and invitation records and
// the store interfaces the rest of the application consumes.
package directory

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned by stores when a record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned by stores when a conditional update lost the race.
	ErrConflict = errors.New("conditional update failed")
	// ErrMentorshipFilled is the ErrConflict flavour returned when the mentorship is no longer pending.
	ErrMentorshipFilled = &conflictError{reason: "mentorship already filled"}
	// ErrAlreadyResponded is the ErrConflict flavour returned when the invitation is no longer pending.
	ErrAlreadyResponded = &conflictError{reason: "invitation already responded"}
	// ErrAlreadyInvited is the ErrConflict flavour returned when the mentor already holds an invitation for the mentorship.
	ErrAlreadyInvited = &conflictError{reason: "mentor already invited"}
)

type conflictError struct {
	reason string
}

func (e *conflictError) Error() string { return e.reason }

func (e *conflictError) Is(target error) bool { return target == ErrConflict }

type UserType string

const (
	UserTypeMentor UserType = "mentor"
	UserTypeMentee UserType = "mentee"
	UserTypePM     UserType = "pm"
)

// AvailabilityAvailable is the only availability value the match scorer rewards.
const AvailabilityAvailable = "available"

type Technology struct {
	Name  string `json:"name" yaml:"name"`
	Level string `json:"level,omitempty" yaml:"level"`
}

type Profile struct {
	UID               string       `json:"uid" yaml:"uid"`
	DisplayName       string       `json:"displayName" yaml:"displayName"`
	UserType          UserType     `json:"userType" yaml:"userType"`
	Technologies      []Technology `json:"technologies" yaml:"technologies"`
	Bio               string       `json:"bio,omitempty" yaml:"bio"`
	YearsOfExperience int          `json:"yearsOfExperience" yaml:"yearsOfExperience"`
	Rating            float64      `json:"rating" yaml:"rating"`
	TotalMentees      int          `json:"totalMentees" yaml:"totalMentees"`
	Availability      string       `json:"availability,omitempty" yaml:"availability"`
}

// TechnologyNames returns the names of the profile's technologies in order.
func (p *Profile) TechnologyNames() []string {
	names := make([]string, 0, len(p.Technologies))
	for _, tech := range p.Technologies {
		names = append(names, tech.Name)
	}
	return names
}

// KnowsAny reports whether any technology name contains any of the terms, case-insensitively.
func (p *Profile) KnowsAny(terms []string) bool {
	for _, tech := range p.Technologies {
		name := strings.ToLower(tech.Name)
		for _, term := range terms {
			term = strings.ToLower(strings.TrimSpace(term))
			if term != "" && strings.Contains(name, term) {
				return true
			}
		}
	}
	return false
}

type MentorshipStatus string

const (
	MentorshipPending   MentorshipStatus = "pending"
	MentorshipActive    MentorshipStatus = "active"
	MentorshipCompleted MentorshipStatus = "completed"
	MentorshipDeclined  MentorshipStatus = "declined"
)

type Mentorship struct {
	ID                   string           `json:"id"`
	MenteeID             string           `json:"menteeId"`
	Technologies         []string         `json:"technologies"`
	ChallengeDescription string           `json:"challengeDescription"`
	Status               MentorshipStatus `json:"status"`
	// MentorID stays empty until an invitation is accepted.
	MentorID         string    `json:"mentorId,omitempty"`
	InvitedMentorIDs []string  `json:"invitedMentorIds"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// HasInvited reports whether the mentor was already offered this mentorship.
func (m *Mentorship) HasInvited(mentorID string) bool {
	return slices.Contains(m.InvitedMentorIDs, mentorID)
}

// IsOpen reports whether the mentorship can still be accepted.
func (m *Mentorship) IsOpen() bool {
	return m.Status == MentorshipPending && m.MentorID == ""
}

type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "pending"
	InvitationAccepted InvitationStatus = "accepted"
	InvitationDeclined InvitationStatus = "declined"
)

type Invitation struct {
	ID           string           `json:"id"`
	MentorshipID string           `json:"mentorshipId"`
	MentorID     string           `json:"mentorId"`
	Status       InvitationStatus `json:"status"`
	Message      string           `json:"message,omitempty"`
	CreatedAt    time.Time        `json:"createdAt"`
	RespondedAt  *time.Time       `json:"respondedAt,omitempty"`
}

// ProfileQuery filters ListProfiles. Zero values mean "any"; Limit <= 0 means unlimited.
type ProfileQuery struct {
	UserType UserType
	Limit    int
}

// MentorshipQuery filters ListMentorships. ParticipantID matches mentee or mentor.
type MentorshipQuery struct {
	Status        MentorshipStatus
	ParticipantID string
	Limit         int
}

// InvitationQuery filters ListInvitations.
type InvitationQuery struct {
	MentorshipID string
	MentorID     string
	Status       InvitationStatus
}

// ProfileStore is the read side of the profile directory. Results keep insertion order.
type ProfileStore interface {
	GetProfile(ctx context.Context, uid string) (*Profile, error)
	ListProfiles(ctx context.Context, q ProfileQuery) ([]*Profile, error)
	PutProfile(ctx context.Context, p *Profile) error
}

// MentorshipStore keeps mentorships and their invitations.
type MentorshipStore interface {
	// CreateMentorship stores the mentorship together with its fan-out invitations.
	CreateMentorship(ctx context.Context, m *Mentorship, invitations []*Invitation) error
	GetMentorship(ctx context.Context, id string) (*Mentorship, error)
	ListMentorships(ctx context.Context, q MentorshipQuery) ([]*Mentorship, error)

	// AddInvitation stores the invitation and records the mentor in InvitedMentorIDs.
	// It fails with ErrMentorshipFilled when the mentorship is no longer open.
	AddInvitation(ctx context.Context, inv *Invitation) error
	GetInvitation(ctx context.Context, id string) (*Invitation, error)
	ListInvitations(ctx context.Context, q InvitationQuery) ([]*Invitation, error)

	// DeclineInvitation moves a pending invitation to declined.
	DeclineInvitation(ctx context.Context, id string, at time.Time) (*Invitation, error)
	// AcceptInvitation atomically assigns the invited mentor to a still open
	// mentorship, accepts the invitation and declines every pending sibling.
	AcceptInvitation(ctx context.Context, id string, at time.Time) (*Invitation, *Mentorship, error)
}

// Store is the full directory a deployment provides.
type Store interface {
	ProfileStore
	MentorshipStore
	Close() error
}
