package tools

import (
	"context"
	"errors"
	"strings"

	"github.com/spigell/mentor-matcher/internal/apperr"
	"github.com/spigell/mentor-matcher/internal/directory"
	"github.com/spigell/mentor-matcher/internal/utils"
)

const (
	defaultSearchLimit      = 10
	defaultMentorsLimit     = 20
	defaultMentorshipsLimit = 10
	defaultMenteesLimit     = 20
)

// New returns a registry with every directory tool registered.
func New(profiles directory.ProfileStore, mentorships directory.MentorshipStore, opts ...Option) *Registry {
	r := NewRegistry(opts...)
	d := &directoryTools{profiles: profiles, mentorships: mentorships}

	r.MustRegister(&Tool{
		Name:        SearchMentorsByTechnology,
		Description: "Find mentors whose technologies match any of the requested ones (case-insensitive substring).",
		Schema: Schema{
			Required: []string{"technologies"},
			Properties: map[string]Property{
				"technologies": {Type: "array", Description: "Technologies to look for", Items: &PropertyItems{Type: "string"}, MinItems: 1},
				"limit":        {Type: "integer", Description: "Maximum number of mentors", Default: defaultSearchLimit},
			},
		},
		Execute: d.searchByTechnology,
	})
	r.MustRegister(&Tool{
		Name:        GetMentorDetails,
		Description: "Get the profile of a single mentor by id or by name.",
		Schema: Schema{
			Properties: map[string]Property{
				"mentorId":   {Type: "string", Description: "Mentor uid"},
				"mentorName": {Type: "string", Description: "Mentor display name, exact or partial"},
			},
		},
		Execute: d.mentorDetails,
	})
	r.MustRegister(&Tool{
		Name:        GetAllMentors,
		Description: "List mentors in directory order.",
		Schema: Schema{
			Properties: map[string]Property{
				"limit": {Type: "integer", Description: "Maximum number of mentors", Default: defaultMentorsLimit},
			},
		},
		Execute: d.allMentors,
	})
	r.MustRegister(&Tool{
		Name:        GetActiveMentorships,
		Description: "List mentorships that already have a mentor.",
		Schema: Schema{
			Properties: map[string]Property{
				"limit": {Type: "integer", Description: "Maximum number of mentorships", Default: defaultMentorshipsLimit},
			},
		},
		Execute: d.activeMentorships,
	})
	r.MustRegister(&Tool{
		Name:        GetMentees,
		Description: "List mentees in directory order.",
		Schema: Schema{
			Properties: map[string]Property{
				"limit": {Type: "integer", Description: "Maximum number of mentees", Default: defaultMenteesLimit},
			},
		},
		Execute: d.mentees,
	})
	r.MustRegister(&Tool{
		Name:        GetSystemStatistics,
		Description: "Count mentors, mentees, mentorships and pending invitations.",
		Schema:      Schema{Properties: map[string]Property{}},
		Execute:     d.statistics,
	})

	return r
}

type directoryTools struct {
	profiles    directory.ProfileStore
	mentorships directory.MentorshipStore
}

type limitInput struct {
	Limit int `mapstructure:"limit"`
}

func (in limitInput) check() error {
	if in.Limit < 1 {
		return apperr.New(apperr.InvalidArgument, "limit must be positive, got %d", in.Limit)
	}
	return nil
}

func (d *directoryTools) searchByTechnology(ctx context.Context, args map[string]any) (*Envelope, error) {
	var in struct {
		Technologies []string `mapstructure:"technologies"`
		Limit        int      `mapstructure:"limit"`
	}
	if err := decode(args, &in); err != nil {
		return nil, err
	}
	if err := (limitInput{Limit: in.Limit}).check(); err != nil {
		return nil, err
	}
	terms := utils.CleanList(in.Technologies)
	if len(terms) == 0 {
		return nil, apperr.New(apperr.InvalidArgument, "technologies must contain at least one non-blank value")
	}

	all, err := d.profiles.ListProfiles(ctx, directory.ProfileQuery{UserType: directory.UserTypeMentor})
	if err != nil {
		return nil, err
	}

	mentors := make([]*directory.Profile, 0, in.Limit)
	for _, p := range all {
		if !p.KnowsAny(terms) {
			continue
		}
		mentors = append(mentors, p)
		if len(mentors) == in.Limit {
			break
		}
	}

	env := &Envelope{Success: true, Mentors: mentors, Count: len(mentors)}
	if len(mentors) == 0 {
		env.Message = "no mentors matched " + strings.Join(terms, ", ")
	}
	return env, nil
}

func (d *directoryTools) mentorDetails(ctx context.Context, args map[string]any) (*Envelope, error) {
	var in struct {
		MentorID   string `mapstructure:"mentorId"`
		MentorName string `mapstructure:"mentorName"`
	}
	if err := decode(args, &in); err != nil {
		return nil, err
	}
	id := strings.TrimSpace(in.MentorID)
	name := strings.TrimSpace(in.MentorName)

	switch {
	case id != "":
		p, err := d.profiles.GetProfile(ctx, id)
		if errors.Is(err, directory.ErrNotFound) || (err == nil && p.UserType != directory.UserTypeMentor) {
			return nil, apperr.New(apperr.NotFound, "mentor %q not found", id)
		}
		if err != nil {
			return nil, err
		}
		return &Envelope{Success: true, Mentor: p}, nil
	case name != "":
		mentors, err := d.profiles.ListProfiles(ctx, directory.ProfileQuery{UserType: directory.UserTypeMentor})
		if err != nil {
			return nil, err
		}
		if p := findByName(mentors, name); p != nil {
			return &Envelope{Success: true, Mentor: p}, nil
		}
		return nil, apperr.New(apperr.NotFound, "no mentor named %q", name)
	default:
		return nil, apperr.New(apperr.InvalidArgument, "either mentorId or mentorName is required")
	}
}

// findByName prefers an exact case-insensitive match over a substring match.
func findByName(mentors []*directory.Profile, name string) *directory.Profile {
	for _, p := range mentors {
		if strings.EqualFold(p.DisplayName, name) {
			return p
		}
	}
	lower := strings.ToLower(name)
	for _, p := range mentors {
		if strings.Contains(strings.ToLower(p.DisplayName), lower) {
			return p
		}
	}
	return nil
}

func (d *directoryTools) listProfiles(ctx context.Context, args map[string]any, userType directory.UserType) ([]*directory.Profile, error) {
	var in limitInput
	if err := decode(args, &in); err != nil {
		return nil, err
	}
	if err := in.check(); err != nil {
		return nil, err
	}
	return d.profiles.ListProfiles(ctx, directory.ProfileQuery{UserType: userType, Limit: in.Limit})
}

func (d *directoryTools) allMentors(ctx context.Context, args map[string]any) (*Envelope, error) {
	mentors, err := d.listProfiles(ctx, args, directory.UserTypeMentor)
	if err != nil {
		return nil, err
	}
	return &Envelope{Success: true, Mentors: mentors, Count: len(mentors)}, nil
}

func (d *directoryTools) mentees(ctx context.Context, args map[string]any) (*Envelope, error) {
	mentees, err := d.listProfiles(ctx, args, directory.UserTypeMentee)
	if err != nil {
		return nil, err
	}
	return &Envelope{Success: true, Mentees: mentees, Count: len(mentees)}, nil
}

func (d *directoryTools) activeMentorships(ctx context.Context, args map[string]any) (*Envelope, error) {
	var in limitInput
	if err := decode(args, &in); err != nil {
		return nil, err
	}
	if err := in.check(); err != nil {
		return nil, err
	}
	ms, err := d.mentorships.ListMentorships(ctx, directory.MentorshipQuery{Status: directory.MentorshipActive, Limit: in.Limit})
	if err != nil {
		return nil, err
	}
	return &Envelope{Success: true, Mentorships: ms, Count: len(ms)}, nil
}

func (d *directoryTools) statistics(ctx context.Context, args map[string]any) (*Envelope, error) {
	if err := decode(args, &struct{}{}); err != nil {
		return nil, err
	}

	profiles, err := d.profiles.ListProfiles(ctx, directory.ProfileQuery{})
	if err != nil {
		return nil, err
	}
	mentorships, err := d.mentorships.ListMentorships(ctx, directory.MentorshipQuery{})
	if err != nil {
		return nil, err
	}
	pending, err := d.mentorships.ListInvitations(ctx, directory.InvitationQuery{Status: directory.InvitationPending})
	if err != nil {
		return nil, err
	}

	stats := &Statistics{TotalMentorships: len(mentorships), PendingInvitations: len(pending)}
	for _, p := range profiles {
		switch p.UserType {
		case directory.UserTypeMentor:
			stats.TotalMentors++
		case directory.UserTypeMentee:
			stats.TotalMentees++
		}
	}
	for _, m := range mentorships {
		switch m.Status {
		case directory.MentorshipActive:
			stats.ActiveMentorships++
		case directory.MentorshipPending:
			stats.PendingMentorships++
		}
	}
	return &Envelope{Success: true, Statistics: stats}, nil
}
