// Package tools exposes the directory to the orchestrators as a set of named,
// schema-validated read queries that answer with JSON envelopes.
package tools

import (
	"context"

	"github.com/spigell/mentor-matcher/internal/directory"
)

const (
	SearchMentorsByTechnology = "search_mentors_by_technology"
	GetMentorDetails          = "get_mentor_details"
	GetAllMentors             = "get_all_mentors"
	GetActiveMentorships      = "get_active_mentorships"
	GetMentees                = "get_mentees"
	GetSystemStatistics       = "get_system_statistics"
)

// Property describes a single argument.
type Property struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Default     any    `json:"default,omitempty"`
	// Items describes array elements (required for type="array").
	Items    *PropertyItems `json:"items,omitempty"`
	MinItems int            `json:"minItems,omitempty"`
}

// PropertyItems describes the schema for array elements.
type PropertyItems struct {
	Type string `json:"type"`
}

// Schema defines the accepted arguments of a tool.
type Schema struct {
	Required   []string            `json:"required"`
	Properties map[string]Property `json:"properties"`
}

// ExecuteFunc runs a tool against already validated arguments.
type ExecuteFunc func(ctx context.Context, args map[string]any) (*Envelope, error)

type Tool struct {
	Name        string
	Description string
	Schema      Schema
	Execute     ExecuteFunc
}

// Definition is the public description of a tool.
type Definition struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Schema      Schema `json:"schema"`
}

// Statistics summarises the directory.
type Statistics struct {
	TotalMentors       int `json:"totalMentors"`
	TotalMentees       int `json:"totalMentees"`
	TotalMentorships   int `json:"totalMentorships"`
	ActiveMentorships  int `json:"activeMentorships"`
	PendingMentorships int `json:"pendingMentorships"`
	PendingInvitations int `json:"pendingInvitations"`
}

// Envelope is the JSON answer of every tool. Failures carry Error (an
// apperr code) and Message, successes carry the payload fields.
type Envelope struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`

	Mentors     []*directory.Profile    `json:"mentors,omitempty"`
	Mentor      *directory.Profile      `json:"mentor,omitempty"`
	Mentorships []*directory.Mentorship `json:"mentorships,omitempty"`
	Mentees     []*directory.Profile    `json:"mentees,omitempty"`
	Statistics  *Statistics             `json:"statistics,omitempty"`
	Count       int                     `json:"count,omitempty"`
}

// Runner executes tools by name. *Registry implements it.
type Runner interface {
	Execute(ctx context.Context, name string, args map[string]any) *Envelope
}

var _ Runner = (*Registry)(nil)
