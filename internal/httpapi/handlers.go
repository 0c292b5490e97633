package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/spigell/mentor-matcher/internal/apperr"
	"github.com/spigell/mentor-matcher/internal/chat"
	"github.com/spigell/mentor-matcher/internal/directory"
	"github.com/spigell/mentor-matcher/internal/filtering"
	"github.com/spigell/mentor-matcher/internal/lifecycle"
	"github.com/spigell/mentor-matcher/internal/recommend"
)

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) recommend(w http.ResponseWriter, r *http.Request) {
	var req recommend.Request
	if err := decodeBody(r, &req); err != nil {
		writeAppError(w, err)
		return
	}

	result, err := s.deps.Recommender.Recommend(r.Context(), req)
	if err != nil {
		s.logFailure("recommendation failed", err)
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) chat(w http.ResponseWriter, r *http.Request) {
	var req chat.Request
	if err := decodeBody(r, &req); err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Chat.Respond(r.Context(), req))
}

func (s *Server) createMentorship(w http.ResponseWriter, r *http.Request) {
	var req lifecycle.CreateRequest
	if err := decodeBody(r, &req); err != nil {
		writeAppError(w, err)
		return
	}

	created, err := s.deps.Lifecycle.CreateMentorship(r.Context(), req)
	if err != nil {
		s.logFailure("create mentorship failed", err)
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) getMentorship(w http.ResponseWriter, r *http.Request) {
	m, err := s.deps.Lifecycle.GetMentorship(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) candidates(w http.ResponseWriter, r *http.Request) {
	cfg := filtering.Config{}
	query := r.URL.Query()

	if raw := strings.TrimSpace(query.Get("minScore")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeAppError(w, apperr.New(apperr.InvalidArgument, "minScore must be an integer"))
			return
		}
		cfg.MinimumScore = n
	}
	if raw := strings.TrimSpace(query.Get("available")); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			writeAppError(w, apperr.New(apperr.InvalidArgument, "available must be a boolean"))
			return
		}
		cfg.RequireAvailable = b
	}
	for _, raw := range query["skip"] {
		cfg.Skip = append(cfg.Skip, strings.Split(raw, ",")...)
	}

	ranked, err := s.deps.Lifecycle.Candidates(r.Context(), mux.Vars(r)["id"], cfg)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"candidates": ranked})
}

type inviteRequest struct {
	MentorshipID string `json:"mentorshipId"`
	MentorID     string `json:"mentorId"`
	Message      string `json:"message"`
}

func (s *Server) invite(w http.ResponseWriter, r *http.Request) {
	var req inviteRequest
	if err := decodeBody(r, &req); err != nil {
		writeAppError(w, err)
		return
	}

	id, err := s.deps.Lifecycle.Invite(r.Context(), req.MentorshipID, req.MentorID, req.Message)
	if err != nil {
		s.logFailure("invite failed", err)
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"invitationId": id})
}

type respondRequest struct {
	Decision    string `json:"decision"`
	ResponderID string `json:"responderId"`
}

func (s *Server) respond(w http.ResponseWriter, r *http.Request) {
	var req respondRequest
	if err := decodeBody(r, &req); err != nil {
		writeAppError(w, err)
		return
	}

	outcome, err := s.deps.Lifecycle.Respond(r.Context(), mux.Vars(r)["id"], lifecycle.Decision(req.Decision), req.ResponderID)
	if err != nil {
		s.logFailure("respond failed", err)
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func (s *Server) mentorInvitations(w http.ResponseWriter, r *http.Request) {
	status := directory.InvitationStatus(strings.TrimSpace(r.URL.Query().Get("status")))
	invitations, err := s.deps.Lifecycle.ListInvitations(r.Context(), mux.Vars(r)["id"], status)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"invitations": invitations})
}

func (s *Server) listTools(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"tools": s.deps.Tools.Definitions()})
}

// logFailure logs unexpected failures loudly and client mistakes quietly.
func (s *Server) logFailure(msg string, err error) {
	if apperr.CodeOf(err) == apperr.Internal {
		s.logger.Error(msg, zap.Error(err))
		return
	}
	s.logger.Debug(msg, zap.Error(err))
}
