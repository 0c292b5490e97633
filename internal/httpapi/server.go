// Package httpapi exposes the orchestrators and the invitation lifecycle over HTTP.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/spigell/mentor-matcher/internal/chat"
	"github.com/spigell/mentor-matcher/internal/directory"
	"github.com/spigell/mentor-matcher/internal/filtering"
	"github.com/spigell/mentor-matcher/internal/lifecycle"
	"github.com/spigell/mentor-matcher/internal/recommend"
	"github.com/spigell/mentor-matcher/internal/scoring"
	"github.com/spigell/mentor-matcher/internal/tools"
)

type Recommender interface {
	Recommend(ctx context.Context, req recommend.Request) (*recommend.Result, error)
}

type Chatter interface {
	Respond(ctx context.Context, req chat.Request) *chat.Response
}

type Lifecycle interface {
	CreateMentorship(ctx context.Context, req lifecycle.CreateRequest) (*lifecycle.Created, error)
	Invite(ctx context.Context, mentorshipID, mentorID, message string) (string, error)
	Respond(ctx context.Context, invitationID string, decision lifecycle.Decision, responderID string) (*lifecycle.Outcome, error)
	ListInvitations(ctx context.Context, mentorID string, status directory.InvitationStatus) ([]*directory.Invitation, error)
	GetMentorship(ctx context.Context, id string) (*directory.Mentorship, error)
	Candidates(ctx context.Context, mentorshipID string, cfg filtering.Config) ([]scoring.Scored, error)
}

type ToolCatalog interface {
	Definitions() []tools.Definition
}

type Deps struct {
	Recommender Recommender
	Chat        Chatter
	Lifecycle   Lifecycle
	Tools       ToolCatalog
	Logger      *zap.Logger
}

type Server struct {
	deps           Deps
	logger         *zap.Logger
	allowedOrigins []string
}

type Option func(*Server)

// WithAllowedOrigins sets the CORS origins. Empty means any origin.
func WithAllowedOrigins(origins []string) Option {
	return func(s *Server) {
		s.allowedOrigins = origins
	}
}

func New(deps Deps, opts ...Option) *Server {
	s := &Server{deps: deps, logger: deps.Logger}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler builds the routed, CORS-wrapped handler.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(s.recoverer, s.accessLog)

	r.HandleFunc("/healthz", s.health).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/recommendations", s.recommend).Methods(http.MethodPost)
	api.HandleFunc("/chat", s.chat).Methods(http.MethodPost)
	api.HandleFunc("/mentorships", s.createMentorship).Methods(http.MethodPost)
	api.HandleFunc("/mentorships/{id}", s.getMentorship).Methods(http.MethodGet)
	api.HandleFunc("/mentorships/{id}/candidates", s.candidates).Methods(http.MethodGet)
	api.HandleFunc("/invitations", s.invite).Methods(http.MethodPost)
	api.HandleFunc("/invitations/{id}/respond", s.respond).Methods(http.MethodPost)
	api.HandleFunc("/mentors/{id}/invitations", s.mentorInvitations).Methods(http.MethodGet)
	api.HandleFunc("/tools", s.listTools).Methods(http.MethodGet)

	// Subrouters resolve their own mismatches, so both levels need the JSON handlers.
	for _, router := range []*mux.Router{r, api} {
		router.NotFoundHandler = http.HandlerFunc(notFound)
		router.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowed)
	}

	origins := s.allowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		MaxAge:         int((10 * time.Minute).Seconds()),
	})
	return c.Handler(r)
}

func notFound(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusNotFound, "NOT_FOUND", "route not found")
}

func methodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.URL.Path
		if current := mux.CurrentRoute(r); current != nil {
			if tpl, err := current.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		s.logger.Info("http request",
			zap.String("method", r.Method),
			zap.String("route", route),
			zap.Int("status", rec.status),
			zap.Duration("took", time.Since(start)),
		)
	})
}

func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if p := recover(); p != nil {
				s.logger.Error("handler panicked", zap.Any("panic", p), zap.String("path", r.URL.Path))
				writeError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}
