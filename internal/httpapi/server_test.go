package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/spigell/mentor-matcher/internal/ai"
	"github.com/spigell/mentor-matcher/internal/chat"
	"github.com/spigell/mentor-matcher/internal/directory"
	"github.com/spigell/mentor-matcher/internal/directory/memory"
	"github.com/spigell/mentor-matcher/internal/lifecycle"
	"github.com/spigell/mentor-matcher/internal/recommend"
	"github.com/spigell/mentor-matcher/internal/tools"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	store := memory.New()
	profiles := []*directory.Profile{
		{UID: "mentee-1", DisplayName: "Eve", UserType: directory.UserTypeMentee},
		{UID: "m1", DisplayName: "Ada", UserType: directory.UserTypeMentor, Technologies: []directory.Technology{{Name: "React"}}, YearsOfExperience: 8, Rating: 4.9, Availability: "available"},
		{UID: "m2", DisplayName: "Grace", UserType: directory.UserTypeMentor, Technologies: []directory.Technology{{Name: "Node"}}, YearsOfExperience: 3, Rating: 4.2},
	}
	if err := directory.Seed(context.Background(), store, profiles); err != nil {
		t.Fatalf("seed: %v", err)
	}

	registry := tools.New(store, store)
	model := ai.ModelFunc(func(context.Context, ai.Request) (string, error) {
		return "Ada would be a great fit.", nil
	})

	srv := New(Deps{
		Recommender: recommend.New(registry, nil),
		Chat:        chat.New(registry, model),
		Lifecycle:   lifecycle.New(store),
		Tools:       registry,
	}, WithAllowedOrigins([]string{"https://app.example.com"}))

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func do(t *testing.T, ts *httptest.Server, method, path, body string) (int, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, ts.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var decoded map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("decode %s %s: %v", method, path, err)
	}
	return resp.StatusCode, decoded
}

func TestRecommendations(t *testing.T) {
	ts := newTestServer(t)

	status, body := do(t, ts, http.MethodPost, "/api/recommendations", `{"menteeId":"mentee-1","technologies":["react","node"],"challengeDescription":"dashboard"}`)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d: %v", status, body)
	}
	top := body["topMentors"].([]any)
	if len(top) != 2 {
		t.Fatalf("expected 2 top mentors, got %v", top)
	}
	first := top[0].(map[string]any)
	if first["uid"] != "m1" || !strings.Contains(first["aiInsight"].(string), "react, node") {
		t.Fatalf("unexpected first mentor: %v", first)
	}
	if _, ok := body["otherMentors"].([]any); !ok {
		t.Fatalf("expected otherMentors array, got %v", body["otherMentors"])
	}

	status, body = do(t, ts, http.MethodPost, "/api/recommendations", `{"menteeId":"mentee-1","technologies":[]}`)
	if status != http.StatusBadRequest || body["error"] != "INVALID_ARGUMENT" || body["success"] != false {
		t.Fatalf("expected 400 INVALID_ARGUMENT, got %d: %v", status, body)
	}

	status, body = do(t, ts, http.MethodPost, "/api/recommendations", `{not json`)
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed body, got %d: %v", status, body)
	}
}

func TestChatAlwaysAnswers(t *testing.T) {
	ts := newTestServer(t)

	status, body := do(t, ts, http.MethodPost, "/api/chat", `{"message":"find me a mentor for react","chatHistory":[{"role":"user","content":"hi"}]}`)
	if status != http.StatusOK || body["response"] != "Ada would be a great fit." {
		t.Fatalf("unexpected chat response %d: %v", status, body)
	}
	if steps := body["thinkingSteps"].([]any); len(steps) != 4 {
		t.Fatalf("expected 4 thinking steps, got %v", steps)
	}

	status, body = do(t, ts, http.MethodPost, "/api/chat", `{"message":""}`)
	if status != http.StatusOK || !strings.HasPrefix(body["response"].(string), "I'm sorry") {
		t.Fatalf("expected apology with 200, got %d: %v", status, body)
	}
}

func TestInvitationFlow(t *testing.T) {
	ts := newTestServer(t)

	status, body := do(t, ts, http.MethodPost, "/api/mentorships", `{"menteeId":"mentee-1","technologies":["react"],"invitedMentorIds":["m1","m2"],"message":"hello"}`)
	if status != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %v", status, body)
	}
	mentorship := body["mentorship"].(map[string]any)
	msID := mentorship["id"].(string)
	invitations := body["invitations"].([]any)
	first := invitations[0].(map[string]any)["id"].(string)
	second := invitations[1].(map[string]any)["id"].(string)

	status, body = do(t, ts, http.MethodGet, "/api/mentorships/"+msID+"/candidates", "")
	if status != http.StatusOK || len(body["candidates"].([]any)) != 0 {
		t.Fatalf("expected no candidates once everyone is invited, got %d: %v", status, body)
	}

	status, body = do(t, ts, http.MethodGet, "/api/mentorships/"+msID+"/candidates?skip=already_invited", "")
	if status != http.StatusOK || len(body["candidates"].([]any)) != 1 {
		t.Fatalf("expected m1 back once already_invited is skipped, got %d: %v", status, body)
	}

	status, body = do(t, ts, http.MethodGet, "/api/mentorships/"+msID+"/candidates?skip=salary", "")
	if status != http.StatusBadRequest || body["error"] != "INVALID_ARGUMENT" {
		t.Fatalf("expected 400 for unknown filter, got %d: %v", status, body)
	}

	status, body = do(t, ts, http.MethodGet, "/api/mentors/m2/invitations?status=pending", "")
	if status != http.StatusOK || len(body["invitations"].([]any)) != 1 {
		t.Fatalf("expected one pending invitation for m2, got %d: %v", status, body)
	}

	status, body = do(t, ts, http.MethodPost, "/api/invitations/"+first+"/respond", `{"decision":"accept","responderId":"m1"}`)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d: %v", status, body)
	}
	if body["mentorship"].(map[string]any)["mentorId"] != "m1" {
		t.Fatalf("expected m1 to own the mentorship, got %v", body)
	}

	status, body = do(t, ts, http.MethodPost, "/api/invitations/"+second+"/respond", `{"decision":"accept","responderId":"m2"}`)
	if status != http.StatusConflict || body["error"] != "CONFLICT" || body["message"] != "mentorship already filled" {
		t.Fatalf("expected 409 conflict, got %d: %v", status, body)
	}

	status, body = do(t, ts, http.MethodGet, "/api/mentorships/"+msID, "")
	if status != http.StatusOK || body["status"] != "active" {
		t.Fatalf("expected active mentorship, got %d: %v", status, body)
	}

	status, body = do(t, ts, http.MethodPost, "/api/invitations", fmt.Sprintf(`{"mentorshipId":%q,"mentorId":"m1"}`, msID))
	if status != http.StatusOK || body["invitationId"] != first {
		t.Fatalf("expected idempotent invite to return %s, got %d: %v", first, status, body)
	}
}

func TestErrorsAndMisc(t *testing.T) {
	ts := newTestServer(t)

	status, body := do(t, ts, http.MethodGet, "/api/mentorships/ghost", "")
	if status != http.StatusNotFound || body["error"] != "NOT_FOUND" {
		t.Fatalf("expected 404, got %d: %v", status, body)
	}

	status, body = do(t, ts, http.MethodGet, "/api/mentorships/ghost/candidates?minScore=high", "")
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad minScore, got %d: %v", status, body)
	}

	status, body = do(t, ts, http.MethodGet, "/api/tools", "")
	if status != http.StatusOK || len(body["tools"].([]any)) != 6 {
		t.Fatalf("expected 6 tools, got %d: %v", status, body)
	}

	status, body = do(t, ts, http.MethodGet, "/healthz", "")
	if status != http.StatusOK || body["status"] != "ok" {
		t.Fatalf("unexpected health response %d: %v", status, body)
	}

	status, _ = do(t, ts, http.MethodGet, "/api/chat", "")
	if status != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", status)
	}
}

func TestRouteMismatchUsesErrorEnvelope(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		method string
		path   string
		status int
		code   string
	}{
		{method: http.MethodGet, path: "/api/chat", status: http.StatusMethodNotAllowed, code: "METHOD_NOT_ALLOWED"},
		{method: http.MethodGet, path: "/api/recommendations", status: http.StatusMethodNotAllowed, code: "METHOD_NOT_ALLOWED"},
		{method: http.MethodPost, path: "/api/mentorships/x1", status: http.StatusMethodNotAllowed, code: "METHOD_NOT_ALLOWED"},
		{method: http.MethodGet, path: "/api/unknown", status: http.StatusNotFound, code: "NOT_FOUND"},
		{method: http.MethodGet, path: "/nowhere", status: http.StatusNotFound, code: "NOT_FOUND"},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			status, body := do(t, ts, tt.method, tt.path, "")
			if status != tt.status {
				t.Fatalf("expected %d, got %d: %v", tt.status, status, body)
			}
			if body["error"] != tt.code || body["success"] != false {
				t.Fatalf("expected %s error envelope, got %v", tt.code, body)
			}
		})
	}
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t)

	req, _ := http.NewRequest(http.MethodOptions, ts.URL+"/api/recommendations", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)

	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("preflight: %v", err)
	}
	resp.Body.Close()

	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Fatalf("expected allowed origin header, got %q", got)
	}
}
