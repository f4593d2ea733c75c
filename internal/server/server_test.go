package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"testing"

	"sprintline/internal/config"
	"sprintline/internal/db"
	"sprintline/internal/domain"
	"sprintline/internal/engine"
	"sprintline/internal/migrate"
)

type testServer struct {
	URL    string
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T) (*testServer, func()) {
	t.Helper()
	workspace := t.TempDir()
	if _, err := db.EnsureWorkspace(workspace); err != nil {
		t.Fatalf("ensure workspace: %v", err)
	}
	cfg := config.Default("sprintline")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	e := engine.New(conn, cfg)
	if _, err := e.InitProject(context.Background(), engine.InitProjectOptions{
		TenantID:  "default",
		ProjectID: cfg.Project.ID,
		Name:      "Sprintline",
		Config:    cfg,
		ActorID:   "tester",
	}); err != nil {
		t.Fatalf("init project: %v", err)
	}
	handler, err := New(Config{
		Engine:   e,
		BasePath: "/v1",
		Auth: AuthConfig{
			JWTSecret:              "test-secret",
			AllowLegacyActorHeader: true,
			EnableDevLogin:         true,
		},
	})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

var actorHeader = map[string]string{"X-Actor-Id": "tester"}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

type responseEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Err     string          `json:"error"`
}

func decodeEnvelope(t *testing.T, data []byte) responseEnvelope {
	t.Helper()
	var env responseEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("decode envelope: %v (%s)", err, string(data))
	}
	return env
}

func unwrap(t *testing.T, data []byte, out any) {
	t.Helper()
	env := decodeEnvelope(t, data)
	if !env.Success {
		t.Fatalf("expected success envelope, got %s", string(data))
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		t.Fatalf("decode data: %v (%s)", err, string(env.Data))
	}
}

func TestHealthIsOpenAndWrapped(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/health", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("health status %d: %s", res.StatusCode, string(data))
	}
	var body map[string]string
	unwrap(t, data, &body)
	if body["status"] != "ok" {
		t.Fatalf("unexpected health body: %v", body)
	}
}

func TestAuthRequired(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/projects", nil, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d: %s", res.StatusCode, string(data))
	}
	env := decodeEnvelope(t, data)
	if env.Success || env.Err == "" {
		t.Fatalf("expected error envelope, got %s", string(data))
	}
	res, _ = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/projects", nil, actorHeader)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("expected legacy header accepted, got %d", res.StatusCode)
	}
}

func TestDevLoginAndBearer(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v1/auth/dev/login", map[string]any{"actor_id": "dev-user"}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("dev login status %d: %s", res.StatusCode, string(data))
	}
	var tok TokenResponse
	unwrap(t, data, &tok)
	if tok.Token == "" {
		t.Fatalf("expected token")
	}
	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/me", nil, map[string]string{"Authorization": "Bearer " + tok.Token})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("me status %d: %s", res.StatusCode, string(data))
	}
	var me map[string]string
	unwrap(t, data, &me)
	if me["actor_id"] != "dev-user" || me["source"] != "jwt" {
		t.Fatalf("unexpected principal: %v", me)
	}
}

func TestSprintLifecycleOverHTTP(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v1/projects/sprintline/stories", map[string]any{
		"title":  "Checkout flow",
		"points": 5,
	}, actorHeader)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create story status %d: %s", res.StatusCode, string(data))
	}
	var story domain.UserStory
	unwrap(t, data, &story)

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/projects/sprintline/sprints", map[string]any{
		"name": "Sprint 1",
	}, actorHeader)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create sprint status %d: %s", res.StatusCode, string(data))
	}
	var sprint domain.Sprint
	unwrap(t, data, &sprint)
	if sprint.Status != "planned" {
		t.Fatalf("expected planned sprint, got %s", sprint.Status)
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/sprints/"+sprint.ID+"/backlog", map[string]any{
		"story_id": story.ID,
	}, actorHeader)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("backlog add status %d: %s", res.StatusCode, string(data))
	}
	var item domain.SprintBacklogItem
	unwrap(t, data, &item)
	if item.SortOrder != 1 {
		t.Fatalf("expected order 1, got %d", item.SortOrder)
	}

	// no snapshot yet
	res, _ = doJSON(t, client, http.MethodGet, srv.URL+"/v1/sprints/"+sprint.ID+"/metrics", nil, actorHeader)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 before snapshot, got %d", res.StatusCode)
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/sprints/"+sprint.ID+"/start", nil, actorHeader)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("start status %d: %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/sprints/"+sprint.ID+"/complete", nil, actorHeader)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("complete status %d: %s", res.StatusCode, string(data))
	}

	// terminal state: restart conflicts
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/sprints/"+sprint.ID+"/start", nil, actorHeader)
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 on restart, got %d: %s", res.StatusCode, string(data))
	}
	env := decodeEnvelope(t, data)
	if env.Success || env.Err == "" {
		t.Fatalf("expected error envelope, got %s", string(data))
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/sprints/"+sprint.ID+"/metrics", nil, actorHeader)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("metrics status %d: %s", res.StatusCode, string(data))
	}
	var metrics domain.SprintMetric
	unwrap(t, data, &metrics)
	if metrics.PlannedPoints != 5 {
		t.Fatalf("expected 5 planned points, got %d", metrics.PlannedPoints)
	}
}

func TestStatusKindMismatchIsConflict(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v1/projects/sprintline/stories", map[string]any{
		"title": "wrong flow",
	}, actorHeader)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create story status %d: %s", res.StatusCode, string(data))
	}
	var story domain.UserStory
	unwrap(t, data, &story)

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/projects/sprintline/tasks", map[string]any{
		"title":     "mismatched",
		"status_id": story.StatusID,
	}, actorHeader)
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 kind mismatch, got %d: %s", res.StatusCode, string(data))
	}
}

func TestStatusLookupRoutes(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/v1/statuses/project/sprintline", nil, actorHeader)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("project statuses status %d: %s", res.StatusCode, string(data))
	}
	var statuses []domain.Status
	unwrap(t, data, &statuses)
	// default catalog: 4 task + 5 story + 4 epic statuses
	if len(statuses) != 13 {
		t.Fatalf("expected 13 provisioned statuses, got %d", len(statuses))
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/statuses/"+statuses[0].ID, nil, actorHeader)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("get status %d: %s", res.StatusCode, string(data))
	}
	var status domain.Status
	unwrap(t, data, &status)
	if status.ID != statuses[0].ID || status.Name == "" {
		t.Fatalf("unexpected status body: %+v", status)
	}

	res, _ = doJSON(t, client, http.MethodGet, srv.URL+"/v1/statuses/nope", nil, actorHeader)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown status, got %d", res.StatusCode)
	}
	res, _ = doJSON(t, client, http.MethodGet, srv.URL+"/v1/statuses/project/nope", nil, actorHeader)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown project, got %d", res.StatusCode)
	}
}

func TestTeamRoutes(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v1/projects/sprintline/teams", map[string]any{
		"name": "Platform",
	}, actorHeader)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create team status %d: %s", res.StatusCode, string(data))
	}
	var team domain.Team
	unwrap(t, data, &team)
	if team.ProjectID != "sprintline" || team.Name != "Platform" {
		t.Fatalf("unexpected team body: %+v", team)
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/teams/"+team.ID+"/members", map[string]any{
		"actor_id": "alice",
	}, actorHeader)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("add member status %d: %s", res.StatusCode, string(data))
	}
	var member domain.TeamMember
	unwrap(t, data, &member)
	if member.Role != "member" {
		t.Fatalf("expected default role member, got %s", member.Role)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/teams/"+team.ID+"/members", nil, actorHeader)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("list members status %d: %s", res.StatusCode, string(data))
	}
	var members []domain.TeamMember
	unwrap(t, data, &members)
	if len(members) != 1 || members[0].ActorID != "alice" {
		t.Fatalf("unexpected members: %+v", members)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/projects/sprintline/teams", nil, actorHeader)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("list teams status %d: %s", res.StatusCode, string(data))
	}
	var teams []domain.Team
	unwrap(t, data, &teams)
	if len(teams) != 1 || teams[0].ID != team.ID {
		t.Fatalf("unexpected teams: %+v", teams)
	}

	res, _ = doJSON(t, client, http.MethodGet, srv.URL+"/v1/teams/nope", nil, actorHeader)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown team, got %d", res.StatusCode)
	}
}

func TestUnknownSprintIs404(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/sprints/nope", nil, actorHeader)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", res.StatusCode, string(data))
	}
	env := decodeEnvelope(t, data)
	if env.Success {
		t.Fatalf("expected error envelope, got %s", string(data))
	}
}
