package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"testing"

	"hireline/internal/config"
	"hireline/internal/db"
	"hireline/internal/engine"
	"hireline/internal/migrate"
)

const testJWTSecret = "server-test-secret"

type testServer struct {
	URL    string
	Engine engine.Engine
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
	cfg := config.Default("acme")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	e := engine.New(conn, cfg)
	if _, err := e.InitCompany(context.Background(), "acme", "Acme", "rec-1"); err != nil {
		t.Fatalf("init company: %v", err)
	}
	handler, err := New(Config{Engine: e, BasePath: "/v0", Auth: AuthConfig{JWTSecret: testJWTSecret}})
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
		Engine: e,
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

func authHeaders(t *testing.T, actorID, companyID string) map[string]string {
	t.Helper()
	token, err := signDevToken(testJWTSecret, actorID, companyID)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return map[string]string{"Authorization": "Bearer " + token}
}

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

func TestMoveFlow(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	auth := authHeaders(t, "rec-1", "acme")

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/jobs", map[string]any{
		"title": "Backend Engineer",
	}, auth)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create job: %d %s", res.StatusCode, string(data))
	}
	var job JobResponse
	if err := json.Unmarshal(data, &job); err != nil {
		t.Fatalf("unmarshal job: %v", err)
	}
	if len(job.Stages) != 3 {
		t.Fatalf("expected default pipeline, got %d stages", len(job.Stages))
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/jobs/"+job.ID+"/applications", map[string]any{
		"first_name": "Ana",
		"last_name":  "Silva",
		"email":      "ana@example.com",
	}, auth)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create application: %d %s", res.StatusCode, string(data))
	}
	var app ApplicationResponse
	_ = json.Unmarshal(data, &app)

	moveURL := srv.URL + "/v0/jobs/" + job.ID + "/applications/" + app.ID + "/move"
	res, data = doJSON(t, client, http.MethodPost, moveURL, map[string]any{
		"to_stage_id": job.Stages[0].ID,
	}, auth)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("move: %d %s", res.StatusCode, string(data))
	}
	var moved MoveApplicationResponse
	_ = json.Unmarshal(data, &moved)
	if !moved.Changed || moved.History == nil || moved.History.FromStageID != nil {
		t.Fatalf("unexpected move result: %s", string(data))
	}

	// Moving to the stage it is already at reports no change.
	res, data = doJSON(t, client, http.MethodPost, moveURL, map[string]any{
		"to_stage_id": job.Stages[0].ID,
	}, auth)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("repeat move: %d %s", res.StatusCode, string(data))
	}
	_ = json.Unmarshal(data, &moved)
	if moved.Changed {
		t.Fatalf("repeat move should not change: %s", string(data))
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/jobs/"+job.ID+"/applications/"+app.ID+"/history", nil, auth)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("history: %d %s", res.StatusCode, string(data))
	}
	var history []StageHistoryResponse
	_ = json.Unmarshal(data, &history)
	if len(history) != 1 {
		t.Fatalf("expected 1 ledger row, got %d", len(history))
	}

	// A stage from a different job is rejected as unprocessable.
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/jobs", map[string]any{"title": "Designer"}, auth)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create second job: %d %s", res.StatusCode, string(data))
	}
	var other JobResponse
	_ = json.Unmarshal(data, &other)
	res, data = doJSON(t, client, http.MethodPost, moveURL, map[string]any{
		"to_stage_id": other.Stages[0].ID,
	}, auth)
	if res.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("foreign stage: expected 422, got %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/jobs/"+job.ID+"/applications/"+app.ID+"/history/verify", nil, auth)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("verify: %d %s", res.StatusCode, string(data))
	}
	var check engine.HistoryCheck
	_ = json.Unmarshal(data, &check)
	if !check.Consistent {
		t.Fatalf("ledger inconsistent: %s", string(data))
	}
}

func TestTagFlow(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	auth := authHeaders(t, "rec-1", "acme")

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/jobs", map[string]any{"title": "Backend Engineer"}, auth)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create job: %d %s", res.StatusCode, string(data))
	}
	var job JobResponse
	_ = json.Unmarshal(data, &job)
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/jobs/"+job.ID+"/applications", map[string]any{
		"first_name": "Bruno", "last_name": "Costa",
	}, auth)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create application: %d %s", res.StatusCode, string(data))
	}
	var app ApplicationResponse
	_ = json.Unmarshal(data, &app)

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/tags", map[string]any{"label": "Finalista"}, auth)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create tag: %d %s", res.StatusCode, string(data))
	}
	var tag TagResponse
	_ = json.Unmarshal(data, &tag)
	if tag.Color != "#3B82F6" {
		t.Fatalf("default color not applied: %s", string(data))
	}

	// Duplicate label conflicts.
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/tags", map[string]any{"label": "Finalista"}, auth)
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate label: expected 409, got %d %s", res.StatusCode, string(data))
	}

	tagsURL := srv.URL + "/v0/jobs/" + job.ID + "/applications/" + app.ID + "/tags"
	res, data = doJSON(t, client, http.MethodPost, tagsURL, map[string]any{"tag_id": tag.ID}, auth)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("add tag: %d %s", res.StatusCode, string(data))
	}
	var added AddTagResponse
	_ = json.Unmarshal(data, &added)
	if !added.Created {
		t.Fatalf("first add should create: %s", string(data))
	}
	res, data = doJSON(t, client, http.MethodPost, tagsURL, map[string]any{"tag_id": tag.ID}, auth)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("repeat add: %d %s", res.StatusCode, string(data))
	}
	_ = json.Unmarshal(data, &added)
	if added.Created {
		t.Fatalf("repeat add must be idempotent: %s", string(data))
	}

	// Unknown tag is unprocessable.
	res, data = doJSON(t, client, http.MethodPost, tagsURL, map[string]any{"tag_id": "nope"}, auth)
	if res.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("unknown tag: expected 422, got %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodDelete, tagsURL+"/"+tag.ID, nil, auth)
	if res.StatusCode != http.StatusNoContent {
		t.Fatalf("remove tag: %d %s", res.StatusCode, string(data))
	}
	// Removing again still succeeds.
	res, data = doJSON(t, client, http.MethodDelete, tagsURL+"/"+tag.ID, nil, auth)
	if res.StatusCode != http.StatusNoContent {
		t.Fatalf("repeat remove: %d %s", res.StatusCode, string(data))
	}
}

func TestAuthAndTenancy(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	auth := authHeaders(t, "rec-1", "acme")

	// No credentials.
	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/v0/jobs", nil, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d %s", res.StatusCode, string(data))
	}
	// Health stays open.
	res, _ = doJSON(t, client, http.MethodGet, srv.URL+"/v0/health", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("health: %d", res.StatusCode)
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/jobs", map[string]any{"title": "Backend Engineer"}, auth)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create job: %d %s", res.StatusCode, string(data))
	}
	var job JobResponse
	_ = json.Unmarshal(data, &job)

	// Another company's token cannot see the job.
	if _, err := srv.Engine.InitCompany(context.Background(), "globex", "Globex", "rec-9"); err != nil {
		t.Fatalf("init second company: %v", err)
	}
	otherAuth := authHeaders(t, "rec-9", "globex")
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/jobs/"+job.ID, nil, otherAuth)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("cross-tenant get: expected 404, got %d %s", res.StatusCode, string(data))
	}

	// API keys authenticate and pin the tenant.
	_, plaintext, err := srv.Engine.CreateAPIKey(context.Background(), "acme", "rec-1", "ci")
	if err != nil {
		t.Fatalf("create api key: %v", err)
	}
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/jobs/"+job.ID, nil, map[string]string{"X-Api-Key": plaintext})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("api key get: %d %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/me", nil, map[string]string{"X-Api-Key": plaintext})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("me: %d %s", res.StatusCode, string(data))
	}
	var who WhoAmIResponse
	_ = json.Unmarshal(data, &who)
	if who.CompanyID != "acme" || who.ActorID != "rec-1" || who.Source != "api_key" {
		t.Fatalf("unexpected principal: %s", string(data))
	}
}
