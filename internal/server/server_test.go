package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"huntline/internal/config"
	"huntline/internal/db"
	"huntline/internal/engine"
	"huntline/internal/migrate"
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
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	e := engine.New(conn, config.Default())
	e.Now = func() time.Time { return time.Unix(150, 0) }
	if _, err := e.Initialize(context.Background(), "admin", ""); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	handler, err := New(Config{
		Engine:   e,
		BasePath: "/v0",
		Auth: AuthConfig{
			JWTSecret:              "test-secret",
			AllowLegacyActorHeader: true,
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

func asAdmin() map[string]string { return map[string]string{"X-Actor-Id": "admin"} }

func asActor(id string) map[string]string { return map[string]string{"X-Actor-Id": id} }

func errorCode(t *testing.T, data []byte) string {
	t.Helper()
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		t.Fatalf("unmarshal error envelope: %v (%s)", err, string(data))
	}
	return envelope.Error.Code
}

func createTestEvent(t *testing.T, srv *testServer) int64 {
	t.Helper()
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/events", map[string]any{
		"name":           "launch hunt",
		"start_time":     100,
		"end_time":       200,
		"reward_amount":  1000,
		"bonus_bps":      15000,
		"token_metadata": "ipfs://launch-hunt",
		"puzzle_ids":     []int64{1, 2, 3},
	}, asAdmin())
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create event: %d %s", res.StatusCode, string(data))
	}
	var created EventResponse
	if err := json.Unmarshal(data, &created); err != nil {
		t.Fatalf("unmarshal event: %v", err)
	}
	return created.ID
}

func TestEventLifecycleOverHTTP(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	eventID := createTestEvent(t, srv)

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/events/1/completions", map[string]any{
		"participant": "alice",
		"puzzle_id":   1,
		"score":       25,
	}, asAdmin())
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("record completion: %d %s", res.StatusCode, string(data))
	}
	var completion CompletionResponse
	_ = json.Unmarshal(data, &completion)
	if completion.Total != 25 {
		t.Fatalf("expected total 25, got %d", completion.Total)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/events/1/participants/alice/score", nil, asActor("alice"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("get score: %d %s", res.StatusCode, string(data))
	}
	var score ScoreResponse
	_ = json.Unmarshal(data, &score)
	if score.Score != 25 {
		t.Fatalf("expected score 25, got %d", score.Score)
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/events/1/claim", nil, asActor("alice"))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("claim: %d %s", res.StatusCode, string(data))
	}
	var claim ClaimResponse
	_ = json.Unmarshal(data, &claim)
	if claim.Amount != 1500 {
		t.Fatalf("expected amount 1500, got %d", claim.Amount)
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/events/1/tokens", nil, asActor("alice"))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("mint: %d %s", res.StatusCode, string(data))
	}
	var token TokenResponse
	_ = json.Unmarshal(data, &token)
	if token.ID != 1 || token.Owner != "alice" || token.Metadata != "ipfs://launch-hunt" {
		t.Fatalf("unexpected token: %+v", token)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/tokens/1", nil, asActor("alice"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("get token: %d %s", res.StatusCode, string(data))
	}
	if eventID != 1 {
		t.Fatalf("expected first event id 1, got %d", eventID)
	}
}

func TestErrorMapping(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	createTestEvent(t, srv)

	// non-admin cannot create events
	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/events", map[string]any{
		"name": "rogue", "start_time": 1, "end_time": 2,
	}, asActor("mallory"))
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d %s", res.StatusCode, string(data))
	}
	if errorCode(t, data) != "forbidden" {
		t.Fatalf("unexpected code: %s", string(data))
	}

	// duplicate completion conflicts
	for i := 0; i < 2; i++ {
		res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/events/1/completions", map[string]any{
			"participant": "alice", "puzzle_id": 1, "score": 10,
		}, asAdmin())
	}
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d %s", res.StatusCode, string(data))
	}
	if errorCode(t, data) != "puzzle_already_completed" {
		t.Fatalf("unexpected code: %s", string(data))
	}

	// claim without participation
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/events/1/claim", nil, asActor("bob"))
	if res.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d %s", res.StatusCode, string(data))
	}
	if errorCode(t, data) != "not_participant" {
		t.Fatalf("unexpected code: %s", string(data))
	}

	// mint before claim
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/events/1/tokens", nil, asActor("alice"))
	if res.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d %s", res.StatusCode, string(data))
	}
	if errorCode(t, data) != "reward_not_claimed" {
		t.Fatalf("unexpected code: %s", string(data))
	}

	// unknown event
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/events/42", nil, asAdmin())
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d %s", res.StatusCode, string(data))
	}

	// bad time range
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/events", map[string]any{
		"name": "bad", "start_time": 200, "end_time": 100,
	}, asAdmin())
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d %s", res.StatusCode, string(data))
	}
	if errorCode(t, data) != "invalid_time_range" {
		t.Fatalf("unexpected code: %s", string(data))
	}
}

func TestAuthRequired(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/v0/events", nil, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d %s", res.StatusCode, string(data))
	}

	// health stays open
	res, _ = doJSON(t, client, http.MethodGet, srv.URL+"/v0/health", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("health should not require auth, got %d", res.StatusCode)
	}
}

func TestDevLoginBearerFlow(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/auth/dev/login", map[string]any{
		"actor_id": "admin",
	}, asAdmin())
	if res.StatusCode != http.StatusOK {
		t.Fatalf("dev login: %d %s", res.StatusCode, string(data))
	}
	var login DevLoginResponse
	if err := json.Unmarshal(data, &login); err != nil || login.Token == "" {
		t.Fatalf("expected token, got %s", string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/events", map[string]any{
		"name": "via-jwt", "start_time": 100, "end_time": 200,
	}, map[string]string{"Authorization": "Bearer " + login.Token})
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create with bearer: %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/events", nil, map[string]string{"Authorization": "Bearer garbage"})
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad token, got %d %s", res.StatusCode, string(data))
	}
}

func TestAPIKeyFlow(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/apikeys", map[string]any{
		"actor_id": "admin",
		"name":     "ci",
	}, asAdmin())
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create key: %d %s", res.StatusCode, string(data))
	}
	var key APIKeyResponse
	if err := json.Unmarshal(data, &key); err != nil || key.Key == "" {
		t.Fatalf("expected plaintext key, got %s", string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/events", map[string]any{
		"name": "via-key", "start_time": 100, "end_time": 200,
	}, map[string]string{"X-Api-Key": key.Key})
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create with api key: %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodDelete, srv.URL+"/v0/apikeys/"+key.ID, nil, asAdmin())
	if res.StatusCode >= 300 {
		t.Fatalf("delete key: %d %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/events", nil, map[string]string{"X-Api-Key": key.Key})
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("deleted key should not authenticate, got %d %s", res.StatusCode, string(data))
	}
}
