package handler_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/stemsi/help-queue/internal/config"
	"github.com/stemsi/help-queue/internal/handler"
	"github.com/stemsi/help-queue/internal/middleware"
	"github.com/stemsi/help-queue/internal/repository"
	"github.com/stemsi/help-queue/internal/router"
	"github.com/stemsi/help-queue/internal/service"
	"github.com/stemsi/help-queue/internal/session"
	"github.com/stemsi/help-queue/internal/validator"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	validator.Setup()
	os.Exit(m.Run())
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	cfg := &config.Config{
		GinMode:             gin.TestMode,
		StoreDriver:         config.StoreDriverMemory,
		Roster:              []string{"Alice", "Bob"},
		SessionSecret:       "test-secret",
		SessionTTL:          time.Hour,
		SubmitRatePerMinute: 100,
	}
	log := zerolog.New(io.Discard)

	repo := repository.NewHelpRequestRepository(repository.NewMemoryTable())
	queue := service.NewQueueService(repo, cfg.Roster, log)
	sessions := service.NewSessionService(cfg, session.NewMemoryStore())
	limiter := middleware.NewRateLimiter(cfg.SubmitRatePerMinute, time.Minute)

	handlers := &router.Handlers{
		UI:      handler.NewUIHandler(queue, sessions, limiter, log),
		Queue:   handler.NewQueueHandler(queue, log),
		Session: handler.NewSessionHandler(sessions, log),
		WS:      handler.NewWSHandler(queue, log, nil),
		System:  handler.NewSystemHandler(nil, cfg.StoreDriver, log),
	}

	srv := httptest.NewServer(router.SetupRouter(sessions, limiter, handlers, cfg, log))
	t.Cleanup(srv.Close)
	return srv
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code   string            `json:"code"`
		Fields map[string]string `json:"fields"`
	} `json:"error"`
}

func doJSON(t *testing.T, method, url, token string, body any) (int, envelope) {
	t.Helper()

	var rdr io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rdr = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, url, rdr)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode %s %s: %v", method, url, err)
	}
	return resp.StatusCode, env
}

type pendingData struct {
	Requests []struct {
		ID     string `json:"id"`
		Name   string `json:"name"`
		Rating int    `json:"rating"`
	} `json:"requests"`
	Count int `json:"count"`
}

func listPending(t *testing.T, base string) pendingData {
	t.Helper()
	status, env := doJSON(t, http.MethodGet, base+"/api/v1/requests/pending", "", nil)
	if status != http.StatusOK {
		t.Fatalf("list pending: status %d", status)
	}
	var data pendingData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatal(err)
	}
	return data
}

func TestQueueAPIFlow(t *testing.T) {
	srv := newTestServer(t)

	for _, body := range []map[string]any{
		{"name": "Alice", "rating": 7},
		{"name": "Bob", "rating": 2},
	} {
		status, env := doJSON(t, http.MethodPost, srv.URL+"/api/v1/requests", "", body)
		if status != http.StatusCreated {
			t.Fatalf("submit %v: status %d, error %+v", body, status, env.Error)
		}
	}

	pending := listPending(t, srv.URL)
	if pending.Count != 2 || pending.Requests[0].Name != "Bob" || pending.Requests[1].Name != "Alice" {
		t.Fatalf("unexpected order %+v", pending)
	}

	bobID := pending.Requests[0].ID
	status, _ := doJSON(t, http.MethodPost, srv.URL+"/api/v1/requests/"+bobID+"/helped", "", nil)
	if status != http.StatusOK {
		t.Fatalf("mark helped: status %d", status)
	}
	// Marking twice is a no-op.
	status, _ = doJSON(t, http.MethodPost, srv.URL+"/api/v1/requests/"+bobID+"/helped", "", nil)
	if status != http.StatusOK {
		t.Fatalf("mark helped again: status %d", status)
	}

	pending = listPending(t, srv.URL)
	if pending.Count != 1 || pending.Requests[0].Name != "Alice" {
		t.Fatalf("unexpected pending after helped %+v", pending)
	}

	status, env := doJSON(t, http.MethodPost, srv.URL+"/api/v1/requests/nope/helped", "", nil)
	if status != http.StatusNotFound || env.Error == nil || env.Error.Code != "NOT_FOUND" {
		t.Fatalf("unknown id: status %d, error %+v", status, env.Error)
	}

	status, env = doJSON(t, http.MethodDelete, srv.URL+"/api/v1/requests", "", map[string]string{"confirm": "yes"})
	if status != http.StatusBadRequest || env.Error.Code != "VALIDATION_ERROR" {
		t.Fatalf("reset without confirm: status %d, error %+v", status, env.Error)
	}
	if listPending(t, srv.URL).Count != 1 {
		t.Fatal("unconfirmed reset must not clear the queue")
	}

	status, _ = doJSON(t, http.MethodDelete, srv.URL+"/api/v1/requests", "", map[string]string{"confirm": "RESET"})
	if status != http.StatusOK {
		t.Fatalf("reset: status %d", status)
	}
	if got := listPending(t, srv.URL); got.Count != 0 {
		t.Fatalf("expected empty queue after reset, got %+v", got)
	}
}

func TestSubmitRequestValidation(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name  string
		body  map[string]any
		field string
	}{
		{name: "rating too low", body: map[string]any{"name": "Alice", "rating": 0}, field: "rating"},
		{name: "rating too high", body: map[string]any{"name": "Alice", "rating": 11}, field: "rating"},
		{name: "missing name", body: map[string]any{"rating": 3}, field: "name"},
		{name: "name off roster", body: map[string]any{"name": "Mallory", "rating": 3}, field: "name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, env := doJSON(t, http.MethodPost, srv.URL+"/api/v1/requests", "", tt.body)
			if status != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", status)
			}
			if env.Error == nil || env.Error.Code != "VALIDATION_ERROR" {
				t.Fatalf("unexpected error %+v", env.Error)
			}
			if _, ok := env.Error.Fields[tt.field]; !ok {
				t.Fatalf("expected field %q in %v", tt.field, env.Error.Fields)
			}
		})
	}

	if got := listPending(t, srv.URL); got.Count != 0 {
		t.Fatalf("rejected submissions must not be stored, got %+v", got)
	}
}

func TestSessionAPIFlow(t *testing.T) {
	srv := newTestServer(t)

	status, env := doJSON(t, http.MethodPost, srv.URL+"/api/v1/session", "", nil)
	if status != http.StatusCreated {
		t.Fatalf("start session: status %d", status)
	}
	var started struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(env.Data, &started); err != nil || started.Token == "" {
		t.Fatalf("missing token: %v %s", err, env.Data)
	}

	type statePayload struct {
		Session struct {
			User  string `json:"user"`
			Level *int   `json:"level"`
			Page  string `json:"page"`
		} `json:"session"`
	}
	decode := func(env envelope) statePayload {
		var p statePayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			t.Fatal(err)
		}
		return p
	}

	status, _ = doJSON(t, http.MethodGet, srv.URL+"/api/v1/session/me", "", nil)
	if status != http.StatusUnauthorized {
		t.Fatalf("me without token: status %d", status)
	}

	status, _ = doJSON(t, http.MethodPut, srv.URL+"/api/v1/session/page", started.Token, map[string]string{"page": "instructor"})
	if status != http.StatusBadRequest {
		t.Fatalf("navigate before login: status %d", status)
	}

	status, env = doJSON(t, http.MethodPost, srv.URL+"/api/v1/session/login", started.Token, map[string]string{"name": "Mallory"})
	if status != http.StatusBadRequest {
		t.Fatalf("login off roster: status %d", status)
	}

	status, env = doJSON(t, http.MethodPost, srv.URL+"/api/v1/session/login", started.Token, map[string]string{"name": "Alice"})
	if status != http.StatusOK || decode(env).Session.Page != "level" {
		t.Fatalf("login: status %d, %s", status, env.Data)
	}

	status, env = doJSON(t, http.MethodPut, srv.URL+"/api/v1/session/level", started.Token, map[string]int{"level": 3})
	if status != http.StatusOK {
		t.Fatalf("save level: status %d", status)
	}
	got := decode(env).Session
	if got.Page != "student" || got.Level == nil || *got.Level != 3 || got.User != "Alice" {
		t.Fatalf("unexpected state %+v", got)
	}

	status, env = doJSON(t, http.MethodPut, srv.URL+"/api/v1/session/page", started.Token, map[string]string{"page": "instructor"})
	if status != http.StatusOK || decode(env).Session.Page != "instructor" {
		t.Fatalf("navigate: status %d, %s", status, env.Data)
	}

	status, _ = doJSON(t, http.MethodDelete, srv.URL+"/api/v1/session", started.Token, nil)
	if status != http.StatusOK {
		t.Fatalf("end session: status %d", status)
	}
	status, env = doJSON(t, http.MethodGet, srv.URL+"/api/v1/session/me", started.Token, nil)
	if status != http.StatusUnauthorized || env.Error.Code != "SESSION_INVALID" {
		t.Fatalf("ended session: status %d, error %+v", status, env.Error)
	}
}

func newBrowser(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatal(err)
	}
	return &http.Client{Jar: jar}
}

func get(t *testing.T, client *http.Client, target string) (string, string) {
	t.Helper()
	resp, err := client.Get(target)
	if err != nil {
		t.Fatal(err)
	}
	return readPage(t, resp)
}

func post(t *testing.T, client *http.Client, target string, form url.Values) (string, string) {
	t.Helper()
	resp, err := client.PostForm(target, form)
	if err != nil {
		t.Fatal(err)
	}
	return readPage(t, resp)
}

// readPage returns the final path after redirects and the page body.
func readPage(t *testing.T, resp *http.Response) (string, string) {
	t.Helper()
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return resp.Request.URL.Path, string(body)
}

func TestBrowserFlow(t *testing.T) {
	srv := newTestServer(t)
	browser := newBrowser(t)

	path, _ := get(t, browser, srv.URL+"/")
	if path != "/login" {
		t.Fatalf("expected redirect to /login, got %s", path)
	}

	// Pages behind login bounce back.
	path, _ = get(t, browser, srv.URL+"/instructor")
	if path != "/login" {
		t.Fatalf("expected /instructor to require login, got %s", path)
	}

	path, body := post(t, browser, srv.URL+"/login", url.Values{"name": {""}})
	if path != "/login" || !strings.Contains(body, "Please select your name.") {
		t.Fatalf("empty login: path %s body %s", path, body)
	}

	path, body = post(t, browser, srv.URL+"/login", url.Values{"name": {"Alice"}})
	if path != "/level" || !strings.Contains(body, `value="5"`) {
		t.Fatalf("login: path %s body %s", path, body)
	}

	path, _ = get(t, browser, srv.URL+"/student")
	if path != "/level" {
		t.Fatalf("student view before level: got %s", path)
	}

	path, body = post(t, browser, srv.URL+"/level", url.Values{"level": {"3"}})
	if path != "/student" || !strings.Contains(body, "Logged in as <strong>Alice</strong>") {
		t.Fatalf("level: path %s body %s", path, body)
	}
	if !strings.Contains(body, `<option value="3" selected>`) {
		t.Fatalf("rating should default to saved level: %s", body)
	}

	path, body = post(t, browser, srv.URL+"/student/requests", url.Values{"rating": {"2"}})
	if path != "/student" || !strings.Contains(body, "Your help request has been submitted.") {
		t.Fatalf("submit: path %s body %s", path, body)
	}

	path, body = get(t, browser, srv.URL+"/instructor")
	if path != "/instructor" || !strings.Contains(body, "<strong>Alice</strong></td>") {
		t.Fatalf("dashboard: path %s body %s", path, body)
	}

	pending := listPending(t, srv.URL)
	if pending.Count != 1 || pending.Requests[0].Rating != 2 {
		t.Fatalf("unexpected pending %+v", pending)
	}

	_, body = post(t, browser, srv.URL+"/instructor/requests/"+pending.Requests[0].ID+"/helped", nil)
	if !strings.Contains(body, "Marked as helped.") || !strings.Contains(body, "No pending requests.") {
		t.Fatalf("helped: %s", body)
	}

	_, body = post(t, browser, srv.URL+"/instructor/requests/missing/helped", nil)
	if !strings.Contains(body, "That request no longer exists.") {
		t.Fatalf("unknown id should be informational: %s", body)
	}

	_, body = get(t, browser, srv.URL+"/instructor/reset")
	if !strings.Contains(body, `value="RESET"`) {
		t.Fatalf("confirm page: %s", body)
	}

	path, body = post(t, browser, srv.URL+"/instructor/reset", url.Values{"confirm": {"RESET"}})
	if path != "/instructor" || !strings.Contains(body, "No help requests yet.") {
		t.Fatalf("reset: path %s body %s", path, body)
	}

	path, _ = post(t, browser, srv.URL+"/logout", nil)
	if path != "/login" {
		t.Fatalf("logout: got %s", path)
	}
	path, _ = get(t, browser, srv.URL+"/student")
	if path != "/login" {
		t.Fatalf("after logout: got %s", path)
	}
}

func TestBrowserSessionsAreIsolated(t *testing.T) {
	srv := newTestServer(t)
	alice, bob := newBrowser(t), newBrowser(t)

	post(t, alice, srv.URL+"/login", url.Values{"name": {"Alice"}})
	post(t, alice, srv.URL+"/level", url.Values{"level": {"4"}})

	path, _ := get(t, bob, srv.URL+"/student")
	if path != "/login" {
		t.Fatalf("second browser must start logged out, got %s", path)
	}
}

type wsEvent struct {
	Event    string `json:"event"`
	Error    string `json:"error"`
	Requests []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"requests"`
}

func TestInstructorWebSocket(t *testing.T) {
	srv := newTestServer(t)

	status, _ := doJSON(t, http.MethodPost, srv.URL+"/api/v1/requests", "", map[string]any{"name": "Bob", "rating": 6})
	if status != http.StatusCreated {
		t.Fatalf("seed: status %d", status)
	}

	token := startSession(t, srv.URL)
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/v1/instructor/queue?token=" + url.QueryEscape(token)
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	roundTrip := func(msg any) wsEvent {
		t.Helper()
		if err := conn.WriteJSON(msg); err != nil {
			t.Fatal(err)
		}
		conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		var evt wsEvent
		if err := conn.ReadJSON(&evt); err != nil {
			t.Fatal(err)
		}
		return evt
	}

	if evt := roundTrip(map[string]string{"action": "ping"}); evt.Event != "pong" {
		t.Fatalf("ping: %+v", evt)
	}

	evt := roundTrip(map[string]string{"action": "refresh"})
	if evt.Event != "queue" || len(evt.Requests) != 1 || evt.Requests[0].Name != "Bob" {
		t.Fatalf("refresh: %+v", evt)
	}

	if evt := roundTrip(map[string]string{"action": "helped", "id": "missing"}); evt.Event != "error" {
		t.Fatalf("unknown id: %+v", evt)
	}

	evt = roundTrip(map[string]string{"action": "helped", "id": evt.Requests[0].ID})
	if evt.Event != "queue" || len(evt.Requests) != 0 {
		t.Fatalf("helped: %+v", evt)
	}

	if evt := roundTrip(map[string]string{"action": "reset", "confirm": "no"}); evt.Event != "error" {
		t.Fatalf("unconfirmed reset: %+v", evt)
	}
	if evt := roundTrip(map[string]string{"action": "reset", "confirm": "RESET"}); evt.Event != "queue" {
		t.Fatalf("reset: %+v", evt)
	}
	if evt := roundTrip(map[string]string{"action": "dance"}); evt.Event != "error" {
		t.Fatalf("unknown action: %+v", evt)
	}
}

func TestInstructorWebSocketRequiresSession(t *testing.T) {
	srv := newTestServer(t)
	base := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/v1/instructor/queue"

	for name, query := range map[string]string{
		"no token":      "",
		"unknown token": "?token=not-a-session",
	} {
		t.Run(name, func(t *testing.T) {
			conn, resp, err := websocket.DefaultDialer.Dial(base+query, nil)
			if err == nil {
				conn.Close()
				t.Fatal("expected the upgrade to be refused")
			}
			if resp == nil || resp.StatusCode != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %v (%v)", resp, err)
			}
		})
	}
}

func TestSubmitRequestUsesSessionUser(t *testing.T) {
	srv := newTestServer(t)

	token := startSession(t, srv.URL)
	status, _ := doJSON(t, http.MethodPost, srv.URL+"/api/v1/requests", token, map[string]any{"rating": 4})
	if status != http.StatusBadRequest {
		t.Fatalf("submit before login: status %d", status)
	}

	status, _ = doJSON(t, http.MethodPost, srv.URL+"/api/v1/session/login", token, map[string]string{"name": "Bob"})
	if status != http.StatusOK {
		t.Fatalf("login: status %d", status)
	}

	status, env := doJSON(t, http.MethodPost, srv.URL+"/api/v1/requests", token, map[string]any{"rating": 4})
	if status != http.StatusCreated {
		t.Fatalf("submit with session: status %d, error %+v", status, env.Error)
	}
	// An explicit name still wins.
	status, _ = doJSON(t, http.MethodPost, srv.URL+"/api/v1/requests", token, map[string]any{"name": "Alice", "rating": 9})
	if status != http.StatusCreated {
		t.Fatalf("submit with explicit name: status %d", status)
	}

	pending := listPending(t, srv.URL)
	if pending.Count != 2 || pending.Requests[0].Name != "Bob" || pending.Requests[1].Name != "Alice" {
		t.Fatalf("unexpected pending %+v", pending)
	}

	status, env = doJSON(t, http.MethodPost, srv.URL+"/api/v1/requests", "not-a-session", map[string]any{"rating": 4})
	if status != http.StatusUnauthorized || env.Error == nil || env.Error.Code != "SESSION_INVALID" {
		t.Fatalf("unknown token: status %d, error %+v", status, env.Error)
	}
}

func startSession(t *testing.T, base string) string {
	t.Helper()
	status, env := doJSON(t, http.MethodPost, base+"/api/v1/session", "", nil)
	if status != http.StatusCreated {
		t.Fatalf("start session: status %d", status)
	}
	var started struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(env.Data, &started); err != nil || started.Token == "" {
		t.Fatalf("missing token: %v %s", err, env.Data)
	}
	return started.Token
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)

	status, env := doJSON(t, http.MethodGet, srv.URL+"/health", "", nil)
	if status != http.StatusOK {
		t.Fatalf("health: status %d", status)
	}
	var data struct {
		Status       string `json:"status"`
		SessionStore string `json:"session_store"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatal(err)
	}
	if data.Status != "ok" || data.SessionStore != "memory" {
		t.Fatalf("unexpected health %+v", data)
	}
}
