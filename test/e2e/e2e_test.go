//go:build e2e
// +build e2e

package e2e

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/joho/godotenv"

	"github.com/stemsi/help-queue/internal/model"
)

const defaultBaseURL = "http://localhost:8080/api/v1"

var (
	baseURL      string
	allowReset   bool
	studentName  string
	sessionToken string
	requestID    string
)

func TestMain(m *testing.M) {
	// Load .env if present (ignore error)
	_ = godotenv.Load("../../.env")

	baseURL = os.Getenv("BASE_URL")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	// Reset wipes the whole queue; only run it against a throwaway store.
	allowReset = os.Getenv("E2E_ALLOW_RESET") == "1"

	os.Exit(m.Run())
}

func TestE2EFlow(t *testing.T) {
	t.Run("Roster", func(t *testing.T) {
		resp, err := do(http.MethodGet, "/roster", nil, "")
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()

		var body struct {
			Data struct {
				Students []string `json:"students"`
			} `json:"data"`
		}
		expectStatus(t, resp, http.StatusOK, &body)
		if len(body.Data.Students) == 0 {
			t.Fatal("roster is empty")
		}
		studentName = body.Data.Students[0]
	})

	t.Run("StartSession", func(t *testing.T) {
		resp, err := do(http.MethodPost, "/session", nil, "")
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()

		var body struct {
			Data struct {
				Token string `json:"token"`
			} `json:"data"`
		}
		expectStatus(t, resp, http.StatusCreated, &body)
		sessionToken = body.Data.Token
		if sessionToken == "" {
			t.Fatal("token missing")
		}
	})

	t.Run("LoginAndLevel", func(t *testing.T) {
		resp, err := do(http.MethodPost, "/session/login", model.LoginRequest{Name: studentName}, sessionToken)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		expectStatus(t, resp, http.StatusOK, nil)
		resp.Body.Close()

		resp, err = do(http.MethodPut, "/session/level", model.LevelRequest{Level: 4}, sessionToken)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()

		var body struct {
			Data struct {
				Session model.SessionState `json:"session"`
			} `json:"data"`
		}
		expectStatus(t, resp, http.StatusOK, &body)
		if body.Data.Session.Page != model.PageStudent {
			t.Fatalf("expected student page, got %q", body.Data.Session.Page)
		}
	})

	t.Run("RejectOutOfRangeRating", func(t *testing.T) {
		resp, err := do(http.MethodPost, "/requests", model.SubmitHelpRequest{Name: studentName, Rating: 11}, "")
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()
		expectStatus(t, resp, http.StatusBadRequest, nil)
	})

	t.Run("SubmitRequest", func(t *testing.T) {
		resp, err := do(http.MethodPost, "/requests", model.SubmitHelpRequest{Name: studentName, Rating: 1}, "")
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()

		var body struct {
			Data struct {
				Request model.HelpRequest `json:"request"`
			} `json:"data"`
		}
		expectStatus(t, resp, http.StatusCreated, &body)
		requestID = body.Data.Request.ID
		if requestID == "" {
			t.Fatal("request id missing")
		}
	})

	t.Run("PendingContainsRequest", func(t *testing.T) {
		if !pendingContains(t, requestID) {
			t.Fatalf("request %s not pending", requestID)
		}
	})

	t.Run("MarkHelped", func(t *testing.T) {
		resp, err := do(http.MethodPost, "/requests/"+requestID+"/helped", nil, "")
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()
		expectStatus(t, resp, http.StatusOK, nil)

		if pendingContains(t, requestID) {
			t.Fatalf("request %s still pending", requestID)
		}
	})

	t.Run("MarkUnknownHelped", func(t *testing.T) {
		resp, err := do(http.MethodPost, "/requests/does-not-exist/helped", nil, "")
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()
		expectStatus(t, resp, http.StatusNotFound, nil)
	})

	t.Run("Reset", func(t *testing.T) {
		if !allowReset {
			t.Skip("set E2E_ALLOW_RESET=1 to run against a throwaway store")
		}
		resp, err := do(http.MethodDelete, "/requests", model.ResetQueueRequest{Confirm: model.ResetConfirmWord}, "")
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()
		expectStatus(t, resp, http.StatusOK, nil)
	})

	t.Run("EndSession", func(t *testing.T) {
		resp, err := do(http.MethodDelete, "/session", nil, sessionToken)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		expectStatus(t, resp, http.StatusOK, nil)
		resp.Body.Close()

		resp, err = do(http.MethodGet, "/session/me", nil, sessionToken)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()
		expectStatus(t, resp, http.StatusUnauthorized, nil)
	})
}

// Helpers

func pendingContains(t *testing.T, id string) bool {
	t.Helper()
	resp, err := do(http.MethodGet, "/requests/pending", nil, "")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	var body struct {
		Data struct {
			Requests []model.HelpRequest `json:"requests"`
		} `json:"data"`
	}
	expectStatus(t, resp, http.StatusOK, &body)
	for _, r := range body.Data.Requests {
		if r.ID == id {
			return true
		}
	}
	return false
}

func do(method, path string, body interface{}, token string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBytes, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewBuffer(jsonBytes)
	}

	req, err := http.NewRequest(method, baseURL+path, bodyReader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	client := &http.Client{Timeout: 10 * time.Second}
	return client.Do(req)
}

func expectStatus(t *testing.T, resp *http.Response, want int, v interface{}) {
	t.Helper()
	if resp.StatusCode != want {
		t.Fatalf("status %d (want %d): %s", resp.StatusCode, want, readBody(resp))
	}
	if v != nil {
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			t.Fatalf("json decode: %v", err)
		}
	}
}

func readBody(resp *http.Response) string {
	b, _ := io.ReadAll(resp.Body)
	return string(b)
}
