package http_api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/agentsolutions/link-manager/internal/config"
	"github.com/agentsolutions/link-manager/internal/linkmanager"
	"github.com/agentsolutions/link-manager/internal/repository"
	"github.com/agentsolutions/link-manager/pkg/logger"
)

const testAPIKey = "secret-key"

func newTestServer(t *testing.T, apiKey string) *HTTPServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := &logger.Logger{SugaredLogger: zap.NewNop().Sugar()}
	manager := linkmanager.NewLinkManager(repository.NewMemoryStore(), log)
	cfg := &config.Config{
		APIPort:       3100,
		APIKey:        apiKey,
		WalletAddress: "surge1payout",
	}
	return NewHTTPServer(manager, cfg, log).(*HTTPServer)
}

func (s *HTTPServer) do(method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return body
}

func authHeader() map[string]string {
	return map[string]string{"Authorization": "Bearer " + testAPIKey}
}

func submitBody() string {
	return `{"preview":{"title":"T","problem_summary":"S","tags":["demo"]},"full_solution":{"steps":["step one","step two"]}}`
}

func TestSubmitSolution(t *testing.T) {
	s := newTestServer(t, testAPIKey)

	w := s.do("POST", "/api/v1/solutions", submitBody(), authHeader())
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	body := decode(t, w)
	id, _ := body["id"].(string)
	if !regexp.MustCompile(`^sol_[0-9a-f]{8}$`).MatchString(id) {
		t.Errorf("id %q does not match sol_ pattern", id)
	}
	if body["preview_url"] != "/api/v1/solutions/"+id+"/preview" {
		t.Errorf("preview_url = %v", body["preview_url"])
	}
	if body["created_at"] == nil {
		t.Error("created_at missing")
	}
}

func TestSubmitSolutionValidation(t *testing.T) {
	s := newTestServer(t, testAPIKey)

	cases := []struct {
		name string
		body string
	}{
		{"missing preview", `{"full_solution":"x"}`},
		{"missing full_solution", `{"preview":{"title":"T","problem_summary":"S"}}`},
		{"missing title", `{"preview":{"problem_summary":"S"},"full_solution":"x"}`},
		{"missing problem_summary", `{"preview":{"title":"T"},"full_solution":"x"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := s.do("POST", "/api/v1/solutions", tc.body, authHeader())
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400; body %s", w.Code, w.Body.String())
			}
			if decode(t, w)["error"] == nil {
				t.Error("error message missing")
			}
		})
	}
}

func TestSubmitSolutionAuth(t *testing.T) {
	s := newTestServer(t, testAPIKey)

	w := s.do("POST", "/api/v1/solutions", submitBody(), nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("no token: status = %d, want 401", w.Code)
	}
	w = s.do("POST", "/api/v1/solutions", submitBody(), map[string]string{"Authorization": "Bearer wrong"})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token: status = %d, want 401", w.Code)
	}

	// Reads stay open without a token.
	w = s.do("GET", "/health", "", nil)
	if w.Code != http.StatusOK {
		t.Errorf("health: status = %d, want 200", w.Code)
	}
}

func TestSubmitSolutionMissingAPIKey(t *testing.T) {
	s := newTestServer(t, "")

	w := s.do("POST", "/api/v1/solutions", submitBody(), authHeader())
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500 when key unconfigured", w.Code)
	}
}

func TestGetPreview(t *testing.T) {
	s := newTestServer(t, testAPIKey)

	created := decode(t, s.do("POST", "/api/v1/solutions", submitBody(), authHeader()))
	id := created["id"].(string)

	w := s.do("GET", "/api/v1/solutions/"+id+"/preview", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	body := decode(t, w)
	if body["title"] != "T" || body["problem_summary"] != "S" {
		t.Errorf("preview fields not spread at top level: %v", body)
	}
	price, _ := body["price"].(map[string]interface{})
	if price["amount"] != float64(100) || price["currency"] != "SURGE" {
		t.Errorf("price = %v", price)
	}
	if body["payment_count"] != float64(0) {
		t.Errorf("payment_count = %v, want 0", body["payment_count"])
	}
	if body["unlock_url"] != "/api/v1/solutions/"+id+"/unlock" {
		t.Errorf("unlock_url = %v", body["unlock_url"])
	}
	if body["full_solution"] != nil {
		t.Error("preview response leaked the payload")
	}

	w = s.do("GET", "/api/v1/solutions/sol_ffffffff/preview", "", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown id: status = %d, want 404", w.Code)
	}
}

func TestUnlockAndPaywall(t *testing.T) {
	s := newTestServer(t, testAPIKey)

	created := decode(t, s.do("POST", "/api/v1/solutions", submitBody(), authHeader()))
	id := created["id"].(string)

	// Payment assertion releases the payload.
	w := s.do("POST", "/api/v1/solutions/"+id+"/unlock", `{"tx_hash":"abc","buyer_agent":"agentA"}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("unlock: status = %d, body %s", w.Code, w.Body.String())
	}
	body := decode(t, w)
	if body["full_solution"] == nil {
		t.Error("unlock response missing full_solution")
	}
	receipt, _ := body["payment"].(map[string]interface{})
	if receipt["tx_hash"] != "abc" || receipt["buyer_agent"] != "agentA" ||
		receipt["amount"] != float64(100) || receipt["currency"] != "SURGE" {
		t.Errorf("receipt = %v", receipt)
	}

	// Reusing the hash, even for another agent, is a conflict.
	w = s.do("POST", "/api/v1/solutions/"+id+"/unlock", `{"tx_hash":"abc","buyer_agent":"agentB"}`, nil)
	if w.Code != http.StatusConflict {
		t.Errorf("replay: status = %d, want 409", w.Code)
	}

	// The payer has permanent access.
	w = s.do("GET", "/api/v1/solutions/"+id, "", map[string]string{"x-agent-id": "agentA"})
	if w.Code != http.StatusOK {
		t.Fatalf("paid read: status = %d, body %s", w.Code, w.Body.String())
	}
	if decode(t, w)["full_solution"] == nil {
		t.Error("paid read missing full_solution")
	}

	// Everyone else hits the paywall.
	w = s.do("GET", "/api/v1/solutions/"+id, "", map[string]string{"x-agent-id": "agentB"})
	if w.Code != http.StatusPaymentRequired {
		t.Fatalf("unpaid read: status = %d, want 402", w.Code)
	}
	paywall := decode(t, w)
	if _, leaked := paywall["full_solution"]; leaked {
		t.Error("paywall response leaked the payload")
	}
	if paywall["wallet_address"] != "surge1payout" {
		t.Errorf("wallet_address = %v", paywall["wallet_address"])
	}
	if paywall["preview"] == nil || paywall["price"] == nil || paywall["unlock_url"] == nil {
		t.Errorf("paywall body incomplete: %v", paywall)
	}

	// No agent header at all is also unpaid.
	w = s.do("GET", "/api/v1/solutions/"+id, "", nil)
	if w.Code != http.StatusPaymentRequired {
		t.Errorf("anonymous read: status = %d, want 402", w.Code)
	}

	// Demand signal is visible on the preview.
	preview := decode(t, s.do("GET", "/api/v1/solutions/"+id+"/preview", "", nil))
	if preview["payment_count"] != float64(1) {
		t.Errorf("payment_count = %v, want 1", preview["payment_count"])
	}
}

func TestUnlockValidation(t *testing.T) {
	s := newTestServer(t, testAPIKey)

	created := decode(t, s.do("POST", "/api/v1/solutions", submitBody(), authHeader()))
	id := created["id"].(string)

	w := s.do("POST", "/api/v1/solutions/"+id+"/unlock", `{"buyer_agent":"agentA"}`, nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing tx_hash: status = %d, want 400", w.Code)
	}
	w = s.do("POST", "/api/v1/solutions/"+id+"/unlock", `{"tx_hash":"abc"}`, nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing buyer_agent: status = %d, want 400", w.Code)
	}
	w = s.do("POST", "/api/v1/solutions/sol_ffffffff/unlock", `{"tx_hash":"zzz","buyer_agent":"agentA"}`, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown id: status = %d, want 404", w.Code)
	}
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, testAPIKey)
	s.do("POST", "/api/v1/solutions", submitBody(), authHeader())

	w := s.do("GET", "/health", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	body := decode(t, w)
	if body["ok"] != true || body["service"] != ServiceName {
		t.Errorf("health body = %v", body)
	}
	if body["solutions"] != float64(1) {
		t.Errorf("solutions = %v, want 1", body["solutions"])
	}
	if _, hasUptime := body["uptime"]; !hasUptime {
		t.Error("uptime missing")
	}
}
