package api

import (
	"bytes"
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"Intent-Chain/internal/asset"
	"Intent-Chain/internal/engine"
	"Intent-Chain/internal/gov"
	"Intent-Chain/internal/ledger"
	"Intent-Chain/internal/naming"
	"Intent-Chain/internal/router"
	"Intent-Chain/internal/swap"

	"github.com/ethereum/go-ethereum/common"
)

const govToken = "secret-token"

var (
	principal = common.HexToAddress("0x00000000000000000000000000000000000000f0")
	requester = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	vitalik   = common.HexToAddress("0x1c0aA8cCD568d90d61659F060D1bFb1e6f855A20")
)

func eth(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
}

func newTestServer(t *testing.T) (*Server, *ledger.Memory) {
	t.Helper()
	mem := ledger.NewMemory(asset.WETH)
	guard := gov.NewGuard(principal)
	registry := asset.NewRegistry(mem, guard)
	rt := router.New(mem, guard)
	settler := swap.NewSettler(mem, rt, asset.WETH)
	names := naming.NewDirectory()
	names.Register("vitalik", vitalik)
	eng := engine.New(mem, registry, rt, settler, names, guard)
	return NewServer(":0", eng, govToken), mem
}

func postJSON(t *testing.T, handler http.Handler, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHandlePreview(t *testing.T) {
	server, _ := newTestServer(t)
	handler := server.Handler()

	rec := postJSON(t, handler, "/api/v1/preview", map[string]string{
		"text": "send vitalik 20 dai",
	}, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status code: got %d want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}
	var resp struct {
		Action  string `json:"action"`
		To      string `json:"to"`
		Amount  string `json:"amount"`
		Payload string `json:"payload"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Action != "send" || resp.To != vitalik.Hex() {
		t.Fatalf("unexpected resolution: %+v", resp)
	}
	if resp.Amount != eth(20).String() {
		t.Fatalf("unexpected amount: got %s want %s", resp.Amount, eth(20))
	}
	if len(resp.Payload) < 10 {
		t.Fatalf("missing payload in response")
	}
}

func TestHandleExecuteMovesFunds(t *testing.T) {
	server, mem := newTestServer(t)
	handler := server.Handler()
	mem.MintToken(asset.DAI, requester, eth(100))

	rec := postJSON(t, handler, "/api/v1/execute", map[string]string{
		"requester": requester.Hex(),
		"text":      "send vitalik 20 dai",
	}, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status code: got %d: %s", rec.Code, rec.Body.String())
	}

	got, _ := mem.TokenBalance(context.Background(), asset.DAI, vitalik)
	if got.Cmp(eth(20)) != 0 {
		t.Fatalf("recipient balance %s, want %s", got, eth(20))
	}
}

func TestErrorCodeMapping(t *testing.T) {
	server, _ := newTestServer(t)
	handler := server.Handler()

	cases := []struct {
		text   string
		status int
		code   string
	}{
		{"launch 1 eth to vitalik", http.StatusBadRequest, "INVALID_SYNTAX"},
		{"send vitalik 12a.5 dai", http.StatusBadRequest, "INVALID_CHARACTER"},
		{"send vitalik 20 unknowncoin", http.StatusNotFound, "UNKNOWN_ASSET"},
	}
	for _, tc := range cases {
		rec := postJSON(t, handler, "/api/v1/preview", map[string]string{"text": tc.text}, "")
		if rec.Code != tc.status {
			t.Fatalf("%q: status %d, want %d (%s)", tc.text, rec.Code, tc.status, rec.Body.String())
		}
		var resp struct {
			Code string `json:"code"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode error body: %v", err)
		}
		if resp.Code != tc.code {
			t.Fatalf("%q: code %s, want %s", tc.text, resp.Code, tc.code)
		}
	}
}

func TestGovernanceEndpointsRequireToken(t *testing.T) {
	server, _ := newTestServer(t)
	handler := server.Handler()

	body := map[string]any{
		"caller":  principal.Hex(),
		"name":    "treasury",
		"account": vitalik.Hex(),
	}
	rec := postJSON(t, handler, "/api/v1/governance/names", body, "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("without token: status %d, want 401", rec.Code)
	}

	rec = postJSON(t, handler, "/api/v1/governance/names", body, "wrong-token")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong token: status %d, want 401", rec.Code)
	}

	rec = postJSON(t, handler, "/api/v1/governance/names", body, govToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("with token: status %d: %s", rec.Code, rec.Body.String())
	}

	query := httptest.NewRequest(http.MethodGet, "/api/v1/resolve?name=treasury", nil)
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, query)
	if recorder.Code != http.StatusOK {
		t.Fatalf("resolve status %d", recorder.Code)
	}
	var resolved struct {
		Account string `json:"account"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &resolved); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resolved.Account != vitalik.Hex() {
		t.Fatalf("resolved %s, want %s", resolved.Account, vitalik.Hex())
	}
}

func TestGovernanceGuardRejectsNonPrincipal(t *testing.T) {
	server, _ := newTestServer(t)
	handler := server.Handler()

	// Valid token but wrong principal: the gate passes, the guard rejects.
	rec := postJSON(t, handler, "/api/v1/governance/names", map[string]any{
		"caller":  requester.Hex(),
		"name":    "ops",
		"account": vitalik.Hex(),
	}, govToken)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status %d, want 403: %s", rec.Code, rec.Body.String())
	}
}

func TestHandleBalance(t *testing.T) {
	server, mem := newTestServer(t)
	handler := server.Handler()
	mem.MintToken(asset.DAI, requester, eth(42))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/balance?account="+requester.Hex()+"&asset=dai", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status code: got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Display string `json:"display"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Display != "42" {
		t.Fatalf("display %q, want 42", resp.Display)
	}
}

func TestMetricsEndpointExposed(t *testing.T) {
	server, _ := newTestServer(t)
	handler := server.Handler()

	postJSON(t, handler, "/api/v1/preview", map[string]string{"text": "send vitalik 1 dai"}, "")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status %d", rec.Code)
	}
	if !bytes.Contains(rec.Body.Bytes(), []byte("intentchain_http_requests_total")) {
		t.Fatalf("metrics output missing request counter:\n%s", rec.Body.String())
	}
}
