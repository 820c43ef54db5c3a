package restapi

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"etfservice/internal/book"
	"etfservice/internal/clearing"
	"etfservice/internal/config"
	"etfservice/internal/ledger"
	"etfservice/pkg/types"
)

func TestIsOriginAllowed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		origin  string
		cfg     config.DashboardConfig
		reqHost string
		want    bool
	}{
		{
			name:    "empty origin is allowed",
			origin:  "",
			cfg:     config.DashboardConfig{},
			reqHost: "localhost:8080",
			want:    true,
		},
		{
			name:    "localhost origin allowed by default",
			origin:  "http://localhost:8080",
			cfg:     config.DashboardConfig{},
			reqHost: "localhost:8080",
			want:    true,
		},
		{
			name:    "non-local origin denied by default",
			origin:  "https://evil.example",
			cfg:     config.DashboardConfig{},
			reqHost: "localhost:8080",
			want:    false,
		},
		{
			name:    "allowlist permits exact origin",
			origin:  "https://dash.example.com",
			cfg:     config.DashboardConfig{AllowedOrigins: []string{"https://dash.example.com"}},
			reqHost: "0.0.0.0:8080",
			want:    true,
		},
		{
			name:    "allowlist denies everything else",
			origin:  "https://evil.example",
			cfg:     config.DashboardConfig{AllowedOrigins: []string{"https://dash.example.com"}},
			reqHost: "0.0.0.0:8080",
			want:    false,
		},
		{
			name:    "same host allowed when no allowlist",
			origin:  "https://etf.internal:8080",
			cfg:     config.DashboardConfig{},
			reqHost: "etf.internal:8080",
			want:    true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := isOriginAllowed(tt.origin, tt.cfg, tt.reqHost); got != tt.want {
				t.Fatalf("isOriginAllowed(%q) = %v, want %v", tt.origin, got, tt.want)
			}
		})
	}
}

func newTestHandlers() *Handlers {
	b := book.New()
	c := clearing.New()
	l := ledger.New(c)
	return NewHandlers(b, c, l, config.DashboardConfig{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestHandleCreateInsufficientReturns400(t *testing.T) {
	t.Parallel()
	h := newTestHandlers()

	body, _ := json.Marshal(createRedeemRequest{ClientID: 9, Amount: 3})
	req := httptest.NewRequest(http.MethodPost, "/create", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.HandleCreate(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	var resp createRedeemResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.Success {
		t.Error("response.Success = true, want false for an underfunded create")
	}
}

func TestHandleCreateThenRedeemRoundTrip(t *testing.T) {
	t.Parallel()
	h := newTestHandlers()
	for _, sym := range types.UnderlyingSymbols {
		h.clearing.ApplyFill(9, sym, 10, 100, types.SideBuy)
	}

	createBody, _ := json.Marshal(createRedeemRequest{ClientID: 9, Amount: 3})
	createReq := httptest.NewRequest(http.MethodPost, "/create", bytes.NewReader(createBody))
	createRec := httptest.NewRecorder()
	h.HandleCreate(createRec, createReq)

	if createRec.Code != http.StatusOK {
		t.Fatalf("create status = %d, want 200, body = %s", createRec.Code, createRec.Body.String())
	}
	var createResp createRedeemResponse
	json.Unmarshal(createRec.Body.Bytes(), &createResp)
	if createResp.UndyBalance != 3 {
		t.Errorf("create UndyBalance = %d, want 3", createResp.UndyBalance)
	}

	redeemBody, _ := json.Marshal(createRedeemRequest{ClientID: 9, Amount: 3})
	redeemReq := httptest.NewRequest(http.MethodPost, "/redeem", bytes.NewReader(redeemBody))
	redeemRec := httptest.NewRecorder()
	h.HandleRedeem(redeemRec, redeemReq)

	if redeemRec.Code != http.StatusOK {
		t.Fatalf("redeem status = %d, want 200, body = %s", redeemRec.Code, redeemRec.Body.String())
	}
	var redeemResp createRedeemResponse
	json.Unmarshal(redeemRec.Body.Bytes(), &redeemResp)
	if redeemResp.UndyBalance != 0 {
		t.Errorf("redeem UndyBalance = %d, want 0", redeemResp.UndyBalance)
	}

	historyReq := httptest.NewRequest(http.MethodGet, "/history", nil)
	historyRec := httptest.NewRecorder()
	h.HandleHistory(historyRec, historyReq)

	var historyResp historyResponse
	json.Unmarshal(historyRec.Body.Bytes(), &historyResp)
	if len(historyResp.History) != 2 {
		t.Fatalf("len(History) = %d, want 2", len(historyResp.History))
	}
}

func TestHandleCreateRejectsNonPositiveAmount(t *testing.T) {
	t.Parallel()
	h := newTestHandlers()

	body, _ := json.Marshal(createRedeemRequest{ClientID: 9, Amount: 0})
	req := httptest.NewRequest(http.MethodPost, "/create", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.HandleCreate(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHandlePositionsOmitsZeroPositions(t *testing.T) {
	t.Parallel()
	h := newTestHandlers()
	h.clearing.ApplyFill(9, 3, 10, 100, types.SideBuy)

	req := httptest.NewRequest(http.MethodGet, "/positions/9", nil)
	rec := httptest.NewRecorder()
	h.HandlePositions(rec, req)

	var resp positionsResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if len(resp.Positions) != 1 {
		t.Fatalf("len(Positions) = %d, want 1: %+v", len(resp.Positions), resp.Positions)
	}
	if resp.Positions["KNAN"] != 10 {
		t.Errorf("Positions[KNAN] = %d, want 10", resp.Positions["KNAN"])
	}
}

func TestHandleSymbolsReturnsETFAndUnderlyings(t *testing.T) {
	t.Parallel()
	h := newTestHandlers()

	req := httptest.NewRequest(http.MethodGet, "/symbols", nil)
	rec := httptest.NewRecorder()
	h.HandleSymbols(rec, req)

	var resp symbolsResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.ETFSymbol != types.ETFSymbolID {
		t.Errorf("ETFSymbol = %d, want %d", resp.ETFSymbol, types.ETFSymbolID)
	}
	if len(resp.Symbols) != len(types.SymbolTable) {
		t.Errorf("len(Symbols) = %d, want %d", len(resp.Symbols), len(types.SymbolTable))
	}
}
