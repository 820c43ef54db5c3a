package restapi

import (
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/sync/singleflight"

	"etfservice/internal/book"
	"etfservice/internal/clearing"
	"etfservice/internal/config"
	"etfservice/internal/ledger"
	"etfservice/internal/metrics"
	"etfservice/pkg/types"
)

// Handlers holds all REST handler dependencies.
type Handlers struct {
	book     *book.Book
	clearing *clearing.Store
	ledger   *ledger.Ledger
	cfg      config.DashboardConfig
	logger   *slog.Logger

	// group coalesces concurrent identical GET /positions/<client_id>
	// lookups into a single underlying read, matching the pattern used for
	// the ESI order cache elsewhere in the pack.
	group singleflight.Group
}

// NewHandlers creates a new handlers instance.
func NewHandlers(b *book.Book, c *clearing.Store, l *ledger.Ledger, cfg config.DashboardConfig, logger *slog.Logger) *Handlers {
	return &Handlers{
		book:     b,
		clearing: c,
		ledger:   l,
		cfg:      cfg,
		logger:   logger.With("component", "restapi-handlers"),
	}
}

// HandleHealth returns a simple health check response.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Service: "etf_service"})
}

// HandleSymbols returns the static symbol table, the ETF symbol id, and the
// underlying basket.
func (h *Handlers) HandleSymbols(w http.ResponseWriter, r *http.Request) {
	symbols := make([]symbolInfo, 0, len(types.SymbolTable))
	for _, sym := range types.SymbolTable {
		symbols = append(symbols, symbolInfo{
			ID:       sym.ID,
			Ticker:   sym.Ticker,
			Name:     sym.Name,
			TickSize: sym.TickSize,
		})
	}
	writeJSON(w, http.StatusOK, symbolsResponse{
		Symbols:           symbols,
		ETFSymbol:         types.ETFSymbolID,
		UnderlyingSymbols: types.UnderlyingSymbols,
	})
}

// HandlePositions returns every non-zero effective position for a client.
func (h *Handlers) HandlePositions(w http.ResponseWriter, r *http.Request) {
	clientID, ok := h.parseClientID(w, r)
	if !ok {
		return
	}

	v, _, _ := h.group.Do(strconv.FormatUint(uint64(clientID), 10), func() (interface{}, error) {
		positions := make(map[string]int64)
		for symbolID := range types.SymbolTable {
			pos := h.ledger.EffectivePosition(clientID, symbolID)
			if pos != 0 {
				positions[types.TickerFor(symbolID)] = pos
			}
		}
		return positions, nil
	})

	writeJSON(w, http.StatusOK, positionsResponse{ClientID: clientID, Positions: v.(map[string]int64)})
}

// HandlePosition returns one client/symbol effective position.
func (h *Handlers) HandlePosition(w http.ResponseWriter, r *http.Request) {
	clientID, ok := h.parseClientID(w, r)
	if !ok {
		return
	}
	symbolID, ok := h.parseSymbol(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, positionResponse{
		ClientID: clientID,
		Symbol:   symbolID,
		Ticker:   types.TickerFor(symbolID),
		Position: h.ledger.EffectivePosition(clientID, symbolID),
	})
}

// HandleCreate handles POST /create.
func (h *Handlers) HandleCreate(w http.ResponseWriter, r *http.Request) {
	h.handleCreateOrRedeem(w, r, "create", h.ledger.Create)
}

// HandleRedeem handles POST /redeem.
func (h *Handlers) HandleRedeem(w http.ResponseWriter, r *http.Request) {
	h.handleCreateOrRedeem(w, r, "redeem", h.ledger.Redeem)
}

func (h *Handlers) handleCreateOrRedeem(w http.ResponseWriter, r *http.Request, opName string, op func(clientID uint32, amount int64) ledger.Result) {
	var req createRedeemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		metrics.CreateRedeemTotal.WithLabelValues(opName, "rejected").Inc()
		writeError(w, "invalid or missing request body")
		return
	}
	if req.Amount <= 0 {
		metrics.CreateRedeemTotal.WithLabelValues(opName, "rejected").Inc()
		writeError(w, "amount must be a positive integer")
		return
	}

	result := op(req.ClientID, req.Amount)
	balance := h.ledger.EffectivePosition(req.ClientID, types.ETFSymbolID)

	if !result.OK {
		metrics.CreateRedeemTotal.WithLabelValues(opName, "rejected").Inc()
		writeJSONStatus(w, http.StatusBadRequest, createRedeemResponse{
			Success:     false,
			Message:     result.Message,
			UndyBalance: balance,
		})
		return
	}

	metrics.CreateRedeemTotal.WithLabelValues(opName, "ok").Inc()
	writeJSON(w, http.StatusOK, createRedeemResponse{
		Success:     true,
		Message:     result.Message,
		UndyBalance: balance,
	})
}

// HandleHistory returns the ETF ledger's append-order audit log.
func (h *Handlers) HandleHistory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, historyResponse{History: h.ledger.History()})
}

func (h *Handlers) parseClientID(w http.ResponseWriter, r *http.Request) (uint32, bool) {
	raw := pathSegment(r.URL.Path, 2)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		writeError(w, "client_id must be a non-negative integer")
		return 0, false
	}
	return uint32(id), true
}

func (h *Handlers) parseSymbol(w http.ResponseWriter, r *http.Request) (uint32, bool) {
	raw := pathSegment(r.URL.Path, 3)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		writeError(w, "symbol must be a non-negative integer")
		return 0, false
	}
	return uint32(id), true
}

func pathSegment(path string, idx int) string {
	parts := strings.Split(path, "/")
	if idx >= len(parts) {
		return ""
	}
	return parts[idx]
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	writeJSONStatus(w, status, v)
}

func writeJSONStatus(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, message string) {
	writeJSONStatus(w, http.StatusBadRequest, errorResponse{Success: false, Message: message})
}

func isOriginAllowed(origin string, cfg config.DashboardConfig, reqHost string) bool {
	if origin == "" {
		return true
	}

	originURL, err := url.Parse(origin)
	if err != nil {
		return false
	}

	normalized := normalizeOrigin(originURL.Scheme, originURL.Host)
	if normalized == "" {
		return false
	}

	if len(cfg.AllowedOrigins) > 0 {
		for _, allowed := range cfg.AllowedOrigins {
			u, err := url.Parse(allowed)
			if err != nil {
				continue
			}
			if normalized == normalizeOrigin(u.Scheme, u.Host) {
				return true
			}
		}
		return false
	}

	host := strings.ToLower(originURL.Hostname())
	if host == "localhost" || host == "127.0.0.1" || host == "::1" {
		return true
	}

	reqHostname := normalizeHost(reqHost)
	return reqHostname != "" && host == reqHostname
}

func normalizeOrigin(scheme, host string) string {
	if scheme == "" || host == "" {
		return ""
	}
	return strings.ToLower(scheme) + "://" + strings.ToLower(host)
}

func normalizeHost(hostport string) string {
	hostport = strings.TrimSpace(hostport)
	if hostport == "" {
		return ""
	}
	if host, _, err := net.SplitHostPort(hostport); err == nil {
		return strings.ToLower(host)
	}
	return strings.ToLower(hostport)
}
