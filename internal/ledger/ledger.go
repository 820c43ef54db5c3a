// Package ledger implements the ETF Ledger: synthetic per-(client, symbol)
// adjustments layered on top of the clearing store's real positions, with
// atomic create/redeem over the underlying basket.
package ledger

import (
	"fmt"
	"sync"

	"etfservice/internal/clearing"
	"etfservice/pkg/types"
)

// clearingReader is the narrow accessor the ledger needs from the clearing
// store. Declared as an interface so the ledger never needs to reach past
// the store's own synchronized methods — it is never handed the store's
// lock directly (spec §5's D -> B nesting only ever goes through B's own
// accessor).
type clearingReader interface {
	Position(clientID, symbol uint32) int64
}

var _ clearingReader = (*clearing.Store)(nil)

type key struct {
	clientID uint32
	symbol   uint32
}

// Ledger holds synthetic adjustments and the append-only create/redeem
// history. One mutex guards both; effective_position reads and create/redeem
// both take this lock for their full duration and read the clearing store
// through its own accessor while holding it — lock order D -> B, never B
// held while acquiring D.
type Ledger struct {
	mu          sync.Mutex
	adjustments map[key]int64
	history     []types.HistoryRecord
	clearing    clearingReader
}

// New creates a ledger backed by the given clearing store.
func New(clearingStore clearingReader) *Ledger {
	return &Ledger{
		adjustments: make(map[key]int64),
		clearing:    clearingStore,
	}
}

// AdjustedPair names one (client, symbol) that carries a nonzero synthetic
// adjustment.
type AdjustedPair struct {
	ClientID uint32
	Symbol   uint32
}

// AdjustedPairs returns every (client, symbol) with a nonzero synthetic
// adjustment. The ETF symbol in particular only ever appears here — it has
// no clearing tally of its own since it is never filled directly, only
// created/redeemed synthetically — so the snapshot composer must union this
// with the clearing store's own keys rather than relying on clearing alone.
func (l *Ledger) AdjustedPairs() []AdjustedPair {
	l.mu.Lock()
	defer l.mu.Unlock()

	pairs := make([]AdjustedPair, 0, len(l.adjustments))
	for k, adj := range l.adjustments {
		if adj != 0 {
			pairs = append(pairs, AdjustedPair{ClientID: k.clientID, Symbol: k.symbol})
		}
	}
	return pairs
}

// EffectivePosition is clearing.position(client, sym) + adjustment[client][sym].
func (l *Ledger) EffectivePosition(clientID, symbol uint32) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.effectivePositionLocked(clientID, symbol)
}

func (l *Ledger) effectivePositionLocked(clientID, symbol uint32) int64 {
	return l.clearing.Position(clientID, symbol) + l.adjustments[key{clientID, symbol}]
}

// Deficit describes one underlying symbol a create call could not fund.
type Deficit struct {
	Symbol    uint32
	Ticker    string
	Available int64
	Required  int64
}

// Result is the outcome of a create or redeem call.
type Result struct {
	OK       bool
	Message  string
	Deficits []Deficit // populated only on an INSUFFICIENT failure
}

// Create attempts to mint amount ETF units for clientID by debiting amount
// from every underlying in the basket. The sufficiency check and the
// adjustment commit happen under one critical section so concurrent
// effective_position readers never observe a torn state (spec §4.D/§5).
func (l *Ledger) Create(clientID uint32, amount int64) Result {
	if amount <= 0 {
		return Result{OK: false, Message: "INVALID_AMOUNT: amount must be strictly positive"}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	deficits := l.checkBasketLocked(clientID, amount)
	if len(deficits) > 0 {
		return Result{OK: false, Message: formatDeficits(deficits), Deficits: deficits}
	}

	for _, sym := range types.UnderlyingSymbols {
		l.adjustments[key{clientID, sym}] -= amount
	}
	l.adjustments[key{clientID, types.ETFSymbolID}] += amount
	l.history = append(l.history, types.HistoryRecord{
		Type:     types.HistoryCreate,
		ClientID: clientID,
		Amount:   amount,
	})

	return Result{OK: true, Message: "ok"}
}

// Redeem is the inverse of Create: it debits amount ETF units and credits
// amount of every underlying, provided the client holds enough ETF.
func (l *Ledger) Redeem(clientID uint32, amount int64) Result {
	if amount <= 0 {
		return Result{OK: false, Message: "INVALID_AMOUNT: amount must be strictly positive"}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	have := l.effectivePositionLocked(clientID, types.ETFSymbolID)
	if have < amount {
		d := Deficit{
			Symbol:    types.ETFSymbolID,
			Ticker:    types.TickerFor(types.ETFSymbolID),
			Available: have,
			Required:  amount,
		}
		return Result{OK: false, Message: formatDeficits([]Deficit{d}), Deficits: []Deficit{d}}
	}

	l.adjustments[key{clientID, types.ETFSymbolID}] -= amount
	for _, sym := range types.UnderlyingSymbols {
		l.adjustments[key{clientID, sym}] += amount
	}
	l.history = append(l.history, types.HistoryRecord{
		Type:     types.HistoryRedeem,
		ClientID: clientID,
		Amount:   amount,
	})

	return Result{OK: true, Message: "ok"}
}

// checkBasketLocked evaluates basket sufficiency for a create call. Must be
// called with l.mu held. Deficits are enumerated in basket order per spec §4.D.
func (l *Ledger) checkBasketLocked(clientID uint32, amount int64) []Deficit {
	var deficits []Deficit
	for _, sym := range types.UnderlyingSymbols {
		have := l.effectivePositionLocked(clientID, sym)
		if have < amount {
			deficits = append(deficits, Deficit{
				Symbol:    sym,
				Ticker:    types.TickerFor(sym),
				Available: have,
				Required:  amount,
			})
		}
	}
	return deficits
}

func formatDeficits(deficits []Deficit) string {
	msg := "INSUFFICIENT: "
	for i, d := range deficits {
		if i > 0 {
			msg += ", "
		}
		msg += fmt.Sprintf("%s: have %d, need %d", d.Ticker, d.Available, d.Required)
	}
	return msg
}

// History returns a copy of the append-order history log.
func (l *Ledger) History() []types.HistoryRecord {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]types.HistoryRecord, len(l.history))
	copy(out, l.history)
	return out
}
