// Package clearing folds fill events from the clearing multicast feed into
// per-(client, symbol) position, notional, volume, and realized-PnL tallies.
package clearing

import (
	"sync"

	"etfservice/pkg/types"
)

// Tally is the clearing state for one (client, symbol) pair, per spec §3.
type Tally struct {
	Position          int64
	TotalBuyNotional  int64
	TotalSellNotional int64
	Volume            int64
	RawPnL            int64
}

type key struct {
	clientID uint32
	symbol   uint32
}

// Store holds clearing tallies for every (client, symbol) pair observed so
// far. A single RWMutex guards the map — writers (the clearing receiver)
// take the write lock per fill; readers (REST handlers, the ETF ledger, the
// snapshot fanout) take the read lock per query and always get back a copy,
// never a live reference.
type Store struct {
	mu      sync.RWMutex
	tallies map[key]Tally
}

// New creates an empty clearing store.
func New() *Store {
	return &Store{tallies: make(map[key]Tally)}
}

// ApplyFill folds one fill into the (client, symbol) tally. BUY adds to
// position and total_buy_notional; SELL subtracts from position and adds to
// total_sell_notional. raw_pnl is always recomputed as
// total_sell_notional - total_buy_notional.
func (s *Store) ApplyFill(clientID, symbol, quantity uint32, price int32, side types.Side) {
	k := key{clientID, symbol}
	notional := int64(quantity) * int64(price)

	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.tallies[k]
	switch side {
	case types.SideBuy:
		t.Position += int64(quantity)
		t.TotalBuyNotional += notional
	case types.SideSell:
		t.Position -= int64(quantity)
		t.TotalSellNotional += notional
	}
	t.Volume += int64(quantity)
	t.RawPnL = t.TotalSellNotional - t.TotalBuyNotional
	s.tallies[k] = t
}

// Position returns the raw clearing position for (client, symbol), 0 if
// never observed.
func (s *Store) Position(clientID, symbol uint32) int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tallies[key{clientID, symbol}].Position
}

// Tally returns a copy of the full tally for (client, symbol).
func (s *Store) Tally(clientID, symbol uint32) Tally {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tallies[key{clientID, symbol}]
}

// PositionsAll returns a defensive copy of every non-empty (client, symbol)
// tally, keyed by client then symbol.
func (s *Store) PositionsAll() map[uint32]map[uint32]Tally {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[uint32]map[uint32]Tally)
	for k, t := range s.tallies {
		bySym, ok := out[k.clientID]
		if !ok {
			bySym = make(map[uint32]Tally)
			out[k.clientID] = bySym
		}
		bySym[k.symbol] = t
	}
	return out
}

// ClientIDs returns the set of all client IDs with at least one tally.
func (s *Store) ClientIDs() []uint32 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[uint32]bool)
	ids := make([]uint32, 0)
	for k := range s.tallies {
		if !seen[k.clientID] {
			seen[k.clientID] = true
			ids = append(ids, k.clientID)
		}
	}
	return ids
}
