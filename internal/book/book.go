// Package book maintains the in-memory order book: per-symbol resting
// orders and derived price levels, fed by a stream of NEW/DELETE/MODIFY
// events from the market data feed.
package book

import (
	"sync"

	"etfservice/pkg/types"
)

type order struct {
	symbol   uint32
	side     types.Side
	quantity uint32
	price    int32
}

type levelKey struct {
	symbol uint32
	side   types.Side
	price  int32
}

// Book is the single source of truth for resting orders across all symbols.
// One RWMutex guards both maps; readers always get back copies.
type Book struct {
	mu     sync.RWMutex
	orders map[uint64]order
	levels map[levelKey]int64 // aggregate resting quantity at (symbol, side, price)
}

// New creates an empty order book.
func New() *Book {
	return &Book{
		orders: make(map[uint64]order),
		levels: make(map[levelKey]int64),
	}
}

// ApplyNew inserts a new resting order. If orderID is already known, the
// event is ignored as a duplicate (spec §4.C).
func (b *Book) ApplyNew(evt types.NewOrderEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.orders[evt.OrderID]; exists {
		return
	}

	b.orders[evt.OrderID] = order{
		symbol:   evt.Symbol,
		side:     evt.Side,
		quantity: evt.Quantity,
		price:    evt.Price,
	}
	b.addLevel(evt.Symbol, evt.Side, evt.Price, int64(evt.Quantity))
}

// ApplyDelete removes a resting order. Unknown order IDs are ignored.
func (b *Book) ApplyDelete(evt types.DeleteOrderEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	o, exists := b.orders[evt.OrderID]
	if !exists {
		return
	}
	b.addLevel(o.symbol, o.side, o.price, -int64(o.quantity))
	delete(b.orders, evt.OrderID)
}

// ApplyModify updates an existing resting order's side/quantity/price,
// moving its contribution from the old level to the new one. Unknown order
// IDs are ignored.
func (b *Book) ApplyModify(evt types.ModifyOrderEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	o, exists := b.orders[evt.OrderID]
	if !exists {
		return
	}

	b.addLevel(o.symbol, o.side, o.price, -int64(o.quantity))

	o.side = evt.Side
	o.quantity = evt.Quantity
	o.price = evt.Price
	b.orders[evt.OrderID] = o

	b.addLevel(o.symbol, o.side, o.price, int64(evt.Quantity))
}

// addLevel adjusts the aggregate quantity at a level by delta, removing the
// level entirely once it reaches <= 0 so a zero or negative level is never
// observable (spec §3/§4.C, including defensive cleanup of negative drift).
func (b *Book) addLevel(symbol uint32, side types.Side, price int32, delta int64) {
	k := levelKey{symbol, side, price}
	qty := b.levels[k] + delta
	if qty <= 0 {
		delete(b.levels, k)
		return
	}
	b.levels[k] = qty
}

// BestBid returns the maximum price with positive resting quantity on the
// buy side of symbol, or (0, 0) if the side is empty.
func (b *Book) BestBid(symbol uint32) (int32, int64) {
	return b.extreme(symbol, types.SideBuy, true)
}

// BestAsk returns the minimum price with positive resting quantity on the
// sell side of symbol, or (0, 0) if the side is empty.
func (b *Book) BestAsk(symbol uint32) (int32, int64) {
	return b.extreme(symbol, types.SideSell, false)
}

func (b *Book) extreme(symbol uint32, side types.Side, max bool) (int32, int64) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var (
		best    int32
		bestQty int64
		found   bool
	)
	for k, qty := range b.levels {
		if k.symbol != symbol || k.side != side || qty <= 0 {
			continue
		}
		if !found || (max && k.price > best) || (!max && k.price < best) {
			best, bestQty, found = k.price, qty, true
		}
	}
	if !found {
		return 0, 0
	}
	return best, bestQty
}
