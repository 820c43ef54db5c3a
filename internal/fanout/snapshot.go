package fanout

import (
	"github.com/shopspring/decimal"

	"etfservice/internal/book"
	"etfservice/internal/clearing"
	"etfservice/internal/ledger"
	"etfservice/pkg/types"
)

// Sources bundles the three state providers the snapshot composer fuses.
// Compose reads them in the order C -> B -> D, releasing each one's lock
// before acquiring the next, per spec §5 — the resulting frame is a loosely
// consistent cut, which is acceptable at a 100ms cadence.
type Sources struct {
	Book        *book.Book
	Clearing    *clearing.Store
	Ledger      *ledger.Ledger
	FeePerShare float64
}

// Compose builds one dashboard frame: top-of-book for every known symbol,
// and a position row per (client, symbol) with non-zero activity.
func Compose(src Sources, nowNanos uint64) types.Frame {
	// C: order book top-of-book, one row per symbol in the static table.
	bookRows := make([]types.BookRow, 0, len(types.SymbolTable))
	bestBid := make(map[uint32]int32, len(types.SymbolTable))
	bestAsk := make(map[uint32]int32, len(types.SymbolTable))
	for symbolID := range types.SymbolTable {
		bid, _ := src.Book.BestBid(symbolID)
		ask, _ := src.Book.BestAsk(symbolID)
		bestBid[symbolID] = bid
		bestAsk[symbolID] = ask
		bookRows = append(bookRows, types.BookRow{Symbol: symbolID, BestBid: bid, BestAsk: ask})
	}

	// B: clearing tallies for every client/symbol seen so far.
	positionsByClient := src.Clearing.PositionsAll()

	// D: every (client, symbol) with a nonzero ledger adjustment — the ETF
	// symbol itself lives only here, since it has no clearing tally.
	type pairKey struct {
		clientID uint32
		symbol   uint32
	}
	pairs := make(map[pairKey]bool)
	for clientID, bySym := range positionsByClient {
		for symbol := range bySym {
			pairs[pairKey{clientID, symbol}] = true
		}
	}
	for _, p := range src.Ledger.AdjustedPairs() {
		pairs[pairKey{p.ClientID, p.Symbol}] = true
	}

	feePerShare := decimal.NewFromFloat(src.FeePerShare)
	positionRows := make([]types.PositionRow, 0, len(pairs))
	for p := range pairs {
		tally := positionsByClient[p.clientID][p.symbol]
		effective := src.Ledger.EffectivePosition(p.clientID, p.symbol)

		pnl := decimal.NewFromInt(tally.RawPnL)
		switch {
		case effective > 0 && bestBid[p.symbol] > 0:
			pnl = pnl.Add(decimal.NewFromInt32(bestBid[p.symbol]).Mul(decimal.NewFromInt(effective)))
		case effective < 0 && bestAsk[p.symbol] > 0:
			pnl = pnl.Add(decimal.NewFromInt32(bestAsk[p.symbol]).Mul(decimal.NewFromInt(effective)))
		}
		pnl = pnl.Sub(feePerShare.Mul(decimal.NewFromInt(tally.Volume)))

		pnlFloat, _ := pnl.Float64()

		if effective == 0 && pnlFloat == 0 && tally.Volume == 0 {
			continue
		}

		positionRows = append(positionRows, types.PositionRow{
			ClientID: p.clientID,
			Symbol:   p.symbol,
			Position: effective,
			PnL:      pnlFloat,
			Volume:   tally.Volume,
		})
	}

	return types.Frame{
		Timestamp: nowNanos,
		Snapshot:  bookRows,
		Positions: positionRows,
	}
}
