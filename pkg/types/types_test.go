package types

import "testing"

func TestTickerForRoundTrip(t *testing.T) {
	t.Parallel()

	for id, sym := range SymbolTable {
		if got := TickerFor(id); got != sym.Ticker {
			t.Errorf("TickerFor(%d) = %q, want %q", id, got, sym.Ticker)
		}
		gotID, ok := IDForTicker(sym.Ticker)
		if !ok || gotID != id {
			t.Errorf("IDForTicker(%q) = (%d, %v), want (%d, true)", sym.Ticker, gotID, ok, id)
		}
	}
}

func TestTickerForUnknown(t *testing.T) {
	t.Parallel()

	if got := TickerFor(999); got != "" {
		t.Errorf("TickerFor(999) = %q, want empty", got)
	}
	if _, ok := IDForTicker("NOPE"); ok {
		t.Errorf("IDForTicker(%q) ok = true, want false", "NOPE")
	}
}

func TestETFSymbolNotInUnderlyings(t *testing.T) {
	t.Parallel()

	for _, sym := range UnderlyingSymbols {
		if sym == ETFSymbolID {
			t.Fatalf("ETFSymbolID %d must not appear in UnderlyingSymbols", ETFSymbolID)
		}
	}
	if _, ok := SymbolTable[ETFSymbolID]; !ok {
		t.Fatalf("ETFSymbolID %d missing from SymbolTable", ETFSymbolID)
	}
}

func TestSideString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		side Side
		want string
	}{
		{SideBuy, "BUY"},
		{SideSell, "SELL"},
		{Side(0), "UNKNOWN"},
	}

	for _, tt := range tests {
		if got := tt.side.String(); got != tt.want {
			t.Errorf("Side(%d).String() = %q, want %q", tt.side, got, tt.want)
		}
	}
}
