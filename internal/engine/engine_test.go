package engine

import (
	"io"
	"log/slog"
	"testing"

	"etfservice/internal/config"
	"etfservice/internal/feed"
	"etfservice/pkg/types"
)

func testConfig() config.Config {
	return config.Config{
		Feed: config.FeedConfig{
			MDMcastIP:         "239.0.0.1",
			MDMcastPort:       0,
			ClearingMcastIP:   "239.0.0.2",
			ClearingMcastPort: 0,
			BindIP:            "127.0.0.1",
		},
		REST:      config.RESTConfig{Port: 0},
		Dashboard: config.DashboardConfig{Port: 0},
		Fee:       config.FeeConfig{PerShare: 0.05},
	}
}

func TestHandleMDEventDispatchesToBook(t *testing.T) {
	t.Parallel()

	eng, err := New(testConfig(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	eng.handleMDEvent(feed.MDEvent{
		Kind:     feed.EventNewOrder,
		NewOrder: types.NewOrderEvent{OrderID: 1, Symbol: 3, Side: types.SideBuy, Quantity: 10, Price: 90},
	})

	if bid, qty := eng.book.BestBid(3); bid != 90 || qty != 10 {
		t.Errorf("BestBid after dispatched NEW_ORDER = (%d, %d), want (90, 10)", bid, qty)
	}
}

func TestHandleCLEventDispatchesToClearing(t *testing.T) {
	t.Parallel()

	eng, err := New(testConfig(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	eng.handleCLEvent(feed.CLEvent{
		Kind: feed.EventFill,
		Fill: types.FillEvent{ClientID: 9, Symbol: 3, Quantity: 5, Price: 100, Side: types.SideBuy},
	})

	if pos := eng.clearing.Position(9, 3); pos != 5 {
		t.Errorf("clearing position after dispatched FILL = %d, want 5", pos)
	}
}

func TestHandleCLEventIgnoresNonFill(t *testing.T) {
	t.Parallel()

	eng, err := New(testConfig(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	eng.handleCLEvent(feed.CLEvent{Kind: feed.EventNone})

	if ids := eng.clearing.ClientIDs(); len(ids) != 0 {
		t.Errorf("ClientIDs after heartbeat = %v, want empty", ids)
	}
}
