// Package engine is the central orchestrator of the ETF position service.
//
// It wires together all subsystems:
//
//  1. feed.MDReceiver / feed.CLReceiver join the two multicast groups and
//     decode datagrams into typed events.
//  2. book.Book folds NEW/DELETE/MODIFY events into per-symbol BBO state (C).
//  3. clearing.Store folds fill events into per-(client, symbol) tallies (B).
//  4. ledger.Ledger layers synthetic create/redeem adjustments on top of B (D).
//  5. fanout.Hub composes a snapshot frame from C/B/D every 100ms and
//     broadcasts it to connected dashboard subscribers (E).
//  6. restapi.Server (rest_port) and restapi's dashboard server (ws_port)
//     expose the REST control surface and the WebSocket upgrade endpoint.
//
// Lifecycle: New() -> Start() -> [runs until shutdown] -> Stop()
package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"etfservice/internal/book"
	"etfservice/internal/clearing"
	"etfservice/internal/config"
	"etfservice/internal/fanout"
	"etfservice/internal/feed"
	"etfservice/internal/ledger"
	"etfservice/internal/restapi"
	"etfservice/pkg/types"
)

// Engine owns every subsystem's lifecycle: it starts one goroutine per
// component and waits for them all to return on Stop.
type Engine struct {
	cfg config.Config

	book     *book.Book
	clearing *clearing.Store
	ledger   *ledger.Ledger

	mdReceiver *feed.MDReceiver
	clReceiver *feed.CLReceiver
	hub        *fanout.Hub

	restServer      *restapi.Server
	dashboardServer *restapi.Server

	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New wires all engine components from cfg. No network I/O or goroutines
// start until Start is called.
func New(cfg config.Config, logger *slog.Logger) (*Engine, error) {
	b := book.New()
	c := clearing.New()
	l := ledger.New(c)

	mdReceiver := feed.NewMDReceiver(cfg.Feed.MDMcastIP, cfg.Feed.MDMcastPort, cfg.Feed.BindIP, logger)
	clReceiver := feed.NewCLReceiver(cfg.Feed.ClearingMcastIP, cfg.Feed.ClearingMcastPort, cfg.Feed.BindIP, logger)

	compose := func() types.Frame {
		return fanout.Compose(fanout.Sources{
			Book:        b,
			Clearing:    c,
			Ledger:      l,
			FeePerShare: cfg.Fee.PerShare,
		}, uint64(time.Now().UnixNano()))
	}
	hub := fanout.NewHub(compose, logger)

	restServer := restapi.NewServer(cfg.REST, cfg.Dashboard, b, c, l, logger)
	dashboardServer := restapi.NewDashboardServer(cfg.Dashboard, hub, logger)

	ctx, cancel := context.WithCancel(context.Background())

	return &Engine{
		cfg:             cfg,
		book:            b,
		clearing:        c,
		ledger:          l,
		mdReceiver:      mdReceiver,
		clReceiver:      clReceiver,
		hub:             hub,
		restServer:      restServer,
		dashboardServer: dashboardServer,
		logger:          logger.With("component", "engine"),
		ctx:             ctx,
		cancel:          cancel,
	}, nil
}

// Start launches all background goroutines: the two multicast receivers,
// the fanout hub's broadcast loop, and both HTTP servers.
func (e *Engine) Start() error {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		if err := e.mdReceiver.Run(e.ctx, e.handleMDEvent); err != nil && e.ctx.Err() == nil {
			e.logger.Error("md receiver error", "error", err)
		}
	}()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		if err := e.clReceiver.Run(e.ctx, e.handleCLEvent); err != nil && e.ctx.Err() == nil {
			e.logger.Error("clearing receiver error", "error", err)
		}
	}()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.hub.Run(e.ctx)
	}()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		if err := e.restServer.Start(); err != nil {
			e.logger.Error("rest server error", "error", err)
		}
	}()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		if err := e.dashboardServer.Start(); err != nil {
			e.logger.Error("dashboard server error", "error", err)
		}
	}()

	return nil
}

// Stop cancels all goroutines, shuts both HTTP servers down gracefully, and
// waits for everything to exit.
func (e *Engine) Stop() {
	e.logger.Info("shutting down")

	if err := e.restServer.Stop(); err != nil {
		e.logger.Error("failed to stop rest server", "error", err)
	}
	if err := e.dashboardServer.Stop(); err != nil {
		e.logger.Error("failed to stop dashboard server", "error", err)
	}

	e.cancel()
	e.wg.Wait()

	e.logger.Info("shutdown complete")
}

// handleMDEvent dispatches one decoded market data event into the order book.
func (e *Engine) handleMDEvent(evt feed.MDEvent) {
	switch evt.Kind {
	case feed.EventNewOrder:
		e.book.ApplyNew(evt.NewOrder)
	case feed.EventDeleteOrder:
		e.book.ApplyDelete(evt.Delete)
	case feed.EventModifyOrder:
		e.book.ApplyModify(evt.Modify)
	}
}

// handleCLEvent dispatches one decoded clearing event into the clearing store.
func (e *Engine) handleCLEvent(evt feed.CLEvent) {
	if evt.Kind != feed.EventFill {
		return
	}
	fill := evt.Fill
	e.clearing.ApplyFill(fill.ClientID, fill.Symbol, fill.Quantity, fill.Price, fill.Side)
}
