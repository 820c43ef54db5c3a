// ETF Position Service — tracks per-client positions across a basket ETF
// and its underlyings, fed by two binary multicast feeds, with atomic
// create/redeem and a live dashboard.
//
// Architecture:
//
//	main.go               — entry point: loads config, starts engine, waits for SIGINT/SIGTERM
//	engine/engine.go      — orchestrator: wires feeds -> book/clearing/ledger -> fanout/restapi
//	feed/decode.go         — binary wire decoders for the market data and clearing protocols
//	feed/receiver.go       — multicast receivers, sequence-gap tracking
//	book/book.go            — in-memory order book, BBO derivation
//	clearing/store.go      — per-(client, symbol) clearing tallies from fills
//	ledger/ledger.go        — synthetic ETF create/redeem adjustments, atomic vs. clearing
//	fanout/hub.go           — WebSocket dashboard broadcaster
//	restapi/server.go       — REST control surface + dashboard WS upgrade
//
// The service tracks no on-chain or exchange-connected state: it is a pure
// consumer of two UDP multicast feeds and a synthetic ETF ledger on top.
package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"etfservice/internal/config"
	"etfservice/internal/engine"
)

func main() {
	cfgPath := "configs/config.yaml"
	if p := os.Getenv("ETF_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "error", err, "path", cfgPath)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Logging.Level)}
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)

	eng, err := engine.New(*cfg, logger)
	if err != nil {
		logger.Error("failed to create engine", "error", err)
		os.Exit(1)
	}

	if err := eng.Start(); err != nil {
		logger.Error("failed to start engine", "error", err)
		os.Exit(1)
	}

	logger.Info("etf service started",
		"md_mcast", cfg.Feed.MDMcastIP,
		"clearing_mcast", cfg.Feed.ClearingMcastIP,
		"rest_port", cfg.REST.Port,
		"ws_port", cfg.Dashboard.Port,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("received shutdown signal", "signal", sig.String())

	eng.Stop()
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
