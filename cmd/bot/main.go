package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"

	"candle-trading-bot/internal/broker/paper"
	"candle-trading-bot/internal/engine"
	"candle-trading-bot/internal/interfaces"
	"candle-trading-bot/internal/ledger"
	"candle-trading-bot/internal/logger"
	"candle-trading-bot/internal/store"
	"candle-trading-bot/internal/strategy"
)

func must(err error) {
	if err != nil {
		log.Fatal(err)
	}
}

func main() {
	_ = godotenv.Load()
	cfg, err := store.LoadConfig("config.yaml")
	must(err)

	must(logger.Init())
	defer logger.Shutdown(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Mode == "LIVE" {
		logger.Warn(ctx, "LIVE mode requested but only the paper venue is wired; running DRY_RUN")
		cfg.Mode = "DRY_RUN"
	}

	balance := envFloat("PAPER_BALANCE", 1000)
	brk := paper.New(balance, cfg.Instruments, time.Now().UnixNano())
	led := ledger.Open(cfg.LedgerPath, decimal.NewFromFloat(balance))

	var evaluators []interfaces.Evaluator
	if cfg.Strategies.Breakout.Enabled {
		evaluators = append(evaluators, strategy.NewBreakout(
			cfg.Strategies.Breakout.MinCandles,
			cfg.Strategies.Breakout.ExtremesLookback,
			cfg.Strategies.Breakout.MaxATRPercent,
		))
	}
	if cfg.Strategies.Engulfing.Enabled {
		evaluators = append(evaluators, strategy.NewEngulfing(
			cfg.Strategies.Engulfing.MinCandles,
			cfg.Strategies.Engulfing.MinBodyRatio,
		))
	}

	eng := engine.New(cfg, brk, led, evaluators)
	go serveHTTP(ctx, eng)

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigc
		logger.Info(ctx, "Shutdown signal received")
		eng.Stop()
		cancel()
	}()

	logger.Info(ctx, "Bot started", "mode", cfg.Mode, "timeframe", cfg.Timeframe().String())
	if err := eng.Run(ctx); err != nil {
		logger.ErrorWithErr(ctx, "Engine exited with error", err)
		os.Exit(1)
	}
}

// serveHTTP exposes Prometheus metrics and the engine status snapshot.
func serveHTTP(ctx context.Context, eng *engine.Engine) {
	addr := os.Getenv("METRICS_ADDR")
	if addr == "" {
		addr = ":9090"
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(eng.Status())
	})

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.ErrorWithErr(ctx, "Metrics server failed", err)
	}
}

func envFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}
