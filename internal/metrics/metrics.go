// Package metrics exposes the bot's Prometheus instrumentation:
//   - bot_cycles_total                 – completed candle cycles
//   - bot_signals_total{strategy,valid} – evaluator outcomes
//   - bot_trades_total{result}          – trades by terminal resolution
//   - bot_skips_total{reason}           – submissions skipped and why
//   - bot_open_trades                   – currently unresolved trades (gauge)
//   - bot_balance                       – running account balance (gauge)
//   - bot_shortlist_size                – instruments shortlisted per cycle (gauge)
//   - bot_connected                     – 1 while the venue link is verified (gauge)
//
// Registered in init() and served by the /metrics handler started in main.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	cycles = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bot_cycles_total",
		Help: "Completed candle cycles",
	})

	signals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_signals_total",
			Help: "Signals produced by strategy and validity",
		},
		[]string{"strategy", "valid"},
	)

	trades = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_trades_total",
			Help: "Trades by terminal resolution",
		},
		[]string{"result"},
	)

	skips = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_skips_total",
			Help: "Trade submissions skipped, by reason",
		},
		[]string{"reason"},
	)

	openTrades = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "bot_open_trades",
		Help: "Currently unresolved trades",
	})

	balance = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "bot_balance",
		Help: "Running account balance",
	})

	shortlist = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "bot_shortlist_size",
		Help: "Instruments shortlisted in the latest prefilter",
	})

	connected = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "bot_connected",
		Help: "1 while the venue connection is verified",
	})
)

func init() {
	prometheus.MustRegister(cycles, signals, trades, skips, openTrades, balance, shortlist, connected)
}

func IncCycle() { cycles.Inc() }

func ObserveSignal(strategy string, valid bool) {
	v := "false"
	if valid {
		v = "true"
	}
	signals.WithLabelValues(strategy, v).Inc()
}

func ObserveTrade(result string) { trades.WithLabelValues(result).Inc() }

func ObserveSkip(reason string) { skips.WithLabelValues(reason).Inc() }

func SetOpenTrades(n int) { openTrades.Set(float64(n)) }

func SetBalance(b float64) { balance.Set(b) }

func SetShortlistSize(n int) { shortlist.Set(float64(n)) }

func SetConnected(up bool) {
	if up {
		connected.Set(1)
	} else {
		connected.Set(0)
	}
}
