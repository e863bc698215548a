// Command chainsim runs the supply chain simulation: factories, warehouses,
// trucks, and stores coordinating over a message bus on a shared city map.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/talgya/supply-sim/internal/agents"
	"github.com/talgya/supply-sim/internal/api"
	"github.com/talgya/supply-sim/internal/config"
	"github.com/talgya/supply-sim/internal/engine"
	"github.com/talgya/supply-sim/internal/metrics"
	"github.com/talgya/supply-sim/internal/persistence"
)

// metricsSampleEvery is how often (in ticks) a metrics row is persisted.
const metricsSampleEvery = 10

var (
	flagConfig   string
	flagSeed     int64
	flagPort     int
	flagDB       string
	flagSpeed    float64
	flagTicks    uint64
	flagLogLevel string
)

func main() {
	root := &cobra.Command{
		Use:   "chainsim",
		Short: "Multi-agent supply chain simulation",
		Long: "chainsim simulates a supply chain as independent agents — stores, " +
			"warehouses, factories, trucks, and a market — exchanging messages on " +
			"a tick-based bus. State is observable over HTTP and WebSocket.",
		RunE: run,
	}

	root.Flags().StringVarP(&flagConfig, "config", "c", "", "scenario file (yaml); built-in default when empty")
	root.Flags().Int64Var(&flagSeed, "seed", 0, "override the scenario seed")
	root.Flags().IntVarP(&flagPort, "port", "p", 8080, "HTTP API port")
	root.Flags().StringVar(&flagDB, "db", "data/chainsim.db", "SQLite database path")
	root.Flags().Float64Var(&flagSpeed, "speed", 1.0, "tick speed multiplier")
	root.Flags().Uint64Var(&flagTicks, "ticks", 0, "run this many ticks then exit (0 = run until interrupted)")
	root.Flags().StringVar(&flagLogLevel, "log-level", "info", "log level: debug, info, warn, error")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	setupLogging(flagLogLevel)

	scenario := config.Default()
	if flagConfig != "" {
		loaded, err := config.Load(flagConfig)
		if err != nil {
			return err
		}
		scenario = loaded
	}
	if flagSeed != 0 {
		scenario.Seed = flagSeed
	}
	slog.Info("scenario loaded", "name", scenario.Name, "seed", scenario.Seed,
		"stores", len(scenario.Stores), "warehouses", len(scenario.Warehouses),
		"factories", len(scenario.Factories))

	// ── Database ──────────────────────────────────────────────────────
	if err := os.MkdirAll(filepath.Dir(flagDB), 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	db, err := persistence.Open(flagDB)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	runID, err := db.NewRun(scenario.Name, scenario.Seed)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	slog.Info("database opened", "path", flagDB, "run", runID)

	// ── Simulation ────────────────────────────────────────────────────
	mgr, err := engine.Build(scenario)
	if err != nil {
		return fmt.Errorf("build simulation: %w", err)
	}
	mgr.AddSink(persistSink(db, runID))

	runner := engine.NewRunner(mgr)
	runner.SetSpeed(flagSpeed)
	if scenario.TickInterval > 0 {
		runner.Interval = scenario.TickInterval
	}

	// ── HTTP API ──────────────────────────────────────────────────────
	adminKey := os.Getenv("CHAINSIM_ADMIN_KEY")
	if adminKey == "" {
		slog.Warn("CHAINSIM_ADMIN_KEY not set, control endpoints will be disabled")
	}
	apiServer := &api.Server{
		Mgr:      mgr,
		Runner:   runner,
		DB:       db,
		RunID:    runID,
		Port:     flagPort,
		AdminKey: adminKey,
	}
	apiServer.Start()

	// ── Run ───────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("received signal, shutting down", "signal", sig)
		mgr.Stop()
		runner.Stop()
	}()

	if flagTicks > 0 {
		go func() {
			for mgr.Tick() < flagTicks {
				time.Sleep(100 * time.Millisecond)
			}
			slog.Info("tick limit reached", "ticks", flagTicks)
			mgr.Stop()
			runner.Stop()
		}()
	}

	mgr.Start()
	fmt.Printf("chainsim: %s scenario, seed %d\n", scenario.Name, scenario.Seed)
	fmt.Printf("API: http://localhost:%d/api/v1/status (Ctrl+C to stop)\n", flagPort)
	runner.Run()

	printSummary(mgr)
	return nil
}

// persistSink archives feed-worthy events every tick and samples metrics
// periodically.
func persistSink(db *persistence.DB, runID string) engine.EventSink {
	feed := engine.NewFeed()
	return func(tick uint64, evs []agents.Event, m metrics.Metrics) {
		feed.Reset()
		for _, ev := range evs {
			feed.Add(tick, ev)
		}
		if err := db.SaveFeed(runID, feed.Recent(0)); err != nil {
			slog.Error("event archive failed", "tick", tick, "error", err)
		}
		if tick%metricsSampleEvery == 0 {
			if err := db.SaveMetrics(runID, tick, m); err != nil {
				slog.Error("metrics sample failed", "tick", tick, "error", err)
			}
		}
	}
}

func setupLogging(level string) {
	var l slog.Level
	switch level {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: l}))
	slog.SetDefault(logger)
}

func printSummary(mgr *engine.Manager) {
	m := mgr.Metrics()
	fmt.Println("\n─── run summary ───────────────────────────────")
	fmt.Printf("ticks:            %s\n", humanize.Comma(int64(mgr.Tick())))
	fmt.Printf("revenue:          $%s\n", humanize.CommafWithDigits(m.Revenue, 2))
	fmt.Printf("storage cost:     $%s\n", humanize.CommafWithDigits(m.StorageCost, 2))
	fmt.Printf("net profit:       $%s\n", humanize.CommafWithDigits(m.NetProfit, 2))
	fmt.Printf("lost sales:       $%s (%s units)\n",
		humanize.CommafWithDigits(m.LostSales, 2), humanize.Comma(int64(m.UnitsLost)))
	fmt.Printf("units sold:       %s\n", humanize.Comma(int64(m.UnitsSold)))
	fmt.Printf("units produced:   %s\n", humanize.Comma(int64(m.UnitsProduced)))
	fmt.Printf("deliveries:       %s\n", humanize.Comma(int64(m.Deliveries)))
	fmt.Printf("orders:           %d fulfilled / %d cancelled of %d placed\n",
		m.OrdersFulfilled, m.OrdersCancelled, m.OrdersPlaced)
	fmt.Printf("fulfillment rate: %.1f%%\n", m.FulfillmentRate*100)
	fmt.Printf("efficiency score: %.3f\n", m.EfficiencyScore)
}
