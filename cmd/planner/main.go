// cmd/planner/main.go
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/andresuchdata/replenish/internal/cache"
	"github.com/andresuchdata/replenish/internal/config"
	"github.com/andresuchdata/replenish/internal/domain"
	"github.com/andresuchdata/replenish/internal/planner"
	"github.com/andresuchdata/replenish/internal/repository"
	"github.com/andresuchdata/replenish/internal/repository/csvload"
	"github.com/andresuchdata/replenish/internal/repository/memory"
	"github.com/andresuchdata/replenish/internal/risk"
	"github.com/andresuchdata/replenish/internal/service"
	"github.com/andresuchdata/replenish/internal/solver"
	"github.com/andresuchdata/replenish/internal/storage"
	"github.com/andresuchdata/replenish/pkg/logger"
)

func newDBURLFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "db-url",
		Usage:   "Database connection string; omit to plan from CSV files",
		EnvVars: []string{"DATABASE_URL"},
	}
}

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("warning: could not load .env file: %v", err)
	}

	app := &cli.App{
		Name:  "planner",
		Usage: "Run the rolling-horizon replenishment optimizer",
		Commands: []*cli.Command{
			{
				Name:  "run-cycle",
				Usage: "Solve all partitions for one cycle date",
				Flags: []cli.Flag{
					newDBURLFlag(),
					&cli.StringFlag{Name: "date", Usage: "Cycle date (YYYY-MM-DD)", Value: time.Now().UTC().Format("2006-01-02")},
					&cli.IntFlag{Name: "horizon", Usage: "Planning horizon in periods (0 uses config)"},
					&cli.IntFlag{Name: "workers", Usage: "Worker pool size (0 uses config)"},
					&cli.StringFlag{Name: "products", Usage: "Product master CSV (file mode)"},
					&cli.StringFlag{Name: "locations", Usage: "Location master CSV (file mode)"},
					&cli.StringFlag{Name: "forecasts", Usage: "Demand forecast CSV (file mode)"},
					&cli.StringFlag{Name: "initial-inventory", Usage: "Starting inventory CSV (file mode, optional)"},
					&cli.StringFlag{Name: "risk-feed", Usage: "Risk event JSON feed (optional)"},
				},
				Action: runCycle,
			},
			{
				Name:  "daemon",
				Usage: "Run a cycle on a fixed interval with an ops endpoint",
				Flags: []cli.Flag{
					newDBURLFlag(),
					&cli.StringFlag{Name: "listen", Usage: "Ops listen address", Value: ":8090"},
					&cli.DurationFlag{Name: "interval", Usage: "Time between cycles", Value: 24 * time.Hour},
				},
				Action: runDaemon,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func runCycle(c *cli.Context) error {
	cfg := config.Load()
	logger.SetLevel(cfg.Server.Mode)

	cycleDate, err := time.Parse("2006-01-02", c.String("date"))
	if err != nil {
		return fmt.Errorf("invalid --date: %w", err)
	}

	plannerCfg := plannerConfigFrom(cfg)
	if h := c.Int("horizon"); h > 0 {
		plannerCfg.Horizon = h
	}
	if w := c.Int("workers"); w > 0 {
		plannerCfg.WorkerCount = w
	}

	svc, err := buildPlanner(c, cfg, plannerCfg)
	if err != nil {
		return err
	}

	var risks []domain.RiskAdjustment
	if feed := c.String("risk-feed"); feed != "" {
		risks, err = risk.ParseFile(feed)
		if err != nil {
			return err
		}
	}

	var initial map[domain.ItemKey]float64
	if path := c.String("initial-inventory"); path != "" {
		initial, err = csvload.LoadInitialInventory(path)
		if err != nil {
			return err
		}
	}

	report, runErr := svc.RunCycle(c.Context, cycleDate, risks, initial)
	if report != nil {
		logger.Log.Info().
			Int("total", report.Total).
			Int("persisted", report.Persisted).
			Int("failed", report.Failed).
			Int("repaired", report.Repaired).
			Int("carried", report.Carried).
			Msg("cycle complete")
		for _, r := range report.Results {
			if r.State == planner.StateFailed {
				logger.Log.Error().Str("partition", r.Key).Str("error", r.Error).Msg("partition failed")
			}
		}
	}
	return runErr
}

// buildPlanner wires the optimization pipeline against either postgres or
// in-memory repositories fed from CSV files.
func buildPlanner(c *cli.Context, cfg *config.Config, plannerCfg planner.Config) (*service.PlannerService, error) {
	policyCache, err := cache.NewPolicyCache(cfg.Cache)
	if err != nil {
		logger.Log.Warn().Err(err).Msg("policy cache unavailable, continuing without it")
		policyCache = cache.NewNoopPolicyCache()
	}

	var (
		policyRepo   planner.PolicyStore
		cycleRepo    planner.CycleStore
		masterRepo   repository.MasterRepository
		forecastRepo repository.ForecastRepository
	)

	if dbURL := c.String("db-url"); dbURL != "" {
		db, err := sqlx.Connect("pgx", dbURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		policyRepo = repository.NewPolicyRepository(db, nil)
		cycleRepo = repository.NewCycleRepository(db)
		masterRepo = repository.NewMasterRepository(db)
		forecastRepo = repository.NewForecastRepository(db)
	} else {
		products := c.String("products")
		locations := c.String("locations")
		forecasts := c.String("forecasts")
		if products == "" || locations == "" || forecasts == "" {
			return nil, fmt.Errorf("file mode requires --products, --locations and --forecasts")
		}

		master := memory.NewMasterRepository()
		prods, err := csvload.LoadProducts(products)
		if err != nil {
			return nil, err
		}
		for _, p := range prods {
			master.AddProduct(p)
		}
		locs, err := csvload.LoadLocations(locations)
		if err != nil {
			return nil, err
		}
		for _, l := range locs {
			master.AddLocation(l)
		}

		fcasts := memory.NewForecastRepository()
		rows, err := csvload.LoadForecasts(forecasts)
		if err != nil {
			return nil, err
		}
		for _, f := range rows {
			fcasts.AddForecast(f)
		}

		policyRepo = memory.NewPolicyRepository()
		cycleRepo = memory.NewCycleRepository()
		masterRepo = master
		forecastRepo = fcasts
	}

	controller := planner.NewController(plannerCfg, solver.NewMILP(), policyRepo, cycleRepo, policyCache)
	svc := service.NewPlannerService(controller, plannerCfg, masterRepo, forecastRepo)

	if cfg.Report.Enabled {
		store, err := storage.NewS3Client(cfg.Report)
		if err != nil {
			logger.Log.Warn().Err(err).Msg("report storage unavailable, skipping export")
		} else {
			svc = svc.WithReportExport(store, cfg.Report.Prefix)
		}
	}

	return svc, nil
}

// runDaemon runs cycles on a ticker and exposes a small ops surface for
// health checks and on-demand runs.
func runDaemon(c *cli.Context) error {
	cfg := config.Load()
	logger.SetLevel(cfg.Server.Mode)

	if c.String("db-url") == "" {
		return fmt.Errorf("daemon mode requires --db-url")
	}

	plannerCfg := plannerConfigFrom(cfg)
	svc, err := buildPlanner(c, cfg, plannerCfg)
	if err != nil {
		return err
	}

	runOnce := func(ctx context.Context) {
		cycleDate := time.Now().UTC().Truncate(24 * time.Hour)
		report, err := svc.RunCycle(ctx, cycleDate, nil, nil)
		if err != nil {
			logger.Log.Error().Err(err).Msg("cycle failed")
		}
		if report != nil {
			logger.Log.Info().
				Str("cycle_date", cycleDate.Format("2006-01-02")).
				Int("persisted", report.Persisted).
				Int("failed", report.Failed).
				Msg("cycle complete")
		}
	}

	r := mux.NewRouter()
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	}).Methods(http.MethodGet)
	r.HandleFunc("/run", func(w http.ResponseWriter, req *http.Request) {
		go runOnce(context.WithoutCancel(req.Context()))
		w.WriteHeader(http.StatusAccepted)
		fmt.Fprintln(w, "cycle started")
	}).Methods(http.MethodPost)

	srv := &http.Server{Addr: c.String("listen"), Handler: r}
	go func() {
		logger.Log.Info().Str("addr", srv.Addr).Msg("ops server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Error().Err(err).Msg("ops server stopped")
		}
	}()

	ticker := time.NewTicker(c.Duration("interval"))
	defer ticker.Stop()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	runOnce(c.Context)
	for {
		select {
		case <-ticker.C:
			runOnce(c.Context)
		case <-stop:
			logger.Log.Info().Msg("shutting down planner daemon")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		}
	}
}

func plannerConfigFrom(cfg *config.Config) planner.Config {
	return planner.Config{
		Horizon:             cfg.Planner.Horizon,
		WorkerCount:         cfg.Planner.WorkerCount,
		MaxPartitionItems:   cfg.Planner.MaxPartitionItems,
		FailureThreshold:    cfg.Planner.FailureThreshold,
		TieBreakEpsilon:     cfg.Solver.TieBreakEpsilon,
		ShortageAllowance:   cfg.Planner.ShortageAllowance,
		RelaxedSafetyFactor: cfg.Planner.RelaxedSafetyFactor,
		Granularity:         cfg.Planner.UnitGranularity,
		SolveOptions: solver.Options{
			TimeLimit:    cfg.Solver.TimeLimit,
			GapTolerance: cfg.Solver.GapTolerance,
			NodeLimit:    cfg.Solver.NodeLimit,
		},
	}
}
