package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/arbiq/scanner/internal/appctx"
	applog "github.com/arbiq/scanner/internal/log"
	"github.com/arbiq/scanner/internal/orchestrator"
	"github.com/arbiq/scanner/internal/persistence"
)

const (
	appName = "arbiq"
	version = "v0.1.0"
)

// configFlags are shared across every subcommand that needs the wired
// dependency graph.
type configFlags struct {
	venuesConfig string
	jobsConfig   string
	settingsPath string
	pgDSN        string
	redisAddr    string
}

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	if term.IsTerminal(int(os.Stderr.Fd())) {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	} else {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}

	if err := newRootCmd().Execute(); err != nil {
		log.Fatal().Err(err).Msg("command failed")
	}
}

func newRootCmd() *cobra.Command {
	flags := &configFlags{}

	root := &cobra.Command{
		Use:     appName,
		Short:   "Cross-venue cryptocurrency arbitrage scanner",
		Version: version,
		Long: `arbiq scans quotes and order books across CEX, DEX, and perp-DEX venues,
computes executable spreads net of slippage and fees, applies a safety
validation battery, and emits alerts via a messaging channel while
tracking open signals until their edge converges.

Run a subcommand directly for automation; running with no arguments in
an interactive terminal prints this summary plus the subcommands below.`,
		Run: runDefaultEntry,
	}

	root.PersistentFlags().StringVar(&flags.venuesConfig, "venues-config", "config/venues.yaml", "Path to venue configuration YAML")
	root.PersistentFlags().StringVar(&flags.jobsConfig, "jobs-config", "", "Path to job schedule YAML (defaults to the built-in schedule)")
	root.PersistentFlags().StringVar(&flags.settingsPath, "settings", "config/settings.yaml", "Path to static runtime settings YAML")
	root.PersistentFlags().StringVar(&flags.pgDSN, "postgres-dsn", "", "Postgres connection string (enables persistence when set)")
	root.PersistentFlags().StringVar(&flags.redisAddr, "redis-addr", "localhost:6379", "Redis address")

	root.AddCommand(newScanCmd(flags))
	root.AddCommand(newScheduleCmd(flags))
	root.AddCommand(newSignalsCmd(flags))
	root.AddCommand(newHealthCmd(flags))

	return root
}

// runDefaultEntry mirrors the teacher's TTY-aware default entry: an
// interactive terminal gets a short orientation banner; a pipe or cron
// invocation gets the plain cobra help text instead, since neither
// attempts to draw an interactive menu the way the teacher's full
// momentum CLI does.
func runDefaultEntry(cmd *cobra.Command, args []string) {
	if term.IsTerminal(int(os.Stdout.Fd())) {
		fmt.Printf("%s %s — cross-venue arbitrage scanner\n\n", appName, version)
		fmt.Println("Subcommands:")
		fmt.Println("  scan      run one fetch/spread/safety/signal pass and exit")
		fmt.Println("  schedule  run the orchestrator's job loop (or a single named job)")
		fmt.Println("  signals   list recently emitted signals")
		fmt.Println("  health    report venue, KV store, and relational store reachability")
		fmt.Println()
		fmt.Printf("Run '%s <subcommand> --help' for details.\n", appName)
		return
	}
	_ = cmd.Help()
}

func (f *configFlags) toAppConfig() appctx.Config {
	return appctx.Config{
		VenuesConfigPath: f.venuesConfig,
		JobsConfigPath:   f.jobsConfig,
		SettingsPath:     f.settingsPath,
		Postgres: appctx.PostgresConfig{
			DSN:             f.pgDSN,
			Enabled:         f.pgDSN != "",
			MaxOpenConns:    appctx.DefaultPostgresConfig().MaxOpenConns,
			MaxIdleConns:    appctx.DefaultPostgresConfig().MaxIdleConns,
			ConnMaxLifetime: appctx.DefaultPostgresConfig().ConnMaxLifetime,
			ConnMaxIdleTime: appctx.DefaultPostgresConfig().ConnMaxIdleTime,
			QueryTimeout:    appctx.DefaultPostgresConfig().QueryTimeout,
		},
		Redis: appctx.RedisConfig{Addr: f.redisAddr},
		Telegram: appctx.TelegramConfig{
			BotToken: os.Getenv("ARBIQ_TELEGRAM_BOT_TOKEN"),
			Enabled:  os.Getenv("ARBIQ_TELEGRAM_BOT_TOKEN") != "",
		},
	}
}

func newScanCmd(flags *configFlags) *cobra.Command {
	var dryRun bool
	var job string

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Run one pass of the scanning pipeline and exit",
		Long:  "Runs a single iteration of one configured job, looked up by name (default: price-monitor, the built-in price_monitor job), and prints its outcome.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			appCtx, err := appctx.New(ctx, flags.toAppConfig())
			if err != nil {
				return fmt.Errorf("wire application context: %w", err)
			}
			defer appCtx.Close()

			steps := applog.NewStepLogger("scan", []string{job})
			steps.StartStep(job)
			result, err := appCtx.Orchestrator.RunJob(ctx, job, dryRun)
			if err != nil {
				steps.Fail(err.Error())
				return err
			}
			steps.CompleteStep()
			steps.Finish()

			printJobResult(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&job, "job", "price-monitor", "Name of the configured job to run once (built-in schedule: ticker-discovery|price-monitor|orderbook-analysis|convergence|safety-alert)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Evaluate without emitting alerts or persisting state")
	return cmd
}

func newScheduleCmd(flags *configFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run the orchestrator's long-lived job loop",
		Long:  "Starts every enabled job on its own independent ticker and blocks until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			appCtx, err := appctx.New(ctx, flags.toAppConfig())
			if err != nil {
				return fmt.Errorf("wire application context: %w", err)
			}
			defer appCtx.Close()

			log.Info().Msg("starting orchestrator job loop")
			appCtx.Orchestrator.Start(ctx)
			<-ctx.Done()
			log.Info().Msg("shutdown signal received, stopping job loop")
			return nil
		},
	}

	runCmd := &cobra.Command{
		Use:   "run <job-name>",
		Short: "Run one named job ad hoc and exit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			appCtx, err := appctx.New(ctx, flags.toAppConfig())
			if err != nil {
				return fmt.Errorf("wire application context: %w", err)
			}
			defer appCtx.Close()

			dryRun, _ := cmd.Flags().GetBool("dry-run")
			result, err := appCtx.Orchestrator.RunJob(ctx, args[0], dryRun)
			if err != nil {
				return err
			}
			printJobResult(result)
			return nil
		},
	}
	runCmd.Flags().Bool("dry-run", false, "Evaluate without emitting alerts or persisting state")
	cmd.AddCommand(runCmd)

	return cmd
}

func newSignalsCmd(flags *configFlags) *cobra.Command {
	var symbol, status string
	var limit int
	var hours int

	cmd := &cobra.Command{
		Use:   "signals",
		Short: "List recently emitted signals",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			appCtx, err := appctx.New(ctx, flags.toAppConfig())
			if err != nil {
				return fmt.Errorf("wire application context: %w", err)
			}
			defer appCtx.Close()

			tr := persistence.TimeRange{From: time.Now().Add(-time.Duration(hours) * time.Hour), To: time.Now()}

			if status != "" {
				rows, err := appCtx.Postgres.Repository().Signals.ListByStatus(ctx, status, limit)
				if err != nil {
					return err
				}
				for _, s := range rows {
					fmt.Printf("%s  %-6s  %-10s  %s->%s  spread=%s%%  status=%s\n",
						s.CreatedAt.Format(time.RFC3339), s.Symbol, s.StrategyType, s.LowVenue, s.HighVenue, s.Spread.NetPct.String(), s.Status)
				}
				return nil
			}

			if symbol == "" {
				return fmt.Errorf("--symbol is required unless --status is set")
			}
			rows, err := appCtx.Postgres.Repository().Signals.ListBySymbol(ctx, symbol, tr, limit)
			if err != nil {
				return err
			}
			for _, s := range rows {
				fmt.Printf("%s  %-6s  %-10s  %s->%s  spread=%s%%  status=%s\n",
					s.CreatedAt.Format(time.RFC3339), s.Symbol, s.StrategyType, s.LowVenue, s.HighVenue, s.Spread.NetPct.String(), s.Status)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&symbol, "symbol", "", "Filter by symbol (required unless --status is set)")
	cmd.Flags().StringVar(&status, "status", "", "Filter by lifecycle status instead of symbol (new|sent|taken|closed)")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum rows to print")
	cmd.Flags().IntVar(&hours, "hours", 24, "Lookback window in hours when filtering by symbol")
	return cmd
}

func newHealthCmd(flags *configFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Report venue, KV store, and relational store reachability",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()

			appCtx, err := appctx.New(ctx, flags.toAppConfig())
			if err != nil {
				return fmt.Errorf("wire application context: %w", err)
			}
			defer appCtx.Close()

			healthy := true

			if err := appCtx.Redis.Health(ctx); err != nil {
				fmt.Printf("redis:    UNHEALTHY (%v)\n", err)
				healthy = false
			} else {
				fmt.Println("redis:    healthy")
			}

			pgHealth := appCtx.Postgres.Health(ctx)
			if pgHealth.Healthy {
				fmt.Println("postgres: healthy")
			} else {
				fmt.Printf("postgres: UNHEALTHY (%v)\n", pgHealth.Errors)
				healthy = false
			}

			for _, reg := range appCtx.Venues.All() {
				fmt.Printf("venue %-10s capabilities=%v\n", reg.Adapter.Name(), reg.Capabilities)
			}

			if !healthy {
				os.Exit(1)
			}
			return nil
		},
	}
	return cmd
}

func printJobResult(r *orchestrator.JobResult) {
	if r.Success {
		fmt.Printf("job=%s  status=ok  duration=%s\n", r.JobName, r.Duration)
		return
	}
	fmt.Printf("job=%s  status=failed  duration=%s  error=%s\n", r.JobName, r.Duration, r.Error)
}

// signalContext returns a context canceled on SIGINT/SIGTERM, the same
// shutdown trigger the teacher's long-running commands use.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()
	return ctx, cancel
}
