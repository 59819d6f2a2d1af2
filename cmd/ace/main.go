package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"gemex-ace/internal/backup"
	"gemex-ace/internal/engine"
	"gemex-ace/internal/logger"
	"gemex-ace/internal/market"
	"gemex-ace/internal/scheduler"
	"gemex-ace/internal/server"
	"gemex-ace/internal/simulator"
	"gemex-ace/internal/store"
	"gemex-ace/internal/trace"
	"gemex-ace/internal/types"
	"gemex-ace/internal/weekly"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	var a *app

	root := &cobra.Command{
		Use:          "ace",
		Short:        "Self-improving forex playbook: daily plans, simulated trades, weekly curation",
		Version:      version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := initializeSystem(); err != nil {
				return err
			}
			var err error
			a, err = newApp(cmd.Context(), configPath)
			return err
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = trace.Shutdown(ctx)
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "path to config file")

	get := func() *app { return a }
	root.AddCommand(
		newInitCmd(get),
		newDailyCmd(get),
		newWeeklyCmd(get),
		newStatusCmd(get),
		newBacktestCmd(get),
		newScheduleCmd(get),
		newServeCmd(get),
		newBackupCmd(get),
		newRestoreCmd(get),
	)
	return root
}

func printJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}

func parseDate(s string) (time.Time, error) {
	t, err := time.Parse(types.DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, want YYYY-MM-DD", s)
	}
	return t, nil
}

// dateOrNow parses s, or returns the current time when s is empty.
func dateOrNow(s string) (time.Time, error) {
	if s == "" {
		return time.Now(), nil
	}
	return parseDate(s)
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}

func newInitCmd(get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create data directories and seed the playbook",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			pb, err := a.playbook.Load(cmd.Context())
			if err != nil {
				return err
			}
			logger.Info(cmd.Context(), "Playbook ready",
				"path", a.playbook.Path(),
				"version", pb.Metadata.Version,
				"total_bullets", pb.Metadata.TotalBullets,
			)
			return printJSON(cmd.OutOrStdout(), pb)
		},
	}
}

func newDailyCmd(get func() *app) *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "daily",
		Short: "Generate, persist and simulate today's trading plan",
		RunE: func(cmd *cobra.Command, args []string) error {
			day, err := dateOrNow(date)
			if err != nil {
				return err
			}
			eng, err := get().initializeEngine(cmd.Context())
			if err != nil {
				return err
			}
			res, err := eng.RunDaily(cmd.Context(), day)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "session date YYYY-MM-DD (default today)")
	return cmd
}

func newWeeklyCmd(get func() *app) *cobra.Command {
	var weekEnding string
	cmd := &cobra.Command{
		Use:   "weekly",
		Short: "Reflect on the week's trade logs and curate the playbook",
		RunE: func(cmd *cobra.Command, args []string) error {
			day, err := dateOrNow(weekEnding)
			if err != nil {
				return err
			}
			eng, err := get().initializeEngine(cmd.Context())
			if err != nil {
				return err
			}
			res, err := eng.RunWeekly(cmd.Context(), day)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().StringVar(&weekEnding, "week-ending", "", "any date in the week to review, YYYY-MM-DD (default today)")
	return cmd
}

func newStatusCmd(get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show playbook version and recent sessions and reflections",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			sum, err := backup.Summarize(cmd.Context(), a.playbook, a.sessions, time.Now())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), sum)
		},
	}
}

type backtestReport struct {
	From    string              `json:"from"`
	To      string              `json:"to"`
	Summary types.WeeklySummary `json:"summary"`
	Logs    []types.TradeLog    `json:"trade_logs"`
}

func newBacktestCmd(get func() *app) *cobra.Command {
	var planPath, from, to string
	cmd := &cobra.Command{
		Use:   "backtest",
		Short: "Replay a plan template over a date range",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			var plan types.TradingPlan
			if err := store.ReadJSON(planPath, &plan); err != nil {
				return fmt.Errorf("read plan %s: %w", planPath, err)
			}
			start, err := parseDate(from)
			if err != nil {
				return err
			}
			end, err := parseDate(to)
			if err != nil {
				return err
			}
			if end.Before(start) {
				return errors.New("--to must not be before --from")
			}

			prices, err := market.NewPriceSource(a.cfg)
			if err != nil {
				return err
			}
			sim := simulator.NewFromConfig(a.cfg, prices)
			logs := sim.Backtest(cmd.Context(), plan, start, end)

			sum := weekly.Summarize(end, logs)
			sum.WeekStart = types.FormatDate(start)
			return printJSON(cmd.OutOrStdout(), backtestReport{
				From:    types.FormatDate(start),
				To:      types.FormatDate(end),
				Summary: sum,
				Logs:    logs,
			})
		},
	}
	cmd.Flags().StringVar(&planPath, "plan", "", "trading plan JSON used as the template")
	cmd.Flags().StringVar(&from, "from", "", "first date YYYY-MM-DD")
	cmd.Flags().StringVar(&to, "to", "", "last date YYYY-MM-DD")
	_ = cmd.MarkFlagRequired("plan")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func newScheduleCmd(get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "schedule",
		Short: "Run the daily and weekly cycles on their cron schedules",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			eng, err := a.initializeEngine(ctx)
			if err != nil {
				return err
			}
			sched, err := scheduler.New(ctx, a.cfg.Schedule.Timezone)
			if err != nil {
				return err
			}

			daily := scheduler.JobFunc{JobName: "daily", Fn: func(ctx context.Context) error {
				_, err := eng.RunDaily(ctx, time.Now())
				return skipOverlap(ctx, err)
			}}
			weeklyJob := scheduler.JobFunc{JobName: "weekly", Fn: func(ctx context.Context) error {
				if _, err := eng.RunWeekly(ctx, time.Now()); err != nil {
					return skipOverlap(ctx, err)
				}
				if !a.cfg.Backup.Enabled {
					return nil
				}
				return runBackup(ctx, a)
			}}
			if err := sched.AddJob(a.cfg.Schedule.Daily, daily); err != nil {
				return err
			}
			if err := sched.AddJob(a.cfg.Schedule.Weekly, weeklyJob); err != nil {
				return err
			}

			next := sched.Next()
			logger.Info(ctx, "Scheduler running",
				"timezone", a.cfg.Schedule.Timezone,
				"next_daily", next[0],
				"next_weekly", next[1],
			)
			sched.Run(ctx)
			return nil
		},
	}
}

// skipOverlap treats a cycle rejected by the engine's guard as a skipped tick.
func skipOverlap(ctx context.Context, err error) error {
	if errors.Is(err, engine.ErrCycleRunning) {
		logger.Warn(ctx, "Previous cycle still running, skipping tick")
		return nil
	}
	return err
}

func newServeCmd(get func() *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the read-only dashboard API",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			if addr == "" {
				addr = a.cfg.Server.Addr
			}
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			srv := server.New(addr, a.cfg.Server.AllowedOrigins, a.playbook, a.sessions)
			errc := make(chan error, 1)
			go func() { errc <- srv.Start() }()

			select {
			case err := <-errc:
				return err
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default server.addr)")
	return cmd
}

func runBackup(ctx context.Context, a *app) error {
	mgr, err := a.initializeBackup(ctx)
	if err != nil {
		return err
	}
	summaryPath := filepath.Join(a.cfg.Paths.DataDir, "artifact_summary.json")
	if _, err := backup.WriteSummary(ctx, summaryPath, a.playbook, a.sessions, time.Now()); err != nil {
		logger.Warn(ctx, "Failed to write artifact summary", "error", err)
	}
	_, err = mgr.Backup(ctx)
	return err
}

func newBackupCmd(get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "backup",
		Short: "Upload playbook, sessions and reflections to object storage",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBackup(cmd.Context(), get())
		},
	}
}

func newRestoreCmd(get func() *app) *cobra.Command {
	var key string
	cmd := &cobra.Command{
		Use:   "restore",
		Short: "Download and extract the newest state backup",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			ctx := cmd.Context()
			mgr, err := a.initializeBackup(ctx)
			if err != nil {
				return err
			}
			restored, err := mgr.Restore(ctx, key)
			if errors.Is(err, backup.ErrNoBackups) {
				logger.Warn(ctx, "No backups found, starting fresh")
				return nil
			}
			if err != nil {
				return err
			}
			pb, err := a.playbook.Load(ctx)
			if err != nil {
				return fmt.Errorf("restored playbook is invalid: %w", err)
			}
			logger.Info(ctx, "Restore complete",
				"key", restored,
				"version", pb.Metadata.Version,
				"total_bullets", pb.Metadata.TotalBullets,
			)
			return nil
		},
	}
	cmd.Flags().StringVar(&key, "key", "", "object key to restore (default newest)")
	return cmd
}
