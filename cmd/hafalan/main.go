// Package main - точка входа Hafalan Hub: HTTP API для журнала хафалана
// и командная строка для отчётов, миграций и выгрузки.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/almuhajirin/hafalan-hub/config"
	"github.com/almuhajirin/hafalan-hub/internal/app"
	"github.com/almuhajirin/hafalan-hub/internal/application/command"
	"github.com/almuhajirin/hafalan-hub/internal/application/query"
	"github.com/almuhajirin/hafalan-hub/internal/domain/hafalan"
	"github.com/almuhajirin/hafalan-hub/internal/infrastructure/persistence/postgres"
	"github.com/almuhajirin/hafalan-hub/internal/interface/cli"
	"github.com/almuhajirin/hafalan-hub/internal/interface/http/handlers"
	"github.com/almuhajirin/hafalan-hub/pkg/logger"
	"github.com/almuhajirin/hafalan-hub/pkg/timeutil"
)

var (
	configPath string
	logLevel   string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "hafalan",
		Short:         "Journal and tier report for Quran memorization (hafalan)",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "YAML or TOML config file (overrides HAFALAN_CONFIG)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error (overrides LOG_LEVEL)")

	root.AddCommand(newServeCmd())
	root.AddCommand(newMigrateCmd())
	root.AddCommand(newReportCmd())
	root.AddCommand(newExportCmd())
	root.AddCommand(newStudentsCmd())
	root.AddCommand(newHashKeyCmd())
	return root
}

// ══════════════════════════════════════════════════════════════════════════════
// SHARED SETUP
// ══════════════════════════════════════════════════════════════════════════════

func loadConfig() (*config.Config, error) {
	if configPath != "" {
		if err := os.Setenv("HAFALAN_CONFIG", configPath); err != nil {
			return nil, err
		}
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if logLevel != "" {
		cfg.Observability.LogLevel = logLevel
	}
	return cfg, nil
}

// newLogger writes to out; CLI commands pass stderr so stdout stays clean.
func newLogger(cfg *config.Config, out io.Writer) *logger.Logger {
	opts := logger.DefaultOptions()
	opts.Output = out
	opts.Level = logger.ParseLevel(cfg.Observability.LogLevel)
	opts.Format = logger.ParseFormat(cfg.Observability.LogFormat)
	return logger.New(opts).With(logger.String("app", cfg.App.Name))
}

func openApp(ctx context.Context, opts app.Options) (*app.App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return app.New(ctx, cfg, newLogger(cfg, os.Stderr), opts)
}

func closeApp(a *app.App) {
	if err := a.Close(); err != nil {
		a.Log.Warn("close failed", logger.Err(err))
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// SERVE
// ══════════════════════════════════════════════════════════════════════════════

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and background jobs",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := newLogger(cfg, os.Stdout)
	log.Info("starting hafalan hub",
		logger.String("env", string(cfg.App.Environment)),
		logger.String("version", cfg.App.Version),
		logger.String("store", cfg.Store.Driver),
	)

	a, err := app.New(ctx, cfg, log, app.Options{})
	if err != nil {
		return err
	}
	defer closeApp(a)

	srv, err := a.HTTPServer()
	if err != nil {
		return err
	}
	sched, err := a.Scheduler()
	if err != nil {
		return err
	}
	if sched != nil {
		if err := sched.Start(ctx); err != nil {
			return err
		}
	}

	errCh := srv.StartAsync()
	select {
	case <-ctx.Done():
		log.Info("received shutdown signal")
	case err, ok := <-errCh:
		if ok && err != nil {
			log.Error("http server error", logger.Err(err))
			return err
		}
	}

	log.Info("starting graceful shutdown", logger.Duration("timeout", cfg.App.ShutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	var shutdownErr error
	if sched != nil {
		if err := sched.Stop(); err != nil {
			log.Warn("scheduler stop failed", logger.Err(err))
		}
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to stop HTTP server gracefully", logger.Err(err))
		shutdownErr = err
	}
	if shutdownErr == nil {
		log.Info("shutdown completed")
	}
	return shutdownErr
}

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATE
// ══════════════════════════════════════════════════════════════════════════════

func newMigrateCmd() *cobra.Command {
	var rollback, status bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply store migrations (postgres) or create the schema (sqlite)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			log := newLogger(cfg, os.Stderr)
			ctx := cmd.Context()

			if cfg.Store.Driver != config.DriverPostgres {
				st, err := app.OpenStore(ctx, cfg, log)
				if err != nil {
					return err
				}
				defer st.Close()
				fmt.Fprintf(cmd.OutOrStdout(), "%s schema is up to date\n", cfg.Store.Driver)
				return nil
			}

			conn, err := app.ConnectPostgres(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer conn.Close()
			m := postgres.NewMigrator(conn)

			switch {
			case rollback:
				if err := m.Rollback(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "rolled back the latest migration")
			case !status:
				n, err := m.Migrate(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "applied %d migration(s)\n", n)
			}

			list, err := m.Status(ctx)
			if err != nil {
				return err
			}
			for _, mig := range list {
				mark := "pending"
				if mig.IsApplied {
					mark = "applied " + mig.AppliedAt.In(timeutil.JakartaTZ).Format(time.DateTime)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%04d  %-32s %s\n", mig.Version, mig.Name, mark)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&rollback, "rollback", false, "roll back the latest migration")
	cmd.Flags().BoolVar(&status, "status", false, "only print migration status")
	return cmd
}

// ══════════════════════════════════════════════════════════════════════════════
// REPORT
// ══════════════════════════════════════════════════════════════════════════════

func newReportCmd() *cobra.Command {
	var (
		q       query.RunAnalysisQuery
		asJSON  bool
		noCache bool
	)
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Cluster santri of a period into tiers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd.Context(), app.Options{SkipCache: noCache})
			if err != nil {
				return err
			}
			defer closeApp(a)

			if q.Month == "" || q.Year == "" {
				cur := hafalan.PeriodOf(timeutil.Now())
				if q.Month == "" {
					q.Month = cur.Month
				}
				if q.Year == "" {
					q.Year = cur.Year
				}
			}
			if !cmd.Flags().Changed("k") {
				q.K = a.Config.Analysis.DefaultK
			}
			if !cmd.Flags().Changed("features") {
				q.FeatureSet = a.Config.Analysis.FeatureSet
			}
			if !cmd.Flags().Changed("winsorize") {
				q.WinsorizeLimit = a.Config.Analysis.WinsorizeLimit
			}
			q.SkipCache = noCache

			rep, err := a.Queries.RunAnalysis.Handle(cmd.Context(), q)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(rep)
			}
			return cli.RenderReport(cmd.OutOrStdout(), rep)
		},
	}
	f := cmd.Flags()
	f.StringVar(&q.Month, "month", "", "Indonesian month name, e.g. Mei (default: current month)")
	f.StringVar(&q.Year, "year", "", "four-digit year (default: current year)")
	f.StringVar(&q.Granularity, "granularity", "monthly", "monthly, weekly or daily")
	f.IntVar(&q.Week, "week", 0, "week of month 1-5 for weekly reports")
	f.StringVar(&q.Date, "date", "", "YYYY-MM-DD for daily reports")
	f.IntVar(&q.K, "k", 3, "number of tiers (2-8)")
	f.StringVar(&q.FeatureSet, "features", "full", "full or compact")
	f.Float64Var(&q.WinsorizeLimit, "winsorize", 0, "clip each tail by this fraction before scaling")
	f.BoolVar(&q.Diagnostic, "diagnostic", false, "include cluster diagnostics")
	f.BoolVar(&q.Elbow, "elbow", false, "include inertia for k=2..8")
	f.BoolVar(&asJSON, "json", false, "print the report as JSON")
	f.BoolVar(&noCache, "no-cache", false, "skip the report cache")
	return cmd
}

// ══════════════════════════════════════════════════════════════════════════════
// EXPORT
// ══════════════════════════════════════════════════════════════════════════════

func newExportCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Dump santri, daily records and monthly summaries as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd.Context(), app.Options{SkipCache: true})
			if err != nil {
				return err
			}
			defer closeApp(a)

			res, err := a.Queries.Export.Handle(cmd.Context())
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if out != "" && out != "-" {
				f, err := os.Create(out)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			if err := enc.Encode(res); err != nil {
				return err
			}
			a.Log.Info("export written",
				logger.Int("santri", len(res.Students)),
				logger.Int("records", len(res.Records)),
				logger.Int("summaries", len(res.Summaries)),
			)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default: stdout)")
	return cmd
}

// ══════════════════════════════════════════════════════════════════════════════
// STUDENTS
// ══════════════════════════════════════════════════════════════════════════════

func newStudentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "students",
		Short: "List or add santri",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List santri",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd.Context(), app.Options{SkipCache: true})
			if err != nil {
				return err
			}
			defer closeApp(a)

			list, err := a.Queries.ListStudents.Handle(cmd.Context())
			if err != nil {
				return err
			}
			return cli.RenderStudents(cmd.OutOrStdout(), list)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "add <nama> <L|P>",
		Short: "Add a santri",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Writes go through the app so the report cache is invalidated too.
			a, err := openApp(cmd.Context(), app.Options{})
			if err != nil {
				return err
			}
			defer closeApp(a)

			s, err := a.Commands.AddStudent.Handle(cmd.Context(), command.AddStudentCommand{
				Name:   args[0],
				Gender: strings.ToUpper(args[1]),
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "added %s (%s)\n", s.Name, s.Gender)
			return nil
		},
	})
	return cmd
}

// ══════════════════════════════════════════════════════════════════════════════
// HASH-KEY
// ══════════════════════════════════════════════════════════════════════════════

func newHashKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-key <key>",
		Short: "Print the bcrypt hash of a coach key for COACH_KEY_HASH",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := handlers.HashKey(args[0])
			if err != nil {
				if errors.Is(err, handlers.ErrMissingKey) {
					return errors.New("key must not be blank")
				}
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}
