package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/guillermoBallester/cleansweep/internal/adapter/mcp"
	"github.com/guillermoBallester/cleansweep/internal/adapter/mysql"
	"github.com/guillermoBallester/cleansweep/internal/audit"
	"github.com/guillermoBallester/cleansweep/internal/config"
	"github.com/guillermoBallester/cleansweep/internal/core/domain"
	"github.com/guillermoBallester/cleansweep/internal/core/service"
	"github.com/guillermoBallester/cleansweep/internal/telemetry"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "cleansweep",
		Short:         "Delete or archive MySQL rows in index-ordered chunks",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.String("dsn", "", "MySQL DSN, e.g. user:pass@tcp(host:3306)/db (env MYSQL_DSN)")
	pf.String("log-level", "", "debug, info, warn or error (env LOG_LEVEL)")
	pf.String("log-format", "", "json or text (env LOG_FORMAT)")
	pf.String("audit-log", "", "append every mutation to this NDJSON file (env AUDIT_LOG)")
	pf.Bool("otel", false, "export traces and metrics over OTLP gRPC (env OTEL_ENABLED)")

	root.AddCommand(newRunCmd(), newPlanCmd(), newMCPCmd(), newVersionCmd())
	return root
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [job.yaml|job.toml]",
		Short: "Delete the selected rows, or copy them when a destination table is set",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadJob(cmd, args)
			if err != nil {
				return err
			}
			return runJob(cmd.Context(), cfg, cmd.OutOrStdout())
		},
	}
	addJobFlags(cmd)
	cmd.Flags().Bool("dry-run", false, "print the generated statements instead of running them")
	return cmd
}

func newPlanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan [job.yaml|job.toml]",
		Short: "Print the statements a run would issue without changing any data",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadJob(cmd, args)
			if err != nil {
				return err
			}
			cfg.DryRun = true
			return runJob(cmd.Context(), cfg, cmd.OutOrStdout())
		},
	}
	addJobFlags(cmd)
	return cmd
}

func newMCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve read-only planning tools over MCP stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			o, err := overridesFromFlags(cmd)
			if err != nil {
				return err
			}
			cfg, err := config.LoadServer(o)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			return serveMCP(cmd.Context(), cfg)
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}

func addJobFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("config", "", "path to a YAML or TOML job file")
	f.String("table", "", "table to purge")
	f.String("dest-table", "", "copy rows into this table instead of deleting them")
	f.String("index", "", "index to traverse (default: primary key, then first unique index)")
	f.Bool("reverse", false, "traverse the index in descending order")
	f.Bool("first-only", false, "page on the first index column only, inclusively")
	f.Bool("non-traversing", false, "re-read the head of the table instead of paging")
	f.String("filter", "", "extra SQL condition applied to every chunk query")
	f.Int("chunk-size", 0, "rows per chunk (default 500)")
	f.Int64("stop-after", 0, "stop after this many rows")
	f.Duration("sleep", 0, "pause between chunks")
	f.Int64("max-history", 0, "pause while the InnoDB history list is longer than this")
	f.Int64("max-repl-lag", 0, "pause while replication lag exceeds this many seconds")
	f.Int("max-reconnects", 0, "reconnect attempts after a lost connection (default 10)")
}

// loadJob resolves the job file from the positional argument or --config and
// loads the run configuration.
func loadJob(cmd *cobra.Command, args []string) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if len(args) > 0 {
		path = args[0]
	}
	o, err := overridesFromFlags(cmd)
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(path, o)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

// overridesFromFlags copies only the flags the user actually set, so that
// unset flags never mask the job file or environment.
func overridesFromFlags(cmd *cobra.Command) (config.Overrides, error) {
	var o config.Overrides
	flags := cmd.Flags()

	strs := map[string]**string{
		"dsn":        &o.DSN,
		"log-level":  &o.LogLevel,
		"log-format": &o.LogFormat,
		"audit-log":  &o.AuditLog,
		"table":      &o.Table,
		"dest-table": &o.DestTable,
		"index":      &o.Index,
		"filter":     &o.Filter,
	}
	for name, dst := range strs {
		if flags.Lookup(name) == nil || !flags.Changed(name) {
			continue
		}
		v, err := flags.GetString(name)
		if err != nil {
			return o, err
		}
		*dst = &v
	}

	if flags.Lookup("chunk-size") != nil && flags.Changed("chunk-size") {
		v, _ := flags.GetInt("chunk-size")
		o.ChunkSize = &v
	}
	if flags.Lookup("max-reconnects") != nil && flags.Changed("max-reconnects") {
		v, _ := flags.GetInt("max-reconnects")
		o.MaxReconnects = &v
	}
	int64s := map[string]**int64{
		"stop-after":   &o.StopAfter,
		"max-history":  &o.MaxHistory,
		"max-repl-lag": &o.MaxReplLag,
	}
	for name, dst := range int64s {
		if flags.Lookup(name) == nil || !flags.Changed(name) {
			continue
		}
		v, err := flags.GetInt64(name)
		if err != nil {
			return o, err
		}
		*dst = &v
	}
	if flags.Lookup("sleep") != nil && flags.Changed("sleep") {
		v, _ := flags.GetDuration("sleep")
		o.Sleep = &v
	}

	boolFlag := func(name string) bool {
		if flags.Lookup(name) == nil {
			return false
		}
		v, _ := flags.GetBool(name)
		return v
	}
	o.Reverse = boolFlag("reverse")
	o.FirstOnly = boolFlag("first-only")
	o.NonTraversing = boolFlag("non-traversing")
	o.DryRun = boolFlag("dry-run")
	o.OTelEnabled = boolFlag("otel")

	return o, nil
}

// newLogger writes to w, which is stderr in production: stdout carries
// dry-run output and the MCP stdio transport.
func newLogger(w io.Writer, cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}
	if cfg.LogFormat == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func jobOptions(cfg *config.Config) service.Options {
	// max_reconnects: 0 in a job file turns reconnects off; the runner
	// reserves zero for its default.
	maxReconnects := cfg.MaxReconnects
	if maxReconnects == 0 {
		maxReconnects = -1
	}
	return service.Options{
		Table:            cfg.Table,
		DestTable:        cfg.DestTable,
		Index:            cfg.Index,
		Reverse:          cfg.Reverse,
		FirstOnly:        cfg.FirstOnly,
		NonTraversing:    cfg.NonTraversing,
		CopyColumns:      cfg.CopyColumns,
		DestColumns:      cfg.DestColumns,
		Filter:           cfg.Filter,
		ChunkSize:        cfg.ChunkSize,
		StopAfter:        cfg.StopAfter,
		Sleep:            cfg.Sleep,
		DryRun:           cfg.DryRun,
		ReportInterval:   cfg.ReportInterval,
		MaxHistory:       cfg.MaxHistory,
		MaxReplLag:       cfg.MaxReplLag,
		CheckPeriod:      cfg.CheckPeriod,
		PauseDuration:    cfg.PauseDuration,
		MaxReconnects:    maxReconnects,
		ReconnectBackoff: cfg.ReconnectBackoff,
	}
}

// setupTelemetry returns a nil provider when OTel is disabled; the provider
// methods fall back to no-op tracers and instruments.
func setupTelemetry(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*telemetry.Provider, func(), error) {
	if !cfg.OTelEnabled {
		return nil, func() {}, nil
	}
	provider, err := telemetry.Init(ctx, version)
	if err != nil {
		return nil, nil, fmt.Errorf("initializing telemetry: %w", err)
	}
	logger.Info("opentelemetry enabled")
	return provider, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			logger.Error("telemetry shutdown failed", slog.String("error", err.Error()))
		}
	}, nil
}

func runJob(parent context.Context, cfg *config.Config, out io.Writer) error {
	logger := newLogger(os.Stderr, cfg)

	ctx, stop := signal.NotifyContext(parent, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	provider, shutdown, err := setupTelemetry(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer shutdown()

	auditor, err := audit.New(cfg.AuditLog)
	if err != nil {
		return fmt.Errorf("opening audit log: %w", err)
	}
	defer func() { _ = auditor.Close() }()

	conn, err := mysql.Open(ctx, cfg.DSN)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer func() { _ = conn.Close() }()
	logger.Info("database connected", slog.String("db.system", "mysql"))

	runner, err := service.NewPurgeRunner(ctx, conn, conn, jobOptions(cfg), logger,
		provider.Tracer(), provider.Instrumentation(), auditor)
	if err != nil {
		return err
	}

	if cfg.DryRun {
		text, err := runner.PrintQueries(ctx)
		if err != nil {
			return err
		}
		_, err = io.WriteString(out, text)
		return err
	}

	total, err := runner.Execute(ctx)
	if _, ok := domain.IsStopped(err); ok {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		logger.Warn("interrupted at a chunk boundary", slog.Int64("purge.total", total))
		return nil
	}
	return err
}

func serveMCP(parent context.Context, cfg *config.Config) error {
	logger := newLogger(os.Stderr, cfg)

	ctx, stop := signal.NotifyContext(parent, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	provider, shutdown, err := setupTelemetry(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer shutdown()

	conn, err := mysql.Open(ctx, cfg.DSN)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer func() { _ = conn.Close() }()

	plan := service.NewPlanService(conn, logger, provider.Tracer())
	mcpServer := mcp.NewServer(version, plan, logger, provider.Tracer(), provider.Instrumentation())

	logger.Info("serving MCP over stdio", slog.String("version", version))
	if err := mcpserver.NewStdioServer(mcpServer).Listen(ctx, os.Stdin, os.Stdout); err != nil {
		return fmt.Errorf("stdio server: %w", err)
	}

	logger.Info("shutdown complete")
	return nil
}
