package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/kaptinlin/jsonrepair"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/go-kratos/stepgraph/graph"
	"github.com/go-kratos/stepgraph/history"
	"github.com/go-kratos/stepgraph/internal/demo"
	"github.com/go-kratos/stepgraph/middleware"
)

type runOptions struct {
	state          string
	decider        float64
	timeout        time.Duration
	history        string
	trace          bool
	serial         bool
	maxConcurrency int
	logLevel       string
	logFormat      string
}

func newRootCmd(cfg config) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "stepgraph",
		Short:         "Step graph workflow runner",
		Long:          `Run the bundled step graph workflows and inspect their run history`,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	rootCmd.AddCommand(newListCmd(), newRunCmd(cfg), newHistoryCmd(cfg))
	return rootCmd
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the available workflows",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, w := range demo.Workflows() {
				fmt.Fprintf(tw, "%s\t%s\n", w.Name, w.Description)
			}
			return tw.Flush()
		},
	}
}

func newRunCmd(cfg config) *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run <workflow>",
		Short: "Run a workflow and print its final state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorkflow(cmd, args[0], opts)
		},
	}
	cmd.Flags().StringVarP(&opts.state, "state", "s", "", "Initial state as a JSON object")
	cmd.Flags().Float64VarP(&opts.decider, "decider", "d", 0, "Decider value; drawn at random when omitted")
	cmd.Flags().DurationVarP(&opts.timeout, "timeout", "t", cfg.Timeout, "Run timeout, 0 for none")
	cmd.Flags().StringVar(&opts.history, "history", cfg.History, "SQLite database file to record the run in")
	cmd.Flags().BoolVar(&opts.trace, "trace", false, "Print OpenTelemetry spans to stderr")
	cmd.Flags().BoolVar(&opts.serial, "serial", false, "Run fan-out branches one after another")
	cmd.Flags().IntVar(&opts.maxConcurrency, "max-concurrency", 0, "Maximum branches of one fan-out running at once, 0 for no limit")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", cfg.LogLevel, "Log level: debug, info, warn, error")
	cmd.Flags().StringVar(&opts.logFormat, "log-format", cfg.LogFormat, "Log format: text or json")
	return cmd
}

func runWorkflow(cmd *cobra.Command, name string, opts *runOptions) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	workflow, err := demo.Lookup(name)
	if err != nil {
		return err
	}
	overrides, err := parseState(opts.state)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("decider") {
		overrides[demo.FieldDecider] = opts.decider
	} else if _, ok := overrides[demo.FieldDecider]; !ok && workflow.UsesDecider {
		overrides[demo.FieldDecider] = rand.NormFloat64()
	}

	logger := newLogger(opts.logLevel, opts.logFormat, cmd.ErrOrStderr())
	mws := []graph.Middleware{middleware.Logging(logger)}
	if opts.trace {
		exporter, err := stdouttrace.New(stdouttrace.WithWriter(cmd.ErrOrStderr()), stdouttrace.WithPrettyPrint())
		if err != nil {
			return err
		}
		tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
		defer func() { _ = tp.Shutdown(context.WithoutCancel(ctx)) }()
		mws = append(mws, middleware.Tracing(middleware.WithTracerProvider(tp)))
	}

	g, err := workflow.Build(
		graph.WithLogger(logger),
		graph.WithTimeout(opts.timeout),
		graph.WithParallel(!opts.serial),
		graph.WithMaxConcurrency(opts.maxConcurrency),
		graph.WithMiddleware(mws...),
	)
	if err != nil {
		return err
	}
	executor, err := g.Compile()
	if err != nil {
		return err
	}

	var store history.Store = history.NewMemoryStore()
	if opts.history != "" {
		sqlStore, db, err := history.OpenSQLite(ctx, opts.history)
		if err != nil {
			return fmt.Errorf("open history: %w", err)
		}
		defer db.Close()
		store = sqlStore
	}
	final, record, err := history.Execute(ctx, store, workflow.Name, executor, workflow.Initial(overrides))
	if err != nil {
		return err
	}
	logger.Info("run recorded", "id", record.ID, "duration", record.Duration)

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(final)
}

// parseState decodes the --state flag. Malformed JSON such as single quotes or
// trailing commas is repaired before decoding.
func parseState(raw string) (graph.State, error) {
	state := graph.State{}
	if strings.TrimSpace(raw) == "" {
		return state, nil
	}
	if err := json.Unmarshal([]byte(raw), &state); err == nil {
		return state, nil
	}
	repaired, err := jsonrepair.JSONRepair(raw)
	if err != nil {
		return nil, fmt.Errorf("parse --state: %w", err)
	}
	state = graph.State{}
	if err := json.Unmarshal([]byte(repaired), &state); err != nil {
		return nil, fmt.Errorf("parse --state: %w", err)
	}
	return state, nil
}

func newHistoryCmd(cfg config) *cobra.Command {
	var (
		path     string
		workflow string
		status   string
		limit    int
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if path == "" {
				return fmt.Errorf("no history database; set --history or STEPGRAPH_HISTORY")
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			store, db, err := history.OpenSQLite(ctx, path)
			if err != nil {
				return fmt.Errorf("open history: %w", err)
			}
			defer db.Close()
			records, err := store.List(ctx, history.Filter{
				Workflow: workflow,
				Status:   graph.Status(status),
				Limit:    limit,
			})
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tWORKFLOW\tSTATUS\tSTARTED\tDURATION\tERROR")
			for _, r := range records {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
					r.ID, r.Workflow, r.Status, r.StartedAt.Format(time.RFC3339), r.Duration.Round(time.Millisecond), r.Error)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&path, "history", cfg.History, "SQLite database file holding the run records")
	cmd.Flags().StringVarP(&workflow, "workflow", "w", "", "Only show runs of this workflow")
	cmd.Flags().StringVar(&status, "status", "", "Only show runs with this status (completed, failed)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum number of runs to show, 0 for all")
	return cmd
}
