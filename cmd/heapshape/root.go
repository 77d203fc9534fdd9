// ABOUTME: Root command wiring configuration, logging, the description loader and metrics
// ABOUTME: Every subcommand reads graph descriptions through the shared app state

package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/prateek/heapshape/graph"
	"github.com/prateek/heapshape/heapdump"
	"github.com/prateek/heapshape/internal/config"
	"github.com/prateek/heapshape/internal/logging"
	"github.com/prateek/heapshape/internal/tracing"
)

// tracerName scopes the spans of the CLI
const tracerName = "heapshape/cmd"

// app is the state shared by all subcommands of one invocation
type app struct {
	out, errOut io.Writer

	configPath  string
	logLevel    string
	format      string
	dumpMetrics bool
	trace       bool

	cfg    *config.Config
	log    *slog.Logger
	loader *heapdump.Loader
	tracer trace.Tracer

	// traces is set up from the configuration unless preset
	traces *tracing.Provider
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	return (&app{out: out, errOut: errOut}).command()
}

func (a *app) command() *cobra.Command {
	root := &cobra.Command{
		Use:   "heapshape",
		Short: "Join, abstract and concretize symbolic memory graphs",
		Long: `heapshape reads symbolic memory graph descriptions (JSON or YAML),
joins pairs of them, folds lists and trees into abstract segments
and materialises concrete regions out of those segments.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if err := a.traces.Shutdown(cmd.Context()); err != nil {
				return fmt.Errorf("flush spans: %w", err)
			}
			if !a.dumpMetrics {
				return nil
			}
			return writeMetrics(a.errOut)
		},
	}
	root.SetOut(a.out)
	root.SetErr(a.errOut)

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "path to a YAML configuration file")
	flags.StringVar(&a.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	flags.StringVar(&a.format, "format", "", "output format for graphs (json or yaml)")
	flags.BoolVar(&a.dumpMetrics, "metrics", false, "print collected metrics to stderr on exit")
	flags.BoolVar(&a.trace, "trace", false, "export command spans to stderr")

	root.AddCommand(
		newVerifyCmd(a),
		newJoinCmd(a),
		newAbstractCmd(a),
		newConcretizeCmd(a),
		newPathsCmd(a),
		newVersionCmd(a),
	)
	return root
}

// setup loads the configuration and builds the logger and loader
func (a *app) setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if a.format != "" {
		cfg.Output.Format = a.format
	}
	if a.trace {
		cfg.Trace.Enabled = true
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	log, err := logging.New(a.errOut, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	loader, err := heapdump.NewLoader(cfg.Loader.CacheSize, log)
	if err != nil {
		return err
	}

	if a.traces == nil {
		traces, err := tracing.New(a.errOut, cfg.Trace.Enabled)
		if err != nil {
			return err
		}
		otel.SetTracerProvider(traces)
		a.traces = traces
	}

	a.cfg, a.log, a.loader = cfg, log, loader
	a.tracer = a.traces.Tracer(tracerName)
	log.Debug("configuration loaded", "path", a.configPath, "list_threshold", cfg.Shape.ListThreshold,
		"tree_min_depth", cfg.Shape.TreeMinDepth)
	return nil
}

// writeGraph encodes m to the command output in the configured format
func (a *app) writeGraph(m *graph.Memory) error {
	format, err := heapdump.ParseFormat(a.cfg.Output.Format)
	if err != nil {
		return err
	}
	return heapdump.Encode(a.out, m, format)
}

// writeMetrics dumps the default registry in the Prometheus text format
func writeMetrics(w io.Writer) error {
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return fmt.Errorf("encode metrics: %w", err)
		}
	}
	return nil
}
