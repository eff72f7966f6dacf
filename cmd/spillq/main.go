package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/alecthomas/kong"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"github.com/tailored-agentic-units/spillq/engine"
	"github.com/tailored-agentic-units/spillq/observability"
	"github.com/tailored-agentic-units/spillq/storage"
)

type Globals struct {
	Config  string `name:"config" type:"existingfile" help:"Path to engine config JSON file"`
	Memory  uint64 `name:"memory" help:"Memory budget in MiB (overrides config)"`
	Tmp     string `name:"tmp" help:"Directory for spill files (overrides config)"`
	Debug   bool   `name:"debug" help:"Enable debug logging to stderr"`
	Metrics bool   `name:"metrics" help:"Write engine metrics to stderr on exit"`

	ctx    context.Context
	logger *slog.Logger
}

type CLI struct {
	Globals

	Serve   ServeCmd   `cmd:"" help:"Answer framed requests on stdin/stdout."`
	Sort    SortCmd    `cmd:"" help:"Sort numbers read one per line."`
	Version VersionCmd `cmd:"" help:"Print build information."`
}

func main() {
	cli := new(CLI)
	kctx := kong.Parse(cli,
		kong.Name("spillq"),
		kong.Description("Priority and FIFO queues that spill to disk."),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{Compact: true}),
	)

	level := slog.LevelInfo
	if cli.Debug {
		level = slog.LevelDebug
	}
	cli.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	cli.ctx = ctx

	if err := kctx.Run(&cli.Globals); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// engineConfig loads --config over the defaults and applies the flag
// overrides.
func (g *Globals) engineConfig() (*engine.Config, error) {
	cfg := engine.DefaultConfig()
	if g.Config != "" {
		loaded, err := engine.LoadConfig(g.Config)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		cfg = *loaded
	}

	if g.Memory > 0 {
		cfg.Storage.MemoryBudget = g.Memory * storage.MiB
	}
	if g.Tmp != "" {
		cfg.Storage.TempDir = g.Tmp
	}
	return &cfg, nil
}

// observer logs events and, for serve, also records them on request spans.
func (g *Globals) observer() observability.Observer {
	return observability.NewMultiObserver(
		observability.NewSlogObserver(g.logger),
		observability.SpanObserver{},
	)
}

// dumpMetrics writes the engine's metrics in Prometheus text format to
// stderr when --metrics is set.
func (g *Globals) dumpMetrics(e *engine.Engine) error {
	if !g.Metrics || e == nil {
		return nil
	}

	reg := prometheus.NewRegistry()
	if err := reg.Register(engine.NewCollector(e)); err != nil {
		return err
	}
	families, err := reg.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(os.Stderr, mf); err != nil {
			return err
		}
	}
	return nil
}
