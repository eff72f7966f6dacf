package main

import (
	"os"

	"github.com/tailored-agentic-units/spillq/boundary"
	"github.com/tailored-agentic-units/spillq/engine"
)

// ServeCmd runs the frame protocol. The memory budget comes from the
// client's init_storage request; --memory is ignored here.
type ServeCmd struct{}

func (ServeCmd) Run(g *Globals) error {
	cfg, err := g.engineConfig()
	if err != nil {
		return err
	}

	obs := g.observer()
	adapter := boundary.NewAdapter(cfg, engine.WithObserver(obs))
	server := boundary.NewServer(adapter, boundary.WithObserver(obs))

	serveErr := server.Serve(g.ctx, os.Stdin, os.Stdout)

	// A client that never sent shutdown_storage still gets its spill files
	// removed.
	if e := adapter.Engine(); e != nil {
		if err := g.dumpMetrics(e); err != nil {
			g.logger.Warn("metrics dump failed", "error", err)
		}
		if err := adapter.ShutdownStorage(); err != nil {
			g.logger.Warn("storage shutdown failed", "error", err)
		}
	}
	return serveErr
}
