package cli

import (
	"context"
	"errors"

	"github.com/aretw0/cadence"
	"github.com/aretw0/cadence/pkg/adapters/mcp"
)

// MCPOptions configures the MCP server mode.
type MCPOptions struct {
	RunOptions
	// Transport is "stdio" (default) or "sse".
	Transport string
	Port      int
}

// ServeMCP drives the station in the background and exposes it as MCP tools.
func ServeMCP(opts MCPOptions) error {
	cfg, err := LoadConfig(opts.RunOptions)
	if err != nil {
		return err
	}
	logger, closeLog, err := createLogger(cfg, opts.Debug)
	if err != nil {
		return err
	}
	defer closeLog()

	s, err := createEngine(cfg, logger, opts.Debug)
	if err != nil {
		return err
	}
	defer s.Close()

	sigCtx := NewSignalContext(context.Background())
	defer sigCtx.Cancel()

	runErr := make(chan error, 1)
	go func() {
		runErr <- s.engine.Run(sigCtx, cfg.InitialProcedure)
	}()

	srv := mcp.NewServer(s.engine.World(), s.engine.Registry(), cadence.Version,
		mcp.WithTelemetry(s.operatorTelemetry()),
		mcp.WithLogger(logger),
	)

	var serveErr error
	switch opts.Transport {
	case "sse":
		serveErr = srv.ServeSSE(sigCtx, opts.Port)
	default:
		serveErr = srv.ServeStdio()
	}

	sigCtx.Cancel()
	return errors.Join(handleExecutionError(serveErr), handleExecutionError(<-runErr))
}
