// Package mcp exposes the scheduler as a Model Context Protocol server.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/aretw0/cadence/internal/logging"
	"github.com/aretw0/cadence/pkg/domain"
	"github.com/aretw0/cadence/pkg/procedure"
	"github.com/aretw0/cadence/pkg/telemetry"
)

// Scheduler is the control surface of the running station.
type Scheduler interface {
	CurrentProgress() domain.Progress
	StartByName(name string) error
	SwitchByName(name string) error
	RequestStop()
}

// Catalog lists the registered procedures.
type Catalog interface {
	Names() []string
	Get(name string) (*procedure.State, error)
}

// ProgressResponse is the structured result of get_progress.
type ProgressResponse struct {
	Procedure             string  `json:"procedure_name" jsonschema_description:"Active procedure, empty while idle"`
	Status                string  `json:"status" jsonschema_description:"idle, running, waiting or halted"`
	Position              int     `json:"step_position" jsonschema_description:"Step position reached in the current run"`
	Line                  int     `json:"line" jsonschema_description:"0-based source line of the step"`
	ElapsedSecondsInState float64 `json:"elapsed_seconds_in_state" jsonschema_description:"Seconds since the procedure started"`
	WaitRemainingSeconds  float64 `json:"wait_remaining_seconds" jsonschema_description:"Seconds left on the pending wait"`
	LastError             string  `json:"last_error,omitempty" jsonschema_description:"Failure that ended the previous run"`
	Highlighted           string  `json:"highlighted_source" jsonschema_description:"Procedure source with the current line marked"`
}

// Server wraps the scheduler and exposes it as an MCP Server.
type Server struct {
	sched     Scheduler
	catalog   Catalog
	telemetry telemetry.Source
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

type Option func(*Server)

// WithTelemetry enables the latest_telemetry tool.
func WithTelemetry(src telemetry.Source) Option {
	return func(s *Server) {
		s.telemetry = src
	}
}

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a new MCP Server instance.
func NewServer(sched Scheduler, catalog Catalog, version string, opts ...Option) *Server {
	s := &Server{
		sched:     sched,
		catalog:   catalog,
		logger:    logging.NewNop(),
		mcpServer: server.NewMCPServer("cadence-mcp", version),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves MCP over SSE on port until ctx is cancelled.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", sseServer.SSEHandler())
	mux.Handle("/message", sseServer.MessageHandler())

	httpServer := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("list_procedures",
		mcp.WithDescription("List the registered procedures with their declared successors."),
	), s.handleListProcedures)

	s.mcpServer.AddTool(mcp.NewTool("show_procedure",
		mcp.WithDescription("Show the source of a procedure."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Procedure name")),
	), s.handleShowProcedure)

	s.mcpServer.AddTool(mcp.NewTool("get_progress",
		mcp.WithDescription("Get the current scheduler progress: active procedure, step and highlighted source."),
		mcp.WithOutputSchema[ProgressResponse](),
	), mcp.NewStructuredToolHandler(s.handleGetProgress))

	s.mcpServer.AddTool(mcp.NewTool("start_procedure",
		mcp.WithDescription("Start a procedure. Only takes effect while the scheduler is idle or at the next step."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Procedure name")),
	), s.handleStart)

	s.mcpServer.AddTool(mcp.NewTool("switch_procedure",
		mcp.WithDescription("Switch the running procedure at its next step. Pending waits are cut short."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Procedure name")),
	), s.handleSwitch)

	s.mcpServer.AddTool(mcp.NewTool("stop",
		mcp.WithDescription("Abandon the running procedure at its next step and go idle."),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		s.sched.RequestStop()
		s.logger.Info("MCP stop requested")
		return mcp.NewToolResultText("stop requested"), nil
	})

	if s.telemetry != nil {
		s.mcpServer.AddTool(mcp.NewTool("latest_telemetry",
			mcp.WithDescription("Get the latest value of every telemetry channel."),
		), s.handleLatestTelemetry)
	}
}

type procedureInfo struct {
	Name      string   `json:"name"`
	Exits     []string `json:"exits"`
	StepCount int      `json:"step_count"`
}

func (s *Server) handleListProcedures(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var out []procedureInfo
	for _, name := range s.catalog.Names() {
		st, err := s.catalog.Get(name)
		if err != nil {
			continue
		}
		out = append(out, procedureInfo{Name: st.Name(), Exits: st.Exits(), StepCount: st.StepCount()})
	}
	jsonBytes, _ := json.Marshal(out)
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (s *Server) handleShowProcedure(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := request.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	st, err := s.catalog.Get(name)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if p := s.sched.CurrentProgress(); p.Procedure == name {
		return mcp.NewToolResultText(p.Highlighted), nil
	}
	return mcp.NewToolResultText(st.Source()), nil
}

func (s *Server) handleGetProgress(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (ProgressResponse, error) {
	p := s.sched.CurrentProgress()
	return ProgressResponse{
		Procedure:             p.Procedure,
		Status:                string(p.Status),
		Position:              p.Position,
		Line:                  p.Line,
		ElapsedSecondsInState: p.ElapsedSecondsInState(),
		WaitRemainingSeconds:  p.WaitRemaining.Seconds(),
		LastError:             p.LastError,
		Highlighted:           p.Highlighted,
	}, nil
}

func (s *Server) handleStart(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.request(request, "start", s.sched.StartByName)
}

func (s *Server) handleSwitch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.request(request, "switch", s.sched.SwitchByName)
}

func (s *Server) request(request mcp.CallToolRequest, verb string, fn func(string) error) (*mcp.CallToolResult, error) {
	name, err := request.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := fn(name); err != nil {
		if errors.Is(err, domain.ErrUnknownProcedure) {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return nil, fmt.Errorf("%s failed: %w", verb, err)
	}
	s.logger.Info("MCP request", "verb", verb, "procedure", name)
	return mcp.NewToolResultText(fmt.Sprintf("%s requested: %s", verb, name)), nil
}

func (s *Server) handleLatestTelemetry(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jsonBytes, err := json.Marshal(s.telemetry.Latest())
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode failed: %v", err)), nil
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource("cadence://procedures", "Registered Procedures",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		result, err := s.handleListProcedures(ctx, mcp.CallToolRequest{})
		if err != nil {
			return nil, err
		}
		text := result.Content[0].(mcp.TextContent).Text
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      "cadence://procedures",
				MIMEType: "application/json",
				Text:     text,
			},
		}, nil
	})
}
