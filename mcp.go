package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"

	"github.com/sammcj/md-server/internal/config"
	"github.com/sammcj/md-server/internal/registry"
	"github.com/sammcj/md-server/internal/tools/reader"
)

func mcpCommand(logger *logrus.Logger) *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Serve the read_url and read_file tools over the Model Context Protocol",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "transport",
				Aliases: []string{"t"},
				Value:   "stdio",
				Usage:   "Transport type (stdio, sse, or http)",
				Sources: cli.EnvVars(config.EnvPrefix + "MCP_TRANSPORT"),
			},
			&cli.StringFlag{
				Name:  "base-url",
				Value: "http://localhost",
				Usage: "Base URL for the SSE transport",
			},
			&cli.StringFlag{
				Name:  "endpoint-path",
				Value: "/mcp",
				Usage: "Endpoint path for the Streamable HTTP transport",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return runMCPServer(ctx, cmd, logger)
		},
	}
}

func runMCPServer(ctx context.Context, cmd *cli.Command, logger *logrus.Logger) error {
	transport := cmd.String("transport")
	isStdioMode.Store(transport == "stdio")

	// Always log to a file so stdio framing is never corrupted
	configureFileLogging(logger)

	settings, err := config.FromCommand(cmd)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	svc, err := buildServices(settings, logger)
	if err != nil {
		return err
	}
	defer svc.Close()

	registerTools(svc, logger)

	mcpSrv := mcpserver.NewMCPServer("md-server", Version)

	for name, tool := range registry.GetEnabledTools() {
		if transport != "stdio" {
			logger.Infof("Registering tool: %s", name)
		}

		mcpSrv.AddTool(tool.Definition(), func(toolCtx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			args, ok := request.Params.Arguments.(map[string]any)
			if !ok && request.Params.Arguments != nil {
				return nil, fmt.Errorf("invalid arguments type: expected map[string]any, got %T", request.Params.Arguments)
			}

			result, err := registry.Execute(toolCtx, request.Params.Name, args)
			if err != nil {
				if transport != "stdio" {
					logger.WithError(err).Errorf("Tool execution failed: %s", name)
				}
				return nil, fmt.Errorf("tool execution failed: %w", err)
			}
			return result, nil
		})
	}

	addr := fmt.Sprintf(":%d", settings.Port)
	logger.WithField("transport", transport).Debug("Starting MCP server")

	switch transport {
	case "stdio":
		return mcpserver.ServeStdio(mcpSrv)
	case "sse":
		sseServer := mcpserver.NewSSEServer(mcpSrv, mcpserver.WithBaseURL(fmt.Sprintf("%s:%d", cmd.String("base-url"), settings.Port)))
		return sseServer.Start(addr)
	case "http":
		return serveStreamableHTTP(ctx, mcpSrv, addr, cmd.String("endpoint-path"), logger)
	default:
		return fmt.Errorf("unsupported transport: %s", transport)
	}
}

// serveStreamableHTTP runs the Streamable HTTP transport behind our own http.Server so it
// shuts down with the process context
func serveStreamableHTTP(ctx context.Context, mcpSrv *mcpserver.MCPServer, addr, endpointPath string, logger *logrus.Logger) error {
	httpServer := mcpserver.NewStreamableHTTPServer(mcpSrv,
		mcpserver.WithEndpointPath(endpointPath),
		mcpserver.WithHeartbeatInterval(30*time.Second),
		mcpserver.WithLogger(&logrusAdapter{logger: logger}),
	)

	mux := http.NewServeMux()
	mux.Handle(endpointPath, httpServer)

	server := &http.Server{
		Addr:           addr,
		Handler:        mux,
		ReadTimeout:    30 * time.Second,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			select {
			case serverErr <- err:
			case <-ctx.Done():
			}
		}
	}()

	logger.Infof("Streamable HTTP MCP server listening on %s%s", addr, endpointPath)

	select {
	case err := <-serverErr:
		return fmt.Errorf("HTTP server failed: %w", err)
	case <-ctx.Done():
		logger.Info("Shutdown signal received, stopping HTTP server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("HTTP server shutdown failed")
		return err
	}
	return nil
}

// logrusAdapter adapts logrus.Logger to the mcp-go util.Logger interface
type logrusAdapter struct {
	logger *logrus.Logger
}

func (l *logrusAdapter) Debugf(format string, args ...any) {
	l.logger.Debugf(format, args...)
}

func (l *logrusAdapter) Infof(format string, args ...any) {
	l.logger.Infof(format, args...)
}

func (l *logrusAdapter) Warnf(format string, args ...any) {
	l.logger.Warnf(format, args...)
}

func (l *logrusAdapter) Errorf(format string, args ...any) {
	l.logger.Errorf(format, args...)
}

// registerTools resets the registry and registers every tool backed by svc
func registerTools(svc *services, logger *logrus.Logger) {
	registry.Init(logger)
	registry.Register(reader.NewReadURLTool(svc.Orchestrator))
	registry.Register(reader.NewReadFileTool(svc.Orchestrator))
}
