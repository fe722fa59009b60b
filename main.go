package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync/atomic"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"

	"github.com/sammcj/md-server/internal/api"
	"github.com/sammcj/md-server/internal/config"
)

// Version information (set during build)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

// Global resources that need cleanup
// Using atomic operations to prevent race conditions between signal handlers and cleanup
var (
	debugLogFile atomic.Pointer[os.File]
	isStdioMode  atomic.Bool
)

// parseLogLevel parses the LOG_LEVEL environment variable and returns the appropriate logrus level.
// Defaults to WarnLevel if not set or invalid.
func parseLogLevel() logrus.Level {
	logLevelStr := strings.ToLower(strings.TrimSpace(os.Getenv("LOG_LEVEL")))

	switch logLevelStr {
	case "debug":
		return logrus.DebugLevel
	case "info":
		return logrus.InfoLevel
	case "error":
		return logrus.ErrorLevel
	case "fatal":
		return logrus.FatalLevel
	case "panic":
		return logrus.PanicLevel
	default:
		return logrus.WarnLevel
	}
}

func main() {
	// Create context with signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// .env values must be in the environment before flags read their sources
	loadedEnv := config.LoadEnvFiles()

	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetLevel(parseLogLevel())
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	logger.WithField("files", loadedEnv).Debug("Loaded environment files")

	defer performCleanup()

	app := &cli.Command{
		Name:    "md-server",
		Usage:   "Convert documents and web pages to markdown over HTTP or MCP",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate),
		Flags:   config.Flags(),
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "Run the HTTP API (default)",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return runHTTPServer(ctx, cmd, logger)
				},
			},
			mcpCommand(logger),
			toolCommand(logger),
			checkURLCommand(logger),
			formatsCommand(),
			{
				Name:  "version",
				Usage: "Print version information",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					fmt.Printf("md-server version %s\n", Version)
					fmt.Printf("Commit: %s\n", Commit)
					fmt.Printf("Built: %s\n", BuildDate)
					return nil
				},
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return runHTTPServer(ctx, cmd, logger)
		},
	}

	if err := app.Run(ctx, os.Args); err != nil {
		// In stdio mode stdout and stderr belong to the MCP protocol
		if !isStdioMode.Load() {
			logger.Fatalf("Error: %v", err)
		}
		os.Exit(1)
	}
}

func runHTTPServer(ctx context.Context, cmd *cli.Command, logger *logrus.Logger) error {
	settings, err := config.FromCommand(cmd)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	svc, err := buildServices(settings, logger)
	if err != nil {
		return err
	}
	defer svc.Close()

	logger.Infof("Starting md-server version %s (commit: %s, built: %s)", Version, Commit, BuildDate)

	server := api.NewServer(api.Config{
		Converter:   svc.Orchestrator,
		Counters:    svc.Counters,
		MaxBodySize: maxBodySize(svc.Policy.MaxLimit()),
		SizeLimit:   svc.Policy.Limit,
		Version:     Version,
		Logger:      logger,
	})
	return server.ListenAndServe(ctx, settings.Addr(), settings.HTTPWriteTimeout)
}

// maxBodySize allows the largest ceiling after base64 expansion plus room for JSON or
// multipart framing
func maxBodySize(largest int64) int64 {
	return largest/3*4 + 1<<20
}

// configureFileLogging sends logs to ~/.md-server/logs/md-server.log. In stdio mode
// nothing may be written to stdout or stderr, so logs are discarded when the file cannot
// be opened.
func configureFileLogging(logger *logrus.Logger) {
	fallback := func() {
		if isStdioMode.Load() {
			logger.SetOutput(io.Discard)
			logrus.SetOutput(io.Discard)
			return
		}
		logger.SetOutput(os.Stderr)
		logrus.SetOutput(os.Stderr)
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		fallback()
		return
	}

	logDir := filepath.Join(homeDir, ".md-server", "logs")
	if err := os.MkdirAll(logDir, 0700); err != nil {
		fallback()
		return
	}

	file, err := os.OpenFile(filepath.Join(logDir, "md-server.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		fallback()
		return
	}

	debugLogFile.Store(file)
	logger.SetOutput(file)
	logrus.SetOutput(file)

	logLevel := parseLogLevel()
	if isStdioMode.Load() && logLevel < logrus.WarnLevel {
		logLevel = logrus.WarnLevel
	}
	logger.SetLevel(logLevel)
	logrus.SetLevel(logLevel)
	logger.WithField("level", logLevel.String()).Debug("Logging configured")
}

// performCleanup handles cleanup of resources on shutdown
func performCleanup() {
	if file := debugLogFile.Load(); file != nil {
		// Silently close - in stdio mode no output is allowed
		_ = file.Close()
	}
}
