package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"

	toolcli "github.com/sammcj/md-server/internal/cli"
	"github.com/sammcj/md-server/internal/config"
	"github.com/sammcj/md-server/internal/registry"
)

// toolCommand runs read_url and read_file in process, e.g.
//
//	md-server tool run read_url --url=https://example.com --output-format=json
//	md-server tool run read_file --file=report.pdf
func toolCommand(logger *logrus.Logger) *cli.Command {
	outputFlag := &cli.StringFlag{
		Name:    "output",
		Aliases: []string{"o"},
		Value:   string(toolcli.OutputText),
		Usage:   "Result rendering (text or json)",
	}

	// withRunner builds the pipeline, registers the tools and hands a Runner to fn
	withRunner := func(ctx context.Context, cmd *cli.Command, fn func(*toolcli.Runner) error) error {
		settings, err := config.FromCommand(cmd)
		if err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		output := toolcli.OutputFormat(cmd.String("output"))
		if output != toolcli.OutputText && output != toolcli.OutputJSON {
			return fmt.Errorf("invalid output %q, expected text or json", output)
		}

		svc, err := buildServices(settings, logger)
		if err != nil {
			return err
		}
		defer svc.Close()

		registerTools(svc, logger)
		return fn(toolcli.NewRunner(logger, registry.GetCache(), output, os.Stdout))
	}

	return &cli.Command{
		Name:  "tool",
		Usage: "Run the MCP tools directly from the command line",
		Flags: []cli.Flag{outputFlag},
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List the available tools",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return withRunner(ctx, cmd, func(r *toolcli.Runner) error {
						return r.ListTools()
					})
				},
			},
			{
				Name:      "help",
				Usage:     "Show the parameters of a tool",
				ArgsUsage: "TOOL",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					if cmd.Args().Len() != 1 {
						return errors.New("exactly one tool name is required")
					}
					return withRunner(ctx, cmd, func(r *toolcli.Runner) error {
						return r.HelpTool(cmd.Args().First())
					})
				},
			},
			{
				Name:            "run",
				Usage:           "Run a tool with --key=value arguments or a JSON object",
				ArgsUsage:       "TOOL [--key=value...] ['{\"key\":\"value\"}']",
				SkipFlagParsing: true,
				Action: func(ctx context.Context, cmd *cli.Command) error {
					if cmd.Args().Len() == 0 {
						return errors.New("a tool name is required")
					}
					args := cmd.Args().Slice()
					return withRunner(ctx, cmd, func(r *toolcli.Runner) error {
						err := r.RunTool(ctx, args[0], args[1:])
						if errors.Is(err, toolcli.ErrToolFailed) {
							return cli.Exit("", 1)
						}
						return err
					})
				},
			},
		},
	}
}
