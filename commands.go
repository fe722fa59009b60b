package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"

	"github.com/sammcj/md-server/internal/config"
	"github.com/sammcj/md-server/internal/detection"
	"github.com/sammcj/md-server/internal/security"
)

func checkURLCommand(logger *logrus.Logger) *cli.Command {
	return &cli.Command{
		Name:      "check-url",
		Usage:     "Check whether URLs would be allowed by the outbound request policy",
		ArgsUsage: "URL [URL...]",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() == 0 {
				return errors.New("at least one URL is required")
			}

			settings, err := config.FromCommand(cmd)
			if err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			guard := security.NewGuard(logger, security.WithDNSTimeout(settings.DNSTimeout))
			if blocked := checkURLs(ctx, os.Stdout, guard, settings.GuardOptions(), cmd.Args().Slice()); blocked > 0 {
				return cli.Exit("", 1)
			}
			return nil
		},
	}
}

// checkURLs prints a decision per URL and returns how many were refused
func checkURLs(ctx context.Context, w io.Writer, guard *security.Guard, opts security.Options, urls []string) int {
	allowed := color.New(color.FgGreen, color.Bold).SprintFunc()
	refused := color.New(color.FgRed, color.Bold).SprintFunc()
	detail := color.New(color.FgYellow).SprintFunc()

	var blocked int
	for _, raw := range urls {
		if _, err := guard.ValidateURL(ctx, raw, opts); err != nil {
			blocked++

			var blockedErr *security.BlockedError
			reason := err.Error()
			if errors.As(err, &blockedErr) {
				reason = fmt.Sprintf("%s (%s)", blockedErr.Message, blockedErr.Reason)
			}
			_, _ = fmt.Fprintf(w, "%s %s: %s\n", refused("BLOCKED"), raw, detail(reason))
			continue
		}
		_, _ = fmt.Fprintf(w, "%s %s\n", allowed("ALLOWED"), raw)
	}
	return blocked
}

func formatsCommand() *cli.Command {
	return &cli.Command{
		Name:  "formats",
		Usage: "List supported input formats and their size limits",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			settings, err := config.FromCommand(cmd)
			if err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			policy, err := settings.Policy()
			if err != nil {
				return err
			}
			return printFormats(os.Stdout, detection.Formats(policy.Limit))
		},
	}
}

func printFormats(w io.Writer, formats []detection.Format) error {
	heading := color.New(color.Bold).SprintFunc()

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", heading("FORMAT"), heading("EXTENSIONS"), heading("MAX SIZE"), heading("MIME TYPES"))
	for _, f := range formats {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%gMB\t%s\n",
			f.Name, strings.Join(f.Extensions, ", "), f.MaxSizeMB, strings.Join(f.MIMETypes, ", "))
	}
	return tw.Flush()
}
