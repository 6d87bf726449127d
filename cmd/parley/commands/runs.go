// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/parley-ops/parley/cmd/parley/cli"
	"github.com/parley-ops/parley/lib/ledger"
)

// runsParams holds the parameters for the runs command.
type runsParams struct {
	cli.JSONOutput
	Status string `flag:"status" desc:"only show runs with this status (completed, failed, cancelled, running)"`
	Limit  int    `flag:"limit,n" desc:"show at most this many runs (0 = all)"`
}

// RunsCommand returns the "runs" command: list the tenant's persisted
// runs, newest first.
func RunsCommand() *cli.Command {
	var params runsParams

	return &cli.Command{
		Name:    "runs",
		Summary: "List the tenant's runs",
		Description: `List the tenant's persisted runs, newest first.

Each row shows the run ID, its conversation, the workflow that drove
it (blank for plain chat turns), its status, and when it started. Use
the run ID with "parley replay", "parley capture", or "parley verify".`,
		Usage: "parley runs [flags]",
		Examples: []cli.Example{
			{
				Description: "List every run",
				Command:     "parley runs",
			},
			{
				Description: "Failed runs only, as JSON",
				Command:     "parley runs --status failed --json",
			},
		},
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, _ *slog.Logger) error {
			if len(args) > 0 {
				return cli.Validation("unexpected argument: %s", args[0])
			}

			clients, err := cli.Connect()
			if err != nil {
				return err
			}

			runs, err := clients.Ledger.Runs(ctx)
			if err != nil {
				return cli.Transient("list runs: %w", err)
			}

			if params.Status != "" {
				filtered := runs[:0]
				for _, run := range runs {
					if run.Status == params.Status {
						filtered = append(filtered, run)
					}
				}
				runs = filtered
			}
			if params.Limit > 0 && len(runs) > params.Limit {
				runs = runs[:params.Limit]
			}

			if done, err := params.EmitJSON(runs); done {
				return err
			}

			if len(runs) == 0 {
				fmt.Println("no runs")
				return nil
			}
			printRunTable(runs)
			return nil
		},
	}
}

// printRunTable renders run summaries as an aligned table.
func printRunTable(runs []ledger.RunSummary) {
	writer := tabwriter.NewWriter(os.Stdout, 2, 0, 3, ' ', 0)
	fmt.Fprintln(writer, "RUN\tCONVERSATION\tWORKFLOW\tSTATUS\tSTARTED\tTITLE")
	for _, run := range runs {
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%s\t%s\n",
			run.RunID,
			run.ConversationID,
			run.WorkflowKey,
			run.Status,
			formatStartedAt(run.StartedAt),
			run.Title)
	}
	writer.Flush()
}

// formatStartedAt renders an RFC 3339 start time compactly, passing
// unparseable values through verbatim.
func formatStartedAt(startedAt string) string {
	if startedAt == "" {
		return ""
	}
	parsed, err := time.Parse(time.RFC3339Nano, startedAt)
	if err != nil {
		return startedAt
	}
	return parsed.Local().Format("2006-01-02 15:04")
}
