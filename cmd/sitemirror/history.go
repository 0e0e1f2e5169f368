package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/nao1215/sitemirror/internal/config"
	"github.com/nao1215/sitemirror/internal/database"
	"github.com/spf13/cobra"
)

// historyTimeLayout is used for timestamps in the run list.
const historyTimeLayout = "2006-01-02 15:04:05"

// NewHistoryCmd creates the history command.
// This command reads the run journal written by the mirror command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [host]",
		Short: "Show past mirror runs",
		Long: `History lists the mirror runs recorded in the history database.

Every run of 'sitemirror mirror' is recorded unless --no-history is given.
The history is an audit trail: it is never used to resume or skip work.

Examples:
  # List every recorded run, newest first
  sitemirror history

  # List the runs of one host
  sitemirror history example.com

  # Show the report of run 5, with any local path collisions
  sitemirror history --id 5

  # Show the report of run 5 as JSON
  sitemirror history --id 5 --json`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().Int64P("id", "i", 0,
		"Show the report of the run with this ID (use the list to see IDs)")
	cmd.Flags().BoolP("json", "j", false,
		"Output the report in JSON format")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output the report in Markdown format")
	cmd.Flags().String("db-dir", config.XDGDataDir(),
		"Directory holding the history database")

	return cmd
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()

	runID, err := flags.GetInt64("id")
	if err != nil {
		return err
	}
	jsonOutput, err := flags.GetBool("json")
	if err != nil {
		return err
	}
	markdownOutput, err := flags.GetBool("markdown")
	if err != nil {
		return err
	}
	if jsonOutput && markdownOutput {
		return config.ErrConflictingReportFormats
	}
	dbDir, err := flags.GetString("db-dir")
	if err != nil {
		return err
	}

	// Validate arguments before opening the database.
	var host string
	if len(args) > 0 {
		host = args[0]
	}
	if runID < 0 {
		return fmt.Errorf("invalid run ID: %d", runID)
	}

	db, err := database.Open(dbDir, database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out := cmd.OutOrStdout()

	if runID > 0 {
		return showRun(ctx, db, runID, jsonOutput, markdownOutput, out)
	}
	return listRuns(ctx, db, host, out)
}

// listRuns prints the recorded runs, newest first.
func listRuns(ctx context.Context, db *database.MirrorDB, host string, out io.Writer) error {
	runs, err := db.ListRuns(ctx, host)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	if len(runs) == 0 {
		if host != "" {
			fmt.Fprintf(out, "No mirror history found for %s\n", host)
		} else {
			fmt.Fprintln(out, "No mirror history found.")
		}
		fmt.Fprintln(out, "\nUse 'sitemirror mirror <url>' to mirror a site.")
		return nil
	}

	fmt.Fprintf(out, "Mirror history (%d runs):\n\n", len(runs))
	fmt.Fprintf(out, "  %-6s  %-19s  %-8s  %-8s  %-8s  %-11s  %s\n",
		"ID", "Started", "Visited", "Saved", "Failed", "Status", "Seed")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 90))

	for _, run := range runs {
		fmt.Fprintf(out, "  %-6d  %-19s  %-8d  %-8d  %-8d  %-11s  %s\n",
			run.ID,
			run.StartedAt.Local().Format(historyTimeLayout),
			run.Visited,
			run.Saved,
			run.Failed,
			runStatus(run),
			run.Seed,
		)
	}
	fmt.Fprintln(out, "\nUse 'sitemirror history --id <ID>' to see the report of a run.")

	return nil
}

// runStatus returns a one-word status for the run list.
func runStatus(run database.RunSummary) string {
	switch {
	case run.FinishedAt.IsZero():
		return "unfinished"
	case run.Interrupted:
		return "interrupted"
	default:
		return "complete"
	}
}

// showRun prints the report of one run and the local paths shared by
// several URLs in it.
func showRun(ctx context.Context, db *database.MirrorDB, id int64, jsonOutput, markdownOutput bool, out io.Writer) error {
	mirrorReport, err := db.GetRunReport(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load run %d: %w", id, err)
	}
	if mirrorReport == nil {
		return showUnfinishedRun(ctx, db, id, out)
	}

	if _, err := newReportWriter(jsonOutput, markdownOutput, out).Write(mirrorReport); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	if jsonOutput {
		return nil
	}

	collisions, err := db.FindPathCollisions(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to check path collisions: %w", err)
	}
	if len(collisions) == 0 {
		return nil
	}

	fmt.Fprintf(out, "\nLocal path collisions (%d): later downloads replaced earlier ones.\n\n", len(collisions))
	for _, c := range collisions {
		fmt.Fprintf(out, "  %s\n", c.LocalPath)
		for _, u := range c.URLs {
			fmt.Fprintf(out, "    <- %s\n", u)
		}
	}
	return nil
}

// showUnfinishedRun prints the resources journaled for a run that has no
// final report, typically because the process was killed.
func showUnfinishedRun(ctx context.Context, db *database.MirrorDB, id int64, out io.Writer) error {
	resources, err := db.GetRunResources(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load resources of run %d: %w", id, err)
	}
	if len(resources) == 0 {
		return fmt.Errorf("run %d not found or not finished", id)
	}

	fmt.Fprintf(out, "Run %d did not finish. %d resources were recorded:\n\n", id, len(resources))
	for _, res := range resources {
		fmt.Fprintf(out, "  [%s] [%d] %s\n", res.Status, res.Depth, res.URL)
	}
	return nil
}
