package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/fentz26/easyclaim/internal/models"
	"github.com/fentz26/easyclaim/internal/store"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "Show journaled runs, or the iterations of one run",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runHistory,
}

var historyLimit int

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "number", "n", 20, "Number of runs to list (0 for all)")
}

func runHistory(cmd *cobra.Command, args []string) error {
	if cfg.Journal == "" {
		return errors.WithHint(errors.New("run journal is disabled"), "pass --journal PATH")
	}
	s, err := store.New(cfg.Journal)
	if err != nil {
		return err
	}
	defer s.Close()

	out := cmd.OutOrStdout()
	if len(args) == 1 {
		return showRun(out, s, args[0])
	}

	runs, err := s.ListRuns(historyLimit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs journaled yet")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTARTED\tUSER\tTYPE\tSTATUS\tCLAIMED\tITERATIONS\tERROR")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d/%d\t%d\t%s\n",
			shortID(r.ID),
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			r.Username,
			r.TaskType,
			r.Status,
			r.Claimed, r.ClaimLimit,
			r.Attempts,
			r.ErrorKind,
		)
	}
	return w.Flush()
}

func showRun(out io.Writer, s *store.Store, id string) error {
	run, err := s.GetRun(id)
	if err != nil {
		return err
	}
	events, err := s.ListClaimEvents(run.ID)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Run:        %s\n", run.ID)
	fmt.Fprintf(out, "User:       %s\n", run.Username)
	fmt.Fprintf(out, "Task type:  %s\n", run.TaskType)
	fmt.Fprintf(out, "Status:     %s\n", run.Status)
	fmt.Fprintf(out, "Claimed:    %d/%d\n", run.Claimed, run.ClaimLimit)
	fmt.Fprintf(out, "Started:    %s\n", run.StartedAt.Local().Format(time.RFC3339))
	if run.EndedAt != nil {
		fmt.Fprintf(out, "Ended:      %s (%s)\n", run.EndedAt.Local().Format(time.RFC3339),
			run.EndedAt.Sub(run.StartedAt).Round(time.Millisecond))
	}
	if run.Error != "" {
		fmt.Fprintf(out, "Error:      [%s] %s\n", run.ErrorKind, run.Error)
	}
	if len(events) == 0 {
		return nil
	}

	fmt.Fprintln(out)
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tTIME\tLISTED\tCLAIMED\tTOTAL\tIDS")
	for _, ev := range events {
		detail := strings.Join(models.FormatIDs(ev.TaskIDs), ",")
		if ev.Rejection != "" {
			detail = "rejected: " + ev.Rejection
		}
		fmt.Fprintf(w, "%d\t%s\t%d\t%d/%d\t%d\t%s\n",
			ev.Iteration,
			ev.CreatedAt.Local().Format("15:04:05"),
			ev.Listed,
			ev.Claimed, ev.Requested,
			ev.Cumulative,
			truncate(detail, 60),
		)
	}
	return w.Flush()
}

// shortID returns the first segment of a uuid, enough to pick a run.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
