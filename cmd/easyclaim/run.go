package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fentz26/easyclaim/internal/audit"
	"github.com/fentz26/easyclaim/internal/claimer"
	"github.com/fentz26/easyclaim/internal/config"
	"github.com/fentz26/easyclaim/internal/logger"
	"github.com/fentz26/easyclaim/internal/report"
	"github.com/fentz26/easyclaim/internal/store"
	"github.com/fentz26/easyclaim/internal/tui"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Claim tasks until the limit is reached or none are left",
	Long: `Validate the session cookie, then repeatedly list claimable tasks and
claim up to the remaining limit, waiting --interval seconds between polls.
The run stops when the limit is reached, a poll yields nothing, or a fatal
error occurs. Ctrl+C stops the run and reports what was claimed.`,
	RunE: runRun,
}

var watch bool

func init() {
	d := config.DefaultConfig()
	runCmd.Flags().Int("limit", d.Limit, "Maximum number of tasks to claim")
	runCmd.Flags().Float64("interval", d.Interval, "Seconds between polls (fractions allowed, 0 for none)")
	runCmd.Flags().BoolVarP(&watch, "watch", "w", false, "Show a live view instead of log lines")

	mustBind(v, runCmd.Flags(), map[string]string{
		"limit":    "limit",
		"interval": "interval",
	})
}

func runRun(cmd *cobra.Command, args []string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := newClient(cfg)
	logger.Named("claimer").Debugw("Using task API", logger.FieldServer, cfg.Server)
	observers := []claimer.Observer{}

	if cfg.Journal != "" {
		s, err := store.New(cfg.Journal)
		if err != nil {
			logger.Named("journal").Warnw("Run journal unavailable, continuing without it",
				logger.FieldPath, cfg.Journal,
				logger.FieldError, err.Error())
		} else {
			defer s.Close()
			observers = append(observers, audit.NewRecorder(s, logger.Named("journal")))
		}
	}

	start := func(ctx context.Context, obs claimer.Observer) (*claimer.RunResult, error) {
		c := claimer.New(cfg, client, claimer.Observers(append(observers, obs)...))
		return c.Run(ctx)
	}

	var (
		res *claimer.RunResult
		err error
	)
	if watch {
		res, err = tui.Watch(ctx, start)
	} else {
		res, err = start(ctx, report.NewLogObserver(logger.Named("claimer")))
	}

	if res != nil {
		printSummary(cmd.OutOrStdout(), res)
	}
	return err
}

func printSummary(w io.Writer, res *claimer.RunResult) {
	fmt.Fprintf(w, "Run %s %s: claimed %d/%d tasks in %d iterations (%s)\n",
		shortID(res.RunID), res.Status, res.Claimed, res.Limit, res.Iterations,
		res.Duration().Round(time.Millisecond))
}
