package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/fentz26/easyclaim/internal/config"
	"github.com/fentz26/easyclaim/internal/logger"
	"github.com/fentz26/easyclaim/internal/remote"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "easyclaim",
	Short: "easyclaim - automated task claimer",
	Long: `easyclaim polls a task platform for claimable review or production
tasks and claims them on your behalf, up to a per-run limit.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
	// No RunE - defaults to showing help when no subcommand is provided
}

var (
	configFile string
	v          = config.NewViper()
	cfg        *config.Config
)

func init() {
	d := config.DefaultConfig()
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "Config file (yaml or toml)")
	flags.String("server", d.Server, "Task API base URL")
	flags.String("cookie", "", "Session cookie copied from the browser (or EASYCLAIM_COOKIE)")
	flags.String("task-type", string(d.TaskType), "Task pool: audittask or producetask")
	flags.Int("subject", d.SubjectID, "Subject id filter")
	flags.Int("step", d.StepID, "Step id filter")
	flags.Int("clue-type", d.ClueTypeID, "Clue type id filter")
	flags.Int("page-size", d.PageSize, "Tasks requested per list query")
	flags.Duration("timeout", d.Timeout, "Timeout for each remote call")
	flags.String("user-agent", d.UserAgent, "User agent presented to the API")
	flags.String("journal", config.DefaultJournalPath(), `Run journal database ("" disables)`)
	flags.Bool("json", false, "Log as JSON")
	flags.BoolP("verbose", "v", false, "Enable debug logging")

	mustBind(v, flags, map[string]string{
		"server":       "server",
		"cookie":       "cookie",
		"task_type":    "task-type",
		"subject_id":   "subject",
		"step_id":      "step",
		"clue_type_id": "clue-type",
		"page_size":    "page-size",
		"timeout":      "timeout",
		"user_agent":   "user-agent",
		"journal":      "journal",
		"json_logs":    "json",
		"verbose":      "verbose",
	})

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(whoamiCmd)
	rootCmd.AddCommand(tasksCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(configCmd)
}

// mustBind binds config keys to flags. A failure is a programming error.
func mustBind(v *viper.Viper, flags *pflag.FlagSet, keys map[string]string) {
	for key, name := range keys {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			panic(fmt.Sprintf("bind flag %s: %v", name, err))
		}
	}
}

func setup(cmd *cobra.Command, args []string) error {
	loaded, err := config.Load(v, configFile)
	if err != nil {
		return err
	}
	cfg = loaded
	if err := logger.Initialize(cfg.JSONLogs, cfg.Verbose); err != nil {
		return err
	}
	if cmd != loginCmd {
		applySavedCookie()
	}
	return nil
}

func newClient(c *config.Config) *remote.Client {
	return remote.NewClient(c.Server, c.Cookie,
		remote.WithTimeout(c.Timeout),
		remote.WithUserAgent(c.UserAgent),
	)
}

// printError writes err and any hints attached to it.
func printError(w io.Writer, err error) {
	fmt.Fprintf(w, "Error: %v\n", err)
	if hints := errors.FlattenHints(err); hints != "" {
		for _, h := range strings.Split(hints, "\n--\n") {
			fmt.Fprintf(w, "Hint: %s\n", h)
		}
	}
}

func main() {
	err := rootCmd.ExecuteContext(context.Background())
	logger.Cleanup()
	if err != nil {
		printError(os.Stderr, err)
		os.Exit(1)
	}
}
