package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "List claimable tasks once without claiming",
	RunE:  runTasks,
}

func runTasks(cmd *cobra.Command, args []string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	tasks, err := newClient(cfg).ListTasks(cmd.Context(), cfg.Filter())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(tasks) == 0 {
		fmt.Fprintln(out, "No claimable tasks")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%s\tSUBJECT\tSTEP\tTYPE\tSTATE\tCREATED\tBRIEF\n", strings.ToUpper(cfg.TaskType.ClaimIDLabel()))
	for _, t := range tasks {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			t.ClaimID(cfg.TaskType),
			orID(t.SubjectName, t.Subject),
			orID(t.StepName, t.Step),
			orID(t.ClueTypeName, t.ClueType),
			orID(t.StateName, t.State),
			t.CreateTime,
			truncate(t.Brief, 40),
		)
	}
	return w.Flush()
}

func orID(name string, id int) string {
	if name != "" {
		return name
	}
	return fmt.Sprintf("%d", id)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
