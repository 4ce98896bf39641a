package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var tasksActive bool

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "List your tasks",
	Long: `List tasks recorded locally for this project. With --active, ask the
exchange for tasks that are still open instead.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps(configPath)
		if err != nil {
			return err
		}
		defer deps.Stores.Close()

		if tasksActive {
			active, err := deps.Directory.ActiveTasks(cmd.Context(), deps.Config.Exchange.ProjectID)
			if err != nil {
				return fmt.Errorf("list active tasks: %w", err)
			}
			if len(active) == 0 {
				fmt.Println("No active tasks.")
				return nil
			}
			for _, t := range active {
				fmt.Printf("%s  %-14s %-10s %s\n", t.TaskID, t.Mode, t.Status, preview(t.MessagePreview))
			}
			return nil
		}

		records, total, err := deps.Stores.Tasks.ListTasks(20, 0)
		if err != nil {
			return fmt.Errorf("list tasks: %w", err)
		}
		if total == 0 {
			fmt.Println("No tasks recorded yet.")
			return nil
		}
		for _, r := range records {
			fmt.Printf("%s  %-14s %-10s %3d credits  %s\n",
				r.TaskID, r.Mode, r.Status, r.CreditsUsed, preview(r.FirstMessage))
		}
		if total > len(records) {
			fmt.Printf("... and %d more\n", total-len(records))
		}
		return nil
	},
}

func preview(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) > 60 {
		return s[:60] + "..."
	}
	return s
}

func init() {
	tasksCmd.Flags().BoolVar(&tasksActive, "active", false, "query the exchange for open tasks")
	rootCmd.AddCommand(tasksCmd)
}
