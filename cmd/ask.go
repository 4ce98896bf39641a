package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"lifeline/cli"
	"lifeline/directory"
	"lifeline/reply"
)

var askCredits int

var askCmd = &cobra.Command{
	Use:   "ask <message>",
	Short: "Ask a quick question",
	Long:  `Send a quick question to a human engineer and wait for the answer.`,
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps(configPath)
		if err != nil {
			return err
		}
		defer deps.Stores.Close()

		credits := askCredits
		if credits == 0 {
			credits = deps.Config.Defaults.QuickCredits
		}

		message := strings.Join(args, " ")
		renderer := cli.NewRenderer()
		renderer.Waiting("Finding an engineer")

		res, err := deps.Directory.CreateTask(cmd.Context(), directory.CreateTaskRequest{
			Message:    message,
			Mode:       directory.ModeQuickAnswer,
			MaxCredits: credits,
			ProjectID:  deps.Config.Exchange.ProjectID,
		})
		if err != nil {
			renderer.Error(err)
			return err
		}

		if err := deps.Stores.Tasks.RecordTask(res.TaskID, string(directory.ModeQuickAnswer), deps.Config.Exchange.ProjectID, "", message); err != nil {
			deps.Log.Warn("record task", "task", res.TaskID, "error", err)
		}

		renderer.Waiting("Waiting for an answer")
		poller := reply.NewPoller(deps.Directory, res.TaskID, deps.Log.Named("reply"))
		timeout := time.Duration(deps.Config.Defaults.TimeoutSeconds) * time.Second

		answer, err := poller.AwaitReply(cmd.Context(), timeout)
		if err != nil {
			if cmd.Context().Err() != nil {
				// Interrupted before an answer arrived. Release the engineer
				// instead of leaving the task to run out its budget.
				cancelCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if cerr := deps.Directory.Cancel(cancelCtx, res.TaskID); cerr != nil {
					deps.Log.Warn("cancel task", "task", res.TaskID, "error", cerr)
				} else if serr := deps.Stores.Tasks.UpdateTaskStatus(res.TaskID, "cancelled"); serr != nil {
					deps.Log.Warn("update status", "task", res.TaskID, "error", serr)
				}
			}
			renderer.Error(err)
			return err
		}

		renderer.Reply(answer.Text)
		fmt.Printf("Task %s finished. Credits used: %d.\n", res.TaskID, answer.CreditsUsed)

		if err := deps.Stores.Tasks.UpdateCreditsUsed(res.TaskID, answer.CreditsUsed); err != nil {
			deps.Log.Warn("update credits", "task", res.TaskID, "error", err)
		}
		if err := deps.Stores.Tasks.UpdateTaskStatus(res.TaskID, "completed"); err != nil {
			deps.Log.Warn("update status", "task", res.TaskID, "error", err)
		}
		return nil
	},
}

func init() {
	askCmd.Flags().IntVar(&askCredits, "credits", 0, "budget cap in credits (1-10)")
	rootCmd.AddCommand(askCmd)
}
