package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is set at build time via ldflags
var Version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.Version = Version
	rootCmd.SetVersionTemplate("{{.Version}}\n")
	rootCmd.Long = fmt.Sprintf(`Lifeline %s

CLI for delegating debugging work to human engineers on the exchange.

Ask a quick question, open an interactive session, or run the stdio
server so a coding agent can do both on your behalf.

Get started:
  lifeline login          Authenticate with the exchange
  lifeline ask <message>  Ask a quick question
  lifeline tasks          List your tasks
  lifeline serve          Run the stdio tool server`, Version)
}
