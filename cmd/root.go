package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "lifeline",
	Short: "Lifeline connects coding agents to human engineers",
	Long:  `Lifeline is a command-line interface for delegating debugging work to human engineers on the exchange.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("Welcome to Lifeline! Use --help to see available commands.")
	},
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
