package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"lifeline/config"
	"lifeline/snapshot"
	"lifeline/tunnel"
)

var shareCmd = &cobra.Command{
	Use:   "share",
	Short: "Share your workspace with an engineer",
}

var shareSnapshotCmd = &cobra.Command{
	Use:   "snapshot <task-id>",
	Short: "Upload a snapshot of the current repository to a task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadAndValidate(configPath)
		if err != nil {
			return err
		}
		tokens, err := loadTokenStore(cfg, newLogger())
		if err != nil {
			return err
		}

		dir, err := os.Getwd()
		if err != nil {
			return err
		}

		info, err := snapshot.Inspect(dir)
		if err != nil {
			return fmt.Errorf("inspect repository: %w", err)
		}
		if info.Dirty {
			fmt.Println("Note: working tree has uncommitted changes; they are included.")
		}

		archive := filepath.Join(os.TempDir(), fmt.Sprintf("lifeline-%s.tar.gz", args[0]))
		defer os.Remove(archive)

		if err := snapshot.Build(dir, archive); err != nil {
			return fmt.Errorf("build snapshot: %w", err)
		}
		if err := snapshot.Upload(cmd.Context(), cfg.Exchange.APIURL, args[0], archive, tokens); err != nil {
			return fmt.Errorf("upload snapshot: %w", err)
		}

		fmt.Printf("Snapshot of %s@%s uploaded to task %s.\n", info.Branch, info.Commit[:min(8, len(info.Commit))], args[0])
		return nil
	},
}

var shareTunnelCmd = &cobra.Command{
	Use:   "tunnel <port>",
	Short: "Expose a local port to the engineer through a reverse tunnel",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		port, err := strconv.Atoi(args[0])
		if err != nil || port < 1 || port > 65535 {
			return fmt.Errorf("invalid port %q", args[0])
		}

		cfg, err := config.LoadAndValidate(configPath)
		if err != nil {
			return err
		}
		tokens, err := loadTokenStore(cfg, newLogger())
		if err != nil {
			return err
		}

		client := tunnel.NewClient(cfg.Exchange.APIURL, tokens, newLogger().Named("tunnel"))
		t, err := client.Create(cmd.Context(), port)
		if err != nil {
			return fmt.Errorf("create tunnel: %w", err)
		}

		fmt.Printf("Tunnel ready: %s\n", t.URL)
		if t.Password != "" {
			fmt.Printf("Password: %s\n", t.Password)
		}
		return nil
	},
}

func init() {
	shareCmd.AddCommand(shareSnapshotCmd)
	shareCmd.AddCommand(shareTunnelCmd)
	rootCmd.AddCommand(shareCmd)
}
