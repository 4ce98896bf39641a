package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"lifeline/config"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Authenticate with the exchange",
	Long:  `Open the exchange login page in a browser and store the resulting token in ~/.lifeline/token.json.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadAndValidate(configPath)
		if err != nil {
			return err
		}

		tokens, err := loadTokenStore(cfg, newLogger())
		if err != nil {
			return err
		}

		if err := tokens.Login(cmd.Context()); err != nil {
			return fmt.Errorf("login failed: %w", err)
		}

		fmt.Println("Logged in.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(loginCmd)
}
