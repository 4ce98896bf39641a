package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"lifeline/config"
)

var varsCmd = &cobra.Command{
	Use:   "vars",
	Short: "Manage variable overrides",
	Long: `Inspect and set variable overrides for the loaded config.

Variables declared in the config (variable "name" blocks) take their value
from ~/.lifeline/vars.txt when set there, falling back to the declared
default. Secrets belong in the override file, never in the config.`,
}

var varsListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show every variable and its effective value",
	RunE: func(cmd *cobra.Command, args []string) error {
		overrides, err := config.LoadOverrides()
		if err != nil {
			return err
		}

		var declared []config.Variable
		if cfg, err := config.Load(configPath); err == nil {
			declared = cfg.Variables
		} else {
			fmt.Printf("(no config loaded from %s: showing overrides only)\n", configPath)
		}

		resolved := config.ResolveVariables(declared, overrides)
		if len(resolved) == 0 {
			fmt.Println("No variables declared or set")
			return nil
		}

		for _, rv := range resolved {
			note := "default"
			switch {
			case !rv.Declared:
				note = "not declared in config"
			case rv.Override:
				note = "override"
			}
			fmt.Printf("%s = %s  (%s)\n", rv.Name, rv.DisplayValue(), note)
		}
		return nil
	},
}

var varsGetCmd = &cobra.Command{
	Use:   "get <name>",
	Short: "Print a variable's effective value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		overrides, err := config.LoadOverrides()
		if err != nil {
			return err
		}
		if value, ok := overrides[name]; ok {
			fmt.Println(value)
			return nil
		}
		if cfg, err := config.Load(configPath); err == nil {
			if v, ok := cfg.Declared(name); ok {
				fmt.Println(v.Default)
				return nil
			}
		}
		return fmt.Errorf("variable %q is not set and not declared in config", name)
	},
}

var varsSetCmd = &cobra.Command{
	Use:   "set <name> <value>",
	Short: "Set a variable override",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, value := args[0], args[1]
		if err := config.SetOverride(name, value); err != nil {
			return err
		}

		if cfg, err := config.Load(configPath); err == nil {
			if v, ok := cfg.Declared(name); !ok {
				fmt.Printf("Warning: no variable %q declared in the config at %s; the override has no effect until one is added\n", name, configPath)
			} else if v.Secret {
				fmt.Printf("Secret variable %q set\n", name)
				return nil
			}
		}
		fmt.Printf("Variable %q set\n", name)
		return nil
	},
}

var varsUnsetCmd = &cobra.Command{
	Use:   "unset <name>",
	Short: "Remove a variable override",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.UnsetOverride(args[0]); err != nil {
			return err
		}
		fmt.Printf("Variable %q unset\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(varsCmd)
	varsCmd.AddCommand(varsListCmd)
	varsCmd.AddCommand(varsGetCmd)
	varsCmd.AddCommand(varsSetCmd)
	varsCmd.AddCommand(varsUnsetCmd)
}
