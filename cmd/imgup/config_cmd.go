package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"imgup/internal/config"
)

func newConfigCmd(cfg *config.Config, d *deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Get or set configuration",
	}

	cmd.AddCommand(newConfigGetCmd(cfg, d))
	cmd.AddCommand(newConfigSetCmd(d))
	return cmd
}

func newConfigGetCmd(cfg *config.Config, d *deps) *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get a config value",
		Args:  requireExactlyArgs(1, "config key is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			if !config.IsAllowedKey(key) {
				return withExitCode(exitUsage, fmt.Errorf("unknown key: %s (allowed: %s)", key, strings.Join(config.AllowedKeys(), ", ")))
			}
			value, err := cfg.Get(key)
			if err != nil {
				return err
			}
			return newOutput(d.stdout).plain("%s\n", value)
		},
	}
}

func newConfigSetCmd(d *deps) *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a config value in ~/.imgup.toml",
		Args:  requireExactlyArgs(2, "config key and value are required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, value := args[0], args[1]

			path, err := config.Path()
			if err != nil {
				return withExitCode(exitMissingDependency, err)
			}
			if err := config.SetKey(path, key, value); err != nil {
				return err
			}
			return newOutput(d.stderr).plain("%s = %s (%s)\n", key, value, path)
		},
	}
}
