package cmd

import (
	"fmt"
	"os"

	"downsort/internal/config"
	"downsort/internal/errors"

	"github.com/spf13/cobra"
)

func newInitCmd(a *app) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := a.configPath()
			if _, err := os.Stat(path); err == nil && !force {
				return errors.NewConfigError("config file already exists, use --force to overwrite", path, errors.InvalidConfig, nil)
			}
			if err := config.SaveConfig(config.Default(), path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote default configuration to %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing config file")
	return cmd
}
