package cmd

import (
	"fmt"

	"downsort/internal/log"
	"downsort/internal/organize"

	"github.com/spf13/cobra"
)

func newOrganizeCmd(a *app) *cobra.Command {
	var (
		dryRun    bool
		recursive bool
		history   string
	)

	cmd := &cobra.Command{
		Use:   "organize [directory]",
		Short: "Sort the files of a directory once",
		Long:  `Sort every file in the directory (the configured source by default) into its category folder. Files with unknown extensions stay where they are.`,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			source, err := sourceDir(cfg, args)
			if err != nil {
				return err
			}

			engine, err := organize.New(cfg, organize.Options{
				DryRun:    dryRun,
				Recursive: recursive,
				Logger:    log.Default(),
			})
			if err != nil {
				return err
			}

			historyFile := historyPath(cfg, history)
			if err := engine.Begin(historyFile); err != nil {
				return err
			}
			defer engine.Release()

			stats, err := engine.Organize(source)
			if err != nil {
				return err
			}
			if err := engine.Persist(historyFile); err != nil {
				return err
			}

			title := "Organized " + source
			if dryRun {
				title = "Dry run for " + source
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderSummary(cmd.OutOrStdout(), title, runRows(stats)))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "show what would be moved without touching any file")
	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "descend into subdirectories")
	cmd.Flags().StringVar(&history, "history", "", "history file (default from config)")

	return cmd
}
