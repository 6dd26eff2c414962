package cmd

import (
	"fmt"
	"strconv"

	"downsort/internal/history"
	"downsort/internal/log"

	"github.com/spf13/cobra"
)

func newUndoCmd(a *app) *cobra.Command {
	var historyFile string

	cmd := &cobra.Command{
		Use:   "undo",
		Short: "Move the files of the last run back",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := historyFile
			if path == "" {
				cfg, err := a.loadConfig()
				if err != nil {
					return err
				}
				path = historyPath(cfg, "")
			} else {
				path = historyPath(nil, path)
			}

			stats, err := history.Undo(path, log.Default())
			if err != nil {
				return err
			}

			rows := [][]string{
				{"Records", strconv.Itoa(stats.Scanned)},
				{"Restored", strconv.Itoa(stats.Moved)},
				{"Errors", strconv.Itoa(stats.Errors)},
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderSummary(cmd.OutOrStdout(), "Undo", rows))
			return nil
		},
	}

	cmd.Flags().StringVar(&historyFile, "history", "", "history file (default from config)")
	return cmd
}
