package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"downsort/internal/log"
	"downsort/internal/organize"
	"downsort/internal/watch"
	"downsort/pkg/types"

	"github.com/spf13/cobra"
)

func newWatchCmd(a *app) *cobra.Command {
	var (
		dryRun        bool
		recursive     bool
		history       string
		noInitialScan bool
	)

	cmd := &cobra.Command{
		Use:   "watch [directory]",
		Short: "Keep a directory sorted as files arrive",
		Long:  `Watch the directory (the configured source by default) and sort every new file as soon as it appears. Press Ctrl+C to stop; the moves of the session are saved for undo.`,
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

			loop, err := watch.New(engine, source, watch.Options{
				InitialScan: cfg.Settings.InitialScan && !noInitialScan,
				HistoryPath: historyPath(cfg, history),
				Logger:      log.Default(),
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			loop.SetCallback(func(r types.OrganizeResult) {
				if r.Outcome == types.OutcomeMoved {
					fmt.Fprintln(out, styled(out, movedStyle, r.SourcePath+" -> "+r.DestinationPath))
				}
			})

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			fmt.Fprintf(out, "Watching %s. Press Ctrl+C to stop.\n", source)
			stats, err := loop.Run(ctx)
			fmt.Fprintln(out, renderSummary(out, "Watched "+source, runRows(stats)))
			return err
		},
	}

	cmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "report moves without touching any file")
	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "watch subdirectories too")
	cmd.Flags().StringVar(&history, "history", "", "history file (default from config)")
	cmd.Flags().BoolVar(&noInitialScan, "no-initial-scan", false, "leave files that exist at startup alone")

	return cmd
}
