// Package cmd wires the downsort command line.
package cmd

import (
	"os"

	"downsort/internal/config"
	"downsort/internal/errors"
	"downsort/internal/log"

	"github.com/spf13/cobra"
)

// app carries the persistent flags shared by every subcommand.
type app struct {
	cfgFile  string
	verbose  bool
	jsonLogs bool
	logFile  string
}

// Execute runs the command line and returns the first fatal error.
func Execute(version string) error {
	defer log.Default().Close()
	return NewRootCmd(version).Execute()
}

// NewRootCmd builds the downsort command tree.
func NewRootCmd(version string) *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:     "downsort",
		Short:   "Sort downloaded files into category folders",
		Long:    `downsort moves files out of a source folder (your Downloads by default) into folders chosen by file extension. Every move is recorded so the last run can be undone.`,
		Version: version,

		SilenceUsage:  true,
		SilenceErrors: true,

		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			a.configureLogging(cmd)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default is $XDG_CONFIG_HOME/downsort/config.yaml)")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")
	flags.BoolVar(&a.jsonLogs, "json", false, "write logs as JSON lines")
	flags.StringVar(&a.logFile, "log-file", "", "also append logs to this file")

	rootCmd.AddCommand(newOrganizeCmd(a))
	rootCmd.AddCommand(newUndoCmd(a))
	rootCmd.AddCommand(newWatchCmd(a))
	rootCmd.AddCommand(newInitCmd(a))

	return rootCmd
}

func (a *app) configureLogging(cmd *cobra.Command) {
	opts := []log.Option{log.WithOutput(cmd.ErrOrStderr())}
	if a.jsonLogs {
		opts = append(opts, log.WithJSON())
	}
	if a.logFile != "" {
		opts = append(opts, log.WithFile(config.ExpandPath(a.logFile)))
	}
	log.Configure(opts...)
	log.SetDebug(a.verbose)
}

// configPath is the file init writes and every other command reads.
func (a *app) configPath() string {
	if a.cfgFile != "" {
		return config.ExpandPath(a.cfgFile)
	}
	return config.DefaultPath()
}

// loadConfig reads the configuration. The default location may be absent,
// in which case built-in defaults apply; an explicit --config must exist.
func (a *app) loadConfig() (*config.Config, error) {
	if a.cfgFile == "" {
		return config.LoadConfig()
	}
	path := a.configPath()
	if _, err := os.Stat(path); err != nil {
		return nil, errors.NewConfigError("config file not found", path, errors.ConfigNotFound, err)
	}
	return config.LoadConfigFile(path)
}

// historyPath picks the history file: flag, then config, then default.
func historyPath(cfg *config.Config, flag string) string {
	switch {
	case flag != "":
		return config.ExpandPath(flag)
	case cfg != nil && cfg.Settings.HistoryFile != "":
		return cfg.Settings.HistoryFile
	default:
		return config.DefaultHistoryPath()
	}
}

// sourceDir picks the directory to work on: argument, then config.
func sourceDir(cfg *config.Config, args []string) (string, error) {
	if len(args) > 0 && args[0] != "" {
		return config.ExpandPath(args[0]), nil
	}
	if cfg.Source != "" {
		return cfg.Source, nil
	}
	return "", errors.NewConfigError("no source directory given and none configured", "source", errors.InvalidConfig, nil)
}
