package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"herald/internal/logging"
	"herald/internal/theme"
)

var (
	cfgPath  string
	logLevel string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "herald",
		Short:         "Scheduled engagement for X through the API with a browser fallback",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			logging.SetLevel(logLevel)
		},
		Run: func(cmd *cobra.Command, _ []string) {
			theme.PrintBanner()
			_ = cmd.Help()
		},
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "./herald.yaml", "config path")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "debug, info, warn or error")
	root.AddCommand(
		newInitCmd(),
		newRunCmd(),
		newServeCmd(),
		newLoginCmd(),
		newStatsCmd(),
		newScheduleCmd(),
	)
	return root
}
