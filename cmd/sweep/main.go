package main

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/vancomm/minefield/internal/mines"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Play minesweeper in the terminal",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		mines.Log.SetOutput(cmd.ErrOrStderr())
		mines.Log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
		if verbose {
			mines.Log.SetLevel(logrus.DebugLevel)
		} else {
			mines.Log.SetLevel(logrus.WarnLevel)
		}
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log engine events to stderr")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
