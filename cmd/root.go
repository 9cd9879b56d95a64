package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/julien-sobczak/nt-anki/internal/core"
)

var verboseInfo bool
var verboseDebug bool
var verboseTrace bool

var rootCmd = &cobra.Command{
	Use:   "nt-anki",
	Short: "nt-anki turns Markdown notes into Anki flashcards",
	Long: `nt-anki scans a vault of Markdown files for flashcards, pushes them to a
running Anki instance through AnkiConnect, and writes the assigned
identifiers back into the files.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// The most verbose level wins when multiple flags are passed
		if verboseInfo {
			core.CurrentLogger().SetVerboseLevel(core.VerboseInfo)
		}
		if verboseDebug {
			core.CurrentLogger().SetVerboseLevel(core.VerboseDebug)
		}
		if verboseTrace {
			core.CurrentLogger().SetVerboseLevel(core.VerboseTrace)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verboseInfo, "verbose", "v", false, "enable verbose info output")
	rootCmd.PersistentFlags().BoolVar(&verboseDebug, "verbose-debug", false, "enable verbose debug output")
	rootCmd.PersistentFlags().BoolVar(&verboseTrace, "verbose-trace", false, "enable verbose trace output")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
