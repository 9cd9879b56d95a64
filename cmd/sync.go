package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/julien-sobczak/nt-anki/internal/core"
	"github.com/julien-sobczak/nt-anki/internal/vault"
)

var forceSync bool
var dryRun bool

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Push the vault flashcards to Anki",
	Long: `Scan every Markdown file of the vault, add the new notes to Anki, update
the known ones, honor deletion requests, and write the assigned
identifiers back into the files.`,
	Run: func(cmd *cobra.Command, args []string) {
		config := core.CurrentConfig()
		config.DryRun = dryRun

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		stats, err := vault.NewVault(config).Sync(ctx, forceSync)
		if err != nil {
			core.CurrentLogger().Fatal(err)
		}

		printReports(stats.Reports)
		if dryRun {
			fmt.Println("Dry run:", stats)
		} else {
			fmt.Println(stats)
		}
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
	syncCmd.Flags().BoolVarP(&forceSync, "force", "f", false, "rescan files unchanged since the last sync")
	syncCmd.Flags().BoolVar(&dryRun, "dry-run", false, "scan and report without calling Anki or rewriting files")
}

func printReports(reports []vault.FileReport) {
	for _, fileReport := range reports {
		color.Yellow("%s:%d: %s", fileReport.Path, fileReport.Line, fileReport.Report.Message)
	}
}
