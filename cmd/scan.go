package cmd

import (
	"fmt"
	"sort"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/julien-sobczak/nt-anki/internal/core"
	"github.com/julien-sobczak/nt-anki/internal/vault"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "List the flashcards found in the vault",
	Long: `Scan every Markdown file of the vault and list the flashcards a sync would
consider, without talking to Anki and without rewriting anything.`,
	Run: func(cmd *cobra.Command, args []string) {
		config := core.CurrentConfig()

		plans, reports, err := vault.NewVault(config).Scan()
		if err != nil {
			core.CurrentLogger().Fatal(err)
		}

		total := 0
		for _, filePlan := range plans {
			if filePlan.Plan == nil {
				continue
			}
			for _, match := range filePlan.Plan.Adds {
				color.Green("%s: new %s note %q", filePlan.Path, match.NoteType, summary(match.Note.Fields))
				total++
			}
			for _, match := range filePlan.Plan.Updates {
				fmt.Printf("%s: %s note %d %q\n", filePlan.Path, match.NoteType, match.Note.ID, summary(match.Note.Fields))
				total++
			}
			for _, deletion := range filePlan.Plan.Deletes {
				color.Red("%s: delete note %d", filePlan.Path, deletion.ID)
			}
		}
		printReports(reports)
		fmt.Printf("%d note(s) found\n", total)
	},
}

func init() {
	rootCmd.AddCommand(scanCmd)
}

// summary returns a short excerpt of the first non-empty field.
func summary(fields map[string]string) string {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		value := fields[name]
		if value == "" {
			continue
		}
		if len(value) > 60 {
			return value[:60] + "..."
		}
		return value
	}
	return ""
}
