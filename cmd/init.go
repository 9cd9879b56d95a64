package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/julien-sobczak/nt-anki/internal/core"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new vault in the current directory",
	Run: func(cmd *cobra.Command, args []string) {
		logger := core.CurrentLogger()

		cwd, err := os.Getwd()
		if err != nil {
			logger.Fatal(err)
		}

		markerPath := filepath.Join(cwd, ".ntanki")
		if _, err := os.Stat(markerPath); err == nil {
			logger.Fatalf("%s is already a vault", cwd)
		}

		if err := os.Mkdir(markerPath, 0755); err != nil {
			logger.Fatal(err)
		}
		configPath := filepath.Join(markerPath, "config")
		if err := os.WriteFile(configPath, []byte(core.DefaultConfig), 0644); err != nil {
			logger.Fatal(err)
		}

		fmt.Printf("Initialized an empty vault in %s\n", cwd)
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
