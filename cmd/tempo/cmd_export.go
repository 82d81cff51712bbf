package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"tempo/internal/sync"
)

// exportCmd dumps all local state as YAML
var exportCmd = &cobra.Command{
	Use:   "export [file]",
	Short: "Export sessions, tasks, and profile to YAML",
	Long: `Writes the complete local state to the given file, or stdout when no
file is given. The output can be re-imported on another machine with
tempo import.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, st := openEngine()
		defer st.Close()
		defer e.Close()

		data, err := yaml.Marshal(e.Export())
		if err != nil {
			return fmt.Errorf("encode snapshot: %w", err)
		}
		if len(args) == 0 {
			_, err = os.Stdout.Write(data)
			return err
		}
		if err := os.WriteFile(args[0], data, 0o600); err != nil {
			return fmt.Errorf("write %s: %w", args[0], err)
		}
		fmt.Printf("exported to %s\n", args[0])
		return nil
	},
}

// importCmd merges a YAML export into local state
var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import a YAML export, merging with local state",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read %s: %w", args[0], err)
		}
		var snap sync.Snapshot
		if err := yaml.Unmarshal(data, &snap); err != nil {
			return fmt.Errorf("parse %s: %w", args[0], err)
		}

		e, st := openEngine()
		defer st.Close()
		defer e.Close()

		e.Import(snap)
		fmt.Printf("imported %d sessions, %d task groups\n", len(snap.Sessions), len(snap.Tasks))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
}
