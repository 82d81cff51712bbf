package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// syncCmd forces one push/pull cycle
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Push local state and pull the remote's merged view once",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Remote == "" {
			return fmt.Errorf("no remote configured; set remote in %s or TEMPO_REMOTE_URL", configPath)
		}
		e, st := openEngine()
		defer st.Close()
		defer e.Close()

		e.PushNow()
		e.PullNow()
		fmt.Printf("synced: %d sessions, %d points\n", len(e.ListSessions()), e.RewardPoints())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
}
