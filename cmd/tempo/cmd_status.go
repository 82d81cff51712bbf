package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// statusCmd reports local state and remote reachability
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show local state counts and remote health",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, st := openEngine()
		defer st.Close()
		defer e.Close()

		sessions := e.ListSessions()
		stats := e.TaskStats()
		fmt.Printf("sessions: %d (active %s)\n", len(sessions), e.ActiveSessionID())
		fmt.Printf("tasks:    %d/%d done across %d groups\n", stats.DoneItems, stats.TotalItems, len(stats.Groups))
		fmt.Printf("points:   %d\n", stats.Points)
		if st.Degraded() {
			fmt.Println("store:    DEGRADED (memory only, state will not survive restart)")
		} else {
			fmt.Printf("store:    %s\n", cfg.DBPath)
		}

		if cfg.Remote == "" {
			fmt.Println("remote:   not configured")
			return nil
		}
		if err := e.Health(context.Background()); err != nil {
			fmt.Printf("remote:   unreachable (%v)\n", err)
		} else {
			fmt.Printf("remote:   ok (%s)\n", cfg.Remote)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
