package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"tempo/internal/cache"
	"tempo/internal/config"
	"tempo/internal/logging"
	"tempo/internal/store"
	"tempo/internal/sync"
)

var (
	// Global flags
	verbose    bool
	configPath string

	cfg *config.Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "tempo",
	Short: "tempo - local-first session and task sync engine",
	Long: `tempo keeps chat sessions and task checklists on this machine and
reconciles them with a remote endpoint when one is configured.

Local writes always succeed; the network only ever delays sync, never
a keystroke.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := logging.Initialize(verbose); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Sync()
	},
}

// openEngine builds the full stack from config. The caller owns shutdown.
func openEngine() (*sync.Engine, *store.Store) {
	st := store.Open(cfg.DBPath)

	var remote sync.Remote
	if cfg.Remote != "" {
		c := cache.New(st, cfg.CacheGeneration)
		remote = sync.NewHTTPRemote(cfg.Remote, cfg.Sync.Timeout, c)
	}

	e := sync.NewEngine(st, remote, sync.Options{
		ActorID:      cfg.ActorID,
		PushDebounce: cfg.Sync.PushDebounce,
		PullInterval: cfg.Sync.PullInterval,
		MessageTail:  cfg.Sync.MessageTail,
	})
	return e, st
}

func main() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath(), "path to config file")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "tempo.yaml"
	}
	return home + "/.tempo/tempo.yaml"
}
