package main

import (
	"github.com/spf13/cobra"

	"tempo/internal/logging"
	"tempo/internal/web"
)

var listenAddr string

// serveCmd runs the local HTTP API
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the local HTTP API",
	Long: `Starts the engine and exposes it over HTTP on the configured listen
address. The sync loop runs in the background for as long as the server
is up.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, st := openEngine()
		defer st.Close()
		defer e.Close()

		addr := listenAddr
		if addr == "" {
			addr = cfg.Server.Listen
		}
		logging.Boot("tempo serving on %s, db=%s", addr, cfg.DBPath)
		return web.NewServer(e).Run(addr)
	},
}

func init() {
	serveCmd.Flags().StringVarP(&listenAddr, "listen", "l", "", "listen address (overrides config)")
	rootCmd.AddCommand(serveCmd)
}
