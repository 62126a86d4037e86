package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/steveyegge/taskmirror/internal/logging"
	"github.com/steveyegge/taskmirror/internal/server"
	"github.com/steveyegge/taskmirror/internal/ui"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Expose sync over HTTP with WebSocket event streaming",
	Long: `Start an HTTP server around the mirror.

Endpoints:
  POST /api/sync   - run one sync pass, returns its stats
  GET  /api/check  - read-only reconciliation preview
  GET  /api/status - mirror counts and the last sync's stats
  GET  /ws         - WebSocket stream of sync events
  GET  /health     - liveness probe

Every completed sync is broadcast to all connected WebSocket clients
as a sync_complete message.

Example usage:
  tm serve                        # listen on the configured address
  tm serve --addr 127.0.0.1:9000  # override the listen address`,
	Run: func(cmd *cobra.Command, args []string) {
		addr, _ := cmd.Flags().GetString("addr")
		if addr == "" {
			addr = cfg.ListenAddr
		}

		db, err := openMirror(cmd)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer db.Close()

		syncer, err := newSyncer(db)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		srv := server.New(syncer, db, &server.Config{
			Addr:   addr,
			Logger: logging.New(cfg.LogFilePath, "[server] "),
		})

		if err := srv.Start(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to start server: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("%s Server listening on %s\n", ui.RenderPass("✓"), srv.Addr())
		fmt.Printf("   WebSocket endpoint: ws://%s/ws\n", srv.Addr())
		fmt.Printf("   Health check: http://%s/health\n", srv.Addr())
		fmt.Println("\nPress Ctrl+C to stop...")

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		<-ctx.Done()

		fmt.Println("\nShutting down server...")
		if err := srv.Stop(); err != nil {
			fmt.Fprintf(os.Stderr, "Error during shutdown: %v\n", err)
			os.Exit(1)
		}

		fmt.Println("Server stopped")
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (default: listen_addr from config)")
	rootCmd.AddCommand(serveCmd)
}
