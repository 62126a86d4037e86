package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/steveyegge/taskmirror/internal/daemon"
	"github.com/steveyegge/taskmirror/internal/logging"
	tasksync "github.com/steveyegge/taskmirror/internal/sync"
	"github.com/steveyegge/taskmirror/internal/ui"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Sync periodically in the foreground",
	Long: `Run the sync loop until interrupted.

The daemon:
  1. Runs one sync immediately on startup
  2. Re-syncs every sync_interval
  3. Watches the config file and applies a changed sync_interval live
  4. Skips a tick if the previous pass is still running

Example usage:
  tm daemon                  # use sync_interval from config
  tm daemon --interval 30s   # override the interval`,
	Run: func(cmd *cobra.Command, args []string) {
		interval, _ := cmd.Flags().GetDuration("interval")
		if interval == 0 {
			interval = cfg.SyncInterval
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

		d, err := daemon.New(syncer, &daemon.Config{
			Interval:   interval,
			ConfigPath: configPath,
			Logger:     logging.New(cfg.LogFilePath, "[daemon] "),
			OnStats: func(stats tasksync.Stats) {
				fmt.Printf("%s Synced: %d created, %d updated, %d deleted (%v)\n",
					ui.RenderPass("✓"), stats.Created, stats.Updated, stats.Deleted,
					stats.Duration.Round(time.Millisecond))
			},
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating daemon: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("%s Starting sync daemon...\n", ui.RenderAccent("🚀"))
		fmt.Printf("   Interval: %v\n", interval)
		fmt.Printf("   Mirror: %s\n", db.Path())
		fmt.Printf("\nPress Ctrl+C to stop\n\n")

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		// Start blocks until the context is cancelled.
		if err := d.Start(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Daemon stopped with error: %v\n", err)
			os.Exit(1)
		}

		fmt.Println("\nDaemon stopped")
	},
}

func init() {
	daemonCmd.Flags().Duration("interval", 0, "sync interval (default: sync_interval from config)")
	rootCmd.AddCommand(daemonCmd)
}
