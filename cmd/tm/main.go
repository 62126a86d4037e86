package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/steveyegge/taskmirror/internal/config"
	"github.com/steveyegge/taskmirror/internal/logging"
	"github.com/steveyegge/taskmirror/internal/remote"
	"github.com/steveyegge/taskmirror/internal/store"
	tasksync "github.com/steveyegge/taskmirror/internal/sync"
)

var (
	configPath string
	cfg        *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "tm",
	Short: "One-way task mirror from Todoist into a local SQLite database",
	Long: `taskmirror keeps a local SQLite mirror of a Todoist account.

Synchronization is strictly one-way: the remote account is the source of
truth and the local mirror converges to it on every pass. Local edits are
overwritten; never edit the mirror by hand.

Typical usage:
  tm sync                # run one sync pass
  tm check               # preview what a sync would change
  tm status              # show mirror contents
  tm daemon              # sync periodically in the foreground
  tm serve               # expose sync over HTTP and WebSocket`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"config file (default: ./taskmirror.yaml, plus TM_* environment)")
}

// openMirror opens the mirror database and ensures its schema exists.
func openMirror(cmd *cobra.Command) (*store.DB, error) {
	db, err := store.Open(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open mirror database: %w", err)
	}
	if err := db.InitSchema(cmd.Context()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return db, nil
}

// newSyncer wires a Syncer from the loaded config.
func newSyncer(db *store.DB) (*tasksync.Syncer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	client := remote.NewClient(remote.Config{
		Token:    cfg.RemoteToken,
		BaseURL:  cfg.RemoteBaseURL,
		PageSize: cfg.RemotePageSize,
		Logger:   logging.New(cfg.LogFilePath, "[remote] "),
	})
	return tasksync.New(client, db, logging.New(cfg.LogFilePath, "[sync] ")), nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
