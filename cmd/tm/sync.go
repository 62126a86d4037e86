package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	tasksync "github.com/steveyegge/taskmirror/internal/sync"
	"github.com/steveyegge/taskmirror/internal/ui"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one sync pass against the remote source",
	Long: `Fetch the full remote snapshot and reconcile the local mirror to it.

One pass:
  1. Fetches every active and completed task from the remote source
  2. Diffs the snapshot against the local mirror
  3. Applies all creates, updates, and deletes in a single transaction

Re-running against an unchanged remote is a no-op.`,
	Run: func(cmd *cobra.Command, args []string) {
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

		fmt.Printf("%s Syncing into %s...\n", ui.RenderAccent("🔄"), db.Path())

		stats, err := syncer.Sync(cmd.Context())
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s Sync failed: %v\n", ui.RenderErr("✗"), err)
			os.Exit(1)
		}

		fmt.Printf("%s Sync complete in %v\n", ui.RenderPass("✓"), stats.Duration.Round(time.Millisecond))
		fmt.Printf("   Created: %d\n", stats.Created)
		fmt.Printf("   Updated: %d\n", stats.Updated)
		fmt.Printf("   Deleted: %d\n", stats.Deleted)
		fmt.Printf("   Unchanged: %d\n", stats.Unchanged)
		if stats.Skipped > 0 {
			fmt.Printf("   %s Skipped: %d (records without an id)\n", ui.RenderWarn("⚠"), stats.Skipped)
		}
		fmt.Printf("   Mirror: %d tasks (%d completed)\n", stats.FinalCount, stats.CompletedCount)
	},
}

var checkFormat string

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Preview what a sync would change without writing",
	Long: `Compute the reconciliation plan and print its summary without
touching the mirror.

Useful before a first sync against an existing database, or to confirm
the mirror has converged (all counts zero except unchanged).`,
	Run: func(cmd *cobra.Command, args []string) {
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

		plan, err := syncer.CheckOnly(cmd.Context())
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s Check failed: %v\n", ui.RenderErr("✗"), err)
			os.Exit(1)
		}

		if err := printSummary(plan.Summary, checkFormat); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func printSummary(s tasksync.Summary, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	case "yaml":
		return yaml.NewEncoder(os.Stdout).Encode(s)
	case "text":
		pending := s.Created + s.Updated + s.Deleted
		if pending == 0 {
			fmt.Printf("%s Mirror is up to date (%d tasks)\n", ui.RenderPass("✓"), s.TotalRemote)
			return nil
		}
		fmt.Printf("%s A sync would apply %d changes:\n", ui.RenderAccent("📋"), pending)
		fmt.Printf("   Create: %d\n", s.Created)
		fmt.Printf("   Update: %d\n", s.Updated)
		fmt.Printf("   Delete: %d\n", s.Deleted)
		fmt.Printf("   Unchanged: %d\n", s.Unchanged)
		return nil
	default:
		return fmt.Errorf("unknown format %q (want text, json, or yaml)", format)
	}
}

func init() {
	checkCmd.Flags().StringVar(&checkFormat, "format", "text", "output format: text, json, or yaml")

	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(checkCmd)
}
