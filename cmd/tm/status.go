package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/steveyegge/taskmirror/internal/store"
	"github.com/steveyegge/taskmirror/internal/ui"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show mirror database status",
	Long: `Display the current state of the local mirror.

Shows:
  - Mirror file location and size
  - Number of tasks, split by completion state
  - Last modification time`,
	Run: func(cmd *cobra.Command, args []string) {
		info, err := os.Stat(cfg.DatabasePath)
		if os.IsNotExist(err) {
			fmt.Printf("\n%s Mirror not initialized\n", ui.RenderWarn("⚠"))
			fmt.Printf("   Run 'tm sync' to create it\n\n")
			return
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error checking mirror: %v\n", err)
			os.Exit(1)
		}

		db, err := store.Open(cfg.DatabasePath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening mirror: %v\n", err)
			os.Exit(1)
		}
		defer db.Close()

		total, err := db.Count(cmd.Context(), store.CountFilter{})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error counting tasks: %v\n", err)
			os.Exit(1)
		}
		completed := true
		done, err := db.Count(cmd.Context(), store.CountFilter{Completed: &completed})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error counting completed tasks: %v\n", err)
			os.Exit(1)
		}

		size := info.Size()
		sizeStr := fmt.Sprintf("%d bytes", size)
		if size > 1024*1024 {
			sizeStr = fmt.Sprintf("%.1f MB", float64(size)/(1024*1024))
		} else if size > 1024 {
			sizeStr = fmt.Sprintf("%.1f KB", float64(size)/1024)
		}

		fmt.Printf("\n%s Mirror Status\n\n", ui.RenderAccent("📊"))
		fmt.Printf("Location: %s\n", cfg.DatabasePath)
		fmt.Printf("Size: %s\n", sizeStr)
		fmt.Printf("Tasks: %d (%d active, %d completed)\n", total, total-done, done)
		fmt.Printf("Modified: %s\n", ui.RenderDim(info.ModTime().Format("2006-01-02 15:04:05")))
		fmt.Println()
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
