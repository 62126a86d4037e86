// Package daemon runs periodic sync passes against the remote source.
//
// The daemon:
// 1. Performs an initial sync on startup
// 2. Re-syncs on a fixed interval
// 3. Watches the config file and applies interval changes without restart
// 4. Handles graceful shutdown
//
// Ticks that arrive while a sync is still running are skipped: exactly one
// pass runs at a time.
package daemon

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/steveyegge/taskmirror/internal/config"
	tasksync "github.com/steveyegge/taskmirror/internal/sync"
)

// Config holds daemon configuration.
type Config struct {
	// Interval is how often to run a sync pass.
	Interval time.Duration

	// ConfigPath, when set, is watched for changes; a changed
	// sync_interval takes effect after the debounce.
	ConfigPath string

	// DebounceInterval is how long to wait before reacting to a config
	// file change. Editors often emit several events per save.
	DebounceInterval time.Duration

	// OnStats, when non-nil, receives the stats of every successful pass.
	OnStats func(tasksync.Stats)

	// Logger for daemon activity.
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Interval:         5 * time.Minute,
		DebounceInterval: 500 * time.Millisecond,
		Logger:           log.New(os.Stderr, "[daemon] ", log.LstdFlags),
	}
}

// Daemon orchestrates the periodic sync loop.
type Daemon struct {
	syncer *tasksync.Syncer
	config *Config

	watcher  *fsnotify.Watcher
	reload   chan time.Duration
	inFlight atomic.Bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Daemon.
func New(syncer *tasksync.Syncer, cfg *Config) (*Daemon, error) {
	if syncer == nil {
		return nil, fmt.Errorf("syncer cannot be nil")
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(os.Stderr, "[daemon] ", log.LstdFlags)
	}
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("interval must be positive")
	}
	if cfg.DebounceInterval <= 0 {
		cfg.DebounceInterval = 500 * time.Millisecond
	}

	ctx, cancel := context.WithCancel(context.Background())

	d := &Daemon{
		syncer: syncer,
		config: cfg,
		reload: make(chan time.Duration, 1),
		ctx:    ctx,
		cancel: cancel,
	}

	if cfg.ConfigPath != "" {
		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			cancel()
			return nil, fmt.Errorf("failed to create watcher: %w", err)
		}
		d.watcher = watcher
	}

	return d, nil
}

// Start begins the daemon's operation. It performs an initial sync, then
// blocks until ctx is cancelled or Stop is called.
func (d *Daemon) Start(ctx context.Context) error {
	d.config.Logger.Printf("Starting daemon (interval=%v)", d.config.Interval)

	if err := d.runSync(); err != nil {
		return fmt.Errorf("initial sync failed: %w", err)
	}

	if d.watcher != nil {
		if err := d.watcher.Add(d.config.ConfigPath); err != nil {
			d.watcher.Close()
			d.cancel()
			return fmt.Errorf("failed to watch config file: %w", err)
		}
		d.config.Logger.Printf("Watching config: %s", d.config.ConfigPath)

		d.wg.Add(1)
		go d.watchConfig()
	}

	d.wg.Add(1)
	go d.syncLoop()

	select {
	case <-ctx.Done():
		d.config.Logger.Println("Shutdown signal received")
		return d.Stop()
	case <-d.ctx.Done():
		return nil
	}
}

// Stop gracefully shuts down the daemon.
func (d *Daemon) Stop() error {
	d.config.Logger.Println("Stopping daemon")

	d.cancel()

	if d.watcher != nil {
		if err := d.watcher.Close(); err != nil {
			d.config.Logger.Printf("Error closing watcher: %v", err)
		}
	}

	d.wg.Wait()

	d.config.Logger.Println("Daemon stopped")
	return nil
}

// syncLoop runs a sync on every tick, applying interval reloads.
func (d *Daemon) syncLoop() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return

		case interval := <-d.reload:
			d.config.Logger.Printf("Sync interval changed to %v", interval)
			d.config.Interval = interval
			ticker.Reset(interval)

		case <-ticker.C:
			if err := d.runSync(); err != nil {
				d.config.Logger.Printf("Sync failed: %v", err)
			}
		}
	}
}

// runSync executes one sync pass unless one is already in flight.
func (d *Daemon) runSync() error {
	if !d.inFlight.CompareAndSwap(false, true) {
		d.config.Logger.Println("Skipping tick: previous sync still running")
		return nil
	}
	defer d.inFlight.Store(false)

	stats, err := d.syncer.Sync(d.ctx)
	if err != nil {
		return err
	}
	if d.config.OnStats != nil {
		d.config.OnStats(stats)
	}
	return nil
}

// watchConfig reacts to config file changes with debouncing.
func (d *Daemon) watchConfig() {
	defer d.wg.Done()

	var pending <-chan time.Time

	for {
		select {
		case <-d.ctx.Done():
			return

		case event, ok := <-d.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			d.config.Logger.Printf("Config event: %s %s", event.Op, event.Name)
			pending = time.After(d.config.DebounceInterval)

		case <-pending:
			pending = nil
			d.reloadInterval()

		case err, ok := <-d.watcher.Errors:
			if !ok {
				return
			}
			d.config.Logger.Printf("Watcher error: %v", err)
		}
	}
}

// reloadInterval re-reads the config file and pushes a changed interval
// to the sync loop.
func (d *Daemon) reloadInterval() {
	cfg, err := config.Load(d.config.ConfigPath)
	if err != nil {
		d.config.Logger.Printf("Config reload failed: %v", err)
		return
	}
	if cfg.SyncInterval <= 0 || cfg.SyncInterval == d.config.Interval {
		return
	}

	select {
	case d.reload <- cfg.SyncInterval:
	default:
		// A reload is already queued; the latest file wins next time.
	}
}
