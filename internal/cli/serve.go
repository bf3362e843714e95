package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/atlasci/coalesce/internal/correlate"
	"github.com/atlasci/coalesce/internal/engine"
	"github.com/atlasci/coalesce/internal/model"
)

var (
	eventsPath  string
	artifactDir string
	window      time.Duration
	sweepEvery  time.Duration
	noDrain     bool
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Consume run notifications and emit aggregated reports",
	Long: `Serve consumes newline-delimited JSON "input available" notifications
from the event-stream collaborator and drives the aggregation engine:

  {"run_id":"R1","source":"graph","available_at":"2026-08-24T12:00:00Z"}

Once all three inputs of a run are available (or the correlation window
expires), the engine fetches the payloads, correlates the evidence, and
publishes a versioned Markdown + JSON report to the artifact directory.

Example:
  stream-consumer | coalesce serve
  coalesce serve --events notifications.ndjson --artifacts ./artifacts`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&eventsPath, "events", "-", "notification source: file path or '-' for stdin")
	serveCmd.Flags().StringVar(&artifactDir, "artifacts", "", "artifact output directory (overrides config)")
	serveCmd.Flags().DurationVar(&window, "window", 0, "correlation window (overrides config)")
	serveCmd.Flags().DurationVar(&sweepEvery, "sweep", 0, "deadline sweep interval (overrides config)")
	serveCmd.Flags().BoolVar(&noDrain, "no-drain", false, "exit immediately at end of stream instead of waiting out pending runs")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if artifactDir != "" {
		cfg.Output.ArtifactDir = artifactDir
	}
	if window > 0 {
		cfg.Correlation.Window = window
	}
	if sweepEvery > 0 {
		cfg.Correlation.SweepInterval = sweepEvery
	}

	var in io.ReadCloser
	if eventsPath == "-" {
		in = os.Stdin
	} else {
		f, err := os.Open(eventsPath)
		if err != nil {
			return fmt.Errorf("open events: %w", err)
		}
		in = f
	}
	defer func() { _ = in.Close() }()

	eng := engine.New(cfg)
	eng.Start()

	if verbose {
		fmt.Fprintf(os.Stderr, "Listening for notifications (window %v, artifacts %s)\n",
			cfg.Correlation.Window, cfg.Output.ArtifactDir)
	}

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	var consumed, skipped int
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var n model.Notification
		if err := json.Unmarshal(line, &n); err != nil || n.RunID == "" || !n.Source.Valid() {
			skipped++
			if verbose {
				fmt.Fprintf(os.Stderr, "Warning: skipping malformed notification: %s\n", line)
			}
			continue
		}
		if n.AvailableAt.IsZero() {
			n.AvailableAt = time.Now().UTC()
		}
		eng.Notify(n)
		consumed++
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read events: %w", err)
	}

	// End of stream: resolve every pending run to ready/degraded/failed
	// before exiting. A stream with nothing pending exits immediately.
	if !noDrain {
		if verbose && eng.Correlator().PendingCount() > 0 {
			fmt.Fprintf(os.Stderr, "End of stream, draining pending runs (up to %v)\n", cfg.Correlation.Window)
		}
		drainPending(eng.Correlator(), cfg.Correlation.Window, cfg.Correlation.SweepInterval)
	}
	eng.Stop()

	if verbose {
		fmt.Fprintf(os.Stderr, "✓ Consumed %d notifications (%d skipped)\n", consumed, skipped)
	}
	return nil
}

// drainPending sweeps at the given interval until no run is still pending.
// A run cannot resolve before its own deadline, so the bound is one
// correlation window; the trailing sweep catches runs whose deadline falls
// exactly at the bound.
func drainPending(c *correlate.Correlator, window, sweep time.Duration) {
	deadline := time.Now().Add(window)
	for c.PendingCount() > 0 && time.Now().Before(deadline) {
		time.Sleep(sweep)
		c.SweepOnce()
	}
	c.SweepOnce()
}
