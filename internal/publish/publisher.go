package publish

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/atlasci/coalesce/internal/model"
)

// Publisher hands finished artifacts to the downstream consumer boundary:
// a versioned directory per run. Emitted artifacts are immutable; a re-run
// lands in the next version directory, never on top of a prior one.
type Publisher struct {
	dir     string
	verbose bool
}

// NewPublisher creates a publisher rooted at the given artifact directory
func NewPublisher(dir string, verbose bool) *Publisher {
	return &Publisher{dir: dir, verbose: verbose}
}

// Publish writes the rendered report artifacts for one run version.
// Publishing the same version twice is an error: prior versions are immutable.
func (p *Publisher) Publish(report *model.Report, markdown, jsonBody []byte) error {
	versionDir := p.versionDir(report.RunID, report.Version)

	if _, err := os.Stat(filepath.Join(versionDir, "report.json")); err == nil {
		return fmt.Errorf("version %d for run %s already published", report.Version, report.RunID)
	}

	if err := os.MkdirAll(versionDir, 0o755); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}

	if err := os.WriteFile(filepath.Join(versionDir, "report.json"), jsonBody, 0o644); err != nil {
		return fmt.Errorf("write JSON report: %w", err)
	}
	if err := os.WriteFile(filepath.Join(versionDir, "report.md"), markdown, 0o644); err != nil {
		return fmt.Errorf("write Markdown report: %w", err)
	}

	if p.verbose {
		fmt.Fprintf(os.Stderr, "✓ Published %s report for run %s v%d\n", report.Status, report.RunID, report.Version)
	}
	return nil
}

// PublishFailure surfaces an explicit ReportGenerationFailed record for a
// run version that produced no report. Failures are never silently dropped.
func (p *Publisher) PublishFailure(rec model.FailureRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}

	versionDir := p.versionDir(rec.RunID, rec.Version)
	if err := os.MkdirAll(versionDir, 0o755); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}

	body, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal failure record: %w", err)
	}

	if err := os.WriteFile(filepath.Join(versionDir, "failure.json"), append(body, '\n'), 0o644); err != nil {
		return fmt.Errorf("write failure record: %w", err)
	}

	if p.verbose {
		fmt.Fprintf(os.Stderr, "✗ Recorded generation failure for run %s v%d: %s\n", rec.RunID, rec.Version, rec.Reason)
	}
	return nil
}

func (p *Publisher) versionDir(runID string, version int) string {
	return filepath.Join(p.dir, runID, fmt.Sprintf("v%d", version))
}
