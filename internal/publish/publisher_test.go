package publish

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/atlasci/coalesce/internal/model"
)

func TestPublisher_Publish(t *testing.T) {
	dir := t.TempDir()
	p := NewPublisher(dir, false)

	report := &model.Report{RunID: "R1", Version: 1, Status: model.ReportComplete}
	md := []byte("# Analysis Report: R1 v1\n")
	body := []byte("{}\n")

	if err := p.Publish(report, md, body); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(dir, "R1", "v1", "report.md"))
	if err != nil {
		t.Fatalf("read markdown: %v", err)
	}
	if string(got) != string(md) {
		t.Errorf("markdown artifact mismatch: %q", got)
	}
	if _, err := os.Stat(filepath.Join(dir, "R1", "v1", "report.json")); err != nil {
		t.Errorf("JSON artifact missing: %v", err)
	}
}

func TestPublisher_VersionsAreImmutable(t *testing.T) {
	dir := t.TempDir()
	p := NewPublisher(dir, false)

	report := &model.Report{RunID: "R1", Version: 1, Status: model.ReportComplete}
	if err := p.Publish(report, []byte("a"), []byte("{}")); err != nil {
		t.Fatalf("first publish failed: %v", err)
	}

	if err := p.Publish(report, []byte("b"), []byte("{}")); err == nil {
		t.Fatal("expected republish of the same version to fail")
	}

	// The original artifact survives the rejected attempt
	got, _ := os.ReadFile(filepath.Join(dir, "R1", "v1", "report.md"))
	if string(got) != "a" {
		t.Errorf("prior artifact was disturbed: %q", got)
	}
}

func TestPublisher_VersionsSideBySide(t *testing.T) {
	dir := t.TempDir()
	p := NewPublisher(dir, false)

	v1 := &model.Report{RunID: "R1", Version: 1, Status: model.ReportComplete}
	v2 := &model.Report{RunID: "R1", Version: 2, Status: model.ReportComplete}

	if err := p.Publish(v1, []byte("one"), []byte("{}")); err != nil {
		t.Fatalf("v1 publish failed: %v", err)
	}
	if err := p.Publish(v2, []byte("two"), []byte("{}")); err != nil {
		t.Fatalf("v2 publish failed: %v", err)
	}

	for version, want := range map[string]string{"v1": "one", "v2": "two"} {
		got, err := os.ReadFile(filepath.Join(dir, "R1", version, "report.md"))
		if err != nil {
			t.Fatalf("read %s: %v", version, err)
		}
		if string(got) != want {
			t.Errorf("%s = %q, want %q", version, got, want)
		}
	}
}

func TestPublisher_PublishFailure(t *testing.T) {
	dir := t.TempDir()
	p := NewPublisher(dir, false)

	rec := model.FailureRecord{
		RunID:    "R9",
		Version:  1,
		Reason:   "all input fetches failed",
		FailedAt: time.Now().UTC(),
	}
	if err := p.PublishFailure(rec); err != nil {
		t.Fatalf("publish failure failed: %v", err)
	}

	body, err := os.ReadFile(filepath.Join(dir, "R9", "v1", "failure.json"))
	if err != nil {
		t.Fatalf("read failure record: %v", err)
	}

	var decoded model.FailureRecord
	if err := json.Unmarshal(body, &decoded); err != nil {
		t.Fatalf("decode failure record: %v", err)
	}
	if decoded.ID == "" {
		t.Error("expected a generated failure id")
	}
	if decoded.Reason != rec.Reason || decoded.RunID != "R9" {
		t.Errorf("failure record mismatch: %+v", decoded)
	}
}
