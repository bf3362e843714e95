package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/atlasci/coalesce/internal/engine"
	"github.com/atlasci/coalesce/internal/evidence"
	"github.com/atlasci/coalesce/internal/model"
	"github.com/atlasci/coalesce/internal/publish"
)

var (
	aggRunID   string
	aggVersion int
	graphPath  string
	rulePath   string
	aiPath     string
	aggOutDir  string
)

// aggregateCmd represents the aggregate command
var aggregateCmd = &cobra.Command{
	Use:   "aggregate",
	Short: "Run one aggregation pass from local payload files",
	Long: `Aggregate builds a report from payload files on disk instead of
fetching them from the collaborator services. Missing inputs produce a
degraded report, exactly as a correlation timeout would.

Example:
  coalesce aggregate --graph graph.json --rule rule.json --ai ai.json
  coalesce aggregate --run R1 --graph graph.json --out ./artifacts`,
	RunE: runAggregate,
}

func init() {
	rootCmd.AddCommand(aggregateCmd)

	aggregateCmd.Flags().StringVar(&aggRunID, "run", "", "run identifier (default: random)")
	aggregateCmd.Flags().IntVar(&aggVersion, "report-version", 1, "report version to stamp")
	aggregateCmd.Flags().StringVar(&graphPath, "graph", "", "graph snapshot payload (JSON)")
	aggregateCmd.Flags().StringVar(&rulePath, "rule", "", "rule-engine payload (JSON)")
	aggregateCmd.Flags().StringVar(&aiPath, "ai", "", "AI insights payload (JSON)")
	aggregateCmd.Flags().StringVar(&aggOutDir, "out", "", "artifact output directory (overrides config)")
}

func runAggregate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if aggOutDir != "" {
		cfg.Output.ArtifactDir = aggOutDir
	}

	runID := aggRunID
	if runID == "" {
		runID = uuid.NewString()
	}

	paths := map[model.SourceKind]string{
		model.SourceGraph: graphPath,
		model.SourceRule:  rulePath,
		model.SourceAI:    aiPath,
	}

	payloads := make(map[model.SourceKind]*evidence.Payload)
	for _, kind := range model.AllSourceKinds() {
		path := paths[kind]
		if path == "" {
			continue
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s payload: %w", kind, err)
		}
		payload, err := evidence.DecodePayload(runID, kind, raw)
		if err != nil {
			return fmt.Errorf("decode %s payload: %w", kind, err)
		}
		payloads[kind] = payload
	}

	if len(payloads) == 0 {
		return fmt.Errorf("at least one of --graph, --rule, --ai is required")
	}

	status := model.ReportComplete
	if len(payloads) < len(model.AllSourceKinds()) {
		status = model.ReportDegraded
	}

	eng := engine.New(cfg)
	rep, markdown, jsonBody, err := eng.BuildReport(context.Background(), runID, aggVersion, status, payloads)
	if err != nil {
		return fmt.Errorf("build report: %w", err)
	}

	publisher := publish.NewPublisher(cfg.Output.ArtifactDir, cfg.Output.Verbose)
	if err := publisher.Publish(rep, markdown, jsonBody); err != nil {
		return fmt.Errorf("publish: %w", err)
	}

	fmt.Printf("✓ Report for run %s v%d (%s): %d improvements, %d evidence items\n",
		rep.RunID, rep.Version, rep.Status,
		len(rep.Sections.Improvements.Items), len(rep.Sections.EvidenceIndex.Items))

	return nil
}
