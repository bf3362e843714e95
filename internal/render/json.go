package render

import (
	"encoding/json"
	"fmt"

	"github.com/atlasci/coalesce/internal/model"
)

// JSON renders the report as indented JSON. Struct field order follows the
// model's fixed section order and encoding/json sorts the evidence-index
// keys, so the output is byte-stable for identical reports.
func (r *Renderer) JSON(report *model.Report) ([]byte, error) {
	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal report: %w", err)
	}
	return append(out, '\n'), nil
}

// DecodeJSON parses a rendered JSON report back into the document tree.
// Round-tripping is used by downstream consumers and the structural
// equivalence checks.
func DecodeJSON(data []byte) (*model.Report, error) {
	var report model.Report
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("unmarshal report: %w", err)
	}
	return &report, nil
}
