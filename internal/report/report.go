// Package report exports per-image run results in parquet format for
// later analysis.
package report

import (
	"fmt"
	"os"

	"github.com/parquet-go/parquet-go"

	"github.com/pixelsense/pixelsense/internal/classify"
	"github.com/pixelsense/pixelsense/internal/organize"
)

// Row is one terminal outcome in the results export. Query-mode rows
// leave the category columns empty and vice versa.
type Row struct {
	RunID        string  `parquet:"run_id"`
	Path         string  `parquet:"path"`
	Mode         string  `parquet:"mode"`
	Matches      bool    `parquet:"matches"`
	Confidence   float64 `parquet:"confidence"`
	MainCategory string  `parquet:"main_category"`
	SubCategory  string  `parquet:"sub_category"`
	Destination  string  `parquet:"destination"`
	Retries      int32   `parquet:"retries"`
	Error        string  `parquet:"error"`
}

// QueryRows converts query-mode outcomes into export rows.
func QueryRows(runID string, outcomes []classify.Outcome[classify.QueryJudgment], plan organize.Plan) []Row {
	dests := destIndex(plan)
	rows := make([]Row, 0, len(outcomes))
	for _, out := range outcomes {
		row := Row{
			RunID:   runID,
			Path:    out.Ref.Path,
			Mode:    "query",
			Retries: int32(out.Retries),
		}
		if out.Err != nil {
			row.Error = out.Err.Message
		} else {
			row.Matches = out.Judgment.Matches
			if out.Judgment.Confidence != nil {
				row.Confidence = *out.Judgment.Confidence
			}
			row.Destination = dests[out.Ref.Path]
		}
		rows = append(rows, row)
	}
	return rows
}

// CategoryRows converts auto-categorize outcomes into export rows.
func CategoryRows(runID string, outcomes []classify.Outcome[classify.CategoryJudgment], plan organize.Plan) []Row {
	dests := destIndex(plan)
	rows := make([]Row, 0, len(outcomes))
	for _, out := range outcomes {
		row := Row{
			RunID:   runID,
			Path:    out.Ref.Path,
			Mode:    "categorize",
			Retries: int32(out.Retries),
		}
		if out.Err != nil {
			row.Error = out.Err.Message
		} else {
			row.MainCategory = out.Judgment.Main
			row.SubCategory = out.Judgment.Sub
			row.Destination = dests[out.Ref.Path]
		}
		rows = append(rows, row)
	}
	return rows
}

// Write serializes the rows to a parquet file at path.
func Write(path string, rows []Row) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create results file: %w", err)
	}

	writer := parquet.NewGenericWriter[Row](file)
	if _, err := writer.Write(rows); err != nil {
		file.Close()
		return fmt.Errorf("failed to write results rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		file.Close()
		return fmt.Errorf("failed to finalize results file: %w", err)
	}
	return file.Close()
}

func destIndex(plan organize.Plan) map[string]string {
	dests := make(map[string]string, len(plan.Entries))
	for _, entry := range plan.Entries {
		dests[entry.Ref.Path] = entry.Dest
	}
	return dests
}
