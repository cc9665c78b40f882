package exporter

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/contest-maker-150/assessment/internal/domain"
)

// CSVExporter writes a leaderboard as CSV
type CSVExporter struct{}

// NewCSVExporter creates a CSV exporter
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

func (e *CSVExporter) Export(ctx context.Context, entries []domain.LeaderboardEntry, w io.Writer) error {
	csvWriter := csv.NewWriter(w)

	if err := csvWriter.Write(headers); err != nil {
		return fmt.Errorf("write header failed: %w", err)
	}

	record := make([]string, 0, len(headers))
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		record = record[:0]
		for _, v := range row(entry) {
			switch val := v.(type) {
			case int:
				record = append(record, strconv.Itoa(val))
			case float64:
				record = append(record, strconv.FormatFloat(val, 'f', -1, 64))
			default:
				record = append(record, fmt.Sprint(val))
			}
		}
		if err := csvWriter.Write(record); err != nil {
			return fmt.Errorf("write record failed: %w", err)
		}
	}

	csvWriter.Flush()
	return csvWriter.Error()
}
