// Package exporter writes ranked leaderboards as spreadsheets.
package exporter

import (
	"context"
	"io"

	"github.com/contest-maker-150/assessment/internal/domain"
)

// Format is an export file format
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ContentType returns the MIME type of the format
func (f Format) ContentType() string {
	switch f {
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "text/csv; charset=utf-8"
	}
}

// Suffix returns the file extension of the format
func (f Format) Suffix() string {
	return "." + string(f)
}

// LeaderboardExporter writes ranked entries to w
type LeaderboardExporter interface {
	Export(ctx context.Context, entries []domain.LeaderboardEntry, w io.Writer) error
}

var headers = []string{"Rank", "Participant", "Participant ID", "Points"}

func row(e domain.LeaderboardEntry) []interface{} {
	name := e.Participant.Username
	if name == "" {
		name = e.Participant.ID
	}
	return []interface{}{e.Rank, name, e.Participant.ID, e.TotalScore}
}

// Factory returns the exporter of a format
type Factory struct {
	exporters map[Format]LeaderboardExporter
}

// NewFactory creates a factory with every supported format
func NewFactory() *Factory {
	return &Factory{
		exporters: map[Format]LeaderboardExporter{
			FormatCSV:  NewCSVExporter(),
			FormatXLSX: NewXLSXExporter(nil),
		},
	}
}

// Get returns the exporter of format, or false when the format is unknown
func (f *Factory) Get(format Format) (LeaderboardExporter, bool) {
	exp, ok := f.exporters[format]
	return exp, ok
}
