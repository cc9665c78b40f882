package exporter

import (
	"context"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/contest-maker-150/assessment/internal/domain"
)

const sheetName = "Leaderboard"

// XLSXExporter writes a leaderboard as an Excel workbook
type XLSXExporter struct {
	logger *zap.Logger
}

// NewXLSXExporter creates an Excel exporter
func NewXLSXExporter(logger *zap.Logger) *XLSXExporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &XLSXExporter{logger: logger}
}

func (e *XLSXExporter) Export(ctx context.Context, entries []domain.LeaderboardEntry, w io.Writer) error {
	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			e.logger.Error("Close excel file failed", zap.Error(err))
		}
	}()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("rename sheet failed: %w", err)
	}

	if err := e.writeHeader(f); err != nil {
		return fmt.Errorf("write header failed: %w", err)
	}

	for i, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		for col, value := range row(entry) {
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				return fmt.Errorf("get cell name failed: %w", err)
			}
			if err := f.SetCellValue(sheetName, cell, value); err != nil {
				return fmt.Errorf("set cell value failed: %w", err)
			}
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write excel file failed: %w", err)
	}
	return nil
}

func (e *XLSXExporter) writeHeader(f *excelize.File) error {
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{
			Bold: true,
		},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E0E0E0"},
			Pattern: 1,
		},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		return fmt.Errorf("create header style failed: %w", err)
	}

	for col, header := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return fmt.Errorf("get cell name failed: %w", err)
		}
		if err := f.SetCellValue(sheetName, cell, header); err != nil {
			return fmt.Errorf("set header value failed: %w", err)
		}
		if err := f.SetCellStyle(sheetName, cell, cell, headerStyle); err != nil {
			return fmt.Errorf("set header style failed: %w", err)
		}
	}

	columnWidths := map[string]float64{
		"A": 8,
		"B": 24,
		"C": 28,
		"D": 12,
	}
	for col, width := range columnWidths {
		if err := f.SetColWidth(sheetName, col, col, width); err != nil {
			return fmt.Errorf("set column width failed: %w", err)
		}
	}
	return nil
}
