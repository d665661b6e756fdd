package export

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"call-insights/internal/metrics"
)

const scorecardSheet = "Agent Scorecard"

var scorecardHeader = []string{
	"Agent", "Calls", "Answered", "Booked", "Booked Rate", "Avg Duration (s)", "Avg Duration",
}

// ScorecardWorkbook renders an agent scorecard as an xlsx workbook.
// The window is written above the table so an exported file is
// self-describing.
func ScorecardWorkbook(sc metrics.AgentScorecard) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	if err := f.SetSheetName(sheet, scorecardSheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	if err := f.SetCellValue(scorecardSheet, "A1", fmt.Sprintf("Window: %s .. %s", sc.Start, sc.End)); err != nil {
		return nil, err
	}

	for col, h := range scorecardHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 2)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(scorecardSheet, cell, h); err != nil {
			return nil, err
		}
	}

	for i, row := range sc.Agents {
		values := []any{
			row.Agent,
			row.Calls,
			row.Answered,
			row.Booked,
			row.BookedRate,
			row.AvgDurationSeconds,
			row.AvgDurationHMS,
		}
		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, i+3)
			if err != nil {
				return nil, err
			}
			if err := f.SetCellValue(scorecardSheet, cell, v); err != nil {
				return nil, err
			}
		}
	}

	if err := f.SetColWidth(scorecardSheet, "A", "A", 24); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf, nil
}
