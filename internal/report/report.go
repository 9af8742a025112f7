// Package report writes the output table for downstream consumers.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/xuri/excelize/v2"

	"github.com/wakala/glrecon/internal/domain"
)

// CSVHeader is the output table header.
var CSVHeader = []string{"account", "anomaly", "comments"}

// WriteCSV writes the account,anomaly,comments table.
func WriteCSV(w io.Writer, verdicts []domain.Verdict) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return err
	}
	for _, v := range verdicts {
		if err := cw.Write([]string{
			strconv.FormatInt(v.Account, 10), string(v.Anomaly), v.Comment,
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

const (
	verdictSheet = "Verdicts"
	summarySheet = "Summary"
)

var xlsxHeaders = []string{
	"Account", "Anomaly", "Comments", "Outcome", "Records", "Anomalous Records",
	"Most Anomalous Date", "Max Break (USD)", "Run ID",
}

// WriteXLSX writes the verdicts and a per-outcome summary as a workbook.
func WriteXLSX(w io.Writer, verdicts []domain.Verdict) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", verdictSheet); err != nil {
		return err
	}

	if err := f.SetSheetRow(verdictSheet, "A1", &xlsxHeaders); err != nil {
		return err
	}
	for i, v := range verdicts {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []interface{}{
			v.Account, string(v.Anomaly), v.Comment, string(v.Outcome), v.RecordCount,
			v.AnomalousRecords, v.MostAnomalousDate, v.MaxBreakUSD, v.RunID,
		}
		if err := f.SetSheetRow(verdictSheet, cell, &row); err != nil {
			return err
		}
	}

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E0E0E0"}, Pattern: 1},
	})
	lastHeader, _ := excelize.CoordinatesToCellName(len(xlsxHeaders), 1)
	f.SetCellStyle(verdictSheet, "A1", lastHeader, headerStyle)

	// Highlight anomalous accounts.
	flagStyle, _ := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#FFE6E6"}, Pattern: 1},
	})
	for i, v := range verdicts {
		if v.Anomaly != domain.AnomalyYes {
			continue
		}
		first, _ := excelize.CoordinatesToCellName(1, i+2)
		last, _ := excelize.CoordinatesToCellName(len(xlsxHeaders), i+2)
		f.SetCellStyle(verdictSheet, first, last, flagStyle)
	}

	widths := []float64{12, 10, 50, 22, 10, 18, 20, 16, 38}
	for i, width := range widths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(verdictSheet, col, col, width)
	}
	numericStyle, _ := f.NewStyle(&excelize.Style{NumFmt: 2})
	f.SetColStyle(verdictSheet, "H", numericStyle)

	if err := writeSummary(f, verdicts); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeSummary(f *excelize.File, verdicts []domain.Verdict) error {
	if _, err := f.NewSheet(summarySheet); err != nil {
		return err
	}

	counts := map[domain.Outcome]int{}
	anomalous := 0
	for _, v := range verdicts {
		counts[v.Outcome]++
		if v.Anomaly == domain.AnomalyYes {
			anomalous++
		}
	}

	rows := [][]interface{}{
		{"Metric", "Value"},
		{"Accounts", len(verdicts)},
		{"Anomalous accounts", anomalous},
	}
	for _, o := range []domain.Outcome{
		domain.OutcomeModeled, domain.OutcomeConstant, domain.OutcomeInsufficientHistory,
		domain.OutcomeDataQuality, domain.OutcomeFitFailure,
	} {
		rows = append(rows, []interface{}{string(o), counts[o]})
	}

	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(summarySheet, cell, &row); err != nil {
			return err
		}
	}
	return nil
}
