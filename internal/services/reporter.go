package services

import (
	"encoding/json"
	"errors"
	"fmt"

	"catalog-import-service/internal/models"
	"github.com/xuri/excelize/v2"
)

// ErrNoErrors indicates the job has no row errors to report on
var ErrNoErrors = errors.New("import job has no errors")

const reportSheet = "Errors"

// ErrorReporter renders a job's row errors as a downloadable workbook so
// merchants can fix and re-upload the failed rows.
type ErrorReporter struct{}

// NewErrorReporter creates a new ErrorReporter
func NewErrorReporter() *ErrorReporter {
	return &ErrorReporter{}
}

// Build returns an error report workbook for the job, or ErrNoErrors when
// the job finished without row errors.
func (r *ErrorReporter) Build(job *models.ImportJob) (*excelize.File, error) {
	rowErrors := decodeRowErrors(job.Errors)
	if len(rowErrors) == 0 {
		return nil, ErrNoErrors
	}

	f := excelize.NewFile()
	f.SetSheetName("Sheet1", reportSheet)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"C65911"}, Pattern: 1},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	headers := []string{"Row", "Field", "Error", "Product Name", "SKU"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(reportSheet, cell, header)
		f.SetCellStyle(reportSheet, cell, cell, headerStyle)
	}

	for i, rowErr := range rowErrors {
		rowIdx := i + 2
		f.SetCellValue(reportSheet, fmt.Sprintf("A%d", rowIdx), rowErr.Row)
		f.SetCellValue(reportSheet, fmt.Sprintf("B%d", rowIdx), rowErr.Field)
		f.SetCellValue(reportSheet, fmt.Sprintf("C%d", rowIdx), rowErr.Message)
		f.SetCellValue(reportSheet, fmt.Sprintf("D%d", rowIdx), rowErr.Data["productname"])
		f.SetCellValue(reportSheet, fmt.Sprintf("E%d", rowIdx), rowErr.Data["sku"])
	}

	f.SetColWidth(reportSheet, "A", "A", 8)
	f.SetColWidth(reportSheet, "B", "B", 18)
	f.SetColWidth(reportSheet, "C", "C", 70)
	f.SetColWidth(reportSheet, "D", "E", 25)

	return f, nil
}

// decodeRowErrors converts the stored jsonb error list back into typed row
// errors. Elements may be RowError values set in-process or generic maps
// loaded from the database, so each goes through a JSON round trip.
func decodeRowErrors(stored *models.JSONArray) []models.RowError {
	if stored == nil {
		return nil
	}
	out := make([]models.RowError, 0, len(*stored))
	for _, raw := range *stored {
		data, err := json.Marshal(raw)
		if err != nil {
			continue
		}
		var rowErr models.RowError
		if err := json.Unmarshal(data, &rowErr); err != nil {
			continue
		}
		out = append(out, rowErr)
	}
	return out
}
