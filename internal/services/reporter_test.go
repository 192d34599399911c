package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"catalog-import-service/internal/models"
)

func TestReporterBuild_NoErrors(t *testing.T) {
	job := &models.ImportJob{Status: models.ImportJobStatusCompleted}

	f, err := NewErrorReporter().Build(job)
	assert.Nil(t, f)
	assert.ErrorIs(t, err, ErrNoErrors)
}

func TestReporterBuild_WritesOneRowPerError(t *testing.T) {
	rowErrors := models.JSONArray{
		models.RowError{
			Row:     3,
			Field:   "sku",
			Message: `SKU "TSH-001" already exists in the catalog`,
			Data:    map[string]string{"productname": "Shirt", "sku": "TSH-001"},
		},
		models.RowError{
			Row:     5,
			Field:   "unitPrice",
			Message: `unitPrice "abc" is not a valid number`,
			Data:    map[string]string{"productname": "Hat", "sku": "HAT-002"},
		},
	}
	job := &models.ImportJob{Status: models.ImportJobStatusPartial, Errors: &rowErrors}

	f, err := NewErrorReporter().Build(job)
	assert.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(reportSheet)
	assert.NoError(t, err)
	assert.Len(t, rows, 3) // header + two errors

	assert.Equal(t, []string{"Row", "Field", "Error", "Product Name", "SKU"}, rows[0])
	assert.Equal(t, "3", rows[1][0])
	assert.Equal(t, "sku", rows[1][1])
	assert.Contains(t, rows[1][2], "already exists")
	assert.Equal(t, "Shirt", rows[1][3])
	assert.Equal(t, "TSH-001", rows[1][4])
	assert.Equal(t, "5", rows[2][0])
	assert.Equal(t, "HAT-002", rows[2][4])
}

func TestReporterBuild_DecodesDatabaseLoadedErrors(t *testing.T) {
	// jsonb read back from the store yields generic maps, not RowError values
	rowErrors := models.JSONArray{
		map[string]interface{}{
			"row":     float64(4),
			"field":   "categoryId",
			"message": `category "cat-9" not found or not active`,
			"data":    map[string]interface{}{"productname": "Socks", "sku": "SCK-001"},
		},
	}
	job := &models.ImportJob{Status: models.ImportJobStatusFailed, Errors: &rowErrors}

	f, err := NewErrorReporter().Build(job)
	assert.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(reportSheet)
	assert.NoError(t, err)
	assert.Len(t, rows, 2)
	assert.Equal(t, "4", rows[1][0])
	assert.Equal(t, "categoryId", rows[1][1])
	assert.Equal(t, "Socks", rows[1][3])
}
