package services

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/xuri/excelize/v2"
)

// writeWorkbook saves a single-sheet workbook to a temp file and returns
// its path
func writeWorkbook(t *testing.T, sheet string, rows [][]interface{}) string {
	t.Helper()
	f := excelize.NewFile()
	f.SetSheetName("Sheet1", sheet)
	for i, row := range rows {
		for j, val := range row {
			cell, _ := excelize.CoordinatesToCellName(j+1, i+1)
			f.SetCellValue(sheet, cell, val)
		}
	}
	path := filepath.Join(t.TempDir(), "upload.xlsx")
	assert.NoError(t, f.SaveAs(path))
	assert.NoError(t, f.Close())
	return path
}

func TestOpen_SelectsProductSheet(t *testing.T) {
	f := excelize.NewFile()
	f.SetSheetName("Sheet1", "Instructions")
	_, err := f.NewSheet("My Products")
	assert.NoError(t, err)
	f.SetCellValue("My Products", "A1", "sku")
	f.SetCellValue("My Products", "A2", "TSH-001")
	path := filepath.Join(t.TempDir(), "upload.xlsx")
	assert.NoError(t, f.SaveAs(path))
	assert.NoError(t, f.Close())

	source, err := NewWorkbookParser().Open(path)
	assert.NoError(t, err)
	defer source.Close()

	assert.Equal(t, 1, source.TotalRows())
	row, ok, err := source.Next()
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "TSH-001", row["sku"])
}

func TestOpen_NoProductSheet(t *testing.T) {
	path := writeWorkbook(t, "Data", [][]interface{}{{"sku"}, {"TSH-001"}})

	source, err := NewWorkbookParser().Open(path)
	assert.Nil(t, source)
	assert.ErrorIs(t, err, ErrTemplateSheet)
}

func TestOpen_NormalizesHeaders(t *testing.T) {
	path := writeWorkbook(t, "Products", [][]interface{}{
		{"productId *", " SKU ", "Unit Price"},
		{"PRD-001", "TSH-001", "29.99"},
	})

	source, err := NewWorkbookParser().Open(path)
	assert.NoError(t, err)
	defer source.Close()

	row, ok, err := source.Next()
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "PRD-001", row["productid"])
	assert.Equal(t, "TSH-001", row["sku"])
	assert.Equal(t, "29.99", row["unit price"])
}

func TestRowSource_SkipsEmptyRows(t *testing.T) {
	path := writeWorkbook(t, "Products", [][]interface{}{
		{"sku", "productName"},
		{"TSH-001", "Shirt"},
		{"", ""},
		{"TSH-002", "Other Shirt"},
	})

	source, err := NewWorkbookParser().Open(path)
	assert.NoError(t, err)
	defer source.Close()

	assert.Equal(t, 2, source.TotalRows())

	first, ok, err := source.Next()
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "TSH-001", first["sku"])

	second, ok, err := source.Next()
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "TSH-002", second["sku"])

	_, ok, err = source.Next()
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestRowSource_TracksSheetRowAcrossBlankRows(t *testing.T) {
	// row 3 is left entirely blank, data sits on sheet rows 2 and 4
	path := writeWorkbook(t, "Products", [][]interface{}{
		{"sku", "productName"},
		{"TSH-001", "Shirt"},
		{},
		{"TSH-002", "Other Shirt"},
	})

	source, err := NewWorkbookParser().Open(path)
	assert.NoError(t, err)
	defer source.Close()

	first, ok, err := source.Next()
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 2, first.SheetRow())

	second, ok, err := source.Next()
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "TSH-002", second["sku"])
	assert.Equal(t, 4, second.SheetRow())
}

func TestRowSource_MissingTrailingCells(t *testing.T) {
	path := writeWorkbook(t, "Products", [][]interface{}{
		{"sku", "productName", "brand"},
		{"TSH-001"},
	})

	source, err := NewWorkbookParser().Open(path)
	assert.NoError(t, err)
	defer source.Close()

	row, ok, err := source.Next()
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "TSH-001", row["sku"])
	assert.Equal(t, "", row["productname"])
	assert.Equal(t, "", row["brand"])
}
