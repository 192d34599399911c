package services

import (
	"fmt"
	"io"
	"strings"

	"catalog-import-service/internal/models"
	"github.com/xuri/excelize/v2"
)

const (
	templateSheetProducts     = "Products"
	templateSheetInstructions = "Instructions"
)

// TemplateBuilder produces the blank catalog import workbook: an
// Instructions sheet and a Products sheet with the canonical header row
// plus one illustrative example row
type TemplateBuilder struct{}

// NewTemplateBuilder creates a new TemplateBuilder
func NewTemplateBuilder() *TemplateBuilder {
	return &TemplateBuilder{}
}

// Build assembles the two-sheet workbook. Deterministic: the same column
// configuration always yields the same header row.
func (b *TemplateBuilder) Build() (*excelize.File, error) {
	f := excelize.NewFile()
	f.SetSheetName("Sheet1", templateSheetProducts)

	columns := models.CatalogImportColumns()

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	requiredStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"C65911"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})

	for i, col := range columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(templateSheetProducts, cell, col.Name)

		if col.Required {
			f.SetCellStyle(templateSheetProducts, cell, cell, requiredStyle)
		} else {
			f.SetCellStyle(templateSheetProducts, cell, cell, headerStyle)
		}

		// example row below the header
		exampleCell, _ := excelize.CoordinatesToCellName(i+1, 2)
		f.SetCellValue(templateSheetProducts, exampleCell, col.Example)

		colName, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(templateSheetProducts, colName, colName, 20)
	}

	if err := b.writeInstructions(f, columns); err != nil {
		_ = f.Close()
		return nil, err
	}

	idx, _ := f.GetSheetIndex(templateSheetProducts)
	f.SetActiveSheet(idx)
	return f, nil
}

// WriteTo serializes the workbook to the given writer
func (b *TemplateBuilder) WriteTo(w io.Writer) error {
	f, err := b.Build()
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Write(w)
}

func (b *TemplateBuilder) writeInstructions(f *excelize.File, columns []models.ImportTemplateColumn) error {
	if _, err := f.NewSheet(templateSheetInstructions); err != nil {
		return fmt.Errorf("failed to create instructions sheet: %w", err)
	}

	f.SetCellValue(templateSheetInstructions, "A1", "Catalog Import Instructions")

	f.SetCellValue(templateSheetInstructions, "A3", "MANDATORY FIELDS:")
	f.SetCellValue(templateSheetInstructions, "A4", "productId, productName, categoryId, subCategoryId, unit, sku, unitPrice, currentStock")
	f.SetCellValue(templateSheetInstructions, "A5", "Rows missing any mandatory field are rejected; the rest of the file is still processed.")

	f.SetCellValue(templateSheetInstructions, "A7", "ALLOWED VALUES:")
	f.SetCellValue(templateSheetInstructions, "A8", fmt.Sprintf("unit: %s", strings.Join(models.ValidUnits, ", ")))
	f.SetCellValue(templateSheetInstructions, "A9", "discountType: flat, percentage (flat discounts must not exceed unitPrice; percentage must be 0-100)")
	f.SetCellValue(templateSheetInstructions, "A10", "taxType: inclusive, exclusive")
	f.SetCellValue(templateSheetInstructions, "A11", "status: active, inactive")

	f.SetCellValue(templateSheetInstructions, "A13", "IMAGE URLS:")
	f.SetCellValue(templateSheetInstructions, "A14", "imageUrl is the primary image. additionalImages takes up to 5 comma-separated URLs.")
	f.SetCellValue(templateSheetInstructions, "A15", "URLs must be valid http/https links. Images that cannot be downloaded are skipped without failing the row.")

	f.SetCellValue(templateSheetInstructions, "A17", "Column Definitions:")
	f.SetCellValue(templateSheetInstructions, "A18", "Column")
	f.SetCellValue(templateSheetInstructions, "B18", "Description")
	f.SetCellValue(templateSheetInstructions, "C18", "Required")
	f.SetCellValue(templateSheetInstructions, "D18", "Type")
	f.SetCellValue(templateSheetInstructions, "E18", "Example")

	for i, col := range columns {
		row := i + 19
		f.SetCellValue(templateSheetInstructions, fmt.Sprintf("A%d", row), col.Name)
		f.SetCellValue(templateSheetInstructions, fmt.Sprintf("B%d", row), col.Description)
		required := "Optional"
		if col.Required {
			required = "Required"
		}
		f.SetCellValue(templateSheetInstructions, fmt.Sprintf("C%d", row), required)
		f.SetCellValue(templateSheetInstructions, fmt.Sprintf("D%d", row), col.Type)
		f.SetCellValue(templateSheetInstructions, fmt.Sprintf("E%d", row), col.Example)
	}

	f.SetColWidth(templateSheetInstructions, "A", "A", 25)
	f.SetColWidth(templateSheetInstructions, "B", "B", 60)
	f.SetColWidth(templateSheetInstructions, "C", "C", 15)
	f.SetColWidth(templateSheetInstructions, "D", "D", 15)
	f.SetColWidth(templateSheetInstructions, "E", "E", 40)
	return nil
}
