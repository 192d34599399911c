package services

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ErrTemplateSheet is fatal for the whole job: without the products sheet
// no row can be processed.
var ErrTemplateSheet = errors.New("workbook has no sheet containing 'product'")

// RawRow is one spreadsheet row as read: normalized column name to raw
// string value. Missing cells are empty strings, never absent keys, so the
// validator has a single representation for "absent". The "_row" key holds
// the 1-based sheet row so errors point at the line the merchant sees even
// when the workbook has blank rows in between.
type RawRow map[string]string

// SheetRow returns the 1-based spreadsheet row this record was read from
func (r RawRow) SheetRow() int {
	n, _ := strconv.Atoi(r["_row"])
	return n
}

// Snapshot returns a copy of the row for embedding in error records
func (r RawRow) Snapshot() map[string]string {
	snap := make(map[string]string, len(r))
	for k, v := range r {
		snap[k] = v
	}
	return snap
}

// RowSource is a lazy, single-pass sequence of data rows from one uploaded
// workbook. The total row count is known up front; the sequence itself is
// not restartable.
type RowSource struct {
	file    *excelize.File
	rows    *excelize.Rows
	headers []string
	total   int
	cursor  int
}

// TotalRows returns the number of data rows the source will yield
func (s *RowSource) TotalRows() int {
	return s.total
}

// Next yields the next data row. The second return is false once the
// sequence is exhausted. Blank rows are skipped but still advance the
// sheet position tracked in "_row".
func (s *RowSource) Next() (RawRow, bool, error) {
	for s.rows.Next() {
		s.cursor++
		cells, err := s.rows.Columns()
		if err != nil {
			return nil, false, fmt.Errorf("failed to read row: %w", err)
		}
		if isEmptyRow(cells) {
			continue
		}

		row := make(RawRow, len(s.headers)+1)
		for i, header := range s.headers {
			if header == "" {
				continue
			}
			if i < len(cells) {
				row[header] = strings.TrimSpace(cells[i])
			} else {
				row[header] = ""
			}
		}
		row["_row"] = strconv.Itoa(s.cursor)
		return row, true, nil
	}
	if err := s.rows.Error(); err != nil {
		return nil, false, fmt.Errorf("failed to advance row iterator: %w", err)
	}
	return nil, false, nil
}

// CurrentRow returns the sheet row the source last visited
func (s *RowSource) CurrentRow() int {
	return s.cursor
}

// Close releases the iterator and the underlying workbook
func (s *RowSource) Close() error {
	if s.rows != nil {
		_ = s.rows.Close()
	}
	return s.file.Close()
}

// WorkbookParser converts an uploaded spreadsheet into a sequence of raw
// row records
type WorkbookParser struct{}

// NewWorkbookParser creates a new WorkbookParser
func NewWorkbookParser() *WorkbookParser {
	return &WorkbookParser{}
}

// Open opens the uploaded workbook and positions a row source on the
// products sheet. Fails with ErrTemplateSheet when no sheet name contains
// "product" (case-insensitive).
func (p *WorkbookParser) Open(path string) (*RowSource, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}

	sheet := ""
	for _, name := range f.GetSheetList() {
		if strings.Contains(strings.ToLower(name), "product") {
			sheet = name
			break
		}
	}
	if sheet == "" {
		_ = f.Close()
		return nil, ErrTemplateSheet
	}

	headers, total, err := scanSheet(f, sheet)
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	rows, err := f.Rows(sheet)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}
	// consume the header row so Next starts on data
	if rows.Next() {
		if _, err := rows.Columns(); err != nil {
			_ = rows.Close()
			_ = f.Close()
			return nil, fmt.Errorf("failed to read header row: %w", err)
		}
	}

	return &RowSource{file: f, rows: rows, headers: headers, total: total, cursor: 1}, nil
}

// scanSheet reads the header row and counts non-empty data rows so the
// job's totalRows is known before processing starts
func scanSheet(f *excelize.File, sheet string) ([]string, int, error) {
	iter, err := f.Rows(sheet)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}
	defer iter.Close()

	var headers []string
	total := 0
	first := true
	for iter.Next() {
		cells, err := iter.Columns()
		if err != nil {
			return nil, 0, fmt.Errorf("failed to read row: %w", err)
		}
		if first {
			first = false
			headers = normalizeHeaders(cells)
			continue
		}
		if !isEmptyRow(cells) {
			total++
		}
	}
	if err := iter.Error(); err != nil {
		return nil, 0, fmt.Errorf("failed to scan sheet %q: %w", sheet, err)
	}
	if headers == nil {
		return nil, 0, fmt.Errorf("sheet %q has no header row", sheet)
	}
	return headers, total, nil
}

func normalizeHeaders(cells []string) []string {
	headers := make([]string, len(cells))
	for i, cell := range cells {
		h := strings.TrimSpace(strings.ToLower(cell))
		h = strings.TrimSuffix(h, " *")
		headers[i] = h
	}
	return headers
}

func isEmptyRow(cells []string) bool {
	for _, cell := range cells {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
