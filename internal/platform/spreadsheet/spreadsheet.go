package spreadsheet

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
)

// xlsMaxCols is the BIFF8 column limit.
const xlsMaxCols = 256

var (
	ErrUnsupportedFormat = errors.New("unsupported spreadsheet format")
	ErrEmptyWorkbook     = errors.New("workbook has no rows")
)

// Supported reports whether filename has an extension ReadRows understands.
func Supported(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xlsm", ".xls", ".csv":
		return true
	}
	return false
}

// ReadRows returns the cells of the first worksheet as strings. The format is
// picked from the filename extension.
func ReadRows(r io.Reader, filename string) ([][]string, error) {
	if !Supported(filename) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(filename))
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var rows [][]string
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xls":
		rows, err = readXLS(data)
	case ".csv":
		rows, err = readCSV(data)
	default:
		rows, err = readXLSX(data)
	}
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrEmptyWorkbook
	}
	return rows, nil
}

func readXLSX(data []byte) ([][]string, error) {
	file, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer func() { _ = file.Close() }()

	sheetName := file.GetSheetName(0)
	if sheetName == "" {
		return nil, ErrEmptyWorkbook
	}
	rows, err := file.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("read worksheet %q: %w", sheetName, err)
	}
	return rows, nil
}

func readXLS(data []byte) ([][]string, error) {
	workbook, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	sheet := workbook.GetSheet(0)
	if sheet == nil {
		return nil, ErrEmptyWorkbook
	}
	return gridRows(xlsSheet{sheet: sheet}), nil
}

type cellReader interface {
	Col(i int) string
}

type sheetGrid interface {
	maxRow() int
	row(i int) (cellReader, bool)
}

type xlsSheet struct {
	sheet *xls.WorkSheet
}

func (s xlsSheet) maxRow() int {
	return int(s.sheet.MaxRow)
}

func (s xlsSheet) row(i int) (row cellReader, ok bool) {
	// WorkSheet.Row dereferences a nil entry for rows the file never wrote.
	defer func() {
		if recover() != nil {
			row, ok = nil, false
		}
	}()
	return s.sheet.Row(i), true
}

// gridRows reads one worksheet row by row. Absent rows come back empty so row
// numbers line up with the sheet; trailing blank cells and rows are dropped.
// Every column up to the format limit is read because Row.LastCol is zero
// when a writer omits ROW records.
func gridRows(g sheetGrid) [][]string {
	var rows [][]string
	lastFilled := -1
	for i := 0; i <= g.maxRow(); i++ {
		var cells []string
		if row, ok := g.row(i); ok {
			for j := 0; j < xlsMaxCols; j++ {
				if v := row.Col(j); v != "" {
					for len(cells) < j {
						cells = append(cells, "")
					}
					cells = append(cells, v)
				}
			}
		}
		if len(cells) > 0 {
			lastFilled = i
		}
		rows = append(rows, cells)
	}
	return rows[:lastFilled+1]
}

func readCSV(data []byte) ([][]string, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return rows, nil
}
