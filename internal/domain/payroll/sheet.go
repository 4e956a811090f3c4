package payroll

import (
	"sort"
	"strings"
	"time"

	"golang.org/x/text/cases"
)

// Sheet is a validated payroll spreadsheet: the header carried every required
// column and each non-blank row became a Record.
type Sheet struct {
	Columns []string
	records []Record
}

var monthLayouts = []string{
	"January 2006",
	"Jan 2006",
	"January-2006",
	"Jan-2006",
	"Jan-06",
	"2006-01",
	"01/2006",
	"1/2006",
}

func ParseSheet(rows [][]string) (*Sheet, error) {
	headerAt := -1
	for i, row := range rows {
		if !blankRow(row) {
			headerAt = i
			break
		}
	}
	if headerAt < 0 {
		return nil, ErrEmptySheet
	}

	header := rows[headerAt]
	index := make(map[string]int, len(header))
	columns := make([]string, 0, len(header))
	for i, h := range header {
		name := strings.TrimSpace(h)
		if name == "" {
			continue
		}
		columns = append(columns, name)
		key := normalizeHeader(name)
		if _, seen := index[key]; !seen {
			index[key] = i
		}
	}

	var missing []string
	for _, col := range RequiredColumns {
		if _, ok := index[normalizeHeader(col)]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, &MissingColumnsError{Columns: missing}
	}

	col := func(row []string, name string) string {
		idx, ok := index[normalizeHeader(name)]
		if !ok {
			return ""
		}
		return cellValue(row, idx)
	}

	sheet := &Sheet{Columns: columns}
	for i := headerAt + 1; i < len(rows); i++ {
		row := rows[i]
		if blankRow(row) {
			continue
		}
		sheet.records = append(sheet.records, Record{
			Row:         i + 1,
			Name:        col(row, ColName),
			Email:       col(row, ColEmail),
			EmployeeID:  col(row, ColEmployeeID),
			Department:  col(row, ColDepartment),
			Position:    col(row, ColPosition),
			Month:       col(row, ColMonth),
			PIN:         normalizePIN(col(row, ColPIN)),
			BasicSalary: ParseAmount(col(row, ColBasicSalary)),
			Overtime:    ParseAmount(col(row, ColOvertime)),
			Allowance:   ParseAmount(col(row, ColAllowance)),
			Bonus:       ParseAmount(col(row, ColBonus)),
			PAYETax:     ParseAmount(col(row, ColPAYETax)),
			SHA:         ParseAmount(col(row, ColSHA)),
			NSSF:        ParseAmount(col(row, ColNSSF)),
			Penalties:   ParseAmount(col(row, ColPenalties)),
			Deductions:  ParseAmount(col(row, ColDeductions)),
			NetSalary:   ParseAmount(col(row, ColNetSalary)),
		})
	}
	return sheet, nil
}

func (s *Sheet) Len() int {
	return len(s.records)
}

// Months lists the distinct pay periods. When every label reads as a month
// and year they are ordered by date, otherwise alphabetically.
func (s *Sheet) Months() []string {
	seen := map[string]bool{}
	var months []string
	for _, rec := range s.records {
		m := strings.TrimSpace(rec.Month)
		if m == "" || seen[m] {
			continue
		}
		seen[m] = true
		months = append(months, m)
	}

	dates := make(map[string]time.Time, len(months))
	for _, m := range months {
		parsed, ok := parseMonth(m)
		if !ok {
			sort.Strings(months)
			return months
		}
		dates[m] = parsed
	}
	sort.SliceStable(months, func(i, j int) bool {
		return dates[months[i]].Before(dates[months[j]])
	})
	return months
}

func (s *Sheet) MonthCounts() map[string]int {
	counts := map[string]int{}
	for _, rec := range s.records {
		if m := strings.TrimSpace(rec.Month); m != "" {
			counts[m]++
		}
	}
	return counts
}

// Records returns a copy of the rows whose Month equals month.
func (s *Sheet) Records(month string) []Record {
	month = strings.TrimSpace(month)
	var out []Record
	for _, rec := range s.records {
		if strings.TrimSpace(rec.Month) == month {
			out = append(out, rec)
		}
	}
	return out
}

func (s *Sheet) Record(month string, row int) (Record, bool) {
	for _, rec := range s.Records(month) {
		if rec.Row == row {
			return rec, true
		}
	}
	return Record{}, false
}

func parseMonth(label string) (time.Time, bool) {
	for _, layout := range monthLayouts {
		if parsed, err := time.Parse(layout, label); err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}

func normalizeHeader(header string) string {
	return cases.Fold().String(strings.Join(strings.Fields(header), " "))
}

func cellValue(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func blankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// normalizePIN undoes spreadsheet number formatting such as "1234.0".
func normalizePIN(raw string) string {
	pin := strings.TrimSpace(raw)
	if whole, ok := strings.CutSuffix(pin, ".0"); ok && whole != "" && strings.Trim(whole, "0123456789") == "" {
		return whole
	}
	return pin
}
