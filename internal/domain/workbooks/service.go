package workbooks

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"payslips/internal/domain/payroll"
	"payslips/internal/platform/spreadsheet"
)

type Service struct {
	Store *Store
}

func NewService(store *Store) *Service {
	return &Service{Store: store}
}

// Upload reads and validates a payroll file. Schema errors are returned before
// anything is stored.
func (s *Service) Upload(r io.Reader, filename string) (Workbook, error) {
	filename = filepath.Base(filename)
	rows, err := spreadsheet.ReadRows(r, filename)
	if err != nil {
		return Workbook{}, err
	}
	sheet, err := payroll.ParseSheet(rows)
	if err != nil {
		return Workbook{}, err
	}
	wb := s.Store.Put(filename, sheet)
	slog.Info("workbook uploaded", "workbookId", wb.ID, "records", sheet.Len(), "months", len(sheet.Months()))
	return wb, nil
}

func (s *Service) Get(id string) (Workbook, error) {
	return s.Store.Get(id)
}

// Records returns the rows for month, or payroll.ErrNoRecords.
func (s *Service) Records(id, month string) (Workbook, []payroll.Record, error) {
	wb, err := s.Store.Get(id)
	if err != nil {
		return Workbook{}, nil, err
	}
	records := wb.Sheet.Records(month)
	if len(records) == 0 {
		return wb, nil, fmt.Errorf("%w: %q", payroll.ErrNoRecords, month)
	}
	return wb, records, nil
}

func (s *Service) Record(id, month string, row int) (payroll.Record, error) {
	wb, err := s.Store.Get(id)
	if err != nil {
		return payroll.Record{}, err
	}
	rec, ok := wb.Sheet.Record(month, row)
	if !ok {
		return payroll.Record{}, fmt.Errorf("%w: row %d in %q", payroll.ErrNoRecords, row, month)
	}
	return rec, nil
}

func (s *Service) Delete(id string) {
	s.Store.Delete(id)
}
