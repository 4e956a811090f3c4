package workbooks

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"payslips/internal/domain/payroll"
)

var ErrNotFound = errors.New("workbook not found")

type Workbook struct {
	ID         string
	Filename   string
	Sheet      *payroll.Sheet
	UploadedAt time.Time
	ExpiresAt  time.Time
}

// Store keeps parsed uploads in memory until they expire.
type Store struct {
	mu    sync.Mutex
	items map[string]Workbook
	ttl   time.Duration
	now   func() time.Time
}

func NewStore(ttl time.Duration) *Store {
	return &Store{items: map[string]Workbook{}, ttl: ttl, now: time.Now}
}

func (s *Store) Put(filename string, sheet *payroll.Sheet) Workbook {
	now := s.now()
	wb := Workbook{
		ID:         uuid.NewString(),
		Filename:   filename,
		Sheet:      sheet,
		UploadedAt: now,
		ExpiresAt:  now.Add(s.ttl),
	}
	s.mu.Lock()
	s.items[wb.ID] = wb
	s.mu.Unlock()
	return wb
}

// Get returns a live workbook and extends its expiry.
func (s *Store) Get(id string) (Workbook, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wb, ok := s.items[id]
	now := s.now()
	if !ok || !now.Before(wb.ExpiresAt) {
		delete(s.items, id)
		return Workbook{}, ErrNotFound
	}
	wb.ExpiresAt = now.Add(s.ttl)
	s.items[id] = wb
	return wb, nil
}

func (s *Store) Delete(id string) {
	s.mu.Lock()
	delete(s.items, id)
	s.mu.Unlock()
}

// Sweep removes expired workbooks and returns how many were dropped.
func (s *Store) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, wb := range s.items {
		if !now.Before(wb.ExpiresAt) {
			delete(s.items, id)
			removed++
		}
	}
	return removed
}
