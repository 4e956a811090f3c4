package shared

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestParsePaginationAndWindow(t *testing.T) {
	tests := []struct {
		query      string
		total      int
		start, end int
	}{
		{query: "", total: 120, start: 0, end: 50},
		{query: "?limit=10&offset=5", total: 120, start: 5, end: 15},
		{query: "?limit=1000", total: 300, start: 0, end: 200},
		{query: "?limit=-1&offset=x", total: 3, start: 0, end: 3},
		{query: "?offset=500", total: 20, start: 20, end: 20},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.query, func(t *testing.T) {
			page := ParsePagination(httptest.NewRequest(http.MethodGet, "/"+tc.query, nil), 50, 200)
			start, end := page.Window(tc.total)
			if start != tc.start || end != tc.end {
				t.Fatalf("expected [%d:%d], got [%d:%d]", tc.start, tc.end, start, end)
			}
		})
	}
}
