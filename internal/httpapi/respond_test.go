package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestPageParams(t *testing.T) {
	cases := []struct {
		query     string
		wantPage  int
		wantLimit int
	}{
		{"", 1, 20},
		{"?page=3&limit=5", 3, 5},
		{"?page=0&limit=-1", 1, 20},
		{"?page=abc&limit=1000", 1, 100},
	}
	for _, tc := range cases {
		page, limit := pageParams(httptest.NewRequest(http.MethodGet, "/"+tc.query, nil), 20, 100)
		if page != tc.wantPage || limit != tc.wantLimit {
			t.Fatalf("%q: got page=%d limit=%d, want %d/%d", tc.query, page, limit, tc.wantPage, tc.wantLimit)
		}
	}
}

func TestPageParamsHugePageKeepsOffsetPositive(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?page=9223372036854775807&limit=100", nil)
	page, limit := pageParams(req, 20, 100)
	if offset := (page - 1) * limit; offset < 0 {
		t.Fatalf("offset overflowed: page=%d limit=%d offset=%d", page, limit, offset)
	}
	if page < 2 {
		t.Fatalf("expected a large page, got %d", page)
	}
}
