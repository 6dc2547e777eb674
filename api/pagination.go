package api

import (
	"net/http"
	"strconv"
)

const (
	defaultPageLimit = 100
	maxPageLimit     = 200
)

// PaginationMeta describes the page returned by the feed.
type PaginationMeta struct {
	TotalCount int  `json:"total_count"`
	Limit      int  `json:"limit"`
	Offset     int  `json:"offset"`
	HasMore    bool `json:"has_more"`
}

// parsePagination reads the limit and offset query parameters. Anything
// missing, non-numeric or not positive falls back to the default; limit is
// capped at maxPageLimit.
func parsePagination(r *http.Request) (limit, offset int) {
	q := r.URL.Query()
	limit = min(positiveInt(q.Get("limit"), defaultPageLimit), maxPageLimit)
	offset = positiveInt(q.Get("offset"), 0)
	return limit, offset
}

func positiveInt(raw string, fallback int) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

// paginateSlice returns the [start, end) window of a total-item collection.
// An offset past the end yields an empty window.
func paginateSlice(total, limit, offset int) (start, end int, meta PaginationMeta) {
	start = min(offset, total)
	end = min(start+limit, total)
	return start, end, PaginationMeta{
		TotalCount: total,
		Limit:      limit,
		Offset:     offset,
		HasMore:    end < total,
	}
}
