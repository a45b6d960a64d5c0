package shared

import (
	"math"
	"net/url"
	"strconv"
)

// DefaultPerPage is used when a listing request carries no limit.
const DefaultPerPage = 50

// Pagination contains metadata for paginated listings.
type Pagination struct {
	Limit      int `json:"limit"`
	Offset     int `json:"offset"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// NewPagination computes pagination metadata.
func NewPagination(limit, offset, total int) Pagination {
	if limit <= 0 {
		limit = DefaultPerPage
	}
	if offset < 0 {
		offset = 0
	}
	totalPages := int(math.Ceil(float64(total) / float64(limit)))
	return Pagination{Limit: limit, Offset: offset, Total: total, TotalPages: totalPages}
}

// ParseLimitOffset reads ?limit= and ?offset= with sane bounds.
func ParseLimitOffset(q url.Values, maxLimit int) (int, int) {
	limit, _ := strconv.Atoi(q.Get("limit"))
	if limit <= 0 {
		limit = DefaultPerPage
	}
	if maxLimit > 0 && limit > maxLimit {
		limit = maxLimit
	}
	offset, _ := strconv.Atoi(q.Get("offset"))
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
