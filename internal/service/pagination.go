package service

import "shop-service/internal/models"

// Pagination bounds list requests
type Pagination struct {
	DefaultLimit int
	MaxLimit     int
}

// DefaultPagination matches the page size the HTTP API documents
var DefaultPagination = Pagination{DefaultLimit: 100, MaxLimit: 1000}

// Normalize applies the default limit to zero and caps it at MaxLimit
func (p Pagination) Normalize(offset, limit int) (int, int, error) {
	if offset < 0 {
		return 0, 0, models.NewValidationError("skip", "must be non-negative")
	}
	if limit < 0 {
		return 0, 0, models.NewValidationError("limit", "must be non-negative")
	}
	if limit == 0 {
		limit = p.DefaultLimit
	}
	if p.MaxLimit > 0 && limit > p.MaxLimit {
		limit = p.MaxLimit
	}
	return offset, limit, nil
}
