package handlers

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	DefaultLimit = 10
	MaxLimit     = 200
)

type PaginationParams struct {
	Page  int
	Limit int
}

type PageResponse struct {
	Records      interface{} `json:"records"`
	TotalPages   int         `json:"total_pages"`
	CurrentPage  int         `json:"current_page"`
	TotalRecords int64       `json:"total_records"`
}

func ParsePagination(c *gin.Context) PaginationParams {
	p := PaginationParams{Page: 1, Limit: DefaultLimit}

	if pageStr := c.Query("page"); pageStr != "" {
		if n, err := strconv.Atoi(pageStr); err == nil && n > 0 {
			p.Page = n
		}
	}
	if limitStr := c.Query("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			p.Limit = l
		}
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	return p
}

func NewPageResponse(records interface{}, total int64, p PaginationParams) PageResponse {
	pages := int((total + int64(p.Limit) - 1) / int64(p.Limit))
	return PageResponse{
		Records:      records,
		TotalPages:   pages,
		CurrentPage:  p.Page,
		TotalRecords: total,
	}
}

// ParseDateRange reads startDate and endDate as RFC 3339 timestamps or plain
// dates. A plain endDate covers the whole day.
func ParseDateRange(c *gin.Context) (from, to *time.Time, err error) {
	if s := c.Query("startDate"); s != "" {
		t, _, err := parseDate(s)
		if err != nil {
			return nil, nil, err
		}
		from = &t
	}
	if s := c.Query("endDate"); s != "" {
		t, dateOnly, err := parseDate(s)
		if err != nil {
			return nil, nil, err
		}
		if dateOnly {
			t = t.Add(24*time.Hour - time.Nanosecond)
		}
		to = &t
	}
	return from, to, nil
}

func parseDate(s string) (time.Time, bool, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, false, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	return t, true, err
}
