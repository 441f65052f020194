package models

import (
	"net/url"
	"strconv"
	"time"
)

// PaymentFilters narrows a payment listing. Zero values are omitted from the
// query string.
type PaymentFilters struct {
	Status   Status
	FromDate time.Time
	ToDate   time.Time
	Limit    int
	Offset   int
}

// Query encodes the filters as URL query parameters. Dates use the
// gateway's YYYY-MM-DD form in UTC.
func (f PaymentFilters) Query() url.Values {
	q := url.Values{}
	if f.Status != "" {
		q.Set("status", string(f.Status))
	}
	if !f.FromDate.IsZero() {
		q.Set("from_date", f.FromDate.UTC().Format("2006-01-02"))
	}
	if !f.ToDate.IsZero() {
		q.Set("to_date", f.ToDate.UTC().Format("2006-01-02"))
	}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	if f.Offset > 0 {
		q.Set("offset", strconv.Itoa(f.Offset))
	}
	return q
}
