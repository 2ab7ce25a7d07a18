// Package query parses listing filters and computes fixed-size pagination.
// Malformed optional inputs degrade gracefully: a bad date or status skips
// that filter, a bad page number falls back to page 1.
package query

import (
	"strconv"
	"time"

	"taskforge/internal/models"
)

const PageSize = 10

const dateLayout = "2006-01-02"

// TaskFilters holds the optional listing filters already validated. Nil
// means "not filtered".
type TaskFilters struct {
	Status     string
	AssignedTo int
	DueDate    *time.Time
	DateFrom   *time.Time
	DateTo     *time.Time
}

// Getter matches fiber's c.Query signature.
type Getter func(key string, defaultValue ...string) string

// ParseTaskFilters reads status, assigned_to/user, due_date, date_from and
// date_to from plain query inputs. Dates are date-only granularity.
func ParseTaskFilters(get Getter) TaskFilters {
	var f TaskFilters

	if s := get("status"); models.ValidStatus(s) {
		f.Status = s
	}

	assigned := get("assigned_to")
	if assigned == "" {
		assigned = get("user")
	}
	if id, err := strconv.Atoi(assigned); err == nil && id > 0 {
		f.AssignedTo = id
	}

	f.DueDate = parseDate(get("due_date"))
	f.DateFrom = parseDate(get("date_from"))
	f.DateTo = parseDate(get("date_to"))
	return f
}

func parseDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return nil
	}
	return &t
}

// Page describes one page of a result set, 1-indexed.
type Page struct {
	Number   int `json:"page"`
	NumPages int `json:"num_pages"`
	Total    int `json:"total"`
	Offset   int `json:"-"`
	Limit    int `json:"-"`
}

// Paginate clamps the raw page input against the total row count: a
// non-integer page becomes 1, an integer outside the valid range on either
// side becomes the last page. An empty result set still reports one (empty)
// page.
func Paginate(raw string, total int) Page {
	numPages := (total + PageSize - 1) / PageSize
	if numPages < 1 {
		numPages = 1
	}

	page, err := strconv.Atoi(raw)
	if err != nil {
		page = 1
	}
	if page < 1 || page > numPages {
		page = numPages
	}

	return Page{
		Number:   page,
		NumPages: numPages,
		Total:    total,
		Offset:   (page - 1) * PageSize,
		Limit:    PageSize,
	}
}
