package query

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getterFor(values map[string]string) Getter {
	return func(key string, defaultValue ...string) string {
		if v, ok := values[key]; ok {
			return v
		}
		if len(defaultValue) > 0 {
			return defaultValue[0]
		}
		return ""
	}
}

func TestPaginateClamping(t *testing.T) {
	// 11 rows, page size 10: page 1 holds 10, page 2 holds 1.
	page := Paginate("1", 11)
	assert.Equal(t, 1, page.Number)
	assert.Equal(t, 2, page.NumPages)
	assert.Equal(t, 0, page.Offset)
	assert.Equal(t, 10, page.Limit)

	page = Paginate("2", 11)
	assert.Equal(t, 2, page.Number)
	assert.Equal(t, 10, page.Offset)

	page = Paginate("99", 11)
	assert.Equal(t, 2, page.Number, "out-of-range page clamps to the last page")

	page = Paginate("abc", 11)
	assert.Equal(t, 1, page.Number, "non-integer page clamps to page 1")

	page = Paginate("-3", 11)
	assert.Equal(t, 2, page.Number, "a page below 1 is out of range like any other")

	page = Paginate("0", 11)
	assert.Equal(t, 2, page.Number)

	page = Paginate("-3", 5)
	assert.Equal(t, 1, page.Number, "with a single page, below-range still lands on it")

	page = Paginate("", 0)
	assert.Equal(t, 1, page.Number, "empty result set still reports one page")
	assert.Equal(t, 1, page.NumPages)
	assert.Equal(t, 0, page.Total)
}

func TestParseTaskFilters(t *testing.T) {
	f := ParseTaskFilters(getterFor(map[string]string{
		"status":      "completed",
		"assigned_to": "7",
		"due_date":    "2025-06-15",
	}))

	assert.Equal(t, "completed", f.Status)
	assert.Equal(t, 7, f.AssignedTo)
	require.NotNil(t, f.DueDate)
	assert.Equal(t, time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC), *f.DueDate)
	assert.Nil(t, f.DateFrom)
	assert.Nil(t, f.DateTo)
}

func TestParseTaskFiltersUserAlias(t *testing.T) {
	// The report endpoint sends "user" rather than "assigned_to".
	f := ParseTaskFilters(getterFor(map[string]string{"user": "3"}))
	assert.Equal(t, 3, f.AssignedTo)
}

func TestMalformedFiltersAreSkipped(t *testing.T) {
	f := ParseTaskFilters(getterFor(map[string]string{
		"status":      "archived",
		"assigned_to": "bogus",
		"due_date":    "15/06/2025",
		"date_from":   "not-a-date",
	}))

	assert.Empty(t, f.Status, "unknown status skips the filter")
	assert.Zero(t, f.AssignedTo)
	assert.Nil(t, f.DueDate, "malformed dates are ignored, not errors")
	assert.Nil(t, f.DateFrom)
}

func TestDateRangeFilters(t *testing.T) {
	f := ParseTaskFilters(getterFor(map[string]string{
		"date_from": "2025-06-01",
		"date_to":   "2025-06-30",
	}))
	require.NotNil(t, f.DateFrom)
	require.NotNil(t, f.DateTo)
	assert.True(t, f.DateFrom.Before(*f.DateTo))
}
