package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ledgermail/core/internal/storage"
)

const dateOnlyLayout = "2006-01-02"

// Amount is a monetary amount accepted as a JSON number or a numeric string
type Amount float64

// UnmarshalJSON implements json.Unmarshaler
func (a *Amount) UnmarshalJSON(data []byte) error {
	raw := bytes.TrimSpace(data)
	if len(raw) > 0 && raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return err
		}
		raw = []byte(strings.TrimSpace(s))
	}

	value, err := strconv.ParseFloat(string(raw), 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return fmt.Errorf("amount must be a number, got %s", data)
	}
	*a = Amount(value)
	return nil
}

// Float returns the amount as a *float64, nil when a is nil
func (a *Amount) Float() *float64 {
	if a == nil {
		return nil
	}
	v := float64(*a)
	return &v
}

// parseTime accepts RFC3339 timestamps and YYYY-MM-DD dates. A date-only
// value is reported so callers can widen it to the whole day.
func parseTime(value string) (time.Time, bool, error) {
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, false, nil
	}
	t, err := time.Parse(dateOnlyLayout, value)
	if err != nil {
		return time.Time{}, false, err
	}
	return t, true, nil
}

// parseEmailFilter reads listing criteria from the query string. Limit and
// offset must be non-negative integers, limit at most storage.MaxListLimit;
// unparseable dates are rejected. The search term is used verbatim.
func parseEmailFilter(c *gin.Context) (storage.EmailFilter, map[string]string) {
	filter := storage.EmailFilter{
		Search:   c.Query("search"),
		Category: strings.TrimSpace(c.Query("category")),
	}
	problems := map[string]string{}

	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			problems["limit"] = "must be a non-negative integer"
		} else if n > storage.MaxListLimit {
			problems["limit"] = "must not exceed " + strconv.Itoa(storage.MaxListLimit)
		}
		filter.Limit = n
	}
	if v := c.Query("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			problems["offset"] = "must be a non-negative integer"
		}
		filter.Offset = n
	}
	if v := c.Query("dateFrom"); v != "" {
		t, _, err := parseTime(v)
		if err != nil {
			problems["dateFrom"] = "must be an RFC3339 timestamp or YYYY-MM-DD date"
		} else {
			filter.DateFrom = &t
		}
	}
	if v := c.Query("dateTo"); v != "" {
		t, dateOnly, err := parseTime(v)
		if err != nil {
			problems["dateTo"] = "must be an RFC3339 timestamp or YYYY-MM-DD date"
		} else {
			if dateOnly {
				t = t.Add(24*time.Hour - time.Nanosecond)
			}
			filter.DateTo = &t
		}
	}

	if len(problems) > 0 {
		return filter, problems
	}
	return filter, nil
}
