package shared

import (
	"fmt"
	"time"
)

// Well-known table names.
const (
	TableProfiles     = "profiles"
	TableTasks        = "tasks"
	TableTransactions = "transactions"
)

// Row is a single record in JSON-compatible form.
type Row map[string]any

// Filter restricts a select or update. All conditions are ANDed.
type Filter struct {
	// Eq holds column = value conditions.
	Eq map[string]any
	// Gte holds column >= value conditions.
	Gte map[string]any
}

// Where returns a filter with a single equality condition.
func Where(column string, value any) Filter {
	return Filter{Eq: map[string]any{column: value}}
}

// And adds an equality condition and returns the filter.
func (f Filter) And(column string, value any) Filter {
	eq := make(map[string]any, len(f.Eq)+1)
	for k, v := range f.Eq {
		eq[k] = v
	}
	eq[column] = value
	f.Eq = eq
	return f
}

// AtLeast adds a column >= value condition and returns the filter.
func (f Filter) AtLeast(column string, value any) Filter {
	gte := make(map[string]any, len(f.Gte)+1)
	for k, v := range f.Gte {
		gte[k] = v
	}
	gte[column] = value
	f.Gte = gte
	return f
}

// SelectOptions shapes a select.
type SelectOptions struct {
	OrderBy    string
	Descending bool
	// Limit of zero means no limit.
	Limit int
	// CountOnly asks for the number of matching rows without the rows.
	CountOnly bool
}

// Result of a select. Count is always set; Rows is empty for CountOnly.
type Result struct {
	Rows  []Row
	Count int
}

// String returns the string stored under key. Missing and nil values give
// an empty string.
func (r Row) String(key string) string {
	switch v := r[key].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// Float returns the number stored under key, or 0.
func (r Row) Float(key string) float64 {
	switch v := r[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	default:
		return 0
	}
}

// Time parses the RFC 3339 timestamp stored under key. A missing value
// yields the zero time and no error.
func (r Row) Time(key string) (time.Time, error) {
	s := r.String(key)
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("column %s: %w", key, err)
	}
	return t, nil
}

// FormatTime renders t the way rows carry timestamps.
func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
