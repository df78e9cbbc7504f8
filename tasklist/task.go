// Package tasklist owns the in-memory task collection and keeps it in sync
// with a storage.Store.
package tasklist

import "strings"

// Task represents a single to-do item
type Task struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Completed   bool   `json:"completed"`
}

// Filter selects which tasks are visible
type Filter string

const (
	FilterAll       Filter = "all"
	FilterActive    Filter = "active"
	FilterCompleted Filter = "completed"
)

// ValidFilters lists all valid filter values
var ValidFilters = []Filter{FilterAll, FilterActive, FilterCompleted}

// ParseFilter converts s to a Filter. Unrecognized values map to FilterAll
// with ok set to false.
func ParseFilter(s string) (f Filter, ok bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, v := range ValidFilters {
		if string(v) == s {
			return v, true
		}
	}
	return FilterAll, false
}

// Match reports whether t is visible under f
func (f Filter) Match(t Task) bool {
	switch f {
	case FilterActive:
		return !t.Completed
	case FilterCompleted:
		return t.Completed
	default:
		return true
	}
}
