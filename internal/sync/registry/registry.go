// Package registry declares which entity tables are replicated.
package registry

import "sort"

// Registry answers whether mutations on a table are replicated.
type Registry interface {
	IsRegistered(table string) bool
}

// Set is a fixed set of replicated tables.
type Set map[string]struct{}

// NewSet builds a Set from table names.
func NewSet(tables ...string) Set {
	s := make(Set, len(tables))
	for _, t := range tables {
		s[t] = struct{}{}
	}
	return s
}

// IsRegistered implements Registry.
func (s Set) IsRegistered(table string) bool {
	_, ok := s[table]
	return ok
}

// Tables lists the registered tables in sorted order.
func (s Set) Tables() []string {
	out := make([]string, 0, len(s))
	for t := range s {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Default is every user-data table except media_blobs, whose bytes stay on
// the device.
var Default = NewSet(
	"tracking_recurrings",
	"tracking_responses",
	"tracking_events",
	"journal_entries",
	"stock_products",
	"stock_routines",
	"work_sessions",
)

// IsRegistered checks the default registry.
func IsRegistered(table string) bool {
	return Default.IsRegistered(table)
}
