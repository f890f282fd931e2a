package embed

import (
	"fmt"
	"strings"
)

// FilterComparator selects how a Filter compares its Value against a tag
// present in an embedding's SourceFile.Meta.
type FilterComparator int

const (
	// Equal matches a tag equal to the filter's Value.
	Equal FilterComparator = iota
	// NotEqual matches a tag different from the filter's Value.
	NotEqual
)

func (c FilterComparator) String() string {
	switch c {
	case Equal:
		return "eq"
	case NotEqual:
		return "ne"
	default:
		return "unknown"
	}
}

// Filter is a single metadata predicate evaluated against a candidate
// embedding during query. A Query carries zero or more Filters, all of
// which must match (logical AND) for a candidate to be accepted.
type Filter struct {
	Comparator FilterComparator
	Value      string
}

// Compare reports whether a single metadata tag satisfies the filter:
// Equal matches when tag equals f.Value, NotEqual when it doesn't.
func (f Filter) Compare(tag string) bool {
	switch f.Comparator {
	case Equal:
		return tag == f.Value
	case NotEqual:
		return tag != f.Value
	default:
		return false
	}
}

// PassesFilters reports whether meta satisfies every filter, where a
// filter is checked against every tag present in meta and all of those
// per-tag checks must hold. A candidate with no tags at all vacuously
// passes every filter, since there is nothing to check it against.
func PassesFilters(filters []Filter, meta map[string]struct{}) bool {
	pass := true
	for _, f := range filters {
		for tag := range meta {
			pass = pass && f.Compare(tag)
		}
	}
	return pass
}

// ParseFilter parses the wire form "eq <value>" or "ne <value>" used by
// external callers into a Filter.
func ParseFilter(s string) (Filter, error) {
	parts := strings.SplitN(s, " ", 2)
	if len(parts) != 2 {
		return Filter{}, fmt.Errorf("malformed filter %q: expected \"eq <value>\" or \"ne <value>\"", s)
	}
	var cmp FilterComparator
	switch parts[0] {
	case "eq":
		cmp = Equal
	case "ne":
		cmp = NotEqual
	default:
		return Filter{}, fmt.Errorf("malformed filter %q: unknown comparator %q", s, parts[0])
	}
	return Filter{Comparator: cmp, Value: parts[1]}, nil
}
