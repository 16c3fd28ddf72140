// Package store describes the tabular record store the shortlister reads from and
// writes to, together with local backends that mirror Airtable semantics.
package store

import (
	"context"
	"fmt"
	"strings"
)

// Record is a single row of a table. Fields are loosely typed: values may be strings,
// numbers, booleans or arrays depending on the column type in the remote store.
type Record struct {
	ID          string         `json:"id" mapstructure:"id"`
	Fields      map[string]any `json:"fields" mapstructure:"fields"`
	CreatedTime string         `json:"createdTime,omitempty" mapstructure:"createdTime"`
}

// Store is the set of operations the core needs from a tabular store.
type Store interface {
	List(ctx context.Context, table string, filter Filter, fields ...string) ([]Record, error)
	Create(ctx context.Context, table string, fields map[string]any) (Record, error)
	Update(ctx context.Context, table, id string, fields map[string]any) (Record, error)
	Delete(ctx context.Context, table string, ids []string) error
}

type filterKind int

const (
	filterNone filterKind = iota
	filterEquals
	filterLinkContains
)

// Filter selects rows of a table. The zero value selects every row.
type Filter struct {
	kind  filterKind
	field string
	value string
}

// All selects every row of a table.
var All = Filter{}

// FieldEquals selects rows whose field renders to exactly value.
func FieldEquals(field, value string) Filter {
	return Filter{kind: filterEquals, field: field, value: value}
}

// LinkContains selects rows whose linked-record field references recordID.
func LinkContains(field, recordID string) Filter {
	return Filter{kind: filterLinkContains, field: field, value: recordID}
}

// IsZero reports whether the filter selects every row.
func (f Filter) IsZero() bool {
	return f.kind == filterNone
}

// Formula renders the filter as an Airtable filterByFormula expression.
func (f Filter) Formula() string {
	switch f.kind {
	case filterEquals:
		return fmt.Sprintf("{%s} = '%s'", f.field, quote(f.value))
	case filterLinkContains:
		return fmt.Sprintf("SEARCH('%s', ARRAYJOIN({%s}))", quote(f.value), f.field)
	default:
		return ""
	}
}

func (f Filter) String() string {
	if f.IsZero() {
		return "<all>"
	}
	return f.Formula()
}

// Lookup returns the fields of a record by its id, used to render linked records.
type Lookup func(id string) (map[string]any, bool)

// Match evaluates the filter against a row locally.
//
// An equality filter on a link field (an array of record ids) compares the same-named
// field of the linked records, the way Airtable renders a link to a table whose primary
// field is the compared column.
func (f Filter) Match(fields map[string]any, lookup Lookup) bool {
	switch f.kind {
	case filterNone:
		return true
	case filterEquals:
		value, ok := fields[f.field]
		if !ok {
			return false
		}
		if links := linkIDs(value); len(links) > 0 && lookup != nil {
			for _, id := range links {
				if linked, found := lookup(id); found && Text(linked[f.field]) == f.value {
					return true
				}
			}
		}
		return Text(value) == f.value
	case filterLinkContains:
		return strings.Contains(Text(fields[f.field]), f.value)
	default:
		return false
	}
}

// Text renders a loosely typed field value the way ARRAYJOIN and string formulas do.
func Text(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []string:
		return strings.Join(val, ", ")
	case []any:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			parts = append(parts, Text(item))
		}
		return strings.Join(parts, ", ")
	default:
		return fmt.Sprintf("%v", val)
	}
}

func linkIDs(v any) []string {
	switch val := v.(type) {
	case []string:
		return val
	case []any:
		ids := make([]string, 0, len(val))
		for _, item := range val {
			if id, ok := item.(string); ok {
				ids = append(ids, id)
			}
		}
		return ids
	default:
		return nil
	}
}

func quote(s string) string {
	return strings.ReplaceAll(s, "'", `\'`)
}

// Project keeps only the requested fields. An empty list keeps everything.
func Project(fields map[string]any, keep []string) map[string]any {
	if len(keep) == 0 {
		return fields
	}
	projected := make(map[string]any, len(keep))
	for _, name := range keep {
		if v, ok := fields[name]; ok {
			projected[name] = v
		}
	}
	return projected
}
