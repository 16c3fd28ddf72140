package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Operation names passed to Memory.Fail.
const (
	OpList   = "list"
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
)

// Memory is an in-process Store. Field values are normalized through JSON on write so
// they look exactly like values decoded from a remote store.
type Memory struct {
	mu     sync.Mutex
	tables map[string][]Record

	// Fail, when set, is consulted before every operation; a non-nil error aborts it.
	Fail func(op, table string) error
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{tables: make(map[string][]Record)}
}

func (m *Memory) List(_ context.Context, table string, filter Filter, fields ...string) ([]Record, error) {
	if err := m.fail(OpList, table); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Record
	for _, rec := range m.tables[table] {
		if !filter.Match(rec.Fields, m.lookup) {
			continue
		}
		out = append(out, Record{
			ID:          rec.ID,
			Fields:      Project(clone(rec.Fields), fields),
			CreatedTime: rec.CreatedTime,
		})
	}
	return out, nil
}

func (m *Memory) Create(_ context.Context, table string, fields map[string]any) (Record, error) {
	if err := m.fail(OpCreate, table); err != nil {
		return Record{}, err
	}

	normalized, err := normalize(fields)
	if err != nil {
		return Record{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	rec := Record{ID: NewRecordID(), Fields: normalized}
	m.tables[table] = append(m.tables[table], rec)
	return Record{ID: rec.ID, Fields: clone(rec.Fields)}, nil
}

// Update merges fields into the row, the way a PATCH does.
func (m *Memory) Update(_ context.Context, table, id string, fields map[string]any) (Record, error) {
	if err := m.fail(OpUpdate, table); err != nil {
		return Record{}, err
	}

	normalized, err := normalize(fields)
	if err != nil {
		return Record{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for i, rec := range m.tables[table] {
		if rec.ID != id {
			continue
		}
		for k, v := range normalized {
			rec.Fields[k] = v
		}
		m.tables[table][i] = rec
		return Record{ID: rec.ID, Fields: clone(rec.Fields)}, nil
	}
	return Record{}, fmt.Errorf("record %s not found in %q", id, table)
}

func (m *Memory) Delete(_ context.Context, table string, ids []string) error {
	if err := m.fail(OpDelete, table); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}

	kept := m.tables[table][:0]
	for _, rec := range m.tables[table] {
		if _, ok := drop[rec.ID]; ok {
			continue
		}
		kept = append(kept, rec)
	}
	m.tables[table] = kept
	return nil
}

// Len returns the number of rows in table.
func (m *Memory) Len(table string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tables[table])
}

func (m *Memory) fail(op, table string) error {
	if m.Fail == nil {
		return nil
	}
	return m.Fail(op, table)
}

// lookup must be called with mu held.
func (m *Memory) lookup(id string) (map[string]any, bool) {
	for _, rows := range m.tables {
		for _, rec := range rows {
			if rec.ID == id {
				return rec.Fields, true
			}
		}
	}
	return nil, false
}

// NewRecordID returns an identifier shaped like an Airtable record id.
func NewRecordID() string {
	return "rec" + strings.ReplaceAll(uuid.NewString(), "-", "")[:14]
}

func normalize(fields map[string]any) (map[string]any, error) {
	data, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("encode fields: %w", err)
	}
	out := make(map[string]any)
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode fields: %w", err)
	}
	if out == nil {
		out = make(map[string]any)
	}
	return out, nil
}

func clone(fields map[string]any) map[string]any {
	out, err := normalize(fields)
	if err != nil {
		return map[string]any{}
	}
	return out
}
