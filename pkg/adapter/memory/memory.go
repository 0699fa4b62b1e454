// Package memory provides an in-process datamapper adapter. Rows are kept as
// field maps per storage name; transactions work on a clone of the state
// that replaces it on commit.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/doodlesbykumbi/datamapper-in-go/pkg/datamapper"
	"github.com/doodlesbykumbi/datamapper-in-go/pkg/property"
)

// ErrDuplicateKey is returned when a create would store two rows with the
// same key.
var ErrDuplicateKey = errors.New("duplicate key")

type row map[string]any

type state struct {
	tables  map[string][]row
	serials map[string]int64
}

func newState() *state {
	return &state{tables: map[string][]row{}, serials: map[string]int64{}}
}

func (s *state) clone() *state {
	c := newState()
	for name, rows := range s.tables {
		copied := make([]row, len(rows))
		for i, r := range rows {
			copied[i] = r.clone()
		}
		c.tables[name] = copied
	}
	for k, v := range s.serials {
		c.serials[k] = v
	}
	return c
}

func (r row) clone() row {
	c := make(row, len(r))
	for k, v := range r {
		c[k] = v
	}
	return c
}

// Adapter is an in-memory datamapper.Adapter. It is safe for concurrent use.
type Adapter struct {
	mu    sync.Mutex
	txMu  sync.Mutex
	state *state
}

var (
	_ datamapper.Adapter          = (*Adapter)(nil)
	_ datamapper.Transactional    = (*Adapter)(nil)
	_ datamapper.StorageInspector = (*Adapter)(nil)
)

// New returns an empty adapter.
func New() *Adapter {
	return &Adapter{state: newState()}
}

// CreateStorage creates an empty storage unless it exists.
func (a *Adapter) CreateStorage(names ...string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, name := range names {
		if _, ok := a.state.tables[name]; !ok {
			a.state.tables[name] = nil
		}
	}
}

// Rows returns a copy of every row stored under name, in insertion order.
func (a *Adapter) Rows(name string) []map[string]any {
	a.mu.Lock()
	defer a.mu.Unlock()
	rows := a.state.tables[name]
	out := make([]map[string]any, len(rows))
	for i, r := range rows {
		out[i] = r.clone()
	}
	return out
}

func (a *Adapter) StorageExists(_ context.Context, name string) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.state.tables[name]
	return ok, nil
}

func (a *Adapter) Read(_ context.Context, q *datamapper.Query) ([][]any, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	matched, err := a.match(q)
	if err != nil {
		return nil, err
	}
	rows := make([]row, len(matched))
	for i, idx := range matched {
		rows[i] = a.state.tables[q.StorageName()][idx]
	}
	if err := sortRows(rows, q.Order()); err != nil {
		return nil, err
	}
	rows = page(rows, q.Offset(), q.Limit())

	fields := q.Fields()
	result := make([][]any, len(rows))
	for i, r := range rows {
		values := make([]any, len(fields))
		for j, f := range fields {
			values[j] = r[f.Field()]
		}
		result[i] = values
	}
	return result, nil
}

func (a *Adapter) Create(_ context.Context, resources []*datamapper.Resource) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	created := 0
	for _, r := range resources {
		repositoryName := r.Repository().Name()
		storage := r.Model().StorageName(repositoryName)
		values, _, err := datamapper.Row(r)
		if err != nil {
			return created, err
		}
		stored := row(values)

		key := r.Model().Key(repositoryName)
		for _, k := range key {
			counter := storage + "." + k.Field()
			if !k.IsSerial() {
				continue
			}
			if v, ok := stored[k.Field()]; ok && v != nil {
				if n, ok := toInt64(v); ok && n > a.state.serials[counter] {
					a.state.serials[counter] = n
				}
				continue
			}
			a.state.serials[counter]++
			stored[k.Field()] = a.state.serials[counter]
			k.SetValue(r, a.state.serials[counter])
		}

		for _, existing := range a.state.tables[storage] {
			if len(key) > 0 && sameKey(existing, stored, key) {
				return created, fmt.Errorf("%w: %s %v", ErrDuplicateKey, storage, r.Key())
			}
		}
		a.state.tables[storage] = append(a.state.tables[storage], stored)
		created++
	}
	return created, nil
}

func (a *Adapter) Update(_ context.Context, attributes []datamapper.Attribute, q *datamapper.Query) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	matched, err := a.match(q)
	if err != nil {
		return 0, err
	}
	values := make(map[string]any, len(attributes))
	for _, attr := range attributes {
		v, err := attr.Property.Dump(attr.Value)
		if err != nil {
			return 0, err
		}
		values[attr.Property.Field()] = v
	}
	rows := a.state.tables[q.StorageName()]
	for _, idx := range matched {
		for field, v := range values {
			rows[idx][field] = v
		}
	}
	return len(matched), nil
}

func (a *Adapter) Delete(_ context.Context, q *datamapper.Query) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	matched, err := a.match(q)
	if err != nil {
		return 0, err
	}
	if len(matched) == 0 {
		return 0, nil
	}
	drop := make(map[int]bool, len(matched))
	for _, idx := range matched {
		drop[idx] = true
	}
	rows := a.state.tables[q.StorageName()]
	kept := make([]row, 0, len(rows)-len(matched))
	for i, r := range rows {
		if !drop[i] {
			kept = append(kept, r)
		}
	}
	a.state.tables[q.StorageName()] = kept
	return len(matched), nil
}

// Transaction runs fn against a copy of the stored state. The copy replaces
// the state when fn returns nil. Transactions are serialized.
func (a *Adapter) Transaction(ctx context.Context, fn func(ctx context.Context, tx datamapper.Adapter) error) error {
	a.txMu.Lock()
	defer a.txMu.Unlock()

	a.mu.Lock()
	tx := &Adapter{state: a.state.clone()}
	a.mu.Unlock()

	if err := fn(ctx, tx); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.state = tx.state
	return nil
}

// match returns the indexes of the rows of q's storage satisfying every
// condition.
func (a *Adapter) match(q *datamapper.Query) ([]int, error) {
	conditions := q.Conditions()
	var matched []int
	for i, r := range a.state.tables[q.StorageName()] {
		ok, err := matches(r, conditions)
		if err != nil {
			return nil, err
		}
		if ok {
			matched = append(matched, i)
		}
	}
	return matched, nil
}

func sameKey(a, b row, key []*property.Property) bool {
	for _, k := range key {
		if !equal(a[k.Field()], b[k.Field()]) {
			return false
		}
	}
	return true
}

func sortRows(rows []row, order []datamapper.Direction) error {
	var sortErr error
	sort.SliceStable(rows, func(i, j int) bool {
		for _, d := range order {
			c, err := compare(rows[i][d.Property.Field()], rows[j][d.Property.Field()])
			if err != nil {
				sortErr = err
				return false
			}
			if c == 0 {
				continue
			}
			if d.Descending {
				return c > 0
			}
			return c < 0
		}
		return false
	})
	return sortErr
}

func page(rows []row, offset, limit int) []row {
	if offset >= len(rows) {
		return nil
	}
	rows = rows[offset:]
	if limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}
	return rows
}
