package memory_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doodlesbykumbi/datamapper-in-go/pkg/adapter/memory"
	"github.com/doodlesbykumbi/datamapper-in-go/pkg/datamapper"
	"github.com/doodlesbykumbi/datamapper-in-go/pkg/property"
)

type fixture struct {
	adapter *memory.Adapter
	repo    *datamapper.Repository
	ctx     context.Context
	planet  *datamapper.Model
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	m := datamapper.New()
	adapter := memory.New()
	m.Setup(datamapper.DefaultRepositoryName, adapter)
	planet := m.Define("Planet", func(p *datamapper.Model) {
		p.Property("id", property.Serial)
		p.Property("name", property.String)
		p.Property("moons", property.Integer)
		p.Property("gaseous", property.Boolean)
	})
	repo, err := m.Repository(context.Background(), datamapper.DefaultRepositoryName)
	require.NoError(t, err)
	f := &fixture{adapter: adapter, repo: repo, ctx: datamapper.WithRepository(context.Background(), repo), planet: planet}

	for _, attrs := range []map[string]any{
		{"name": "Mercury", "moons": 0, "gaseous": false},
		{"name": "Mars", "moons": 2, "gaseous": false},
		{"name": "Jupiter", "moons": 95, "gaseous": true},
		{"name": "Saturn", "moons": 146, "gaseous": true},
		{"name": "Neptune", "moons": 16},
	} {
		_, err := planet.CreateOrFail(f.ctx, attrs)
		require.NoError(t, err)
	}
	return f
}

func (f *fixture) read(t *testing.T, opts datamapper.Options) [][]any {
	t.Helper()
	if opts.Fields == nil {
		opts.Fields = []string{"name"}
	}
	q, err := datamapper.NewQuery(f.repo, f.planet, opts)
	require.NoError(t, err)
	rows, err := f.adapter.Read(f.ctx, q)
	require.NoError(t, err)
	return rows
}

func names(rows [][]any) []any {
	out := make([]any, len(rows))
	for i, r := range rows {
		out[i] = r[0]
	}
	return out
}

func TestRead(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name     string
		opts     datamapper.Options
		expected []any
	}{
		{"all in key order", datamapper.Options{}, []any{"Mercury", "Mars", "Jupiter", "Saturn", "Neptune"}},
		{"eq", datamapper.Options{Conditions: map[string]any{"gaseous": true}}, []any{"Jupiter", "Saturn"}},
		{"nil matches unset", datamapper.Options{Conditions: map[string]any{"gaseous": nil}}, []any{"Neptune"}},
		{"not", datamapper.Options{Conditions: map[string]any{"name.not": "Mars"}}, []any{"Mercury", "Jupiter", "Saturn", "Neptune"}},
		{"gt", datamapper.Options{Conditions: map[string]any{"moons.gt": 16}}, []any{"Jupiter", "Saturn"}},
		{"gte and lt", datamapper.Options{Conditions: map[string]any{"moons.gte": 2, "moons.lt": 95}}, []any{"Mars", "Neptune"}},
		{"lte", datamapper.Options{Conditions: map[string]any{"moons.lte": 0}}, []any{"Mercury"}},
		{"in", datamapper.Options{Conditions: map[string]any{"id": []int{2, 4, 9}}}, []any{"Mars", "Saturn"}},
		{"not in", datamapper.Options{Conditions: map[string]any{"id.not": []int{1, 2, 3}}}, []any{"Saturn", "Neptune"}},
		{"like prefix", datamapper.Options{Conditions: map[string]any{"name.like": "M%"}}, []any{"Mercury", "Mars"}},
		{"like single character", datamapper.Options{Conditions: map[string]any{"name.like": "Ma_s"}}, []any{"Mars"}},
		{"like escapes regexp", datamapper.Options{Conditions: map[string]any{"name.like": "M.rs"}}, []any{}},
		{"order desc", datamapper.Options{Order: []string{"-moons"}}, []any{"Saturn", "Jupiter", "Neptune", "Mars", "Mercury"}},
		{"order by name", datamapper.Options{Order: []string{"name"}}, []any{"Jupiter", "Mars", "Mercury", "Neptune", "Saturn"}},
		{"limit", datamapper.Options{Limit: 2}, []any{"Mercury", "Mars"}},
		{"offset", datamapper.Options{Offset: 3}, []any{"Saturn", "Neptune"}},
		{"offset past the end", datamapper.Options{Offset: 10}, []any{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, names(f.read(t, tt.opts)))
		})
	}

	t.Run("projects fields in query order", func(t *testing.T) {
		rows := f.read(t, datamapper.Options{Fields: []string{"moons", "id"}, Conditions: map[string]any{"name": "Mars"}})
		assert.Equal(t, [][]any{{int64(2), int64(2)}}, rows)
	})
}

func TestCreate(t *testing.T) {
	f := newFixture(t)

	t.Run("serials", func(t *testing.T) {
		rows := f.adapter.Rows("planets")
		require.Len(t, rows, 5)
		assert.Equal(t, int64(5), rows[4]["id"])

		r, err := f.planet.CreateOrFail(f.ctx, map[string]any{"id": 20, "name": "Pluto"})
		require.NoError(t, err)
		assert.Equal(t, []any{int64(20)}, r.Key())

		r, err = f.planet.CreateOrFail(f.ctx, map[string]any{"name": "Ceres"})
		require.NoError(t, err)
		assert.Equal(t, []any{int64(21)}, r.Key(), "supplied values advance the counter")
	})

	t.Run("duplicate key", func(t *testing.T) {
		r, err := f.planet.New(map[string]any{"id": 1, "name": "Vulcan"})
		require.NoError(t, err)
		_, err = r.Save(f.ctx)
		assert.ErrorIs(t, err, memory.ErrDuplicateKey)
		assert.True(t, r.IsNewRecord())
	})

	t.Run("only set fields are stored", func(t *testing.T) {
		rows := f.adapter.Rows("planets")
		_, ok := rows[4]["gaseous"]
		assert.False(t, ok)
	})
}

func TestUpdateAndDelete(t *testing.T) {
	f := newFixture(t)

	q, err := datamapper.NewQuery(f.repo, f.planet, datamapper.Options{Conditions: map[string]any{"gaseous": true}})
	require.NoError(t, err)
	moons, ok := f.planet.Properties(f.repo.Name()).Get("moons")
	require.True(t, ok)

	n, err := f.adapter.Update(f.ctx, []datamapper.Attribute{{Property: moons, Value: int64(100)}}, q)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []any{"Jupiter", "Saturn"}, names(f.read(t, datamapper.Options{Conditions: map[string]any{"moons": 100}})))

	n, err = f.adapter.Delete(f.ctx, q)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Len(t, f.adapter.Rows("planets"), 3)

	n, err = f.adapter.Delete(f.ctx, q)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestTransaction(t *testing.T) {
	f := newFixture(t)
	errBoom := errors.New("boom")

	err := f.adapter.Transaction(f.ctx, func(ctx context.Context, tx datamapper.Adapter) error {
		q, err := datamapper.NewQuery(f.repo, f.planet, datamapper.Options{})
		require.NoError(t, err)
		n, err := tx.Delete(ctx, q)
		require.NoError(t, err)
		assert.Equal(t, 5, n)
		assert.Len(t, f.adapter.Rows("planets"), 5, "the outer state is untouched")
		return errBoom
	})
	assert.ErrorIs(t, err, errBoom)
	assert.Len(t, f.adapter.Rows("planets"), 5)

	err = f.adapter.Transaction(f.ctx, func(ctx context.Context, tx datamapper.Adapter) error {
		q, err := datamapper.NewQuery(f.repo, f.planet, datamapper.Options{Conditions: map[string]any{"name": "Mercury"}})
		require.NoError(t, err)
		_, err = tx.Delete(ctx, q)
		return err
	})
	require.NoError(t, err)
	assert.Len(t, f.adapter.Rows("planets"), 4)
}

func TestStorageExists(t *testing.T) {
	adapter := memory.New()
	ok, err := adapter.StorageExists(context.Background(), "planets")
	require.NoError(t, err)
	assert.False(t, ok)

	adapter.CreateStorage("planets")
	ok, err = adapter.StorageExists(context.Background(), "planets")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, adapter.Rows("planets"))
}
