package datamapper_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/doodlesbykumbi/datamapper-in-go/pkg/adapter/memory"
	"github.com/doodlesbykumbi/datamapper-in-go/pkg/datamapper"
	"github.com/doodlesbykumbi/datamapper-in-go/pkg/property"
)

type library struct {
	mapper     *datamapper.Mapper
	adapter    *memory.Adapter
	book       *datamapper.Model
	fiction    *datamapper.Model
	shortStory *datamapper.Model
	propaganda *datamapper.Model
	author     *datamapper.Model
	editor     *datamapper.Model
}

// newLibrary defines Book < Fiction < ShortStory and Book < Propaganda in one
// storage, books belonging to an Author and many-to-many Editors.
func newLibrary(t *testing.T) *library {
	t.Helper()

	m := datamapper.New()
	adapter := memory.New()
	m.Setup(datamapper.DefaultRepositoryName, adapter)

	lib := &library{mapper: m, adapter: adapter}
	lib.book = m.Define("Book", func(b *datamapper.Model) {
		b.Property("id", property.Serial)
		b.Property("title", property.String)
		b.Property("blurb", property.Text)
		b.Property("class_type", property.Discriminator)
	})
	lib.fiction = lib.book.Inherit("Fiction", func(f *datamapper.Model) {
		f.Property("series", property.String)
	})
	lib.shortStory = lib.fiction.Inherit("ShortStory", func(s *datamapper.Model) {
		s.Property("moral", property.String)
	})
	lib.propaganda = lib.book.Inherit("Propaganda", func(p *datamapper.Model) {
		p.Property("agenda", property.String)
	})

	lib.author = m.Define("Author", func(a *datamapper.Model) {
		a.Property("id", property.Serial)
		a.Property("name", property.String)
		a.DefineMethod("greeting", func(ctx context.Context, r *datamapper.Resource, args ...any) (any, error) {
			name, err := r.Get(ctx, "name")
			if err != nil {
				return nil, err
			}
			return "Hello from " + name.(string), nil
		})
	})
	lib.editor = m.Define("Editor", func(e *datamapper.Model) {
		e.Property("id", property.Serial)
		e.Property("name", property.String)
	})

	_, err := lib.book.BelongsTo("author", datamapper.RelationshipOptions{})
	require.NoError(t, err)
	_, err = lib.author.HasMany("books", datamapper.RelationshipOptions{})
	require.NoError(t, err)
	_, err = lib.book.HasMany("editors", datamapper.RelationshipOptions{Through: datamapper.ThroughResource})
	require.NoError(t, err)
	require.NoError(t, m.Finalize())
	return lib
}

// scope returns a context carrying a fresh default repository.
func (lib *library) scope(t *testing.T) context.Context {
	t.Helper()
	repo, err := lib.mapper.Repository(context.Background(), datamapper.DefaultRepositoryName)
	require.NoError(t, err)
	return datamapper.WithRepository(context.Background(), repo)
}

func (lib *library) create(t *testing.T, ctx context.Context, model *datamapper.Model, attrs map[string]any) *datamapper.Resource {
	t.Helper()
	r, err := model.CreateOrFail(ctx, attrs)
	require.NoError(t, err)
	return r
}

// tuple orders values by q's fields.
func tuple(q *datamapper.Query, values map[string]any) []any {
	fields := q.Fields()
	out := make([]any, len(fields))
	for i, f := range fields {
		out[i] = values[f.Name()]
	}
	return out
}

func get(t *testing.T, ctx context.Context, r *datamapper.Resource, name string) any {
	t.Helper()
	v, err := r.Get(ctx, name)
	require.NoError(t, err)
	return v
}
