package datamapper_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doodlesbykumbi/datamapper-in-go/pkg/adapter/memory"
	"github.com/doodlesbykumbi/datamapper-in-go/pkg/datamapper"
	"github.com/doodlesbykumbi/datamapper-in-go/pkg/property"
)

func TestOneToMany(t *testing.T) {
	lib := newLibrary(t)
	ctx := lib.scope(t)
	author := lib.create(t, ctx, lib.author, map[string]any{"name": "Joyce"})
	ulysses := lib.create(t, ctx, lib.book, map[string]any{"title": "Ulysses"})
	dubliners := lib.create(t, ctx, lib.fiction, map[string]any{"title": "Dubliners"})

	books, err := author.OneToMany("books")
	require.NoError(t, err)
	require.NoError(t, books.Append(ctx, ulysses, dubliners))
	assert.Equal(t, int64(1), ulysses.Value("author_id"))

	saved, err := author.Save(ctx)
	require.NoError(t, err)
	assert.True(t, saved)

	ctx = lib.scope(t)
	reloaded, err := lib.author.Get(ctx, 1)
	require.NoError(t, err)
	children, err := reloaded.OneToMany("books")
	require.NoError(t, err)
	n, err := children.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	first, err := children.First(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Ulysses", first.Value("title"))

	all, err := children.All(ctx)
	require.NoError(t, err)
	assert.Same(t, lib.fiction, all[1].Model())

	removed, err := children.Delete(ctx, all[0])
	require.NoError(t, err)
	assert.True(t, removed)
	_, err = reloaded.Save(ctx)
	require.NoError(t, err)

	// author_id is nullable, so orphans are unlinked rather than destroyed.
	rows := lib.adapter.Rows("books")
	require.Len(t, rows, 2)
	assert.Nil(t, rows[0]["author_id"])
	assert.Equal(t, int64(1), rows[1]["author_id"])
}

func TestOneToManyReplace(t *testing.T) {
	lib := newLibrary(t)
	ctx := lib.scope(t)
	author := lib.create(t, ctx, lib.author, map[string]any{"name": "Joyce"})
	lib.create(t, ctx, lib.book, map[string]any{"title": "Ulysses", "author_id": int64(1)})
	lib.create(t, ctx, lib.book, map[string]any{"title": "Dubliners", "author_id": int64(1)})

	ctx = lib.scope(t)
	author, err := lib.author.Get(ctx, author.Key()...)
	require.NoError(t, err)
	fresh, err := lib.book.New(map[string]any{"title": "Finnegans Wake"})
	require.NoError(t, err)

	// Replacing an unloaded collection orphans the stored children on save.
	require.NoError(t, author.Set("books", []*datamapper.Resource{fresh}))
	_, err = author.Save(ctx)
	require.NoError(t, err)
	assert.False(t, fresh.IsNewRecord())

	rows := lib.adapter.Rows("books")
	require.Len(t, rows, 3)
	assert.Nil(t, rows[0]["author_id"])
	assert.Nil(t, rows[1]["author_id"])
	assert.Equal(t, int64(1), rows[2]["author_id"])

	books, err := author.OneToMany("books")
	require.NoError(t, err)
	require.NoError(t, books.Clear(ctx))
	n, err := books.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	_, err = author.Save(ctx)
	require.NoError(t, err)
	assert.Nil(t, lib.adapter.Rows("books")[2]["author_id"])
}

func TestOneToManyDestroysOrphansWithRequiredKeys(t *testing.T) {
	m := datamapper.New()
	adapter := memory.New()
	m.Setup(datamapper.DefaultRepositoryName, adapter)
	shelf := m.Define("Shelf", func(s *datamapper.Model) {
		s.Property("id", property.Serial)
	})
	slot := m.Define("Slot", func(s *datamapper.Model) {
		s.Property("shelf_id", property.Integer, property.Key())
		s.Property("position", property.Integer, property.Key())
	})
	_, err := shelf.HasMany("slots", datamapper.RelationshipOptions{})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, m.Within(ctx, datamapper.DefaultRepositoryName, func(ctx context.Context) error {
		s, err := shelf.CreateOrFail(ctx, nil)
		require.NoError(t, err)
		slots, err := s.OneToMany("slots")
		require.NoError(t, err)
		for _, pos := range []int{1, 2} {
			r, err := slot.New(map[string]any{"position": pos})
			require.NoError(t, err)
			require.NoError(t, slots.Append(ctx, r))
		}
		_, err = s.Save(ctx)
		require.NoError(t, err)
		require.Len(t, adapter.Rows("slots"), 2)

		first, err := slots.First(ctx)
		require.NoError(t, err)
		_, err = slots.Delete(ctx, first)
		require.NoError(t, err)
		_, err = s.Save(ctx)
		return err
	}))

	rows := adapter.Rows("slots")
	require.Len(t, rows, 1)
	assert.Equal(t, int64(2), rows[0]["position"])
}

func TestManyToManyJoinModel(t *testing.T) {
	lib := newLibrary(t)
	join, ok := lib.mapper.Model("BookEditor")
	require.True(t, ok)
	assert.Equal(t, "book_editors", join.StorageName(datamapper.DefaultRepositoryName))
	assert.Equal(t, []string{"book_id", "editor_id"}, property.Names(join.Key(datamapper.DefaultRepositoryName)))

	_, ok = lib.book.Relationship(datamapper.DefaultRepositoryName, "book_editors")
	assert.True(t, ok)
	for _, name := range []string{"book", "editor"} {
		rel, ok := join.Relationship(datamapper.DefaultRepositoryName, name)
		require.True(t, ok)
		assert.Equal(t, datamapper.CardinalityManyToOne, rel.Cardinality())
	}

	rel, _ := lib.book.Relationship(datamapper.DefaultRepositoryName, "editors")
	joinModel, err := rel.JoinModel()
	require.NoError(t, err)
	assert.Same(t, join, joinModel)
}

func TestManyToMany(t *testing.T) {
	lib := newLibrary(t)
	ctx := lib.scope(t)
	book := lib.create(t, ctx, lib.book, map[string]any{"title": "Ulysses"})
	pound := lib.create(t, ctx, lib.editor, map[string]any{"name": "Pound"})
	beach, err := lib.editor.New(map[string]any{"name": "Beach"})
	require.NoError(t, err)

	editors, err := book.ManyToMany("editors")
	require.NoError(t, err)
	require.NoError(t, editors.Append(ctx, pound, beach))
	assert.Empty(t, lib.adapter.Rows("book_editors"), "links wait for save")

	_, err = book.Save(ctx)
	require.NoError(t, err)
	assert.False(t, beach.IsNewRecord(), "new targets are saved")
	assert.Len(t, lib.adapter.Rows("book_editors"), 2)

	ctx = lib.scope(t)
	book, err = lib.book.Get(ctx, 1)
	require.NoError(t, err)
	editors, err = book.ManyToMany("editors")
	require.NoError(t, err)
	all, err := editors.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Pound", all[0].Value("name"))
	assert.Equal(t, "Beach", all[1].Value("name"))

	links, err := book.OneToMany("book_editors")
	require.NoError(t, err)
	n, err := links.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = editors.Delete(ctx, all[0])
	require.NoError(t, err)
	_, err = book.Save(ctx)
	require.NoError(t, err)
	require.Len(t, lib.adapter.Rows("book_editors"), 1)
	assert.Equal(t, int64(2), lib.adapter.Rows("book_editors")[0]["editor_id"])

	n, err = links.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "the join collection is reloaded after save")

	require.NoError(t, editors.Clear(ctx))
	_, err = book.Save(ctx)
	require.NoError(t, err)
	assert.Empty(t, lib.adapter.Rows("book_editors"))
	assert.Len(t, lib.adapter.Rows("editors"), 2, "targets outlive their links")
}

func TestManyToManyReplaceIsPersistedOnSave(t *testing.T) {
	lib := newLibrary(t)
	ctx := lib.scope(t)
	book := lib.create(t, ctx, lib.book, map[string]any{"title": "Ulysses"})
	pound := lib.create(t, ctx, lib.editor, map[string]any{"name": "Pound"})
	beach := lib.create(t, ctx, lib.editor, map[string]any{"name": "Beach"})
	require.NoError(t, book.Set("editors", []*datamapper.Resource{pound}))
	_, err := book.Save(ctx)
	require.NoError(t, err)

	ctx = lib.scope(t)
	book, err = lib.book.Get(ctx, 1)
	require.NoError(t, err)
	beach, err = lib.editor.Get(ctx, beach.Key()...)
	require.NoError(t, err)
	require.NoError(t, book.Set("editors", []*datamapper.Resource{beach}))
	rows := lib.adapter.Rows("book_editors")
	require.Len(t, rows, 1)
	assert.Equal(t, int64(1), rows[0]["editor_id"])

	_, err = book.Save(ctx)
	require.NoError(t, err)
	rows = lib.adapter.Rows("book_editors")
	require.Len(t, rows, 1)
	assert.Equal(t, int64(2), rows[0]["editor_id"])
}

func TestManyToManyReplaceWithAttributes(t *testing.T) {
	lib := newLibrary(t)
	ctx := lib.scope(t)
	book := lib.create(t, ctx, lib.book, map[string]any{"title": "Ulysses"})
	lib.create(t, ctx, lib.editor, map[string]any{"name": "Pound"})

	require.NoError(t, book.Set("editors", []map[string]any{{"name": "Jim Smith"}}))
	editors, err := book.ManyToMany("editors")
	require.NoError(t, err)
	all, err := editors.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.True(t, all[0].IsNewRecord())
	assert.Equal(t, "Jim Smith", all[0].Value("name"))

	_, err = book.Save(ctx)
	require.NoError(t, err)
	jim, err := lib.editor.First(ctx, datamapper.Options{Conditions: map[string]any{"name": "Jim Smith"}})
	require.NoError(t, err)
	require.NotNil(t, jim)
	assert.Same(t, all[0], jim)

	all, err = editors.Reload().All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Same(t, jim, all[0])

	err = book.Set("editors", []any{jim, map[string]any{"name": "Beach"}})
	require.NoError(t, err)
	_, err = book.Save(ctx)
	require.NoError(t, err)
	assert.Len(t, lib.adapter.Rows("book_editors"), 2)

	err = book.Set("editors", []any{"Pound"})
	assert.ErrorIs(t, err, datamapper.ErrInvalidArgument)
}

func TestManyToManyWithNaturalKeys(t *testing.T) {
	m := datamapper.New()
	adapter := memory.New()
	m.Setup(datamapper.DefaultRepositoryName, adapter)

	author := m.Define("Author", func(a *datamapper.Model) {
		a.Property("name", property.String, property.Key())
	})
	book := m.Define("Book", func(b *datamapper.Model) {
		b.Property("id", property.Serial)
		b.Property("title", property.String)
	})
	_, err := author.HasMany("books", datamapper.RelationshipOptions{Through: datamapper.ThroughResource})
	require.NoError(t, err)
	_, err = book.HasMany("authors", datamapper.RelationshipOptions{Through: datamapper.ThroughResource})
	require.NoError(t, err)
	require.NoError(t, m.Finalize())

	join, ok := m.Model("AuthorBook")
	require.True(t, ok)
	assert.Equal(t, []string{"author_name", "book_id"}, property.Names(join.Key(datamapper.DefaultRepositoryName)))
	assert.Equal(t, property.Integer, join.Properties(datamapper.DefaultRepositoryName).All()[1].Type())

	err = m.Within(context.Background(), datamapper.DefaultRepositoryName, func(ctx context.Context) error {
		joyce, err := author.CreateOrFail(ctx, map[string]any{"name": "Joyce"})
		require.NoError(t, err)
		ulysses, err := book.New(map[string]any{"title": "Ulysses"})
		require.NoError(t, err)

		books, err := joyce.ManyToMany("books")
		require.NoError(t, err)
		require.NoError(t, books.Append(ctx, ulysses))
		_, err = joyce.Save(ctx)
		require.NoError(t, err)

		authors, err := ulysses.ManyToMany("authors")
		require.NoError(t, err)
		all, err := authors.All(ctx)
		require.NoError(t, err)
		require.Len(t, all, 1)
		assert.Same(t, joyce, all[0])
		return nil
	})
	require.NoError(t, err)

	rows := adapter.Rows("author_books")
	require.Len(t, rows, 1)
	assert.Equal(t, "Joyce", rows[0]["author_name"])
	assert.Equal(t, int64(1), rows[0]["book_id"])
}
