package datamapper_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doodlesbykumbi/datamapper-in-go/pkg/datamapper"
)

func TestManyToOneForeignKey(t *testing.T) {
	lib := newLibrary(t)
	rel, ok := lib.book.Relationship(datamapper.DefaultRepositoryName, "author")
	require.True(t, ok)
	assert.Equal(t, datamapper.CardinalityManyToOne, rel.Cardinality())

	childKey, err := rel.ChildKey()
	require.NoError(t, err)
	require.Len(t, childKey, 1)
	assert.Equal(t, "author_id", childKey[0].Name())
	assert.True(t, lib.shortStory.Properties(datamapper.DefaultRepositoryName).Has("author_id"))
	assert.True(t, lib.shortStory.RespondTo("author"))
}

func TestManyToOneResolve(t *testing.T) {
	lib := newLibrary(t)
	ctx := lib.scope(t)
	author := lib.create(t, ctx, lib.author, map[string]any{"name": "Joyce"})
	lib.create(t, ctx, lib.book, map[string]any{"title": "Ulysses", "author_id": author.Key()[0]})
	lib.create(t, ctx, lib.book, map[string]any{"title": "Anonymous"})

	ctx = lib.scope(t)
	book, err := lib.book.Get(ctx, 1)
	require.NoError(t, err)

	v := get(t, ctx, book, "author")
	proxy, ok := v.(*datamapper.ManyToOneProxy)
	require.True(t, ok)
	parent, err := proxy.Resolve(ctx)
	require.NoError(t, err)

	direct, err := lib.author.Get(ctx, 1)
	require.NoError(t, err)
	assert.Same(t, direct, parent)

	orphan, err := lib.book.Get(ctx, 2)
	require.NoError(t, err)
	assert.Nil(t, get(t, ctx, orphan, "author"))
}

func TestManyToOneDelegation(t *testing.T) {
	lib := newLibrary(t)
	ctx := lib.scope(t)
	author := lib.create(t, ctx, lib.author, map[string]any{"name": "Joyce"})
	book := lib.create(t, ctx, lib.book, map[string]any{"title": "Ulysses"})
	require.NoError(t, book.Set("author", author))

	proxy, err := book.ManyToOne("author")
	require.NoError(t, err)

	viaProxy, err := proxy.Call(ctx, "greeting")
	require.NoError(t, err)
	direct, err := author.Call(ctx, "greeting")
	require.NoError(t, err)
	assert.Equal(t, direct, viaProxy)
	assert.Equal(t, "Hello from Joyce", viaProxy)

	name, err := proxy.Get(ctx, "name")
	require.NoError(t, err)
	assert.Equal(t, "Joyce", name)

	kind, err := proxy.KindOf(ctx, lib.author)
	require.NoError(t, err)
	assert.True(t, kind)
	kind, err = proxy.KindOf(ctx, lib.book)
	require.NoError(t, err)
	assert.False(t, kind)

	tests := []struct {
		capability string
		expected   bool
	}{
		{"greeting", true},
		{"name", true},
		{"books", true},
		{"resolve", true},
		{"save", true},
		{"title", false},
	}
	for _, tt := range tests {
		t.Run(tt.capability, func(t *testing.T) {
			ok, err := proxy.RespondTo(ctx, tt.capability)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, ok)
		})
	}

	_, err = proxy.Call(ctx, "title")
	assert.ErrorIs(t, err, datamapper.ErrNoMethod)

	capabilities, err := proxy.Capabilities(ctx)
	require.NoError(t, err)
	assert.Contains(t, capabilities, "greeting")
	assert.Contains(t, capabilities, "reload")
}

func TestManyToOneDelegationWithoutParent(t *testing.T) {
	lib := newLibrary(t)
	ctx := lib.scope(t)
	book := lib.create(t, ctx, lib.book, map[string]any{"title": "Anonymous"})

	proxy, err := book.ManyToOne("author")
	require.NoError(t, err)

	_, err = proxy.Call(ctx, "name")
	var noMethod *datamapper.NoMethodError
	require.ErrorAs(t, err, &noMethod)
	assert.Equal(t, "name", noMethod.Name)
	assert.ErrorIs(t, err, datamapper.ErrNoMethod)

	ok, err := proxy.RespondTo(ctx, "name")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestManyToOneReplaceThenSave(t *testing.T) {
	lib := newLibrary(t)
	ctx := lib.scope(t)
	book := lib.create(t, ctx, lib.book, map[string]any{"title": "Ulysses"})

	proxy, err := book.ManyToOne("author")
	require.NoError(t, err)
	saved, err := proxy.Save(ctx)
	require.NoError(t, err)
	assert.False(t, saved, "nothing to save without a parent")

	author, err := lib.author.New(map[string]any{"name": "Joyce"})
	require.NoError(t, err)
	same, err := proxy.Replace(author)
	require.NoError(t, err)
	assert.Same(t, proxy, same)

	saved, err = proxy.Save(ctx)
	require.NoError(t, err)
	assert.True(t, saved)
	assert.False(t, author.IsNewRecord())
	assert.Equal(t, author.Key()[0], book.Value("author_id"))

	resolved, err := proxy.Resolve(ctx)
	require.NoError(t, err)
	assert.Same(t, author, resolved)

	saved, err = proxy.Save(ctx)
	require.NoError(t, err)
	assert.True(t, saved, "a persisted parent saves trivially")
}

func TestManyToOneReplaceLinksImmediately(t *testing.T) {
	lib := newLibrary(t)
	ctx := lib.scope(t)
	joyce := lib.create(t, ctx, lib.author, map[string]any{"name": "Joyce"})
	woolf := lib.create(t, ctx, lib.author, map[string]any{"name": "Woolf"})
	book := lib.create(t, ctx, lib.book, map[string]any{"title": "Ulysses"})

	proxy, err := book.ManyToOne("author")
	require.NoError(t, err)
	_, err = proxy.Replace(joyce)
	require.NoError(t, err)
	assert.Equal(t, int64(1), book.Value("author_id"))

	require.NoError(t, book.Set("author", woolf))
	assert.Equal(t, int64(2), book.Value("author_id"))
	assert.Equal(t, map[string]any{"author_id": int64(2)}, book.DirtyAttributes())

	_, err = book.Save(ctx)
	require.NoError(t, err)

	// The cached parent is dropped on reload and looked up again.
	require.NoError(t, book.AttributeSet("author_id", joyce.Key()[0]))
	resolved, err := proxy.Resolve(ctx)
	require.NoError(t, err)
	assert.Same(t, woolf, resolved)
	resolved, err = proxy.Reload().Resolve(ctx)
	require.NoError(t, err)
	assert.Same(t, joyce, resolved)

	require.NoError(t, book.Set("author", nil))
	assert.Nil(t, book.Value("author_id"))
}

func TestManyToOneAssignAnotherProxy(t *testing.T) {
	lib := newLibrary(t)
	setup := lib.scope(t)
	joyce := lib.create(t, setup, lib.author, map[string]any{"name": "Joyce"})
	lib.create(t, setup, lib.book, map[string]any{"title": "Ulysses", "author_id": joyce.Key()[0]})
	lib.create(t, setup, lib.book, map[string]any{"title": "Dubliners"})

	ctx := lib.scope(t)
	ulysses, err := lib.book.Get(ctx, 1)
	require.NoError(t, err)
	dubliners, err := lib.book.Get(ctx, 2)
	require.NoError(t, err)

	unresolved, err := ulysses.ManyToOne("author")
	require.NoError(t, err)
	require.NoError(t, dubliners.Set("author", unresolved))
	assert.Equal(t, int64(1), dubliners.Value("author_id"))

	_, err = dubliners.Save(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), lib.adapter.Rows("books")[1]["author_id"])

	parent, err := dubliners.ManyToOne("author")
	require.NoError(t, err)
	resolved, err := parent.Resolve(ctx)
	require.NoError(t, err)
	require.NotNil(t, resolved)
	assert.Equal(t, "Joyce", resolved.Value("name"))

	// A resolved proxy hands over its cached parent.
	woolf := lib.create(t, ctx, lib.author, map[string]any{"name": "Woolf"})
	require.NoError(t, ulysses.Set("author", woolf))
	require.NoError(t, dubliners.Set("author", get(t, ctx, ulysses, "author")))
	resolved, err = parent.Resolve(ctx)
	require.NoError(t, err)
	assert.Same(t, woolf, resolved)
	assert.Equal(t, woolf.Key()[0], dubliners.Value("author_id"))
}

func TestSaveCascadesToNewParent(t *testing.T) {
	lib := newLibrary(t)
	ctx := lib.scope(t)
	book, err := lib.book.New(map[string]any{"title": "Ulysses"})
	require.NoError(t, err)
	author, err := lib.author.New(map[string]any{"name": "Joyce"})
	require.NoError(t, err)
	require.NoError(t, book.Set("author", author))

	require.NoError(t, book.SaveOrFail(ctx))
	assert.False(t, author.IsNewRecord())
	assert.Equal(t, author.Key()[0], book.Value("author_id"))

	rows := lib.adapter.Rows("books")
	require.Len(t, rows, 1)
	assert.Equal(t, int64(1), rows[0]["author_id"])
}

func TestRelationshipMustBeRegistered(t *testing.T) {
	lib := newLibrary(t)
	book, err := lib.book.New(nil)
	require.NoError(t, err)

	_, err = book.ManyToOne("publisher")
	assert.ErrorIs(t, err, datamapper.ErrRelationshipNotFound)
	_, err = book.OneToMany("author")
	assert.ErrorIs(t, err, datamapper.ErrInvalidArgument)

	_, err = lib.book.BelongsTo("author", datamapper.RelationshipOptions{})
	assert.ErrorIs(t, err, datamapper.ErrInvalidArgument)
	_, err = lib.book.BelongsTo("title", datamapper.RelationshipOptions{})
	assert.ErrorIs(t, err, datamapper.ErrInvalidArgument)
	_, err = lib.book.BelongsTo("", datamapper.RelationshipOptions{})
	assert.ErrorIs(t, err, datamapper.ErrInvalidArgument)
	_, err = lib.book.BelongsTo("shelf", datamapper.RelationshipOptions{Through: datamapper.ThroughResource})
	assert.ErrorIs(t, err, datamapper.ErrInvalidArgument)
}

func TestSubclassRelationshipTablesAreCopies(t *testing.T) {
	lib := newLibrary(t)
	_, err := lib.fiction.BelongsTo("publisher", datamapper.RelationshipOptions{ClassName: "Author"})
	require.NoError(t, err)

	_, ok := lib.fiction.Relationship(datamapper.DefaultRepositoryName, "publisher")
	assert.True(t, ok)
	_, ok = lib.book.Relationship(datamapper.DefaultRepositoryName, "publisher")
	assert.False(t, ok)

	// A subclass may override an inherited relationship.
	_, err = lib.fiction.BelongsTo("author", datamapper.RelationshipOptions{ChildKey: []string{"writer_id"}})
	require.NoError(t, err)
	rel, _ := lib.fiction.Relationship(datamapper.DefaultRepositoryName, "author")
	assert.Same(t, lib.fiction, rel.Owner())
	base, _ := lib.book.Relationship(datamapper.DefaultRepositoryName, "author")
	assert.Same(t, lib.book, base.Owner())
}

func TestOverridesReachExistingSubclasses(t *testing.T) {
	lib := newLibrary(t)
	_, err := lib.fiction.BelongsTo("author", datamapper.RelationshipOptions{ChildKey: []string{"writer_id"}})
	require.NoError(t, err)

	rel, ok := lib.shortStory.Relationship(datamapper.DefaultRepositoryName, "author")
	require.True(t, ok)
	assert.Same(t, lib.fiction, rel.Owner())
	assert.True(t, lib.shortStory.Properties(datamapper.DefaultRepositoryName).Has("writer_id"))
	assert.False(t, lib.propaganda.Properties(datamapper.DefaultRepositoryName).Has("writer_id"))
}
