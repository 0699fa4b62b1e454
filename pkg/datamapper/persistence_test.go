package datamapper_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doodlesbykumbi/datamapper-in-go/pkg/adapter/memory"
	"github.com/doodlesbykumbi/datamapper-in-go/pkg/datamapper"
	"github.com/doodlesbykumbi/datamapper-in-go/pkg/property"
)

func TestCreateAssignsSerialAndDiscriminator(t *testing.T) {
	lib := newLibrary(t)
	ctx := lib.scope(t)

	story := lib.create(t, ctx, lib.shortStory, map[string]any{"title": "The Lottery"})
	assert.False(t, story.IsNewRecord())
	assert.Equal(t, []any{int64(1)}, story.Key())
	assert.Equal(t, "ShortStory", story.Value("class_type"))
	assert.False(t, story.IsDirty())

	repo, _ := datamapper.RepositoryFrom(ctx)
	cached, ok := repo.IdentityMap(lib.shortStory).Get([]any{int64(1)})
	require.True(t, ok)
	assert.Same(t, story, cached)
}

func TestDirtyTracking(t *testing.T) {
	lib := newLibrary(t)
	lib.create(t, lib.scope(t), lib.book, map[string]any{"title": "Ulysses"})

	ctx := lib.scope(t)
	book, err := lib.book.Get(ctx, 1)
	require.NoError(t, err)
	assert.False(t, book.IsDirty())

	require.NoError(t, book.Set("title", "Dubliners"))
	require.NoError(t, book.Set("title", "Exiles"))
	assert.Equal(t, map[string]any{"title": "Exiles"}, book.DirtyAttributes())
	assert.Equal(t, "Ulysses", book.OriginalValues()["title"], "the first original wins")

	require.NoError(t, book.Set("title", "Ulysses"))
	assert.False(t, book.IsDirty(), "restoring the original value is clean")

	require.NoError(t, book.Set("title", "Exiles"))
	saved, err := book.Save(ctx)
	require.NoError(t, err)
	assert.True(t, saved)
	assert.False(t, book.IsDirty())
	assert.Equal(t, "Exiles", lib.adapter.Rows("books")[0]["title"])
}

func TestHashTrackedPropertiesDetectInPlaceChanges(t *testing.T) {
	m := datamapper.New()
	adapter := memory.New()
	m.Setup(datamapper.DefaultRepositoryName, adapter)
	article := m.Define("Article", func(a *datamapper.Model) {
		a.Property("id", property.Serial)
		a.Property("tags", property.JSON)
		a.Property("slug", property.String, property.Tracked(property.TrackLoad))
	})

	ctx := context.Background()
	err := m.Within(ctx, datamapper.DefaultRepositoryName, func(ctx context.Context) error {
		_, err := article.CreateOrFail(ctx, map[string]any{"tags": map[string]any{"genre": "essay"}, "slug": "on-style"})
		return err
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"genre":"essay"}`, adapter.Rows("articles")[0]["tags"].(string))

	err = m.Within(ctx, datamapper.DefaultRepositoryName, func(ctx context.Context) error {
		a, err := article.GetOrFail(ctx, 1)
		require.NoError(t, err)
		originals := a.OriginalValues()
		assert.IsType(t, uint64(0), originals["tags"])
		assert.Equal(t, "on-style", originals["slug"])
		assert.False(t, a.IsDirty())

		tags := a.Value("tags").(map[string]any)
		tags["genre"] = "satire"
		assert.Equal(t, []string{"tags"}, property.Names(a.DirtyProperties()))

		_, err = a.Save(ctx)
		return err
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"genre":"satire"}`, adapter.Rows("articles")[0]["tags"].(string))
}

type coords struct{ x, y int }

// coordsType stores coordinates as "x,y" and loads them as *coords.
type coordsType struct{}

func (coordsType) Name() string                  { return "coords" }
func (coordsType) Primitive() property.Primitive { return property.PrimitiveString }

func (coordsType) Load(value any, _ *property.Property) (any, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case *coords:
		return v, nil
	case string:
		c := &coords{}
		if _, err := fmt.Sscanf(v, "%d,%d", &c.x, &c.y); err != nil {
			return nil, fmt.Errorf("%w: %v", property.ErrTypecast, err)
		}
		return c, nil
	}
	return nil, fmt.Errorf("%w: %T", property.ErrTypecast, value)
}

func (coordsType) Dump(value any, _ *property.Property) (any, error) {
	c, ok := value.(*coords)
	if !ok || c == nil {
		return nil, nil
	}
	return fmt.Sprintf("%d,%d", c.x, c.y), nil
}

func TestHashTrackedUnexportedFields(t *testing.T) {
	m := datamapper.New()
	adapter := memory.New()
	m.Setup(datamapper.DefaultRepositoryName, adapter)
	landmark := m.Define("Landmark", func(l *datamapper.Model) {
		l.Property("id", property.Serial)
		l.Property("at", coordsType{})
	})

	ctx := context.Background()
	err := m.Within(ctx, datamapper.DefaultRepositoryName, func(ctx context.Context) error {
		_, err := landmark.CreateOrFail(ctx, map[string]any{"at": "1,2"})
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, "1,2", adapter.Rows("landmarks")[0]["at"])

	err = m.Within(ctx, datamapper.DefaultRepositoryName, func(ctx context.Context) error {
		l, err := landmark.GetOrFail(ctx, 1)
		require.NoError(t, err)
		assert.False(t, l.IsDirty())

		l.Value("at").(*coords).x = 5
		assert.Equal(t, []string{"at"}, property.Names(l.DirtyProperties()))

		_, err = l.Save(ctx)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, "5,2", adapter.Rows("landmarks")[0]["at"])
}

func TestUpdateChangingTheKey(t *testing.T) {
	m := datamapper.New()
	m.Setup(datamapper.DefaultRepositoryName, memory.New())
	genre := m.Define("Genre", func(g *datamapper.Model) {
		g.Property("code", property.String, property.Key())
		g.Property("label", property.String)
	})

	err := m.Within(context.Background(), datamapper.DefaultRepositoryName, func(ctx context.Context) error {
		g, err := genre.CreateOrFail(ctx, map[string]any{"code": "sf", "label": "Science fiction"})
		require.NoError(t, err)
		require.NoError(t, g.Set("code", "sci-fi"))
		require.NoError(t, g.SaveOrFail(ctx))

		byNew, err := genre.Get(ctx, "sci-fi")
		require.NoError(t, err)
		assert.Same(t, g, byNew)

		repo, _ := datamapper.RepositoryFrom(ctx)
		_, ok := repo.IdentityMap(genre).Get([]any{"sf"})
		assert.False(t, ok)

		old, err := genre.Get(ctx, "sf")
		require.NoError(t, err)
		assert.Nil(t, old)
		return nil
	})
	require.NoError(t, err)
}

func TestDestroy(t *testing.T) {
	lib := newLibrary(t)
	ctx := lib.scope(t)
	book := lib.create(t, ctx, lib.book, map[string]any{"title": "Ulysses"})

	destroyed, err := book.Destroy(ctx)
	require.NoError(t, err)
	assert.True(t, destroyed)
	assert.True(t, book.IsNewRecord())
	assert.Empty(t, lib.adapter.Rows("books"))
	assert.True(t, book.IsDirty(), "loaded values are pending again")

	missing, err := lib.book.Get(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, missing)

	destroyed, err = book.Destroy(ctx)
	require.NoError(t, err)
	assert.False(t, destroyed)
}

func TestLazyProperties(t *testing.T) {
	lib := newLibrary(t)
	lib.create(t, lib.scope(t), lib.book, map[string]any{"title": "Ulysses", "blurb": "Bloomsday"})

	ctx := lib.scope(t)
	book, err := lib.book.Get(ctx, 1)
	require.NoError(t, err)
	_, loaded := book.InstanceGet("blurb")
	assert.False(t, loaded)
	assert.NotContains(t, book.LoadedAttributes(), "blurb")
	assert.Equal(t, "Ulysses", book.LoadedAttributes()["title"])

	assert.Equal(t, "Bloomsday", get(t, ctx, book, "blurb"))
	_, loaded = book.InstanceGet("blurb")
	assert.True(t, loaded)
}

func TestLazyPropertiesAfterKeyChange(t *testing.T) {
	lib := newLibrary(t)
	setup := lib.scope(t)
	lib.create(t, setup, lib.book, map[string]any{"title": "Ulysses", "blurb": "Bloomsday"})
	lib.create(t, setup, lib.book, map[string]any{"title": "Dubliners", "blurb": "Fifteen stories"})

	ctx := lib.scope(t)
	book, err := lib.book.Get(ctx, 1)
	require.NoError(t, err)
	require.NoError(t, book.Set("id", 2))

	assert.Equal(t, "Bloomsday", get(t, ctx, book, "blurb"))
	assert.Equal(t, []any{int64(2)}, book.Key())
	assert.Equal(t, map[string]any{"id": int64(2)}, book.DirtyAttributes())
}

func TestReload(t *testing.T) {
	lib := newLibrary(t)
	lib.create(t, lib.scope(t), lib.book, map[string]any{"title": "Ulysses"})

	ctx := lib.scope(t)
	book, err := lib.book.Get(ctx, 1)
	require.NoError(t, err)
	require.NoError(t, book.Set("title", "Draft"))

	require.NoError(t, book.Reload(ctx))
	assert.Equal(t, "Ulysses", book.Value("title"))
	assert.False(t, book.IsDirty())
}

func TestDefaults(t *testing.T) {
	m := datamapper.New()
	m.Setup(datamapper.DefaultRepositoryName, memory.New())
	post := m.Define("Post", func(p *datamapper.Model) {
		p.Property("id", property.Serial)
		p.Property("status", property.String, property.Default("draft"))
		p.Property("slug", property.String, property.Default(property.DefaultFunc(func(tgt property.Target, _ *property.Property) any {
			v, _ := tgt.InstanceGet("status")
			return "post-" + v.(string)
		})))
	})

	err := m.Within(context.Background(), datamapper.DefaultRepositoryName, func(ctx context.Context) error {
		p, err := post.New(nil)
		require.NoError(t, err)
		assert.Equal(t, "draft", get(t, ctx, p, "status"))

		saved, err := post.CreateOrFail(ctx, map[string]any{"status": "live"})
		require.NoError(t, err)
		assert.Equal(t, "post-live", saved.Value("slug"))
		return nil
	})
	require.NoError(t, err)
}

func TestFailingFinders(t *testing.T) {
	lib := newLibrary(t)
	ctx := lib.scope(t)

	_, err := lib.book.GetOrFail(ctx, 42)
	var notFound *datamapper.NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "Book", notFound.Model)
	assert.Equal(t, []any{42}, notFound.Key)
	assert.ErrorIs(t, err, datamapper.ErrObjectNotFound)

	_, err = lib.book.Get(ctx, "forty-two")
	assert.ErrorIs(t, err, property.ErrTypecast)

	_, err = lib.book.Get(ctx, 1, 2)
	assert.ErrorIs(t, err, datamapper.ErrInvalidArgument)
}

func TestCreateOrFail(t *testing.T) {
	m := datamapper.New()
	m.Setup(datamapper.DefaultRepositoryName, memory.New())
	tag := m.Define("Tag", func(tg *datamapper.Model) {
		tg.Property("name", property.String, property.Key())
	})

	_, err := tag.CreateOrFail(context.Background(), nil)
	var persistence *datamapper.PersistenceError
	require.ErrorAs(t, err, &persistence)
	assert.True(t, persistence.NewRecord)
	assert.ErrorIs(t, err, datamapper.ErrPersistence)

	r, err := tag.CreateOrFail(context.Background(), map[string]any{"name": "modernism"})
	require.NoError(t, err)
	assert.False(t, r.IsNewRecord())

	_, err = tag.Create(context.Background(), map[string]any{"name": "modernism"})
	assert.ErrorIs(t, err, memory.ErrDuplicateKey)
}

func TestFirstOrCreate(t *testing.T) {
	lib := newLibrary(t)
	ctx := lib.scope(t)

	created, err := lib.author.FirstOrCreate(ctx, map[string]any{"name": "Joyce"}, nil)
	require.NoError(t, err)
	assert.False(t, created.IsNewRecord())

	found, err := lib.author.FirstOrCreate(ctx, map[string]any{"name": "Joyce"}, nil)
	require.NoError(t, err)
	assert.Same(t, created, found)
	assert.Len(t, lib.adapter.Rows("authors"), 1)
}

func TestTransaction(t *testing.T) {
	lib := newLibrary(t)
	ctx := lib.scope(t)
	boom := errors.New("boom")

	err := lib.book.Transaction(ctx, func(ctx context.Context) error {
		lib.create(t, ctx, lib.book, map[string]any{"title": "Ulysses"})
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, lib.adapter.Rows("books"))

	err = lib.book.Transaction(ctx, func(ctx context.Context) error {
		lib.create(t, ctx, lib.book, map[string]any{"title": "Dubliners"})
		return lib.book.Transaction(ctx, func(ctx context.Context) error {
			lib.create(t, ctx, lib.author, map[string]any{"name": "Joyce"})
			return nil
		})
	})
	require.NoError(t, err)
	assert.Len(t, lib.adapter.Rows("books"), 1)
	assert.Len(t, lib.adapter.Rows("authors"), 1)
}

func TestCopy(t *testing.T) {
	lib := newLibrary(t)
	archive := memory.New()
	lib.mapper.Setup("archive", archive)

	ctx := lib.scope(t)
	lib.create(t, ctx, lib.book, map[string]any{"title": "Ulysses", "blurb": "Bloomsday"})
	lib.create(t, ctx, lib.shortStory, map[string]any{"title": "Araby", "moral": "Longing"})

	n, err := lib.book.Copy(context.Background(), datamapper.DefaultRepositoryName, "archive", datamapper.Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	rows := archive.Rows("books")
	require.Len(t, rows, 2)
	assert.Equal(t, "Bloomsday", rows[0]["blurb"])
	assert.Equal(t, "ShortStory", rows[1]["class_type"])
	assert.Equal(t, "Longing", rows[1]["moral"])

	exists, err := lib.book.StorageExists(context.Background(), "archive")
	require.NoError(t, err)
	assert.True(t, exists)
	exists, err = lib.editor.StorageExists(context.Background(), "archive")
	require.NoError(t, err)
	assert.False(t, exists)
}
