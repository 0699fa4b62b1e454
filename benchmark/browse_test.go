package benchmark

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"github.com/doodlesbykumbi/datamapper-in-go/pkg/adapter/memory"
	"github.com/doodlesbykumbi/datamapper-in-go/pkg/datamapper"
	"github.com/doodlesbykumbi/datamapper-in-go/pkg/property"
	"github.com/doodlesbykumbi/datamapper-in-go/pkg/server"
	"github.com/doodlesbykumbi/datamapper-in-go/pkg/server/endpoints"
)

const books = 1000

func newLibrary(b *testing.B) (*datamapper.Mapper, *datamapper.Model) {
	b.Helper()
	m := datamapper.New()
	m.Setup(datamapper.DefaultRepositoryName, memory.New())
	m.Define("Author", func(a *datamapper.Model) {
		a.Property("id", property.Serial)
		a.Property("name", property.String)
	})
	book := m.Define("Book", func(bk *datamapper.Model) {
		bk.Property("id", property.Serial)
		bk.Property("title", property.String)
		bk.Property("pages", property.Integer)
		bk.Property("class_type", property.Discriminator)
		if _, err := bk.BelongsTo("author", datamapper.RelationshipOptions{}); err != nil {
			b.Fatal(err)
		}
	})
	if err := m.Finalize(); err != nil {
		b.Fatal(err)
	}

	author, _ := m.Model("Author")
	err := m.Within(context.Background(), "", func(ctx context.Context) error {
		for i := 0; i < 10; i++ {
			if _, err := author.CreateOrFail(ctx, map[string]any{"name": fmt.Sprintf("author %d", i)}); err != nil {
				return err
			}
		}
		for i := 0; i < books; i++ {
			attrs := map[string]any{"title": fmt.Sprintf("book %d", i), "pages": i, "author_id": i%10 + 1}
			if _, err := book.CreateOrFail(ctx, attrs); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		b.Fatal(err)
	}
	return m, book
}

func BenchmarkLoad(b *testing.B) {
	m, book := newLibrary(b)

	b.Run("cold identity map", func(b *testing.B) {
		b.ReportAllocs()
		b.ResetTimer()

		for i := 0; i < b.N; i++ {
			_ = m.Within(context.Background(), "", func(ctx context.Context) error {
				_, err := book.All(ctx, datamapper.Options{})
				return err
			})
		}
	})

	b.Run("warm identity map", func(b *testing.B) {
		_ = m.Within(context.Background(), "", func(ctx context.Context) error {
			if _, err := book.All(ctx, datamapper.Options{}); err != nil {
				return err
			}

			b.ReportAllocs()
			b.ResetTimer()

			for i := 0; i < b.N; i++ {
				if _, err := book.All(ctx, datamapper.Options{}); err != nil {
					return err
				}
			}
			return nil
		})
	})

	b.Run("parents through one scope", func(b *testing.B) {
		b.ReportAllocs()
		b.ResetTimer()

		for i := 0; i < b.N; i++ {
			_ = m.Within(context.Background(), "", func(ctx context.Context) error {
				resources, err := book.All(ctx, datamapper.Options{Limit: 100})
				if err != nil {
					return err
				}
				for _, r := range resources {
					if _, err := r.Get(ctx, "author"); err != nil {
						return err
					}
				}
				return nil
			})
		}
	})
}

func BenchmarkBrowse(b *testing.B) {
	m, _ := newLibrary(b)
	s := server.NewServer(m, zerolog.Nop(), "127.0.0.1", "0")
	endpoints.RegisterAll(s)
	handler := s.Handler()

	for _, path := range []string{
		"/default/Book/500",
		"/default/Book?limit=50&order=pages",
		"/default/Book/500/author",
	} {
		b.Run("GET "+path, func(b *testing.B) {
			b.ReportAllocs()
			b.ResetTimer()

			for i := 0; i < b.N; i++ {
				r := httptest.NewRequest(http.MethodGet, path, nil)
				w := httptest.NewRecorder()
				handler.ServeHTTP(w, r)
				if w.Code != http.StatusOK {
					b.Fatalf("GET %s: %d %s", path, w.Code, w.Body.String())
				}
			}
		})
	}
}
