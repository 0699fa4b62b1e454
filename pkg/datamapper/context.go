package datamapper

import "context"

type repositoryKey struct{}

type transactionKey struct{ repository *Repository }

// WithRepository returns a context carrying repo as the current repository.
func WithRepository(ctx context.Context, repo *Repository) context.Context {
	return context.WithValue(ctx, repositoryKey{}, repo)
}

// RepositoryFrom returns the current repository carried by ctx.
func RepositoryFrom(ctx context.Context) (*Repository, bool) {
	repo, ok := ctx.Value(repositoryKey{}).(*Repository)
	return repo, ok && repo != nil
}

// Repository returns the repository called name for ctx. The repository
// carried by ctx is returned when its name matches or name is empty;
// otherwise a new repository, with empty identity maps, is created.
func (m *Mapper) Repository(ctx context.Context, name string) (*Repository, error) {
	if repo, ok := RepositoryFrom(ctx); ok && repo.mapper == m && (name == "" || name == repo.name) {
		return repo, nil
	}
	if name == "" {
		name = m.defaultRepository
	}
	adapter, err := m.Adapter(name)
	if err != nil {
		return nil, err
	}
	return newRepository(m, name, adapter), nil
}

// Within runs fn with the repository called name as the current repository
// of ctx. Identity maps are shared by everything fn loads through the given
// context. The scope ends when fn returns or panics.
func (m *Mapper) Within(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	repo, err := m.Repository(ctx, name)
	if err != nil {
		return err
	}
	m.logger.Trace().Str("repository", repo.name).Msg("entering repository scope")
	defer m.logger.Trace().Str("repository", repo.name).Msg("leaving repository scope")

	return fn(WithRepository(ctx, repo))
}
