package datamapper

import (
	"context"
	"fmt"
	"strings"
)

// repository returns the current repository of ctx, or a new repository
// for the default repository name.
func (m *Model) repository(ctx context.Context) (*Repository, error) {
	if repo, ok := RepositoryFrom(ctx); ok && repo.mapper == m.mapper {
		return repo, nil
	}
	return m.mapper.Repository(ctx, m.mapper.defaultRepository)
}

// typecastKey casts key values to the key property types so equal keys map
// to the same identity map entry.
func (m *Model) typecastKey(repositoryName string, key []any) ([]any, error) {
	props := m.Key(repositoryName)
	if len(key) != len(props) {
		return nil, fmt.Errorf("%w: %s key has %d properties, got %d values", ErrInvalidArgument, m.name, len(props), len(key))
	}
	cast := make([]any, len(key))
	for i, p := range props {
		v, err := p.Typecast(key[i])
		if err != nil {
			return nil, err
		}
		cast[i] = v
	}
	return cast, nil
}

// Get returns the resource with the given key, or nil. A resource already
// in the repository's identity map is returned without a query.
func (m *Model) Get(ctx context.Context, key ...any) (*Resource, error) {
	repo, err := m.repository(ctx)
	if err != nil {
		return nil, err
	}
	key, err = m.typecastKey(repo.name, key)
	if err != nil {
		return nil, err
	}
	if r, ok := repo.IdentityMap(m).Get(key); ok {
		m.mapper.logger.Trace().Str("model", m.name).Interface("key", key).Msg("identity map hit")
		return r, nil
	}
	q, err := m.ToQuery(repo, key, Options{})
	if err != nil {
		return nil, err
	}
	return repo.ReadOne(WithRepository(ctx, repo), q)
}

// GetOrFail is Get returning a *NotFoundError instead of nil.
func (m *Model) GetOrFail(ctx context.Context, key ...any) (*Resource, error) {
	r, err := m.Get(ctx, key...)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, &NotFoundError{Model: m.name, Key: key}
	}
	return r, nil
}

// All returns every resource matching opts.
func (m *Model) All(ctx context.Context, opts Options) ([]*Resource, error) {
	repo, err := m.repository(ctx)
	if err != nil {
		return nil, err
	}
	q, err := NewQuery(repo, m, opts)
	if err != nil {
		return nil, err
	}
	return repo.ReadMany(WithRepository(ctx, repo), q)
}

// First returns the first resource matching opts, or nil.
func (m *Model) First(ctx context.Context, opts Options) (*Resource, error) {
	repo, err := m.repository(ctx)
	if err != nil {
		return nil, err
	}
	opts.Limit = 1
	q, err := NewQuery(repo, m, opts)
	if err != nil {
		return nil, err
	}
	return repo.ReadOne(WithRepository(ctx, repo), q)
}

// FirstN returns up to n resources matching opts.
func (m *Model) FirstN(ctx context.Context, n int, opts Options) ([]*Resource, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive, got %d", ErrInvalidArgument, n)
	}
	opts.Limit = n
	return m.All(ctx, opts)
}

// FirstOrCreate returns the first resource matching conditions or creates
// one from the equality conditions merged with attributes.
func (m *Model) FirstOrCreate(ctx context.Context, conditions, attributes map[string]any) (*Resource, error) {
	r, err := m.First(ctx, Options{Conditions: conditions})
	if err != nil || r != nil {
		return r, err
	}

	merged := make(map[string]any, len(conditions)+len(attributes))
	for k, v := range conditions {
		if !strings.Contains(k, ".") {
			merged[k] = v
		}
	}
	for k, v := range attributes {
		merged[k] = v
	}
	return m.Create(ctx, merged)
}

// New returns a new record of m with attributes assigned.
func (m *Model) New(attributes map[string]any) (*Resource, error) {
	r := m.Allocate(nil)
	if err := r.SetAttributes(attributes); err != nil {
		return nil, err
	}
	return r, nil
}

// Create builds and saves a resource. The resource is returned even when it
// could not be saved; check IsNewRecord or use CreateOrFail.
func (m *Model) Create(ctx context.Context, attributes map[string]any) (*Resource, error) {
	r, err := m.New(attributes)
	if err != nil {
		return nil, err
	}
	if _, err := r.Save(ctx); err != nil {
		return r, err
	}
	return r, nil
}

// CreateOrFail is Create returning a *PersistenceError when the resource was
// not saved.
func (m *Model) CreateOrFail(ctx context.Context, attributes map[string]any) (*Resource, error) {
	r, err := m.Create(ctx, attributes)
	if err != nil {
		return r, err
	}
	if r.newRecord {
		return r, &PersistenceError{Model: m.name, NewRecord: true, DirtyAttributes: r.DirtyAttributes()}
	}
	return r, nil
}

// Copy reads the resources matching opts from the source repository and
// creates them in the destination repository. Each copy is created as its
// own model, so inheritance is preserved.
func (m *Model) Copy(ctx context.Context, source, destination string, opts Options) (int, error) {
	type pending struct {
		model *Model
		attrs map[string]any
	}
	var rows []pending
	err := m.mapper.Within(ctx, source, func(ctx context.Context) error {
		resources, err := m.All(ctx, opts)
		if err != nil {
			return err
		}
		for _, r := range resources {
			attrs := make(map[string]any)
			for _, p := range r.properties().All() {
				v, err := r.AttributeGet(ctx, p.Name())
				if err != nil {
					return err
				}
				attrs[p.Name()] = v
			}
			rows = append(rows, pending{model: r.model, attrs: attrs})
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	copied := 0
	err = m.mapper.Within(ctx, destination, func(ctx context.Context) error {
		for _, row := range rows {
			r, err := row.model.CreateOrFail(ctx, row.attrs)
			if err != nil {
				return err
			}
			if r != nil {
				copied++
			}
		}
		return nil
	})
	return copied, err
}

// ToQuery builds a query for the resource with the given key in repo.
func (m *Model) ToQuery(repo *Repository, key []any, opts Options) (*Query, error) {
	props := m.Key(repo.name)
	if len(key) != len(props) {
		return nil, fmt.Errorf("%w: %s key has %d properties, got %d values", ErrInvalidArgument, m.name, len(props), len(key))
	}
	conditions := make(map[string]any, len(opts.Conditions)+len(props))
	for k, v := range opts.Conditions {
		conditions[k] = v
	}
	for i, p := range props {
		conditions[p.Name()] = key[i]
	}
	opts.Conditions = conditions
	return NewQuery(repo, m, opts)
}

// Transaction runs fn in a transaction of the current repository.
func (m *Model) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	repo, err := m.repository(ctx)
	if err != nil {
		return err
	}
	return repo.Transaction(ctx, fn)
}

// StorageExists reports whether m's storage exists in a repository.
func (m *Model) StorageExists(ctx context.Context, repositoryName string) (bool, error) {
	repo, err := m.mapper.Repository(ctx, repositoryName)
	if err != nil {
		return false, err
	}
	return repo.StorageExists(ctx, m.StorageName(repositoryName))
}
