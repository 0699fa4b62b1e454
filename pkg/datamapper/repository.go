package datamapper

import (
	"context"
	"fmt"

	"github.com/doodlesbykumbi/datamapper-in-go/pkg/defaultmap"
	"github.com/doodlesbykumbi/datamapper-in-go/pkg/identitymap"
)

// Repository is a named unit of work over an adapter. It owns one identity
// map per model and is not safe for concurrent use.
type Repository struct {
	name         string
	mapper       *Mapper
	adapter      Adapter
	identityMaps *defaultmap.Map[*Model, *identitymap.Map[*Resource]]
}

func newRepository(m *Mapper, name string, adapter Adapter) *Repository {
	return &Repository{
		name:    name,
		mapper:  m,
		adapter: adapter,
		identityMaps: defaultmap.New(func(*Model) *identitymap.Map[*Resource] {
			return identitymap.New[*Resource]()
		}),
	}
}

func (r *Repository) Name() string    { return r.name }
func (r *Repository) Mapper() *Mapper { return r.mapper }

// Adapter returns the repository's adapter, which is not bound to any
// transaction.
func (r *Repository) Adapter() Adapter { return r.adapter }

// IdentityMap returns the identity map of model in this repository.
func (r *Repository) IdentityMap(model *Model) *identitymap.Map[*Resource] {
	return r.identityMaps.Get(model)
}

// adapterFor returns the transaction adapter carried by ctx for this
// repository, if any.
func (r *Repository) adapterFor(ctx context.Context) Adapter {
	if tx, ok := ctx.Value(transactionKey{r}).(Adapter); ok {
		return tx
	}
	return r.adapter
}

// ReadMany runs q and materializes every returned row.
func (r *Repository) ReadMany(ctx context.Context, q *Query) ([]*Resource, error) {
	rows, err := r.adapterFor(ctx).Read(ctx, q)
	if err != nil {
		r.mapper.logger.Warn().Err(err).Str("repository", r.name).Str("model", q.model.name).Msg("read failed")
		return nil, fmt.Errorf("reading %s: %w", q.model.name, err)
	}
	resources := make([]*Resource, 0, len(rows))
	for _, row := range rows {
		resource, err := q.model.Load(row, q)
		if err != nil {
			return nil, err
		}
		resources = append(resources, resource)
	}
	return resources, nil
}

// ReadOne runs q limited to one row and returns the first resource, or nil.
func (r *Repository) ReadOne(ctx context.Context, q *Query) (*Resource, error) {
	if q.limit != 1 {
		q = q.dup()
		q.limit = 1
	}
	resources, err := r.ReadMany(ctx, q)
	if err != nil || len(resources) == 0 {
		return nil, err
	}
	return resources[0], nil
}

// Create inserts resources through the adapter.
func (r *Repository) Create(ctx context.Context, resources []*Resource) (int, error) {
	n, err := r.adapterFor(ctx).Create(ctx, resources)
	if err != nil {
		r.mapper.logger.Warn().Err(err).Str("repository", r.name).Msg("create failed")
		return n, fmt.Errorf("creating resources: %w", err)
	}
	return n, nil
}

// Update assigns attributes to the rows matching q.
func (r *Repository) Update(ctx context.Context, attributes []Attribute, q *Query) (int, error) {
	n, err := r.adapterFor(ctx).Update(ctx, attributes, q)
	if err != nil {
		r.mapper.logger.Warn().Err(err).Str("repository", r.name).Str("model", q.model.name).Msg("update failed")
		return n, fmt.Errorf("updating %s: %w", q.model.name, err)
	}
	return n, nil
}

// Delete removes the rows matching q.
func (r *Repository) Delete(ctx context.Context, q *Query) (int, error) {
	n, err := r.adapterFor(ctx).Delete(ctx, q)
	if err != nil {
		r.mapper.logger.Warn().Err(err).Str("repository", r.name).Str("model", q.model.name).Msg("delete failed")
		return n, fmt.Errorf("deleting %s: %w", q.model.name, err)
	}
	return n, nil
}

// StorageExists reports whether the adapter has a storage called name.
func (r *Repository) StorageExists(ctx context.Context, name string) (bool, error) {
	inspector, ok := r.adapterFor(ctx).(StorageInspector)
	if !ok {
		return false, fmt.Errorf("storage_exists: %w", ErrUnsupported)
	}
	return inspector.StorageExists(ctx, name)
}

// Transaction runs fn with this repository current in ctx. When the adapter
// is Transactional every adapter call made through the passed context joins
// one transaction, committed when fn returns nil. Otherwise fn simply runs.
func (r *Repository) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx = WithRepository(ctx, r)
	if _, ok := ctx.Value(transactionKey{r}).(Adapter); ok {
		return fn(ctx)
	}
	txa, ok := r.adapter.(Transactional)
	if !ok {
		return fn(ctx)
	}
	return txa.Transaction(ctx, func(ctx context.Context, tx Adapter) error {
		return fn(context.WithValue(ctx, transactionKey{r}, tx))
	})
}
