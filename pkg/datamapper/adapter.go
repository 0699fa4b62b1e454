package datamapper

import (
	"context"

	"github.com/doodlesbykumbi/datamapper-in-go/pkg/property"
)

// Adapter is the storage collaborator of a repository.
type Adapter interface {
	// Read returns one raw tuple per matching row, values in q.Fields() order.
	Read(ctx context.Context, q *Query) ([][]any, error)

	// Create inserts resources and returns the number of rows created. Serial
	// keys generated by the store are assigned to the resources.
	Create(ctx context.Context, resources []*Resource) (int, error)

	// Update assigns attributes to every row matching q.
	Update(ctx context.Context, attributes []Attribute, q *Query) (int, error)

	// Delete removes every row matching q.
	Delete(ctx context.Context, q *Query) (int, error)
}

// Transactional is implemented by adapters that can run work atomically. fn
// receives an adapter bound to the transaction.
type Transactional interface {
	Transaction(ctx context.Context, fn func(ctx context.Context, tx Adapter) error) error
}

// StorageInspector is implemented by adapters that can report whether a
// storage (table) exists.
type StorageInspector interface {
	StorageExists(ctx context.Context, storageName string) (bool, error)
}

// NamingConventionProvider is implemented by adapters that name storages
// themselves.
type NamingConventionProvider interface {
	ResourceNamingConvention() NamingConvention
}

// Attribute is a property paired with the value to store for it.
type Attribute struct {
	Property *property.Property
	Value    any
}

// Row returns the storage values of a resource's dirty attributes, keyed by
// field name and dumped through the property types. Adapters use it to build
// inserts.
func Row(r *Resource) (map[string]any, []*property.Property, error) {
	props := r.DirtyProperties()
	row := make(map[string]any, len(props))
	for _, p := range props {
		v, err := p.Dump(p.Value(r))
		if err != nil {
			return nil, nil, err
		}
		row[p.Field()] = v
	}
	return row, props, nil
}
