package datamapper

import (
	"context"
	"fmt"
	"sort"

	"github.com/doodlesbykumbi/datamapper-in-go/pkg/property"
)

// association is a proxy a resource saves and resets along with itself.
type association interface {
	saveAssociation(ctx context.Context) (bool, error)
	reset()
}

// Resource is one mapped object. A resource is bound to the repository it
// was loaded from, or to the repository it is first saved in.
type Resource struct {
	model          *Model
	repository     *Repository
	values         map[string]any
	originalValues map[string]any
	newRecord      bool
	readonly       bool

	associations       map[string]association
	childAssociations  []association
	parentAssociations []association
}

// Allocate returns an empty new-record resource of m bound to repo, which
// may be nil.
func (m *Model) Allocate(repo *Repository) *Resource {
	return &Resource{
		model:          m,
		repository:     repo,
		values:         make(map[string]any),
		originalValues: make(map[string]any),
		newRecord:      true,
		associations:   make(map[string]association),
	}
}

func (r *Resource) Model() *Model { return r.model }

// Repository returns the repository r is bound to, or nil for a new record
// that was never saved.
func (r *Resource) Repository() *Repository { return r.repository }

func (r *Resource) repositoryName() string {
	if r.repository != nil {
		return r.repository.name
	}
	return r.model.mapper.defaultRepository
}

func (r *Resource) properties() *property.Set {
	return r.model.Properties(r.repositoryName())
}

func (r *Resource) property(name string) (*property.Property, error) {
	p, ok := r.properties().Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s has no property %q", ErrUnknownProperty, r.model.name, name)
	}
	return p, nil
}

// InstanceGet returns the raw instance value of a property.
func (r *Resource) InstanceGet(name string) (any, bool) {
	v, ok := r.values[name]
	return v, ok
}

// InstanceSet assigns the raw instance value of a property, bypassing
// accessors, typecasting and dirty tracking.
func (r *Resource) InstanceSet(name string, value any) {
	r.values[name] = value
}

// Value returns the raw instance value of a property, nil when not loaded.
func (r *Resource) Value(name string) any { return r.values[name] }

func (r *Resource) IsNewRecord() bool { return r.newRecord }
func (r *Resource) IsReadOnly() bool  { return r.readonly }

// Key returns the values of r's key properties.
func (r *Resource) Key() []any {
	return property.Values(r.model.Key(r.repositoryName()), r)
}

// OriginalValues returns the recorded original values by property name.
// Hash-tracked properties map to a content hash.
func (r *Resource) OriginalValues() map[string]any {
	out := make(map[string]any, len(r.originalValues))
	for k, v := range r.originalValues {
		out[k] = v
	}
	return out
}

// Get reads name through the model's accessor table.
func (r *Resource) Get(ctx context.Context, name string) (any, error) {
	a, ok := r.model.accessors[name]
	if !ok || a.Get == nil {
		return nil, &NoMethodError{Name: name, Receiver: r.String()}
	}
	return a.Get(ctx, r)
}

// Set assigns name through the model's accessor table.
func (r *Resource) Set(name string, value any) error {
	a, ok := r.model.accessors[name]
	if !ok || a.Set == nil {
		return &NoMethodError{Name: name, Receiver: r.String()}
	}
	return a.Set(r, value)
}

// AttributeGet returns a property value. New records fall back to the
// property default; persisted records fetch unloaded lazy properties along
// with the rest of their lazy-load context.
func (r *Resource) AttributeGet(ctx context.Context, name string) (any, error) {
	p, err := r.property(name)
	if err != nil {
		return nil, err
	}
	if !p.IsLoaded(r) {
		switch {
		case r.newRecord:
			if v, ok := r.defaultFor(p); ok {
				if err := r.setAttribute(p, v); err != nil {
					return nil, err
				}
			}
		case p.IsLazy() && !r.readonly:
			if err := r.lazyLoad(ctx, p); err != nil {
				return nil, err
			}
		}
	}
	return p.Value(r), nil
}

// AttributeSet typecasts and assigns a property value, recording the
// previous value the first time the property changes.
func (r *Resource) AttributeSet(name string, value any) error {
	p, err := r.property(name)
	if err != nil {
		return err
	}
	return r.setAttribute(p, value)
}

func (r *Resource) setAttribute(p *property.Property, value any) error {
	if r.readonly {
		return fmt.Errorf("%w: cannot set %s on %s", ErrReadOnly, p.Name(), r)
	}
	cast, err := p.Typecast(value)
	if err != nil {
		return err
	}
	if _, ok := r.originalValues[p.Name()]; !ok {
		if p.Track() == property.TrackHash && p.IsLoaded(r) {
			r.originalValues[p.Name()] = property.Hash(p.Value(r))
		} else {
			r.originalValues[p.Name()] = p.Value(r)
		}
	}
	p.SetValue(r, cast)
	return nil
}

func (r *Resource) defaultFor(p *property.Property) (any, bool) {
	if p.HasDefault() {
		return p.Default(r), true
	}
	if p.IsDiscriminator() {
		return r.model.name, true
	}
	return nil, false
}

func (r *Resource) lazyLoad(ctx context.Context, p *property.Property) error {
	if r.repository == nil {
		return nil
	}
	key := r.model.Key(r.repository.name)
	var fields []string
	for _, k := range key {
		fields = append(fields, k.Name())
	}
	props := r.properties()
	for _, name := range props.LazyLoadContext(p.Name()) {
		if q, ok := props.Get(name); ok && !q.IsLoaded(r) {
			fields = append(fields, name)
		}
	}
	q, err := r.model.ToQuery(r.repository, r.originalKey(), Options{Fields: fields, Reload: true})
	if err != nil {
		return err
	}
	// The stored row is r itself in the identity map and is repopulated in
	// place, so local key edits are put back afterwards.
	current := property.Values(key, r)
	loaded, err := r.repository.ReadOne(WithRepository(ctx, r.repository), q)
	for i, k := range key {
		k.SetValue(r, current[i])
	}
	if err != nil {
		return err
	}
	if loaded != nil && loaded != r {
		for _, f := range q.fields {
			if !f.IsLoaded(r) && f.IsLoaded(loaded) {
				f.SetValue(r, f.Value(loaded))
			}
		}
	}
	return nil
}

// Attributes returns every property value read through the accessor table.
func (r *Resource) Attributes(ctx context.Context) (map[string]any, error) {
	attrs := make(map[string]any)
	for _, p := range r.properties().All() {
		v, err := r.Get(ctx, p.Name())
		if err != nil {
			return nil, err
		}
		attrs[p.Name()] = v
	}
	return attrs, nil
}

// LoadedAttributes returns the values of loaded properties by name without
// loading lazy ones.
func (r *Resource) LoadedAttributes() map[string]any {
	attrs := make(map[string]any)
	for _, p := range r.properties().All() {
		if v, ok := r.values[p.Name()]; ok {
			attrs[p.Name()] = v
		}
	}
	return attrs
}

// SetAttributes assigns every entry through the accessor table, in name order.
func (r *Resource) SetAttributes(attributes map[string]any) error {
	names := make([]string, 0, len(attributes))
	for name := range attributes {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := r.Set(name, attributes[name]); err != nil {
			return err
		}
	}
	return nil
}

// KindOf reports whether r is a resource of m or of one of m's descendants.
func (r *Resource) KindOf(m *Model) bool {
	return r.model == m || r.model.IsDescendantOf(m)
}

// RespondTo reports whether r's model has an accessor or method called name.
func (r *Resource) RespondTo(name string) bool {
	return r.model.RespondTo(name)
}

// Call dispatches name through the model's capability table: methods first,
// then accessors, reading with no argument and assigning with one.
func (r *Resource) Call(ctx context.Context, name string, args ...any) (any, error) {
	if fn, ok := r.model.methods[name]; ok {
		return fn(ctx, r, args...)
	}
	if _, ok := r.model.accessors[name]; ok {
		switch len(args) {
		case 0:
			return r.Get(ctx, name)
		case 1:
			return nil, r.Set(name, args[0])
		}
		return nil, fmt.Errorf("%w: %s takes at most one argument, got %d", ErrInvalidArgument, name, len(args))
	}
	return nil, &NoMethodError{Name: name, Receiver: r.String()}
}

func (r *Resource) String() string {
	return fmt.Sprintf("%s%v", r.model.name, r.Key())
}

// ManyToOne returns the memoized proxy of a many-to-one relationship.
func (r *Resource) ManyToOne(name string) (*ManyToOneProxy, error) {
	a, err := r.association(name, CardinalityManyToOne)
	if err != nil {
		return nil, err
	}
	return a.(*ManyToOneProxy), nil
}

// OneToMany returns the memoized proxy of a one-to-many relationship.
func (r *Resource) OneToMany(name string) (*OneToManyProxy, error) {
	a, err := r.association(name, CardinalityOneToMany)
	if err != nil {
		return nil, err
	}
	return a.(*OneToManyProxy), nil
}

// ManyToMany returns the memoized proxy of a many-to-many relationship.
func (r *Resource) ManyToMany(name string) (*ManyToManyProxy, error) {
	a, err := r.association(name, CardinalityManyToMany)
	if err != nil {
		return nil, err
	}
	return a.(*ManyToManyProxy), nil
}

func (r *Resource) association(name string, cardinality Cardinality) (association, error) {
	if a, ok := r.associations[name]; ok {
		return a, nil
	}
	rel, ok := r.model.Relationship(r.repositoryName(), name)
	if !ok {
		return nil, fmt.Errorf("%w: %q on %s in repository %s", ErrRelationshipNotFound, name, r.model.name, r.repositoryName())
	}
	if rel.cardinality != cardinality {
		return nil, fmt.Errorf("%w: %s.%s is %s, not %s", ErrInvalidArgument, r.model.name, name, rel.cardinality, cardinality)
	}

	var a association
	switch cardinality {
	case CardinalityManyToOne:
		a = &ManyToOneProxy{relationship: rel, child: r}
		r.childAssociations = append(r.childAssociations, a)
	case CardinalityOneToMany:
		a = &OneToManyProxy{relationship: rel, parent: r}
		r.parentAssociations = append(r.parentAssociations, a)
	case CardinalityManyToMany:
		a = &ManyToManyProxy{relationship: rel, parent: r}
		r.parentAssociations = append(r.parentAssociations, a)
	}
	r.associations[name] = a
	return a, nil
}
