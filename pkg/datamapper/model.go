package datamapper

import (
	"fmt"
	"sort"

	"github.com/doodlesbykumbi/datamapper-in-go/pkg/defaultmap"
	"github.com/doodlesbykumbi/datamapper-in-go/pkg/property"
)

// Model describes one kind of resource: its properties and relationships per
// repository, its storage names and its place in an inheritance tree.
//
// Models are defined up front through Mapper.Define and Model.Inherit and are
// read-only afterwards.
type Model struct {
	mapper             *Mapper
	name               string
	parent             *Model
	children           []*Model
	defaultStorageName string

	storageNames  *defaultmap.Map[string, string]
	properties    *defaultmap.Map[string, *property.Set]
	relationships *defaultmap.Map[string, map[string]*Relationship]
	defaultOrders *defaultmap.Map[string, []Direction]

	accessors map[string]Accessor
	methods   map[string]Method
}

func newModel(mapper *Mapper, name string, parent *Model) *Model {
	m := &Model{
		mapper:             mapper,
		name:               name,
		parent:             parent,
		defaultStorageName: name,
		accessors:          make(map[string]Accessor),
		methods:            make(map[string]Method),
	}
	m.defaultOrders = defaultmap.New(func(repositoryName string) []Direction {
		key := m.Key(repositoryName)
		order := make([]Direction, len(key))
		for i, p := range key {
			order[i] = Direction{Property: p}
		}
		return order
	})

	storageName := func(repositoryName string) string {
		return mapper.NamingConvention(repositoryName)(m.defaultStorageName)
	}
	otherRepository := func(repositoryName string) *property.Set {
		return m.properties.Get(mapper.defaultRepository).Dup()
	}
	relationshipTable := func(repositoryName string) map[string]*Relationship {
		if repositoryName == mapper.defaultRepository {
			return make(map[string]*Relationship)
		}
		return copyRelationships(m.relationships.Get(mapper.defaultRepository))
	}

	if parent == nil {
		m.storageNames = defaultmap.New(storageName)
		m.properties = defaultmap.New(func(repositoryName string) *property.Set {
			if repositoryName == mapper.defaultRepository {
				return property.NewSet()
			}
			return otherRepository(repositoryName)
		})
		m.relationships = defaultmap.New(relationshipTable)
		return m
	}

	// Subclasses share the parent's storage and start from copies of its
	// property set and relationship tables.
	m.defaultStorageName = parent.defaultStorageName
	m.storageNames = parent.storageNames.Dup(storageName, nil)
	m.properties = defaultmap.New(func(repositoryName string) *property.Set {
		if repositoryName == mapper.defaultRepository {
			return parent.Properties(repositoryName).Dup()
		}
		return otherRepository(repositoryName)
	})
	m.relationships = parent.relationships.Dup(relationshipTable, copyRelationships)
	for name, a := range parent.accessors {
		m.accessors[name] = a
	}
	for name, fn := range parent.methods {
		m.methods[name] = fn
	}
	return m
}

func copyRelationships(src map[string]*Relationship) map[string]*Relationship {
	dst := make(map[string]*Relationship, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func (m *Model) Name() string    { return m.name }
func (m *Model) Mapper() *Mapper { return m.mapper }
func (m *Model) Parent() *Model  { return m.parent }
func (m *Model) String() string  { return m.name }

// Base returns the root of m's inheritance tree.
func (m *Model) Base() *Model {
	base := m
	for base.parent != nil {
		base = base.parent
	}
	return base
}

// Inherit defines a subclass of m called name. The subclass starts with m's
// properties, relationships, accessors and storage names.
func (m *Model) Inherit(name string, fn func(*Model)) *Model {
	m.mapper.mu.Lock()
	child, ok := m.mapper.models[name]
	if !ok {
		child = newModel(m.mapper, name, m)
		m.children = append(m.children, child)
		m.mapper.register(child)
	}
	m.mapper.mu.Unlock()

	if ok && child.parent != m {
		panic(fmt.Sprintf("datamapper: %s is already defined and does not inherit from %s", name, m.name))
	}
	if fn != nil {
		fn(child)
	}
	return child
}

// Children returns the direct subclasses of m.
func (m *Model) Children() []*Model {
	return append([]*Model(nil), m.children...)
}

// Descendants returns every subclass of m, depth first.
func (m *Model) Descendants() []*Model {
	var out []*Model
	for _, c := range m.children {
		out = append(out, c)
		out = append(out, c.Descendants()...)
	}
	return out
}

// IsDescendantOf reports whether other is a strict ancestor of m.
func (m *Model) IsDescendantOf(other *Model) bool {
	for p := m.parent; p != nil; p = p.parent {
		if p == other {
			return true
		}
	}
	return false
}

// Property defines a property in the default repository. The property is
// also added to every other repository's property set created so far.
func (m *Model) Property(name string, typ property.Type, opts ...property.Option) *property.Property {
	return m.PropertyIn(m.mapper.defaultRepository, name, typ, opts...)
}

// PropertyIn defines a property in one repository. It panics on an empty
// name or a nil type.
func (m *Model) PropertyIn(repositoryName, name string, typ property.Type, opts ...property.Option) *property.Property {
	if name == "" || typ == nil {
		panic(fmt.Sprintf("datamapper: %s: property needs a name and a type: %v", m.name, ErrInvalidArgument))
	}
	p := property.New(name, typ, opts...)

	m.properties.Get(repositoryName).Add(p)
	if repositoryName == m.mapper.defaultRepository {
		m.properties.Each(func(other string, set *property.Set) {
			if other != repositoryName {
				set.Add(p)
			}
		})
	}
	// Subclasses whose sets already exist gain properties their ancestors
	// define later, e.g. foreign keys created on first use of a relationship.
	for _, d := range m.Descendants() {
		d.properties.Each(func(other string, set *property.Set) {
			if (other == repositoryName || repositoryName == m.mapper.defaultRepository) && !set.Has(name) {
				set.Add(p)
			}
		})
		if _, ok := d.accessors[name]; !ok {
			d.accessors[name] = propertyAccessor(name)
		}
	}

	if _, ok := m.accessors[name]; !ok {
		m.accessors[name] = propertyAccessor(name)
	}
	return p
}

// Properties returns m's property set in a repository.
func (m *Model) Properties(repositoryName string) *property.Set {
	return m.properties.Get(repositoryName)
}

// PropertiesWithSubclasses returns m's properties plus those of every
// descendant when m uses single table inheritance.
func (m *Model) PropertiesWithSubclasses(repositoryName string) *property.Set {
	props := m.Properties(repositoryName)
	if props.InheritanceProperty() == nil {
		return props
	}
	props = props.Dup()
	for _, d := range m.Descendants() {
		for _, p := range d.Properties(repositoryName).All() {
			if !props.Has(p.Name()) {
				props.Add(p)
			}
		}
	}
	return props
}

// Key returns m's key properties in a repository.
func (m *Model) Key(repositoryName string) []*property.Property {
	return m.Properties(repositoryName).Key()
}

// InheritanceProperty returns the discriminator property in a repository.
func (m *Model) InheritanceProperty(repositoryName string) *property.Property {
	return m.Properties(repositoryName).InheritanceProperty()
}

// DefaultOrder orders by the key, ascending.
func (m *Model) DefaultOrder(repositoryName string) []Direction {
	return append([]Direction(nil), m.defaultOrders.Get(repositoryName)...)
}

// StorageName returns the name of m's storage in a repository.
func (m *Model) StorageName(repositoryName string) string {
	return m.storageNames.Get(repositoryName)
}

// SetStorageName overrides the storage name in a repository.
func (m *Model) SetStorageName(repositoryName, name string) {
	m.storageNames.Set(repositoryName, name)
}

// StorageNames returns the storage names computed so far, by repository.
func (m *Model) StorageNames() map[string]string {
	names := make(map[string]string)
	m.storageNames.Each(func(repo, name string) { names[repo] = name })
	return names
}

// Repositories returns the default repository followed by every repository
// m has a property set for.
func (m *Model) Repositories() []string {
	names := []string{m.mapper.defaultRepository}
	for _, name := range m.properties.Keys() {
		if name != m.mapper.defaultRepository {
			names = append(names, name)
		}
	}
	return names
}

// Relationships returns m's relationships in a repository, sorted by name.
func (m *Model) Relationships(repositoryName string) []*Relationship {
	table := m.relationships.Get(repositoryName)
	rels := make([]*Relationship, 0, len(table))
	for _, rel := range table {
		rels = append(rels, rel)
	}
	sort.Slice(rels, func(i, j int) bool { return rels[i].name < rels[j].name })
	return rels
}

// Relationship returns the relationship called name in a repository.
func (m *Model) Relationship(repositoryName, name string) (*Relationship, bool) {
	rel, ok := m.relationships.Get(repositoryName)[name]
	return rel, ok
}

// Path is a relationship traversal from a model to a related model.
type Path struct {
	Relationship *Relationship
	Model        *Model
}

// Lookup returns the property (*property.Property) or relationship path
// (*Path) called name in the default repository.
func (m *Model) Lookup(name string) (any, error) {
	repositoryName := m.mapper.defaultRepository
	if rel, ok := m.Relationship(repositoryName, name); ok {
		target, err := rel.ParentModel()
		if err != nil {
			return nil, err
		}
		if child, err := rel.ChildModel(); err == nil && child != m {
			target = child
		}
		return &Path{Relationship: rel, Model: target}, nil
	}
	if p, ok := m.Properties(repositoryName).Get(name); ok {
		return p, nil
	}
	return nil, &NoMethodError{Name: name, Receiver: m.name}
}
