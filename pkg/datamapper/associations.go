package datamapper

import (
	"context"
	"errors"
	"fmt"

	"github.com/jinzhu/inflection"
)

// BelongsTo defines a many-to-one relationship called name: resources of m
// reference one parent. The accessor returns a *ManyToOneProxy, or nil when
// the parent resolves to nothing, and its setter replaces the parent.
func (m *Model) BelongsTo(name string, opts RelationshipOptions) (*Relationship, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: relationship name is required", ErrInvalidArgument)
	}
	if opts.Through != "" {
		return nil, fmt.Errorf("%w: %s.%s: many-to-one relationships cannot go through another model", ErrInvalidArgument, m.name, name)
	}
	className := opts.ClassName
	if className == "" {
		className = Camelize(name)
	}
	rel := &Relationship{
		name:           name,
		cardinality:    CardinalityManyToOne,
		owner:          m,
		mapper:         m.mapper,
		childModelName: m.name,
		parentName:     className,
		options:        opts,
	}
	err := m.registerRelationship(rel, Accessor{
		Get: func(ctx context.Context, r *Resource) (any, error) {
			proxy, err := r.ManyToOne(name)
			if err != nil {
				return nil, err
			}
			parent, err := proxy.Resolve(ctx)
			if err != nil || parent == nil {
				return nil, err
			}
			return proxy, nil
		},
		Set: func(r *Resource, value any) error {
			proxy, err := r.ManyToOne(name)
			if err != nil {
				return err
			}
			if other, ok := value.(*ManyToOneProxy); ok {
				if err := proxy.follow(other); err != nil {
					return fmt.Errorf("%s.%s: %w", m.name, name, err)
				}
				return nil
			}
			parent, err := asResource(value)
			if err != nil {
				return fmt.Errorf("%s.%s: %w", m.name, name, err)
			}
			_, err = proxy.Replace(parent)
			return err
		},
	})
	if err != nil {
		return nil, err
	}
	rel.tryResolve()
	return rel, nil
}

// HasMany defines a one-to-many relationship called name, or a many-to-many
// relationship when opts.Through is ThroughResource. Many-to-many
// relationships also define a one-to-many relationship to the join model,
// e.g. "book_editors" for Book and Editor.
func (m *Model) HasMany(name string, opts RelationshipOptions) (*Relationship, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: relationship name is required", ErrInvalidArgument)
	}
	className := opts.ClassName
	if className == "" {
		className = Camelize(inflection.Singular(name))
	}

	switch opts.Through {
	case "":
		rel := &Relationship{
			name:           name,
			cardinality:    CardinalityOneToMany,
			owner:          m,
			mapper:         m.mapper,
			childModelName: className,
			parentName:     m.name,
			options:        opts,
		}
		err := m.registerRelationship(rel, Accessor{
			Get: func(ctx context.Context, r *Resource) (any, error) { return r.OneToMany(name) },
			Set: func(r *Resource, value any) error {
				proxy, err := r.OneToMany(name)
				if err != nil {
					return err
				}
				children, err := asResources(value, rel)
				if err != nil {
					return fmt.Errorf("%s.%s: %w", m.name, name, err)
				}
				_, err = proxy.Replace(children)
				return err
			},
		})
		if err != nil {
			return nil, err
		}
		rel.tryResolve()
		return rel, nil

	case ThroughResource:
		join := joinModelName(m.name, className)
		joinRel := joinRelationName(join)
		if _, ok := m.Relationship(m.mapper.defaultRepository, joinRel); !ok {
			if _, err := m.HasMany(joinRel, RelationshipOptions{ClassName: join, Repository: opts.Repository}); err != nil {
				return nil, err
			}
		}
		rel := &Relationship{
			name:             name,
			cardinality:      CardinalityManyToMany,
			owner:            m,
			mapper:           m.mapper,
			childModelName:   className,
			parentName:       m.name,
			options:          opts,
			joinModelName:    join,
			joinRelationName: joinRel,
		}
		err := m.registerRelationship(rel, Accessor{
			Get: func(ctx context.Context, r *Resource) (any, error) { return r.ManyToMany(name) },
			Set: func(r *Resource, value any) error {
				proxy, err := r.ManyToMany(name)
				if err != nil {
					return err
				}
				targets, err := asResources(value, rel)
				if err != nil {
					return fmt.Errorf("%s.%s: %w", m.name, name, err)
				}
				_, err = proxy.Replace(targets)
				return err
			},
		})
		if err != nil {
			return nil, err
		}
		rel.tryResolve()
		return rel, nil
	}
	return nil, fmt.Errorf("%w: %s.%s: unsupported through %q", ErrInvalidArgument, m.name, name, opts.Through)
}

// registerRelationship adds rel and its accessor to m's table in the default
// repository, to every other repository table created so far and to
// subclasses that don't define their own. A name may be registered once per
// model; subclasses may override inherited relationships.
func (m *Model) registerRelationship(rel *Relationship, accessor Accessor) error {
	if existing, ok := m.Relationship(m.mapper.defaultRepository, rel.name); ok && existing.owner == m {
		return fmt.Errorf("%w: %s.%s is already defined", ErrInvalidArgument, m.name, rel.name)
	}
	if _, ok := m.properties.Get(m.mapper.defaultRepository).Get(rel.name); ok {
		return fmt.Errorf("%w: %s.%s is already a property", ErrInvalidArgument, m.name, rel.name)
	}
	m.relationships.Get(m.mapper.defaultRepository)[rel.name] = rel
	m.relationships.Each(func(repositoryName string, table map[string]*Relationship) {
		table[rel.name] = rel
	})
	m.accessors[rel.name] = accessor

	for _, d := range m.Descendants() {
		existing, ok := d.Relationship(m.mapper.defaultRepository, rel.name)
		if ok && existing.owner != m && !m.IsDescendantOf(existing.owner) {
			continue
		}
		d.relationships.Each(func(repositoryName string, table map[string]*Relationship) {
			table[rel.name] = rel
		})
		d.accessors[rel.name] = accessor
	}
	return nil
}

// tryResolve resolves rel when every model it references is already defined,
// so foreign keys exist before the first query. Forward references are
// resolved later, by Mapper.Finalize or on first use.
func (rel *Relationship) tryResolve() {
	if err := rel.resolve(); err != nil && !errors.Is(err, ErrUnknownModel) {
		rel.mapper.logger.Debug().Err(err).Str("relationship", rel.name).Msg("relationship resolution deferred")
	}
}

func asResource(value any) (*Resource, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case *Resource:
		return v, nil
	}
	return nil, fmt.Errorf("%w: expected a resource, got %T", ErrInvalidArgument, value)
}

// asResources accepts resources or attribute maps. Maps build new resources
// of rel's child model, saved when the owner is saved.
func asResources(value any, rel *Relationship) ([]*Resource, error) {
	var items []any
	switch v := value.(type) {
	case nil:
		return nil, nil
	case []*Resource:
		return v, nil
	case *Resource, map[string]any:
		items = []any{v}
	case []map[string]any:
		for _, attrs := range v {
			items = append(items, attrs)
		}
	case []any:
		items = v
	default:
		return nil, fmt.Errorf("%w: expected resources, got %T", ErrInvalidArgument, value)
	}

	resources := make([]*Resource, 0, len(items))
	for _, item := range items {
		switch v := item.(type) {
		case *Resource:
			resources = append(resources, v)
		case map[string]any:
			child, err := rel.ChildModel()
			if err != nil {
				return nil, err
			}
			r, err := child.New(v)
			if err != nil {
				return nil, err
			}
			resources = append(resources, r)
		default:
			return nil, fmt.Errorf("%w: expected a resource or attributes, got %T", ErrInvalidArgument, item)
		}
	}
	return resources, nil
}
