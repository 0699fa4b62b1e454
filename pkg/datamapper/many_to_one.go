package datamapper

import (
	"context"
	"fmt"
	"sort"
)

// ManyToOneProxy stands in for the parent of a many-to-one relationship. The
// parent is looked up on first use and cached until Reload.
//
// The proxy's own capabilities are Resolve, Replace, Reload and Save. Every
// other capability is delegated to the parent through Call, RespondTo and
// KindOf.
type ManyToOneProxy struct {
	relationship *Relationship
	child        *Resource
	parent       *Resource
}

var manyToOneCapabilities = map[string]bool{
	"resolve": true,
	"replace": true,
	"reload":  true,
	"save":    true,
}

var _ association = (*ManyToOneProxy)(nil)

func (p *ManyToOneProxy) Relationship() *Relationship { return p.relationship }

// Resolve returns the parent, looking it up when not cached. It returns nil
// when the child references nothing.
func (p *ManyToOneProxy) Resolve(ctx context.Context) (*Resource, error) {
	if p.parent == nil {
		parent, err := p.relationship.GetParent(ctx, p.child)
		if err != nil {
			return nil, err
		}
		p.parent = parent
	}
	return p.parent, nil
}

// Replace caches parent and points the child's foreign key at it.
func (p *ManyToOneProxy) Replace(parent *Resource) (*ManyToOneProxy, error) {
	p.parent = parent
	if err := p.relationship.AttachParent(p.child, parent); err != nil {
		return p, err
	}
	return p, nil
}

// follow points the child at the parent other refers to. An unresolved other
// is not looked up: its child's foreign key is copied instead.
func (p *ManyToOneProxy) follow(other *ManyToOneProxy) error {
	if other.parent != nil {
		_, err := p.Replace(other.parent)
		return err
	}
	rel, from := p.relationship, other.relationship
	if err := rel.resolve(); err != nil {
		return err
	}
	if err := from.resolve(); err != nil {
		return err
	}
	if from.parentModel != rel.parentModel && !from.parentModel.IsDescendantOf(rel.parentModel) {
		return fmt.Errorf("%w: %s.%s references %s, not %s", ErrInvalidArgument, from.owner.name, from.name, from.parentModel.name, rel.parentModel.name)
	}
	if !samePropertyNames(rel.parentKey, from.parentKey) {
		return fmt.Errorf("%w: %s.%s and %s.%s use different parent keys", ErrInvalidArgument, from.owner.name, from.name, rel.owner.name, rel.name)
	}
	p.parent = nil
	for i, k := range rel.childKey {
		if err := p.child.AttributeSet(k.Name(), from.childKey[i].Value(other.child)); err != nil {
			return err
		}
	}
	return nil
}

// Reload drops the cached parent.
func (p *ManyToOneProxy) Reload() *ManyToOneProxy {
	p.parent = nil
	return p
}

// Save saves a cached parent that is a new record in the relationship's
// repository and re-links the child to it. It reports false when no parent
// is cached and true when the parent is already persisted.
func (p *ManyToOneProxy) Save(ctx context.Context) (bool, error) {
	if p.parent == nil {
		return false, nil
	}
	if !p.parent.IsNewRecord() {
		return true, nil
	}

	var saved bool
	err := p.child.model.mapper.Within(ctx, p.relationship.RepositoryName(), func(ctx context.Context) error {
		ok, err := p.parent.Save(ctx)
		if err != nil {
			return err
		}
		saved = ok
		if ok {
			return p.relationship.AttachParent(p.child, p.parent)
		}
		return nil
	})
	return saved, err
}

func (p *ManyToOneProxy) saveAssociation(ctx context.Context) (bool, error) { return p.Save(ctx) }
func (p *ManyToOneProxy) reset()                                           { p.Reload() }

// KindOf reports whether the parent is a resource of m or of a descendant.
func (p *ManyToOneProxy) KindOf(ctx context.Context, m *Model) (bool, error) {
	parent, err := p.Resolve(ctx)
	if err != nil || parent == nil {
		return false, err
	}
	return parent.KindOf(m), nil
}

// RespondTo reports whether the proxy or its parent has a capability called
// name.
func (p *ManyToOneProxy) RespondTo(ctx context.Context, name string) (bool, error) {
	if manyToOneCapabilities[name] {
		return true, nil
	}
	parent, err := p.Resolve(ctx)
	if err != nil || parent == nil {
		return false, err
	}
	return parent.RespondTo(name), nil
}

// Capabilities returns the proxy's own capabilities followed by the
// parent's.
func (p *ManyToOneProxy) Capabilities(ctx context.Context) ([]string, error) {
	names := make([]string, 0, len(manyToOneCapabilities))
	for name := range manyToOneCapabilities {
		names = append(names, name)
	}
	sort.Strings(names)
	parent, err := p.Resolve(ctx)
	if err != nil || parent == nil {
		return names, err
	}
	return append(names, parent.model.Capabilities()...), nil
}

// Call delegates name to the parent. It fails with a *NoMethodError when the
// parent resolves to nothing or lacks the capability.
func (p *ManyToOneProxy) Call(ctx context.Context, name string, args ...any) (any, error) {
	parent, err := p.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	if parent == nil {
		return nil, &NoMethodError{Name: name, Receiver: "nil " + p.relationship.parentName}
	}
	if !parent.RespondTo(name) {
		return nil, &NoMethodError{Name: name, Receiver: parent.String()}
	}
	return parent.Call(ctx, name, args...)
}

// Get reads name from the parent.
func (p *ManyToOneProxy) Get(ctx context.Context, name string) (any, error) {
	return p.Call(ctx, name)
}
