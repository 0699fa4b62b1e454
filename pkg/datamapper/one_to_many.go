package datamapper

import "context"

// OneToManyProxy is the lazily loaded collection of a one-to-many
// relationship. Changes are kept locally until the parent is saved.
type OneToManyProxy struct {
	relationship *Relationship
	parent       *Resource
	children     []*Resource
	loaded       bool
	replaced     bool
	orphans      []*Resource
}

var _ association = (*OneToManyProxy)(nil)

func (p *OneToManyProxy) Relationship() *Relationship { return p.relationship }

func (p *OneToManyProxy) load(ctx context.Context) error {
	if p.loaded || p.replaced {
		return nil
	}
	if !p.parent.IsNewRecord() {
		children, err := p.relationship.GetChildren(ctx, p.parent)
		if err != nil {
			return err
		}
		p.children = children
	}
	p.loaded = true
	return nil
}

// All returns the children.
func (p *OneToManyProxy) All(ctx context.Context) ([]*Resource, error) {
	if err := p.load(ctx); err != nil {
		return nil, err
	}
	return append([]*Resource(nil), p.children...), nil
}

// Len returns the number of children.
func (p *OneToManyProxy) Len(ctx context.Context) (int, error) {
	if err := p.load(ctx); err != nil {
		return 0, err
	}
	return len(p.children), nil
}

// First returns the first child, or nil.
func (p *OneToManyProxy) First(ctx context.Context) (*Resource, error) {
	if err := p.load(ctx); err != nil || len(p.children) == 0 {
		return nil, err
	}
	return p.children[0], nil
}

// Append adds children and points their foreign keys at the parent.
func (p *OneToManyProxy) Append(ctx context.Context, children ...*Resource) error {
	if err := p.load(ctx); err != nil {
		return err
	}
	for _, c := range children {
		if indexOf(p.children, c) < 0 {
			p.children = append(p.children, c)
		}
		p.orphans = without(p.orphans, c)
		if err := p.relationship.AttachParent(c, p.parent); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes child from the collection. It is orphaned when the parent
// is saved.
func (p *OneToManyProxy) Delete(ctx context.Context, child *Resource) (bool, error) {
	if err := p.load(ctx); err != nil {
		return false, err
	}
	if indexOf(p.children, child) < 0 {
		return false, nil
	}
	p.children = without(p.children, child)
	p.orphans = append(p.orphans, child)
	return true, nil
}

// Clear removes every child.
func (p *OneToManyProxy) Clear(ctx context.Context) error {
	if err := p.load(ctx); err != nil {
		return err
	}
	p.orphans = append(p.orphans, p.children...)
	p.children = nil
	return nil
}

// Replace makes children the whole collection. Children no longer in it are
// orphaned when the parent is saved.
func (p *OneToManyProxy) Replace(children []*Resource) (*OneToManyProxy, error) {
	if p.loaded {
		for _, c := range p.children {
			if indexOf(children, c) < 0 {
				p.orphans = append(p.orphans, c)
			}
		}
	} else {
		p.replaced = true
	}
	p.children = nil
	for _, c := range children {
		if indexOf(p.children, c) >= 0 {
			continue
		}
		p.children = append(p.children, c)
		p.orphans = without(p.orphans, c)
		if err := p.relationship.AttachParent(c, p.parent); err != nil {
			return p, err
		}
	}
	return p, nil
}

// Reload drops the loaded children and any unsaved changes.
func (p *OneToManyProxy) Reload() *OneToManyProxy {
	p.children, p.orphans = nil, nil
	p.loaded, p.replaced = false, false
	return p
}

// Save saves every child linked to the parent, then orphans removed
// children: they are destroyed when the foreign key is part of their key or
// required, and unlinked otherwise.
func (p *OneToManyProxy) Save(ctx context.Context) (bool, error) {
	if !p.loaded && !p.replaced && len(p.orphans) == 0 {
		return false, nil
	}
	if p.replaced && !p.loaded && !p.parent.IsNewRecord() {
		stored, err := p.relationship.GetChildren(ctx, p.parent)
		if err != nil {
			return false, err
		}
		for _, c := range stored {
			if indexOf(p.children, c) < 0 && indexOf(p.orphans, c) < 0 {
				p.orphans = append(p.orphans, c)
			}
		}
	}

	saved := false
	for _, c := range p.children {
		if err := p.relationship.AttachParent(c, p.parent); err != nil {
			return false, err
		}
		ok, err := c.Save(ctx)
		if err != nil {
			return false, err
		}
		saved = saved || ok
	}

	destroy, err := p.destroysOrphans()
	if err != nil {
		return false, err
	}
	for len(p.orphans) > 0 {
		o := p.orphans[0]
		var ok bool
		if destroy {
			ok, err = o.Destroy(ctx)
		} else {
			if err = p.relationship.AttachParent(o, nil); err == nil {
				ok, err = o.Save(ctx)
			}
		}
		if err != nil {
			return false, err
		}
		saved = saved || ok
		p.orphans = p.orphans[1:]
	}
	p.loaded, p.replaced = true, false
	return saved, nil
}

func (p *OneToManyProxy) destroysOrphans() (bool, error) {
	childKey, err := p.relationship.ChildKey()
	if err != nil {
		return false, err
	}
	for _, k := range childKey {
		if k.IsKey() || !k.IsNullable() {
			return true, nil
		}
	}
	return false, nil
}

func (p *OneToManyProxy) saveAssociation(ctx context.Context) (bool, error) { return p.Save(ctx) }
func (p *OneToManyProxy) reset()                                           { p.Reload() }

func indexOf(resources []*Resource, r *Resource) int {
	for i, x := range resources {
		if x == r {
			return i
		}
	}
	return -1
}

func without(resources []*Resource, r *Resource) []*Resource {
	i := indexOf(resources, r)
	if i < 0 {
		return resources
	}
	out := make([]*Resource, 0, len(resources)-1)
	out = append(out, resources[:i]...)
	return append(out, resources[i+1:]...)
}
