package datamapper

import "context"

// ManyToManyProxy is the lazily loaded collection of a many-to-many
// relationship. Links are stored as join model resources, created and
// destroyed when the owner is saved.
type ManyToManyProxy struct {
	relationship *Relationship
	parent       *Resource
	targets      []*Resource
	loaded       bool
	replaced     bool
	removed      []*Resource
}

var _ association = (*ManyToManyProxy)(nil)

func (p *ManyToManyProxy) Relationship() *Relationship { return p.relationship }

func (p *ManyToManyProxy) load(ctx context.Context) error {
	if p.loaded || p.replaced {
		return nil
	}
	if !p.parent.IsNewRecord() {
		targets, err := p.relationship.GetChildren(ctx, p.parent)
		if err != nil {
			return err
		}
		p.targets = targets
	}
	p.loaded = true
	return nil
}

// All returns the linked targets.
func (p *ManyToManyProxy) All(ctx context.Context) ([]*Resource, error) {
	if err := p.load(ctx); err != nil {
		return nil, err
	}
	return append([]*Resource(nil), p.targets...), nil
}

func (p *ManyToManyProxy) Len(ctx context.Context) (int, error) {
	if err := p.load(ctx); err != nil {
		return 0, err
	}
	return len(p.targets), nil
}

// First returns the first linked target, or nil.
func (p *ManyToManyProxy) First(ctx context.Context) (*Resource, error) {
	if err := p.load(ctx); err != nil || len(p.targets) == 0 {
		return nil, err
	}
	return p.targets[0], nil
}

// Append links targets to the owner.
func (p *ManyToManyProxy) Append(ctx context.Context, targets ...*Resource) error {
	if err := p.load(ctx); err != nil {
		return err
	}
	for _, t := range targets {
		if indexOf(p.targets, t) < 0 {
			p.targets = append(p.targets, t)
		}
		p.removed = without(p.removed, t)
	}
	return nil
}

// Delete unlinks target.
func (p *ManyToManyProxy) Delete(ctx context.Context, target *Resource) (bool, error) {
	if err := p.load(ctx); err != nil {
		return false, err
	}
	if indexOf(p.targets, target) < 0 {
		return false, nil
	}
	p.targets = without(p.targets, target)
	p.removed = append(p.removed, target)
	return true, nil
}

// Clear unlinks every target. The targets themselves are kept.
func (p *ManyToManyProxy) Clear(ctx context.Context) error {
	if err := p.load(ctx); err != nil {
		return err
	}
	p.removed = append(p.removed, p.targets...)
	p.targets = nil
	return nil
}

// Replace makes targets the whole collection.
func (p *ManyToManyProxy) Replace(targets []*Resource) (*ManyToManyProxy, error) {
	if p.loaded {
		for _, t := range p.targets {
			if indexOf(targets, t) < 0 {
				p.removed = append(p.removed, t)
			}
		}
	} else {
		p.replaced = true
	}
	p.targets = nil
	for _, t := range targets {
		if indexOf(p.targets, t) < 0 {
			p.targets = append(p.targets, t)
		}
		p.removed = without(p.removed, t)
	}
	return p, nil
}

// Reload drops the loaded targets and any unsaved changes.
func (p *ManyToManyProxy) Reload() *ManyToManyProxy {
	p.targets, p.removed = nil, nil
	p.loaded, p.replaced = false, false
	return p
}

// Save saves new targets, creates missing join resources and destroys
// those of unlinked targets.
func (p *ManyToManyProxy) Save(ctx context.Context) (bool, error) {
	if !p.loaded && !p.replaced && len(p.removed) == 0 {
		return false, nil
	}
	rel := p.relationship
	join, err := rel.JoinModel()
	if err != nil {
		return false, err
	}
	if p.replaced && !p.loaded && !p.parent.IsNewRecord() {
		stored, err := rel.GetChildren(ctx, p.parent)
		if err != nil {
			return false, err
		}
		for _, t := range stored {
			if indexOf(p.targets, t) < 0 && indexOf(p.removed, t) < 0 {
				p.removed = append(p.removed, t)
			}
		}
	}
	scoped, err := rel.scope(ctx, p.parent)
	if err != nil {
		return false, err
	}

	saved := false
	for _, t := range p.targets {
		if t.IsNewRecord() {
			ok, err := t.Save(scoped)
			if err != nil {
				return false, err
			}
			saved = saved || ok
		}
		link, err := join.First(scoped, Options{Conditions: rel.joinAttributes(p.parent, t)})
		if err != nil {
			return false, err
		}
		if link == nil {
			if _, err := join.CreateOrFail(scoped, rel.joinAttributes(p.parent, t)); err != nil {
				return false, err
			}
			saved = true
		}
	}

	for len(p.removed) > 0 {
		t := p.removed[0]
		if !t.IsNewRecord() {
			link, err := join.First(scoped, Options{Conditions: rel.joinAttributes(p.parent, t)})
			if err != nil {
				return false, err
			}
			if link != nil {
				ok, err := link.Destroy(scoped)
				if err != nil {
					return false, err
				}
				saved = saved || ok
			}
		}
		p.removed = p.removed[1:]
	}

	if a, ok := p.parent.associations[rel.joinRelationName]; ok {
		a.reset()
	}
	p.loaded, p.replaced = true, false
	return saved, nil
}

func (p *ManyToManyProxy) saveAssociation(ctx context.Context) (bool, error) { return p.Save(ctx) }
func (p *ManyToManyProxy) reset()                                           { p.Reload() }
