package datamapper

import (
	"fmt"

	"github.com/doodlesbykumbi/datamapper-in-go/pkg/property"
)

// Load materializes one result tuple of q, values in q.Fields() order.
//
// The discriminator, when selected, picks the concrete model, which must be m
// or one of its descendants. When every key property is selected the
// resource is looked up in the repository's identity map: a cached resource
// is returned as is unless q reloads, in which case its fields are
// repopulated in place. New resources enter the identity map before their
// fields are populated. Without a key the resource is read-only.
//
// Fields the concrete model does not define, selected for sibling
// subclasses, are skipped.
func (m *Model) Load(values []any, q *Query) (*Resource, error) {
	repo := q.repository
	fields := q.fields
	if len(values) != len(fields) {
		return nil, fmt.Errorf("%w: %s: %d values for %d fields", ErrMalformedQuery, q, len(values), len(fields))
	}

	model := m
	if i := q.InheritancePropertyIndex(repo); i >= 0 {
		resolved, err := m.resolveDiscriminator(fields[i], values[i])
		if err != nil {
			return nil, err
		}
		model = resolved
	}

	var (
		resource  *Resource
		allocated bool
		key       []any
	)
	if indexes := q.KeyPropertyIndexes(repo); indexes != nil {
		key = make([]any, len(indexes))
		for j, i := range indexes {
			v, err := fields[i].Load(values[i])
			if err != nil {
				return nil, err
			}
			key[j] = v
		}
		im := repo.IdentityMap(model)
		if cached, ok := im.Get(key); ok {
			if !q.reload {
				m.mapper.logger.Trace().Str("model", model.name).Interface("key", key).Msg("identity map hit")
				return cached, nil
			}
			resource = cached
		} else {
			m.mapper.logger.Trace().Str("model", model.name).Interface("key", key).Msg("identity map miss")
			resource = model.Allocate(repo)
			allocated = true
			im.Set(key, resource)
		}
	} else {
		resource = model.Allocate(repo)
		resource.readonly = true
	}

	resource.newRecord = false

	props := model.Properties(repo.name)
	for i, f := range fields {
		if !props.Has(f.Name()) {
			continue
		}
		v, err := f.Load(values[i])
		if err != nil {
			if allocated {
				repo.IdentityMap(model).Delete(key)
			}
			return nil, err
		}
		f.SetValue(resource, v)

		switch f.Track() {
		case property.TrackHash:
			if _, ok := resource.originalValues[f.Name()]; !ok {
				resource.originalValues[f.Name()] = property.Hash(v)
			}
		case property.TrackLoad:
			if _, ok := resource.originalValues[f.Name()]; !ok {
				resource.originalValues[f.Name()] = v
			}
		}
	}
	return resource, nil
}

func (m *Model) resolveDiscriminator(p *property.Property, raw any) (*Model, error) {
	v, err := p.Load(raw)
	if err != nil {
		return nil, err
	}
	name, _ := v.(string)
	if name == "" || name == m.name {
		return m, nil
	}
	resolved, ok := m.mapper.Model(name)
	if !ok || !resolved.IsDescendantOf(m) {
		return nil, fmt.Errorf("%w: %q is not %s or a descendant of it", ErrInvalidDiscriminator, name, m.name)
	}
	m.mapper.logger.Trace().Str("model", m.name).Str("resolved", name).Msg("discriminator dispatch")
	return resolved, nil
}
