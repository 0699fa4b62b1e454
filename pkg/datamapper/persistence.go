package datamapper

import (
	"bytes"
	"context"
	"reflect"
	"time"

	"github.com/shopspring/decimal"

	"github.com/doodlesbykumbi/datamapper-in-go/pkg/property"
)

// DirtyProperties returns the properties whose value differs from the
// recorded original, in definition order.
func (r *Resource) DirtyProperties() []*property.Property {
	var dirty []*property.Property
	for _, p := range r.properties().All() {
		original, ok := r.originalValues[p.Name()]
		if !ok {
			continue
		}
		current := p.Value(r)
		if h, isHash := original.(uint64); isHash && p.Track() == property.TrackHash {
			if h != property.Hash(current) {
				dirty = append(dirty, p)
			}
			continue
		}
		if !valuesEqual(original, current) {
			dirty = append(dirty, p)
		}
	}
	return dirty
}

// DirtyAttributes returns the changed property values by name.
func (r *Resource) DirtyAttributes() map[string]any {
	dirty := make(map[string]any)
	for _, p := range r.DirtyProperties() {
		dirty[p.Name()] = p.Value(r)
	}
	return dirty
}

// IsDirty reports whether any property changed.
func (r *Resource) IsDirty() bool {
	return len(r.DirtyProperties()) > 0
}

func valuesEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch x := a.(type) {
	case time.Time:
		y, ok := b.(time.Time)
		return ok && x.Equal(y)
	case decimal.Decimal:
		y, ok := b.(decimal.Decimal)
		return ok && x.Equal(y)
	case []byte:
		y, ok := b.([]byte)
		return ok && bytes.Equal(x, y)
	}
	return reflect.DeepEqual(a, b)
}

// bind binds a never-saved resource to the current repository of ctx.
func (r *Resource) bind(ctx context.Context) (*Repository, error) {
	if r.repository == nil {
		repo, err := r.model.repository(ctx)
		if err != nil {
			return nil, err
		}
		r.repository = repo
	}
	return r.repository, nil
}

// Save persists r: many-to-one associations first, then r itself (create or
// update of dirty attributes), then its collections. It reports whether r or
// any association was saved.
func (r *Resource) Save(ctx context.Context) (bool, error) {
	if r.readonly {
		return false, ErrReadOnly
	}
	repo, err := r.bind(ctx)
	if err != nil {
		return false, err
	}
	ctx = WithRepository(ctx, repo)

	associationsSaved := false
	for _, a := range r.childAssociations {
		ok, err := a.saveAssociation(ctx)
		if err != nil {
			return false, err
		}
		associationsSaved = associationsSaved || ok
	}

	var saved bool
	if r.newRecord {
		saved, err = r.create(ctx, repo)
	} else {
		saved, err = r.update(ctx, repo)
	}
	if err != nil {
		return false, err
	}
	if saved {
		r.resetOriginalValues()
	}

	for _, a := range r.parentAssociations {
		ok, err := a.saveAssociation(ctx)
		if err != nil {
			return false, err
		}
		associationsSaved = associationsSaved || ok
	}

	r.model.mapper.logger.Debug().Str("repository", repo.name).Str("resource", r.String()).Bool("saved", saved).Msg("save")
	return saved || associationsSaved, nil
}

// SaveOrFail saves r and returns a *PersistenceError when r is still a new
// record afterwards.
func (r *Resource) SaveOrFail(ctx context.Context) error {
	if _, err := r.Save(ctx); err != nil {
		return err
	}
	if r.newRecord {
		return &PersistenceError{Model: r.model.name, NewRecord: r.newRecord, DirtyAttributes: r.DirtyAttributes()}
	}
	return nil
}

func (r *Resource) create(ctx context.Context, repo *Repository) (bool, error) {
	key := r.model.Key(repo.name)
	serial := false
	for _, k := range key {
		serial = serial || k.IsSerial()
	}

	for _, p := range r.properties().All() {
		if p.IsLoaded(r) {
			continue
		}
		if v, ok := r.defaultFor(p); ok {
			if err := r.setAttribute(p, v); err != nil {
				return false, err
			}
		}
	}
	if !r.IsDirty() && !serial {
		return false, nil
	}

	n, err := repo.Create(ctx, []*Resource{r})
	if err != nil || n != 1 {
		return false, err
	}
	for _, k := range key {
		v, err := k.Typecast(k.Value(r))
		if err != nil {
			return false, err
		}
		k.SetValue(r, v)
	}
	r.newRecord = false
	repo.IdentityMap(r.model).Set(r.Key(), r)
	return true, nil
}

func (r *Resource) update(ctx context.Context, repo *Repository) (bool, error) {
	dirty := r.DirtyProperties()
	if len(dirty) == 0 {
		return true, nil
	}
	attrs := make([]Attribute, len(dirty))
	for i, p := range dirty {
		attrs[i] = Attribute{Property: p, Value: p.Value(r)}
	}

	key := r.originalKey()
	q, err := r.model.ToQuery(repo, key, Options{})
	if err != nil {
		return false, err
	}
	n, err := repo.Update(ctx, attrs, q)
	if err != nil || n != 1 {
		return false, err
	}
	if current := r.Key(); !valuesEqualSlices(key, current) {
		im := repo.IdentityMap(r.model)
		im.Delete(key)
		im.Set(current, r)
	}
	return true, nil
}

// originalKey returns the key r was loaded with.
func (r *Resource) originalKey() []any {
	key := r.Key()
	for i, k := range r.model.Key(r.repositoryName()) {
		if v, ok := r.originalValues[k.Name()]; ok && v != nil && k.Track() != property.TrackHash {
			key[i] = v
		}
	}
	return key
}

func valuesEqualSlices(a, b []any) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !valuesEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}

// resetOriginalValues forgets recorded changes and re-records the baselines
// of tracked properties.
func (r *Resource) resetOriginalValues() {
	r.originalValues = make(map[string]any)
	for _, p := range r.properties().All() {
		if !p.IsLoaded(r) {
			continue
		}
		switch p.Track() {
		case property.TrackHash:
			r.originalValues[p.Name()] = property.Hash(p.Value(r))
		case property.TrackLoad:
			r.originalValues[p.Name()] = p.Value(r)
		}
	}
}

// Destroy deletes r. Afterwards r is a new record again whose loaded values
// are all dirty.
func (r *Resource) Destroy(ctx context.Context) (bool, error) {
	if r.readonly {
		return false, ErrReadOnly
	}
	if r.newRecord || r.repository == nil {
		return false, nil
	}
	repo := r.repository
	key := r.originalKey()
	q, err := r.model.ToQuery(repo, key, Options{})
	if err != nil {
		return false, err
	}
	n, err := repo.Delete(WithRepository(ctx, repo), q)
	if err != nil || n != 1 {
		return false, err
	}

	r.newRecord = true
	repo.IdentityMap(r.model).Delete(key)
	r.originalValues = make(map[string]any)
	for _, p := range r.properties().All() {
		if p.IsLoaded(r) {
			r.originalValues[p.Name()] = nil
		}
	}
	r.model.mapper.logger.Debug().Str("repository", repo.name).Str("resource", r.String()).Msg("destroyed")
	return true, nil
}

// Reload re-reads r's loaded properties from storage, replacing local
// changes, and resets its associations.
func (r *Resource) Reload(ctx context.Context) error {
	if r.newRecord || r.repository == nil {
		return nil
	}
	var fields []string
	for _, k := range r.model.Key(r.repository.name) {
		fields = append(fields, k.Name())
	}
	for _, p := range r.properties().All() {
		if p.IsLoaded(r) && !p.IsKey() {
			fields = append(fields, p.Name())
		}
	}

	key := r.originalKey()
	q, err := r.model.ToQuery(r.repository, key, Options{Fields: fields, Reload: true})
	if err != nil {
		return err
	}
	saved := r.originalValues
	r.originalValues = make(map[string]any)
	loaded, err := r.repository.ReadOne(WithRepository(ctx, r.repository), q)
	if err != nil {
		r.originalValues = saved
		return err
	}
	if loaded != nil && loaded != r {
		for _, f := range q.fields {
			f.SetValue(r, f.Value(loaded))
		}
		r.resetOriginalValues()
	}

	for _, a := range r.childAssociations {
		a.reset()
	}
	for _, a := range r.parentAssociations {
		a.reset()
	}
	return nil
}
