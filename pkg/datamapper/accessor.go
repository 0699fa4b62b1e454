package datamapper

import (
	"context"
	"fmt"
	"sort"
)

// Getter reads a named value of a resource.
type Getter func(ctx context.Context, r *Resource) (any, error)

// Setter assigns a named value of a resource.
type Setter func(r *Resource, value any) error

// Accessor is the entry of a model's accessor table. Every property and
// relationship gets one when it is defined.
type Accessor struct {
	Get Getter
	Set Setter
}

// Method is a model-level capability invoked through Resource.Call.
type Method func(ctx context.Context, r *Resource, args ...any) (any, error)

func propertyAccessor(name string) Accessor {
	return Accessor{
		Get: func(ctx context.Context, r *Resource) (any, error) { return r.AttributeGet(ctx, name) },
		Set: func(r *Resource, value any) error { return r.AttributeSet(name, value) },
	}
}

// Accessor returns the accessor registered under name.
func (m *Model) Accessor(name string) (Accessor, bool) {
	a, ok := m.accessors[name]
	return a, ok
}

// OverrideGetter replaces the getter of name. The previous getter is passed
// to fn so overrides can wrap it.
func (m *Model) OverrideGetter(name string, fn func(next Getter) Getter) error {
	a, ok := m.accessors[name]
	if !ok {
		return &NoMethodError{Name: name, Receiver: m.name}
	}
	a.Get = fn(a.Get)
	m.accessors[name] = a
	return nil
}

// OverrideSetter replaces the setter of name. The previous setter is passed
// to fn so overrides can wrap it.
func (m *Model) OverrideSetter(name string, fn func(next Setter) Setter) error {
	a, ok := m.accessors[name]
	if !ok {
		return &NoMethodError{Name: name, Receiver: m.name}
	}
	a.Set = fn(a.Set)
	m.accessors[name] = a
	return nil
}

// DefineMethod adds name to the model's capability table.
func (m *Model) DefineMethod(name string, fn Method) {
	if name == "" || fn == nil {
		panic(fmt.Sprintf("datamapper: %s: method needs a name and a function: %v", m.name, ErrInvalidArgument))
	}
	m.methods[name] = fn
}

// RespondTo reports whether resources of m have an accessor or method
// called name.
func (m *Model) RespondTo(name string) bool {
	if _, ok := m.methods[name]; ok {
		return true
	}
	_, ok := m.accessors[name]
	return ok
}

// Capabilities returns the names of every accessor and method, sorted.
func (m *Model) Capabilities() []string {
	names := make([]string, 0, len(m.accessors)+len(m.methods))
	for name := range m.accessors {
		names = append(names, name)
	}
	for name := range m.methods {
		if _, ok := m.accessors[name]; !ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}
