package property

import (
	"fmt"
)

// DefaultLazyContext is the lazy-load context a lazy property joins when no
// context is named.
const DefaultLazyContext = "default"

// Target is anything holding instance values for properties.
type Target interface {
	InstanceGet(name string) (any, bool)
	InstanceSet(name string, value any)
}

// DefaultFunc computes a default value for a property on a target.
type DefaultFunc func(t Target, p *Property) any

// Property describes one typed field of a model.
type Property struct {
	name         string
	field        string
	typ          Type
	key          bool
	serial       bool
	lazy         bool
	lazyContexts []string
	nullable     *bool
	defaultValue any
	hasDefault   bool
	length       int
	index        bool
	track        *Track
}

// Option configures a Property.
type Option func(*Property)

// Key marks the property as part of the model key.
func Key() Option { return func(p *Property) { p.key = true } }

// Lazy excludes the property from default field lists. Contexts group lazy
// properties that are loaded together; none means DefaultLazyContext.
func Lazy(contexts ...string) Option {
	return func(p *Property) {
		p.lazy = true
		p.lazyContexts = append(p.lazyContexts, contexts...)
	}
}

// Eager forces a property whose type is lazy by default to load eagerly.
func Eager() Option { return func(p *Property) { p.lazy = false; p.lazyContexts = nil } }

// Required marks the property as not nullable.
func Required() Option { return func(p *Property) { f := false; p.nullable = &f } }

// Nullable marks the property as nullable.
func Nullable() Option { return func(p *Property) { t := true; p.nullable = &t } }

// Default sets a default value or DefaultFunc.
func Default(value any) Option {
	return func(p *Property) {
		p.defaultValue = value
		p.hasDefault = true
	}
}

// Field overrides the storage field name.
func Field(name string) Option { return func(p *Property) { p.field = name } }

// Length sets the maximum length of string values.
func Length(n int) Option { return func(p *Property) { p.length = n } }

// Index marks the property as indexed.
func Index() Option { return func(p *Property) { p.index = true } }

// Tracked sets the original value tracking policy.
func Tracked(track Track) Option { return func(p *Property) { p.track = &track } }

// New builds a property. The Serial type implies Key, the Text type implies
// Lazy unless overridden.
func New(name string, typ Type, opts ...Option) *Property {
	p := &Property{name: name, field: name, typ: typ}
	switch typ {
	case Serial:
		p.serial = true
		p.key = true
	case Text:
		p.lazy = true
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.lazy && len(p.lazyContexts) == 0 {
		p.lazyContexts = []string{DefaultLazyContext}
	}
	return p
}

func (p *Property) Name() string           { return p.name }
func (p *Property) Field() string          { return p.field }
func (p *Property) Type() Type             { return p.typ }
func (p *Property) Primitive() Primitive   { return p.typ.Primitive() }
func (p *Property) IsKey() bool            { return p.key }
func (p *Property) IsSerial() bool         { return p.serial }
func (p *Property) IsLazy() bool           { return p.lazy }
func (p *Property) IsIndexed() bool        { return p.index }
func (p *Property) Length() int            { return p.length }
func (p *Property) LazyContexts() []string { return append([]string(nil), p.lazyContexts...) }

// IsNullable reports whether nil is an acceptable value. Key properties are
// not nullable unless explicitly marked.
func (p *Property) IsNullable() bool {
	if p.nullable != nil {
		return *p.nullable
	}
	return !p.key
}

// IsCustom reports whether the property's type loads and dumps values itself.
func (p *Property) IsCustom() bool {
	_, ok := p.typ.(CustomType)
	return ok
}

// IsDiscriminator reports whether the property names a row's concrete model.
func (p *Property) IsDiscriminator() bool {
	return p.typ == Discriminator
}

// Track returns the tracking policy. Without an explicit policy, custom
// types other than Discriminator and mutable primitives are hash-tracked.
func (p *Property) Track() Track {
	if p.track != nil {
		return *p.track
	}
	if p.IsDiscriminator() {
		return TrackNone
	}
	if p.IsCustom() {
		return TrackHash
	}
	switch p.Primitive() {
	case PrimitiveBinary, PrimitiveObject:
		return TrackHash
	}
	return TrackNone
}

// HasDefault reports whether a default value is configured.
func (p *Property) HasDefault() bool { return p.hasDefault }

// Default returns the default value for target.
func (p *Property) Default(t Target) any {
	if fn, ok := p.defaultValue.(DefaultFunc); ok {
		return fn(t, p)
	}
	if fn, ok := p.defaultValue.(func(Target, *Property) any); ok {
		return fn(t, p)
	}
	return p.defaultValue
}

// Typecast casts value to the property's primitive.
func (p *Property) Typecast(value any) (any, error) {
	if ct, ok := p.typ.(CustomType); ok {
		return ct.Load(value, p)
	}
	v, err := Typecast(p.Primitive(), value)
	if err != nil {
		return nil, fmt.Errorf("property %s: %w", p.name, err)
	}
	return v, nil
}

// Load converts a stored value to its in-memory form.
func (p *Property) Load(value any) (any, error) {
	if ct, ok := p.typ.(CustomType); ok {
		v, err := ct.Load(value, p)
		if err != nil {
			return nil, fmt.Errorf("property %s: %w", p.name, err)
		}
		return v, nil
	}
	return p.Typecast(value)
}

// Dump converts an in-memory value to its stored form.
func (p *Property) Dump(value any) (any, error) {
	if ct, ok := p.typ.(CustomType); ok {
		v, err := ct.Dump(value, p)
		if err != nil {
			return nil, fmt.Errorf("property %s: %w", p.name, err)
		}
		return v, nil
	}
	return value, nil
}

// Value returns the instance value held by t, bypassing any accessor.
func (p *Property) Value(t Target) any {
	v, _ := t.InstanceGet(p.name)
	return v
}

// IsLoaded reports whether t holds a value for the property.
func (p *Property) IsLoaded(t Target) bool {
	_, ok := t.InstanceGet(p.name)
	return ok
}

// SetValue assigns the instance value on t, bypassing any accessor.
func (p *Property) SetValue(t Target, value any) {
	t.InstanceSet(p.name, value)
}

func (p *Property) String() string {
	return fmt.Sprintf("%s(%s)", p.name, p.typ.Name())
}

// Values returns the instance values of props on t, in order.
func Values(props []*Property, t Target) []any {
	values := make([]any, len(props))
	for i, p := range props {
		values[i] = p.Value(t)
	}
	return values
}

// Names returns the names of props, in order.
func Names(props []*Property) []string {
	names := make([]string, len(props))
	for i, p := range props {
		names[i] = p.name
	}
	return names
}
