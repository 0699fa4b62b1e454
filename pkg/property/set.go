package property

// Set is an ordered collection of properties, indexed by name.
type Set struct {
	entries      []*Property
	index        map[string]int
	lazyContexts map[string][]string
}

// NewSet builds a set holding props in order.
func NewSet(props ...*Property) *Set {
	s := &Set{
		index:        make(map[string]int),
		lazyContexts: make(map[string][]string),
	}
	for _, p := range props {
		s.Add(p)
	}
	return s
}

// Add appends p, or replaces the property of the same name in place.
func (s *Set) Add(p *Property) {
	if i, ok := s.index[p.name]; ok {
		s.entries[i] = p
	} else {
		s.index[p.name] = len(s.entries)
		s.entries = append(s.entries, p)
	}
	for _, ctx := range p.lazyContexts {
		s.AddToLazyContext(ctx, p.name)
	}
}

// Get returns the property with the given name.
func (s *Set) Get(name string) (*Property, bool) {
	i, ok := s.index[name]
	if !ok {
		return nil, false
	}
	return s.entries[i], true
}

func (s *Set) Has(name string) bool {
	_, ok := s.index[name]
	return ok
}

func (s *Set) Len() int { return len(s.entries) }

// All returns the properties in definition order.
func (s *Set) All() []*Property {
	return append([]*Property(nil), s.entries...)
}

func (s *Set) Names() []string { return Names(s.entries) }

// Key returns the key properties in definition order.
func (s *Set) Key() []*Property {
	var key []*Property
	for _, p := range s.entries {
		if p.key {
			key = append(key, p)
		}
	}
	return key
}

// Defaults returns the properties loaded by default, i.e. the non-lazy ones.
func (s *Set) Defaults() []*Property {
	var defaults []*Property
	for _, p := range s.entries {
		if !p.lazy {
			defaults = append(defaults, p)
		}
	}
	return defaults
}

// InheritanceProperty returns the discriminator property, if any.
func (s *Set) InheritanceProperty() *Property {
	for _, p := range s.entries {
		if p.IsDiscriminator() {
			return p
		}
	}
	return nil
}

// AddToLazyContext records name as a member of the lazy-load context.
func (s *Set) AddToLazyContext(context, name string) {
	for _, n := range s.lazyContexts[context] {
		if n == name {
			return
		}
	}
	s.lazyContexts[context] = append(s.lazyContexts[context], name)
}

// LazyContext returns the property names in a lazy-load context.
func (s *Set) LazyContext(context string) []string {
	return append([]string(nil), s.lazyContexts[context]...)
}

// LazyLoadContext expands names to every property sharing a lazy-load context
// with any of them. The given names come first.
func (s *Set) LazyLoadContext(names ...string) []string {
	seen := make(map[string]bool, len(names))
	result := make([]string, 0, len(names))
	add := func(n string) {
		if !seen[n] {
			seen[n] = true
			result = append(result, n)
		}
	}
	for _, n := range names {
		add(n)
	}
	for _, n := range names {
		p, ok := s.Get(n)
		if !ok {
			continue
		}
		for _, ctx := range p.lazyContexts {
			for _, member := range s.lazyContexts[ctx] {
				add(member)
			}
		}
	}
	return result
}

// Dup returns a copy of the set that can be extended without affecting s.
// Properties themselves are shared.
func (s *Set) Dup() *Set {
	d := &Set{
		entries:      append([]*Property(nil), s.entries...),
		index:        make(map[string]int, len(s.index)),
		lazyContexts: make(map[string][]string, len(s.lazyContexts)),
	}
	for k, v := range s.index {
		d.index[k] = v
	}
	for k, v := range s.lazyContexts {
		d.lazyContexts[k] = append([]string(nil), v...)
	}
	return d
}
