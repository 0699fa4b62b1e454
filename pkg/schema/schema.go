package schema

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/doodlesbykumbi/datamapper-in-go/pkg/datamapper"
	"github.com/doodlesbykumbi/datamapper-in-go/pkg/property"
)

// ErrInvalidSchema is returned for definitions that cannot be applied.
var ErrInvalidSchema = errors.New("invalid schema")

// Schema is a set of model definitions.
type Schema struct {
	Models []Model `yaml:"models" validate:"dive"`
}

// Model defines one model, or a subclass when Parent is set.
type Model struct {
	Name          string            `yaml:"name" validate:"required"`
	Parent        string            `yaml:"parent,omitempty"`
	Storage       map[string]string `yaml:"storage,omitempty"`
	Properties    []Property        `yaml:"properties,omitempty" validate:"dive"`
	Relationships []Relationship    `yaml:"relationships,omitempty" validate:"dive"`
}

// Property defines one property.
type Property struct {
	Name         string          `yaml:"name" validate:"required"`
	Type         string          `yaml:"type" validate:"required"`
	Repository   string          `yaml:"repository,omitempty"`
	Field        string          `yaml:"field,omitempty"`
	Key          bool            `yaml:"key,omitempty"`
	Lazy         bool            `yaml:"lazy,omitempty"`
	LazyContexts []string        `yaml:"lazy_contexts,omitempty"`
	Eager        bool            `yaml:"eager,omitempty"`
	Required     bool            `yaml:"required,omitempty"`
	Nullable     bool            `yaml:"nullable,omitempty"`
	Index        bool            `yaml:"index,omitempty"`
	Length       int             `yaml:"length,omitempty" validate:"gte=0"`
	Default      any             `yaml:"default,omitempty"`
	Track        *property.Track `yaml:"track,omitempty"`
}

// UnmarshalYAML for Property handles both scalar ("name type") and mapping forms
func (p *Property) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		parts := strings.Fields(value.Value)
		if len(parts) != 2 {
			return fmt.Errorf("line %d: property %q: expected \"name type\"", value.Line, value.Value)
		}
		p.Name, p.Type = parts[0], parts[1]
		return nil
	}
	type propertyAlias Property
	return value.Decode((*propertyAlias)(p))
}

func (p Property) options() []property.Option {
	var opts []property.Option
	if p.Field != "" {
		opts = append(opts, property.Field(p.Field))
	}
	if p.Key {
		opts = append(opts, property.Key())
	}
	if p.Lazy || len(p.LazyContexts) > 0 {
		opts = append(opts, property.Lazy(p.LazyContexts...))
	}
	if p.Eager {
		opts = append(opts, property.Eager())
	}
	if p.Required {
		opts = append(opts, property.Required())
	}
	if p.Nullable {
		opts = append(opts, property.Nullable())
	}
	if p.Index {
		opts = append(opts, property.Index())
	}
	if p.Length > 0 {
		opts = append(opts, property.Length(p.Length))
	}
	if p.Default != nil {
		opts = append(opts, property.Default(p.Default))
	}
	if p.Track != nil {
		opts = append(opts, property.Tracked(*p.Track))
	}
	return opts
}

// Relationship defines one relationship of a model.
type Relationship struct {
	Name        string                  `yaml:"name" validate:"required"`
	Cardinality *datamapper.Cardinality `yaml:"cardinality" validate:"required"`
	ClassName   string                  `yaml:"class_name,omitempty"`
	ChildKey    []string                `yaml:"child_key,omitempty"`
	ParentKey   []string                `yaml:"parent_key,omitempty"`
	Repository  string                  `yaml:"repository,omitempty"`
	Order       []string                `yaml:"order,omitempty"`
}

func (r Relationship) options() datamapper.RelationshipOptions {
	opts := datamapper.RelationshipOptions{
		ClassName:  r.ClassName,
		ChildKey:   r.ChildKey,
		ParentKey:  r.ParentKey,
		Repository: r.Repository,
		Order:      r.Order,
	}
	if *r.Cardinality == datamapper.CardinalityManyToMany {
		opts.Through = datamapper.ThroughResource
	}
	return opts
}

// Parse parses schema YAML from a reader
func Parse(r io.Reader) (*Schema, error) {
	var s Schema
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&s); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSchema, err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Load parses a schema file, or every *.yml and *.yaml file of a directory
// in name order.
func Load(path string) (*Schema, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	files := []string{path}
	if info.IsDir() {
		files = nil
		for _, pattern := range []string{"*.yml", "*.yaml"} {
			matches, err := filepath.Glob(filepath.Join(path, pattern))
			if err != nil {
				return nil, err
			}
			files = append(files, matches...)
		}
		sort.Strings(files)
	}

	merged := &Schema{}
	for _, file := range files {
		f, err := os.Open(file)
		if err != nil {
			return nil, err
		}
		s, err := Parse(f)
		_ = f.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", file, err)
		}
		merged.Models = append(merged.Models, s.Models...)
	}
	return merged, merged.Validate()
}

// Validate checks the definitions without applying them.
func (s *Schema) Validate() error {
	if err := validator.New().Struct(s); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSchema, err)
	}
	seen := make(map[string]bool, len(s.Models))
	for _, m := range s.Models {
		if seen[m.Name] {
			return fmt.Errorf("%w: model %s is defined twice", ErrInvalidSchema, m.Name)
		}
		seen[m.Name] = true
	}
	for _, m := range s.Models {
		if m.Parent != "" && !seen[m.Parent] {
			return fmt.Errorf("%w: %s: unknown parent %s", ErrInvalidSchema, m.Name, m.Parent)
		}
		for _, p := range m.Properties {
			if _, ok := property.Lookup(p.Type); !ok {
				return fmt.Errorf("%w: %s.%s: unknown type %q (known: %s)", ErrInvalidSchema, m.Name, p.Name, p.Type, strings.Join(property.TypeNames(), ", "))
			}
		}
	}
	return nil
}

// ModelNames returns the defined model names in definition order.
func (s *Schema) ModelNames() []string {
	names := make([]string, len(s.Models))
	for i, m := range s.Models {
		names[i] = m.Name
	}
	return names
}

// Apply defines every model on mapper, parents before subclasses, then
// its relationships, and finalizes the mapper.
func (s *Schema) Apply(mapper *datamapper.Mapper) error {
	if err := s.Validate(); err != nil {
		return err
	}

	defined := make(map[string]*datamapper.Model, len(s.Models))
	pending := append([]Model(nil), s.Models...)
	for len(pending) > 0 {
		var next []Model
		for _, def := range pending {
			if def.Parent != "" && defined[def.Parent] == nil {
				next = append(next, def)
				continue
			}
			defined[def.Name] = define(mapper, defined[def.Parent], def)
		}
		if len(next) == len(pending) {
			return fmt.Errorf("%w: inheritance cycle among %v", ErrInvalidSchema, (&Schema{Models: next}).ModelNames())
		}
		pending = next
	}

	for _, def := range s.Models {
		m := defined[def.Name]
		for _, rel := range def.Relationships {
			var err error
			if *rel.Cardinality == datamapper.CardinalityManyToOne {
				_, err = m.BelongsTo(rel.Name, rel.options())
			} else {
				_, err = m.HasMany(rel.Name, rel.options())
			}
			if err != nil {
				return fmt.Errorf("%w: %s.%s: %v", ErrInvalidSchema, def.Name, rel.Name, err)
			}
		}
	}
	return mapper.Finalize()
}

func define(mapper *datamapper.Mapper, parent *datamapper.Model, def Model) *datamapper.Model {
	body := func(m *datamapper.Model) {
		for _, p := range def.Properties {
			typ, _ := property.Lookup(p.Type)
			if p.Repository != "" {
				m.PropertyIn(p.Repository, p.Name, typ, p.options()...)
			} else {
				m.Property(p.Name, typ, p.options()...)
			}
		}
		for repository, name := range def.Storage {
			m.SetStorageName(repository, name)
		}
	}
	if parent != nil {
		return parent.Inherit(def.Name, body)
	}
	return mapper.Define(def.Name, body)
}
