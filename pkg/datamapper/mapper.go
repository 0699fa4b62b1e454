package datamapper

import (
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"
	"gorm.io/gorm/schema"
)

// DefaultRepositoryName names the repository models are defined in unless
// configured otherwise.
const DefaultRepositoryName = "default"

// NamingConvention turns a model's default storage name into a storage name.
type NamingConvention func(name string) string

// UnderscoredAndPluralized names storages the way gorm names tables:
// "BookEditor" becomes "book_editors".
func UnderscoredAndPluralized(name string) string {
	return schema.NamingStrategy{}.TableName(name)
}

// Underscored snake-cases a name without pluralizing it.
func Underscored(name string) string {
	return schema.NamingStrategy{SingularTable: true}.TableName(name)
}

// Mapper holds model definitions and the adapters of named repositories.
type Mapper struct {
	logger            zerolog.Logger
	defaultRepository string
	naming            NamingConvention

	mu         sync.RWMutex
	adapters   map[string]Adapter
	models     map[string]*Model
	order      []*Model
	extensions []func(*Model)
}

// Option configures a Mapper.
type Option func(*Mapper)

// WithLogger sets the logger used for loading and persistence events.
func WithLogger(logger zerolog.Logger) Option {
	return func(m *Mapper) { m.logger = logger }
}

// WithDefaultRepositoryName sets the repository used when no repository is in
// context.
func WithDefaultRepositoryName(name string) Option {
	return func(m *Mapper) { m.defaultRepository = name }
}

// WithNamingConvention sets the storage naming convention used for adapters
// that don't provide their own.
func WithNamingConvention(convention NamingConvention) Option {
	return func(m *Mapper) { m.naming = convention }
}

// New returns an empty Mapper.
func New(opts ...Option) *Mapper {
	m := &Mapper{
		logger:            zerolog.Nop(),
		defaultRepository: DefaultRepositoryName,
		naming:            UnderscoredAndPluralized,
		adapters:          make(map[string]Adapter),
		models:            make(map[string]*Model),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Mapper) Logger() zerolog.Logger { return m.logger }

// DefaultRepositoryName returns the name of the default repository.
func (m *Mapper) DefaultRepositoryName() string { return m.defaultRepository }

// Setup registers adapter under a repository name.
func (m *Mapper) Setup(name string, adapter Adapter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.adapters[name] = adapter
	m.logger.Debug().Str("repository", name).Str("adapter", fmt.Sprintf("%T", adapter)).Msg("adapter set up")
}

// Adapter returns the adapter registered under name.
func (m *Mapper) Adapter(name string) (Adapter, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.adapters[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrAdapterNotSetUp, name)
	}
	return a, nil
}

// RepositoryNames returns the names of all set up repositories, sorted.
func (m *Mapper) RepositoryNames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.adapters))
	for name := range m.adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NamingConvention returns the storage naming convention of a repository.
func (m *Mapper) NamingConvention(repositoryName string) NamingConvention {
	m.mu.RLock()
	a := m.adapters[repositoryName]
	m.mu.RUnlock()
	if p, ok := a.(NamingConventionProvider); ok {
		return p.ResourceNamingConvention()
	}
	return m.naming
}

// AppendExtensions registers functions applied to every model defined
// afterwards, before the model's own definition runs.
func (m *Mapper) AppendExtensions(extensions ...func(*Model)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.extensions = append(m.extensions, extensions...)
}

// Define creates the model called name and runs fn to declare its properties
// and relationships. Defining an existing name reopens that model.
func (m *Mapper) Define(name string, fn func(*Model)) *Model {
	m.mu.Lock()
	model, ok := m.models[name]
	var extensions []func(*Model)
	if !ok {
		model = newModel(m, name, nil)
		m.register(model)
		extensions = append(extensions, m.extensions...)
	}
	m.mu.Unlock()

	for _, ext := range extensions {
		ext(model)
	}
	if fn != nil {
		fn(model)
	}
	return model
}

// register must be called with m.mu held.
func (m *Mapper) register(model *Model) {
	m.models[model.name] = model
	m.order = append(m.order, model)
}

// Model returns the model called name.
func (m *Mapper) Model(name string) (*Model, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	model, ok := m.models[name]
	return model, ok
}

// MustModel returns the model called name or an ErrUnknownModel error.
func (m *Mapper) MustModel(name string) (*Model, error) {
	model, ok := m.Model(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownModel, name)
	}
	return model, nil
}

// Models returns every model in definition order.
func (m *Mapper) Models() []*Model {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*Model(nil), m.order...)
}

// Finalize resolves the target models and keys of every relationship so
// foreign key properties and join models exist before the first query. It
// fails on relationships naming undefined models.
func (m *Mapper) Finalize() error {
	// Resolving many-to-many relationships may define join models, which are
	// then resolved in turn.
	for i := 0; ; i++ {
		models := m.Models()
		if i >= len(models) {
			return nil
		}
		model := models[i]
		for _, repositoryName := range model.relationships.Keys() {
			for _, rel := range model.Relationships(repositoryName) {
				if err := rel.resolve(); err != nil {
					return fmt.Errorf("%s.%s: %w", model.name, rel.name, err)
				}
			}
		}
	}
}
