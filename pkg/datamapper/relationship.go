package datamapper

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/jinzhu/inflection"

	"github.com/doodlesbykumbi/datamapper-in-go/pkg/property"
)

// ThroughResource as RelationshipOptions.Through makes a many-to-many
// relationship through a generated join model.
const ThroughResource = "Resource"

// RelationshipOptions configures a relationship.
type RelationshipOptions struct {
	// ClassName names the related model. It defaults to the camel-cased,
	// singular relationship name.
	ClassName string
	// ChildKey names the foreign key properties on the child model.
	ChildKey []string
	// ParentKey names the referenced properties on the parent model. It
	// defaults to the parent's key.
	ParentKey []string
	// Through is ThroughResource for many-to-many relationships.
	Through string
	// Repository names the repository related resources are saved and
	// looked up in.
	Repository string
	// Order orders collections.
	Order []string
}

// Relationship describes one association between a child model, holding the
// foreign key, and a parent model it references. Target models are resolved
// by name on first use so relationships may reference models defined later.
type Relationship struct {
	name           string
	cardinality    Cardinality
	owner          *Model
	mapper         *Mapper
	childModelName string
	parentName     string
	options        RelationshipOptions

	// many-to-many only
	joinModelName    string
	joinRelationName string

	mu          sync.Mutex
	resolved    bool
	childModel  *Model
	parentModel *Model
	childKey    []*property.Property
	parentKey   []*property.Property
	joinModel   *Model
	joinRel     *Relationship
	targetRel   *Relationship
}

func (rel *Relationship) Name() string                 { return rel.name }
func (rel *Relationship) Cardinality() Cardinality     { return rel.cardinality }
func (rel *Relationship) Owner() *Model                { return rel.owner }
func (rel *Relationship) Options() RelationshipOptions { return rel.options }

// RepositoryName returns the repository related resources live in.
func (rel *Relationship) RepositoryName() string {
	if rel.options.Repository != "" {
		return rel.options.Repository
	}
	return rel.mapper.defaultRepository
}

// ChildModel returns the model holding the foreign key. For many-to-many
// relationships it is the target model.
func (rel *Relationship) ChildModel() (*Model, error) {
	return rel.mapper.MustModel(rel.childModelName)
}

// ParentModel returns the referenced model. For many-to-many relationships it
// is the owning model.
func (rel *Relationship) ParentModel() (*Model, error) {
	return rel.mapper.MustModel(rel.parentName)
}

// ChildKey returns the foreign key properties, creating them on the child
// model on first use. For many-to-many relationships it is the join model's
// key referencing the target.
func (rel *Relationship) ChildKey() ([]*property.Property, error) {
	if err := rel.resolve(); err != nil {
		return nil, err
	}
	return append([]*property.Property(nil), rel.childKey...), nil
}

// ParentKey returns the properties of the parent model the child key
// references.
func (rel *Relationship) ParentKey() ([]*property.Property, error) {
	if err := rel.resolve(); err != nil {
		return nil, err
	}
	return append([]*property.Property(nil), rel.parentKey...), nil
}

// JoinModel returns the generated join model of a many-to-many relationship.
func (rel *Relationship) JoinModel() (*Model, error) {
	if rel.cardinality != CardinalityManyToMany {
		return nil, fmt.Errorf("%w: %s is %s", ErrInvalidArgument, rel.name, rel.cardinality)
	}
	if err := rel.resolve(); err != nil {
		return nil, err
	}
	return rel.joinModel, nil
}

func (rel *Relationship) resolve() error {
	rel.mu.Lock()
	defer rel.mu.Unlock()
	if rel.resolved {
		return nil
	}

	child, err := rel.ChildModel()
	if err != nil {
		return err
	}
	parent, err := rel.ParentModel()
	if err != nil {
		return err
	}

	if rel.cardinality == CardinalityManyToMany {
		if err := rel.resolveJoin(parent, child); err != nil {
			return err
		}
	} else {
		parentKey, err := keyProperties(parent, rel.options.ParentKey)
		if err != nil {
			return err
		}
		childKey, err := rel.foreignKey(child, parent, parentKey)
		if err != nil {
			return err
		}
		rel.parentKey, rel.childKey = parentKey, childKey
	}

	rel.childModel, rel.parentModel = child, parent
	rel.resolved = true
	return nil
}

func keyProperties(m *Model, names []string) ([]*property.Property, error) {
	repositoryName := m.mapper.defaultRepository
	if len(names) == 0 {
		key := m.Key(repositoryName)
		if len(key) == 0 {
			return nil, fmt.Errorf("%w: %s has no key", ErrInvalidArgument, m.name)
		}
		return key, nil
	}
	props := make([]*property.Property, len(names))
	for i, name := range names {
		p, ok := m.Properties(repositoryName).Get(name)
		if !ok {
			return nil, fmt.Errorf("%w: %s has no property %q", ErrUnknownProperty, m.name, name)
		}
		props[i] = p
	}
	return props, nil
}

// foreignKey finds or defines the child key properties. Default names are
// prefixed with the relationship name for many-to-one relationships and with
// the parent model's name for one-to-many relationships.
func (rel *Relationship) foreignKey(child, parent *Model, parentKey []*property.Property) ([]*property.Property, error) {
	names := rel.options.ChildKey
	if len(names) == 0 {
		prefix := Underscored(parent.name)
		if rel.cardinality == CardinalityManyToOne {
			prefix = rel.name
		}
		for _, p := range parentKey {
			names = append(names, prefix+"_"+p.Name())
		}
	}
	if len(names) != len(parentKey) {
		return nil, fmt.Errorf("%w: %d child key properties for %d parent key properties", ErrInvalidArgument, len(names), len(parentKey))
	}

	props := make([]*property.Property, len(names))
	for i, name := range names {
		if p, ok := child.Properties(child.mapper.defaultRepository).Get(name); ok {
			props[i] = p
			continue
		}
		props[i] = child.Property(name, foreignKeyType(parentKey[i]))
	}
	return props, nil
}

func foreignKeyType(p *property.Property) property.Type {
	if p.Type() == property.Serial {
		return property.Integer
	}
	return p.Type()
}

// resolveJoin finds or defines the join model of a many-to-many relationship.
// The join model's key is made of one foreign key per key property of both
// sides, and it belongs to both.
func (rel *Relationship) resolveJoin(owner, target *Model) error {
	if owner == target {
		return fmt.Errorf("%w: %s cannot join %s to itself", ErrInvalidArgument, rel.name, owner.name)
	}
	repositoryName := rel.mapper.defaultRepository
	for _, side := range []*Model{owner, target} {
		if len(side.Key(repositoryName)) == 0 {
			return fmt.Errorf("%w: %s has no key", ErrInvalidArgument, side.name)
		}
	}

	join, ok := rel.mapper.Model(rel.joinModelName)
	if !ok {
		sides := []*Model{owner, target}
		sort.Slice(sides, func(i, j int) bool { return sides[i].name < sides[j].name })
		join = rel.mapper.Define(rel.joinModelName, func(j *Model) {
			for _, side := range sides {
				for _, k := range side.Key(repositoryName) {
					j.Property(Underscored(side.name)+"_"+k.Name(), foreignKeyType(k), property.Key())
				}
			}
		})
	}

	targetRel, err := ensureBelongsTo(join, Underscored(target.name), target.name)
	if err != nil {
		return err
	}
	if _, err := ensureBelongsTo(join, Underscored(owner.name), owner.name); err != nil {
		return err
	}
	joinRel, ok := owner.Relationship(repositoryName, rel.joinRelationName)
	if !ok {
		return fmt.Errorf("%w: %s on %s", ErrRelationshipNotFound, rel.joinRelationName, owner.name)
	}
	if err := joinRel.resolve(); err != nil {
		return err
	}
	if err := targetRel.resolve(); err != nil {
		return err
	}

	rel.joinModel, rel.joinRel, rel.targetRel = join, joinRel, targetRel
	rel.parentKey = joinRel.parentKey
	rel.childKey = targetRel.childKey
	return nil
}

func ensureBelongsTo(m *Model, name, className string) (*Relationship, error) {
	if rel, ok := m.Relationship(m.mapper.defaultRepository, name); ok {
		return rel, nil
	}
	return m.BelongsTo(name, RelationshipOptions{ClassName: className})
}

// GetParent returns the parent referenced by child's foreign key, or nil
// when the key is unset or references nothing.
func (rel *Relationship) GetParent(ctx context.Context, child *Resource) (*Resource, error) {
	if rel.cardinality == CardinalityManyToMany {
		return nil, fmt.Errorf("%w: %s has no single parent", ErrInvalidArgument, rel.name)
	}
	if err := rel.resolve(); err != nil {
		return nil, err
	}
	values := property.Values(rel.childKey, child)
	for _, v := range values {
		if v == nil {
			return nil, nil
		}
	}

	ctx, err := rel.scope(ctx, child)
	if err != nil {
		return nil, err
	}
	repo, _ := RepositoryFrom(ctx)
	if samePropertyNames(rel.parentKey, rel.parentModel.Key(repo.name)) {
		return rel.parentModel.Get(ctx, values...)
	}
	return rel.parentModel.First(ctx, Options{Conditions: conditionsFor(rel.parentKey, values)})
}

// GetChildren returns the children referencing parent. For many-to-many
// relationships it returns the targets joined to parent.
func (rel *Relationship) GetChildren(ctx context.Context, parent *Resource) ([]*Resource, error) {
	if err := rel.resolve(); err != nil {
		return nil, err
	}
	if rel.cardinality == CardinalityManyToMany {
		joins, err := rel.joinRel.GetChildren(ctx, parent)
		if err != nil {
			return nil, err
		}
		targets := make([]*Resource, 0, len(joins))
		for _, j := range joins {
			t, err := rel.targetRel.GetParent(ctx, j)
			if err != nil {
				return nil, err
			}
			if t != nil {
				targets = append(targets, t)
			}
		}
		return targets, nil
	}

	values := property.Values(rel.parentKey, parent)
	for _, v := range values {
		if v == nil {
			return nil, nil
		}
	}
	ctx, err := rel.scope(ctx, parent)
	if err != nil {
		return nil, err
	}
	return rel.childModel.All(ctx, Options{Conditions: conditionsFor(rel.childKey, values), Order: rel.options.Order})
}

// AttachParent points child's foreign key at parent, or clears it when parent
// is nil.
func (rel *Relationship) AttachParent(child, parent *Resource) error {
	if rel.cardinality == CardinalityManyToMany {
		return fmt.Errorf("%w: %s links through %s", ErrInvalidArgument, rel.name, rel.joinModelName)
	}
	if err := rel.resolve(); err != nil {
		return err
	}
	for i, k := range rel.childKey {
		var v any
		if parent != nil {
			v = rel.parentKey[i].Value(parent)
		}
		if err := child.AttributeSet(k.Name(), v); err != nil {
			return err
		}
	}
	return nil
}

// joinAttributes returns the join model attributes linking owner to target.
func (rel *Relationship) joinAttributes(owner, target *Resource) map[string]any {
	attrs := make(map[string]any)
	for i, k := range rel.joinRel.childKey {
		attrs[k.Name()] = rel.joinRel.parentKey[i].Value(owner)
	}
	for i, k := range rel.targetRel.childKey {
		attrs[k.Name()] = rel.targetRel.parentKey[i].Value(target)
	}
	return attrs
}

// scope returns ctx with the repository related resources are read from:
// the relationship's repository when configured, else that of r.
func (rel *Relationship) scope(ctx context.Context, r *Resource) (context.Context, error) {
	if rel.options.Repository == "" && r.repository != nil {
		if current, ok := RepositoryFrom(ctx); ok && current == r.repository {
			return ctx, nil
		}
		return WithRepository(ctx, r.repository), nil
	}
	repo, err := rel.mapper.Repository(ctx, rel.RepositoryName())
	if err != nil {
		return nil, err
	}
	return WithRepository(ctx, repo), nil
}

func conditionsFor(props []*property.Property, values []any) map[string]any {
	conditions := make(map[string]any, len(props))
	for i, p := range props {
		conditions[p.Name()] = values[i]
	}
	return conditions
}

func samePropertyNames(a, b []*property.Property) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Name() != b[i].Name() {
			return false
		}
	}
	return true
}

// Camelize turns "short_story" into "ShortStory".
func Camelize(name string) string {
	parts := strings.Split(name, "_")
	for i, part := range parts {
		if part != "" {
			parts[i] = strings.ToUpper(part[:1]) + part[1:]
		}
	}
	return strings.Join(parts, "")
}

// joinModelName names the join model of two models: "Book" and "Editor"
// become "BookEditor", whichever side declares the relationship.
func joinModelName(a, b string) string {
	names := []string{a, b}
	sort.Strings(names)
	return names[0] + names[1]
}

func joinRelationName(joinModel string) string {
	return inflection.Plural(Underscored(joinModel))
}
