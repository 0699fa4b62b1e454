package datamapper

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/doodlesbykumbi/datamapper-in-go/pkg/property"
)

// Operator compares a property with a condition value.
type Operator string

const (
	OpEq   Operator = "eq"
	OpNot  Operator = "not"
	OpGt   Operator = "gt"
	OpGte  Operator = "gte"
	OpLt   Operator = "lt"
	OpLte  Operator = "lte"
	OpLike Operator = "like"
	OpIn   Operator = "in"
)

var operators = map[Operator]bool{
	OpEq: true, OpNot: true, OpGt: true, OpGte: true, OpLt: true, OpLte: true, OpLike: true, OpIn: true,
}

// Condition restricts a query to rows whose property compares to Value. For
// OpIn, and OpNot with a slice value, Value is a []any.
type Condition struct {
	Property *property.Property
	Operator Operator
	Value    any
}

func (c Condition) String() string {
	return fmt.Sprintf("%s %s %v", c.Property.Name(), c.Operator, c.Value)
}

// Direction orders query results by a property.
type Direction struct {
	Property   *property.Property
	Descending bool
}

func (d Direction) String() string {
	if d.Descending {
		return d.Property.Name() + " desc"
	}
	return d.Property.Name() + " asc"
}

// Options describes a query by property names.
//
// Condition keys are a property name, meaning equality (or membership when
// the value is a slice), or "name.operator", e.g. "title.like". Order
// entries are a property name optionally prefixed with "-" or followed by
// " desc" for descending order.
type Options struct {
	Fields     []string
	Conditions map[string]any
	Order      []string
	Limit      int
	Offset     int
	Reload     bool
}

// Query is a resolved query against one model in one repository.
type Query struct {
	repository *Repository
	model      *Model
	fields     []*property.Property
	conditions []Condition
	order      []Direction
	limit      int
	offset     int
	reload     bool
}

// NewQuery resolves opts against model's properties in repo.
func NewQuery(repo *Repository, model *Model, opts Options) (*Query, error) {
	q := &Query{
		repository: repo,
		model:      model,
		order:      model.DefaultOrder(repo.name),
	}
	if disc := model.InheritanceProperty(repo.name); disc != nil && model.parent != nil {
		names := []any{model.name}
		for _, d := range model.Descendants() {
			names = append(names, d.name)
		}
		q.conditions = append(q.conditions, Condition{Property: disc, Operator: OpIn, Value: names})
	}
	if err := q.apply(opts); err != nil {
		return nil, err
	}
	if q.fields == nil {
		q.fields = q.defaultFields()
	}
	return q, nil
}

func (q *Query) defaultFields() []*property.Property {
	return q.model.PropertiesWithSubclasses(q.repository.name).Defaults()
}

func (q *Query) apply(opts Options) error {
	props := q.model.PropertiesWithSubclasses(q.repository.name)
	lookup := func(name string) (*property.Property, error) {
		p, ok := props.Get(name)
		if !ok {
			return nil, fmt.Errorf("%w: %s has no property %q", ErrUnknownProperty, q.model.name, name)
		}
		return p, nil
	}

	if len(opts.Fields) > 0 {
		fields := make([]*property.Property, 0, len(opts.Fields))
		for _, name := range opts.Fields {
			p, err := lookup(name)
			if err != nil {
				return err
			}
			fields = append(fields, p)
		}
		q.fields = fields
	}

	keys := make([]string, 0, len(opts.Conditions))
	for k := range opts.Conditions {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		name, op := k, OpEq
		if i := strings.LastIndexByte(k, '.'); i >= 0 {
			name, op = k[:i], Operator(k[i+1:])
			if !operators[op] {
				return fmt.Errorf("%w: unknown operator %q in condition %q", ErrInvalidArgument, op, k)
			}
		}
		p, err := lookup(name)
		if err != nil {
			return err
		}
		c, err := newCondition(p, op, opts.Conditions[k])
		if err != nil {
			return err
		}
		q.conditions = append(q.conditions, c)
	}

	if len(opts.Order) > 0 {
		order := make([]Direction, 0, len(opts.Order))
		for _, entry := range opts.Order {
			d, err := parseDirection(entry, lookup)
			if err != nil {
				return err
			}
			order = append(order, d)
		}
		q.order = order
	}

	if opts.Limit < 0 || opts.Offset < 0 {
		return fmt.Errorf("%w: negative limit or offset", ErrInvalidArgument)
	}
	if opts.Limit > 0 {
		q.limit = opts.Limit
	}
	if opts.Offset > 0 {
		q.offset = opts.Offset
	}
	q.reload = q.reload || opts.Reload
	return nil
}

func newCondition(p *property.Property, op Operator, value any) (Condition, error) {
	if op == OpLike {
		s, ok := value.(string)
		if !ok {
			return Condition{}, fmt.Errorf("%w: like pattern for %s must be a string", ErrInvalidArgument, p.Name())
		}
		return Condition{Property: p, Operator: op, Value: s}, nil
	}
	if values, ok := sliceValues(value); ok {
		switch op {
		case OpEq, OpIn:
			op = OpIn
		case OpNot:
		default:
			return Condition{}, fmt.Errorf("%w: operator %s does not take a list", ErrInvalidArgument, op)
		}
		cast := make([]any, len(values))
		for i, v := range values {
			c, err := p.Typecast(v)
			if err != nil {
				return Condition{}, err
			}
			cast[i] = c
		}
		return Condition{Property: p, Operator: op, Value: cast}, nil
	}
	if op == OpIn {
		op = OpEq
	}
	cast, err := p.Typecast(value)
	if err != nil {
		return Condition{}, err
	}
	return Condition{Property: p, Operator: op, Value: cast}, nil
}

// sliceValues unpacks slices other than []byte.
func sliceValues(value any) ([]any, bool) {
	if value == nil {
		return nil, false
	}
	if _, ok := value.([]byte); ok {
		return nil, false
	}
	v := reflect.ValueOf(value)
	if v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
		return nil, false
	}
	values := make([]any, v.Len())
	for i := range values {
		values[i] = v.Index(i).Interface()
	}
	return values, true
}

func parseDirection(entry string, lookup func(string) (*property.Property, error)) (Direction, error) {
	entry = strings.TrimSpace(entry)
	desc := false
	switch {
	case strings.HasPrefix(entry, "-"):
		desc, entry = true, entry[1:]
	case strings.HasSuffix(strings.ToLower(entry), " desc"):
		desc, entry = true, strings.TrimSpace(entry[:len(entry)-5])
	case strings.HasSuffix(strings.ToLower(entry), " asc"):
		entry = strings.TrimSpace(entry[:len(entry)-4])
	}
	p, err := lookup(entry)
	if err != nil {
		return Direction{}, err
	}
	return Direction{Property: p, Descending: desc}, nil
}

func (q *Query) Repository() *Repository      { return q.repository }
func (q *Query) Model() *Model                { return q.model }
func (q *Query) Fields() []*property.Property { return append([]*property.Property(nil), q.fields...) }
func (q *Query) Conditions() []Condition      { return append([]Condition(nil), q.conditions...) }
func (q *Query) Order() []Direction           { return append([]Direction(nil), q.order...) }
func (q *Query) Limit() int                   { return q.limit }
func (q *Query) Offset() int                  { return q.offset }
func (q *Query) IsReload() bool               { return q.reload }
func (q *Query) StorageName() string          { return q.model.StorageName(q.repository.name) }

// InheritancePropertyIndex returns the position of the discriminator among
// the query's fields for repo, or -1.
func (q *Query) InheritancePropertyIndex(repo *Repository) int {
	disc := q.model.InheritanceProperty(repo.name)
	if disc == nil {
		return -1
	}
	for i, f := range q.fields {
		if f.Name() == disc.Name() {
			return i
		}
	}
	return -1
}

// KeyPropertyIndexes returns the positions of the model's key properties
// among the query's fields for repo. It returns nil unless every key
// property is selected.
func (q *Query) KeyPropertyIndexes(repo *Repository) []int {
	key := q.model.Key(repo.name)
	if len(key) == 0 {
		return nil
	}
	indexes := make([]int, 0, len(key))
	for _, k := range key {
		found := -1
		for i, f := range q.fields {
			if f.Name() == k.Name() {
				found = i
				break
			}
		}
		if found < 0 {
			return nil
		}
		indexes = append(indexes, found)
	}
	return indexes
}

// Merge returns a copy of q with opts applied on top: fields and order are
// replaced when given, conditions are added.
func (q *Query) Merge(opts Options) (*Query, error) {
	merged := q.dup()
	if err := merged.apply(opts); err != nil {
		return nil, err
	}
	return merged, nil
}

func (q *Query) dup() *Query {
	d := *q
	d.fields = q.Fields()
	d.conditions = q.Conditions()
	d.order = q.Order()
	return &d
}

func (q *Query) String() string {
	parts := []string{fmt.Sprintf("%s@%s", q.model.name, q.repository.name)}
	for _, c := range q.conditions {
		parts = append(parts, c.String())
	}
	return strings.Join(parts, " ")
}
