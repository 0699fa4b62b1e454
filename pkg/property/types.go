package property

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// Primitive is the in-memory representation a Type casts values to.
type Primitive string

const (
	PrimitiveString  Primitive = "string"
	PrimitiveInteger Primitive = "integer"
	PrimitiveFloat   Primitive = "float"
	PrimitiveBoolean Primitive = "boolean"
	PrimitiveTime    Primitive = "time"
	PrimitiveDecimal Primitive = "decimal"
	PrimitiveUUID    Primitive = "uuid"
	PrimitiveBinary  Primitive = "binary"
	PrimitiveObject  Primitive = "object"
)

// Type describes how values of a property are cast.
type Type interface {
	Name() string
	Primitive() Primitive
}

// CustomType converts between stored values and in-memory values itself
// instead of relying on the primitive typecast.
type CustomType interface {
	Type
	Load(value any, p *Property) (any, error)
	Dump(value any, p *Property) (any, error)
}

type basicType struct {
	name      string
	primitive Primitive
}

func (t basicType) Name() string         { return t.name }
func (t basicType) Primitive() Primitive { return t.primitive }
func (t basicType) String() string       { return t.name }

var (
	String   Type = basicType{"string", PrimitiveString}
	Text     Type = basicType{"text", PrimitiveString}
	Integer  Type = basicType{"integer", PrimitiveInteger}
	Serial   Type = basicType{"serial", PrimitiveInteger}
	Float    Type = basicType{"float", PrimitiveFloat}
	Boolean  Type = basicType{"boolean", PrimitiveBoolean}
	DateTime Type = basicType{"date_time", PrimitiveTime}
	Decimal  Type = basicType{"decimal", PrimitiveDecimal}
	UUID     Type = basicType{"uuid", PrimitiveUUID}
	Binary   Type = basicType{"binary", PrimitiveBinary}
	Object   Type = basicType{"object", PrimitiveObject}

	Discriminator CustomType = discriminatorType{}
	JSON          CustomType = jsonType{}
)

// discriminatorType stores the name of a row's concrete model.
type discriminatorType struct{}

func (discriminatorType) Name() string         { return "discriminator" }
func (discriminatorType) Primitive() Primitive { return PrimitiveString }
func (discriminatorType) String() string       { return "discriminator" }

func (discriminatorType) Load(value any, _ *Property) (any, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case fmt.Stringer:
		return v.String(), nil
	}
	return nil, fmt.Errorf("%w: discriminator value %v (%T)", ErrTypecast, value, value)
}

func (t discriminatorType) Dump(value any, p *Property) (any, error) {
	return t.Load(value, p)
}

// jsonType keeps decoded JSON documents in memory and stores them encoded.
type jsonType struct{}

func (jsonType) Name() string         { return "json" }
func (jsonType) Primitive() Primitive { return PrimitiveObject }
func (jsonType) String() string       { return "json" }

func (jsonType) Load(value any, _ *Property) (any, error) {
	var raw []byte
	switch v := value.(type) {
	case nil:
		return nil, nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return v, nil
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: json: %v", ErrTypecast, err)
	}
	return doc, nil
}

func (jsonType) Dump(value any, _ *Property) (any, error) {
	if value == nil {
		return nil, nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("%w: json: %v", ErrTypecast, err)
	}
	return string(data), nil
}

var (
	typesMu sync.RWMutex
	types   = map[string]Type{}
)

func init() {
	for _, t := range []Type{String, Text, Integer, Serial, Float, Boolean, DateTime, Decimal, UUID, Binary, Object, Discriminator, JSON} {
		Register(t)
	}
}

// Register makes a type available to Lookup under its name.
func Register(t Type) {
	typesMu.Lock()
	defer typesMu.Unlock()
	types[t.Name()] = t
}

// Lookup returns the registered type with the given name.
func Lookup(name string) (Type, bool) {
	typesMu.RLock()
	defer typesMu.RUnlock()
	t, ok := types[name]
	return t, ok
}

// TypeNames returns the names of all registered types, sorted.
func TypeNames() []string {
	typesMu.RLock()
	defer typesMu.RUnlock()
	names := make([]string, 0, len(types))
	for name := range types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
