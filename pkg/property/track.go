package property

//go:generate go run github.com/dmarkham/enumer -type Track -trimprefix Track -transform lower -yaml -output track.gen.go

import (
	"encoding"
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/cespare/xxhash/v2"
)

// Track is the policy used to remember a property's original value.
type Track int

const (
	TrackNone Track = iota
	TrackHash
	TrackLoad
)

// Hash returns a content hash of value. Values whose json encoding drops
// fields are hashed from their Go-syntax representation. Values that cannot
// be encoded (functions, channels, cycles) fall back to an identity hash.
func Hash(value any) uint64 {
	if value == nil {
		return 0
	}
	if dropsFields(reflect.TypeOf(value), make(map[reflect.Type]bool)) {
		return xxhash.Sum64String(fmt.Sprintf("%T:%#v", value, value))
	}
	data, err := json.Marshal(value)
	if err != nil {
		return identityHash(value)
	}
	return xxhash.Sum64(append([]byte(fmt.Sprintf("%T:", value)), data...))
}

func identityHash(value any) uint64 {
	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return uint64(v.Pointer())
	}
	return xxhash.Sum64String(fmt.Sprintf("%T:%#v", value, value))
}

var (
	jsonMarshaler = reflect.TypeOf((*json.Marshaler)(nil)).Elem()
	textMarshaler = reflect.TypeOf((*encoding.TextMarshaler)(nil)).Elem()
)

// dropsFields reports whether the json encoding of t leaves out struct
// fields, so that distinct values can encode alike.
func dropsFields(t reflect.Type, seen map[reflect.Type]bool) bool {
	if seen[t] {
		return false
	}
	seen[t] = true
	if t.Implements(jsonMarshaler) || t.Implements(textMarshaler) {
		return false
	}
	switch t.Kind() {
	case reflect.Pointer, reflect.Slice, reflect.Array, reflect.Map:
		return dropsFields(t.Elem(), seen)
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if !f.IsExported() && !f.Anonymous {
				return true
			}
			if f.Tag.Get("json") == "-" || dropsFields(f.Type, seen) {
				return true
			}
		}
	}
	return false
}
