package property

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

type target map[string]any

func (t target) InstanceGet(name string) (any, bool) {
	v, ok := t[name]
	return v, ok
}

func (t target) InstanceSet(name string, value any) { t[name] = value }

func TestNewDefaults(t *testing.T) {
	id := New("id", Serial)
	assert.True(t, id.IsKey())
	assert.True(t, id.IsSerial())
	assert.False(t, id.IsNullable())

	body := New("body", Text)
	assert.True(t, body.IsLazy())
	assert.Equal(t, []string{DefaultLazyContext}, body.LazyContexts())

	eager := New("summary", Text, Eager())
	assert.False(t, eager.IsLazy())
	assert.Empty(t, eager.LazyContexts())

	title := New("title", String, Required(), Length(50), Field("book_title"))
	assert.False(t, title.IsNullable())
	assert.Equal(t, 50, title.Length())
	assert.Equal(t, "book_title", title.Field())
	assert.Equal(t, "title(string)", title.String())
}

func TestTrackDefaults(t *testing.T) {
	tests := []struct {
		name     string
		property *Property
		expected Track
	}{
		{"string", New("title", String), TrackNone},
		{"json", New("tags", JSON), TrackHash},
		{"binary", New("blob", Binary), TrackHash},
		{"discriminator", New("type", Discriminator), TrackNone},
		{"explicit", New("title", String, Tracked(TrackLoad)), TrackLoad},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.property.Track())
		})
	}
}

func TestTrackYAML(t *testing.T) {
	var doc struct {
		Track Track `yaml:"track"`
	}
	require.NoError(t, yaml.Unmarshal([]byte("track: hash\n"), &doc))
	assert.Equal(t, TrackHash, doc.Track)

	_, err := TrackString("sometimes")
	assert.Error(t, err)
	assert.Equal(t, []string{"none", "hash", "load"}, TrackStrings())
}

func TestTypecast(t *testing.T) {
	id := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	when := time.Date(2008, 5, 1, 12, 30, 0, 0, time.UTC)

	tests := []struct {
		name      string
		primitive Primitive
		input     any
		expected  any
	}{
		{"int to integer", PrimitiveInteger, 7, int64(7)},
		{"string to integer", PrimitiveInteger, " 42 ", int64(42)},
		{"bytes to integer", PrimitiveInteger, []byte("3"), int64(3)},
		{"whole float to integer", PrimitiveInteger, 2.0, int64(2)},
		{"integer to string", PrimitiveString, int64(9), "9"},
		{"bytes to string", PrimitiveString, []byte("abc"), "abc"},
		{"string to float", PrimitiveFloat, "1.5", 1.5},
		{"integer to float", PrimitiveFloat, int64(2), 2.0},
		{"t to boolean", PrimitiveBoolean, "t", true},
		{"no to boolean", PrimitiveBoolean, "no", false},
		{"one to boolean", PrimitiveBoolean, int64(1), true},
		{"string to time", PrimitiveTime, "2008-05-01 12:30:00", when},
		{"rfc3339 to time", PrimitiveTime, "2008-05-01T12:30:00Z", when},
		{"string to uuid", PrimitiveUUID, id.String(), id},
		{"bytes to uuid", PrimitiveUUID, id[:], id},
		{"string to binary", PrimitiveBinary, "raw", []byte("raw")},
		{"nil stays nil", PrimitiveInteger, nil, nil},
		{"object passthrough", PrimitiveObject, map[string]any{"a": 1}, map[string]any{"a": 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Typecast(tt.primitive, tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestTypecastDecimal(t *testing.T) {
	got, err := Typecast(PrimitiveDecimal, "12.50")
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("12.5").Equal(got.(decimal.Decimal)))

	got, err = Typecast(PrimitiveDecimal, int64(3))
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(3).Equal(got.(decimal.Decimal)))
}

func TestTypecastErrors(t *testing.T) {
	tests := []struct {
		name      string
		primitive Primitive
		input     any
	}{
		{"fractional integer", PrimitiveInteger, 1.5},
		{"word integer", PrimitiveInteger, "eleven"},
		{"bad boolean", PrimitiveBoolean, "maybe"},
		{"bad time", PrimitiveTime, "yesterday"},
		{"bad uuid", PrimitiveUUID, "not-a-uuid"},
		{"struct to binary", PrimitiveBinary, struct{}{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Typecast(tt.primitive, tt.input)
			assert.ErrorIs(t, err, ErrTypecast)
		})
	}
}

func TestCustomTypes(t *testing.T) {
	tags := New("tags", JSON)
	assert.True(t, tags.IsCustom())

	loaded, err := tags.Load(`{"genre":"fiction"}`)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"genre": "fiction"}, loaded)

	dumped, err := tags.Dump(loaded)
	require.NoError(t, err)
	assert.JSONEq(t, `{"genre":"fiction"}`, dumped.(string))

	_, err = tags.Load("{")
	assert.ErrorIs(t, err, ErrTypecast)

	kind := New("type", Discriminator)
	assert.True(t, kind.IsDiscriminator())
	loaded, err = kind.Load([]byte("ShortStory"))
	require.NoError(t, err)
	assert.Equal(t, "ShortStory", loaded)
}

func TestValueAccess(t *testing.T) {
	tgt := target{}
	p := New("title", String)
	assert.False(t, p.IsLoaded(tgt))
	assert.Nil(t, p.Value(tgt))

	p.SetValue(tgt, "Ulysses")
	assert.True(t, p.IsLoaded(tgt))
	assert.Equal(t, "Ulysses", p.Value(tgt))

	key := []*Property{New("a", Integer, Key()), p}
	assert.Equal(t, []any{nil, "Ulysses"}, Values(key, tgt))
	assert.Equal(t, []string{"a", "title"}, Names(key))
}

func TestDefaultFunc(t *testing.T) {
	p := New("status", String, Default(DefaultFunc(func(tgt Target, p *Property) any {
		return "draft:" + p.Name()
	})))
	assert.True(t, p.HasDefault())
	assert.Equal(t, "draft:status", p.Default(target{}))

	q := New("count", Integer, Default(int64(0)))
	assert.Equal(t, int64(0), q.Default(target{}))
}

func TestHash(t *testing.T) {
	a := map[string]any{"x": 1, "y": []any{"a"}}
	b := map[string]any{"y": []any{"a"}, "x": 1}
	assert.Equal(t, Hash(a), Hash(b))
	assert.NotEqual(t, Hash("1"), Hash(1))
	assert.Equal(t, uint64(0), Hash(nil))

	ch := make(chan int)
	assert.Equal(t, Hash(ch), Hash(ch), "identity fallback is stable for the same value")
	other := make(chan int)
	assert.NotEqual(t, Hash(ch), Hash(other))
}

type point struct{ x, y int }

func TestHashUnencodableFields(t *testing.T) {
	assert.NotEqual(t, Hash(point{1, 2}), Hash(point{3, 4}))
	assert.Equal(t, Hash(point{1, 2}), Hash(point{1, 2}))
	assert.NotEqual(t, Hash([]point{{1, 2}}), Hash([]point{{3, 4}}))

	p := &point{1, 2}
	before := Hash(p)
	p.x = 5
	assert.NotEqual(t, before, Hash(p), "in-place changes are seen through the pointer")

	assert.Equal(t, Hash(decimal.RequireFromString("1.50")), Hash(decimal.RequireFromString("1.50")))
	assert.NotEqual(t, Hash(decimal.RequireFromString("1.5")), Hash(decimal.RequireFromString("2.5")))
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	assert.Equal(t, Hash(at), Hash(at.Add(0)))
}

func TestLookup(t *testing.T) {
	typ, ok := Lookup("serial")
	require.True(t, ok)
	assert.Equal(t, Serial, typ)

	_, ok = Lookup("money")
	assert.False(t, ok)
	assert.Contains(t, TypeNames(), "discriminator")
}
