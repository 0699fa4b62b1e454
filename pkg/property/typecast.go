package property

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrTypecast is returned when a value cannot be cast to a property's primitive.
var ErrTypecast = errors.New("typecast failed")

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Typecast converts value to the Go representation of primitive.
// A nil value is returned unchanged.
func Typecast(primitive Primitive, value any) (any, error) {
	if value == nil {
		return nil, nil
	}
	var (
		out any
		err error
	)
	switch primitive {
	case PrimitiveString:
		out, err = castString(value)
	case PrimitiveInteger:
		out, err = castInteger(value)
	case PrimitiveFloat:
		out, err = castFloat(value)
	case PrimitiveBoolean:
		out, err = castBoolean(value)
	case PrimitiveTime:
		out, err = castTime(value)
	case PrimitiveDecimal:
		out, err = castDecimal(value)
	case PrimitiveUUID:
		out, err = castUUID(value)
	case PrimitiveBinary:
		out, err = castBinary(value)
	default:
		return value, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v (%T) to %s: %v", ErrTypecast, value, value, primitive, err)
	}
	return out, nil
}

func castString(value any) (any, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case bool:
		return strconv.FormatBool(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case time.Time:
		return v.Format(time.RFC3339Nano), nil
	case fmt.Stringer:
		return v.String(), nil
	}
	return fmt.Sprint(value), nil
}

func castInteger(value any) (any, error) {
	switch v := value.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case uint:
		return int64(v), nil
	case uint8:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case uint64:
		if v > math.MaxInt64 {
			return nil, errors.New("out of range")
		}
		return int64(v), nil
	case float32:
		return integralFloat(float64(v))
	case float64:
		return integralFloat(v)
	case decimal.Decimal:
		if !v.IsInteger() {
			return nil, errors.New("not an integer")
		}
		return v.IntPart(), nil
	case string:
		return strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	case []byte:
		return strconv.ParseInt(strings.TrimSpace(string(v)), 10, 64)
	}
	return nil, errors.New("unsupported type")
}

func integralFloat(f float64) (any, error) {
	if f != math.Trunc(f) {
		return nil, errors.New("not an integer")
	}
	return int64(f), nil
}

func castFloat(value any) (any, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case decimal.Decimal:
		f, _ := v.Float64()
		return f, nil
	case string:
		return strconv.ParseFloat(strings.TrimSpace(v), 64)
	case []byte:
		return strconv.ParseFloat(strings.TrimSpace(string(v)), 64)
	}
	i, err := castInteger(value)
	if err != nil {
		return nil, err
	}
	return float64(i.(int64)), nil
}

func castBoolean(value any) (any, error) {
	switch v := value.(type) {
	case bool:
		return v, nil
	case string:
		return parseBool(v)
	case []byte:
		return parseBool(string(v))
	}
	i, err := castInteger(value)
	if err != nil {
		return nil, err
	}
	switch i.(int64) {
	case 0:
		return false, nil
	case 1:
		return true, nil
	}
	return nil, errors.New("not a boolean")
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "y", "on":
		return true, nil
	case "no", "n", "off":
		return false, nil
	}
	return strconv.ParseBool(strings.TrimSpace(s))
}

func castTime(value any) (any, error) {
	switch v := value.(type) {
	case time.Time:
		return v, nil
	case *time.Time:
		if v == nil {
			return nil, nil
		}
		return *v, nil
	case string:
		return parseTime(v)
	case []byte:
		return parseTime(string(v))
	case int64:
		return time.Unix(v, 0).UTC(), nil
	}
	return nil, errors.New("unsupported type")
}

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised time %q", s)
}

func castDecimal(value any) (any, error) {
	switch v := value.(type) {
	case decimal.Decimal:
		return v, nil
	case string:
		return decimal.NewFromString(strings.TrimSpace(v))
	case []byte:
		return decimal.NewFromString(strings.TrimSpace(string(v)))
	case float64:
		return decimal.NewFromFloat(v), nil
	case float32:
		return decimal.NewFromFloat32(v), nil
	}
	i, err := castInteger(value)
	if err != nil {
		return nil, err
	}
	return decimal.NewFromInt(i.(int64)), nil
}

func castUUID(value any) (any, error) {
	switch v := value.(type) {
	case uuid.UUID:
		return v, nil
	case string:
		return uuid.Parse(strings.TrimSpace(v))
	case []byte:
		if len(v) == 16 {
			return uuid.FromBytes(v)
		}
		return uuid.ParseBytes(v)
	}
	return nil, errors.New("unsupported type")
}

func castBinary(value any) (any, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	}
	return nil, errors.New("unsupported type")
}
