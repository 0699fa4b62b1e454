package memory

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/doodlesbykumbi/datamapper-in-go/pkg/datamapper"
)

// matches reports whether r satisfies every condition. Condition values are
// dumped through their property before comparing with stored values.
func matches(r row, conditions []datamapper.Condition) (bool, error) {
	for _, c := range conditions {
		stored := r[c.Property.Field()]
		ok, err := matchCondition(stored, c)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func matchCondition(stored any, c datamapper.Condition) (bool, error) {
	if values, ok := c.Value.([]any); ok {
		found := false
		for _, v := range values {
			dumped, err := c.Property.Dump(v)
			if err != nil {
				return false, err
			}
			if equal(stored, dumped) {
				found = true
				break
			}
		}
		if c.Operator == datamapper.OpNot {
			return !found, nil
		}
		return found, nil
	}

	want, err := c.Property.Dump(c.Value)
	if err != nil {
		return false, err
	}
	switch c.Operator {
	case datamapper.OpEq, datamapper.OpIn:
		return equal(stored, want), nil
	case datamapper.OpNot:
		return !equal(stored, want), nil
	case datamapper.OpLike:
		s, ok := stored.(string)
		if !ok {
			return false, nil
		}
		return like(s, want.(string))
	}

	if stored == nil || want == nil {
		return false, nil
	}
	cmp, err := compare(stored, want)
	if err != nil {
		return false, err
	}
	switch c.Operator {
	case datamapper.OpGt:
		return cmp > 0, nil
	case datamapper.OpGte:
		return cmp >= 0, nil
	case datamapper.OpLt:
		return cmp < 0, nil
	case datamapper.OpLte:
		return cmp <= 0, nil
	}
	return false, fmt.Errorf("%w: operator %s", datamapper.ErrUnsupported, c.Operator)
}

// like matches s against a SQL LIKE pattern.
func like(s, pattern string) (bool, error) {
	var b strings.Builder
	b.WriteString("(?s)^")
	for _, ch := range pattern {
		switch ch {
		case '%':
			b.WriteString(".*")
		case '_':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(ch)))
		}
	}
	b.WriteString("$")
	re, err := regexp.Compile(b.String())
	if err != nil {
		return false, err
	}
	return re.MatchString(s), nil
}

func equal(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	c, err := compare(a, b)
	return err == nil && c == 0
}

// compare orders two stored values. nil sorts first.
func compare(a, b any) (int, error) {
	switch {
	case a == nil && b == nil:
		return 0, nil
	case a == nil:
		return -1, nil
	case b == nil:
		return 1, nil
	}

	if x, ok := toInt64(a); ok {
		if y, ok := toInt64(b); ok {
			return cmpOrdered(x, y), nil
		}
	}
	if x, ok := toFloat64(a); ok {
		if y, ok := toFloat64(b); ok {
			return cmpOrdered(x, y), nil
		}
	}

	switch x := a.(type) {
	case string:
		if y, ok := b.(string); ok {
			return strings.Compare(x, y), nil
		}
	case bool:
		if y, ok := b.(bool); ok {
			switch {
			case x == y:
				return 0, nil
			case !x:
				return -1, nil
			}
			return 1, nil
		}
	case time.Time:
		if y, ok := b.(time.Time); ok {
			return x.Compare(y), nil
		}
	case decimal.Decimal:
		if y, ok := b.(decimal.Decimal); ok {
			return x.Cmp(y), nil
		}
	case uuid.UUID:
		if y, ok := b.(uuid.UUID); ok {
			return bytes.Compare(x[:], y[:]), nil
		}
	case []byte:
		if y, ok := b.([]byte); ok {
			return bytes.Compare(x, y), nil
		}
	}
	return 0, fmt.Errorf("%w: cannot compare %T with %T", datamapper.ErrUnsupported, a, b)
}

func cmpOrdered[T int64 | float64](x, y T) int {
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	}
	return 0
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	}
	return 0, false
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	}
	if i, ok := toInt64(v); ok {
		return float64(i), true
	}
	return 0, false
}
