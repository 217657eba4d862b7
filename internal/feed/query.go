package feed

import (
	"encoding/json"
	"reflect"
	"sort"
	"strings"
	"time"
)

// Apply evaluates the descriptor's filters, order and limit over docs. The
// input is not modified; returned documents are deep copies.
func (d Descriptor) Apply(docs []Document) []Document {
	out := make([]Document, 0, len(docs))
	for _, doc := range docs {
		if d.matches(doc) {
			out = append(out, doc.Clone())
		}
	}

	if d.OrderBy != "" {
		sort.SliceStable(out, func(i, j int) bool {
			a, _ := out[i].Field(d.OrderBy)
			b, _ := out[j].Field(d.OrderBy)
			c, ok := compare(a, b)
			if !ok {
				return false
			}
			if d.Descending {
				return c > 0
			}
			return c < 0
		})
	}

	if d.Limit > 0 && len(out) > d.Limit {
		out = out[:d.Limit]
	}
	return out
}

func (d Descriptor) matches(doc Document) bool {
	for _, f := range d.Filters {
		v, ok := doc.Field(f.Field)
		if !ok {
			return false
		}
		if !f.eval(v) {
			return false
		}
	}
	return true
}

func (f Filter) eval(v any) bool {
	if f.Op == OpIn {
		rv := reflect.ValueOf(f.Value)
		if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
			return false
		}
		for i := 0; i < rv.Len(); i++ {
			if c, ok := compare(v, rv.Index(i).Interface()); ok && c == 0 {
				return true
			}
		}
		return false
	}

	c, ok := compare(v, f.Value)
	if !ok {
		return f.Op == OpNotEqual
	}
	switch f.Op {
	case OpEqual:
		return c == 0
	case OpNotEqual:
		return c != 0
	case OpLess:
		return c < 0
	case OpLessEqual:
		return c <= 0
	case OpGreater:
		return c > 0
	case OpGreaterEqual:
		return c >= 0
	}
	return false
}

// compare orders two values of compatible kinds. Numbers compare
// numerically, times chronologically (RFC 3339 strings count as times when
// the other side is a time), strings lexically and bools false < true.
func compare(a, b any) (int, bool) {
	if af, ok := toFloat(a); ok {
		if bf, ok := toFloat(b); ok {
			return cmpOrdered(af, bf), true
		}
	}
	if at, ok := toTime(a); ok {
		if bt, ok := toTime(b); ok {
			return cmpOrdered(at.UnixNano(), bt.UnixNano()), true
		}
	}
	if as, ok := a.(string); ok {
		if bs, ok := b.(string); ok {
			return strings.Compare(as, bs), true
		}
	}
	if ab, ok := a.(bool); ok {
		if bb, ok := b.(bool); ok {
			switch {
			case ab == bb:
				return 0, true
			case !ab:
				return -1, true
			default:
				return 1, true
			}
		}
	}
	return 0, false
}

func cmpOrdered[T int64 | float64](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func toTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, t)
		return parsed, err == nil
	}
	return time.Time{}, false
}

func splitPath(path string) []string {
	return strings.Split(path, ".")
}
