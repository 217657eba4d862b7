package feed

import "time"

// Document is one upstream record.
type Document struct {
	ID   string         `json:"id"`
	Data map[string]any `json:"data"`
}

// Snapshot is the complete result set of a query at one point in time. An
// empty Documents slice is a valid state.
type Snapshot struct {
	Key        string     `json:"key"`
	Documents  []Document `json:"documents"`
	ReceivedAt time.Time  `json:"receivedAt"`
}

// Empty reports whether the result set has no documents.
func (s Snapshot) Empty() bool { return len(s.Documents) == 0 }

// First returns the first document of the result set.
func (s Snapshot) First() (Document, bool) {
	if len(s.Documents) == 0 {
		return Document{}, false
	}
	return s.Documents[0], true
}

// Field returns the value at a dotted path. "id" resolves to the document id
// unless the data carries its own id field.
func (d Document) Field(path string) (any, bool) {
	if path == "" {
		return nil, false
	}
	var cur any = d.Data
	for _, part := range splitPath(path) {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			if path == "id" {
				return d.ID, d.ID != ""
			}
			return nil, false
		}
	}
	return cur, true
}

// Clone returns a deep copy of d.
func (d Document) Clone() Document {
	return Document{ID: d.ID, Data: cloneMap(d.Data)}
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = cloneValue(t[i])
		}
		return out
	default:
		return v
	}
}
