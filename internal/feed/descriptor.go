package feed

import (
	"fmt"
	"sort"
	"strings"
)

// Collections published by the upstream feed.
const (
	CollectionMatches   = "live_matches"
	CollectionEvents    = "global_events"
	CollectionTelemetry = "telemetry"
	CollectionPressure  = "pressure"
)

// Op is a filter comparison.
type Op string

const (
	OpEqual        Op = "=="
	OpNotEqual     Op = "!="
	OpLess         Op = "<"
	OpLessEqual    Op = "<="
	OpGreater      Op = ">"
	OpGreaterEqual Op = ">="
	OpIn           Op = "in"
)

func (o Op) valid() bool {
	switch o {
	case OpEqual, OpNotEqual, OpLess, OpLessEqual, OpGreater, OpGreaterEqual, OpIn:
		return true
	}
	return false
}

// Filter restricts a query to documents whose field compares true against
// Value. Field may be a dotted path into nested maps; "id" matches the
// document id.
type Filter struct {
	Field string `json:"field"`
	Op    Op     `json:"op"`
	Value any    `json:"value"`
}

// Descriptor is a named query against one upstream collection.
type Descriptor struct {
	// Name identifies the slot. It is not part of the query.
	Name       string   `json:"name"`
	Source     string   `json:"source"`
	Filters    []Filter `json:"filters,omitempty"`
	OrderBy    string   `json:"orderBy,omitempty"`
	Descending bool     `json:"descending,omitempty"`
	Limit      int      `json:"limit,omitempty"`
}

// Validate checks that the descriptor can be evaluated.
func (d Descriptor) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidDescriptor)
	}
	if d.Source == "" {
		return fmt.Errorf("%w: slot %q has no source", ErrInvalidDescriptor, d.Name)
	}
	if d.Limit < 0 {
		return fmt.Errorf("%w: slot %q has negative limit", ErrInvalidDescriptor, d.Name)
	}
	for _, f := range d.Filters {
		if f.Field == "" || !f.Op.valid() {
			return fmt.Errorf("%w: slot %q has filter %q %q", ErrInvalidDescriptor, d.Name, f.Field, f.Op)
		}
	}
	return nil
}

// Key is a canonical form of the query. Descriptors with equal keys share one
// upstream subscription. Filter order does not matter.
func (d Descriptor) Key() string {
	filters := make([]string, 0, len(d.Filters))
	for _, f := range d.Filters {
		filters = append(filters, fmt.Sprintf("%s%s%v", f.Field, f.Op, f.Value))
	}
	sort.Strings(filters)

	var b strings.Builder
	b.WriteString(d.Source)
	b.WriteString("?")
	b.WriteString(strings.Join(filters, "&"))
	if d.OrderBy != "" {
		dir := "asc"
		if d.Descending {
			dir = "desc"
		}
		fmt.Fprintf(&b, "#order=%s:%s", d.OrderBy, dir)
	}
	if d.Limit > 0 {
		fmt.Fprintf(&b, "#limit=%d", d.Limit)
	}
	return b.String()
}

// LiveMatches selects every match currently in progress.
func LiveMatches(name string) Descriptor {
	return Descriptor{
		Name:    name,
		Source:  CollectionMatches,
		Filters: []Filter{{Field: "status", Op: OpEqual, Value: "live"}},
	}
}

// AllMatches selects every match regardless of status.
func AllMatches(name string) Descriptor {
	return Descriptor{Name: name, Source: CollectionMatches}
}

// LatestEvent selects the newest global event.
func LatestEvent(name string) Descriptor {
	return Descriptor{
		Name:       name,
		Source:     CollectionEvents,
		OrderBy:    "createdAt",
		Descending: true,
		Limit:      1,
	}
}

// Telemetry selects the telemetry frame of a match.
func Telemetry(name, matchID string) Descriptor {
	return Descriptor{
		Name:    name,
		Source:  CollectionTelemetry,
		Filters: []Filter{{Field: "id", Op: OpEqual, Value: matchID}},
		Limit:   1,
	}
}

// Pressure selects the pressure document of a match.
func Pressure(name, matchID string) Descriptor {
	return Descriptor{
		Name:    name,
		Source:  CollectionPressure,
		Filters: []Filter{{Field: "id", Op: OpEqual, Value: matchID}},
		Limit:   1,
	}
}
