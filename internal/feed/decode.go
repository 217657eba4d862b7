package feed

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/okian/livepitch/internal/domain/model"
	"github.com/okian/livepitch/pkg/metrics"
)

// Document kinds used in malformed-document metrics.
const (
	kindMatch     = "match"
	kindEvent     = "event"
	kindTelemetry = "telemetry"
	kindPressure  = "pressure"
)

type rawScore struct {
	Home *int `mapstructure:"home"`
	Away *int `mapstructure:"away"`
}

type rawEvent struct {
	ID        string    `mapstructure:"id"`
	MatchID   string    `mapstructure:"matchId"`
	Minute    int       `mapstructure:"minute"`
	Type      string    `mapstructure:"type"`
	TeamID    string    `mapstructure:"teamId"`
	PlayerID  string    `mapstructure:"playerId"`
	Message   string    `mapstructure:"message"`
	Body      string    `mapstructure:"body"`
	Category  string    `mapstructure:"category"`
	CreatedAt time.Time `mapstructure:"createdAt"`
}

type rawMatch struct {
	ID        string      `mapstructure:"id"`
	HomeTeam  string      `mapstructure:"homeTeam"`
	AwayTeam  string      `mapstructure:"awayTeam"`
	Status    string      `mapstructure:"status"`
	Minute    int         `mapstructure:"minute"`
	Score     *rawScore   `mapstructure:"score"`
	HomeScore *int        `mapstructure:"homeScore"`
	AwayScore *int        `mapstructure:"awayScore"`
	Stats     model.Stats `mapstructure:"stats"`
	Events    []rawEvent  `mapstructure:"events"`
}

type rawPressure struct {
	Value    *float64 `mapstructure:"value"`
	Pressure *float64 `mapstructure:"pressure"`
}

// decode maps a document's data onto out. Numbers and strings are converted
// weakly; timestamps may be RFC 3339 strings, Unix milliseconds or
// {seconds, nanoseconds} maps.
func decode(data map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       timeHook,
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(data); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedSnapshot, err)
	}
	return nil
}

var timeType = reflect.TypeOf(time.Time{})

func timeHook(from, to reflect.Type, data any) (any, error) {
	if to != timeType {
		return data, nil
	}
	switch v := data.(type) {
	case time.Time:
		return v, nil
	case string:
		t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(v))
		if err != nil {
			return nil, fmt.Errorf("timestamp %q: %w", v, err)
		}
		return t, nil
	case map[string]any:
		sec, ok := toFloat(v["seconds"])
		if !ok {
			return nil, fmt.Errorf("timestamp map without seconds")
		}
		nsec, _ := toFloat(v["nanoseconds"])
		return time.Unix(int64(sec), int64(nsec)).UTC(), nil
	}
	if ms, ok := toFloat(data); ok {
		return time.UnixMilli(int64(ms)).UTC(), nil
	}
	return nil, fmt.Errorf("unsupported timestamp type %s", from)
}

// DecodeMatch decodes one live match document.
func DecodeMatch(doc Document) (model.LiveMatch, error) {
	var raw rawMatch
	if err := decode(doc.Data, &raw); err != nil {
		return model.LiveMatch{}, err
	}
	if raw.ID == "" {
		raw.ID = doc.ID
	}
	if raw.ID == "" || raw.HomeTeam == "" || raw.AwayTeam == "" {
		return model.LiveMatch{}, fmt.Errorf("%w: match %q needs id and both teams", ErrMalformedSnapshot, raw.ID)
	}

	m := model.LiveMatch{
		ID:       raw.ID,
		HomeTeam: raw.HomeTeam,
		AwayTeam: raw.AwayTeam,
		Status:   model.ParseStatus(raw.Status),
		Minute:   raw.Minute,
		Stats:    raw.Stats,
	}
	switch {
	case raw.Score != nil && raw.Score.Home != nil && raw.Score.Away != nil:
		m.Score = &model.Score{Home: *raw.Score.Home, Away: *raw.Score.Away}
	case raw.HomeScore != nil && raw.AwayScore != nil:
		m.Score = &model.Score{Home: *raw.HomeScore, Away: *raw.AwayScore}
	}
	for _, re := range raw.Events {
		if ev, ok := re.event(m.ID); ok {
			m.Events = append(m.Events, ev)
		}
	}
	return m, nil
}

// DecodeMatches decodes every well-formed match of a snapshot. Malformed
// documents are skipped.
func DecodeMatches(s Snapshot) []model.LiveMatch {
	out := make([]model.LiveMatch, 0, len(s.Documents))
	for _, doc := range s.Documents {
		m, err := DecodeMatch(doc)
		if err != nil {
			metrics.RecordMalformedDocument(kindMatch)
			continue
		}
		out = append(out, m)
	}
	return out
}

// DecodeEvent decodes one event document. The creation timestamp is
// required.
func DecodeEvent(doc Document) (model.MatchEvent, error) {
	var raw rawEvent
	if err := decode(doc.Data, &raw); err != nil {
		return model.MatchEvent{}, err
	}
	if raw.ID == "" {
		raw.ID = doc.ID
	}
	ev, ok := raw.event(raw.MatchID)
	if !ok {
		return model.MatchEvent{}, fmt.Errorf("%w: event %q needs id and createdAt", ErrMalformedSnapshot, raw.ID)
	}
	return ev, nil
}

// DecodeLatestEvent decodes the first document of a newest-first event
// snapshot. It returns nil for an empty or malformed snapshot.
func DecodeLatestEvent(s Snapshot) *model.MatchEvent {
	doc, ok := s.First()
	if !ok {
		return nil
	}
	ev, err := DecodeEvent(doc)
	if err != nil {
		metrics.RecordMalformedDocument(kindEvent)
		return nil
	}
	return &ev
}

// DecodeTelemetry decodes the first document of a telemetry snapshot. It
// returns nil when absent or malformed.
func DecodeTelemetry(s Snapshot) *model.TelemetryFrame {
	doc, ok := s.First()
	if !ok {
		return nil
	}
	if _, ok := doc.Data["ball"]; !ok {
		metrics.RecordMalformedDocument(kindTelemetry)
		return nil
	}
	var f model.TelemetryFrame
	if err := decode(doc.Data, &f); err != nil {
		metrics.RecordMalformedDocument(kindTelemetry)
		return nil
	}
	if f.MatchID == "" {
		f.MatchID = doc.ID
	}
	for i := range f.Players {
		if f.Players[i].Side != model.SideHome {
			f.Players[i].Side = model.SideAway
		}
	}
	return &f
}

// DecodePressure reads the pressure value of the first document. ok is
// false when absent or malformed.
func DecodePressure(s Snapshot) (float64, bool) {
	doc, ok := s.First()
	if !ok {
		return 0, false
	}
	var raw rawPressure
	if err := decode(doc.Data, &raw); err != nil {
		metrics.RecordMalformedDocument(kindPressure)
		return 0, false
	}
	switch {
	case raw.Value != nil:
		return *raw.Value, true
	case raw.Pressure != nil:
		return *raw.Pressure, true
	default:
		metrics.RecordMalformedDocument(kindPressure)
		return 0, false
	}
}

func (r rawEvent) event(matchID string) (model.MatchEvent, bool) {
	if r.ID == "" || r.CreatedAt.IsZero() {
		return model.MatchEvent{}, false
	}
	msg := r.Message
	if msg == "" {
		msg = r.Body
	}
	if r.MatchID != "" {
		matchID = r.MatchID
	}
	return model.MatchEvent{
		ID:        r.ID,
		MatchID:   matchID,
		Minute:    r.Minute,
		Type:      parseEventType(r.Type),
		TeamID:    r.TeamID,
		PlayerID:  r.PlayerID,
		Message:   msg,
		Category:  r.Category,
		CreatedAt: r.CreatedAt,
	}, true
}

func parseEventType(s string) model.EventType {
	switch t := model.EventType(strings.ToLower(strings.TrimSpace(s))); t {
	case model.EventGoal, model.EventCard, model.EventSubstitution:
		return t
	default:
		return model.EventText
	}
}
