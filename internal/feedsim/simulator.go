// Package feedsim generates a plausible live-match feed: matches with
// evolving scores and stats, a global event stream, telemetry frames and
// pressure values. It writes into any Publisher, usually a memory source
// that is either consumed in-process or served over the websocket feed
// protocol.
package feedsim

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/okian/livepitch/internal/domain/model"
	"github.com/okian/livepitch/internal/feed"
	"github.com/okian/livepitch/pkg/logger"
)

// Match length and pacing in simulated minutes.
const (
	fullTime       = 90
	maxKickoffWait = 3
	// completedLinger is how many steps a finished match stays listed.
	completedLinger = 5
)

// Per-minute probabilities of the live model.
const (
	attackChance = 0.35
	shotChance   = 0.30
	goalChance   = 0.12
	cardChance   = 0.03
	updateChance = 0.05
)

// Publisher receives simulated documents.
type Publisher interface {
	Put(collection, id string, data map[string]any)
	Delete(collection, id string)
}

type simMatch struct {
	id        string
	home      string
	away      string
	status    model.Status
	minute    int
	kickoffIn int
	linger    int
	score     model.Score
	stats     model.Stats
	momentum  float64
	ball      model.Point
	players   []model.PlayerPosition
}

// Simulator advances a fixed number of matches one minute per step.
type Simulator struct {
	pub        Publisher
	log        logger.Logger
	rnd        *rand.Rand
	interval   time.Duration
	matchCount int
	players    int
	width      float64
	height     float64

	mu      sync.Mutex
	matches []*simMatch
	events  []string
	steps   int
}

// New creates a Simulator writing into pub.
func New(pub Publisher, opts ...Option) *Simulator {
	now := uint64(time.Now().UnixNano())
	s := &Simulator{
		pub:        pub,
		log:        logger.Nop(),
		rnd:        rand.New(rand.NewPCG(now, now>>1)),
		interval:   DefaultInterval,
		matchCount: DefaultMatches,
		players:    DefaultPlayers,
		width:      DefaultWidth,
		height:     DefaultHeight,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Seed creates the initial set of matches and publishes them. The first
// match kicks off immediately.
func (s *Simulator) Seed(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.matches = s.matches[:0]
	for i := 0; i < s.matchCount; i++ {
		m := s.newMatchLocked()
		if i == 0 {
			m.kickoff()
		}
		s.matches = append(s.matches, m)
		s.publishLocked(m, now)
	}
	s.log.Info(context.Background(), "feed simulator seeded", logger.Int("matches", len(s.matches)))
}

// Step advances every match by one simulated minute and publishes the
// resulting documents stamped with now.
func (s *Simulator) Step(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.steps++
	for i, m := range s.matches {
		switch m.status {
		case model.StatusScheduled:
			m.kickoffIn--
			if m.kickoffIn <= 0 {
				m.kickoff()
			}
		case model.StatusLive:
			s.playMinuteLocked(m, now)
		case model.StatusCompleted:
			m.linger++
			if m.linger >= completedLinger {
				s.retireLocked(m)
				m = s.newMatchLocked()
				s.matches[i] = m
			}
		}
		s.publishLocked(m, now)
	}
}

// Run seeds the feed and steps it every interval until ctx is done.
func (s *Simulator) Run(ctx context.Context) error {
	s.Seed(time.Now().UTC())

	t := time.NewTicker(s.interval)
	defer t.Stop()
	s.log.Info(ctx, "feed simulator running", logger.Duration("interval", s.interval))
	for {
		select {
		case <-ctx.Done():
			s.log.Info(ctx, "feed simulator stopped", logger.Int("steps", s.Steps()))
			return nil
		case now := <-t.C:
			s.Step(now.UTC())
		}
	}
}

// Steps returns how many steps ran.
func (s *Simulator) Steps() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.steps
}

// MatchIDs returns the ids of the simulated matches in slot order.
func (s *Simulator) MatchIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, len(s.matches))
	for i, m := range s.matches {
		ids[i] = m.id
	}
	return ids
}

func (s *Simulator) newMatchLocked() *simMatch {
	h := s.rnd.IntN(len(teamNames))
	a := s.rnd.IntN(len(teamNames) - 1)
	if a >= h {
		a++
	}
	m := &simMatch{
		id:        uuid.New().String(),
		home:      teamNames[h],
		away:      teamNames[a],
		status:    model.StatusScheduled,
		kickoffIn: 1 + s.rnd.IntN(maxKickoffWait),
		ball:      model.Point{X: s.width / 2, Y: s.height / 2},
	}
	m.players = s.formationLocked(m.id)
	return m
}

func (m *simMatch) kickoff() {
	m.status = model.StatusLive
	m.minute = 1
	m.stats.Possession = model.Pair{Home: 50, Away: 50}
	m.stats.PassAccuracy = model.Pair{Home: 80, Away: 80}
}

// formationLocked places both sides in their own half.
func (s *Simulator) formationLocked(matchID string) []model.PlayerPosition {
	out := make([]model.PlayerPosition, 0, 2*s.players)
	for _, side := range []model.Side{model.SideHome, model.SideAway} {
		for i := 0; i < s.players; i++ {
			x := s.width * (0.08 + 0.38*float64(i%4)/3)
			if side == model.SideAway {
				x = s.width - x
			}
			y := s.height * (float64(i%5) + 0.5) / 5
			out = append(out, model.PlayerPosition{
				ID:   matchID[:8] + "-" + string(side[:1]) + strconv.Itoa(i+1),
				Side: side,
				X:    x,
				Y:    y,
			})
		}
	}
	return out
}

func (s *Simulator) playMinuteLocked(m *simMatch, now time.Time) {
	m.minute++
	m.momentum = clamp(m.momentum*0.8+(s.rnd.Float64()-0.5)*0.6, -1, 1)

	poss := clamp(50+m.momentum*15+(s.rnd.Float64()-0.5)*4, 30, 70)
	m.stats.Possession = model.Pair{Home: math.Round(poss), Away: 100 - math.Round(poss)}
	m.stats.PassAccuracy = model.Pair{
		Home: clamp(m.stats.PassAccuracy.Home+m.momentum*0.5, 60, 95),
		Away: clamp(m.stats.PassAccuracy.Away-m.momentum*0.5, 60, 95),
	}

	homeAttack := s.rnd.Float64() < (1+m.momentum)/2
	team := m.home
	if !homeAttack {
		team = m.away
	}

	if s.rnd.Float64() < attackChance {
		if homeAttack {
			m.stats.Attacks.Home++
		} else {
			m.stats.Attacks.Away++
		}
		if s.rnd.Float64() < shotChance {
			if homeAttack {
				m.stats.Shots.Home++
			} else {
				m.stats.Shots.Away++
			}
			if s.rnd.Float64() < goalChance {
				if homeAttack {
					m.score.Home++
				} else {
					m.score.Away++
				}
				s.emitLocked(m, now, model.EventGoal, model.CategoryGoal, team, pick(s.rnd, goalLines))
			}
		}
	}
	switch r := s.rnd.Float64(); {
	case r < cardChance:
		s.emitLocked(m, now, model.EventCard, model.CategoryCard, team, pick(s.rnd, cardLines))
	case r < cardChance+updateChance:
		s.emitLocked(m, now, model.EventText, model.CategoryUpdate, team, pick(s.rnd, updateLines))
	}

	s.moveLocked(m)

	if m.minute >= fullTime {
		m.status = model.StatusCompleted
		msg := fmt.Sprintf("Full time: %s %d - %d %s", m.home, m.score.Home, m.score.Away, m.away)
		category := model.CategoryUpdate
		if m.score.Home != m.score.Away {
			category = model.CategoryWin
		}
		s.emitLocked(m, now, model.EventText, category, "", msg)
	}
}

// moveLocked drifts the ball toward the side under pressure and lets every
// player follow it a little.
func (s *Simulator) moveLocked(m *simMatch) {
	target := s.width/2 + m.momentum*s.width*0.4
	m.ball.X = clamp(m.ball.X+(target-m.ball.X)*0.3+(s.rnd.Float64()-0.5)*s.width*0.1, 0, s.width)
	m.ball.Y = clamp(m.ball.Y+(s.rnd.Float64()-0.5)*s.height*0.2, 0, s.height)

	for i := range m.players {
		p := &m.players[i]
		p.X = clamp(p.X+(m.ball.X-p.X)*0.05+(s.rnd.Float64()-0.5)*8, 0, s.width)
		p.Y = clamp(p.Y+(m.ball.Y-p.Y)*0.05+(s.rnd.Float64()-0.5)*8, 0, s.height)
	}
}

func (s *Simulator) emitLocked(m *simMatch, now time.Time, typ model.EventType, category model.Category, team, line string) {
	id := uuid.New().String()
	msg := line
	if team != "" {
		msg = fmt.Sprintf(line, team)
	}
	s.pub.Put(feed.CollectionEvents, id, map[string]any{
		"id":        id,
		"matchId":   m.id,
		"minute":    m.minute,
		"type":      string(typ),
		"teamId":    team,
		"message":   msg,
		"category":  string(category),
		"createdAt": now.Format(time.RFC3339Nano),
	})

	s.events = append(s.events, id)
	if len(s.events) > DefaultEventHistory {
		old := s.events[0]
		s.events = s.events[1:]
		s.pub.Delete(feed.CollectionEvents, old)
	}
}

func (s *Simulator) retireLocked(m *simMatch) {
	s.pub.Delete(feed.CollectionMatches, m.id)
	s.pub.Delete(feed.CollectionTelemetry, m.id)
	s.pub.Delete(feed.CollectionPressure, m.id)
}

func (s *Simulator) publishLocked(m *simMatch, now time.Time) {
	doc := map[string]any{
		"id":       m.id,
		"homeTeam": m.home,
		"awayTeam": m.away,
		"status":   string(m.status),
		"minute":   m.minute,
		"stats": map[string]any{
			"possession":   pairDoc(m.stats.Possession),
			"shots":        pairDoc(m.stats.Shots),
			"attacks":      pairDoc(m.stats.Attacks),
			"passAccuracy": pairDoc(m.stats.PassAccuracy),
		},
		"updatedAt": now.Format(time.RFC3339Nano),
	}
	if m.status != model.StatusScheduled {
		doc["score"] = map[string]any{"home": m.score.Home, "away": m.score.Away}
	}
	s.pub.Put(feed.CollectionMatches, m.id, doc)

	if m.status != model.StatusLive {
		return
	}

	players := make([]any, len(m.players))
	for i, p := range m.players {
		players[i] = map[string]any{"id": p.ID, "side": string(p.Side), "x": p.X, "y": p.Y}
	}
	s.pub.Put(feed.CollectionTelemetry, m.id, map[string]any{
		"matchId": m.id,
		"ball":    map[string]any{"x": m.ball.X, "y": m.ball.Y},
		"players": players,
	})
	s.pub.Put(feed.CollectionPressure, m.id, map[string]any{
		"matchId": m.id,
		"value":   math.Round(m.momentum * model.PressureMax),
	})
}

func pairDoc(p model.Pair) map[string]any {
	return map[string]any{"home": p.Home, "away": p.Away}
}

func pick(r *rand.Rand, lines []string) string {
	return lines[r.IntN(len(lines))]
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
