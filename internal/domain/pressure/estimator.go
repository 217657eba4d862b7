package pressure

import (
	"github.com/okian/livepitch/internal/domain/model"
)

// Stat names accepted as weights.
const (
	StatPossession   = "possession"
	StatShots        = "shots"
	StatAttacks      = "attacks"
	StatPassAccuracy = "pass_accuracy"
)

// Option applies a configuration option to the Estimator.
type Option func(*Estimator)

// WithWeights sets per-stat weights. Non-positive weights drop the stat.
func WithWeights(weights map[string]float64) Option {
	return func(e *Estimator) {
		if len(weights) == 0 {
			return
		}
		e.weights = make(map[string]float64, len(weights))
		for stat, w := range weights {
			if w > 0 {
				e.weights[stat] = w
			}
		}
	}
}

// Estimator derives a pressure value from a match's aggregate stats. It is
// used when the feed publishes no explicit pressure document.
type Estimator struct {
	weights map[string]float64
}

// NewEstimator creates an Estimator with default weights.
func NewEstimator(opts ...Option) *Estimator {
	e := &Estimator{
		weights: map[string]float64{
			StatPossession:   1.0,
			StatShots:        2.0,
			StatAttacks:      1.5,
			StatPassAccuracy: 0.5,
		},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Estimate returns a weighted mean of each stat's normalized differential
// (home-away)/(home+away), scaled to [-100, 100]. Stats where both sides are
// zero carry no signal and are skipped.
func (e *Estimator) Estimate(m model.LiveMatch) float64 {
	stats := map[string]model.Pair{
		StatPossession:   m.Stats.Possession,
		StatShots:        m.Stats.Shots,
		StatAttacks:      m.Stats.Attacks,
		StatPassAccuracy: m.Stats.PassAccuracy,
	}

	var sum, total float64
	for stat, pair := range stats {
		w, ok := e.weights[stat]
		if !ok {
			continue
		}
		d, ok := differential(pair)
		if !ok {
			continue
		}
		sum += w * d
		total += w
	}
	if total == 0 {
		return 0
	}
	return Clamp(100 * sum / total)
}

func differential(p model.Pair) (float64, bool) {
	home, away := p.Home, p.Away
	if home < 0 {
		home = 0
	}
	if away < 0 {
		away = 0
	}
	if home+away == 0 {
		return 0, false
	}
	return (home - away) / (home + away), true
}
