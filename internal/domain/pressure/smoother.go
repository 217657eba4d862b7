package pressure

import "sync"

const defaultAlpha = 0.3

// Smoother is an exponential moving average over incoming pressure values.
// Output stays within the pressure domain because every input is clamped.
type Smoother struct {
	mu     sync.Mutex
	alpha  float64
	value  float64
	primed bool
}

// NewSmoother creates a Smoother. alpha is the weight of the newest sample;
// values outside (0, 1] fall back to the default.
func NewSmoother(alpha float64) *Smoother {
	if alpha <= 0 || alpha > 1 {
		alpha = defaultAlpha
	}
	return &Smoother{alpha: alpha}
}

// Add folds p into the average and returns the new smoothed value.
func (s *Smoother) Add(p float64) float64 {
	p = Clamp(p)
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.primed {
		s.value = p
		s.primed = true
		return s.value
	}
	s.value += s.alpha * (p - s.value)
	return s.value
}

// Value returns the current smoothed value (0 before the first sample).
func (s *Smoother) Value() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}

// Reset forgets all samples.
func (s *Smoother) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value = 0
	s.primed = false
}
