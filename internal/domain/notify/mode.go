package notify

import (
	"fmt"
	"strings"
)

// Mode selects which entry sources may activate a notification.
type Mode string

const (
	// ModeExternal shows only fresh feed events; the generator never runs.
	ModeExternal Mode = "external"
	// ModeSynthetic runs only the generator; feed events are ignored.
	ModeSynthetic Mode = "synthetic"
	// ModeHybrid runs the generator and lets fresh feed events preempt it.
	ModeHybrid Mode = "hybrid"
	// ModeAuto resolves to ModeExternal or ModeSynthetic, see Resolve.
	ModeAuto Mode = "auto"
)

// ParseMode parses a configured mode string.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeExternal, ModeSynthetic, ModeHybrid, ModeAuto:
		return m, nil
	case "":
		return ModeAuto, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidMode, s)
	}
}

// Resolve turns ModeAuto into a concrete mode: external when a feed exists,
// synthetic otherwise. Concrete modes are returned unchanged.
func (m Mode) Resolve(hasFeed bool) Mode {
	if m != ModeAuto {
		return m
	}
	if hasFeed {
		return ModeExternal
	}
	return ModeSynthetic
}

func (m Mode) acceptsExternal() bool { return m == ModeExternal || m == ModeHybrid }

func (m Mode) generates() bool { return m == ModeSynthetic || m == ModeHybrid }
