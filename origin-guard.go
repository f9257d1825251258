package dashhttp

import "strings"

// GuardMode decides how the own-backend prefixes are matched
type GuardMode string

const (
	// GuardAny passes when the URL contains at least one prefix
	GuardAny GuardMode = "any"
	// GuardAll passes only when the URL contains every prefix
	GuardAll GuardMode = "all"
)

// OriginGuard decides whether a URL belongs to the own backend and may
// receive session headers. A guard without prefixes never passes.
type OriginGuard struct {
	Mode     GuardMode
	Prefixes []string
}

// NewOriginGuard creates a guard. Empty prefixes are ignored and an empty
// mode is GuardAny.
func NewOriginGuard(mode GuardMode, prefixes ...string) OriginGuard {
	g := OriginGuard{Mode: mode}
	if g.Mode == "" {
		g.Mode = GuardAny
	}
	for _, p := range prefixes {
		if p = strings.TrimSpace(p); p != "" {
			g.Prefixes = append(g.Prefixes, p)
		}
	}
	return g
}

// Valid reports whether m is a known mode
func (m GuardMode) Valid() bool {
	return m == GuardAny || m == GuardAll
}

// Allows reports whether rawURL may receive session headers
func (g OriginGuard) Allows(rawURL string) bool {
	if len(g.Prefixes) == 0 {
		return false
	}
	for _, p := range g.Prefixes {
		hit := strings.Contains(rawURL, p)
		if g.Mode == GuardAll && !hit {
			return false
		}
		if g.Mode != GuardAll && hit {
			return true
		}
	}
	return g.Mode == GuardAll
}
