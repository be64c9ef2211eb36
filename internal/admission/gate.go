package admission

import (
	"fmt"
	"time"

	"github.com/amityadav/clipping/internal/settings"
	"github.com/amityadav/clipping/internal/store"
)

// WindowTolerance is how far from the configured HH:MM a windowed class may run.
const WindowTolerance = 30 * time.Minute

// Decision explains why a class may or may not run.
type Decision struct {
	Allowed bool
	Reason  string
}

// Gate decides per source class whether enough time has passed since the
// last successful run. It holds no state besides the wall-clock zone.
type Gate struct {
	loc *time.Location
}

func NewGate(loc *time.Location) *Gate {
	if loc == nil {
		loc = time.UTC
	}
	return &Gate{loc: loc}
}

// CanRun reports whether class is eligible at now.
func (g *Gate) CanRun(class store.SourceClass, gs *store.GlobalSettings, now time.Time) bool {
	return g.Decide(class, gs, now).Allowed
}

// Decide applies the elapsed-time gate and, when the class has a window
// configured, the wall-clock gate. Both must pass.
func (g *Gate) Decide(class store.SourceClass, gs *store.GlobalSettings, now time.Time) Decision {
	policy := settings.GetPolicy(gs, class)

	if last, ok := gs.LastRunOf(class); ok && policy.Frequency > 0 {
		if elapsed := now.Sub(last); elapsed < policy.Frequency {
			return Decision{Reason: fmt.Sprintf("%s: %s since last run, %s=%s",
				class, elapsed.Round(time.Minute), settings.FrequencyKey(class), policy.Frequency)}
		}
	}

	if policy.Window != "" {
		target, err := time.Parse("15:04", policy.Window)
		if err != nil {
			// An unparseable window leaves only the elapsed gate in force.
			return Decision{Allowed: true, Reason: fmt.Sprintf("%s: ignoring invalid window %q", class, policy.Window)}
		}
		if d := g.distanceToWindow(now, target.Hour(), target.Minute()); d > WindowTolerance {
			return Decision{Reason: fmt.Sprintf("%s: %s away from %s window", class, d.Round(time.Minute), policy.Window)}
		}
	}
	return Decision{Allowed: true}
}

// Eligible decides every class at once.
func (g *Gate) Eligible(gs *store.GlobalSettings, now time.Time) map[store.SourceClass]Decision {
	out := make(map[store.SourceClass]Decision)
	for _, class := range store.AllClasses() {
		out[class] = g.Decide(class, gs, now)
	}
	return out
}

// distanceToWindow measures against today's occurrence in the gate's zone
// only; a window near midnight does not reach into the neighbouring day.
func (g *Gate) distanceToWindow(now time.Time, hour, minute int) time.Duration {
	local := now.In(g.loc)
	today := time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, g.loc)
	d := local.Sub(today)
	if d < 0 {
		d = -d
	}
	return d
}
