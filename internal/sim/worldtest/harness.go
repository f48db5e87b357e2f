package worldtest

import (
	"testing"

	"parkstep.io/internal/guard"
	"parkstep.io/internal/logging"
	"parkstep.io/internal/sim/actions"
	"parkstep.io/internal/sim/game"
	"parkstep.io/internal/sim/snapshot"
	"parkstep.io/internal/sim/world"
)

// DefaultConfig is a small park with a few priced scenery objects.
var DefaultConfig = world.Config{
	EntityCapacity: 64,
	Seed:           42,
	Cash:           20000,
	Scenery:        map[uint16]world.Money{1: 100, 2: 250, 3: 40},
}

// Harness drives a single-player game context through exported APIs only:
// actions are queued for a tick, Step advances one tick and returns the
// entity digest.
type Harness struct {
	T   *testing.T
	Ctx *game.Context
}

func NewHarness(t *testing.T, cfg world.Config) *Harness {
	t.Helper()
	w, err := world.New(cfg)
	if err != nil {
		t.Fatalf("world.New: %v", err)
	}
	ctx := game.New(w, game.Options{Guard: &guard.Guard{Strict: true}, Log: logging.Discard()})
	return &Harness{T: t, Ctx: ctx}
}

func (h *Harness) World() *world.World { return h.Ctx.World }

// At queues a for tick.
func (h *Harness) At(tick uint32, a actions.Action) {
	h.T.Helper()
	if err := h.Ctx.Dispatcher.Enqueue(a, tick); err != nil {
		h.T.Fatalf("enqueue %s at %d: %v", a.Type(), tick, err)
	}
}

// Step runs one tick and returns the digest of the resulting state.
func (h *Harness) Step() string {
	h.T.Helper()
	_, digest, err := h.Ctx.StepOnce()
	if err != nil {
		h.T.Fatalf("step: %v", err)
	}
	return digest
}

// StepFor runs n ticks and returns one digest per tick.
func (h *Harness) StepFor(n int) []string {
	h.T.Helper()
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, h.Step())
	}
	return out
}

// Capture takes a linked snapshot of the current tick.
func (h *Harness) Capture() *snapshot.Snapshot {
	h.T.Helper()
	e := h.Ctx.Snapshots
	s := e.CreateSnapshot()
	if err := e.Capture(s, h.World()); err != nil {
		h.T.Fatalf("capture: %v", err)
	}
	e.LinkSnapshot(s, h.World().Tick(), h.World().SRand0())
	return s
}
