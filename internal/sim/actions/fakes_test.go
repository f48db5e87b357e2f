package actions

import (
	"testing"

	"parkstep.io/internal/guard"
	"parkstep.io/internal/logging"
	"parkstep.io/internal/protocol"
	"parkstep.io/internal/sim/serial"
	"parkstep.io/internal/sim/world"
)

type fakeSession struct {
	mode     protocol.Mode
	local    PlayerID
	players  []PlayerID
	sent     []Action
	recorded []Type
}

func (s *fakeSession) Mode() protocol.Mode     { return s.mode }
func (s *fakeSession) LocalPlayer() PlayerID   { return s.local }
func (s *fakeSession) SendGameAction(a Action) { s.sent = append(s.sent, a) }
func (s *fakeSession) PlayerIndex(id PlayerID) int {
	for i, p := range s.players {
		if p == id {
			return i
		}
	}
	return -1
}
func (s *fakeSession) RecordPlayerAction(index int, t Type, cost world.Money, pos world.Coords) {
	s.recorded = append(s.recorded, t)
}

type fakeReplay struct {
	recording, playing, normalising bool
	added                           []Type
}

func (r *fakeReplay) IsRecording() bool   { return r.recording }
func (r *fakeReplay) IsPlayingBack() bool { return r.playing }
func (r *fakeReplay) IsNormalising() bool { return r.normalising }
func (r *fakeReplay) AddGameAction(tick uint32, a Action) {
	r.added = append(r.added, a.Type())
}

type fakeErrors struct{ shown []string }

func (e *fakeErrors) ShowError(title, message string) { e.shown = append(e.shown, title+" "+message) }

type fakeJournal struct{ entries []LogEntry }

func (j *fakeJournal) AppendAction(e LogEntry) { j.entries = append(j.entries, e) }

// probe is a test-only action whose query result is scripted and whose
// executions are counted.
type probe struct {
	Base
	flags    ActionFlags
	cost     world.Money
	status   Status
	execFail Status
	executed int
}

func (p *probe) Type() Type                     { return TypeCheatSet }
func (p *probe) ActionFlags() ActionFlags       { return p.flags }
func (p *probe) Serialise(s *serial.Serialiser) { p.Base.Serialise(s) }
func (p *probe) Query(env *Env) *Result {
	if p.status != StatusOK {
		return Failure(p.status, StringCantDoThis, StringNone)
	}
	r := NewResult()
	r.Cost = p.cost
	r.Expenditure = world.ExpenditureLandscaping
	return r
}
func (p *probe) Execute(env *Env) *Result {
	p.executed++
	if p.execFail != StatusOK {
		return Failure(p.execFail, StringCantDoThis, StringNone)
	}
	return p.Query(env)
}

func newProbe(cost world.Money) *probe {
	return &probe{Base: Base{Player: PlayerUnassigned, Flags: FlagNetworked}, cost: cost}
}

func newTestWorld(t *testing.T, cash world.Money) *world.World {
	t.Helper()
	w, err := world.New(world.Config{
		EntityCapacity: 32,
		Seed:           7,
		Cash:           cash,
		Scenery:        map[uint16]world.Money{1: 100, 2: 50, 3: 0},
	})
	if err != nil {
		t.Fatalf("world.New: %v", err)
	}
	return w
}

func newTestDispatcher(w *world.World, opts Options) *Dispatcher {
	if opts.Log == nil {
		opts.Log = logging.Discard()
	}
	if opts.Guard == nil {
		opts.Guard = &guard.Guard{Strict: true}
	}
	return NewDispatcher(w, opts)
}

func tile(x, y int32) world.Coords { return world.Coords{X: x * 32, Y: y * 32} }
