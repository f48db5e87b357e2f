package replay

import (
	"path/filepath"
	"testing"

	"parkstep.io/internal/logging"
	"parkstep.io/internal/sim/actions"
	"parkstep.io/internal/sim/world"
)

var testConfig = world.Config{
	EntityCapacity: 32,
	Seed:           1234,
	Cash:           10000,
	Scenery:        map[uint16]world.Money{1: 100, 2: 250},
}

func newWorld(t *testing.T) *world.World {
	t.Helper()
	w, err := world.New(testConfig)
	if err != nil {
		t.Fatalf("world.New: %v", err)
	}
	return w
}

func step(t *testing.T, w *world.World, d *actions.Dispatcher, m *Manager) {
	t.Helper()
	w.UpdateEntities()
	w.SetInUpdate(true)
	d.ProcessQueue(w.Tick())
	if err := m.Update(d); err != nil {
		t.Fatalf("update: %v", err)
	}
	w.SetInUpdate(false)
	w.AdvanceTick()
}

func TestRecordThenPlayback(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.replay.zst")

	w := newWorld(t)
	m := NewManager(logging.Discard())
	d := actions.NewDispatcher(w, actions.Options{Replay: m, Log: logging.Discard()})
	if err := m.StartRecording(w); err != nil {
		t.Fatalf("start recording: %v", err)
	}
	_ = d.Enqueue(actions.NewSmallSceneryPlace(1, world.Coords{X: 96, Y: 96}), 2)
	_ = d.Enqueue(actions.NewParkSetEntranceFee(300), 4)
	ghost := actions.NewWallPlace(2, world.Coords{X: 128, Y: 128}, 0)
	ghost.Flags |= actions.FlagGhost
	_ = d.Enqueue(ghost, 4)
	_ = d.Enqueue(actions.NewLargeSceneryPlace(2, world.Coords{X: 160, Y: 96}), 6)
	for i := 0; i < 10; i++ {
		step(t, w, d, m)
	}
	if err := m.StopRecording(path); err != nil {
		t.Fatalf("stop: %v", err)
	}

	rec, err := ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(rec.Commands) != 3 {
		t.Fatalf("commands=%d want 3 (ghost excluded)", len(rec.Commands))
	}

	w2, err := world.New(world.Config{Cash: 1})
	if err != nil {
		t.Fatalf("world.New: %v", err)
	}
	m2 := NewManager(logging.Discard())
	d2 := actions.NewDispatcher(w2, actions.Options{Replay: m2, Log: logging.Discard()})
	if err := m2.StartPlayback(path, w2); err != nil {
		t.Fatalf("playback: %v", err)
	}
	if !m2.IsPlayingBack() {
		t.Fatalf("mode=%s", m2.Mode())
	}
	// Live input is refused during playback.
	if r := d2.Execute(actions.NewParkSetEntranceFee(5)); r.Status != actions.StatusDisallowed {
		t.Fatalf("live action status=%s", r.Status)
	}
	for i := 0; i < 10; i++ {
		step(t, w2, d2, m2)
	}
	if m2.Mode() != ModeNone {
		t.Fatalf("playback did not finish: mode=%s", m2.Mode())
	}
	if w2.Cash() != w.Cash() || w2.EntranceFee() != 300 || w2.SRand0() != w.SRand0() || w2.Tick() != w.Tick() {
		t.Fatalf("playback diverged: cash %d/%d fee %d srand0 %#x/%#x", w2.Cash(), w.Cash(), w2.EntranceFee(), w2.SRand0(), w.SRand0())
	}
	if len(w2.Placements()) != 2 {
		t.Fatalf("placements=%+v", w2.Placements())
	}
}

func TestNormalisation_WritesCanonicalStream(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.replay.zst")
	out := filepath.Join(dir, "out.replay.zst")

	w := newWorld(t)
	state, err := captureState(w)
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	fee, _ := actions.Encode(actions.NewParkSetEntranceFee(120))
	rec := &Record{StartTick: 0, StartState: state, Commands: []Command{
		{Tick: 1, Type: actions.TypeParkSetEntranceFee, Data: fee},
		{Tick: 1, Type: actions.Type(200), Data: nil},
	}}
	if err := WriteFile(in, rec); err != nil {
		t.Fatalf("write: %v", err)
	}

	w2 := newWorld(t)
	m := NewManager(logging.Discard())
	d := actions.NewDispatcher(w2, actions.Options{Replay: m, Log: logging.Discard()})
	if err := m.StartNormalisation(in, out, w2); err != nil {
		t.Fatalf("normalise: %v", err)
	}
	for i := 0; i < 3; i++ {
		step(t, w2, d, m)
	}
	got, err := ReadFile(out)
	if err != nil {
		t.Fatalf("read normalised: %v", err)
	}
	if len(got.Commands) != 1 || got.Commands[0].Type != actions.TypeParkSetEntranceFee {
		t.Fatalf("normalised commands=%+v", got.Commands)
	}
}

func TestReadFile_EmptyAndMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.zst")
	if err := WriteFile(path, &Record{}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := ReadFile(path); err != nil {
		t.Fatalf("empty record should read back: %v", err)
	}
	if _, err := ReadFile(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatalf("missing file read without error")
	}
}
