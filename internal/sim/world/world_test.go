package world

import (
	"testing"

	"parkstep.io/internal/sim/entity"
	"parkstep.io/internal/sim/serial"
)

func newTestWorld(t *testing.T) *World {
	t.Helper()
	w, err := New(Config{EntityCapacity: 64, Seed: 0xDEADBEEF_01234567, Cash: 1000, Scenery: map[uint16]Money{1: 100, 2: 50}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return w
}

func TestRandom_Sequence(t *testing.T) {
	r := Random{S0: 1, S1: 2}
	got := r.Next()
	// s0 = 1 + ror(2^0x1234567F, 7); s1 = ror(1, 3)
	if got != 0x20000000 || r.S1 != 0x20000000 {
		t.Fatalf("next=%#x s1=%#x", got, r.S1)
	}
	if r.S0 != 0xFA2468AD {
		t.Fatalf("s0=%#x", r.S0)
	}
}

func TestPayment_DebitsAndBooks(t *testing.T) {
	w := newTestWorld(t)
	w.Payment(300, ExpenditureLandscaping)
	w.Payment(-50, ExpenditureParkEntranceTickets)
	if w.Cash() != 750 {
		t.Fatalf("cash=%d want 750", w.Cash())
	}
	if w.Expenditure(ExpenditureLandscaping) != -300 || w.Expenditure(ExpenditureParkEntranceTickets) != 50 {
		t.Fatalf("ledger=%v", w.expenditure)
	}
	w.SetParkFlags(ParkFlagNoMoney)
	w.Payment(100, ExpenditureLandscaping)
	if w.Cash() != 750 {
		t.Fatalf("no-money park was charged")
	}
}

func TestRemoveGhosts_OnlyMatchingKind(t *testing.T) {
	w := newTestWorld(t)
	pos := Coords{X: 64, Y: 64}
	w.Place(Placement{Kind: SceneryWall, ObjectID: 1, Pos: pos, Ghost: true})
	w.Place(Placement{Kind: ScenerySmall, ObjectID: 1, Pos: pos, Ghost: true})
	w.Place(Placement{Kind: SceneryWall, ObjectID: 2, Pos: pos})
	if n := w.RemoveGhosts(SceneryWall); n != 1 {
		t.Fatalf("removed=%d want 1", n)
	}
	if len(w.Placements()) != 2 || !w.Occupied(SceneryWall, pos) {
		t.Fatalf("placements=%+v", w.Placements())
	}
}

func TestMoneyEffect_RisesThenExpires(t *testing.T) {
	w := newTestWorld(t)
	w.SpawnMoneyEffect(100, Coords{X: 64, Y: 64, Z: 8})
	if w.Entities().CountKind(entity.KindMoneyEffect) != 1 {
		t.Fatalf("money effect not spawned")
	}
	for i := 0; i < 2*moneyEffectMaxMovements; i++ {
		w.UpdateEntities()
	}
	if w.Entities().Count() != 0 {
		t.Fatalf("money effect did not expire")
	}
	w.SpawnMoneyEffect(0, Coords{X: 64, Y: 64})
	w.SpawnMoneyEffect(10, NullCoords)
	if w.Entities().Count() != 0 {
		t.Fatalf("zero value or null position spawned an effect")
	}
}

func TestSerialise_RoundTrip(t *testing.T) {
	w := newTestWorld(t)
	w.SetTick(42)
	w.Rand().Next()
	w.Payment(10, ExpenditureWages)
	w.Place(Placement{Kind: SceneryBanner, ObjectID: 2, Pos: Coords{X: 96, Y: 96, Z: 16}, Ghost: true})
	e, err := w.Entities().Spawn(entity.KindDuck)
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	e.(*entity.Duck).TargetX = -7
	if _, err := w.Entities().Spawn(entity.KindStaff); err != nil {
		t.Fatalf("spawn: %v", err)
	}
	w.Entities().Remove(0)

	s := serial.NewSaver()
	w.Serialise(s)
	if err := s.Err(); err != nil {
		t.Fatalf("save: %v", err)
	}

	out, _ := New(Config{})
	l := serial.NewLoader(s.Bytes())
	out.Serialise(l)
	if err := l.Err(); err != nil {
		t.Fatalf("load: %v", err)
	}
	if l.Remaining() != 0 {
		t.Fatalf("remaining=%d", l.Remaining())
	}
	if out.Tick() != 42 || out.SRand0() != w.SRand0() || out.Cash() != w.Cash() || out.Expenditure(ExpenditureWages) != -10 {
		t.Fatalf("scalars differ: tick=%d srand0=%#x cash=%d", out.Tick(), out.SRand0(), out.Cash())
	}
	if out.Entities().Capacity() != 64 || out.Entities().Count() != 1 || out.Entities().Kind(1) != entity.KindStaff {
		t.Fatalf("entities: cap=%d count=%d kind1=%s", out.Entities().Capacity(), out.Entities().Count(), out.Entities().Kind(1))
	}
	if p, ok := out.SceneryPrice(2); !ok || p != 50 {
		t.Fatalf("catalog price=%d ok=%v", p, ok)
	}
	if len(out.Placements()) != 1 || !out.Placements()[0].Ghost {
		t.Fatalf("placements=%+v", out.Placements())
	}
}

func TestInBounds(t *testing.T) {
	w := newTestWorld(t)
	cases := []struct {
		c    Coords
		want bool
	}{
		{Coords{X: 32, Y: 32}, true},
		{Coords{X: 0, Y: 32}, false},
		{Coords{X: 255 * 32, Y: 32}, false},
		{NullCoords, false},
	}
	for _, tc := range cases {
		if got := w.InBounds(tc.c); got != tc.want {
			t.Fatalf("InBounds(%+v)=%v want %v", tc.c, got, tc.want)
		}
	}
}
