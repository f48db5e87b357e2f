package desync

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"parkstep.io/internal/sim/entity"
	"parkstep.io/internal/sim/snapshot"
	"parkstep.io/internal/sim/world"
)

func newWorld(t *testing.T) *world.World {
	t.Helper()
	w, err := world.New(world.Config{EntityCapacity: 8, Seed: 1})
	if err != nil {
		t.Fatalf("world.New: %v", err)
	}
	return w
}

func capture(t *testing.T, e *snapshot.Engine, w *world.World, tick uint32) *snapshot.Snapshot {
	t.Helper()
	s := e.CreateSnapshot()
	if err := e.Capture(s, w); err != nil {
		t.Fatalf("capture: %v", err)
	}
	e.LinkSnapshot(s, tick, w.SRand0())
	return s
}

func spawn(t *testing.T, w *world.World, k entity.Kind) entity.Entity {
	t.Helper()
	e, err := w.Entities().Spawn(k)
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	return e
}

func TestCompare_Idempotent(t *testing.T) {
	w := newWorld(t)
	spawn(t, w, entity.KindGuest)
	spawn(t, w, entity.KindStaff)
	e := snapshot.NewEngine(nil)
	a := capture(t, e, w, 1)
	b := capture(t, e, w, 1)
	res, err := Compare(a, b)
	if err != nil {
		t.Fatalf("compare: %v", err)
	}
	if !res.Equal() || len(res.Changes) != 0 {
		t.Fatalf("changes=%+v", res.Changes)
	}
}

func TestCompare_SingleFieldDiff(t *testing.T) {
	w := newWorld(t)
	spawn(t, w, entity.KindDuck)
	g := spawn(t, w, entity.KindGuest).(*entity.Guest)
	g.CashInPocket = -250
	e := snapshot.NewEngine(nil)
	a := capture(t, e, w, 10)
	g.CashInPocket = 100
	b := capture(t, e, w, 10)

	res, err := Compare(a, b)
	if err != nil {
		t.Fatalf("compare: %v", err)
	}
	if len(res.Changes) != 1 {
		t.Fatalf("changes=%+v", res.Changes)
	}
	c := res.Changes[0]
	if c.Index != 1 || c.Kind != entity.KindGuest || c.Change != ChangeModified || len(c.Diffs) != 1 {
		t.Fatalf("change=%+v", c)
	}
	d := c.Diffs[0]
	want := FieldDiff{Struct: "Guest", Field: "CashInPocket", Offset: 45, Length: 4, Left: 0xFFFFFF06, Right: 0x64}
	if d != want {
		t.Fatalf("diff=%+v want %+v", d, want)
	}
}

func TestCompare_StoredSpriteIndexDiff(t *testing.T) {
	w := newWorld(t)
	g := spawn(t, w, entity.KindGuest)
	e := snapshot.NewEngine(nil)
	a := capture(t, e, w, 4)
	g.EntityBase().SpriteIndex = 5
	b := capture(t, e, w, 4)

	if snapshot.Digest(a) == snapshot.Digest(b) {
		t.Fatalf("digests should differ")
	}
	res, err := Compare(a, b)
	if err != nil {
		t.Fatalf("compare: %v", err)
	}
	if len(res.Changes) != 1 || len(res.Changes[0].Diffs) != 1 {
		t.Fatalf("changes=%+v", res.Changes)
	}
	want := FieldDiff{Struct: "EntityBase", Field: "SpriteIndex", Offset: 1, Length: 2, Left: 0, Right: 5}
	if d := res.Changes[0].Diffs[0]; d != want {
		t.Fatalf("diff=%+v want %+v", d, want)
	}
}

func TestCompare_AddedRemoved(t *testing.T) {
	w := newWorld(t)
	spawn(t, w, entity.KindLitter)
	e := snapshot.NewEngine(nil)
	a := capture(t, e, w, 3)
	w.Entities().Remove(0)
	spawn(t, w, entity.KindLitter)
	spawn(t, w, entity.KindBalloon)
	w.Entities().Remove(0)
	b := capture(t, e, w, 3)

	res, err := Compare(a, b)
	if err != nil {
		t.Fatalf("compare: %v", err)
	}
	if len(res.Changes) != 2 {
		t.Fatalf("changes=%+v", res.Changes)
	}
	if c := res.Changes[0]; c.Index != 0 || c.Change != ChangeRemoved || c.Kind != entity.KindLitter {
		t.Fatalf("slot 0=%+v", c)
	}
	if c := res.Changes[1]; c.Index != 1 || c.Change != ChangeAdded || c.Kind != entity.KindBalloon {
		t.Fatalf("slot 1=%+v", c)
	}

	rev, err := Compare(b, a)
	if err != nil {
		t.Fatalf("compare: %v", err)
	}
	if rev.Changes[0].Change != ChangeAdded || rev.Changes[1].Change != ChangeRemoved {
		t.Fatalf("reverse=%+v", rev.Changes)
	}
}

func TestCompare_KindChange(t *testing.T) {
	w := newWorld(t)
	spawn(t, w, entity.KindDuck)
	e := snapshot.NewEngine(nil)
	a := capture(t, e, w, 3)
	w.Entities().Remove(0)
	spawn(t, w, entity.KindBalloon)
	b := capture(t, e, w, 3)
	res, err := Compare(a, b)
	if err != nil {
		t.Fatalf("compare: %v", err)
	}
	if len(res.Changes) != 1 || res.Changes[0].Change != ChangeModified {
		t.Fatalf("changes=%+v", res.Changes)
	}
	d := res.Changes[0].Diffs[0]
	if d.Struct != "EntityBase" || d.Field != "Type" || d.Left != uint64(entity.KindDuck) || d.Right != uint64(entity.KindBalloon) {
		t.Fatalf("diff=%+v", d)
	}
}

func TestGetCompareDataText(t *testing.T) {
	res := &CompareResult{
		TickLeft: 0x10, TickRight: 0x10, SRand0Left: 0xAB, SRand0Right: 0xCD,
		Changes: []SpriteChange{
			{Index: 2, Kind: entity.KindLitter, Change: ChangeAdded},
			{Index: 3, Kind: entity.KindDuck, Change: ChangeRemoved},
			{Index: 4, Kind: entity.KindGuest, Change: ChangeModified, Diffs: []FieldDiff{
				{Struct: "Guest", Field: "CashInPocket", Offset: 45, Length: 4, Left: 0xFFFFFF06, Right: 0x64},
			}},
		},
	}
	want := "tick left = 00000010, tick right = 00000010\n" +
		"srand0 left = 000000AB, srand0 right = 000000CD\n" +
		"Sprite added (Litter), index: 2\n" +
		"Sprite removed (Duck), index: 3\n" +
		"Sprite modifications (Guest), index: 4\n" +
		"  Guest::CashInPocket, len = 4, offset = 45, left = 0x00000000FFFFFF06, right = 0x0000000000000064\n"
	if got := GetCompareDataText(res); got != want {
		t.Fatalf("report:\n%s\nwant:\n%s", got, want)
	}
}

func TestLogCompareDataToFile(t *testing.T) {
	dir := t.TempDir()
	res := &CompareResult{TickLeft: 1, TickRight: 1}
	path := filepath.Join(dir, ReportFileName(time.Unix(1700000000, 0), 1))
	if !strings.HasSuffix(path, "desync_1700000000_1.txt") {
		t.Fatalf("path=%s", path)
	}
	if !LogCompareDataToFile(path, res) {
		t.Fatalf("write failed")
	}
	b, err := os.ReadFile(path)
	if err != nil || string(b) != GetCompareDataText(res) {
		t.Fatalf("file=%q err=%v", b, err)
	}
	if LogCompareDataToFile(filepath.Join(dir, "missing", "x.txt"), res) {
		t.Fatalf("write into a missing directory reported success")
	}
}
