package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"parkstep.io/internal/logging"
	persistsnap "parkstep.io/internal/persistence/snapshot"
	"parkstep.io/internal/sim/entity"
	"parkstep.io/internal/sim/snapshot"
	"parkstep.io/internal/sim/world"
)

func writeSnap(t *testing.T, dir, name string, mutate func(w *world.World)) string {
	t.Helper()
	w, err := world.New(world.Config{EntityCapacity: 16, Seed: 3, Cash: 100})
	if err != nil {
		t.Fatalf("world.New: %v", err)
	}
	if mutate != nil {
		mutate(w)
	}
	e := snapshot.NewEngine(logging.Discard())
	snap := e.CreateSnapshot()
	if err := e.Capture(snap, w); err != nil {
		t.Fatalf("Capture: %v", err)
	}
	e.LinkSnapshot(snap, 12, w.SRand0())
	path := filepath.Join(dir, name)
	if err := persistsnap.WriteSnapshot(path, "s", snap); err != nil {
		t.Fatalf("WriteSnapshot: %v", err)
	}
	return path
}

func TestRun_EqualSnapshots(t *testing.T) {
	dir := t.TempDir()
	a := writeSnap(t, dir, "a.snap.zst", nil)
	b := writeSnap(t, dir, "b.snap.zst", nil)
	var out bytes.Buffer
	equal, err := run(a, b, "", &out)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !equal {
		t.Fatalf("expected equal:\n%s", out.String())
	}
}

func TestRun_ReportsAddedSprite(t *testing.T) {
	dir := t.TempDir()
	a := writeSnap(t, dir, "a.snap.zst", nil)
	b := writeSnap(t, dir, "b.snap.zst", func(w *world.World) {
		if _, err := w.Entities().Spawn(entity.KindDuck); err != nil {
			t.Fatalf("spawn duck: %v", err)
		}
	})
	report := filepath.Join(dir, "report.txt")
	var out bytes.Buffer
	equal, err := run(a, b, report, &out)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if equal {
		t.Fatalf("expected a difference")
	}
	body, err := os.ReadFile(report)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	if !strings.Contains(string(body), "Sprite added (Duck)") {
		t.Fatalf("report:\n%s", body)
	}
}
