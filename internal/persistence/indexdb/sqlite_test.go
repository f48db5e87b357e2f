package indexdb

import (
	"database/sql"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"

	"parkstep.io/internal/logging"
	"parkstep.io/internal/sim/actions"
	"parkstep.io/internal/sim/desync"
	"parkstep.io/internal/sim/snapshot"
)

func TestSQLiteIndex_QueueDropStats(t *testing.T) {
	s := &SQLiteIndex{ch: make(chan req, 1)}
	s.ch <- req{kind: reqAction}

	s.AppendAction(actions.LogEntry{Tick: 2})
	s.RecordSnapshot("/tmp/2.snap.zst", &snapshot.Snapshot{Tick: 2})
	s.RecordDesync("/tmp/desync.txt", &desync.CompareResult{TickLeft: 2})

	st := s.Stats()
	if st.DropActionTotal != 1 || st.DropSnapshotTotal != 1 || st.DropDesyncTotal != 1 {
		t.Fatalf("drops mismatch: %+v", st)
	}
	if st.QueueDepth != 1 || st.QueueCapacity != 1 {
		t.Fatalf("queue stats mismatch: depth=%d cap=%d", st.QueueDepth, st.QueueCapacity)
	}
}

func TestSQLiteIndex_WritesRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	idx, err := OpenSQLite(path, "sess-1", logging.Discard())
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	idx.AppendAction(actions.LogEntry{
		Realm:  "sv",
		Tick:   7,
		Type:   actions.TypeSmallSceneryPlace,
		Name:   "SmallSceneryPlace",
		Params: "object=1",
		Status: actions.StatusOK,
		Line:   "[sv] Tick: 7, GA: SmallSceneryPlace (00000004) (object=1) OK",
	})
	idx.AppendAction(actions.LogEntry{Realm: "sv", Tick: 8, Type: actions.TypeWallPlace, Status: actions.StatusNoClearance})
	snap := &snapshot.Snapshot{Tick: 9, SRand0: 0xABCD, Entities: []byte{1, 2, 3}}
	idx.RecordSnapshot("/abs/9.snap.zst", snap)
	idx.RecordDesync("/abs/desync_1_9.txt", &desync.CompareResult{
		TickLeft: 9, TickRight: 9, SRand0Left: 1, SRand0Right: 2,
		Changes: []desync.SpriteChange{{Index: 3, Change: desync.ChangeModified}},
	})
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	defer db.Close()

	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM actions WHERE session_id = ?`, "sess-1").Scan(&n); err != nil {
		t.Fatalf("count actions: %v", err)
	}
	if n != 2 {
		t.Fatalf("actions=%d want 2", n)
	}
	var status int
	if err := db.QueryRow(`SELECT status FROM actions WHERE tick = 8`).Scan(&status); err != nil {
		t.Fatalf("scan action: %v", err)
	}
	if status != int(actions.StatusNoClearance) {
		t.Fatalf("status=%d", status)
	}

	var (
		snapPath string
		srand0   int64
		digest   string
	)
	if err := db.QueryRow(`SELECT path,srand0,digest FROM snapshots WHERE tick = 9`).Scan(&snapPath, &srand0, &digest); err != nil {
		t.Fatalf("scan snapshot: %v", err)
	}
	if snapPath != "/abs/9.snap.zst" || srand0 != 0xABCD || digest != snapshot.Digest(snap) {
		t.Fatalf("snapshot row mismatch: %q %X %q", snapPath, srand0, digest)
	}

	var (
		report  string
		changes int
	)
	if err := db.QueryRow(`SELECT report_path,changes FROM desyncs WHERE tick = 9`).Scan(&report, &changes); err != nil {
		t.Fatalf("scan desync: %v", err)
	}
	if report != "/abs/desync_1_9.txt" || changes != 1 {
		t.Fatalf("desync row mismatch: %q %d", report, changes)
	}

	var started string
	if err := db.QueryRow(`SELECT started_at FROM sessions WHERE id = ?`, "sess-1").Scan(&started); err != nil {
		t.Fatalf("scan session: %v", err)
	}
}
