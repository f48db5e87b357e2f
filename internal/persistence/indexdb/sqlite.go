package indexdb

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"parkstep.io/internal/logging"
	"parkstep.io/internal/sim/actions"
	"parkstep.io/internal/sim/desync"
	"parkstep.io/internal/sim/snapshot"
)

// SQLiteIndex is a queryable side index of a session. Writes are queued
// and applied by one goroutine; the logs on disk remain the source of truth.
type SQLiteIndex struct {
	db      *sql.DB
	session string
	log     *logrus.Entry

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropAction   atomic.Uint64
	dropSnapshot atomic.Uint64
	dropDesync   atomic.Uint64
}

type reqKind int

const (
	reqAction reqKind = iota + 1
	reqSnapshot
	reqDesync
)

type req struct {
	kind reqKind

	action   actionRow
	snapshot snapshotRow
	desync   desyncRow
}

type actionRow struct {
	Tick   uint32
	Realm  string
	Type   uint32
	Name   string
	Params string
	Status uint8
	Line   string
}

type snapshotRow struct {
	Tick     uint32
	Path     string
	SRand0   uint32
	Digest   string
	Entities int
}

type desyncRow struct {
	Tick        uint32
	Path        string
	SRand0Left  uint32
	SRand0Right uint32
	Changes     int
	RecordedAt  string
}

type Stats struct {
	QueueDepth        int
	QueueCapacity     int
	DropActionTotal   uint64
	DropSnapshotTotal uint64
	DropDesyncTotal   uint64
}

func OpenSQLite(path, sessionID string, log logrus.FieldLogger) (*SQLiteIndex, error) {
	if path == "" {
		return nil, eris.New("indexdb: empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, eris.Wrap(err, "indexdb: create dir")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "indexdb: open")
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		_ = db.Close()
		return nil, eris.Wrap(err, "indexdb: meta")
	}
	if sessionID != "" {
		if _, err := db.Exec(`INSERT OR REPLACE INTO sessions(id,started_at) VALUES(?,?)`,
			sessionID, time.Now().UTC().Format(time.RFC3339Nano)); err != nil {
			_ = db.Close()
			return nil, eris.Wrap(err, "indexdb: session row")
		}
	}

	s := &SQLiteIndex{
		db:      db,
		session: sessionID,
		log:     logging.Component(log, "indexdb"),
		ch:      make(chan req, 65536),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return eris.Wrapf(err, "indexdb: %s", p)
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			started_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS actions (
			session_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			tick INTEGER NOT NULL,
			realm TEXT NOT NULL,
			type INTEGER NOT NULL,
			name TEXT NOT NULL,
			params TEXT NOT NULL,
			status INTEGER NOT NULL,
			line TEXT NOT NULL,
			PRIMARY KEY (session_id, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_actions_tick ON actions(tick);`,
		`CREATE INDEX IF NOT EXISTS idx_actions_type_tick ON actions(type, tick);`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			session_id TEXT NOT NULL,
			tick INTEGER NOT NULL,
			path TEXT NOT NULL,
			srand0 INTEGER NOT NULL,
			digest TEXT NOT NULL,
			entity_bytes INTEGER NOT NULL,
			PRIMARY KEY (session_id, tick)
		);`,
		`CREATE TABLE IF NOT EXISTS desyncs (
			session_id TEXT NOT NULL,
			tick INTEGER NOT NULL,
			report_path TEXT NOT NULL,
			srand0_left INTEGER NOT NULL,
			srand0_right INTEGER NOT NULL,
			changes INTEGER NOT NULL,
			recorded_at TEXT NOT NULL,
			PRIMARY KEY (session_id, tick)
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return eris.Wrap(err, "indexdb: schema")
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// DB exposes the handle for read-only queries.
func (s *SQLiteIndex) DB() *sql.DB { return s.db }

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:        len(s.ch),
		QueueCapacity:     cap(s.ch),
		DropActionTotal:   s.dropAction.Load(),
		DropSnapshotTotal: s.dropSnapshot.Load(),
		DropDesyncTotal:   s.dropDesync.Load(),
	}
}

func (s *SQLiteIndex) enqueue(r req, drops *atomic.Uint64) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- r:
	default:
		drops.Add(1)
	}
}

// AppendAction indexes one action log line.
func (s *SQLiteIndex) AppendAction(e actions.LogEntry) {
	if s == nil {
		return
	}
	s.enqueue(req{kind: reqAction, action: actionRow{
		Tick:   e.Tick,
		Realm:  e.Realm,
		Type:   uint32(e.Type),
		Name:   e.Name,
		Params: e.Params,
		Status: uint8(e.Status),
		Line:   e.Line,
	}}, &s.dropAction)
}

func (s *SQLiteIndex) RecordSnapshot(path string, snap *snapshot.Snapshot) {
	if s == nil || snap == nil {
		return
	}
	s.enqueue(req{kind: reqSnapshot, snapshot: snapshotRow{
		Tick:     snap.Tick,
		Path:     path,
		SRand0:   snap.SRand0,
		Digest:   snapshot.Digest(snap),
		Entities: len(snap.Entities),
	}}, &s.dropSnapshot)
}

func (s *SQLiteIndex) RecordDesync(path string, res *desync.CompareResult) {
	if s == nil || res == nil {
		return
	}
	s.enqueue(req{kind: reqDesync, desync: desyncRow{
		Tick:        res.TickLeft,
		Path:        path,
		SRand0Left:  res.SRand0Left,
		SRand0Right: res.SRand0Right,
		Changes:     len(res.Changes),
		RecordedAt:  time.Now().UTC().Format(time.RFC3339Nano),
	}}, &s.dropDesync)
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertAction, _ := s.db.Prepare(`INSERT OR REPLACE INTO actions(session_id,seq,tick,realm,type,name,params,status,line) VALUES(?,?,?,?,?,?,?,?,?)`)
	insertSnapshot, _ := s.db.Prepare(`INSERT OR REPLACE INTO snapshots(session_id,tick,path,srand0,digest,entity_bytes) VALUES(?,?,?,?,?,?)`)
	insertDesync, _ := s.db.Prepare(`INSERT OR REPLACE INTO desyncs(session_id,tick,report_path,srand0_left,srand0_right,changes,recorded_at) VALUES(?,?,?,?,?,?,?)`)
	defer func() {
		for _, st := range []*sql.Stmt{insertAction, insertSnapshot, insertDesync} {
			if st != nil {
				_ = st.Close()
			}
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 2000
		commitMaxWait = 2 * time.Second

		actionSeq int64
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			s.log.WithError(err).Warn("begin tx")
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		if err := tx.Commit(); err != nil {
			s.log.WithError(err).Warn("commit")
		}
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func(err error) {
		s.log.WithError(err).Warn("insert failed, rolling back batch")
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	exec := func(st *sql.Stmt, args ...any) {
		if st == nil || tx == nil {
			return
		}
		if _, err := tx.Stmt(st).Exec(args...); err != nil {
			rollback(err)
			return
		}
		opCount++
	}

	for r := range s.ch {
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqAction:
			a := r.action
			exec(insertAction, s.session, actionSeq, int64(a.Tick), a.Realm, int64(a.Type), a.Name, a.Params, int64(a.Status), a.Line)
			actionSeq++
		case reqSnapshot:
			sn := r.snapshot
			exec(insertSnapshot, s.session, int64(sn.Tick), sn.Path, int64(sn.SRand0), sn.Digest, sn.Entities)
		case reqDesync:
			d := r.desync
			exec(insertDesync, s.session, int64(d.Tick), d.Path, int64(d.SRand0Left), int64(d.SRand0Right), d.Changes, d.RecordedAt)
		}
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}

	commit()
}
