package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"parkstep.io/internal/logging"
	"parkstep.io/internal/network"
	"parkstep.io/internal/persistence/indexdb"
	"parkstep.io/internal/persistence/mirror"
	persistsnap "parkstep.io/internal/persistence/snapshot"
	"parkstep.io/internal/protocol"
	"parkstep.io/internal/sim/actions"
	"parkstep.io/internal/sim/game"
	simsnap "parkstep.io/internal/sim/snapshot"
	"parkstep.io/internal/sim/world"
)

// runStats counts actions as they execute. It is written from the game
// loop and read by HTTP handlers.
type runStats struct {
	executed atomic.Uint64
	spent    atomic.Int64
}

func (s *runStats) afterExecute(_ actions.Action, r *actions.Result) {
	s.executed.Add(1)
	if r.Cost != world.MoneyNull {
		s.spent.Add(r.Cost)
	}
}

type playerState struct {
	ID          int32  `json:"id"`
	Name        string `json:"name"`
	CommandsRan uint32 `json:"commands_ran"`
	MoneySpent  int64  `json:"money_spent"`
	LastAction  string `json:"last_action,omitempty"`
}

type loopState struct {
	Tick       uint32        `json:"tick"`
	SRand0     string        `json:"srand0"`
	Cash       int64         `json:"cash"`
	Entities   int           `json:"entities"`
	QueueLen   int           `json:"queue_len"`
	Mode       string        `json:"mode"`
	Status     string        `json:"status,omitempty"`
	ServerTick uint32        `json:"server_tick,omitempty"`
	LastReport string        `json:"last_report,omitempty"`
	Players    []playerState `json:"players,omitempty"`
}

func readState(ctx context.Context, g *game.Context, sess *network.Session) (loopState, error) {
	var st loopState
	err := g.Call(ctx, func(g *game.Context) {
		w := g.World
		st.Tick = w.Tick()
		st.SRand0 = fmt.Sprintf("%08X", w.SRand0())
		st.Cash = w.Cash()
		st.Entities = w.Entities().Count()
		st.QueueLen = g.Dispatcher.QueueLen()
		st.Mode = protocol.ModeNone.String()
		if sess == nil {
			return
		}
		st.Mode = sess.Mode().String()
		st.Status = sess.Status().String()
		st.ServerTick = sess.ServerTick()
		st.LastReport = sess.LastReport()
		for _, p := range sess.Players() {
			ps := playerState{ID: int32(p.ID), Name: p.Name, CommandsRan: p.CommandsRan, MoneySpent: p.MoneySpent}
			if p.LastAction != actions.TypeCount {
				ps.LastAction = p.LastAction.String()
			}
			st.Players = append(st.Players, ps)
		}
	})
	return st, err
}

type snapshotRecorder interface {
	RecordSnapshot(path string, snap *simsnap.Snapshot)
}

// snapshotWriter captures on the loop goroutine and writes off it.
type snapshotWriter struct {
	g         *game.Context
	dir       string
	sessionID string
	recorders []snapshotRecorder
	log       *logrus.Entry
}

func newSnapshotWriter(g *game.Context, dir, sessionID string, log logrus.FieldLogger, recorders ...snapshotRecorder) *snapshotWriter {
	return &snapshotWriter{g: g, dir: dir, sessionID: sessionID, recorders: recorders, log: logging.Component(log, "snapshots")}
}

func (s *snapshotWriter) write(ctx context.Context) (string, uint32, error) {
	var snap simsnap.Snapshot
	var capErr error
	err := s.g.Call(ctx, func(g *game.Context) {
		capErr = g.Snapshots.Capture(&snap, g.World)
		g.Snapshots.LinkSnapshot(&snap, g.World.Tick(), g.World.SRand0())
	})
	if err != nil {
		return "", 0, err
	}
	if capErr != nil {
		return "", 0, capErr
	}
	path := persistsnap.FileName(s.dir, snap.Tick)
	if err := persistsnap.WriteSnapshot(path, s.sessionID, &snap); err != nil {
		return "", snap.Tick, err
	}
	for _, r := range s.recorders {
		r.RecordSnapshot(path, &snap)
	}
	return path, snap.Tick, nil
}

func (s *snapshotWriter) every(ctx context.Context, d time.Duration) {
	t := time.NewTicker(d)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			path, tick, err := s.write(ctx)
			if err != nil {
				if ctx.Err() == nil && err != game.ErrStopped {
					s.log.WithError(err).Error("snapshot write")
				}
				continue
			}
			s.log.WithFields(logrus.Fields{"tick": tick, "path": path}).Debug("snapshot written")
		}
	}
}

func newMux(g *game.Context, sess *network.Session, idx *indexdb.SQLiteIndex, mir *mirror.Mirror, stats *runStats, snaps *snapshotWriter) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		st, err := readState(ctx, g, sess)
		if err != nil {
			http.Error(rw, err.Error(), http.StatusServiceUnavailable)
			return
		}
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")

		// Minimal Prometheus exposition format.
		fmt.Fprintf(rw, "# HELP parkstep_tick Current simulation tick.\n")
		fmt.Fprintf(rw, "# TYPE parkstep_tick gauge\n")
		fmt.Fprintf(rw, "parkstep_tick %d\n", st.Tick)

		fmt.Fprintf(rw, "# HELP parkstep_queue_len Queued game actions.\n")
		fmt.Fprintf(rw, "# TYPE parkstep_queue_len gauge\n")
		fmt.Fprintf(rw, "parkstep_queue_len %d\n", st.QueueLen)

		fmt.Fprintf(rw, "# HELP parkstep_players Players in the session.\n")
		fmt.Fprintf(rw, "# TYPE parkstep_players gauge\n")
		fmt.Fprintf(rw, "parkstep_players %d\n", len(st.Players))

		fmt.Fprintf(rw, "# HELP parkstep_entities Populated entity slots.\n")
		fmt.Fprintf(rw, "# TYPE parkstep_entities gauge\n")
		fmt.Fprintf(rw, "parkstep_entities %d\n", st.Entities)

		fmt.Fprintf(rw, "# HELP parkstep_actions_executed_total Actions executed successfully.\n")
		fmt.Fprintf(rw, "# TYPE parkstep_actions_executed_total counter\n")
		fmt.Fprintf(rw, "parkstep_actions_executed_total %d\n", stats.executed.Load())

		fmt.Fprintf(rw, "# HELP parkstep_money_spent_total Money spent by executed actions.\n")
		fmt.Fprintf(rw, "# TYPE parkstep_money_spent_total counter\n")
		fmt.Fprintf(rw, "parkstep_money_spent_total %d\n", stats.spent.Load())

		if idx != nil {
			is := idx.Stats()
			fmt.Fprintf(rw, "# HELP parkstep_index_queue_depth Pending index writes.\n")
			fmt.Fprintf(rw, "# TYPE parkstep_index_queue_depth gauge\n")
			fmt.Fprintf(rw, "parkstep_index_queue_depth %d\n", is.QueueDepth)
			fmt.Fprintf(rw, "# HELP parkstep_index_drops_total Index writes dropped on a full queue.\n")
			fmt.Fprintf(rw, "# TYPE parkstep_index_drops_total counter\n")
			fmt.Fprintf(rw, "parkstep_index_drops_total{kind=%q} %d\n", "action", is.DropActionTotal)
			fmt.Fprintf(rw, "parkstep_index_drops_total{kind=%q} %d\n", "snapshot", is.DropSnapshotTotal)
			fmt.Fprintf(rw, "parkstep_index_drops_total{kind=%q} %d\n", "desync", is.DropDesyncTotal)
		}
		if mir != nil {
			ms := mir.Stats()
			fmt.Fprintf(rw, "# HELP parkstep_mirror_uploads_total Object uploads by result.\n")
			fmt.Fprintf(rw, "# TYPE parkstep_mirror_uploads_total counter\n")
			fmt.Fprintf(rw, "parkstep_mirror_uploads_total{result=%q} %d\n", "ok", ms.UploadSuccessTotal)
			fmt.Fprintf(rw, "parkstep_mirror_uploads_total{result=%q} %d\n", "fail", ms.UploadFailTotal)
			fmt.Fprintf(rw, "parkstep_mirror_uploads_total{result=%q} %d\n", "dropped", ms.DroppedTotal)
			fmt.Fprintf(rw, "# HELP parkstep_mirror_queue_depth Pending uploads.\n")
			fmt.Fprintf(rw, "# TYPE parkstep_mirror_queue_depth gauge\n")
			fmt.Fprintf(rw, "parkstep_mirror_queue_depth %d\n", ms.QueueDepth)
		}
	})

	// Local-only admin endpoints.
	mux.HandleFunc("/admin/v1/state", func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		st, err := readState(ctx, g, sess)
		if err != nil {
			http.Error(rw, err.Error(), http.StatusServiceUnavailable)
			return
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(st)
	})
	mux.HandleFunc("/admin/v1/snapshot", func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		path, tick, err := snaps.write(ctx)
		rw.Header().Set("Content-Type", "application/json")
		if err != nil {
			rw.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(rw).Encode(map[string]any{"ok": false, "tick": tick, "error": err.Error()})
			return
		}
		_ = json.NewEncoder(rw).Encode(map[string]any{"ok": true, "tick": tick, "path": path})
	})
	return mux
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
