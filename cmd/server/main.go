package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"parkstep.io/internal/config"
	"parkstep.io/internal/guard"
	"parkstep.io/internal/logging"
	"parkstep.io/internal/network"
	"parkstep.io/internal/persistence/indexdb"
	"parkstep.io/internal/protocol"
	"parkstep.io/internal/sim/actions"
	"parkstep.io/internal/sim/game"
	"parkstep.io/internal/sim/replay"
	"parkstep.io/internal/sim/world"
	"parkstep.io/internal/transport/ws"
)

func main() {
	var (
		configPath  = flag.String("config", "", "path to parkstep.yaml (defaults when empty)")
		mode        = flag.String("mode", "", "none, server or client (overrides config)")
		listen      = flag.String("listen", "", "server listen address (overrides config)")
		connect     = flag.String("connect", "", "server websocket url, e.g. ws://127.0.0.1:11753/v1/ws")
		name        = flag.String("name", "", "player name")
		dataDir     = flag.String("data", "", "runtime data directory")
		desyncDebug = flag.Bool("desync_debugging", false, "keep per-tick snapshots and fetch the server state on desync")
		stay        = flag.Bool("stay_connected", false, "keep playing after a desync")
		record      = flag.String("record", "", "record a replay to this path")
		playback    = flag.String("playback", "", "play back this replay file")
		snapEvery   = flag.Duration("snapshot_every", 0, "write a snapshot this often (0 disables)")
		disableDB   = flag.Bool("disable_db", false, "disable the sqlite index")
		printSchema = flag.Bool("print_schema", false, "print the config JSON schema and exit")
	)
	flag.Parse()

	if *printSchema {
		b, err := config.SchemaJSON()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Println(string(b))
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(2)
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "mode":
			cfg.Mode = *mode
		case "listen":
			cfg.Listen = *listen
		case "connect":
			cfg.ServerURL = *connect
			if *mode == "" {
				cfg.Mode = "client"
			}
		case "name":
			cfg.PlayerName = *name
		case "data":
			cfg.DataDir = *dataDir
		case "desync_debugging":
			cfg.DesyncDebugging = *desyncDebug
		case "stay_connected":
			cfg.StayConnected = *stay
		case "record":
			cfg.Replay.Record = *record
		case "playback":
			cfg.Replay.Playback = *playback
		}
	})
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(2)
	}

	root := logging.New(cfg.LogOptions())
	logger := root.WithField("session", cfg.SessionID)

	if err := run(cfg, *snapEvery, *disableDB, logger); err != nil {
		logger.WithError(err).Fatal("server stopped")
	}
}

type runtimeDirs struct {
	actions   string
	snapshots string
	reports   string
	logs      string
	index     string
}

func dirsFor(dataDir string) runtimeDirs {
	return runtimeDirs{
		actions:   dataDir,
		snapshots: filepath.Join(dataDir, "snapshots"),
		reports:   filepath.Join(dataDir, "desync"),
		logs:      filepath.Join(dataDir, "logs"),
		index:     filepath.Join(dataDir, "index.sqlite"),
	}
}

func run(cfg config.Config, snapEvery time.Duration, disableDB bool, logger *logrus.Entry) error {
	dirs := dirsFor(cfg.DataDir)
	for _, d := range []string{dirs.snapshots, dirs.reports, dirs.logs} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return err
		}
	}
	netMode := cfg.NetMode()

	w, err := world.New(cfg.WorldConfig())
	if err != nil {
		return err
	}

	// Optional read-model index; it never feeds back into the simulation.
	var idx *indexdb.SQLiteIndex
	if !disableDB {
		idx, err = indexdb.OpenSQLite(dirs.index, cfg.SessionID, logger)
		if err != nil {
			return err
		}
		defer idx.Close()
	}

	mir, err := buildMirror(cfg, logger)
	if err != nil {
		return err
	}
	if mir != nil {
		defer mir.Close()
	}
	var snapRecorders []snapshotRecorder
	var desyncs desyncRecorders
	if idx != nil {
		snapRecorders = append(snapRecorders, idx)
		desyncs = append(desyncs, idx)
	}
	if mir != nil {
		snapRecorders = append(snapRecorders, mir)
		desyncs = append(desyncs, mir)
	}

	logs, err := openActionLogs(dirs, cfg.SessionID, idx, logger, time.Now())
	if err != nil {
		return err
	}
	defer func() {
		_ = logs.Close()
		mir.Enqueue(logs.path)
	}()

	rm := replay.NewManager(logger)
	switch {
	case cfg.Replay.Playback != "":
		if err := rm.StartPlayback(cfg.Replay.Playback, w); err != nil {
			return err
		}
	case cfg.Replay.Record != "":
		if err := rm.StartRecording(w); err != nil {
			return err
		}
	}

	stats := &runStats{}
	hooks := actions.NewHookRegistry()
	hooks.OnAfter(stats.afterExecute)

	g := guardFor(logger)
	sink := logSink{log: logger}
	ctxGame := game.New(w, game.Options{
		TickRateHz:      cfg.TickRateHz,
		DesyncDebugging: cfg.DesyncDebugging,
		Replay:          rm,
		Hooks:           hooks,
		Errors:          sink,
		Journal:         logs.all,
		Guard:           g,
		Log:             logger,
	})

	var sess *network.Session
	if netMode != protocol.ModeNone {
		opts := network.Options{
			Mode:             netMode,
			PlayerName:       cfg.PlayerName,
			MaxPlayers:       cfg.MaxPlayers,
			ChecksumInterval: uint32(cfg.ChecksumInterval),
			StayConnected:    cfg.StayConnected,
			DesyncDebugging:  cfg.DesyncDebugging,
			ReportDir:        dirs.reports,
			Errors:           sink,
			Guard:            g,
			Log:              logger,
		}
		if len(desyncs) > 0 {
			opts.Desyncs = desyncs
		}
		opts.ServerLog = logs.serverLog
		sess = network.NewSession(w, ctxGame.Dispatcher, ctxGame.Snapshots, opts)
		ctxGame.AttachNetwork(sess)
	}
	defer ctxGame.Close()

	ctx, cancel := signalContext()
	defer cancel()

	if netMode == protocol.ModeClient {
		dialCtx, cancelDial := context.WithTimeout(ctx, 10*time.Second)
		conn, err := ws.Dial(dialCtx, cfg.ServerURL, sess, logger)
		cancelDial()
		if err != nil {
			return err
		}
		sess.Connect(conn)
	}

	snaps := newSnapshotWriter(ctxGame, dirs.snapshots, cfg.SessionID, logger, snapRecorders...)
	if snapEvery > 0 {
		go snaps.every(ctx, snapEvery)
	}

	mux := newMux(ctxGame, sess, idx, mir, stats, snaps)
	if netMode == protocol.ModeServer {
		mux.HandleFunc("/v1/ws", ws.NewServer(sess, logger).Handler())
	}
	var srv *http.Server
	if netMode == protocol.ModeServer {
		srv = &http.Server{
			Addr:              cfg.Listen,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.WithField("addr", cfg.Listen).Info("listening")
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.WithError(err).Error("http server")
				cancel()
			}
		}()
	}

	logger.WithFields(logrus.Fields{"mode": netMode.String(), "tick_rate_hz": cfg.TickRateHz}).Info("game loop started")
	runErr := ctxGame.Run(ctx)
	if runErr == context.Canceled {
		runErr = nil
	}

	if srv != nil {
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
		_ = srv.Shutdown(shutdownCtx)
		cancelShutdown()
	}
	if rm.IsRecording() {
		if err := rm.StopRecording(cfg.Replay.Record); err != nil {
			logger.WithError(err).Error("stop recording")
		} else {
			logger.WithField("path", cfg.Replay.Record).Info("replay written")
		}
	}
	logger.WithFields(logrus.Fields{"tick": w.Tick(), "srand0": fmt.Sprintf("%08X", w.SRand0())}).Info("game loop stopped")
	return runErr
}

func guardFor(log logrus.FieldLogger) *guard.Guard {
	return &guard.Guard{Strict: os.Getenv("PARKSTEP_STRICT") == "1", Log: log}
}

// logSink routes gameplay errors shown to the local player into the log.
type logSink struct{ log logrus.FieldLogger }

func (s logSink) ShowError(title, message string) {
	s.log.WithField("title", title).Warn(message)
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}
