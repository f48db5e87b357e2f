package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	"parkstep.io/internal/config"
	"parkstep.io/internal/logging"
	persistsnap "parkstep.io/internal/persistence/snapshot"
	"parkstep.io/internal/sim/game"
	"parkstep.io/internal/sim/replay"
	"parkstep.io/internal/sim/snapshot"
	"parkstep.io/internal/sim/world"
)

func main() {
	var (
		inPath     = flag.String("in", "", "replay file to play back")
		normalise  = flag.String("normalise", "", "write the normalised replay to this path")
		configPath = flag.String("config", "", "config file for world capacity (optional)")
		maxTicks   = flag.Uint("max_ticks", 1<<20, "give up after this many ticks")
		snapOut    = flag.String("snapshot", "", "write the final state as a .snap.zst (optional)")
	)
	flag.Parse()

	if *inPath == "" {
		fmt.Fprintln(os.Stderr, "missing -in")
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(2)
	}
	log := logging.New(cfg.LogOptions())

	res, err := play(*inPath, *normalise, cfg.WorldConfig(), uint32(*maxTicks), log)
	if err != nil {
		fmt.Fprintln(os.Stderr, "replay:", err)
		os.Exit(1)
	}

	if *snapOut != "" {
		if err := persistsnap.WriteSnapshot(*snapOut, cfg.SessionID, res.snap); err != nil {
			fmt.Fprintln(os.Stderr, "write snapshot:", err)
			os.Exit(1)
		}
	}
	fmt.Printf("replay ok: start_tick=%d end_tick=%d srand0=%08X digest=%s\n",
		res.startTick, res.endTick, res.srand0, snapshot.Digest(res.snap))
}

type result struct {
	startTick uint32
	endTick   uint32
	srand0    uint32
	snap      *snapshot.Snapshot
	world     *world.World
}

// play runs the replay to its last command and captures the final state.
func play(in, normaliseOut string, wc world.Config, maxTicks uint32, log logrus.FieldLogger) (*result, error) {
	w, err := world.New(wc)
	if err != nil {
		return nil, err
	}
	rm := replay.NewManager(log)
	if normaliseOut != "" {
		err = rm.StartNormalisation(in, normaliseOut, w)
	} else {
		err = rm.StartPlayback(in, w)
	}
	if err != nil {
		return nil, err
	}

	g := game.New(w, game.Options{Replay: rm, Log: log})
	res := &result{startTick: w.Tick()}
	for i := uint32(0); rm.Mode() != replay.ModeNone; i++ {
		if i >= maxTicks {
			return nil, eris.Errorf("replay did not finish within %d ticks", maxTicks)
		}
		if _, err := g.UpdateLogic(); err != nil {
			return nil, err
		}
	}

	snap := g.Snapshots.CreateSnapshot()
	if err := g.Snapshots.Capture(snap, w); err != nil {
		return nil, err
	}
	g.Snapshots.LinkSnapshot(snap, w.Tick(), w.SRand0())
	res.endTick = w.Tick()
	res.srand0 = w.SRand0()
	res.snap = snap
	res.world = w
	return res, nil
}
