package actions

import (
	"container/heap"

	"github.com/sirupsen/logrus"

	"parkstep.io/internal/guard"
	"parkstep.io/internal/logging"
	"parkstep.io/internal/protocol"
	"parkstep.io/internal/sim/world"
)

type Options struct {
	Session Session
	Replay  ReplayManager
	Hooks   Hooks
	Errors  ErrorSink
	Journal Journal
	Guard   *guard.Guard
	Log     logrus.FieldLogger
}

// Dispatcher owns the action queue and runs the query/execute pipeline
// against one world. It is not safe for concurrent use; the tick loop
// drives it.
type Dispatcher struct {
	world   *world.World
	session Session
	replay  ReplayManager
	hooks   Hooks
	errors  ErrorSink
	journal Journal
	guard   *guard.Guard
	log     *logrus.Entry

	queue     actionQueue
	nextSeq   uint64
	suspended bool
}

func NewDispatcher(w *world.World, opts Options) *Dispatcher {
	log := logging.Component(opts.Log, "actions")
	g := opts.Guard
	if g == nil {
		g = &guard.Guard{Log: log}
	}
	return &Dispatcher{
		world:   w,
		session: opts.Session,
		replay:  opts.Replay,
		hooks:   opts.Hooks,
		errors:  opts.Errors,
		journal: opts.Journal,
		guard:   g,
		log:     log,
	}
}

func (d *Dispatcher) World() *world.World { return d.world }

// SetSession attaches the network session once it exists.
func (d *Dispatcher) SetSession(s Session) { d.session = s }

// SetReplay attaches or detaches the replay manager.
func (d *Dispatcher) SetReplay(r ReplayManager) { d.replay = r }

func (d *Dispatcher) mode() protocol.Mode {
	if d.session == nil {
		return protocol.ModeNone
	}
	return d.session.Mode()
}

// Enqueue stores a clone of a to run at tick. Unassigned actions issued
// by a networked session are stamped with the local player first.
func (d *Dispatcher) Enqueue(a Action, tick uint32) error {
	b := a.ActionBase()
	if b.Player == PlayerUnassigned && d.mode() != protocol.ModeNone {
		b.Player = d.session.LocalPlayer()
	}
	c, err := Clone(a)
	if err != nil {
		d.log.WithError(err).WithField("type", a.Type().String()).Error("enqueue: clone failed")
		return err
	}
	heap.Push(&d.queue, queued{tick: tick, seq: d.nextSeq, action: c})
	d.nextSeq++
	return nil
}

// ProcessQueue runs every entry due at tick in (tick, seq) order. A client
// stops at the first entry scheduled for a later tick.
func (d *Dispatcher) ProcessQueue(tick uint32) {
	if d.suspended {
		return
	}
	for d.queue.Len() > 0 {
		next := d.queue[0]
		if d.mode() == protocol.ModeClient {
			if next.tick > tick {
				return
			}
			d.guard.Assert(next.tick == tick,
				"discrepancy in game actions processing: queued tick %d, current tick %d", next.tick, tick)
		}
		heap.Pop(&d.queue)

		a := next.action
		if kind, ok := ghostKinds[a.Type()]; ok {
			d.world.RemoveGhosts(kind)
		}
		a.ActionBase().Flags |= FlagNetworked

		r := d.Execute(a)
		if r.IsOK() && d.mode() == protocol.ModeServer {
			d.session.SendGameAction(a)
		}
	}
}

func (d *Dispatcher) SuspendQueue()   { d.suspended = true }
func (d *Dispatcher) ResumeQueue()    { d.suspended = false }
func (d *Dispatcher) Suspended() bool { return d.suspended }

func (d *Dispatcher) ClearQueue() {
	d.queue = nil
}

func (d *Dispatcher) QueueLen() int { return d.queue.Len() }
