package actions

import (
	"fmt"

	"parkstep.io/internal/protocol"
	"parkstep.io/internal/sim/world"
)

func (d *Dispatcher) env() *Env { return &Env{World: d.world, Nested: d} }

// Query checks a as a top-level action.
func (d *Dispatcher) Query(a Action) *Result { return d.query(a, true) }

// QueryNested checks a on behalf of another action's execution.
func (d *Dispatcher) QueryNested(a Action) *Result { return d.query(a, false) }

// Execute runs the full top-level pipeline for a.
func (d *Dispatcher) Execute(a Action) *Result { return d.execute(a, true) }

// ExecuteNested runs a without network, finance, replay or error display
// side effects.
func (d *Dispatcher) ExecuteNested(a Action) *Result { return d.execute(a, false) }

func (d *Dispatcher) allowedInPausedMode(a Action) bool {
	if !d.world.Paused() || d.world.Cheats().BuildInPauseMode {
		return true
	}
	return a.ActionFlags()&AllowWhilePaused != 0 || a.ActionBase().Flags&FlagAllowDuringPaused != 0
}

func (d *Dispatcher) moneyRequired(flags Flags) bool {
	if d.world.NoMoney() {
		return false
	}
	return flags&(FlagNoSpend|FlagGhost) == 0
}

func (d *Dispatcher) affordable(cost world.Money, flags Flags) bool {
	if cost <= 0 || cost == world.MoneyNull || !d.moneyRequired(flags) {
		return true
	}
	return cost <= d.world.Cash()
}

func (d *Dispatcher) query(a Action, topLevel bool) *Result {
	if topLevel && !d.allowedInPausedMode(a) {
		return Failure(StatusGamePaused, StringCantDoThis, StringConstructionNotPossibleWhilePaused)
	}
	r := a.Query(d.env())
	if r.IsOK() && !d.affordable(r.Cost, a.ActionBase().Flags) {
		r.Status = StatusInsufficientFunds
		r.Title = StringCantDoThis
		r.Message = StringNotEnoughCashRequires
		r.Args = []any{world.FormatMoney(r.Cost)}
	}
	return r
}

func (d *Dispatcher) replayBlocks(a Action) bool {
	if d.replay == nil || (!d.replay.IsPlayingBack() && !d.replay.IsNormalising()) {
		return false
	}
	return a.ActionBase().Flags&FlagReplay == 0 && a.ActionFlags()&IgnoreForReplays == 0
}

func (d *Dispatcher) execute(a Action, topLevel bool) *Result {
	if d.replayBlocks(a) {
		return Failure(StatusDisallowed, StringCantDoThis, StringActionNotAllowedDuringReplay)
	}

	b := a.ActionBase()
	af := a.ActionFlags()
	mode := d.mode()

	r := d.query(a, topLevel)
	if d.hooks != nil && r.IsOK() {
		d.hooks.BeforeExecute(a, r)
	}

	if r.IsOK() {
		if topLevel {
			if mode == protocol.ModeClient && b.Flags&FlagNetworked == 0 && af&ClientOnly == 0 {
				d.session.SendGameAction(a)
				return r
			}
			if (mode == protocol.ModeServer || !d.world.InUpdate()) && b.Flags&FlagNetworked == 0 && af&ClientOnly == 0 {
				if err := d.Enqueue(a, d.world.Tick()); err != nil {
					return Failure(StatusUnknown, StringCantDoThis, StringNone)
				}
				return r
			}
		}

		logged := topLevel && b.Flags&FlagGhost == 0
		var prefix string
		if logged {
			prefix = d.logBegin(a, mode)
		}
		r = a.Execute(d.env())
		if logged {
			d.logFinish(a, mode, prefix, r)
		}

		if d.hooks != nil && r.IsOK() {
			d.hooks.AfterExecute(a, r)
		}

		if topLevel && r.IsOK() {
			d.settle(a, r)
			if af&ClientOnly == 0 {
				d.track(a, mode, r)
			}
		}
	}

	if b.Callback != nil {
		b.Callback(a, r)
	}
	d.surfaceError(a, topLevel, mode, r)
	return r
}

func (d *Dispatcher) settle(a Action, r *Result) {
	if !d.moneyRequired(a.ActionBase().Flags) || r.Cost == 0 || r.Cost == world.MoneyNull {
		return
	}
	d.world.Payment(r.Cost, r.Expenditure)
	if !r.Position.IsNull() {
		d.world.SpawnMoneyEffect(r.Cost, r.Position)
	}
}

func (d *Dispatcher) track(a Action, mode protocol.Mode, r *Result) {
	b := a.ActionBase()
	if mode != protocol.ModeNone {
		idx := d.session.PlayerIndex(b.Player)
		if !d.guard.Assert(idx != -1, "invalid player id %d for %s", b.Player, a.Type()) {
			return
		}
		d.session.RecordPlayerAction(idx, a.Type(), r.Cost, r.Position)
		return
	}
	if d.replay == nil || a.ActionFlags()&IgnoreForReplays != 0 {
		return
	}
	record := false
	if d.replay.IsRecording() && b.Flags&(FlagGhost|FlagNoSpend) == 0 {
		record = true
	} else if d.replay.IsNormalising() && b.Flags&FlagReplay != 0 {
		record = true
	}
	if record {
		d.replay.AddGameAction(d.world.Tick(), a)
	}
}

func (d *Dispatcher) surfaceError(a Action, topLevel bool, mode protocol.Mode, r *Result) {
	if r.IsOK() || d.errors == nil {
		return
	}
	b := a.ActionBase()
	show := topLevel && b.Flags&(FlagGhost|FlagNoSpend) == 0
	// Only networked actions can belong to another player; local ones are
	// not stamped until they are queued.
	if mode != protocol.ModeNone && b.Flags&FlagNetworked != 0 && b.Player != d.session.LocalPlayer() {
		show = false
	}
	if show {
		d.errors.ShowError(r.ErrorTitleText(), r.ErrorMessageText())
	}
}

func (d *Dispatcher) logBegin(a Action, mode protocol.Mode) string {
	return fmt.Sprintf("[%s] Tick: %d, GA: %s (%08X) (%s) ",
		mode.Realm(), d.world.Tick(), Name(a), uint32(a.Type()), LogParams(a))
}

func (d *Dispatcher) logFinish(a Action, mode protocol.Mode, prefix string, r *Result) {
	line := prefix
	if r.IsOK() {
		line += "OK"
	} else {
		line += fmt.Sprintf("Failed, %d", uint8(r.Status))
	}
	d.log.WithField("tick", d.world.Tick()).Debug(line)
	if d.journal != nil {
		d.journal.AppendAction(LogEntry{
			Realm:  mode.Realm(),
			Tick:   d.world.Tick(),
			Type:   a.Type(),
			Name:   Name(a),
			Params: LogParams(a),
			Status: r.Status,
			Line:   line,
		})
	}
}
