package actions

import (
	"parkstep.io/internal/sim/entity"
	"parkstep.io/internal/sim/serial"
	"parkstep.io/internal/sim/world"
)

// MaxEntranceFee is $200.00 in tenths.
const MaxEntranceFee world.Money = 2000

type PauseToggle struct {
	Base
}

func NewPauseToggle() *PauseToggle { return &PauseToggle{Base: newBase()} }

func (a *PauseToggle) Type() Type               { return TypePauseToggle }
func (a *PauseToggle) ActionFlags() ActionFlags { return AllowWhilePaused }

func (a *PauseToggle) Serialise(s *serial.Serialiser) { a.Base.Serialise(s) }

func (a *PauseToggle) Query(env *Env) *Result { return NewResult() }

func (a *PauseToggle) Execute(env *Env) *Result {
	env.World.SetPaused(!env.World.Paused())
	return NewResult()
}

type QuitMode uint8

const (
	QuitSavePrompt QuitMode = iota
	QuitCloseSavePrompt
	QuitOpenSavePrompt
)

// LoadOrQuit asks the local game to leave the session. It never crosses
// the network.
type LoadOrQuit struct {
	Base
	Mode QuitMode
}

func NewLoadOrQuit(mode QuitMode) *LoadOrQuit { return &LoadOrQuit{Base: newBase(), Mode: mode} }

func (a *LoadOrQuit) Type() Type               { return TypeLoadOrQuit }
func (a *LoadOrQuit) ActionFlags() ActionFlags { return ClientOnly | AllowWhilePaused }

func (a *LoadOrQuit) Serialise(s *serial.Serialiser) {
	a.Base.Serialise(s)
	m := uint8(a.Mode)
	s.U8("mode", &m)
	a.Mode = QuitMode(m)
}

func (a *LoadOrQuit) Query(env *Env) *Result {
	if a.Mode > QuitOpenSavePrompt {
		return Failure(StatusInvalidParameters, StringCantDoThis, StringInvalidValue)
	}
	return NewResult()
}

func (a *LoadOrQuit) Execute(env *Env) *Result {
	env.World.RequestQuit(uint8(a.Mode))
	return NewResult()
}

type Cheat uint8

const (
	CheatBuildInPauseMode Cheat = iota
	CheatSandboxMode
	CheatAddMoney
	CheatSetMoney
	CheatPopAllBalloons
	cheatCount
)

type CheatSet struct {
	Base
	Cheat Cheat
	Param int64
}

func NewCheatSet(cheat Cheat, param int64) *CheatSet {
	return &CheatSet{Base: newBase(), Cheat: cheat, Param: param}
}

func (a *CheatSet) Type() Type               { return TypeCheatSet }
func (a *CheatSet) ActionFlags() ActionFlags { return AllowWhilePaused }

func (a *CheatSet) Serialise(s *serial.Serialiser) {
	a.Base.Serialise(s)
	c := uint8(a.Cheat)
	s.U8("cheat", &c)
	a.Cheat = Cheat(c)
	s.I64("param", &a.Param)
}

func (a *CheatSet) Query(env *Env) *Result {
	if a.Cheat >= cheatCount {
		return Failure(StatusInvalidParameters, StringCantDoThis, StringInvalidValue)
	}
	return NewResult()
}

func (a *CheatSet) Execute(env *Env) *Result {
	w := env.World
	switch a.Cheat {
	case CheatBuildInPauseMode:
		w.Cheats().BuildInPauseMode = a.Param != 0
	case CheatSandboxMode:
		w.Cheats().SandboxMode = a.Param != 0
	case CheatAddMoney:
		w.SetCash(w.Cash() + a.Param)
	case CheatSetMoney:
		w.SetCash(a.Param)
	case CheatPopAllBalloons:
		w.Entities().Each(func(i int, e entity.Entity) {
			if b, ok := e.(*entity.Balloon); ok {
				b.PopTimer = 1
			}
		})
	}
	return NewResult()
}

type ParkSetEntranceFee struct {
	Base
	Fee world.Money
}

func NewParkSetEntranceFee(fee world.Money) *ParkSetEntranceFee {
	return &ParkSetEntranceFee{Base: newBase(), Fee: fee}
}

func (a *ParkSetEntranceFee) Type() Type { return TypeParkSetEntranceFee }

func (a *ParkSetEntranceFee) Serialise(s *serial.Serialiser) {
	a.Base.Serialise(s)
	s.I64("value", &a.Fee)
}

func (a *ParkSetEntranceFee) Query(env *Env) *Result {
	if env.World.ParkFlags()&world.ParkFlagFreeEntry != 0 && !env.World.Cheats().SandboxMode {
		return Failure(StatusDisallowed, StringCantChangeEntranceFee, StringNone)
	}
	if a.Fee < 0 || a.Fee > MaxEntranceFee {
		return Failure(StatusInvalidParameters, StringCantChangeEntranceFee, StringInvalidValue)
	}
	return NewResult()
}

func (a *ParkSetEntranceFee) Execute(env *Env) *Result {
	env.World.SetEntranceFee(a.Fee)
	return NewResult()
}
