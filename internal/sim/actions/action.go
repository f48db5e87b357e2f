package actions

import (
	"github.com/rotisserie/eris"

	"parkstep.io/internal/sim/serial"
	"parkstep.io/internal/sim/world"
)

// Callback receives the final result of a top-level Execute.
type Callback func(a Action, r *Result)

// Env is what an action sees while it runs.
type Env struct {
	World  *world.World
	Nested Nested
}

// Nested runs another action without top-level side effects.
type Nested interface {
	QueryNested(a Action) *Result
	ExecuteNested(a Action) *Result
}

type Action interface {
	Type() Type
	ActionBase() *Base
	ActionFlags() ActionFlags
	Serialise(s *serial.Serialiser)
	Query(env *Env) *Result
	Execute(env *Env) *Result
}

// Base carries the fields common to every action. It is serialised ahead
// of the type payload.
type Base struct {
	NetworkID uint32
	Flags     Flags
	Player    PlayerID
	Callback  Callback
}

func newBase() Base { return Base{Player: PlayerUnassigned} }

func (b *Base) ActionBase() *Base { return b }

func (b *Base) ActionFlags() ActionFlags { return 0 }

func (b *Base) Serialise(s *serial.Serialiser) {
	s.U32("networkId", &b.NetworkID)
	flags := uint32(b.Flags)
	s.U32("flags", &flags)
	b.Flags = Flags(flags)
	player := int32(b.Player)
	s.I32("playerId", &player)
	b.Player = PlayerID(player)
}

func Name(a Action) string { return a.Type().String() }

func serialiseCoords(s *serial.Serialiser, c *world.Coords) {
	s.I32("x", &c.X)
	s.I32("y", &c.Y)
	s.I32("z", &c.Z)
}

var registry = [TypeCount]func() Action{
	TypePauseToggle:        func() Action { return NewPauseToggle() },
	TypeLoadOrQuit:         func() Action { return NewLoadOrQuit(0) },
	TypeCheatSet:           func() Action { return NewCheatSet(0, 0) },
	TypeParkSetEntranceFee: func() Action { return NewParkSetEntranceFee(0) },
	TypeSmallSceneryPlace:  func() Action { return NewSmallSceneryPlace(0, world.Coords{}) },
	TypeWallPlace:          func() Action { return NewWallPlace(0, world.Coords{}, 0) },
	TypeLargeSceneryPlace:  func() Action { return NewLargeSceneryPlace(0, world.Coords{}) },
	TypeBannerPlace:        func() Action { return NewBannerPlace(0, world.Coords{}) },
	TypeStaffHire:          func() Action { return NewStaffHire(0, 0, world.Coords{}) },
	TypeStaffSetOrders:     func() Action { return NewStaffSetOrders(0, 0) },
	TypeBalloonPress:       func() Action { return NewBalloonPress(0) },
}

// Create returns a zero action of type t, or nil for unknown types.
func Create(t Type) Action {
	if !t.Valid() {
		return nil
	}
	return registry[t]()
}

// Decode reads an action of type t from s.
func Decode(t Type, s *serial.Serialiser) (Action, error) {
	a := Create(t)
	if a == nil {
		return nil, eris.Errorf("actions: unknown type %d", uint32(t))
	}
	a.Serialise(s)
	if err := s.Err(); err != nil {
		return nil, eris.Wrapf(err, "actions: decode %s", t)
	}
	return a, nil
}

// Encode returns the binary form of a.
func Encode(a Action) ([]byte, error) {
	s := serial.NewSaver()
	a.Serialise(s)
	if err := s.Err(); err != nil {
		return nil, eris.Wrapf(err, "actions: encode %s", a.Type())
	}
	return s.Bytes(), nil
}

// Clone builds an independent copy by serialising a and loading the bytes
// into a fresh instance. The callback is carried over.
func Clone(a Action) (Action, error) {
	b, err := Encode(a)
	if err != nil {
		return nil, err
	}
	out, err := Decode(a.Type(), serial.NewLoader(b))
	if err != nil {
		return nil, err
	}
	out.ActionBase().Callback = a.ActionBase().Callback
	return out, nil
}

// LogParams renders the serialised fields of a as text.
func LogParams(a Action) string {
	s := serial.NewLogger()
	a.Serialise(s)
	return s.Text()
}
