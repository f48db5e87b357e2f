package actions

import (
	"parkstep.io/internal/sim/entity"
	"parkstep.io/internal/sim/serial"
	"parkstep.io/internal/sim/world"
)

var staffHireCost = [...]world.Money{
	entity.StaffHandyman:    500,
	entity.StaffMechanic:    800,
	entity.StaffSecurity:    600,
	entity.StaffEntertainer: 550,
}

// staffOrderMask lists the order bits each staff type accepts.
var staffOrderMask = [...]uint8{
	entity.StaffHandyman:    0x0F,
	entity.StaffMechanic:    0x03,
	entity.StaffSecurity:    0x00,
	entity.StaffEntertainer: 0x00,
}

// StaffHire spawns a staff member and applies its initial orders through a
// nested StaffSetOrders.
type StaffHire struct {
	Base
	StaffType entity.StaffType
	Orders    uint8
	Loc       world.Coords
}

func NewStaffHire(staffType entity.StaffType, orders uint8, loc world.Coords) *StaffHire {
	return &StaffHire{Base: newBase(), StaffType: staffType, Orders: orders, Loc: loc}
}

func (a *StaffHire) Type() Type { return TypeStaffHire }

func (a *StaffHire) Serialise(s *serial.Serialiser) {
	a.Base.Serialise(s)
	st := uint8(a.StaffType)
	s.U8("staffType", &st)
	a.StaffType = entity.StaffType(st)
	s.U8("orders", &a.Orders)
	serialiseCoords(s, &a.Loc)
}

func (a *StaffHire) Query(env *Env) *Result {
	if int(a.StaffType) >= len(staffHireCost) {
		return Failure(StatusInvalidParameters, StringCantHireNewStaff, StringInvalidValue)
	}
	if a.Orders&^staffOrderMask[a.StaffType] != 0 {
		return Failure(StatusInvalidParameters, StringCantHireNewStaff, StringInvalidValue)
	}
	store := env.World.Entities()
	if store.Count() >= store.Capacity() {
		return Failure(StatusNoFreeElements, StringCantHireNewStaff, StringTooManyStaffInGame)
	}
	r := NewResult()
	r.Cost = staffHireCost[a.StaffType]
	r.Expenditure = world.ExpenditureWages
	if env.World.InBounds(a.Loc) {
		r.Position = a.Loc
	}
	return r
}

func (a *StaffHire) Execute(env *Env) *Result {
	r := a.Query(env)
	if !r.IsOK() {
		return r
	}
	e, err := env.World.Entities().Spawn(entity.KindStaff)
	if err != nil {
		return Failure(StatusNoFreeElements, StringCantHireNewStaff, StringTooManyStaffInGame)
	}
	st := e.(*entity.Staff)
	st.StaffType = a.StaffType
	st.PeepID = env.World.NextPeepID()
	st.HireDate = int32(env.World.Tick())
	st.Energy = 0x60
	st.EnergyTarget = 0x60
	if !r.Position.IsNull() {
		st.X, st.Y, st.Z = r.Position.X, r.Position.Y, r.Position.Z
	}
	if a.Orders != 0 && env.Nested != nil {
		set := NewStaffSetOrders(st.SpriteIndex, a.Orders)
		set.Player = a.Player
		if nr := env.Nested.ExecuteNested(set); !nr.IsOK() {
			env.World.Entities().Remove(int(st.SpriteIndex))
			return nr
		}
	}
	return r
}

type StaffSetOrders struct {
	Base
	SpriteIndex uint16
	Orders      uint8
}

func NewStaffSetOrders(sprite uint16, orders uint8) *StaffSetOrders {
	return &StaffSetOrders{Base: newBase(), SpriteIndex: sprite, Orders: orders}
}

func (a *StaffSetOrders) Type() Type { return TypeStaffSetOrders }

func (a *StaffSetOrders) Serialise(s *serial.Serialiser) {
	a.Base.Serialise(s)
	s.U16("spriteIndex", &a.SpriteIndex)
	s.U8("staffOrders", &a.Orders)
}

func (a *StaffSetOrders) staff(w *world.World) *entity.Staff {
	st, _ := w.Entities().Get(int(a.SpriteIndex)).(*entity.Staff)
	return st
}

func (a *StaffSetOrders) Query(env *Env) *Result {
	st := a.staff(env.World)
	if st == nil || int(st.StaffType) >= len(staffOrderMask) {
		return Failure(StatusInvalidParameters, StringCantChangeStaffOrders, StringNone)
	}
	if a.Orders&^staffOrderMask[st.StaffType] != 0 {
		return Failure(StatusInvalidParameters, StringCantChangeStaffOrders, StringInvalidValue)
	}
	return NewResult()
}

func (a *StaffSetOrders) Execute(env *Env) *Result {
	r := a.Query(env)
	if !r.IsOK() {
		return r
	}
	st := a.staff(env.World)
	st.Orders = a.Orders
	r.Position = world.Coords{X: st.X, Y: st.Y, Z: st.Z}
	return r
}

// BalloonPress pops a balloon the player clicked on. A press that misses
// nudges the balloon instead.
type BalloonPress struct {
	Base
	SpriteIndex uint16
}

func NewBalloonPress(sprite uint16) *BalloonPress {
	return &BalloonPress{Base: newBase(), SpriteIndex: sprite}
}

func (a *BalloonPress) Type() Type               { return TypeBalloonPress }
func (a *BalloonPress) ActionFlags() ActionFlags { return IgnoreForReplays }

func (a *BalloonPress) Serialise(s *serial.Serialiser) {
	a.Base.Serialise(s)
	s.U16("spriteIndex", &a.SpriteIndex)
}

func (a *BalloonPress) balloon(w *world.World) *entity.Balloon {
	b, _ := w.Entities().Get(int(a.SpriteIndex)).(*entity.Balloon)
	return b
}

func (a *BalloonPress) Query(env *Env) *Result {
	if a.balloon(env.World) == nil {
		return Failure(StatusInvalidParameters, StringCantDoThis, StringNone)
	}
	return NewResult()
}

func (a *BalloonPress) Execute(env *Env) *Result {
	b := a.balloon(env.World)
	if b == nil {
		return Failure(StatusInvalidParameters, StringCantDoThis, StringNone)
	}
	if b.PopTimer == 0 && env.World.Rand().Next()&7 != 0 {
		b.PopTimer = 1
		b.Frame = 0
	} else {
		b.Z += 2
	}
	r := NewResult()
	r.Position = world.Coords{X: b.X, Y: b.Y, Z: b.Z}
	return r
}
