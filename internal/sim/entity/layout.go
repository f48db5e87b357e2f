package entity

import (
	"encoding/binary"

	"parkstep.io/internal/sim/serial"
)

type integer interface {
	~uint8 | ~int8 | ~uint16 | ~int16 | ~uint32 | ~int32 | ~uint64 | ~int64
}

// Field describes one fixed-width member of a kind. Get returns the raw bit
// pattern zero-extended to 64 bits; Set truncates to Width.
type Field struct {
	Struct string
	Name   string
	Width  int
	Offset int
	Get    func(Entity) uint64
	Set    func(Entity, uint64)
}

// Layout is the ordered field table of one kind.
type Layout struct {
	Kind   Kind
	Name   string
	Fields []Field
	Size   int
	New    func() Entity
}

func makeField[V integer](st, name string, ref func(Entity) *V) Field {
	var zero V
	w := binary.Size(zero)
	mask := uint64(1)<<(8*uint(w)) - 1
	return Field{
		Struct: st,
		Name:   name,
		Width:  w,
		Get:    func(e Entity) uint64 { return uint64(*ref(e)) & mask },
		Set:    func(e Entity, v uint64) { *ref(e) = V(v) },
	}
}

func baseField[V integer](name string, p func(*Base) *V) Field {
	return makeField("EntityBase", name, func(e Entity) *V { return p(e.EntityBase()) })
}

func peepField[V integer](name string, p func(*Peep) *V) Field {
	return makeField("Peep", name, func(e Entity) *V { return p(e.(peeper).EntityPeep()) })
}

func kindField[T any, V integer](st, name string, p func(*T) *V) Field {
	return makeField(st, name, func(e Entity) *V { return p(any(e).(*T)) })
}

var baseFields = []Field{
	baseField("Type", func(b *Base) *Kind { return &b.Type }),
	baseField("SpriteIndex", func(b *Base) *uint16 { return &b.SpriteIndex }),
	baseField("Flags", func(b *Base) *uint16 { return &b.Flags }),
	baseField("x", func(b *Base) *int32 { return &b.X }),
	baseField("y", func(b *Base) *int32 { return &b.Y }),
	baseField("z", func(b *Base) *int32 { return &b.Z }),
	baseField("direction", func(b *Base) *uint8 { return &b.Direction }),
}

var peepFields = []Field{
	peepField("PeepId", func(p *Peep) *uint32 { return &p.PeepID }),
	peepField("State", func(p *Peep) *uint8 { return &p.State }),
	peepField("SubState", func(p *Peep) *uint8 { return &p.SubState }),
	peepField("Action", func(p *Peep) *uint8 { return &p.Action }),
	peepField("ActionFrame", func(p *Peep) *uint8 { return &p.ActionFrame }),
	peepField("Energy", func(p *Peep) *uint8 { return &p.Energy }),
	peepField("EnergyTarget", func(p *Peep) *uint8 { return &p.EnergyTarget }),
	peepField("DestinationX", func(p *Peep) *int32 { return &p.DestinationX }),
	peepField("DestinationY", func(p *Peep) *int32 { return &p.DestinationY }),
	peepField("CurrentRide", func(p *Peep) *uint16 { return &p.CurrentRide }),
	peepField("WalkingFrameNum", func(p *Peep) *uint8 { return &p.WalkingFrame }),
}

var vehiclePeepNames = [VehicleMaxPeeps]string{
	"peep[0]", "peep[1]", "peep[2]", "peep[3]", "peep[4]", "peep[5]", "peep[6]", "peep[7]",
}

func vehicleFields() []Field {
	fields := []Field{
		kindField("Vehicle", "ride", func(v *Vehicle) *uint16 { return &v.RideID }),
		kindField("Vehicle", "TrackType", func(v *Vehicle) *uint16 { return &v.TrackType }),
		kindField("Vehicle", "track_progress", func(v *Vehicle) *uint16 { return &v.TrackProgress }),
		kindField("Vehicle", "velocity", func(v *Vehicle) *int32 { return &v.Velocity }),
		kindField("Vehicle", "acceleration", func(v *Vehicle) *int32 { return &v.Acceleration }),
		kindField("Vehicle", "mass", func(v *Vehicle) *uint16 { return &v.Mass }),
		kindField("Vehicle", "status", func(v *Vehicle) *uint8 { return &v.Status }),
		kindField("Vehicle", "num_peeps", func(v *Vehicle) *uint8 { return &v.NumPeeps }),
		kindField("Vehicle", "next_vehicle_on_train", func(v *Vehicle) *uint16 { return &v.NextVehicleOnTrain }),
	}
	for i := range vehiclePeepNames {
		i := i
		fields = append(fields, kindField("Vehicle", vehiclePeepNames[i], func(v *Vehicle) *uint16 { return &v.Peeps[i] }))
	}
	return fields
}

func guestFields() []Field {
	return []Field{
		kindField("Guest", "Happiness", func(g *Guest) *uint8 { return &g.Happiness }),
		kindField("Guest", "HappinessTarget", func(g *Guest) *uint8 { return &g.HappinessTarget }),
		kindField("Guest", "Nausea", func(g *Guest) *uint8 { return &g.Nausea }),
		kindField("Guest", "Hunger", func(g *Guest) *uint8 { return &g.Hunger }),
		kindField("Guest", "Thirst", func(g *Guest) *uint8 { return &g.Thirst }),
		kindField("Guest", "Toilet", func(g *Guest) *uint8 { return &g.Toilet }),
		kindField("Guest", "CashInPocket", func(g *Guest) *int32 { return &g.CashInPocket }),
		kindField("Guest", "CashSpent", func(g *Guest) *int32 { return &g.CashSpent }),
		kindField("Guest", "ParkEntryTime", func(g *Guest) *int32 { return &g.ParkEntryTime }),
		kindField("Guest", "GuestHeadingToRideId", func(g *Guest) *uint16 { return &g.HeadingToRide }),
		kindField("Guest", "ItemFlags", func(g *Guest) *uint64 { return &g.ItemFlags }),
		kindField("Guest", "BalloonColour", func(g *Guest) *uint8 { return &g.BalloonColour }),
	}
}

func staffFields() []Field {
	return []Field{
		kindField("Staff", "AssignedStaffType", func(s *Staff) *StaffType { return &s.StaffType }),
		kindField("Staff", "StaffOrders", func(s *Staff) *uint8 { return &s.Orders }),
		kindField("Staff", "StaffMowingTimeout", func(s *Staff) *uint8 { return &s.MowingTimeout }),
		kindField("Staff", "HireDate", func(s *Staff) *int32 { return &s.HireDate }),
		kindField("Staff", "StaffLawnsMown", func(s *Staff) *uint32 { return &s.LawnsMown }),
		kindField("Staff", "StaffGardensWatered", func(s *Staff) *uint32 { return &s.GardensWatered }),
		kindField("Staff", "StaffLitterSwept", func(s *Staff) *uint32 { return &s.LitterSwept }),
		kindField("Staff", "StaffBinsEmptied", func(s *Staff) *uint32 { return &s.BinsEmptied }),
	}
}

func concat(parts ...[]Field) []Field {
	var out []Field
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func newLayout(k Kind, fields []Field, ctor func() Entity) *Layout {
	l := &Layout{Kind: k, Name: k.String(), New: func() Entity {
		e := ctor()
		e.EntityBase().Type = k
		return e
	}}
	off := 0
	l.Fields = make([]Field, len(fields))
	for i, f := range fields {
		f.Offset = off
		off += f.Width
		l.Fields[i] = f
	}
	l.Size = off
	return l
}

var layouts = [kindCount]*Layout{
	KindVehicle: newLayout(KindVehicle, concat(baseFields, vehicleFields()), func() Entity { return &Vehicle{} }),
	KindGuest:   newLayout(KindGuest, concat(baseFields, peepFields, guestFields()), func() Entity { return &Guest{} }),
	KindStaff:   newLayout(KindStaff, concat(baseFields, peepFields, staffFields()), func() Entity { return &Staff{} }),
	KindLitter: newLayout(KindLitter, concat(baseFields, []Field{
		kindField("Litter", "SubType", func(l *Litter) *uint8 { return &l.LitterType }),
		kindField("Litter", "creationTick", func(l *Litter) *uint32 { return &l.CreationTick }),
	}), func() Entity { return &Litter{} }),
	KindSteamParticle: newLayout(KindSteamParticle, concat(baseFields, []Field{
		kindField("SteamParticle", "time_to_move", func(p *SteamParticle) *uint16 { return &p.Time }),
		kindField("SteamParticle", "frame", func(p *SteamParticle) *uint16 { return &p.Frame }),
	}), func() Entity { return &SteamParticle{} }),
	KindMoneyEffect: newLayout(KindMoneyEffect, concat(baseFields, []Field{
		kindField("MoneyEffect", "MoveDelay", func(m *MoneyEffect) *uint16 { return &m.MoveDelay }),
		kindField("MoneyEffect", "NumMovements", func(m *MoneyEffect) *uint8 { return &m.NumMovements }),
		kindField("MoneyEffect", "Vertical", func(m *MoneyEffect) *uint8 { return &m.Vertical }),
		kindField("MoneyEffect", "Value", func(m *MoneyEffect) *int64 { return &m.Value }),
		kindField("MoneyEffect", "OffsetX", func(m *MoneyEffect) *int16 { return &m.OffsetX }),
		kindField("MoneyEffect", "Wiggle", func(m *MoneyEffect) *uint16 { return &m.Wiggle }),
	}), func() Entity { return &MoneyEffect{} }),
	KindJumpingFountain: newLayout(KindJumpingFountain, concat(baseFields, []Field{
		kindField("JumpingFountain", "FountainType", func(j *JumpingFountain) *uint8 { return &j.FountainType }),
		kindField("JumpingFountain", "NumTicksAlive", func(j *JumpingFountain) *uint8 { return &j.NumTicksAlive }),
		kindField("JumpingFountain", "FountainFlags", func(j *JumpingFountain) *uint8 { return &j.FountainFlags }),
		kindField("JumpingFountain", "TargetX", func(j *JumpingFountain) *int16 { return &j.TargetX }),
		kindField("JumpingFountain", "TargetY", func(j *JumpingFountain) *int16 { return &j.TargetY }),
		kindField("JumpingFountain", "Iteration", func(j *JumpingFountain) *uint16 { return &j.Iteration }),
		kindField("JumpingFountain", "frame", func(j *JumpingFountain) *uint16 { return &j.Frame }),
	}), func() Entity { return &JumpingFountain{} }),
	KindBalloon: newLayout(KindBalloon, concat(baseFields, []Field{
		kindField("Balloon", "popped", func(b *Balloon) *uint16 { return &b.PopTimer }),
		kindField("Balloon", "colour", func(b *Balloon) *uint8 { return &b.Colour }),
		kindField("Balloon", "frame", func(b *Balloon) *uint16 { return &b.Frame }),
	}), func() Entity { return &Balloon{} }),
	KindDuck: newLayout(KindDuck, concat(baseFields, []Field{
		kindField("Duck", "target_x", func(d *Duck) *int16 { return &d.TargetX }),
		kindField("Duck", "target_y", func(d *Duck) *int16 { return &d.TargetY }),
		kindField("Duck", "state", func(d *Duck) *uint8 { return &d.State }),
		kindField("Duck", "frame", func(d *Duck) *uint16 { return &d.Frame }),
	}), func() Entity { return &Duck{} }),
}

// LayoutOf returns nil for KindNull and unknown tags.
func LayoutOf(k Kind) *Layout {
	if !k.Valid() {
		return nil
	}
	return layouts[k]
}

// New allocates a zero entity of kind k with its Type set.
func New(k Kind) Entity {
	l := LayoutOf(k)
	if l == nil {
		return nil
	}
	return l.New()
}

// Clone copies e field by field.
func Clone(e Entity) Entity {
	if e == nil {
		return nil
	}
	l := LayoutOf(KindOf(e))
	if l == nil {
		return nil
	}
	out := l.New()
	for _, f := range l.Fields {
		f.Set(out, f.Get(e))
	}
	return out
}

// Serialise walks every field of e in layout order.
func (l *Layout) Serialise(s *serial.Serialiser, e Entity) {
	for _, f := range l.Fields {
		v := f.Get(e)
		switch f.Width {
		case 1:
			u := uint8(v)
			s.U8(f.Name, &u)
			v = uint64(u)
		case 2:
			u := uint16(v)
			s.U16(f.Name, &u)
			v = uint64(u)
		case 4:
			u := uint32(v)
			s.U32(f.Name, &u)
			v = uint64(u)
		default:
			s.U64(f.Name, &v)
		}
		if s.IsLoading() {
			f.Set(e, v)
		}
	}
}
