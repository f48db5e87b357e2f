package entity

// Entity is implemented by pointers to every concrete kind.
type Entity interface {
	EntityBase() *Base
}

type peeper interface {
	EntityPeep() *Peep
}

// KindOf returns KindNull for an empty slot.
func KindOf(e Entity) Kind {
	if e == nil {
		return KindNull
	}
	return e.EntityBase().Type
}

type Base struct {
	Type        Kind
	SpriteIndex uint16
	Flags       uint16
	X           int32
	Y           int32
	Z           int32
	Direction   uint8
}

func (b *Base) EntityBase() *Base { return b }

// Peep holds the fields shared by guests and staff.
type Peep struct {
	Base
	PeepID       uint32
	State        uint8
	SubState     uint8
	Action       uint8
	ActionFrame  uint8
	Energy       uint8
	EnergyTarget uint8
	DestinationX int32
	DestinationY int32
	CurrentRide  uint16
	WalkingFrame uint8
}

func (p *Peep) EntityPeep() *Peep { return p }

type Guest struct {
	Peep
	Happiness       uint8
	HappinessTarget uint8
	Nausea          uint8
	Hunger          uint8
	Thirst          uint8
	Toilet          uint8
	CashInPocket    int32
	CashSpent       int32
	ParkEntryTime   int32
	HeadingToRide   uint16
	ItemFlags       uint64
	BalloonColour   uint8
}

type StaffType uint8

const (
	StaffHandyman StaffType = iota
	StaffMechanic
	StaffSecurity
	StaffEntertainer
)

type Staff struct {
	Peep
	StaffType      StaffType
	Orders         uint8
	MowingTimeout  uint8
	HireDate       int32
	LawnsMown      uint32
	GardensWatered uint32
	LitterSwept    uint32
	BinsEmptied    uint32
}

const VehicleMaxPeeps = 8

type Vehicle struct {
	Base
	RideID             uint16
	TrackType          uint16
	TrackProgress      uint16
	Velocity           int32
	Acceleration       int32
	Mass               uint16
	Status             uint8
	NumPeeps           uint8
	NextVehicleOnTrain uint16
	Peeps              [VehicleMaxPeeps]uint16
}

type Litter struct {
	Base
	LitterType   uint8
	CreationTick uint32
}

type SteamParticle struct {
	Base
	Time  uint16
	Frame uint16
}

type MoneyEffect struct {
	Base
	MoveDelay    uint16
	NumMovements uint8
	Vertical     uint8
	Value        int64
	OffsetX      int16
	Wiggle       uint16
}

type JumpingFountain struct {
	Base
	FountainType  uint8
	NumTicksAlive uint8
	FountainFlags uint8
	TargetX       int16
	TargetY       int16
	Iteration     uint16
	Frame         uint16
}

type Balloon struct {
	Base
	PopTimer uint16
	Colour   uint8
	Frame    uint16
}

type Duck struct {
	Base
	TargetX int16
	TargetY int16
	State   uint8
	Frame   uint16
}
