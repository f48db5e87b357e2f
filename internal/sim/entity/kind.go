package entity

// Kind discriminates the concrete type stored in a slot.
type Kind uint8

const (
	KindVehicle Kind = iota
	KindGuest
	KindStaff
	KindLitter
	KindSteamParticle
	KindMoneyEffect
	KindJumpingFountain
	KindBalloon
	KindDuck
	kindCount

	KindNull Kind = 0xFF
)

var kindNames = [kindCount]string{
	KindVehicle:         "Vehicle",
	KindGuest:           "Guest",
	KindStaff:           "Staff",
	KindLitter:          "Litter",
	KindSteamParticle:   "SteamParticle",
	KindMoneyEffect:     "MoneyEffect",
	KindJumpingFountain: "JumpingFountain",
	KindBalloon:         "Balloon",
	KindDuck:            "Duck",
}

func (k Kind) String() string {
	if k < kindCount {
		return kindNames[k]
	}
	if k == KindNull {
		return "Null"
	}
	return "Unknown"
}

func (k Kind) Valid() bool { return k < kindCount }

// KnownKinds lists every concrete kind in tag order.
func KnownKinds() []Kind {
	out := make([]Kind, 0, kindCount)
	for k := Kind(0); k < kindCount; k++ {
		out = append(out, k)
	}
	return out
}
