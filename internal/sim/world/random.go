package world

import "math/bits"

// Random is the scenario generator. S0 is the srand0 value stamped into
// tick packets and snapshots.
type Random struct {
	S0 uint32
	S1 uint32
}

func NewRandom(seed uint64) Random {
	return Random{S0: uint32(seed), S1: uint32(seed >> 32)}
}

func (r *Random) Next() uint32 {
	orig := r.S0
	r.S0 += bits.RotateLeft32(r.S1^0x1234567F, -7)
	r.S1 = bits.RotateLeft32(orig, -3)
	return r.S1
}

// Below returns a value in [0, n).
func (r *Random) Below(n uint32) uint32 {
	if n == 0 {
		return 0
	}
	return uint32((uint64(r.Next()) * uint64(n)) >> 32)
}
