package network

import (
	"time"

	"parkstep.io/internal/sim/actions"
	"parkstep.io/internal/sim/world"
)

// Player is a connected participant. The server host is player 0.
type Player struct {
	ID               actions.PlayerID
	Name             string
	LastAction       actions.Type
	LastActionTime   time.Time
	LastActionCoords world.Coords
	CommandsRan      uint32
	MoneySpent       world.Money

	cooldownUntil map[actions.Type]time.Time
}

func newPlayer(id actions.PlayerID, name string) *Player {
	return &Player{
		ID:               id,
		Name:             name,
		LastAction:       actions.TypeCount,
		LastActionCoords: world.NullCoords,
		cooldownUntil:    make(map[actions.Type]time.Time),
	}
}

// actionCooldowns rate-limits action types a client may send.
var actionCooldowns = map[actions.Type]time.Duration{
	actions.TypeStaffHire:          time.Second,
	actions.TypeParkSetEntranceFee: 500 * time.Millisecond,
	actions.TypeCheatSet:           250 * time.Millisecond,
}

// onCooldown reports whether t is still blocked for p at now.
func (p *Player) onCooldown(t actions.Type, now time.Time) bool {
	until, ok := p.cooldownUntil[t]
	return ok && now.Before(until)
}

func (p *Player) startCooldown(t actions.Type, now time.Time) {
	if d, ok := actionCooldowns[t]; ok {
		p.cooldownUntil[t] = now.Add(d)
	}
}

func (p *Player) record(t actions.Type, cost world.Money, pos world.Coords, now time.Time) {
	p.LastAction = t
	p.LastActionTime = now
	p.CommandsRan++
	if cost != world.MoneyNull {
		p.MoneySpent += cost
	}
	if !pos.IsNull() {
		p.LastActionCoords = pos
	}
}
