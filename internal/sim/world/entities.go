package world

import (
	"parkstep.io/internal/sim/entity"
)

const (
	moneyEffectMaxMovements = 55
	balloonRiseDelay        = 3
	balloonPopFrames        = 2
	duckWanderEvery         = 16
)

// SpawnMoneyEffect places a floating price indicator at pos. It is a no-op
// when the park has no money, the value is zero, or the store is full.
func (w *World) SpawnMoneyEffect(value Money, pos Coords) {
	if w.NoMoney() || value == 0 || pos.IsNull() {
		return
	}
	e, err := w.entities.Spawn(entity.KindMoneyEffect)
	if err != nil {
		return
	}
	m := e.(*entity.MoneyEffect)
	m.X, m.Y, m.Z = pos.X, pos.Y, pos.Z
	m.Value = value
	m.OffsetX = -int16(len(formatMoney(value)) * 3)
}

// UpdateEntities advances the per-tick behaviour kept in this core: money
// effects rise and expire, balloons rise or finish popping, ducks wander.
func (w *World) UpdateEntities() {
	w.entities.Each(func(i int, e entity.Entity) {
		switch v := e.(type) {
		case *entity.MoneyEffect:
			w.updateMoneyEffect(i, v)
		case *entity.Balloon:
			w.updateBalloon(i, v)
		case *entity.Duck:
			w.updateDuck(v)
		}
	})
}

func (w *World) updateMoneyEffect(i int, m *entity.MoneyEffect) {
	m.MoveDelay++
	if m.MoveDelay < 2 {
		return
	}
	m.MoveDelay = 0
	if m.Vertical != 0 {
		m.Z++
	}
	m.Y++
	m.NumMovements++
	if m.NumMovements >= moneyEffectMaxMovements {
		w.entities.Remove(i)
	}
}

func (w *World) updateBalloon(i int, b *entity.Balloon) {
	if b.PopTimer != 0 {
		b.Frame++
		if b.Frame >= balloonPopFrames {
			w.entities.Remove(i)
		}
		return
	}
	b.Frame++
	if b.Frame%balloonRiseDelay == 0 {
		b.Z++
	}
}

func (w *World) updateDuck(d *entity.Duck) {
	d.Frame++
	if d.Frame%duckWanderEvery != 0 {
		return
	}
	d.Direction = uint8(w.rand.Below(4)) * 8
	d.TargetX = int16(w.rand.Below(CoordsXYStep))
	d.TargetY = int16(w.rand.Below(CoordsXYStep))
}
