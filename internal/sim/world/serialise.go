package world

import (
	"sort"

	"github.com/rotisserie/eris"

	"parkstep.io/internal/sim/entity"
	"parkstep.io/internal/sim/serial"
)

const placementWireSize = 1 + 2 + 4*3 + 1

// SerialiseParameters covers the scalar park state carried in snapshots.
func (w *World) SerialiseParameters(s *serial.Serialiser) {
	s.I64("cash", &w.cash)
	flags := uint32(w.parkFlags)
	s.U32("parkFlags", &flags)
	w.parkFlags = ParkFlags(flags)
	s.I64("entranceFee", &w.entranceFee)
	s.U16("rating", &w.rating)
	s.Bool("paused", &w.paused)
	s.Bool("buildInPauseMode", &w.cheats.BuildInPauseMode)
	s.Bool("sandboxMode", &w.cheats.SandboxMode)
	s.I32("mapSize", &w.mapSize)
	s.U32("nextPeepId", &w.nextPeepID)
	for i := range w.expenditure {
		s.I64(expenditureNames[i], &w.expenditure[i])
	}
}

// Serialise writes or reads the complete world: the form sent to joining
// clients and stored at the head of a replay.
func (w *World) Serialise(s *serial.Serialiser) {
	s.U32("tick", &w.tick)
	s.U32("s0", &w.rand.S0)
	s.U32("s1", &w.rand.S1)
	w.SerialiseParameters(s)
	w.serialiseCatalog(s)
	w.serialiseEntities(s)
	w.serialisePlacements(s)
}

func (w *World) serialiseCatalog(s *serial.Serialiser) {
	n := uint16(len(w.catalog))
	s.U16("catalogCount", &n)
	if s.IsLoading() {
		w.catalog = make(map[uint16]Money, n)
		for i := 0; i < int(n) && s.Err() == nil; i++ {
			var id uint16
			var price Money
			s.U16("id", &id)
			s.I64("price", &price)
			w.catalog[id] = price
		}
		return
	}
	ids := make([]uint16, 0, len(w.catalog))
	for id := range w.catalog {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		price := w.catalog[id]
		s.U16("id", &id)
		s.I64("price", &price)
	}
}

func (w *World) serialiseEntities(s *serial.Serialiser) {
	capacity := uint32(w.entities.Capacity())
	count := uint32(w.entities.Count())
	s.U32("entityCapacity", &capacity)
	s.U32("entityCount", &count)
	if s.IsLoading() {
		if capacity > 0xFFFF {
			s.Fail(eris.Errorf("world: entity capacity %d out of range", capacity))
			return
		}
		slots := make([]entity.Entity, capacity)
		for i := uint32(0); i < count && s.Err() == nil; i++ {
			var idx uint32
			var kind uint8
			s.U32("index", &idx)
			s.U8("kind", &kind)
			l := entity.LayoutOf(entity.Kind(kind))
			if l == nil || idx >= capacity {
				s.Fail(eris.Errorf("world: bad entity record index=%d kind=%d", idx, kind))
				return
			}
			e := l.New()
			l.Serialise(s, e)
			slots[idx] = e
		}
		w.entities.Reset(int(capacity))
		w.entities.Load(slots)
		return
	}
	w.entities.Each(func(i int, e entity.Entity) {
		idx := uint32(i)
		kind := uint8(entity.KindOf(e))
		s.U32("index", &idx)
		s.U8("kind", &kind)
		entity.LayoutOf(entity.KindOf(e)).Serialise(s, e)
	})
}

func (w *World) serialisePlacements(s *serial.Serialiser) {
	n := uint32(len(w.placements))
	s.U32("placementCount", &n)
	if s.IsLoading() {
		if uint64(n)*placementWireSize > uint64(s.Remaining()) {
			s.Fail(eris.Errorf("world: placement count %d exceeds payload", n))
			return
		}
		w.placements = make([]Placement, n)
	}
	for i := 0; i < int(n) && s.Err() == nil; i++ {
		p := &w.placements[i]
		kind := uint8(p.Kind)
		s.U8("kind", &kind)
		p.Kind = SceneryKind(kind)
		s.U16("object", &p.ObjectID)
		s.I32("x", &p.Pos.X)
		s.I32("y", &p.Pos.Y)
		s.I32("z", &p.Pos.Z)
		s.Bool("ghost", &p.Ghost)
	}
}
