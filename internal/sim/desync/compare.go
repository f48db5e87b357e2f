package desync

import (
	"parkstep.io/internal/sim/entity"
	"parkstep.io/internal/sim/snapshot"
)

type ChangeKind uint8

const (
	ChangeEqual ChangeKind = iota
	ChangeAdded
	ChangeRemoved
	ChangeModified
)

func (c ChangeKind) String() string {
	switch c {
	case ChangeAdded:
		return "added"
	case ChangeRemoved:
		return "removed"
	case ChangeModified:
		return "modified"
	default:
		return "equal"
	}
}

// FieldDiff is one field whose bytes differ. Left and Right are the raw
// bit patterns zero-extended to 64 bits.
type FieldDiff struct {
	Struct string
	Field  string
	Offset int
	Length int
	Left   uint64
	Right  uint64
}

type SpriteChange struct {
	Index  uint32
	Kind   entity.Kind
	Change ChangeKind
	Diffs  []FieldDiff
}

type CompareResult struct {
	TickLeft    uint32
	TickRight   uint32
	SRand0Left  uint32
	SRand0Right uint32
	// Changes holds only non-equal slots in index order.
	Changes []SpriteChange
}

func (r *CompareResult) Equal() bool {
	return len(r.Changes) == 0 && r.TickLeft == r.TickRight && r.SRand0Left == r.SRand0Right
}

// Compare diffs cmp against base slot by slot.
func Compare(base, cmp *snapshot.Snapshot) (*CompareResult, error) {
	left, err := snapshot.BuildSpriteList(base)
	if err != nil {
		return nil, err
	}
	right, err := snapshot.BuildSpriteList(cmp)
	if err != nil {
		return nil, err
	}
	res := &CompareResult{
		TickLeft:    base.Tick,
		TickRight:   cmp.Tick,
		SRand0Left:  base.SRand0,
		SRand0Right: cmp.SRand0,
	}
	n := len(left)
	if len(right) > n {
		n = len(right)
	}
	for i := 0; i < n; i++ {
		c := compareSlot(uint32(i), slot(left, i), slot(right, i))
		if c.Change != ChangeEqual {
			res.Changes = append(res.Changes, c)
		}
	}
	return res, nil
}

func slot(list []entity.Entity, i int) entity.Entity {
	if i < len(list) {
		return list[i]
	}
	return nil
}

func compareSlot(index uint32, a, b entity.Entity) SpriteChange {
	ka, kb := entity.KindOf(a), entity.KindOf(b)
	switch {
	case a == nil && b == nil:
		return SpriteChange{Index: index, Kind: entity.KindNull, Change: ChangeEqual}
	case a == nil:
		return SpriteChange{Index: index, Kind: kb, Change: ChangeAdded}
	case b == nil:
		return SpriteChange{Index: index, Kind: ka, Change: ChangeRemoved}
	}

	c := SpriteChange{Index: index, Kind: ka}
	l := entity.LayoutOf(ka)
	if ka != kb {
		f := l.Fields[0]
		c.Diffs = append(c.Diffs, FieldDiff{
			Struct: f.Struct, Field: f.Name, Offset: f.Offset, Length: f.Width,
			Left: uint64(ka), Right: uint64(kb),
		})
		c.Change = ChangeModified
		return c
	}
	for _, f := range l.Fields {
		lv, rv := f.Get(a), f.Get(b)
		if lv == rv {
			continue
		}
		c.Diffs = append(c.Diffs, FieldDiff{
			Struct: f.Struct, Field: f.Name, Offset: f.Offset, Length: f.Width,
			Left: lv, Right: rv,
		})
	}
	if len(c.Diffs) > 0 {
		c.Change = ChangeModified
	}
	return c
}
