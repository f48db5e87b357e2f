package actions

import (
	"parkstep.io/internal/sim/serial"
	"parkstep.io/internal/sim/world"
)

// sceneryPlacement is shared by the four scenery placement actions.
type sceneryPlacement struct {
	Base
	ObjectID uint16
	Loc      world.Coords
}

func (p *sceneryPlacement) serialise(s *serial.Serialiser) {
	p.Base.Serialise(s)
	s.U16("object", &p.ObjectID)
	serialiseCoords(s, &p.Loc)
}

func (p *sceneryPlacement) query(env *Env, kind world.SceneryKind) *Result {
	w := env.World
	if !w.InBounds(p.Loc) {
		r := Failure(StatusInvalidParameters, StringCantPositionThisHere, StringOffEdgeOfMap)
		r.Position = p.Loc
		return r
	}
	price, ok := w.SceneryPrice(p.ObjectID)
	if !ok {
		return Failure(StatusInvalidParameters, StringCantPositionThisHere, StringInvalidSelectionOfObjects)
	}
	if w.Occupied(kind, p.Loc) {
		r := Failure(StatusNoClearance, StringCantBuildThisHere, StringObjectInTheWay, kind.String())
		r.Position = p.Loc
		return r
	}
	r := NewResult()
	r.Position = p.Loc
	r.Expenditure = world.ExpenditureLandscaping
	r.Cost = price
	return r
}

func (p *sceneryPlacement) execute(env *Env, kind world.SceneryKind) *Result {
	r := p.query(env, kind)
	if !r.IsOK() {
		return r
	}
	env.World.Place(world.Placement{
		Kind:     kind,
		ObjectID: p.ObjectID,
		Pos:      p.Loc,
		Ghost:    p.Flags&FlagGhost != 0,
	})
	return r
}

type SmallSceneryPlace struct{ sceneryPlacement }

func NewSmallSceneryPlace(object uint16, loc world.Coords) *SmallSceneryPlace {
	return &SmallSceneryPlace{sceneryPlacement{Base: newBase(), ObjectID: object, Loc: loc}}
}

func (a *SmallSceneryPlace) Type() Type                     { return TypeSmallSceneryPlace }
func (a *SmallSceneryPlace) Serialise(s *serial.Serialiser) { a.serialise(s) }
func (a *SmallSceneryPlace) Query(env *Env) *Result         { return a.query(env, world.ScenerySmall) }
func (a *SmallSceneryPlace) Execute(env *Env) *Result       { return a.execute(env, world.ScenerySmall) }

type WallPlace struct {
	sceneryPlacement
	Edge uint8
}

func NewWallPlace(object uint16, loc world.Coords, edge uint8) *WallPlace {
	return &WallPlace{sceneryPlacement: sceneryPlacement{Base: newBase(), ObjectID: object, Loc: loc}, Edge: edge}
}

func (a *WallPlace) Type() Type { return TypeWallPlace }

func (a *WallPlace) Serialise(s *serial.Serialiser) {
	a.serialise(s)
	s.U8("edge", &a.Edge)
}

func (a *WallPlace) Query(env *Env) *Result {
	if a.Edge > 3 {
		return Failure(StatusInvalidParameters, StringCantBuildThisHere, StringInvalidValue)
	}
	return a.query(env, world.SceneryWall)
}

func (a *WallPlace) Execute(env *Env) *Result {
	if a.Edge > 3 {
		return Failure(StatusInvalidParameters, StringCantBuildThisHere, StringInvalidValue)
	}
	return a.execute(env, world.SceneryWall)
}

type LargeSceneryPlace struct{ sceneryPlacement }

func NewLargeSceneryPlace(object uint16, loc world.Coords) *LargeSceneryPlace {
	return &LargeSceneryPlace{sceneryPlacement{Base: newBase(), ObjectID: object, Loc: loc}}
}

func (a *LargeSceneryPlace) Type() Type                     { return TypeLargeSceneryPlace }
func (a *LargeSceneryPlace) Serialise(s *serial.Serialiser) { a.serialise(s) }
func (a *LargeSceneryPlace) Query(env *Env) *Result         { return a.query(env, world.SceneryLarge) }
func (a *LargeSceneryPlace) Execute(env *Env) *Result       { return a.execute(env, world.SceneryLarge) }

type BannerPlace struct{ sceneryPlacement }

func NewBannerPlace(object uint16, loc world.Coords) *BannerPlace {
	return &BannerPlace{sceneryPlacement{Base: newBase(), ObjectID: object, Loc: loc}}
}

func (a *BannerPlace) Type() Type                     { return TypeBannerPlace }
func (a *BannerPlace) Serialise(s *serial.Serialiser) { a.serialise(s) }
func (a *BannerPlace) Query(env *Env) *Result         { return a.query(env, world.SceneryBanner) }
func (a *BannerPlace) Execute(env *Env) *Result       { return a.execute(env, world.SceneryBanner) }

// ghostKinds maps placement actions to the scenery kind whose ghosts must
// be cleared before a queued placement runs.
var ghostKinds = map[Type]world.SceneryKind{
	TypeSmallSceneryPlace: world.ScenerySmall,
	TypeWallPlace:         world.SceneryWall,
	TypeLargeSceneryPlace: world.SceneryLarge,
	TypeBannerPlace:       world.SceneryBanner,
}
