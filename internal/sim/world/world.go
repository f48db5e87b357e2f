package world

import (
	"github.com/rotisserie/eris"

	"parkstep.io/internal/sim/entity"
)

const (
	DefaultEntityCapacity = 10000
	DefaultMapSize        = 256
	// CoordsXYStep is the size of one map tile in coordinate units.
	CoordsXYStep = 32
)

type Config struct {
	EntityCapacity int
	Seed           uint64
	Cash           Money
	ParkFlags      ParkFlags
	EntranceFee    Money
	Rating         uint16
	MapSize        int32
	// Scenery maps object ids to their placement price.
	Scenery map[uint16]Money
}

func (c Config) normalized() Config {
	if c.EntityCapacity <= 0 {
		c.EntityCapacity = DefaultEntityCapacity
	}
	if c.MapSize <= 0 {
		c.MapSize = DefaultMapSize
	}
	return c
}

// Cheats are session toggles that alter validation.
type Cheats struct {
	BuildInPauseMode bool
	SandboxMode      bool
}

// World owns all simulation state for one session.
type World struct {
	tick        uint32
	rand        Random
	entities    *entity.Store
	cash        Money
	parkFlags   ParkFlags
	entranceFee Money
	rating      uint16
	expenditure [ExpenditureCount]Money
	paused      bool
	cheats      Cheats
	inUpdate    bool
	mapSize     int32
	catalog     map[uint16]Money
	placements  []Placement
	nextPeepID  uint32

	quitMode      uint8
	quitRequested bool
}

func New(cfg Config) (*World, error) {
	cfg = cfg.normalized()
	if cfg.EntityCapacity > 0xFFFF {
		return nil, eris.Errorf("world: entity capacity %d exceeds %d", cfg.EntityCapacity, 0xFFFF)
	}
	w := &World{
		rand:        NewRandom(cfg.Seed),
		entities:    entity.NewStore(cfg.EntityCapacity),
		cash:        cfg.Cash,
		parkFlags:   cfg.ParkFlags,
		entranceFee: cfg.EntranceFee,
		rating:      cfg.Rating,
		mapSize:     cfg.MapSize,
		catalog:     make(map[uint16]Money, len(cfg.Scenery)),
	}
	for id, price := range cfg.Scenery {
		w.catalog[id] = price
	}
	return w, nil
}

func (w *World) Tick() uint32            { return w.tick }
func (w *World) SetTick(t uint32)        { w.tick = t }
func (w *World) AdvanceTick()            { w.tick++ }
func (w *World) Rand() *Random           { return &w.rand }
func (w *World) SRand0() uint32          { return w.rand.S0 }
func (w *World) Entities() *entity.Store { return w.entities }
func (w *World) Paused() bool            { return w.paused }
func (w *World) SetPaused(v bool)        { w.paused = v }
func (w *World) Cheats() *Cheats         { return &w.cheats }
func (w *World) MapSize() int32          { return w.mapSize }

// InUpdate reports whether the tick loop is currently processing the
// action queue.
func (w *World) InUpdate() bool     { return w.inUpdate }
func (w *World) SetInUpdate(v bool) { w.inUpdate = v }

// NextPeepID hands out peep ids in hire order.
func (w *World) NextPeepID() uint32 {
	w.nextPeepID++
	return w.nextPeepID
}

// ScenerySetPrice registers or replaces a catalog entry.
func (w *World) ScenerySetPrice(id uint16, price Money) { w.catalog[id] = price }

// SceneryPrice looks up a catalog entry.
func (w *World) SceneryPrice(id uint16) (Money, bool) {
	p, ok := w.catalog[id]
	return p, ok
}

// RequestQuit records a load-or-quit request for the game loop.
func (w *World) RequestQuit(mode uint8) {
	w.quitMode = mode
	w.quitRequested = true
}

func (w *World) QuitRequested() (uint8, bool) { return w.quitMode, w.quitRequested }
