package snapshot

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	"parkstep.io/internal/logging"
	"parkstep.io/internal/sim/entity"
	"parkstep.io/internal/sim/serial"
	"parkstep.io/internal/sim/world"
)

// RingSize is the number of snapshots kept before the oldest is reused.
const RingSize = 32

// TickInvalid marks a snapshot that has not been linked yet.
const TickInvalid uint32 = 0xFFFFFFFF

var ErrSizeMismatch = eris.New("snapshot: entity size mismatch")

// Snapshot is the captured state of one tick.
type Snapshot struct {
	Tick       uint32
	SRand0     uint32
	Entities   []byte
	Parameters []byte
}

func (s *Snapshot) Linked() bool { return s != nil && s.Tick != TickInvalid }

// Engine keeps the most recent RingSize snapshots.
type Engine struct {
	ring [RingSize]*Snapshot
	next int
	log  *logrus.Entry
}

func NewEngine(log logrus.FieldLogger) *Engine {
	return &Engine{log: logging.Component(log, "snapshot")}
}

// CreateSnapshot returns a fresh unlinked snapshot, evicting the oldest
// one when the ring is full.
func (e *Engine) CreateSnapshot() *Snapshot {
	s := &Snapshot{Tick: TickInvalid}
	e.ring[e.next] = s
	e.next = (e.next + 1) % RingSize
	return s
}

// LinkSnapshot stamps tick and srand0 onto a captured snapshot.
func (e *Engine) LinkSnapshot(s *Snapshot, tick, srand0 uint32) {
	s.Tick = tick
	s.SRand0 = srand0
}

// GetLinkedSnapshot returns nil when no snapshot in the ring is linked to tick.
func (e *Engine) GetLinkedSnapshot(tick uint32) *Snapshot {
	if tick == TickInvalid {
		return nil
	}
	for _, s := range e.ring {
		if s != nil && s.Tick == tick {
			return s
		}
	}
	return nil
}

// Capture serialises every populated entity slot and the park parameters
// of w into s.
func (e *Engine) Capture(s *Snapshot, w *world.World) error {
	ent := serial.NewSaver()
	writeEntities(ent, w.Entities())
	if err := ent.Err(); err != nil {
		e.log.WithError(err).Error("capture entities")
		return err
	}
	params := serial.NewSaver()
	w.SerialiseParameters(params)
	if err := params.Err(); err != nil {
		e.log.WithError(err).Error("capture parameters")
		return err
	}
	s.Entities = ent.Bytes()
	s.Parameters = params.Bytes()
	return nil
}

func writeEntities(s *serial.Serialiser, store *entity.Store) {
	kinds := entity.KnownKinds()
	n := uint8(len(kinds))
	s.U8("kindCount", &n)
	for _, k := range kinds {
		tag := uint8(k)
		size := uint32(entity.LayoutOf(k).Size)
		s.U8("kind", &tag)
		s.U32("size", &size)
	}

	capacity := uint32(store.Capacity())
	s.U32("capacity", &capacity)
	indices := make([]uint32, 0, store.Count())
	store.Each(func(i int, _ entity.Entity) { indices = append(indices, uint32(i)) })
	count := uint32(len(indices))
	s.U32("count", &count)
	for i := range indices {
		s.U32("index", &indices[i])
	}
	for _, idx := range indices {
		ent := store.Get(int(idx))
		tag := uint8(entity.KindOf(ent))
		s.U8("kind", &tag)
		entity.LayoutOf(entity.KindOf(ent)).Serialise(s, ent)
	}
}

// SerialiseSnapshot writes or reads every part of snap.
func (e *Engine) SerialiseSnapshot(snap *Snapshot, s *serial.Serialiser) {
	Serialise(snap, s)
}

// Serialise is SerialiseSnapshot for callers without an engine.
func Serialise(snap *Snapshot, s *serial.Serialiser) {
	s.U32("tick", &snap.Tick)
	s.U32("srand0", &snap.SRand0)
	s.Bytes32("storedSprites", &snap.Entities)
	s.Bytes32("parkParameters", &snap.Parameters)
}

// BuildSpriteList decodes the entity buffer of snap into a slice of the
// captured capacity. Empty slots are nil.
func BuildSpriteList(snap *Snapshot) ([]entity.Entity, error) {
	s := serial.NewLoader(snap.Entities)

	var n uint8
	s.U8("kindCount", &n)
	if s.Err() == nil && int(n) != len(entity.KnownKinds()) {
		return nil, eris.Wrapf(ErrSizeMismatch, "kind count %d, want %d", n, len(entity.KnownKinds()))
	}
	for i := 0; i < int(n) && s.Err() == nil; i++ {
		var tag uint8
		var size uint32
		s.U8("kind", &tag)
		s.U32("size", &size)
		l := entity.LayoutOf(entity.Kind(tag))
		if s.Err() == nil && (l == nil || uint32(l.Size) != size) {
			return nil, eris.Wrapf(ErrSizeMismatch, "kind %d size %d", tag, size)
		}
	}

	var capacity, count uint32
	s.U32("capacity", &capacity)
	s.U32("count", &count)
	if err := s.Err(); err != nil {
		return nil, eris.Wrap(err, "snapshot: entity header")
	}
	if capacity > 0xFFFF || count > capacity {
		return nil, eris.Errorf("snapshot: count %d capacity %d out of range", count, capacity)
	}
	indices := make([]uint32, count)
	for i := range indices {
		s.U32("index", &indices[i])
	}

	out := make([]entity.Entity, capacity)
	for _, idx := range indices {
		var tag uint8
		s.U8("kind", &tag)
		if err := s.Err(); err != nil {
			return nil, eris.Wrap(err, "snapshot: entity records")
		}
		l := entity.LayoutOf(entity.Kind(tag))
		if l == nil || idx >= capacity {
			return nil, eris.Errorf("snapshot: bad entity record index=%d kind=%d", idx, tag)
		}
		ent := l.New()
		l.Serialise(s, ent)
		out[idx] = ent
	}
	if err := s.Err(); err != nil {
		return nil, eris.Wrap(err, "snapshot: entity records")
	}
	return out, nil
}

// Digest is the hex sha256 of the entity buffer, sent with tick packets.
func Digest(snap *Snapshot) string {
	sum := sha256.Sum256(snap.Entities)
	return hex.EncodeToString(sum[:])
}
