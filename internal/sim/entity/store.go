package entity

import (
	"container/heap"

	"github.com/rotisserie/eris"
)

var ErrNoFreeSlots = eris.New("entity: no free slots")

// freeList is a min-heap of unused slot indices so that Spawn always
// hands out the lowest free index.
type freeList []int

func (f freeList) Len() int           { return len(f) }
func (f freeList) Less(i, j int) bool { return f[i] < f[j] }
func (f freeList) Swap(i, j int)      { f[i], f[j] = f[j], f[i] }
func (f *freeList) Push(x any)        { *f = append(*f, x.(int)) }
func (f *freeList) Pop() any {
	old := *f
	n := len(old)
	x := old[n-1]
	*f = old[:n-1]
	return x
}

// Store is the fixed-capacity entity table.
type Store struct {
	slots []Entity
	free  freeList
	count int
}

func NewStore(capacity int) *Store {
	s := &Store{}
	s.Reset(capacity)
	return s
}

// Reset empties the store and resizes it.
func (s *Store) Reset(capacity int) {
	if capacity < 0 {
		capacity = 0
	}
	s.slots = make([]Entity, capacity)
	s.free = make(freeList, capacity)
	for i := range s.free {
		s.free[i] = i
	}
	heap.Init(&s.free)
	s.count = 0
}

func (s *Store) Capacity() int { return len(s.slots) }
func (s *Store) Count() int    { return s.count }

func (s *Store) Get(i int) Entity {
	if i < 0 || i >= len(s.slots) {
		return nil
	}
	return s.slots[i]
}

func (s *Store) Kind(i int) Kind { return KindOf(s.Get(i)) }

// Spawn allocates a zero entity of kind k at the lowest free index.
func (s *Store) Spawn(k Kind) (Entity, error) {
	e := New(k)
	if e == nil {
		return nil, eris.Errorf("entity: cannot spawn kind %d", k)
	}
	if s.free.Len() == 0 {
		return nil, ErrNoFreeSlots
	}
	i := heap.Pop(&s.free).(int)
	e.EntityBase().SpriteIndex = uint16(i)
	s.slots[i] = e
	s.count++
	return e, nil
}

func (s *Store) Remove(i int) {
	if s.Get(i) == nil {
		return
	}
	s.slots[i] = nil
	heap.Push(&s.free, i)
	s.count--
}

// Load replaces every slot. Entries beyond the capacity are ignored.
func (s *Store) Load(slots []Entity) {
	s.Reset(len(s.slots))
	s.free = s.free[:0]
	for i := range s.slots {
		if i < len(slots) && slots[i] != nil {
			s.slots[i] = slots[i]
			s.slots[i].EntityBase().SpriteIndex = uint16(i)
			s.count++
			continue
		}
		s.free = append(s.free, i)
	}
	heap.Init(&s.free)
}

// Each visits occupied slots in index order.
func (s *Store) Each(fn func(i int, e Entity)) {
	for i, e := range s.slots {
		if e != nil {
			fn(i, e)
		}
	}
}

func (s *Store) CountKind(k Kind) int {
	n := 0
	for _, e := range s.slots {
		if e != nil && KindOf(e) == k {
			n++
		}
	}
	return n
}
