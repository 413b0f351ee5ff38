package trail

import "fmt"

// handle addresses one slot of a typed store. Generations start at 1,
// so the zero handle never resolves.
type handle struct {
	idx uint32
	gen uint32
}

// Handles to reversible slots. The zero value is not a valid handle.
type (
	Bool  struct{ h handle }
	Int   struct{ h handle }
	Uint  struct{ h handle }
	Float struct{ h handle }
	Ref   struct{ h handle }
)

// store holds the current values of one slot kind together with the
// stamp at which each slot was last saved to the log.
type store[V any] struct {
	kind   string
	values []V
	stamps []uint64
	gens   []uint32
	log    blockLog[V]
}

func newStore[V any](kind string, blockSize int, codec Codec, format *entryFormat[V]) store[V] {
	return store[V]{
		kind: kind,
		log:  newBlockLog[V](blockSize, codec, format),
	}
}

func (st *store[V]) create(v V, stamp uint64) handle {
	idx := len(st.values)
	if idx == len(st.gens) {
		st.gens = append(st.gens, 1)
	}
	st.values = append(st.values, v)
	st.stamps = append(st.stamps, stamp)
	return handle{idx: uint32(idx), gen: st.gens[idx]}
}

func (st *store[V]) check(h handle) {
	if int(h.idx) >= len(st.values) || st.gens[h.idx] != h.gen {
		panic(fmt.Sprintf("trail: stale or invalid %s handle %d/%d", st.kind, h.idx, h.gen))
	}
}

func (st *store[V]) get(h handle) V {
	st.check(h)
	return st.values[h.idx]
}

func (st *store[V]) set(h handle, v V, stamp uint64) {
	st.check(h)
	if st.stamps[h.idx] < stamp {
		st.log.push(entry[V]{slot: h.idx, old: st.values[h.idx]})
		st.stamps[h.idx] = stamp
	}
	st.values[h.idx] = v
}

// restore replays the log down to logLen and drops the slots created
// after slotLen.
func (st *store[V]) restore(logLen, slotLen int) {
	st.log.popTo(logLen, func(e entry[V]) {
		st.values[e.slot] = e.old
	})
	var zero V
	for i := len(st.values) - 1; i >= slotLen; i-- {
		st.gens[i]++
		st.values[i] = zero
	}
	st.values = st.values[:slotLen]
	st.stamps = st.stamps[:slotLen]
}

// NewBool creates a reversible boolean slot holding v.
func (t *Trail) NewBool(v bool) Bool { return Bool{t.bools.create(v, t.stamp)} }

// NewInt creates a reversible integer slot holding v.
func (t *Trail) NewInt(v int64) Int { return Int{t.ints.create(v, t.stamp)} }

// NewUint creates a reversible unsigned slot holding v.
func (t *Trail) NewUint(v uint64) Uint { return Uint{t.uints.create(v, t.stamp)} }

// NewFloat creates a reversible float slot holding v.
func (t *Trail) NewFloat(v float64) Float { return Float{t.floats.create(v, t.stamp)} }

// NewRef creates a reversible slot holding an arbitrary reference.
// Reference entries are kept in plain blocks and never packed.
func (t *Trail) NewRef(v any) Ref { return Ref{t.refs.create(v, t.stamp)} }

// Bool returns the current value of the slot.
func (t *Trail) Bool(h Bool) bool {
	return t.bools.get(h.h)
}

func (t *Trail) Int(h Int) int64 {
	return t.ints.get(h.h)
}

func (t *Trail) Uint(h Uint) uint64 {
	return t.uints.get(h.h)
}

func (t *Trail) Float(h Float) float64 {
	return t.floats.get(h.h)
}

func (t *Trail) Ref(h Ref) any {
	return t.refs.get(h.h)
}

// SetBool writes v, saving the previous value the first time the slot
// changes after the latest checkpoint.
func (t *Trail) SetBool(h Bool, v bool) {
	t.bools.set(h.h, v, t.stamp)
}

func (t *Trail) SetInt(h Int, v int64) {
	t.ints.set(h.h, v, t.stamp)
}

func (t *Trail) SetUint(h Uint, v uint64) {
	t.uints.set(h.h, v, t.stamp)
}

func (t *Trail) SetFloat(h Float, v float64) {
	t.floats.set(h.h, v, t.stamp)
}

func (t *Trail) SetRef(h Ref, v any) {
	t.refs.set(h.h, v, t.stamp)
}

// AddInt adds delta to the slot and returns the new value.
func (t *Trail) AddInt(h Int, delta int64) int64 {
	v := t.ints.get(h.h) + delta
	t.ints.set(h.h, v, t.stamp)
	return v
}
