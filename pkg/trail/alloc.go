package trail

import "fmt"

// Releaser is implemented by trail-owned objects that hold resources
// beyond memory. Release is called exactly once, when a restore crosses
// the checkpoint under which the object was allocated.
type Releaser interface {
	Release()
}

// Owned is a generation-checked handle on an object owned by a Trail.
type Owned[T any] struct {
	idx uint32
	gen uint32
}

type arena struct {
	objs []any
	gens []uint32
}

func (a *arena) add(obj any) (uint32, uint32) {
	idx := len(a.objs)
	if idx == len(a.gens) {
		a.gens = append(a.gens, 1)
	}
	a.objs = append(a.objs, obj)
	return uint32(idx), a.gens[idx]
}

func (a *arena) get(idx, gen uint32) (any, bool) {
	if int(idx) >= len(a.objs) || a.gens[idx] != gen {
		return nil, false
	}
	return a.objs[idx], true
}

// releaseTo frees every object allocated after the first n, newest
// first, so that objects are released before the ones they were built
// on.
func (a *arena) releaseTo(n int) {
	for i := len(a.objs) - 1; i >= n; i-- {
		obj := a.objs[i]
		a.objs[i] = nil
		a.gens[i]++
		a.objs = a.objs[:i]
		if r, ok := obj.(Releaser); ok {
			r.Release()
		}
	}
}

// Alloc transfers ownership of v to the trail. The returned handle
// stays valid until the enclosing checkpoint is restored.
func Alloc[T any](t *Trail, v *T) Owned[T] {
	idx, gen := t.arena.add(v)
	return Owned[T]{idx: idx, gen: gen}
}

// Lookup resolves the handle. It reports false once the allocation has
// been released by a restore.
func (o Owned[T]) Lookup(t *Trail) (*T, bool) {
	obj, ok := t.arena.get(o.idx, o.gen)
	if !ok {
		return nil, false
	}
	return obj.(*T), true
}

// MustGet resolves the handle and panics if it was released.
func (o Owned[T]) MustGet(t *Trail) *T {
	v, ok := o.Lookup(t)
	if !ok {
		panic(fmt.Sprintf("trail: use of released allocation %d/%d", o.idx, o.gen))
	}
	return v
}
