// Package trail implements the reversible memory of a backtracking
// search: typed slots whose previous values are logged on mutation, an
// arena of trail-owned allocations, and checkpoints that roll all of it
// back in time proportional to the number of changes made since.
package trail

import (
	"errors"
	"fmt"
)

const DefaultBlockSize = 8000

// Trail is the undo log shared by every level of a search. It is not
// safe for concurrent use.
type Trail struct {
	blockSize int
	codec     Codec

	bools  store[bool]
	ints   store[int64]
	uints  store[uint64]
	floats store[float64]
	refs   store[any]
	arena  arena

	// marks holds the sequence numbers of live checkpoints, oldest first.
	marks []uint64
	seq   uint64
	stamp uint64
}

// Checkpoint is a snapshot of the length of every log and arena of one
// Trail. It is consumed by RestoreTo or Commit.
type Checkpoint struct {
	owner *Trail
	seq   uint64
	depth int

	bools, ints, uints, floats, refs           int
	boolSlots, intSlots, uintSlots, floatSlots int
	refSlots, allocs                           int
}

// Depth is the position of the checkpoint in its trail's checkpoint
// stack, starting at 1.
func (c Checkpoint) Depth() int {
	return c.depth
}

type Option func(t *Trail) error

// WithBlockSize sets the number of entries per log block.
func WithBlockSize(n int) Option {
	return func(t *Trail) error {
		if n <= 0 {
			return fmt.Errorf("block size must be positive, got %d", n)
		}
		t.blockSize = n
		return nil
	}
}

// WithCodec enables packing of completed blocks with c. A nil codec
// disables packing.
func WithCodec(c Codec) Option {
	return func(t *Trail) error {
		t.codec = c
		return nil
	}
}

// WithCompression enables packing with the codec registered under name.
func WithCompression(name string) Option {
	return func(t *Trail) error {
		c, err := CodecByName(name)
		if err != nil {
			return err
		}
		t.codec = c
		return nil
	}
}

var defaults = []Option{
	func(t *Trail) error {
		if t.blockSize == 0 {
			t.blockSize = DefaultBlockSize
		}
		return nil
	},
}

func New(options ...Option) (*Trail, error) {
	t := &Trail{stamp: 1}
	for _, option := range append(options, defaults...) {
		if err := option(t); err != nil {
			return nil, err
		}
	}
	t.bools = newStore("bool", t.blockSize, t.codec, boolFormat)
	t.ints = newStore("int", t.blockSize, t.codec, intFormat)
	t.uints = newStore("uint", t.blockSize, t.codec, uintFormat)
	t.floats = newStore("float", t.blockSize, t.codec, floatFormat)
	t.refs = newStore[any]("ref", t.blockSize, nil, nil)
	return t, nil
}

// Stamp identifies the current checkpoint window. It increases every
// time a checkpoint is taken or restored.
func (t *Trail) Stamp() uint64 {
	return t.stamp
}

// Depth returns the number of live checkpoints.
func (t *Trail) Depth() int {
	return len(t.marks)
}

// Checkpoint snapshots the trail in O(1).
func (t *Trail) Checkpoint() Checkpoint {
	t.seq++
	t.marks = append(t.marks, t.seq)
	t.stamp++
	return Checkpoint{
		owner:      t,
		seq:        t.seq,
		depth:      len(t.marks),
		bools:      t.bools.log.Len(),
		ints:       t.ints.log.Len(),
		uints:      t.uints.log.Len(),
		floats:     t.floats.log.Len(),
		refs:       t.refs.log.Len(),
		boolSlots:  len(t.bools.values),
		intSlots:   len(t.ints.values),
		uintSlots:  len(t.uints.values),
		floatSlots: len(t.floats.values),
		refSlots:   len(t.refs.values),
		allocs:     len(t.arena.objs),
	}
}

var (
	errForeignCheckpoint = errors.New("trail: checkpoint belongs to another trail")
	errStaleCheckpoint   = errors.New("trail: checkpoint was already restored or discarded")
)

func (t *Trail) validate(c Checkpoint) {
	if c.owner != t {
		panic(errForeignCheckpoint)
	}
	if c.depth < 1 || c.depth > len(t.marks) || t.marks[c.depth-1] != c.seq {
		panic(errStaleCheckpoint)
	}
}

// RestoreTo rolls every slot back to the value it held when c was
// taken, releases the allocations and slots created since, and
// discards c together with every later checkpoint.
func (t *Trail) RestoreTo(c Checkpoint) {
	t.validate(c)
	t.bools.restore(c.bools, c.boolSlots)
	t.ints.restore(c.ints, c.intSlots)
	t.uints.restore(c.uints, c.uintSlots)
	t.floats.restore(c.floats, c.floatSlots)
	t.refs.restore(c.refs, c.refSlots)
	t.arena.releaseTo(c.allocs)
	t.marks = t.marks[:c.depth-1]
	t.stamp++
}

// Commit discards the most recent checkpoint c without restoring it.
// Its entries and allocations become part of the enclosing checkpoint.
func (t *Trail) Commit(c Checkpoint) {
	t.validate(c)
	if c.depth != len(t.marks) {
		panic(fmt.Sprintf("trail: commit of checkpoint at depth %d under %d live checkpoints", c.depth, len(t.marks)))
	}
	t.marks = t.marks[:c.depth-1]
}

// Stats describes the memory held by a Trail.
type Stats struct {
	Entries      int
	PackedBlocks int
	PackedBytes  int
	Slots        int
	Allocations  int
	Checkpoints  int
}

func (t *Trail) Stats() Stats {
	return Stats{
		Entries: t.bools.log.Len() + t.ints.log.Len() + t.uints.log.Len() +
			t.floats.log.Len() + t.refs.log.Len(),
		PackedBlocks: t.bools.log.packedBlocks() + t.ints.log.packedBlocks() +
			t.uints.log.packedBlocks() + t.floats.log.packedBlocks(),
		PackedBytes: t.bools.log.packedBytes + t.ints.log.packedBytes +
			t.uints.log.packedBytes + t.floats.log.packedBytes,
		Slots: len(t.bools.values) + len(t.ints.values) + len(t.uints.values) +
			len(t.floats.values) + len(t.refs.values),
		Allocations: len(t.arena.objs),
		Checkpoints: len(t.marks),
	}
}
