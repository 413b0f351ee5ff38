package trail

import (
	"encoding/binary"
	"fmt"
	"math"
)

type entry[V any] struct {
	slot uint32
	old  V
}

// entryFormat is the fixed-width binary layout of one log entry. Logs
// without a format are never packed.
type entryFormat[V any] struct {
	width int
	put   func(b []byte, v V)
	get   func(b []byte) V
}

var (
	boolFormat = &entryFormat[bool]{
		width: 1,
		put: func(b []byte, v bool) {
			b[0] = 0
			if v {
				b[0] = 1
			}
		},
		get: func(b []byte) bool { return b[0] == 1 },
	}
	intFormat = &entryFormat[int64]{
		width: 8,
		put:   func(b []byte, v int64) { binary.LittleEndian.PutUint64(b, uint64(v)) },
		get:   func(b []byte) int64 { return int64(binary.LittleEndian.Uint64(b)) },
	}
	uintFormat = &entryFormat[uint64]{
		width: 8,
		put:   func(b []byte, v uint64) { binary.LittleEndian.PutUint64(b, v) },
		get:   func(b []byte) uint64 { return binary.LittleEndian.Uint64(b) },
	}
	floatFormat = &entryFormat[float64]{
		width: 8,
		put:   func(b []byte, v float64) { binary.LittleEndian.PutUint64(b, math.Float64bits(v)) },
		get:   func(b []byte) float64 { return math.Float64frombits(binary.LittleEndian.Uint64(b)) },
	}
)

type block[V any] struct {
	plain  []entry[V]
	packed []byte
}

// blockLog is an append-only log of entries split into blocks of
// blockSize entries. The block being written is current. The last
// completed block stays plain in buffer so that a search oscillating
// around a block boundary does not pack and unpack on every step.
// Older blocks are packed through the codec when one is configured.
type blockLog[V any] struct {
	blockSize int
	codec     Codec
	format    *entryFormat[V]

	blocks  []block[V]
	buffer  []entry[V]
	current []entry[V]
	size    int

	packedBytes int
	scratch     []byte
}

func newBlockLog[V any](blockSize int, codec Codec, format *entryFormat[V]) blockLog[V] {
	return blockLog[V]{
		blockSize: blockSize,
		codec:     codec,
		format:    format,
		current:   make([]entry[V], 0, blockSize),
	}
}

func (l *blockLog[V]) Len() int {
	return l.size
}

func (l *blockLog[V]) push(e entry[V]) {
	if len(l.current) == l.blockSize {
		if l.buffer != nil {
			l.blocks = append(l.blocks, l.store(l.buffer))
		}
		l.buffer = l.current
		l.current = make([]entry[V], 0, l.blockSize)
	}
	l.current = append(l.current, e)
	l.size++
}

func (l *blockLog[V]) pop() entry[V] {
	if len(l.current) == 0 {
		if l.buffer != nil {
			l.current = l.buffer
			l.buffer = nil
		} else {
			last := l.blocks[len(l.blocks)-1]
			l.blocks = l.blocks[:len(l.blocks)-1]
			l.current = l.load(last)
		}
	}
	e := l.current[len(l.current)-1]
	l.current = l.current[:len(l.current)-1]
	l.size--
	return e
}

// popTo removes entries until n remain, handing each to undo newest
// first.
func (l *blockLog[V]) popTo(n int, undo func(entry[V])) {
	if n > l.size {
		panic(fmt.Sprintf("trail: cannot rewind log of %d entries to %d", l.size, n))
	}
	for l.size > n {
		undo(l.pop())
	}
}

func (l *blockLog[V]) packing() bool {
	return l.codec != nil && l.format != nil
}

func (l *blockLog[V]) store(entries []entry[V]) block[V] {
	if !l.packing() {
		return block[V]{plain: entries}
	}
	stride := 4 + l.format.width
	need := stride * len(entries)
	if cap(l.scratch) < need {
		l.scratch = make([]byte, need)
	}
	raw := l.scratch[:need]
	for i, e := range entries {
		b := raw[i*stride:]
		binary.LittleEndian.PutUint32(b, e.slot)
		l.format.put(b[4:], e.old)
	}
	packed := l.codec.Pack(nil, raw)
	l.packedBytes += len(packed)
	return block[V]{packed: packed}
}

func (l *blockLog[V]) load(b block[V]) []entry[V] {
	if b.packed == nil {
		return b.plain
	}
	raw, err := l.codec.Unpack(l.scratch, b.packed)
	if err != nil {
		panic(fmt.Sprintf("trail: corrupt packed block: %v", err))
	}
	l.scratch = raw
	l.packedBytes -= len(b.packed)
	stride := 4 + l.format.width
	if len(raw)%stride != 0 {
		panic(fmt.Sprintf("trail: packed block of %d bytes is not a multiple of %d", len(raw), stride))
	}
	entries := make([]entry[V], len(raw)/stride, l.blockSize)
	for i := range entries {
		b := raw[i*stride:]
		entries[i] = entry[V]{
			slot: binary.LittleEndian.Uint32(b),
			old:  l.format.get(b[4:]),
		}
	}
	return entries
}

func (l *blockLog[V]) packedBlocks() int {
	n := 0
	for _, b := range l.blocks {
		if b.packed != nil {
			n++
		}
	}
	return n
}
