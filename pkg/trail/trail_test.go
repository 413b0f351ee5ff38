package trail_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/operator-framework/cpkernel/pkg/trail"
)

func newTrail(t *testing.T, options ...trail.Option) *trail.Trail {
	t.Helper()
	tr, err := trail.New(options...)
	require.NoError(t, err)
	return tr
}

type snapshot struct {
	ints   []int64
	bools  []bool
	uints  []uint64
	floats []float64
	refs   []any
}

type fixture struct {
	tr     *trail.Trail
	ints   []trail.Int
	bools  []trail.Bool
	uints  []trail.Uint
	floats []trail.Float
	refs   []trail.Ref
}

func newFixture(tr *trail.Trail, n int) *fixture {
	f := &fixture{tr: tr}
	for i := 0; i < n; i++ {
		f.ints = append(f.ints, tr.NewInt(int64(i)))
		f.bools = append(f.bools, tr.NewBool(i%2 == 0))
		f.uints = append(f.uints, tr.NewUint(uint64(i)*7))
		f.floats = append(f.floats, tr.NewFloat(float64(i)/3))
		f.refs = append(f.refs, tr.NewRef(i))
	}
	return f
}

func (f *fixture) snapshot() snapshot {
	var s snapshot
	for i := range f.ints {
		s.ints = append(s.ints, f.tr.Int(f.ints[i]))
		s.bools = append(s.bools, f.tr.Bool(f.bools[i]))
		s.uints = append(s.uints, f.tr.Uint(f.uints[i]))
		s.floats = append(s.floats, f.tr.Float(f.floats[i]))
		s.refs = append(s.refs, f.tr.Ref(f.refs[i]))
	}
	return s
}

func (f *fixture) mutate(r *rand.Rand) {
	i := r.Intn(len(f.ints))
	switch r.Intn(5) {
	case 0:
		f.tr.SetInt(f.ints[i], r.Int63()-r.Int63())
	case 1:
		f.tr.SetBool(f.bools[i], r.Intn(2) == 0)
	case 2:
		f.tr.SetUint(f.uints[i], r.Uint64())
	case 3:
		f.tr.SetFloat(f.floats[i], r.NormFloat64())
	case 4:
		f.tr.SetRef(f.refs[i], r.Intn(1000))
	}
}

// runHistory interleaves random mutations with checkpoints, then
// restores checkpoints in random order (always to a live one) and
// returns the values observed after each restore.
func runHistory(t *testing.T, tr *trail.Trail, seed int64) []snapshot {
	r := rand.New(rand.NewSource(seed))
	f := newFixture(tr, 16)

	type mark struct {
		cp   trail.Checkpoint
		want snapshot
	}
	var marks []mark
	var observed []snapshot
	for step := 0; step < 2000; step++ {
		switch n := r.Intn(100); {
		case n < 80:
			f.mutate(r)
		case n < 92:
			marks = append(marks, mark{cp: tr.Checkpoint(), want: f.snapshot()})
		case len(marks) > 0:
			k := r.Intn(len(marks))
			tr.RestoreTo(marks[k].cp)
			got := f.snapshot()
			assert.Equal(t, marks[k].want, got, "restore at step %d to checkpoint %d", step, k)
			observed = append(observed, got)
			marks = marks[:k]
		}
	}
	for k := len(marks) - 1; k >= 0; k-- {
		tr.RestoreTo(marks[k].cp)
		got := f.snapshot()
		assert.Equal(t, marks[k].want, got)
		observed = append(observed, got)
	}
	return observed
}

func TestRoundTrip(t *testing.T) {
	for _, seed := range []int64{1, 2, 3, 42} {
		tr := newTrail(t, trail.WithBlockSize(7))
		runHistory(t, tr, seed)
		assert.Equal(t, 0, tr.Depth())
	}
}

func TestCompressionTransparency(t *testing.T) {
	type tc struct {
		Name  string
		Codec trail.Codec
	}

	for _, tt := range []tc{
		{Name: "noop", Codec: trail.NoopCodec{}},
		{Name: "s2", Codec: trail.S2Codec{}},
	} {
		t.Run(tt.Name, func(t *testing.T) {
			for _, seed := range []int64{5, 11, 99} {
				plain := runHistory(t, newTrail(t, trail.WithBlockSize(4)), seed)
				packed := runHistory(t, newTrail(t, trail.WithBlockSize(4), trail.WithCodec(tt.Codec)), seed)
				assert.Equal(t, plain, packed)
			}
		})
	}
}

func TestBlocksArePackedAndUnpacked(t *testing.T) {
	tr := newTrail(t, trail.WithBlockSize(2), trail.WithCodec(trail.S2Codec{}))
	x := tr.NewInt(0)
	var cps []trail.Checkpoint
	for i := 1; i <= 20; i++ {
		cps = append(cps, tr.Checkpoint())
		tr.SetInt(x, int64(i))
	}
	stats := tr.Stats()
	assert.Equal(t, 20, stats.Entries)
	// current block and staging buffer hold four entries, the rest is packed
	assert.Equal(t, 8, stats.PackedBlocks)
	assert.Greater(t, stats.PackedBytes, 0)

	for i := len(cps) - 1; i >= 0; i-- {
		tr.RestoreTo(cps[i])
		assert.Equal(t, int64(i), tr.Int(x))
	}
	stats = tr.Stats()
	assert.Equal(t, 0, stats.Entries)
	assert.Equal(t, 0, stats.PackedBlocks)
	assert.Equal(t, 0, stats.PackedBytes)
}

func TestSaveOncePerWindow(t *testing.T) {
	tr := newTrail(t)
	x := tr.NewInt(1)
	cp := tr.Checkpoint()
	for i := 0; i < 10; i++ {
		tr.AddInt(x, 1)
	}
	assert.Equal(t, int64(11), tr.Int(x))
	assert.Equal(t, 1, tr.Stats().Entries)
	tr.RestoreTo(cp)
	assert.Equal(t, int64(1), tr.Int(x))
}

func TestSlotsCreatedAfterCheckpointAreReleased(t *testing.T) {
	tr := newTrail(t)
	cp := tr.Checkpoint()
	b := tr.NewBool(true)
	assert.True(t, tr.Bool(b))
	tr.RestoreTo(cp)
	assert.Panics(t, func() { tr.Bool(b) })

	// the index is reused with a new generation
	c := tr.NewBool(false)
	assert.False(t, tr.Bool(c))
	assert.Panics(t, func() { tr.SetBool(b, true) })
	assert.Panics(t, func() { tr.Int(trail.Int{}) })
}

type resource struct {
	name     string
	released *[]string
}

func (r *resource) Release() {
	*r.released = append(*r.released, r.name)
}

func TestAllocationsReleasedExactlyOnce(t *testing.T) {
	tr := newTrail(t)
	var released []string

	outer := trail.Alloc(tr, &resource{name: "outer", released: &released})
	k := tr.Checkpoint()
	a := trail.Alloc(tr, &resource{name: "a", released: &released})
	inner := tr.Checkpoint()
	b := trail.Alloc(tr, &resource{name: "b", released: &released})
	c := trail.Alloc(tr, &resource{name: "c", released: &released})
	assert.Equal(t, "c", c.MustGet(tr).name)

	tr.RestoreTo(inner)
	assert.Equal(t, []string{"c", "b"}, released)
	_, ok := b.Lookup(tr)
	assert.False(t, ok)
	assert.Panics(t, func() { c.MustGet(tr) })
	assert.Equal(t, "a", a.MustGet(tr).name)

	later := tr.Checkpoint()
	tr.RestoreTo(later)
	assert.Equal(t, []string{"c", "b"}, released, "restoring a later checkpoint must not release older allocations")

	tr.RestoreTo(k)
	assert.Equal(t, []string{"c", "b", "a"}, released)
	assert.Equal(t, "outer", outer.MustGet(tr).name)
	assert.Equal(t, 1, tr.Stats().Allocations)
}

func TestCheckpointDiscipline(t *testing.T) {
	tr := newTrail(t)
	other := newTrail(t)

	parent := tr.Checkpoint()
	child := tr.Checkpoint()
	foreign := other.Checkpoint()

	assert.Panics(t, func() { tr.RestoreTo(foreign) })
	tr.RestoreTo(parent)
	assert.Panics(t, func() { tr.RestoreTo(child) }, "child restored after parent")
	assert.Panics(t, func() { tr.RestoreTo(parent) }, "checkpoint restored twice")
}

func TestCommit(t *testing.T) {
	tr := newTrail(t)
	x := tr.NewInt(0)
	parent := tr.Checkpoint()
	tr.SetInt(x, 1)
	child := tr.Checkpoint()
	tr.SetInt(x, 2)

	assert.Panics(t, func() { tr.Commit(parent) }, "only the newest checkpoint can be committed")
	tr.Commit(child)
	assert.Equal(t, int64(2), tr.Int(x))
	assert.Equal(t, 1, tr.Depth())

	tr.RestoreTo(parent)
	assert.Equal(t, int64(0), tr.Int(x))
}

func TestOptions(t *testing.T) {
	_, err := trail.New(trail.WithBlockSize(0))
	assert.Error(t, err)
	_, err = trail.New(trail.WithCompression("zip"))
	assert.Error(t, err)
	tr, err := trail.New(trail.WithCompression("s2"))
	assert.NoError(t, err)
	assert.NotNil(t, tr)
}

func TestCodecRoundTrip(t *testing.T) {
	src := []byte("the quick brown fox jumps over the lazy dog, the quick brown fox")
	for _, c := range []trail.Codec{trail.NoopCodec{}, trail.S2Codec{}} {
		packed := c.Pack(nil, src)
		out, err := c.Unpack(nil, packed)
		require.NoError(t, err)
		assert.Equal(t, src, out)
	}
	_, err := trail.S2Codec{}.Unpack(nil, []byte{0xff, 0xff, 0xff})
	assert.Error(t, err)
}
