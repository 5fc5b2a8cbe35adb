package rbtree //nolint:testpackage // tests require access to unexported fields (storage, root, links).

import (
	"math"
	"math/rand"
	"slices"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// demoKeys is the insertion order of the demonstration sequence.
var demoKeys = []int{10, 5, 15, 3, 7, 12, 17, 1, 9, 14, 20, 8, 11, 18, 6, 2}

func testNewTree(tb testing.TB, keys ...int) *Tree {
	tb.Helper()

	tree := New(NewArena(len(keys)))

	for _, key := range keys {
		require.NoError(tb, tree.Insert(key, key))
	}

	return tree
}

// inorder lists the keys of the subtree rooted at nodeIdx in order.
func inorder(nodeIdx uint32, alloc []node) []int {
	if nodeIdx == 0 {
		return nil
	}

	keys := inorder(alloc[nodeIdx].left, alloc)
	keys = append(keys, alloc[nodeIdx].key)

	return append(keys, inorder(alloc[nodeIdx].right, alloc)...)
}

// shapeString renders a subtree as "(key color left right)".
func shapeString(shape *Shape) string {
	if shape == nil {
		return "."
	}

	color := "B"
	if shape.Red() {
		color = "R"
	}

	return "(" + strconv.Itoa(shape.Key) + color + " " + shapeString(shape.Left) + " " + shapeString(shape.Right) + ")"
}

// assertContractPanic checks that fn panics with an error wrapping ErrContractViolation.
func assertContractPanic(t *testing.T, fn func()) {
	t.Helper()

	defer func() {
		recovered := recover()
		require.NotNil(t, recovered)

		err, ok := recovered.(error)
		require.True(t, ok)
		assert.ErrorIs(t, err, ErrContractViolation)
	}()

	fn()
}

func heightBound(count int) int {
	return int(math.Floor(2 * math.Log2(float64(count+1))))
}

func TestEmpty(t *testing.T) {
	t.Parallel()

	tree := New(nil)

	assert.Equal(t, 0, tree.Len())
	assert.False(t, tree.Root().Valid())
	assert.Equal(t, Black, tree.RootColor())
	assert.Equal(t, 0, tree.Height())
	assert.Nil(t, tree.Shape())
	require.NoError(t, tree.Validate())

	for _, key := range []int{0, 1, -1, 99, math.MaxInt, math.MinInt} {
		_, found := tree.Search(key)
		assert.False(t, found, "key %d", key)
	}
}

func TestInsertSingle(t *testing.T) {
	t.Parallel()

	tree := testNewTree(t, 42)

	assert.Equal(t, 1, tree.Len())
	assert.Equal(t, Black, tree.RootColor())
	assert.Equal(t, 1, tree.Height())

	value, found := tree.Search(42)
	require.True(t, found)
	assert.Equal(t, 42, value)

	stats := tree.Stats()
	assert.Equal(t, int64(1), stats.Inserts)
	assert.Equal(t, int64(0), stats.FixupIterations)
	assert.Equal(t, int64(0), stats.Rotations)
}

func TestDemoSequence(t *testing.T) {
	t.Parallel()

	tree := testNewTree(t, demoKeys...)

	require.NoError(t, tree.Validate())
	assert.Equal(t, len(demoKeys), tree.Len())
	assert.Equal(t, Black, tree.RootColor())

	value, found := tree.Search(11)
	require.True(t, found)
	assert.Equal(t, 11, value)

	_, found = tree.Search(99)
	assert.False(t, found)

	for _, key := range demoKeys {
		value, found = tree.Search(key)
		require.True(t, found, "key %d", key)
		assert.Equal(t, key, value)
	}

	assert.Equal(t,
		"(10B (5B (2B (1R . .) (3R . .)) (8R (7B (6R . .) .) (9B . .))) "+
			"(15B (12B (11R . .) (14R . .)) (18B (17R . .) (20R . .))))",
		shapeString(tree.Shape()))
	assert.Equal(t, 5, tree.Height())
	assert.Equal(t, 2, tree.BlackHeight())
	assert.LessOrEqual(t, tree.Height(), heightBound(tree.Len()))

	assert.Equal(t, Stats{
		Inserts:         16,
		FixupIterations: 8,
		Recolors:        tree.Stats().Recolors,
		Rotations:       6,
		CaseA:           5,
		CaseB:           3,
		CaseC:           3,
	}, tree.Stats())
}

func TestAscendingTriggersRotation(t *testing.T) {
	t.Parallel()

	tree := testNewTree(t, 1, 2, 3)

	require.NoError(t, tree.Validate())
	assert.GreaterOrEqual(t, tree.Stats().Rotations, int64(1))
	assert.LessOrEqual(t, tree.Height(), 2)
	assert.Equal(t, "(2B (1R . .) (3R . .))", shapeString(tree.Shape()))
}

func TestDescendingAndZigZag(t *testing.T) {
	t.Parallel()

	descending := testNewTree(t, 3, 2, 1)
	require.NoError(t, descending.Validate())
	assert.Equal(t, "(2B (1R . .) (3R . .))", shapeString(descending.Shape()))

	// Inner grandchild on the left: Case B then Case C.
	leftZig := testNewTree(t, 3, 1, 2)
	require.NoError(t, leftZig.Validate())
	assert.Equal(t, "(2B (1R . .) (3R . .))", shapeString(leftZig.Shape()))
	assert.Equal(t, int64(1), leftZig.Stats().CaseB)
	assert.Equal(t, int64(2), leftZig.Stats().Rotations)

	// Inner grandchild on the right.
	rightZig := testNewTree(t, 1, 3, 2)
	require.NoError(t, rightZig.Validate())
	assert.Equal(t, "(2B (1R . .) (3R . .))", shapeString(rightZig.Shape()))
	assert.Equal(t, int64(1), rightZig.Stats().CaseB)
}

func TestRedUncleRecolorsToRoot(t *testing.T) {
	t.Parallel()

	tree := testNewTree(t, 2, 1, 3, 4)

	require.NoError(t, tree.Validate())
	assert.Equal(t, int64(1), tree.Stats().CaseA)
	assert.Equal(t, int64(0), tree.Stats().Rotations)
	assert.Equal(t, "(2B (1B . .) (3B . (4R . .)))", shapeString(tree.Shape()))
}

func TestSearchFromSubtree(t *testing.T) {
	t.Parallel()

	tree := testNewTree(t, demoKeys...)
	alloc := tree.storage()
	left := Handle(alloc[tree.root].left)
	right := Handle(alloc[tree.root].right)

	value, found := tree.SearchFrom(left, 6)
	require.True(t, found)
	assert.Equal(t, 6, value)

	_, found = tree.SearchFrom(left, 14)
	assert.False(t, found, "14 lives in the right subtree")

	value, found = tree.SearchFrom(right, 14)
	require.True(t, found)
	assert.Equal(t, 14, value)

	_, found = tree.SearchFrom(Handle(0), 10)
	assert.False(t, found)
}

func TestSearchFromForeignHandlePanics(t *testing.T) {
	t.Parallel()

	tree := testNewTree(t, 1, 2, 3)

	assertContractPanic(t, func() { tree.SearchFrom(Handle(999), 2) })
	assertContractPanic(t, func() { tree.SearchFrom(Handle(len(tree.storage())), 2) })

	value, found := tree.SearchFrom(Handle(len(tree.storage())-1), 3)
	require.True(t, found)
	assert.Equal(t, 3, value)
}

func TestShapeStringExtremeKeys(t *testing.T) {
	t.Parallel()

	tree := testNewTree(t, math.MinInt, 0, math.MaxInt)

	assert.Equal(t, "(0B ("+strconv.Itoa(math.MinInt)+"R . .) ("+strconv.Itoa(math.MaxInt)+"R . .))",
		shapeString(tree.Shape()))
}

func TestNegativeKeysAndValues(t *testing.T) {
	t.Parallel()

	tree := New(nil)

	for key := -50; key <= 50; key += 5 {
		require.NoError(t, tree.Insert(key, -key*3))
	}

	require.NoError(t, tree.Validate())

	value, found := tree.Search(-45)
	require.True(t, found)
	assert.Equal(t, 135, value)

	_, found = tree.Search(-44)
	assert.False(t, found)
}

func TestDuplicateKeysAreDistinctNodes(t *testing.T) {
	t.Parallel()

	tree := New(nil)
	require.NoError(t, tree.Insert(5, 1))
	require.NoError(t, tree.Insert(5, 2))
	require.NoError(t, tree.Insert(5, 3))

	assert.Equal(t, 3, tree.Len())
	require.NoError(t, tree.Validate())
	assert.Equal(t, []int{5, 5, 5}, inorder(tree.root, tree.storage()))

	value, found := tree.Search(5)
	require.True(t, found)
	assert.Contains(t, []int{1, 2, 3}, value)
}

func TestRotationPreservesInorder(t *testing.T) {
	t.Parallel()

	tree := testNewTree(t, demoKeys...)
	alloc := tree.storage()
	before := inorder(tree.root, alloc)

	// Rotate at the root, then at an inner node, then undo both.
	oldRoot := tree.root
	newRoot := alloc[oldRoot].right

	tree.rotateLeft(oldRoot)
	assert.Equal(t, newRoot, tree.root)
	assert.Equal(t, uint32(0), alloc[newRoot].parent)
	assert.Equal(t, newRoot, alloc[oldRoot].parent)
	assert.Equal(t, before, inorder(tree.root, alloc))

	inner := alloc[oldRoot].left
	require.NotZero(t, alloc[inner].left)

	tree.rotateRight(inner)
	assert.Equal(t, before, inorder(tree.root, alloc))

	tree.rotateLeft(alloc[inner].parent)
	tree.rotateRight(tree.root)
	assert.Equal(t, oldRoot, tree.root)
	assert.Equal(t, before, inorder(tree.root, alloc))
	require.NoError(t, tree.Validate())
}

func TestRotationLinks(t *testing.T) {
	t.Parallel()

	// 2 -> right 4 -> children 3, 5.
	tree := testNewTree(t, 2, 1, 4, 3, 5)
	alloc := tree.storage()
	pivot := tree.root
	child := alloc[pivot].right
	inner := alloc[child].left

	tree.rotateLeft(pivot)

	assert.Equal(t, child, tree.root)
	assert.Equal(t, pivot, alloc[child].left)
	assert.Equal(t, inner, alloc[pivot].right)
	assert.Equal(t, pivot, alloc[inner].parent)
	assert.Equal(t, child, alloc[pivot].parent)

	tree.rotateRight(child)

	assert.Equal(t, pivot, tree.root)
	assert.Equal(t, child, alloc[pivot].right)
	assert.Equal(t, inner, alloc[child].left)
	assert.Equal(t, child, alloc[inner].parent)
}

func TestRotationWithoutChildPanics(t *testing.T) {
	t.Parallel()

	tree := testNewTree(t, 1)

	assertContractPanic(t, func() { tree.rotateLeft(tree.root) })
	assertContractPanic(t, func() { tree.rotateRight(tree.root) })
	assertContractPanic(t, func() { tree.rotateLeft(0) })

	// The failed rotations left the tree untouched.
	require.NoError(t, tree.Validate())
}

func TestArenaExhaustedLeavesTreeIntact(t *testing.T) {
	t.Parallel()

	arena := NewArena(0)
	arena.MaxNodes = 3
	tree := New(arena)

	for _, key := range []int{1, 2, 3} {
		require.NoError(t, tree.Insert(key, key))
	}

	before := shapeString(tree.Shape())

	err := tree.Insert(4, 4)
	require.ErrorIs(t, err, ErrArenaExhausted)

	assert.Equal(t, 3, tree.Len())
	assert.Equal(t, before, shapeString(tree.Shape()))
	require.NoError(t, tree.Validate())

	_, found := tree.Search(4)
	assert.False(t, found)
}

func TestInsertIntoHibernatedArena(t *testing.T) {
	t.Parallel()

	tree := testNewTree(t, 1, 2, 3)
	require.NoError(t, tree.Arena().Hibernate())

	err := tree.Insert(4, 4)
	require.ErrorIs(t, err, ErrHibernated)
	assert.Equal(t, 3, tree.Len())
	assert.PanicsWithValue(t, "hibernated arenas cannot be used", func() { tree.Search(1) })

	require.NoError(t, tree.Arena().Boot())
	require.NoError(t, tree.Insert(4, 4))
	require.NoError(t, tree.Validate())
}

func TestTreesShareArena(t *testing.T) {
	t.Parallel()

	arena := NewArena(0)
	odd := New(arena)
	even := New(arena)

	for key := range 100 {
		if key%2 == 0 {
			require.NoError(t, even.Insert(key, key))
		} else {
			require.NoError(t, odd.Insert(key, key))
		}
	}

	require.NoError(t, odd.Validate())
	require.NoError(t, even.Validate())
	assert.Equal(t, 100, arena.Used())
	assert.Equal(t, 50, odd.Len())

	_, found := odd.Search(10)
	assert.False(t, found)

	_, found = even.Search(10)
	assert.True(t, found)
}

func TestCloneShallow(t *testing.T) {
	t.Parallel()

	tree := testNewTree(t, 7, 8)
	clone := tree.CloneShallow(tree.Arena().Clone())

	require.NoError(t, tree.Insert(10, 10))
	require.NoError(t, tree.Validate())
	require.NoError(t, clone.Validate())

	assert.Equal(t, 3, tree.Len())
	assert.Equal(t, 2, clone.Len())

	_, found := clone.Search(10)
	assert.False(t, found)

	require.NoError(t, clone.Insert(9, 9))
	require.NoError(t, clone.Validate())
	assert.Equal(t, []int{7, 8, 9}, inorder(clone.root, clone.storage()))
}

func TestStatsArithmetic(t *testing.T) {
	t.Parallel()

	first := Stats{Inserts: 3, Rotations: 2, CaseA: 1}
	second := Stats{Inserts: 1, Rotations: 1, CaseC: 1}

	sum := first.Add(second)
	assert.Equal(t, Stats{Inserts: 4, Rotations: 3, CaseA: 1, CaseC: 1}, sum)
	assert.Equal(t, first, sum.Sub(second))
}

func TestColorString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "red", Red.String())
	assert.Equal(t, "black", Black.String())

	text, err := Black.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "black", string(text))
}

// Randomized tests.

// oracle stores the inserted keys in a sorted slice.
type oracle struct {
	data []int
}

func (o *oracle) Insert(key int) {
	idx, _ := slices.BinarySearch(o.data, key)
	o.data = slices.Insert(o.data, idx, key)
}

func (o *oracle) Contains(key int) bool {
	_, found := slices.BinarySearch(o.data, key)

	return found
}

func TestRandomized(t *testing.T) {
	t.Parallel()

	const numKeys = 1 << 20

	orc := &oracle{}
	tree := New(nil)
	rng := rand.New(rand.NewSource(0))

	for step := range 5000 {
		key := int(rng.Int31n(numKeys)) - numKeys/2
		if orc.Contains(key) {
			continue
		}

		orc.Insert(key)
		require.NoError(t, tree.Insert(key, key*2))

		if step%250 == 0 {
			require.NoError(t, tree.Validate())
			assert.Equal(t, orc.data, inorder(tree.root, tree.storage()))
		}
	}

	require.NoError(t, tree.Validate())
	assert.Equal(t, len(orc.data), tree.Len())
	assert.Equal(t, orc.data, inorder(tree.root, tree.storage()))
	assert.LessOrEqual(t, tree.Height(), heightBound(tree.Len()))
	assert.Equal(t, Black, tree.RootColor())

	for range 2000 {
		key := int(rng.Int31n(numKeys)) - numKeys/2

		value, found := tree.Search(key)
		assert.Equal(t, orc.Contains(key), found, "key %d", key)

		if found {
			assert.Equal(t, key*2, value)
		}
	}
}

func TestSequentialHeightBound(t *testing.T) {
	t.Parallel()

	ascending := New(NewArena(4096))
	descending := New(NewArena(4096))

	for key := range 4096 {
		require.NoError(t, ascending.Insert(key, key))
		require.NoError(t, descending.Insert(-key, key))
		require.Equal(t, Black, ascending.RootColor())
	}

	for _, tree := range []*Tree{ascending, descending} {
		require.NoError(t, tree.Validate())
		assert.LessOrEqual(t, tree.Height(), heightBound(tree.Len()))
	}
}

func BenchmarkInsert(b *testing.B) {
	rng := rand.New(rand.NewSource(1))
	tree := New(NewArena(b.N))

	b.ResetTimer()

	for range b.N {
		key := rng.Int()
		_ = tree.Insert(key, key)
	}
}

func BenchmarkSearch(b *testing.B) {
	const size = 1 << 16

	tree := New(NewArena(size))

	for key := range size {
		_ = tree.Insert(key, key)
	}

	b.ResetTimer()

	for idx := range b.N {
		tree.Search(idx % size)
	}
}
