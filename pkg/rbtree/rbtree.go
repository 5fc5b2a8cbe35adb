// Package rbtree provides an arena-backed red-black tree mapping int keys to
// int values, with LZ4 hibernation of the arena and lock-based wrappers for
// concurrent use.
package rbtree

import (
	"fmt"
)

// Color is the color bit of a tree node.
type Color bool

// Node colors.
const (
	Red   Color = false
	Black Color = true
)

// String implements [fmt.Stringer].
func (c Color) String() string {
	if c == Black {
		return "black"
	}

	return "red"
}

// MarshalText implements [encoding.TextMarshaler].
func (c Color) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// Handle addresses a node inside the arena of its tree. The zero Handle is absent.
type Handle uint32

// Valid reports whether the handle points at a node.
func (h Handle) Valid() bool {
	return h != 0
}

type node struct {
	key, value          int
	parent, left, right uint32
	color               Color
}

// Stats are cumulative counters of the work done by Insert.
type Stats struct {
	Inserts         int64
	FixupIterations int64
	Recolors        int64
	Rotations       int64

	// CaseA counts red-uncle recolorings, CaseB inner-child rotations and
	// CaseC the terminating outer-child rotations.
	CaseA int64
	CaseB int64
	CaseC int64
}

// Add returns the element-wise sum of two Stats.
func (s Stats) Add(other Stats) Stats {
	return Stats{
		Inserts:         s.Inserts + other.Inserts,
		FixupIterations: s.FixupIterations + other.FixupIterations,
		Recolors:        s.Recolors + other.Recolors,
		Rotations:       s.Rotations + other.Rotations,
		CaseA:           s.CaseA + other.CaseA,
		CaseB:           s.CaseB + other.CaseB,
		CaseC:           s.CaseC + other.CaseC,
	}
}

// Sub returns the element-wise difference s - other.
func (s Stats) Sub(other Stats) Stats {
	return Stats{
		Inserts:         s.Inserts - other.Inserts,
		FixupIterations: s.FixupIterations - other.FixupIterations,
		Recolors:        s.Recolors - other.Recolors,
		Rotations:       s.Rotations - other.Rotations,
		CaseA:           s.CaseA - other.CaseA,
		CaseB:           s.CaseB - other.CaseB,
		CaseC:           s.CaseC - other.CaseC,
	}
}

// Tree is a red-black tree of int keys and int values.
//
// The tree is not safe for concurrent use; see [SyncTree] and [ShardedTree].
// Duplicate keys are kept as distinct nodes: an equal key is routed to the
// right subtree of the existing node, exactly like a greater key.
type Tree struct {
	// Nodes allocator.
	arena *Arena

	// Root of the tree.
	root uint32

	// Number of nodes under root, including the root.
	count int

	stats Stats
}

// New creates an empty tree whose nodes live in arena.
// A nil arena gets a fresh one.
func New(arena *Arena) *Tree {
	if arena == nil {
		arena = NewArena(0)
	}

	return &Tree{arena: arena}
}

func (tree *Tree) storage() []node {
	if tree.arena.hibernated {
		panic("hibernated arenas cannot be used")
	}

	return tree.arena.storage
}

// Arena returns the bound nodes allocator.
func (tree *Tree) Arena() *Arena {
	return tree.arena
}

// Len returns the number of nodes in the tree.
func (tree *Tree) Len() int {
	return tree.count
}

// Stats returns the cumulative fixup counters.
func (tree *Tree) Stats() Stats {
	return tree.stats
}

// Root returns the handle of the root node, or the zero Handle for an empty tree.
func (tree *Tree) Root() Handle {
	return Handle(tree.root)
}

// RootColor returns the color of the root. An empty tree reports Black.
func (tree *Tree) RootColor() Color {
	return getColor(tree.root, tree.storage())
}

// CloneShallow performs a shallow copy of the tree - the nodes are assumed to
// already exist in arena, typically an [Arena.Clone] of the original.
func (tree *Tree) CloneShallow(arena *Arena) *Tree {
	clone := *tree
	clone.arena = arena

	return &clone
}

// Insert adds a node holding key and value.
//
// Insert only fails when the arena cannot allocate the node; the tree is then
// left exactly as it was. Inserting an existing key adds a second node.
func (tree *Tree) Insert(key, value int) error {
	nodeIdx, err := tree.arena.alloc(key, value)
	if err != nil {
		return fmt.Errorf("insert key %d: %w", key, err)
	}

	tree.attach(nodeIdx)
	tree.count++
	tree.stats.Inserts++

	tree.insertFixup(nodeIdx)

	return nil
}

// attach links a freshly allocated node at the leaf position its key maps to.
func (tree *Tree) attach(nodeIdx uint32) {
	alloc := tree.storage()

	if tree.root == 0 {
		tree.root = nodeIdx

		return
	}

	key := alloc[nodeIdx].key
	parent := tree.root

	for {
		if key < alloc[parent].key {
			if alloc[parent].left == 0 {
				alloc[parent].left = nodeIdx

				break
			}

			parent = alloc[parent].left
		} else {
			if alloc[parent].right == 0 {
				alloc[parent].right = nodeIdx

				break
			}

			parent = alloc[parent].right
		}
	}

	alloc[nodeIdx].parent = parent
}

// Search returns the value stored under key.
//
// With duplicate keys the value of the first equal node met on the way down
// from the root is returned.
func (tree *Tree) Search(key int) (int, bool) {
	return tree.SearchFrom(Handle(tree.root), key)
}

// SearchFrom runs Search restricted to the subtree rooted at from.
func (tree *Tree) SearchFrom(from Handle, key int) (int, bool) {
	alloc := tree.storage()
	nodeIdx := uint32(from)

	doAssert(nodeIdx == 0 || int(nodeIdx) < len(alloc),
		"search from handle %d outside an arena of %d slots", nodeIdx, len(alloc))

	for nodeIdx != 0 {
		nd := &alloc[nodeIdx]

		switch {
		case key == nd.key:
			return nd.value, true
		case key < nd.key:
			nodeIdx = nd.left
		default:
			nodeIdx = nd.right
		}
	}

	return 0, false
}

// Shape is an immutable copy of a subtree, used for rendering and debugging.
type Shape struct {
	Left  *Shape `json:"left,omitempty"  yaml:"left,omitempty"`
	Right *Shape `json:"right,omitempty" yaml:"right,omitempty"`
	Color Color  `json:"color"           yaml:"color"`
	Key   int    `json:"key"             yaml:"key"`
	Value int    `json:"value"           yaml:"value"`
}

// Red reports whether the node is red.
func (s *Shape) Red() bool {
	return s.Color == Red
}

// Shape copies the tree structure. It returns nil for an empty tree.
func (tree *Tree) Shape() *Shape {
	return shapeOf(tree.root, tree.storage())
}

func shapeOf(nodeIdx uint32, alloc []node) *Shape {
	if nodeIdx == 0 {
		return nil
	}

	nd := alloc[nodeIdx]

	return &Shape{
		Key:   nd.key,
		Value: nd.value,
		Color: nd.color,
		Left:  shapeOf(nd.left, alloc),
		Right: shapeOf(nd.right, alloc),
	}
}

// Internal node attribute accessors.
func getColor(nodeIdx uint32, alloc []node) Color {
	if nodeIdx == 0 {
		return Black
	}

	return alloc[nodeIdx].color
}

func isLeftChild(nodeIdx uint32, alloc []node) bool {
	return nodeIdx == alloc[alloc[nodeIdx].parent].left
}
