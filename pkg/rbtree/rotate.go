package rbtree

import (
	"errors"
	"fmt"
)

// ErrContractViolation is the panic payload of internal assertion failures,
// e.g. a rotation around a node that lacks the required child.
var ErrContractViolation = errors.New("rbtree internal assertion failed")

func doAssert(condition bool, format string, args ...any) {
	if !condition {
		panic(fmt.Errorf("%w: "+format, append([]any{ErrContractViolation}, args...)...))
	}
}

// rotateDirection performs a tree rotation in the specified direction.
// IsLeft=true performs left rotation, isLeft=false performs right rotation.
//
// Left rotation:
//
//	  X              Y
//	A   Y    =>    X   C
//	  B C        A B
//
// Right rotation:
//
//	    Y            X
//	  X   C  =>    A   Y
//	A B              B C
//
//nolint:dupword // ASCII art diagrams contain intentional repeated letters.
func (tree *Tree) rotateDirection(pivot uint32, isLeft bool) {
	alloc := tree.storage()

	doAssert(pivot != 0, "rotation around the absent node")

	// Get the child in the opposite direction of rotation.
	var child uint32
	if isLeft {
		child = alloc[pivot].right
	} else {
		child = alloc[pivot].left
	}

	doAssert(child != 0, "rotation around node %d without the child to promote (left=%t)", pivot, isLeft)

	// Move the inner subtree.
	var innerSubtree uint32
	if isLeft {
		innerSubtree = alloc[child].left
		alloc[pivot].right = innerSubtree
	} else {
		innerSubtree = alloc[child].right
		alloc[pivot].left = innerSubtree
	}

	if innerSubtree != 0 {
		alloc[innerSubtree].parent = pivot
	}

	// Update parent links.
	alloc[child].parent = alloc[pivot].parent

	switch {
	case alloc[pivot].parent == 0:
		tree.root = child
	case isLeftChild(pivot, alloc):
		alloc[alloc[pivot].parent].left = child
	default:
		alloc[alloc[pivot].parent].right = child
	}

	// Complete the rotation.
	if isLeft {
		alloc[child].left = pivot
	} else {
		alloc[child].right = pivot
	}

	alloc[pivot].parent = child
	tree.stats.Rotations++
}

func (tree *Tree) rotateLeft(nodeIdx uint32) {
	tree.rotateDirection(nodeIdx, true)
}

func (tree *Tree) rotateRight(nodeIdx uint32) {
	tree.rotateDirection(nodeIdx, false)
}
