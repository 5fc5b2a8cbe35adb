package rbtree

import (
	"errors"
	"fmt"
)

// Red-black property violations reported by [Tree.Validate].
var (
	ErrRedRoot      = errors.New("root is red")
	ErrRedViolation = errors.New("red node has a red child")
	ErrBlackHeight  = errors.New("unbalanced black height")
	ErrOrder        = errors.New("keys out of order")
	ErrBrokenLink   = errors.New("parent link does not match child link")
	ErrCount        = errors.New("node count mismatch")
)

// Validate checks every red-black and binary-search-tree property and
// returns the first violation found, or nil.
func (tree *Tree) Validate() error {
	alloc := tree.storage()

	if tree.root == 0 {
		if tree.count != 0 {
			return fmt.Errorf("%w: empty tree with count %d", ErrCount, tree.count)
		}

		return nil
	}

	if alloc[tree.root].parent != 0 {
		return fmt.Errorf("%w: root %d has parent %d", ErrBrokenLink, tree.root, alloc[tree.root].parent)
	}

	if alloc[tree.root].color != Black {
		return fmt.Errorf("%w: key %d", ErrRedRoot, alloc[tree.root].key)
	}

	walker := validator{alloc: alloc}

	_, err := walker.walk(tree.root, 1)
	if err != nil {
		return err
	}

	if walker.visited != tree.count {
		return fmt.Errorf("%w: reached %d nodes, tree counts %d", ErrCount, walker.visited, tree.count)
	}

	return nil
}

type validator struct {
	alloc   []node
	last    int
	visited int
}

// walk visits the subtree in order and returns its black height.
func (v *validator) walk(nodeIdx uint32, depth int) (int, error) {
	if nodeIdx == 0 {
		return 0, nil
	}

	if depth > len(v.alloc) {
		return 0, fmt.Errorf("%w: cycle through node %d", ErrBrokenLink, nodeIdx)
	}

	nd := v.alloc[nodeIdx]

	for _, child := range [2]uint32{nd.left, nd.right} {
		if child == 0 {
			continue
		}

		if v.alloc[child].parent != nodeIdx {
			return 0, fmt.Errorf("%w: node %d lists child %d whose parent is %d",
				ErrBrokenLink, nodeIdx, child, v.alloc[child].parent)
		}

		if nd.color == Red && v.alloc[child].color == Red {
			return 0, fmt.Errorf("%w: keys %d and %d", ErrRedViolation, nd.key, v.alloc[child].key)
		}
	}

	leftHeight, err := v.walk(nd.left, depth+1)
	if err != nil {
		return 0, err
	}

	// Duplicate keys are allowed, so in-order keys only have to be non-decreasing.
	if v.visited > 0 && nd.key < v.last {
		return 0, fmt.Errorf("%w: %d follows %d", ErrOrder, nd.key, v.last)
	}

	v.last = nd.key
	v.visited++

	rightHeight, err := v.walk(nd.right, depth+1)
	if err != nil {
		return 0, err
	}

	if leftHeight != rightHeight {
		return 0, fmt.Errorf("%w: node %d has %d on the left and %d on the right",
			ErrBlackHeight, nd.key, leftHeight, rightHeight)
	}

	if nd.color == Black {
		leftHeight++
	}

	return leftHeight, nil
}

// Height returns the number of nodes on the longest root-to-leaf path.
func (tree *Tree) Height() int {
	return height(tree.root, tree.storage())
}

func height(nodeIdx uint32, alloc []node) int {
	if nodeIdx == 0 {
		return 0
	}

	return 1 + max(height(alloc[nodeIdx].left, alloc), height(alloc[nodeIdx].right, alloc))
}

// BlackHeight returns the number of black nodes on the leftmost path from the
// root, root excluded. For a valid tree this is the same on every path.
func (tree *Tree) BlackHeight() int {
	alloc := tree.storage()
	blacks := 0

	for nodeIdx := tree.root; nodeIdx != 0; nodeIdx = alloc[nodeIdx].left {
		if nodeIdx != tree.root && alloc[nodeIdx].color == Black {
			blacks++
		}
	}

	return blacks
}
