package rbtree

// insertFixup restores the red-black properties after nodeIdx was attached
// as a red leaf. Only two properties can be broken at this point: the root
// may be red (nodeIdx is the root) or nodeIdx may have a red parent.
//
// The loop invariant is that nodeIdx is red and the only possible red-red
// edge in the tree is the one between nodeIdx and its parent. Every
// iteration either moves nodeIdx two levels up (case A) or ends the loop
// with a rotation (cases B and C), so it runs at most height/2 times.
func (tree *Tree) insertFixup(nodeIdx uint32) {
	alloc := tree.storage()

	for nodeIdx != tree.root && alloc[alloc[nodeIdx].parent].color == Red {
		tree.stats.FixupIterations++

		parent := alloc[nodeIdx].parent
		// A red parent is never the root, so the grandparent exists.
		grandparent := alloc[parent].parent
		doAssert(grandparent != 0, "red node %d has no parent", parent)

		parentIsLeft := parent == alloc[grandparent].left

		var uncle uint32
		if parentIsLeft {
			uncle = alloc[grandparent].right
		} else {
			uncle = alloc[grandparent].left
		}

		// Case A: parent and uncle are both red.
		// Then paint both black and make grandparent red.
		if getColor(uncle, alloc) == Red {
			alloc[parent].color = Black
			alloc[uncle].color = Black
			alloc[grandparent].color = Red
			tree.stats.Recolors += 3
			tree.stats.CaseA++

			nodeIdx = grandparent

			continue
		}

		// Case B: uncle is black and nodeIdx is the inner grandchild.
		// Rotate it to the outside; the old parent becomes the red child.
		if parentIsLeft && nodeIdx == alloc[parent].right {
			nodeIdx = parent
			tree.rotateLeft(nodeIdx)
			tree.stats.CaseB++
		} else if !parentIsLeft && nodeIdx == alloc[parent].left {
			nodeIdx = parent
			tree.rotateRight(nodeIdx)
			tree.stats.CaseB++
		}

		// Case C: uncle is black and nodeIdx is the outer grandchild.
		parent = alloc[nodeIdx].parent
		alloc[parent].color = Black
		alloc[grandparent].color = Red
		tree.stats.Recolors += 2
		tree.stats.CaseC++

		if parentIsLeft {
			tree.rotateRight(grandparent)
		} else {
			tree.rotateLeft(grandparent)
		}
	}

	if alloc[tree.root].color == Red {
		tree.stats.Recolors++
	}

	alloc[tree.root].color = Black
}
