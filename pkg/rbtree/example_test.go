package rbtree_test

import (
	"fmt"

	"github.com/Sumatoshi-tech/redblack/pkg/rbtree"
)

func ExampleTree() {
	tree := rbtree.New(nil)

	for _, key := range []int{1, 2, 3} {
		_ = tree.Insert(key, key*10)
	}

	value, found := tree.Search(2)
	fmt.Println(value, found)

	_, found = tree.Search(4)
	fmt.Println(found)

	shape := tree.Shape()
	fmt.Println(shape.Key, shape.Color, shape.Left.Color, shape.Right.Color)
	fmt.Println(tree.Validate())
	// Output:
	// 20 true
	// false
	// 2 black red red
	// <nil>
}
