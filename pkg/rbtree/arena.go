package rbtree

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/Sumatoshi-tech/redblack/pkg/safeconv"
)

// Allocation errors.
var (
	// ErrArenaExhausted is returned when the arena cannot hand out another node.
	ErrArenaExhausted = errors.New("arena exhausted")

	// ErrHibernated is returned when a hibernated arena is asked to allocate.
	ErrHibernated = errors.New("arena is hibernated")
)

// growCapacityNumerator and growCapacityDenominator define the 3/2 growth factor for storage.
const (
	growCapacityNumerator   = 3
	growCapacityDenominator = 2
)

// maxHandle is the largest index the arena will ever hand out.
// [math.MaxUint32] stays unused so that handle arithmetic never wraps.
const maxHandle = math.MaxUint32 - 1

// Column indices of a hibernated arena.
const (
	colKey = iota
	colValue
	colParent
	colLeft
	colRight
	colColor
	columnCount
)

// Arena is the node allocator backing one or more trees.
//
// Nodes are addressed by uint32 handles into a single slice. Handle 0 is
// reserved and doubles as the "absent" link, so the zero value of a link
// means no child (or no parent for a root). Nodes are never freed one by
// one: the arena is released as a whole when it is dropped.
type Arena struct {
	storage []node

	hibernatedData [columnCount][]byte
	hibernatedLen  int
	hibernated     bool

	// MaxNodes caps the number of nodes the arena will allocate.
	// Zero means the whole uint32 handle space.
	MaxNodes int

	// HibernationThreshold is the minimal storage size Hibernate compresses.
	HibernationThreshold int
}

// NewArena creates an arena with room for capacity nodes before it first grows.
func NewArena(capacity int) *Arena {
	if capacity < 0 {
		capacity = 0
	}

	storage := make([]node, 1, capacity+1)

	return &Arena{storage: storage}
}

// Size returns the number of slots, including the reserved one.
func (arena *Arena) Size() int {
	if arena.hibernated {
		return arena.hibernatedLen
	}

	return len(arena.storage)
}

// Used returns the number of allocated nodes.
func (arena *Arena) Used() int {
	size := arena.Size()
	if size == 0 {
		return 0
	}

	return size - 1
}

// CompressedSize returns the number of bytes held by a hibernated arena, or 0.
func (arena *Arena) CompressedSize() int {
	total := 0

	for _, column := range arena.hibernatedData {
		total += len(column)
	}

	return total
}

// Hibernated reports whether the arena is currently compressed.
func (arena *Arena) Hibernated() bool {
	return arena.hibernated
}

// Clone copies an existing arena. Trees bound to the original can be rebound
// to the copy with [Tree.CloneShallow].
func (arena *Arena) Clone() *Arena {
	if arena.hibernated {
		panic("cannot clone a hibernated arena")
	}

	clone := &Arena{
		storage:              make([]node, len(arena.storage), cap(arena.storage)),
		MaxNodes:             arena.MaxNodes,
		HibernationThreshold: arena.HibernationThreshold,
	}
	copy(clone.storage, arena.storage)

	return clone
}

// Hibernate compresses the allocated memory. Below HibernationThreshold it
// does nothing; on an already hibernated arena it does nothing either.
func (arena *Arena) Hibernate() error {
	if arena.hibernated || len(arena.storage) < arena.HibernationThreshold {
		return nil
	}

	size := len(arena.storage)
	keys := make([]int64, size)
	values := make([]int64, size)
	links := [3][]uint32{make([]uint32, size), make([]uint32, size), make([]uint32, size)}
	colors := make([]uint32, size)

	// We deinterleave to achieve a better compression ratio.
	for idx, nd := range arena.storage {
		keys[idx] = int64(nd.key)
		values[idx] = int64(nd.value)
		links[0][idx] = nd.parent
		links[1][idx] = nd.left
		links[2][idx] = nd.right

		if nd.color == Black {
			colors[idx] = 1
		}
	}

	var (
		compressed [columnCount][]byte
		errs       [columnCount]error
		wg         sync.WaitGroup
	)

	pack := func(col int, fn func() ([]byte, error)) {
		wg.Add(1)

		go func() {
			defer wg.Done()

			compressed[col], errs[col] = fn()
		}()
	}

	pack(colKey, func() ([]byte, error) { return compressSlice(keys) })
	pack(colValue, func() ([]byte, error) { return compressSlice(values) })
	pack(colParent, func() ([]byte, error) { return CompressUInt32Slice(links[0]) })
	pack(colLeft, func() ([]byte, error) { return CompressUInt32Slice(links[1]) })
	pack(colRight, func() ([]byte, error) { return CompressUInt32Slice(links[2]) })
	pack(colColor, func() ([]byte, error) { return CompressUInt32Slice(colors) })

	wg.Wait()

	err := errors.Join(errs[:]...)
	if err != nil {
		return fmt.Errorf("hibernate arena: %w", err)
	}

	arena.hibernatedData = compressed
	arena.hibernatedLen = size
	arena.hibernated = true
	arena.storage = nil

	return nil
}

// Boot performs the opposite of Hibernate - decompresses and restores the allocated memory.
func (arena *Arena) Boot() error {
	if !arena.hibernated {
		return nil
	}

	size := arena.hibernatedLen
	keys := make([]int64, size)
	values := make([]int64, size)
	links := [3][]uint32{make([]uint32, size), make([]uint32, size), make([]uint32, size)}
	colors := make([]uint32, size)

	var (
		errs [columnCount]error
		wg   sync.WaitGroup
	)

	unpack := func(col int, fn func([]byte) error) {
		wg.Add(1)

		go func() {
			defer wg.Done()

			errs[col] = fn(arena.hibernatedData[col])
		}()
	}

	unpack(colKey, func(data []byte) error { return decompressSlice(data, keys) })
	unpack(colValue, func(data []byte) error { return decompressSlice(data, values) })
	unpack(colParent, func(data []byte) error { return DecompressUInt32Slice(data, links[0]) })
	unpack(colLeft, func(data []byte) error { return DecompressUInt32Slice(data, links[1]) })
	unpack(colRight, func(data []byte) error { return DecompressUInt32Slice(data, links[2]) })
	unpack(colColor, func(data []byte) error { return DecompressUInt32Slice(data, colors) })

	wg.Wait()

	err := errors.Join(errs[:]...)
	if err != nil {
		return fmt.Errorf("boot arena: %w", err)
	}

	capSize := (size * growCapacityNumerator) / growCapacityDenominator
	storage := make([]node, size, capSize)

	for idx := range storage {
		nd := &storage[idx]
		nd.key = int(keys[idx])
		nd.value = int(values[idx])
		nd.parent = links[0][idx]
		nd.left = links[1][idx]
		nd.right = links[2][idx]
		nd.color = colors[idx] > 0
	}

	arena.storage = storage
	arena.hibernatedData = [columnCount][]byte{}
	arena.hibernatedLen = 0
	arena.hibernated = false

	return nil
}

// alloc reserves a fresh red node and returns its handle.
func (arena *Arena) alloc(key, value int) (uint32, error) {
	if arena.hibernated {
		return 0, ErrHibernated
	}

	limit := int64(maxHandle)
	if arena.MaxNodes > 0 && int64(arena.MaxNodes) < limit {
		limit = int64(arena.MaxNodes)
	}

	if len(arena.storage) == 0 {
		// Zero is reserved.
		arena.storage = append(arena.storage, node{})
	}

	used := len(arena.storage) - 1
	if int64(used) >= limit {
		return 0, fmt.Errorf("%w: %d nodes allocated", ErrArenaExhausted, used)
	}

	handle := safeconv.MustIntToUint32(len(arena.storage))
	arena.storage = append(arena.storage, node{key: key, value: value, color: Red})

	return handle, nil
}
