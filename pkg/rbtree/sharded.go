package rbtree

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// SyncTree is a Tree guarded by a readers-writer lock.
type SyncTree struct {
	tree *Tree
	mu   sync.RWMutex
}

// NewSyncTree wraps a fresh tree backed by arena.
func NewSyncTree(arena *Arena) *SyncTree {
	return &SyncTree{tree: New(arena)}
}

// Insert adds key and value under the write lock.
func (st *SyncTree) Insert(key, value int) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	return st.tree.Insert(key, value)
}

// Search looks key up under the read lock.
func (st *SyncTree) Search(key int) (int, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()

	return st.tree.Search(key)
}

// Len returns the number of nodes.
func (st *SyncTree) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()

	return st.tree.Len()
}

// Stats returns the cumulative fixup counters.
func (st *SyncTree) Stats() Stats {
	st.mu.RLock()
	defer st.mu.RUnlock()

	return st.tree.Stats()
}

// Validate runs [Tree.Validate] under the read lock.
func (st *SyncTree) Validate() error {
	st.mu.RLock()
	defer st.mu.RUnlock()

	return st.tree.Validate()
}

// Height returns the height of the tree.
func (st *SyncTree) Height() int {
	st.mu.RLock()
	defer st.mu.RUnlock()

	return st.tree.Height()
}

// Hibernate compresses the arena under the write lock.
func (st *SyncTree) Hibernate() error {
	st.mu.Lock()
	defer st.mu.Unlock()

	return st.tree.arena.Hibernate()
}

// Boot restores a hibernated arena under the write lock.
func (st *SyncTree) Boot() error {
	st.mu.Lock()
	defer st.mu.Unlock()

	return st.tree.arena.Boot()
}

// View calls fn with the underlying tree while holding the read lock.
// fn must not mutate the tree.
func (st *SyncTree) View(fn func(tree *Tree)) {
	st.mu.RLock()
	defer st.mu.RUnlock()

	fn(st.tree)
}

// ShardConfig configures a ShardedTree.
type ShardConfig struct {
	// Shards is the number of independent trees. Values below 1 mean 1.
	Shards int

	// ArenaCapacity is the initial node capacity of every shard's arena.
	ArenaCapacity int

	// MaxNodes caps the total number of nodes over all shards, however keys
	// are distributed. Zero means no cap.
	MaxNodes int

	// HibernationThreshold is forwarded to every shard's arena.
	HibernationThreshold int
}

// ShardedTree spreads keys over independent SyncTrees to reduce lock contention.
// A key always maps to the same shard, so Search finds what Insert stored.
type ShardedTree struct {
	shards []*SyncTree

	// reserved counts nodes inserted or being inserted, checked against limit.
	reserved atomic.Int64
	limit    int64
}

// NewShardedTree creates a ShardedTree with its own arena per shard.
func NewShardedTree(cfg ShardConfig) *ShardedTree {
	shardCount := max(cfg.Shards, 1)
	shards := make([]*SyncTree, shardCount)

	for idx := range shards {
		arena := NewArena(cfg.ArenaCapacity / shardCount)
		arena.HibernationThreshold = cfg.HibernationThreshold
		shards[idx] = NewSyncTree(arena)
	}

	return &ShardedTree{shards: shards, limit: int64(max(cfg.MaxNodes, 0))}
}

func (sharded *ShardedTree) shardFor(key int) *SyncTree {
	idx := key % len(sharded.shards)
	if idx < 0 {
		idx += len(sharded.shards)
	}

	return sharded.shards[idx]
}

// Shards returns the underlying trees.
func (sharded *ShardedTree) Shards() []*SyncTree {
	return sharded.shards
}

// Insert adds key and value to the shard that owns key. Once MaxNodes nodes
// are stored it fails with ErrArenaExhausted.
func (sharded *ShardedTree) Insert(key, value int) error {
	if sharded.limit == 0 {
		return sharded.shardFor(key).Insert(key, value)
	}

	if sharded.reserved.Add(1) > sharded.limit {
		sharded.reserved.Add(-1)

		return fmt.Errorf("%w: %d nodes allocated over all shards", ErrArenaExhausted, sharded.limit)
	}

	err := sharded.shardFor(key).Insert(key, value)
	if err != nil {
		sharded.reserved.Add(-1)
	}

	return err
}

// Search looks key up in the shard that owns key.
func (sharded *ShardedTree) Search(key int) (int, bool) {
	return sharded.shardFor(key).Search(key)
}

// Len returns the number of nodes over all shards.
func (sharded *ShardedTree) Len() int {
	total := 0

	for _, shard := range sharded.shards {
		total += shard.Len()
	}

	return total
}

// Stats returns the fixup counters summed over all shards.
func (sharded *ShardedTree) Stats() Stats {
	var total Stats

	for _, shard := range sharded.shards {
		total = total.Add(shard.Stats())
	}

	return total
}

// Validate validates every shard and joins the violations.
func (sharded *ShardedTree) Validate() error {
	var errs []error

	for idx, shard := range sharded.shards {
		err := shard.Validate()
		if err != nil {
			errs = append(errs, fmt.Errorf("shard %d: %w", idx, err))
		}
	}

	return errors.Join(errs...)
}

// Hibernate hibernates all shards in parallel.
func (sharded *ShardedTree) Hibernate() error {
	return sharded.each((*SyncTree).Hibernate)
}

// Boot boots all shards in parallel.
func (sharded *ShardedTree) Boot() error {
	return sharded.each((*SyncTree).Boot)
}

func (sharded *ShardedTree) each(fn func(*SyncTree) error) error {
	var group errgroup.Group

	for idx, shard := range sharded.shards {
		group.Go(func() error {
			err := fn(shard)
			if err != nil {
				return fmt.Errorf("shard %d: %w", idx, err)
			}

			return nil
		})
	}

	return group.Wait() //nolint:wrapcheck // errors are already annotated per shard.
}
