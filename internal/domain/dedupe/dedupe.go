// Package dedupe keeps frame ingestion idempotent across provider retries.
package dedupe

import (
	"context"
	"sync"
	"sync/atomic"
)

// Deduper records ingested frame indices so a retried provider batch never
// duplicates FrameObservations.
type Deduper interface {
	// SeenAndRecord atomically checks if frame was seen and records it if not.
	// Returns true if frame was already seen, false if it was newly recorded.
	// This is the ONLY method for deduplication - thread-safe and atomic.
	SeenAndRecord(ctx context.Context, frame int64) bool

	// Unrecord removes a frame index from the seen set, allowing it to be
	// retried. This should only be used when an observation was recorded but
	// failed to be handed downstream (e.g., queue backpressure).
	Unrecord(ctx context.Context, frame int64)

	Size() int64
}

// node represents a single entry in the linked list
type node struct {
	frame int64
	next  *node
}

// reset clears the node state for reuse
func (n *node) reset() {
	n.frame = 0
	n.next = nil
}

// inMemoryDeduper implements Deduper using an in-memory linked list with
// oldest-first eviction.
// For bounded mode (maxSize > 0): uses linked list with eviction and sync.Pool for nodes
// For unbounded mode (maxSize <= 0): uses simple map (no eviction, no size limit)
type inMemoryDeduper struct {
	mu       sync.RWMutex
	seen     map[int64]*node // frame -> node pointer for bounded mode, nil for unbounded
	head     *node           // head of linked list (most recently added)
	maxSize  int             // maximum number of frames to keep in memory (0 or negative = UNBOUNDED)
	size     atomic.Int64    // current number of entries (atomic)
	nodePool sync.Pool       // pool for reusing node objects
}

// NewInMemoryDeduper creates a new in-memory deduper with configuration options.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{
		maxSize: 50000, // default max size
	}

	// Apply all options
	for _, opt := range opts {
		opt(d)
	}

	// Initialize the seen map
	d.seen = make(map[int64]*node)

	// Initialize sync.Pool for node reuse in bounded mode
	if d.maxSize > 0 {
		d.nodePool = sync.Pool{
			New: func() interface{} {
				return &node{}
			},
		}
	}

	return d
}

// SeenAndRecord atomically checks if frame was seen and records it if not.
// This is the ONLY method for deduplication.
// Returns true if frame was already seen, false if it was newly recorded.
func (d *inMemoryDeduper) SeenAndRecord(ctx context.Context, frame int64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	// Check if already seen
	if _, exists := d.seen[frame]; exists {
		return true // Already seen
	}

	if d.maxSize > 0 {
		// BOUNDED MODE: Use linked list with oldest-first eviction
		// Check if we need to evict before adding the new entry
		if len(d.seen) >= d.maxSize {
			d.evictOldest()
		}

		// Create new node from pool
		n := d.nodePool.Get().(*node)
		n.frame = frame
		n.next = d.head

		// Update head and map
		d.head = n
		d.seen[frame] = n
	} else {
		// UNBOUNDED MODE: Just use map
		d.seen[frame] = nil
	}
	d.size.Add(1)
	return false // Newly recorded
}

// Unrecord removes a frame index from the seen set, allowing it to be retried.
func (d *inMemoryDeduper) Unrecord(ctx context.Context, frame int64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.maxSize > 0 {
		// BOUNDED MODE: Remove from linked list and map
		if node, exists := d.seen[frame]; exists {
			// Remove from map
			delete(d.seen, frame)

			// Remove from linked list
			if d.head == node {
				// Node is at head
				d.head = node.next
			} else {
				// Find and remove node from middle/tail
				current := d.head
				for current != nil && current.next != node {
					current = current.next
				}
				if current != nil {
					current.next = node.next
				}
			}

			// Return node to pool
			node.reset()
			d.nodePool.Put(node)

			d.size.Add(-1)
		}
	} else {
		// UNBOUNDED MODE: Just remove from map
		if _, exists := d.seen[frame]; exists {
			delete(d.seen, frame)
			d.size.Add(-1)
		}
	}
}

// evictOldest removes the least recently added entry (tail of list) from the
// map. Must be called with d.mu.Lock() held.
func (d *inMemoryDeduper) evictOldest() {
	if len(d.seen) == 0 || d.head == nil {
		return
	}

	// Find the second-to-last node
	var prev *node
	current := d.head

	// If there's only one node, remove it
	if current.next == nil {
		delete(d.seen, current.frame)
		current.reset()
		d.nodePool.Put(current)
		d.head = nil
		d.size.Add(-1)
		return
	}

	// Find the second-to-last node
	for current.next != nil {
		prev = current
		current = current.next
	}

	// Remove the last node (tail)
	if prev != nil {
		prev.next = nil
		delete(d.seen, current.frame)
		current.reset()
		d.nodePool.Put(current)
		d.size.Add(-1)
	}
}

// Size returns the current number of entries in the deduper.
func (d *inMemoryDeduper) Size() int64 {
	return d.size.Load()
}
