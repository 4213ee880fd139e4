package windowdir

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

// DefaultCapacity is the number of windows the server keeps by default.
const DefaultCapacity = 100

// ErrCapacity is returned by a rejecting directory when an update holds
// more windows than it may keep.
var ErrCapacity = errors.New("window list exceeds directory capacity")

// OverflowPolicy decides what happens to updates larger than the capacity.
type OverflowPolicy string

const (
	// OverflowTruncate keeps the first Capacity windows and drops the rest.
	OverflowTruncate OverflowPolicy = "truncate"
	// OverflowReject refuses the whole update and keeps the previous list.
	OverflowReject OverflowPolicy = "reject"
)

// ParseOverflowPolicy accepts "truncate" or "reject"; empty means truncate.
func ParseOverflowPolicy(s string) (OverflowPolicy, error) {
	switch OverflowPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", OverflowTruncate:
		return OverflowTruncate, nil
	case OverflowReject:
		return OverflowReject, nil
	default:
		return "", fmt.Errorf("unknown overflow policy %q (want truncate or reject)", s)
	}
}

// Directory is the server-side window array. It is owned by the server
// event loop and not safe for concurrent use.
type Directory struct {
	capacity int
	policy   OverflowPolicy
	entries  []Snapshot
}

// NewDirectory creates an empty directory. A capacity <= 0 selects
// DefaultCapacity.
func NewDirectory(capacity int, policy OverflowPolicy) *Directory {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if policy == "" {
		policy = OverflowTruncate
	}
	return &Directory{capacity: capacity, policy: policy}
}

func (d *Directory) Capacity() int          { return d.capacity }
func (d *Directory) Policy() OverflowPolicy { return d.policy }

// Set replaces the whole list. dropped is the number of windows cut by the
// truncate policy.
func (d *Directory) Set(list []Snapshot) (dropped int, err error) {
	if len(list) > d.capacity {
		if d.policy == OverflowReject {
			return 0, fmt.Errorf("%w: %d windows, capacity %d", ErrCapacity, len(list), d.capacity)
		}
		dropped = len(list) - d.capacity
		list = list[:d.capacity]
	}
	d.entries = append(d.entries[:0:0], list...)
	return dropped, nil
}

// Snapshots returns a copy of the current list.
func (d *Directory) Snapshots() []Snapshot {
	return append([]Snapshot(nil), d.entries...)
}

// Payload returns the count and packed records for a window_states event.
func (d *Directory) Payload() (uint32, []byte) {
	return uint32(len(d.entries)), Encode(d.entries)
}

// Cache is the client-side copy of the directory. Updates are all or
// nothing: a rejected payload leaves the previous list in place.
type Cache struct {
	mu      sync.RWMutex
	entries []Snapshot
}

// Apply decodes a window_states payload and replaces the cache on success.
func (c *Cache) Apply(count uint32, data []byte) error {
	list, err := Decode(count, data)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.entries = list
	c.mu.Unlock()
	return nil
}

// Snapshots returns a copy of the cached list.
func (c *Cache) Snapshots() []Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Snapshot(nil), c.entries...)
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
