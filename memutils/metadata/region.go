package metadata

import "github.com/vkngwrapper/umalloc/memutils/arena"

// Region describes one block found while walking the heap in address order
type Region struct {
	// Addr is the address of the block header
	Addr arena.Addr
	// Size is the total size of the block, header included
	Size int
	// Free is true if the block is not allocated
	Free bool
	// Sentinel is true for the free list's head marker, which is allocated but never owned by a caller
	Sentinel bool
	// Extent is the ID of the extent the block lives in
	Extent int
}

// Payload returns the address handed to the caller for an allocated region
func (r Region) Payload() arena.Addr {
	return r.Addr.Add(HeaderSize)
}
