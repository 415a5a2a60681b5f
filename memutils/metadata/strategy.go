package metadata

// AllocationStrategy chooses which free block satisfies a new allocation. If none is chosen,
// first-fit is used.
type AllocationStrategy uint32

const (
	// AllocationStrategyFirstFit selects the lowest-addressed free block that is large enough. The search
	// stops at the first hit, and keeping allocations low in the heap keeps the free list short over time.
	AllocationStrategyFirstFit AllocationStrategy = iota
	// AllocationStrategyBestFit selects the smallest free block that is large enough, preferring the lowest
	// address among equally sized blocks. It always walks the whole free list unless it finds an exact fit.
	AllocationStrategyBestFit
)

var allocationStrategyMapping = map[AllocationStrategy]string{
	AllocationStrategyFirstFit: "AllocationStrategyFirstFit",
	AllocationStrategyBestFit:  "AllocationStrategyBestFit",
}

func (s AllocationStrategy) String() string {
	return allocationStrategyMapping[s]
}

// MergePolicy decides what happens to the neighbors of a block when it is freed
type MergePolicy uint32

const (
	// MergeAdjacent merges a freed block with any free block that touches it in memory within the same
	// extent. Free blocks in the list are then never adjacent, which keeps the list short and lets a
	// freed block be handed straight back to the next request of the same size.
	MergeAdjacent MergePolicy = iota
	// MergeNone leaves freed blocks exactly as they were allocated. Adjacent free blocks accumulate
	// in the list and the heap fragments over time; requests larger than any single free block grow
	// the heap even when enough adjacent free memory exists.
	MergeNone
)

var mergePolicyMapping = map[MergePolicy]string{
	MergeAdjacent: "MergeAdjacent",
	MergeNone:     "MergeNone",
}

func (p MergePolicy) String() string {
	return mergePolicyMapping[p]
}
