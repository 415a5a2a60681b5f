package metadata

import "github.com/vkngwrapper/umalloc/memutils/arena"

// AllocationRequestType is an enum that indicates how a free block will be used to satisfy an
// allocation. It is returned in AllocationRequest from CreateAllocationRequest.
type AllocationRequestType uint32

const (
	// AllocationRequestWhole indicates that the free block will be unlinked from the free list
	// and handed out in its entirety
	AllocationRequestWhole AllocationRequestType = iota
	// AllocationRequestSplit indicates that the high end of the free block will be carved off for
	// the allocation and the low end will stay in the free list with a reduced size
	AllocationRequestSplit
)

var allocationRequestMapping = map[AllocationRequestType]string{
	AllocationRequestWhole: "Whole",
	AllocationRequestSplit: "Split",
}

func (t AllocationRequestType) String() string {
	return allocationRequestMapping[t]
}

// AllocationRequest is a type returned from HeapMetadata.CreateAllocationRequest which indicates where
// and how the metadata intends to allocate new memory. It can be committed with HeapMetadata.Alloc as
// long as the free list has not changed in the meantime.
type AllocationRequest struct {
	// BlockAddr is the address of the free block that was selected
	BlockAddr arena.Addr
	// PrevAddr is the address of the block preceding BlockAddr in the free list, which may be the sentinel
	PrevAddr arena.Addr
	// Size is the total size of the block that will be allocated, header included. It may be larger
	// than the requested size, both because of alignment and because whole blocks are not split.
	Size int
	// RequestedSize is the payload size that was originally requested
	RequestedSize int
	// Type indicates whether the free block will be split or consumed whole
	Type AllocationRequestType
	// Extended is true if the free block was created by growing the heap for this request
	Extended bool
}
