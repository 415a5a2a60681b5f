package metadata

import (
	"math"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/umalloc/memutils"
	"github.com/vkngwrapper/umalloc/memutils/arena"
)

const maxAllocSize = math.MaxInt - Alignment - HeaderSize

// CreateAllocationRequest searches the free list for a block that can hold allocSize bytes of payload
// using the metadata's default strategy. It returns false if no free block is large enough, in which
// case the caller may Extend the heap. Nothing is modified until the request is passed to Alloc.
func (m *HeapMetadata) CreateAllocationRequest(allocSize int) (bool, AllocationRequest, error) {
	return m.CreateAllocationRequestWithStrategy(allocSize, m.strategy)
}

// CreateAllocationRequestWithStrategy behaves like CreateAllocationRequest with an explicit strategy
func (m *HeapMetadata) CreateAllocationRequestWithStrategy(allocSize int, strategy AllocationStrategy) (bool, AllocationRequest, error) {
	var allocRequest AllocationRequest
	m.checkInitialized()

	if allocSize < 0 || allocSize > maxAllocSize {
		return false, allocRequest, errors.Wrapf(memutils.ErrInvalidSize, "cannot allocate %d bytes", allocSize)
	}

	memutils.DebugValidate(m)

	size := BlockSizeFor(allocSize)

	var bestPrev, best Block
	prev := m.freeList.Sentinel()
	for block := prev.Next(); !block.IsNil(); prev, block = block, block.Next() {
		blockSize := block.Size()
		if blockSize < size {
			continue
		}

		if strategy == AllocationStrategyFirstFit {
			bestPrev, best = prev, block
			break
		}

		if best.IsNil() || blockSize < best.Size() {
			bestPrev, best = prev, block
			if blockSize == size {
				break
			}
		}
	}

	if best.IsNil() {
		return false, allocRequest, nil
	}

	m.fillRequest(&allocRequest, bestPrev, best, allocSize, size)
	return true, allocRequest, nil
}

func (m *HeapMetadata) fillRequest(allocRequest *AllocationRequest, prev, block Block, allocSize, size int) {
	blockSize := block.Size()

	allocRequest.BlockAddr = block.Addr()
	allocRequest.PrevAddr = prev.Addr()
	allocRequest.RequestedSize = allocSize

	if blockSize-size > m.splitThreshold {
		allocRequest.Type = AllocationRequestSplit
		allocRequest.Size = size
	} else {
		allocRequest.Type = AllocationRequestWhole
		allocRequest.Size = blockSize
	}
}

// extendSize returns the number of bytes to request from the grower when no free block can hold a
// block of the given size: a single page for small blocks, and the block plus a page of slack for
// anything larger than a page.
func (m *HeapMetadata) extendSize(size int) int {
	if size <= m.pageSize {
		return m.pageSize
	}
	return size + m.pageSize
}

// Extend grows the heap by exactly one extent large enough for allocSize bytes of payload, links the
// new extent into the free list as a single free block, and returns a request for that block. It
// is meant to be called after CreateAllocationRequest has failed to find a block. Errors from the
// grower are returned as-is and nothing is retried.
func (m *HeapMetadata) Extend(allocSize int) (AllocationRequest, error) {
	var allocRequest AllocationRequest
	m.checkInitialized()

	if allocSize < 0 || allocSize > maxAllocSize {
		return allocRequest, errors.Wrapf(memutils.ErrInvalidSize, "cannot allocate %d bytes", allocSize)
	}

	size := BlockSizeFor(allocSize)
	if size > math.MaxInt-m.pageSize {
		return allocRequest, errors.Wrapf(memutils.ErrOutOfMemory, "cannot extend the heap for %d bytes", allocSize)
	}
	growSize := m.extendSize(size)

	extent, err := m.grower.Grow(growSize)
	if err != nil {
		return allocRequest, errors.Wrapf(err, "failed to extend the heap by %d bytes", growSize)
	}
	if !m.usableExtent(extent, growSize) {
		return allocRequest, errors.Newf("the heap grower returned an unusable %s for a request of %d bytes", extent, growSize)
	}

	block := BlockAt(m.mem, extent.Start)
	block.Init(memutils.AlignDown(extent.Size(), Alignment), false)

	// The grower hands out ascending addresses, so this is almost always a plain append
	prev := m.freeList.Last()
	if prev.Addr() > block.Addr() {
		prev = m.freeList.FindPredecessor(block.Addr())
	}
	m.freeList.InsertAfter(prev, block)
	m.extendCount++

	m.fillRequest(&allocRequest, prev, block, allocSize, size)
	allocRequest.Extended = true
	return allocRequest, nil
}

// Alloc commits an AllocationRequest and returns the payload address of the new allocation. It
// returns an error if the request no longer matches the free list, i.e. the block was unlinked,
// allocated, or shrunk after the request was created.
func (m *HeapMetadata) Alloc(req AllocationRequest) (arena.Addr, error) {
	m.checkInitialized()

	if req.BlockAddr == arena.Nil || req.PrevAddr == arena.Nil {
		return arena.Nil, errors.New("allocation request does not refer to a free block")
	}

	prev := BlockAt(m.mem, req.PrevAddr)
	block := BlockAt(m.mem, req.BlockAddr)

	if prev.Next().Addr() != block.Addr() {
		return arena.Nil, errors.Newf("allocation request refers to %s, which is no longer linked after %s", block, prev)
	}
	if block.IsAllocated() {
		return arena.Nil, errors.Newf("allocation request refers to %s, which is already allocated", block)
	}

	blockSize := block.Size()
	if blockSize < req.Size {
		return arena.Nil, errors.Newf("allocation request needs %d bytes but %s only holds %d", req.Size, block, blockSize)
	}

	var allocated Block
	switch req.Type {
	case AllocationRequestSplit:
		if blockSize-req.Size <= m.splitThreshold {
			return arena.Nil, errors.Newf("allocation request would split %s, leaving a remainder of only %d bytes", block, blockSize-req.Size)
		}

		// Carve the high end so the free remainder keeps its place in the list
		m.freeList.shrink(block, req.Size)
		allocated = BlockAt(m.mem, block.Addr().Add(blockSize-req.Size))
		allocated.Init(req.Size, true)
	case AllocationRequestWhole:
		if blockSize != req.Size {
			return arena.Nil, errors.Newf("allocation request expected %s to hold exactly %d bytes, but it holds %d", block, req.Size, blockSize)
		}

		m.freeList.RemoveAfter(prev)
		block.MarkAllocated()
		allocated = block
	default:
		return arena.Nil, errors.Newf("unknown allocation request type: %d", req.Type)
	}

	m.allocCount++
	m.allocBytes += allocated.Size()

	memutils.DebugCheckAligned(uint64(allocated.Payload()), uint64(Alignment), "payload")
	memutils.DebugValidate(m)
	return allocated.Payload(), nil
}

// Allocate finds or creates room for allocSize bytes of payload and allocates it, growing the heap
// at most once
func (m *HeapMetadata) Allocate(allocSize int) (arena.Addr, error) {
	found, req, err := m.CreateAllocationRequest(allocSize)
	if err != nil {
		return arena.Nil, err
	}

	if !found {
		req, err = m.Extend(allocSize)
		if err != nil {
			return arena.Nil, err
		}
	}

	return m.Alloc(req)
}

// BlockForPayload returns the allocated block that owns payload. It returns an error marked with
// memutils.ErrInvalidPointer if payload cannot belong to an allocation in this heap, and one marked
// with memutils.ErrDoubleFree if the block is already free.
func (m *HeapMetadata) BlockForPayload(payload arena.Addr) (Block, error) {
	m.checkInitialized()

	if payload == arena.Nil || payload < arena.Addr(HeaderSize) || !memutils.IsAligned(uint64(payload), uint64(Alignment)) {
		return Block{}, errors.Wrapf(memutils.ErrInvalidPointer, "%s is not a payload address", payload)
	}

	block := BlockOf(m.mem, payload)
	extent, ok := arena.FindExtent(m.grower.Extents(), block.Addr())
	if !ok || !extent.Contains(block.Addr(), HeaderSize) {
		return Block{}, errors.Wrapf(memutils.ErrInvalidPointer, "%s is outside of the heap", payload)
	}
	if extent.Start == m.freeList.Sentinel().Addr() {
		return Block{}, errors.Wrapf(memutils.ErrInvalidPointer, "%s belongs to the free list sentinel", payload)
	}

	header := block.Header()
	if !header.IsAllocated() {
		return Block{}, errors.Wrapf(memutils.ErrDoubleFree, "%s has already been freed", payload)
	}
	if header.Reserved() != 0 || header.Size() < HeaderSize || !extent.Contains(block.Addr(), header.Size()) {
		return Block{}, errors.Mark(errors.Newf("%s has a corrupted header: 0x%x", block, uint64(header)), memutils.ErrHeapCorrupted)
	}

	return block, nil
}

// UsableSize returns the number of payload bytes available at payload, which may be more than was
// requested
func (m *HeapMetadata) UsableSize(payload arena.Addr) (int, error) {
	block, err := m.BlockForPayload(payload)
	if err != nil {
		return 0, err
	}
	return block.Size() - HeaderSize, nil
}

// Free returns the allocation at payload to the free list. The block is linked in at its address-ordered
// position and, under MergeAdjacent, merged with any free neighbors in the same extent. The heap is not
// modified when an error is returned.
func (m *HeapMetadata) Free(payload arena.Addr) error {
	block, err := m.BlockForPayload(payload)
	if err != nil {
		return err
	}

	size := block.Size()
	block.MarkFree()
	prev := m.freeList.Insert(block)

	m.allocCount--
	m.allocBytes -= size

	if m.mergePolicy == MergeAdjacent {
		m.coalesce(prev, block)
	}

	memutils.DebugValidate(m)
	return nil
}

// coalesce merges a freshly inserted free block with the list neighbors that touch it in memory.
// The sentinel is never merged, and neither are blocks from different extents even when the extents
// happen to be contiguous.
func (m *HeapMetadata) coalesce(prev Block, block Block) Block {
	next := block.Next()
	if !next.IsNil() && block.End() == next.Addr() && m.sameExtent(block, next) {
		m.freeList.MergeWithNext(block)
	}

	if prev.Addr() != m.freeList.Sentinel().Addr() && prev.End() == block.Addr() && m.sameExtent(prev, block) {
		m.freeList.MergeWithNext(prev)
		return prev
	}

	return block
}

func (m *HeapMetadata) sameExtent(left, right Block) bool {
	extent, ok := arena.FindExtent(m.grower.Extents(), left.Addr())
	return ok && right.Addr() >= extent.Start && right.Addr() < extent.End
}
