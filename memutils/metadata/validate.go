package metadata

import (
	cerrors "github.com/cockroachdb/errors"
	"github.com/pkg/errors"
	"github.com/vkngwrapper/umalloc/memutils"
	"github.com/vkngwrapper/umalloc/memutils/arena"
)

func corruption(format string, args ...any) error {
	return cerrors.Mark(errors.Errorf(format, args...), memutils.ErrHeapCorrupted)
}

// Validate performs a read-only consistency check of the heap and returns an error marked with
// memutils.ErrHeapCorrupted describing the first problem found, or nil if the heap is consistent.
//
// Every block in the free list is checked, in list order, for: a readable header inside a known
// extent; a clear allocation flag; containment of the whole block in one extent; ordering, meaning
// the block ends before the next one starts (with a header's worth of room between blocks of the same
// extent under MergeAdjacent, since touching free blocks would have been merged); and alignment.
// Every extent is then walked block by block to confirm that the headers tile it exactly and that
// the free list and allocation count agree with what is actually in the heap.
func (m *HeapMetadata) Validate() error {
	if !m.initialized {
		return errors.New("heap metadata has not been initialized")
	}

	extents := m.grower.Extents()

	sentinel := m.freeList.Sentinel()
	sentinelExtent, ok := arena.FindExtent(extents, sentinel.Addr())
	if !ok || !sentinelExtent.Contains(sentinel.Addr(), HeaderSize) {
		return corruption("the free list sentinel at %s lies outside every heap extent", sentinel.Addr())
	}
	sentinelHeader := sentinel.Header()
	if !sentinelHeader.IsAllocated() || sentinelHeader.Size() != HeaderSize || sentinelHeader.Reserved() != 0 {
		return corruption("the free list sentinel at %s has an invalid header 0x%x", sentinel.Addr(), uint64(sentinelHeader))
	}

	var freeCount, freeSize int
	for block := sentinel.Next(); !block.IsNil(); {
		extent, ok := arena.FindExtent(extents, block.Addr())
		if !ok || !extent.Contains(block.Addr(), HeaderSize) {
			return corruption("free list block at %s lies outside every heap extent", block.Addr())
		}

		header := block.Header()
		if header.IsAllocated() {
			return corruption("free list block at %s is marked as allocated", block.Addr())
		}

		size := header.Size()
		if size < HeaderSize || !extent.Contains(block.Addr(), size) {
			return corruption("free list block at %s with size %d does not fit within %s", block.Addr(), size, extent)
		}

		next := block.Next()
		if !next.IsNil() {
			end := block.Addr().Add(size)
			if m.mergePolicy == MergeAdjacent && next.Addr() < extent.End {
				end = end.Add(HeaderSize)
			}
			if end < block.Addr() || end > next.Addr() {
				return corruption("free list block at %s with size %d overlaps or is out of order with the next block at %s", block.Addr(), size, next.Addr())
			}
		}

		if !memutils.IsAligned(uint64(block.Addr()), uint64(Alignment)) {
			return corruption("free list block at %s is not aligned to %d bytes", block.Addr(), Alignment)
		}

		freeCount++
		freeSize += size
		block = next
	}

	if freeCount != m.freeList.Len() {
		return corruption("the free list should hold %d blocks, but %d were found", m.freeList.Len(), freeCount)
	}
	if freeSize != m.freeList.SumSize() {
		return corruption("the free list should hold %d bytes, but its blocks add up to %d", m.freeList.SumSize(), freeSize)
	}

	var heapFreeCount, heapAllocCount, heapAllocBytes int
	err := m.walkExtents(extents, func(region Region) error {
		switch {
		case region.Sentinel:
		case region.Free:
			heapFreeCount++
		default:
			heapAllocCount++
			heapAllocBytes += region.Size
		}
		return nil
	})
	if err != nil {
		return err
	}

	if heapFreeCount != freeCount {
		return corruption("the heap contains %d free blocks, but the free list holds %d", heapFreeCount, freeCount)
	}
	if heapAllocCount != m.allocCount {
		return corruption("the allocation count of the metadata is %d, but the heap contains %d allocated blocks", m.allocCount, heapAllocCount)
	}
	if heapAllocBytes != m.allocBytes {
		return corruption("the allocated size of the metadata is %d, but the allocated blocks add up to %d", m.allocBytes, heapAllocBytes)
	}

	return nil
}

// walkExtents visits every block of every extent in address order. It stops with an error as soon
// as a header cannot be trusted, since the position of the following block depends on it.
func (m *HeapMetadata) walkExtents(extents []arena.Extent, visit func(region Region) error) error {
	sentinel := m.freeList.Sentinel().Addr()

	for _, extent := range extents {
		if extent.Start == sentinel {
			// The rest of the sentinel's extent is never carved into blocks
			err := visit(Region{Addr: sentinel, Size: HeaderSize, Sentinel: true, Extent: extent.ID})
			if err != nil {
				return err
			}
			continue
		}

		cursor := extent.Start
		for int(extent.End-cursor) >= HeaderSize {
			header := BlockAt(m.mem, cursor).Header()
			size := header.Size()

			if header.Reserved() != 0 {
				return corruption("block at %s has reserved header bits set: 0x%x", cursor, uint64(header))
			}
			if size < HeaderSize {
				return corruption("block at %s has an invalid size %d", cursor, size)
			}
			if !extent.Contains(cursor, size) {
				return corruption("block at %s with size %d runs past the end of %s", cursor, size, extent)
			}

			err := visit(Region{
				Addr:     cursor,
				Size:     size,
				Free:     !header.IsAllocated(),
				Sentinel: cursor == sentinel,
				Extent:   extent.ID,
			})
			if err != nil {
				return err
			}

			cursor = cursor.Add(size)
		}
	}

	return nil
}

// VisitAllRegions calls the provided callback once for each block in the heap, sentinel included, in
// address order. This walks the entire heap and should generally be reserved for diagnostics. An
// error is returned if the walk finds a corrupted header.
func (m *HeapMetadata) VisitAllRegions(handleRegion func(region Region) error) error {
	m.checkInitialized()
	return m.walkExtents(m.grower.Extents(), handleRegion)
}
