package metadata

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/umalloc/memutils"
	"github.com/vkngwrapper/umalloc/memutils/arena"
)

//go:generate mockgen -destination=mock_grower_test.go -package=metadata_test . HeapGrower

// HeapGrower is the source of new heap memory. Implementations hand out page-aligned extents that
// never overlap one another and remember every extent they have granted.
type HeapGrower interface {
	// Grow carves a new extent of at least minSize bytes. Errors caused by exhaustion should be
	// marked with memutils.ErrOutOfMemory.
	Grow(minSize int) (arena.Extent, error)
	// Extents returns every extent granted so far, sorted by address
	Extents() []arena.Extent
}

const (
	// DefaultSplitThreshold is the largest remainder that is left attached to an allocation instead
	// of being split off as a new free block
	DefaultSplitThreshold int = 64
	// DefaultInitialHeapPages is the number of pages in the first free extent
	DefaultInitialHeapPages int = 4
)

// Options contains optional settings for HeapMetadata. It is valid to leave every field blank.
type Options struct {
	// PageSize is the growth granularity of the heap. It defaults to arena.DefaultPageSize and must
	// be a power of two.
	PageSize int
	// InitialHeapSize is the size of the free extent created by Init. It defaults to
	// DefaultInitialHeapPages pages and is rounded up to Alignment.
	InitialHeapSize int
	// SplitThreshold is the largest remainder that is allocated along with a request instead of being
	// split off. It defaults to DefaultSplitThreshold and may not be negative.
	SplitThreshold int
	// Strategy chooses between candidate free blocks
	Strategy AllocationStrategy
	// MergePolicy decides whether freed blocks are merged with their free neighbors
	MergePolicy MergePolicy
}

// HeapMetadata manages the blocks of a heap built from extents of a HeapGrower. Its state lives
// almost entirely inside the heap itself: block headers and free list links are written into heap
// memory, and HeapMetadata keeps only the sentinel and a few counters.
//
// HeapMetadata is not safe for concurrent use.
type HeapMetadata struct {
	mem    Memory
	grower HeapGrower

	pageSize        int
	initialHeapSize int
	splitThreshold  int
	strategy        AllocationStrategy
	mergePolicy     MergePolicy

	freeList    FreeList
	allocCount  int
	allocBytes  int
	extendCount int
	initialized bool
}

// NewHeapMetadata creates a HeapMetadata that reads and writes headers through mem and grows through
// grower. Init must be called before the metadata is used.
func NewHeapMetadata(mem Memory, grower HeapGrower, options Options) (*HeapMetadata, error) {
	if mem == nil || grower == nil {
		return nil, errors.New("heap metadata requires both a memory and a grower")
	}

	if options.PageSize == 0 {
		options.PageSize = arena.DefaultPageSize
	}
	err := memutils.CheckPow2(options.PageSize, "metadata.Options.PageSize")
	if err != nil {
		return nil, err
	}
	if options.PageSize < Alignment {
		return nil, errors.Newf("metadata.Options.PageSize must be at least %d, but was %d", Alignment, options.PageSize)
	}

	if options.InitialHeapSize == 0 {
		options.InitialHeapSize = DefaultInitialHeapPages * options.PageSize
	}
	if options.InitialHeapSize < HeaderSize {
		return nil, errors.Newf("metadata.Options.InitialHeapSize must be at least %d, but was %d", HeaderSize, options.InitialHeapSize)
	}

	if options.SplitThreshold == 0 {
		options.SplitThreshold = DefaultSplitThreshold
	}
	if options.SplitThreshold < 0 {
		return nil, errors.Newf("metadata.Options.SplitThreshold may not be negative, but was %d", options.SplitThreshold)
	}

	if _, ok := allocationStrategyMapping[options.Strategy]; !ok {
		return nil, errors.Newf("unknown allocation strategy: %d", options.Strategy)
	}
	if _, ok := mergePolicyMapping[options.MergePolicy]; !ok {
		return nil, errors.Newf("unknown merge policy: %d", options.MergePolicy)
	}

	return &HeapMetadata{
		mem:             mem,
		grower:          grower,
		pageSize:        options.PageSize,
		initialHeapSize: memutils.AlignUp(options.InitialHeapSize, Alignment),
		splitThreshold:  options.SplitThreshold,
		strategy:        options.Strategy,
		mergePolicy:     options.MergePolicy,
	}, nil
}

// Init grows the heap twice: once for the sentinel, which gets an extent to itself, and once for the
// initial free block. It must be called exactly once, before any other method.
func (m *HeapMetadata) Init() error {
	if m.initialized {
		return errors.New("heap metadata has already been initialized")
	}

	sentinelExtent, err := m.grower.Grow(HeaderSize)
	if err != nil {
		return errors.Wrap(err, "failed to grow the heap for the free list sentinel")
	}
	if !m.usableExtent(sentinelExtent, HeaderSize) {
		return errors.Newf("the heap grower returned an unusable %s for the sentinel", sentinelExtent)
	}

	sentinel := BlockAt(m.mem, sentinelExtent.Start)
	sentinel.Init(HeaderSize, true)
	m.freeList = newFreeList(sentinel)

	initialExtent, err := m.grower.Grow(m.initialHeapSize)
	if err != nil {
		return errors.Wrap(err, "failed to grow the heap for the initial free block")
	}
	if !m.usableExtent(initialExtent, m.initialHeapSize) {
		return errors.Newf("the heap grower returned an unusable %s for the initial free block", initialExtent)
	}

	initial := BlockAt(m.mem, initialExtent.Start)
	initial.Init(memutils.AlignDown(initialExtent.Size(), Alignment), false)
	m.freeList.InsertAfter(sentinel, initial)

	m.initialized = true
	memutils.DebugValidate(m)
	return nil
}

func (m *HeapMetadata) usableExtent(extent arena.Extent, minSize int) bool {
	return extent.Start != arena.Nil &&
		memutils.IsAligned(uint64(extent.Start), uint64(Alignment)) &&
		extent.Size() >= minSize
}

func (m *HeapMetadata) checkInitialized() {
	if !m.initialized {
		panic("heap metadata was used before Init was called")
	}
}

// PageSize returns the growth granularity of the heap
func (m *HeapMetadata) PageSize() int { return m.pageSize }

// SplitThreshold returns the largest remainder that is not split off of an allocation
func (m *HeapMetadata) SplitThreshold() int { return m.splitThreshold }

// MergePolicy returns the policy applied to freed blocks
func (m *HeapMetadata) MergePolicy() MergePolicy { return m.mergePolicy }

// Strategy returns the default placement strategy
func (m *HeapMetadata) Strategy() AllocationStrategy { return m.strategy }

// FreeList returns the heap's free list. Callers must not modify it.
func (m *HeapMetadata) FreeList() *FreeList { return &m.freeList }

// AllocationCount returns the number of live allocations
func (m *HeapMetadata) AllocationCount() int { return m.allocCount }

// FreeRegionsCount returns the number of blocks in the free list
func (m *HeapMetadata) FreeRegionsCount() int { return m.freeList.Len() }

// SumFreeSize returns the number of bytes in the free list, headers included
func (m *HeapMetadata) SumFreeSize() int { return m.freeList.SumSize() }

// ExtendCount returns the number of times the heap has been grown to satisfy an allocation
func (m *HeapMetadata) ExtendCount() int { return m.extendCount }

// IsEmpty returns true if there are no live allocations
func (m *HeapMetadata) IsEmpty() bool { return m.allocCount == 0 }
