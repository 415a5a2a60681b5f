package umalloc

import (
	"io"

	"github.com/cockroachdb/errors"
	"github.com/dolthub/swiss"
	"github.com/vkngwrapper/umalloc/memutils/arena"
	"github.com/vkngwrapper/umalloc/memutils/metadata"
	"golang.org/x/exp/slog"
)

// CreateOptions contains optional settings when creating an allocator
type CreateOptions struct {
	// Flags indicates specific allocator behaviors to activate or deactivate
	Flags CreateFlags
	// InitialHeapSize is the size of the first free extent. It defaults to four pages of the
	// arena's page size.
	InitialHeapSize int
	// SplitThreshold is the largest remainder of a free block that is handed out along with an
	// allocation instead of being split off. It defaults to metadata.DefaultSplitThreshold.
	SplitThreshold int
	// Strategy chooses which free block satisfies an allocation. It defaults to first-fit.
	Strategy metadata.AllocationStrategy
	// MergePolicy decides whether freed blocks are merged with their free neighbors. It defaults to
	// metadata.MergeAdjacent and is ignored when AllocatorCreateNoMerge is set.
	MergePolicy metadata.MergePolicy
}

// New creates a new Allocator that carves its heap out of the provided arena. The arena should not
// have been grown by anyone else, and the Allocator takes ownership of it: Destroy releases it.
//
// logger - Receives debug messages for every operation, and error messages for allocations that are
// still live when the Allocator is destroyed. It may be nil.
//
// heap - The arena that backs the heap
//
// options - Optional parameters: it is valid to leave all the fields blank
func New(logger *slog.Logger, heap *arena.Arena, options CreateOptions) (*Allocator, error) {
	if heap == nil {
		return nil, errors.New("an allocator requires an arena")
	}

	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	mergePolicy := options.MergePolicy
	if options.Flags&AllocatorCreateNoMerge != 0 {
		mergePolicy = metadata.MergeNone
	}

	md, err := metadata.NewHeapMetadata(heap, heap, metadata.Options{
		PageSize:        heap.PageSize(),
		InitialHeapSize: options.InitialHeapSize,
		SplitThreshold:  options.SplitThreshold,
		Strategy:        options.Strategy,
		MergePolicy:     mergePolicy,
	})
	if err != nil {
		return nil, err
	}

	err = md.Init()
	if err != nil {
		return nil, err
	}

	allocator := &Allocator{
		logger:      logger,
		heap:        heap,
		createFlags: options.Flags,
		metadata:    md,
		live:        swiss.NewMap[arena.Addr, int](42),
	}

	logger.Debug("Allocator::New",
		slog.String("Flags", options.Flags.String()),
		slog.String("Strategy", md.Strategy().String()),
		slog.String("MergePolicy", md.MergePolicy().String()),
		slog.Int("SplitThreshold", md.SplitThreshold()),
	)

	return allocator, nil
}
