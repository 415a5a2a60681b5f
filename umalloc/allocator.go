package umalloc

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/dolthub/swiss"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/vkngwrapper/umalloc/memutils"
	"github.com/vkngwrapper/umalloc/memutils/arena"
	"github.com/vkngwrapper/umalloc/memutils/metadata"
	"golang.org/x/exp/slog"
)

// Allocator is a general-purpose heap allocator that carves variable-sized allocations out of an
// arena. Allocations are identified by the arena.Addr of their payload, which is always aligned
// to metadata.Alignment.
//
// Allocator is not safe for concurrent use.
type Allocator struct {
	logger      *slog.Logger
	heap        *arena.Arena
	createFlags CreateFlags
	metadata    *metadata.HeapMetadata

	// payload address -> requested size
	live *swiss.Map[arena.Addr, int]
}

// Allocate reserves at least size bytes and returns the address of the payload. The heap is grown at
// most once to satisfy the request. An error marked with memutils.ErrOutOfMemory is returned if the
// arena could not grow far enough.
func (a *Allocator) Allocate(size int) (arena.Addr, error) {
	if a.metadata == nil {
		return arena.Nil, errors.New("attempted to allocate from a destroyed allocator")
	}

	a.logger.Debug("Allocator::Allocate", slog.Int("Size", size))

	found, req, err := a.metadata.CreateAllocationRequest(size)
	if err != nil {
		return arena.Nil, err
	}

	if !found {
		a.logger.Debug("Allocator::Allocate extending heap", slog.Int("Size", size), slog.Int("FreeBytes", a.metadata.SumFreeSize()))

		req, err = a.metadata.Extend(size)
		if err != nil {
			return arena.Nil, errors.Wrapf(err, "failed to allocate %d bytes", size)
		}
	}

	payload, err := a.metadata.Alloc(req)
	if err != nil {
		return arena.Nil, err
	}
	a.live.Put(payload, size)
	a.fillAllocation(payload, createdFillPattern)

	a.logger.Debug("Allocator::Allocate succeeded",
		slog.Int("Size", size),
		slog.String("Payload", payload.String()),
		slog.String("Type", req.Type.String()),
		slog.Bool("Extended", req.Extended),
	)

	if a.createFlags&AllocatorCreateValidateEachOperation != 0 {
		err = a.CheckConsistency()
		if err != nil {
			return payload, errors.Wrap(err, "heap failed validation after allocation")
		}
	}

	return payload, nil
}

// lookup returns the requested size of the live allocation at ptr. When ptr is not live, the
// metadata is consulted so that double frees can be told apart from pointers that never came from
// this allocator.
func (a *Allocator) lookup(ptr arena.Addr) (int, error) {
	if a.metadata == nil {
		return 0, errors.New("attempted to use a destroyed allocator")
	}

	size, ok := a.live.Get(ptr)
	if ok {
		return size, nil
	}

	_, err := a.metadata.BlockForPayload(ptr)
	if err != nil {
		return 0, err
	}
	return 0, errors.Wrapf(memutils.ErrInvalidPointer, "%s is not a live allocation", ptr)
}

// Free returns the allocation at ptr to the heap. An error marked with memutils.ErrInvalidPointer is
// returned if ptr was not returned by Allocate, and one marked with memutils.ErrDoubleFree if it has
// already been freed. The heap is not modified when an error is returned.
func (a *Allocator) Free(ptr arena.Addr) error {
	a.logger.Debug("Allocator::Free", slog.String("Payload", ptr.String()))

	_, err := a.lookup(ptr)
	if err != nil {
		return err
	}

	a.fillAllocation(ptr, destroyedFillPattern)

	err = a.metadata.Free(ptr)
	if err != nil {
		return err
	}
	a.live.Delete(ptr)

	if a.createFlags&AllocatorCreateValidateEachOperation != 0 {
		err = a.CheckConsistency()
		if err != nil {
			return errors.Wrap(err, "heap failed validation after free")
		}
	}

	return nil
}

// Bytes returns the payload of the allocation at ptr as a slice of the size originally requested.
// The slice aliases heap memory and is only valid until the allocation is freed.
func (a *Allocator) Bytes(ptr arena.Addr) ([]byte, error) {
	size, err := a.lookup(ptr)
	if err != nil {
		return nil, err
	}

	return a.heap.Slice(ptr, size)
}

// UsableSize returns the number of bytes available at ptr, which may be more than was requested
func (a *Allocator) UsableSize(ptr arena.Addr) (int, error) {
	_, err := a.lookup(ptr)
	if err != nil {
		return 0, err
	}

	return a.metadata.UsableSize(ptr)
}

// AllocationCount returns the number of live allocations
func (a *Allocator) AllocationCount() int {
	return a.live.Count()
}

// CheckConsistency walks the entire heap and verifies its structure. Any error returned is marked
// with memutils.ErrHeapCorrupted. In addition to the checks made by metadata.HeapMetadata.Validate,
// it verifies that every allocated block in the heap belongs to a live allocation and vice versa.
func (a *Allocator) CheckConsistency() error {
	if a.metadata == nil {
		return errors.New("attempted to check a destroyed allocator")
	}

	err := a.metadata.Validate()
	if err != nil {
		return err
	}

	allocated := 0
	err = a.metadata.VisitAllRegions(func(region metadata.Region) error {
		if region.Free || region.Sentinel {
			return nil
		}

		allocated++
		size, ok := a.live.Get(region.Payload())
		if !ok {
			return errors.Mark(errors.Newf("allocated block at %s is not a live allocation", region.Addr), memutils.ErrHeapCorrupted)
		}
		if metadata.BlockSizeFor(size) > region.Size {
			return errors.Mark(errors.Newf("allocated block at %s holds %d bytes, but %d were requested", region.Addr, region.Size-metadata.HeaderSize, size), memutils.ErrHeapCorrupted)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if allocated != a.live.Count() {
		return errors.Mark(errors.Newf("the heap contains %d allocated blocks, but there are %d live allocations", allocated, a.live.Count()), memutils.ErrHeapCorrupted)
	}

	return nil
}

// CalculateStatistics walks the heap and populates the provided memutils.DetailedStatistics object
func (a *Allocator) CalculateStatistics(stats *memutils.DetailedStatistics) error {
	if a.metadata == nil {
		return errors.New("attempted to calculate statistics for a destroyed allocator")
	}

	stats.Clear()
	return a.metadata.AddDetailedStatistics(stats)
}

// BuildStatsString returns a json string describing the heap. If detailedMap is true, every block in
// the heap is listed as well.
func (a *Allocator) BuildStatsString(detailedMap bool) (string, error) {
	var stats memutils.DetailedStatistics
	err := a.CalculateStatistics(&stats)
	if err != nil {
		return "", err
	}

	writer := jwriter.NewWriter()
	obj := writer.Object()

	totalObj := obj.Name("Total").Object()
	printStatistics(&totalObj, &stats)
	totalObj.End()

	heapObj := obj.Name("Heap").Object()
	heapObj.Name("Flags").String(a.createFlags.String())
	heapObj.Name("Capacity").Int(a.heap.Capacity())
	a.metadata.BlockJsonData(heapObj)
	if detailedMap {
		err = a.metadata.PrintDetailedMap(heapObj)
	}
	heapObj.End()

	if err != nil {
		return "", err
	}

	if detailedMap {
		allocsArray := obj.Name("Allocations").Array()
		a.live.Iter(func(ptr arena.Addr, size int) bool {
			allocObj := allocsArray.Object()
			allocObj.Name("Payload").String(ptr.String())
			allocObj.Name("Size").Int(size)
			allocObj.End()
			return false
		})
		allocsArray.End()
	}

	obj.End()

	err = writer.Error()
	if err != nil {
		return "", err
	}
	return string(writer.Bytes()), nil
}

func printStatistics(json *jwriter.ObjectState, stats *memutils.DetailedStatistics) {
	json.Name("ExtentCount").Int(stats.ExtentCount)
	json.Name("ExtentBytes").Int(stats.ExtentBytes)
	json.Name("AllocationCount").Int(stats.AllocationCount)
	json.Name("AllocationBytes").Int(stats.AllocationBytes)
	json.Name("OverheadBytes").Int(stats.OverheadBytes)
	json.Name("UnusedRangeCount").Int(stats.UnusedRangeCount)
	json.Name("FragmentationRatio").Float64(stats.FragmentationRatio())

	if stats.ExtentCount > 0 {
		json.Name("ExtentSizeMin").Int(stats.ExtentSizeMin)
		json.Name("ExtentSizeMax").Int(stats.ExtentSizeMax)
	}
	if stats.AllocationCount > 0 {
		json.Name("AllocationSizeMin").Int(stats.AllocationSizeMin)
		json.Name("AllocationSizeMax").Int(stats.AllocationSizeMax)
	}
	if stats.UnusedRangeCount > 0 {
		json.Name("UnusedRangeSizeMin").Int(stats.UnusedRangeSizeMin)
		json.Name("UnusedRangeSizeMax").Int(stats.UnusedRangeSizeMax)
	}
}

// Destroy releases the arena backing this allocator. If any allocations are still live, each is
// logged at Error level and an error is returned after the arena is released.
func (a *Allocator) Destroy() error {
	if a.metadata == nil {
		return nil
	}

	var leakErr error
	if !a.metadata.IsEmpty() {
		// Log all remaining allocations
		err := a.metadata.DebugLogAllAllocations(a.logger, a.logUnreleasedMemory)
		if err != nil {
			a.logger.LogAttrs(context.Background(),
				slog.LevelError,
				"[UNRELEASED MEMORY] error while iterating unreleased memory",
				slog.Any("error", err))
		}

		leakErr = errors.Newf("%d allocations were not freed before the destruction of this allocator", a.metadata.AllocationCount())
	}

	a.metadata = nil
	a.live = nil

	err := a.heap.Release()
	if err != nil {
		return errors.CombineErrors(leakErr, err)
	}
	return leakErr
}

func (a *Allocator) logUnreleasedMemory(log *slog.Logger, payload uint64, size int) {
	requested, _ := a.live.Get(arena.Addr(payload))

	log.LogAttrs(context.Background(), slog.LevelError, "[UNRELEASED MEMORY] unfreed allocation",
		slog.String("payload", arena.Addr(payload).String()),
		slog.Int("size", requested),
		slog.Int("usableSize", size),
	)
}
