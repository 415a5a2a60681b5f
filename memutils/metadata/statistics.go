package metadata

import (
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/vkngwrapper/umalloc/memutils"
	"golang.org/x/exp/slog"
)

func (m *HeapMetadata) extentBytes() (count int, bytes int) {
	for _, extent := range m.grower.Extents() {
		count++
		bytes += extent.Size()
	}
	return count, bytes
}

// AddStatistics sums this heap's statistics into the statistics currently present in the provided
// memutils.Statistics object. It does not walk the heap.
func (m *HeapMetadata) AddStatistics(stats *memutils.Statistics) {
	m.checkInitialized()

	extentCount, extentBytes := m.extentBytes()
	stats.ExtentCount += extentCount
	stats.ExtentBytes += extentBytes
	stats.AllocationCount += m.allocCount
	stats.AllocationBytes += extentBytes - m.SumFreeSize()
}

// AddDetailedStatistics walks the heap and sums its statistics into the statistics currently present
// in the provided memutils.DetailedStatistics object. Block headers, the sentinel, and any unused
// tail of an extent are recorded as overhead.
func (m *HeapMetadata) AddDetailedStatistics(stats *memutils.DetailedStatistics) error {
	m.checkInitialized()

	extentBytes := 0
	for _, extent := range m.grower.Extents() {
		stats.AddExtent(extent.Size())
		extentBytes += extent.Size()
	}

	walked := 0
	err := m.VisitAllRegions(func(region Region) error {
		walked += region.Size
		switch {
		case region.Free:
			stats.AddUnusedRange(region.Size)
		case region.Sentinel:
			stats.AddOverhead(region.Size)
		default:
			stats.AddAllocation(region.Size, HeaderSize)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if tail := extentBytes - walked; tail > 0 {
		stats.AddOverhead(tail)
	}
	return nil
}

// BlockJsonData populates a json object with summary information about this heap
func (m *HeapMetadata) BlockJsonData(json jwriter.ObjectState) {
	m.checkInitialized()

	extentCount, extentBytes := m.extentBytes()
	json.Name("TotalBytes").Int(extentBytes)
	json.Name("UnusedBytes").Int(m.SumFreeSize())
	json.Name("Extents").Int(extentCount)
	json.Name("Allocations").Int(m.allocCount)
	json.Name("UnusedRanges").Int(m.freeList.Len())
	json.Name("HeapGrowths").Int(m.extendCount)
	json.Name("Strategy").String(m.strategy.String())
	json.Name("MergePolicy").String(m.mergePolicy.String())
}

// PrintDetailedMap writes every block in the heap to a "Regions" array of the provided json object,
// in address order
func (m *HeapMetadata) PrintDetailedMap(json jwriter.ObjectState) error {
	arrayState := json.Name("Regions").Array()
	defer arrayState.End()

	return m.VisitAllRegions(func(region Region) error {
		obj := arrayState.Object()
		defer obj.End()

		obj.Name("Offset").Int(int(region.Addr))
		obj.Name("Size").Int(region.Size)
		obj.Name("Extent").Int(region.Extent)
		switch {
		case region.Sentinel:
			obj.Name("Type").String("SENTINEL")
		case region.Free:
			obj.Name("Type").String("FREE")
		default:
			obj.Name("Type").String("ALLOCATED")
		}
		return nil
	})
}

// DebugLogAllAllocations calls logFunc once for each live allocation, with its payload address and usable size
func (m *HeapMetadata) DebugLogAllAllocations(logger *slog.Logger, logFunc func(log *slog.Logger, payload uint64, size int)) error {
	return m.VisitAllRegions(func(region Region) error {
		if !region.Free && !region.Sentinel {
			logFunc(logger, uint64(region.Payload()), region.Size-HeaderSize)
		}
		return nil
	})
}
