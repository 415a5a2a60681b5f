package memutils

import "math"

// Statistics is a cheap summary of a heap: how many extents it spans, how many live allocations
// it holds, and how many bytes each of those accounts for. Sentinel and header bytes count toward
// AllocationBytes, since they are not available to new allocations.
type Statistics struct {
	ExtentCount     int
	AllocationCount int
	ExtentBytes     int
	AllocationBytes int
}

func (s *Statistics) Clear() {
	s.ExtentCount = 0
	s.AllocationCount = 0
	s.ExtentBytes = 0
	s.AllocationBytes = 0
}

func (s *Statistics) AddStatistics(other *Statistics) {
	s.ExtentCount += other.ExtentCount
	s.AllocationCount += other.AllocationCount
	s.ExtentBytes += other.ExtentBytes
	s.AllocationBytes += other.AllocationBytes
}

// FreeBytes is the number of bytes in the heap's extents that are not taken by allocations
func (s *Statistics) FreeBytes() int {
	return s.ExtentBytes - s.AllocationBytes
}

// DetailedStatistics extends Statistics with a walk of every block in the heap. Clear must be
// called before the first use so the minimums start out at math.MaxInt.
type DetailedStatistics struct {
	Statistics
	// OverheadBytes is the part of AllocationBytes that callers cannot use: block headers, the
	// free list sentinel, and extent tails too short to hold a block
	OverheadBytes      int
	UnusedRangeCount   int
	AllocationSizeMin  int
	AllocationSizeMax  int
	UnusedRangeSizeMin int
	UnusedRangeSizeMax int
	ExtentSizeMin      int
	ExtentSizeMax      int
}

func (s *DetailedStatistics) Clear() {
	s.Statistics.Clear()
	s.OverheadBytes = 0
	s.UnusedRangeCount = 0
	s.AllocationSizeMin = math.MaxInt
	s.AllocationSizeMax = 0
	s.UnusedRangeSizeMin = math.MaxInt
	s.UnusedRangeSizeMax = 0
	s.ExtentSizeMin = math.MaxInt
	s.ExtentSizeMax = 0
}

// AddExtent records one extent granted to the heap
func (s *DetailedStatistics) AddExtent(size int) {
	s.ExtentCount++
	s.ExtentBytes += size

	if size < s.ExtentSizeMin {
		s.ExtentSizeMin = size
	}

	if size > s.ExtentSizeMax {
		s.ExtentSizeMax = size
	}
}

func (s *DetailedStatistics) AddUnusedRange(size int) {
	s.UnusedRangeCount++

	if size < s.UnusedRangeSizeMin {
		s.UnusedRangeSizeMin = size
	}

	if size > s.UnusedRangeSizeMax {
		s.UnusedRangeSizeMax = size
	}
}

// AddAllocation records a live block of blockSize bytes, overhead of which hold its header
func (s *DetailedStatistics) AddAllocation(blockSize, overhead int) {
	s.AllocationCount++
	s.AllocationBytes += blockSize
	s.OverheadBytes += overhead

	if blockSize < s.AllocationSizeMin {
		s.AllocationSizeMin = blockSize
	}

	if blockSize > s.AllocationSizeMax {
		s.AllocationSizeMax = blockSize
	}
}

// AddOverhead records bytes that are unavailable to new allocations without belonging to one
func (s *DetailedStatistics) AddOverhead(size int) {
	s.AllocationBytes += size
	s.OverheadBytes += size
}

// PayloadBytes is the number of bytes held by live allocations that callers can use
func (s *DetailedStatistics) PayloadBytes() int {
	return s.AllocationBytes - s.OverheadBytes
}

func (s *DetailedStatistics) AddDetailedStatistics(other *DetailedStatistics) {
	s.Statistics.AddStatistics(&other.Statistics)
	s.OverheadBytes += other.OverheadBytes
	s.UnusedRangeCount += other.UnusedRangeCount

	if other.UnusedRangeSizeMin < s.UnusedRangeSizeMin {
		s.UnusedRangeSizeMin = other.UnusedRangeSizeMin
	}

	if other.UnusedRangeSizeMax > s.UnusedRangeSizeMax {
		s.UnusedRangeSizeMax = other.UnusedRangeSizeMax
	}

	if other.AllocationSizeMin < s.AllocationSizeMin {
		s.AllocationSizeMin = other.AllocationSizeMin
	}

	if other.AllocationSizeMax > s.AllocationSizeMax {
		s.AllocationSizeMax = other.AllocationSizeMax
	}

	if other.ExtentSizeMin < s.ExtentSizeMin {
		s.ExtentSizeMin = other.ExtentSizeMin
	}

	if other.ExtentSizeMax > s.ExtentSizeMax {
		s.ExtentSizeMax = other.ExtentSizeMax
	}
}

// FragmentationRatio returns the share of free bytes that lie outside the largest unused range, from
// 0 (all free memory is contiguous) to just under 1. A heap with no free memory reports 0.
func (s *DetailedStatistics) FragmentationRatio() float64 {
	free := s.FreeBytes()
	if free <= 0 || s.UnusedRangeCount == 0 {
		return 0
	}

	return float64(free-s.UnusedRangeSizeMax) / float64(free)
}
