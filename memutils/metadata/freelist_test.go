package metadata_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/umalloc/memutils/arena"
	"github.com/vkngwrapper/umalloc/memutils/metadata"
)

func TestFreeListAfterInit(t *testing.T) {
	_, m := newTestHeap(t, metadata.Options{})

	list := m.FreeList()
	require.Equal(t, sentinelAddr, list.Sentinel().Addr())
	require.True(t, list.Sentinel().IsAllocated())
	require.Equal(t, metadata.HeaderSize, list.Sentinel().Size())

	require.Equal(t, 1, list.Len())
	require.False(t, list.IsEmpty())
	require.Equal(t, initialHeapSize, list.SumSize())
	require.Equal(t, initialStart, list.First().Addr())
	require.Equal(t, initialStart, list.Last().Addr())
	require.True(t, list.First().Next().IsNil())
}

func TestFreeListStaysOrdered(t *testing.T) {
	_, m := newTestHeap(t, metadata.Options{MergePolicy: metadata.MergeNone})

	var payloads []arena.Addr
	for i := 0; i < 6; i++ {
		payloads = append(payloads, allocate(t, m, 48))
	}

	for _, i := range []int{3, 0, 5, 1} {
		free(t, m, payloads[i])
	}

	list := m.FreeList()
	require.Equal(t, 5, list.Len())

	var addrs []arena.Addr
	require.NoError(t, list.Visit(func(block metadata.Block) error {
		addrs = append(addrs, block.Addr())
		return nil
	}))

	for i := 1; i < len(addrs); i++ {
		require.Less(t, addrs[i-1], addrs[i])
	}

	require.Equal(t, addrs[1], list.FindPredecessor(addrs[2]).Addr())
	require.Equal(t, list.Sentinel().Addr(), list.FindPredecessor(addrs[0]).Addr())
	require.Equal(t, addrs[len(addrs)-1], list.Last().Addr())
}

func TestFreeListRejectsAllocatedInsert(t *testing.T) {
	heap, m := newTestHeap(t, metadata.Options{})
	payload := allocate(t, m, 64)

	require.Panics(t, func() {
		m.FreeList().Insert(metadata.BlockOf(heap, payload))
	})
	require.Panics(t, func() {
		m.FreeList().InsertAfter(m.FreeList().First(), m.FreeList().Sentinel())
	})
}
