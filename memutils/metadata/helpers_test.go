package metadata_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/umalloc/memutils/arena"
	"github.com/vkngwrapper/umalloc/memutils/metadata"
)

const (
	initialHeapSize = 4 * 4096
	sentinelAddr    = arena.Base
	initialStart    = arena.Base + 4096
	initialEnd      = initialStart + initialHeapSize
)

func newTestArena(t *testing.T, capacity int) *arena.Arena {
	heap, err := arena.New(arena.Options{Capacity: capacity})
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, heap.Release())
	})

	return heap
}

func newTestHeap(t *testing.T, options metadata.Options) (*arena.Arena, *metadata.HeapMetadata) {
	return newTestHeapWithCapacity(t, 1024*1024, options)
}

func newTestHeapWithCapacity(t *testing.T, capacity int, options metadata.Options) (*arena.Arena, *metadata.HeapMetadata) {
	heap := newTestArena(t, capacity)

	m, err := metadata.NewHeapMetadata(heap, heap, options)
	require.NoError(t, err)
	require.NoError(t, m.Init())
	require.NoError(t, m.Validate())

	return heap, m
}

func allocate(t *testing.T, m *metadata.HeapMetadata, size int) arena.Addr {
	payload, err := m.Allocate(size)
	require.NoError(t, err)
	require.NoError(t, m.Validate())
	return payload
}

func free(t *testing.T, m *metadata.HeapMetadata, payload arena.Addr) {
	require.NoError(t, m.Free(payload))
	require.NoError(t, m.Validate())
}

func freeListSizes(t *testing.T, m *metadata.HeapMetadata) []int {
	var sizes []int
	err := m.FreeList().Visit(func(block metadata.Block) error {
		sizes = append(sizes, block.Size())
		return nil
	})
	require.NoError(t, err)
	return sizes
}
