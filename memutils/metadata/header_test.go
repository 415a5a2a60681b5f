package metadata_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/umalloc/memutils/metadata"
)

func TestHeaderCodec(t *testing.T) {
	header := metadata.EncodeHeader(48, true)
	require.Equal(t, metadata.Header(49), header)
	require.Equal(t, 48, header.Size())
	require.True(t, header.IsAllocated())
	require.Equal(t, uint64(0), header.Reserved())

	header = metadata.EncodeHeader(4096, false)
	require.Equal(t, 4096, header.Size())
	require.False(t, header.IsAllocated())

	require.Equal(t, uint64(0xe), metadata.Header(0x4f).Reserved())
	require.Equal(t, 0x40, metadata.Header(0x4f).Size())
}

func TestHeaderCodecRejectsBadSizes(t *testing.T) {
	require.Panics(t, func() { metadata.EncodeHeader(0, false) })
	require.Panics(t, func() { metadata.EncodeHeader(8, true) })
	require.Panics(t, func() { metadata.EncodeHeader(40, false) })
}

func TestBlockSizeFor(t *testing.T) {
	require.Equal(t, 16, metadata.BlockSizeFor(0))
	require.Equal(t, 32, metadata.BlockSizeFor(1))
	require.Equal(t, 32, metadata.BlockSizeFor(16))
	require.Equal(t, 48, metadata.BlockSizeFor(17))
	require.Equal(t, 128, metadata.BlockSizeFor(100))
}

func TestBlockView(t *testing.T) {
	heap := newTestArena(t, 64*1024)
	extent, err := heap.Grow(256)
	require.NoError(t, err)

	block := metadata.BlockAt(heap, extent.Start)
	block.Init(64, false)
	require.Equal(t, 64, block.Size())
	require.False(t, block.IsAllocated())
	require.True(t, block.Next().IsNil())
	require.Equal(t, extent.Start.Add(64), block.End())
	require.Equal(t, extent.Start.Add(16), block.Payload())

	block.MarkAllocated()
	require.True(t, block.IsAllocated())
	require.Equal(t, 64, block.Size())

	other := metadata.BlockOf(heap, block.Payload())
	require.Equal(t, block.Addr(), other.Addr())
	require.True(t, other.IsAllocated())

	block.SetNext(metadata.BlockAt(heap, extent.Start.Add(128)))
	require.Equal(t, extent.Start.Add(128), other.Next().Addr())

	block.MarkFree()
	require.False(t, other.IsAllocated())
	require.Equal(t, extent.Start.Add(128), other.Next().Addr())
}
