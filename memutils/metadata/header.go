package metadata

import (
	"fmt"

	"github.com/vkngwrapper/umalloc/memutils"
	"github.com/vkngwrapper/umalloc/memutils/arena"
)

const (
	// Alignment is the granularity of every block size and every payload address
	Alignment int = 16
	// HeaderSize is the size of the header that precedes every payload: one word holding the
	// block size and allocation flag, and one word holding the free list link
	HeaderSize int = 16

	allocatedFlag uint64 = 0x1
	flagMask      uint64 = uint64(Alignment - 1)
	reservedMask  uint64 = flagMask &^ allocatedFlag
	nextOffset    int    = 8
)

// Header is the first word of a block. The low bit is the allocation flag, bits 1-3 are reserved
// and always zero, and the remaining bits are the total size of the block, header included.
type Header uint64

// EncodeHeader builds the header word for a block of the given size. size must be a multiple of
// Alignment and at least HeaderSize; anything else is a programming error and panics.
func EncodeHeader(size int, allocated bool) Header {
	if size < HeaderSize || !memutils.IsAligned(size, Alignment) {
		panic(fmt.Sprintf("block size %d must be a multiple of %d and at least %d", size, Alignment, HeaderSize))
	}

	header := Header(size)
	if allocated {
		header |= Header(allocatedFlag)
	}
	return header
}

// Size returns the total size of the block, header included
func (h Header) Size() int {
	return int(uint64(h) &^ flagMask)
}

// IsAllocated returns true if the allocation flag is set
func (h Header) IsAllocated() bool {
	return uint64(h)&allocatedFlag != 0
}

// Reserved returns the reserved bits of the header, which are zero in a healthy heap
func (h Header) Reserved() uint64 {
	return uint64(h) & reservedMask
}

// Memory is a word-addressed view of heap memory. Block headers are read and written exclusively
// through it.
type Memory interface {
	Word(addr arena.Addr) uint64
	PutWord(addr arena.Addr, value uint64)
}

// Block is a view of the block whose header starts at a particular address. It holds no state of
// its own, so copies of a Block all observe the same header.
type Block struct {
	mem  Memory
	addr arena.Addr
}

// BlockAt returns a view of the block whose header is at addr
func BlockAt(mem Memory, addr arena.Addr) Block {
	return Block{mem: mem, addr: addr}
}

// BlockOf returns a view of the block that owns the payload at the provided address
func BlockOf(mem Memory, payload arena.Addr) Block {
	if payload == arena.Nil {
		panic("attempted to find the block of a nil payload")
	}
	return Block{mem: mem, addr: payload.Add(-HeaderSize)}
}

func (b Block) Addr() arena.Addr { return b.addr }

func (b Block) IsNil() bool { return b.addr == arena.Nil }

// Payload returns the address of the first byte after the block header
func (b Block) Payload() arena.Addr { return b.addr.Add(HeaderSize) }

func (b Block) Header() Header {
	if b.addr == arena.Nil {
		panic("attempted to read the header of a nil block")
	}
	return Header(b.mem.Word(b.addr))
}

func (b Block) putHeader(header Header) {
	if b.addr == arena.Nil {
		panic("attempted to write the header of a nil block")
	}
	b.mem.PutWord(b.addr, uint64(header))
}

func (b Block) IsAllocated() bool { return b.Header().IsAllocated() }

func (b Block) MarkAllocated() { b.putHeader(b.Header() | Header(allocatedFlag)) }

func (b Block) MarkFree() { b.putHeader(b.Header() &^ Header(allocatedFlag)) }

func (b Block) Size() int { return b.Header().Size() }

// End returns the address one past the last byte of the block
func (b Block) End() arena.Addr { return b.addr.Add(b.Size()) }

// setSize changes the size of the block without touching its flag or link
func (b Block) setSize(size int) {
	b.putHeader(EncodeHeader(size, b.IsAllocated()))
}

// Next returns the block that follows this one in the free list, or a nil block
func (b Block) Next() Block {
	if b.addr == arena.Nil {
		panic("attempted to read the link of a nil block")
	}
	return Block{mem: b.mem, addr: arena.Addr(b.mem.Word(b.addr.Add(nextOffset)))}
}

func (b Block) SetNext(next Block) {
	if b.addr == arena.Nil {
		panic("attempted to write the link of a nil block")
	}
	b.mem.PutWord(b.addr.Add(nextOffset), uint64(next.addr))
}

// Init writes a fresh header for a block of the given size and clears its link
func (b Block) Init(size int, allocated bool) {
	b.putHeader(EncodeHeader(size, allocated))
	b.SetNext(Block{})
}

func (b Block) String() string {
	if b.IsNil() {
		return "block <nil>"
	}
	return fmt.Sprintf("block at %s", b.addr)
}

// BlockSizeFor returns the total block size needed to hold a payload of allocSize bytes
func BlockSizeFor(allocSize int) int {
	return memutils.AlignUp(allocSize, Alignment) + HeaderSize
}
