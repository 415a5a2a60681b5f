// Package arena provides the heap-growth primitive that the allocator builds on: an sbrk-like
// break pointer over a single reservation of memory made up front. Every growth request carves a
// new page-aligned Extent off the end of the reservation; extents are never returned until the
// whole arena is released.
//
// Heap memory is addressed with Addr values rather than Go pointers. An Addr is an offset into
// the reservation plus Base, so the zero Addr (Nil) never names valid memory and addresses from
// different extents stay comparable.
package arena

import (
	"encoding/binary"
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/umalloc/memutils"
	"golang.org/x/exp/slices"
	"golang.org/x/exp/slog"
)

// Addr is an address within an arena
type Addr uint64

const (
	// Nil is the Addr that never refers to memory
	Nil Addr = 0
	// Base is the address of the first byte of every arena's reservation
	Base Addr = 0x10000

	// DefaultPageSize is the page size used when Options.PageSize is left at 0
	DefaultPageSize int = 4096
	// DefaultCapacity is the reservation size used when Options.Capacity is left at 0. It is equal to 64Mb.
	DefaultCapacity int = 64 * 1024 * 1024

	maxPageSize int = int(Base)
	wordSize    int = 8
)

func (a Addr) String() string {
	return fmt.Sprintf("0x%x", uint64(a))
}

// Add returns the address offset bytes past a
func (a Addr) Add(offset int) Addr {
	return Addr(int64(a) + int64(offset))
}

// Extent is one contiguous range [Start, End) carved from an arena by a single Grow call
type Extent struct {
	// ID is the position of this extent in the order extents were granted, starting at 0
	ID    int
	Start Addr
	End   Addr
}

// Size returns the number of bytes in the extent
func (e Extent) Size() int {
	return int(e.End - e.Start)
}

// Contains reports whether the range [addr, addr+size) lies entirely within the extent
func (e Extent) Contains(addr Addr, size int) bool {
	if size < 0 || addr < e.Start || addr > e.End {
		return false
	}
	return size <= int(e.End-addr)
}

func (e Extent) String() string {
	return fmt.Sprintf("extent %d [%s, %s)", e.ID, e.Start, e.End)
}

// FindExtent locates the extent containing addr within a list of extents sorted by address, as
// returned from Arena.Extents
func FindExtent(extents []Extent, addr Addr) (Extent, bool) {
	index, found := slices.BinarySearchFunc(extents, addr, func(extent Extent, target Addr) int {
		if extent.End <= target {
			return -1
		}
		if extent.Start > target {
			return 1
		}
		return 0
	})
	if !found {
		return Extent{}, false
	}

	return extents[index], true
}

// Options contains optional settings when creating an Arena
type Options struct {
	// Capacity is the total number of bytes that may ever be granted by Grow, including the padding
	// used to page-align each extent
	Capacity int
	// PageSize is the alignment of every extent. It must be a power of two no larger than 64Kb.
	PageSize int
	// Logger receives debug messages for each growth. It may be nil.
	Logger *slog.Logger
}

type reservation interface {
	Bytes() []byte
	Release() error
}

// Arena is an sbrk-style heap-growth primitive. It is not safe for concurrent use.
type Arena struct {
	logger      *slog.Logger
	reservation reservation
	mem         []byte
	pageSize    int
	brk         int
	extents     []Extent
}

// New reserves Options.Capacity bytes from the operating system and returns an Arena over them.
// Memory is mapped lazily by the OS where the platform supports it, so an unused reservation is cheap.
func New(options Options) (*Arena, error) {
	if options.Capacity == 0 {
		options.Capacity = DefaultCapacity
	}
	if options.Capacity < 0 {
		return nil, errors.Newf("arena capacity must be positive, but was %d", options.Capacity)
	}

	res, err := reserve(options.Capacity)
	if err != nil {
		return nil, err
	}

	arena, err := newArena(res, options)
	if err != nil {
		_ = res.Release()
		return nil, err
	}

	return arena, nil
}

// NewWithBuffer creates an Arena that grows into the provided buffer instead of reserving its own
// memory. Options.Capacity is ignored: the capacity is len(buf).
func NewWithBuffer(buf []byte, options Options) (*Arena, error) {
	return newArena(bufferReservation(buf), options)
}

func newArena(res reservation, options Options) (*Arena, error) {
	if options.PageSize == 0 {
		options.PageSize = DefaultPageSize
	}

	err := memutils.CheckPow2(options.PageSize, "arena.Options.PageSize")
	if err != nil {
		return nil, err
	}
	if options.PageSize > maxPageSize {
		return nil, errors.Newf("arena.Options.PageSize may not exceed %d, but was %d", maxPageSize, options.PageSize)
	}

	logger := options.Logger
	if logger == nil {
		logger = slog.New(discardHandler{})
	}

	return &Arena{
		logger:      logger,
		reservation: res,
		mem:         res.Bytes(),
		pageSize:    options.PageSize,
	}, nil
}

// PageSize returns the alignment of every extent granted by this arena
func (a *Arena) PageSize() int { return a.pageSize }

// Capacity returns the size in bytes of the arena's reservation
func (a *Arena) Capacity() int { return len(a.mem) }

// Grow carves a new page-aligned extent of exactly minSize bytes from the arena. New extents
// always start above every extent granted before them. The returned error is marked with
// memutils.ErrOutOfMemory when the reservation is exhausted.
func (a *Arena) Grow(minSize int) (Extent, error) {
	if a.mem == nil {
		return Extent{}, errors.New("attempted to grow an arena that has been released")
	}
	if minSize < 1 {
		return Extent{}, errors.Wrapf(memutils.ErrInvalidSize, "cannot grow the heap by %d bytes", minSize)
	}

	start := memutils.AlignUp(a.brk, a.pageSize)
	if start > len(a.mem) || minSize > len(a.mem)-start {
		a.logger.Debug("Arena::Grow FAILED", slog.Int("Size", minSize), slog.Int("InUse", a.brk))
		return Extent{}, errors.Wrapf(memutils.ErrOutOfMemory, "cannot grow the heap by %d bytes: %d of %d bytes in use", minSize, a.brk, len(a.mem))
	}

	extent := Extent{
		ID:    len(a.extents),
		Start: Base.Add(start),
		End:   Base.Add(start + minSize),
	}
	a.brk = start + minSize
	a.extents = append(a.extents, extent)

	a.logger.Debug("Arena::Grow", slog.Int("Size", minSize), slog.Int("ExtentID", extent.ID), slog.String("Start", extent.Start.String()))
	return extent, nil
}

// Extents returns every extent granted so far, sorted by address. The slice is owned by the arena
// and must not be modified.
func (a *Arena) Extents() []Extent {
	return a.extents
}

// ExtentOf returns the extent containing addr, if any
func (a *Arena) ExtentOf(addr Addr) (Extent, bool) {
	return FindExtent(a.extents, addr)
}

func (a *Arena) offset(addr Addr, size int) int {
	if addr < Base || size < 0 || uint64(addr-Base) > uint64(a.brk) || size > a.brk-int(addr-Base) {
		panic(fmt.Sprintf("address range [%s, %s) is outside the arena", addr, addr.Add(size)))
	}
	return int(addr - Base)
}

// Word reads the 64-bit little-endian word at addr. It panics if the word lies outside of the
// memory granted so far.
func (a *Arena) Word(addr Addr) uint64 {
	off := a.offset(addr, wordSize)
	return binary.LittleEndian.Uint64(a.mem[off : off+wordSize])
}

// PutWord writes a 64-bit little-endian word at addr. It panics if the word lies outside of the
// memory granted so far.
func (a *Arena) PutWord(addr Addr, value uint64) {
	off := a.offset(addr, wordSize)
	binary.LittleEndian.PutUint64(a.mem[off:off+wordSize], value)
}

// Slice returns the size bytes at addr as a slice aliasing arena memory. The range must lie within
// a single extent. An empty range may start at the end of an extent.
func (a *Arena) Slice(addr Addr, size int) ([]byte, error) {
	extent, ok := a.ExtentOf(addr)
	if !ok && size == 0 && addr > Base {
		extent, ok = a.ExtentOf(addr.Add(-1))
	}
	if !ok || !extent.Contains(addr, size) {
		return nil, errors.Newf("address range [%s, %s) is not within a single extent", addr, addr.Add(size))
	}

	off := int(addr - Base)
	return a.mem[off : off+size : off+size], nil
}

// Release returns the arena's reservation. Every Addr granted by the arena is invalid afterward.
func (a *Arena) Release() error {
	if a.mem == nil {
		return nil
	}

	err := a.reservation.Release()
	a.mem = nil
	a.extents = nil
	a.brk = 0
	return err
}
