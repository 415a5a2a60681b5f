package memutils

import "github.com/cockroachdb/errors"

// PowerOfTwoError is the error returned from CheckPow2 or other methods if the number being tested is not a power of two
var PowerOfTwoError error = errors.New("number must be a power of two")

var (
	// ErrOutOfMemory is returned when the heap could not be grown far enough to satisfy an allocation
	ErrOutOfMemory = errors.New("out of memory")
	// ErrInvalidSize is returned when an allocation size is negative or otherwise unusable
	ErrInvalidSize = errors.New("invalid allocation size")
	// ErrInvalidPointer is returned when a pointer passed to Free or a payload accessor was never
	// returned by Allocate, or has already been freed
	ErrInvalidPointer = errors.New("pointer was not returned by this allocator")
	// ErrDoubleFree is returned when the block behind a pointer is already marked free
	ErrDoubleFree = errors.New("block is already free")
	// ErrHeapCorrupted marks every error returned from consistency validation
	ErrHeapCorrupted = errors.New("heap is corrupted")
)
