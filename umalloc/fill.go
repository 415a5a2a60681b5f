package umalloc

import (
	"fmt"

	"github.com/vkngwrapper/umalloc/memutils/arena"
)

const (
	createdFillPattern   uint8 = 0xDC
	destroyedFillPattern uint8 = 0xEF
)

func (a *Allocator) fillAllocation(ptr arena.Addr, pattern uint8) {
	if !InitializeAllocs {
		return
	}

	size, err := a.metadata.UsableSize(ptr)
	if err != nil {
		panic(fmt.Sprintf("failed when attempting to find the size of %s during debug pattern fill: %+v", ptr, err))
	}

	data, err := a.heap.Slice(ptr, size)
	if err != nil {
		panic(fmt.Sprintf("failed when attempting to access %s during debug pattern fill: %+v", ptr, err))
	}

	for i := range data {
		data[i] = pattern
	}
}
