package umalloc

import (
	"fmt"
	"math/bits"
	"strings"
)

// CreateFlags indicate specific allocator behaviors to activate or deactivate
type CreateFlags int32

const (
	// AllocatorCreateNoMerge instructs the allocator to leave freed blocks exactly as they were
	// allocated instead of merging them with free neighbors. It overrides CreateOptions.MergePolicy.
	AllocatorCreateNoMerge CreateFlags = 1 << iota
	// AllocatorCreateValidateEachOperation instructs the allocator to run CheckConsistency after every
	// Allocate and Free and to return its error, if any. This walks the whole heap on every operation
	// and is only suitable for tests and debugging.
	AllocatorCreateValidateEachOperation
)

var allocatorCreateFlagsMapping = map[CreateFlags]string{
	AllocatorCreateNoMerge:               "AllocatorCreateNoMerge",
	AllocatorCreateValidateEachOperation: "AllocatorCreateValidateEachOperation",
}

func (f CreateFlags) String() string {
	if f == 0 {
		return "None"
	}

	var names []string
	for remaining := uint32(f); remaining != 0; {
		flag := CreateFlags(1 << bits.TrailingZeros32(remaining))
		remaining &^= uint32(flag)

		name, ok := allocatorCreateFlagsMapping[flag]
		if !ok {
			name = fmt.Sprintf("0x%x", uint32(flag))
		}
		names = append(names, name)
	}

	return strings.Join(names, "|")
}
