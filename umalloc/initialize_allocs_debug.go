//go:build debug_init_allocs

package umalloc

const (
	// InitializeAllocs causes all new allocations to be filled with deterministic data, and all
	// freed allocations to be overwritten with a different pattern. If you are concerned that
	// uninitialized memory or a use after free is causing a bug, you can activate this to help
	// diagnose the issue. It impacts performance and should generally be left deactivated.
	InitializeAllocs bool = true
)
