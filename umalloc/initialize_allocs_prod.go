//go:build !debug_init_allocs

package umalloc

const (
	// InitializeAllocs is only true when built with the debug_init_allocs build tag
	InitializeAllocs bool = false
)
