//go:build debug_mem_utils

package memutils

import "fmt"

// DebugEnabled reports whether memutils was built with the debug_mem_utils build tag
const DebugEnabled = true

// DebugValidate will call Validate on the provided object and panics if any errors are returned. This
// method no-ops unless the debug_mem_utils build tag is present
func DebugValidate(validatable Validatable) {
	err := validatable.Validate()
	if err != nil {
		panic(err)
	}
}

// DebugCheckPow2 will verify that the numerical value passed in is a power of two, and panics if it is not.
// This method no-ops unless the debug_mem_utils build tag is present.
func DebugCheckPow2[T Number](value T, name string) {
	err := CheckPow2[T](value, name)
	if err != nil {
		panic(err)
	}
}

// DebugCheckAligned will verify that value is a multiple of alignment, and panics if it is not.
// This method no-ops unless the debug_mem_utils build tag is present.
func DebugCheckAligned[T Number](value T, alignment T, name string) {
	if !IsAligned(value, alignment) {
		panic(fmt.Sprintf("%s is %d, which is not a multiple of %d", name, value, alignment))
	}
}
