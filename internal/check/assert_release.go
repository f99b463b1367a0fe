//go:build !debug

package check

// Assert is a no-op in release builds; the bootstrap binary shipped to
// hosts never panics on a wiring assertion.
func Assert(_ bool, _ string) {}

// Assertf is a no-op in release builds.
func Assertf(_ bool, _ string, _ ...any) {}
