// Package check holds wiring assertions for the executors: a Phase built
// without its collaborators is a programming error, not a runtime
// condition, so it panics in debug builds and costs nothing in release
// builds. Never assert on host state; that is what errors are for.
package check
