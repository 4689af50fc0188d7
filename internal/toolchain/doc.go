// Package toolchain runs the external build toolchain and locates the
// executable it produces.
//
// Invoker is the seam the pipeline depends on; Cargo is the production
// implementation and tests substitute their own.
package toolchain
