// Package fsutil provides the filesystem primitives of the pipeline:
// existence checks for required inputs, directory resets, and file and tree
// copies that preserve modes and modification times.
package fsutil
