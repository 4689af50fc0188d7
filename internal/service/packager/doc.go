// Package packager runs the packaging pipeline: build the desktop executable,
// stage the payload directory and, unless skipped, compress it into the
// distribution archive.
//
// Steps run strictly in order and the first failure aborts the run.
package packager
