// Package payload assembles the unzip-and-run directory: the renamed
// executable, the UI entry file, the asset tree and any engine payloads.
//
// Every Stage call starts from an empty directory, so files from an earlier
// run with different inputs never survive.
package payload
