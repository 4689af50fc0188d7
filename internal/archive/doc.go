// Package archive compresses a staged payload into a single zip file.
//
// Entries are named relative to the payload root and written in
// lexicographic order, so the same payload always yields the same archive.
package archive
