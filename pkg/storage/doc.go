// Package storage writes downloaded course files to disk.
//
// Files are streamed to "<path>.part" and renamed on success, so a file at
// its final path is always complete. Existence of the final path is what
// makes a later run skip the file.
package storage
