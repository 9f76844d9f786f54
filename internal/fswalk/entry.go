// Package fswalk traverses the backup roots, applying ignore rules and
// CACHEDIR.TAG detection, and yields the raw filesystem entries the
// Generation Builder turns into index database rows.
package fswalk

import "os"

// Entry is one filesystem object discovered by a Walk.
type Entry struct {
	// AbsPath is the entry's absolute path on disk.
	AbsPath string
	// RelPath is AbsPath relative to the backup root it was found
	// under, using forward slashes, matching what gets stored in the
	// index database.
	RelPath string
	Info    os.FileInfo
}

// Warning describes one file the walker could not process, without
// aborting the whole walk: a single unreadable file must not fail an
// entire backup run.
type Warning struct {
	Path string
	Err  error
}

func (w Warning) Error() string {
	return w.Path + ": " + w.Err.Error()
}
