package index

// Kind identifies what sort of filesystem entry a FileEntry describes.
type Kind string

const (
	KindRegular   Kind = "regular"
	KindDirectory Kind = "directory"
	KindSymlink   Kind = "symlink"
	KindFIFO      Kind = "fifo"
	KindSocket    Kind = "socket"
)

// FileEntry is one row of the index database: everything needed to
// restore a single filesystem entry, plus enough metadata to decide,
// on the next backup, whether the entry changed at all.
type FileEntry struct {
	Path string
	Kind Kind

	Mode  uint32
	UID   uint32
	GID   uint32
	Dev   uint64
	Ino   uint64
	Nlink uint64
	Size  int64

	MTimeSec  int64
	MTimeNsec int64

	// SymlinkTarget is set only when Kind == KindSymlink.
	SymlinkTarget string

	// ChunkIDs is the ordered list of Data chunk ids making up this
	// file's content. Empty for anything but a regular file.
	ChunkIDs []string
}

// IdentityKey returns the subset of fields the Generation Builder's
// incremental optimisation compares against the previous generation's
// entry for the same path: if these match byte-for-byte, the file is
// assumed unchanged and its chunk list is copied verbatim instead of
// being re-read and re-chunked.
type IdentityKey struct {
	Dev       uint64
	Ino       uint64
	MTimeSec  int64
	MTimeNsec int64
	Size      int64
	Mode      uint32
}

// Identity extracts the comparison key used for incremental backups.
func (e FileEntry) Identity() IdentityKey {
	return IdentityKey{
		Dev:       e.Dev,
		Ino:       e.Ino,
		MTimeSec:  e.MTimeSec,
		MTimeNsec: e.MTimeNsec,
		Size:      e.Size,
		Mode:      e.Mode,
	}
}
