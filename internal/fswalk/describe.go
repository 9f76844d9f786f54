package fswalk

import (
	"fmt"
	"os"

	"obnam-go/internal/index"
)

// Describe converts a walked Entry into an index.FileEntry populated
// with everything the filesystem can tell us: kind, permissions,
// ownership, timestamps, and (for symlinks) the link target. ChunkIDs
// is left empty; the Generation Builder fills it in once the entry's
// content, if any, has been chunked and uploaded.
func Describe(e Entry) (index.FileEntry, error) {
	mode := e.Info.Mode()

	kind, err := kindOf(mode)
	if err != nil {
		return index.FileEntry{}, fmt.Errorf("describing %s: %w", e.AbsPath, err)
	}

	dev, ino, nlink, uid, gid, mtimeSec, mtimeNsec, err := statInfo(e.Info)
	if err != nil {
		return index.FileEntry{}, fmt.Errorf("describing %s: %w", e.AbsPath, err)
	}

	fe := index.FileEntry{
		Path:      e.RelPath,
		Kind:      kind,
		Mode:      uint32(mode.Perm() | mode&(os.ModeSetuid|os.ModeSetgid|os.ModeSticky)),
		UID:       uid,
		GID:       gid,
		Dev:       dev,
		Ino:       ino,
		Nlink:     nlink,
		Size:      e.Info.Size(),
		MTimeSec:  mtimeSec,
		MTimeNsec: mtimeNsec,
	}

	if kind == index.KindSymlink {
		target, err := os.Readlink(e.AbsPath)
		if err != nil {
			return index.FileEntry{}, fmt.Errorf("reading symlink target for %s: %w", e.AbsPath, err)
		}
		fe.SymlinkTarget = target
	}

	return fe, nil
}

func kindOf(mode os.FileMode) (index.Kind, error) {
	switch {
	case mode.IsRegular():
		return index.KindRegular, nil
	case mode.IsDir():
		return index.KindDirectory, nil
	case mode&os.ModeSymlink != 0:
		return index.KindSymlink, nil
	case mode&os.ModeNamedPipe != 0:
		return index.KindFIFO, nil
	case mode&os.ModeSocket != 0:
		return index.KindSocket, nil
	default:
		return "", fmt.Errorf("unsupported file type: %v", mode)
	}
}
