//go:build unix

package fswalk

import (
	"fmt"
	"io/fs"
	"syscall"
)

// statInfo extracts the platform-specific fields index.FileEntry needs
// (device, inode, link count, ownership, mtime with nanoseconds) from
// a FileInfo obtained during the walk.
func statInfo(info fs.FileInfo) (dev, ino, nlink uint64, uid, gid uint32, mtimeSec, mtimeNsec int64, err error) {
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return 0, 0, 0, 0, 0, 0, 0, fmt.Errorf("cannot extract stat data: expected *syscall.Stat_t, got %T", info.Sys())
	}
	return uint64(stat.Dev), uint64(stat.Ino), uint64(stat.Nlink), stat.Uid, stat.Gid, stat.Mtim.Sec, stat.Mtim.Nsec, nil
}
