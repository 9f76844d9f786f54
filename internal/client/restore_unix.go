//go:build unix

package client

import (
	"time"

	"golang.org/x/sys/unix"
)

// mkfifo creates a FIFO special file at path with the given
// permission bits.
func mkfifo(path string, mode uint32) error {
	return unix.Mkfifo(path, mode)
}

// mksocket creates a socket special file at path. Sockets restored
// this way are inert filesystem nodes only; nothing is listening on
// them, matching what a backup of a live socket file can faithfully
// reproduce.
func mksocket(path string, mode uint32) error {
	return unix.Mknod(path, unix.S_IFSOCK|mode, 0)
}

// lutimes sets a symlink's own modification time without following
// it. Atime is set equal to mtime since the index database records
// only one timestamp per entry.
func lutimes(path string, sec, nsec int64) error {
	ts := []unix.Timespec{
		unix.NsecToTimespec(sec*int64(time.Second) + nsec),
		unix.NsecToTimespec(sec*int64(time.Second) + nsec),
	}
	return unix.UtimesNanoAt(unix.AT_FDCWD, path, ts, unix.AT_SYMLINK_NOFOLLOW)
}
