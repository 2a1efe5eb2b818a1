package syscall

import (
	"github.com/eric29200/kos/pkg/errno"
	"github.com/eric29200/kos/pkg/kernel"
	"github.com/eric29200/kos/pkg/vfs"
)

// Access mode bits for faccessat(2): existence/read/write/execute checks
// against the Minix mode's low 9 bits. This kernel tracks no uid/gid, so
// owner/group/other all collapse to the same "other" bits.
const (
	FOK = 0
	XOK = 1
	WOK = 2
	ROK = 4
)

// Getdents64 implements getdents64(2): identical to Getdents, since
// pkg/vfs's Dirent already carries a 64-bit Ino and this table never
// distinguishes the 32-bit legacy dirent layout. Kept as its own entry
// point rather than aliased directly onto NRGetdents so the syscall
// table's Name() reporting (strace-style) still shows which one a
// caller used.
func Getdents64(t *kernel.Task, args Args) (uintptr, error) {
	return Getdents(t, args)
}

// Faccessat implements faccessat(2): dirfd, path, mode, flags. dirfd is
// ignored — every path syscall in this table resolves relative to the
// calling task's CWD rather than an arbitrary directory fd, and this
// kernel has no openat-style dirfd table to resolve one against.
func Faccessat(t *kernel.Task, args Args) (uintptr, error) {
	path := argString(args[1])
	mode := uint32(args[2])

	pc := t.FS.PathContext()
	caches := startCache(pc, path)
	inode, err := vfs.Namei(caches, pc, pc.CWD, path, true)
	if err != nil {
		return 0, err
	}
	defer caches.Iput(inode)

	if mode == FOK {
		return 0, nil
	}
	perm := inode.Mode & 0o7
	if mode&ROK != 0 && perm&0o4 == 0 {
		return 0, errno.NoPermission
	}
	if mode&WOK != 0 && perm&0o2 == 0 {
		return 0, errno.NoPermission
	}
	if mode&XOK != 0 && perm&0o1 == 0 {
		return 0, errno.NoPermission
	}
	return 0, nil
}

// Statx implements the path-based subset of statx(2): dirfd (ignored, see
// Faccessat), path, flags (ignored), mask (ignored — the fixed Stat
// subset below is always filled in full), *Stat out-param.
func Statx(t *kernel.Task, args Args) (uintptr, error) {
	path := argString(args[1])
	out := (*Stat)(argPtr(args[4]))

	pc := t.FS.PathContext()
	caches := startCache(pc, path)
	inode, err := vfs.Namei(caches, pc, pc.CWD, path, true)
	if err != nil {
		return 0, err
	}
	defer caches.Iput(inode)

	*out = Stat{
		Ino:    inode.Ino,
		Mode:   inode.Mode,
		Size:   inode.Size,
		NLinks: inode.NLinks,
	}
	return 0, nil
}
