package vfs

import (
	"sync"

	"github.com/eric29200/kos/pkg/errno"
)

// OpenFlags mirrors the O_* flags relevant to the VFS core; the full set
// (O_DIRECT, O_SYNC, ...) is passed through to drivers verbatim.
const (
	ORdOnly = 0x0000
	OWrOnly = 0x0001
	ORdWr   = 0x0002
	OAccMode = 0x0003

	OCreat    = 0x0040
	OExcl     = 0x0080
	ONoctty   = 0x0100
	OTrunc    = 0x0200
	OAppend   = 0x0400
	ONonblock = 0x0800
	ODirectory = 0x10000
	ONofollow  = 0x20000
	OCloexec   = 0x80000
)

// File is an open file description, matching struct file_t. It sits between
// a per-task descriptor and the inode; closing it transitions its ref count
// to zero exactly once, releasing the inode reference there.
type File struct {
	mu sync.Mutex

	Mode  uint32
	Flags int
	pos   int64

	refCount int

	Inode   *Inode
	Ops     FileOperations
	Private any

	inodes *InodeCache // needed to release the inode reference on close
}

// NewFile wraps inode in a ref-counted open description.
func NewFile(inode *Inode, flags int, ops FileOperations, inodes *InodeCache) *File {
	return &File{
		Flags:    flags,
		Inode:    inode,
		Ops:      ops,
		refCount: 1,
		inodes:   inodes,
	}
}

// Dup raises the open description's reference count, used by dup/dup2/dup3
// and by fork's file-table clone: callers share the same offset.
func (f *File) Dup() *File {
	f.mu.Lock()
	f.refCount++
	f.mu.Unlock()
	return f
}

// Close decrements the ref count; on the last reference it releases the
// driver's own state and drops the inode reference exactly once.
func (f *File) Close() error {
	f.mu.Lock()
	f.refCount--
	last := f.refCount <= 0
	f.mu.Unlock()
	if !last {
		return nil
	}
	var err error
	if f.Ops != nil {
		err = f.Ops.Release(f)
	}
	if f.Inode != nil {
		if f.Inode.SB != nil && f.inodes != nil {
			f.inodes.Iput(f.Inode)
		} else {
			PutPipeOrSocket(f.Inode)
		}
	}
	return err
}

// Seek updates and returns the current offset per SEEK_SET/CUR/END
// semantics; END needs the inode size, passed in by the caller since only
// the syscall layer knows how to fetch it from the concrete driver.
func (f *File) Seek(offset int64, whence int, size int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var next int64
	switch whence {
	case 0: // SEEK_SET
		next = offset
	case 1: // SEEK_CUR
		next = f.pos + offset
	case 2: // SEEK_END
		next = size + offset
	default:
		return f.pos, errno.InvalidArg
	}
	if next < 0 {
		return f.pos, errno.Range
	}
	f.pos = next
	return f.pos, nil
}

// Pos returns the current offset.
func (f *File) Pos() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pos
}

// Advance moves the offset forward by n bytes (after a read/write at the
// current position).
func (f *File) Advance(n int64) {
	f.mu.Lock()
	f.pos += n
	f.mu.Unlock()
}
