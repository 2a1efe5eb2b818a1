package vfs

import (
	"time"

	"github.com/eric29200/kos/pkg/errno"
)

// SuperOperations is the super-block vtable, matching struct
// super_operations_t: read_inode/write_inode/put_inode.
type SuperOperations interface {
	ReadInode(inode *Inode) error
	WriteInode(inode *Inode) error
	PutInode(inode *Inode) error
}

// InodeOperations is the per-inode dispatch vtable, matching struct
// inode_operations_t. Every concrete file system implements the subset that
// makes sense for a given inode type; DefaultInodeOperations supplies
// NotSupported for the rest, the same pattern gvisor's
// vfs.FileDescriptionDefaultImpl uses for optional FileDescriptionImpl
// methods.
// InodeOperations implementations of Lookup and Create take ownership of
// the dir reference passed in: they must release it (via the owning
// InodeCache's Iput) exactly once before returning, success or failure,
// matching the original's "the called op must iput(cur) and either return
// a new ref or an error".
type InodeOperations interface {
	Lookup(dir *Inode, name string) (*Inode, error)
	Create(dir *Inode, name string, mode uint32) (*Inode, error)
	FollowLink(dir, link *Inode) (*Inode, error)
	Readlink(inode *Inode) (string, error)
	Link(dir, target *Inode, name string) error
	Unlink(dir *Inode, name string) error
	Symlink(dir *Inode, name, target string) error
	Mkdir(dir *Inode, name string, mode uint32) error
	Rmdir(dir *Inode, name string) error
	Truncate(inode *Inode, size uint64) error
	Bmap(inode *Inode, logicalBlock uint32, create bool) (uint32, error)
	Open(inode *Inode, flags int) (FileOperations, error)
}

// DefaultInodeOperations embeds into a concrete driver's operations struct
// to make every unimplemented capability return NotSupported, mirroring the
// "missing operation -> NOT-SUPPORTED" rule in the design notes.
type DefaultInodeOperations struct{}

func (DefaultInodeOperations) Lookup(*Inode, string) (*Inode, error) { return nil, errno.NotSupported }
func (DefaultInodeOperations) Create(*Inode, string, uint32) (*Inode, error) {
	return nil, errno.NotSupported
}
func (DefaultInodeOperations) FollowLink(_, _ *Inode) (*Inode, error) {
	return nil, errno.NotSupported
}
func (DefaultInodeOperations) Readlink(*Inode) (string, error)    { return "", errno.NotSupported }
func (DefaultInodeOperations) Link(_, _ *Inode, _ string) error   { return errno.NotSupported }
func (DefaultInodeOperations) Unlink(*Inode, string) error        { return errno.NotSupported }
func (DefaultInodeOperations) Symlink(*Inode, string, string) error {
	return errno.NotSupported
}
func (DefaultInodeOperations) Mkdir(*Inode, string, uint32) error { return errno.NotSupported }
func (DefaultInodeOperations) Rmdir(*Inode, string) error         { return errno.NotSupported }
func (DefaultInodeOperations) Truncate(*Inode, uint64) error      { return errno.NotSupported }
func (DefaultInodeOperations) Bmap(*Inode, uint32, bool) (uint32, error) {
	return 0, errno.NotSupported
}
func (DefaultInodeOperations) Open(*Inode, int) (FileOperations, error) {
	return nil, errno.NotSupported
}

// FileOperations is the open-file vtable, matching struct
// file_operations_t, generalized beyond the original's getdents-only
// surface to the read/write/seek/ioctl verbs a concrete driver needs.
type FileOperations interface {
	Read(f *File, buf []byte, offset int64) (int, error)
	Write(f *File, buf []byte, offset int64) (int, error)
	Getdents(f *File, max int) ([]Dirent, error)
	Ioctl(f *File, request uintptr, arg uintptr) error
	Release(f *File) error
}

// DefaultFileOperations gives every unimplemented verb NotSupported.
type DefaultFileOperations struct{}

func (DefaultFileOperations) Read(*File, []byte, int64) (int, error)  { return 0, errno.NotSupported }
func (DefaultFileOperations) Write(*File, []byte, int64) (int, error) { return 0, errno.NotSupported }
func (DefaultFileOperations) Getdents(*File, int) ([]Dirent, error) {
	return nil, errno.NotSupported
}
func (DefaultFileOperations) Ioctl(*File, uintptr, uintptr) error { return errno.NotSupported }
func (DefaultFileOperations) Release(*File) error                 { return nil }

// Dirent is one directory entry, matching struct dirent64_t. getdents and
// getdents64 both return it unchanged; no narrower dirent_t layout is
// produced.
type Dirent struct {
	Ino  uint64
	Off  int64
	Type uint8
	Name string
}

// Timestamps bundles the three inode times.
type Timestamps struct {
	Atime, Mtime, Ctime time.Time
}
