// Package devfs implements the device-node file system mounted at /dev:
// a flat directory of char/block special inodes whose open(2) dispatches
// to whatever driver registered itself for that device number, matching
// the original kernel's static /dev population from its character/block
// device driver tables rather than a disk-backed mkdir/mknod history.
// Grounded on pkg/fs/tmpfs's in-memory vtable shape, specialized to
// device nodes instead of general-purpose files and directories.
package devfs

import (
	"sort"
	"sync"

	"github.com/eric29200/kos/pkg/errno"
	"github.com/eric29200/kos/pkg/vfs"
)

// OpenFunc builds the FileOperations for a device inode on open(2); the
// driver owning a device number (tty, console, null, zero, ...) supplies
// this when it registers.
type OpenFunc func(inode *vfs.Inode, flags int) (vfs.FileOperations, error)

type deviceNode struct {
	ino  uint64
	typ  vfs.FileType
	dev  uint64
	mode uint32
	open OpenFunc
}

// Filesystem is the devfs instance: a single flat directory of registered
// device nodes.
type Filesystem struct {
	mu      sync.Mutex
	byIno   map[uint64]*deviceNode
	byName  map[string]uint64
	nextIno uint64
}

// NewFilesystem builds an empty devfs and seeds it with /dev/null and
// /dev/zero, the two device nodes every other example in the pack assumes
// exist unconditionally.
func NewFilesystem() *Filesystem {
	f := &Filesystem{byIno: make(map[uint64]*deviceNode), byName: make(map[string]uint64)}
	f.nextIno = 1 // 1 is the root directory itself
	f.AddDevice("null", vfs.TypeChar, devNum(1, 3), 0o666, nullOpen)
	f.AddDevice("zero", vfs.TypeChar, devNum(1, 5), 0o666, zeroOpen)
	return f
}

// devNum packs (major, minor) the way the original's MKDEV macro does.
func devNum(major, minor uint32) uint64 {
	return uint64(major)<<8 | uint64(minor&0xff)
}

func (f *Filesystem) Name() string { return "devfs" }

func (f *Filesystem) Mount(dev vfs.BlockDevice, opts string) (*vfs.SuperBlock, error) {
	sb := &vfs.SuperBlock{
		Dev:     dev,
		Ops:     &superOps{fs: f},
		Inodes:  vfs.NewInodeCache(),
		Private: f,
		FSType:  "devfs",
	}
	root, err := sb.Inodes.Iget(sb, 1)
	if err != nil {
		return nil, err
	}
	sb.Root = root
	return sb, nil
}

// AddDevice registers a new device node visible at /dev/name, returning
// errno.Exists if the name is already taken. A real boot sequence calls
// this once per driver as it initializes (console, tty, the PTY
// allocator); tests and early boot can call it directly too.
func (f *Filesystem) AddDevice(name string, typ vfs.FileType, dev uint64, mode uint32, open OpenFunc) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.byName[name]; exists {
		return errno.Exists
	}
	f.nextIno++
	n := &deviceNode{ino: f.nextIno, typ: typ, dev: dev, mode: mode, open: open}
	f.byIno[n.ino] = n
	f.byName[name] = n.ino
	return nil
}

// RemoveDevice unregisters a device node (a driver tearing itself down).
func (f *Filesystem) RemoveDevice(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ino, ok := f.byName[name]; ok {
		delete(f.byName, name)
		delete(f.byIno, ino)
	}
}

type superOps struct {
	fs *Filesystem
}

func (o *superOps) ReadInode(inode *vfs.Inode) error {
	if inode.Ino == 1 {
		inode.Type = vfs.TypeDir
		inode.Mode = 0o755
		inode.NLinks = 2
		inode.Ops = &inodeOps{fs: o.fs}
		return nil
	}
	o.fs.mu.Lock()
	n, ok := o.fs.byIno[inode.Ino]
	o.fs.mu.Unlock()
	if !ok {
		return errno.NoSuchFile
	}
	inode.Type = n.typ
	inode.Mode = n.mode
	inode.NLinks = 1
	inode.Dev = n.dev
	inode.Private = n
	inode.Ops = &inodeOps{fs: o.fs}
	return nil
}

func (o *superOps) WriteInode(inode *vfs.Inode) error { return nil }
func (o *superOps) PutInode(inode *vfs.Inode) error   { return nil }

type inodeOps struct {
	vfs.DefaultInodeOperations
	fs *Filesystem
}

func (o *inodeOps) Lookup(dir *vfs.Inode, name string) (*vfs.Inode, error) {
	sb := dir.SB
	if dir.Ino != 1 {
		sb.Inodes.Iput(dir)
		return nil, errno.NotADir
	}
	o.fs.mu.Lock()
	ino, ok := o.fs.byName[name]
	o.fs.mu.Unlock()
	sb.Inodes.Iput(dir)
	if !ok {
		return nil, errno.NoSuchFile
	}
	return sb.Inodes.Iget(sb, ino)
}

func (o *inodeOps) Open(inode *vfs.Inode, flags int) (vfs.FileOperations, error) {
	if inode.Ino == 1 {
		return &dirFileOps{fs: o.fs}, nil
	}
	n, _ := inode.Private.(*deviceNode)
	if n == nil || n.open == nil {
		return nil, errno.NoSuchDevice
	}
	return n.open(inode, flags)
}

// dirFileOps lists the registered device nodes, matching a read of /dev
// itself.
type dirFileOps struct {
	vfs.DefaultFileOperations
	fs *Filesystem
}

func (o *dirFileOps) Getdents(f *vfs.File, max int) ([]vfs.Dirent, error) {
	o.fs.mu.Lock()
	names := make([]string, 0, len(o.fs.byName))
	byName := make(map[string]uint64, len(o.fs.byName))
	for name, ino := range o.fs.byName {
		names = append(names, name)
		byName[name] = ino
	}
	o.fs.mu.Unlock()
	sort.Strings(names)

	start := f.Pos()
	var out []vfs.Dirent
	var i int64
	for i = start; i < int64(len(names)) && len(out) < max; i++ {
		name := names[i]
		out = append(out, vfs.Dirent{Ino: byName[name], Off: i + 1, Name: name})
	}
	f.Advance(i - start)
	return out, nil
}

// nullOpen/zeroOpen implement the two always-present device nodes
// in-line since they need no external driver state.
type nullFileOps struct{ vfs.DefaultFileOperations }

func (nullFileOps) Read(*vfs.File, []byte, int64) (int, error)  { return 0, nil }
func (nullFileOps) Write(_ *vfs.File, buf []byte, _ int64) (int, error) { return len(buf), nil }

func nullOpen(inode *vfs.Inode, flags int) (vfs.FileOperations, error) {
	return nullFileOps{}, nil
}

type zeroFileOps struct{ vfs.DefaultFileOperations }

func (zeroFileOps) Read(_ *vfs.File, buf []byte, _ int64) (int, error) {
	for i := range buf {
		buf[i] = 0
	}
	return len(buf), nil
}
func (zeroFileOps) Write(_ *vfs.File, buf []byte, _ int64) (int, error) { return len(buf), nil }

func zeroOpen(inode *vfs.Inode, flags int) (vfs.FileOperations, error) {
	return zeroFileOps{}, nil
}
