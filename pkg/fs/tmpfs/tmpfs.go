// Package tmpfs implements a purely in-memory file system: every inode's
// data lives in a Go slice or map rather than behind a vfs.BlockDevice,
// the way original_source's ramfs-style filesystems hold their pages
// directly in the page cache with no backing store. Grounded on
// pkg/fs/minix's vtable shape (SuperOperations/InodeOperations/
// FileOperations), generalized to drop the block-device, bitmap, and
// zone-pointer machinery minix needs and tmpfs doesn't.
package tmpfs

import (
	"sort"
	"sync"
	"time"

	"github.com/eric29200/kos/pkg/errno"
	"github.com/eric29200/kos/pkg/vfs"
)

// node is the canonical, persistent-for-the-process-lifetime state of a
// tmpfs inode; *vfs.Inode is rebuilt from it on every Iget cache miss via
// ReadInode, mirroring the minix driver's on-disk-record split but with
// the "disk" being this struct itself.
type node struct {
	mu      sync.Mutex
	ino     uint64
	typ     vfs.FileType
	mode    uint32
	nlinks  uint32
	data    []byte            // regular file content
	target  string            // symlink target
	entries map[string]uint64 // directory: name -> child ino
	mtime   time.Time
}

// Filesystem implements vfs.Filesystem, holding every live node in memory
// keyed by inode number.
type Filesystem struct {
	mu      sync.Mutex
	nodes   map[uint64]*node
	nextIno uint64
}

// NewFilesystem builds an empty tmpfs instance.
func NewFilesystem() *Filesystem {
	return &Filesystem{nodes: make(map[uint64]*node)}
}

func (f *Filesystem) Name() string { return "tmpfs" }

// Mount ignores dev (tmpfs has no backing store) and builds a root
// directory inode with "." and ".." entries pointing at itself.
func (f *Filesystem) Mount(dev vfs.BlockDevice, opts string) (*vfs.SuperBlock, error) {
	f.mu.Lock()
	f.nextIno = 1
	root := &node{
		ino:     1,
		typ:     vfs.TypeDir,
		mode:    0o755,
		nlinks:  2,
		entries: map[string]uint64{".": 1, "..": 1},
		mtime:   time.Now(),
	}
	f.nodes[1] = root
	f.mu.Unlock()

	sb := &vfs.SuperBlock{
		Dev:    dev,
		Ops:    &superOps{fs: f},
		Inodes: vfs.NewInodeCache(),
		Private: f,
		FSType: "tmpfs",
	}
	rootInode, err := sb.Inodes.Iget(sb, 1)
	if err != nil {
		return nil, err
	}
	sb.Root = rootInode
	return sb, nil
}

func (f *Filesystem) alloc(typ vfs.FileType, mode uint32) *node {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextIno++
	n := &node{ino: f.nextIno, typ: typ, mode: mode, nlinks: 1, mtime: time.Now()}
	if typ == vfs.TypeDir {
		n.entries = make(map[string]uint64)
		n.nlinks = 2
	}
	f.nodes[n.ino] = n
	return n
}

func (f *Filesystem) get(ino uint64) *node {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.nodes[ino]
}

func (f *Filesystem) free(ino uint64) {
	f.mu.Lock()
	delete(f.nodes, ino)
	f.mu.Unlock()
}

// superOps implements vfs.SuperOperations against the node map.
type superOps struct {
	fs *Filesystem
}

func (o *superOps) ReadInode(inode *vfs.Inode) error {
	n := o.fs.get(inode.Ino)
	if n == nil {
		return errno.NoSuchFile
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	inode.Type = n.typ
	inode.Mode = n.mode
	inode.NLinks = n.nlinks
	inode.Times = vfs.Timestamps{Atime: n.mtime, Mtime: n.mtime, Ctime: n.mtime}
	if n.typ == vfs.TypeDir {
		inode.Size = uint64(len(n.entries)) * 32
	} else {
		inode.Size = uint64(len(n.data))
	}
	inode.Private = n
	inode.Ops = &inodeOps{fs: o.fs}
	return nil
}

// WriteInode copies the in-memory inode's mutable fields back onto its
// node — there is no disk to flush to, so this is the whole of tmpfs's
// write-back path.
func (o *superOps) WriteInode(inode *vfs.Inode) error {
	n, _ := inode.Private.(*node)
	if n == nil {
		return nil
	}
	n.mu.Lock()
	n.mode = inode.Mode
	n.nlinks = inode.NLinks
	n.mu.Unlock()
	return nil
}

// PutInode drops the node entirely once its link count reaches zero,
// matching minix's free-on-last-unlink behavior but with nothing to zero
// on disk.
func (o *superOps) PutInode(inode *vfs.Inode) error {
	if inode.NLinks > 0 {
		return nil
	}
	o.fs.free(inode.Ino)
	return nil
}

// inodeOps implements vfs.InodeOperations over the node map.
type inodeOps struct {
	vfs.DefaultInodeOperations
	fs *Filesystem
}

func dirNode(inode *vfs.Inode) (*node, error) {
	n, _ := inode.Private.(*node)
	if n == nil || n.typ != vfs.TypeDir {
		return nil, errno.NotADir
	}
	return n, nil
}

func (o *inodeOps) Lookup(dir *vfs.Inode, name string) (*vfs.Inode, error) {
	sb := dir.SB
	dn, err := dirNode(dir)
	if err != nil {
		sb.Inodes.Iput(dir)
		return nil, err
	}
	dn.mu.Lock()
	ino, ok := dn.entries[name]
	dn.mu.Unlock()
	sb.Inodes.Iput(dir)
	if !ok {
		return nil, errno.NoSuchFile
	}
	return sb.Inodes.Iget(sb, ino)
}

func (o *inodeOps) Create(dir *vfs.Inode, name string, mode uint32) (*vfs.Inode, error) {
	sb := dir.SB
	dn, err := dirNode(dir)
	if err != nil {
		sb.Inodes.Iput(dir)
		return nil, err
	}
	child := o.fs.alloc(vfs.TypeRegular, mode)
	dn.mu.Lock()
	if _, exists := dn.entries[name]; exists {
		dn.mu.Unlock()
		o.fs.free(child.ino)
		sb.Inodes.Iput(dir)
		return nil, errno.Exists
	}
	dn.entries[name] = child.ino
	dn.mu.Unlock()
	sb.Inodes.Iput(dir)
	return sb.Inodes.Iget(sb, child.ino)
}

func (o *inodeOps) Mkdir(dir *vfs.Inode, name string, mode uint32) error {
	dn, err := dirNode(dir)
	if err != nil {
		return err
	}
	child := o.fs.alloc(vfs.TypeDir, mode)
	child.entries["."] = child.ino
	child.entries[".."] = dir.Ino
	dn.mu.Lock()
	if _, exists := dn.entries[name]; exists {
		dn.mu.Unlock()
		o.fs.free(child.ino)
		return errno.Exists
	}
	dn.entries[name] = child.ino
	dn.mu.Unlock()
	dn.mu.Lock()
	dn.nlinks++
	dn.mu.Unlock()
	return nil
}

func (o *inodeOps) Rmdir(dir *vfs.Inode, name string) error {
	dn, err := dirNode(dir)
	if err != nil {
		return err
	}
	dn.mu.Lock()
	ino, ok := dn.entries[name]
	dn.mu.Unlock()
	if !ok {
		return errno.NoSuchFile
	}
	child := o.fs.get(ino)
	if child == nil || child.typ != vfs.TypeDir {
		return errno.NotADir
	}
	child.mu.Lock()
	empty := len(child.entries) <= 2 // only "." and ".."
	child.mu.Unlock()
	if !empty {
		return errno.NotSupported
	}
	dn.mu.Lock()
	delete(dn.entries, name)
	dn.nlinks--
	dn.mu.Unlock()
	o.fs.free(ino)
	return nil
}

func (o *inodeOps) Unlink(dir *vfs.Inode, name string) error {
	dn, err := dirNode(dir)
	if err != nil {
		return err
	}
	dn.mu.Lock()
	ino, ok := dn.entries[name]
	if ok {
		delete(dn.entries, name)
	}
	dn.mu.Unlock()
	if !ok {
		return errno.NoSuchFile
	}
	child := o.fs.get(ino)
	if child == nil {
		return nil
	}
	child.mu.Lock()
	if child.typ == vfs.TypeDir {
		child.mu.Unlock()
		return errno.IsADir
	}
	if child.nlinks > 0 {
		child.nlinks--
	}
	drop := child.nlinks == 0
	child.mu.Unlock()
	if drop {
		o.fs.free(ino)
	}
	return nil
}

func (o *inodeOps) Link(dir, target *vfs.Inode, name string) error {
	if target.Type == vfs.TypeDir {
		return errno.NotSupported
	}
	dn, err := dirNode(dir)
	if err != nil {
		return err
	}
	tn, _ := target.Private.(*node)
	if tn == nil {
		return errno.InvalidArg
	}
	dn.mu.Lock()
	if _, exists := dn.entries[name]; exists {
		dn.mu.Unlock()
		return errno.Exists
	}
	dn.entries[name] = tn.ino
	dn.mu.Unlock()
	tn.mu.Lock()
	tn.nlinks++
	tn.mu.Unlock()
	return nil
}

func (o *inodeOps) Symlink(dir *vfs.Inode, name, target string) error {
	dn, err := dirNode(dir)
	if err != nil {
		return err
	}
	child := o.fs.alloc(vfs.TypeSymlink, 0o777)
	child.target = target
	dn.mu.Lock()
	if _, exists := dn.entries[name]; exists {
		dn.mu.Unlock()
		o.fs.free(child.ino)
		return errno.Exists
	}
	dn.entries[name] = child.ino
	dn.mu.Unlock()
	return nil
}

func (o *inodeOps) Readlink(inode *vfs.Inode) (string, error) {
	n, _ := inode.Private.(*node)
	if n == nil || n.typ != vfs.TypeSymlink {
		return "", errno.InvalidArg
	}
	return n.target, nil
}

func (o *inodeOps) FollowLink(dir, link *vfs.Inode) (*vfs.Inode, error) {
	sb := link.SB
	target, err := o.Readlink(link)
	sb.Inodes.Iput(link)
	if err != nil {
		return nil, err
	}
	pc := vfs.PathContext{Root: dir, CWD: dir}
	return vfs.Namei(sb.Inodes, pc, dir, target, true)
}

func (o *inodeOps) Truncate(inode *vfs.Inode, size uint64) error {
	n, _ := inode.Private.(*node)
	if n == nil || n.typ != vfs.TypeRegular {
		return errno.InvalidArg
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if uint64(len(n.data)) == size {
		return nil
	}
	buf := make([]byte, size)
	copy(buf, n.data)
	n.data = buf
	inode.Size = size
	inode.MarkDirty()
	return nil
}

func (o *inodeOps) Open(inode *vfs.Inode, flags int) (vfs.FileOperations, error) {
	n, _ := inode.Private.(*node)
	if n == nil {
		return nil, errno.InvalidArg
	}
	switch n.typ {
	case vfs.TypeDir:
		return &dirFileOps{node: n}, nil
	case vfs.TypeRegular:
		return &regularFileOps{node: n}, nil
	default:
		return nil, errno.NotSupported
	}
}

// regularFileOps implements vfs.FileOperations directly against a node's
// byte slice — no block cache is needed since the whole file already
// lives in memory.
type regularFileOps struct {
	vfs.DefaultFileOperations
	node *node
}

func (o *regularFileOps) Read(f *vfs.File, buf []byte, offset int64) (int, error) {
	n := o.node
	n.mu.Lock()
	defer n.mu.Unlock()
	if offset >= int64(len(n.data)) {
		return 0, nil
	}
	return copy(buf, n.data[offset:]), nil
}

func (o *regularFileOps) Write(f *vfs.File, buf []byte, offset int64) (int, error) {
	n := o.node
	n.mu.Lock()
	defer n.mu.Unlock()
	end := offset + int64(len(buf))
	if end > int64(len(n.data)) {
		grown := make([]byte, end)
		copy(grown, n.data)
		n.data = grown
	}
	copied := copy(n.data[offset:end], buf)
	f.Inode.Size = uint64(len(n.data))
	return copied, nil
}

// dirFileOps implements vfs.FileOperations for an open tmpfs directory,
// listing entries in a stable sorted order so repeated getdents(2) calls
// at growing offsets make forward progress deterministically.
type dirFileOps struct {
	vfs.DefaultFileOperations
	node *node
}

func (o *dirFileOps) Getdents(f *vfs.File, max int) ([]vfs.Dirent, error) {
	o.node.mu.Lock()
	names := make([]string, 0, len(o.node.entries))
	entries := make(map[string]uint64, len(o.node.entries))
	for name, ino := range o.node.entries {
		names = append(names, name)
		entries[name] = ino
	}
	o.node.mu.Unlock()
	sort.Strings(names)

	start := f.Pos()
	var out []vfs.Dirent
	var i int64
	for i = start; i < int64(len(names)) && len(out) < max; i++ {
		name := names[i]
		out = append(out, vfs.Dirent{Ino: entries[name], Off: i + 1, Name: name})
	}
	f.Advance(i - start)
	return out, nil
}
