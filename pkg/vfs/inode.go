package vfs

import (
	"sync"

	"github.com/eric29200/kos/pkg/errno"
	"github.com/eric29200/kos/pkg/klog"
)

var inodeLog = klog.For("vfs.inode")

// FileType mirrors the S_IFMT mode bits the original packs into i_mode.
type FileType uint32

const (
	TypeRegular FileType = iota
	TypeDir
	TypeChar
	TypeBlock
	TypeFifo
	TypeSymlink
	TypeSocket
)

// Inode is the in-memory representation of a file-system object, matching
// struct inode_t. Direct/indirect zone pointers are left to the concrete
// driver (e.g. pkg/fs/minix keeps its own 9-entry zone array); this struct
// carries only what every driver and the VFS core itself needs.
type Inode struct {
	mu sync.Mutex

	Ino    uint64
	Type   FileType
	Mode   uint32
	UID    uint32
	GID    uint32
	Size   uint64
	Times  Timestamps
	NLinks uint32

	Dev uint64 // major/minor encoded device number for char/block special inodes

	// Pipe state, set only when this inode backs an anonymous pipe.
	Pipe *PipeState

	SB  *SuperBlock // nil for pipes and sockets (no backing super block)
	Ops InodeOperations

	refCount int
	dirty    bool

	// Private is a filesystem-private payload (e.g. the minix driver's own
	// zone array, or tmpfs's in-memory byte buffer).
	Private any
}

// Get raises the inode's reference count. Used when an inode pointer is
// cloned into a second owner (fork's fd table duplication, a dentry cache
// hit) without going through iget.
func (i *Inode) Get() *Inode {
	i.mu.Lock()
	i.refCount++
	i.mu.Unlock()
	return i
}

// RefCount reports the current reference count (for tests/diagnostics).
func (i *Inode) RefCount() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.refCount
}

// MarkDirty flags the inode for write-back on the next iput to zero.
func (i *Inode) MarkDirty() {
	i.mu.Lock()
	i.dirty = true
	i.mu.Unlock()
}

// InodeCache is the per-super-block (or global, for pipes) inode cache
// implementing iget/iput, matching kernel/fs/inode.c.
type InodeCache struct {
	mu    sync.Mutex
	byIno map[uint64]*Inode
}

// NewInodeCache creates an empty cache.
func NewInodeCache() *InodeCache {
	return &InodeCache{byIno: make(map[uint64]*Inode)}
}

// Iget returns a ref-counted in-memory inode for ino on sb, reading it from
// disk via sb's ReadInode operation on a cache miss.
func (c *InodeCache) Iget(sb *SuperBlock, ino uint64) (*Inode, error) {
	c.mu.Lock()
	if inode, ok := c.byIno[ino]; ok {
		inode.mu.Lock()
		inode.refCount++
		inode.mu.Unlock()
		c.mu.Unlock()
		return inode, nil
	}
	c.mu.Unlock()

	inode := &Inode{Ino: ino, SB: sb, refCount: 1}
	if err := sb.Ops.ReadInode(inode); err != nil {
		return nil, err
	}

	c.mu.Lock()
	// Another task may have raced us to read the same inode; prefer the
	// already-cached copy to preserve the "at most one inode per ino"
	// invariant, releasing the one we just built.
	if existing, ok := c.byIno[ino]; ok {
		existing.mu.Lock()
		existing.refCount++
		existing.mu.Unlock()
		c.mu.Unlock()
		return existing, nil
	}
	c.byIno[ino] = inode
	c.mu.Unlock()
	return inode, nil
}

// Iput releases a reference. On the last reference, a dirty inode is
// written back through its super block's operations, then freed.
func (c *InodeCache) Iput(inode *Inode) error {
	if inode == nil {
		return nil
	}

	inode.mu.Lock()
	wasDirty := inode.dirty
	inode.refCount--
	remaining := inode.refCount
	inode.dirty = false
	inode.mu.Unlock()

	if wasDirty && inode.SB != nil {
		if err := inode.SB.Ops.WriteInode(inode); err != nil {
			inodeLog.Errorf("write back inode %d: %v", inode.Ino, err)
			return err
		}
	}

	if remaining <= 0 {
		c.mu.Lock()
		delete(c.byIno, inode.Ino)
		c.mu.Unlock()
		if inode.SB != nil && inode.SB.Ops != nil {
			inode.SB.Ops.PutInode(inode)
		}
	} else if remaining < 0 {
		inodeLog.Errorf("inode %d ref count underflow", inode.Ino)
		return errno.InvalidArg
	}
	return nil
}

// PutPipeOrSocket frees an inode with no backing super block immediately:
// pipes and sockets have no backing super block and are freed immediately.
func PutPipeOrSocket(inode *Inode) {
	if inode == nil {
		return
	}
	inode.mu.Lock()
	inode.refCount--
	inode.mu.Unlock()
}

// NewEmptyInode allocates an unattached, ref-counted inode — get_empty_inode.
func NewEmptyInode() *Inode {
	return &Inode{refCount: 1}
}
