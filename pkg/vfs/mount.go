package vfs

import (
	"fmt"
	"sync"

	"github.com/eric29200/kos/pkg/errno"
	"golang.org/x/sync/singleflight"
)

// MountTable tracks every mounted super block, keyed by the inode it is
// mounted on, and lets Namei transparently cross a mount boundary. It also
// collapses two tasks racing to mount the same device into a single disk
// read, the way pkg/vfs uses golang.org/x/sync/singleflight in the
// expanded spec's Domain Stack section.
type MountTable struct {
	mu      sync.RWMutex
	byPoint map[*Inode]*SuperBlock
	types   map[string]Filesystem
	group   singleflight.Group
}

var mountTable = NewMountTable()

// NewMountTable builds an empty table. Kept exported for tests that want an
// isolated instance instead of the process-wide singleton.
func NewMountTable() *MountTable {
	return &MountTable{
		byPoint: make(map[*Inode]*SuperBlock),
		types:   make(map[string]Filesystem),
	}
}

// Default returns the process-wide mount table used by Namei.
func Default() *MountTable { return mountTable }

// Register adds a file-system type (minix, tmpfs, devfs, proc) so Mount can
// find it by name.
func (m *MountTable) Register(fs Filesystem) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.types[fs.Name()] = fs
}

// Mount attaches fsType's super block at mountPoint. mountPoint keeps a live
// reference to the new super block's root inode for the lifetime of the
// mount: a mounted super block always holds a live reference to its root
// inode.
func (m *MountTable) Mount(mountPoint *Inode, fsType string, dev BlockDevice, opts string) (*SuperBlock, error) {
	key := fsType + ":" + deviceKey(dev)
	v, err, _ := m.group.Do(key, func() (any, error) {
		m.mu.RLock()
		fs, ok := m.types[fsType]
		m.mu.RUnlock()
		if !ok {
			return nil, errno.NotSupported
		}
		return fs.Mount(dev, opts)
	})
	if err != nil {
		return nil, err
	}
	sb := v.(*SuperBlock)

	m.mu.Lock()
	m.byPoint[mountPoint] = sb
	m.mu.Unlock()

	sb.IMount = mountPoint
	sb.Root.Get()
	return sb, nil
}

// Unmount detaches the super block mounted at mountPoint, releasing its
// root-inode reference.
func (m *MountTable) Unmount(mountPoint *Inode) error {
	m.mu.Lock()
	sb, ok := m.byPoint[mountPoint]
	if ok {
		delete(m.byPoint, mountPoint)
	}
	m.mu.Unlock()
	if !ok {
		return errno.InvalidArg
	}
	sb.Inodes.Iput(sb.Root)
	return nil
}

func (m *MountTable) lookup(mountPoint *Inode) (*SuperBlock, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sb, ok := m.byPoint[mountPoint]
	return sb, ok
}

func deviceKey(dev BlockDevice) string {
	if dev == nil {
		return "<memory>"
	}
	return fmt.Sprintf("%d", dev.ID())
}
