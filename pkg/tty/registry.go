package tty

import (
	"fmt"
	"sync"

	"github.com/eric29200/kos/pkg/fs/devfs"
	"github.com/eric29200/kos/pkg/ksched"
	"github.com/eric29200/kos/pkg/vfs"
)

// PTYRegistry is the /dev/ptmx allocator: each open mints a fresh
// master/slave pair and registers the slave at /dev/pts/<n>, matching
// the original's "one ptmx open = one new pty" behavior.
type PTYRegistry struct {
	mu      sync.Mutex
	devfs   *devfs.Filesystem
	sleeper ksched.Sleeper
	next    int
	slaves  map[int]*TTY
}

// NewPTYRegistry wires a ptmx allocator onto fs, registering /dev/ptmx
// itself so opening it mints new pairs.
func NewPTYRegistry(fs *devfs.Filesystem, sl ksched.Sleeper) *PTYRegistry {
	r := &PTYRegistry{devfs: fs, sleeper: sl, slaves: make(map[int]*TTY)}
	fs.AddDevice("ptmx", vfs.TypeChar, 0, 0o666, r.openPtmx)
	return r
}

func (r *PTYRegistry) openPtmx(inode *vfs.Inode, flags int) (vfs.FileOperations, error) {
	r.mu.Lock()
	r.next++
	n := r.next
	master, slave := NewPTYPair(n, r.sleeper)
	r.slaves[n] = slave
	r.mu.Unlock()

	// devfs is a flat directory (no nested mkdir support), so the
	// conventional /dev/pts/<n> hierarchy collapses to a single
	// top-level name here.
	name := fmt.Sprintf("pts%d", n)
	r.devfs.AddDevice(name, vfs.TypeChar, 0, 0o620, func(inode *vfs.Inode, flags int) (vfs.FileOperations, error) {
		return slave.Open(inode, flags)
	})

	return master.Open(inode, flags)
}

// Release drops the pts device and registry entry for n, called once a
// pty pair is fully torn down (master closed, no more references).
func (r *PTYRegistry) Release(n int) {
	r.mu.Lock()
	delete(r.slaves, n)
	r.mu.Unlock()
	r.devfs.RemoveDevice(fmt.Sprintf("pts%d", n))
}
