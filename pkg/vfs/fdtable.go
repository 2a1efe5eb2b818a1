package vfs

import (
	"sync"

	"github.com/eric29200/kos/pkg/errno"
)

// NROpen is the fixed per-task file table size.
const NROpen = 32

// FDTable is the per-task open-description table, matching struct
// files_struct: a fixed-size array of *File plus a close-on-exec bitmask.
type FDTable struct {
	mu        sync.Mutex
	files     [NROpen]*File
	closeExec [NROpen]bool
}

// NewFDTable returns an empty table.
func NewFDTable() *FDTable {
	return &FDTable{}
}

// Install finds the lowest unused slot and installs f there, failing with
// TooManyOpen when the table is full, matching open(2)'s fd-allocation
// contract.
func (t *FDTable) Install(f *File) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for fd := 0; fd < NROpen; fd++ {
		if t.files[fd] == nil {
			t.files[fd] = f
			t.closeExec[fd] = false
			return fd, nil
		}
	}
	return -1, errno.TooManyOpen
}

// InstallAt installs f at exactly fd, closing whatever was there first
// (dup2/dup3 semantics).
func (t *FDTable) InstallAt(fd int, f *File) error {
	if fd < 0 || fd >= NROpen {
		return errno.BadFd
	}
	t.mu.Lock()
	old := t.files[fd]
	t.files[fd] = f
	t.closeExec[fd] = false
	t.mu.Unlock()
	if old != nil && old != f {
		old.Close()
	}
	return nil
}

// Get returns the File installed at fd.
func (t *FDTable) Get(fd int) (*File, error) {
	if fd < 0 || fd >= NROpen {
		return nil, errno.BadFd
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	f := t.files[fd]
	if f == nil {
		return nil, errno.BadFd
	}
	return f, nil
}

// Close releases fd's slot and drops a reference on the underlying open
// description.
func (t *FDTable) Close(fd int) error {
	if fd < 0 || fd >= NROpen {
		return errno.BadFd
	}
	t.mu.Lock()
	f := t.files[fd]
	t.files[fd] = nil
	t.closeExec[fd] = false
	t.mu.Unlock()
	if f == nil {
		return errno.BadFd
	}
	return f.Close()
}

// Dup duplicates oldfd onto the lowest free slot, raising the open
// description's ref count (not the inode's) — plain dup(2).
func (t *FDTable) Dup(oldfd int) (int, error) {
	f, err := t.Get(oldfd)
	if err != nil {
		return -1, err
	}
	return t.Install(f.Dup())
}

// Dup2 duplicates oldfd onto newfd exactly, a no-op if they're already equal
// and both valid.
func (t *FDTable) Dup2(oldfd, newfd int) (int, error) {
	if oldfd == newfd {
		if _, err := t.Get(oldfd); err != nil {
			return -1, err
		}
		return newfd, nil
	}
	f, err := t.Get(oldfd)
	if err != nil {
		return -1, err
	}
	if err := t.InstallAt(newfd, f.Dup()); err != nil {
		return -1, err
	}
	return newfd, nil
}

// SetCloseOnExec toggles the close-on-exec bit for fd.
func (t *FDTable) SetCloseOnExec(fd int, on bool) error {
	if fd < 0 || fd >= NROpen {
		return errno.BadFd
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.files[fd] == nil {
		return errno.BadFd
	}
	t.closeExec[fd] = on
	return nil
}

// CloseOnExec reports fd's close-on-exec bit.
func (t *FDTable) CloseOnExec(fd int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closeExec[fd]
}

// Clone duplicates the whole table for fork, raising each installed open
// description's ref count.
func (t *FDTable) Clone() *FDTable {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := &FDTable{}
	for i, f := range t.files {
		if f != nil {
			n.files[i] = f.Dup()
			n.closeExec[i] = t.closeExec[i]
		}
	}
	return n
}

// CloseAll closes every installed descriptor, applying the close-on-exec
// filter only when onlyExec is true (execve keeps the rest; exit closes
// everything).
func (t *FDTable) CloseAll(onlyExec bool) {
	t.mu.Lock()
	var toClose []*File
	for i, f := range t.files {
		if f == nil {
			continue
		}
		if onlyExec && !t.closeExec[i] {
			continue
		}
		toClose = append(toClose, f)
		t.files[i] = nil
		t.closeExec[i] = false
	}
	t.mu.Unlock()
	for _, f := range toClose {
		f.Close()
	}
}
