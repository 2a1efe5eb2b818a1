// Package syscall is the dispatch table binding syscall numbers to the
// kernel/vfs/tty/socket operations they invoke — kernel/syscall.c's
// vector table, generalized the way gvisor's syscall tables map a
// Linux syscall number to a Go function.
package syscall

import (
	"sync"

	"github.com/eric29200/kos/pkg/errno"
	"github.com/eric29200/kos/pkg/kernel"
)

// Args is the fixed six-register argument list every syscall ABI this
// kernel targets (x86-64 System V) passes a syscall, trimmed of the
// vararg/struct-pointer decoding a full arch layer would do — each
// syscall function interprets its own subset.
type Args [6]uintptr

// Fn is one syscall's implementation: the calling task plus its raw
// arguments in, a return value (or negative errno, per syscall ABI
// convention — callers use errno.Kind.Negated) and an error out.
type Fn func(t *kernel.Task, args Args) (uintptr, error)

// Syscall pairs a human-readable name with its implementation, the
// `syscalls.Supported("read", Read)` shape.
type Syscall struct {
	Name string
	Fn   Fn
}

// Supported wraps fn as a named, implemented syscall table entry.
func Supported(name string, fn Fn) Syscall {
	return Syscall{Name: name, Fn: fn}
}

// Table is a syscall-number -> Syscall map. A number with no entry
// behaves like an unimplemented Linux syscall: ENOSYS.
type Table struct {
	mu      sync.RWMutex
	entries map[uintptr]Syscall
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{entries: make(map[uintptr]Syscall)}
}

// Override installs s at nr, replacing any previous entry — the same
// "override the table after building the base one" shape a vfs2.go-style
// Override() function uses to layer implementations on top of a default.
func (t *Table) Override(nr uintptr, s Syscall) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[nr] = s
}

// Delete removes nr's entry, the equivalent of `delete(s.Table, nr)` for a
// syscall number this kernel deliberately does not implement.
func (t *Table) Delete(nr uintptr) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, nr)
}

// Lookup returns nr's entry, if any.
func (t *Table) Lookup(nr uintptr) (Syscall, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.entries[nr]
	return s, ok
}

// Dispatch resolves nr and invokes it, returning NoSuchSyscall (ENOSYS)
// for an unknown number the way the original's syscall vector handles a
// gap in the table.
func (t *Table) Dispatch(task *kernel.Task, nr uintptr, args Args) (uintptr, error) {
	s, ok := t.Lookup(nr)
	if !ok {
		return 0, errno.NoSuchSyscall
	}
	return s.Fn(task, args)
}
