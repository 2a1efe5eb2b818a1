// Package kernel implements the task model and scheduler — task creation,
// the run queue, sleep/wakeup, signal delivery, fork and exit — the way
// kernel/proc/task.c and kernel/proc/sched.c drive a single, cooperatively
// scheduled CPU. pkg/vfs and pkg/tty depend only on the leaf
// github.com/eric29200/kos/pkg/ksched.Sleeper interface so they can block a
// task without importing this package; each task's TaskSleeper (from
// Task.Sleeper) implements it.
package kernel

import (
	"sync"

	"github.com/eric29200/kos/pkg/vfs"
)

// State is a task's scheduling state, matching task_state_t.
type State int

const (
	Running State = iota
	Sleeping
	Stopped
	Zombie
	Terminated
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Sleeping:
		return "sleeping"
	case Stopped:
		return "stopped"
	case Zombie:
		return "zombie"
	case Terminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// FSState is the per-task filesystem context (struct fs_struct): current
// working directory, root, and umask. Kept as an explicit, passable value
// rather than a global, per the design notes' "no magic current_task-style
// globals in the type surface" guidance.
type FSState struct {
	mu    sync.Mutex
	CWD   *vfs.Inode
	Root  *vfs.Inode
	Umask uint32
}

// Clone duplicates the fs_struct for fork, raising cwd/root's reference
// counts (they are shared, not copied, until the child calls chdir/chroot).
func (f *FSState) Clone() *FSState {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := &FSState{Umask: f.Umask}
	if f.CWD != nil {
		n.CWD = f.CWD.Get()
	}
	if f.Root != nil {
		n.Root = f.Root.Get()
	}
	return n
}

// Chdir replaces the working directory, releasing the previous one.
func (f *FSState) Chdir(caches *vfs.InodeCache, newCWD *vfs.Inode) {
	f.mu.Lock()
	old := f.CWD
	f.CWD = newCWD
	f.mu.Unlock()
	caches.Iput(old)
}

// PathContext snapshots root/cwd/umask into the vfs.PathContext every
// path-resolution syscall needs, the one place the syscall layer is
// allowed to read these fields instead of reaching into FSState directly.
func (f *FSState) PathContext() vfs.PathContext {
	f.mu.Lock()
	defer f.mu.Unlock()
	return vfs.PathContext{Root: f.Root, CWD: f.CWD, Umask: f.Umask}
}

// VMA is a minimal virtual memory area record: just enough bookkeeping to
// let fork/exit account for a task's address space without re-implementing
// paging (GDT/IDT/TSS and the page-table primitives belong to a different,
// unbuilt layer).
type VMA struct {
	Start, End uint64
	Writable   bool
	Name       string // "text", "heap", "stack", or a mapped file's path
}

// MMState is the per-task address-space descriptor (struct mm_struct),
// trimmed to the metadata the scheduler/exit path needs: brk bounds and the
// VMA list. Duplicating page tables is a documented seam — fork's
// copy-on-write behavior is intentionally not modeled, so Clone here just
// copies the VMA list read-only; no actual page table exists to share or
// copy in this hosted model.
type MMState struct {
	mu         sync.Mutex
	StartBrk   uint64
	Brk        uint64
	VMAs       []VMA
	refCount   int
}

// NewMMState allocates a fresh, singly-referenced address space.
func NewMMState() *MMState {
	return &MMState{refCount: 1}
}

// Clone returns a new MMState carrying a copy of the VMA list (fork always
// gives the child its own mm_struct; only threads created by a future
// clone(2)-with-CLONE_VM would share one, which this kernel does not
// support).
func (m *MMState) Clone() *MMState {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := &MMState{StartBrk: m.StartBrk, Brk: m.Brk, refCount: 1}
	n.VMAs = append(n.VMAs, m.VMAs...)
	return n
}

// Task is the in-memory process/thread control block, matching struct
// task_t. Every field that the original keeps behind current_task is here
// instead passed explicitly to the routines that need it.
type Task struct {
	Pid  int
	Pgid int
	Sid  int

	mu    sync.Mutex
	state State

	Parent   *Task
	Children []*Task

	MM    *MMState
	FS    *FSState
	Files *vfs.FDTable
	Sig   *SigStruct

	// TTY is the controlling terminal, if any. Declared as `any` and type
	// asserted by pkg/tty to avoid an import cycle (pkg/tty -> pkg/kernel
	// would close the loop, since pkg/kernel already needs pkg/tty for
	// nothing — so this keeps the dependency edge one-directional and
	// explicit rather than reaching back into kernel internals).
	TTY any

	// waitingChan is the resource the task is currently asleep on; nil when
	// Running. Only the scheduler mutates this.
	waitingChan any
	wakeDeadline int64 // jiffies; 0 means no deadline

	exitCode   int
	exitSignal int

	sched *Scheduler
}

// Sched returns the scheduler t belongs to, for syscall bodies (fork,
// exit, wait4, kill) that need to act on another task or the run queue
// rather than just t itself.
func (t *Task) Sched() *Scheduler {
	return t.sched
}

// State reports the task's current scheduling state.
func (t *Task) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Exited reports whether the task has reached Zombie or Terminated.
func (t *Task) Exited() bool {
	s := t.State()
	return s == Zombie || s == Terminated
}

// ExitStatus returns the code/signal recorded by Exit, valid once Exited.
func (t *Task) ExitStatus() (code, signal int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.exitCode, t.exitSignal
}

// Signal queues sig for delivery to t, waking it if it is sleeping and the
// signal is unmasked — matching kernel/proc/signal.c's task_signal.
func (t *Task) Signal(sig int) {
	t.mu.Lock()
	t.Sig.Add(sig)
	waiting := t.waitingChan
	masked := t.Sig.IsMasked(sig)
	t.mu.Unlock()

	if sig == SIGCONT {
		t.mu.Lock()
		if t.state == Stopped {
			t.state = Running
		}
		t.mu.Unlock()
	}

	if waiting != nil && !masked && t.sched != nil {
		t.sched.wakeOne(t)
	}
}

func newTask(sched *Scheduler, pid int, parent *Task) *Task {
	return &Task{
		Pid:    pid,
		Pgid:   pid,
		Sid:    pid,
		state:  Running,
		Parent: parent,
		Sig:    &SigStruct{},
		sched:  sched,
	}
}
