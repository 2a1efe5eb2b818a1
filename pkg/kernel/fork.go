package kernel

import "github.com/eric29200/kos/pkg/vfs"

// Fork creates a child of parent sharing nothing but cloned copies of
// mm/fs/files/sig, matching task_fork's duplication of the four ref-counted
// structures hung off task_t. entry is the child's body; it is invoked by
// a dedicated goroutine once the child is first scheduled, standing in for
// the original's "child returns from fork_task's trampoline with EAX=0".
// Fork returns the new Task immediately so the parent can read its Pid to
// satisfy fork(2)'s "returns child pid in the parent" contract.
func (s *Scheduler) Fork(parent *Task, entry func(child *Task)) *Task {
	child := s.NewTask(parent)

	parent.mu.Lock()
	child.MM = parent.MM.Clone()
	child.FS = parent.FS.Clone()
	child.Sig = CloneSigStruct(parent.Sig)
	files := parent.Files
	parent.mu.Unlock()

	if files != nil {
		child.Files = files.Clone()
	} else {
		child.Files = vfs.NewFDTable()
	}

	if entry != nil {
		go func() {
			entry(child)
		}()
	}
	return child
}
