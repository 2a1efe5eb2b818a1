package kernel

import "github.com/eric29200/kos/pkg/errno"

// SetInit records pid 1 as the reparent target for orphaned children,
// matching task_exit's "reparent to task 1" behavior.
func (s *Scheduler) SetInit(t *Task) {
	s.mu.Lock()
	s.initTask = t
	s.mu.Unlock()
}

// Exit tears down t: closes every file descriptor, reparents any children
// to init, marks t a zombie carrying code/signal, and wakes the parent's
// wait4 and SIGCHLD handling — matching kernel/proc/task.c's task_exit.
// t's MM, FS and Sig structures stay attached to the task: Exit does not
// release them or the inode references FS holds.
func (s *Scheduler) Exit(t *Task, code, signal int) {
	if t.Files != nil {
		t.Files.CloseAll(false)
	}

	s.mu.Lock()
	t.mu.Lock()
	t.state = Zombie
	t.exitCode = code
	t.exitSignal = signal
	children := t.Children
	parent := t.Parent
	initTask := s.initTask
	t.mu.Unlock()

	if initTask != nil && initTask != t {
		for _, c := range children {
			c.mu.Lock()
			c.Parent = initTask
			c.mu.Unlock()
			initTask.mu.Lock()
			initTask.Children = append(initTask.Children, c)
			initTask.mu.Unlock()
		}
	}
	s.mu.Unlock()

	schedLog.Debugf("task %d exited code=%d signal=%d", t.Pid, code, signal)

	if parent != nil {
		parent.Signal(SIGCHLD)
		s.Wakeup(parent)
	}
}

// Wait4 blocks t until a child matching pid (or any child, if pid<=0)
// becomes a zombie, reaps it, and returns its pid and exit status — the
// blocking half of wait4(2). It blocks through t's own ksched.Sleeper
// (t.Sleeper()); Wait4 lives in pkg/kernel rather than behind the
// ksched.Sleeper interface because it needs direct access to Task/Scheduler
// internals (children list, Reap) that the leaf interface deliberately
// doesn't expose.
func (s *Scheduler) Wait4(t *Task, pid int) (int, int, error) {
	var sleepErr error
	for {
		t.mu.Lock()
		children := append([]*Task(nil), t.Children...)
		t.mu.Unlock()

		if len(children) == 0 {
			return -1, 0, errno.NoChild
		}

		for _, c := range children {
			if pid > 0 && c.Pid != pid {
				continue
			}
			if c.State() == Zombie {
				code, sig := c.ExitStatus()
				s.removeChild(t, c)
				s.Reap(c)
				return c.Pid, encodeStatus(code, sig), nil
			}
		}

		// An interrupted sleep gets one more scan first: the child's own
		// SIGCHLD is what interrupts it when that child has just exited.
		if sleepErr != nil {
			return -1, 0, sleepErr
		}
		sleepErr = t.Sleeper().Sleep(t)
	}
}

func (s *Scheduler) removeChild(parent, child *Task) {
	parent.mu.Lock()
	defer parent.mu.Unlock()
	for i, c := range parent.Children {
		if c == child {
			parent.Children = append(parent.Children[:i], parent.Children[i+1:]...)
			break
		}
	}
}

// encodeStatus packs (code, signal) the way wait(2)'s status word does:
// a nonzero signal means the child died from that signal, otherwise the
// low byte of code is the normal exit status.
func encodeStatus(code, signal int) int {
	if signal != 0 {
		return signal & 0x7f
	}
	return (code & 0xff) << 8
}
