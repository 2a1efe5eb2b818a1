package kernel

// DeliverPending runs the lowest-numbered unmasked pending signal against
// t's action table, exactly once, matching do_signal's per-reschedule
// signal check. It returns true if delivery terminated the task (Exit was
// called), so the caller's dispatch loop can stop running further syscalls
// on t's behalf.
func (s *Scheduler) DeliverPending(t *Task) bool {
	t.mu.Lock()
	sig := t.Sig.LowestUnmasked()
	if sig == 0 {
		t.mu.Unlock()
		return false
	}
	t.Sig.Clear(sig)
	action := t.Sig.Actions[sig-1]
	t.mu.Unlock()

	switch action.Disposition {
	case DispositionIgnore:
		return false

	case DispositionHandler:
		if action.Handler != nil {
			action.Handler(t, sig)
		}
		return false

	default: // DispositionDefault
		if isDroppedByDefault(sig) {
			return false
		}
		if isStopSignal(sig) {
			t.mu.Lock()
			t.state = Stopped
			t.mu.Unlock()
			if t.Parent != nil {
				t.Parent.Signal(SIGCHLD)
			}
			return false
		}
		if isDefaultTerminal(sig) {
			s.Exit(t, 0, sig)
			return true
		}
		return false
	}
}

// SetHandler installs a custom handler for sig, matching sigaction(2) with
// a non-default, non-SIG_IGN action.
func (t *Task) SetHandler(sig int, fn func(task *Task, sig int)) {
	if sig <= 0 || sig > NSIGS {
		return
	}
	t.mu.Lock()
	t.Sig.Actions[sig-1] = SigAction{Disposition: DispositionHandler, Handler: fn}
	t.mu.Unlock()
}

// Ignore sets sig's disposition to SIG_IGN.
func (t *Task) Ignore(sig int) {
	if sig <= 0 || sig > NSIGS {
		return
	}
	t.mu.Lock()
	t.Sig.Actions[sig-1] = SigAction{Disposition: DispositionIgnore}
	t.mu.Unlock()
}

// DefaultAction resets sig's disposition to SIG_DFL.
func (t *Task) DefaultAction(sig int) {
	if sig <= 0 || sig > NSIGS {
		return
	}
	t.mu.Lock()
	t.Sig.Actions[sig-1] = SigAction{Disposition: DispositionDefault}
	t.mu.Unlock()
}

// SetMask replaces the blocked-signal bitset (sigprocmask's SIG_SETMASK).
func (t *Task) SetMask(mask uint64) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	old := t.Sig.Mask
	t.Sig.Mask = mask
	return old
}
