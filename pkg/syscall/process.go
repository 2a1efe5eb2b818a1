package syscall

import (
	"github.com/eric29200/kos/pkg/errno"
	"github.com/eric29200/kos/pkg/kernel"
)

// Getpid implements getpid(2).
func Getpid(t *kernel.Task, args Args) (uintptr, error) {
	return uintptr(t.Pid), nil
}

// Getppid implements getppid(2).
func Getppid(t *kernel.Task, args Args) (uintptr, error) {
	if t.Parent == nil {
		return 0, nil
	}
	return uintptr(t.Parent.Pid), nil
}

// Fork implements fork(2): no arguments, returns the child's pid to the
// parent. The child itself "returns" by having entry invoked with a fresh
// goroutine — there is no real trampoline/EAX=0 return in this hosted
// model, so the caller distinguishes parent from child by which *Task it
// already holds rather than by a second return from this call.
func Fork(t *kernel.Task, args Args) (uintptr, error) {
	child := t.Sched().Fork(t, nil)
	return uintptr(child.Pid), nil
}

// Exit implements exit(2)/exit_group(2): status.
func Exit(t *kernel.Task, args Args) (uintptr, error) {
	t.Sched().Exit(t, int(args[0]), 0)
	return 0, nil
}

// Wait4Result is Wait4's out-param: the reaped child's pid and status
// word, the shape waitpid(2)/wait4(2) packs into *wstatus.
type Wait4Result struct {
	Pid    int
	Status int
}

// Wait4 implements wait4(2): pid, *Wait4Result out-param.
func Wait4(t *kernel.Task, args Args) (uintptr, error) {
	pid := int(args[0])
	out := (*Wait4Result)(argPtr(args[1]))

	childPid, status, err := t.Sched().Wait4(t, pid)
	if err != nil {
		return 0, err
	}
	if out != nil {
		*out = Wait4Result{Pid: childPid, Status: status}
	}
	return uintptr(childPid), nil
}

// Kill implements kill(2): pid, sig.
func Kill(t *kernel.Task, args Args) (uintptr, error) {
	pid := int(args[0])
	sig := int(args[1])

	target, ok := t.Sched().Lookup(pid)
	if !ok {
		return 0, errno.NoSuchProcess
	}
	target.Signal(sig)
	return 0, nil
}
