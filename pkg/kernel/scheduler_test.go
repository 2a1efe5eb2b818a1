package kernel_test

import (
	"testing"
	"time"

	"github.com/eric29200/kos/pkg/errno"
	"github.com/eric29200/kos/pkg/kernel"
	"github.com/stretchr/testify/require"
)

func newRootTask(t *testing.T) (*kernel.Scheduler, *kernel.Task) {
	sched := kernel.NewScheduler()
	t.Cleanup(sched.Stop)
	root := sched.NewTask(nil)
	root.MM = kernel.NewMMState()
	root.FS = &kernel.FSState{}
	return sched, root
}

func TestWakeupAllWakesEverySleeper(t *testing.T) {
	sched, root := newRootTask(t)
	a := sched.Fork(root, nil)
	b := sched.Fork(root, nil)

	ch := &struct{}{}
	woken := make(chan string, 2)

	go func() {
		require.NoError(t, a.Sleeper().Sleep(ch))
		woken <- "a"
	}()
	go func() {
		require.NoError(t, b.Sleeper().Sleep(ch))
		woken <- "b"
	}()

	// give both goroutines time to actually reach Sleeping before waking.
	require.Eventually(t, func() bool {
		return a.State() == kernel.Sleeping && b.State() == kernel.Sleeping
	}, time.Second, time.Millisecond)

	root.Sleeper().WakeupAll(ch)

	first := <-woken
	second := <-woken
	require.ElementsMatch(t, []string{"a", "b"}, []string{first, second})
}

func TestSleepTimeoutExpires(t *testing.T) {
	sched, root := newRootTask(t)
	_ = sched

	ch := &struct{}{}
	err := root.Sleeper().SleepTimeout(ch, 30*time.Millisecond)
	require.NoError(t, err, "timeout expiry is not an error, the caller re-checks its condition")
}

func TestSleepTimeoutZeroReturnsImmediately(t *testing.T) {
	_, root := newRootTask(t)
	ch := &struct{}{}

	start := time.Now()
	err := root.Sleeper().SleepTimeout(ch, 0)
	elapsed := time.Since(start)

	require.NoError(t, err)
	require.Less(t, elapsed, 5*time.Millisecond, "a 0 timeout must not wait a full jiffy")
	require.Equal(t, kernel.Running, root.State())
}

func TestSleepTimeoutZeroStillReportsPendingSignal(t *testing.T) {
	_, root := newRootTask(t)
	ch := &struct{}{}

	root.Signal(kernel.SIGINT)
	err := root.Sleeper().SleepTimeout(ch, 0)
	require.ErrorIs(t, err, errno.Interrupted, "a 0 timeout must not lose an already-pending signal")
}

func TestSignalInterruptsSleep(t *testing.T) {
	_, root := newRootTask(t)
	ch := &struct{}{}

	done := make(chan error, 1)
	go func() {
		done <- root.Sleeper().Sleep(ch)
	}()

	require.Eventually(t, func() bool { return root.State() == kernel.Sleeping }, time.Second, time.Millisecond)

	root.Signal(kernel.SIGINT)

	err := <-done
	require.ErrorIs(t, err, errno.Interrupted)
}

func TestForkLinksChildAndExitReparents(t *testing.T) {
	sched, root := newRootTask(t)
	root.Files = nil // no fds opened in this test

	child := sched.Fork(root, nil)
	require.Equal(t, root, child.Parent)
	require.Contains(t, root.Children, child)

	grandchild := sched.Fork(child, nil)
	require.Contains(t, child.Children, grandchild)

	sched.SetInit(root)
	sched.Exit(child, 0, 0)

	require.True(t, child.Exited())
	require.Contains(t, root.Children, grandchild, "orphan must be reparented to init")
}

func TestWait4ReapsZombieChild(t *testing.T) {
	sched, root := newRootTask(t)
	sched.SetInit(root)
	child := sched.Fork(root, nil)

	go func() {
		time.Sleep(20 * time.Millisecond)
		sched.Exit(child, 7, 0)
	}()

	pid, status, err := sched.Wait4(root, child.Pid)
	require.NoError(t, err)
	require.Equal(t, child.Pid, pid)
	require.Equal(t, 7<<8, status)

	_, ok := sched.Lookup(child.Pid)
	require.False(t, ok, "reaped child must be removed from the scheduler")
}

func TestDeliverPendingDefaultTerminatesTask(t *testing.T) {
	sched, root := newRootTask(t)
	sched.SetInit(root)
	child := sched.Fork(root, nil)

	child.Signal(kernel.SIGTERM)
	terminated := sched.DeliverPending(child)
	require.True(t, terminated)
	require.True(t, child.Exited())
	_, sig := child.ExitStatus()
	require.Equal(t, kernel.SIGTERM, sig)
}

func TestDeliverPendingCustomHandlerRuns(t *testing.T) {
	sched, root := newRootTask(t)
	child := sched.Fork(root, nil)

	var gotSig int
	child.SetHandler(kernel.SIGUSR1, func(task *kernel.Task, sig int) {
		gotSig = sig
	})
	child.Signal(kernel.SIGUSR1)
	terminated := sched.DeliverPending(child)
	require.False(t, terminated)
	require.Equal(t, kernel.SIGUSR1, gotSig)
}

func TestDeliverPendingDropsContByDefault(t *testing.T) {
	sched, root := newRootTask(t)
	child := sched.Fork(root, nil)

	child.Signal(kernel.SIGCONT)
	terminated := sched.DeliverPending(child)
	require.False(t, terminated)
	require.False(t, child.Exited())
}
