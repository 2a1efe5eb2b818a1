package kernel

import (
	"sync"
	"time"

	"github.com/eric29200/kos/pkg/errno"
	"github.com/eric29200/kos/pkg/klog"
)

var schedLog = klog.For("kernel.sched")

// jiffyDuration is the simulated timer-tick period, matching HZ in
// kernel/include/param.h (the original runs at 100 jiffies/sec).
const jiffyDuration = 10 * time.Millisecond

// Scheduler owns the run queue and every task's scheduling state. Each
// Task hands out a TaskSleeper (below), which implements
// github.com/eric29200/kos/pkg/ksched.Sleeper, so pipes, ttys, and sockets
// can block a task without importing this package or knowing which task
// they're blocking.
//
// Round-robin task selection and timer/timeout sweeps are real bookkeeping
// reproducing get_next_task/schedule's externally observable behavior
// (run-queue order, run-queue-ordered wakeup per channel, timeout expiry). Actual
// concurrent execution is Go's own goroutine scheduler; every mutation of
// shared task state happens under mu, standing in for the original's
// "disable interrupts around the run queue" critical sections.
type Scheduler struct {
	mu      sync.Mutex
	cond    *sync.Cond
	order   []*Task
	byPid   map[int]*Task
	nextPid int
	jiffies int64
	stop    chan struct{}
	once    sync.Once

	initTask *Task
	timers   *TimerList
}

// NewScheduler creates an empty scheduler and starts its jiffy timer.
func NewScheduler() *Scheduler {
	s := &Scheduler{
		byPid:   make(map[int]*Task),
		nextPid: 1,
		stop:    make(chan struct{}),
		timers:  NewTimerList(),
	}
	s.cond = sync.NewCond(&s.mu)
	go s.tick()
	return s
}

// Stop halts the jiffy timer goroutine. Safe to call more than once.
func (s *Scheduler) Stop() {
	s.once.Do(func() { close(s.stop) })
}

func (s *Scheduler) tick() {
	t := time.NewTicker(jiffyDuration)
	defer t.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-t.C:
			s.mu.Lock()
			s.jiffies++
			now := s.jiffies
			woke := false
			for _, task := range s.order {
				task.mu.Lock()
				if task.state == Sleeping && task.wakeDeadline != 0 && now >= task.wakeDeadline {
					task.state = Running
					task.waitingChan = nil
					task.wakeDeadline = 0
					woke = true
				}
				task.mu.Unlock()
			}
			if woke {
				s.cond.Broadcast()
			}
			s.mu.Unlock()
			s.timers.Fire(now)
		}
	}
}

// AddTimer arms a one-shot callback ticks jiffies from now, returning an id
// usable with CancelTimer — the backing primitive for alarm(2).
func (s *Scheduler) AddTimer(ticks int64, fn func()) int {
	return s.timers.Add(s.Jiffies(), ticks, fn)
}

// CancelTimer disarms a previously armed timer.
func (s *Scheduler) CancelTimer(id int) {
	s.timers.Cancel(id)
}

// Jiffies returns the current tick count.
func (s *Scheduler) Jiffies() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jiffies
}

// NewTask allocates and registers a new task under parent (nil for the
// first/init task), matching task_alloc's pid assignment (lowest unused,
// monotonically increasing here since pids are never reused within a run).
func (s *Scheduler) NewTask(parent *Task) *Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	pid := s.nextPid
	s.nextPid++
	t := newTask(s, pid, parent)
	s.byPid[pid] = t
	s.order = append(s.order, t)
	if parent != nil {
		parent.Children = append(parent.Children, t)
	}
	return t
}

// Lookup finds a task by pid.
func (s *Scheduler) Lookup(pid int) (*Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.byPid[pid]
	return t, ok
}

// Reap permanently removes a zombie task from the run queue once its exit
// status has been collected by wait4.
func (s *Scheduler) Reap(t *Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byPid, t.Pid)
	for i, o := range s.order {
		if o == t {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// sleepUntil backs TaskSleeper.Sleep/SleepTimeout: t goes to sleep on ch,
// woken by a matching Wakeup/WakeupAll, a timeout (ticks>0), or a pending
// unmasked signal.
func (s *Scheduler) sleepUntil(t *Task, ch any, ticks int64) error {
	s.mu.Lock()
	t.mu.Lock()
	t.state = Sleeping
	t.waitingChan = ch
	if ticks > 0 {
		t.wakeDeadline = s.jiffies + ticks
	} else {
		t.wakeDeadline = 0
	}
	t.mu.Unlock()

	for {
		t.mu.Lock()
		state := t.state
		interrupted := t.Sig.HasPendingUnmasked()
		t.mu.Unlock()
		if state != Sleeping || interrupted {
			break
		}
		s.cond.Wait()
	}

	t.mu.Lock()
	t.waitingChan = nil
	t.wakeDeadline = 0
	interrupted := t.Sig.HasPendingUnmasked()
	t.mu.Unlock()
	s.mu.Unlock()

	if interrupted {
		return errno.Interrupted
	}
	return nil
}

// Wakeup implements ksched.Sleeper: wakes the first task asleep on ch.
func (s *Scheduler) Wakeup(ch any) {
	s.mu.Lock()
	for _, t := range s.order {
		t.mu.Lock()
		if t.state == Sleeping && t.waitingChan == ch {
			t.state = Running
			t.waitingChan = nil
			t.wakeDeadline = 0
			t.mu.Unlock()
			s.cond.Broadcast()
			s.mu.Unlock()
			return
		}
		t.mu.Unlock()
	}
	s.mu.Unlock()
}

// WakeupAll implements ksched.Sleeper: wakes every task asleep on ch.
func (s *Scheduler) WakeupAll(ch any) {
	s.mu.Lock()
	woke := false
	for _, t := range s.order {
		t.mu.Lock()
		if t.state == Sleeping && t.waitingChan == ch {
			t.state = Running
			t.waitingChan = nil
			t.wakeDeadline = 0
			woke = true
		}
		t.mu.Unlock()
	}
	if woke {
		s.cond.Broadcast()
	}
	s.mu.Unlock()
}

// wakeOne forces t runnable regardless of channel — used by Task.Signal to
// interrupt a sleep.
func (s *Scheduler) wakeOne(t *Task) {
	s.mu.Lock()
	t.mu.Lock()
	if t.state == Sleeping {
		t.state = Running
	}
	t.mu.Unlock()
	s.cond.Broadcast()
	s.mu.Unlock()
}

// TaskSleeper adapts a single Task to the ksched.Sleeper interface so
// pkg/vfs/pkg/tty code holding a ksched.Sleeper never has to know which
// task it's blocking; pkg/kernel hands out one TaskSleeper per task at
// creation time.
type TaskSleeper struct {
	sched *Scheduler
	task  *Task
}

// Sleeper returns t's ksched.Sleeper adapter.
func (t *Task) Sleeper() TaskSleeper {
	return TaskSleeper{sched: t.sched, task: t}
}

func (a TaskSleeper) Sleep(ch any) error {
	return a.sched.sleepUntil(a.task, ch, 0)
}

func (a TaskSleeper) SleepTimeout(ch any, d time.Duration) error {
	if d <= 0 {
		return a.sched.sleepImmediate(a.task)
	}
	ticks := int64(d / jiffyDuration)
	if ticks < 1 {
		ticks = 1
	}
	return a.sched.sleepUntil(a.task, ch, ticks)
}

// sleepImmediate backs a zero or negative SleepTimeout: it never enters
// Sleeping state and never waits for a tick, it only checks whether a
// signal is already pending so a 0 timeout still reports it instead of
// silently dropping it.
func (s *Scheduler) sleepImmediate(t *Task) error {
	t.mu.Lock()
	interrupted := t.Sig.HasPendingUnmasked()
	t.mu.Unlock()
	if interrupted {
		return errno.Interrupted
	}
	return nil
}

func (a TaskSleeper) Wakeup(ch any)    { a.sched.Wakeup(ch) }
func (a TaskSleeper) WakeupAll(ch any) { a.sched.WakeupAll(ch) }

// RunQueueLen reports how many tasks currently exist, Running or not —
// used by tests and by a `ps`-style diagnostic.
func (s *Scheduler) RunQueueLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}

// Tasks returns a snapshot of every task currently registered, in run-queue
// order — the enumeration /proc's per-pid directories walk to build their
// listing.
func (s *Scheduler) Tasks() []*Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Task, len(s.order))
	copy(out, s.order)
	return out
}
