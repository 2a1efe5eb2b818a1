// Package tty implements the line discipline, ANSI/CSI console emulator,
// and PTY master/slave coupling, grounded on pkg/vfs/pipe.go's
// ring-buffer-plus-Sleeper shape: a tty's read/write/cooked queues are
// fixed-capacity byte rings blocked on exactly the same
// github.com/eric29200/kos/pkg/ksched.Sleeper contract a pipe blocks on,
// so pkg/tty never needs to import pkg/kernel to put a task to sleep.
package tty

import (
	"sync"

	"github.com/eric29200/kos/pkg/ksched"
)

// queueSize matches the original's TTY_BUF_SIZE (one page).
const queueSize = 4096

// ringBuffer is a fixed-capacity byte queue blocking readers/writers on a
// ksched.Sleeper, the same shape as vfs.PipeState but sized and gated
// differently (no EOF-on-zero-writers rule; a tty queue just blocks full
// writers and empty readers).
type ringBuffer struct {
	mu    sync.Mutex
	buf   [queueSize]byte
	rpos  int
	wpos  int
	count int
}

func (r *ringBuffer) len() int { return r.count }

func (r *ringBuffer) full() bool { return r.count == queueSize }

// PutByte appends one byte if there's room, reporting whether it fit —
// used by the line discipline, which must never block the producer side
// (a dropped byte on an overrun input queue matches the original
// behavior of overwriting/discarding rather than stalling the IRQ path).
func (r *ringBuffer) PutByte(b byte) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.count == queueSize {
		return false
	}
	r.buf[r.wpos] = b
	r.wpos = (r.wpos + 1) % queueSize
	r.count++
	return true
}

// GetByte removes and returns the oldest byte, if any.
func (r *ringBuffer) GetByte() (byte, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.count == 0 {
		return 0, false
	}
	b := r.buf[r.rpos]
	r.rpos = (r.rpos + 1) % queueSize
	r.count--
	return b, true
}

// DropLast removes the most recently queued byte if there is one
// (backspace/erase undoing the last PutByte).
func (r *ringBuffer) DropLast() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.count == 0 {
		return false
	}
	r.wpos = (r.wpos - 1 + queueSize) % queueSize
	r.count--
	return true
}

// Write blocks via sl while the buffer is full, writing as much of buf as
// fits each time it wakes, matching a tty write queue's producer side.
func (r *ringBuffer) Write(sl ksched.Sleeper, buf []byte) (int, error) {
	n := 0
	for n < len(buf) {
		r.mu.Lock()
		for r.count == queueSize {
			r.mu.Unlock()
			if err := sl.Sleep(r); err != nil {
				return n, err
			}
			r.mu.Lock()
		}
		for n < len(buf) && r.count < queueSize {
			r.buf[r.wpos] = buf[n]
			r.wpos = (r.wpos + 1) % queueSize
			r.count++
			n++
		}
		r.mu.Unlock()
		sl.WakeupAll(r)
	}
	return n, nil
}

// Read blocks via sl while the buffer is empty, draining up to len(buf)
// bytes once data arrives.
func (r *ringBuffer) Read(sl ksched.Sleeper, buf []byte) (int, error) {
	r.mu.Lock()
	for r.count == 0 {
		r.mu.Unlock()
		if err := sl.Sleep(r); err != nil {
			return 0, err
		}
		r.mu.Lock()
	}
	n := 0
	for n < len(buf) && r.count > 0 {
		buf[n] = r.buf[r.rpos]
		r.rpos = (r.rpos + 1) % queueSize
		r.count--
		n++
	}
	r.mu.Unlock()
	sl.WakeupAll(r)
	return n, nil
}
