package tty

import (
	"sync"

	"github.com/eric29200/kos/pkg/errno"
	"github.com/eric29200/kos/pkg/ksched"
	"github.com/eric29200/kos/pkg/vfs"
	"golang.org/x/sys/unix"
)

// Ioctl request codes: the console/VT subset a terminal driver exposes
// for termios, PTY allocation, and virtual-console switching, pulled
// from the host ioctl numbering instead of re-declared locally.
const (
	TCGETS        = unix.TCGETS
	TCSETS        = unix.TCSETS
	TIOCGPTN      = unix.TIOCGPTN
	TIOCSPTLCK    = unix.TIOCSPTLCK
	KDGKBTYPE     = unix.KDGKBTYPE
	KDGETMODE     = unix.KDGETMODE
	KDSETMODE     = unix.KDSETMODE
	VT_GETSTATE   = unix.VT_GETSTATE
	VT_GETMODE    = unix.VT_GETMODE
	VT_SETMODE    = unix.VT_SETMODE
	VT_ACTIVATE   = unix.VT_ACTIVATE
	VT_RELDISP    = unix.VT_RELDISP
	VT_WAITACTIVE = unix.VT_WAITACTIVE
)

// TTY is one terminal device: queues, termios, the CSI parser, an
// optional console framebuffer, and — for PTYs — a link to the paired
// device, the usual tty_struct shape.
type TTY struct {
	ID int

	Termios Termios
	raw     *ringBuffer // read_queue: raw device/IRQ input
	cooked  *ringBuffer // cooked_queue: drained by Read
	line    []byte      // in-progress canonical-mode line being assembled

	eofMu      sync.Mutex
	eofPending int // armed EOF indications (Ctrl-D on an empty line) awaiting Read

	Console *Console
	parser  csiParser

	// link is the paired pty device (slave<->master); nil for a plain
	// console tty.
	link *TTY

	// foreground holds the tasks INTR/QUIT are delivered to; controllers
	// holds every task whose controlling tty this is, for SIGHUP+SIGCONT
	// fanout on hangup. Both are populated by session/job-control code
	// outside this package (pkg/tty never looks tasks up itself).
	foreground  []Signaler
	controllers []Signaler

	vt    vtState
	vtmgr *VTManager // nil for a tty not multiplexed onto a shared console

	sleeper ksched.Sleeper
}

// armEOF records one Ctrl-D-on-empty-line EOF indication for Read to
// consume once the cooked queue runs dry.
func (t *TTY) armEOF() {
	t.eofMu.Lock()
	t.eofPending++
	t.eofMu.Unlock()
}

// takeEOF consumes one armed EOF indication, if any.
func (t *TTY) takeEOF() bool {
	t.eofMu.Lock()
	defer t.eofMu.Unlock()
	if t.eofPending == 0 {
		return false
	}
	t.eofPending--
	return true
}

// SetVTManager attaches the shared console multiplexer so VT_ACTIVATE/
// VT_RELDISP/VT_WAITACTIVE ioctls on this tty route to it.
func (t *TTY) SetVTManager(m *VTManager) { t.vtmgr = m }

// NewTTY allocates a tty with the given id, default cooked-mode termios,
// and an 80x25 console. sl is used to block Read/Write and to wake
// waiters; pass nil for a tty that is only ever driven non-blockingly
// (tests).
func NewTTY(id int, sl ksched.Sleeper) *TTY {
	return &TTY{
		ID:      id,
		Termios: DefaultTermios(),
		raw:     &ringBuffer{},
		cooked:  &ringBuffer{},
		Console: NewConsole(80, 25),
		sleeper: sl,
	}
}

// SetForeground replaces the set of tasks that receive INTR/QUIT.
func (t *TTY) SetForeground(s ...Signaler) { t.foreground = s }

// AddController registers task as having this tty as its controlling
// terminal, so it receives SIGHUP+SIGCONT on hangup.
func (t *TTY) AddController(s Signaler) { t.controllers = append(t.controllers, s) }

// Hangup sends SIGHUP+SIGCONT to every controlling task, matching "closing
// the master sends SIGHUP+SIGCONT to every task whose controlling TTY is
// the slave".
func (t *TTY) Hangup() {
	for _, s := range t.controllers {
		s.Signal(sigHUP)
		s.Signal(18) // SIGCONT, kept numeric to avoid importing pkg/kernel
	}
}

// PushInput feeds one raw byte in from a device IRQ (or, for a pty
// slave, from the master's Write): it lands in read_queue first, then
// the line discipline drains read_queue into cooked_queue, matching
// the line discipline's read-side pipeline. An overrun read_queue drops the byte rather than
// blocking the producer, the same overrun policy PutByte documents.
func (t *TTY) PushInput(b byte) {
	if !t.raw.PutByte(b) {
		return
	}
	raw, _ := t.raw.GetByte()
	t.cook(raw)
}

// Open returns the vfs.FileOperations for this tty, for wiring into
// pkg/fs/devfs.AddDevice.
func (t *TTY) Open(inode *vfs.Inode, flags int) (vfs.FileOperations, error) {
	return &ttyFileOps{tty: t}, nil
}

type ttyFileOps struct {
	vfs.DefaultFileOperations
	tty *TTY
}

// Read drains the cooked queue, blocking until at least one byte is
// available or an armed EOF indication (Ctrl-D on an empty line) is
// consumed, in which case it returns (0, nil) matching read(2)'s EOF
// convention.
func (o *ttyFileOps) Read(f *vfs.File, buf []byte, offset int64) (int, error) {
	t := o.tty
	drain := func() int {
		n := 0
		for n < len(buf) {
			b, got := t.cooked.GetByte()
			if !got {
				break
			}
			buf[n] = b
			n++
		}
		return n
	}

	if t.sleeper == nil {
		if n := drain(); n > 0 {
			return n, nil
		}
		if t.takeEOF() {
			return 0, nil
		}
		return 0, errno.WouldBlock
	}

	for {
		if n := drain(); n > 0 {
			return n, nil
		}
		if t.takeEOF() {
			return 0, nil
		}
		if err := t.sleeper.Sleep(t.cooked); err != nil {
			return 0, err
		}
	}
}

// Write runs buf through the CSI state machine onto the console (the
// "write worker" collapses to an inline drain in this cooperative,
// single-CPU model) and, for a PTY master, also pushes it through the
// slave's line discipline.
func (o *ttyFileOps) Write(f *vfs.File, buf []byte, offset int64) (int, error) {
	t := o.tty
	for _, b := range buf {
		if t.Console != nil {
			t.parser.Feed(t.Console, b)
		}
		if t.link != nil {
			t.link.PushInput(b)
		}
	}
	return len(buf), nil
}

func (o *ttyFileOps) Ioctl(f *vfs.File, request uintptr, arg uintptr) error {
	return o.tty.ioctl(request, arg)
}

func (o *ttyFileOps) Release(f *vfs.File) error {
	return nil
}
