package tty

import (
	"unsafe"

	"github.com/eric29200/kos/pkg/errno"
	"github.com/eric29200/kos/pkg/ksched"
)

// VT mode constants for VT_GETMODE/VT_SETMODE, matching KD_TEXT-adjacent
// VT_AUTO/VT_PROCESS semantics.
const (
	VTAuto = iota
	VTProcess
)

// VTMode is the ioctl payload for VT_GETMODE/VT_SETMODE (struct vt_mode).
type VTMode struct {
	Mode   int
	AcqSig int
	RelSig int
}

// VTState is the ioctl payload for VT_GETSTATE (struct vt_stat).
type VTState struct {
	Active  int
	Signal  int
	State   uint16
}

// vtState is the per-tty virtual-terminal mode the manager consults when
// switching away from this tty.
type vtState struct {
	mode   int
	acqSig int
	relSig int
	owner  Signaler
}

// VTManager multiplexes N ttys onto one physical console, implementing
// VT_ACTIVATE/VT_RELDISP/VT_WAITACTIVE's hand-off protocol.
type VTManager struct {
	ttys    []*TTY
	current int

	pendingTarget int // -1 when no switch is pending
	sleeper       ksched.Sleeper
}

// NewVTManager registers ttys (indexed 1..N by position, matching
// /dev/ttyN numbering) with vt 1 initially active. sl may be nil for
// tests driving the manager non-blockingly.
func NewVTManager(ttys []*TTY, sl ksched.Sleeper) *VTManager {
	return &VTManager{ttys: ttys, current: 1, pendingTarget: -1, sleeper: sl}
}

func (m *VTManager) get(n int) (*TTY, error) {
	if n < 1 || n > len(m.ttys) {
		return nil, errno.InvalidArg
	}
	return m.ttys[n-1], nil
}

// Current returns the currently active vt number.
func (m *VTManager) Current() int { return m.current }

// Activate requests a switch to vt n. If the outgoing tty is in
// VT_PROCESS mode its owner receives RelSig and the switch is deferred
// until RelDisp; otherwise the switch completes immediately.
func (m *VTManager) Activate(n int) error {
	if _, err := m.get(n); err != nil {
		return err
	}
	if n == m.current {
		return nil
	}
	out, _ := m.get(m.current)
	if out.vt.mode == VTProcess && out.vt.owner != nil {
		m.pendingTarget = n
		out.vt.owner.Signal(out.vt.relSig)
		return nil
	}
	m.complete(n)
	return nil
}

// RelDisp completes a switch previously deferred by Activate, invoked by
// the outgoing tty's owning task once it has released the console.
func (m *VTManager) RelDisp(from *TTY) error {
	if m.pendingTarget < 0 {
		return errno.InvalidArg
	}
	target := m.pendingTarget
	m.pendingTarget = -1
	m.complete(target)
	return nil
}

func (m *VTManager) complete(n int) {
	m.current = n
	if m.sleeper != nil {
		m.sleeper.WakeupAll(m)
	}
}

// WaitActive blocks the caller until vt n is active.
func (m *VTManager) WaitActive(n int) error {
	if m.sleeper == nil {
		if m.current == n {
			return nil
		}
		return errno.WouldBlock
	}
	for m.current != n {
		if err := m.sleeper.Sleep(m); err != nil {
			return err
		}
	}
	return nil
}

// ioctl dispatches the TTY-local subset of commands; VT_ACTIVATE/
// VT_RELDISP/VT_WAITACTIVE are handled by the owning VTManager instead,
// reached through t.vtmgr.
func (t *TTY) ioctl(request uintptr, arg uintptr) error {
	switch request {
	case TCGETS:
		*(*Termios)(unsafe.Pointer(arg)) = t.Termios
		return nil
	case TCSETS:
		t.Termios = *(*Termios)(unsafe.Pointer(arg))
		return nil
	case TIOCGPTN:
		*(*int)(unsafe.Pointer(arg)) = t.ID
		return nil
	case TIOCSPTLCK:
		return nil
	case VT_GETSTATE:
		*(*VTState)(unsafe.Pointer(arg)) = VTState{Active: t.ID}
		return nil
	case VT_GETMODE:
		*(*VTMode)(unsafe.Pointer(arg)) = VTMode{Mode: t.vt.mode, AcqSig: t.vt.acqSig, RelSig: t.vt.relSig}
		return nil
	case VT_SETMODE:
		mode := *(*VTMode)(unsafe.Pointer(arg))
		t.vt.mode, t.vt.acqSig, t.vt.relSig = mode.Mode, mode.AcqSig, mode.RelSig
		return nil
	case KDGKBTYPE, KDGETMODE, KDSETMODE:
		return nil
	case VT_ACTIVATE:
		if t.vtmgr == nil {
			return errno.NotSupported
		}
		return t.vtmgr.Activate(int(arg))
	case VT_RELDISP:
		if t.vtmgr == nil {
			return errno.NotSupported
		}
		return t.vtmgr.RelDisp(t)
	case VT_WAITACTIVE:
		if t.vtmgr == nil {
			return errno.NotSupported
		}
		return t.vtmgr.WaitActive(int(arg))
	default:
		return errno.NoIoctlCmd
	}
}

// SetVTOwner records the task to be signaled on VT_SETMODE's behalf; the
// generic ioctl path has no way to carry a Signaler through a uintptr, so
// callers set it directly after issuing VT_SETMODE.
func (t *TTY) SetVTOwner(s Signaler) { t.vt.owner = s }
