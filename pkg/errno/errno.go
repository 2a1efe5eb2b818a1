// Package errno defines the kernel's POSIX-flavored error taxonomy.
//
// Every in-kernel failure path returns one of these Kind values rather than
// an ad-hoc error string, so syscall entry points can negate it into a
// return register the way a real kernel does.
package errno

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Kind is a kernel error code, backed by the host errno space so it compares
// directly against golang.org/x/sys/unix values at the block-device and
// host-pty boundary.
type Kind unix.Errno

// The POSIX-flavored error taxonomy this kernel standardizes on.
const (
	InvalidArg    Kind = Kind(unix.EINVAL)
	NoSuchFile    Kind = Kind(unix.ENOENT)
	NoPermission  Kind = Kind(unix.EPERM)
	NotADir       Kind = Kind(unix.ENOTDIR)
	IsADir        Kind = Kind(unix.EISDIR)
	BadFd         Kind = Kind(unix.EBADF)
	WouldBlock    Kind = Kind(unix.EAGAIN)
	Interrupted   Kind = Kind(unix.EINTR)
	NoMemory      Kind = Kind(unix.ENOMEM)
	IOError       Kind = Kind(unix.EIO)
	NotSupported  Kind = Kind(unix.ENOTSUP)
	NoSpace       Kind = Kind(unix.ENOSPC)
	Exists        Kind = Kind(unix.EEXIST)
	CrossDevice   Kind = Kind(unix.EXDEV)
	BrokenPipe    Kind = Kind(unix.EPIPE)
	Deadlock      Kind = Kind(unix.EDEADLK)
	Loop          Kind = Kind(unix.ELOOP)
	Range         Kind = Kind(unix.ERANGE)
	TooManyOpen   Kind = Kind(unix.EMFILE)
	NotATty       Kind = Kind(unix.ENOTTY)
	NoSuchDevice  Kind = Kind(unix.ENXIO)
	AddrInUse     Kind = Kind(unix.EADDRINUSE)
	NotConnected  Kind = Kind(unix.ENOTCONN)
	AlreadyConn   Kind = Kind(unix.EISCONN)
	ConnRefused   Kind = Kind(unix.ECONNREFUSED)
	MsgSize       Kind = Kind(unix.EMSGSIZE)
	NoIoctlCmd    Kind = Kind(unix.ENOTTY) // mirrors the original's ENOIOCTLCMD sentinel
	WrongDeviceOp Kind = Kind(unix.ENODEV)
	NoChild       Kind = Kind(unix.ECHILD)
	DeviceBusy    Kind = Kind(unix.EBUSY)
	NoSuchSyscall Kind = Kind(unix.ENOSYS)
	NoSuchProcess Kind = Kind(unix.ESRCH)
)

// Error implements the error interface.
func (k Kind) Error() string {
	return unix.Errno(k).Error()
}

// Negated returns the value a syscall return register would hold on failure:
// the negative of the numeric errno.
func (k Kind) Negated() int64 {
	return -int64(k)
}

// Is reports whether err is (or wraps) this Kind, satisfying errors.Is.
func (k Kind) Is(err error) bool {
	var other Kind
	if AsKind(err, &other) {
		return other == k
	}
	return false
}

// AsKind extracts a Kind from err if err is a Kind or wraps one.
func AsKind(err error, out *Kind) bool {
	if err == nil {
		return false
	}
	if k, ok := err.(Kind); ok {
		*out = k
		return true
	}
	type kinder interface{ Kind() Kind }
	if k, ok := err.(kinder); ok {
		*out = k.Kind()
		return true
	}
	return false
}

// Wrap annotates a Kind with additional context while remaining comparable
// via errors.Is/AsKind.
type Wrapped struct {
	K   Kind
	Ctx string
}

func (w *Wrapped) Error() string { return fmt.Sprintf("%s: %s", w.Ctx, w.K.Error()) }
func (w *Wrapped) Kind() Kind    { return w.K }
func (w *Wrapped) Unwrap() error { return w.K }

// Wrapf builds a Wrapped error.
func Wrapf(k Kind, format string, args ...any) error {
	return &Wrapped{K: k, Ctx: fmt.Sprintf(format, args...)}
}
