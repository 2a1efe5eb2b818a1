package syscall

import (
	"github.com/eric29200/kos/pkg/errno"
	"github.com/eric29200/kos/pkg/kernel"
	"github.com/eric29200/kos/pkg/socket"
	"github.com/eric29200/kos/pkg/vfs"
)

// Net bundles the socket-layer state socket(2) and friends need beyond
// a bare *kernel.Task: the socket table and the families registered
// against it. A real multi-family kernel would key this by the family
// argument; this kernel wires only AF_UNIX, so Unix is used directly and
// family is validated rather than dispatched on.
type Net struct {
	Table *socket.Table
	Unix  *socket.UnixFamily
}

// fdSocket resolves fd to its *socket.Socket via the task's file table and
// the fd's anonymous socket inode, the fd -> inode -> socket step every
// socket syscall performs before dispatching to ProtoOps.
func (n *Net) fdSocket(t *kernel.Task, fd int) (*socket.Socket, error) {
	f, err := t.Files.Get(fd)
	if err != nil {
		return nil, err
	}
	return n.Table.Lookup(f.Inode)
}

// installSocket wires a freshly created/accepted *socket.Socket into t's
// file table, the other half of socket(2)'s "allocate socket, allocate
// fd" contract.
func (n *Net) installSocket(t *kernel.Task, s *socket.Socket) (int, error) {
	n.Table.Register(s)
	f := vfs.NewFile(s.Inode, vfs.ORdWr, socket.FileOps(s), nil)
	fd, err := t.Files.Install(f)
	if err != nil {
		n.Table.Remove(s)
		f.Close()
		return -1, err
	}
	return fd, nil
}

// Socket implements socket(2): family, type, protocol.
func (n *Net) Socket(t *kernel.Task, args Args) (uintptr, error) {
	family := int(args[0])
	typ := int(args[1])
	protocol := int(args[2])

	if family != socket.AFUnix {
		return 0, errno.NotSupported
	}
	s := n.Unix.NewSocket(typ, protocol)
	fd, err := n.installSocket(t, s)
	return uintptr(fd), err
}

// Bind implements bind(2): fd, addr.
func (n *Net) Bind(t *kernel.Task, args Args) (uintptr, error) {
	s, err := n.fdSocket(t, int(args[0]))
	if err != nil {
		return 0, err
	}
	return 0, s.Ops.Bind(s, argString(args[1]))
}

// Connect implements connect(2): fd, addr.
func (n *Net) Connect(t *kernel.Task, args Args) (uintptr, error) {
	s, err := n.fdSocket(t, int(args[0]))
	if err != nil {
		return 0, err
	}
	return 0, s.Ops.Connect(s, argString(args[1]))
}

// Listen implements listen(2): fd, backlog.
func (n *Net) Listen(t *kernel.Task, args Args) (uintptr, error) {
	s, err := n.fdSocket(t, int(args[0]))
	if err != nil {
		return 0, err
	}
	return 0, s.Ops.Listen(s, int(args[1]))
}

// Accept implements accept(2): fd. Returns the new connection's fd.
func (n *Net) Accept(t *kernel.Task, args Args) (uintptr, error) {
	s, err := n.fdSocket(t, int(args[0]))
	if err != nil {
		return 0, err
	}
	accepted, err := s.Ops.Accept(s)
	if err != nil {
		return 0, err
	}
	fd, err := n.installSocket(t, accepted)
	return uintptr(fd), err
}

// SendTo implements sendto(2)/send(2): fd, buf, count.
func (n *Net) SendTo(t *kernel.Task, args Args) (uintptr, error) {
	s, err := n.fdSocket(t, int(args[0]))
	if err != nil {
		return 0, err
	}
	buf := argBytes(args[1], int(args[2]))
	sent, err := s.Send(buf)
	return uintptr(sent), err
}

// RecvFrom implements recvfrom(2)/recv(2): fd, buf, count.
func (n *Net) RecvFrom(t *kernel.Task, args Args) (uintptr, error) {
	s, err := n.fdSocket(t, int(args[0]))
	if err != nil {
		return 0, err
	}
	buf := argBytes(args[1], int(args[2]))
	got, err := s.Recv(buf)
	return uintptr(got), err
}

// Shutdown implements shutdown(2): fd, how.
func (n *Net) Shutdown(t *kernel.Task, args Args) (uintptr, error) {
	s, err := n.fdSocket(t, int(args[0]))
	if err != nil {
		return 0, err
	}
	return 0, s.Ops.Shutdown(s, int(args[1]))
}

// GetSockName implements getsockname(2): fd, *string out-param.
func (n *Net) GetSockName(t *kernel.Task, args Args) (uintptr, error) {
	s, err := n.fdSocket(t, int(args[0]))
	if err != nil {
		return 0, err
	}
	name, err := s.Ops.GetSockName(s)
	if err != nil {
		return 0, err
	}
	*(*string)(argPtr(args[1])) = name
	return 0, nil
}

// GetPeerName implements getpeername(2): fd, *string out-param.
func (n *Net) GetPeerName(t *kernel.Task, args Args) (uintptr, error) {
	s, err := n.fdSocket(t, int(args[0]))
	if err != nil {
		return 0, err
	}
	name, err := s.Ops.GetPeerName(s)
	if err != nil {
		return 0, err
	}
	*(*string)(argPtr(args[1])) = name
	return 0, nil
}
