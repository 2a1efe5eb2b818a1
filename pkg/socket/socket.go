// Package socket implements the inode-backed socket layer: socket(2)
// allocates a socket slot, an inode, and a file wired together with
// socket_fops, then dispatches to the owning family's ProtoOps — the
// networking stack itself stops at this socket/inode binding, per the
// out-of-scope boundary the rest of the kernel draws around it.
package socket

import (
	"sync"

	"github.com/eric29200/kos/pkg/errno"
	"github.com/eric29200/kos/pkg/ksched"
	"github.com/eric29200/kos/pkg/vfs"
)

// Address/protocol family constants, the small subset this layer needs.
const (
	AFUnix = 1
)

// Socket type constants, matching SOCK_STREAM/SOCK_DGRAM.
const (
	SockStream = 1
	SockDgram  = 2
)

// State is a socket's connection-lifecycle state.
type State int

const (
	StateUnconnected State = iota
	StateBound
	StateListening
	StateConnected
	StateClosed
)

// ProtoOps is the per-family protocol-operations vtable (struct
// proto_ops): bind/connect/listen/accept/send/recv/shutdown/sockopt.
// Every verb defaults to NotSupported via DefaultProtoOps so a family
// only needs to implement what it actually supports.
type ProtoOps interface {
	Bind(s *Socket, addr string) error
	Connect(s *Socket, addr string) error
	Listen(s *Socket, backlog int) error
	Accept(s *Socket) (*Socket, error)
	Send(s *Socket, buf []byte) (int, error)
	Recv(s *Socket, buf []byte) (int, error)
	Shutdown(s *Socket, how int) error
	GetSockName(s *Socket) (string, error)
	GetPeerName(s *Socket) (string, error)
	GetSockOpt(s *Socket, level, name int) ([]byte, error)
	SetSockOpt(s *Socket, level, name int, val []byte) error
}

// DefaultProtoOps reports NotSupported for every verb; families embed it
// and override only what they implement.
type DefaultProtoOps struct{}

func (DefaultProtoOps) Bind(*Socket, string) error             { return errno.NotSupported }
func (DefaultProtoOps) Connect(*Socket, string) error          { return errno.NotSupported }
func (DefaultProtoOps) Listen(*Socket, int) error              { return errno.NotSupported }
func (DefaultProtoOps) Accept(*Socket) (*Socket, error)        { return nil, errno.NotSupported }
func (DefaultProtoOps) Send(*Socket, []byte) (int, error)      { return 0, errno.NotSupported }
func (DefaultProtoOps) Recv(*Socket, []byte) (int, error)      { return 0, errno.NotSupported }
func (DefaultProtoOps) Shutdown(*Socket, int) error            { return errno.NotSupported }
func (DefaultProtoOps) GetSockName(*Socket) (string, error)    { return "", errno.NotSupported }
func (DefaultProtoOps) GetPeerName(*Socket) (string, error)    { return "", errno.NotSupported }
func (DefaultProtoOps) GetSockOpt(*Socket, int, int) ([]byte, error) {
	return nil, errno.NotSupported
}
func (DefaultProtoOps) SetSockOpt(*Socket, int, int, []byte) error { return errno.NotSupported }

// Socket is one socket slot: family/type/protocol, dispatch vtable,
// connection state, the anonymous inode backing it, and the incoming skb
// queue woken tasks read from.
type Socket struct {
	mu sync.Mutex

	Family   int
	Type     int
	Protocol int
	State    State

	Ops ProtoOps

	Inode *vfs.Inode

	Addr string // local address (bound name), family-specific encoding
	Peer *Socket

	recv    *skbQueue
	sleeper ksched.Sleeper

	// Private is family-private state (e.g. the unix family's pending
	// connection backlog).
	Private any
}

// New allocates a socket of the given family/type/protocol, bound to a
// fresh anonymous inode the way socket(2) wires socket_fops to a new
// inode and file. sl blocks Recv/Accept; pass nil for non-blocking use.
func New(family, typ, protocol int, ops ProtoOps, sl ksched.Sleeper) *Socket {
	return &Socket{
		Family:   family,
		Type:     typ,
		Protocol: protocol,
		Ops:      ops,
		Inode:    &vfs.Inode{Type: vfs.TypeSocket},
		recv:     newSKBQueue(),
		sleeper:  sl,
	}
}

// Send forwards to the family's Send, the wire path write(2)/sendto(2)
// take after resolving fd -> inode -> socket.
func (s *Socket) Send(buf []byte) (int, error) { return s.Ops.Send(s, buf) }

// Recv forwards to the family's Recv.
func (s *Socket) Recv(buf []byte) (int, error) { return s.Ops.Recv(s, buf) }

// deliver pushes one skb into this socket's receive queue and wakes any
// blocked reader — the inbound half of a family's Send implementation.
func (s *Socket) deliver(pkt []byte) {
	s.recv.push(pkt)
	if s.sleeper != nil {
		s.sleeper.WakeupAll(s.recv)
	}
}

// drain pulls the next queued skb, blocking via the socket's sleeper
// (if any) until one arrives.
func (s *Socket) drain() ([]byte, error) {
	if s.sleeper == nil {
		pkt, ok := s.recv.pop()
		if !ok {
			return nil, errno.WouldBlock
		}
		return pkt, nil
	}
	for {
		if pkt, ok := s.recv.pop(); ok {
			return pkt, nil
		}
		if err := s.sleeper.Sleep(s.recv); err != nil {
			return nil, err
		}
	}
}

// fileOps is socket_fops: the FileOperations a socket's fd dispatches
// through once socket(2) has wired Inode and Socket together. Getdents
// is never valid on a socket fd and keeps DefaultFileOperations'
// NotSupported behavior.
type fileOps struct {
	vfs.DefaultFileOperations
	sock *Socket
}

// FileOps wraps s in the FileOperations a File wired to s's inode uses.
func FileOps(s *Socket) vfs.FileOperations { return &fileOps{sock: s} }

func (o *fileOps) Read(f *vfs.File, buf []byte, offset int64) (int, error) {
	return o.sock.Recv(buf)
}

func (o *fileOps) Write(f *vfs.File, buf []byte, offset int64) (int, error) {
	return o.sock.Send(buf)
}

func (o *fileOps) Ioctl(f *vfs.File, request uintptr, arg uintptr) error {
	return errno.NotSupported
}

func (o *fileOps) Release(f *vfs.File) error {
	return o.sock.Ops.Shutdown(o.sock, 2 /* SHUT_RDWR */)
}
