package socket

import (
	"sync"

	"github.com/eric29200/kos/pkg/errno"
	"github.com/eric29200/kos/pkg/ksched"
	"golang.org/x/time/rate"
)

// unixListener is the per-listening-socket backlog: pending clients that
// have connected but not yet been accepted.
type unixListener struct {
	mu      sync.Mutex
	backlog int
	pending []*Socket
}

// UnixFamily implements ProtoOps for AF_UNIX: a named-socket registry
// (the bind target) plus a connect/accept handshake modeled as a backlog
// queue on the listening socket, with a shared rate.Limiter giving
// inbound connect attempts the same kind of backpressure a real
// accept-queue overflow would apply (new attempts are refused rather
// than queued without bound once the limiter is exhausted).
type UnixFamily struct {
	DefaultProtoOps

	mu      sync.Mutex
	named   map[string]*Socket
	limiter *rate.Limiter
	sleeper ksched.Sleeper
}

// NewUnixFamily builds an AF_UNIX family allowing up to burst pending
// connect attempts, refilling at r per second. sl is used to block
// Accept/Recv on the sockets this family creates.
func NewUnixFamily(r rate.Limit, burst int, sl ksched.Sleeper) *UnixFamily {
	return &UnixFamily{
		named:   make(map[string]*Socket),
		limiter: rate.NewLimiter(r, burst),
		sleeper: sl,
	}
}

// NewSocket allocates a fresh AF_UNIX socket dispatching through f.
func (f *UnixFamily) NewSocket(typ, protocol int) *Socket {
	return New(AFUnix, typ, protocol, f, f.sleeper)
}

func (f *UnixFamily) Bind(s *Socket, addr string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.named[addr]; exists {
		return errno.Exists
	}
	f.named[addr] = s
	s.Addr = addr
	s.State = StateBound
	return nil
}

func (f *UnixFamily) Listen(s *Socket, backlog int) error {
	if s.State != StateBound {
		return errno.InvalidArg
	}
	s.State = StateListening
	s.Private = &unixListener{backlog: backlog}
	return nil
}

func (f *UnixFamily) Connect(s *Socket, addr string) error {
	f.mu.Lock()
	listener, ok := f.named[addr]
	f.mu.Unlock()
	if !ok || listener.State != StateListening {
		return errno.ConnRefused
	}
	if !f.limiter.Allow() {
		return errno.WouldBlock
	}

	l, _ := listener.Private.(*unixListener)
	l.mu.Lock()
	if l.backlog > 0 && len(l.pending) >= l.backlog {
		l.mu.Unlock()
		return errno.WouldBlock
	}
	l.pending = append(l.pending, s)
	l.mu.Unlock()

	if f.sleeper != nil {
		f.sleeper.WakeupAll(l)
	}
	s.State = StateConnected
	return nil
}

func (f *UnixFamily) Accept(s *Socket) (*Socket, error) {
	l, _ := s.Private.(*unixListener)
	if l == nil {
		return nil, errno.InvalidArg
	}

	pop := func() (*Socket, bool) {
		l.mu.Lock()
		defer l.mu.Unlock()
		if len(l.pending) == 0 {
			return nil, false
		}
		client := l.pending[0]
		l.pending = l.pending[1:]
		return client, true
	}

	var client *Socket
	if f.sleeper == nil {
		c, ok := pop()
		if !ok {
			return nil, errno.WouldBlock
		}
		client = c
	} else {
		for {
			if c, ok := pop(); ok {
				client = c
				break
			}
			if err := f.sleeper.Sleep(l); err != nil {
				return nil, err
			}
		}
	}

	accepted := f.NewSocket(s.Type, s.Protocol)
	accepted.Addr = s.Addr
	accepted.Peer = client
	accepted.State = StateConnected
	client.Peer = accepted
	return accepted, nil
}

func (f *UnixFamily) Send(s *Socket, buf []byte) (int, error) {
	if s.Peer == nil {
		return 0, errno.NotConnected
	}
	pkt := make([]byte, len(buf))
	copy(pkt, buf)
	s.Peer.deliver(pkt)
	return len(buf), nil
}

func (f *UnixFamily) Recv(s *Socket, buf []byte) (int, error) {
	pkt, err := s.drain()
	if err != nil {
		return 0, err
	}
	return copy(buf, pkt), nil
}

func (f *UnixFamily) Shutdown(s *Socket, how int) error {
	s.State = StateClosed
	if s.Peer != nil {
		s.Peer.deliver(nil) // zero-length delivery: peer's next Recv observes EOF
	}
	return nil
}

func (f *UnixFamily) GetSockName(s *Socket) (string, error) {
	return s.Addr, nil
}

func (f *UnixFamily) GetPeerName(s *Socket) (string, error) {
	if s.Peer == nil {
		return "", errno.NotConnected
	}
	return s.Peer.Addr, nil
}
