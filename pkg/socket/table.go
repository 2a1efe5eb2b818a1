package socket

import (
	"sync"

	"github.com/eric29200/kos/pkg/errno"
	"github.com/eric29200/kos/pkg/vfs"
)

// Table is the process-wide socket table: a constant-time map from a
// socket's backing inode to its *Socket, matching "sock_lookup(inode) is
// constant-time" — uniqueness is preserved because New always allocates
// a fresh inode and Register is the only path that adds an entry.
type Table struct {
	mu  sync.Mutex
	byInode map[*vfs.Inode]*Socket
}

// NewTable builds an empty socket table.
func NewTable() *Table {
	return &Table{byInode: make(map[*vfs.Inode]*Socket)}
}

// Register records sock under its own inode, the step socket(2) takes
// right after allocating the socket and its inode.
func (t *Table) Register(sock *Socket) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.byInode[sock.Inode] = sock
}

// Lookup resolves an inode to its socket, the fd -> inode -> socket step
// every socket syscall performs before dispatching to ProtoOps.
func (t *Table) Lookup(inode *vfs.Inode) (*Socket, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	sock, ok := t.byInode[inode]
	if !ok {
		return nil, errno.InvalidArg
	}
	return sock, nil
}

// Remove drops sock's table entry, called once its inode is released.
func (t *Table) Remove(sock *Socket) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.byInode, sock.Inode)
}
