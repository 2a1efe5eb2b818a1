package tty

import "github.com/eric29200/kos/pkg/ksched"

// NewPTYPair builds a master/slave tty pair sharing id n (the pts
// number), cross-linked so a Write on either side is pushed through the
// peer's line discipline, the usual PTY master/slave coupling. The slave
// gets a console (it behaves like a real terminal to the process
// attached to it); the master does not (it's driven by the controlling
// terminal emulator, which reads/writes raw bytes, not glyphs).
func NewPTYPair(n int, sl ksched.Sleeper) (master, slave *TTY) {
	master = NewTTY(n, sl)
	master.Console = nil
	slave = NewTTY(n, sl)
	master.link = slave
	slave.link = master
	return master, slave
}

// Close tears down one side of a pty pair: unlinks the peer (so further
// writes on the peer stop being delivered) and, when called on the
// master, hangs up the slave's controlling tasks.
func (t *TTY) Close(isMaster bool) {
	peer := t.link
	t.link = nil
	if peer != nil {
		peer.link = nil
	}
	if isMaster && peer != nil {
		peer.Hangup()
	}
}
