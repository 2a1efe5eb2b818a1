package vfs

import (
	"sync"

	"github.com/eric29200/kos/pkg/errno"
	"github.com/eric29200/kos/pkg/ksched"
)

// pipeSize matches the original's page-sized pipe buffer. One slot stays
// empty to tell a full ring from an empty one, so a pipe holds at most
// pipeSize - 1 bytes (PAGE_SIZE - 1), the same bound the original keeps.
const pipeSize = 4096

// PipeState is the ring buffer backing an anonymous pipe inode. The
// original encodes read/write positions into the unused zone[0]/zone[1]
// slots of a pipe inode; we give it an explicit struct instead; the
// reader/writer wait/wake channel is the inode pointer itself, matching
// "channels are arbitrary pointers... typically the address of the
// resource".
type PipeState struct {
	mu       sync.Mutex
	buf      [pipeSize]byte
	rpos     int
	wpos     int
	readers  int
	writers  int
}

// NewPipeInode builds a pipe inode with fresh PipeState.
func NewPipeInode() *Inode {
	return &Inode{
		Type:     TypeFifo,
		refCount: 0,
		Pipe:     &PipeState{readers: 1, writers: 1},
	}
}

func (p *PipeState) size() int {
	return (p.wpos - p.rpos) & (pipeSize - 1)
}

// Read drains up to len(buf) bytes, blocking via sl while the pipe is empty
// and at least one writer remains open. Returns (0, nil) at EOF (writer
// side closed with an empty buffer), matching a read(2) of 0.
func (p *PipeState) Read(sl ksched.Sleeper, buf []byte) (int, error) {
	p.mu.Lock()
	for p.size() == 0 {
		if p.writers == 0 {
			p.mu.Unlock()
			return 0, nil
		}
		p.mu.Unlock()
		if err := sl.Sleep(p); err != nil {
			return 0, err
		}
		p.mu.Lock()
	}

	n := 0
	for n < len(buf) && p.size() > 0 {
		buf[n] = p.buf[p.rpos]
		p.rpos = (p.rpos + 1) & (pipeSize - 1)
		n++
	}
	p.mu.Unlock()
	sl.WakeupAll(p)
	return n, nil
}

// Write appends up to len(buf) bytes, blocking via sl while the pipe is
// full. Fails with BrokenPipe if no reader remains.
func (p *PipeState) Write(sl ksched.Sleeper, buf []byte) (int, error) {
	p.mu.Lock()
	if p.readers == 0 {
		p.mu.Unlock()
		return 0, errno.BrokenPipe
	}

	n := 0
	for n < len(buf) {
		for p.size() == pipeSize-1 {
			if p.readers == 0 {
				p.mu.Unlock()
				return n, errno.BrokenPipe
			}
			p.mu.Unlock()
			if err := sl.Sleep(p); err != nil {
				return n, err
			}
			p.mu.Lock()
		}
		p.buf[p.wpos] = buf[n]
		p.wpos = (p.wpos + 1) & (pipeSize - 1)
		n++
	}
	p.mu.Unlock()
	sl.WakeupAll(p)
	return n, nil
}

// CloseEnd decrements the reader or writer side and wakes the other end so
// it observes EOF/BrokenPipe.
func (p *PipeState) CloseEnd(sl ksched.Sleeper, reading bool) {
	p.mu.Lock()
	if reading {
		p.readers--
	} else {
		p.writers--
	}
	p.mu.Unlock()
	sl.WakeupAll(p)
}

// pipeFileOps is one end (read or write) of an open pipe, wrapping the
// shared PipeState the same way pkg/tty's ttyFileOps wraps a *TTY.
type pipeFileOps struct {
	DefaultFileOperations
	inode   *Inode
	sleeper ksched.Sleeper
	reading bool
}

// NewPipeFileOps builds the FileOperations for one end of inode's pipe.
// reading selects the read end (Read succeeds, Write fails) or the write
// end (the reverse).
func NewPipeFileOps(inode *Inode, sl ksched.Sleeper, reading bool) FileOperations {
	return &pipeFileOps{inode: inode, sleeper: sl, reading: reading}
}

func (o *pipeFileOps) Read(f *File, buf []byte, offset int64) (int, error) {
	if !o.reading {
		return 0, errno.NotSupported
	}
	return o.inode.Pipe.Read(o.sleeper, buf)
}

func (o *pipeFileOps) Write(f *File, buf []byte, offset int64) (int, error) {
	if o.reading {
		return 0, errno.NotSupported
	}
	return o.inode.Pipe.Write(o.sleeper, buf)
}

func (o *pipeFileOps) Release(f *File) error {
	o.inode.Pipe.CloseEnd(o.sleeper, o.reading)
	return nil
}
