// Package blockdev implements vfs.BlockDevice against a plain host file,
// the backing store pkg/config's Boot.Image names and pkg/fs/minix mounts
// over.
package blockdev

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/eric29200/kos/pkg/errno"
	"github.com/eric29200/kos/pkg/klog"
	"github.com/gofrs/flock"
)

var devLog = klog.For("blockdev")

// FileDevice is a vfs.BlockDevice backed by a regular host file, one block
// per BlockSize-aligned region. A gofrs/flock advisory lock on the file
// keeps a second kos process from mounting the same image concurrently,
// the host-level stand-in for the original's "one device, one owner"
// assumption.
type FileDevice struct {
	mu   sync.Mutex
	id   uint64
	f    *os.File
	lock *flock.Flock

	retry func() backoff.BackOff
}

// nextID hands out increasing device identities so two FileDevices opened
// against different images never collide in the buffer cache's
// (device, block, size) key.
var (
	idMu  sync.Mutex
	idSeq uint64
)

func nextID() uint64 {
	idMu.Lock()
	defer idMu.Unlock()
	idSeq++
	return idSeq
}

// Open opens (creating if needed) the host file at path as a block device,
// taking an exclusive advisory lock on it for the lifetime of the
// FileDevice.
func Open(path string) (*FileDevice, error) {
	lock := flock.New(path + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return nil, err
	}
	if !locked {
		return nil, errno.DeviceBusy
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		lock.Unlock()
		return nil, err
	}

	devLog.Infof("opened block device %s", path)
	return &FileDevice{
		id:   nextID(),
		f:    f,
		lock: lock,
		retry: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 5 * time.Millisecond
			b.MaxInterval = 50 * time.Millisecond
			return backoff.WithMaxRetries(b, 3)
		},
	}, nil
}

// ID implements vfs.BlockDevice.
func (d *FileDevice) ID() uint64 { return d.id }

// ReadBlock implements vfs.BlockDevice. A short read past end-of-file is
// zero-filled rather than reported as an error, matching reading an
// all-zero block that was never written.
func (d *FileDevice) ReadBlock(block uint32, size int, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	off := int64(block) * int64(size)
	return backoff.Retry(func() error {
		n, err := d.f.ReadAt(data[:size], off)
		if err == io.EOF {
			for i := n; i < size; i++ {
				data[i] = 0
			}
			return nil
		}
		return err
	}, d.retry())
}

// WriteBlock implements vfs.BlockDevice, growing the file as needed.
func (d *FileDevice) WriteBlock(block uint32, size int, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	off := int64(block) * int64(size)
	return backoff.Retry(func() error {
		_, err := d.f.WriteAt(data[:size], off)
		return err
	}, d.retry())
}

// Sync flushes pending writes to the host file.
func (d *FileDevice) Sync() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.f.Sync()
}

// Close releases the advisory lock and the underlying file handle.
func (d *FileDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	closeErr := d.f.Close()
	if err := d.lock.Unlock(); err != nil && closeErr == nil {
		closeErr = err
	}
	devLog.Infof("closed block device id=%d", d.id)
	return closeErr
}
