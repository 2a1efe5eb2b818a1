// Package procfs implements a read-only snapshot of the task table as a
// file system, matching /proc's role of exposing kernel state through
// ordinary read(2) calls instead of a dedicated syscall per field. Every
// file here is synthesized on each read from pkg/kernel.Scheduler's task
// table rather than backed by any stored bytes, the same "generate on read" contract
// the original's /proc readers implement.
package procfs

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/eric29200/kos/pkg/errno"
	"github.com/eric29200/kos/pkg/kernel"
	"github.com/eric29200/kos/pkg/vfs"
)

// Filesystem implements vfs.Filesystem over a live *kernel.Scheduler.
type Filesystem struct {
	sched *kernel.Scheduler

	mu      sync.Mutex
	nextIno uint64
}

// NewFilesystem builds a procfs view of sched's task table.
func NewFilesystem(sched *kernel.Scheduler) *Filesystem {
	return &Filesystem{sched: sched, nextIno: 1000}
}

func (f *Filesystem) Name() string { return "proc" }

func (f *Filesystem) Mount(dev vfs.BlockDevice, opts string) (*vfs.SuperBlock, error) {
	sb := &vfs.SuperBlock{
		Dev:     dev,
		Ops:     &superOps{fs: f},
		Inodes:  vfs.NewInodeCache(),
		Private: f,
		FSType:  "proc",
	}
	root, err := sb.Inodes.Iget(sb, rootIno)
	if err != nil {
		return nil, err
	}
	sb.Root = root
	return sb, nil
}

// Inode numbering scheme: the root directory is a fixed sentinel; each
// live pid maps to two synthesized inodes (its per-pid directory, and its
// "status" file) via simple arithmetic rather than a persistent table, so
// no bookkeeping is needed as tasks come and go.
const (
	rootIno    = 1
	pidDirBase = 2          // pid P's directory inode is pidDirBase + P*2
	statusOff  = 1          // pid P's status file inode is its dir ino + statusOff
)

func pidDirIno(pid int) uint64    { return pidDirBase + uint64(pid)*2 }
func statusIno(pid int) uint64    { return pidDirIno(pid) + statusOff }
func pidOfDirIno(ino uint64) int  { return int((ino - pidDirBase) / 2) }
func pidOfStatusIno(ino uint64) int { return int((ino - pidDirBase - statusOff) / 2) }

func (f *Filesystem) taskByPid(pid int) (*kernel.Task, bool) {
	return f.sched.Lookup(pid)
}

type superOps struct {
	fs *Filesystem
}

func (o *superOps) ReadInode(inode *vfs.Inode) error {
	switch {
	case inode.Ino == rootIno:
		inode.Type = vfs.TypeDir
		inode.Mode = 0o555
		inode.NLinks = 2
		inode.Ops = &rootOps{fs: o.fs}
		return nil
	case inode.Ino%2 == 0: // per-pid directory
		pid := pidOfDirIno(inode.Ino)
		if _, ok := o.fs.taskByPid(pid); !ok {
			return errno.NoSuchFile
		}
		inode.Type = vfs.TypeDir
		inode.Mode = 0o555
		inode.NLinks = 2
		inode.Ops = &pidDirOps{fs: o.fs, pid: pid}
		return nil
	default: // status file
		pid := pidOfStatusIno(inode.Ino)
		task, ok := o.fs.taskByPid(pid)
		if !ok {
			return errno.NoSuchFile
		}
		inode.Type = vfs.TypeRegular
		inode.Mode = 0o444
		inode.NLinks = 1
		inode.Size = uint64(len(renderStatus(task)))
		inode.Ops = &statusOps{fs: o.fs, pid: pid}
		return nil
	}
}

func (o *superOps) WriteInode(inode *vfs.Inode) error { return nil }
func (o *superOps) PutInode(inode *vfs.Inode) error   { return nil }

// rootOps lists every live pid as a subdirectory of /proc.
type rootOps struct {
	vfs.DefaultInodeOperations
	fs *Filesystem
}

func (o *rootOps) Lookup(dir *vfs.Inode, name string) (*vfs.Inode, error) {
	sb := dir.SB
	pid, err := strconv.Atoi(name)
	if err != nil {
		sb.Inodes.Iput(dir)
		return nil, errno.NoSuchFile
	}
	if _, ok := o.fs.taskByPid(pid); !ok {
		sb.Inodes.Iput(dir)
		return nil, errno.NoSuchFile
	}
	sb.Inodes.Iput(dir)
	return sb.Inodes.Iget(sb, pidDirIno(pid))
}

func (o *rootOps) Open(inode *vfs.Inode, flags int) (vfs.FileOperations, error) {
	return &rootDirFileOps{fs: o.fs}, nil
}

type rootDirFileOps struct {
	vfs.DefaultFileOperations
	fs *Filesystem
}

func (o *rootDirFileOps) Getdents(f *vfs.File, max int) ([]vfs.Dirent, error) {
	tasks := o.fs.sched.Tasks()
	pids := make([]int, 0, len(tasks))
	for _, t := range tasks {
		pids = append(pids, t.Pid)
	}
	sort.Ints(pids)

	start := f.Pos()
	var out []vfs.Dirent
	var i int64
	for i = start; i < int64(len(pids)) && len(out) < max; i++ {
		pid := pids[i]
		out = append(out, vfs.Dirent{Ino: pidDirIno(pid), Off: i + 1, Name: strconv.Itoa(pid)})
	}
	f.Advance(i - start)
	return out, nil
}

// pidDirOps serves a single pid's subdirectory — just "status" for now,
// the way an early /proc build grows one file at a time.
type pidDirOps struct {
	vfs.DefaultInodeOperations
	fs  *Filesystem
	pid int
}

func (o *pidDirOps) Lookup(dir *vfs.Inode, name string) (*vfs.Inode, error) {
	sb := dir.SB
	if name != "status" {
		sb.Inodes.Iput(dir)
		return nil, errno.NoSuchFile
	}
	if _, ok := o.fs.taskByPid(o.pid); !ok {
		sb.Inodes.Iput(dir)
		return nil, errno.NoSuchFile
	}
	sb.Inodes.Iput(dir)
	return sb.Inodes.Iget(sb, statusIno(o.pid))
}

func (o *pidDirOps) Open(inode *vfs.Inode, flags int) (vfs.FileOperations, error) {
	return &pidDirFileOps{}, nil
}

type pidDirFileOps struct {
	vfs.DefaultFileOperations
}

func (o *pidDirFileOps) Getdents(f *vfs.File, max int) ([]vfs.Dirent, error) {
	if f.Pos() > 0 {
		return nil, nil
	}
	f.Advance(1)
	return []vfs.Dirent{{Ino: 0, Off: 1, Name: "status"}}, nil
}

// statusOps serves the synthesized contents of /proc/<pid>/status, built
// fresh on every read from the task's live state.
type statusOps struct {
	vfs.DefaultInodeOperations
	fs  *Filesystem
	pid int
}

func (o *statusOps) Open(inode *vfs.Inode, flags int) (vfs.FileOperations, error) {
	return &statusFileOps{fs: o.fs, pid: o.pid}, nil
}

type statusFileOps struct {
	vfs.DefaultFileOperations
	fs  *Filesystem
	pid int
}

func (o *statusFileOps) Read(f *vfs.File, buf []byte, offset int64) (int, error) {
	task, ok := o.fs.taskByPid(o.pid)
	if !ok {
		return 0, errno.NoSuchFile
	}
	text := renderStatus(task)
	if offset >= int64(len(text)) {
		return 0, nil
	}
	return copy(buf, text[offset:]), nil
}

// renderStatus formats the handful of fields a `ps`-equivalent needs,
// matching the key: value line shape of the original's /proc/<pid>/status.
func renderStatus(t *kernel.Task) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Pid:\t%d\n", t.Pid)
	fmt.Fprintf(&b, "Pgid:\t%d\n", t.Pgid)
	fmt.Fprintf(&b, "Sid:\t%d\n", t.Sid)
	fmt.Fprintf(&b, "State:\t%s\n", t.State())
	if t.Parent != nil {
		fmt.Fprintf(&b, "PPid:\t%d\n", t.Parent.Pid)
	} else {
		fmt.Fprintf(&b, "PPid:\t0\n")
	}
	if t.Exited() {
		code, sig := t.ExitStatus()
		fmt.Fprintf(&b, "ExitCode:\t%d\n", code)
		fmt.Fprintf(&b, "ExitSignal:\t%d\n", sig)
	}
	return b.String()
}
