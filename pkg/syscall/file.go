package syscall

import (
	"github.com/eric29200/kos/pkg/errno"
	"github.com/eric29200/kos/pkg/kernel"
	"github.com/eric29200/kos/pkg/vfs"
)

// startCache picks the InodeCache owning the inode Namei will actually
// start from — Root for an absolute path, CWD otherwise — matching
// Namei's own absolute/relative branch exactly (see pkg/vfs/namei.go).
func startCache(pc vfs.PathContext, path string) *vfs.InodeCache {
	if len(path) > 0 && path[0] == '/' {
		return pc.Root.SB.Inodes
	}
	return pc.CWD.SB.Inodes
}

// Read implements read(2): fd, buf, count.
func Read(t *kernel.Task, args Args) (uintptr, error) {
	fd := int(args[0])
	buf := argBytes(args[1], int(args[2]))

	f, err := t.Files.Get(fd)
	if err != nil {
		return 0, err
	}
	n, err := f.Ops.Read(f, buf, f.Pos())
	if err != nil {
		return 0, err
	}
	f.Advance(int64(n))
	return uintptr(n), nil
}

// Write implements write(2): fd, buf, count.
func Write(t *kernel.Task, args Args) (uintptr, error) {
	fd := int(args[0])
	buf := argBytes(args[1], int(args[2]))

	f, err := t.Files.Get(fd)
	if err != nil {
		return 0, err
	}
	n, err := f.Ops.Write(f, buf, f.Pos())
	if err != nil {
		return 0, err
	}
	f.Advance(int64(n))
	return uintptr(n), nil
}

// Open implements open(2): path, flags, mode.
func Open(t *kernel.Task, args Args) (uintptr, error) {
	path := argString(args[0])
	flags := int(args[1])
	mode := uint32(args[2])

	pc := t.FS.PathContext()
	caches := startCache(pc, path)

	inode, err := vfs.OpenNamei(caches, pc, pc.CWD, path, flags, mode)
	if err != nil {
		return 0, err
	}

	ops, err := inode.Ops.Open(inode, flags)
	if err != nil {
		caches.Iput(inode)
		return 0, err
	}

	file := vfs.NewFile(inode, flags, ops, caches)
	fd, err := t.Files.Install(file)
	if err != nil {
		file.Close()
		return 0, err
	}
	return uintptr(fd), nil
}

// Close implements close(2): fd.
func Close(t *kernel.Task, args Args) (uintptr, error) {
	fd := int(args[0])
	return 0, t.Files.Close(fd)
}

// Lseek implements lseek(2): fd, offset, whence. size comes from the
// inode directly rather than a fourth syscall argument.
func Lseek(t *kernel.Task, args Args) (uintptr, error) {
	fd := int(args[0])
	offset := int64(args[1])
	whence := int(args[2])

	f, err := t.Files.Get(fd)
	if err != nil {
		return 0, err
	}
	var size int64
	if f.Inode != nil {
		size = int64(f.Inode.Size)
	}
	pos, err := f.Seek(offset, whence, size)
	return uintptr(pos), err
}

// Ioctl implements ioctl(2): fd, request, arg.
func Ioctl(t *kernel.Task, args Args) (uintptr, error) {
	fd := int(args[0])
	f, err := t.Files.Get(fd)
	if err != nil {
		return 0, err
	}
	return 0, f.Ops.Ioctl(f, uintptr(args[1]), args[2])
}

// Dirent mirrors vfs.Dirent for the caller-supplied output slice.
type Dirent = vfs.Dirent

// Getdents implements getdents(2): fd, *[]Dirent out-param, max count.
func Getdents(t *kernel.Task, args Args) (uintptr, error) {
	fd := int(args[0])
	out := (*[]Dirent)(argPtr(args[1]))
	max := int(args[2])

	f, err := t.Files.Get(fd)
	if err != nil {
		return 0, err
	}
	ents, err := f.Ops.Getdents(f, max)
	if err != nil {
		return 0, err
	}
	*out = ents
	return uintptr(len(ents)), nil
}

// Mkdir implements mkdir(2): path, mode.
func Mkdir(t *kernel.Task, args Args) (uintptr, error) {
	path := argString(args[0])
	mode := uint32(args[1])

	pc := t.FS.PathContext()
	caches := startCache(pc, path)
	dir, err := vfs.Namei(caches, pc, pc.CWD, dirname(path), true)
	if err != nil {
		return 0, err
	}
	return 0, dir.Ops.Mkdir(dir, basename(path), mode&^pc.Umask)
}

// Rmdir implements rmdir(2): path.
func Rmdir(t *kernel.Task, args Args) (uintptr, error) {
	path := argString(args[0])
	pc := t.FS.PathContext()
	caches := startCache(pc, path)
	dir, err := vfs.Namei(caches, pc, pc.CWD, dirname(path), true)
	if err != nil {
		return 0, err
	}
	return 0, dir.Ops.Rmdir(dir, basename(path))
}

// Unlink implements unlink(2): path.
func Unlink(t *kernel.Task, args Args) (uintptr, error) {
	path := argString(args[0])
	pc := t.FS.PathContext()
	caches := startCache(pc, path)
	dir, err := vfs.Namei(caches, pc, pc.CWD, dirname(path), true)
	if err != nil {
		return 0, err
	}
	return 0, dir.Ops.Unlink(dir, basename(path))
}

// Chdir implements chdir(2): path.
func Chdir(t *kernel.Task, args Args) (uintptr, error) {
	path := argString(args[0])
	pc := t.FS.PathContext()
	caches := startCache(pc, path)
	inode, err := vfs.Namei(caches, pc, pc.CWD, path, true)
	if err != nil {
		return 0, err
	}
	if inode.Type != vfs.TypeDir {
		caches.Iput(inode)
		return 0, errno.NotADir
	}
	t.FS.Chdir(caches, inode)
	return 0, nil
}

// Dup implements dup(2): oldfd.
func Dup(t *kernel.Task, args Args) (uintptr, error) {
	fd, err := t.Files.Dup(int(args[0]))
	return uintptr(fd), err
}

// Dup2 implements dup2(2): oldfd, newfd.
func Dup2(t *kernel.Task, args Args) (uintptr, error) {
	fd, err := t.Files.Dup2(int(args[0]), int(args[1]))
	return uintptr(fd), err
}

// Pipe implements pipe(2): *[2]int out-param for the read/write fds.
func Pipe(t *kernel.Task, args Args) (uintptr, error) {
	fds := (*[2]int)(argPtr(args[0]))

	inode := vfs.NewPipeInode()
	sl := t.Sleeper()

	rf := vfs.NewFile(inode.Get(), vfs.ORdOnly, vfs.NewPipeFileOps(inode, sl, true), nil)
	wf := vfs.NewFile(inode, vfs.OWrOnly, vfs.NewPipeFileOps(inode, sl, false), nil)

	rfd, err := t.Files.Install(rf)
	if err != nil {
		rf.Close()
		wf.Close()
		return 0, err
	}
	wfd, err := t.Files.Install(wf)
	if err != nil {
		t.Files.Close(rfd)
		wf.Close()
		return 0, err
	}
	fds[0], fds[1] = rfd, wfd
	return 0, nil
}

// Stat is the fixed subset of struct stat this kernel's fstat(2) fills in.
type Stat struct {
	Ino    uint64
	Mode   uint32
	Size   uint64
	NLinks uint32
}

// Fstat implements fstat(2): fd, *Stat out-param.
func Fstat(t *kernel.Task, args Args) (uintptr, error) {
	fd := int(args[0])
	out := (*Stat)(argPtr(args[1]))

	f, err := t.Files.Get(fd)
	if err != nil {
		return 0, err
	}
	if f.Inode == nil {
		return 0, errno.InvalidArg
	}
	*out = Stat{
		Ino:    f.Inode.Ino,
		Mode:   f.Inode.Mode,
		Size:   f.Inode.Size,
		NLinks: f.Inode.NLinks,
	}
	return 0, nil
}

func dirname(path string) string {
	idx := -1
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			idx = i
			break
		}
	}
	if idx < 0 {
		return "."
	}
	if idx == 0 {
		return "/"
	}
	return path[:idx]
}

func basename(path string) string {
	idx := -1
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			idx = i
			break
		}
	}
	return path[idx+1:]
}
