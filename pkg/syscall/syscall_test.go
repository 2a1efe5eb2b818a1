package syscall_test

import (
	"testing"
	"unsafe"

	"github.com/eric29200/kos/pkg/errno"
	"github.com/eric29200/kos/pkg/kernel"
	"github.com/eric29200/kos/pkg/socket"
	sc "github.com/eric29200/kos/pkg/syscall"
	"github.com/eric29200/kos/pkg/fs/tmpfs"
	"github.com/eric29200/kos/pkg/vfs"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func newTestTask(t *testing.T) (*kernel.Task, *kernel.Scheduler) {
	sb, err := tmpfs.NewFilesystem().Mount(nil, "")
	require.NoError(t, err)

	sched := kernel.NewScheduler()
	t.Cleanup(sched.Stop)

	task := sched.NewTask(nil)
	task.Files = vfs.NewFDTable()
	task.FS = &kernel.FSState{CWD: sb.Root, Root: sb.Root}
	return task, sched
}

func newTestNet() *sc.Net {
	return &sc.Net{
		Table: socket.NewTable(),
		Unix:  socket.NewUnixFamily(rate.Inf, 8, nil),
	}
}

func TestOpenWriteReadCloseRoundtrip(t *testing.T) {
	task, _ := newTestTask(t)
	table := sc.Default(newTestNet())

	path := "/hello.txt"
	fd, err := table.Dispatch(task, sc.NROpen, sc.Args{
		uintptr(unsafe.Pointer(&path)),
		vfs.OCreat | vfs.ORdWr,
		0o644,
	})
	require.NoError(t, err)

	data := []byte("hi there")
	n, err := table.Dispatch(task, sc.NRWrite, sc.Args{fd, uintptr(unsafe.Pointer(&data)), uintptr(len(data))})
	require.NoError(t, err)
	require.Equal(t, uintptr(len(data)), n)

	_, err = table.Dispatch(task, sc.NRLseek, sc.Args{fd, 0, 0})
	require.NoError(t, err)

	out := make([]byte, 32)
	n, err = table.Dispatch(task, sc.NRRead, sc.Args{fd, uintptr(unsafe.Pointer(&out)), uintptr(len(out))})
	require.NoError(t, err)
	require.Equal(t, "hi there", string(out[:n]))

	_, err = table.Dispatch(task, sc.NRClose, sc.Args{fd})
	require.NoError(t, err)
}

func TestMkdirChdirRoundtrip(t *testing.T) {
	task, _ := newTestTask(t)
	table := sc.Default(newTestNet())

	path := "/sub"
	_, err := table.Dispatch(task, sc.NRMkdir, sc.Args{uintptr(unsafe.Pointer(&path)), 0o755})
	require.NoError(t, err)

	_, err = table.Dispatch(task, sc.NRChdir, sc.Args{uintptr(unsafe.Pointer(&path))})
	require.NoError(t, err)
	require.Equal(t, vfs.TypeDir, task.FS.CWD.Type)
}

func TestUnlinkRemovesFile(t *testing.T) {
	task, _ := newTestTask(t)
	table := sc.Default(newTestNet())

	path := "/gone.txt"
	_, err := table.Dispatch(task, sc.NROpen, sc.Args{uintptr(unsafe.Pointer(&path)), vfs.OCreat | vfs.ORdWr, 0o644})
	require.NoError(t, err)

	_, err = table.Dispatch(task, sc.NRUnlink, sc.Args{uintptr(unsafe.Pointer(&path))})
	require.NoError(t, err)

	_, err = table.Dispatch(task, sc.NROpen, sc.Args{uintptr(unsafe.Pointer(&path)), vfs.ORdOnly, 0})
	require.ErrorIs(t, err, errno.NoSuchFile)
}

func TestPipeWriteRead(t *testing.T) {
	task, _ := newTestTask(t)
	table := sc.Default(newTestNet())

	var fds [2]int
	_, err := table.Dispatch(task, sc.NRPipe, sc.Args{uintptr(unsafe.Pointer(&fds))})
	require.NoError(t, err)

	data := []byte("pipeline")
	_, err = table.Dispatch(task, sc.NRWrite, sc.Args{uintptr(fds[1]), uintptr(unsafe.Pointer(&data)), uintptr(len(data))})
	require.NoError(t, err)

	out := make([]byte, 32)
	n, err := table.Dispatch(task, sc.NRRead, sc.Args{uintptr(fds[0]), uintptr(unsafe.Pointer(&out)), uintptr(len(out))})
	require.NoError(t, err)
	require.Equal(t, "pipeline", string(out[:n]))
}

func TestForkExitWait4(t *testing.T) {
	task, sched := newTestTask(t)
	table := sc.Default(newTestNet())

	childPidRaw, err := table.Dispatch(task, sc.NRFork, sc.Args{})
	require.NoError(t, err)
	childPid := int(childPidRaw)

	child, ok := sched.Lookup(childPid)
	require.True(t, ok)

	_, err = table.Dispatch(child, sc.NRExit, sc.Args{uintptr(7)})
	require.NoError(t, err)

	var result sc.Wait4Result
	reapedPid, err := table.Dispatch(task, sc.NRWait4, sc.Args{uintptr(childPid), uintptr(unsafe.Pointer(&result))})
	require.NoError(t, err)
	require.Equal(t, uintptr(childPid), reapedPid)
	require.Equal(t, childPid, result.Pid)
}

func TestKillUnknownPidIsNoSuchProcess(t *testing.T) {
	task, _ := newTestTask(t)
	table := sc.Default(newTestNet())

	_, err := table.Dispatch(task, sc.NRKill, sc.Args{uintptr(99999), uintptr(kernel.SIGTERM)})
	require.ErrorIs(t, err, errno.NoSuchProcess)
}

func TestSocketBindConnectAcceptSendRecv(t *testing.T) {
	task, _ := newTestTask(t)
	net := newTestNet()
	table := sc.Default(net)

	lfd, err := table.Dispatch(task, sc.NRSocket, sc.Args{socket.AFUnix, socket.SockStream, 0})
	require.NoError(t, err)

	addr := "/tmp/syscall.sock"
	_, err = table.Dispatch(task, sc.NRBind, sc.Args{lfd, uintptr(unsafe.Pointer(&addr))})
	require.NoError(t, err)
	_, err = table.Dispatch(task, sc.NRListen, sc.Args{lfd, 4})
	require.NoError(t, err)

	cfd, err := table.Dispatch(task, sc.NRSocket, sc.Args{socket.AFUnix, socket.SockStream, 0})
	require.NoError(t, err)
	_, err = table.Dispatch(task, sc.NRConnect, sc.Args{cfd, uintptr(unsafe.Pointer(&addr))})
	require.NoError(t, err)

	sfd, err := table.Dispatch(task, sc.NRAccept, sc.Args{lfd})
	require.NoError(t, err)

	msg := []byte("ping")
	_, err = table.Dispatch(task, sc.NRSendTo, sc.Args{cfd, uintptr(unsafe.Pointer(&msg)), uintptr(len(msg))})
	require.NoError(t, err)

	out := make([]byte, 16)
	n, err := table.Dispatch(task, sc.NRRecvFrom, sc.Args{sfd, uintptr(unsafe.Pointer(&out)), uintptr(len(out))})
	require.NoError(t, err)
	require.Equal(t, "ping", string(out[:n]))
}

func TestStatxReportsInodeFields(t *testing.T) {
	task, _ := newTestTask(t)
	table := sc.Default(newTestNet())

	path := "/statx.txt"
	fd, err := table.Dispatch(task, sc.NROpen, sc.Args{uintptr(unsafe.Pointer(&path)), vfs.OCreat | vfs.ORdWr, 0o644})
	require.NoError(t, err)
	data := []byte("four")
	_, err = table.Dispatch(task, sc.NRWrite, sc.Args{fd, uintptr(unsafe.Pointer(&data)), uintptr(len(data))})
	require.NoError(t, err)
	_, err = table.Dispatch(task, sc.NRClose, sc.Args{fd})
	require.NoError(t, err)

	var st sc.Stat
	_, err = table.Dispatch(task, sc.NRStatx, sc.Args{0, uintptr(unsafe.Pointer(&path)), 0, 0, uintptr(unsafe.Pointer(&st))})
	require.NoError(t, err)
	require.EqualValues(t, len(data), st.Size)
}

func TestFaccessatChecksExistenceAndMode(t *testing.T) {
	task, _ := newTestTask(t)
	table := sc.Default(newTestNet())

	path := "/access.txt"
	fd, err := table.Dispatch(task, sc.NROpen, sc.Args{uintptr(unsafe.Pointer(&path)), vfs.OCreat | vfs.ORdWr, 0o600})
	require.NoError(t, err)
	_, err = table.Dispatch(task, sc.NRClose, sc.Args{fd})
	require.NoError(t, err)

	_, err = table.Dispatch(task, sc.NRFaccessat, sc.Args{0, uintptr(unsafe.Pointer(&path)), sc.FOK})
	require.NoError(t, err)

	missing := "/does-not-exist.txt"
	_, err = table.Dispatch(task, sc.NRFaccessat, sc.Args{0, uintptr(unsafe.Pointer(&missing)), sc.FOK})
	require.ErrorIs(t, err, errno.NoSuchFile)
}

func TestGetdents64MatchesGetdents(t *testing.T) {
	task, _ := newTestTask(t)
	table := sc.Default(newTestNet())

	path := "/dir64"
	_, err := table.Dispatch(task, sc.NRMkdir, sc.Args{uintptr(unsafe.Pointer(&path)), 0o755})
	require.NoError(t, err)

	fd, err := table.Dispatch(task, sc.NROpen, sc.Args{uintptr(unsafe.Pointer(&path)), vfs.ORdOnly, 0})
	require.NoError(t, err)

	var ents []sc.Dirent
	n, err := table.Dispatch(task, sc.NRGetdents64, sc.Args{fd, uintptr(unsafe.Pointer(&ents)), 64})
	require.NoError(t, err)
	require.Equal(t, uintptr(len(ents)), n)
	require.GreaterOrEqual(t, len(ents), 2) // "." and ".."
}

func TestDispatchUnknownSyscallIsNoSuchSyscall(t *testing.T) {
	task, _ := newTestTask(t)
	table := sc.Default(newTestNet())
	_, err := table.Dispatch(task, 9999, sc.Args{})
	require.ErrorIs(t, err, errno.NoSuchSyscall)
}
