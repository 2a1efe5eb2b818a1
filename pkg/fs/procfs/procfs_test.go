package procfs_test

import (
	"strconv"
	"strings"
	"testing"

	"github.com/eric29200/kos/pkg/fs/procfs"
	"github.com/eric29200/kos/pkg/kernel"
	"github.com/eric29200/kos/pkg/vfs"
	"github.com/stretchr/testify/require"
)

func mountProcfs(t *testing.T, sched *kernel.Scheduler) (*vfs.SuperBlock, *vfs.InodeCache) {
	t.Helper()
	fs := procfs.NewFilesystem(sched)
	sb, err := fs.Mount(nil, "")
	require.NoError(t, err)
	return sb, sb.Inodes
}

func TestRootListsLivePids(t *testing.T) {
	sched := kernel.NewScheduler()
	t.Cleanup(sched.Stop)
	task := sched.NewTask(nil)

	sb, caches := mountProcfs(t, sched)
	root := sb.Root

	dops, err := root.Ops.Open(root, 0)
	require.NoError(t, err)
	of := vfs.NewFile(root.Get(), 0, dops, caches)
	entries, err := dops.Getdents(of, 16)
	require.NoError(t, err)

	found := false
	for _, e := range entries {
		if e.Name == strconv.Itoa(task.Pid) {
			found = true
		}
	}
	require.True(t, found)
	require.NoError(t, of.Close())
	caches.Iput(root)
}

func TestStatusFileReportsTaskState(t *testing.T) {
	sched := kernel.NewScheduler()
	t.Cleanup(sched.Stop)
	task := sched.NewTask(nil)

	sb, caches := mountProcfs(t, sched)
	root := sb.Root

	pidDir, err := root.Ops.Lookup(root.Get(), strconv.Itoa(task.Pid))
	require.NoError(t, err)

	statusInode, err := pidDir.Ops.Lookup(pidDir.Get(), "status")
	require.NoError(t, err)

	ops, err := statusInode.Ops.Open(statusInode, vfs.ORdOnly)
	require.NoError(t, err)
	of := vfs.NewFile(statusInode, vfs.ORdOnly, ops, caches)

	buf := make([]byte, 256)
	n, err := ops.Read(of, buf, 0)
	require.NoError(t, err)
	body := string(buf[:n])
	require.True(t, strings.Contains(body, "running"))
	require.True(t, strings.Contains(body, strconv.Itoa(task.Pid)))

	require.NoError(t, of.Close())
	caches.Iput(pidDir)
	caches.Iput(root)
}

func TestLookupUnknownPidFails(t *testing.T) {
	sched := kernel.NewScheduler()
	t.Cleanup(sched.Stop)

	sb, caches := mountProcfs(t, sched)
	root := sb.Root

	_, err := root.Ops.Lookup(root.Get(), "99999")
	require.Error(t, err)
	caches.Iput(root)
}
