package devfs_test

import (
	"testing"

	"github.com/eric29200/kos/pkg/fs/devfs"
	"github.com/eric29200/kos/pkg/vfs"
	"github.com/stretchr/testify/require"
)

func mountDevfs(t *testing.T) (*vfs.SuperBlock, *vfs.InodeCache) {
	t.Helper()
	fs := devfs.NewFilesystem()
	sb, err := fs.Mount(nil, "")
	require.NoError(t, err)
	return sb, sb.Inodes
}

func TestNullDiscardsWritesAndReadsEmpty(t *testing.T) {
	sb, caches := mountDevfs(t)
	root := sb.Root

	null, err := root.Ops.Lookup(root.Get(), "null")
	require.NoError(t, err)
	require.Equal(t, vfs.TypeChar, null.Type)

	ops, err := null.Ops.Open(null, vfs.ORdWr)
	require.NoError(t, err)
	of := vfs.NewFile(null, vfs.ORdWr, ops, caches)

	n, err := ops.Write(of, []byte("discarded"), 0)
	require.NoError(t, err)
	require.Equal(t, 9, n)

	buf := make([]byte, 8)
	n, err = ops.Read(of, buf, 0)
	require.NoError(t, err)
	require.Equal(t, 0, n)

	require.NoError(t, of.Close())
	caches.Iput(root)
}

func TestZeroFillsReads(t *testing.T) {
	sb, caches := mountDevfs(t)
	root := sb.Root

	zero, err := root.Ops.Lookup(root.Get(), "zero")
	require.NoError(t, err)

	ops, err := zero.Ops.Open(zero, vfs.ORdOnly)
	require.NoError(t, err)
	of := vfs.NewFile(zero, vfs.ORdOnly, ops, caches)

	buf := []byte{1, 2, 3, 4}
	n, err := ops.Read(of, buf, 0)
	require.NoError(t, err)
	require.Equal(t, 4, n)
	require.Equal(t, []byte{0, 0, 0, 0}, buf)

	require.NoError(t, of.Close())
	caches.Iput(root)
}

func TestAddDeviceRegistersAndCanBeLookedUp(t *testing.T) {
	fs := devfs.NewFilesystem()
	called := false
	err := fs.AddDevice("ttyS0", vfs.TypeChar, 0x0400, 0o620, func(inode *vfs.Inode, flags int) (vfs.FileOperations, error) {
		called = true
		return vfs.DefaultFileOperations{}, nil
	})
	require.NoError(t, err)

	sb, err := fs.Mount(nil, "")
	require.NoError(t, err)
	caches := sb.Inodes

	ttyInode, err := sb.Root.Ops.Lookup(sb.Root.Get(), "ttyS0")
	require.NoError(t, err)
	_, err = ttyInode.Ops.Open(ttyInode, 0)
	require.NoError(t, err)
	require.True(t, called)

	caches.Iput(ttyInode)
	caches.Iput(sb.Root)
}

func TestAddDeviceDuplicateNameFails(t *testing.T) {
	fs := devfs.NewFilesystem()
	err := fs.AddDevice("null", vfs.TypeChar, 0x0103, 0o666, nil)
	require.Error(t, err)
}

func TestGetdentsListsRegisteredDevices(t *testing.T) {
	sb, caches := mountDevfs(t)
	root := sb.Root

	dops, err := root.Ops.Open(root, 0)
	require.NoError(t, err)
	of := vfs.NewFile(root.Get(), 0, dops, caches)
	entries, err := dops.Getdents(of, 16)
	require.NoError(t, err)

	names := map[string]bool{}
	for _, e := range entries {
		names[e.Name] = true
	}
	require.True(t, names["null"])
	require.True(t, names["zero"])

	require.NoError(t, of.Close())
	caches.Iput(root)
}
