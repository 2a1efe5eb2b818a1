package tmpfs_test

import (
	"testing"

	"github.com/eric29200/kos/pkg/fs/tmpfs"
	"github.com/eric29200/kos/pkg/vfs"
	"github.com/stretchr/testify/require"
)

func mountTmpfs(t *testing.T) (*vfs.SuperBlock, *vfs.InodeCache) {
	t.Helper()
	fs := tmpfs.NewFilesystem()
	sb, err := fs.Mount(nil, "")
	require.NoError(t, err)
	return sb, sb.Inodes
}

func TestMountBuildsRootDir(t *testing.T) {
	sb, caches := mountTmpfs(t)
	require.Equal(t, vfs.TypeDir, sb.Root.Type)
	caches.Iput(sb.Root)
}

func TestCreateWriteReadRoundtrip(t *testing.T) {
	sb, caches := mountTmpfs(t)
	root := sb.Root

	file, err := root.Ops.Create(root.Get(), "a.txt", 0o644)
	require.NoError(t, err)

	ops, err := file.Ops.Open(file, vfs.ORdWr)
	require.NoError(t, err)
	of := vfs.NewFile(file, vfs.ORdWr, ops, caches)

	n, err := ops.Write(of, []byte("tmpfs data"), 0)
	require.NoError(t, err)
	require.Equal(t, 10, n)

	buf := make([]byte, 32)
	n, err = ops.Read(of, buf, 0)
	require.NoError(t, err)
	require.Equal(t, "tmpfs data", string(buf[:n]))

	require.NoError(t, of.Close())
	caches.Iput(root)
}

func TestMkdirRmdirLifecycle(t *testing.T) {
	sb, caches := mountTmpfs(t)
	root := sb.Root

	require.NoError(t, root.Ops.Mkdir(root.Get(), "d", 0o755))

	sub, err := root.Ops.Lookup(root.Get(), "d")
	require.NoError(t, err)
	require.Equal(t, vfs.TypeDir, sub.Type)
	caches.Iput(sub)

	require.NoError(t, root.Ops.Rmdir(root.Get(), "d"))
	_, err = root.Ops.Lookup(root.Get(), "d")
	require.Error(t, err)

	caches.Iput(root)
}

func TestUnlinkDropsLastLink(t *testing.T) {
	sb, caches := mountTmpfs(t)
	root := sb.Root

	file, err := root.Ops.Create(root.Get(), "x", 0o644)
	require.NoError(t, err)
	caches.Iput(file)

	require.NoError(t, root.Ops.Unlink(root.Get(), "x"))
	_, err = root.Ops.Lookup(root.Get(), "x")
	require.Error(t, err)

	caches.Iput(root)
}

func TestSymlinkFollowsToTarget(t *testing.T) {
	sb, caches := mountTmpfs(t)
	root := sb.Root

	_, err := root.Ops.Create(root.Get(), "real", 0o644)
	require.NoError(t, err)

	require.NoError(t, root.Ops.Symlink(root.Get(), "lnk", "real"))

	link, err := root.Ops.Lookup(root.Get(), "lnk")
	require.NoError(t, err)

	target, err := link.Ops.Readlink(link)
	require.NoError(t, err)
	require.Equal(t, "real", target)

	caches.Iput(link)
	caches.Iput(root)
}

func TestGetdentsListsChildren(t *testing.T) {
	sb, caches := mountTmpfs(t)
	root := sb.Root

	f1, err := root.Ops.Create(root.Get(), "one", 0o644)
	require.NoError(t, err)
	caches.Iput(f1)
	f2, err := root.Ops.Create(root.Get(), "two", 0o644)
	require.NoError(t, err)
	caches.Iput(f2)

	dops, err := root.Ops.Open(root, 0)
	require.NoError(t, err)
	of := vfs.NewFile(root.Get(), 0, dops, caches)
	entries, err := dops.Getdents(of, 16)
	require.NoError(t, err)

	names := map[string]bool{}
	for _, e := range entries {
		names[e.Name] = true
	}
	require.True(t, names["one"])
	require.True(t, names["two"])
	require.True(t, names["."])
	require.True(t, names[".."])

	require.NoError(t, of.Close())
	caches.Iput(root)
}
