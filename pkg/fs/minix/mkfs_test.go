package minix_test

import (
	"testing"

	"github.com/eric29200/kos/pkg/fs/minix"
	"github.com/eric29200/kos/pkg/vfs"
	"github.com/stretchr/testify/require"
)

func TestMkfsThenMountProducesUsableRoot(t *testing.T) {
	dev := newMemDevice(1)
	err := minix.Mkfs(dev, minix.DefaultMkfsOptions(256))
	require.NoError(t, err)

	bc := vfs.NewBufferCache(32)
	fs := minix.NewFilesystem(bc)
	sb, err := fs.Mount(dev, "")
	require.NoError(t, err)
	require.NotNil(t, sb.Root)
	require.Equal(t, vfs.TypeDir, sb.Root.Type)
	require.EqualValues(t, 2, sb.Root.NLinks)
}

func TestMkfsRootDirectoryListsDotAndDotDot(t *testing.T) {
	dev := newMemDevice(2)
	require.NoError(t, minix.Mkfs(dev, minix.DefaultMkfsOptions(256)))

	bc := vfs.NewBufferCache(32)
	fs := minix.NewFilesystem(bc)
	sb, err := fs.Mount(dev, "")
	require.NoError(t, err)

	ops, err := sb.Root.Ops.Open(sb.Root, vfs.ORdOnly)
	require.NoError(t, err)
	f := vfs.NewFile(sb.Root, vfs.ORdOnly, ops, sb.Inodes)

	ents, err := f.Ops.Getdents(f, 16)
	require.NoError(t, err)
	require.Len(t, ents, 2)
	require.Equal(t, ".", ents[0].Name)
	require.Equal(t, "..", ents[1].Name)
}

func TestMkfsSmallImageReservesMinimumInodes(t *testing.T) {
	opts := minix.DefaultMkfsOptions(32)
	require.GreaterOrEqual(t, opts.Inodes, uint32(16))
}
