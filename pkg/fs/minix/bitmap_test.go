package minix_test

import (
	"testing"

	"github.com/eric29200/kos/pkg/fs/minix"
	"github.com/eric29200/kos/pkg/vfs"
	"github.com/stretchr/testify/require"
)

func mountedSuperInfo(t *testing.T, id uint64) *minix.SuperInfo {
	t.Helper()
	dev := newMemDevice(id)
	require.NoError(t, minix.Mkfs(dev, minix.DefaultMkfsOptions(256)))

	bc := vfs.NewBufferCache(32)
	fs := minix.NewFilesystem(bc)
	sb, err := fs.Mount(dev, "")
	require.NoError(t, err)

	sbi, ok := sb.Private.(*minix.SuperInfo)
	require.True(t, ok)
	return sbi
}

func TestDoubleFreeInodeIsRefused(t *testing.T) {
	sbi := mountedSuperInfo(t, 10)

	ino, err := sbi.AllocInode()
	require.NoError(t, err)

	usedBefore, _, _, _ := sbi.BitmapStats()
	sbi.FreeInode(ino)
	usedAfter, _, _, _ := sbi.BitmapStats()
	require.Equal(t, usedBefore-1, usedAfter)

	// A second free of the same, already-free inode must not touch the
	// bitmap or free-extent index again.
	sbi.FreeInode(ino)
	usedAfterDouble, _, _, _ := sbi.BitmapStats()
	require.Equal(t, usedAfter, usedAfterDouble)

	// The bit must still be handed out exactly once on the next alloc.
	reallocated, err := sbi.AllocInode()
	require.NoError(t, err)
	require.Equal(t, ino, reallocated)
}

func TestDoubleFreeBlockIsRefused(t *testing.T) {
	sbi := mountedSuperInfo(t, 11)

	block, err := sbi.AllocBlock()
	require.NoError(t, err)

	require.NoError(t, sbi.FreeBlock(block))

	err = sbi.FreeBlock(block)
	require.Error(t, err, "freeing an already-free block must be refused")

	// The block must still be allocatable exactly once, not handed out
	// twice because of a corrupted free-extent index.
	realloc, err := sbi.AllocBlock()
	require.NoError(t, err)
	require.Equal(t, block, realloc)
}
