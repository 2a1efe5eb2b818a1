package vfs_test

import (
	"testing"

	"github.com/eric29200/kos/pkg/vfs"
	"github.com/stretchr/testify/require"
)

type fakeSuperOps struct {
	reads, writes, puts int
	writeErr            error
}

func (f *fakeSuperOps) ReadInode(inode *vfs.Inode) error {
	f.reads++
	inode.Type = vfs.TypeRegular
	return nil
}

func (f *fakeSuperOps) WriteInode(inode *vfs.Inode) error {
	f.writes++
	return f.writeErr
}

func (f *fakeSuperOps) PutInode(inode *vfs.Inode) error {
	f.puts++
	return nil
}

func TestIgetHitRaisesRefAndReturnsSamePointer(t *testing.T) {
	ops := &fakeSuperOps{}
	sb := &vfs.SuperBlock{Ops: ops, Inodes: vfs.NewInodeCache()}

	i1, err := sb.Inodes.Iget(sb, 42)
	require.NoError(t, err)
	require.Equal(t, 1, i1.RefCount())

	i2, err := sb.Inodes.Iget(sb, 42)
	require.NoError(t, err)
	require.Same(t, i1, i2)
	require.Equal(t, 2, i1.RefCount())
	require.Equal(t, 1, ops.reads, "second iget must be a cache hit, not a second read_inode")
}

func TestIputWritesBackWhenDirtyThenFrees(t *testing.T) {
	ops := &fakeSuperOps{}
	sb := &vfs.SuperBlock{Ops: ops, Inodes: vfs.NewInodeCache()}

	inode, err := sb.Inodes.Iget(sb, 7)
	require.NoError(t, err)
	inode.MarkDirty()

	require.NoError(t, sb.Inodes.Iput(inode))
	require.Equal(t, 1, ops.writes)
	require.Equal(t, 1, ops.puts)

	// A subsequent Iget must be a fresh read, proving the prior inode was
	// actually freed from the cache rather than lingering with a stale ref.
	_, err = sb.Inodes.Iget(sb, 7)
	require.NoError(t, err)
	require.Equal(t, 2, ops.reads)
}

func TestIputCleanDoesNotWriteBack(t *testing.T) {
	ops := &fakeSuperOps{}
	sb := &vfs.SuperBlock{Ops: ops, Inodes: vfs.NewInodeCache()}

	inode, err := sb.Inodes.Iget(sb, 1)
	require.NoError(t, err)
	require.NoError(t, sb.Inodes.Iput(inode))
	require.Equal(t, 0, ops.writes)
}
