package minix_test

import (
	"encoding/binary"
	"sync"
	"testing"

	"github.com/eric29200/kos/pkg/fs/minix"
	"github.com/eric29200/kos/pkg/vfs"
	"github.com/stretchr/testify/require"
)

// memDevice is the same fixed-block in-memory device double used by
// pkg/vfs's own buffer cache tests.
type memDevice struct {
	mu   sync.Mutex
	id   uint64
	data map[uint32][]byte
}

func newMemDevice(id uint64) *memDevice {
	return &memDevice{id: id, data: make(map[uint32][]byte)}
}

func (m *memDevice) ID() uint64 { return m.id }

func (m *memDevice) ReadBlock(block uint32, size int, out []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.data[block]; ok {
		copy(out, d)
	}
	return nil
}

func (m *memDevice) WriteBlock(block uint32, size int, in []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	buf := make([]byte, size)
	copy(buf, in)
	m.data[block] = buf
	return nil
}

func (m *memDevice) block(n uint32) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.data[n]
	if !ok {
		b = make([]byte, minix.BlockSize)
		m.data[n] = b
	}
	return b
}

const (
	testNinodes = 32
	testNzones  = 64
	testRootIno = 1
	testRootBlk = 4 // block 4: the lone inode-table block
	testRootDat = 5 // block 5: root directory's first data zone
)

// writeDirEntry packs a single 32-byte minix directory record at entries[i].
func writeDirEntry(block []byte, slot int, ino uint16, name string) {
	off := slot * 32
	binary.LittleEndian.PutUint16(block[off:off+2], ino)
	copy(block[off+2:off+32], name)
}

// buildImage lays out a minimal valid Minix v1 file system: super block at
// block 1, a 1-block inode bitmap, a 1-block zone bitmap, a 1-block inode
// table holding just the root inode, and one data block for the root
// directory's "." and ".." entries.
func buildImage(t *testing.T) *memDevice {
	t.Helper()
	dev := newMemDevice(1)

	sb := dev.block(1)
	binary.LittleEndian.PutUint16(sb[0:2], testNinodes)
	binary.LittleEndian.PutUint16(sb[2:4], testNzones)
	binary.LittleEndian.PutUint16(sb[4:6], 1) // imap blocks
	binary.LittleEndian.PutUint16(sb[6:8], 1) // zmap blocks
	binary.LittleEndian.PutUint16(sb[8:10], testRootDat)
	binary.LittleEndian.PutUint16(sb[10:12], 0) // log zone size
	binary.LittleEndian.PutUint32(sb[12:16], 0x7fffffff)
	binary.LittleEndian.PutUint16(sb[16:18], 0x138F)

	imap := dev.block(2)
	imap[0] = 0x03 // bit 0 (reserved) and bit 1 (root inode) used

	zmap := dev.block(3)
	zmap[0] = 0x03 // bit 0 (reserved) and bit 1 (root's data block) used

	inodeTable := dev.block(testRootBlk)
	binary.LittleEndian.PutUint16(inodeTable[0:2], 0x4000|0o755) // mode: dir
	binary.LittleEndian.PutUint16(inodeTable[2:4], 0)            // uid
	binary.LittleEndian.PutUint32(inodeTable[4:8], 64)           // size: two dir entries
	binary.LittleEndian.PutUint32(inodeTable[8:12], 1700000000)  // mtime
	inodeTable[12] = 0                                           // gid
	inodeTable[13] = 2                                           // nlinks
	binary.LittleEndian.PutUint16(inodeTable[14:16], testRootDat)

	rootDir := dev.block(testRootDat)
	writeDirEntry(rootDir, 0, testRootIno, ".")
	writeDirEntry(rootDir, 1, testRootIno, "..")

	return dev
}

func mountTestFS(t *testing.T) (*vfs.SuperBlock, *vfs.InodeCache, *memDevice) {
	t.Helper()
	dev := buildImage(t)
	bc := vfs.NewBufferCache(64)
	fs := minix.NewFilesystem(bc)
	sb, err := fs.Mount(dev, "")
	require.NoError(t, err)
	return sb, sb.Inodes, dev
}

func TestMountReadsRootInode(t *testing.T) {
	sb, caches, _ := mountTestFS(t)
	require.Equal(t, vfs.TypeDir, sb.Root.Type)
	require.Equal(t, uint64(64), sb.Root.Size)
	require.Equal(t, uint32(2), sb.Root.NLinks)
	caches.Iput(sb.Root)
}

func TestCreateLookupAndReadWrite(t *testing.T) {
	sb, caches, _ := mountTestFS(t)
	root := sb.Root

	file, err := root.Ops.Create(root.Get(), "hello.txt", 0o644)
	require.NoError(t, err)
	require.Equal(t, vfs.TypeRegular, file.Type)

	ops, err := file.Ops.Open(file, vfs.ORdWr)
	require.NoError(t, err)
	of := vfs.NewFile(file, vfs.ORdWr, ops, caches)

	n, err := ops.Write(of, []byte("hello, minix"), 0)
	require.NoError(t, err)
	require.Equal(t, 12, n)

	buf := make([]byte, 32)
	n, err = ops.Read(of, buf, 0)
	require.NoError(t, err)
	require.Equal(t, "hello, minix", string(buf[:n]))

	require.NoError(t, of.Close())

	found, err := root.Ops.Lookup(root.Get(), "hello.txt")
	require.NoError(t, err)
	require.Equal(t, file.Ino, found.Ino)
	caches.Iput(found)

	caches.Iput(root)
}

func TestMkdirRmdirAndGetdents(t *testing.T) {
	sb, caches, _ := mountTestFS(t)
	root := sb.Root

	err := root.Ops.Mkdir(root.Get(), "sub", 0o755)
	require.NoError(t, err)

	sub, err := root.Ops.Lookup(root.Get(), "sub")
	require.NoError(t, err)
	require.Equal(t, vfs.TypeDir, sub.Type)

	dops, err := sub.Ops.Open(sub, 0)
	require.NoError(t, err)
	of := vfs.NewFile(sub, 0, dops, caches)
	entries, err := dops.Getdents(of, 16)
	require.NoError(t, err)
	names := map[string]bool{}
	for _, e := range entries {
		names[e.Name] = true
	}
	require.True(t, names["."])
	require.True(t, names[".."])
	require.NoError(t, of.Close())

	err = root.Ops.Rmdir(root.Get(), "sub")
	require.NoError(t, err)

	_, err = root.Ops.Lookup(root.Get(), "sub")
	require.Error(t, err)

	caches.Iput(root)
}

func TestUnlinkRemovesDirectoryEntry(t *testing.T) {
	sb, caches, _ := mountTestFS(t)
	root := sb.Root

	file, err := root.Ops.Create(root.Get(), "doomed", 0o644)
	require.NoError(t, err)
	caches.Iput(file)

	err = root.Ops.Unlink(root.Get(), "doomed")
	require.NoError(t, err)

	_, err = root.Ops.Lookup(root.Get(), "doomed")
	require.Error(t, err)

	caches.Iput(root)
}

func TestSymlinkReadlink(t *testing.T) {
	sb, caches, _ := mountTestFS(t)
	root := sb.Root

	err := root.Ops.Symlink(root.Get(), "link", "/hello.txt")
	require.NoError(t, err)

	link, err := root.Ops.Lookup(root.Get(), "link")
	require.NoError(t, err)
	require.Equal(t, vfs.TypeSymlink, link.Type)

	target, err := link.Ops.Readlink(link)
	require.NoError(t, err)
	require.Equal(t, "/hello.txt", target)

	caches.Iput(link)
	caches.Iput(root)
}
