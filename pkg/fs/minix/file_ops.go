package minix

import (
	"github.com/eric29200/kos/pkg/errno"
	"github.com/eric29200/kos/pkg/vfs"
)

// regularFileOps implements vfs.FileOperations for a regular Minix file,
// reading and writing through the shared buffer cache one block at a time
// via Bmap — matching kernel/fs/minix/file.c's minix_file_read/write.
type regularFileOps struct {
	vfs.DefaultFileOperations
	sbi *SuperInfo
}

func (o *regularFileOps) Read(f *vfs.File, buf []byte, offset int64) (int, error) {
	inode := f.Inode
	if offset >= int64(inode.Size) {
		return 0, nil
	}
	remaining := int64(inode.Size) - offset
	if int64(len(buf)) > remaining {
		buf = buf[:remaining]
	}

	var total int
	for total < len(buf) {
		pos := offset + int64(total)
		logical := uint32(pos / BlockSize)
		within := int(pos % BlockSize)

		block, err := o.sbi.Bmap(inode, logical, false)
		if err != nil {
			return total, err
		}
		n := BlockSize - within
		if n > len(buf)-total {
			n = len(buf) - total
		}
		if block == 0 {
			// hole: reads as zeroes
			for i := 0; i < n; i++ {
				buf[total+i] = 0
			}
			total += n
			continue
		}
		bh, err := o.sbi.bc.GetBlock(o.sbi.dev, block, BlockSize)
		if err != nil {
			return total, err
		}
		copy(buf[total:total+n], bh.Data[within:within+n])
		o.sbi.bc.ReleaseBlock(bh)
		total += n
	}
	return total, nil
}

func (o *regularFileOps) Write(f *vfs.File, buf []byte, offset int64) (int, error) {
	inode := f.Inode
	var total int
	for total < len(buf) {
		pos := offset + int64(total)
		logical := uint32(pos / BlockSize)
		within := int(pos % BlockSize)

		block, err := o.sbi.Bmap(inode, logical, true)
		if err != nil {
			return total, err
		}
		n := BlockSize - within
		if n > len(buf)-total {
			n = len(buf) - total
		}
		bh, err := o.sbi.bc.GetBlock(o.sbi.dev, block, BlockSize)
		if err != nil {
			return total, err
		}
		copy(bh.Data[within:within+n], buf[total:total+n])
		bh.MarkDirty()
		o.sbi.bc.ReleaseBlock(bh)
		total += n
	}

	if end := offset + int64(total); uint64(end) > inode.Size {
		inode.Size = uint64(end)
	}
	inode.MarkDirty()
	return total, nil
}

func (o *regularFileOps) Ioctl(f *vfs.File, request, arg uintptr) error {
	return errno.NotSupported
}

// dirFileOps implements vfs.FileOperations for an open directory — only
// Getdents makes sense, matching minix_dir_operations (no read/write).
type dirFileOps struct {
	vfs.DefaultFileOperations
	sbi *SuperInfo
}

func (o *dirFileOps) Getdents(f *vfs.File, max int) ([]vfs.Dirent, error) {
	entries, next, err := o.sbi.Getdents(f.Inode, f.Pos(), max)
	if err != nil {
		return entries, err
	}
	f.Advance(next - f.Pos())
	return entries, nil
}
