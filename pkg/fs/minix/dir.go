package minix

import (
	"github.com/eric29200/kos/pkg/errno"
	"github.com/eric29200/kos/pkg/vfs"
)

// blocksFor returns how many BlockSize blocks inode's current size spans.
func blocksFor(inode *vfs.Inode) uint32 {
	return uint32((inode.Size + BlockSize - 1) / BlockSize)
}

// lookupEntry scans dir's directory blocks for name, returning its inode
// number, or 0 if not found — matching minix_lookup's linear directory
// scan.
func (sbi *SuperInfo) lookupEntry(dir *vfs.Inode, name string) (uint64, error) {
	nblocks := blocksFor(dir)
	for b := uint32(0); b < nblocks; b++ {
		block, err := sbi.Bmap(dir, b, false)
		if err != nil {
			return 0, err
		}
		if block == 0 {
			continue
		}
		bh, err := sbi.bc.GetBlock(sbi.dev, block, BlockSize)
		if err != nil {
			return 0, err
		}
		for i := 0; i < DirEntriesPerBlock; i++ {
			off := i * DirEntrySize
			e := decodeDirEntry(bh.Data[off : off+DirEntrySize])
			if e.Ino != 0 && e.Name == name {
				sbi.bc.ReleaseBlock(bh)
				return uint64(e.Ino), nil
			}
		}
		sbi.bc.ReleaseBlock(bh)
	}
	return 0, nil
}

// addEntry writes a new (name, ino) record into the first free slot of
// dir's directory blocks, extending the directory by one block if every
// existing block is full — matching minix_add_entry.
func (sbi *SuperInfo) addEntry(dir *vfs.Inode, name string, ino uint64) error {
	if len(name) > FilenameLen {
		return errno.InvalidArg
	}

	nblocks := blocksFor(dir)
	for b := uint32(0); b < nblocks; b++ {
		block, err := sbi.Bmap(dir, b, true)
		if err != nil {
			return err
		}
		bh, err := sbi.bc.GetBlock(sbi.dev, block, BlockSize)
		if err != nil {
			return err
		}
		for i := 0; i < DirEntriesPerBlock; i++ {
			off := i * DirEntrySize
			e := decodeDirEntry(bh.Data[off : off+DirEntrySize])
			if e.Ino == 0 {
				encodeDirEntry(rawDirEntry{Ino: uint16(ino), Name: name}, bh.Data[off:off+DirEntrySize])
				bh.MarkDirty()
				sbi.bc.ReleaseBlock(bh)
				return nil
			}
			if e.Name == name {
				sbi.bc.ReleaseBlock(bh)
				return errno.Exists
			}
		}
		sbi.bc.ReleaseBlock(bh)
	}

	// every existing block is full (or the directory is empty): grow it.
	block, err := sbi.Bmap(dir, nblocks, true)
	if err != nil {
		return err
	}
	bh, err := sbi.bc.GetBlock(sbi.dev, block, BlockSize)
	if err != nil {
		return err
	}
	encodeDirEntry(rawDirEntry{Ino: uint16(ino), Name: name}, bh.Data[0:DirEntrySize])
	bh.MarkDirty()
	sbi.bc.ReleaseBlock(bh)

	dir.Size = uint64(nblocks+1) * BlockSize
	dir.MarkDirty()
	return nil
}

// removeEntry clears the slot holding name, matching minix_remove_entry /
// the unlink/rmdir directory-record removal step.
func (sbi *SuperInfo) removeEntry(dir *vfs.Inode, name string) error {
	nblocks := blocksFor(dir)
	for b := uint32(0); b < nblocks; b++ {
		block, err := sbi.Bmap(dir, b, false)
		if err != nil {
			return err
		}
		if block == 0 {
			continue
		}
		bh, err := sbi.bc.GetBlock(sbi.dev, block, BlockSize)
		if err != nil {
			return err
		}
		for i := 0; i < DirEntriesPerBlock; i++ {
			off := i * DirEntrySize
			e := decodeDirEntry(bh.Data[off : off+DirEntrySize])
			if e.Ino != 0 && e.Name == name {
				encodeDirEntry(rawDirEntry{}, bh.Data[off:off+DirEntrySize])
				bh.MarkDirty()
				sbi.bc.ReleaseBlock(bh)
				return nil
			}
		}
		sbi.bc.ReleaseBlock(bh)
	}
	return errno.NoSuchFile
}

// isEmptyDir reports whether dir contains only "." and ".." (or nothing),
// matching the rmdir precondition check.
func (sbi *SuperInfo) isEmptyDir(dir *vfs.Inode) (bool, error) {
	nblocks := blocksFor(dir)
	for b := uint32(0); b < nblocks; b++ {
		block, err := sbi.Bmap(dir, b, false)
		if err != nil {
			return false, err
		}
		if block == 0 {
			continue
		}
		bh, err := sbi.bc.GetBlock(sbi.dev, block, BlockSize)
		if err != nil {
			return false, err
		}
		for i := 0; i < DirEntriesPerBlock; i++ {
			off := i * DirEntrySize
			e := decodeDirEntry(bh.Data[off : off+DirEntrySize])
			if e.Ino != 0 && e.Name != "." && e.Name != ".." {
				sbi.bc.ReleaseBlock(bh)
				return false, nil
			}
		}
		sbi.bc.ReleaseBlock(bh)
	}
	return true, nil
}

// Getdents lists dir's entries, matching minix_readdir / getdents(2).
func (sbi *SuperInfo) Getdents(dir *vfs.Inode, startOff int64, max int) ([]vfs.Dirent, int64, error) {
	var out []vfs.Dirent
	nblocks := blocksFor(dir)
	total := int64(nblocks) * DirEntriesPerBlock

	i := startOff
	for ; i < total && len(out) < max; i++ {
		b := uint32(i / DirEntriesPerBlock)
		slot := int(i % DirEntriesPerBlock)
		block, err := sbi.Bmap(dir, b, false)
		if err != nil {
			return out, i, err
		}
		if block == 0 {
			continue
		}
		bh, err := sbi.bc.GetBlock(sbi.dev, block, BlockSize)
		if err != nil {
			return out, i, err
		}
		off := slot * DirEntrySize
		e := decodeDirEntry(bh.Data[off : off+DirEntrySize])
		sbi.bc.ReleaseBlock(bh)
		if e.Ino == 0 {
			continue
		}
		out = append(out, vfs.Dirent{Ino: uint64(e.Ino), Off: i + 1, Name: e.Name})
	}
	return out, i, nil
}
