package minix

import (
	"sync"

	"github.com/eric29200/kos/pkg/errno"
	"github.com/eric29200/kos/pkg/vfs"
	"github.com/google/btree"
)

// freeExtent is a run of consecutive free bit numbers (inode numbers or
// relative zone numbers) within a bitmap. The btree indexes extents by
// Start so AllocBit can find the lowest free bit in O(log n) instead of
// original_source's linear word-scan (minix_get_free_bitmap), while still
// producing the same "lowest free bit" allocation choice.
type freeExtent struct {
	Start, Len uint32
}

func (e freeExtent) Less(than btree.Item) bool {
	return e.Start < than.(freeExtent).Start
}

// bitmap wraps a run of pinned buffer heads holding a bit-per-item map
// (inode map or zone map), plus a free-extent index built from it at
// mount time.
type bitmap struct {
	mu    sync.Mutex
	heads []*vfs.BufferHead
	nbits uint32
	free  *btree.BTree
}

func newBitmap(heads []*vfs.BufferHead, nbits uint32) *bitmap {
	b := &bitmap{heads: heads, nbits: nbits, free: btree.New(32)}
	b.rebuildIndex()
	return b
}

func (b *bitmap) bitSet(i uint32) bool {
	byteIdx := i / 8
	blk := byteIdx / BlockSize
	off := byteIdx % BlockSize
	if int(blk) >= len(b.heads) {
		return true // out of range reads as allocated, never handed out
	}
	return b.heads[blk].Data[off]&(1<<(i%8)) != 0
}

func (b *bitmap) setBit(i uint32, v bool) {
	byteIdx := i / 8
	blk := byteIdx / BlockSize
	off := byteIdx % BlockSize
	if int(blk) >= len(b.heads) {
		return
	}
	if v {
		b.heads[blk].Data[off] |= 1 << (i % 8)
	} else {
		b.heads[blk].Data[off] &^= 1 << (i % 8)
	}
	b.heads[blk].MarkDirty()
}

func (b *bitmap) rebuildIndex() {
	b.free.Clear(false)
	var runStart uint32
	inRun := false
	for i := uint32(0); i < b.nbits; i++ {
		if !b.bitSet(i) {
			if !inRun {
				runStart = i
				inRun = true
			}
		} else if inRun {
			b.free.ReplaceOrInsert(freeExtent{Start: runStart, Len: i - runStart})
			inRun = false
		}
	}
	if inRun {
		b.free.ReplaceOrInsert(freeExtent{Start: runStart, Len: b.nbits - runStart})
	}
}

// Alloc returns the lowest-numbered free bit, marking it allocated, or
// ok=false if the bitmap is full — matching minix_get_free_bitmap's
// "first free bit" contract.
func (b *bitmap) Alloc() (bit uint32, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var item btree.Item
	b.free.Ascend(func(i btree.Item) bool {
		item = i
		return false
	})
	if item == nil {
		return 0, false
	}
	e := item.(freeExtent)
	b.free.Delete(e)
	if e.Len > 1 {
		b.free.ReplaceOrInsert(freeExtent{Start: e.Start + 1, Len: e.Len - 1})
	}
	b.setBit(e.Start, true)
	return e.Start, true
}

// Free marks bit free again, coalescing it into an adjoining extent when
// one is already indexed immediately before or after it. It reports false
// without touching the bitmap or the free-extent index if bit was already
// free, refusing a double-free rather than letting it corrupt the index
// into handing the same bit out twice.
func (b *bitmap) Free(bit uint32) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.bitSet(bit) {
		return false
	}
	b.setBit(bit, false)

	start, length := bit, uint32(1)

	// merge with a preceding extent, if contiguous.
	var before btree.Item
	b.free.DescendLessOrEqual(freeExtent{Start: bit}, func(i btree.Item) bool {
		e := i.(freeExtent)
		if e.Start+e.Len == bit {
			before = e
		}
		return false
	})
	if before != nil {
		e := before.(freeExtent)
		b.free.Delete(e)
		start = e.Start
		length += e.Len
	}

	// merge with a following extent, if contiguous.
	if next, ok := b.free.Get(freeExtent{Start: start + length}).(freeExtent); ok {
		b.free.Delete(next)
		length += next.Len
	}

	b.free.ReplaceOrInsert(freeExtent{Start: start, Len: length})
	return true
}

// count returns how many of the bitmap's nbits are currently set.
func (b *bitmap) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for i := uint32(0); i < b.nbits; i++ {
		if b.bitSet(i) {
			n++
		}
	}
	return n
}

// BitmapStats reports how many inodes and zones are currently allocated
// against the total each bitmap covers, for fsck-style reporting.
func (sbi *SuperInfo) BitmapStats() (usedInodes, totalInodes, usedZones, totalZones int) {
	return sbi.imap.count(), int(sbi.imap.nbits), sbi.zmap.count(), int(sbi.zmap.nbits)
}

// AllocInode finds and marks the first free inode number (1-based, per
// minix_new_inode), returning errno.NoSpace when the map is exhausted.
func (sbi *SuperInfo) AllocInode() (uint32, error) {
	bit, ok := sbi.imap.Alloc()
	if !ok {
		return 0, errno.NoSpace
	}
	return bit, nil
}

// FreeInode clears ino's bit in the inode bitmap, matching
// minix_free_inode (the caller is responsible for having already zeroed
// the inode's on-disk record). A double-free is refused rather than
// risking a corrupted free-extent index.
func (sbi *SuperInfo) FreeInode(ino uint32) {
	if !sbi.imap.Free(ino) {
		log.Warningf("double-free of inode %d refused", ino)
	}
}

// AllocBlock finds the first free zone, zeroes it on disk, and returns its
// absolute block number, matching minix_new_block's "bit + firstdatazone -
// 1" arithmetic.
func (sbi *SuperInfo) AllocBlock() (uint32, error) {
	bit, ok := sbi.zmap.Alloc()
	if !ok {
		return 0, errno.NoSpace
	}
	blockNr := bit + uint32(sbi.raw.FirstDataZone) - 1
	if blockNr >= uint32(sbi.raw.Nzones) {
		sbi.zmap.Free(bit)
		return 0, errno.NoSpace
	}
	bh, err := sbi.bc.GetBlock(sbi.dev, blockNr, BlockSize)
	if err != nil {
		sbi.zmap.Free(bit)
		return 0, err
	}
	for i := range bh.Data {
		bh.Data[i] = 0
	}
	bh.MarkDirty()
	sbi.bc.ReleaseBlock(bh)
	return blockNr, nil
}

// FreeBlock zeroes and releases block back to the zone bitmap, matching
// minix_free_block. A double-free is refused (errno.InvalidArg) rather than
// zeroing a block still referenced elsewhere.
func (sbi *SuperInfo) FreeBlock(block uint32) error {
	if block < uint32(sbi.raw.FirstDataZone) || block >= uint32(sbi.raw.Nzones) {
		return errno.InvalidArg
	}
	if !sbi.zmap.Free(block - uint32(sbi.raw.FirstDataZone) + 1) {
		return errno.InvalidArg
	}
	bh, err := sbi.bc.GetBlock(sbi.dev, block, BlockSize)
	if err == nil {
		for i := range bh.Data {
			bh.Data[i] = 0
		}
		bh.MarkDirty()
		sbi.bc.ReleaseBlock(bh)
	}
	return nil
}
