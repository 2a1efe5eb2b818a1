package minix

import (
	"encoding/binary"

	"github.com/eric29200/kos/pkg/errno"
	"github.com/eric29200/kos/pkg/vfs"
)

// zonesOf returns inode's zone table, creating an empty one if the inode
// hasn't been given one yet (a freshly-allocated inode from minix_new_inode
// equivalent).
func zonesOf(inode *vfs.Inode) *zoneTable {
	zt, _ := inode.Private.(*zoneTable)
	if zt == nil {
		zt = &zoneTable{}
		inode.Private = zt
	}
	return zt
}

// Bmap translates logicalBlock (a 0-based block index into the file) to an
// absolute device block number, walking the 7 direct + 512-entry single
// indirect + 512x512 double indirect zone pointers exactly as
// original_source's inode.c bmap does. When create is true, a zero zone
// pointer (a hole) is filled in by allocating a fresh zone (and, for the
// indirect cases, a fresh indirect block too, if needed).
func (sbi *SuperInfo) Bmap(inode *vfs.Inode, logicalBlock uint32, create bool) (uint32, error) {
	zt := zonesOf(inode)

	if logicalBlock < NumDirectZones {
		return sbi.mapDirect(zt, logicalBlock, create)
	}
	logicalBlock -= NumDirectZones

	if logicalBlock < zonesPerIndBlk {
		return sbi.mapIndirect(zt, SingleIndirect, logicalBlock, create)
	}
	logicalBlock -= zonesPerIndBlk

	if logicalBlock < zonesPerIndBlk*zonesPerIndBlk {
		return sbi.mapDoubleIndirect(zt, logicalBlock, create)
	}

	return 0, errno.Range
}

func (sbi *SuperInfo) mapDirect(zt *zoneTable, idx uint32, create bool) (uint32, error) {
	zone := zt.zone[idx]
	if zone == 0 {
		if !create {
			return 0, nil
		}
		blk, err := sbi.AllocBlock()
		if err != nil {
			return 0, err
		}
		zt.zone[idx] = uint16(blk)
		return blk, nil
	}
	return uint32(zone), nil
}

// mapIndirect walks a single level of indirection rooted at zt.zone[slot].
func (sbi *SuperInfo) mapIndirect(zt *zoneTable, slot int, idx uint32, create bool) (uint32, error) {
	indBlock := zt.zone[slot]
	if indBlock == 0 {
		if !create {
			return 0, nil
		}
		blk, err := sbi.AllocBlock()
		if err != nil {
			return 0, err
		}
		zt.zone[slot] = uint16(blk)
		indBlock = uint16(blk)
	}
	return sbi.mapInIndirectBlock(uint32(indBlock), idx, create)
}

// mapDoubleIndirect walks the two levels of indirection under
// zt.zone[DoubleIndirect]: idx selects a single-indirect block, and the
// remainder selects an entry within it.
func (sbi *SuperInfo) mapDoubleIndirect(zt *zoneTable, idx uint32, create bool) (uint32, error) {
	outer := idx / zonesPerIndBlk
	inner := idx % zonesPerIndBlk

	dindBlock := zt.zone[DoubleIndirect]
	if dindBlock == 0 {
		if !create {
			return 0, nil
		}
		blk, err := sbi.AllocBlock()
		if err != nil {
			return 0, err
		}
		zt.zone[DoubleIndirect] = uint16(blk)
		dindBlock = uint16(blk)
	}

	singleBlock, err := sbi.readIndirectEntry(uint32(dindBlock), outer)
	if err != nil {
		return 0, err
	}
	if singleBlock == 0 {
		if !create {
			return 0, nil
		}
		blk, err := sbi.AllocBlock()
		if err != nil {
			return 0, err
		}
		if err := sbi.writeIndirectEntry(uint32(dindBlock), outer, uint32(blk)); err != nil {
			return 0, err
		}
		singleBlock = uint32(blk)
	}

	return sbi.mapInIndirectBlock(singleBlock, inner, create)
}

func (sbi *SuperInfo) mapInIndirectBlock(indBlock uint32, idx uint32, create bool) (uint32, error) {
	zone, err := sbi.readIndirectEntry(indBlock, idx)
	if err != nil {
		return 0, err
	}
	if zone != 0 {
		return zone, nil
	}
	if !create {
		return 0, nil
	}
	blk, err := sbi.AllocBlock()
	if err != nil {
		return 0, err
	}
	if err := sbi.writeIndirectEntry(indBlock, idx, blk); err != nil {
		return 0, err
	}
	return blk, nil
}

func (sbi *SuperInfo) readIndirectEntry(indBlock, idx uint32) (uint32, error) {
	bh, err := sbi.bc.GetBlock(sbi.dev, indBlock, BlockSize)
	if err != nil {
		return 0, err
	}
	defer sbi.bc.ReleaseBlock(bh)
	off := idx * 2
	return uint32(binary.LittleEndian.Uint16(bh.Data[off : off+2])), nil
}

func (sbi *SuperInfo) writeIndirectEntry(indBlock, idx, value uint32) error {
	bh, err := sbi.bc.GetBlock(sbi.dev, indBlock, BlockSize)
	if err != nil {
		return err
	}
	off := idx * 2
	binary.LittleEndian.PutUint16(bh.Data[off:off+2], uint16(value))
	bh.MarkDirty()
	sbi.bc.ReleaseBlock(bh)
	return nil
}

// truncateZones frees inode's zones beyond newSize (in bytes), matching
// kernel/fs/inode.c's truncate path. Direct zones are freed one by one;
// an indirect tree is freed only as a whole: the single-indirect tree when
// newSize fits in the direct zones, the double-indirect tree when it fits
// in the direct and single-indirect zones. Entries of an indirect block
// that is partly kept stay allocated. inode.Size is lowered to newSize,
// never raised. newSize=0 is the full free used by PutInode when an
// inode's link count reaches zero.
func truncateZones(sbi *SuperInfo, inode *vfs.Inode, newSize uint64) error {
	zt := zonesOf(inode)
	keepBlocks := (newSize + BlockSize - 1) / BlockSize

	// direct zones
	for i := uint32(0); i < NumDirectZones; i++ {
		if uint64(i) < keepBlocks {
			continue
		}
		if zt.zone[i] != 0 {
			if err := sbi.FreeBlock(uint32(zt.zone[i])); err != nil {
				return err
			}
			zt.zone[i] = 0
		}
	}

	// single indirect
	if uint64(NumDirectZones) >= keepBlocks && zt.zone[SingleIndirect] != 0 {
		if err := freeIndirectBlock(sbi, uint32(zt.zone[SingleIndirect])); err != nil {
			return err
		}
		if err := sbi.FreeBlock(uint32(zt.zone[SingleIndirect])); err != nil {
			return err
		}
		zt.zone[SingleIndirect] = 0
	}

	// double indirect
	if uint64(NumDirectZones+zonesPerIndBlk) >= keepBlocks && zt.zone[DoubleIndirect] != 0 {
		dind := uint32(zt.zone[DoubleIndirect])
		for i := uint32(0); i < zonesPerIndBlk; i++ {
			single, err := sbi.readIndirectEntry(dind, i)
			if err != nil {
				return err
			}
			if single == 0 {
				continue
			}
			if err := freeIndirectBlock(sbi, single); err != nil {
				return err
			}
			if err := sbi.FreeBlock(single); err != nil {
				return err
			}
		}
		if err := sbi.FreeBlock(dind); err != nil {
			return err
		}
		zt.zone[DoubleIndirect] = 0
	}

	if newSize < inode.Size {
		inode.Size = newSize
	}
	inode.MarkDirty()
	return nil
}

func freeIndirectBlock(sbi *SuperInfo, indBlock uint32) error {
	for i := uint32(0); i < zonesPerIndBlk; i++ {
		zone, err := sbi.readIndirectEntry(indBlock, i)
		if err != nil {
			return err
		}
		if zone != 0 {
			if err := sbi.FreeBlock(zone); err != nil {
				return err
			}
		}
	}
	return nil
}
