package minix

import (
	"time"

	"github.com/eric29200/kos/pkg/vfs"
)

// MkfsOptions controls the geometry a fresh image is formatted with.
type MkfsOptions struct {
	// Blocks is the device's total size in 1 KiB blocks.
	Blocks uint32
	// Inodes is the number of inode slots to reserve.
	Inodes uint32
}

// DefaultMkfsOptions sizes a small image: one inode per 4 blocks, matching
// the rule of thumb the original's mkfs.minix applies when -i is omitted.
func DefaultMkfsOptions(blocks uint32) MkfsOptions {
	inodes := blocks / 4
	if inodes < 16 {
		inodes = 16
	}
	return MkfsOptions{Blocks: blocks, Inodes: inodes}
}

func blocksForBits(bits uint32) uint16 {
	return uint16((bits + BlockSize*8 - 1) / (BlockSize * 8))
}

// Mkfs writes a fresh Minix super block, inode/zone bitmaps, and a root
// directory (containing "." and ".." entries only) directly to dev,
// bypassing the buffer cache so every block lands on disk before Mkfs
// returns. It is the mkfs.minix half of Filesystem's Mount, kept in the
// same package since both read and write the same unexported on-disk
// layout.
func Mkfs(dev vfs.BlockDevice, opts MkfsOptions) error {
	imapBlocks := blocksForBits(opts.Inodes + 1)
	zmapBlocks := blocksForBits(opts.Blocks)
	firstDataZone := uint16(2) + imapBlocks + zmapBlocks + uint16((opts.Inodes+InodesPerBlock-1)/InodesPerBlock)

	raw := rawSuperBlock{
		Ninodes:       uint16(opts.Inodes),
		Nzones:        uint16(opts.Blocks),
		ImapBlocks:    imapBlocks,
		ZmapBlocks:    zmapBlocks,
		FirstDataZone: firstDataZone,
		LogZoneSize:   0,
		MaxSize:       uint32(opts.Blocks) * BlockSize,
		Magic:         Magic,
	}

	sbBuf := make([]byte, BlockSize)
	encodeSuperBlock(raw, sbBuf[:rawSuperBlockSize])
	if err := dev.WriteBlock(1, BlockSize, sbBuf); err != nil {
		return err
	}

	// Inode bitmap: bit 0 unused (inode numbers are 1-based), bit 1 (root
	// inode) and everything above Ninodes marked used so Alloc never hands
	// out a slot past the table's actual size.
	imap := make([][]byte, imapBlocks)
	for i := range imap {
		imap[i] = make([]byte, BlockSize)
	}
	setBit(imap, 0)
	setBit(imap, 1)
	for b := opts.Inodes + 1; b < uint32(imapBlocks)*BlockSize*8; b++ {
		setBit(imap, b)
	}
	for i, buf := range imap {
		if err := dev.WriteBlock(uint32(2+i), BlockSize, buf); err != nil {
			return err
		}
	}

	// Zone bitmap is indexed relative to FirstDataZone (bit 1 == block
	// FirstDataZone, matching AllocBlock's "bit + firstdatazone - 1"
	// arithmetic); bit 0 is an unused sentinel like the inode bitmap's.
	// The root directory takes the first data zone, so only bit 1 is set.
	zmap := make([][]byte, zmapBlocks)
	for i := range zmap {
		zmap[i] = make([]byte, BlockSize)
	}
	rootZone := uint32(firstDataZone)
	setBit(zmap, 0)
	setBit(zmap, 1)
	firstZmapBlock := 2 + uint32(imapBlocks)
	for i, buf := range zmap {
		if err := dev.WriteBlock(firstZmapBlock+uint32(i), BlockSize, buf); err != nil {
			return err
		}
	}

	rootBlock := firstZmapBlock + uint32(zmapBlocks)

	// Root inode (number 1): a directory with one data zone holding "."
	// and "..", both pointing back at inode 1.
	ri := rawInode{
		Mode:   modeDir | 0o755,
		NLinks: 2,
		Size:   2 * DirEntrySize,
		Time:   uint32(time.Unix(0, 0).Unix()),
	}
	ri.Zone[0] = uint16(rootZone)

	inodeTableBuf := make([]byte, BlockSize)
	encodeInode(ri, inodeTableBuf[0:rawInodeSize])
	if err := dev.WriteBlock(rootBlock, BlockSize, inodeTableBuf); err != nil {
		return err
	}

	dirBuf := make([]byte, BlockSize)
	encodeDirEntry(rawDirEntry{Ino: 1, Name: "."}, dirBuf[0:DirEntrySize])
	encodeDirEntry(rawDirEntry{Ino: 1, Name: ".."}, dirBuf[DirEntrySize:2*DirEntrySize])
	return dev.WriteBlock(rootZone, BlockSize, dirBuf)
}

func setBit(blocks [][]byte, bit uint32) {
	blockIdx := bit / (BlockSize * 8)
	if int(blockIdx) >= len(blocks) {
		return
	}
	within := bit % (BlockSize * 8)
	blocks[blockIdx][within/8] |= 1 << (within % 8)
}
