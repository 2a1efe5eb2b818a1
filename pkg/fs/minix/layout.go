// Package minix implements the Minix-style on-disk file system: the
// super block, inode bitmap/zone-bitmap allocator, zone-pointer block
// mapping (direct/single-indirect/double-indirect), and directory
// entries, grounded on original_source/kernel/fs/minix and
// original_source/include/fs/minix_fs.h.
package minix

import "encoding/binary"

// BlockSize is the fixed Minix block size, matching BLOCK_SIZE in the
// original's build (1 KiB).
const BlockSize = 1024

// Magic is the super block signature (MINIX_SUPER_MAGIC).
const Magic = 0x138F

// FilenameLen is MINIX_FILENAME_LEN; directory entries are a fixed 32
// bytes: a 2-byte inode number plus this many name bytes.
const FilenameLen = 30

// DirEntrySize is sizeof(struct minix_dir_entry_t).
const DirEntrySize = 2 + FilenameLen

// DirEntriesPerBlock mirrors MINIX_DIR_ENTRIES_PER_BLOCK.
const DirEntriesPerBlock = BlockSize / DirEntrySize

// rawInodeSize is sizeof(struct minix_inode_t): 2+2+4+4+1+1+9*2 = 32.
const rawInodeSize = 32

// InodesPerBlock mirrors MINIX_INODES_PER_BLOCK.
const InodesPerBlock = BlockSize / rawInodeSize

// NumDirectZones, numbers of direct/indirect zone slots in i_zone[9]:
// 7 direct, 1 single-indirect, 1 double-indirect.
const (
	NumDirectZones  = 7
	SingleIndirect  = 7
	DoubleIndirect  = 8
	NumZones        = 9
	zonesPerIndBlk  = BlockSize / 2 // zone pointers are uint16
)

// rawSuperBlock is the on-disk super block layout from minix_super_block_t
// (the in-memory-only s_imap/s_zmap/s_dev/s_imount fields are not part of
// the disk image and are held instead by *SuperInfo).
type rawSuperBlock struct {
	Ninodes       uint16
	Nzones        uint16
	ImapBlocks    uint16
	ZmapBlocks    uint16
	FirstDataZone uint16
	LogZoneSize   uint16
	MaxSize       uint32
	Magic         uint16
}

const rawSuperBlockSize = 2*6 + 4 + 2

func decodeSuperBlock(buf []byte) rawSuperBlock {
	var sb rawSuperBlock
	sb.Ninodes = binary.LittleEndian.Uint16(buf[0:2])
	sb.Nzones = binary.LittleEndian.Uint16(buf[2:4])
	sb.ImapBlocks = binary.LittleEndian.Uint16(buf[4:6])
	sb.ZmapBlocks = binary.LittleEndian.Uint16(buf[6:8])
	sb.FirstDataZone = binary.LittleEndian.Uint16(buf[8:10])
	sb.LogZoneSize = binary.LittleEndian.Uint16(buf[10:12])
	sb.MaxSize = binary.LittleEndian.Uint32(buf[12:16])
	sb.Magic = binary.LittleEndian.Uint16(buf[16:18])
	return sb
}

func encodeSuperBlock(sb rawSuperBlock, buf []byte) {
	binary.LittleEndian.PutUint16(buf[0:2], sb.Ninodes)
	binary.LittleEndian.PutUint16(buf[2:4], sb.Nzones)
	binary.LittleEndian.PutUint16(buf[4:6], sb.ImapBlocks)
	binary.LittleEndian.PutUint16(buf[6:8], sb.ZmapBlocks)
	binary.LittleEndian.PutUint16(buf[8:10], sb.FirstDataZone)
	binary.LittleEndian.PutUint16(buf[10:12], sb.LogZoneSize)
	binary.LittleEndian.PutUint32(buf[12:16], sb.MaxSize)
	binary.LittleEndian.PutUint16(buf[16:18], sb.Magic)
}

// rawInode is the on-disk inode record, matching struct minix_inode_t.
type rawInode struct {
	Mode   uint16
	UID    uint16
	Size   uint32
	Time   uint32
	GID    uint8
	NLinks uint8
	Zone   [NumZones]uint16
}

func decodeInode(buf []byte) rawInode {
	var ri rawInode
	ri.Mode = binary.LittleEndian.Uint16(buf[0:2])
	ri.UID = binary.LittleEndian.Uint16(buf[2:4])
	ri.Size = binary.LittleEndian.Uint32(buf[4:8])
	ri.Time = binary.LittleEndian.Uint32(buf[8:12])
	ri.GID = buf[12]
	ri.NLinks = buf[13]
	for i := 0; i < NumZones; i++ {
		ri.Zone[i] = binary.LittleEndian.Uint16(buf[14+i*2 : 16+i*2])
	}
	return ri
}

func encodeInode(ri rawInode, buf []byte) {
	binary.LittleEndian.PutUint16(buf[0:2], ri.Mode)
	binary.LittleEndian.PutUint16(buf[2:4], ri.UID)
	binary.LittleEndian.PutUint32(buf[4:8], ri.Size)
	binary.LittleEndian.PutUint32(buf[8:12], ri.Time)
	buf[12] = ri.GID
	buf[13] = ri.NLinks
	for i := 0; i < NumZones; i++ {
		binary.LittleEndian.PutUint16(buf[14+i*2:16+i*2], ri.Zone[i])
	}
}

// rawDirEntry is one directory record: a 2-byte inode number and a
// fixed-width, NUL-padded name.
type rawDirEntry struct {
	Ino  uint16
	Name string
}

func decodeDirEntry(buf []byte) rawDirEntry {
	ino := binary.LittleEndian.Uint16(buf[0:2])
	nameBytes := buf[2:DirEntrySize]
	n := 0
	for n < len(nameBytes) && nameBytes[n] != 0 {
		n++
	}
	return rawDirEntry{Ino: ino, Name: string(nameBytes[:n])}
}

func encodeDirEntry(e rawDirEntry, buf []byte) {
	binary.LittleEndian.PutUint16(buf[0:2], e.Ino)
	name := buf[2:DirEntrySize]
	for i := range name {
		name[i] = 0
	}
	copy(name, e.Name)
}
