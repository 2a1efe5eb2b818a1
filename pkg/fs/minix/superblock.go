package minix

import (
	"time"

	"github.com/eric29200/kos/pkg/errno"
	"github.com/eric29200/kos/pkg/klog"
	"github.com/eric29200/kos/pkg/vfs"
)

var log = klog.For("fs.minix")

// Mode bits, matching the S_IF* constants original_source's headers pull
// from the toolchain's sys/stat.h.
const (
	modeFmt   = 0xF000
	modeReg   = 0x8000
	modeDir   = 0x4000
	modeChr   = 0x2000
	modeBlk   = 0x6000
	modeFifo  = 0x1000
	modeLnk   = 0xA000
	modeSock  = 0xC000
)

func modeToType(mode uint16) vfs.FileType {
	switch mode & modeFmt {
	case modeDir:
		return vfs.TypeDir
	case modeChr:
		return vfs.TypeChar
	case modeBlk:
		return vfs.TypeBlock
	case modeFifo:
		return vfs.TypeFifo
	case modeLnk:
		return vfs.TypeSymlink
	case modeSock:
		return vfs.TypeSocket
	default:
		return vfs.TypeRegular
	}
}

func typeToModeBits(t vfs.FileType) uint16 {
	switch t {
	case vfs.TypeDir:
		return modeDir
	case vfs.TypeChar:
		return modeChr
	case vfs.TypeBlock:
		return modeBlk
	case vfs.TypeFifo:
		return modeFifo
	case vfs.TypeSymlink:
		return modeLnk
	case vfs.TypeSocket:
		return modeSock
	default:
		return modeReg
	}
}

// zoneTable is the per-inode private payload holding the 9 zone pointers,
// matching minix_inode_t.i_zone.
type zoneTable struct {
	zone [NumZones]uint16
}

// SuperInfo is the in-memory Minix super-block state (struct
// minix_sb_info_t in the original, which the VFS's generic *vfs.SuperBlock
// references via its Private field).
type SuperInfo struct {
	raw  rawSuperBlock
	dev  vfs.BlockDevice
	bc   *vfs.BufferCache
	imap *bitmap
	zmap *bitmap

	rootBlock uint32 // first inode-table block, cached for ReadInode/WriteInode
}

// Filesystem implements vfs.Filesystem for the Minix on-disk format.
// Buffers is the shared buffer cache every mounted Minix instance reads
// and writes through — passed in explicitly rather than reached via a
// package global, per the design notes.
type Filesystem struct {
	Buffers *vfs.BufferCache
}

// NewFilesystem builds a Minix vfs.Filesystem backed by bc.
func NewFilesystem(bc *vfs.BufferCache) *Filesystem {
	return &Filesystem{Buffers: bc}
}

func (f *Filesystem) Name() string { return "minix" }

// Mount reads the super block from block 1 (block 0 is the unused boot
// block), validates the magic number, loads the inode/zone bitmaps, and
// returns a *vfs.SuperBlock whose root is inode 1.
func (f *Filesystem) Mount(dev vfs.BlockDevice, opts string) (*vfs.SuperBlock, error) {
	sbh, err := f.Buffers.GetBlock(dev, 1, BlockSize)
	if err != nil {
		return nil, err
	}
	raw := decodeSuperBlock(sbh.Data[:rawSuperBlockSize])
	f.Buffers.ReleaseBlock(sbh)

	if raw.Magic != Magic {
		log.Errorf("bad minix magic %#x on mount", raw.Magic)
		return nil, errno.InvalidArg
	}

	sbi := &SuperInfo{raw: raw, dev: dev, bc: f.Buffers}

	imapHeads := make([]*vfs.BufferHead, 0, raw.ImapBlocks)
	for i := uint16(0); i < raw.ImapBlocks; i++ {
		bh, err := f.Buffers.GetBlock(dev, uint32(2+i), BlockSize)
		if err != nil {
			return nil, err
		}
		imapHeads = append(imapHeads, bh)
	}
	sbi.imap = newBitmap(imapHeads, uint32(raw.Ninodes)+1)

	zmapHeads := make([]*vfs.BufferHead, 0, raw.ZmapBlocks)
	firstZmapBlock := uint32(2) + uint32(raw.ImapBlocks)
	for i := uint16(0); i < raw.ZmapBlocks; i++ {
		bh, err := f.Buffers.GetBlock(dev, firstZmapBlock+uint32(i), BlockSize)
		if err != nil {
			return nil, err
		}
		zmapHeads = append(zmapHeads, bh)
	}
	sbi.zmap = newBitmap(zmapHeads, uint32(raw.Nzones))

	sbi.rootBlock = firstZmapBlock + uint32(raw.ZmapBlocks)

	sb := &vfs.SuperBlock{
		Dev:       dev,
		BlockSize: BlockSize,
		Magic:     uint32(raw.Magic),
		Ops:       &superOps{sbi: sbi},
		Inodes:    vfs.NewInodeCache(),
		Private:   sbi,
		FSType:    "minix",
	}

	root, err := sb.Inodes.Iget(sb, 1)
	if err != nil {
		return nil, err
	}
	sb.Root = root
	return sb, nil
}

// inodeBlockAndOffset locates ino's 32-byte record within the inode table.
func (sbi *SuperInfo) inodeBlockAndOffset(ino uint64) (block uint32, off int) {
	index := uint32(ino - 1)
	block = sbi.rootBlock + index/InodesPerBlock
	off = int(index%InodesPerBlock) * rawInodeSize
	return
}

type superOps struct {
	sbi *SuperInfo
}

// ReadInode loads inode.Ino's on-disk record and populates the in-memory
// *vfs.Inode, matching the original's lazily-filled struct inode_t.
func (o *superOps) ReadInode(inode *vfs.Inode) error {
	block, off := o.sbi.inodeBlockAndOffset(inode.Ino)
	bh, err := o.sbi.bc.GetBlock(o.sbi.dev, block, BlockSize)
	if err != nil {
		return err
	}
	defer o.sbi.bc.ReleaseBlock(bh)

	ri := decodeInode(bh.Data[off : off+rawInodeSize])
	inode.Type = modeToType(ri.Mode)
	inode.Mode = uint32(ri.Mode)
	inode.UID = uint32(ri.UID)
	inode.GID = uint32(ri.GID)
	inode.Size = uint64(ri.Size)
	inode.NLinks = uint32(ri.NLinks)
	t := time.Unix(int64(ri.Time), 0)
	inode.Times = vfs.Timestamps{Atime: t, Mtime: t, Ctime: t}
	inode.Private = &zoneTable{zone: ri.Zone}
	inode.Ops = &inodeOps{sbi: o.sbi}
	return nil
}

// WriteInode flushes the in-memory inode back to its disk record.
func (o *superOps) WriteInode(inode *vfs.Inode) error {
	block, off := o.sbi.inodeBlockAndOffset(inode.Ino)
	bh, err := o.sbi.bc.GetBlock(o.sbi.dev, block, BlockSize)
	if err != nil {
		return err
	}
	defer o.sbi.bc.ReleaseBlock(bh)

	zt, _ := inode.Private.(*zoneTable)
	if zt == nil {
		zt = &zoneTable{}
	}
	ri := rawInode{
		Mode:   uint16(inode.Mode),
		UID:    uint16(inode.UID),
		Size:   uint32(inode.Size),
		Time:   uint32(inode.Times.Mtime.Unix()),
		GID:    uint8(inode.GID),
		NLinks: uint8(inode.NLinks),
		Zone:   zt.zone,
	}
	encodeInode(ri, bh.Data[off:off+rawInodeSize])
	bh.MarkDirty()
	return nil
}

// PutInode frees the inode's zones and bitmap slot once its link count has
// dropped to zero, matching minix_free_inode plus the truncate-to-0 step
// the original performs from iput when nlinks==0.
func (o *superOps) PutInode(inode *vfs.Inode) error {
	if inode.NLinks > 0 {
		return nil
	}
	if err := truncateZones(o.sbi, inode, 0); err != nil {
		return err
	}
	o.sbi.FreeInode(uint32(inode.Ino))
	return nil
}
