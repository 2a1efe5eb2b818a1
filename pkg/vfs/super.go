package vfs

// SuperBlock is the in-memory representation of a mounted file system,
// matching struct super_block_t. Block-allocating drivers (minix) keep
// their bitmaps in their own private struct, referenced via Private.
type SuperBlock struct {
	Dev       BlockDevice
	BlockSize int
	Magic     uint32

	Root    *Inode // root inode of this file system
	IMount  *Inode // inode in the parent fs this super block is mounted on (nil for the root mount)
	Ops     SuperOperations
	Inodes  *InodeCache
	Private any

	FSType string
}

// Filesystem is what a concrete driver registers with the mount table so
// `mount(2)` can instantiate it by name.
type Filesystem interface {
	// Name is the string used in mount(2)'s fstype argument ("minix",
	// "tmpfs", "devfs", "proc").
	Name() string
	// Mount builds a SuperBlock over dev (nil for in-memory file systems).
	Mount(dev BlockDevice, opts string) (*SuperBlock, error)
}
