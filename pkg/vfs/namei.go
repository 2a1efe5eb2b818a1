package vfs

import (
	"strings"

	"github.com/eric29200/kos/pkg/errno"
)

const maxSymlinkDepth = 8

// PathContext carries the ambient state namei needs that the design notes
// insist must be explicit rather than magic globals: the calling task's
// root and current working directory, and its umask. The syscall layer
// builds one of these from the current task for every path-resolution
// call.
type PathContext struct {
	Root *Inode
	CWD  *Inode
	Umask uint32
}

// Namei resolves a path to an inode, returning a new reference the caller
// must Iput. dirfd's starting point (AT_FDCWD vs a directory fd) is
// resolved by the caller into start; Namei itself only knows "the inode to
// start from" and pc.Root for an absolute path.
func Namei(caches *InodeCache, pc PathContext, start *Inode, path string, followLinks bool) (*Inode, error) {
	cur := start
	if strings.HasPrefix(path, "/") {
		cur = pc.Root.Get()
	} else {
		cur = cur.Get()
	}

	parts := splitPath(path)
	depth := 0
	for idx, name := range parts {
		isLast := idx == len(parts)-1

		if cur.Type != TypeDir {
			caches.Iput(cur)
			return nil, errno.NotADir
		}

		next, err := cur.Ops.Lookup(cur, name)
		// Lookup contract: it always releases cur (matches the original's
		// "the called op must iput(cur) and either return a new ref or an
		// error").
		caches.Iput(cur)
		if err != nil {
			return nil, err
		}

		// Cross a mount boundary: if next is a super block's mount point,
		// transparently swap to the mounted fs's root.
		next = resolveMount(next)

		if next.Type == TypeSymlink && (!isLast || followLinks) {
			depth++
			if depth > maxSymlinkDepth {
				caches.Iput(next)
				return nil, errno.Loop
			}
			target, err := next.Ops.FollowLink(cur, next)
			caches.Iput(next)
			if err != nil {
				return nil, err
			}
			next = resolveMount(target)
		}

		cur = next
	}

	return cur, nil
}

// resolveMount swaps inode for the mounted filesystem's root if inode is a
// super block's mount point (the inverse of SuperBlock.IMount).
func resolveMount(inode *Inode) *Inode {
	if inode == nil {
		return inode
	}
	if mnt, ok := mountTable.lookup(inode); ok {
		return mnt.Root.Get()
	}
	return inode
}

func splitPath(path string) []string {
	var out []string
	for _, p := range strings.Split(path, "/") {
		if p != "" && p != "." {
			out = append(out, p)
		}
	}
	return out
}

// OpenNamei implements open(2)'s path-resolution-plus-create semantics.
func OpenNamei(caches *InodeCache, pc PathContext, start *Inode, path string, flags int, mode uint32) (*Inode, error) {
	followLinks := flags&ONofollow == 0

	dir := splitDir(path)
	base := splitBase(path)

	if flags&OCreat == 0 {
		inode, err := Namei(caches, pc, start, path, followLinks)
		if err != nil {
			return nil, err
		}
		if flags&OTrunc != 0 && inode.Type == TypeRegular && (flags&OAccMode == OWrOnly || flags&OAccMode == ORdWr) {
			if err := inode.Ops.Truncate(inode, 0); err != nil {
				caches.Iput(inode)
				return nil, err
			}
		}
		return inode, nil
	}

	dirInode, err := Namei(caches, pc, start, dir, true)
	if err != nil {
		return nil, err
	}

	existing, lookupErr := dirInode.Ops.Lookup(dirInode.Get(), base)
	if lookupErr == nil {
		caches.Iput(existing)
		// Lookup only consumed the extra reference from Get() above;
		// dirInode's original reference from Namei is still ours to
		// release since neither remaining branch needs it.
		caches.Iput(dirInode)
		if flags&OExcl != 0 {
			return nil, errno.Exists
		}
		return Namei(caches, pc, start, path, followLinks)
	}

	// Create, like Lookup, takes ownership of the dir reference passed in.
	perm := mode &^ pc.Umask
	created, err := dirInode.Ops.Create(dirInode, base, perm)
	if err != nil {
		return nil, err
	}
	return created, nil
}

func splitDir(path string) string {
	idx := strings.LastIndex(path, "/")
	if idx < 0 {
		return "."
	}
	if idx == 0 {
		return "/"
	}
	return path[:idx]
}

func splitBase(path string) string {
	idx := strings.LastIndex(path, "/")
	return path[idx+1:]
}
