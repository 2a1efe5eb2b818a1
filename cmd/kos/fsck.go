package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/eric29200/kos/pkg/blockdev"
	"github.com/eric29200/kos/pkg/fs/minix"
	"github.com/eric29200/kos/pkg/klog"
	"github.com/eric29200/kos/pkg/vfs"
	"github.com/google/subcommands"
)

var fsckLog = klog.For("cmd.fsck")

type fsckCmd struct {
	image string
}

func (*fsckCmd) Name() string     { return "fsck" }
func (*fsckCmd) Synopsis() string { return "check a Minix image's bitmap/directory consistency" }
func (*fsckCmd) Usage() string {
	return "fsck -image path\n\nWalks the directory tree from the root and cross-checks it against the inode/zone bitmaps.\n"
}

func (c *fsckCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.image, "image", "kos.img", "path to the image file to check")
}

func (c *fsckCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	dev, err := blockdev.Open(c.image)
	if err != nil {
		fsckLog.Errorf("open %s: %v", c.image, err)
		return subcommands.ExitFailure
	}
	defer dev.Close()

	bc := vfs.NewBufferCache(64)
	fs := minix.NewFilesystem(bc)
	sb, err := fs.Mount(dev, "")
	if err != nil {
		fsckLog.Errorf("mount %s: %v", c.image, err)
		return subcommands.ExitFailure
	}

	sbi, ok := sb.Private.(*minix.SuperInfo)
	if !ok {
		fsckLog.Errorf("%s: unexpected super block backing store", c.image)
		return subcommands.ExitFailure
	}

	seen := map[uint64]bool{1: true} // the root itself
	if err := walkDir(sb, sb.Root, seen); err != nil {
		fsckLog.Errorf("walk: %v", err)
		return subcommands.ExitFailure
	}

	usedInodes, totalInodes, usedZones, totalZones := sbi.BitmapStats()
	bc.SyncAll()

	fmt.Printf("%s: %d reachable inodes, %d/%d inode bitmap used, %d/%d zone bitmap used\n",
		c.image, len(seen), usedInodes, totalInodes, usedZones, totalZones)

	if len(seen) > usedInodes {
		fmt.Printf("%s: inconsistent: more reachable inodes (%d) than the bitmap marks used (%d)\n",
			c.image, len(seen), usedInodes)
		return subcommands.ExitFailure
	}
	if len(seen) < usedInodes {
		fmt.Printf("%s: warning: %d inode(s) marked used but unreachable from the root (possible leak)\n",
			c.image, usedInodes-len(seen))
	}
	return subcommands.ExitSuccess
}

// walkDir recurses through dir's entries (skipping "." and ".."), marking
// every inode number it reaches in seen.
func walkDir(sb *vfs.SuperBlock, dir *vfs.Inode, seen map[uint64]bool) error {
	ops, err := dir.Ops.Open(dir, vfs.ORdOnly)
	if err != nil {
		return err
	}
	f := vfs.NewFile(dir, vfs.ORdOnly, ops, sb.Inodes)
	defer f.Close()

	for {
		ents, err := f.Ops.Getdents(f, 64)
		if err != nil {
			return err
		}
		if len(ents) == 0 {
			return nil
		}
		for _, e := range ents {
			if e.Name == "." || e.Name == ".." {
				continue
			}
			if seen[e.Ino] {
				continue
			}
			seen[e.Ino] = true

			child, err := dir.Ops.Lookup(dir.Get(), e.Name)
			if err != nil {
				return fmt.Errorf("lookup %s: %w", e.Name, err)
			}
			if child.Type == vfs.TypeDir {
				err = walkDir(sb, child, seen)
			}
			sb.Inodes.Iput(child)
			if err != nil {
				return err
			}
		}
	}
}
