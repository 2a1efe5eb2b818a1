package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/containerd/console"
	"github.com/eric29200/kos/pkg/blockdev"
	"github.com/eric29200/kos/pkg/config"
	"github.com/eric29200/kos/pkg/errno"
	"github.com/eric29200/kos/pkg/fs/devfs"
	"github.com/eric29200/kos/pkg/fs/minix"
	"github.com/eric29200/kos/pkg/kernel"
	"github.com/eric29200/kos/pkg/klog"
	"github.com/eric29200/kos/pkg/socket"
	sc "github.com/eric29200/kos/pkg/syscall"
	"github.com/eric29200/kos/pkg/tty"
	"github.com/eric29200/kos/pkg/vfs"
	"github.com/google/subcommands"
	"golang.org/x/time/rate"
)

var bootLog = klog.For("cmd.boot")

type bootCmd struct {
	configPath string
}

func (*bootCmd) Name() string     { return "boot" }
func (*bootCmd) Synopsis() string { return "boot the kernel against a Minix disk image" }
func (*bootCmd) Usage() string {
	return "boot [-config path]\n\nMounts the configured image read-write and attaches the host terminal to console tty1.\n"
}

func (b *bootCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&b.configPath, "config", "", "path to a TOML boot config (defaults baked in if omitted)")
}

// bootedKernel bundles the pieces boot wires together, so fsck/mkfs can
// eventually share the same mount sequence rather than each reinventing it.
type bootedKernel struct {
	cfg     config.Boot
	dev     *blockdev.FileDevice
	bc      *vfs.BufferCache
	root    *vfs.SuperBlock
	sched   *kernel.Scheduler
	init    *kernel.Task
	table   *sc.Table
	ttys    []*tty.TTY
	vtmgr   *tty.VTManager
}

func bootKernel(cfg config.Boot) (*bootedKernel, error) {
	dev, err := blockdev.Open(cfg.Image)
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}

	bc := vfs.NewBufferCache(cfg.BufferCount)
	mfs := minix.NewFilesystem(bc)
	rootSB, err := mfs.Mount(dev, "")
	if err != nil {
		dev.Close()
		return nil, fmt.Errorf("mount root: %w", err)
	}

	sched := kernel.NewScheduler()
	init := sched.NewTask(nil)
	init.Files = vfs.NewFDTable()
	init.FS = &kernel.FSState{CWD: rootSB.Root, Root: rootSB.Root}
	sched.SetInit(init)

	devFS := devfs.NewFilesystem()
	ttys := make([]*tty.TTY, cfg.Consoles)
	for i := range ttys {
		ttys[i] = tty.NewTTY(i+1, init.Sleeper())
	}
	vtmgr := tty.NewVTManager(ttys, init.Sleeper())
	for i, t := range ttys {
		t.SetVTManager(vtmgr)
		name := fmt.Sprintf("tty%d", i+1)
		devFS.AddDevice(name, vfs.TypeChar, uint64(4)<<8|uint64(i+1), 0o620, t.Open)
	}
	tty.NewPTYRegistry(devFS, init.Sleeper())

	if err := rootSB.Root.Ops.Mkdir(rootSB.Root, "dev", 0o755); err != nil {
		var kind errno.Kind
		if !errno.AsKind(err, &kind) || kind != errno.Exists {
			dev.Close()
			return nil, fmt.Errorf("mkdir /dev: %w", err)
		}
	}
	devInode, err := vfs.Namei(rootSB.Inodes, init.FS.PathContext(), rootSB.Root, "/dev", true)
	if err != nil {
		dev.Close()
		return nil, fmt.Errorf("resolve /dev: %w", err)
	}
	if _, err := vfs.Default().Mount(devInode, "devfs", nil, ""); err != nil {
		rootSB.Inodes.Iput(devInode)
		dev.Close()
		return nil, fmt.Errorf("mount /dev: %w", err)
	}
	rootSB.Inodes.Iput(devInode)
	vfs.Default().Register(devFS)

	limit := rate.Inf
	if cfg.SocketRateLimit > 0 {
		limit = rate.Limit(cfg.SocketRateLimit)
	}
	net := &sc.Net{
		Table: socket.NewTable(),
		Unix:  socket.NewUnixFamily(limit, cfg.MaxSockets, init.Sleeper()),
	}
	table := sc.Default(net)

	return &bootedKernel{
		cfg: cfg, dev: dev, bc: bc, root: rootSB,
		sched: sched, init: init, table: table,
		ttys: ttys, vtmgr: vtmgr,
	}, nil
}

func (k *bootedKernel) shutdown() {
	k.bc.SyncAll()
	k.dev.Close()
	k.sched.Stop()
}

// attachConsole bridges the host terminal to ttys[0]: host keystrokes feed
// PushInput, and the virtual console's cell grid is redrawn to the host
// screen on a fixed tick, since tty's Write renders into an in-memory
// Console rather than a raw byte stream.
func attachConsole(ctx context.Context, t *tty.TTY) error {
	current := console.Current()
	if err := current.SetRaw(); err != nil {
		return fmt.Errorf("set raw mode: %w", err)
	}
	defer current.Reset()

	out := bufio.NewWriter(os.Stdout)
	stop := make(chan struct{})

	go func() {
		buf := make([]byte, 256)
		for {
			n, err := current.Read(buf)
			for i := 0; i < n; i++ {
				t.PushInput(buf[i])
			}
			if err != nil {
				close(stop)
				return
			}
		}
	}()

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-stop:
			return nil
		case <-ticker.C:
			renderConsole(out, t.Console)
		}
	}
}

// renderConsole redraws con's full cell grid to w using a home-cursor
// clear-and-repaint, simple enough not to need a diffing scheme for a
// boot console's modest refresh rate.
func renderConsole(w *bufio.Writer, con *tty.Console) {
	fmt.Fprint(w, "\x1b[H\x1b[2J")
	for y := 0; y < con.Rows; y++ {
		for x := 0; x < con.Cols; x++ {
			cell := con.Cells[con.At(x, y)]
			if cell.Ch == 0 {
				fmt.Fprint(w, " ")
				continue
			}
			fmt.Fprintf(w, "%c", cell.Ch)
		}
		fmt.Fprint(w, "\r\n")
	}
	if con.Visible {
		fmt.Fprintf(w, "\x1b[%d;%dH", con.CursorY+1, con.CursorX+1)
	}
	w.Flush()
}

func (b *bootCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	cfg, err := config.Load(b.configPath)
	if err != nil {
		bootLog.Errorf("load config: %v", err)
		return subcommands.ExitFailure
	}

	k, err := bootKernel(cfg)
	if err != nil {
		bootLog.Errorf("boot: %v", err)
		return subcommands.ExitFailure
	}
	defer k.shutdown()

	bootLog.Infof("kernel booted: pid=%d image=%s consoles=%d", k.init.Pid, cfg.Image, cfg.Consoles)

	if len(k.ttys) == 0 {
		return subcommands.ExitSuccess
	}
	if err := attachConsole(ctx, k.ttys[0]); err != nil {
		bootLog.Errorf("console: %v", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
