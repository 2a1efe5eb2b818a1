// Command kos is the kernel's host-side entry point: it boots the
// hosted kernel against a Minix disk image, or formats/checks one,
// through a small subcommands.Commander CLI in the shape runsc's own
// command-line tool uses.
package main

import (
	"context"
	"flag"
	"os"

	"github.com/eric29200/kos/pkg/klog"
	"github.com/google/subcommands"
	"github.com/sirupsen/logrus"
)

func main() {
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(subcommands.CommandsCommand(), "")
	subcommands.Register(&bootCmd{}, "")
	subcommands.Register(&mkfsCmd{}, "")
	subcommands.Register(&fsckCmd{}, "")

	flag.Parse()

	klog.Init(klog.Interactive, logrus.InfoLevel)

	ctx := context.Background()
	os.Exit(int(subcommands.Execute(ctx)))
}
