package tty

// Signal numbers the line discipline raises on special characters,
// mirroring pkg/kernel's numbering (kept independent, not imported, for
// the same reason Task.TTY is declared `any`: pkg/tty must never import
// pkg/kernel or the two packages would form a cycle).
const (
	sigHUP  = 1
	sigINT  = 2
	sigQUIT = 3
)

// Signaler is the leaf interface a tty's controlling/foreground tasks
// satisfy so the line discipline can raise INTR/QUIT/HUP without
// depending on pkg/kernel — the same seam ksched.Sleeper provides for
// blocking. *kernel.Task's existing Signal(int) method satisfies this
// implicitly.
type Signaler interface {
	Signal(sig int)
}
