package tty_test

import (
	"testing"
	"unsafe"

	"github.com/eric29200/kos/pkg/tty"
	"github.com/stretchr/testify/require"
)

// fakeSignaler records every signal it receives, standing in for
// *kernel.Task without pulling in pkg/kernel.
type fakeSignaler struct {
	got []int
}

func (f *fakeSignaler) Signal(sig int) { f.got = append(f.got, sig) }

func writeString(tt *tty.TTY, s string) {
	for i := 0; i < len(s); i++ {
		tt.PushInput(s[i])
	}
}

func TestLineDisciplineEchoAndNewlineCooksFullLine(t *testing.T) {
	tt := tty.NewTTY(1, nil)
	writeString(tt, "abc\n")

	ops, err := tt.Open(nil, 0)
	require.NoError(t, err)

	buf := make([]byte, 16)
	n, err := ops.Read(nil, buf, 0)
	require.NoError(t, err)
	require.Equal(t, "abc\n", string(buf[:n]))
}

func TestLineDisciplineBackspaceErasesLastChar(t *testing.T) {
	tt := tty.NewTTY(2, nil)
	writeString(tt, "abx")
	tt.PushInput(0x7F) // VERASE
	writeString(tt, "c\n")

	ops, _ := tt.Open(nil, 0)
	buf := make([]byte, 16)
	n, err := ops.Read(nil, buf, 0)
	require.NoError(t, err)
	require.Equal(t, "abc\n", string(buf[:n]))
}

func TestCtrlCRaisesSIGINTToForeground(t *testing.T) {
	tt := tty.NewTTY(3, nil)
	fg := &fakeSignaler{}
	tt.SetForeground(fg)

	writeString(tt, "partial")
	tt.PushInput(0x03) // VINTR

	require.Equal(t, []int{2}, fg.got) // SIGINT == 2

	// the in-progress line is discarded by the interrupt
	writeString(tt, "x\n")
	ops, _ := tt.Open(nil, 0)
	buf := make([]byte, 16)
	n, err := ops.Read(nil, buf, 0)
	require.NoError(t, err)
	require.Equal(t, "x\n", string(buf[:n]))
}

func TestCtrlDOnEmptyLineSignalsEOF(t *testing.T) {
	tt := tty.NewTTY(4, nil)
	tt.PushInput(0x04) // VEOF on an empty line

	ops, _ := tt.Open(nil, 0)
	buf := make([]byte, 16)
	n, err := ops.Read(nil, buf, 0)
	require.NoError(t, err)
	require.Equal(t, 0, n)
}

func TestCSIColorSequenceSetsForegroundAndResets(t *testing.T) {
	tt := tty.NewTTY(5, nil)
	ops, _ := tt.Open(nil, 0)

	_, err := ops.Write(nil, []byte("\x1b[31mX\x1b[0mY"), 0)
	require.NoError(t, err)

	xCell := tt.Console.Cells[tt.Console.At(0, 0)]
	yCell := tt.Console.Cells[tt.Console.At(1, 0)]
	require.Equal(t, 'X', xCell.Ch)
	require.Equal(t, tty.ColorRed, xCell.Fg)
	require.Equal(t, 'Y', yCell.Ch)
	require.Equal(t, tty.ColorWhite, yCell.Fg) // default fg restored by SGR 0
}

func TestBoldFoldsIntoBrightForegroundVariant(t *testing.T) {
	tt := tty.NewTTY(5, nil)
	ops, _ := tt.Open(nil, 0)

	_, err := ops.Write(nil, []byte("\x1b[1;31mX"), 0)
	require.NoError(t, err)

	xCell := tt.Console.Cells[tt.Console.At(0, 0)]
	require.Equal(t, tty.ColorBrightRed, xCell.Fg, "bold + red must render as the bright variant, not plain red")
}

func TestEraseLineAndScreen(t *testing.T) {
	tt := tty.NewTTY(6, nil)
	ops, _ := tt.Open(nil, 0)
	_, _ = ops.Write(nil, []byte("hello"), 0)

	// CSI [0K at column 0 erases the whole line visually.
	tt.Console.MoveCursor(0, 0)
	_, _ = ops.Write(nil, []byte("\x1b[0K"), 0)
	for x := 0; x < 5; x++ {
		require.Equal(t, ' ', tt.Console.Cells[tt.Console.At(x, 0)].Ch)
	}
}

func TestPTYMasterSlaveRoundtrip(t *testing.T) {
	master, slave := tty.NewPTYPair(7, nil)
	masterOps, _ := master.Open(nil, 0)
	slaveOps, _ := slave.Open(nil, 0)

	_, err := masterOps.Write(nil, []byte("abc\n"), 0)
	require.NoError(t, err)

	buf := make([]byte, 16)
	n, err := slaveOps.Read(nil, buf, 0)
	require.NoError(t, err)
	require.Equal(t, "abc\n", string(buf[:n]))
}

func TestPTYMasterCloseHangsUpSlaveControllers(t *testing.T) {
	master, slave := tty.NewPTYPair(8, nil)
	shell := &fakeSignaler{}
	slave.AddController(shell)

	master.Close(true)

	require.Contains(t, shell.got, 1)  // SIGHUP
	require.Contains(t, shell.got, 18) // SIGCONT
}

func TestVTActivateProcessModeDefersUntilRelDisp(t *testing.T) {
	tty1 := tty.NewTTY(1, nil)
	tty2 := tty.NewTTY(2, nil)
	mgr := tty.NewVTManager([]*tty.TTY{tty1, tty2}, nil)
	tty1.SetVTManager(mgr)
	tty2.SetVTManager(mgr)

	owner := &fakeSignaler{}
	tty1.SetVTOwner(owner)
	ops1, _ := tty1.Open(nil, 0)

	// tty1 is current (vt 1); set it to VT_PROCESS mode with relsig=9.
	mode := tty.VTMode{Mode: tty.VTProcess, AcqSig: 1, RelSig: 9}
	require.NoError(t, ops1.Ioctl(nil, tty.VT_SETMODE, uintptr(unsafe.Pointer(&mode))))

	require.NoError(t, ops1.Ioctl(nil, tty.VT_ACTIVATE, 2))
	require.Equal(t, 1, mgr.Current()) // deferred, not yet switched
	require.Equal(t, []int{9}, owner.got)

	require.NoError(t, ops1.Ioctl(nil, tty.VT_RELDISP, 0))
	require.Equal(t, 2, mgr.Current())

	ops2, _ := tty2.Open(nil, 0)
	require.NoError(t, ops2.Ioctl(nil, tty.VT_WAITACTIVE, 2))
}
