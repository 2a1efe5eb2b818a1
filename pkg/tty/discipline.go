package tty

// cook consumes one raw byte from read_queue, applying echo, erase,
// kill-line, EOF, and signal-generation per the termios in effect, and
// pushes the cooked result (if any) into cooked_queue, the device-IRQ-to-
// read(2) pipeline a line discipline implements. Only PushInput calls
// this, so a given tty is cooked from at most one producer at a time.
func (t *TTY) cook(b byte) {
	cc := t.Termios.CC
	canon := t.Termios.LFlag&ICANON != 0
	echo := t.Termios.LFlag&ECHO != 0
	isig := t.Termios.LFlag&ISIG != 0

	if isig {
		switch b {
		case cc[VINTR]:
			t.raiseForeground(sigINT)
			t.line = t.line[:0]
			return
		case cc[VQUIT]:
			t.raiseForeground(sigQUIT)
			t.line = t.line[:0]
			return
		}
	}

	if !canon {
		t.cooked.PutByte(b)
		if echo {
			t.echoByte(b)
		}
		return
	}

	switch {
	case b == cc[VERASE]:
		if len(t.line) > 0 {
			t.line = t.line[:len(t.line)-1]
			if echo && t.Termios.LFlag&ECHOE != 0 {
				t.echoBackspace()
			}
		}
		return
	case b == cc[VKILL]:
		for range t.line {
			if echo && t.Termios.LFlag&ECHOE != 0 {
				t.echoBackspace()
			}
		}
		t.line = t.line[:0]
		if echo && t.Termios.LFlag&ECHOK != 0 {
			t.echoByte('\n')
		}
		return
	case b == cc[VEOF]:
		// A non-empty line is flushed as-is, without a trailing newline
		// (matching cooked mode's "Ctrl-D flushes whatever has been typed
		// so far"); on an empty line it instead arms one EOF indication,
		// consumed by the next Read once the cooked queue runs dry.
		if len(t.line) > 0 {
			for _, c := range t.line {
				t.cooked.PutByte(c)
			}
			t.line = t.line[:0]
		} else {
			t.armEOF()
		}
		if t.sleeper != nil {
			t.sleeper.WakeupAll(t.cooked)
		}
		return
	case b == '\n' || b == '\r':
		t.line = append(t.line, '\n')
		for _, c := range t.line {
			t.cooked.PutByte(c)
		}
		t.line = t.line[:0]
		if echo {
			t.echoByte('\n')
		}
		if t.sleeper != nil {
			t.sleeper.WakeupAll(t.cooked)
		}
		return
	default:
		t.line = append(t.line, b)
		if echo {
			t.echoByte(b)
		}
	}
}

// raiseForeground delivers sig to every task this tty currently considers
// its foreground group — a no-op if nothing has claimed the tty yet.
func (t *TTY) raiseForeground(sig int) {
	for _, s := range t.foreground {
		s.Signal(sig)
	}
}

// echoByte writes one byte back out through the CSI parser onto the
// console, the same path Write uses, so typed characters appear on
// screen exactly like programmatic output would.
func (t *TTY) echoByte(b byte) {
	if t.Console == nil {
		return
	}
	t.parser.Feed(t.Console, b)
}

// echoBackspace visually erases the previous character: move left,
// blank it, move left again, matching a terminal's destructive backspace.
func (t *TTY) echoBackspace() {
	if t.Console == nil {
		return
	}
	t.parser.Feed(t.Console, '\b')
	t.parser.Feed(t.Console, ' ')
	t.parser.Feed(t.Console, '\b')
}
