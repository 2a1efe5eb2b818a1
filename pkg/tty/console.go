package tty

// Color indices into the 16-entry ANSI palette the SGR handler maps
// 30-37/40-47 onto. The upper 8 (Bright*) are never set directly by an
// SGR parameter — PutChar folds the current Bold attribute into the
// foreground index when it stores a Cell, the same way a real terminal
// renders "ESC[1;31m" as bright red rather than red-plus-a-separate-flag.
const (
	ColorBlack = iota
	ColorRed
	ColorGreen
	ColorYellow
	ColorBlue
	ColorMagenta
	ColorCyan
	ColorWhite
	ColorBrightBlack
	ColorBrightRed
	ColorBrightGreen
	ColorBrightYellow
	ColorBrightBlue
	ColorBrightMagenta
	ColorBrightCyan
	ColorBrightWhite
)

const (
	defaultFg = ColorWhite
	defaultBg = ColorBlack
)

// Cell is one framebuffer glyph slot: a rune plus its current SGR colors.
type Cell struct {
	Ch rune
	Fg int
	Bg int
}

// Console is the virtual text console a tty's write side renders into,
// matching console_scrup/console_scrdown's cell-grid-plus-cursor model.
type Console struct {
	Cols, Rows int
	Cells      []Cell
	CursorX    int
	CursorY    int
	CurFg      int
	CurBg      int
	Bold       bool
	Reverse    bool
	Visible    bool // cursor visibility, toggled by CSI ?25h/l
}

// NewConsole allocates a blank cols x rows framebuffer.
func NewConsole(cols, rows int) *Console {
	c := &Console{Cols: cols, Rows: rows, CurFg: defaultFg, CurBg: defaultBg, Visible: true}
	c.Cells = make([]Cell, cols*rows)
	c.clearAll()
	return c
}

func (c *Console) blank() Cell {
	fg := c.CurFg
	if c.Bold && fg < 8 {
		fg += 8
	}
	return Cell{Ch: ' ', Fg: fg, Bg: c.CurBg}
}

func (c *Console) clearAll() {
	b := c.blank()
	for i := range c.Cells {
		c.Cells[i] = b
	}
}

func (c *Console) at(x, y int) int { return y*c.Cols + x }

// At returns the Cells index for (x, y), exported for callers (tests,
// console drivers) that need to index the grid directly.
func (c *Console) At(x, y int) int { return c.at(x, y) }

func (c *Console) clampCursor() {
	if c.CursorX < 0 {
		c.CursorX = 0
	}
	if c.CursorX >= c.Cols {
		c.CursorX = c.Cols - 1
	}
	if c.CursorY < 0 {
		c.CursorY = 0
	}
	if c.CursorY >= c.Rows {
		c.CursorY = c.Rows - 1
	}
}

// PutChar writes ch at the cursor using the current SGR attributes and
// advances the cursor, wrapping to the next line at the right margin.
func (c *Console) PutChar(ch rune) {
	fg, bg := c.CurFg, c.CurBg
	if c.Bold && fg < 8 {
		fg += 8
	}
	if c.Reverse {
		fg, bg = bg, fg
	}
	c.Cells[c.at(c.CursorX, c.CursorY)] = Cell{Ch: ch, Fg: fg, Bg: bg}
	c.CursorX++
	if c.CursorX >= c.Cols {
		c.CursorX = 0
		c.CursorY++
		if c.CursorY >= c.Rows {
			c.scrollUpOne()
			c.CursorY = c.Rows - 1
		}
	}
}

func (c *Console) scrollUpOne() {
	c.Scrup(0, c.Rows, 1)
}

// Scrup moves rows [top, bottom) up by n, clearing the uncovered band at
// the bottom to the current erase color — clamped so n never exceeds the
// region height, per console_scrup's contract.
func (c *Console) Scrup(top, bottom, n int) {
	if n <= 0 || top >= bottom {
		return
	}
	height := bottom - top
	if n > height {
		n = height
	}
	for y := top; y < bottom-n; y++ {
		copy(c.Cells[c.at(0, y):c.at(0, y)+c.Cols], c.Cells[c.at(0, y+n):c.at(0, y+n)+c.Cols])
	}
	b := c.blank()
	for y := bottom - n; y < bottom; y++ {
		for x := 0; x < c.Cols; x++ {
			c.Cells[c.at(x, y)] = b
		}
	}
}

// Scrdown is Scrup's mirror: moves rows down by n, clearing the uncovered
// band at the top.
func (c *Console) Scrdown(top, bottom, n int) {
	if n <= 0 || top >= bottom {
		return
	}
	height := bottom - top
	if n > height {
		n = height
	}
	for y := bottom - 1; y >= top+n; y-- {
		copy(c.Cells[c.at(0, y):c.at(0, y)+c.Cols], c.Cells[c.at(0, y-n):c.at(0, y-n)+c.Cols])
	}
	b := c.blank()
	for y := top; y < top+n; y++ {
		for x := 0; x < c.Cols; x++ {
			c.Cells[c.at(x, y)] = b
		}
	}
}

// EraseLine implements CSI K: mode 0 erases cursor-to-end, 1 start-to-cursor,
// 2 the whole line.
func (c *Console) EraseLine(mode int) {
	b := c.blank()
	switch mode {
	case 0:
		for x := c.CursorX; x < c.Cols; x++ {
			c.Cells[c.at(x, c.CursorY)] = b
		}
	case 1:
		for x := 0; x <= c.CursorX && x < c.Cols; x++ {
			c.Cells[c.at(x, c.CursorY)] = b
		}
	case 2:
		for x := 0; x < c.Cols; x++ {
			c.Cells[c.at(x, c.CursorY)] = b
		}
	}
}

// EraseScreen implements CSI J: mode 0 cursor-to-end, 1 start-to-cursor,
// 2 the whole screen.
func (c *Console) EraseScreen(mode int) {
	b := c.blank()
	switch mode {
	case 0:
		for i := c.at(c.CursorX, c.CursorY); i < len(c.Cells); i++ {
			c.Cells[i] = b
		}
	case 1:
		for i := 0; i <= c.at(c.CursorX, c.CursorY) && i < len(c.Cells); i++ {
			c.Cells[i] = b
		}
	case 2:
		c.clearAll()
	}
}

// MoveCursor sets the cursor to (x, y), 0-based, clamped to screen bounds
// (CSI H/f with an oversized row/column, e.g. [999H, clamps rather than
// erroring).
func (c *Console) MoveCursor(x, y int) {
	c.CursorX, c.CursorY = x, y
	c.clampCursor()
}

// ApplySGR applies one CSI `m` parameter, matching the 0/1/4/7/24/27/30-37/
// 39/40-47/49 subset the original SGR table uses.
func (c *Console) ApplySGR(p int) {
	switch {
	case p == 0:
		c.CurFg, c.CurBg = defaultFg, defaultBg
		c.Bold, c.Reverse = false, false
	case p == 1:
		c.Bold = true
	case p == 4:
		// underline: tracked as an attribute only, no distinct glyph channel
	case p == 7:
		c.Reverse = true
	case p == 24:
		// undo underline
	case p == 27:
		c.Reverse = false
	case p >= 30 && p <= 37:
		c.CurFg = p - 30
	case p == 39:
		c.CurFg = defaultFg
	case p >= 40 && p <= 47:
		c.CurBg = p - 40
	case p == 49:
		c.CurBg = defaultBg
	}
}
