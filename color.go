package cfb

// Color is the red-black marker of a directory entry. It is ignored on read
// and every entry is written black.
type Color int

const (
	Red Color = iota
	Black
)

func (c Color) AsByte() byte {
	switch c {
	case Red:
		return COLOR_RED
	case Black:
		return COLOR_BLACK
	default:
		return COLOR_BLACK
	}
}

func ColorFromByte(b byte) Color {
	switch b {
	case COLOR_RED:
		return Red
	case COLOR_BLACK:
		return Black
	default:
		return -1
	}
}
