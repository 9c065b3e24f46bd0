package ast

// SetLocation annotates the term with the provided location.
func SetLocation(term Term, loc Location) {
	if term == nil {
		return
	}
	if setter, ok := term.(interface{ setLocation(Location) }); ok {
		setter.setLocation(loc)
	}
}

// Position converts the start offset into a 1-based line and column within
// src. Offsets past the end of src clamp to the last position.
func (l Location) Position(src []byte) (line, col int) {
	offset := l.Start
	if offset > len(src) {
		offset = len(src)
	}
	if offset < 0 {
		offset = 0
	}
	line, col = 1, 1
	for _, b := range src[:offset] {
		if b == '\n' {
			line++
			col = 1
			continue
		}
		col++
	}
	return line, col
}
