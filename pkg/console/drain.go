package console

import (
	"bufio"
	"io"
)

// DrainUntilExit reads r until marker or end of input.
// It reports whether the marker was seen.
func DrainUntilExit(r io.Reader, marker rune) bool {
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(r)
	}
	for {
		ch, _, err := br.ReadRune()
		if err != nil {
			return false
		}
		if ch == marker {
			return true
		}
	}
}
