package calc

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// TokenStream turns characters from a reader into tokens on demand.
// It can hold exactly one token that was put back.
type TokenStream struct {
	in     *bufio.Reader
	buffer Token
	full   bool
	text   []rune // raw characters consumed since the last TakeText
}

// NewTokenStream creates a token stream reading from r.
func NewTokenStream(r io.Reader) *TokenStream {
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(r)
	}
	return &TokenStream{in: br}
}

// readRune reads one character from the source.
func (ts *TokenStream) readRune() (rune, error) {
	ch, _, err := ts.in.ReadRune()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return 0, io.EOF
		}
		return 0, fmt.Errorf("read input: %w", err)
	}
	ts.text = append(ts.text, ch)
	return ch, nil
}

// unreadRune pushes the last character back to the source.
func (ts *TokenStream) unreadRune() {
	if err := ts.in.UnreadRune(); err == nil && len(ts.text) > 0 {
		ts.text = ts.text[:len(ts.text)-1]
	}
}

// peekByte looks at the n-th upcoming byte (0-based) without consuming it.
func (ts *TokenStream) peekByte(n int) (byte, bool) {
	b, _ := ts.in.Peek(n + 1)
	if len(b) <= n {
		return 0, false
	}
	return b[n], true
}

// Get returns the next token. A buffered token is returned first.
// At end of input it returns io.EOF.
func (ts *TokenStream) Get() (Token, error) {
	if ts.full {
		ts.full = false
		return ts.buffer, nil
	}

	ch, err := ts.readRune()
	if err != nil {
		return Token{}, err
	}
	for isSpace(ch) {
		if ch == '\n' {
			return Punct(StatementEnd), nil
		}
		if ch, err = ts.readRune(); err != nil {
			return Token{}, err
		}
	}

	switch {
	case isPunct(ch):
		return Punct(ch), nil
	case isDigit(ch) || ch == '.':
		ts.unreadRune()
		return ts.readNumber()
	case isNameStart(ch):
		return ts.readName(ch)
	}
	return Token{}, newError(ErrInvalidToken, string(ch))
}

// readNumber scans a floating-point literal: digits, an optional fraction
// and an optional exponent. The exponent is only taken when a digit follows.
func (ts *TokenStream) readNumber() (Token, error) {
	var sb strings.Builder
	sawDot, sawExp := false, false

	for {
		b, ok := ts.peekByte(0)
		if !ok {
			break
		}
		ch := rune(b)
		switch {
		case isDigit(ch):
		case ch == '.' && !sawDot && !sawExp:
			sawDot = true
		case (ch == 'e' || ch == 'E') && !sawExp && ts.exponentAhead():
			sawExp = true
			if _, err := ts.readRune(); err != nil {
				return Token{}, err
			}
			sb.WriteRune(ch)
			if sign, _ := ts.peekByte(0); sign == '+' || sign == '-' {
				ch = rune(sign)
			} else {
				continue
			}
		default:
			return ts.parseNumber(sb.String())
		}
		if _, err := ts.readRune(); err != nil {
			return Token{}, err
		}
		sb.WriteRune(ch)
	}
	return ts.parseNumber(sb.String())
}

// exponentAhead reports whether the upcoming "e" starts a valid exponent.
func (ts *TokenStream) exponentAhead() bool {
	next, ok := ts.peekByte(1)
	if !ok {
		return false
	}
	if next == '+' || next == '-' {
		next, ok = ts.peekByte(2)
		if !ok {
			return false
		}
	}
	return isDigit(rune(next))
}

func (ts *TokenStream) parseNumber(lit string) (Token, error) {
	v, err := strconv.ParseFloat(lit, 64)
	if err != nil {
		return Token{}, newError(ErrInvalidToken, lit)
	}
	return Number(v), nil
}

// readName scans an identifier that starts with first. The character that
// ends the name goes back to the source, not to the token buffer.
func (ts *TokenStream) readName(first rune) (Token, error) {
	var sb strings.Builder
	sb.WriteRune(first)
	for {
		ch, err := ts.readRune()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Token{}, err
		}
		if !isNameChar(ch) {
			ts.unreadRune()
			break
		}
		sb.WriteRune(ch)
	}

	s := sb.String()
	if k, ok := keywords[s]; ok {
		return Keyword(k), nil
	}
	return Name(s), nil
}

// Putback stores t so that the next Get returns it.
func (ts *TokenStream) Putback(t Token) error {
	if ts.full {
		return newError(ErrBufferFull, t.String())
	}
	ts.buffer = t
	ts.full = true
	return nil
}

// Ignore discards input up to and including stop or a newline.
// A buffered stop token is simply dropped.
func (ts *TokenStream) Ignore(stop rune) error {
	if ts.full && ts.buffer.Is(stop) {
		ts.full = false
		return nil
	}
	ts.full = false

	for {
		ch, err := ts.readRune()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if ch == stop || ch == '\n' {
			return nil
		}
	}
}

// TakeText returns the source text consumed since the previous call,
// without surrounding blanks or statement terminators.
func (ts *TokenStream) TakeText() string {
	s := string(ts.text)
	ts.text = ts.text[:0]
	return strings.Trim(s, " \t\r\n\v\f;")
}

func isSpace(ch rune) bool {
	switch ch {
	case ' ', '\t', '\n', '\v', '\f', '\r':
		return true
	}
	return false
}
