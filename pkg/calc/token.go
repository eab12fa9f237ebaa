package calc

import (
	"strconv"
	"strings"
)

// Kind classifies a token.
type Kind int

const (
	KindPunct Kind = iota
	KindNumber
	KindName
	KindLet
	KindConst
	KindQuit
	KindHelp
)

// Reserved words
const (
	keywordLet   = "let"
	keywordConst = "const"
	keywordQuit  = "quit"
	keywordHelp  = "help"
)

var keywords = map[string]Kind{
	keywordLet:   KindLet,
	keywordConst: KindConst,
	keywordQuit:  KindQuit,
	keywordHelp:  KindHelp,
}

// StatementEnd terminates a statement. A newline is read as this too.
const StatementEnd = ';'

// punctuation lists the single-character tokens returned verbatim.
const punctuation = ";=(){}+-*/%"

// Token is one lexical unit. Only the field matching Kind is meaningful.
type Token struct {
	Kind  Kind
	Punct rune
	Value float64
	Name  string
}

// Punct returns a punctuation token.
func Punct(ch rune) Token { return Token{Kind: KindPunct, Punct: ch} }

// Number returns a numeric literal token.
func Number(v float64) Token { return Token{Kind: KindNumber, Value: v} }

// Name returns an identifier token.
func Name(s string) Token { return Token{Kind: KindName, Name: s} }

// Keyword returns a keyword token of the given kind.
func Keyword(k Kind) Token { return Token{Kind: k} }

// Is reports whether t is the punctuation ch.
func (t Token) Is(ch rune) bool {
	return t.Kind == KindPunct && t.Punct == ch
}

func (t Token) String() string {
	switch t.Kind {
	case KindPunct:
		return string(t.Punct)
	case KindNumber:
		return strconv.FormatFloat(t.Value, 'g', -1, 64)
	case KindName:
		return t.Name
	}
	for word, k := range keywords {
		if k == t.Kind {
			return word
		}
	}
	return "?"
}

func isPunct(ch rune) bool {
	return strings.ContainsRune(punctuation, ch)
}

func isDigit(ch rune) bool {
	return ch >= '0' && ch <= '9'
}

func isLetter(ch rune) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func isNameStart(ch rune) bool {
	return isLetter(ch) || ch == '_'
}

func isNameChar(ch rune) bool {
	return isLetter(ch) || isDigit(ch) || ch == '_'
}
