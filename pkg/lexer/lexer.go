package lexer

import (
	"fmt"
	"unicode/utf8"

	"github.com/johanventer/jsonata-go/pkg/types"
)

const eof = -1

// Lexer converts JSONata expression text into a sequence of tokens.
// The implementation follows Rob Pike's "Lexical Scanning in Go" technique:
// a start/current/width triple of byte offsets into the original string,
// with accept/backup helpers driving each scan function.
type Lexer struct {
	input   string
	length  int
	start   int
	current int
	width   int
	err     error
}

// New creates a lexer over the given expression text.
func New(input string) *Lexer {
	return &Lexer{input: input, length: len(input)}
}

// Next returns the next token from the input. Once the input is exhausted,
// Next returns TokenEOF for every subsequent call.
//
// allowRegex controls how a leading '/' is read: as the start of a regex
// literal (true) or the division operator (false). The parser tracks this
// based on grammatical position, exactly as it must to disambiguate `a/b`
// from `/re/`.
func (l *Lexer) Next(allowRegex bool) Token {
	l.skipWhitespace()
	if l.err != nil {
		return l.error(types.ErrCommentNotClosed, l.err.Error())
	}

	ch := l.nextRune()
	switch {
	case ch == eof:
		return l.eof()
	case allowRegex && ch == '/':
		l.ignore()
		return l.scanRegex(ch)
	case ch == '"' || ch == '\'':
		l.ignore()
		return l.scanString(ch)
	case ch >= '0' && ch <= '9':
		l.backup()
		return l.scanNumber()
	case ch == '`':
		l.ignore()
		return l.scanEscapedName(ch)
	}

	if t, ok := l.scanSymbol(ch); ok {
		return t
	}

	l.backup()
	return l.scanName()
}

// scanSymbol matches ch against the operator/punctuation tables, preferring
// a two-character symbol over its one-character prefix (e.g. ".." over two
// "."s, "<=" over "<" then "="). ch has already been consumed; on a miss the
// lexer's position is unchanged so the caller can try another interpretation.
func (l *Lexer) scanSymbol(ch rune) (Token, bool) {
	for _, rt := range lookupSymbol2(ch) {
		if l.acceptRune(rt.r) {
			return l.newToken(rt.tt), true
		}
	}

	if tt := lookupSymbol1(ch); tt > 0 {
		return l.newToken(tt), true
	}

	return Token{}, false
}

// Error returns the first error encountered while scanning, if any.
func (l *Lexer) Error() error {
	return l.err
}

// scanRegex reads a regex literal; the opening delimiter is already consumed.
// Format: /pattern/flags. The token is retained for position-accurate
// NotImplemented errors even though the engine never evaluates it.
func (l *Lexer) scanRegex(delim rune) Token {
	var depth int

Loop:
	for {
		switch l.nextRune() {
		case delim:
			if depth == 0 {
				break Loop
			}
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		case '\\':
			if r := l.nextRune(); r != eof && r != '\n' {
				break
			}
			fallthrough
		case eof, '\n':
			return l.error(types.ErrRegexNotClosed, "unterminated regex")
		}
	}

	l.backup()
	t := l.newToken(TokenRegex)
	l.acceptRune(delim)
	l.ignore()

	if l.acceptAll(isRegexFlag) {
		flags := l.newToken(TokenType(0))
		t.Value = fmt.Sprintf("(?%s)%s", flags.Value, t.Value)
	}

	return t
}

// scanString reads a string literal; the opening quote is already consumed.
func (l *Lexer) scanString(quote rune) Token {
Loop:
	for {
		switch l.nextRune() {
		case quote:
			break Loop
		case '\\':
			if r := l.nextRune(); r != eof {
				break
			}
			fallthrough
		case eof:
			return l.error(types.ErrStringNotClosed, "unterminated string literal")
		}
	}

	l.backup()
	t := l.newToken(TokenString)
	l.acceptRune(quote)
	l.ignore()
	return t
}

// scanNumber reads [0-9]+(\.[0-9]+)?([eE][+-]?[0-9]+)?. JSON forbids
// leading zeroes, so the integer part is either a lone zero or a non-zero
// digit followed by more digits.
func (l *Lexer) scanNumber() Token {
	if !l.acceptRune('0') {
		l.accept(isNonZeroDigit)
		l.acceptAll(isDigit)
	}

	if l.acceptRune('.') {
		if !l.acceptAll(isDigit) {
			// No digits after the dot: it's the range operator's first
			// dot (e.g. "1..5"), not a decimal point.
			l.backup()
			return l.newToken(TokenNumber)
		}
	}

	if l.acceptRunes2('e', 'E') {
		l.acceptRunes2('+', '-')
		l.acceptAll(isDigit)
	}

	return l.newToken(TokenNumber)
}

// scanEscapedName reads a backtick-quoted field name; the opening backtick
// is already consumed.
func (l *Lexer) scanEscapedName(quote rune) Token {
Loop:
	for {
		switch l.nextRune() {
		case quote:
			break Loop
		case eof, '\n':
			return l.error(types.ErrInvalidEscape, "unterminated name")
		}
	}

	l.backup()
	t := l.newToken(TokenNameEsc)
	l.acceptRune(quote)
	l.ignore()
	return t
}

// scanName reads a bare name, a $variable, or a keyword (and/or/in/true/
// false/null).
func (l *Lexer) scanName() Token {
	isVar := l.acceptRune('$')
	if isVar {
		l.ignore()
	}

	for {
		ch := l.nextRune()
		if ch == eof {
			break
		}
		if isWhitespace(ch) {
			l.backup()
			break
		}
		if lookupSymbol1(ch) > 0 || lookupSymbol2(ch) != nil {
			l.backup()
			break
		}
	}

	t := l.newToken(TokenName)

	if isVar {
		t.Type = TokenVariable
	} else if tt := lookupKeyword(t.Value); tt > 0 {
		t.Type = tt
	}

	return t
}

func (l *Lexer) eof() Token {
	return Token{Type: TokenEOF, Position: l.current}
}

func (l *Lexer) error(code types.ErrorCode, message string) Token {
	t := l.newToken(TokenError)
	l.err = &types.Error{Code: code, Message: message, Position: t.Position, Token: t.Value}
	return t
}

func (l *Lexer) newToken(tt TokenType) Token {
	t := Token{Type: tt, Value: l.input[l.start:l.current], Position: l.start}
	l.width = 0
	l.start = l.current
	return t
}

func (l *Lexer) nextRune() rune {
	if l.err != nil || l.current >= l.length {
		l.width = 0
		return eof
	}
	r, w := utf8.DecodeRuneInString(l.input[l.current:])
	l.width = w
	l.current += w
	return r
}

func (l *Lexer) backup() {
	l.current -= l.width
}

func (l *Lexer) ignore() {
	l.start = l.current
}

func (l *Lexer) acceptRune(r rune) bool {
	return l.accept(func(c rune) bool { return c == r })
}

func (l *Lexer) acceptRunes2(r1, r2 rune) bool {
	return l.accept(func(c rune) bool { return c == r1 || c == r2 })
}

func (l *Lexer) accept(isValid func(rune) bool) bool {
	if isValid(l.nextRune()) {
		return true
	}
	l.backup()
	return false
}

func (l *Lexer) acceptAll(isValid func(rune) bool) bool {
	var matched bool
	for l.accept(isValid) {
		matched = true
	}
	return matched
}

func (l *Lexer) skipWhitespace() {
	for {
		if l.err != nil {
			return
		}

		l.acceptAll(isWhitespace)
		l.ignore()

		if l.acceptRune('/') {
			if l.acceptRune('*') {
				for {
					ch := l.nextRune()
					if ch == eof {
						l.err = &types.Error{
							Code:     types.ErrCommentNotClosed,
							Message:  "unclosed comment",
							Position: l.current,
						}
						return
					}
					if ch == '*' && l.acceptRune('/') {
						break
					}
				}
				l.ignore()
			} else {
				l.current = l.start
				break
			}
		} else {
			break
		}
	}
}

func isWhitespace(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r', '\v':
		return true
	default:
		return false
	}
}

func isRegexFlag(r rune) bool {
	switch r {
	case 'i', 'm', 's':
		return true
	default:
		return false
	}
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

func isNonZeroDigit(r rune) bool {
	return r >= '1' && r <= '9'
}
