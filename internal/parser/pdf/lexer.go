package pdf

import "bytes"

type tokenKind int

const (
	tokNumber tokenKind = iota
	tokName
	tokString
	tokOperator
	tokArray
	tokDict
)

type token struct {
	kind tokenKind
	text string
}

// lexer tokenises a PDF content stream. Only the structure needed to pair
// operators with their operands is kept; string and array contents are skipped.
type lexer struct {
	data []byte
	pos  int
}

func newLexer(data []byte) *lexer {
	return &lexer{data: data}
}

func isWhite(c byte) bool {
	switch c {
	case ' ', '\t', '\r', '\n', '\f', 0:
		return true
	}
	return false
}

func isDelim(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

func (l *lexer) skipWhite() {
	for l.pos < len(l.data) {
		c := l.data[l.pos]
		switch {
		case isWhite(c):
			l.pos++
		case c == '%':
			for l.pos < len(l.data) && l.data[l.pos] != '\n' && l.data[l.pos] != '\r' {
				l.pos++
			}
		default:
			return
		}
	}
}

func (l *lexer) next() (token, bool) {
	l.skipWhite()
	if l.pos >= len(l.data) {
		return token{}, false
	}
	c := l.data[l.pos]
	switch {
	case c == '/':
		l.pos++
		start := l.pos
		for l.pos < len(l.data) && !isWhite(l.data[l.pos]) && !isDelim(l.data[l.pos]) {
			l.pos++
		}
		return token{kind: tokName, text: string(l.data[start:l.pos])}, true
	case c == '(':
		l.skipLiteral()
		return token{kind: tokString}, true
	case c == '<' && l.peek(1) == '<':
		l.skipNested('<', '>', 2)
		return token{kind: tokDict}, true
	case c == '<':
		end := bytes.IndexByte(l.data[l.pos:], '>')
		if end < 0 {
			l.pos = len(l.data)
		} else {
			l.pos += end + 1
		}
		return token{kind: tokString}, true
	case c == '[':
		l.skipArray()
		return token{kind: tokArray}, true
	case c == ']' || c == '>' || c == ')' || c == '{' || c == '}':
		l.pos++
		return l.next()
	case c == '+' || c == '-' || c == '.' || (c >= '0' && c <= '9'):
		start := l.pos
		l.pos++
		for l.pos < len(l.data) {
			d := l.data[l.pos]
			if (d >= '0' && d <= '9') || d == '.' {
				l.pos++
				continue
			}
			break
		}
		return token{kind: tokNumber, text: string(l.data[start:l.pos])}, true
	default:
		start := l.pos
		for l.pos < len(l.data) && !isWhite(l.data[l.pos]) && !isDelim(l.data[l.pos]) {
			l.pos++
		}
		op := string(l.data[start:l.pos])
		if op == "BI" {
			l.skipInlineImage()
			return l.next()
		}
		return token{kind: tokOperator, text: op}, true
	}
}

func (l *lexer) peek(n int) byte {
	if l.pos+n < len(l.data) {
		return l.data[l.pos+n]
	}
	return 0
}

// skipLiteral consumes a balanced (...) string honouring backslash escapes.
func (l *lexer) skipLiteral() {
	depth := 0
	for l.pos < len(l.data) {
		c := l.data[l.pos]
		l.pos++
		switch c {
		case '\\':
			l.pos++
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return
			}
		}
	}
}

func (l *lexer) skipNested(open, closing byte, width int) {
	depth := 0
	for l.pos < len(l.data) {
		if l.data[l.pos] == open && l.peek(1) == open {
			depth++
			l.pos += width
			continue
		}
		if l.data[l.pos] == closing && l.peek(1) == closing {
			depth--
			l.pos += width
			if depth == 0 {
				return
			}
			continue
		}
		if l.data[l.pos] == '(' {
			l.skipLiteral()
			continue
		}
		l.pos++
	}
}

func (l *lexer) skipArray() {
	depth := 0
	for l.pos < len(l.data) {
		switch l.data[l.pos] {
		case '(':
			l.skipLiteral()
			continue
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				l.pos++
				return
			}
		}
		l.pos++
	}
}

// skipInlineImage consumes "... ID <binary> EI" after a BI operator.
func (l *lexer) skipInlineImage() {
	id := bytes.Index(l.data[l.pos:], []byte("ID"))
	if id < 0 {
		l.pos = len(l.data)
		return
	}
	l.pos += id + 2
	for l.pos < len(l.data) {
		end := bytes.Index(l.data[l.pos:], []byte("EI"))
		if end < 0 {
			l.pos = len(l.data)
			return
		}
		at := l.pos + end
		l.pos = at + 2
		before := at == 0 || isWhite(l.data[at-1])
		after := l.pos >= len(l.data) || isWhite(l.data[l.pos])
		if before && after {
			return
		}
	}
}
