package condition

import (
	"fmt"
	"strings"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokAnd
	tokOr
	tokNot
	tokLParen
	tokRParen
	tokComma
	tokIdent // function name
	tokString
	tokComparator
	tokValue // bare hex/numeric token, e.g. a checksum literal
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

type lexer struct {
	src    string
	pos    int
	tokens []token
}

func lex(src string) ([]token, error) {
	l := &lexer{src: src}
	for {
		l.skipSpace()
		if l.pos >= len(l.src) {
			l.tokens = append(l.tokens, token{kind: tokEOF, pos: l.pos})
			return l.tokens, nil
		}
		c := l.src[l.pos]
		switch {
		case c == '(':
			l.tokens = append(l.tokens, token{kind: tokLParen, pos: l.pos})
			l.pos++
		case c == ')':
			l.tokens = append(l.tokens, token{kind: tokRParen, pos: l.pos})
			l.pos++
		case c == ',':
			l.tokens = append(l.tokens, token{kind: tokComma, pos: l.pos})
			l.pos++
		case c == '"':
			s, err := l.readQuoted()
			if err != nil {
				return nil, err
			}
			l.tokens = append(l.tokens, s)
		case strings.ContainsRune("=!<>", rune(c)):
			l.tokens = append(l.tokens, l.readComparator())
		case isIdentStart(c):
			l.tokens = append(l.tokens, l.readWord())
		case isHexDigit(c):
			l.tokens = append(l.tokens, l.readValue())
		default:
			return nil, fmt.Errorf("condition: unexpected character %q at %d", c, l.pos)
		}
	}
}

func (l *lexer) skipSpace() {
	for l.pos < len(l.src) && (l.src[l.pos] == ' ' || l.src[l.pos] == '\t' || l.src[l.pos] == '\n' || l.src[l.pos] == '\r') {
		l.pos++
	}
}

func (l *lexer) readQuoted() (token, error) {
	start := l.pos
	l.pos++ // opening quote
	var b strings.Builder
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		if c == '"' {
			l.pos++
			return token{kind: tokString, text: b.String(), pos: start}, nil
		}
		if c == '\\' && l.pos+1 < len(l.src) {
			l.pos++
			b.WriteByte(l.src[l.pos])
			l.pos++
			continue
		}
		b.WriteByte(c)
		l.pos++
	}
	return token{}, fmt.Errorf("condition: unterminated quoted string starting at %d", start)
}

func (l *lexer) readComparator() token {
	start := l.pos
	c := l.src[l.pos]
	l.pos++
	if l.pos < len(l.src) && l.src[l.pos] == '=' && (c == '=' || c == '!' || c == '<' || c == '>') {
		l.pos++
	}
	return token{kind: tokComparator, text: l.src[start:l.pos], pos: start}
}

func (l *lexer) readWord() token {
	start := l.pos
	for l.pos < len(l.src) && isIdentPart(l.src[l.pos]) {
		l.pos++
	}
	word := l.src[start:l.pos]
	switch strings.ToLower(word) {
	case "and":
		return token{kind: tokAnd, text: word, pos: start}
	case "or":
		return token{kind: tokOr, text: word, pos: start}
	case "not":
		return token{kind: tokNot, text: word, pos: start}
	default:
		return token{kind: tokIdent, text: word, pos: start}
	}
}

func (l *lexer) readValue() token {
	start := l.pos
	for l.pos < len(l.src) && isHexDigit(l.src[l.pos]) {
		l.pos++
	}
	return token{kind: tokValue, text: l.src[start:l.pos], pos: start}
}

func isIdentStart(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '_'
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

func isHexDigit(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}
