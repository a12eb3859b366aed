package lsc

import (
	"strings"
)

// Lexer turns one file's source bytes into a token stream. It is
// single-use: construct, call Tokenize once.
type Lexer struct {
	file  FileID
	src   []byte
	pos   int
	li    *LineIndex
	diags *Diagnostics
}

func NewLexer(file FileID, src []byte, diags *Diagnostics) *Lexer {
	return &Lexer{file: file, src: src, li: NewLineIndex(file, src), diags: diags}
}

func (l *Lexer) here() int32 { return int32(l.pos) }

func (l *Lexer) span(start int32) Span { return l.li.Span(start, l.here()) }

func (l *Lexer) peek() byte {
	if l.pos >= len(l.src) {
		return 0
	}
	return l.src[l.pos]
}

func (l *Lexer) peekAt(off int) byte {
	if l.pos+off >= len(l.src) {
		return 0
	}
	return l.src[l.pos+off]
}

func (l *Lexer) advance() byte {
	b := l.src[l.pos]
	l.pos++
	return b
}

// Tokenize produces the full token sequence, ending in TokEOF. Lexical
// errors are added to diags and lexing recovers by skipping the
// offending byte, so a single run can surface every bad token.
func (l *Lexer) Tokenize() []Token {
	var toks []Token
	for {
		l.skipWhitespaceAndComments(&toks)
		if l.pos >= len(l.src) {
			break
		}
		start := l.here()
		c := l.peek()
		switch {
		case c == '"':
			toks = append(toks, l.lexString(start))
		case isDigit(c):
			toks = append(toks, l.lexNumber(start))
		case c == '.' && (isAlpha(l.peekAt(1)) || l.peekAt(1) == '_'):
			toks = append(toks, l.lexMarker(start))
		case isAlpha(c) || c == '_':
			toks = append(toks, l.lexIdentOrKeyword(start))
		case c >= 0x80:
			l.diags.AddError(NewLexicalError("non-ASCII byte outside string literal", l.span(start)))
			l.advance()
		default:
			tok, ok := l.lexOperatorOrPunct(start)
			if ok {
				toks = append(toks, tok)
			}
		}
	}
	toks = append(toks, Token{Kind: TokEOF, Span: l.span(l.here())})
	return toks
}

func (l *Lexer) skipWhitespaceAndComments(toks *[]Token) {
	for l.pos < len(l.src) {
		c := l.peek()
		switch {
		case c == '\n':
			start := l.here()
			l.advance()
			*toks = append(*toks, Token{Kind: TokNewline, Lexeme: "\n", Span: l.span(start)})
		case c == ' ' || c == '\t' || c == '\r':
			l.advance()
		case c == '/' && l.peekAt(1) == '/':
			for l.pos < len(l.src) && l.peek() != '\n' {
				l.advance()
			}
		default:
			return
		}
	}
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
func isAlpha(c byte) bool { return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') }
func isAlnum(c byte) bool { return isAlpha(c) || isDigit(c) || c == '_' }

func (l *Lexer) lexIdentOrKeyword(start int32) Token {
	s := l.pos
	for l.pos < len(l.src) && isAlnum(l.peek()) {
		l.advance()
	}
	text := string(l.src[s:l.pos])
	kind := TokIdent
	if isKeyword(text) {
		kind = TokKeyword
	}
	return Token{Kind: kind, Lexeme: text, Span: l.span(start)}
}

func (l *Lexer) lexMarker(start int32) Token {
	l.advance() // '.'
	s := l.pos
	for l.pos < len(l.src) && isAlnum(l.peek()) {
		l.advance()
	}
	name := string(l.src[s:l.pos])
	return Token{Kind: TokMarker, Lexeme: name, Span: l.span(start)}
}

func (l *Lexer) lexNumber(start int32) Token {
	s := l.pos
	for l.pos < len(l.src) && isDigit(l.peek()) {
		l.advance()
	}
	isFloat := false
	if l.peek() == '.' && isDigit(l.peekAt(1)) {
		isFloat = true
		l.advance()
		for l.pos < len(l.src) && isDigit(l.peek()) {
			l.advance()
		}
	}
	if l.peek() == 'e' || l.peek() == 'E' {
		save := l.pos
		l.advance()
		if l.peek() == '+' || l.peek() == '-' {
			l.advance()
		}
		if isDigit(l.peek()) {
			isFloat = true
			for l.pos < len(l.src) && isDigit(l.peek()) {
				l.advance()
			}
		} else {
			l.pos = save
		}
	}
	text := string(l.src[s:l.pos])
	if isFloat {
		return Token{Kind: TokFloat, Lexeme: text, FltVal: parseFloat(text), Span: l.span(start)}
	}
	return Token{Kind: TokInt, Lexeme: text, IntVal: parseInt(text), Span: l.span(start)}
}

func parseInt(s string) int64 {
	var v int64
	for i := 0; i < len(s); i++ {
		v = v*10 + int64(s[i]-'0')
	}
	return v
}

func parseFloat(s string) float64 {
	var mantissa float64
	i := 0
	for; i < len(s) && isDigit(s[i]); i++ {
		mantissa = mantissa*10 + float64(s[i]-'0')
	}
	if i < len(s) && s[i] == '.' {
		i++
		frac := 0.1
		for; i < len(s) && isDigit(s[i]); i++ {
			mantissa += float64(s[i]-'0') * frac
			frac /= 10
		}
	}
	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		i++
		sign := 1.0
		if i < len(s) && (s[i] == '+' || s[i] == '-') {
			if s[i] == '-' {
				sign = -1.0
			}
			i++
		}
		exp := 0.0
		for; i < len(s) && isDigit(s[i]); i++ {
			exp = exp*10 + float64(s[i]-'0')
		}
		for e := 0.0; e < exp; e++ {
			if sign > 0 {
				mantissa *= 10
			} else {
				mantissa /= 10
			}
		}
	}
	return mantissa
}

func (l *Lexer) lexString(start int32) Token {
	l.advance() // opening quote
	var b strings.Builder
	terminated := false
	for l.pos < len(l.src) {
		c := l.peek()
		if c == '"' {
			l.advance()
			terminated = true
			break
		}
		if c == '\n' {
			break
		}
		if c == '\\' {
			l.advance()
			esc := l.peek()
			switch esc {
			case 'n':
				b.WriteByte('\n')
			case 'r':
				b.WriteByte('\r')
			case 't':
				b.WriteByte('\t')
			case '\\':
				b.WriteByte('\\')
			case '"':
				b.WriteByte('"')
			case '0':
				b.WriteByte(0)
			default:
				l.diags.AddError(NewLexicalError("invalid escape sequence", l.span(l.here())))
			}
			l.advance()
			continue
		}
		b.WriteByte(c)
		l.advance()
	}
	if !terminated {
		l.diags.AddError(NewLexicalError("unterminated string literal", l.span(start)))
	}
	return Token{Kind: TokString, Lexeme: b.String(), StrVal: b.String(), Span: l.span(start)}
}

// multiCharOperators lists every operator lexeme longer than one byte,
// ordered longest-first so greedy matching wins over prefixes.
var multiCharOperators = []string{
	"**=", "**", "++", "--", "->", "+=", "-=", "*=", "/=", "%=", "^=",
	"==", "!=", "<=", ">=", "&&", "||", "..",
}

func (l *Lexer) lexOperatorOrPunct(start int32) (Token, bool) {
	rest := l.src[l.pos:]
	for _, op := range multiCharOperators {
		if len(rest) >= len(op) && string(rest[:len(op)]) == op {
			for range op {
				l.advance()
			}
			return Token{Kind: TokOperator, Lexeme: op, Span: l.span(start)}, true
		}
	}
	c := l.advance()
	switch c {
	case '+', '-', '*', '/', '%', '^', '<', '>', '=', '!':
		return Token{Kind: TokOperator, Lexeme: string(c), Span: l.span(start)}, true
	case '(', ')', '{', '}', '[', ']', ',', ':', '.':
		return Token{Kind: TokPunct, Lexeme: string(c), Span: l.span(start)}, true
	default:
		l.diags.AddError(NewLexicalError("unrecognized punctuation", l.span(start)))
		return Token{}, false
	}
}
