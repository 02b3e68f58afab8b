package lexer

import (
	"pythia/internal/token"
)

const utf8RuneSelf = 0x80

func isDec(ch byte) bool { return ch >= '0' && ch <= '9' }

func isIdentStartByte(ch byte) bool {
	return ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func isIdentContinueByte(ch byte) bool {
	return isIdentStartByte(ch) || isDec(ch)
}

// isStringStart распознаёт кавычку либо строковый префикс (r, b, f, u и пары).
func isStringStart(b0, b1, b2 byte) bool {
	if b0 == '"' || b0 == '\'' {
		return true
	}
	if !isStringPrefixByte(b0) {
		return false
	}
	if b1 == '"' || b1 == '\'' {
		return true
	}
	return isStringPrefixByte(b1) && (b2 == '"' || b2 == '\'')
}

func isStringPrefixByte(ch byte) bool {
	switch ch {
	case 'r', 'R', 'b', 'B', 'f', 'F', 'u', 'U':
		return true
	default:
		return false
	}
}

func (lx *Lexer) scanIdentOrKeyword() token.Token {
	start := lx.cursor.Off
	for !lx.cursor.EOF() {
		ch := lx.cursor.Peek()
		if isIdentContinueByte(ch) || ch >= utf8RuneSelf {
			lx.cursor.Bump()
			continue
		}
		break
	}
	text := lx.cursor.Text(start)
	if kind, ok := token.LookupKeyword(text); ok {
		return token.Token{Kind: kind, Span: lx.cursor.Span(start), Text: text}
	}
	return token.Token{Kind: token.Ident, Span: lx.cursor.Span(start), Text: text}
}

func (lx *Lexer) scanNumber() token.Token {
	start := lx.cursor.Off
	kind := token.IntLit

	if lx.cursor.Peek() == '0' && (lx.cursor.PeekAt(1) == 'x' || lx.cursor.PeekAt(1) == 'X' ||
		lx.cursor.PeekAt(1) == 'o' || lx.cursor.PeekAt(1) == 'O' ||
		lx.cursor.PeekAt(1) == 'b' || lx.cursor.PeekAt(1) == 'B') {
		lx.cursor.Bump()
		lx.cursor.Bump()
		digits := 0
		for !lx.cursor.EOF() && (isHex(lx.cursor.Peek()) || lx.cursor.Peek() == '_') {
			if lx.cursor.Peek() != '_' {
				digits++
			}
			lx.cursor.Bump()
		}
		if digits == 0 {
			lx.report(ReportBadNumber, lx.cursor.Span(start), "invalid numeric literal")
		}
		return token.Token{Kind: token.IntLit, Span: lx.cursor.Span(start), Text: lx.cursor.Text(start)}
	}

	for !lx.cursor.EOF() && (isDec(lx.cursor.Peek()) || lx.cursor.Peek() == '_') {
		lx.cursor.Bump()
	}
	if lx.cursor.Peek() == '.' && isDec(lx.cursor.PeekAt(1)) {
		kind = token.FloatLit
		lx.cursor.Bump()
		for !lx.cursor.EOF() && (isDec(lx.cursor.Peek()) || lx.cursor.Peek() == '_') {
			lx.cursor.Bump()
		}
	}
	if ch := lx.cursor.Peek(); ch == 'e' || ch == 'E' {
		next := lx.cursor.PeekAt(1)
		if isDec(next) || ((next == '+' || next == '-') && isDec(lx.cursor.PeekAt(2))) {
			kind = token.FloatLit
			lx.cursor.Bump()
			lx.cursor.Bump()
			for !lx.cursor.EOF() && isDec(lx.cursor.Peek()) {
				lx.cursor.Bump()
			}
		}
	}
	// число, слипшееся с идентом — ошибка, но токен всё равно выдаём
	if !lx.cursor.EOF() && isIdentStartByte(lx.cursor.Peek()) {
		bad := lx.cursor.Off
		for !lx.cursor.EOF() && isIdentContinueByte(lx.cursor.Peek()) {
			lx.cursor.Bump()
		}
		lx.report(ReportBadNumber, lx.cursor.Span(bad), "invalid suffix on numeric literal")
	}
	return token.Token{Kind: kind, Span: lx.cursor.Span(start), Text: lx.cursor.Text(start)}
}

func isHex(ch byte) bool {
	return isDec(ch) || (ch >= 'a' && ch <= 'f') || (ch >= 'A' && ch <= 'F') ||
		ch == '0' || ch == '1' || ch == '7' // octal/binary digits are a subset
}

func (lx *Lexer) scanString() token.Token {
	start := lx.cursor.Off
	raw := false
	for isStringPrefixByte(lx.cursor.Peek()) {
		if lx.cursor.Peek() == 'r' || lx.cursor.Peek() == 'R' {
			raw = true
		}
		lx.cursor.Bump()
	}
	quote := lx.cursor.Peek()
	lx.cursor.Bump()

	triple := false
	if lx.cursor.Peek() == quote && lx.cursor.PeekAt(1) == quote {
		triple = true
		lx.cursor.Bump()
		lx.cursor.Bump()
	}

	var value []byte
	for {
		if lx.cursor.EOF() {
			lx.report(ReportUnterminatedString, lx.cursor.Span(start), "unterminated string literal")
			break
		}
		ch := lx.cursor.Peek()
		if ch == '\n' && !triple {
			lx.report(ReportUnterminatedString, lx.cursor.Span(start), "unterminated string literal")
			break
		}
		if ch == '\\' && !raw {
			lx.cursor.Bump()
			if !lx.cursor.EOF() {
				value = append(value, unescape(lx.cursor.Peek()))
				lx.cursor.Bump()
			}
			continue
		}
		if ch == quote {
			if !triple {
				lx.cursor.Bump()
				break
			}
			if lx.cursor.PeekAt(1) == quote && lx.cursor.PeekAt(2) == quote {
				lx.cursor.Bump()
				lx.cursor.Bump()
				lx.cursor.Bump()
				break
			}
		}
		value = append(value, ch)
		lx.cursor.Bump()
	}
	return token.Token{Kind: token.StringLit, Span: lx.cursor.Span(start), Text: string(value)}
}

func unescape(ch byte) byte {
	switch ch {
	case 'n':
		return '\n'
	case 't':
		return '\t'
	case 'r':
		return '\r'
	case '0':
		return 0
	default:
		return ch
	}
}

func (lx *Lexer) scanOperatorOrPunct() token.Token {
	start := lx.cursor.Off
	ch := lx.cursor.Peek()
	lx.cursor.Bump()

	two := func(next byte, k2, k1 token.Kind) token.Kind {
		if lx.cursor.Peek() == next {
			lx.cursor.Bump()
			return k2
		}
		return k1
	}

	var kind token.Kind
	switch ch {
	case '+':
		kind = two('=', token.PlusAssign, token.Plus)
	case '-':
		if lx.cursor.Peek() == '>' {
			lx.cursor.Bump()
			kind = token.Arrow
		} else {
			kind = two('=', token.MinusAssign, token.Minus)
		}
	case '*':
		if lx.cursor.Peek() == '*' {
			lx.cursor.Bump()
			kind = token.DoubleStar
		} else {
			kind = two('=', token.StarAssign, token.Star)
		}
	case '/':
		if lx.cursor.Peek() == '/' {
			lx.cursor.Bump()
			kind = token.DoubleSlash
		} else {
			kind = two('=', token.SlashAssign, token.Slash)
		}
	case '%':
		kind = token.Percent
	case '=':
		kind = two('=', token.EqEq, token.Assign)
	case '!':
		if lx.cursor.Peek() == '=' {
			lx.cursor.Bump()
			kind = token.BangEq
		} else {
			lx.report(ReportUnknownChar, lx.cursor.Span(start), "unexpected character '!'")
			kind = token.Invalid
		}
	case '<':
		kind = two('=', token.LtEq, token.Lt)
	case '>':
		kind = two('=', token.GtEq, token.Gt)
	case '(':
		lx.depth++
		kind = token.LParen
	case ')':
		lx.closeDelim()
		kind = token.RParen
	case '[':
		lx.depth++
		kind = token.LBracket
	case ']':
		lx.closeDelim()
		kind = token.RBracket
	case '{':
		lx.depth++
		kind = token.LBrace
	case '}':
		lx.closeDelim()
		kind = token.RBrace
	case ',':
		kind = token.Comma
	case ':':
		kind = token.Colon
	case ';':
		kind = token.Semicolon
	case '.':
		kind = token.Dot
	case '@':
		kind = token.At
	case '|':
		kind = token.Pipe
	case '&':
		kind = token.Amp
	case '^':
		kind = token.Caret
	case '~':
		kind = token.Tilde
	default:
		lx.report(ReportUnknownChar, lx.cursor.Span(start), "unexpected character")
		kind = token.Invalid
	}
	return token.Token{Kind: kind, Span: lx.cursor.Span(start), Text: lx.cursor.Text(start)}
}

func (lx *Lexer) closeDelim() {
	if lx.depth > 0 {
		lx.depth--
	}
}
