package parser

import (
	"pythia/internal/ast"
	"pythia/internal/diag"
	"pythia/internal/source"
	"pythia/internal/token"
)

// parseExprOrTuple разбирает выражение и собирает голый кортеж `a, b, c`.
func (p *Parser) parseExprOrTuple() ast.ExprID {
	first := p.parseExpr()
	if !p.at(token.Comma) {
		return first
	}
	elems := []ast.ExprID{first}
	span := p.exprSpan(first)
	for {
		if _, ok := p.eat(token.Comma); !ok {
			break
		}
		if p.endsExpr() {
			break // висячая запятая: `a, b,`
		}
		elem := p.parseExpr()
		elems = append(elems, elem)
		span = span.Cover(p.exprSpan(elem))
	}
	return p.arenas.Exprs.NewTuple(span, elems)
}

// parseExpr is the entry point of the precedence chain:
// lambda / ternary -> or -> and -> not -> comparison -> | -> ^ -> & ->
// additive -> multiplicative -> unary -> power -> trailers -> atom.
func (p *Parser) parseExpr() ast.ExprID {
	if p.at(token.KwLambda) {
		return p.parseLambda()
	}
	then := p.parseOr()
	if !p.at(token.KwIf) {
		return then
	}
	// тернарник: `a if cond else b`
	p.next()
	cond := p.parseOr()
	if _, ok := p.expect(token.KwElse, diag.SynUnexpectedToken, "expected 'else' in conditional expression"); !ok {
		return p.arenas.Exprs.NewError(p.exprSpan(then).Cover(p.prevSpan()))
	}
	els := p.parseExpr()
	span := p.exprSpan(then).Cover(p.exprSpan(els))
	return p.arenas.Exprs.NewIf(span, cond, then, els)
}

func (p *Parser) parseLambda() ast.ExprID {
	start := p.next().Span // lambda
	var params []ast.Param
	for !p.at(token.Colon) && !p.at(token.EOF) {
		nameTok, ok := p.expect(token.Ident, diag.SynExpectParam, "expected parameter name")
		if !ok {
			break
		}
		param := ast.Param{Name: p.intern(nameTok.Text), Span: nameTok.Span}
		if _, ok := p.eat(token.Assign); ok {
			param.Default = p.parseExpr()
		}
		params = append(params, param)
		if _, ok := p.eat(token.Comma); !ok {
			break
		}
	}
	if _, ok := p.expect(token.Colon, diag.SynExpectColon, "expected ':' after lambda parameters"); !ok {
		return p.arenas.Exprs.NewError(start.Cover(p.prevSpan()))
	}
	body := p.parseExpr()
	return p.arenas.Exprs.NewLambda(start.Cover(p.exprSpan(body)), params, body)
}

func (p *Parser) parseOr() ast.ExprID {
	first := p.parseAnd()
	if !p.at(token.KwOr) {
		return first
	}
	values := []ast.ExprID{first}
	for {
		if _, ok := p.eat(token.KwOr); !ok {
			break
		}
		values = append(values, p.parseAnd())
	}
	span := p.exprSpan(first).Cover(p.exprSpan(values[len(values)-1]))
	return p.arenas.Exprs.NewBool(span, ast.BoolOr, values)
}

func (p *Parser) parseAnd() ast.ExprID {
	first := p.parseNot()
	if !p.at(token.KwAnd) {
		return first
	}
	values := []ast.ExprID{first}
	for {
		if _, ok := p.eat(token.KwAnd); !ok {
			break
		}
		values = append(values, p.parseNot())
	}
	span := p.exprSpan(first).Cover(p.exprSpan(values[len(values)-1]))
	return p.arenas.Exprs.NewBool(span, ast.BoolAnd, values)
}

func (p *Parser) parseNot() ast.ExprID {
	if tok, ok := p.eat(token.KwNot); ok {
		operand := p.parseNot()
		return p.arenas.Exprs.NewUnary(tok.Span.Cover(p.exprSpan(operand)), ast.UnaryNot, operand)
	}
	return p.parseComparison()
}

func (p *Parser) parseComparison() ast.ExprID {
	left := p.parseBitOr()
	var ops []ast.CmpOp
	var comparators []ast.ExprID
	for {
		op, ok := p.eatCmpOp()
		if !ok {
			break
		}
		ops = append(ops, op)
		comparators = append(comparators, p.parseBitOr())
	}
	if len(ops) == 0 {
		return left
	}
	span := p.exprSpan(left).Cover(p.exprSpan(comparators[len(comparators)-1]))
	return p.arenas.Exprs.NewCompare(span, left, ops, comparators)
}

// eatCmpOp съедает оператор сравнения, включая двухсловные `is not` и
// `not in`.
func (p *Parser) eatCmpOp() (ast.CmpOp, bool) {
	switch p.peekKind() {
	case token.EqEq:
		p.next()
		return ast.CmpEq, true
	case token.BangEq:
		p.next()
		return ast.CmpNotEq, true
	case token.Lt:
		p.next()
		return ast.CmpLt, true
	case token.LtEq:
		p.next()
		return ast.CmpLtE, true
	case token.Gt:
		p.next()
		return ast.CmpGt, true
	case token.GtEq:
		p.next()
		return ast.CmpGtE, true
	case token.KwIs:
		p.next()
		if _, ok := p.eat(token.KwNot); ok {
			return ast.CmpIsNot, true
		}
		return ast.CmpIs, true
	case token.KwIn:
		if p.noIn {
			return 0, false
		}
		p.next()
		return ast.CmpIn, true
	case token.KwNot:
		if p.peekAhead(1).Kind == token.KwIn {
			p.next()
			p.next()
			return ast.CmpNotIn, true
		}
		return 0, false
	default:
		return 0, false
	}
}

func (p *Parser) parseBitOr() ast.ExprID {
	left := p.parseBitXor()
	for {
		if _, ok := p.eat(token.Pipe); !ok {
			return left
		}
		right := p.parseBitXor()
		left = p.arenas.Exprs.NewBinary(p.exprSpan(left).Cover(p.exprSpan(right)), ast.BinBitOr, left, right)
	}
}

func (p *Parser) parseBitXor() ast.ExprID {
	left := p.parseBitAnd()
	for {
		if _, ok := p.eat(token.Caret); !ok {
			return left
		}
		right := p.parseBitAnd()
		left = p.arenas.Exprs.NewBinary(p.exprSpan(left).Cover(p.exprSpan(right)), ast.BinBitXor, left, right)
	}
}

func (p *Parser) parseBitAnd() ast.ExprID {
	left := p.parseAdditive()
	for {
		if _, ok := p.eat(token.Amp); !ok {
			return left
		}
		right := p.parseAdditive()
		left = p.arenas.Exprs.NewBinary(p.exprSpan(left).Cover(p.exprSpan(right)), ast.BinBitAnd, left, right)
	}
}

func (p *Parser) parseAdditive() ast.ExprID {
	left := p.parseMultiplicative()
	for {
		var op ast.BinaryOp
		switch p.peekKind() {
		case token.Plus:
			op = ast.BinAdd
		case token.Minus:
			op = ast.BinSub
		default:
			return left
		}
		p.next()
		right := p.parseMultiplicative()
		left = p.arenas.Exprs.NewBinary(p.exprSpan(left).Cover(p.exprSpan(right)), op, left, right)
	}
}

func (p *Parser) parseMultiplicative() ast.ExprID {
	left := p.parseUnary()
	for {
		var op ast.BinaryOp
		switch p.peekKind() {
		case token.Star:
			op = ast.BinMul
		case token.Slash:
			op = ast.BinDiv
		case token.DoubleSlash:
			op = ast.BinFloorDiv
		case token.Percent:
			op = ast.BinMod
		default:
			return left
		}
		p.next()
		right := p.parseUnary()
		left = p.arenas.Exprs.NewBinary(p.exprSpan(left).Cover(p.exprSpan(right)), op, left, right)
	}
}

func (p *Parser) parseUnary() ast.ExprID {
	var op ast.UnaryOp
	switch p.peekKind() {
	case token.Minus:
		op = ast.UnaryNeg
	case token.Plus:
		op = ast.UnaryPos
	case token.Tilde:
		op = ast.UnaryInvert
	default:
		return p.parsePower()
	}
	tok := p.next()
	operand := p.parseUnary()
	return p.arenas.Exprs.NewUnary(tok.Span.Cover(p.exprSpan(operand)), op, operand)
}

// parsePower: `**` правоассоциативен и сильнее унарного минуса справа.
func (p *Parser) parsePower() ast.ExprID {
	base := p.parseTrailers(p.parseAtom())
	if _, ok := p.eat(token.DoubleStar); !ok {
		return base
	}
	exp := p.parseUnary()
	return p.arenas.Exprs.NewBinary(p.exprSpan(base).Cover(p.exprSpan(exp)), ast.BinPow, base, exp)
}

// parseTrailers накручивает `.attr`, `(args)` и `[index]` на атом.
func (p *Parser) parseTrailers(expr ast.ExprID) ast.ExprID {
	for {
		switch p.peekKind() {
		case token.Dot:
			p.next()
			nameTok, ok := p.expect(token.Ident, diag.SynExpectIdentifier, "expected attribute name after '.'")
			if !ok {
				return p.arenas.Exprs.NewError(p.exprSpan(expr).Cover(p.prevSpan()))
			}
			span := p.exprSpan(expr).Cover(nameTok.Span)
			expr = p.arenas.Exprs.NewAttr(span, expr, p.intern(nameTok.Text), nameTok.Span)
		case token.LParen:
			expr = p.parseCall(expr)
		case token.LBracket:
			p.next()
			index := p.parseExprOrTuple()
			end, _ := p.expect(token.RBracket, diag.SynUnclosedDelim, "expected ']'")
			span := p.exprSpan(expr).Cover(end.Span)
			expr = p.arenas.Exprs.NewSubscript(span, expr, index)
		default:
			return expr
		}
	}
}

func (p *Parser) parseCall(callee ast.ExprID) ast.ExprID {
	p.next() // '('
	var args []ast.ExprID
	var kwNames []source.StringID
	var kwValues []ast.ExprID
	for !p.at(token.RParen) && !p.at(token.EOF) {
		switch {
		case p.at(token.Star):
			star := p.next()
			value := p.parseExpr()
			args = append(args, p.arenas.Exprs.NewStar(star.Span.Cover(p.exprSpan(value)), value))
		case p.at(token.DoubleStar):
			// **kwargs в вызове: значение разбираем, адресата не моделируем
			p.next()
			p.parseExpr()
		case p.at(token.Ident) && p.peekAhead(1).Kind == token.Assign:
			nameTok := p.next()
			p.next() // '='
			kwNames = append(kwNames, p.intern(nameTok.Text))
			kwValues = append(kwValues, p.parseExpr())
		default:
			arg := p.parseExpr()
			if len(kwNames) > 0 {
				p.reportAt(diag.SynUnexpectedToken, p.exprSpan(arg), "positional argument follows keyword argument")
			}
			args = append(args, arg)
		}
		if _, ok := p.eat(token.Comma); !ok {
			break
		}
	}
	end, _ := p.expect(token.RParen, diag.SynUnclosedDelim, "expected ')'")
	span := p.exprSpan(callee).Cover(end.Span)
	return p.arenas.Exprs.NewCall(span, callee, args, kwNames, kwValues)
}

func (p *Parser) parseAtom() ast.ExprID {
	tok := p.peek()
	switch tok.Kind {
	case token.Ident:
		p.next()
		return p.arenas.Exprs.NewName(tok.Span, p.intern(tok.Text))
	case token.IntLit:
		p.next()
		return p.arenas.Exprs.NewLiteral(tok.Span, ast.LitInt, p.intern(tok.Text))
	case token.FloatLit:
		p.next()
		return p.arenas.Exprs.NewLiteral(tok.Span, ast.LitFloat, p.intern(tok.Text))
	case token.StringLit:
		p.next()
		return p.arenas.Exprs.NewLiteral(tok.Span, ast.LitStr, p.intern(tok.Text))
	case token.KwTrue:
		p.next()
		return p.arenas.Exprs.NewLiteral(tok.Span, ast.LitTrue, p.intern(tok.Text))
	case token.KwFalse:
		p.next()
		return p.arenas.Exprs.NewLiteral(tok.Span, ast.LitFalse, p.intern(tok.Text))
	case token.KwNone:
		p.next()
		return p.arenas.Exprs.NewLiteral(tok.Span, ast.LitNone, p.intern(tok.Text))
	case token.LParen:
		return p.parseParenAtom()
	case token.LBracket:
		return p.parseListAtom()
	case token.LBrace:
		return p.parseDictAtom()
	case token.Star:
		p.next()
		value := p.parseExpr()
		return p.arenas.Exprs.NewStar(tok.Span.Cover(p.exprSpan(value)), value)
	default:
		p.reportHere(diag.SynExpectExpression, "expected an expression")
		p.next()
		return p.arenas.Exprs.NewError(tok.Span)
	}
}

// parseParenAtom: скобочная группа, либо кортеж `(a, b)`, либо пустой `()`.
func (p *Parser) parseParenAtom() ast.ExprID {
	start := p.next().Span // '('
	if tok, ok := p.eat(token.RParen); ok {
		return p.arenas.Exprs.NewTuple(start.Cover(tok.Span), nil)
	}
	first := p.parseExpr()
	if !p.at(token.Comma) {
		p.expect(token.RParen, diag.SynUnclosedDelim, "expected ')'")
		return first // простая группировка: скобки не порождают узел
	}
	elems := []ast.ExprID{first}
	for {
		if _, ok := p.eat(token.Comma); !ok {
			break
		}
		if p.at(token.RParen) {
			break
		}
		elems = append(elems, p.parseExpr())
	}
	end, _ := p.expect(token.RParen, diag.SynUnclosedDelim, "expected ')'")
	return p.arenas.Exprs.NewTuple(start.Cover(end.Span), elems)
}

func (p *Parser) parseListAtom() ast.ExprID {
	start := p.next().Span // '['
	var elems []ast.ExprID
	for !p.at(token.RBracket) && !p.at(token.EOF) {
		elems = append(elems, p.parseExpr())
		if _, ok := p.eat(token.Comma); !ok {
			break
		}
	}
	end, _ := p.expect(token.RBracket, diag.SynUnclosedDelim, "expected ']'")
	return p.arenas.Exprs.NewList(start.Cover(end.Span), elems)
}

func (p *Parser) parseDictAtom() ast.ExprID {
	start := p.next().Span // '{'
	var keys, values []ast.ExprID
	for !p.at(token.RBrace) && !p.at(token.EOF) {
		key := p.parseExpr()
		if _, ok := p.expect(token.Colon, diag.SynExpectColon, "expected ':' in dict literal"); !ok {
			break
		}
		keys = append(keys, key)
		values = append(values, p.parseExpr())
		if _, ok := p.eat(token.Comma); !ok {
			break
		}
	}
	end, _ := p.expect(token.RBrace, diag.SynUnclosedDelim, "expected '}'")
	return p.arenas.Exprs.NewDict(start.Cover(end.Span), keys, values)
}

// endsExpr reports whether the next token cannot start an expression.
func (p *Parser) endsExpr() bool {
	switch p.peekKind() {
	case token.Newline, token.EOF, token.Semicolon, token.Colon, token.Assign,
		token.RParen, token.RBracket, token.RBrace, token.KwIn,
		token.PlusAssign, token.MinusAssign, token.StarAssign, token.SlashAssign:
		return true
	}
	return false
}

func (p *Parser) exprSpan(id ast.ExprID) source.Span {
	if expr := p.arenas.Exprs.Get(id); expr != nil {
		return expr.Span
	}
	return p.peek().Span
}
