package parser

import (
	"pythia/internal/ast"
	"pythia/internal/diag"
	"pythia/internal/source"
	"pythia/internal/token"
)

func (p *Parser) parseModule() {
	var body []ast.StmtID
	for !p.at(token.EOF) {
		if _, ok := p.eat(token.Newline); ok {
			continue
		}
		if p.at(token.Indent) || p.at(token.Dedent) {
			// рассинхрон после ошибки — съедаем и продолжаем
			p.next()
			continue
		}
		p.parseStatement(&body)
	}
	for _, stmt := range body {
		p.arenas.PushStmt(p.file, stmt)
	}
}

// parseStatement appends one or more statements (`a = 1; b = 2` is several)
// to the caller's body.
func (p *Parser) parseStatement(out *[]ast.StmtID) {
	var stmt ast.StmtID
	switch p.peekKind() {
	case token.KwIf:
		stmt = p.parseIf()
	case token.KwWhile:
		stmt = p.parseWhile()
	case token.KwFor:
		stmt = p.parseFor()
	case token.KwDef:
		stmt = p.parseDef(nil)
	case token.KwClass:
		stmt = p.parseClass(nil)
	case token.At:
		stmt = p.parseDecorated()
	case token.KwTry:
		stmt = p.parseTry()
	case token.KwWith:
		stmt = p.parseWith()
	default:
		p.parseSimpleLine(out)
		return
	}
	if stmt.IsValid() {
		*out = append(*out, stmt)
	}
}

// parseSimpleLine разбирает однострочные операторы через ';' до конца
// логической строки.
func (p *Parser) parseSimpleLine(out *[]ast.StmtID) {
	for {
		stmt := p.parseSmallStatement()
		if stmt.IsValid() {
			*out = append(*out, stmt)
		}
		if _, ok := p.eat(token.Semicolon); !ok {
			break
		}
		if p.at(token.Newline) || p.at(token.EOF) {
			break
		}
	}
	p.expectEndOfLine()
}

func (p *Parser) parseSmallStatement() ast.StmtID {
	start := p.peek().Span
	switch p.peekKind() {
	case token.KwPass:
		p.next()
		return p.arenas.Stmts.NewPass(start)
	case token.KwBreak:
		p.next()
		return p.arenas.Stmts.NewBreak(start)
	case token.KwContinue:
		p.next()
		return p.arenas.Stmts.NewContinue(start)
	case token.KwReturn:
		p.next()
		value := ast.NoExprID
		if !p.at(token.Newline) && !p.at(token.EOF) && !p.at(token.Semicolon) {
			value = p.parseExprOrTuple()
		}
		return p.arenas.Stmts.NewReturn(start.Cover(p.prevSpan()), value)
	case token.KwRaise:
		p.next()
		exc := ast.NoExprID
		if !p.at(token.Newline) && !p.at(token.EOF) {
			exc = p.parseExpr()
		}
		return p.arenas.Stmts.NewRaise(start.Cover(p.prevSpan()), exc)
	case token.KwImport:
		return p.parseImport()
	case token.KwFrom:
		return p.parseImportFrom()
	case token.KwGlobal, token.KwNonlocal:
		return p.parseNameDecl()
	case token.KwAssert:
		p.next()
		cond := p.parseExpr()
		msg := ast.NoExprID
		if _, ok := p.eat(token.Comma); ok {
			msg = p.parseExpr()
		}
		return p.arenas.Stmts.NewAssert(start.Cover(p.prevSpan()), cond, msg)
	case token.KwDel:
		// удаление имени анализатору не интересно, но дерево должно его пережить
		p.next()
		p.parseExprOrTuple()
		return p.arenas.Stmts.NewPass(start.Cover(p.prevSpan()))
	default:
		return p.parseExprStatement()
	}
}

func (p *Parser) parseExprStatement() ast.StmtID {
	start := p.peek().Span
	first := p.parseExprOrTuple()
	if first == ast.NoExprID {
		p.syncToNewline()
		return p.arenas.Stmts.NewError(start)
	}

	switch p.peekKind() {
	case token.Colon:
		// аннотация: `x: T` или `x: T = v`
		p.next()
		ann := p.parseExpr()
		value := ast.NoExprID
		if _, ok := p.eat(token.Assign); ok {
			value = p.parseExprOrTuple()
		}
		return p.arenas.Stmts.NewAssign(start.Cover(p.prevSpan()), []ast.ExprID{first}, ann, value)

	case token.Assign:
		targets := []ast.ExprID{first}
		var value ast.ExprID
		for {
			p.next() // '='
			value = p.parseExprOrTuple()
			if !p.at(token.Assign) {
				break
			}
			targets = append(targets, value)
		}
		p.checkAssignTargets(targets)
		return p.arenas.Stmts.NewAssign(start.Cover(p.prevSpan()), targets, ast.NoExprID, value)

	case token.PlusAssign, token.MinusAssign, token.StarAssign, token.SlashAssign:
		op := augOp(p.peekKind())
		p.next()
		value := p.parseExprOrTuple()
		p.checkAssignTargets([]ast.ExprID{first})
		return p.arenas.Stmts.NewAugAssign(start.Cover(p.prevSpan()), first, op, value)

	default:
		return p.arenas.Stmts.NewExpr(start.Cover(p.prevSpan()), first)
	}
}

func augOp(k token.Kind) ast.BinaryOp {
	switch k {
	case token.PlusAssign:
		return ast.BinAdd
	case token.MinusAssign:
		return ast.BinSub
	case token.StarAssign:
		return ast.BinMul
	default:
		return ast.BinDiv
	}
}

func (p *Parser) checkAssignTargets(targets []ast.ExprID) {
	for _, t := range targets {
		expr := p.arenas.Exprs.Get(t)
		if expr == nil {
			continue
		}
		switch expr.Kind {
		case ast.ExprName, ast.ExprAttr, ast.ExprSubscript, ast.ExprTuple, ast.ExprList, ast.ExprStar, ast.ExprError:
		default:
			p.reportAt(diag.SynBadAssignTarget, expr.Span, "cannot assign to this expression")
		}
	}
}

func (p *Parser) parseIf() ast.StmtID {
	start := p.next().Span // if / elif
	cond := p.parseExpr()
	then := p.parseSuite()

	var els []ast.StmtID
	switch p.peekKind() {
	case token.KwElif:
		els = []ast.StmtID{p.parseIf()}
	case token.KwElse:
		p.next()
		els = p.parseSuite()
	}
	return p.arenas.Stmts.NewIf(start.Cover(p.prevSpan()), cond, then, els)
}

func (p *Parser) parseWhile() ast.StmtID {
	start := p.next().Span
	cond := p.parseExpr()
	body := p.parseSuite()
	var els []ast.StmtID
	if _, ok := p.eat(token.KwElse); ok {
		els = p.parseSuite()
	}
	return p.arenas.Stmts.NewWhile(start.Cover(p.prevSpan()), cond, body, els)
}

func (p *Parser) parseFor() ast.StmtID {
	start := p.next().Span
	p.noIn = true
	target := p.parseExprOrTuple()
	p.noIn = false
	if _, ok := p.expect(token.KwIn, diag.SynUnexpectedToken, "expected 'in' in for statement"); !ok {
		p.syncToNewline()
		return p.arenas.Stmts.NewError(start)
	}
	iter := p.parseExprOrTuple()
	body := p.parseSuite()
	var els []ast.StmtID
	if _, ok := p.eat(token.KwElse); ok {
		els = p.parseSuite()
	}
	return p.arenas.Stmts.NewFor(start.Cover(p.prevSpan()), target, iter, body, els)
}

func (p *Parser) parseDecorated() ast.StmtID {
	var decorators []ast.ExprID
	for p.at(token.At) {
		p.next()
		decorators = append(decorators, p.parseExpr())
		p.expectEndOfLine()
	}
	switch p.peekKind() {
	case token.KwDef:
		return p.parseDef(decorators)
	case token.KwClass:
		return p.parseClass(decorators)
	default:
		p.reportHere(diag.SynUnexpectedToken, "expected 'def' or 'class' after decorators")
		p.syncToNewline()
		return p.arenas.Stmts.NewError(p.peek().Span)
	}
}

func (p *Parser) parseDef(decorators []ast.ExprID) ast.StmtID {
	start := p.next().Span // def
	nameTok, ok := p.expect(token.Ident, diag.SynExpectIdentifier, "expected function name")
	if !ok {
		p.syncToNewline()
		return p.arenas.Stmts.NewError(start)
	}

	params := p.parseParams()
	returns := ast.NoExprID
	if _, ok := p.eat(token.Arrow); ok {
		returns = p.parseExpr()
	}
	body := p.parseSuite()

	return p.arenas.Stmts.NewDef(start.Cover(p.prevSpan()), ast.StmtDefData{
		Name:       p.intern(nameTok.Text),
		NameSpan:   nameTok.Span,
		Params:     params,
		Returns:    returns,
		Body:       body,
		Decorators: decorators,
	})
}

func (p *Parser) parseParams() []ast.Param {
	if _, ok := p.expect(token.LParen, diag.SynUnexpectedToken, "expected '('"); !ok {
		return nil
	}
	var params []ast.Param
	for !p.at(token.RParen) && !p.at(token.EOF) {
		// *args / **kwargs: звёздность для вывода типов не моделируем
		for p.at(token.Star) || p.at(token.DoubleStar) {
			p.next()
		}
		if p.at(token.RParen) {
			break
		}
		nameTok, ok := p.expect(token.Ident, diag.SynExpectParam, "expected parameter name")
		if !ok {
			p.next()
			continue
		}
		param := ast.Param{Name: p.intern(nameTok.Text), Span: nameTok.Span}
		if _, ok := p.eat(token.Colon); ok {
			param.Ann = p.parseExpr()
		}
		if _, ok := p.eat(token.Assign); ok {
			param.Default = p.parseExpr()
		}
		params = append(params, param)
		if _, ok := p.eat(token.Comma); !ok {
			break
		}
	}
	p.expect(token.RParen, diag.SynUnclosedDelim, "expected ')'")
	return params
}

func (p *Parser) parseClass(decorators []ast.ExprID) ast.StmtID {
	start := p.next().Span // class
	nameTok, ok := p.expect(token.Ident, diag.SynExpectIdentifier, "expected class name")
	if !ok {
		p.syncToNewline()
		return p.arenas.Stmts.NewError(start)
	}

	var bases []ast.ExprID
	if _, ok := p.eat(token.LParen); ok {
		for !p.at(token.RParen) && !p.at(token.EOF) {
			// keyword-аргументы вида metaclass=... пропускаем
			if p.at(token.Ident) && p.peekAhead(1).Kind == token.Assign {
				p.next()
				p.next()
				p.parseExpr()
			} else {
				bases = append(bases, p.parseExpr())
			}
			if _, ok := p.eat(token.Comma); !ok {
				break
			}
		}
		p.expect(token.RParen, diag.SynUnclosedDelim, "expected ')'")
	}
	body := p.parseSuite()

	return p.arenas.Stmts.NewClass(start.Cover(p.prevSpan()), ast.StmtClassData{
		Name:       p.intern(nameTok.Text),
		NameSpan:   nameTok.Span,
		Bases:      bases,
		Body:       body,
		Decorators: decorators,
	})
}

func (p *Parser) parseTry() ast.StmtID {
	start := p.next().Span
	body := p.parseSuite()

	var handlers []ast.ExceptHandler
	for p.at(token.KwExcept) {
		p.next()
		handler := ast.ExceptHandler{}
		if !p.at(token.Colon) {
			handler.Type = p.parseExpr()
			if _, ok := p.eat(token.KwAs); ok {
				if nameTok, ok := p.expect(token.Ident, diag.SynExpectIdentifier, "expected name after 'as'"); ok {
					handler.Name = p.intern(nameTok.Text)
					handler.NameSpan = nameTok.Span
				}
			}
		}
		handler.Body = p.parseSuite()
		handlers = append(handlers, handler)
	}

	var els, finally []ast.StmtID
	if _, ok := p.eat(token.KwElse); ok {
		els = p.parseSuite()
	}
	if _, ok := p.eat(token.KwFinally); ok {
		finally = p.parseSuite()
	}
	return p.arenas.Stmts.NewTry(start.Cover(p.prevSpan()), ast.StmtTryData{
		Body:     body,
		Handlers: handlers,
		Else:     els,
		Finally:  finally,
	})
}

func (p *Parser) parseWith() ast.StmtID {
	start := p.next().Span
	var items []ast.WithItem
	for {
		item := ast.WithItem{Ctx: p.parseExpr()}
		if _, ok := p.eat(token.KwAs); ok {
			if nameTok, ok := p.expect(token.Ident, diag.SynExpectIdentifier, "expected name after 'as'"); ok {
				item.As = p.intern(nameTok.Text)
				item.AsSpan = nameTok.Span
			}
		}
		items = append(items, item)
		if _, ok := p.eat(token.Comma); !ok {
			break
		}
	}
	body := p.parseSuite()
	return p.arenas.Stmts.NewWith(start.Cover(p.prevSpan()), ast.StmtWithData{Items: items, Body: body})
}

func (p *Parser) parseImport() ast.StmtID {
	start := p.next().Span // import
	var names []ast.ImportAlias
	for {
		module, span, ok := p.parseDottedName()
		if !ok {
			p.syncToNewline()
			return p.arenas.Stmts.NewError(start)
		}
		alias := ast.ImportAlias{Name: module, Span: span}
		if _, ok := p.eat(token.KwAs); ok {
			if nameTok, ok := p.expect(token.Ident, diag.SynExpectIdentifier, "expected name after 'as'"); ok {
				alias.Asname = p.intern(nameTok.Text)
			}
		}
		names = append(names, alias)
		if _, ok := p.eat(token.Comma); !ok {
			break
		}
	}
	return p.arenas.Stmts.NewImport(start.Cover(p.prevSpan()), names)
}

func (p *Parser) parseImportFrom() ast.StmtID {
	start := p.next().Span // from
	level := uint8(0)
	for p.at(token.Dot) {
		p.next()
		level++
	}
	module := source.NoStringID
	if p.at(token.Ident) {
		mod, _, ok := p.parseDottedName()
		if !ok {
			p.syncToNewline()
			return p.arenas.Stmts.NewError(start)
		}
		module = mod
	} else if level == 0 {
		p.reportHere(diag.SynExpectModuleName, "expected module name after 'from'")
		p.syncToNewline()
		return p.arenas.Stmts.NewError(start)
	}

	if _, ok := p.expect(token.KwImport, diag.SynUnexpectedToken, "expected 'import'"); !ok {
		p.syncToNewline()
		return p.arenas.Stmts.NewError(start)
	}

	data := ast.StmtImportFromData{Module: module, Level: level}
	if _, ok := p.eat(token.Star); ok {
		data.Star = true
	} else {
		parens := false
		if _, ok := p.eat(token.LParen); ok {
			parens = true
		}
		for {
			nameTok, ok := p.expect(token.Ident, diag.SynExpectIdentifier, "expected imported name")
			if !ok {
				break
			}
			alias := ast.ImportAlias{Name: p.intern(nameTok.Text), Span: nameTok.Span}
			if _, ok := p.eat(token.KwAs); ok {
				if asTok, ok := p.expect(token.Ident, diag.SynExpectIdentifier, "expected name after 'as'"); ok {
					alias.Asname = p.intern(asTok.Text)
				}
			}
			data.Names = append(data.Names, alias)
			if _, ok := p.eat(token.Comma); !ok {
				break
			}
			if parens && p.at(token.RParen) {
				break
			}
		}
		if parens {
			p.expect(token.RParen, diag.SynUnclosedDelim, "expected ')'")
		}
	}
	return p.arenas.Stmts.NewImportFrom(start.Cover(p.prevSpan()), data)
}

func (p *Parser) parseDottedName() (source.StringID, source.Span, bool) {
	nameTok, ok := p.expect(token.Ident, diag.SynExpectModuleName, "expected module name")
	if !ok {
		return source.NoStringID, p.peek().Span, false
	}
	full := nameTok.Text
	span := nameTok.Span
	for p.at(token.Dot) && p.peekAhead(1).Kind == token.Ident {
		p.next()
		seg := p.next()
		full += "." + seg.Text
		span = span.Cover(seg.Span)
	}
	return p.intern(full), span, true
}

func (p *Parser) parseNameDecl() ast.StmtID {
	kw := p.next() // global / nonlocal
	var names []source.StringID
	for {
		nameTok, ok := p.expect(token.Ident, diag.SynExpectIdentifier, "expected name")
		if !ok {
			break
		}
		names = append(names, p.intern(nameTok.Text))
		if _, ok := p.eat(token.Comma); !ok {
			break
		}
	}
	span := kw.Span.Cover(p.prevSpan())
	if kw.Kind == token.KwGlobal {
		return p.arenas.Stmts.NewGlobal(span, names)
	}
	return p.arenas.Stmts.NewNonlocal(span, names)
}

// parseSuite разбирает `:` и тело: либо блок с отступом, либо простые
// операторы на той же строке.
func (p *Parser) parseSuite() []ast.StmtID {
	if _, ok := p.expect(token.Colon, diag.SynExpectColon, "expected ':'"); !ok {
		p.syncToNewline()
		return nil
	}

	// однострочный вариант: `if x: y = 1`
	if !p.at(token.Newline) {
		var body []ast.StmtID
		p.parseSimpleLine(&body)
		return body
	}

	p.next() // newline
	if _, ok := p.expect(token.Indent, diag.SynExpectIndent, "expected an indented block"); !ok {
		return nil
	}

	var body []ast.StmtID
	for !p.at(token.Dedent) && !p.at(token.EOF) {
		if _, ok := p.eat(token.Newline); ok {
			continue
		}
		p.parseStatement(&body)
	}
	p.eat(token.Dedent)
	return body
}

func (p *Parser) expectEndOfLine() {
	switch p.peekKind() {
	case token.Newline:
		p.next()
	case token.EOF, token.Dedent:
	default:
		p.reportHere(diag.SynExpectNewline, "expected end of line")
		p.syncToNewline()
	}
}

func (p *Parser) peekAhead(n int) token.Token {
	if p.pos+n >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[p.pos+n]
}

func (p *Parser) prevSpan() source.Span {
	if p.pos == 0 {
		return p.peek().Span
	}
	return p.toks[p.pos-1].Span
}
