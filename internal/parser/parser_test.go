package parser

import (
	"testing"

	"pythia/internal/ast"
	"pythia/internal/diag"
	"pythia/internal/source"
)

type parseResult struct {
	arenas *ast.Builder
	file   *ast.File
	bag    *diag.Bag
}

func parseSource(t *testing.T, src string) parseResult {
	t.Helper()
	fs := source.NewFileSet()
	id := fs.AddVirtual("test.py", []byte(src))
	bag := diag.NewBag(64)
	arenas := ast.NewBuilder(ast.Hints{}, nil)
	res := ParseFile(fs.Get(id), arenas, Options{Reporter: diag.BagReporter{Bag: bag}})
	return parseResult{arenas: arenas, file: arenas.Files.Get(res.File), bag: bag}
}

func (r parseResult) name(t *testing.T, id ast.ExprID) string {
	t.Helper()
	data, ok := r.arenas.Exprs.Name(id)
	if !ok {
		t.Fatal("expected name expression")
	}
	return r.arenas.StringsInterner.MustLookup(data.Name)
}

func (r parseResult) str(id source.StringID) string {
	return r.arenas.StringsInterner.MustLookup(id)
}

func requireNoErrors(t *testing.T, r parseResult) {
	t.Helper()
	if r.bag.HasErrors() {
		for _, d := range r.bag.Items() {
			t.Logf("diag: %s %s", d.Code, d.Message)
		}
		t.Fatal("unexpected parse errors")
	}
	if r.file.ErrorRecovered {
		t.Fatal("file marked error-recovered")
	}
}

func TestParseAssignment(t *testing.T) {
	r := parseSource(t, "x = 1\n")
	requireNoErrors(t, r)
	if len(r.file.Body) != 1 {
		t.Fatalf("body length = %d, want 1", len(r.file.Body))
	}
	assign, ok := r.arenas.Stmts.Assign(r.file.Body[0])
	if !ok {
		t.Fatal("expected assignment statement")
	}
	if got := r.name(t, assign.Targets[0]); got != "x" {
		t.Errorf("target = %q, want x", got)
	}
	lit, ok := r.arenas.Exprs.Literal(assign.Value)
	if !ok || lit.Kind != ast.LitInt {
		t.Fatal("expected int literal value")
	}
}

func TestParseAnnotatedAssignment(t *testing.T) {
	r := parseSource(t, "x: int = 1\ny: str\n")
	requireNoErrors(t, r)
	first, _ := r.arenas.Stmts.Assign(r.file.Body[0])
	if first.Ann == ast.NoExprID || first.Value == ast.NoExprID {
		t.Fatal("expected annotation and value")
	}
	if got := r.name(t, first.Ann); got != "int" {
		t.Errorf("annotation = %q, want int", got)
	}
	second, _ := r.arenas.Stmts.Assign(r.file.Body[1])
	if second.Value != ast.NoExprID {
		t.Error("bare annotation must have no value")
	}
}

func TestParseChainedAssignment(t *testing.T) {
	r := parseSource(t, "a = b = 1\n")
	requireNoErrors(t, r)
	assign, _ := r.arenas.Stmts.Assign(r.file.Body[0])
	if len(assign.Targets) != 2 {
		t.Fatalf("targets = %d, want 2", len(assign.Targets))
	}
	if r.name(t, assign.Targets[0]) != "a" || r.name(t, assign.Targets[1]) != "b" {
		t.Error("wrong chained targets")
	}
}

func TestParseAugAssign(t *testing.T) {
	r := parseSource(t, "x += 2\n")
	requireNoErrors(t, r)
	aug, ok := r.arenas.Stmts.AugAssign(r.file.Body[0])
	if !ok {
		t.Fatal("expected augmented assignment")
	}
	if aug.Op != ast.BinAdd {
		t.Errorf("op = %v, want BinAdd", aug.Op)
	}
}

func TestParseIfElifElse(t *testing.T) {
	src := "if a:\n    x = 1\nelif b:\n    x = 2\nelse:\n    x = 3\n"
	r := parseSource(t, src)
	requireNoErrors(t, r)

	outer, ok := r.arenas.Stmts.If(r.file.Body[0])
	if !ok {
		t.Fatal("expected if statement")
	}
	if len(outer.Then) != 1 {
		t.Fatalf("then length = %d, want 1", len(outer.Then))
	}
	// elif лежит в Else как вложенный if
	if len(outer.Else) != 1 {
		t.Fatalf("else length = %d, want 1 nested if", len(outer.Else))
	}
	inner, ok := r.arenas.Stmts.If(outer.Else[0])
	if !ok {
		t.Fatal("expected nested if for elif")
	}
	if len(inner.Else) != 1 {
		t.Fatalf("inner else length = %d, want 1", len(inner.Else))
	}
}

func TestParseDef(t *testing.T) {
	src := "def add(a: int, b: int = 0) -> int:\n    return a + b\n"
	r := parseSource(t, src)
	requireNoErrors(t, r)

	def, ok := r.arenas.Stmts.Def(r.file.Body[0])
	if !ok {
		t.Fatal("expected def statement")
	}
	if r.str(def.Name) != "add" {
		t.Errorf("name = %q, want add", r.str(def.Name))
	}
	if len(def.Params) != 2 {
		t.Fatalf("params = %d, want 2", len(def.Params))
	}
	if def.Params[0].Ann == ast.NoExprID {
		t.Error("first param must carry an annotation")
	}
	if def.Params[1].Default == ast.NoExprID {
		t.Error("second param must carry a default")
	}
	if def.Returns == ast.NoExprID {
		t.Error("expected return annotation")
	}
	if len(def.Body) != 1 {
		t.Fatalf("body = %d, want 1", len(def.Body))
	}
	if _, ok := r.arenas.Stmts.Return(def.Body[0]); !ok {
		t.Error("expected return statement in body")
	}
}

func TestParseClassWithDecorator(t *testing.T) {
	src := "@register\nclass Dog(Animal):\n    def bark(self):\n        pass\n"
	r := parseSource(t, src)
	requireNoErrors(t, r)

	class, ok := r.arenas.Stmts.Class(r.file.Body[0])
	if !ok {
		t.Fatal("expected class statement")
	}
	if r.str(class.Name) != "Dog" {
		t.Errorf("name = %q, want Dog", r.str(class.Name))
	}
	if len(class.Bases) != 1 || r.name(t, class.Bases[0]) != "Animal" {
		t.Error("expected base Animal")
	}
	if len(class.Decorators) != 1 {
		t.Fatalf("decorators = %d, want 1", len(class.Decorators))
	}
	if len(class.Body) != 1 {
		t.Fatalf("class body = %d, want 1", len(class.Body))
	}
	if _, ok := r.arenas.Stmts.Def(class.Body[0]); !ok {
		t.Error("expected method def in class body")
	}
}

func TestParseImports(t *testing.T) {
	src := "import os.path as p\nfrom ..pkg import a, b as c\nfrom mod import *\n"
	r := parseSource(t, src)
	requireNoErrors(t, r)

	imp, ok := r.arenas.Stmts.Import(r.file.Body[0])
	if !ok {
		t.Fatal("expected import statement")
	}
	if r.str(imp.Names[0].Name) != "os.path" || r.str(imp.Names[0].Asname) != "p" {
		t.Errorf("import alias = %q as %q", r.str(imp.Names[0].Name), r.str(imp.Names[0].Asname))
	}

	from, ok := r.arenas.Stmts.ImportFrom(r.file.Body[1])
	if !ok {
		t.Fatal("expected from-import statement")
	}
	if from.Level != 2 {
		t.Errorf("level = %d, want 2", from.Level)
	}
	if r.str(from.Module) != "pkg" {
		t.Errorf("module = %q, want pkg", r.str(from.Module))
	}
	if len(from.Names) != 2 || r.str(from.Names[1].Asname) != "c" {
		t.Error("wrong from-import aliases")
	}

	star, _ := r.arenas.Stmts.ImportFrom(r.file.Body[2])
	if !star.Star {
		t.Error("expected star import")
	}
}

func TestParseTryExcept(t *testing.T) {
	src := "try:\n    x = 1\nexcept ValueError as e:\n    pass\nexcept:\n    pass\nfinally:\n    y = 2\n"
	r := parseSource(t, src)
	requireNoErrors(t, r)

	try, ok := r.arenas.Stmts.Try(r.file.Body[0])
	if !ok {
		t.Fatal("expected try statement")
	}
	if len(try.Handlers) != 2 {
		t.Fatalf("handlers = %d, want 2", len(try.Handlers))
	}
	if r.str(try.Handlers[0].Name) != "e" {
		t.Errorf("handler name = %q, want e", r.str(try.Handlers[0].Name))
	}
	if try.Handlers[1].Type != ast.NoExprID {
		t.Error("bare except must have no type")
	}
	if len(try.Finally) != 1 {
		t.Error("expected finally body")
	}
}

func TestParseGlobalNonlocal(t *testing.T) {
	src := "def f():\n    global a, b\n    nonlocal c\n"
	r := parseSource(t, src)
	requireNoErrors(t, r)
	def, _ := r.arenas.Stmts.Def(r.file.Body[0])
	decl, ok := r.arenas.Stmts.NameDecl(def.Body[0])
	if !ok || len(decl.Names) != 2 {
		t.Fatal("expected global declaration with two names")
	}
	if r.arenas.Stmts.Get(def.Body[1]).Kind != ast.StmtNonlocal {
		t.Error("expected nonlocal statement")
	}
}

func TestParseWith(t *testing.T) {
	src := "with open(p) as f, lock:\n    pass\n"
	r := parseSource(t, src)
	requireNoErrors(t, r)
	with, ok := r.arenas.Stmts.With(r.file.Body[0])
	if !ok {
		t.Fatal("expected with statement")
	}
	if len(with.Items) != 2 {
		t.Fatalf("items = %d, want 2", len(with.Items))
	}
	if r.str(with.Items[0].As) != "f" {
		t.Errorf("as-name = %q, want f", r.str(with.Items[0].As))
	}
	if with.Items[1].As != source.NoStringID {
		t.Error("second item must have no as-name")
	}
}

func TestParsePrecedence(t *testing.T) {
	r := parseSource(t, "v = 1 + 2 * 3\n")
	requireNoErrors(t, r)
	assign, _ := r.arenas.Stmts.Assign(r.file.Body[0])
	add, ok := r.arenas.Exprs.Binary(assign.Value)
	if !ok || add.Op != ast.BinAdd {
		t.Fatal("top operator must be +")
	}
	mul, ok := r.arenas.Exprs.Binary(add.Right)
	if !ok || mul.Op != ast.BinMul {
		t.Fatal("right operand must be the * subtree")
	}
}

func TestParsePowerRightAssoc(t *testing.T) {
	r := parseSource(t, "v = 2 ** 3 ** 4\n")
	requireNoErrors(t, r)
	assign, _ := r.arenas.Stmts.Assign(r.file.Body[0])
	outer, ok := r.arenas.Exprs.Binary(assign.Value)
	if !ok || outer.Op != ast.BinPow {
		t.Fatal("expected power expression")
	}
	inner, ok := r.arenas.Exprs.Binary(outer.Right)
	if !ok || inner.Op != ast.BinPow {
		t.Fatal("** must be right-associative")
	}
}

func TestParseComparisonChain(t *testing.T) {
	r := parseSource(t, "v = a < b <= c\nw = x is not None\nz = y not in s\n")
	requireNoErrors(t, r)

	first, _ := r.arenas.Stmts.Assign(r.file.Body[0])
	cmp, ok := r.arenas.Exprs.Compare(first.Value)
	if !ok || len(cmp.Ops) != 2 {
		t.Fatal("expected chained comparison with two operators")
	}
	if cmp.Ops[0] != ast.CmpLt || cmp.Ops[1] != ast.CmpLtE {
		t.Error("wrong comparison operators")
	}

	second, _ := r.arenas.Stmts.Assign(r.file.Body[1])
	isNot, _ := r.arenas.Exprs.Compare(second.Value)
	if isNot.Ops[0] != ast.CmpIsNot {
		t.Error("expected 'is not'")
	}

	third, _ := r.arenas.Stmts.Assign(r.file.Body[2])
	notIn, _ := r.arenas.Exprs.Compare(third.Value)
	if notIn.Ops[0] != ast.CmpNotIn {
		t.Error("expected 'not in'")
	}
}

func TestParseCallArguments(t *testing.T) {
	r := parseSource(t, "v = f(1, x, key=2, *rest)\n")
	requireNoErrors(t, r)
	assign, _ := r.arenas.Stmts.Assign(r.file.Body[0])
	call, ok := r.arenas.Exprs.Call(assign.Value)
	if !ok {
		t.Fatal("expected call expression")
	}
	if len(call.Args) != 3 {
		t.Fatalf("args = %d, want 3", len(call.Args))
	}
	if len(call.KwNames) != 1 || r.str(call.KwNames[0]) != "key" {
		t.Fatal("expected one keyword argument 'key'")
	}
	star := r.arenas.Exprs.Get(call.Args[2])
	if star.Kind != ast.ExprStar {
		t.Error("last argument must be starred")
	}
}

func TestParseTrailers(t *testing.T) {
	r := parseSource(t, "v = obj.attr.method(x)[0]\n")
	requireNoErrors(t, r)
	assign, _ := r.arenas.Stmts.Assign(r.file.Body[0])
	sub, ok := r.arenas.Exprs.Subscript(assign.Value)
	if !ok {
		t.Fatal("expected subscript at top")
	}
	call, ok := r.arenas.Exprs.Call(sub.Owner)
	if !ok {
		t.Fatal("expected call under subscript")
	}
	attr, ok := r.arenas.Exprs.Attr(call.Callee)
	if !ok || r.str(attr.Name) != "method" {
		t.Fatal("expected attribute 'method' as callee")
	}
}

func TestParseTernaryAndLambda(t *testing.T) {
	r := parseSource(t, "v = a if cond else b\nf = lambda x, y=1: x + y\n")
	requireNoErrors(t, r)

	first, _ := r.arenas.Stmts.Assign(r.file.Body[0])
	cond, ok := r.arenas.Exprs.If(first.Value)
	if !ok {
		t.Fatal("expected conditional expression")
	}
	if r.name(t, cond.Cond) != "cond" {
		t.Error("wrong ternary condition")
	}

	second, _ := r.arenas.Stmts.Assign(r.file.Body[1])
	lam, ok := r.arenas.Exprs.Lambda(second.Value)
	if !ok {
		t.Fatal("expected lambda expression")
	}
	if len(lam.Params) != 2 || lam.Params[1].Default == ast.NoExprID {
		t.Error("lambda params parsed wrong")
	}
}

func TestParseCollections(t *testing.T) {
	r := parseSource(t, "t = (1, 2)\ne = ()\nl = [1, 2, 3]\nd = {'a': 1}\nbare = 1, 2\n")
	requireNoErrors(t, r)

	get := func(i int) ast.ExprID {
		assign, _ := r.arenas.Stmts.Assign(r.file.Body[i])
		return assign.Value
	}
	if seq, ok := r.arenas.Exprs.Seq(get(0)); !ok || len(seq.Elems) != 2 {
		t.Error("expected 2-tuple")
	}
	if seq, ok := r.arenas.Exprs.Seq(get(1)); !ok || len(seq.Elems) != 0 {
		t.Error("expected empty tuple")
	}
	if r.arenas.Exprs.Get(get(2)).Kind != ast.ExprList {
		t.Error("expected list literal")
	}
	if dict, ok := r.arenas.Exprs.Dict(get(3)); !ok || len(dict.Keys) != 1 {
		t.Error("expected dict with one entry")
	}
	if bare := r.arenas.Exprs.Get(get(4)); bare.Kind != ast.ExprTuple {
		t.Error("bare comma must build a tuple")
	}
}

func TestParseParenGrouping(t *testing.T) {
	// (a) — группировка, не кортеж
	r := parseSource(t, "v = (a)\n")
	requireNoErrors(t, r)
	assign, _ := r.arenas.Stmts.Assign(r.file.Body[0])
	if r.arenas.Exprs.Get(assign.Value).Kind != ast.ExprName {
		t.Error("parenthesized name must stay a name")
	}
}

func TestParseInlineSuite(t *testing.T) {
	r := parseSource(t, "if x: a = 1; b = 2\n")
	requireNoErrors(t, r)
	stmt, _ := r.arenas.Stmts.If(r.file.Body[0])
	if len(stmt.Then) != 2 {
		t.Fatalf("inline suite = %d statements, want 2", len(stmt.Then))
	}
}

func TestParseForWhileElse(t *testing.T) {
	src := "for i in xs:\n    pass\nelse:\n    done = 1\nwhile cond:\n    break\n"
	r := parseSource(t, src)
	requireNoErrors(t, r)
	forStmt, ok := r.arenas.Stmts.For(r.file.Body[0])
	if !ok {
		t.Fatal("expected for statement")
	}
	if len(forStmt.Else) != 1 {
		t.Error("expected for-else body")
	}
	whileStmt, ok := r.arenas.Stmts.While(r.file.Body[1])
	if !ok {
		t.Fatal("expected while statement")
	}
	if r.arenas.Stmts.Get(whileStmt.Body[0]).Kind != ast.StmtBreak {
		t.Error("expected break in while body")
	}
}

func TestParseErrorRecovery(t *testing.T) {
	// сломанная строка не должна ронять разбор остального файла
	src := "x = = 1\ny = 2\n"
	r := parseSource(t, src)
	if !r.bag.HasErrors() {
		t.Fatal("expected at least one error")
	}
	if !r.file.ErrorRecovered {
		t.Error("file must be marked error-recovered")
	}
	var found bool
	for _, id := range r.file.Body {
		if assign, ok := r.arenas.Stmts.Assign(id); ok && len(assign.Targets) == 1 {
			if data, ok := r.arenas.Exprs.Name(assign.Targets[0]); ok && r.str(data.Name) == "y" {
				found = true
			}
		}
	}
	if !found {
		t.Error("statement after the broken line must still parse")
	}
}

func TestParseBadAssignTarget(t *testing.T) {
	r := parseSource(t, "1 + 2 = x\n")
	var seen bool
	for _, d := range r.bag.Items() {
		if d.Code == diag.SynBadAssignTarget {
			seen = true
		}
	}
	if !seen {
		t.Error("expected bad-assign-target diagnostic")
	}
}

func TestParseMissingColon(t *testing.T) {
	r := parseSource(t, "if x\n    pass\n")
	var seen bool
	for _, d := range r.bag.Items() {
		if d.Code == diag.SynExpectColon {
			seen = true
		}
	}
	if !seen {
		t.Error("expected missing-colon diagnostic")
	}
}

func TestParseMaxErrors(t *testing.T) {
	src := "x = = 1\ny = = 2\nz = = 3\n"
	fs := source.NewFileSet()
	id := fs.AddVirtual("test.py", []byte(src))
	bag := diag.NewBag(64)
	arenas := ast.NewBuilder(ast.Hints{}, nil)
	ParseFile(fs.Get(id), arenas, Options{MaxErrors: 1, Reporter: diag.BagReporter{Bag: bag}})
	if bag.Len() > 1 {
		t.Errorf("reported %d diagnostics, want at most 1", bag.Len())
	}
}
