package semindex

import (
	"testing"

	"pythia/internal/ast"
	"pythia/internal/diag"
	"pythia/internal/parser"
	"pythia/internal/source"
)

func buildIndex(t *testing.T, src string) (*Index, *ast.Builder) {
	t.Helper()
	fs := source.NewFileSet()
	id := fs.AddVirtual("test.py", []byte(src))
	arenas := ast.NewBuilder(ast.Hints{}, nil)
	res := parser.ParseFile(fs.Get(id), arenas, parser.Options{Reporter: diag.NopReporter{}})
	return Build(arenas, res.File), arenas
}

func sid(arenas *ast.Builder, s string) source.StringID {
	return arenas.StringsInterner.Intern(s)
}

func usesOf(ix *Index, arenas *ast.Builder, name string) []*Use {
	id := sid(arenas, name)
	var out []*Use
	for i := 1; i < len(ix.Uses); i++ {
		if ix.Uses[i].Name == id {
			out = append(out, &ix.Uses[i])
		}
	}
	return out
}

func bindingsOf(ix *Index, arenas *ast.Builder, name string) []*Binding {
	id := sid(arenas, name)
	var out []*Binding
	for i := 1; i < len(ix.Bindings); i++ {
		if ix.Bindings[i].Name == id {
			out = append(out, &ix.Bindings[i])
		}
	}
	return out
}

func scopeOfKind(t *testing.T, ix *Index, kind ScopeKind) ScopeID {
	t.Helper()
	for i := 1; i < len(ix.Scopes); i++ {
		if ix.Scopes[i].Kind == kind {
			return ScopeID(i)
		}
	}
	t.Fatalf("no scope of kind %d", kind)
	return NoScopeID
}

func TestModuleNamesInSourceOrder(t *testing.T) {
	ix, arenas := buildIndex(t, `x = 1
def f():
    pass
class C:
    pass
import os
`)
	names := ix.ModuleNames()
	want := []string{"x", "f", "C", "os"}
	if len(names) != len(want) {
		t.Fatalf("module names = %d, want %d", len(names), len(want))
	}
	for i, w := range want {
		if got := arenas.StringsInterner.MustLookup(names[i]); got != w {
			t.Errorf("names[%d] = %q, want %q", i, got, w)
		}
	}
}

func TestScopeTree(t *testing.T) {
	ix, _ := buildIndex(t, `class C:
    def m(self):
        def inner():
            pass
`)
	class := scopeOfKind(t, ix, ScopeClass)
	if ix.Scope(class).Parent != ix.Module {
		t.Error("class scope must hang off the module scope")
	}
	var method, inner ScopeID
	for i := 1; i < len(ix.Scopes); i++ {
		s := ix.Scopes[i]
		if s.Kind != ScopeFunction {
			continue
		}
		if s.Parent == class {
			method = ScopeID(i)
		} else {
			inner = ScopeID(i)
		}
	}
	if method == NoScopeID || inner == NoScopeID {
		t.Fatal("expected two function scopes")
	}
	if ix.Scope(inner).Parent != method {
		t.Error("inner function scope must hang off the method scope")
	}
}

func TestBranchJoinUnionsBindings(t *testing.T) {
	ix, arenas := buildIndex(t, `if cond:
    x = 1
else:
    x = "a"
y = x
`)
	uses := usesOf(ix, arenas, "x")
	if len(uses) != 1 {
		t.Fatalf("x uses = %d, want 1", len(uses))
	}
	if len(uses[0].Reaching) != 2 {
		t.Fatalf("reaching = %d, want both branch bindings", len(uses[0].Reaching))
	}
}

func TestRedefinitionReplacesReaching(t *testing.T) {
	ix, arenas := buildIndex(t, `x = 1
x = 2
y = x
`)
	uses := usesOf(ix, arenas, "x")
	if len(uses) != 1 || len(uses[0].Reaching) != 1 {
		t.Fatal("straight-line redefinition must leave a single reaching binding")
	}
	bs := bindingsOf(ix, arenas, "x")
	if len(bs) != 2 {
		t.Fatalf("x bindings = %d, want 2", len(bs))
	}
	reached := ix.Binding(uses[0].Reaching[0])
	if reached != bs[1] {
		t.Error("the later binding must shadow the earlier one")
	}
	if bs[0].Used || !bs[1].Used {
		t.Error("only the reaching binding is marked used")
	}
}

func TestFunctionBodySeesLaterDefinitions(t *testing.T) {
	ix, arenas := buildIndex(t, `def f():
    return g()
def g():
    return 1
`)
	uses := usesOf(ix, arenas, "g")
	if len(uses) != 1 {
		t.Fatalf("g uses = %d, want 1", len(uses))
	}
	if len(uses[0].Reaching) != 1 {
		t.Fatal("g must resolve from the deferred body")
	}
	if ix.Binding(uses[0].Reaching[0]).Kind != BindDef {
		t.Error("g must resolve to the def binding")
	}
}

func TestMethodBodySkipsClassScope(t *testing.T) {
	ix, arenas := buildIndex(t, `x = 1
class C:
    x = 2
    y = x
    def m(self):
        return x
`)
	uses := usesOf(ix, arenas, "x")
	if len(uses) != 2 {
		t.Fatalf("x uses = %d, want 2", len(uses))
	}
	classUse, methodUse := uses[0], uses[1]
	if ix.Binding(classUse.Reaching[0]).Scope == ix.Module {
		t.Error("class body must see the class-level binding")
	}
	if got := ix.Binding(methodUse.Reaching[0]).Scope; got != ix.Module {
		t.Errorf("method body must skip the class scope, resolved in scope %d", got)
	}
}

func TestGlobalRedirectsBinding(t *testing.T) {
	ix, arenas := buildIndex(t, `x = 1
def f():
    global x
    x = 2
`)
	bs := bindingsOf(ix, arenas, "x")
	if len(bs) != 2 {
		t.Fatalf("x bindings = %d, want 2", len(bs))
	}
	if bs[1].Scope != ix.Module {
		t.Error("global assignment must bind at module scope")
	}
	mod := ix.Scope(ix.Module)
	if got := len(mod.Names[sid(arenas, "x")]); got != 2 {
		t.Errorf("module scope records %d bindings of x, want 2", got)
	}
}

func TestNonlocalRedirectsBinding(t *testing.T) {
	ix, arenas := buildIndex(t, `def outer():
    x = 1
    def inner():
        nonlocal x
        x = 2
    inner()
`)
	bs := bindingsOf(ix, arenas, "x")
	if len(bs) != 2 {
		t.Fatalf("x bindings = %d, want 2", len(bs))
	}
	if bs[0].Scope != bs[1].Scope {
		t.Error("nonlocal assignment must bind in the enclosing function scope")
	}
	if ix.Scope(bs[0].Scope).Kind != ScopeFunction {
		t.Error("enclosing binding scope must be a function")
	}
}

func TestStarImportMarksUnresolvedUses(t *testing.T) {
	ix, arenas := buildIndex(t, `from helpers import *
foo()
`)
	if len(ix.StarImports) != 1 {
		t.Fatalf("star imports = %d, want 1", len(ix.StarImports))
	}
	uses := usesOf(ix, arenas, "foo")
	if len(uses) != 1 {
		t.Fatalf("foo uses = %d, want 1", len(uses))
	}
	if len(uses[0].Reaching) != 0 || !uses[0].MaybeStar {
		t.Error("unresolved name must be flagged as possibly star-imported")
	}
}

func TestIsinstanceNarrowing(t *testing.T) {
	ix, arenas := buildIndex(t, `def f(x):
    if isinstance(x, int):
        return x
    return x
`)
	uses := usesOf(ix, arenas, "x")
	if len(uses) != 3 {
		t.Fatalf("x uses = %d, want 3", len(uses))
	}
	if len(uses[0].Narrows) != 0 {
		t.Error("the guard argument itself is not narrowed")
	}
	then := uses[1]
	if len(then.Narrows) != 1 || !then.Narrows[0].Positive {
		t.Fatal("then-branch use must carry a positive narrow")
	}
	if len(uses[2].Narrows) != 0 {
		t.Error("narrow must not leak past the if")
	}
}

func TestNegatedNarrowOnElse(t *testing.T) {
	ix, arenas := buildIndex(t, `def f(x):
    if not isinstance(x, int):
        return x
    else:
        return x
`)
	uses := usesOf(ix, arenas, "x")
	if len(uses) != 3 {
		t.Fatalf("x uses = %d, want 3", len(uses))
	}
	if len(uses[1].Narrows) != 1 || uses[1].Narrows[0].Positive {
		t.Error("then-branch of a negated guard gets a negative narrow")
	}
	if len(uses[2].Narrows) != 1 || !uses[2].Narrows[0].Positive {
		t.Error("else-branch of a negated guard gets a positive narrow")
	}
}

func TestAssertNarrowsRestOfScope(t *testing.T) {
	ix, arenas := buildIndex(t, `def f(x):
    assert isinstance(x, str)
    return x
`)
	uses := usesOf(ix, arenas, "x")
	last := uses[len(uses)-1]
	if len(last.Narrows) != 1 || !last.Narrows[0].Positive {
		t.Error("assert guard must narrow the remainder of the scope")
	}
}

func TestParamsBound(t *testing.T) {
	ix, arenas := buildIndex(t, `def f(a, b=1):
    return a + b
`)
	ba := bindingsOf(ix, arenas, "a")
	bb := bindingsOf(ix, arenas, "b")
	if len(ba) != 1 || len(bb) != 1 {
		t.Fatal("each parameter binds once")
	}
	if ba[0].Kind != BindParam || ba[0].ParamIndex != 0 {
		t.Error("a must be parameter 0")
	}
	if bb[0].ParamIndex != 1 || bb[0].Value == ast.NoExprID {
		t.Error("b must be parameter 1 with a default")
	}
	for _, u := range append(usesOf(ix, arenas, "a"), usesOf(ix, arenas, "b")...) {
		if len(u.Reaching) != 1 || ix.Binding(u.Reaching[0]).Kind != BindParam {
			t.Error("body uses must resolve to the parameter bindings")
		}
	}
}

func TestForTupleTarget(t *testing.T) {
	ix, arenas := buildIndex(t, `for k, v in items:
    pair = k
`)
	bk := bindingsOf(ix, arenas, "k")
	bv := bindingsOf(ix, arenas, "v")
	if len(bk) != 1 || len(bv) != 1 {
		t.Fatal("both tuple elements must bind")
	}
	if bk[0].Kind != BindFor || bk[0].TupleIndex != 0 {
		t.Error("k is element 0 of the for target")
	}
	if bv[0].TupleIndex != 1 {
		t.Error("v is element 1 of the for target")
	}
	if uses := usesOf(ix, arenas, "items"); len(uses) != 1 || len(uses[0].Reaching) != 0 {
		t.Error("the iterable reads an unresolved name")
	}
}

func TestExceptAndWithBindings(t *testing.T) {
	ix, arenas := buildIndex(t, `try:
    pass
except ValueError as e:
    err = e
with open(p) as fh:
    data = fh
`)
	be := bindingsOf(ix, arenas, "e")
	if len(be) != 1 || be[0].Kind != BindExcept || be[0].Ann == ast.NoExprID {
		t.Fatal("except binding must carry the exception class expression")
	}
	bf := bindingsOf(ix, arenas, "fh")
	if len(bf) != 1 || bf[0].Kind != BindWith || bf[0].Value == ast.NoExprID {
		t.Fatal("with binding must carry the context expression")
	}
	for _, name := range []string{"e", "fh"} {
		uses := usesOf(ix, arenas, name)
		if len(uses) != 1 || len(uses[0].Reaching) != 1 {
			t.Errorf("use of %s must resolve to its binding", name)
		}
	}
}

func TestImportBindings(t *testing.T) {
	ix, arenas := buildIndex(t, `import os.path as p
import sys
from a.b import c as d
`)
	bp := bindingsOf(ix, arenas, "p")
	if len(bp) != 1 || bp[0].Kind != BindImport {
		t.Fatal("aliased import must bind the alias")
	}
	if arenas.StringsInterner.MustLookup(bp[0].Module) != "os.path" {
		t.Error("import binding must keep the full dotted module")
	}
	if len(bindingsOf(ix, arenas, "sys")) != 1 {
		t.Error("plain import binds the first segment")
	}
	bd := bindingsOf(ix, arenas, "d")
	if len(bd) != 1 || bd[0].Kind != BindImportFrom {
		t.Fatal("from-import must bind the alias")
	}
	if arenas.StringsInterner.MustLookup(bd[0].Member) != "c" {
		t.Error("from-import binding must record the member name")
	}
	if arenas.StringsInterner.MustLookup(bd[0].Module) != "a.b" {
		t.Error("from-import binding must record the source module")
	}
}

func TestDottedImportBindsFirstSegment(t *testing.T) {
	ix, arenas := buildIndex(t, "import os.path\n")
	if len(bindingsOf(ix, arenas, "os")) != 1 {
		t.Error("import os.path must bind the name os")
	}
	if len(bindingsOf(ix, arenas, "os.path")) != 0 {
		t.Error("the dotted path itself is not a bound name")
	}
}

func TestLambdaScope(t *testing.T) {
	ix, arenas := buildIndex(t, `f = lambda a: a + n
n = 2
`)
	lam := scopeOfKind(t, ix, ScopeLambda)
	ba := bindingsOf(ix, arenas, "a")
	if len(ba) != 1 || ba[0].Scope != lam {
		t.Fatal("lambda parameter binds in the lambda scope")
	}
	uses := usesOf(ix, arenas, "n")
	if len(uses) != 1 || len(uses[0].Reaching) != 1 {
		t.Fatal("deferred lambda body must see the later module binding")
	}
	if ix.Binding(uses[0].Reaching[0]).Scope != ix.Module {
		t.Error("n must resolve at module scope")
	}
}

func TestTryHandlerSeesPartialBody(t *testing.T) {
	ix, arenas := buildIndex(t, `try:
    x = compute()
except Exception:
    y = x
`)
	uses := usesOf(ix, arenas, "x")
	if len(uses) != 1 {
		t.Fatalf("x uses = %d, want 1", len(uses))
	}
	// тело могло упасть до присваивания, но кандидат всё равно один
	if len(uses[0].Reaching) != 1 {
		t.Error("handler must still see the body binding as a candidate")
	}
}

func TestUseByExprLookup(t *testing.T) {
	ix, arenas := buildIndex(t, "x = 1\ny = x\n")
	uses := usesOf(ix, arenas, "x")
	if len(uses) != 1 {
		t.Fatal("expected one use of x")
	}
	id, ok := ix.UseByExpr[uses[0].Expr]
	if !ok || ix.Use(id) != uses[0] {
		t.Error("UseByExpr must map the expression back to its use")
	}
}

func TestErrorRecoveredPropagates(t *testing.T) {
	ix, _ := buildIndex(t, "x = = 1\ny = 2\n")
	if !ix.ErrorRecovered {
		t.Error("index must inherit the error-recovered flag")
	}
}
