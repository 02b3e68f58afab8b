package ast

import (
	"pythia/internal/source"
)

// StmtKind is the closed set of statement node kinds.
type StmtKind uint8

const (
	StmtInvalid StmtKind = iota
	StmtExpr
	StmtAssign
	StmtAugAssign
	StmtIf
	StmtWhile
	StmtFor
	StmtDef
	StmtClass
	StmtReturn
	StmtImport
	StmtImportFrom
	StmtTry
	StmtRaise
	StmtGlobal
	StmtNonlocal
	StmtAssert
	StmtWith
	StmtPass
	StmtBreak
	StmtContinue
	// StmtError is an error-recovered placeholder statement.
	StmtError
)

// ImportAlias is one `name as asname` entry in an import statement. For
// `from`-imports Name is the member name; for plain imports it is the
// dotted module path.
type ImportAlias struct {
	Name   source.StringID
	Asname source.StringID // NoStringID, если нет `as`
	Span   source.Span
}

// ExceptHandler is one `except Type as name:` clause.
type ExceptHandler struct {
	Type     ExprID // NoExprID for a bare except
	Name     source.StringID
	NameSpan source.Span
	Body     []StmtID
}

// WithItem is one `expr as name` entry of a with statement.
type WithItem struct {
	Ctx    ExprID
	As     source.StringID
	AsSpan source.Span
}

// Stmt is the fixed-size node header; payload lives in a per-kind arena.
type Stmt struct {
	Kind    StmtKind
	Span    source.Span
	Payload PayloadID
}

type (
	StmtExprData   struct{ Expr ExprID }
	StmtAssignData struct {
		Targets []ExprID // a = b = value даёт несколько целей
		Ann     ExprID   // аннотация при `x: T = v`, NoExprID если нет
		Value   ExprID   // NoExprID при голой аннотации `x: T`
	}
	StmtAugAssignData struct {
		Target ExprID
		Op     BinaryOp
		Value  ExprID
	}
	StmtIfData struct {
		Cond ExprID
		Then []StmtID
		Else []StmtID // elif-цепочка лежит здесь как вложенный if
	}
	StmtWhileData struct {
		Cond ExprID
		Body []StmtID
		Else []StmtID
	}
	StmtForData struct {
		Target ExprID
		Iter   ExprID
		Body   []StmtID
		Else   []StmtID
	}
	StmtDefData struct {
		Name       source.StringID
		NameSpan   source.Span
		Params     []Param
		Returns    ExprID // annotation, NoExprID if absent
		Body       []StmtID
		Decorators []ExprID
	}
	StmtClassData struct {
		Name       source.StringID
		NameSpan   source.Span
		Bases      []ExprID
		Body       []StmtID
		Decorators []ExprID
	}
	StmtReturnData     struct{ Value ExprID }
	StmtImportData     struct{ Names []ImportAlias }
	StmtImportFromData struct {
		Module source.StringID // NoStringID for `from . import x`
		Level  uint8           // количество ведущих точек
		Names  []ImportAlias
		Star   bool
	}
	StmtTryData struct {
		Body     []StmtID
		Handlers []ExceptHandler
		Else     []StmtID
		Finally  []StmtID
	}
	StmtRaiseData  struct{ Exc ExprID }
	StmtNamesData  struct{ Names []source.StringID } // global / nonlocal
	StmtAssertData struct {
		Cond ExprID
		Msg  ExprID
	}
	StmtWithData struct {
		Items []WithItem
		Body  []StmtID
	}
)

// Stmts manages allocation of statements.
type Stmts struct {
	Arena       *Arena[Stmt]
	ExprStmts   *Arena[StmtExprData]
	Assigns     *Arena[StmtAssignData]
	AugAssigns  *Arena[StmtAugAssignData]
	Ifs         *Arena[StmtIfData]
	Whiles      *Arena[StmtWhileData]
	Fors        *Arena[StmtForData]
	Defs        *Arena[StmtDefData]
	Classes     *Arena[StmtClassData]
	Returns     *Arena[StmtReturnData]
	Imports     *Arena[StmtImportData]
	ImportFroms *Arena[StmtImportFromData]
	Tries       *Arena[StmtTryData]
	Raises      *Arena[StmtRaiseData]
	NameDecls   *Arena[StmtNamesData]
	Asserts     *Arena[StmtAssertData]
	Withs       *Arena[StmtWithData]
}

func NewStmts(capHint uint) *Stmts {
	if capHint == 0 {
		capHint = 1 << 8
	}
	return &Stmts{
		Arena:       NewArena[Stmt](capHint),
		ExprStmts:   NewArena[StmtExprData](capHint / 2),
		Assigns:     NewArena[StmtAssignData](capHint / 2),
		AugAssigns:  NewArena[StmtAugAssignData](capHint / 8),
		Ifs:         NewArena[StmtIfData](capHint / 4),
		Whiles:      NewArena[StmtWhileData](capHint / 8),
		Fors:        NewArena[StmtForData](capHint / 8),
		Defs:        NewArena[StmtDefData](capHint / 4),
		Classes:     NewArena[StmtClassData](capHint / 8),
		Returns:     NewArena[StmtReturnData](capHint / 4),
		Imports:     NewArena[StmtImportData](capHint / 8),
		ImportFroms: NewArena[StmtImportFromData](capHint / 8),
		Tries:       NewArena[StmtTryData](capHint / 8),
		Raises:      NewArena[StmtRaiseData](capHint / 8),
		NameDecls:   NewArena[StmtNamesData](capHint / 8),
		Asserts:     NewArena[StmtAssertData](capHint / 8),
		Withs:       NewArena[StmtWithData](capHint / 8),
	}
}

func (s *Stmts) new(kind StmtKind, span source.Span, payload PayloadID) StmtID {
	return StmtID(s.Arena.Allocate(Stmt{Kind: kind, Span: span, Payload: payload}))
}

// Get returns the statement header for the given ID.
func (s *Stmts) Get(id StmtID) *Stmt {
	return s.Arena.Get(uint32(id))
}

func (s *Stmts) NewError(span source.Span) StmtID {
	return s.new(StmtError, span, 0)
}

func (s *Stmts) NewPass(span source.Span) StmtID {
	return s.new(StmtPass, span, 0)
}

func (s *Stmts) NewBreak(span source.Span) StmtID {
	return s.new(StmtBreak, span, 0)
}

func (s *Stmts) NewContinue(span source.Span) StmtID {
	return s.new(StmtContinue, span, 0)
}

func (s *Stmts) NewExpr(span source.Span, expr ExprID) StmtID {
	payload := s.ExprStmts.Allocate(StmtExprData{Expr: expr})
	return s.new(StmtExpr, span, PayloadID(payload))
}

func (s *Stmts) Expr(id StmtID) (*StmtExprData, bool) {
	stmt := s.Get(id)
	if stmt == nil || stmt.Kind != StmtExpr {
		return nil, false
	}
	return s.ExprStmts.Get(uint32(stmt.Payload)), true
}

func (s *Stmts) NewAssign(span source.Span, targets []ExprID, ann, value ExprID) StmtID {
	payload := s.Assigns.Allocate(StmtAssignData{Targets: targets, Ann: ann, Value: value})
	return s.new(StmtAssign, span, PayloadID(payload))
}

func (s *Stmts) Assign(id StmtID) (*StmtAssignData, bool) {
	stmt := s.Get(id)
	if stmt == nil || stmt.Kind != StmtAssign {
		return nil, false
	}
	return s.Assigns.Get(uint32(stmt.Payload)), true
}

func (s *Stmts) NewAugAssign(span source.Span, target ExprID, op BinaryOp, value ExprID) StmtID {
	payload := s.AugAssigns.Allocate(StmtAugAssignData{Target: target, Op: op, Value: value})
	return s.new(StmtAugAssign, span, PayloadID(payload))
}

func (s *Stmts) AugAssign(id StmtID) (*StmtAugAssignData, bool) {
	stmt := s.Get(id)
	if stmt == nil || stmt.Kind != StmtAugAssign {
		return nil, false
	}
	return s.AugAssigns.Get(uint32(stmt.Payload)), true
}

func (s *Stmts) NewIf(span source.Span, cond ExprID, then, els []StmtID) StmtID {
	payload := s.Ifs.Allocate(StmtIfData{Cond: cond, Then: then, Else: els})
	return s.new(StmtIf, span, PayloadID(payload))
}

func (s *Stmts) If(id StmtID) (*StmtIfData, bool) {
	stmt := s.Get(id)
	if stmt == nil || stmt.Kind != StmtIf {
		return nil, false
	}
	return s.Ifs.Get(uint32(stmt.Payload)), true
}

func (s *Stmts) NewWhile(span source.Span, cond ExprID, body, els []StmtID) StmtID {
	payload := s.Whiles.Allocate(StmtWhileData{Cond: cond, Body: body, Else: els})
	return s.new(StmtWhile, span, PayloadID(payload))
}

func (s *Stmts) While(id StmtID) (*StmtWhileData, bool) {
	stmt := s.Get(id)
	if stmt == nil || stmt.Kind != StmtWhile {
		return nil, false
	}
	return s.Whiles.Get(uint32(stmt.Payload)), true
}

func (s *Stmts) NewFor(span source.Span, target, iter ExprID, body, els []StmtID) StmtID {
	payload := s.Fors.Allocate(StmtForData{Target: target, Iter: iter, Body: body, Else: els})
	return s.new(StmtFor, span, PayloadID(payload))
}

func (s *Stmts) For(id StmtID) (*StmtForData, bool) {
	stmt := s.Get(id)
	if stmt == nil || stmt.Kind != StmtFor {
		return nil, false
	}
	return s.Fors.Get(uint32(stmt.Payload)), true
}

func (s *Stmts) NewDef(span source.Span, data StmtDefData) StmtID {
	payload := s.Defs.Allocate(data)
	return s.new(StmtDef, span, PayloadID(payload))
}

func (s *Stmts) Def(id StmtID) (*StmtDefData, bool) {
	stmt := s.Get(id)
	if stmt == nil || stmt.Kind != StmtDef {
		return nil, false
	}
	return s.Defs.Get(uint32(stmt.Payload)), true
}

func (s *Stmts) NewClass(span source.Span, data StmtClassData) StmtID {
	payload := s.Classes.Allocate(data)
	return s.new(StmtClass, span, PayloadID(payload))
}

func (s *Stmts) Class(id StmtID) (*StmtClassData, bool) {
	stmt := s.Get(id)
	if stmt == nil || stmt.Kind != StmtClass {
		return nil, false
	}
	return s.Classes.Get(uint32(stmt.Payload)), true
}

func (s *Stmts) NewReturn(span source.Span, value ExprID) StmtID {
	payload := s.Returns.Allocate(StmtReturnData{Value: value})
	return s.new(StmtReturn, span, PayloadID(payload))
}

func (s *Stmts) Return(id StmtID) (*StmtReturnData, bool) {
	stmt := s.Get(id)
	if stmt == nil || stmt.Kind != StmtReturn {
		return nil, false
	}
	return s.Returns.Get(uint32(stmt.Payload)), true
}

func (s *Stmts) NewImport(span source.Span, names []ImportAlias) StmtID {
	payload := s.Imports.Allocate(StmtImportData{Names: names})
	return s.new(StmtImport, span, PayloadID(payload))
}

func (s *Stmts) Import(id StmtID) (*StmtImportData, bool) {
	stmt := s.Get(id)
	if stmt == nil || stmt.Kind != StmtImport {
		return nil, false
	}
	return s.Imports.Get(uint32(stmt.Payload)), true
}

func (s *Stmts) NewImportFrom(span source.Span, data StmtImportFromData) StmtID {
	payload := s.ImportFroms.Allocate(data)
	return s.new(StmtImportFrom, span, PayloadID(payload))
}

func (s *Stmts) ImportFrom(id StmtID) (*StmtImportFromData, bool) {
	stmt := s.Get(id)
	if stmt == nil || stmt.Kind != StmtImportFrom {
		return nil, false
	}
	return s.ImportFroms.Get(uint32(stmt.Payload)), true
}

func (s *Stmts) NewTry(span source.Span, data StmtTryData) StmtID {
	payload := s.Tries.Allocate(data)
	return s.new(StmtTry, span, PayloadID(payload))
}

func (s *Stmts) Try(id StmtID) (*StmtTryData, bool) {
	stmt := s.Get(id)
	if stmt == nil || stmt.Kind != StmtTry {
		return nil, false
	}
	return s.Tries.Get(uint32(stmt.Payload)), true
}

func (s *Stmts) NewRaise(span source.Span, exc ExprID) StmtID {
	payload := s.Raises.Allocate(StmtRaiseData{Exc: exc})
	return s.new(StmtRaise, span, PayloadID(payload))
}

func (s *Stmts) Raise(id StmtID) (*StmtRaiseData, bool) {
	stmt := s.Get(id)
	if stmt == nil || stmt.Kind != StmtRaise {
		return nil, false
	}
	return s.Raises.Get(uint32(stmt.Payload)), true
}

func (s *Stmts) NewGlobal(span source.Span, names []source.StringID) StmtID {
	payload := s.NameDecls.Allocate(StmtNamesData{Names: names})
	return s.new(StmtGlobal, span, PayloadID(payload))
}

func (s *Stmts) NewNonlocal(span source.Span, names []source.StringID) StmtID {
	payload := s.NameDecls.Allocate(StmtNamesData{Names: names})
	return s.new(StmtNonlocal, span, PayloadID(payload))
}

// NameDecl returns names for global/nonlocal statements.
func (s *Stmts) NameDecl(id StmtID) (*StmtNamesData, bool) {
	stmt := s.Get(id)
	if stmt == nil || (stmt.Kind != StmtGlobal && stmt.Kind != StmtNonlocal) {
		return nil, false
	}
	return s.NameDecls.Get(uint32(stmt.Payload)), true
}

func (s *Stmts) NewAssert(span source.Span, cond, msg ExprID) StmtID {
	payload := s.Asserts.Allocate(StmtAssertData{Cond: cond, Msg: msg})
	return s.new(StmtAssert, span, PayloadID(payload))
}

func (s *Stmts) Assert(id StmtID) (*StmtAssertData, bool) {
	stmt := s.Get(id)
	if stmt == nil || stmt.Kind != StmtAssert {
		return nil, false
	}
	return s.Asserts.Get(uint32(stmt.Payload)), true
}

func (s *Stmts) NewWith(span source.Span, data StmtWithData) StmtID {
	payload := s.Withs.Allocate(data)
	return s.new(StmtWith, span, PayloadID(payload))
}

func (s *Stmts) With(id StmtID) (*StmtWithData, bool) {
	stmt := s.Get(id)
	if stmt == nil || stmt.Kind != StmtWith {
		return nil, false
	}
	return s.Withs.Get(uint32(stmt.Payload)), true
}
