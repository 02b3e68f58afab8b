package ast

import (
	"pythia/internal/source"
)

// ExprKind is the closed set of expression node kinds. External checks
// pattern-match over this enum; keep it exhaustive.
type ExprKind uint8

const (
	ExprInvalid ExprKind = iota
	ExprName
	ExprLit
	ExprAttr
	ExprCall
	ExprBinary
	ExprUnary
	ExprCompare
	ExprBool
	ExprSubscript
	ExprTuple
	ExprList
	ExprDict
	ExprLambda
	ExprIf
	ExprStar
	// ExprError is an error-recovered placeholder; analysis treats it as Unknown.
	ExprError
)

// LitKind distinguishes literal expression flavors.
type LitKind uint8

const (
	LitInt LitKind = iota
	LitFloat
	LitStr
	LitTrue
	LitFalse
	LitNone
)

// BinaryOp enumerates binary arithmetic operators.
type BinaryOp uint8

const (
	BinAdd BinaryOp = iota
	BinSub
	BinMul
	BinDiv
	BinFloorDiv
	BinMod
	BinPow
	BinBitOr
	BinBitAnd
	BinBitXor
)

// UnaryOp enumerates unary operators.
type UnaryOp uint8

const (
	UnaryNeg UnaryOp = iota
	UnaryPos
	UnaryNot
	UnaryInvert
)

// CmpOp enumerates comparison operators.
type CmpOp uint8

const (
	CmpEq CmpOp = iota
	CmpNotEq
	CmpLt
	CmpLtE
	CmpGt
	CmpGtE
	CmpIs
	CmpIsNot
	CmpIn
	CmpNotIn
)

// BoolOp enumerates short-circuit operators.
type BoolOp uint8

const (
	BoolAnd BoolOp = iota
	BoolOr
)

// Param describes one function or lambda parameter.
type Param struct {
	Name    source.StringID
	Span    source.Span
	Ann     ExprID // annotation, NoExprID if absent
	Default ExprID // default value, NoExprID if absent
}

// Expr is the fixed-size node header; payload lives in a per-kind arena.
type Expr struct {
	Kind    ExprKind
	Span    source.Span
	Payload PayloadID
}

type (
	ExprNameData    struct{ Name source.StringID }
	ExprLiteralData struct {
		Kind  LitKind
		Value source.StringID
	}
	ExprAttrData struct {
		Owner ExprID
		Name  source.StringID
		// NameSpan covers just the attribute identifier for diagnostics.
		NameSpan source.Span
	}
	ExprCallData struct {
		Callee   ExprID
		Args     []ExprID
		KwNames  []source.StringID
		KwValues []ExprID
	}
	ExprBinaryData struct {
		Op    BinaryOp
		Left  ExprID
		Right ExprID
	}
	ExprUnaryData struct {
		Op      UnaryOp
		Operand ExprID
	}
	ExprCompareData struct {
		Left        ExprID
		Ops         []CmpOp
		Comparators []ExprID
	}
	ExprBoolData struct {
		Op     BoolOp
		Values []ExprID
	}
	ExprSubscriptData struct {
		Owner ExprID
		Index ExprID
	}
	ExprSeqData  struct{ Elems []ExprID }
	ExprDictData struct {
		Keys   []ExprID
		Values []ExprID
	}
	ExprLambdaData struct {
		Params []Param
		Body   ExprID
	}
	ExprIfData struct {
		Cond ExprID
		Then ExprID
		Else ExprID
	}
	ExprStarData struct{ Value ExprID }
)

// Exprs manages allocation of expressions.
type Exprs struct {
	Arena      *Arena[Expr]
	Names      *Arena[ExprNameData]
	Literals   *Arena[ExprLiteralData]
	Attrs      *Arena[ExprAttrData]
	Calls      *Arena[ExprCallData]
	Binaries   *Arena[ExprBinaryData]
	Unaries    *Arena[ExprUnaryData]
	Compares   *Arena[ExprCompareData]
	Bools      *Arena[ExprBoolData]
	Subscripts *Arena[ExprSubscriptData]
	Seqs       *Arena[ExprSeqData]
	Dicts      *Arena[ExprDictData]
	Lambdas    *Arena[ExprLambdaData]
	Ifs        *Arena[ExprIfData]
	Stars      *Arena[ExprStarData]
}

func NewExprs(capHint uint) *Exprs {
	if capHint == 0 {
		capHint = 1 << 8
	}
	return &Exprs{
		Arena:      NewArena[Expr](capHint),
		Names:      NewArena[ExprNameData](capHint),
		Literals:   NewArena[ExprLiteralData](capHint),
		Attrs:      NewArena[ExprAttrData](capHint / 2),
		Calls:      NewArena[ExprCallData](capHint / 2),
		Binaries:   NewArena[ExprBinaryData](capHint / 2),
		Unaries:    NewArena[ExprUnaryData](capHint / 4),
		Compares:   NewArena[ExprCompareData](capHint / 4),
		Bools:      NewArena[ExprBoolData](capHint / 4),
		Subscripts: NewArena[ExprSubscriptData](capHint / 4),
		Seqs:       NewArena[ExprSeqData](capHint / 4),
		Dicts:      NewArena[ExprDictData](capHint / 4),
		Lambdas:    NewArena[ExprLambdaData](capHint / 4),
		Ifs:        NewArena[ExprIfData](capHint / 4),
		Stars:      NewArena[ExprStarData](capHint / 4),
	}
}

func (e *Exprs) new(kind ExprKind, span source.Span, payload PayloadID) ExprID {
	return ExprID(e.Arena.Allocate(Expr{Kind: kind, Span: span, Payload: payload}))
}

// Get returns the expression header for the given ID.
func (e *Exprs) Get(id ExprID) *Expr {
	return e.Arena.Get(uint32(id))
}

// NewError allocates an error-recovery placeholder node.
func (e *Exprs) NewError(span source.Span) ExprID {
	return e.new(ExprError, span, 0)
}

func (e *Exprs) NewName(span source.Span, name source.StringID) ExprID {
	payload := e.Names.Allocate(ExprNameData{Name: name})
	return e.new(ExprName, span, PayloadID(payload))
}

func (e *Exprs) Name(id ExprID) (*ExprNameData, bool) {
	expr := e.Get(id)
	if expr == nil || expr.Kind != ExprName {
		return nil, false
	}
	return e.Names.Get(uint32(expr.Payload)), true
}

func (e *Exprs) NewLiteral(span source.Span, kind LitKind, value source.StringID) ExprID {
	payload := e.Literals.Allocate(ExprLiteralData{Kind: kind, Value: value})
	return e.new(ExprLit, span, PayloadID(payload))
}

func (e *Exprs) Literal(id ExprID) (*ExprLiteralData, bool) {
	expr := e.Get(id)
	if expr == nil || expr.Kind != ExprLit {
		return nil, false
	}
	return e.Literals.Get(uint32(expr.Payload)), true
}

func (e *Exprs) NewAttr(span source.Span, owner ExprID, name source.StringID, nameSpan source.Span) ExprID {
	payload := e.Attrs.Allocate(ExprAttrData{Owner: owner, Name: name, NameSpan: nameSpan})
	return e.new(ExprAttr, span, PayloadID(payload))
}

func (e *Exprs) Attr(id ExprID) (*ExprAttrData, bool) {
	expr := e.Get(id)
	if expr == nil || expr.Kind != ExprAttr {
		return nil, false
	}
	return e.Attrs.Get(uint32(expr.Payload)), true
}

func (e *Exprs) NewCall(span source.Span, callee ExprID, args []ExprID, kwNames []source.StringID, kwValues []ExprID) ExprID {
	payload := e.Calls.Allocate(ExprCallData{Callee: callee, Args: args, KwNames: kwNames, KwValues: kwValues})
	return e.new(ExprCall, span, PayloadID(payload))
}

func (e *Exprs) Call(id ExprID) (*ExprCallData, bool) {
	expr := e.Get(id)
	if expr == nil || expr.Kind != ExprCall {
		return nil, false
	}
	return e.Calls.Get(uint32(expr.Payload)), true
}

func (e *Exprs) NewBinary(span source.Span, op BinaryOp, left, right ExprID) ExprID {
	payload := e.Binaries.Allocate(ExprBinaryData{Op: op, Left: left, Right: right})
	return e.new(ExprBinary, span, PayloadID(payload))
}

func (e *Exprs) Binary(id ExprID) (*ExprBinaryData, bool) {
	expr := e.Get(id)
	if expr == nil || expr.Kind != ExprBinary {
		return nil, false
	}
	return e.Binaries.Get(uint32(expr.Payload)), true
}

func (e *Exprs) NewUnary(span source.Span, op UnaryOp, operand ExprID) ExprID {
	payload := e.Unaries.Allocate(ExprUnaryData{Op: op, Operand: operand})
	return e.new(ExprUnary, span, PayloadID(payload))
}

func (e *Exprs) Unary(id ExprID) (*ExprUnaryData, bool) {
	expr := e.Get(id)
	if expr == nil || expr.Kind != ExprUnary {
		return nil, false
	}
	return e.Unaries.Get(uint32(expr.Payload)), true
}

func (e *Exprs) NewCompare(span source.Span, left ExprID, ops []CmpOp, comparators []ExprID) ExprID {
	payload := e.Compares.Allocate(ExprCompareData{Left: left, Ops: ops, Comparators: comparators})
	return e.new(ExprCompare, span, PayloadID(payload))
}

func (e *Exprs) Compare(id ExprID) (*ExprCompareData, bool) {
	expr := e.Get(id)
	if expr == nil || expr.Kind != ExprCompare {
		return nil, false
	}
	return e.Compares.Get(uint32(expr.Payload)), true
}

func (e *Exprs) NewBool(span source.Span, op BoolOp, values []ExprID) ExprID {
	payload := e.Bools.Allocate(ExprBoolData{Op: op, Values: values})
	return e.new(ExprBool, span, PayloadID(payload))
}

func (e *Exprs) Bool(id ExprID) (*ExprBoolData, bool) {
	expr := e.Get(id)
	if expr == nil || expr.Kind != ExprBool {
		return nil, false
	}
	return e.Bools.Get(uint32(expr.Payload)), true
}

func (e *Exprs) NewSubscript(span source.Span, owner, index ExprID) ExprID {
	payload := e.Subscripts.Allocate(ExprSubscriptData{Owner: owner, Index: index})
	return e.new(ExprSubscript, span, PayloadID(payload))
}

func (e *Exprs) Subscript(id ExprID) (*ExprSubscriptData, bool) {
	expr := e.Get(id)
	if expr == nil || expr.Kind != ExprSubscript {
		return nil, false
	}
	return e.Subscripts.Get(uint32(expr.Payload)), true
}

func (e *Exprs) NewTuple(span source.Span, elems []ExprID) ExprID {
	payload := e.Seqs.Allocate(ExprSeqData{Elems: elems})
	return e.new(ExprTuple, span, PayloadID(payload))
}

func (e *Exprs) NewList(span source.Span, elems []ExprID) ExprID {
	payload := e.Seqs.Allocate(ExprSeqData{Elems: elems})
	return e.new(ExprList, span, PayloadID(payload))
}

// Seq returns elements for tuple/list nodes.
func (e *Exprs) Seq(id ExprID) (*ExprSeqData, bool) {
	expr := e.Get(id)
	if expr == nil || (expr.Kind != ExprTuple && expr.Kind != ExprList) {
		return nil, false
	}
	return e.Seqs.Get(uint32(expr.Payload)), true
}

func (e *Exprs) NewDict(span source.Span, keys, values []ExprID) ExprID {
	payload := e.Dicts.Allocate(ExprDictData{Keys: keys, Values: values})
	return e.new(ExprDict, span, PayloadID(payload))
}

func (e *Exprs) Dict(id ExprID) (*ExprDictData, bool) {
	expr := e.Get(id)
	if expr == nil || expr.Kind != ExprDict {
		return nil, false
	}
	return e.Dicts.Get(uint32(expr.Payload)), true
}

func (e *Exprs) NewLambda(span source.Span, params []Param, body ExprID) ExprID {
	payload := e.Lambdas.Allocate(ExprLambdaData{Params: params, Body: body})
	return e.new(ExprLambda, span, PayloadID(payload))
}

func (e *Exprs) Lambda(id ExprID) (*ExprLambdaData, bool) {
	expr := e.Get(id)
	if expr == nil || expr.Kind != ExprLambda {
		return nil, false
	}
	return e.Lambdas.Get(uint32(expr.Payload)), true
}

func (e *Exprs) NewIf(span source.Span, cond, then, els ExprID) ExprID {
	payload := e.Ifs.Allocate(ExprIfData{Cond: cond, Then: then, Else: els})
	return e.new(ExprIf, span, PayloadID(payload))
}

func (e *Exprs) If(id ExprID) (*ExprIfData, bool) {
	expr := e.Get(id)
	if expr == nil || expr.Kind != ExprIf {
		return nil, false
	}
	return e.Ifs.Get(uint32(expr.Payload)), true
}

func (e *Exprs) NewStar(span source.Span, value ExprID) ExprID {
	payload := e.Stars.Allocate(ExprStarData{Value: value})
	return e.new(ExprStar, span, PayloadID(payload))
}

func (e *Exprs) Star(id ExprID) (*ExprStarData, bool) {
	expr := e.Get(id)
	if expr == nil || expr.Kind != ExprStar {
		return nil, false
	}
	return e.Stars.Get(uint32(expr.Payload)), true
}
