package types

import "fmt"

// TypeID uniquely identifies a type inside the interner. Equal structure
// yields equal IDs, so type equality is ID comparison.
type TypeID uint32

// NoTypeID marks the absence of a type.
const NoTypeID TypeID = 0

// ClassID identifies a class declaration in the interner's side table.
type ClassID uint32

// NoClassID marks the absence of a class.
const NoClassID ClassID = 0

// Kind enumerates all supported kinds of types.
type Kind uint8

const (
	KindInvalid Kind = iota
	// KindUnknown - поглощающий верх/низ: результат любой неудачи анализа
	KindUnknown
	// KindNever - тип недостижимого значения
	KindNever
	// KindNone - тип значения None
	KindNone
	// KindInstance - экземпляр класса, возможно с параметрами (list[int])
	KindInstance
	// KindClass - сам объект класса (type[C])
	KindClass
	// KindModule - объект модуля
	KindModule
	// KindCallable - сигнатура функции
	KindCallable
	KindUnion
	KindIntersection
	// KindLiteral - литеральный тип (Literal[3], Literal["x"], Literal[True])
	KindLiteral
	// KindTypeVar - параметр обобщённого типа до подстановки
	KindTypeVar
)

func (k Kind) String() string {
	switch k {
	case KindInvalid:
		return "invalid"
	case KindUnknown:
		return "unknown"
	case KindNever:
		return "never"
	case KindNone:
		return "none"
	case KindInstance:
		return "instance"
	case KindClass:
		return "class"
	case KindModule:
		return "module"
	case KindCallable:
		return "callable"
	case KindUnion:
		return "union"
	case KindIntersection:
		return "intersection"
	case KindLiteral:
		return "literal"
	case KindTypeVar:
		return "typevar"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

// Type is a compact descriptor; variable-size payloads live in per-kind
// side tables addressed by Payload.
type Type struct {
	Kind    Kind
	Class   ClassID // for instances, class literals and literals' class
	Payload uint32
}

// Builtins stores TypeIDs and ClassIDs seeded at interner construction.
type Builtins struct {
	Unknown TypeID
	Never   TypeID
	None    TypeID

	Object   ClassID
	Int      ClassID
	Float    ClassID
	Str      ClassID
	Bool     ClassID
	List     ClassID
	Dict     ClassID
	Tuple    ClassID
	BaseExc  ClassID
	Function ClassID
}
