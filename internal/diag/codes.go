package diag

import (
	"fmt"
)

type Code uint16

const (
	// Неизвестная ошибка - на первое время
	UnknownCode Code = 0

	// Лексические
	LexInfo               Code = 1000
	LexUnknownChar        Code = 1001
	LexUnterminatedString Code = 1002
	LexBadNumber          Code = 1003
	LexBadIndent          Code = 1004

	// Парсерные
	SynInfo             Code = 2000
	SynUnexpectedToken  Code = 2001
	SynExpectIdentifier Code = 2002
	SynExpectColon      Code = 2003
	SynExpectExpression Code = 2004
	SynExpectIndent     Code = 2005
	SynExpectNewline    Code = 2006
	SynExpectModuleName Code = 2007
	SynBadAssignTarget  Code = 2008
	SynUnclosedDelim    Code = 2009
	SynExpectParam      Code = 2010

	// Семантические
	SemaInfo                Code = 3000
	SemaUnresolvedName      Code = 3001
	SemaUnresolvedImport    Code = 3002
	SemaUnresolvedAttribute Code = 3003
	SemaNotCallable         Code = 3004
	SemaBadArgumentCount    Code = 3005
	SemaBadArgumentType     Code = 3006
	SemaBadOverride         Code = 3007
	SemaCycleUnstable       Code = 3008
	SemaRedefinedName       Code = 3009
	SemaUnusedBinding       Code = 3010
	SemaBadRelativeImport   Code = 3011

	// Конфигурация / резолвер
	ConfInfo                Code = 4000
	ConfBadSearchPath       Code = 4001
	ConfAmbiguousModule     Code = 4002
	ConfUnknownTargetFormat Code = 4003

	// Внутренние сбои (никогда не паникуем, деградируем до Unknown)
	InternalInfo            Code = 9000
	InternalInvariantBroken Code = 9001
)

var codeIDs = map[Code]string{
	UnknownCode:             "PYT0000",
	LexInfo:                 "PYT1000",
	LexUnknownChar:          "PYT1001",
	LexUnterminatedString:   "PYT1002",
	LexBadNumber:            "PYT1003",
	LexBadIndent:            "PYT1004",
	SynInfo:                 "PYT2000",
	SynUnexpectedToken:      "PYT2001",
	SynExpectIdentifier:     "PYT2002",
	SynExpectColon:          "PYT2003",
	SynExpectExpression:     "PYT2004",
	SynExpectIndent:         "PYT2005",
	SynExpectNewline:        "PYT2006",
	SynExpectModuleName:     "PYT2007",
	SynBadAssignTarget:      "PYT2008",
	SynUnclosedDelim:        "PYT2009",
	SynExpectParam:          "PYT2010",
	SemaInfo:                "PYT3000",
	SemaUnresolvedName:      "PYT3001",
	SemaUnresolvedImport:    "PYT3002",
	SemaUnresolvedAttribute: "PYT3003",
	SemaNotCallable:         "PYT3004",
	SemaBadArgumentCount:    "PYT3005",
	SemaBadArgumentType:     "PYT3006",
	SemaBadOverride:         "PYT3007",
	SemaCycleUnstable:       "PYT3008",
	SemaRedefinedName:       "PYT3009",
	SemaUnusedBinding:       "PYT3010",
	SemaBadRelativeImport:   "PYT3011",
	ConfInfo:                "PYT4000",
	ConfBadSearchPath:       "PYT4001",
	ConfAmbiguousModule:     "PYT4002",
	ConfUnknownTargetFormat: "PYT4003",
	InternalInfo:            "PYT9000",
	InternalInvariantBroken: "PYT9001",
}

// ID returns the stable user-facing identifier, e.g. "PYT3001".
func (c Code) ID() string {
	if id, ok := codeIDs[c]; ok {
		return id
	}
	return fmt.Sprintf("PYT%04d", uint16(c))
}

func (c Code) String() string {
	return c.ID()
}
