package ast

type (
	// FileID identifies a parsed module inside a Builder.
	FileID uint32
	// StmtID identifies a statement node.
	StmtID uint32
	// ExprID identifies an expression node.
	ExprID uint32
	// PayloadID points into a per-kind payload arena.
	PayloadID uint32
)

const (
	NoFileID FileID = 0
	NoStmtID StmtID = 0
	NoExprID ExprID = 0
)

func (id FileID) IsValid() bool { return id != NoFileID }
func (id StmtID) IsValid() bool { return id != NoStmtID }
func (id ExprID) IsValid() bool { return id != NoExprID }
