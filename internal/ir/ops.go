package ir

import "fmt"

// BinaryOp is the operator of a Binary node.
type BinaryOp uint8

const (
	OpEq BinaryOp = iota
	OpNeq
	OpLt
	OpLte
	OpGt
	OpGte
	OpAnd
	OpOr
	OpIn
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpConcat
)

var binaryOpText = [...]string{
	OpEq:     "=",
	OpNeq:    "<>",
	OpLt:     "<",
	OpLte:    "<=",
	OpGt:     ">",
	OpGte:    ">=",
	OpAnd:    "&&",
	OpOr:     "||",
	OpIn:     "in",
	OpAdd:    "+",
	OpSub:    "-",
	OpMul:    "*",
	OpDiv:    "/",
	OpConcat: "&",
}

func (op BinaryOp) String() string {
	if int(op) < len(binaryOpText) {
		return binaryOpText[op]
	}
	return fmt.Sprintf("binop(%d)", uint8(op))
}

// IsComparison reports whether op is one of =, <>, <, <=, >, >=.
func (op BinaryOp) IsComparison() bool {
	return op <= OpGte
}

// IsLogical reports whether op is && or ||.
func (op BinaryOp) IsLogical() bool {
	return op == OpAnd || op == OpOr
}

// ParseBinaryOp accepts both the symbolic form and a lowercase name
// ("eq", "lt", "and", ...), the latter being convenient in yaml fixtures.
func ParseBinaryOp(s string) (BinaryOp, error) {
	if op, ok := binaryOpNames[s]; ok {
		return op, nil
	}
	for op, text := range binaryOpText {
		if text == s {
			return BinaryOp(op), nil
		}
	}
	return 0, fmt.Errorf("unknown binary operator %q", s)
}

var binaryOpNames = map[string]BinaryOp{
	"eq":     OpEq,
	"neq":    OpNeq,
	"lt":     OpLt,
	"lte":    OpLte,
	"gt":     OpGt,
	"gte":    OpGte,
	"and":    OpAnd,
	"or":     OpOr,
	"in":     OpIn,
	"add":    OpAdd,
	"sub":    OpSub,
	"mul":    OpMul,
	"div":    OpDiv,
	"concat": OpConcat,
}

// UnaryOp is the operator of a Unary node.
type UnaryOp uint8

const (
	OpNot UnaryOp = iota
	OpNegate
)

func (op UnaryOp) String() string {
	switch op {
	case OpNot:
		return "!"
	case OpNegate:
		return "-"
	default:
		return fmt.Sprintf("unop(%d)", uint8(op))
	}
}
