package store

import (
	"fmt"
	"strconv"

	"github.com/roach88/delegate/internal/ir"
	"github.com/roach88/delegate/internal/querysql"
)

// marshalValue converts v to the parameter stored in a column of kind.
// Blank is stored as NULL in every column.
func marshalValue(kind ir.Kind, v ir.Value) (any, error) {
	if v == nil {
		return nil, nil
	}
	if _, blank := v.(ir.Null); blank {
		return nil, nil
	}
	if !compatible(kind, v.Kind()) {
		return nil, fmt.Errorf("%s value in %s column", v.Kind(), kind)
	}
	return querysql.Param(v)
}

func compatible(column, value ir.Kind) bool {
	switch column {
	case ir.KindNumber, ir.KindDecimal, ir.KindCurrency:
		return value == ir.KindNumber || value == ir.KindDecimal
	case ir.KindDateTime:
		return value == ir.KindString
	default:
		return column == value
	}
}

// unmarshalValue converts a scanned column back to a value of kind.
// go-sqlite3 scans INTEGER as int64, REAL as float64 and TEXT as string.
func unmarshalValue(kind ir.Kind, raw any) (ir.Value, error) {
	if raw == nil {
		return ir.Null{}, nil
	}
	switch kind {
	case ir.KindBoolean:
		switch v := raw.(type) {
		case int64:
			return ir.Bool(v != 0), nil
		case bool:
			return ir.Bool(v), nil
		}
	case ir.KindNumber, ir.KindDecimal, ir.KindCurrency:
		switch v := raw.(type) {
		case int64:
			return ir.Int(v), nil
		case float64:
			return ir.Decimal(strconv.FormatFloat(v, 'f', -1, 64)), nil
		}
	case ir.KindString, ir.KindDateTime:
		switch v := raw.(type) {
		case string:
			return ir.String(v), nil
		case []byte:
			return ir.String(v), nil
		}
	case ir.KindGuid:
		switch v := raw.(type) {
		case string:
			return ir.ParseGuid(v)
		case []byte:
			return ir.ParseGuid(string(v))
		}
	}
	return nil, fmt.Errorf("cannot read %T as %s", raw, kind)
}
