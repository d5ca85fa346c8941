package ir

import (
	"bytes"
	"fmt"
	"slices"
	"strconv"
	"unicode/utf16"

	"golang.org/x/text/unicode/norm"
)

// MarshalCanonical encodes a tree as RFC 8785 canonical JSON.
//
// CRITICAL: this is the ONLY encoding used for fingerprints and golden
// snapshots. Compared to encoding/json:
//  1. Object keys are sorted by UTF-16 code units (not UTF-8 bytes)
//  2. No HTML escaping (< > & are written literally)
//  3. Strings are NFC normalized
//  4. Spans are omitted, so moving a formula around does not change it
func MarshalCanonical(n Node) ([]byte, error) {
	obj, err := canonicalNode(n)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := writeCanonical(&buf, obj); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// MarshalCanonicalData encodes plain data the same way: map[string]any,
// []any, []string, string, int, int64 and bool. Harness snapshots use it.
func MarshalCanonicalData(v any) ([]byte, error) {
	data, err := canonicalData(v)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := writeCanonical(&buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func canonicalData(v any) (any, error) {
	switch val := v.(type) {
	case string, int64, bool:
		return val, nil
	case int:
		return int64(val), nil
	case []string:
		out := make([]any, len(val))
		for i, s := range val {
			out[i] = s
		}
		return out, nil
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			d, err := canonicalData(e)
			if err != nil {
				return nil, fmt.Errorf("array[%d]: %w", i, err)
			}
			out[i] = d
		}
		return out, nil
	case map[string]any:
		out := make(object, len(val))
		for k, e := range val {
			d, err := canonicalData(e)
			if err != nil {
				return nil, fmt.Errorf("key %q: %w", k, err)
			}
			out[k] = d
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported type for canonical JSON: %T", v)
	}
}

// object is the intermediate map form of a node.
type object map[string]any

func canonicalNode(n Node) (any, error) {
	if n == nil {
		return nil, fmt.Errorf("nil node is not encodable")
	}
	obj := object{"type": n.Type().String()}
	switch v := n.(type) {
	case *Literal:
		obj["kind"] = "literal"
		if val, ok := canonicalValue(v.Value); ok {
			obj["value"] = val
		}
	case *Record:
		obj["kind"] = "record"
		fields := make([]any, len(v.Fields))
		for i, f := range v.Fields {
			val, err := canonicalNode(f.Value)
			if err != nil {
				return nil, fmt.Errorf("record field %q: %w", f.Name, err)
			}
			fields[i] = object{"name": f.Name, "value": val}
		}
		obj["fields"] = fields
	case *Call:
		obj["kind"] = "call"
		obj["func"] = v.Func.String()
		if v.Scope != 0 {
			obj["scope"] = int64(v.Scope)
		}
		args, err := canonicalNodes(v.Args)
		if err != nil {
			return nil, fmt.Errorf("%s args: %w", v.Func, err)
		}
		obj["args"] = args
	case *Binary:
		obj["kind"] = "binary"
		obj["op"] = v.Op.String()
		left, err := canonicalNode(v.Left)
		if err != nil {
			return nil, err
		}
		right, err := canonicalNode(v.Right)
		if err != nil {
			return nil, err
		}
		obj["left"], obj["right"] = left, right
	case *Unary:
		obj["kind"] = "unary"
		obj["op"] = v.Op.String()
		child, err := canonicalNode(v.Child)
		if err != nil {
			return nil, err
		}
		obj["child"] = child
	case *FieldAccess:
		obj["kind"] = "field"
		obj["name"] = v.Name
		base, err := canonicalNode(v.Base)
		if err != nil {
			return nil, err
		}
		obj["base"] = base
	case *ScopeAccess:
		obj["kind"] = "scope_field"
		obj["scope"] = int64(v.Scope)
		obj["name"] = v.Name
	case *Ref:
		obj["kind"] = "ref"
		obj["name"] = v.Symbol.Name
		obj["symbol"] = v.Symbol.Kind.String()
	case *Lazy:
		obj["kind"] = "lazy"
		child, err := canonicalNode(v.Child)
		if err != nil {
			return nil, err
		}
		obj["child"] = child
	case *Chain:
		obj["kind"] = "chain"
		nodes, err := canonicalNodes(v.Nodes)
		if err != nil {
			return nil, err
		}
		obj["nodes"] = nodes
	case *AggregateCoercion:
		obj["kind"] = "coercion"
		child, err := canonicalNode(v.Child)
		if err != nil {
			return nil, err
		}
		obj["child"] = child
		cs := make([]any, len(v.Coercions))
		for i, c := range v.Coercions {
			cs[i] = object{"field": c.Field, "to": c.To.String()}
		}
		obj["coercions"] = cs
	case *Error:
		obj["kind"] = "error"
		obj["message"] = v.Message
	case *Embedded:
		obj["kind"] = "embedded"
		if v.Value != nil {
			obj["fragment"] = v.Value.String()
		}
	default:
		return nil, fmt.Errorf("unsupported node type for canonical JSON: %T", n)
	}
	return obj, nil
}

func canonicalNodes(nodes []Node) ([]any, error) {
	out := make([]any, len(nodes))
	for i, n := range nodes {
		v, err := canonicalNode(n)
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

// canonicalValue returns the JSON form of a literal. Blank has no value key.
func canonicalValue(v Value) (any, bool) {
	switch val := v.(type) {
	case String:
		return string(val), true
	case Int:
		return int64(val), true
	case Decimal:
		return string(val), true
	case Bool:
		return bool(val), true
	case Guid:
		return val.String(), true
	default:
		return nil, false
	}
}

func writeCanonical(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case string:
		writeCanonicalString(buf, val)
	case int64:
		buf.WriteString(strconv.FormatInt(val, 10))
	case bool:
		buf.WriteString(strconv.FormatBool(val))
	case []any:
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonical(buf, elem); err != nil {
				return fmt.Errorf("array[%d]: %w", i, err)
			}
		}
		buf.WriteByte(']')
	case object:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		slices.SortFunc(keys, compareKeysRFC8785)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeCanonicalString(buf, k)
			buf.WriteByte(':')
			if err := writeCanonical(buf, val[k]); err != nil {
				return fmt.Errorf("key %q: %w", k, err)
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("unsupported type for canonical JSON: %T", v)
	}
	return nil
}

// writeCanonicalString writes s NFC normalized and escaped per RFC 8785:
// only quote, backslash and control characters below U+0020 are escaped.
func writeCanonicalString(buf *bytes.Buffer, s string) {
	s = norm.NFC.String(s)
	buf.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			buf.WriteString(`\"`)
		case '\\':
			buf.WriteString(`\\`)
		case '\b':
			buf.WriteString(`\b`)
		case '\f':
			buf.WriteString(`\f`)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\t':
			buf.WriteString(`\t`)
		default:
			if r < 0x20 {
				fmt.Fprintf(buf, `\u%04x`, r)
				continue
			}
			buf.WriteRune(r)
		}
	}
	buf.WriteByte('"')
}

// compareKeysRFC8785 compares strings using UTF-16 code unit ordering
// as required by RFC 8785.
// CRITICAL: Go's default string comparison uses UTF-8 which produces a
// DIFFERENT order for characters outside the BMP.
func compareKeysRFC8785(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))
	return slices.Compare(a16, b16)
}
