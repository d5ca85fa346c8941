package ir

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/google/uuid"
)

// Value is a sealed interface representing typed scalar literal values.
// Only Null, String, Int, Decimal, Bool and Guid implement it.
// NO float type - decimals are carried as exact text so that literal
// comparisons and canonical encodings stay deterministic.
type Value interface {
	irValue() // Sealed - only these types implement it

	// Kind is the natural result kind of the literal.
	Kind() Kind
}

// Null represents the blank value.
type Null struct{}

func (Null) irValue()   {}
func (Null) Kind() Kind { return KindBlank }

// String represents a text value.
type String string

func (String) irValue()   {}
func (String) Kind() Kind { return KindString }

// Int represents an integral number.
type Int int64

func (Int) irValue()   {}
func (Int) Kind() Kind { return KindNumber }

// Decimal represents an exact decimal number as its canonical text, e.g. "12.50".
type Decimal string

func (Decimal) irValue()   {}
func (Decimal) Kind() Kind { return KindDecimal }

// Bool represents a boolean value.
type Bool bool

func (Bool) irValue()   {}
func (Bool) Kind() Kind { return KindBoolean }

// Guid represents a unique identifier value, typically a primary key.
type Guid uuid.UUID

func (Guid) irValue()   {}
func (Guid) Kind() Kind { return KindGuid }

func (g Guid) String() string {
	return uuid.UUID(g).String()
}

var decimalPattern = regexp.MustCompile(`^-?[0-9]+(\.[0-9]+)?$`)

// NewDecimal validates s as a plain decimal literal.
func NewDecimal(s string) (Decimal, error) {
	if !decimalPattern.MatchString(s) {
		return "", fmt.Errorf("invalid decimal literal %q", s)
	}
	return Decimal(s), nil
}

// ParseGuid parses the textual form of a guid literal.
func ParseGuid(s string) (Guid, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return Guid{}, fmt.Errorf("invalid guid literal %q: %w", s, err)
	}
	return Guid(u), nil
}

// MustGuid is like ParseGuid but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustGuid(s string) Guid {
	g, err := ParseGuid(s)
	if err != nil {
		panic(err)
	}
	return g
}

// FormatValue renders a literal the way it would be written in a formula.
func FormatValue(v Value) string {
	switch val := v.(type) {
	case nil, Null:
		return "Blank()"
	case String:
		return strconv.Quote(string(val))
	case Int:
		return strconv.FormatInt(int64(val), 10)
	case Decimal:
		return string(val)
	case Bool:
		return strconv.FormatBool(bool(val))
	case Guid:
		return fmt.Sprintf("GUID(%q)", val.String())
	default:
		return fmt.Sprintf("%v", v)
	}
}
