package ir

import "fmt"

// FuncID identifies a builtin function called by a Call node.
type FuncID uint16

const (
	FuncUnknown FuncID = iota

	// Table-rooted functions the planner knows how to delegate.
	FuncFilter
	FuncLookUp
	FuncFirst
	FuncFirstN
	FuncCountRows
	FuncSortByColumns
	FuncShowColumns

	// Table-rooted functions that are never delegated.
	FuncSum
	FuncIsBlank
	FuncIsError
	FuncPatch
	FuncCollect
	FuncRemove

	// Behavior functions without a table argument.
	FuncNavigate
	FuncSet
	FuncNotify

	// Scalar functions.
	FuncAnd
	FuncOr
	FuncNot
	FuncStartsWith
	FuncEndsWith

	// Well-known plan functions produced by the materializer and consumed by
	// the executor.
	FuncRetrieveSingle
	FuncRetrieveMany
	FuncRetrieveByKey
	FuncRetrieveAggregate
)

// Variadic marks a FuncInfo.MaxArgs without an upper bound.
const Variadic = -1

// FuncInfo describes a builtin's static properties.
type FuncInfo struct {
	Name string

	// TableArg is set when parameter 0 is table-shaped.
	TableArg bool

	// Behavior is set for side-effecting functions. Delegated predicates
	// must never call one.
	Behavior bool

	// Opaque is set for functions that accept a table argument as a whole
	// value (IsBlank, IsError) or mutate it (Patch, Collect, Remove). A bare
	// table reference passed to them is a normal use, not a failed delegation.
	Opaque bool

	// Plan marks the materialized query plan functions.
	Plan bool

	MinArgs int
	MaxArgs int
}

// funcTable is indexed by FuncID. It is built once and never mutated.
var funcTable = [...]FuncInfo{
	FuncUnknown: {Name: "Unknown", MaxArgs: Variadic},

	FuncFilter:        {Name: "Filter", TableArg: true, MinArgs: 2, MaxArgs: Variadic},
	FuncLookUp:        {Name: "LookUp", TableArg: true, MinArgs: 2, MaxArgs: 3},
	FuncFirst:         {Name: "First", TableArg: true, MinArgs: 1, MaxArgs: 1},
	FuncFirstN:        {Name: "FirstN", TableArg: true, MinArgs: 1, MaxArgs: 2},
	FuncCountRows:     {Name: "CountRows", TableArg: true, MinArgs: 1, MaxArgs: 1},
	FuncSortByColumns: {Name: "SortByColumns", TableArg: true, MinArgs: 2, MaxArgs: Variadic},
	FuncShowColumns:   {Name: "ShowColumns", TableArg: true, MinArgs: 2, MaxArgs: Variadic},

	FuncSum:     {Name: "Sum", TableArg: true, MinArgs: 2, MaxArgs: 2},
	FuncIsBlank: {Name: "IsBlank", TableArg: true, Opaque: true, MinArgs: 1, MaxArgs: 1},
	FuncIsError: {Name: "IsError", TableArg: true, Opaque: true, MinArgs: 1, MaxArgs: 1},
	FuncPatch:   {Name: "Patch", TableArg: true, Opaque: true, Behavior: true, MinArgs: 2, MaxArgs: Variadic},
	FuncCollect: {Name: "Collect", TableArg: true, Opaque: true, Behavior: true, MinArgs: 2, MaxArgs: Variadic},
	FuncRemove:  {Name: "Remove", TableArg: true, Opaque: true, Behavior: true, MinArgs: 2, MaxArgs: Variadic},

	FuncNavigate: {Name: "Navigate", Behavior: true, MinArgs: 1, MaxArgs: Variadic},
	FuncSet:      {Name: "Set", Behavior: true, MinArgs: 2, MaxArgs: 2},
	FuncNotify:   {Name: "Notify", Behavior: true, MinArgs: 1, MaxArgs: 2},

	FuncAnd:        {Name: "And", MinArgs: 1, MaxArgs: Variadic},
	FuncOr:         {Name: "Or", MinArgs: 1, MaxArgs: Variadic},
	FuncNot:        {Name: "Not", MinArgs: 1, MaxArgs: 1},
	FuncStartsWith: {Name: "StartsWith", MinArgs: 2, MaxArgs: 2},
	FuncEndsWith:   {Name: "EndsWith", MinArgs: 2, MaxArgs: 2},

	FuncRetrieveSingle:    {Name: "__retrieveSingle", Plan: true, MinArgs: 7, MaxArgs: 7},
	FuncRetrieveMany:      {Name: "__retrieveMultiple", Plan: true, MinArgs: 7, MaxArgs: 7},
	FuncRetrieveByKey:     {Name: "__retrieveGUID", Plan: true, MinArgs: 3, MaxArgs: 3},
	FuncRetrieveAggregate: {Name: "__retrieveAggregate", Plan: true, MinArgs: 8, MaxArgs: 8},
}

var funcByName = func() map[string]FuncID {
	m := make(map[string]FuncID, len(funcTable))
	for id, info := range funcTable {
		if FuncID(id) != FuncUnknown {
			m[info.Name] = FuncID(id)
		}
	}
	return m
}()

// Info returns the static description of f.
func (f FuncID) Info() FuncInfo {
	if int(f) < len(funcTable) {
		return funcTable[f]
	}
	return funcTable[FuncUnknown]
}

func (f FuncID) String() string {
	if int(f) < len(funcTable) {
		return funcTable[f].Name
	}
	return fmt.Sprintf("func(%d)", uint16(f))
}

// AcceptsArgs reports whether n arguments fit the declared arity.
func (f FuncID) AcceptsArgs(n int) bool {
	info := f.Info()
	if n < info.MinArgs {
		return false
	}
	return info.MaxArgs == Variadic || n <= info.MaxArgs
}

// LookupFunc resolves a builtin by its formula name.
func LookupFunc(name string) (FuncID, bool) {
	id, ok := funcByName[name]
	return id, ok
}
