package queryir

import (
	"fmt"
	"strings"
)

// Capability is a bitmask of the query features a remote table supports.
type Capability uint16

const (
	CapFilter Capability = 1 << iota
	CapSort
	CapTop
	CapColumnProjection
	CapGroupBy
	CapJoin
	CapCount
	CapTopLevelAggregation

	// CapNone is the empty set.
	CapNone Capability = 0
	// CapAll is every known feature.
	CapAll = CapFilter | CapSort | CapTop | CapColumnProjection | CapGroupBy | CapJoin | CapCount | CapTopLevelAggregation
)

// capabilityNames lists features in bit order. Names are the spelling used
// in schema files.
var capabilityNames = [...]struct {
	cap  Capability
	name string
}{
	{CapFilter, "filter"},
	{CapSort, "sort"},
	{CapTop, "top"},
	{CapColumnProjection, "column_projection"},
	{CapGroupBy, "group_by"},
	{CapJoin, "join"},
	{CapCount, "count"},
	{CapTopLevelAggregation, "top_level_aggregation"},
}

// Has reports whether every feature in want is present in c.
func (c Capability) Has(want Capability) bool {
	return c&want == want
}

// Missing returns the features of want that c lacks.
func (c Capability) Missing(want Capability) Capability {
	return want &^ c
}

// String renders the set as "filter|sort|top", or "none".
func (c Capability) String() string {
	if c == CapNone {
		return "none"
	}
	var parts []string
	for _, n := range capabilityNames {
		if c&n.cap != 0 {
			parts = append(parts, n.name)
		}
	}
	if rest := c &^ CapAll; rest != 0 {
		parts = append(parts, fmt.Sprintf("0x%x", uint16(rest)))
	}
	return strings.Join(parts, "|")
}

// Names returns the feature names in bit order.
func (c Capability) Names() []string {
	var out []string
	for _, n := range capabilityNames {
		if c&n.cap != 0 {
			out = append(out, n.name)
		}
	}
	return out
}

// ParseCapability resolves a single feature name.
func ParseCapability(name string) (Capability, error) {
	for _, n := range capabilityNames {
		if n.name == name {
			return n.cap, nil
		}
	}
	return CapNone, fmt.Errorf("unknown capability %q", name)
}

// ParseCapabilities combines a list of feature names into one set.
func ParseCapabilities(names []string) (Capability, error) {
	var c Capability
	for _, name := range names {
		bit, err := ParseCapability(name)
		if err != nil {
			return CapNone, err
		}
		c |= bit
	}
	return c, nil
}

// ErrCapabilityMissing is the code of a ContractError raised when a plan
// requests a feature its table does not support.
const ErrCapabilityMissing = "E201"

// ContractError reports a plan that violates its table's capabilities.
// Planners must never build such a plan, so this always indicates a bug.
type ContractError struct {
	Code    string     `json:"code"`
	Table   string     `json:"table"`
	Missing Capability `json:"missing"`
}

func (e *ContractError) Error() string {
	return fmt.Sprintf("[%s] plan over table %q requests unsupported capabilities: %s", e.Code, e.Table, e.Missing)
}

// CheckCapabilities verifies that every feature r requires is present in
// supported.
func CheckCapabilities(r Retrieve, supported Capability) error {
	missing := supported.Missing(r.Requires())
	if missing == CapNone {
		return nil
	}
	return &ContractError{Code: ErrCapabilityMissing, Table: r.TableName(), Missing: missing}
}
