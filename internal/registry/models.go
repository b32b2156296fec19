package registry

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// AccessLevel is the privilege level a register set is resolved for.
type AccessLevel string

const (
	// UserLevel exposes only registers readable at user level
	UserLevel AccessLevel = "UserLevel"

	// ExpertLevel is a superset of UserLevel and exposes every register
	ExpertLevel AccessLevel = "ExpertLevel"
)

// ParseAccessLevel converts a string to an AccessLevel.
func ParseAccessLevel(s string) (AccessLevel, error) {
	switch s {
	case string(UserLevel):
		return UserLevel, nil
	case string(ExpertLevel):
		return ExpertLevel, nil
	default:
		return "", fmt.Errorf("unknown access level %q (expected UserLevel or ExpertLevel)", s)
	}
}

// Access descriptor values used in user_level/expert_level fields.
const (
	AccessNone      = "none"
	AccessRead      = "read"
	AccessWrite     = "write"
	AccessReadWrite = "readwrite"
)

// invalidAddress marks a starting_address field that could not be decoded
// as a non-negative integer. Entries carrying it are skipped, not errors.
const invalidAddress Address = -1

// Address is a register address. The configuration files are generated
// from spreadsheets and sometimes encode addresses as digit strings, so
// decoding tolerates both JSON numbers and numeric strings. Content that
// is neither decodes to an invalid marker instead of failing the file.
type Address int

// UnmarshalJSON accepts a JSON number or a digit string.
func (a *Address) UnmarshalJSON(data []byte) error {
	// Unmarshaling null into an int is a silent no-op, so catch it here
	if string(data) == "null" {
		*a = invalidAddress
		return nil
	}

	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		*a = Address(n)
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if v, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			*a = Address(v)
			return nil
		}
	}

	*a = invalidAddress
	return nil
}

// Int returns the address as a plain int.
func (a Address) Int() int { return int(a) }

// Register is a single addressable data point definition from the
// configuration tree. Optional fields stay at their zero value when the
// source file omits them.
type Register struct {
	// StartingAddress is the register address; nil when the field is
	// absent from the source file
	StartingAddress *Address `json:"starting_address,omitempty"`

	// Name is the language-dependent display name
	Name string `json:"name" validate:"required"`

	// EntityID is the language-independent stable identifier
	EntityID string `json:"entity_id,omitempty"`

	// DataType is the register data kind (e.g. "s16", "u16")
	DataType string `json:"data_type,omitempty"`

	// Type is an alternate data kind field used by older config files
	Type string `json:"type,omitempty"`

	// UserLevel and ExpertLevel are the access descriptors per privilege
	// level: none, read, write, or readwrite
	UserLevel   string `json:"user_level,omitempty" validate:"omitempty,oneof=none read write readwrite"`
	ExpertLevel string `json:"expert_level,omitempty" validate:"omitempty,oneof=none read write readwrite"`

	// Index assigns the register to an equipment instance
	// (e.g. "HK 1.1", "PUF 0"); empty for universal registers
	Index string `json:"index,omitempty"`

	// Min and Max are optional numeric bounds
	Min *float64 `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`

	// UnitValueTable names the value table mapping raw values to labels
	UnitValueTable string `json:"unit_value_table,omitempty"`

	// NumberOfRegisters is the register-count span for multi-register values
	NumberOfRegisters int `json:"number_of_registers,omitempty" validate:"gte=0"`

	// AccessLevel and Access are derived during normalization and are not
	// expected in source files
	AccessLevel AccessLevel `json:"access_level,omitempty"`
	Access      string      `json:"access,omitempty"`
}

// HasValidAddress reports whether the register carries a usable
// non-negative starting address.
func (r *Register) HasValidAddress() bool {
	return r.StartingAddress != nil && *r.StartingAddress >= 0
}

// allowedFor reports whether the register is visible at the given access
// level. Expert level admits everything; user level requires readability
// in the user-level descriptor.
func (r *Register) allowedFor(level AccessLevel) bool {
	switch level {
	case ExpertLevel:
		return true
	case UserLevel:
		return strings.Contains(strings.ToLower(r.UserLevel), AccessRead)
	default:
		return false
	}
}

// grantsWrite reports whether either access descriptor allows writing.
func (r *Register) grantsWrite() bool {
	return strings.Contains(strings.ToLower(r.UserLevel), AccessWrite) ||
		strings.Contains(strings.ToLower(r.ExpertLevel), AccessWrite)
}

// ValueTable maps raw register values (as decoded from JSON, keyed by
// their string form) to display strings.
type ValueTable map[string]string

// Lookup resolves a raw integer value to its display string.
func (vt ValueTable) Lookup(raw int) (string, bool) {
	s, ok := vt[strconv.Itoa(raw)]
	return s, ok
}

// File container structures for the configuration tree.

// universalFile is the shape of modbus_registers.json.
type universalFile struct {
	UniversalRegisters []Register `json:"universal_registers" validate:"required,dive"`
}

// valueTablesFile is the shape of value_tables.json.
type valueTablesFile struct {
	ValueTables map[string]ValueTable `json:"value_tables"`
}

// registersFile is the shape of devices/*.json and equipment/*.json.
type registersFile struct {
	Registers []Register `json:"registers" validate:"dive"`
}

// registerValidator validates decoded register files against their schema.
var registerValidator = validator.New()
