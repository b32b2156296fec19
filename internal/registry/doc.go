// Package registry resolves the register set for a KWB heating device.
//
// Given a firmware version, a display language, an access privilege level,
// and the declared equipment inventory (how many heating circuits, buffer
// tanks, and so on are installed), the Store produces the exact,
// deduplicated set of register definitions that apply to that device
// instance.
//
// # Configuration Tree
//
// Registers come from three tiers under the version/language directory
// resolved by the fwversion package:
//
//	<base>/versions/v22.7.1/de/
//	    modbus_registers.json    universal registers (required)
//	    value_tables.json        raw value -> display string tables
//	    devices/<type>.json      device-specific registers
//	    equipment/<file>.json    per-equipment-category registers
//
// The universal tier loads on Initialize and is fatal when missing or
// malformed. Device and equipment tiers load lazily per category and cache
// their result, including negative results, so unknown types and missing
// files cost one lookup.
//
// # Equipment Instance Filtering
//
// Equipment registers carry an index string assigning them to an installed
// instance. Two incompatible conventions exist in the data: heating
// circuits use dotted sub-indices ("HK 1.1") matched by the substring
// " 1.", while every other known category uses a flat trailing number
// ("PUF 0") matched by exact token equality. Some categories number
// instances from 0 internally but always display 1-based. The policy table
// in equipment.go captures these differences per category.
//
// # Merging
//
// AllRegisters unions the tiers in fixed priority order - universal, then
// device-specific, then each configured equipment category - skipping any
// register whose address already appeared. Within any resolved set,
// addresses are unique.
//
// # Ownership
//
// A Store belongs to a single coordinating owner. Concurrent reads during
// a cold load are benign; Reload must be serialized against all other
// access.
package registry
