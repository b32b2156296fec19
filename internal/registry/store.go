package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/mklatt/kwbreg/internal/fwversion"
	"github.com/mklatt/kwbreg/internal/logging"
)

// Configuration tree file and directory names.
const (
	UniversalFileName   = "modbus_registers.json"
	ValueTablesFileName = "value_tables.json"
	DevicesDirName      = "devices"
	EquipmentDirName    = "equipment"
)

// DefaultRegisterLimit caps the universal register selection.
const DefaultRegisterLimit = 1000

// loadState tags a cache entry so the negative-cache behavior is explicit:
// unknown categories and missing files cache as loaded-empty, malformed
// files cache as failed-empty. Both avoid repeated I/O.
type loadState int

const (
	stateNotLoaded loadState = iota
	stateLoaded
	stateFailed
)

// cacheEntry is the loaded state of one device or equipment category.
type cacheEntry struct {
	state     loadState
	registers []Register
}

// Store owns the register configuration for a single device instance. It
// lazily loads and caches the three configuration tiers (universal,
// device-specific, equipment-specific) rooted at the path resolved for the
// device's firmware version and display language.
//
// A Store has a single logical owner: no internal locking protects the
// caches. Two concurrent cold loads of the same category are benign (both
// produce identical cache content), but Reload must be serialized against
// all other access by the owner.
type Store struct {
	resolver *fwversion.Resolver

	version   string
	language  string
	configDir string

	universal   []Register
	valueTables map[string]ValueTable

	deviceCache    map[string]cacheEntry
	equipmentCache map[string]cacheEntry

	initialized bool

	// fileLoads counts configuration file reads, for cache verification
	fileLoads int
}

// NewStore creates a store for the given firmware version and language,
// asking the resolver for the configuration directory. Unsupported
// versions and languages are normalized by the resolver.
func NewStore(resolver *fwversion.Resolver, version, language string) (*Store, error) {
	dir, err := resolver.ResolvePath(version, language)
	if err != nil {
		return nil, newError(ErrKindResolve, "", err)
	}

	s := newStoreAt(dir)
	s.resolver = resolver
	s.version = version
	s.language = language
	logging.Info("Using version-specific config path",
		zap.String("version", version),
		zap.String("language", language),
		zap.String("path", dir),
	)
	return s, nil
}

// NewStoreAtPath creates a store reading directly from a configuration
// directory, bypassing version resolution. Reload is unavailable on such
// a store.
func NewStoreAtPath(configDir string) *Store {
	return newStoreAt(configDir)
}

func newStoreAt(dir string) *Store {
	return &Store{
		configDir:      dir,
		valueTables:    make(map[string]ValueTable),
		deviceCache:    make(map[string]cacheEntry),
		equipmentCache: make(map[string]cacheEntry),
	}
}

// CurrentVersion returns the firmware version the store was resolved for.
func (s *Store) CurrentVersion() string { return s.version }

// CurrentLanguage returns the display language the store was resolved for.
func (s *Store) CurrentLanguage() string { return s.language }

// ConfigDir returns the resolved configuration directory.
func (s *Store) ConfigDir() string { return s.configDir }

// FileLoads returns the number of configuration files read so far.
func (s *Store) FileLoads() int { return s.fileLoads }

// Initialize loads the universal tier. It is idempotent. A missing or
// malformed universal register file is fatal and leaves the store
// uninitialized; a missing or malformed value table file degrades to an
// empty table set.
func (s *Store) Initialize() error {
	if s.initialized {
		return nil
	}

	universal, err := s.loadUniversal()
	if err != nil {
		return err
	}
	s.universal = universal
	s.valueTables = s.loadValueTables()
	s.initialized = true

	logging.Info("Loaded register configuration",
		zap.String("path", s.configDir),
		zap.Int("universal_registers", len(s.universal)),
		zap.Int("value_tables", len(s.valueTables)),
	)
	return nil
}

// loadUniversal reads the required universal register file.
func (s *Store) loadUniversal() ([]Register, error) {
	path := filepath.Join(s.configDir, UniversalFileName)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, newError(ErrKindFatalConfig, path, err)
	}
	s.fileLoads++

	var file universalFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, newError(ErrKindFatalConfig, path, fmt.Errorf("invalid JSON: %w", err))
	}
	if err := registerValidator.Struct(&file); err != nil {
		return nil, newError(ErrKindFatalConfig, path, fmt.Errorf("schema violation: %w", err))
	}
	return file.UniversalRegisters, nil
}

// loadValueTables reads the value table file; failures degrade to an
// empty set.
func (s *Store) loadValueTables() map[string]ValueTable {
	path := filepath.Join(s.configDir, ValueTablesFileName)

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logging.Warn("Failed to read value tables", zap.String("path", path), zap.Error(err))
		}
		return make(map[string]ValueTable)
	}
	s.fileLoads++

	var file valueTablesFile
	if err := json.Unmarshal(data, &file); err != nil {
		logging.Warn("Invalid JSON in value tables", zap.String("path", path), zap.Error(err))
		return make(map[string]ValueTable)
	}
	if file.ValueTables == nil {
		return make(map[string]ValueTable)
	}
	return file.ValueTables
}

// loadRegistersFile reads and validates a device or equipment register
// file. Every failure is recoverable for these tiers.
func (s *Store) loadRegistersFile(path string) ([]Register, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, newError(ErrKindRecoverable, path, err)
	}
	s.fileLoads++

	var file registersFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, newError(ErrKindRecoverable, path, fmt.Errorf("invalid JSON: %w", err))
	}
	if err := registerValidator.Struct(&file); err != nil {
		return nil, newError(ErrKindValidation, path, fmt.Errorf("schema violation: %w", err))
	}
	return file.Registers, nil
}

// loadDevice loads and caches the register list for a device type. Unknown
// types and missing files are negative-cached as empty; malformed files
// are cached as failed (also empty) so the I/O is not repeated.
func (s *Store) loadDevice(deviceType string) []Register {
	if entry, ok := s.deviceCache[deviceType]; ok && entry.state != stateNotLoaded {
		return entry.registers
	}

	fileName, ok := deviceFiles[deviceType]
	if !ok {
		logging.Warn("Unknown device type", zap.String("device_type", deviceType))
		s.deviceCache[deviceType] = cacheEntry{state: stateLoaded}
		return nil
	}

	path := filepath.Join(s.configDir, DevicesDirName, fileName)
	registers, err := s.loadRegistersFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logging.Warn("Device configuration not found", zap.String("path", path))
			s.deviceCache[deviceType] = cacheEntry{state: stateLoaded}
		} else {
			logging.Error("Failed to load device configuration",
				zap.String("path", path),
				zap.Error(err),
			)
			s.deviceCache[deviceType] = cacheEntry{state: stateFailed}
		}
		return nil
	}

	s.deviceCache[deviceType] = cacheEntry{state: stateLoaded, registers: registers}
	logging.Info("Loaded device registers",
		zap.String("device_type", deviceType),
		zap.Int("count", len(registers)),
	)
	return registers
}

// loadEquipment loads and caches the register list for an equipment
// category, with the same negative-caching rules as loadDevice.
func (s *Store) loadEquipment(category string) []Register {
	if entry, ok := s.equipmentCache[category]; ok && entry.state != stateNotLoaded {
		return entry.registers
	}

	cat, ok := categoryByName(category)
	if !ok {
		logging.Warn("Unknown equipment type", zap.String("equipment_type", category))
		s.equipmentCache[category] = cacheEntry{state: stateLoaded}
		return nil
	}

	path := filepath.Join(s.configDir, EquipmentDirName, cat.FileName)
	registers, err := s.loadRegistersFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logging.Warn("Equipment configuration not found", zap.String("path", path))
			s.equipmentCache[category] = cacheEntry{state: stateLoaded}
		} else {
			logging.Error("Failed to load equipment configuration",
				zap.String("path", path),
				zap.Error(err),
			)
			s.equipmentCache[category] = cacheEntry{state: stateFailed}
		}
		return nil
	}

	s.equipmentCache[category] = cacheEntry{state: stateLoaded, registers: registers}
	logging.Info("Loaded equipment registers",
		zap.String("equipment_type", category),
		zap.Int("count", len(registers)),
	)
	return registers
}

// RegistersForAccessLevel returns up to limit universal registers visible
// at the given access level, normalized. Entries without a valid
// non-negative address are skipped.
func (s *Store) RegistersForAccessLevel(level AccessLevel, limit int) []Register {
	var out []Register
	for i := range s.universal {
		if len(out) >= limit {
			break
		}
		reg := &s.universal[i]
		if !reg.allowedFor(level) || !reg.HasValidAddress() {
			continue
		}
		out = append(out, s.normalize(*reg))
	}

	logging.Debug("Selected universal registers",
		zap.Int("count", len(out)),
		zap.String("access_level", string(level)),
		zap.Int("limit", limit),
	)
	return out
}

// DeviceRegisters returns the device-specific registers for the access
// level, normalized. Unknown device types resolve empty.
func (s *Store) DeviceRegisters(deviceType string, level AccessLevel) []Register {
	var out []Register
	for _, reg := range s.loadDevice(deviceType) {
		if reg.allowedFor(level) {
			out = append(out, s.normalize(reg))
		}
	}
	return out
}

// EquipmentRegisters returns the equipment registers for the access level,
// normalized. A positive count limits the result to the registers
// belonging to the installed instances: 1..count for one-indexed
// categories, 0..count-1 for zero-indexed ones, matched per the category's
// index convention. A count of zero or less returns every instance.
func (s *Store) EquipmentRegisters(category string, level AccessLevel, count int) []Register {
	loaded := s.loadEquipment(category)

	selected := loaded
	if count > 0 {
		cat, ok := categoryByName(category)
		if !ok {
			cat = Category{Name: category, Match: MatchDistinctTokens}
		}
		selected = filterByInstances(cat, loaded, count)
	}

	var out []Register
	for _, reg := range selected {
		if reg.allowedFor(level) {
			out = append(out, s.normalize(reg))
		}
	}

	logging.Debug("Selected equipment registers",
		zap.String("equipment_type", category),
		zap.Int("count", len(out)),
		zap.String("access_level", string(level)),
		zap.Int("instances", count),
	)
	return out
}

// filterByInstances keeps only the registers belonging to the first count
// installed instances of the category.
func filterByInstances(cat Category, registers []Register, count int) []Register {
	var out []Register

	switch cat.Match {
	case MatchDottedInstance, MatchTrailingToken:
		start := 1
		if cat.ZeroIndexed {
			start = 0
		}
		// Grouped by instance: all registers of instance i before i+1
		for i := start; i < start+count; i++ {
			for _, reg := range registers {
				if matchesInstance(cat.Match, reg.Index, i) {
					out = append(out, reg)
				}
			}
		}

	case MatchDistinctTokens:
		// No index policy for this category: admit the first count
		// distinct trailing tokens in file order
		seen := make(map[string]bool)
		for _, reg := range registers {
			if reg.Index == "" {
				continue
			}
			token := trailingToken(reg.Index)
			if !seen[token] && len(seen) < count {
				seen[token] = true
			}
			if seen[token] {
				out = append(out, reg)
			}
		}
	}

	return out
}

// matchesInstance applies one of the two index conventions.
func matchesInstance(match IndexMatch, index string, instance int) bool {
	switch match {
	case MatchDottedInstance:
		// "HK 1.1" style: match " 1." so the prefix stays language-neutral
		return strings.Contains(index, fmt.Sprintf(" %d.", instance))
	case MatchTrailingToken:
		// "PUF 0" style: exact trailing token equality
		return trailingToken(index) == strconv.Itoa(instance)
	default:
		return false
	}
}

// trailingToken returns the last whitespace-separated token of an index
// string, or "1" when the index has no tokens.
func trailingToken(index string) string {
	fields := strings.Fields(index)
	if len(fields) == 0 {
		return "1"
	}
	return fields[len(fields)-1]
}

// AllRegisters resolves the full register set for the access level, the
// declared equipment, and the device type. Tiers merge in fixed priority
// order (universal, then device, then equipment categories); the first
// register at an address wins and later duplicates are skipped.
func (s *Store) AllRegisters(level AccessLevel, equipment *EquipmentConfig, deviceType string) ([]Register, error) {
	if err := s.Initialize(); err != nil {
		return nil, err
	}

	var result []Register
	seen := make(map[int]bool)

	add := func(tier string, registers []Register) {
		added := 0
		for _, reg := range registers {
			if !reg.HasValidAddress() {
				continue
			}
			addr := reg.StartingAddress.Int()
			if seen[addr] {
				logging.Debug("Skipping duplicate register",
					zap.Int("address", addr),
					zap.String("name", reg.Name),
					zap.String("tier", tier),
				)
				continue
			}
			seen[addr] = true
			result = append(result, reg)
			added++
		}
		if added < len(registers) {
			logging.Debug("Merged register tier",
				zap.String("tier", tier),
				zap.Int("added", added),
				zap.Int("skipped", len(registers)-added),
			)
		}
	}

	add("universal", s.RegistersForAccessLevel(level, DefaultRegisterLimit))

	if deviceType != "" {
		add("device", s.DeviceRegisters(deviceType, level))
	}

	if equipment != nil {
		for _, cc := range equipment.CategoryCounts() {
			if cc.Count > 0 {
				add(cc.Category, s.EquipmentRegisters(cc.Category, level, cc.Count))
			}
		}
	}

	return result, nil
}

// RegisterByAddress returns the raw (un-normalized) register definition at
// an address, searching the universal tier and then every cached device
// and equipment category. It never triggers a load; registers in tiers
// that were never requested are not found.
func (s *Store) RegisterByAddress(address int) (Register, bool) {
	for _, reg := range s.universal {
		if reg.HasValidAddress() && reg.StartingAddress.Int() == address {
			return reg, true
		}
	}
	for _, entry := range s.deviceCache {
		for _, reg := range entry.registers {
			if reg.HasValidAddress() && reg.StartingAddress.Int() == address {
				return reg, true
			}
		}
	}
	for _, entry := range s.equipmentCache {
		for _, reg := range entry.registers {
			if reg.HasValidAddress() && reg.StartingAddress.Int() == address {
				return reg, true
			}
		}
	}
	return Register{}, false
}

// ValueTable returns a value table by name.
func (s *Store) ValueTable(name string) (ValueTable, bool) {
	vt, ok := s.valueTables[name]
	return vt, ok
}

// HasValueTable reports whether a value table exists.
func (s *Store) HasValueTable(name string) bool {
	_, ok := s.valueTables[name]
	return ok
}

// ValueTables returns all loaded value tables.
func (s *Store) ValueTables() map[string]ValueTable {
	out := make(map[string]ValueTable, len(s.valueTables))
	for name, vt := range s.valueTables {
		out[name] = vt
	}
	return out
}

// Reload switches the store to a different version and language. Reload is
// transactional with respect to path resolution: the new path is resolved
// before any state changes, and on resolution failure the store keeps its
// previous version, language, caches, and initialization state. After a
// successful resolution all tiers and caches are cleared and the universal
// tier is loaded fresh.
func (s *Store) Reload(version, language string) error {
	if s.resolver == nil {
		return ErrNoResolver
	}

	logging.Info("Reloading register configuration",
		zap.String("version", version),
		zap.String("language", language),
	)

	dir, err := s.resolver.ResolvePath(version, language)
	if err != nil {
		logging.Error("Could not resolve config path, keeping current configuration",
			zap.Error(err),
		)
		return newError(ErrKindResolve, "", err)
	}

	// Commit: from here on the store is bound to the new path
	s.version = version
	s.language = language
	s.configDir = dir
	s.universal = nil
	s.valueTables = make(map[string]ValueTable)
	s.deviceCache = make(map[string]cacheEntry)
	s.equipmentCache = make(map[string]cacheEntry)
	s.initialized = false

	if err := s.Initialize(); err != nil {
		return err
	}

	logging.Info("Configuration reloaded",
		zap.String("version", version),
		zap.String("language", language),
		zap.String("path", dir),
	)
	return nil
}

