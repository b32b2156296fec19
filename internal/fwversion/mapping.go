package fwversion

import (
	_ "embed"
	"encoding/json"
	"fmt"
)

//go:embed default_mapping.json
var defaultMappingJSON []byte

// Well-known register layout keys found in version_mapping.json.
const (
	// LayoutSoftwareVersion is the address of the first software version register.
	// The device stores major, minor, and patch in three consecutive registers.
	LayoutSoftwareVersion = "software_version"

	// LayoutDeviceInfoStart is the start of the device information block.
	LayoutDeviceInfoStart = "device_info_start"
)

// VersionInfo describes one supported firmware version: where its
// configuration tree lives, which display languages it ships, and the
// well-known register addresses for that firmware generation.
type VersionInfo struct {
	// ConfigPath is the directory of this version's configuration tree,
	// relative to the resolver base path (e.g. "versions/v22.7.1")
	ConfigPath string `json:"config_path" validate:"required"`

	// SupportedLanguages lists the language codes this version ships
	// configuration for. The first entry is the fallback language.
	SupportedLanguages []string `json:"supported_languages" validate:"required,min=1"`

	// RegisterLayouts maps well-known register names to addresses
	RegisterLayouts map[string]int `json:"register_layouts,omitempty"`
}

// FallbackRules controls what happens when a detected version is not
// directly supported.
type FallbackRules struct {
	// Strategy names the fallback strategy (currently "closest_match")
	Strategy string `json:"strategy"`

	// DefaultVersion is used when a version cannot be parsed or matched
	DefaultVersion string `json:"default_version"`
}

// Mapping is the on-disk structure of version_mapping.json.
type Mapping struct {
	SupportedVersions map[string]VersionInfo `json:"supported_versions" validate:"required,min=1,dive"`
	FallbackRules     FallbackRules          `json:"fallback_rules"`
}

// parseMapping decodes and validates a version mapping document.
func parseMapping(data []byte) (*Mapping, error) {
	var m Mapping
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse version mapping: %w", err)
	}
	if err := mappingValidator.Struct(&m); err != nil {
		return nil, fmt.Errorf("invalid version mapping: %w", err)
	}
	return &m, nil
}

// defaultMapping returns the embedded built-in mapping. The embedded
// document is validated at first use; a corrupt embed is a programming
// error, so this panics rather than returning an error.
func defaultMapping() *Mapping {
	m, err := parseMapping(defaultMappingJSON)
	if err != nil {
		panic(fmt.Sprintf("embedded default_mapping.json is invalid: %v", err))
	}
	return m
}
