package profile

import (
	"fmt"
	"sort"
	"time"

	"github.com/mklatt/kwbreg/internal/registry"
)

// Registry is the entire user profile file. It stores named device
// profiles and application preferences.
type Registry struct {
	Version     int                 `yaml:"version"`
	Profiles    map[string]*Profile `yaml:"profiles,omitempty"` // Keyed by profile name
	Preferences *Preferences        `yaml:"preferences,omitempty"`
}

// Profile is one saved device configuration: everything needed to
// resolve a register set without re-entering flags.
type Profile struct {
	DeviceType      string                   `yaml:"device_type,omitempty"`      // e.g. "KWB Easyfire"
	FirmwareVersion string                   `yaml:"firmware_version,omitempty"` // e.g. "22.7.1"
	Language        string                   `yaml:"language,omitempty"`         // e.g. "de"
	AccessLevel     string                   `yaml:"access_level,omitempty"`     // "UserLevel" or "ExpertLevel"
	Equipment       registry.EquipmentConfig `yaml:"equipment,omitempty"`
	LastUsed        time.Time                `yaml:"last_used,omitempty"`
}

// Preferences are application-wide user preferences.
type Preferences struct {
	DefaultProfile  string `yaml:"default_profile,omitempty"`  // Profile used when none is named
	DefaultLanguage string `yaml:"default_language,omitempty"` // Language used when a profile omits one
}

// NewRegistry creates a Registry with default values.
func NewRegistry() *Registry {
	return &Registry{
		Version:  1,
		Profiles: make(map[string]*Profile),
		Preferences: &Preferences{
			DefaultLanguage: "de",
		},
	}
}

// GetProfile retrieves a profile by name. Returns nil if it does not exist.
func (r *Registry) GetProfile(name string) *Profile {
	return r.Profiles[name]
}

// EnsureProfile returns the named profile, creating an empty entry when
// it does not exist yet.
func (r *Registry) EnsureProfile(name string) *Profile {
	if r.Profiles == nil {
		r.Profiles = make(map[string]*Profile)
	}

	if p, exists := r.Profiles[name]; exists {
		return p
	}

	p := &Profile{}
	r.Profiles[name] = p
	return p
}

// SetProfile stores a profile under the given name, replacing any
// existing entry.
func (r *Registry) SetProfile(name string, p *Profile) {
	if r.Profiles == nil {
		r.Profiles = make(map[string]*Profile)
	}
	r.Profiles[name] = p
}

// DeleteProfile removes a profile. It reports whether the profile existed.
func (r *Registry) DeleteProfile(name string) bool {
	if _, exists := r.Profiles[name]; !exists {
		return false
	}
	delete(r.Profiles, name)
	if r.Preferences != nil && r.Preferences.DefaultProfile == name {
		r.Preferences.DefaultProfile = ""
	}
	return true
}

// ProfileNames returns the profile names in sorted order.
func (r *Registry) ProfileNames() []string {
	names := make([]string, 0, len(r.Profiles))
	for name := range r.Profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// TouchProfile updates the last-used timestamp of a profile.
func (r *Registry) TouchProfile(name string) {
	if p := r.Profiles[name]; p != nil {
		p.LastUsed = time.Now()
	}
}

// Validate checks that a profile's fields carry usable values. Empty
// fields are allowed; they fall back to defaults at resolve time.
func (p *Profile) Validate() error {
	if p.AccessLevel != "" {
		if _, err := registry.ParseAccessLevel(p.AccessLevel); err != nil {
			return fmt.Errorf("profile access level: %w", err)
		}
	}
	for _, cc := range p.Equipment.CategoryCounts() {
		if cc.Count < 0 {
			return fmt.Errorf("profile equipment count for %s is negative", cc.Category)
		}
	}
	return nil
}
