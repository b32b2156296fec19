package fwversion

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/mklatt/kwbreg/internal/logging"
)

const (
	// MappingFileName is the version mapping file expected at the base path
	MappingFileName = "version_mapping.json"

	// DefaultSoftwareVersionRegister is the address of the first version
	// register when no mapping entry supplies one
	DefaultSoftwareVersionRegister = 8192

	// legacyMinorPatch is appended when only a major version is known.
	// KWB firmware releases of one generation share the ".7.1" suffix.
	legacyMinorPatch = "7.1"
)

// mappingValidator validates decoded mapping documents against their schema.
var mappingValidator = validator.New()

// versionPattern extracts the first dotted three-component version from a string
var versionPattern = regexp.MustCompile(`(\d+)\.(\d+)\.(\d+)`)

// Resolver maps raw firmware version values to supported configuration
// paths. It holds the version mapping (loaded from version_mapping.json,
// or the embedded default when the file is absent) and implements fuzzy
// matching of unsupported versions to the closest supported one.
//
// The mapping is loaded once by Initialize and is immutable afterwards
// except through ReloadMapping. All methods are safe for concurrent use.
type Resolver struct {
	basePath string

	mu             sync.RWMutex
	supported      map[string]VersionInfo
	strategy       string
	defaultVersion string
	initialized    bool
}

// NewResolver creates a resolver rooted at basePath. The embedded default
// mapping is installed immediately so the resolver is usable before
// Initialize; Initialize replaces it with version_mapping.json if present.
func NewResolver(basePath string) *Resolver {
	def := defaultMapping()
	return &Resolver{
		basePath:       basePath,
		supported:      def.SupportedVersions,
		strategy:       def.FallbackRules.Strategy,
		defaultVersion: def.FallbackRules.DefaultVersion,
	}
}

// BasePath returns the configuration base path.
func (r *Resolver) BasePath() string {
	return r.basePath
}

// MappingPath returns the full path of the version mapping file.
func (r *Resolver) MappingPath() string {
	return filepath.Join(r.basePath, MappingFileName)
}

// Initialize loads the version mapping file. It is idempotent; only the
// first call performs I/O. A missing file keeps the built-in defaults and
// is not an error. A malformed file is logged and the defaults are kept,
// so the resolver always has a usable mapping.
func (r *Resolver) Initialize() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.initialized {
		return nil
	}
	r.loadMappingLocked()
	r.initialized = true
	return nil
}

// ReloadMapping re-reads the version mapping file, replacing the current
// mapping. Used after the configuration tree has been updated on disk.
func (r *Resolver) ReloadMapping() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.loadMappingLocked()
	r.initialized = true
	return nil
}

// loadMappingLocked reads version_mapping.json into the resolver.
// Callers must hold r.mu.
func (r *Resolver) loadMappingLocked() {
	path := r.MappingPath()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logging.Debug("Version mapping file not found, using defaults",
				zap.String("path", path),
			)
		} else {
			logging.Error("Failed to read version mapping",
				zap.String("path", path),
				zap.Error(err),
			)
		}
		return
	}

	m, err := parseMapping(data)
	if err != nil {
		logging.Error("Failed to load version mapping",
			zap.String("path", path),
			zap.Error(err),
		)
		return
	}

	r.supported = m.SupportedVersions
	if m.FallbackRules.Strategy != "" {
		r.strategy = m.FallbackRules.Strategy
	}
	if m.FallbackRules.DefaultVersion != "" {
		r.defaultVersion = m.FallbackRules.DefaultVersion
	}

	logging.Info("Loaded version mapping",
		zap.String("path", path),
		zap.Int("supported_versions", len(r.supported)),
	)
}

// DefaultVersion returns the version used when detection or parsing fails.
func (r *Resolver) DefaultVersion() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defaultVersion
}

// SupportedVersions returns all supported version strings in ascending
// version order.
func (r *Resolver) SupportedVersions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sortedVersionsLocked()
}

// sortedVersionsLocked returns the supported versions sorted ascending by
// (major, minor, patch). Callers must hold r.mu. The ascending order makes
// closest-version tie-breaks deterministic: the lower version wins.
func (r *Resolver) sortedVersionsLocked() []string {
	versions := make([]string, 0, len(r.supported))
	for v := range r.supported {
		versions = append(versions, v)
	}
	sort.Slice(versions, func(i, j int) bool {
		vi, erri := versionParts(versions[i])
		vj, errj := versionParts(versions[j])
		if erri != nil || errj != nil {
			return versions[i] < versions[j]
		}
		if vi[0] != vj[0] {
			return vi[0] < vj[0]
		}
		if vi[1] != vj[1] {
			return vi[1] < vj[1]
		}
		return vi[2] < vj[2]
	})
	return versions
}

// SupportedLanguages returns the language codes available for a version.
// Unsupported versions are first normalized to the closest supported one.
func (r *Resolver) SupportedLanguages(version string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	info, ok := r.supported[version]
	if !ok {
		info, ok = r.supported[r.closestSupportedLocked(version)]
	}
	if !ok {
		return nil
	}
	langs := make([]string, len(info.SupportedLanguages))
	copy(langs, info.SupportedLanguages)
	return langs
}

// Info returns the mapping entry for a version. Unsupported versions are
// first normalized to the closest supported one.
func (r *Resolver) Info(version string) (VersionInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	info, ok := r.supported[version]
	if !ok {
		info, ok = r.supported[r.closestSupportedLocked(version)]
	}
	return info, ok
}

// VersionRegisterAddress returns the address of the software version
// register for the given version, or the default address when the version
// is unknown or carries no layout entry.
func (r *Resolver) VersionRegisterAddress(version string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if info, ok := r.supported[version]; ok {
		if addr, ok := info.RegisterLayouts[LayoutSoftwareVersion]; ok {
			return addr
		}
	}
	return DefaultSoftwareVersionRegister
}

// ParseComponents builds a version string from the three version registers.
func (r *Resolver) ParseComponents(major, minor, patch int) string {
	return fmt.Sprintf("%d.%d.%d", major, minor, patch)
}

// ParseMajor builds a version string when only the major version is known
// (legacy devices expose a single version register). The generation-default
// minor and patch components are substituted.
func (r *Resolver) ParseMajor(major int) string {
	logging.Warn("Only major version available, substituting default minor/patch",
		zap.Int("major", major),
		zap.String("suffix", legacyMinorPatch),
	)
	return fmt.Sprintf("%d.%s", major, legacyMinorPatch)
}

// Parse normalizes a free-form version string. It strips whitespace and
// "V"/"v" prefixes and extracts the first dotted three-component version.
// Parse is total: unparsable input yields the default version with a
// recorded warning, never an error.
func (r *Resolver) Parse(raw string) string {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.ReplaceAll(cleaned, "V", "")
	cleaned = strings.ReplaceAll(cleaned, "v", "")

	if m := versionPattern.FindStringSubmatch(cleaned); m != nil {
		return fmt.Sprintf("%s.%s.%s", m[1], m[2], m[3])
	}

	logging.Warn("Could not parse version, using default",
		zap.String("raw", raw),
		zap.String("default", r.DefaultVersion()),
	)
	return r.DefaultVersion()
}

// ClosestSupported finds the supported version closest to the target.
// An exact match short-circuits. Otherwise the weighted distance
// |dMajor|*10000 + |dMinor|*100 + |dPatch| is computed against every
// supported version and the minimum wins; ties resolve to the lower
// version. Unparsable targets yield the default version.
func (r *Resolver) ClosestSupported(target string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.supported[target]; ok {
		return target
	}
	return r.closestSupportedLocked(target)
}

// closestSupportedLocked implements the distance search.
// Callers must hold r.mu (read or write).
func (r *Resolver) closestSupportedLocked(target string) string {
	if len(r.supported) == 0 {
		return r.defaultVersion
	}

	targetParts, err := versionParts(target)
	if err != nil {
		logging.Warn("Error finding closest version",
			zap.String("target", target),
			zap.Error(err),
		)
		return r.defaultVersion
	}

	closest := ""
	minDistance := -1
	for _, candidate := range r.sortedVersionsLocked() {
		parts, err := versionParts(candidate)
		if err != nil {
			continue
		}
		distance := absInt(targetParts[0]-parts[0])*10000 +
			absInt(targetParts[1]-parts[1])*100 +
			absInt(targetParts[2]-parts[2])
		if minDistance < 0 || distance < minDistance {
			minDistance = distance
			closest = candidate
		}
	}

	if closest == "" {
		return r.defaultVersion
	}
	return closest
}

// ResolvePath returns the configuration directory for a version and
// language combination. Versions outside the supported set are normalized
// via ClosestSupported; a language the version does not ship falls back to
// the version's first supported language with a warning.
func (r *Resolver) ResolvePath(version, language string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.supported[version]; !ok {
		closest := r.closestSupportedLocked(version)
		logging.Info("Using closest supported version",
			zap.String("requested", version),
			zap.String("resolved", closest),
		)
		version = closest
	}

	info, ok := r.supported[version]
	if !ok {
		return "", fmt.Errorf("no configuration available for version %q", version)
	}

	if !containsString(info.SupportedLanguages, language) {
		fallback := info.SupportedLanguages[0]
		logging.Warn("Language not supported for version, falling back",
			zap.String("language", language),
			zap.String("version", version),
			zap.String("fallback", fallback),
		)
		language = fallback
	}

	return filepath.Join(r.basePath, info.ConfigPath, language), nil
}

// ValidateConfigExists reports whether the configuration directory for the
// version and language combination exists on disk.
func (r *Resolver) ValidateConfigExists(version, language string) bool {
	path, err := r.ResolvePath(version, language)
	if err != nil {
		return false
	}
	fi, err := os.Stat(path)
	return err == nil && fi.IsDir()
}

// versionParts splits a dotted version string into its integer components.
func versionParts(version string) ([3]int, error) {
	var parts [3]int
	fields := strings.Split(version, ".")
	if len(fields) != 3 {
		return parts, fmt.Errorf("version %q is not a 3-component version", version)
	}
	for i, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil {
			return parts, fmt.Errorf("version %q has non-numeric component %q", version, f)
		}
		parts[i] = n
	}
	return parts, nil
}

func absInt(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
