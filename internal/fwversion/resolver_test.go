package fwversion

import (
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

// newTestResolver writes a version_mapping.json with the given supported
// versions into a temp dir and returns a resolver initialized from it.
func newTestResolver(t *testing.T, versions []string, defaultVersion string) *Resolver {
	t.Helper()

	dir := t.TempDir()
	supported := make(map[string]VersionInfo, len(versions))
	for _, v := range versions {
		supported[v] = VersionInfo{
			ConfigPath:         "versions/v" + v,
			SupportedLanguages: []string{"de", "en"},
			RegisterLayouts: map[string]int{
				LayoutSoftwareVersion: 8192,
			},
		}
	}
	m := Mapping{
		SupportedVersions: supported,
		FallbackRules: FallbackRules{
			Strategy:       "closest_match",
			DefaultVersion: defaultVersion,
		},
	}

	data, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("marshal mapping: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, MappingFileName), data, 0644); err != nil {
		t.Fatalf("write mapping: %v", err)
	}

	r := NewResolver(dir)
	if err := r.Initialize(); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	return r
}

func TestParseIsTotal(t *testing.T) {
	r := NewResolver(t.TempDir())

	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"Plain", "22.7.1", "22.7.1"},
		{"VPrefix", "V22.7.1", "22.7.1"},
		{"LowercasePrefix", "v24.7.1", "24.7.1"},
		{"Whitespace", "  21.4.0  ", "21.4.0"},
		{"EmbeddedNoise", "FW 25.4.0 build 7", "25.4.0"},
		{"Empty", "", r.DefaultVersion()},
		{"Garbage", "not-a-version", r.DefaultVersion()},
		{"TwoComponents", "22.7", r.DefaultVersion()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.Parse(tt.raw)
			if got != tt.want {
				t.Errorf("Parse(%q) = %q, want %q", tt.raw, got, tt.want)
			}
			if _, err := versionParts(got); err != nil {
				t.Errorf("Parse(%q) = %q is not a well-formed version: %v", tt.raw, got, err)
			}
		})
	}
}

func TestParseComponents(t *testing.T) {
	r := NewResolver(t.TempDir())

	if got := r.ParseComponents(22, 7, 1); got != "22.7.1" {
		t.Errorf("ParseComponents(22, 7, 1) = %q, want %q", got, "22.7.1")
	}
}

func TestParseMajorLegacy(t *testing.T) {
	r := NewResolver(t.TempDir())

	if got := r.ParseMajor(21); got != "21.7.1" {
		t.Errorf("ParseMajor(21) = %q, want %q", got, "21.7.1")
	}
}

func TestClosestSupportedExactMatch(t *testing.T) {
	r := newTestResolver(t, []string{"21.4.0", "24.7.1"}, "22.7.1")

	for _, v := range []string{"21.4.0", "24.7.1"} {
		if got := r.ClosestSupported(v); got != v {
			t.Errorf("ClosestSupported(%q) = %q, want exact match", v, got)
		}
	}
}

func TestClosestSupportedWeightedDistance(t *testing.T) {
	// Distance to 21.4.0: 1*10000 + 4*100 + 0 = 10400
	// Distance to 24.7.1: 2*10000 + 7*100 + 1 = 20701
	r := newTestResolver(t, []string{"21.4.0", "24.7.1"}, "22.7.1")

	if got := r.ClosestSupported("22.0.0"); got != "21.4.0" {
		t.Errorf("ClosestSupported(22.0.0) = %q, want 21.4.0", got)
	}
}

func TestClosestSupportedTieBreakPrefersLower(t *testing.T) {
	// 22.0.0 is equidistant from 21.0.0 and 23.0.0 (10000 each)
	r := newTestResolver(t, []string{"23.0.0", "21.0.0"}, "21.0.0")

	if got := r.ClosestSupported("22.0.0"); got != "21.0.0" {
		t.Errorf("ClosestSupported(22.0.0) = %q, want 21.0.0 (lower version wins ties)", got)
	}
}

func TestClosestSupportedUnparsableTarget(t *testing.T) {
	r := newTestResolver(t, []string{"21.4.0"}, "21.4.0")

	if got := r.ClosestSupported("bogus"); got != "21.4.0" {
		t.Errorf("ClosestSupported(bogus) = %q, want default 21.4.0", got)
	}
}

func TestResolvePath(t *testing.T) {
	r := newTestResolver(t, []string{"22.7.1"}, "22.7.1")

	tests := []struct {
		name     string
		version  string
		language string
		wantTail string
	}{
		{"SupportedLanguage", "22.7.1", "en", filepath.Join("versions", "v22.7.1", "en")},
		{"LanguageFallback", "22.7.1", "fr", filepath.Join("versions", "v22.7.1", "de")},
		{"VersionNormalized", "22.0.0", "de", filepath.Join("versions", "v22.7.1", "de")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.ResolvePath(tt.version, tt.language)
			if err != nil {
				t.Fatalf("ResolvePath(%q, %q) error = %v", tt.version, tt.language, err)
			}
			if !strings.HasSuffix(got, tt.wantTail) {
				t.Errorf("ResolvePath(%q, %q) = %q, want suffix %q", tt.version, tt.language, got, tt.wantTail)
			}
		})
	}
}

func TestSupportedVersionsSorted(t *testing.T) {
	r := newTestResolver(t, []string{"25.4.0", "21.4.0", "22.7.1"}, "22.7.1")

	want := []string{"21.4.0", "22.7.1", "25.4.0"}
	if got := r.SupportedVersions(); !reflect.DeepEqual(got, want) {
		t.Errorf("SupportedVersions() = %v, want %v", got, want)
	}
}

func TestDefaultMappingWhenFileMissing(t *testing.T) {
	r := NewResolver(t.TempDir())
	if err := r.Initialize(); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}

	versions := r.SupportedVersions()
	if len(versions) == 0 {
		t.Fatal("expected built-in default mapping, got empty supported set")
	}
	if got := r.DefaultVersion(); got != "22.7.1" {
		t.Errorf("DefaultVersion() = %q, want 22.7.1", got)
	}
}

func TestMalformedMappingKeepsDefaults(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, MappingFileName), []byte("{not json"), 0644); err != nil {
		t.Fatalf("write mapping: %v", err)
	}

	r := NewResolver(dir)
	if err := r.Initialize(); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if len(r.SupportedVersions()) == 0 {
		t.Error("malformed mapping should leave the built-in defaults in place")
	}
}

func TestReloadMappingPicksUpChanges(t *testing.T) {
	r := newTestResolver(t, []string{"21.4.0"}, "21.4.0")

	// Rewrite the mapping file with a different supported set
	m := Mapping{
		SupportedVersions: map[string]VersionInfo{
			"25.7.1": {
				ConfigPath:         "versions/v25.7.1",
				SupportedLanguages: []string{"de"},
			},
		},
		FallbackRules: FallbackRules{DefaultVersion: "25.7.1"},
	}
	data, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("marshal mapping: %v", err)
	}
	if err := os.WriteFile(r.MappingPath(), data, 0644); err != nil {
		t.Fatalf("write mapping: %v", err)
	}

	if err := r.ReloadMapping(); err != nil {
		t.Fatalf("ReloadMapping() error = %v", err)
	}
	if got := r.SupportedVersions(); !reflect.DeepEqual(got, []string{"25.7.1"}) {
		t.Errorf("SupportedVersions() after reload = %v, want [25.7.1]", got)
	}
}

func TestVersionRegisterAddress(t *testing.T) {
	r := newTestResolver(t, []string{"22.7.1"}, "22.7.1")

	if got := r.VersionRegisterAddress("22.7.1"); got != 8192 {
		t.Errorf("VersionRegisterAddress(22.7.1) = %d, want 8192", got)
	}
	if got := r.VersionRegisterAddress("unknown"); got != DefaultSoftwareVersionRegister {
		t.Errorf("VersionRegisterAddress(unknown) = %d, want default %d", got, DefaultSoftwareVersionRegister)
	}
}

func TestValidateConfigExists(t *testing.T) {
	r := newTestResolver(t, []string{"22.7.1"}, "22.7.1")

	if r.ValidateConfigExists("22.7.1", "de") {
		t.Error("ValidateConfigExists() = true for a directory that does not exist")
	}

	path, err := r.ResolvePath("22.7.1", "de")
	if err != nil {
		t.Fatalf("ResolvePath() error = %v", err)
	}
	if err := os.MkdirAll(path, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if !r.ValidateConfigExists("22.7.1", "de") {
		t.Error("ValidateConfigExists() = false after creating the directory")
	}
}
