package profile

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/mklatt/kwbreg/internal/registry"
)

func TestGetConfigDir(t *testing.T) {
	configDir, err := GetConfigDir()
	if err != nil {
		t.Fatalf("GetConfigDir() error = %v", err)
	}

	if configDir == "" {
		t.Error("GetConfigDir() returned empty string")
	}

	if !strings.Contains(configDir, appName) {
		t.Errorf("GetConfigDir() = %v, should contain %q", configDir, appName)
	}

	switch runtime.GOOS {
	case "windows":
		if !strings.Contains(configDir, "AppData") && !strings.Contains(configDir, "Local") {
			t.Errorf("Windows config dir should contain 'AppData' or 'Local', got: %v", configDir)
		}
	case "darwin", "linux":
		if !strings.Contains(configDir, ".config") && os.Getenv("XDG_CONFIG_HOME") == "" {
			t.Errorf("Unix config dir should contain '.config', got: %v", configDir)
		}
	}
}

func TestGetConfigDirHonorsXDG(t *testing.T) {
	if runtime.GOOS == "windows" || runtime.GOOS == "darwin" {
		t.Skip("XDG_CONFIG_HOME only applies on Linux")
	}

	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	configDir, err := GetConfigDir()
	if err != nil {
		t.Fatalf("GetConfigDir() error = %v", err)
	}
	if configDir != filepath.Join(dir, appName) {
		t.Errorf("GetConfigDir() = %v, want %v", configDir, filepath.Join(dir, appName))
	}
}

func TestGetConfigPath(t *testing.T) {
	configPath, err := GetConfigPath()
	if err != nil {
		t.Fatalf("GetConfigPath() error = %v", err)
	}

	if filepath.Base(configPath) != profileFile {
		t.Errorf("GetConfigPath() should end with %q, got: %v", profileFile, configPath)
	}
}

func TestNewRegistry(t *testing.T) {
	reg := NewRegistry()

	if reg.Version != 1 {
		t.Errorf("NewRegistry().Version = %v, want 1", reg.Version)
	}
	if reg.Profiles == nil {
		t.Error("NewRegistry().Profiles should not be nil")
	}
	if reg.Preferences == nil {
		t.Fatal("NewRegistry().Preferences should not be nil")
	}
	if reg.Preferences.DefaultLanguage != "de" {
		t.Errorf("DefaultLanguage = %v, want de", reg.Preferences.DefaultLanguage)
	}
}

func TestEnsureProfile(t *testing.T) {
	reg := NewRegistry()

	p1 := reg.EnsureProfile("keller")
	if p1 == nil {
		t.Fatal("EnsureProfile() returned nil")
	}

	p2 := reg.EnsureProfile("keller")
	if p1 != p2 {
		t.Error("EnsureProfile() should return same instance for same name")
	}

	p3 := reg.EnsureProfile("werkstatt")
	if p1 == p3 {
		t.Error("EnsureProfile() should create new instance for different name")
	}
}

func TestDeleteProfile(t *testing.T) {
	reg := NewRegistry()
	reg.EnsureProfile("keller")
	reg.Preferences.DefaultProfile = "keller"

	if !reg.DeleteProfile("keller") {
		t.Error("DeleteProfile() = false for existing profile")
	}
	if reg.GetProfile("keller") != nil {
		t.Error("profile still present after DeleteProfile()")
	}
	if reg.Preferences.DefaultProfile != "" {
		t.Error("DefaultProfile should be cleared when the named profile is deleted")
	}
	if reg.DeleteProfile("keller") {
		t.Error("DeleteProfile() = true for missing profile")
	}
}

func TestProfileNamesSorted(t *testing.T) {
	reg := NewRegistry()
	reg.EnsureProfile("werkstatt")
	reg.EnsureProfile("keller")
	reg.EnsureProfile("anbau")

	names := reg.ProfileNames()
	want := []string{"anbau", "keller", "werkstatt"}
	if len(names) != len(want) {
		t.Fatalf("ProfileNames() = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("ProfileNames()[%d] = %v, want %v", i, names[i], want[i])
		}
	}
}

func TestTouchProfile(t *testing.T) {
	reg := NewRegistry()
	reg.EnsureProfile("keller")

	before := time.Now()
	reg.TouchProfile("keller")
	after := time.Now()

	p := reg.GetProfile("keller")
	if p.LastUsed.Before(before) || p.LastUsed.After(after) {
		t.Errorf("LastUsed = %v, should be between %v and %v", p.LastUsed, before, after)
	}

	// Touching a missing profile must not panic
	reg.TouchProfile("fehlt")
}

func TestProfileValidate(t *testing.T) {
	tests := []struct {
		name    string
		profile Profile
		wantErr bool
	}{
		{"Empty", Profile{}, false},
		{"Valid", Profile{
			DeviceType:  "KWB Easyfire",
			AccessLevel: "ExpertLevel",
			Equipment:   registry.EquipmentConfig{HeatingCircuits: 2},
		}, false},
		{"BadAccessLevel", Profile{AccessLevel: "Admin"}, true},
		{"NegativeCount", Profile{
			Equipment: registry.EquipmentConfig{BufferStorage: -1},
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.profile.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), profileFile)

	reg := NewRegistry()
	reg.SetProfile("keller", &Profile{
		DeviceType:      "KWB Easyfire",
		FirmwareVersion: "22.7.1",
		Language:        "de",
		AccessLevel:     "UserLevel",
		Equipment: registry.EquipmentConfig{
			HeatingCircuits: 2,
			BufferStorage:   1,
		},
	})

	if err := reg.saveToPath(path); err != nil {
		t.Fatalf("saveToPath() error = %v", err)
	}

	loaded, err := loadRegistryFromPath(path)
	if err != nil {
		t.Fatalf("loadRegistryFromPath() error = %v", err)
	}

	p := loaded.GetProfile("keller")
	if p == nil {
		t.Fatal("profile missing after round trip")
	}
	if p.DeviceType != "KWB Easyfire" {
		t.Errorf("DeviceType = %v, want KWB Easyfire", p.DeviceType)
	}
	if p.FirmwareVersion != "22.7.1" {
		t.Errorf("FirmwareVersion = %v, want 22.7.1", p.FirmwareVersion)
	}
	if p.Equipment.HeatingCircuits != 2 || p.Equipment.BufferStorage != 1 {
		t.Errorf("Equipment = %+v, want 2 circuits and 1 buffer", p.Equipment)
	}

	// No leftover temporary file
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temporary file left behind after save")
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	reg, err := loadRegistryFromPath(filepath.Join(t.TempDir(), profileFile))
	if err != nil {
		t.Fatalf("loadRegistryFromPath() error = %v", err)
	}
	if reg.Version != 1 || reg.Profiles == nil {
		t.Errorf("missing file should yield default registry, got %+v", reg)
	}
}

func TestLoadRejectsUnsupportedVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), profileFile)
	if err := os.WriteFile(path, []byte("version: 2\n"), 0600); err != nil {
		t.Fatal(err)
	}

	if _, err := loadRegistryFromPath(path); err == nil {
		t.Error("loadRegistryFromPath() = nil, want version error")
	}
}

func TestLoadRejectsInvalidProfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), profileFile)
	content := "version: 1\nprofiles:\n  keller:\n    access_level: Admin\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	if _, err := loadRegistryFromPath(path); err == nil {
		t.Error("loadRegistryFromPath() = nil, want validation error")
	}
}
