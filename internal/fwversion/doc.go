// Package fwversion resolves KWB firmware versions to configuration paths.
//
// KWB heating systems expose their firmware version in three consecutive
// Modbus registers (major, minor, patch). Register layouts differ between
// firmware generations, so every supported version carries its own
// configuration tree on disk. This package maps a raw or partially-known
// version value to the directory the register store should read from.
//
// # Version Mapping
//
// Supported versions are described by version_mapping.json at the
// configuration base path:
//
//	{
//	  "supported_versions": {
//	    "22.7.1": {
//	      "config_path": "versions/v22.7.1",
//	      "supported_languages": ["de", "en"],
//	      "register_layouts": { "software_version": 8192 }
//	    }
//	  },
//	  "fallback_rules": { "strategy": "closest_match", "default_version": "22.7.1" }
//	}
//
// When the file is absent, an embedded default mapping covering the known
// firmware generations is used instead.
//
// # Fuzzy Matching
//
// A detected version that is not directly supported is matched to the
// closest supported one using a weighted distance over the version
// components (major differences weigh 10000, minor 100, patch 1). On equal
// distance the lower version wins, so resolution is deterministic.
//
// # Detection
//
// DetectVersion reads the version registers through a minimal
// RegisterReader interface. Detection never fails: transport errors and
// partial reads degrade to the configured default version.
package fwversion
