// Package profile persists named device profiles in the user's
// configuration directory.
//
// A profile bundles everything needed to resolve a register set for one
// physical device: device type, firmware version, display language,
// access level, and the installed equipment counts. Profiles are stored
// as YAML in the platform configuration directory ($XDG_CONFIG_HOME/kwbreg
// on Linux) and written atomically via a temporary file and rename.
package profile
