package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mklatt/kwbreg/internal/fwversion"
	"github.com/mklatt/kwbreg/internal/profile"
	"github.com/mklatt/kwbreg/internal/registry"
)

// Command flags
var (
	configDir    string
	fwVersion    string
	language     string
	accessLevel  string
	deviceType   string
	profileName  string
	outputFormat string

	equipmentFlags registry.EquipmentConfig
)

func init() {
	// Common flags for resolution commands (persistent on root)
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", ".", "Configuration tree base directory")
	rootCmd.PersistentFlags().StringVar(&fwVersion, "fw-version", "", "Firmware version (default: built-in default version)")
	rootCmd.PersistentFlags().StringVar(&language, "language", "de", "Display language")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "format", "detailed", "Output format (detailed, compact, json)")

	rootCmd.AddCommand(versionsCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(lookupCmd)
	rootCmd.AddCommand(valueTableCmd)
	rootCmd.AddCommand(profilesCmd)
	rootCmd.AddCommand(watchCmd)
}

// newResolver creates and initializes a resolver over the config tree.
func newResolver() (*fwversion.Resolver, error) {
	resolver := fwversion.NewResolver(configDir)
	if err := resolver.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to load version mapping: %w", err)
	}
	return resolver, nil
}

// newStore creates an initialized store for the requested (or default)
// version and language.
func newStore(resolver *fwversion.Resolver) (*registry.Store, error) {
	ver := fwVersion
	if ver == "" {
		ver = resolver.DefaultVersion()
	} else {
		ver = resolver.Parse(ver)
	}

	store, err := registry.NewStore(resolver, ver, language)
	if err != nil {
		return nil, err
	}
	if err := store.Initialize(); err != nil {
		return nil, err
	}
	return store, nil
}

// versionsCmd lists the supported firmware versions
var versionsCmd = &cobra.Command{
	Use:   "versions",
	Short: "List supported firmware versions",
	Long: `List the firmware versions the configuration tree supports.

Versions come from version_mapping.json in the configuration base
directory, or from the built-in mapping when no file exists. The default
version is used whenever a device's version cannot be detected or
matched.`,
	Example: `  # List versions of the tree in the current directory
  kwbreg versions

  # List versions of a specific tree
  kwbreg versions --config-dir /etc/kwbreg`,
	RunE: runVersions,
}

func runVersions(cmd *cobra.Command, args []string) error {
	resolver, err := newResolver()
	if err != nil {
		return err
	}

	versions := resolver.SupportedVersions()
	def := resolver.DefaultVersion()

	if outputFormat == "json" {
		out := struct {
			SupportedVersions []string `json:"supported_versions"`
			DefaultVersion    string   `json:"default_version"`
		}{versions, def}
		return printJSON(out)
	}

	fmt.Printf("Supported firmware versions (%d):\n\n", len(versions))
	for _, v := range versions {
		marker := " "
		if v == def {
			marker = "*"
		}
		langs := resolver.SupportedLanguages(v)
		fmt.Printf("%s %-10s languages: %s\n", marker, v, strings.Join(langs, ", "))
	}
	fmt.Println("\n* default version")
	return nil
}

// resolveCmd assembles the full register set for a device
var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Resolve the register set for a device",
	Long: `Assemble the register set for a device type, firmware version, and
installed equipment.

Universal registers load first, then device-specific registers, then the
registers of each configured equipment category. The first register at an
address wins; later duplicates are dropped. Registers not visible at the
requested access level are excluded.

A saved profile supplies device type, version, language, access level,
and equipment counts; explicit flags override nothing when --profile is
given.`,
	Example: `  # Resolve with explicit flags
  kwbreg resolve --device-type "KWB Easyfire" --fw-version 22.7.1 \
      --heating-circuits 2 --buffer-storage 1

  # Resolve everything visible at expert level
  kwbreg resolve --device-type "KWB Easyfire" --access-level ExpertLevel

  # Resolve from a saved profile
  kwbreg resolve --profile keller

  # JSON output for scripting
  kwbreg resolve --profile keller --format json`,
	RunE: runResolve,
}

func init() {
	resolveCmd.Flags().StringVar(&deviceType, "device-type", "", "Device type (e.g. \"KWB Easyfire\")")
	resolveCmd.Flags().StringVar(&accessLevel, "access-level", string(registry.UserLevel), "Access level (UserLevel, ExpertLevel)")
	resolveCmd.Flags().StringVar(&profileName, "profile", "", "Resolve from a saved profile")

	resolveCmd.Flags().IntVar(&equipmentFlags.HeatingCircuits, "heating-circuits", 0, "Installed heating circuits")
	resolveCmd.Flags().IntVar(&equipmentFlags.BufferStorage, "buffer-storage", 0, "Installed buffer storage tanks")
	resolveCmd.Flags().IntVar(&equipmentFlags.DHWStorage, "dhw-storage", 0, "Installed DHW storage tanks")
	resolveCmd.Flags().IntVar(&equipmentFlags.SecondaryHeatSources, "secondary-heat-sources", 0, "Installed secondary heat sources")
	resolveCmd.Flags().IntVar(&equipmentFlags.Circulation, "circulation", 0, "Installed circulation pumps")
	resolveCmd.Flags().IntVar(&equipmentFlags.Solar, "solar", 0, "Installed solar circuits")
	resolveCmd.Flags().IntVar(&equipmentFlags.BoilerSequence, "boiler-sequence", 0, "Installed sequence boilers")
	resolveCmd.Flags().IntVar(&equipmentFlags.HeatMeters, "heat-meters", 0, "Installed heat meters")
}

func runResolve(cmd *cobra.Command, args []string) error {
	equipment := equipmentFlags

	if profileName != "" {
		reg, err := profile.LoadRegistry()
		if err != nil {
			return fmt.Errorf("failed to load profiles: %w", err)
		}
		p := reg.GetProfile(profileName)
		if p == nil {
			return fmt.Errorf("profile %q not found (see 'kwbreg profiles')", profileName)
		}
		if p.DeviceType != "" {
			deviceType = p.DeviceType
		}
		if p.FirmwareVersion != "" {
			fwVersion = p.FirmwareVersion
		}
		if p.Language != "" {
			language = p.Language
		}
		if p.AccessLevel != "" {
			accessLevel = p.AccessLevel
		}
		equipment = p.Equipment

		reg.TouchProfile(profileName)
		if err := reg.Save(); err != nil {
			// Last-used bookkeeping must not break resolution
			fmt.Fprintf(os.Stderr, "Warning: could not update profile: %v\n", err)
		}
	}

	level, err := registry.ParseAccessLevel(accessLevel)
	if err != nil {
		return err
	}

	resolver, err := newResolver()
	if err != nil {
		return err
	}
	store, err := newStore(resolver)
	if err != nil {
		return err
	}

	registers, err := store.AllRegisters(level, &equipment, deviceType)
	if err != nil {
		return err
	}

	switch outputFormat {
	case "json":
		return printJSON(registers)
	case "compact":
		for _, reg := range registers {
			fmt.Println(formatCompact(reg))
		}
	default:
		fmt.Printf("Resolved %d registers (version %s, language %s, %s)\n\n",
			len(registers), store.CurrentVersion(), store.CurrentLanguage(), level)
		for _, reg := range registers {
			fmt.Println(formatDetailed(reg))
		}
	}

	return nil
}

// lookupCmd finds the register definition at an address
var lookupCmd = &cobra.Command{
	Use:   "lookup <address>",
	Short: "Look up the register at an address",
	Long: `Look up the raw register definition at a Modbus address.

The universal tier is always searched. Device and equipment tiers are
searched when the corresponding flags name them, since only loaded tiers
are visible.`,
	Example: `  # Look up a universal register
  kwbreg lookup 8192

  # Look up a device-specific register
  kwbreg lookup 2049 --device-type "KWB Easyfire"`,
	Args: cobra.ExactArgs(1),
	RunE: runLookup,
}

func init() {
	lookupCmd.Flags().StringVar(&deviceType, "device-type", "", "Device type to search")

	lookupCmd.Flags().IntVar(&equipmentFlags.HeatingCircuits, "heating-circuits", 0, "Installed heating circuits")
	lookupCmd.Flags().IntVar(&equipmentFlags.BufferStorage, "buffer-storage", 0, "Installed buffer storage tanks")
	lookupCmd.Flags().IntVar(&equipmentFlags.DHWStorage, "dhw-storage", 0, "Installed DHW storage tanks")
	lookupCmd.Flags().IntVar(&equipmentFlags.SecondaryHeatSources, "secondary-heat-sources", 0, "Installed secondary heat sources")
	lookupCmd.Flags().IntVar(&equipmentFlags.Circulation, "circulation", 0, "Installed circulation pumps")
	lookupCmd.Flags().IntVar(&equipmentFlags.Solar, "solar", 0, "Installed solar circuits")
	lookupCmd.Flags().IntVar(&equipmentFlags.BoilerSequence, "boiler-sequence", 0, "Installed sequence boilers")
	lookupCmd.Flags().IntVar(&equipmentFlags.HeatMeters, "heat-meters", 0, "Installed heat meters")
}

func runLookup(cmd *cobra.Command, args []string) error {
	address, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid address %q: %w", args[0], err)
	}

	resolver, err := newResolver()
	if err != nil {
		return err
	}
	store, err := newStore(resolver)
	if err != nil {
		return err
	}

	// Warm the requested tiers so the lookup can see them
	if _, err := store.AllRegisters(registry.ExpertLevel, &equipmentFlags, deviceType); err != nil {
		return err
	}

	reg, found := store.RegisterByAddress(address)
	if !found {
		return fmt.Errorf("no register at address %d (tiers searched: universal%s)",
			address, lookupTiersHint())
	}

	if outputFormat == "json" {
		return printJSON(reg)
	}
	fmt.Println(formatDetailed(reg))
	return nil
}

func lookupTiersHint() string {
	var tiers []string
	if deviceType != "" {
		tiers = append(tiers, "device")
	}
	for _, cc := range equipmentFlags.CategoryCounts() {
		if cc.Count > 0 {
			tiers = append(tiers, "equipment")
			break
		}
	}
	if len(tiers) == 0 {
		return ""
	}
	return ", " + strings.Join(tiers, ", ")
}

// valueTableCmd prints a value table
var valueTableCmd = &cobra.Command{
	Use:   "value-table <name>",
	Short: "Print a value table",
	Long: `Print the raw-value to display-string mapping of a named value table.

Value tables translate register values into human-readable labels, e.g.
operating states or error codes.`,
	Example: `  # Print a table
  kwbreg value-table boiler_state

  # JSON output
  kwbreg value-table boiler_state --format json`,
	Args: cobra.ExactArgs(1),
	RunE: runValueTable,
}

func runValueTable(cmd *cobra.Command, args []string) error {
	name := args[0]

	resolver, err := newResolver()
	if err != nil {
		return err
	}
	store, err := newStore(resolver)
	if err != nil {
		return err
	}

	vt, ok := store.ValueTable(name)
	if !ok {
		available := make([]string, 0)
		for n := range store.ValueTables() {
			available = append(available, n)
		}
		sort.Strings(available)
		return fmt.Errorf("value table %q not found (available: %s)",
			name, strings.Join(available, ", "))
	}

	if outputFormat == "json" {
		return printJSON(vt)
	}

	// Numeric keys sort numerically, the rest lexically after them
	keys := make([]string, 0, len(vt))
	for k := range vt {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		ni, erri := strconv.Atoi(keys[i])
		nj, errj := strconv.Atoi(keys[j])
		if erri == nil && errj == nil {
			return ni < nj
		}
		if erri != errj {
			return erri == nil
		}
		return keys[i] < keys[j]
	})

	fmt.Printf("Value table %q (%d entries):\n\n", name, len(vt))
	for _, k := range keys {
		fmt.Printf("  %6s  %s\n", k, vt[k])
	}
	return nil
}

// profilesCmd manages saved device profiles
var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "List and manage saved device profiles",
	Long: `List the saved device profiles.

A profile bundles device type, firmware version, language, access level,
and equipment counts, so 'kwbreg resolve --profile <name>' needs no other
flags. Profiles live in the user configuration directory.`,
	Example: `  # List profiles
  kwbreg profiles

  # Save the current flags as a profile
  kwbreg profiles save keller --device-type "KWB Easyfire" \
      --fw-version 22.7.1 --heating-circuits 2

  # Delete a profile
  kwbreg profiles delete keller`,
	RunE: runProfilesList,
}

var profilesSaveCmd = &cobra.Command{
	Use:   "save <name>",
	Short: "Save a device profile",
	Args:  cobra.ExactArgs(1),
	RunE:  runProfilesSave,
}

var profilesDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a device profile",
	Args:  cobra.ExactArgs(1),
	RunE:  runProfilesDelete,
}

func init() {
	profilesSaveCmd.Flags().StringVar(&deviceType, "device-type", "", "Device type (e.g. \"KWB Easyfire\")")
	profilesSaveCmd.Flags().StringVar(&accessLevel, "access-level", string(registry.UserLevel), "Access level (UserLevel, ExpertLevel)")

	profilesSaveCmd.Flags().IntVar(&equipmentFlags.HeatingCircuits, "heating-circuits", 0, "Installed heating circuits")
	profilesSaveCmd.Flags().IntVar(&equipmentFlags.BufferStorage, "buffer-storage", 0, "Installed buffer storage tanks")
	profilesSaveCmd.Flags().IntVar(&equipmentFlags.DHWStorage, "dhw-storage", 0, "Installed DHW storage tanks")
	profilesSaveCmd.Flags().IntVar(&equipmentFlags.SecondaryHeatSources, "secondary-heat-sources", 0, "Installed secondary heat sources")
	profilesSaveCmd.Flags().IntVar(&equipmentFlags.Circulation, "circulation", 0, "Installed circulation pumps")
	profilesSaveCmd.Flags().IntVar(&equipmentFlags.Solar, "solar", 0, "Installed solar circuits")
	profilesSaveCmd.Flags().IntVar(&equipmentFlags.BoilerSequence, "boiler-sequence", 0, "Installed sequence boilers")
	profilesSaveCmd.Flags().IntVar(&equipmentFlags.HeatMeters, "heat-meters", 0, "Installed heat meters")

	profilesCmd.AddCommand(profilesSaveCmd)
	profilesCmd.AddCommand(profilesDeleteCmd)
}

func runProfilesList(cmd *cobra.Command, args []string) error {
	reg, err := profile.LoadRegistry()
	if err != nil {
		return fmt.Errorf("failed to load profiles: %w", err)
	}

	names := reg.ProfileNames()
	if len(names) == 0 {
		fmt.Println("No saved profiles.")
		fmt.Println("Use 'kwbreg profiles save <name>' to create one.")
		return nil
	}

	if outputFormat == "json" {
		return printJSON(reg.Profiles)
	}

	fmt.Printf("Saved profiles (%d):\n\n", len(names))
	for _, name := range names {
		p := reg.GetProfile(name)
		fmt.Printf("  %s\n", name)
		if p.DeviceType != "" {
			fmt.Printf("    Device:   %s\n", p.DeviceType)
		}
		if p.FirmwareVersion != "" {
			fmt.Printf("    Version:  %s\n", p.FirmwareVersion)
		}
		if p.Language != "" {
			fmt.Printf("    Language: %s\n", p.Language)
		}
		if p.AccessLevel != "" {
			fmt.Printf("    Access:   %s\n", p.AccessLevel)
		}
		if !p.LastUsed.IsZero() {
			fmt.Printf("    Last used: %s\n", p.LastUsed.Format("2006-01-02 15:04"))
		}
	}
	return nil
}

func runProfilesSave(cmd *cobra.Command, args []string) error {
	name := args[0]

	p := &profile.Profile{
		DeviceType:      deviceType,
		FirmwareVersion: fwVersion,
		Language:        language,
		AccessLevel:     accessLevel,
		Equipment:       equipmentFlags,
	}
	if err := p.Validate(); err != nil {
		return err
	}

	reg, err := profile.LoadRegistry()
	if err != nil {
		return fmt.Errorf("failed to load profiles: %w", err)
	}
	reg.SetProfile(name, p)
	if err := reg.Save(); err != nil {
		return err
	}

	fmt.Printf("Profile %q saved.\n", name)
	return nil
}

func runProfilesDelete(cmd *cobra.Command, args []string) error {
	name := args[0]

	reg, err := profile.LoadRegistry()
	if err != nil {
		return fmt.Errorf("failed to load profiles: %w", err)
	}
	if !reg.DeleteProfile(name) {
		return fmt.Errorf("profile %q not found", name)
	}
	if err := reg.Save(); err != nil {
		return err
	}

	fmt.Printf("Profile %q deleted.\n", name)
	return nil
}

// watchCmd follows version mapping changes on disk
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the version mapping for changes",
	Long: `Watch version_mapping.json in the configuration base directory and
reload the mapping whenever the file changes. Each reload prints the
supported versions.

Runs until interrupted (Ctrl-C).`,
	Example: `  kwbreg watch --config-dir /etc/kwbreg`,
	RunE:    runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	resolver, err := newResolver()
	if err != nil {
		return err
	}

	printMapping := func() {
		versions := resolver.SupportedVersions()
		fmt.Printf("Supported versions: %s (default %s)\n",
			strings.Join(versions, ", "), resolver.DefaultVersion())
	}

	fmt.Printf("Watching %s for changes (Ctrl-C to stop)\n", resolver.MappingPath())
	printMapping()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err = resolver.WatchMapping(ctx, func() {
		fmt.Println("\nVersion mapping changed:")
		printMapping()
	})
	if err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// Output helpers

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func formatCompact(reg registry.Register) string {
	addr := "-"
	if reg.HasValidAddress() {
		addr = strconv.Itoa(reg.StartingAddress.Int())
	}
	return fmt.Sprintf("%6s  %-2s  %s", addr, reg.Access, reg.Name)
}

func formatDetailed(reg registry.Register) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s\n", reg.Name)
	if reg.HasValidAddress() {
		fmt.Fprintf(&b, "  Address:     %d\n", reg.StartingAddress.Int())
	}
	dataType := reg.DataType
	if dataType == "" {
		dataType = reg.Type
	}
	if dataType != "" {
		fmt.Fprintf(&b, "  Data type:   %s\n", dataType)
	}
	if reg.Access != "" {
		fmt.Fprintf(&b, "  Access:      %s (%s)\n", reg.Access, reg.AccessLevel)
	}
	if reg.Min != nil || reg.Max != nil {
		min, max := "-", "-"
		if reg.Min != nil {
			min = strconv.FormatFloat(*reg.Min, 'f', -1, 64)
		}
		if reg.Max != nil {
			max = strconv.FormatFloat(*reg.Max, 'f', -1, 64)
		}
		fmt.Fprintf(&b, "  Range:       %s .. %s\n", min, max)
	}
	if reg.UnitValueTable != "" {
		fmt.Fprintf(&b, "  Value table: %s\n", reg.UnitValueTable)
	}

	return strings.TrimRight(b.String(), "\n")
}
