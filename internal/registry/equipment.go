package registry

// IndexMatch selects how equipment registers are assigned to installed
// instances. The two conventions reflect a real naming inconsistency in
// the KWB configuration data and must not be unified.
type IndexMatch int

const (
	// MatchDottedInstance matches heating-circuit style indices
	// ("HK 1.1", "HK 2.3") by the substring " <i>." so that localized
	// prefixes (HK vs. HC) do not break matching.
	MatchDottedInstance IndexMatch = iota

	// MatchTrailingToken matches flat indices ("PUF 0", "BWS 2") by exact
	// equality of the last whitespace-separated token.
	MatchTrailingToken

	// MatchDistinctTokens is the fallback for categories without a known
	// index policy: the first count distinct trailing tokens observed in
	// file order are admitted.
	MatchDistinctTokens
)

// Canonical equipment category names. The configuration data uses the
// German names as category keys regardless of display language.
const (
	CategoryHeatingCircuits      = "Heizkreise"
	CategoryBufferStorage        = "Pufferspeicher"
	CategoryDHWStorage           = "Brauchwasserspeicher"
	CategorySecondaryHeatSources = "Zweitwärmequellen"
	CategoryCirculation          = "Zirkulation"
	CategorySolar                = "Solar"
	CategoryBoilerSequence       = "Kesselfolgeschaltung"
	CategoryHeatMeters           = "Wärmemengenzähler"
	CategoryTransferStation      = "Übergabestation"
)

// Category describes one equipment category: its configuration file, its
// index prefix and display name, whether instance numbering starts at 0,
// and which index matching convention applies.
type Category struct {
	Name         string
	FileName     string
	Prefix       string
	FriendlyName string
	ZeroIndexed  bool
	Match        IndexMatch
}

// categories is the static policy table for all known equipment
// categories, in merge priority order. Zero-indexed categories number
// instances internally from 0 but are always displayed 1-based.
//
// Übergabestation has a configuration file but no index policy or merge
// slot; it is only loadable on demand and filtered via the fallback rule.
var categories = []Category{
	{CategoryHeatingCircuits, "heating_circuits.json", "HK", "Heizkreis", false, MatchDottedInstance},
	{CategoryBufferStorage, "buffer_storage.json", "PUF", "Pufferspeicher", true, MatchTrailingToken},
	{CategoryDHWStorage, "dhw_storage.json", "BWS", "Brauchwasserspeicher", false, MatchTrailingToken},
	{CategorySecondaryHeatSources, "secondary_heat_sources.json", "ZWQ", "Zweitwärmequelle", false, MatchTrailingToken},
	{CategoryCirculation, "circulation.json", "ZIR", "Zirkulation", true, MatchTrailingToken},
	{CategorySolar, "solar.json", "SOL", "Solar", false, MatchTrailingToken},
	{CategoryBoilerSequence, "boiler_sequence.json", "KFS", "Kesselfolge", false, MatchTrailingToken},
	{CategoryHeatMeters, "heat_meters.json", "WMZ", "Wärmemengenzähler", true, MatchTrailingToken},
	{CategoryTransferStation, "transfer_station.json", "", "", false, MatchDistinctTokens},
}

// categoryByName looks up a category in the policy table.
func categoryByName(name string) (Category, bool) {
	for _, c := range categories {
		if c.Name == name {
			return c, true
		}
	}
	return Category{}, false
}

// Categories returns the known equipment categories in merge priority order.
func Categories() []Category {
	out := make([]Category, len(categories))
	copy(out, categories)
	return out
}

// deviceFiles maps device type names to their configuration files.
var deviceFiles = map[string]string{
	"KWB Easyfire":     "kwb_easyfire.json",
	"KWB Multifire":    "kwb_multifire.json",
	"KWB Pelletfire+":  "kwb_pelletfire_plus.json",
	"KWB Combifire":    "kwb_combifire.json",
	"KWB CF 2":         "kwb_cf2.json",
	"KWB CF 1":         "kwb_cf1.json",
	"KWB CF 1.5":       "kwb_cf1_5.json",
	"KWB EasyAir Plus": "kwb_easyair_plus.json",
}

// EquipmentConfig declares how many instances of each equipment category
// are physically installed. Zero means not installed.
type EquipmentConfig struct {
	HeatingCircuits      int `yaml:"heating_circuits" json:"heating_circuits"`
	BufferStorage        int `yaml:"buffer_storage" json:"buffer_storage"`
	DHWStorage           int `yaml:"dhw_storage" json:"dhw_storage"`
	SecondaryHeatSources int `yaml:"secondary_heat_sources" json:"secondary_heat_sources"`
	Circulation          int `yaml:"circulation" json:"circulation"`
	Solar                int `yaml:"solar" json:"solar"`
	BoilerSequence       int `yaml:"boiler_sequence" json:"boiler_sequence"`
	HeatMeters           int `yaml:"heat_meters" json:"heat_meters"`
}

// CategoryCount pairs an equipment category name with its configured
// instance count.
type CategoryCount struct {
	Category string
	Count    int
}

// CategoryCounts returns the configured counts in the fixed merge order
// used by AllRegisters.
func (c EquipmentConfig) CategoryCounts() []CategoryCount {
	return []CategoryCount{
		{CategoryHeatingCircuits, c.HeatingCircuits},
		{CategoryBufferStorage, c.BufferStorage},
		{CategoryDHWStorage, c.DHWStorage},
		{CategorySecondaryHeatSources, c.SecondaryHeatSources},
		{CategoryCirculation, c.Circulation},
		{CategorySolar, c.Solar},
		{CategoryBoilerSequence, c.BoilerSequence},
		{CategoryHeatMeters, c.HeatMeters},
	}
}
