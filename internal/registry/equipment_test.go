package registry

import (
	"reflect"
	"testing"
)

func TestCategoryByName(t *testing.T) {
	tests := []struct {
		name        string
		category    string
		wantFound   bool
		wantFile    string
		wantZero    bool
		wantMatch   IndexMatch
		wantWithout bool
	}{
		{"HeatingCircuits", CategoryHeatingCircuits, true, "heating_circuits.json", false, MatchDottedInstance, false},
		{"BufferStorage", CategoryBufferStorage, true, "buffer_storage.json", true, MatchTrailingToken, false},
		{"TransferStation", CategoryTransferStation, true, "transfer_station.json", false, MatchDistinctTokens, false},
		{"Unknown", "Frischwassermodul", false, "", false, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cat, found := categoryByName(tt.category)
			if found != tt.wantFound {
				t.Fatalf("categoryByName(%q) found = %v, want %v", tt.category, found, tt.wantFound)
			}
			if !found {
				return
			}
			if cat.FileName != tt.wantFile {
				t.Errorf("FileName = %q, want %q", cat.FileName, tt.wantFile)
			}
			if cat.ZeroIndexed != tt.wantZero {
				t.Errorf("ZeroIndexed = %v, want %v", cat.ZeroIndexed, tt.wantZero)
			}
			if cat.Match != tt.wantMatch {
				t.Errorf("Match = %v, want %v", cat.Match, tt.wantMatch)
			}
		})
	}
}

func TestCategoryCountsOrder(t *testing.T) {
	cfg := EquipmentConfig{
		HeatingCircuits: 2,
		BufferStorage:   1,
		HeatMeters:      1,
	}

	var got []string
	for _, cc := range cfg.CategoryCounts() {
		got = append(got, cc.Category)
	}

	want := []string{
		CategoryHeatingCircuits,
		CategoryBufferStorage,
		CategoryDHWStorage,
		CategorySecondaryHeatSources,
		CategoryCirculation,
		CategorySolar,
		CategoryBoilerSequence,
		CategoryHeatMeters,
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("CategoryCounts() order = %v, want %v", got, want)
	}
}

func TestMatchesInstance(t *testing.T) {
	tests := []struct {
		name     string
		match    IndexMatch
		index    string
		instance int
		want     bool
	}{
		{"DottedHit", MatchDottedInstance, "HK 1.1", 1, true},
		{"DottedSubCircuit", MatchDottedInstance, "HK 1.2", 1, true},
		{"DottedMiss", MatchDottedInstance, "HK 2.1", 1, false},
		// " 1." must not match "11." - the space guards partial matches
		{"DottedNoPartial", MatchDottedInstance, "HK 11.1", 1, false},
		{"TokenHit", MatchTrailingToken, "PUF 0", 0, true},
		{"TokenMiss", MatchTrailingToken, "PUF 10", 0, false},
		{"TokenExact", MatchTrailingToken, "BWS 2", 2, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := matchesInstance(tt.match, tt.index, tt.instance)
			if got != tt.want {
				t.Errorf("matchesInstance(%v, %q, %d) = %v, want %v",
					tt.match, tt.index, tt.instance, got, tt.want)
			}
		})
	}
}

func TestTrailingToken(t *testing.T) {
	tests := []struct {
		index string
		want  string
	}{
		{"PUF 0", "0"},
		{"HK 1.1", "1.1"},
		{"BWS 12", "12"},
		{"   ", "1"},
	}

	for _, tt := range tests {
		if got := trailingToken(tt.index); got != tt.want {
			t.Errorf("trailingToken(%q) = %q, want %q", tt.index, got, tt.want)
		}
	}
}

func TestFilterByInstancesDistinctTokens(t *testing.T) {
	cat := Category{Name: "Unbekannt", Match: MatchDistinctTokens}
	registers := []Register{
		{Name: "a", Index: "X 1"},
		{Name: "b", Index: "X 2"},
		{Name: "c", Index: "X 1"},
		{Name: "d", Index: "X 3"},
		{Name: "e", Index: ""},
	}

	got := filterByInstances(cat, registers, 2)

	// First two distinct trailing tokens in file order are "1" and "2";
	// "X 3" and the empty index are excluded
	var names []string
	for _, reg := range got {
		names = append(names, reg.Name)
	}
	want := []string{"a", "b", "c"}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("filterByInstances() = %v, want %v", names, want)
	}
}

func TestFilterByInstancesGroupsByInstance(t *testing.T) {
	cat, _ := categoryByName(CategoryBufferStorage)
	registers := []Register{
		{Name: "b1", Index: "PUF 1"},
		{Name: "a1", Index: "PUF 0"},
		{Name: "b2", Index: "PUF 1"},
		{Name: "a2", Index: "PUF 0"},
	}

	got := filterByInstances(cat, registers, 2)

	// Instance 0 registers come before instance 1, each in file order
	var names []string
	for _, reg := range got {
		names = append(names, reg.Name)
	}
	want := []string{"a1", "a2", "b1", "b2"}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("filterByInstances() = %v, want %v", names, want)
	}
}
