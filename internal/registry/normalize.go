package registry

import (
	"fmt"
	"strconv"
	"strings"
)

// normalize returns an augmented copy of a raw register record:
//
//   - registers with both an index and a name get a compound display name
//     "<FriendlyName> <Instance>: <Name>", with zero-indexed instance
//     numbers converted to 1-based for display only
//   - a default access_level is derived from whichever access descriptor
//     grants write
//   - the coarse access flag is "RW" when either level can write, else "R"
//
// Address coercion (string-encoded integers) already happened during JSON
// decoding, so the copy carries a plain integer address.
func (s *Store) normalize(reg Register) Register {
	normalized := reg

	if normalized.Index != "" && normalized.Name != "" {
		if name, ok := displayName(normalized.Index, normalized.Name); ok {
			normalized.Name = name
		}
	}

	if normalized.AccessLevel == "" {
		switch {
		case strings.Contains(strings.ToLower(normalized.UserLevel), AccessWrite):
			normalized.AccessLevel = UserLevel
		case strings.Contains(strings.ToLower(normalized.ExpertLevel), AccessWrite):
			normalized.AccessLevel = ExpertLevel
		default:
			normalized.AccessLevel = UserLevel
		}
	}

	if normalized.grantsWrite() {
		normalized.Access = "RW"
	} else {
		normalized.Access = "R"
	}

	return normalized
}

// displayName builds the compound display name for an indexed register by
// matching the index prefix against the category table. Categories without
// a prefix (no display policy) never match.
func displayName(index, name string) (string, bool) {
	for _, cat := range categories {
		if cat.Prefix == "" || !strings.HasPrefix(index, cat.Prefix) {
			continue
		}

		instance := strings.TrimSpace(index[len(cat.Prefix):])
		if cat.ZeroIndexed {
			// Internal numbering starts at 0; people count from 1
			if n, err := strconv.Atoi(instance); err == nil {
				instance = strconv.Itoa(n + 1)
			}
		}
		return fmt.Sprintf("%s %s: %s", cat.FriendlyName, instance, name), true
	}
	return "", false
}
