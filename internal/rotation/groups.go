// Package rotation provides the anti-churn trade-frequency gate.
package rotation

// sectorGroups maps a sector group name to its member ETF codes. Rotation
// within a group is always denied.
var sectorGroups = map[string][]string{
	"semiconductor": {"512760", "512480", "588200"},
	"new_energy":    {"516160", "515790", "515030"},
	"tech":          {"515000", "512720", "159819"},
	"defense":       {"512660", "512710"},
	"medical":       {"512170", "159992"},
	"securities":    {"512000", "512880"},
}

var codeToGroup = func() map[string]string {
	m := make(map[string]string)
	for group, codes := range sectorGroups {
		for _, code := range codes {
			m[code] = group
		}
	}
	return m
}()

// GroupOf returns the sector group of a code, if it belongs to one.
func GroupOf(code string) (string, bool) {
	g, ok := codeToGroup[code]
	return g, ok
}

// SameGroup reports whether two codes belong to the same sector group and
// names the group.
func SameGroup(a, b string) (string, bool) {
	ga, ok := codeToGroup[a]
	if !ok {
		return "", false
	}
	gb, ok := codeToGroup[b]
	if !ok {
		return "", false
	}
	if ga != gb {
		return "", false
	}
	return ga, true
}
