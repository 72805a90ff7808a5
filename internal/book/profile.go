package book

import (
	"fmt"
	"strings"
)

// Profile is the named policy bundle that controls sanitizer strictness and
// package layout decisions. Every decision point switches on it.
type Profile int

const (
	// ProfileLenient keeps the common allow-list and tolerates minor malformation.
	ProfileLenient Profile = iota
	// ProfileConservativeDevice strips everything known to upset e-ink device ingestion.
	ProfileConservativeDevice
	// ProfileStrictXML guarantees namespace declarations and verified XML well-formedness.
	ProfileStrictXML
)

var profileNames = map[Profile]string{
	ProfileLenient:            "lenient",
	ProfileConservativeDevice: "conservative-device",
	ProfileStrictXML:          "strict-xml",
}

// profileAliases maps the historical CLI names onto profiles.
var profileAliases = map[string]Profile{
	"lenient":             ProfileLenient,
	"minimal":             ProfileLenient,
	"conservative-device": ProfileConservativeDevice,
	"kindle":              ProfileConservativeDevice,
	"strict-xml":          ProfileStrictXML,
	"apple":               ProfileStrictXML,
}

func (p Profile) String() string {
	if name, ok := profileNames[p]; ok {
		return name
	}
	return fmt.Sprintf("profile(%d)", int(p))
}

// ParseProfile resolves a profile name or alias (case-insensitive).
func ParseProfile(name string) (Profile, error) {
	p, ok := profileAliases[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return ProfileLenient, fmt.Errorf("unknown profile %q (want lenient, conservative-device or strict-xml)", name)
	}
	return p, nil
}
