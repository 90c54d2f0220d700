package vmcaps

import (
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-yaml"
)

// Profile is a machine-class capability baseline: the starting point
// [ComputeDefaults] narrows by the CPU compatibility ceiling. Profiles come
// from the builtin machine classes or from operator-supplied YAML:
//
//	name: pseries-legacy
//	compat: "2.06"
//	caps:
//	  htm: "off"
//	  vsx: "on"
//	  dfp: "on"
//
// Capabilities a profile does not mention default to off.
type Profile struct {
	// Name identifies the machine class.
	Name string `yaml:"name"`
	// Compat optionally declares the compatibility ceiling the class
	// negotiates when the CPU layer supplies none.
	Compat string `yaml:"compat"`
	// Caps maps external capability names to level spellings.
	Caps map[string]string `yaml:"caps"`
}

// DefaultProfile is the baseline of the current machine class: every
// builtin capability allowed, to be narrowed by the CPU ceiling.
func DefaultProfile() Profile {
	return Profile{
		Name: "pseries",
		Caps: map[string]string{
			"htm": "on",
			"vsx": "on",
			"dfp": "on",
		},
	}
}

// LoadProfile parses a YAML profile.
func LoadProfile(r io.Reader) (Profile, error) {
	var p Profile
	if err := yaml.NewDecoder(r).Decode(&p); err != nil {
		return Profile{}, fmt.Errorf("parse profile: %w", err)
	}
	if p.Name == "" {
		return Profile{}, fmt.Errorf("parse profile: missing name")
	}
	return p, nil
}

// LoadProfileFile parses a YAML profile from a file.
func LoadProfileFile(path string) (Profile, error) {
	f, err := os.Open(path)
	if err != nil {
		return Profile{}, err
	}
	defer f.Close()
	return LoadProfile(f)
}

// Baseline resolves the profile against a registry into a capability set.
// Naming a capability the registry does not know is an error; capabilities
// the profile omits stay off.
func (p Profile) Baseline(reg *Registry) (Set, error) {
	baseline := NewSet(reg.Len())
	for name, spelling := range p.Caps {
		d, ok := reg.LookupName(name)
		if !ok {
			return nil, fmt.Errorf("profile %s: unknown capability %q", p.Name, name)
		}
		l, err := ParseLevel(spelling)
		if err != nil {
			return nil, fmt.Errorf("profile %s: capability %q: %w", p.Name, name, err)
		}
		baseline[d.Cap] = l
	}
	return baseline, nil
}

// Ceiling parses the profile's declared compatibility ceiling.
// A profile without one yields [CompatNone].
func (p Profile) Ceiling() (CompatLevel, error) {
	return ParseCompat(p.Compat)
}
