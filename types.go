package vmcaps

import (
	"fmt"
	"strconv"
	"strings"
)

// Level is the configured strength of a capability. Levels are totally
// ordered and compared numerically: a higher level always means a stronger
// guest-visible guarantee. Boolean capabilities use [LevelOff] and [LevelOn];
// multi-level capabilities may define further ordinals above [LevelOn].
type Level uint8

const (
	// LevelOff disables the capability.
	LevelOff Level = 0
	// LevelOn enables the capability.
	LevelOn Level = 1
)

func (l Level) String() string {
	switch l {
	case LevelOff:
		return "off"
	case LevelOn:
		return "on"
	default:
		return strconv.Itoa(int(l))
	}
}

// ParseLevel parses a capability level from its textual form.
// It accepts "on"/"off", boolean spellings, and bare ordinals.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "off", "false":
		return LevelOff, nil
	case "on", "true":
		return LevelOn, nil
	}
	n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid capability level %q", s)
	}
	return Level(n), nil
}

// CompatLevel is a guest-CPU compatibility ceiling. It caps the CPU feature
// set a guest may observe so that the guest stays portable across host CPU
// generations. Only the ordering of the values is meaningful: a capability
// whose [Descriptor] threshold exceeds the machine's ceiling is never
// offered by default.
type CompatLevel int

const (
	// CompatNone means no compatibility mode was negotiated.
	CompatNone CompatLevel = iota
	// Compat205 caps the guest at ISA v2.05.
	Compat205
	// Compat206 caps the guest at ISA v2.06.
	Compat206
	// Compat207 caps the guest at ISA v2.07.
	Compat207
	// Compat300 caps the guest at ISA v3.00.
	Compat300
)

var compatNames = map[CompatLevel]string{
	CompatNone: "none",
	Compat205:  "2.05",
	Compat206:  "2.06",
	Compat207:  "2.07",
	Compat300:  "3.00",
}

func (c CompatLevel) String() string {
	if name, ok := compatNames[c]; ok {
		return name
	}
	return fmt.Sprintf("CompatLevel(%d)", int(c))
}

// ParseCompat parses a compatibility ceiling from its textual form
// (e.g. "2.07"). The empty string and "none" both mean [CompatNone].
func ParseCompat(s string) (CompatLevel, error) {
	in := strings.ToLower(strings.TrimSpace(s))
	if in == "" {
		return CompatNone, nil
	}
	for c, name := range compatNames {
		if in == name {
			return c, nil
		}
	}
	return CompatNone, fmt.Errorf("invalid compatibility level %q", s)
}

// Capability identifies a capability by its registry ordinal.
type Capability int

// ConfigError reports a capability level the active accelerator backend
// cannot provide. It is fatal at reset time: a guest-visible capability
// without real backend support produces undefined guest behavior, so the
// embedding machine construction must abort.
type ConfigError struct {
	Capability string
	Level      Level
	Reason     string
	Err        error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("cap-%s: %s: %v", e.Capability, e.Reason, e.Err)
	}
	return fmt.Sprintf("cap-%s: %s", e.Capability, e.Reason)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// IncompatError reports an incoming migration stream carrying a capability
// level the destination cannot honor. It is fatal to the in-flight migration
// only; the destination machine stays intact.
type IncompatError struct {
	Capability string
	Source     Level
	Dest       Level
}

func (e *IncompatError) Error() string {
	return fmt.Sprintf("cap-%s higher level (%d) in incoming stream than on destination (%d)",
		e.Capability, e.Source, e.Dest)
}

// PropertyError reports a rejected capability property access. It is
// returned to the configuration caller and is never fatal to a machine.
type PropertyError struct {
	Capability string
	Reason     string
	Err        error
}

func (e *PropertyError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("cap-%s: %s: %v", e.Capability, e.Reason, e.Err)
	}
	return fmt.Sprintf("cap-%s: %s", e.Capability, e.Reason)
}

func (e *PropertyError) Unwrap() error {
	return e.Err
}
