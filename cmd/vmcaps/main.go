package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/leodido/structcli"
	"github.com/leodido/vmcaps"
	"github.com/spf13/cobra"
	"github.com/thediveo/enumflag/v2"
)

// Build metadata injected via ldflags. When built without ldflags (e.g.,
// plain `go build`), these remain at their zero values and the version
// command omits them gracefully.
var (
	version = ""
	commit  = ""
	date    = ""
)

func main() {
	root := &cobra.Command{
		Use:   "vmcaps",
		Short: "Virtual machine capability policy inspection",
		Long: `vmcaps inspects the capability policy of a virtual machine.

It computes the default capability set a machine class offers under a guest
CPU compatibility ceiling, probes what the local accelerator really supports,
and evaluates whether a live migration between two capability configurations
would be accepted.`,
		SilenceUsage: true,
	}

	root.AddCommand(defaultsCmd())
	root.AddCommand(checkCmd())
	root.AddCommand(accelCmd())
	root.AddCommand(versionCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// newRegistry builds the builtin capability table against the given
// accelerator ("emu" when empty).
func newRegistry(accelName string) (*vmcaps.Registry, func() error, error) {
	backend, closeFn, err := newBackend(accelName)
	if err != nil {
		return nil, nil, err
	}
	reg, err := vmcaps.NewBuiltinRegistry(backend)
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	return reg, closeFn, nil
}

type accel int

const (
	accelEmu accel = iota
	accelKVM
)

var accelIDs = map[accel][]string{
	accelEmu: {"emu", "tcg"},
	accelKVM: {"kvm"},
}

func parseAccel(input string) (accel, error) {
	if strings.TrimSpace(input) == "" {
		return accelEmu, nil
	}

	var a accel
	value := enumflag.New(&a, "accel", accelIDs, enumflag.EnumCaseInsensitive)
	if err := value.Set(strings.TrimSpace(input)); err != nil {
		return 0, fmt.Errorf("unknown accelerator %q (available: emu, kvm)", input)
	}
	return a, nil
}

func newBackend(accelName string) (vmcaps.Backend, func() error, error) {
	a, err := parseAccel(accelName)
	if err != nil {
		return nil, nil, err
	}
	switch a {
	case accelKVM:
		b, err := vmcaps.NewKVMBackend()
		if err != nil {
			return nil, nil, err
		}
		return b, b.Close, nil
	default:
		return vmcaps.EmulationBackend{}, func() error { return nil }, nil
	}
}

// resolveBaseline loads the profile (builtin default when path is empty) and
// resolves the baseline plus the effective compatibility ceiling: an
// explicit --compat wins over the profile's own declaration.
func resolveBaseline(reg *vmcaps.Registry, profilePath, compat string) (vmcaps.Set, vmcaps.CompatLevel, error) {
	profile := vmcaps.DefaultProfile()
	if profilePath != "" {
		var err error
		profile, err = vmcaps.LoadProfileFile(profilePath)
		if err != nil {
			return nil, vmcaps.CompatNone, err
		}
	}

	baseline, err := profile.Baseline(reg)
	if err != nil {
		return nil, vmcaps.CompatNone, err
	}

	ceiling, err := profile.Ceiling()
	if err != nil {
		return nil, vmcaps.CompatNone, err
	}
	if strings.TrimSpace(compat) != "" {
		ceiling, err = vmcaps.ParseCompat(compat)
		if err != nil {
			return nil, vmcaps.CompatNone, err
		}
	}

	return baseline, ceiling, nil
}

// DefaultsOptions defines flags for the defaults subcommand.
type DefaultsOptions struct {
	Profile string `flag:"profile" flagshort:"p" flagdescr:"Path to a YAML machine profile (builtin pseries profile when empty)"`
	Compat  string `flag:"compat" flagshort:"c" flagdescr:"Guest CPU compatibility ceiling (none, 2.05, 2.06, 2.07, 3.00)"`
	JSON    bool   `flag:"json" flagshort:"j" flagdescr:"Output in JSON format"`
}

func (o *DefaultsOptions) Attach(c *cobra.Command) error {
	return structcli.Define(c, o)
}

func defaultsCmd() *cobra.Command {
	opts := &DefaultsOptions{}

	cmd := &cobra.Command{
		Use:   "defaults",
		Short: "Compute the default capability set for a machine profile",
		PreRunE: func(c *cobra.Command, args []string) error {
			return structcli.Unmarshal(c, opts)
		},
		RunE: func(c *cobra.Command, args []string) error {
			reg, closeFn, err := newRegistry("")
			if err != nil {
				return err
			}
			defer closeFn()

			baseline, ceiling, err := resolveBaseline(reg, opts.Profile, opts.Compat)
			if err != nil {
				return err
			}
			defaults := vmcaps.ComputeDefaults(reg, baseline, ceiling)

			if opts.JSON {
				out := make(map[string]string, reg.Len())
				for i, name := range reg.Names() {
					out[name] = defaults[i].String()
				}
				return printJSON(map[string]any{
					"compat": ceiling.String(),
					"caps":   out,
				})
			}

			fmt.Printf("Compatibility ceiling: %s\n", ceiling)
			for i, name := range reg.Names() {
				fmt.Printf("cap-%s: %s\n", name, defaults[i])
			}
			return nil
		},
	}

	if err := opts.Attach(cmd); err != nil {
		panic(err)
	}
	return cmd
}

// CheckOptions defines flags for the check subcommand.
type CheckOptions struct {
	Source  string `flag:"source" flagshort:"s" flagdescr:"Source capability overrides as name=level pairs (e.g. htm=on,vsx=off)"`
	Dest    string `flag:"dest" flagshort:"d" flagdescr:"Destination capability overrides as name=level pairs"`
	Profile string `flag:"profile" flagshort:"p" flagdescr:"Path to a YAML machine profile shared by both sides"`
	Compat  string `flag:"compat" flagshort:"c" flagdescr:"Guest CPU compatibility ceiling shared by both sides"`
	JSON    bool   `flag:"json" flagshort:"j" flagdescr:"Output in JSON format"`
}

func (o *CheckOptions) Attach(c *cobra.Command) error {
	return structcli.Define(c, o)
}

func checkCmd() *cobra.Command {
	opts := &CheckOptions{}

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Evaluate migration compatibility between two capability configurations",
		Long: `Evaluate whether a migration from a source capability configuration to a
destination one would be accepted. Capabilities not named on a side keep the
computed default for the profile and compatibility ceiling.

Exits with code 0 when the migration would proceed, 1 when it would be
rejected.`,
		PreRunE: func(c *cobra.Command, args []string) error {
			return structcli.Unmarshal(c, opts)
		},
		RunE: func(c *cobra.Command, args []string) error {
			reg, closeFn, err := newRegistry("")
			if err != nil {
				return err
			}
			defer closeFn()

			baseline, ceiling, err := resolveBaseline(reg, opts.Profile, opts.Compat)
			if err != nil {
				return err
			}
			defaults := vmcaps.ComputeDefaults(reg, baseline, ceiling)

			src, err := applyAssignments(reg, defaults.Clone(), opts.Source)
			if err != nil {
				return err
			}
			dst, err := applyAssignments(reg, defaults.Clone(), opts.Dest)
			if err != nil {
				return err
			}

			incompatible, downgrades := decide(reg, src, dst)

			if opts.JSON {
				if err := printJSON(map[string]any{
					"ok":           len(incompatible) == 0,
					"incompatible": incompatible,
					"downgrades":   downgrades,
				}); err != nil {
					return err
				}
			} else {
				for _, msg := range downgrades {
					fmt.Fprintf(os.Stderr, "WARN: %s\n", msg)
				}
				for _, msg := range incompatible {
					fmt.Fprintf(os.Stderr, "FAIL: %s\n", msg)
				}
				if len(incompatible) == 0 {
					fmt.Println("OK: migration would be accepted")
				}
			}

			if len(incompatible) > 0 {
				os.Exit(1)
			}
			return nil
		},
	}

	if err := opts.Attach(cmd); err != nil {
		panic(err)
	}
	return cmd
}

// decide evaluates the migration decision table for explicit source and
// destination sets: stronger on the source side is fatal, weaker is a
// downgrade warning, equal is silent.
func decide(reg *vmcaps.Registry, src, dst vmcaps.Set) (incompatible, downgrades []string) {
	for i, name := range reg.Names() {
		switch {
		case src[i] > dst[i]:
			incompatible = append(incompatible,
				fmt.Sprintf("cap-%s higher level (%d) on source than on destination (%d)", name, src[i], dst[i]))
		case src[i] < dst[i]:
			downgrades = append(downgrades,
				fmt.Sprintf("cap-%s lower level (%d) on source than on destination (%d)", name, src[i], dst[i]))
		}
	}
	return incompatible, downgrades
}

// applyAssignments overlays comma-separated name=level pairs onto a set.
func applyAssignments(reg *vmcaps.Registry, set vmcaps.Set, input string) (vmcaps.Set, error) {
	if strings.TrimSpace(input) == "" {
		return set, nil
	}

	for _, part := range strings.Split(input, ",") {
		pair := strings.TrimSpace(part)
		if pair == "" {
			continue
		}
		name, spelling, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("invalid capability assignment %q (expected name=level)", pair)
		}
		name = strings.TrimSpace(name)
		d, found := reg.LookupName(name)
		if !found {
			return nil, fmt.Errorf("unknown capability %q (available: %s)", name, strings.Join(reg.Names(), ", "))
		}
		l, err := vmcaps.ParseLevel(spelling)
		if err != nil {
			return nil, fmt.Errorf("capability %q: %w", name, err)
		}
		set[d.Cap] = l
	}
	return set, nil
}

// AccelOptions defines flags for the accel subcommand.
type AccelOptions struct {
	Accel string `flag:"accel" flagshort:"a" flagdescr:"Accelerator to probe (emu, kvm)"`
	JSON  bool   `flag:"json" flagshort:"j" flagdescr:"Output in JSON format"`
}

func (o *AccelOptions) Attach(c *cobra.Command) error {
	return structcli.Define(c, o)
}

func accelCmd() *cobra.Command {
	opts := &AccelOptions{}

	cmd := &cobra.Command{
		Use:   "accel",
		Short: "Probe which capabilities the local accelerator supports",
		PreRunE: func(c *cobra.Command, args []string) error {
			return structcli.Unmarshal(c, opts)
		},
		RunE: func(c *cobra.Command, args []string) error {
			backend, closeFn, err := newBackend(opts.Accel)
			if err != nil {
				return err
			}
			defer closeFn()

			reg, err := vmcaps.NewBuiltinRegistry(backend)
			if err != nil {
				return err
			}

			if opts.JSON {
				out := make(map[string]bool, reg.Len())
				for _, d := range reg.Descriptors() {
					ok, _ := backend.Supports(d.Cap)
					out[d.Name] = ok
				}
				return printJSON(map[string]any{
					"accel": backend.Name(),
					"caps":  out,
				})
			}

			fmt.Printf("Accelerator: %s\n", backend.Name())
			for _, d := range reg.Descriptors() {
				ok, reason := backend.Supports(d.Cap)
				status := "yes"
				if !ok {
					status = "no"
				}
				if reason != "" {
					fmt.Printf("cap-%s: %s (%s)\n", d.Name, status, reason)
				} else {
					fmt.Printf("cap-%s: %s\n", d.Name, status)
				}
			}
			return nil
		},
	}

	if err := opts.Attach(cmd); err != nil {
		panic(err)
	}
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show tool version",
		RunE: func(c *cobra.Command, args []string) error {
			if version != "" {
				fmt.Printf("vmcaps %s", version)
				if commit != "" {
					fmt.Printf(" (%s)", commit)
				}
				if date != "" {
					fmt.Printf(" built %s", date)
				}
				fmt.Println()
			} else {
				fmt.Println("vmcaps (dev)")
			}
			return nil
		},
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
