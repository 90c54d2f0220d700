package vmcaps

import (
	"strings"
	"testing"
)

func TestLoadProfile(t *testing.T) {
	in := `
name: pseries-legacy
compat: "2.06"
caps:
  htm: "off"
  vsx: "on"
  dfp: "1"
`
	p, err := LoadProfile(strings.NewReader(in))
	if err != nil {
		t.Fatalf("LoadProfile() error = %v", err)
	}
	if p.Name != "pseries-legacy" {
		t.Errorf("Name = %q", p.Name)
	}

	ceiling, err := p.Ceiling()
	if err != nil {
		t.Fatalf("Ceiling() error = %v", err)
	}
	if ceiling != Compat206 {
		t.Errorf("Ceiling() = %v, want 2.06", ceiling)
	}

	reg, err := NewBuiltinRegistry(EmulationBackend{})
	if err != nil {
		t.Fatalf("NewBuiltinRegistry() error = %v", err)
	}
	baseline, err := p.Baseline(reg)
	if err != nil {
		t.Fatalf("Baseline() error = %v", err)
	}
	want := Set{LevelOff, LevelOn, LevelOn}
	if !baseline.Equal(want) {
		t.Errorf("Baseline() = %v, want %v", baseline, want)
	}
}

func TestLoadProfile_Invalid(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"missing name", "caps:\n  htm: on\n"},
		{"not yaml", ":\t:::"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadProfile(strings.NewReader(tt.in)); err == nil {
				t.Error("LoadProfile() expected error")
			}
		})
	}
}

func TestProfile_Baseline(t *testing.T) {
	reg, err := NewBuiltinRegistry(EmulationBackend{})
	if err != nil {
		t.Fatalf("NewBuiltinRegistry() error = %v", err)
	}

	t.Run("unknown capability", func(t *testing.T) {
		p := Profile{Name: "bad", Caps: map[string]string{"nested-hv": "on"}}
		if _, err := p.Baseline(reg); err == nil || !strings.Contains(err.Error(), "unknown capability") {
			t.Errorf("Baseline() error = %v, want unknown capability", err)
		}
	})

	t.Run("invalid level", func(t *testing.T) {
		p := Profile{Name: "bad", Caps: map[string]string{"htm": "maybe"}}
		if _, err := p.Baseline(reg); err == nil {
			t.Error("Baseline() expected error")
		}
	})

	t.Run("omitted capabilities stay off", func(t *testing.T) {
		p := Profile{Name: "sparse", Caps: map[string]string{"vsx": "on"}}
		baseline, err := p.Baseline(reg)
		if err != nil {
			t.Fatalf("Baseline() error = %v", err)
		}
		want := Set{LevelOff, LevelOn, LevelOff}
		if !baseline.Equal(want) {
			t.Errorf("Baseline() = %v, want %v", baseline, want)
		}
	})
}

func TestProfile_CeilingDefault(t *testing.T) {
	var p Profile
	c, err := p.Ceiling()
	if err != nil {
		t.Fatalf("Ceiling() error = %v", err)
	}
	if c != CompatNone {
		t.Errorf("Ceiling() = %v, want none", c)
	}
}

func TestDefaultProfile(t *testing.T) {
	reg, err := NewBuiltinRegistry(EmulationBackend{})
	if err != nil {
		t.Fatalf("NewBuiltinRegistry() error = %v", err)
	}
	baseline, err := DefaultProfile().Baseline(reg)
	if err != nil {
		t.Fatalf("Baseline() error = %v", err)
	}
	want := Set{LevelOn, LevelOn, LevelOn}
	if !baseline.Equal(want) {
		t.Errorf("Baseline() = %v, want %v", baseline, want)
	}
}
