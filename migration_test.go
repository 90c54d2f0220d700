package vmcaps

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// newMigMachine builds a reset machine with thresholds (2.07, 2.06, 2.06),
// an all-on baseline, and a 2.06 ceiling, so f1 defaults off while f2/f3
// default on.
func newMigMachine(t *testing.T, log *zap.Logger, overrides map[string]Level) *Machine {
	t.Helper()
	reg, err := NewRegistry(testDescriptors(Compat207, Compat206, Compat206))
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	opts := []Option{
		WithBaseline(Set{LevelOn, LevelOn, LevelOn}),
		WithCompat(Compat206),
	}
	if log != nil {
		opts = append(opts, WithLogger(log))
	}
	m := NewMachine(reg, opts...)
	for name, l := range overrides {
		if err := m.SetCapability(name, l); err != nil {
			t.Fatalf("SetCapability(%s) error = %v", name, err)
		}
	}
	if err := m.Reset(); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	return m
}

// migrate runs the full save/load sequence from src into dst and returns
// the post-migration verdict.
func migrate(t *testing.T, src, dst *Machine) error {
	t.Helper()
	src.PreSave()
	data := src.EncodeMigration()
	dst.PreLoad()
	if err := dst.DecodeMigration(data); err != nil {
		t.Fatalf("DecodeMigration() error = %v", err)
	}
	return dst.PostMigration()
}

func TestState_Needed(t *testing.T) {
	m := newMigMachine(t, nil, map[string]Level{
		"f1": LevelOn, // diverges from its off default
		"f2": LevelOn, // override equal to the default
	})

	tests := []struct {
		cap  Capability
		want bool
	}{
		{Capability(0), true},  // overridden and != default
		{Capability(1), false}, // overridden but == default
		{Capability(2), false}, // not overridden
	}
	for _, tt := range tests {
		if got := m.State().Needed(tt.cap); got != tt.want {
			t.Errorf("Needed(%d) = %v, want %v", tt.cap, got, tt.want)
		}
	}
}

func TestMachine_EncodeMigration(t *testing.T) {
	t.Run("carries only diverging overrides", func(t *testing.T) {
		m := newMigMachine(t, nil, map[string]Level{"f1": LevelOn})
		m.PreSave()

		want := []byte{migrationVersion, 2, 'f', '1', 1}
		if got := m.EncodeMigration(); !bytes.Equal(got, want) {
			t.Errorf("EncodeMigration() = %v, want %v", got, want)
		}
	})

	t.Run("nothing needed", func(t *testing.T) {
		m := newMigMachine(t, nil, nil)
		m.PreSave()

		if got := m.EncodeMigration(); !bytes.Equal(got, []byte{migrationVersion}) {
			t.Errorf("EncodeMigration() = %v, want version byte only", got)
		}
	})
}

func TestMachine_DecodeMigration(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		wantErr string
	}{
		{"empty stream", nil, "empty capability stream"},
		{"bad version", []byte{9}, "unsupported capability stream version"},
		{"unknown name", []byte{migrationVersion, 4, 'n', 'o', 'p', 'e', 1}, "unknown capability"},
		{"truncated name", []byte{migrationVersion, 5, 'f', '1'}, "truncated capability record"},
		{"missing level byte", []byte{migrationVersion, 2, 'f', '1'}, "truncated capability record"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newMigMachine(t, nil, nil)
			m.PreLoad()
			err := m.DecodeMigration(tt.data)
			if err == nil {
				t.Fatal("DecodeMigration() expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error %q missing %q", err, tt.wantErr)
			}
		})
	}

	t.Run("version byte only is valid", func(t *testing.T) {
		m := newMigMachine(t, nil, nil)
		m.PreLoad()
		if err := m.DecodeMigration([]byte{migrationVersion}); err != nil {
			t.Fatalf("DecodeMigration() error = %v", err)
		}
		// Absent capabilities stay at the destination's own defaults.
		if !m.State().Migration.Equal(m.State().Defaults) {
			t.Errorf("Migration = %v, want defaults %v", m.State().Migration, m.State().Defaults)
		}
	})
}

func TestMachine_PreLoadPrimesDefaults(t *testing.T) {
	m := newMigMachine(t, nil, map[string]Level{"f1": LevelOn})
	m.PreLoad()
	if !m.State().Migration.Equal(m.State().Defaults) {
		t.Errorf("Migration = %v, want defaults %v", m.State().Migration, m.State().Defaults)
	}
}

func TestMachine_PostMigration(t *testing.T) {
	t.Run("source above destination is fatal", func(t *testing.T) {
		// Scenario B: source overrides f1 on (default off), the wire
		// carries f1=1, destination runs the plain defaults.
		src := newMigMachine(t, nil, map[string]Level{"f1": LevelOn})
		dst := newMigMachine(t, nil, nil)

		err := migrate(t, src, dst)
		if err == nil {
			t.Fatal("migrate() expected error")
		}
		var ie *IncompatError
		if !errors.As(err, &ie) {
			t.Fatalf("error %v is not a *IncompatError", err)
		}
		if ie.Capability != "f1" || ie.Source != LevelOn || ie.Dest != LevelOff {
			t.Errorf("IncompatError = %+v", ie)
		}
		for _, want := range []string{"cap-f1", "(1)", "(0)"} {
			if !strings.Contains(err.Error(), want) {
				t.Errorf("error %q missing %q", err, want)
			}
		}
	})

	t.Run("source below destination warns and proceeds", func(t *testing.T) {
		core, logs := observer.New(zapcore.WarnLevel)
		src := newMigMachine(t, nil, nil)
		dst := newMigMachine(t, zap.New(core), map[string]Level{"f1": LevelOn})

		if err := migrate(t, src, dst); err != nil {
			t.Fatalf("migrate() error = %v", err)
		}

		entries := logs.All()
		if len(entries) != 1 {
			t.Fatalf("warnings = %d, want 1", len(entries))
		}
		fields := entries[0].ContextMap()
		if fields["capability"] != "f1" {
			t.Errorf("warning capability = %v, want f1", fields["capability"])
		}
		// No automatic level change is attempted.
		if got, _ := dst.Capability("f1"); got != LevelOn {
			t.Errorf("Capability(f1) = %v, want on", got)
		}
	})

	t.Run("equal levels are silent", func(t *testing.T) {
		core, logs := observer.New(zapcore.WarnLevel)
		src := newMigMachine(t, nil, map[string]Level{"f1": LevelOn})
		dst := newMigMachine(t, zap.New(core), map[string]Level{"f1": LevelOn})

		if err := migrate(t, src, dst); err != nil {
			t.Fatalf("migrate() error = %v", err)
		}
		if n := logs.Len(); n != 0 {
			t.Errorf("warnings = %d, want 0", n)
		}
	})

	t.Run("never sent compares as source default", func(t *testing.T) {
		core, logs := observer.New(zapcore.WarnLevel)
		src := newMigMachine(t, nil, nil)
		dst := newMigMachine(t, zap.New(core), nil)

		if err := migrate(t, src, dst); err != nil {
			t.Fatalf("migrate() error = %v", err)
		}
		if n := logs.Len(); n != 0 {
			t.Errorf("warnings = %d, want 0", n)
		}
	})

	t.Run("aggregates every incompatibility", func(t *testing.T) {
		src := newMigMachine(t, nil, map[string]Level{
			"f1": LevelOn,
			"f3": Level(2),
		})
		dst := newMigMachine(t, nil, nil)

		err := migrate(t, src, dst)
		if err == nil {
			t.Fatal("migrate() expected error")
		}
		for _, want := range []string{"cap-f1", "cap-f3"} {
			if !strings.Contains(err.Error(), want) {
				t.Errorf("error %q missing %q", err, want)
			}
		}
	})

	t.Run("destination stays intact after rejection", func(t *testing.T) {
		src := newMigMachine(t, nil, map[string]Level{"f1": LevelOn})
		dst := newMigMachine(t, nil, nil)

		if err := migrate(t, src, dst); err == nil {
			t.Fatal("migrate() expected error")
		}
		want := Set{LevelOff, LevelOn, LevelOn}
		if !dst.State().Effective.Equal(want) {
			t.Errorf("Effective = %v, want %v", dst.State().Effective, want)
		}
	})
}
