package channel

import (
	"strings"
	"testing"
)

func TestNewArchSet(t *testing.T) {
	s, err := NewArchSet("linux-64", "noarch")
	if err != nil {
		t.Fatalf("NewArchSet: %v", err)
	}
	if !s.Contains("noarch") || s.Contains("win-64") {
		t.Errorf("membership wrong for %s", s)
	}

	for _, bad := range [][]string{nil, {""}, {"linux-64", "linux-64"}, {"../etc"}, {".cache"}} {
		if _, err := NewArchSet(bad...); err == nil {
			t.Errorf("NewArchSet(%q) succeeded, want error", bad)
		}
	}
}

func TestArchOfPath(t *testing.T) {
	s := DefaultArchSet()

	a, err := s.ArchOfPath("/tmp/dist/osx-arm64/foo-1.0-0.conda")
	if err != nil {
		t.Fatalf("ArchOfPath: %v", err)
	}
	if a != OSXArm64 {
		t.Errorf("arch = %s, want osx-arm64", a)
	}

	_, err = s.ArchOfPath("/tmp/dist/linux-aarch64/foo-1.0-0.conda")
	if err == nil {
		t.Fatal("expected error for unknown architecture")
	}
	if !strings.Contains(err.Error(), "linux-aarch64") {
		t.Errorf("error should name the directory: %v", err)
	}
}

func TestUnionArchs(t *testing.T) {
	got := UnionArchs([]Arch{NoArch, Linux64}, []Arch{Linux64, OSX64})
	want := []Arch{Linux64, NoArch, OSX64}
	if len(got) != len(want) {
		t.Fatalf("union = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("union[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestFormatOf(t *testing.T) {
	if FormatOf("a-1-0.tar.bz2") != FormatTarBz2 || FormatOf("a-1-0.conda") != FormatConda {
		t.Error("package formats not recognised")
	}
	if IsArtifact("repodata.json") {
		t.Error("repodata.json is not an artifact")
	}
}
