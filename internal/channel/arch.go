package channel

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// Arch names a channel subdirectory such as "linux-64" or "noarch".
type Arch string

// Standard architectures published by the channel.
const (
	Linux64  Arch = "linux-64"
	OSX64    Arch = "osx-64"
	OSXArm64 Arch = "osx-arm64"
	Win64    Arch = "win-64"
	NoArch   Arch = "noarch"
)

// DefaultArchs returns the architecture enumeration used when none is configured.
func DefaultArchs() []Arch {
	return []Arch{Linux64, OSX64, OSXArm64, Win64, NoArch}
}

// ArchSet is a fixed enumeration of the architectures a channel may hold.
// Every component receives it explicitly rather than reading a global list.
type ArchSet struct {
	archs []Arch
	known map[Arch]bool
}

// NewArchSet builds an ArchSet from names, rejecting empty, duplicate or
// path-like entries. Order is preserved.
func NewArchSet(names ...string) (*ArchSet, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("architecture list is empty")
	}
	s := &ArchSet{known: make(map[Arch]bool, len(names))}
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			return nil, fmt.Errorf("empty architecture name")
		}
		if strings.ContainsAny(n, `/\`) || n == "." || n == ".." || strings.HasPrefix(n, ".") {
			return nil, fmt.Errorf("invalid architecture name %q", n)
		}
		a := Arch(n)
		if s.known[a] {
			return nil, fmt.Errorf("duplicate architecture %q", n)
		}
		s.known[a] = true
		s.archs = append(s.archs, a)
	}
	return s, nil
}

// MustArchSet is NewArchSet for fixed inputs; it panics on error.
func MustArchSet(names ...string) *ArchSet {
	s, err := NewArchSet(names...)
	if err != nil {
		panic(err)
	}
	return s
}

// DefaultArchSet returns the set built from DefaultArchs.
func DefaultArchSet() *ArchSet {
	names := make([]string, 0, 5)
	for _, a := range DefaultArchs() {
		names = append(names, string(a))
	}
	return MustArchSet(names...)
}

// All returns the architectures in configured order.
func (s *ArchSet) All() []Arch {
	out := make([]Arch, len(s.archs))
	copy(out, s.archs)
	return out
}

// Contains reports whether name is a member of the set.
func (s *ArchSet) Contains(name string) bool {
	return s.known[Arch(name)]
}

// Parse returns name as an Arch if it is a member of the set.
func (s *ArchSet) Parse(name string) (Arch, error) {
	if !s.Contains(name) {
		return "", fmt.Errorf("unknown architecture %q (expected one of %s)", name, s)
	}
	return Arch(name), nil
}

// ArchOfPath returns the architecture named by the parent directory of an
// artifact path.
func (s *ArchSet) ArchOfPath(path string) (Arch, error) {
	parent := filepath.Base(filepath.Dir(path))
	return s.Parse(parent)
}

func (s *ArchSet) String() string {
	names := make([]string, len(s.archs))
	for i, a := range s.archs {
		names[i] = string(a)
	}
	return strings.Join(names, ", ")
}

// SortArchs sorts archs lexically in place and returns it.
func SortArchs(archs []Arch) []Arch {
	sort.Slice(archs, func(i, j int) bool { return archs[i] < archs[j] })
	return archs
}

// UnionArchs returns the sorted, de-duplicated union of the given lists.
func UnionArchs(lists ...[]Arch) []Arch {
	seen := make(map[Arch]bool)
	var out []Arch
	for _, l := range lists {
		for _, a := range l {
			if !seen[a] {
				seen[a] = true
				out = append(out, a)
			}
		}
	}
	return SortArchs(out)
}
