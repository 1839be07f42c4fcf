package channel

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// RepodataVersion is the manifest schema version written by this tool.
const RepodataVersion = 1

// Repodata is the per-architecture manifest (repodata.json). A filename is
// held in at most one of Packages and PackagesConda and never also in
// Removed. Top-level keys this type does not model are preserved in Extra.
type Repodata struct {
	Info            map[string]any
	Packages        map[string]Record
	PackagesConda   map[string]Record
	Removed         []string
	RepodataVersion int
	Extra           map[string]json.RawMessage
}

// NewRepodata returns an empty manifest for arch.
func NewRepodata(arch Arch) *Repodata {
	return &Repodata{
		Info:            map[string]any{"subdir": string(arch)},
		Packages:        make(map[string]Record),
		PackagesConda:   make(map[string]Record),
		Removed:         []string{},
		RepodataVersion: RepodataVersion,
	}
}

// Subdir returns info.subdir.
func (r *Repodata) Subdir() string {
	s, _ := r.Info["subdir"].(string)
	return s
}

// Put inserts or replaces the entry for filename in the sub-mapping that
// matches its format. The filename is dropped from the other sub-mapping and
// from Removed. Entries for other filenames are untouched.
func (r *Repodata) Put(filename string, rec Record) error {
	r.normalize()
	switch FormatOf(filename) {
	case FormatTarBz2:
		r.Packages[filename] = rec
		delete(r.PackagesConda, filename)
	case FormatConda:
		r.PackagesConda[filename] = rec
		delete(r.Packages, filename)
	default:
		return fmt.Errorf("%s: not a package file", filename)
	}
	kept := r.Removed[:0]
	for _, f := range r.Removed {
		if f != filename {
			kept = append(kept, f)
		}
	}
	r.Removed = kept
	return nil
}

// Get returns the entry for filename from either sub-mapping.
func (r *Repodata) Get(filename string) (Record, bool) {
	if rec, ok := r.Packages[filename]; ok {
		return rec, true
	}
	rec, ok := r.PackagesConda[filename]
	return rec, ok
}

// Len is the number of entries across both sub-mappings.
func (r *Repodata) Len() int {
	return len(r.Packages) + len(r.PackagesConda)
}

// Filenames returns every entry's filename, sorted.
func (r *Repodata) Filenames() []string {
	out := make([]string, 0, r.Len())
	for f := range r.Packages {
		out = append(out, f)
	}
	for f := range r.PackagesConda {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

func (r *Repodata) normalize() {
	if r.Info == nil {
		r.Info = map[string]any{}
	}
	if r.Packages == nil {
		r.Packages = make(map[string]Record)
	}
	if r.PackagesConda == nil {
		r.PackagesConda = make(map[string]Record)
	}
	if r.Removed == nil {
		r.Removed = []string{}
	}
	if r.RepodataVersion == 0 {
		r.RepodataVersion = RepodataVersion
	}
}

// MarshalJSON writes the manifest with sorted keys, including Extra.
func (r *Repodata) MarshalJSON() ([]byte, error) {
	r.normalize()
	out := make(map[string]any, len(r.Extra)+5)
	for k, v := range r.Extra {
		out[k] = v
	}
	out["info"] = r.Info
	out["packages"] = r.Packages
	out["packages.conda"] = r.PackagesConda
	out["removed"] = r.Removed
	out["repodata_version"] = r.RepodataVersion
	return marshalCompact(out)
}

// UnmarshalJSON reads a manifest written by this tool or by conda-index.
func (r *Repodata) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*r = Repodata{}
	for key, val := range raw {
		var err error
		switch key {
		case "info":
			err = decodeNumbers(val, &r.Info)
		case "packages":
			err = decodeNumbers(val, &r.Packages)
		case "packages.conda":
			err = decodeNumbers(val, &r.PackagesConda)
		case "removed":
			err = json.Unmarshal(val, &r.Removed)
		case "repodata_version":
			err = json.Unmarshal(val, &r.RepodataVersion)
		default:
			if r.Extra == nil {
				r.Extra = make(map[string]json.RawMessage)
			}
			r.Extra[key] = val
		}
		if err != nil {
			return fmt.Errorf("field %q: %w", key, err)
		}
	}
	r.normalize()
	return nil
}

func decodeNumbers(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}
