package channel

import (
	"encoding/json"
	"fmt"
	"sort"
)

// ChanneldataVersion is the channel summary schema version.
const ChanneldataVersion = 1

// descriptiveFields are copied from an artifact's descriptor into its
// package summary whenever they are non-empty.
var descriptiveFields = []string{"description", "summary", "license", "doc_url", "dev_url", "home"}

// Channeldata is the channel summary (channeldata.json).
type Channeldata struct {
	ChanneldataVersion int
	Packages           map[string]*PackageSummary
	Subdirs            []string
	Extra              map[string]json.RawMessage
}

// PackageSummary is the per-name entry of the channel summary. Fields that
// conda-index writes but this type does not model are kept in Extra.
type PackageSummary struct {
	Name        string
	Version     string
	Subdirs     []string
	Description string
	Summary     string
	License     string
	DocURL      string
	DevURL      string
	Home        string
	Extra       map[string]json.RawMessage
}

// NewChanneldata returns an empty channel summary.
func NewChanneldata() *Channeldata {
	return &Channeldata{
		ChanneldataVersion: ChanneldataVersion,
		Packages:           make(map[string]*PackageSummary),
		Subdirs:            []string{},
	}
}

// Merge folds one artifact's record into the summary. The package version
// only moves to a strictly higher version, descriptive fields take the
// incoming non-empty values, and subdir sets only grow. It reports false when
// the record carries no package name; arch is still added to Subdirs.
func (c *Channeldata) Merge(rec Record, arch Arch) bool {
	c.normalize()
	c.Subdirs = addSorted(c.Subdirs, string(arch))

	name := rec.Name()
	if name == "" {
		return false
	}

	pkg, ok := c.Packages[name]
	if !ok {
		pkg = &PackageSummary{Name: name, Subdirs: []string{}, Version: rec.Version()}
		c.Packages[name] = pkg
	}

	if v := rec.Version(); v != "" && (pkg.Version == "" || CompareVersions(v, pkg.Version) > 0) {
		pkg.Version = v
	}
	pkg.Subdirs = addSorted(pkg.Subdirs, string(arch))

	for _, field := range descriptiveFields {
		if v, ok := rec[field].(string); ok && v != "" {
			pkg.set(field, v)
		}
	}
	return true
}

func (p *PackageSummary) set(field, v string) {
	switch field {
	case "description":
		p.Description = v
	case "summary":
		p.Summary = v
	case "license":
		p.License = v
	case "doc_url":
		p.DocURL = v
	case "dev_url":
		p.DevURL = v
	case "home":
		p.Home = v
	}
}

// PackageNames returns the summary's package names, sorted.
func (c *Channeldata) PackageNames() []string {
	names := make([]string, 0, len(c.Packages))
	for n := range c.Packages {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (c *Channeldata) normalize() {
	if c.Packages == nil {
		c.Packages = make(map[string]*PackageSummary)
	}
	if c.Subdirs == nil {
		c.Subdirs = []string{}
	}
	if c.ChanneldataVersion == 0 {
		c.ChanneldataVersion = ChanneldataVersion
	}
}

func addSorted(list []string, v string) []string {
	i := sort.SearchStrings(list, v)
	if i < len(list) && list[i] == v {
		return list
	}
	// Lists read from disk may not be sorted; fall back to a scan.
	for _, s := range list {
		if s == v {
			return list
		}
	}
	list = append(list, v)
	sort.Strings(list)
	return list
}

func (c *Channeldata) MarshalJSON() ([]byte, error) {
	c.normalize()
	out := make(map[string]any, len(c.Extra)+3)
	for k, v := range c.Extra {
		out[k] = v
	}
	out["channeldata_version"] = c.ChanneldataVersion
	out["packages"] = c.Packages
	out["subdirs"] = c.Subdirs
	return marshalCompact(out)
}

func (c *Channeldata) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*c = Channeldata{}
	for key, val := range raw {
		var err error
		switch key {
		case "channeldata_version":
			err = json.Unmarshal(val, &c.ChanneldataVersion)
		case "packages":
			err = json.Unmarshal(val, &c.Packages)
		case "subdirs":
			err = json.Unmarshal(val, &c.Subdirs)
		default:
			if c.Extra == nil {
				c.Extra = make(map[string]json.RawMessage)
			}
			c.Extra[key] = val
		}
		if err != nil {
			return fmt.Errorf("field %q: %w", key, err)
		}
	}
	c.normalize()
	return nil
}

func (p *PackageSummary) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(p.Extra)+9)
	for k, v := range p.Extra {
		out[k] = v
	}
	out["name"] = p.Name
	out["version"] = p.Version
	subdirs := p.Subdirs
	if subdirs == nil {
		subdirs = []string{}
	}
	out["subdirs"] = subdirs
	for field, v := range map[string]string{
		"description": p.Description,
		"summary":     p.Summary,
		"license":     p.License,
		"doc_url":     p.DocURL,
		"dev_url":     p.DevURL,
		"home":        p.Home,
	} {
		if v != "" {
			out[field] = v
		}
	}
	return marshalCompact(out)
}

func (p *PackageSummary) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*p = PackageSummary{}
	for key, val := range raw {
		var err error
		switch key {
		case "name":
			err = json.Unmarshal(val, &p.Name)
		case "version":
			err = json.Unmarshal(val, &p.Version)
		case "subdirs":
			err = json.Unmarshal(val, &p.Subdirs)
		default:
			var s string
			if isDescriptive(key) && json.Unmarshal(val, &s) == nil {
				p.set(key, s)
				continue
			}
			if p.Extra == nil {
				p.Extra = make(map[string]json.RawMessage)
			}
			p.Extra[key] = val
		}
		if err != nil {
			return fmt.Errorf("package field %q: %w", key, err)
		}
	}
	return nil
}

func isDescriptive(field string) bool {
	for _, f := range descriptiveFields {
		if f == field {
			return true
		}
	}
	return false
}
