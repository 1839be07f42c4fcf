package channel

import "sort"

// Entry locates one record within the channel.
type Entry struct {
	Arch     Arch
	Filename string
	Record   Record
}

// Summarize builds a channel summary from scratch. Entries are merged in
// (timestamp, filename, arch) order so the latest build supplies the
// descriptive fields, independent of input order. Subdirs lists only the
// architectures that hold at least one entry.
func Summarize(entries []Entry) *Channeldata {
	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		ti, tj := sorted[i].Record.Timestamp(), sorted[j].Record.Timestamp()
		if ti != tj {
			return ti < tj
		}
		if sorted[i].Filename != sorted[j].Filename {
			return sorted[i].Filename < sorted[j].Filename
		}
		return sorted[i].Arch < sorted[j].Arch
	})

	c := NewChanneldata()
	for _, e := range sorted {
		c.Merge(e.Record, e.Arch)
	}
	return c
}

// Entries lists every record of a manifest as an Entry.
func (r *Repodata) Entries(arch Arch) []Entry {
	var out []Entry
	for _, f := range r.Filenames() {
		rec, _ := r.Get(f)
		out = append(out, Entry{Arch: arch, Filename: f, Record: rec})
	}
	return out
}
