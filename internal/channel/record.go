package channel

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Artifact file extensions.
const (
	ExtTarBz2 = ".tar.bz2"
	ExtConda  = ".conda"
)

// Format identifies the container format of an artifact.
type Format int

const (
	FormatUnknown Format = iota
	FormatTarBz2
	FormatConda
)

// FormatOf classifies filename by its extension.
func FormatOf(filename string) Format {
	switch {
	case strings.HasSuffix(filename, ExtTarBz2):
		return FormatTarBz2
	case strings.HasSuffix(filename, ExtConda):
		return FormatConda
	default:
		return FormatUnknown
	}
}

// IsArtifact reports whether filename has a package extension.
func IsArtifact(filename string) bool {
	return FormatOf(filename) != FormatUnknown
}

// Record is the metadata entry for one artifact: the fields of its
// info/index.json plus size, md5 and sha256. Unknown descriptor fields are
// kept as-is so they round-trip into the manifest.
type Record map[string]any

// String fields read from the descriptor.
func (r Record) str(key string) string {
	if v, ok := r[key].(string); ok {
		return v
	}
	return ""
}

// Name returns the package name.
func (r Record) Name() string { return r.str("name") }

// Version returns the package version.
func (r Record) Version() string { return r.str("version") }

// Subdir returns the architecture the package was built for.
func (r Record) Subdir() string { return r.str("subdir") }

// MD5 returns the hex md5 of the artifact.
func (r Record) MD5() string { return r.str("md5") }

// SHA256 returns the hex sha256 of the artifact.
func (r Record) SHA256() string { return r.str("sha256") }

// Size returns the size field, or -1 when absent.
func (r Record) Size() int64 {
	n, ok := toInt64(r["size"])
	if !ok {
		return -1
	}
	return n
}

// Timestamp returns the descriptor build timestamp, 0 when absent.
func (r Record) Timestamp() int64 {
	n, _ := toInt64(r["timestamp"])
	return n
}

// Clone returns a shallow copy of r.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// WithDigests returns a copy of r carrying the given size and hashes.
func (r Record) WithDigests(size int64, md5, sha256 string) Record {
	out := r.Clone()
	out["size"] = size
	out["md5"] = md5
	out["sha256"] = sha256
	return out
}

// DecodeRecord parses a descriptor document. Numbers are kept as
// json.Number so large integers survive a rewrite unchanged.
func DecodeRecord(data []byte) (Record, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var rec Record
	if err := dec.Decode(&rec); err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("descriptor is not a JSON object")
	}
	return rec, nil
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, true
		}
		if f, err := n.Float64(); err == nil {
			return int64(f), true
		}
	case string:
		if i, err := strconv.ParseInt(n, 10, 64); err == nil {
			return i, true
		}
	}
	return 0, false
}
