package channel

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Encode renders v the way every channel document is written: two-space
// indentation, sorted keys, no HTML escaping and a trailing newline.
func Encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// marshalCompact is json.Marshal without HTML escaping. Custom marshalers
// use it so the outer encoder does not see pre-escaped text.
func marshalCompact(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// WriteJSON encodes v and writes it to path atomically.
func WriteJSON(path string, v any) error {
	data, err := Encode(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", filepath.Base(path), err)
	}
	return writeFileAtomic(path, data)
}

func writeFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating directory for %s: %w", path, err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("writing temp file %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("renaming temp file to %s: %w", path, err)
	}
	return nil
}

// ReadRepodata loads a manifest from disk. A missing file yields an error
// satisfying errors.Is(err, fs.ErrNotExist).
func ReadRepodata(path string) (*Repodata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest %s: %w", path, err)
	}
	var r Repodata
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parsing manifest %s: %w", path, err)
	}
	return &r, nil
}

// LoadRepodata returns the manifest at path, or a new empty manifest for
// arch when the file does not exist.
func LoadRepodata(path string, arch Arch) (*Repodata, bool, error) {
	r, err := ReadRepodata(path)
	if errors.Is(err, fs.ErrNotExist) {
		return NewRepodata(arch), false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return r, true, nil
}

// ReadChanneldata loads a channel summary from disk.
func ReadChanneldata(path string) (*Channeldata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading channel summary %s: %w", path, err)
	}
	var c Channeldata
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parsing channel summary %s: %w", path, err)
	}
	return &c, nil
}

// LoadChanneldata returns the channel summary at path, or a new empty one
// when the file does not exist.
func LoadChanneldata(path string) (*Channeldata, bool, error) {
	c, err := ReadChanneldata(path)
	if errors.Is(err, fs.ErrNotExist) {
		return NewChanneldata(), false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return c, true, nil
}
