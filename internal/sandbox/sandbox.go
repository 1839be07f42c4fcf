// Package sandbox confines file operations to a directory tree, typically
// the staging tree a channel is rebuilt in. Every relative path is resolved
// through symlinks and rejected if it lands outside the root.
package sandbox

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// EscapeError reports a path that resolves outside the sandbox root.
type EscapeError struct {
	Rel      string
	Resolved string
	Root     string
}

func (e *EscapeError) Error() string {
	return fmt.Sprintf("path '%s' resolves to '%s' which is outside the staging root '%s'", e.Rel, e.Resolved, e.Root)
}

// Resolve returns the absolute, symlink-free location of rel inside root.
// The path need not exist yet.
func Resolve(root, rel string) (string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolving staging root: %w", err)
	}
	realRoot, err := filepath.EvalSymlinks(absRoot)
	if err != nil {
		return "", fmt.Errorf("resolving staging root symlinks: %w", err)
	}

	candidate := filepath.Clean(filepath.Join(realRoot, rel))
	resolved, err := resolveExisting(candidate)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", rel, err)
	}

	// The separator suffix keeps "root2" from matching "root".
	if resolved != realRoot && !strings.HasPrefix(resolved, realRoot+string(filepath.Separator)) {
		return "", &EscapeError{Rel: rel, Resolved: resolved, Root: realRoot}
	}
	return resolved, nil
}

// resolveExisting resolves symlinks in the longest existing prefix of path
// and appends the rest unchanged.
func resolveExisting(path string) (string, error) {
	resolved, err := filepath.EvalSymlinks(path)
	if err == nil {
		return resolved, nil
	}

	dir := filepath.Dir(path)
	if dir == path {
		return path, nil
	}
	resolvedDir, err := resolveExisting(dir)
	if err != nil {
		return "", err
	}
	return filepath.Join(resolvedDir, filepath.Base(path)), nil
}

// MkdirAll creates rel and its parents inside root.
func MkdirAll(root, rel string) (string, error) {
	resolved, err := Resolve(root, rel)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(resolved, 0755); err != nil {
		return "", fmt.Errorf("creating directory %s: %w", rel, err)
	}
	return resolved, nil
}

// WriteFile atomically writes content to rel inside root.
func WriteFile(root, rel string, content []byte, perm os.FileMode) error {
	_, err := writeAtomic(root, rel, perm, func(w io.Writer) (int64, error) {
		n, err := w.Write(content)
		return int64(n), err
	})
	return err
}

// CopyFile copies src to rel inside root and gives the copy src's
// modification time. It returns the number of bytes copied.
func CopyFile(root, rel, src string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()
	info, err := in.Stat()
	if err != nil {
		return 0, err
	}

	n, err := writeAtomic(root, rel, 0644, func(w io.Writer) (int64, error) {
		return io.Copy(w, in)
	})
	if err != nil {
		return n, err
	}

	dst, err := Resolve(root, rel)
	if err != nil {
		return n, err
	}
	if err := os.Chtimes(dst, info.ModTime(), info.ModTime()); err != nil {
		return n, fmt.Errorf("preserving mtime of %s: %w", rel, err)
	}
	return n, nil
}

func writeAtomic(root, rel string, perm os.FileMode, fill func(io.Writer) (int64, error)) (int64, error) {
	resolved, err := Resolve(root, rel)
	if err != nil {
		return 0, err
	}
	dir := filepath.Dir(resolved)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return 0, fmt.Errorf("creating directory %s: %w", dir, err)
	}

	// Same directory as the target so the rename stays on one filesystem.
	tmp, err := os.CreateTemp(dir, ".conda-publish-*.tmp")
	if err != nil {
		return 0, fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	n, err := fill(tmp)
	if err != nil {
		return n, fmt.Errorf("writing %s: %w", rel, err)
	}
	if err := tmp.Close(); err != nil {
		return n, fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		return n, fmt.Errorf("setting permissions: %w", err)
	}
	if err := os.Rename(tmpPath, resolved); err != nil {
		return n, fmt.Errorf("renaming temp file to %s: %w", resolved, err)
	}

	success = true
	return n, nil
}

// Remove deletes rel inside root.
func Remove(root, rel string) error {
	resolved, err := Resolve(root, rel)
	if err != nil {
		return err
	}
	return os.Remove(resolved)
}

// RemoveMatching deletes the regular files directly inside dir (relative to
// root) whose names match any of patterns. Subdirectories are left alone.
// It returns the removed names, sorted; a missing dir removes nothing.
func RemoveMatching(root, dir string, patterns ...string) ([]string, error) {
	resolved, err := Resolve(root, dir)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(resolved)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var removed []string
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		for _, p := range patterns {
			ok, err := filepath.Match(p, e.Name())
			if err != nil {
				return removed, fmt.Errorf("bad pattern %q: %w", p, err)
			}
			if !ok {
				continue
			}
			if err := os.Remove(filepath.Join(resolved, e.Name())); err != nil {
				return removed, err
			}
			removed = append(removed, e.Name())
			break
		}
	}
	sort.Strings(removed)
	return removed, nil
}
