package cachedb

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/bianoble/conda-publish/internal/channel"
)

// PathFor returns the cache location for arch under a channel root.
func PathFor(root string, arch channel.Arch) string {
	return filepath.Join(root, string(arch), filepath.FromSlash(RelPath))
}

// Key is the stat path recorded for a file: "{arch}/{filename}".
func Key(arch channel.Arch, filename string) string {
	return string(arch) + "/" + filename
}

// Tree operates on the caches of every architecture under a channel root.
// Architectures without a cache file are skipped.
type Tree struct{}

// ResetIndexed flips indexed rows back to fs in each architecture's cache
// and returns the total number of rows changed.
func (Tree) ResetIndexed(root string, archs []channel.Arch) (int, error) {
	total := 0
	for _, arch := range archs {
		n, err := withExisting(PathFor(root, arch), func(db *DB) (int, error) {
			return db.ResetIndexed()
		})
		if err != nil {
			return total, fmt.Errorf("%s: %w", arch, err)
		}
		total += n
	}
	return total, nil
}

// CountStage sums the rows in stage across every architecture's cache.
func (Tree) CountStage(root string, archs []channel.Arch, stage string) (int, error) {
	total := 0
	for _, arch := range archs {
		n, err := withExisting(PathFor(root, arch), func(db *DB) (int, error) {
			return db.CountStage(stage)
		})
		if err != nil {
			return total, fmt.Errorf("%s: %w", arch, err)
		}
		total += n
	}
	return total, nil
}

func withExisting(path string, fn func(*DB) (int, error)) (int, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	db, err := Open(path)
	if err != nil {
		return 0, err
	}
	n, err := fn(db)
	if cerr := db.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("cachedb: closing %s: %w", path, cerr)
	}
	return n, err
}
