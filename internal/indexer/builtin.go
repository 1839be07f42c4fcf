package indexer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bianoble/conda-publish/internal/cachedb"
	"github.com/bianoble/conda-publish/internal/channel"
	"github.com/bianoble/conda-publish/internal/pkgmeta"
)

// DefaultTitle heads the channel index.html when Builtin.Title is empty.
const DefaultTitle = "conda channel"

// Builtin indexes a channel in-process, keeping each architecture's cache
// database in the layout conda-index uses.
//
// With WriteCache set, every artifact on disk is folded into the cache as
// an indexed row (re-extracting it when its row is missing, incomplete or
// stale) and fs rows of artifacts that exist only remotely are promoted. The
// documents then list every indexed row. Without WriteCache the cache is
// opened read-only and the documents list the union of fs and indexed rows,
// with on-disk artifacts unknown to the cache extracted in memory.
type Builtin struct {
	// Archs bounds which directories under the root are indexed. Nil means
	// the default architectures.
	Archs  *channel.ArchSet
	Title  string
	Logger *slog.Logger
}

func (b *Builtin) logger() *slog.Logger {
	if b.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return b.Logger
}

// Run indexes every architecture directory under root and writes the
// channel documents.
func (b *Builtin) Run(ctx context.Context, root string, opts RunOptions) error {
	archs := b.Archs
	if archs == nil {
		archs = channel.DefaultArchSet()
	}

	var entries []channel.Entry
	for _, arch := range archs.All() {
		dir := filepath.Join(root, string(arch))
		info, err := os.Stat(dir)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return fmt.Errorf("indexer: %w", err)
		}
		if !info.IsDir() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		rd, err := b.indexArch(ctx, root, arch, opts.WriteCache)
		if err != nil {
			return fmt.Errorf("indexer: %s: %w", arch, err)
		}
		if err := writeSubdir(dir, rd); err != nil {
			return fmt.Errorf("indexer: %s: %w", arch, err)
		}
		entries = append(entries, rd.Entries(arch)...)
		b.logger().Info("indexed subdir", "arch", string(arch), "packages", rd.Len(), "write_cache", opts.WriteCache)
	}

	cd := channel.Summarize(entries)
	if err := channel.WriteJSON(filepath.Join(root, "channeldata.json"), cd); err != nil {
		return fmt.Errorf("indexer: %w", err)
	}
	title := b.Title
	if title == "" {
		title = DefaultTitle
	}
	if err := channel.WriteChannelIndex(root, title, cd); err != nil {
		return fmt.Errorf("indexer: writing channel index: %w", err)
	}
	return nil
}

func writeSubdir(dir string, rd *channel.Repodata) error {
	for _, name := range []string{"repodata.json", "repodata_from_packages.json"} {
		if err := channel.WriteJSON(filepath.Join(dir, name), rd); err != nil {
			return err
		}
	}
	if err := channel.WriteSubdirIndex(dir, rd); err != nil {
		return fmt.Errorf("writing index.html: %w", err)
	}
	return nil
}

type artifactFile struct {
	name  string
	path  string
	mtime float64
	size  int64
}

func listArtifacts(dir string) ([]artifactFile, error) {
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []artifactFile
	for _, e := range dirEntries {
		if !e.Type().IsRegular() || !channel.IsArtifact(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, err
		}
		out = append(out, artifactFile{
			name:  e.Name(),
			path:  filepath.Join(dir, e.Name()),
			mtime: float64(info.ModTime().UnixNano()) / 1e9,
			size:  info.Size(),
		})
	}
	return out, nil
}

func (b *Builtin) indexArch(ctx context.Context, root string, arch channel.Arch, writeCache bool) (*channel.Repodata, error) {
	files, err := listArtifacts(filepath.Join(root, string(arch)))
	if err != nil {
		return nil, err
	}
	if writeCache {
		return b.indexWithCache(ctx, root, arch, files)
	}
	return b.indexReadOnly(ctx, root, arch, files)
}

func (b *Builtin) indexWithCache(ctx context.Context, root string, arch channel.Arch, files []artifactFile) (*channel.Repodata, error) {
	db, err := cachedb.Open(cachedb.PathFor(root, arch))
	if err != nil {
		return nil, err
	}
	defer db.Close()

	onDisk := make(map[string]bool, len(files))
	err = db.Transaction(func() error {
		for _, f := range files {
			if err := ctx.Err(); err != nil {
				return err
			}
			key := cachedb.Key(arch, f.name)
			onDisk[key] = true
			if err := b.refresh(db, key, f); err != nil {
				return err
			}
		}

		// Rows for artifacts published by earlier runs, known only
		// through the downloaded cache.
		fsRows, err := db.Rows(cachedb.StageFS)
		if err != nil {
			return err
		}
		for _, row := range fsRows {
			if onDisk[row.Path] {
				continue
			}
			if !row.HasDigests() {
				b.logger().Warn("cache row lacks digests, dropping from index", "path", row.Path)
				continue
			}
			if _, err := db.Descriptor(row.Path); err != nil {
				if errors.Is(err, cachedb.ErrNoDescriptor) {
					b.logger().Warn("cache row lacks descriptor, dropping from index", "path", row.Path)
					continue
				}
				return err
			}
			if err := db.Promote(row.Path); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	rows, err := db.Rows(cachedb.StageIndexed)
	if err != nil {
		return nil, err
	}
	return b.assemble(arch, db, rows, nil)
}

// refresh brings the indexed row of one on-disk artifact up to date.
func (b *Builtin) refresh(db *cachedb.DB, key string, f artifactFile) error {
	idx, hasIdx, err := db.Lookup(key, cachedb.StageIndexed)
	if err != nil {
		return err
	}
	fsRow, hasFS, err := db.Lookup(key, cachedb.StageFS)
	if err != nil {
		return err
	}
	row, found := idx, hasIdx
	if !found {
		row, found = fsRow, hasFS
	}

	fresh := found && row.Matches(f.mtime, f.size) && row.HasDigests()
	if fresh {
		if _, err := db.Descriptor(key); err != nil {
			if !errors.Is(err, cachedb.ErrNoDescriptor) {
				return err
			}
			fresh = false
		}
	}

	switch {
	case !fresh:
		desc, err := pkgmeta.ReadDescriptorBytes(f.path)
		if err != nil {
			return err
		}
		d, err := pkgmeta.Digest(f.path)
		if err != nil {
			return err
		}
		b.logger().Debug("extracted artifact", "path", key, "size", d.Size)
		if err := db.Upsert(cachedb.Row{
			Stage:  cachedb.StageIndexed,
			Path:   key,
			Mtime:  f.mtime,
			Size:   d.Size,
			SHA256: d.SHA256,
			MD5:    d.MD5,
		}); err != nil {
			return err
		}
		if err := db.PutDescriptor(key, desc); err != nil {
			return err
		}
		if hasFS {
			return db.Delete(key, cachedb.StageFS)
		}
	case !hasIdx:
		return db.Promote(key)
	case hasFS:
		return db.Delete(key, cachedb.StageFS)
	}
	return nil
}

func (b *Builtin) indexReadOnly(ctx context.Context, root string, arch channel.Arch, files []artifactFile) (*channel.Repodata, error) {
	var (
		db   *cachedb.DB
		rows []cachedb.Row
	)
	path := cachedb.PathFor(root, arch)
	if _, err := os.Stat(path); err == nil {
		db, err = cachedb.OpenReadOnly(path)
		if err != nil {
			return nil, err
		}
		defer db.Close()

		byPath := make(map[string]cachedb.Row)
		for _, stage := range []string{cachedb.StageIndexed, cachedb.StageFS} {
			stageRows, err := db.Rows(stage)
			if err != nil {
				return nil, err
			}
			for _, r := range stageRows {
				byPath[r.Path] = r
			}
		}
		for _, r := range byPath {
			rows = append(rows, r)
		}
		sort.Slice(rows, func(i, j int) bool { return rows[i].Path < rows[j].Path })
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	cached := make(map[string]cachedb.Row, len(rows))
	for _, r := range rows {
		cached[r.Path] = r
	}
	extracted := make(map[string]channel.Record)
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		key := cachedb.Key(arch, f.name)
		if r, ok := cached[key]; ok && r.Matches(f.mtime, f.size) && r.HasDigests() {
			continue
		}
		rec, err := pkgmeta.Extract(f.path)
		if err != nil {
			return nil, err
		}
		extracted[key] = rec
	}
	return b.assemble(arch, db, rows, extracted)
}

// assemble builds the manifest from cache rows, preferring records in
// extracted over the cached descriptor.
func (b *Builtin) assemble(arch channel.Arch, db *cachedb.DB, rows []cachedb.Row, extracted map[string]channel.Record) (*channel.Repodata, error) {
	rd := channel.NewRepodata(arch)
	prefix := string(arch) + "/"

	put := func(key string, rec channel.Record) {
		if err := rd.Put(strings.TrimPrefix(key, prefix), rec); err != nil {
			b.logger().Warn("skipping cache entry", "path", key, "error", err)
		}
	}

	for _, row := range rows {
		if rec, ok := extracted[row.Path]; ok {
			put(row.Path, rec)
			delete(extracted, row.Path)
			continue
		}
		if !row.HasDigests() {
			b.logger().Warn("cache row lacks digests, dropping from index", "path", row.Path)
			continue
		}
		data, err := db.Descriptor(row.Path)
		if errors.Is(err, cachedb.ErrNoDescriptor) {
			b.logger().Warn("cache row lacks descriptor, dropping from index", "path", row.Path)
			continue
		}
		if err != nil {
			return nil, err
		}
		rec, err := channel.DecodeRecord(data)
		if err != nil {
			return nil, fmt.Errorf("cached descriptor for %s: %w", row.Path, err)
		}
		put(row.Path, rec.WithDigests(row.Size, row.MD5, row.SHA256))
	}
	for key, rec := range extracted {
		put(key, rec)
	}
	return rd, nil
}
