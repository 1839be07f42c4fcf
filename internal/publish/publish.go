// Package publish uploads a rebuilt channel tree to the remote store in a
// fixed order: for each architecture its packages, then its JSON documents,
// then index.html, then the cache database; the channel-wide documents go
// last. A failed upload stops the run and nothing is rolled back, so a
// retry re-uploads everything.
package publish

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/bianoble/conda-publish/internal/cachedb"
	"github.com/bianoble/conda-publish/internal/channel"
	"github.com/bianoble/conda-publish/internal/remote"
)

// Kind classifies an uploaded file.
type Kind string

// Upload kinds.
const (
	KindPackage Kind = "package"
	KindIndex   Kind = "index"
	KindHTML    Kind = "html"
	KindCache   Kind = "cache"
)

// Item is one file to upload.
type Item struct {
	Key  string // remote key, slash separated
	Path string // local file
	Kind Kind
	Size int64
}

// Result lists what was uploaded, or in a dry run what would have been.
type Result struct {
	Items  []Item
	Bytes  int64
	DryRun bool
}

// UploadError reports the upload that stopped a publish.
type UploadError struct {
	Key string
	Err error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("uploading %s: %v", e.Key, e.Err)
}

func (e *UploadError) Unwrap() error {
	return e.Err
}

// Observer is told about each completed upload.
type Observer interface {
	ObserveUpload(kind string, bytes int64)
}

// Publisher uploads channel trees.
type Publisher struct {
	Store    remote.Store
	Logger   *slog.Logger
	Observer Observer
	DryRun   bool
}

func (p *Publisher) logger() *slog.Logger {
	if p.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return p.Logger
}

// Plan lists the files under root to upload for archs, in upload order.
// Architectures without a directory are skipped.
func Plan(root string, archs []channel.Arch) ([]Item, error) {
	var items []Item
	for _, arch := range archs {
		dir := filepath.Join(root, string(arch))
		info, err := os.Stat(dir)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			continue
		}
		prefix := string(arch) + "/"

		pkgs, err := matching(dir, prefix, KindPackage, channel.IsArtifact)
		if err != nil {
			return nil, err
		}
		docs, err := matching(dir, prefix, KindIndex, isJSON)
		if err != nil {
			return nil, err
		}
		items = append(items, pkgs...)
		items = append(items, docs...)
		items = appendIfExists(items, filepath.Join(dir, "index.html"), prefix+"index.html", KindHTML)
		items = appendIfExists(items, cachedb.PathFor(root, arch), prefix+cachedb.RelPath, KindCache)
	}

	docs, err := matching(root, "", KindIndex, isJSON)
	if err != nil {
		return nil, err
	}
	items = append(items, docs...)
	items = appendIfExists(items, filepath.Join(root, "index.html"), "index.html", KindHTML)
	return items, nil
}

func isJSON(name string) bool {
	ok, _ := filepath.Match("*.json", name)
	return ok
}

func matching(dir, prefix string, kind Kind, match func(string) bool) ([]Item, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var items []Item
	for _, e := range entries {
		if !e.Type().IsRegular() || !match(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, err
		}
		items = append(items, Item{
			Key:  prefix + e.Name(),
			Path: filepath.Join(dir, e.Name()),
			Kind: kind,
			Size: info.Size(),
		})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Key < items[j].Key })
	return items, nil
}

func appendIfExists(items []Item, path, key string, kind Kind) []Item {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return items
	}
	return append(items, Item{Key: key, Path: path, Kind: kind, Size: info.Size()})
}

// Publish uploads the tree under root for archs.
func (p *Publisher) Publish(ctx context.Context, root string, archs []channel.Arch) (*Result, error) {
	items, err := Plan(root, archs)
	if err != nil {
		return nil, fmt.Errorf("listing files to upload: %w", err)
	}
	return p.Upload(ctx, items)
}

// Upload sends items in order, stopping at the first failure. The returned
// result covers the uploads that completed.
func (p *Publisher) Upload(ctx context.Context, items []Item) (*Result, error) {
	logger := p.logger()
	res := &Result{DryRun: p.DryRun}

	for _, it := range items {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if p.DryRun {
			logger.Info("[DRY RUN] Would upload", "key", it.Key, "url", p.Store.URL(it.Key))
			res.Items = append(res.Items, it)
			res.Bytes += it.Size
			continue
		}

		n, err := p.put(ctx, it)
		if err != nil {
			return res, &UploadError{Key: it.Key, Err: err}
		}
		it.Size = n
		res.Items = append(res.Items, it)
		res.Bytes += n
		if p.Observer != nil {
			p.Observer.ObserveUpload(string(it.Kind), n)
		}
		logger.Info("uploaded", "key", it.Key, "bytes", n)
	}
	return res, nil
}

func (p *Publisher) put(ctx context.Context, it Item) (int64, error) {
	f, err := os.Open(it.Path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return 0, err
	}
	if err := p.Store.Put(ctx, it.Key, f, info.Size()); err != nil {
		return 0, err
	}
	return info.Size(), nil
}
