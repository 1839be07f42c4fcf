// Package staging assembles the local work tree a channel is rebuilt in:
// the new artifacts plus the cache database of every architecture that
// exists remotely or receives a package.
package staging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"

	"github.com/bianoble/conda-publish/internal/cachedb"
	"github.com/bianoble/conda-publish/internal/channel"
	"github.com/bianoble/conda-publish/internal/remote"
	"github.com/bianoble/conda-publish/internal/sandbox"
)

// InputError reports an artifact that cannot be staged.
type InputError struct {
	Path   string
	Reason string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("invalid artifact %s: %s", e.Path, e.Reason)
}

// FindPackages returns every .tar.bz2 and .conda file under dir, sorted.
func FindPackages(dir string) ([]string, error) {
	var found []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() && channel.IsArtifact(d.Name()) {
			found = append(found, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("searching %s for packages: %w", dir, err)
	}
	sort.Strings(found)
	return found, nil
}

// Plan describes a prepared work tree.
type Plan struct {
	// Archs is the sorted union of PackageArchs and RemoteArchs: the
	// architectures the rebuild covers.
	Archs        []channel.Arch
	PackageArchs []channel.Arch
	RemoteArchs  []channel.Arch
	// Caches lists the architectures whose cache database was downloaded.
	Caches []channel.Arch
	// Staged holds the work-tree keys ("{arch}/{filename}") of the copied
	// artifacts.
	Staged []string
}

// Assembler prepares work trees from a remote channel.
type Assembler struct {
	Store  remote.Store
	Archs  *channel.ArchSet
	Logger *slog.Logger
}

func (a *Assembler) logger() *slog.Logger {
	if a.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return a.Logger
}

func (a *Assembler) archSet() *channel.ArchSet {
	if a.Archs == nil {
		return channel.DefaultArchSet()
	}
	return a.Archs
}

// DiscoverRemote returns the configured architectures whose repodata.json
// exists remotely. A failed probe counts as absent.
func (a *Assembler) DiscoverRemote(ctx context.Context) ([]channel.Arch, error) {
	var found []channel.Arch
	for _, arch := range a.archSet().All() {
		ok, err := a.Store.Head(ctx, string(arch)+"/repodata.json")
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if err != nil {
			a.logger().Debug("architecture probe failed", "arch", string(arch), "error", err)
			continue
		}
		if ok {
			found = append(found, arch)
		}
	}
	return channel.SortArchs(found), nil
}

type artifact struct {
	src  string
	arch channel.Arch
	name string
}

func (a *Assembler) classify(artifacts []string) ([]artifact, error) {
	seen := make(map[string]string)
	out := make([]artifact, 0, len(artifacts))
	for _, src := range artifacts {
		name := filepath.Base(src)
		if !channel.IsArtifact(name) {
			return nil, &InputError{Path: src, Reason: "not a .tar.bz2 or .conda package"}
		}
		arch, err := a.archSet().ArchOfPath(src)
		if err != nil {
			return nil, &InputError{Path: src, Reason: fmt.Sprintf("parent directory is not one of %s", a.archSet())}
		}
		key := cachedb.Key(arch, name)
		if prev, dup := seen[key]; dup {
			return nil, &InputError{Path: src, Reason: "same architecture and filename as " + prev}
		}
		seen[key] = src
		out = append(out, artifact{src: src, arch: arch, name: name})
	}
	return out, nil
}

// Prepare stages artifacts into workDir. Each artifact's architecture is the
// name of its parent directory. The cache database of every architecture in
// the resulting set is fetched when the remote has one; the rest start empty.
func (a *Assembler) Prepare(ctx context.Context, artifacts []string, workDir string) (*Plan, error) {
	if len(artifacts) == 0 {
		return nil, &InputError{Path: workDir, Reason: "no packages to stage"}
	}
	arts, err := a.classify(artifacts)
	if err != nil {
		return nil, err
	}
	logger := a.logger()

	plan := &Plan{}
	for _, art := range arts {
		plan.PackageArchs = append(plan.PackageArchs, art.arch)
	}
	plan.PackageArchs = channel.UnionArchs(plan.PackageArchs)
	logger.Info("detected package architectures", "archs", plan.PackageArchs)

	plan.RemoteArchs, err = a.DiscoverRemote(ctx)
	if err != nil {
		return nil, err
	}
	if len(plan.RemoteArchs) == 0 {
		logger.Info("no architectures found remotely, starting a new channel")
	}
	plan.Archs = channel.UnionArchs(plan.PackageArchs, plan.RemoteArchs)

	for _, arch := range plan.Archs {
		if _, err := sandbox.MkdirAll(workDir, string(arch)); err != nil {
			return nil, err
		}
		fetched, err := a.fetchCache(ctx, arch, workDir)
		if err != nil {
			return nil, err
		}
		if fetched {
			plan.Caches = append(plan.Caches, arch)
		}
	}

	for _, art := range arts {
		key := cachedb.Key(art.arch, art.name)
		n, err := sandbox.CopyFile(workDir, filepath.FromSlash(key), art.src)
		if err != nil {
			return nil, fmt.Errorf("staging %s: %w", art.src, err)
		}
		logger.Info("staged package", "key", key, "bytes", n)
		plan.Staged = append(plan.Staged, key)
	}
	return plan, nil
}

// fetchCache downloads arch's cache database. Only cancellation and local
// write failures are errors; a missing or unreadable remote cache means the
// architecture starts with an empty one.
func (a *Assembler) fetchCache(ctx context.Context, arch channel.Arch, workDir string) (bool, error) {
	key := string(arch) + "/" + cachedb.RelPath
	data, err := a.Store.Get(ctx, key)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return false, ctxErr
	}
	if errors.Is(err, remote.ErrNotFound) {
		a.logger().Info("no existing cache, will create new", "arch", string(arch))
		return false, nil
	}
	if err != nil {
		a.logger().Warn("could not fetch cache, will create new", "arch", string(arch), "error", err)
		return false, nil
	}
	if err := sandbox.WriteFile(workDir, filepath.FromSlash(key), data, 0644); err != nil {
		return false, fmt.Errorf("writing cache for %s: %w", arch, err)
	}
	a.logger().Info("downloaded cache", "arch", string(arch), "bytes", len(data))
	return true, nil
}
