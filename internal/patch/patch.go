// Package patch merges a single artifact into existing channel documents
// without a full rebuild. Only the artifact's own repodata entry and its
// package's channeldata summary change; the cache database is not used.
package patch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/bianoble/conda-publish/internal/channel"
	"github.com/bianoble/conda-publish/internal/pkgmeta"
)

// Request names the artifact to merge and where the documents live.
type Request struct {
	Artifact string
	// Arch overrides the architecture taken from the artifact's parent
	// directory.
	Arch string
	// RepodataDir holds the current {arch}/repodata.json and
	// channeldata.json. Missing documents start empty.
	RepodataDir string
	// OutputDir receives the updated documents. Empty means RepodataDir.
	OutputDir string
}

// Result describes a completed patch.
type Result struct {
	Arch     channel.Arch
	Filename string
	Record   channel.Record
	// Replaced is true when the filename was already listed.
	Replaced bool
	// NewRepodata and NewChanneldata report documents created from scratch.
	NewRepodata    bool
	NewChanneldata bool

	Packages      int
	PackagesConda int
	ChannelNames  int
	Subdirs       []string

	// Written lists the output files, relative to OutputDir.
	Written []string
}

// Patcher applies Requests.
type Patcher struct {
	Archs  *channel.ArchSet
	Logger *slog.Logger
}

func (p *Patcher) logger() *slog.Logger {
	if p.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return p.Logger
}

// ResolveArch returns the architecture req targets: the explicit Arch, or
// else the artifact's parent directory name.
func (p *Patcher) ResolveArch(req Request) (channel.Arch, error) {
	archs := p.Archs
	if archs == nil {
		archs = channel.DefaultArchSet()
	}
	if req.Arch != "" {
		return archs.Parse(req.Arch)
	}
	arch, err := archs.ArchOfPath(req.Artifact)
	if err != nil {
		return "", fmt.Errorf("could not detect architecture from %s, pass it explicitly: %w", req.Artifact, err)
	}
	return arch, nil
}

// Patch merges req.Artifact into the documents and writes the results.
func (p *Patcher) Patch(ctx context.Context, req Request) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := os.Stat(req.Artifact); err != nil {
		return nil, fmt.Errorf("package not found: %w", err)
	}
	filename := filepath.Base(req.Artifact)
	if !channel.IsArtifact(filename) {
		return nil, fmt.Errorf("%s is not a .tar.bz2 or .conda package", filename)
	}
	arch, err := p.ResolveArch(req)
	if err != nil {
		return nil, err
	}
	out := req.OutputDir
	if out == "" {
		out = req.RepodataDir
	}
	logger := p.logger().With("arch", string(arch), "package", filename)

	rec, err := pkgmeta.Extract(req.Artifact)
	if err != nil {
		return nil, err
	}

	rd, foundRD, err := channel.LoadRepodata(filepath.Join(req.RepodataDir, string(arch), "repodata.json"), arch)
	if err != nil {
		return nil, err
	}
	cd, foundCD, err := channel.LoadChanneldata(filepath.Join(req.RepodataDir, "channeldata.json"))
	if err != nil {
		return nil, err
	}
	if !foundRD {
		logger.Info("creating new repodata")
	}
	if !foundCD {
		logger.Info("creating new channeldata")
	}

	_, replaced := rd.Get(filename)
	if err := rd.Put(filename, rec); err != nil {
		return nil, err
	}
	if !cd.Merge(rec, arch) {
		logger.Warn("package name not found in metadata, channeldata packages unchanged")
	}

	res := &Result{
		Arch:           arch,
		Filename:       filename,
		Record:         rec,
		Replaced:       replaced,
		NewRepodata:    !foundRD,
		NewChanneldata: !foundCD,
		Packages:       len(rd.Packages),
		PackagesConda:  len(rd.PackagesConda),
		ChannelNames:   len(cd.Packages),
		Subdirs:        append([]string(nil), cd.Subdirs...),
	}

	for _, name := range []string{"repodata.json", "repodata_from_packages.json"} {
		rel := filepath.Join(string(arch), name)
		if err := channel.WriteJSON(filepath.Join(out, rel), rd); err != nil {
			return nil, err
		}
		res.Written = append(res.Written, filepath.ToSlash(rel))
	}
	if err := channel.WriteJSON(filepath.Join(out, "channeldata.json"), cd); err != nil {
		return nil, err
	}
	res.Written = append(res.Written, "channeldata.json")

	logger.Info("patched index", "replaced", replaced, "packages", res.Packages, "packages_conda", res.PackagesConda)
	return res, nil
}
