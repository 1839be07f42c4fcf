package engine

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/bianoble/conda-publish/internal/channel"
	"github.com/bianoble/conda-publish/internal/patch"
	"github.com/bianoble/conda-publish/internal/remote"
	"github.com/bianoble/conda-publish/internal/sandbox"
)

// PatchOptions configures a patch.
type PatchOptions struct {
	Package string
	// Subdir overrides the architecture taken from the package path.
	Subdir string

	// RepodataDir holds the current documents in local mode.
	RepodataDir string
	// OutputDir receives the updated documents. In local mode it defaults
	// to RepodataDir; with Fetch it defaults to a temporary directory.
	OutputDir string

	// Fetch downloads the current documents from the channel instead of
	// reading RepodataDir, then uploads the package and the patched
	// documents.
	Fetch  bool
	DryRun bool
}

// Patch merges one package into the channel documents.
func (e *Engine) Patch(ctx context.Context, opts PatchOptions) (*PatchResult, error) {
	patcher := &patch.Patcher{Archs: e.archSet(), Logger: e.logger("patch")}
	if !opts.Fetch {
		req := patch.Request{Artifact: opts.Package, Arch: opts.Subdir, RepodataDir: opts.RepodataDir, OutputDir: opts.OutputDir}
		pres, err := patcher.Patch(ctx, req)
		if err != nil {
			return nil, &StepError{Step: StepPatch, Err: err}
		}
		out := opts.OutputDir
		if out == "" {
			out = opts.RepodataDir
		}
		return &PatchResult{Patch: pres, OutputDir: out}, nil
	}
	return e.patchRemote(ctx, patcher, opts)
}

func (e *Engine) patchRemote(ctx context.Context, patcher *patch.Patcher, opts PatchOptions) (*PatchResult, error) {
	if e.Store == nil {
		return nil, ErrNoChannel
	}
	logger := e.logger("patch")
	arch, err := patcher.ResolveArch(patch.Request{Artifact: opts.Package, Arch: opts.Subdir})
	if err != nil {
		return nil, &StepError{Step: StepPatch, Err: err}
	}

	tmp, _, err := workDir("", false, "conda-patch-*")
	if err != nil {
		return nil, err
	}
	defer cleanup(logger, tmp, false)

	in, err := sandbox.MkdirAll(tmp, "current")
	if err != nil {
		return nil, err
	}
	out := opts.OutputDir
	if out == "" {
		out = filepath.Join(tmp, "channel")
	}
	res := &PatchResult{OutputDir: out}

	for _, key := range []string{string(arch) + "/repodata.json", "channeldata.json"} {
		ok, err := e.fetchDocument(ctx, in, key)
		if err != nil {
			return res, &StepError{Step: StepFetch, Err: err}
		}
		if ok {
			res.Fetched = append(res.Fetched, key)
		}
	}

	res.Patch, err = patcher.Patch(ctx, patch.Request{
		Artifact:    opts.Package,
		Arch:        string(arch),
		RepodataDir: in,
		OutputDir:   out,
	})
	if err != nil {
		return res, &StepError{Step: StepPatch, Err: err}
	}
	if _, err := sandbox.CopyFile(out, filepath.Join(string(arch), res.Patch.Filename), opts.Package); err != nil {
		return res, &StepError{Step: StepPatch, Err: fmt.Errorf("copying package: %w", err)}
	}

	res.Publish, err = e.publisher(opts.DryRun).Publish(ctx, out, []channel.Arch{arch})
	if err != nil {
		return res, &StepError{Step: StepPublish, Err: err}
	}
	if !opts.DryRun {
		e.Metrics.MarkSuccess(e.now())
	}
	return res, nil
}

// fetchDocument downloads key into dir. A missing document is not an error;
// the patch starts a new one.
func (e *Engine) fetchDocument(ctx context.Context, dir, key string) (bool, error) {
	data, err := e.Store.Get(ctx, key)
	if errors.Is(err, remote.ErrNotFound) {
		e.logger("patch").Info("no remote document, starting new", "key", key)
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := sandbox.WriteFile(dir, filepath.FromSlash(key), data, 0644); err != nil {
		return false, err
	}
	return true, nil
}
