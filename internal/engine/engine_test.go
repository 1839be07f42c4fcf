package engine

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bianoble/conda-publish/internal/channel"
	"github.com/bianoble/conda-publish/internal/clock"
	"github.com/bianoble/conda-publish/internal/config"
	"github.com/bianoble/conda-publish/internal/ghactions"
	"github.com/bianoble/conda-publish/internal/ghactions/ghactionstest"
	"github.com/bianoble/conda-publish/internal/indexer"
	"github.com/bianoble/conda-publish/internal/lock"
	"github.com/bianoble/conda-publish/internal/metrics"
	"github.com/bianoble/conda-publish/internal/pkgmeta/pkgmetatest"
	"github.com/bianoble/conda-publish/internal/publish"
	"github.com/bianoble/conda-publish/internal/remote"
	"github.com/bianoble/conda-publish/internal/remote/remotetest"
	"github.com/bianoble/conda-publish/internal/staging"
)

func newTestEngine(t *testing.T) (*Engine, *remotetest.Server) {
	t.Helper()
	srv := remotetest.NewServer(t)
	store, err := remote.NewHTTPStore(srv.URL(), "", nil)
	if err != nil {
		t.Fatal(err)
	}
	archs := channel.DefaultArchSet()
	return &Engine{
		Store:   store,
		Archs:   archs,
		Indexer: &indexer.Builtin{Archs: archs, Title: "test channel"},
		Metrics: metrics.New(),
	}, srv
}

func packagesDir(t *testing.T, files map[string]map[string]any) string {
	t.Helper()
	dir := t.TempDir()
	for rel, desc := range files {
		pkgmetatest.WritePackage(t, filepath.Join(dir, filepath.Dir(rel)), filepath.Base(rel), desc)
	}
	return dir
}

func remoteRepodata(t *testing.T, srv *remotetest.Server, arch string) *channel.Repodata {
	t.Helper()
	data, ok := srv.File(arch + "/repodata.json")
	if !ok {
		t.Fatalf("%s/repodata.json not uploaded", arch)
	}
	rd := &channel.Repodata{}
	if err := json.Unmarshal(data, rd); err != nil {
		t.Fatalf("decoding %s/repodata.json: %v", arch, err)
	}
	return rd
}

func remoteChanneldata(t *testing.T, srv *remotetest.Server) *channel.Channeldata {
	t.Helper()
	data, ok := srv.File("channeldata.json")
	if !ok {
		t.Fatal("channeldata.json not uploaded")
	}
	cd := &channel.Channeldata{}
	if err := json.Unmarshal(data, cd); err != nil {
		t.Fatalf("decoding channeldata.json: %v", err)
	}
	return cd
}

func TestRebuildFirstPublish(t *testing.T) {
	e, srv := newTestEngine(t)
	pkgs := packagesDir(t, map[string]map[string]any{
		"linux-64/foo-1.0.0-0.tar.bz2": pkgmetatest.Descriptor("foo", "1.0.0", "linux-64"),
	})

	res, err := e.Rebuild(context.Background(), RebuildOptions{PackagesDir: pkgs})
	if err != nil {
		t.Fatalf("Rebuild: %v", err)
	}

	if len(res.Plan.Archs) != 1 || res.Plan.Archs[0] != channel.Linux64 {
		t.Errorf("archs = %v, want linux-64", res.Plan.Archs)
	}
	puts := srv.Puts()
	want := []string{
		"linux-64/foo-1.0.0-0.tar.bz2",
		"linux-64/repodata.json",
		"linux-64/repodata_from_packages.json",
		"linux-64/index.html",
		"linux-64/.cache/cache.db",
		"channeldata.json",
		"index.html",
	}
	if strings.Join(puts, "\n") != strings.Join(want, "\n") {
		t.Errorf("uploads:\n%s\nwant:\n%s", strings.Join(puts, "\n"), strings.Join(want, "\n"))
	}

	if _, ok := remoteRepodata(t, srv, "linux-64").Get("foo-1.0.0-0.tar.bz2"); !ok {
		t.Error("foo missing from published repodata")
	}
	cd := remoteChanneldata(t, srv)
	if p := cd.Packages["foo"]; p == nil || p.Version != "1.0.0" {
		t.Errorf("channeldata foo = %+v", p)
	}

	if _, err := os.Stat(res.WorkDir); !os.IsNotExist(err) {
		t.Errorf("work dir %s not removed", res.WorkDir)
	}
}

func TestRebuildKeepsPreviouslyPublished(t *testing.T) {
	e, srv := newTestEngine(t)
	ctx := context.Background()

	first := packagesDir(t, map[string]map[string]any{
		"linux-64/foo-1.0.0-0.tar.bz2": pkgmetatest.Descriptor("foo", "1.0.0", "linux-64"),
	})
	if _, err := e.Rebuild(ctx, RebuildOptions{PackagesDir: first}); err != nil {
		t.Fatalf("first rebuild: %v", err)
	}

	second := packagesDir(t, map[string]map[string]any{
		"noarch/bar-2.0-0.conda": pkgmetatest.Descriptor("bar", "2.0", "noarch"),
	})
	res, err := e.Rebuild(ctx, RebuildOptions{PackagesDir: second})
	if err != nil {
		t.Fatalf("second rebuild: %v", err)
	}

	if len(res.Plan.RemoteArchs) != 1 || res.Plan.RemoteArchs[0] != channel.Linux64 {
		t.Errorf("remote archs = %v, want linux-64", res.Plan.RemoteArchs)
	}
	if len(res.Plan.Caches) != 1 {
		t.Errorf("caches = %v, want linux-64 cache downloaded", res.Plan.Caches)
	}
	if _, ok := remoteRepodata(t, srv, "linux-64").Get("foo-1.0.0-0.tar.bz2"); !ok {
		t.Error("previously published package dropped from linux-64")
	}
	if _, ok := remoteRepodata(t, srv, "noarch").Get("bar-2.0-0.conda"); !ok {
		t.Error("bar missing from noarch")
	}
	cd := remoteChanneldata(t, srv)
	if cd.Packages["foo"] == nil || cd.Packages["bar"] == nil {
		t.Errorf("channeldata packages = %v", cd.PackageNames())
	}
}

func TestRebuildOmitsEmptyArchFromSubdirs(t *testing.T) {
	e, srv := newTestEngine(t)
	srv.SetFile("osx-64/repodata.json", []byte(`{"info": {"subdir": "osx-64"}, "packages": {}, "packages.conda": {}, "removed": [], "repodata_version": 1}`))
	pkgs := packagesDir(t, map[string]map[string]any{
		"linux-64/foo-1.0.0-0.tar.bz2": pkgmetatest.Descriptor("foo", "1.0.0", "linux-64"),
	})

	res, err := e.Rebuild(context.Background(), RebuildOptions{PackagesDir: pkgs})
	if err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	if len(res.Plan.Archs) != 2 {
		t.Errorf("archs = %v, want linux-64 and osx-64", res.Plan.Archs)
	}
	cd := remoteChanneldata(t, srv)
	if strings.Join(cd.Subdirs, ",") != "linux-64" {
		t.Errorf("subdirs = %v, want [linux-64]", cd.Subdirs)
	}
	if p := cd.Packages["foo"]; p == nil || strings.Join(p.Subdirs, ",") != "linux-64" {
		t.Errorf("channeldata foo = %+v", p)
	}
}

func TestRebuildDryRun(t *testing.T) {
	e, srv := newTestEngine(t)
	pkgs := packagesDir(t, map[string]map[string]any{
		"osx-arm64/foo-1.0.0-0.conda": pkgmetatest.Descriptor("foo", "1.0.0", "osx-arm64"),
	})

	res, err := e.Rebuild(context.Background(), RebuildOptions{PackagesDir: pkgs, DryRun: true})
	if err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	if !res.Publish.DryRun || len(res.Publish.Items) == 0 {
		t.Errorf("publish = %+v", res.Publish)
	}
	if n := len(srv.Puts()); n != 0 {
		t.Errorf("dry run uploaded %d files", n)
	}
}

func TestRebuildExplicitWorkDirIsKept(t *testing.T) {
	e, _ := newTestEngine(t)
	pkgs := packagesDir(t, map[string]map[string]any{
		"win-64/foo-1.0.0-0.conda": pkgmetatest.Descriptor("foo", "1.0.0", "win-64"),
	})
	work := filepath.Join(t.TempDir(), "work")

	res, err := e.Rebuild(context.Background(), RebuildOptions{PackagesDir: pkgs, WorkDir: work})
	if err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	if !res.KeptWork || res.WorkDir != work {
		t.Errorf("result = %+v", res)
	}
	if _, err := os.Stat(filepath.Join(work, "win-64", "repodata.json")); err != nil {
		t.Errorf("work tree not kept: %v", err)
	}
}

func TestRebuildKeepWorkDir(t *testing.T) {
	e, _ := newTestEngine(t)
	pkgs := packagesDir(t, map[string]map[string]any{
		"noarch/foo-1.0.0-0.conda": pkgmetatest.Descriptor("foo", "1.0.0", "noarch"),
	})

	res, err := e.Rebuild(context.Background(), RebuildOptions{PackagesDir: pkgs, KeepWorkDir: true})
	if err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(res.WorkDir) })
	if !strings.HasPrefix(filepath.Base(res.WorkDir), "conda-index-") {
		t.Errorf("work dir = %s", res.WorkDir)
	}
	if _, err := os.Stat(res.WorkDir); err != nil {
		t.Errorf("work dir removed: %v", err)
	}
}

func TestRebuildNoPackages(t *testing.T) {
	e, srv := newTestEngine(t)

	_, err := e.Rebuild(context.Background(), RebuildOptions{PackagesDir: t.TempDir()})
	var inErr *staging.InputError
	if !errors.As(err, &inErr) {
		t.Fatalf("err = %v, want *staging.InputError", err)
	}
	if len(srv.Requests()) != 0 {
		t.Error("requests made without packages")
	}
}

func TestRebuildUnknownArchitecture(t *testing.T) {
	e, srv := newTestEngine(t)
	pkgs := packagesDir(t, map[string]map[string]any{
		"linux-ppc64le/foo-1.0.0-0.conda": pkgmetatest.Descriptor("foo", "1.0.0", "linux-ppc64le"),
	})

	res, err := e.Rebuild(context.Background(), RebuildOptions{PackagesDir: pkgs})
	var step *StepError
	if !errors.As(err, &step) || step.Step != StepStage {
		t.Fatalf("err = %v, want stage StepError", err)
	}
	var inErr *staging.InputError
	if !errors.As(err, &inErr) {
		t.Errorf("err = %v, want *staging.InputError inside", err)
	}
	if _, statErr := os.Stat(res.WorkDir); !os.IsNotExist(statErr) {
		t.Error("work dir not removed after failure")
	}
	if len(srv.Puts()) != 0 {
		t.Error("uploads after staging failure")
	}
}

func TestRebuildUploadFailure(t *testing.T) {
	e, srv := newTestEngine(t)
	srv.FailPut("linux-64/repodata.json", http.StatusInternalServerError)
	pkgs := packagesDir(t, map[string]map[string]any{
		"linux-64/foo-1.0.0-0.tar.bz2": pkgmetatest.Descriptor("foo", "1.0.0", "linux-64"),
	})

	res, err := e.Rebuild(context.Background(), RebuildOptions{PackagesDir: pkgs})
	var upErr *publish.UploadError
	if !errors.As(err, &upErr) || upErr.Key != "linux-64/repodata.json" {
		t.Fatalf("err = %v, want UploadError", err)
	}
	var step *StepError
	if !errors.As(err, &step) || step.Step != StepPublish {
		t.Errorf("step = %v", err)
	}
	if _, statErr := os.Stat(res.WorkDir); !os.IsNotExist(statErr) {
		t.Error("work dir not removed after failure")
	}
}

func TestRebuildWritesMetrics(t *testing.T) {
	e, _ := newTestEngine(t)
	fixed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	e.Clock = clock.NewFake(fixed)
	pkgs := packagesDir(t, map[string]map[string]any{
		"linux-64/foo-1.0.0-0.tar.bz2": pkgmetatest.Descriptor("foo", "1.0.0", "linux-64"),
	})
	if _, err := e.Rebuild(context.Background(), RebuildOptions{PackagesDir: pkgs}); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "conda_publish.prom")
	if err := e.Metrics.WriteTextfile(path); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		`conda_publish_packages_staged 1`,
		`conda_publish_uploads_total{kind="package"} 1`,
		`conda_publish_cache_rows_reset 1`,
		`conda_publish_reconcile_pass_duration_seconds_count{pass="3"} 1`,
	} {
		if !strings.Contains(string(data), want) {
			t.Errorf("metrics missing %q:\n%s", want, data)
		}
	}
}

func TestRebuildWithoutChannel(t *testing.T) {
	e := &Engine{}
	if _, err := e.Rebuild(context.Background(), RebuildOptions{PackagesDir: t.TempDir()}); !errors.Is(err, ErrNoChannel) {
		t.Errorf("err = %v, want ErrNoChannel", err)
	}
}

const publishedRepodata = `{
  "info": {"subdir": "linux-64"},
  "packages": {
    "other-0.1-0.tar.bz2": {"name": "other", "version": "0.1", "build": "0", "build_number": 0, "depends": [], "md5": "m", "sha256": "s", "size": 12}
  },
  "packages.conda": {},
  "removed": [],
  "repodata_version": 1
}
`

func TestPatchFetchPublishes(t *testing.T) {
	e, srv := newTestEngine(t)
	srv.SetFile("linux-64/repodata.json", []byte(publishedRepodata))
	artifact := pkgmetatest.WritePackage(t, filepath.Join(t.TempDir(), "linux-64"), "foo-1.0.0-0.tar.bz2", pkgmetatest.Descriptor("foo", "1.0.0", "linux-64"))

	res, err := e.Patch(context.Background(), PatchOptions{Package: artifact, Fetch: true})
	if err != nil {
		t.Fatalf("Patch: %v", err)
	}
	if len(res.Fetched) != 1 || res.Fetched[0] != "linux-64/repodata.json" {
		t.Errorf("fetched = %v", res.Fetched)
	}
	if !res.Patch.NewChanneldata || res.Patch.NewRepodata {
		t.Errorf("patch = %+v", res.Patch)
	}

	want := []string{
		"linux-64/foo-1.0.0-0.tar.bz2",
		"linux-64/repodata.json",
		"linux-64/repodata_from_packages.json",
		"channeldata.json",
	}
	if got := srv.Puts(); strings.Join(got, "\n") != strings.Join(want, "\n") {
		t.Errorf("uploads = %v, want %v", got, want)
	}
	rd := remoteRepodata(t, srv, "linux-64")
	for _, f := range []string{"other-0.1-0.tar.bz2", "foo-1.0.0-0.tar.bz2"} {
		if _, ok := rd.Get(f); !ok {
			t.Errorf("%s missing from patched repodata", f)
		}
	}
	if _, err := os.Stat(res.OutputDir); !os.IsNotExist(err) {
		t.Error("temporary output not removed")
	}
}

func TestPatchFetchSequence(t *testing.T) {
	e, srv := newTestEngine(t)
	pkgs := filepath.Join(t.TempDir(), "linux-64")
	ctx := context.Background()

	first := pkgmetatest.WritePackage(t, pkgs, "foo-1.0.0-0.tar.bz2", pkgmetatest.Descriptor("foo", "1.0.0", "linux-64"))
	res, err := e.Patch(ctx, PatchOptions{Package: first, Fetch: true})
	if err != nil {
		t.Fatalf("first Patch: %v", err)
	}
	if len(res.Fetched) != 0 {
		t.Errorf("fetched from empty channel = %v", res.Fetched)
	}

	second := pkgmetatest.WritePackage(t, pkgs, "foo-0.9.0-0.tar.bz2", pkgmetatest.Descriptor("foo", "0.9.0", "linux-64"))
	res, err = e.Patch(ctx, PatchOptions{Package: second, Fetch: true})
	if err != nil {
		t.Fatalf("second Patch: %v", err)
	}
	if len(res.Fetched) != 2 {
		t.Errorf("fetched = %v, want repodata and channeldata", res.Fetched)
	}

	rd := remoteRepodata(t, srv, "linux-64")
	for _, f := range []string{"foo-1.0.0-0.tar.bz2", "foo-0.9.0-0.tar.bz2"} {
		if _, ok := rd.Get(f); !ok {
			t.Errorf("%s missing from repodata", f)
		}
	}
	foo := remoteChanneldata(t, srv).Packages["foo"]
	if foo == nil || foo.Version != "1.0.0" {
		t.Errorf("channeldata foo = %+v, want version 1.0.0 kept", foo)
	}
}

func TestPatchFetchDryRun(t *testing.T) {
	e, srv := newTestEngine(t)
	artifact := pkgmetatest.WritePackage(t, t.TempDir(), "foo-1.0.0-0.conda", pkgmetatest.Descriptor("foo", "1.0.0", "noarch"))
	out := t.TempDir()

	res, err := e.Patch(context.Background(), PatchOptions{Package: artifact, Subdir: "noarch", OutputDir: out, Fetch: true, DryRun: true})
	if err != nil {
		t.Fatalf("Patch: %v", err)
	}
	if len(srv.Puts()) != 0 {
		t.Error("dry run uploaded files")
	}
	if len(res.Publish.Items) != 4 {
		t.Errorf("planned uploads = %+v", res.Publish.Items)
	}
	if _, err := os.Stat(filepath.Join(out, "noarch", "foo-1.0.0-0.conda")); err != nil {
		t.Errorf("package not copied to output: %v", err)
	}
}

func TestPatchLocal(t *testing.T) {
	e := &Engine{}
	artifact := pkgmetatest.WritePackage(t, filepath.Join(t.TempDir(), "osx-64"), "foo-1.0.0-0.tar.bz2", pkgmetatest.Descriptor("foo", "1.0.0", "osx-64"))
	dir := t.TempDir()

	res, err := e.Patch(context.Background(), PatchOptions{Package: artifact, RepodataDir: dir})
	if err != nil {
		t.Fatalf("Patch: %v", err)
	}
	if res.OutputDir != dir || res.Publish != nil {
		t.Errorf("result = %+v", res)
	}
	if _, err := os.Stat(filepath.Join(dir, "osx-64", "repodata.json")); err != nil {
		t.Error(err)
	}
}

func TestPatchFetchError(t *testing.T) {
	e, srv := newTestEngine(t)
	srv.FailGet("channeldata.json", http.StatusForbidden)
	artifact := pkgmetatest.WritePackage(t, filepath.Join(t.TempDir(), "linux-64"), "foo-1.0.0-0.conda", pkgmetatest.Descriptor("foo", "1.0.0", "linux-64"))

	_, err := e.Patch(context.Background(), PatchOptions{Package: artifact, Fetch: true})
	var step *StepError
	if !errors.As(err, &step) || step.Step != StepFetch {
		t.Fatalf("err = %v, want fetch StepError", err)
	}
	if len(srv.Puts()) != 0 {
		t.Error("uploads after fetch failure")
	}
}

var testDescriptor = lock.Descriptor{
	ResourceURL:        "https://nexus.example.org/repository/conda",
	ResourceCredential: "deploy:secret",
	ArtifactName:       "conda-packages",
	CallerRunID:        "42",
	CallerRepo:         "ecmwf/eccodes",
}

func newLockEngine(t *testing.T) (*Engine, *ghactionstest.Server) {
	t.Helper()
	clk := clock.NewFake(time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC))
	srv := ghactionstest.NewServer(t, clk.Now)
	client, err := ghactions.NewClient(ghactions.Config{BaseURL: srv.URL(), Token: "ghp_test"})
	if err != nil {
		t.Fatal(err)
	}
	return &Engine{
		Lock:         &lock.WorkflowCoordinator{Actions: client, Clock: clk},
		Metrics:      metrics.New(),
		LockRepo:     lock.DefaultRepo,
		LockWorkflow: lock.DefaultWorkflow,
	}, srv
}

func TestAcquireWritesReceipt(t *testing.T) {
	e, srv := newLockEngine(t)
	srv.Script(ghactionstest.InProgress, ghactionstest.Success)
	path := filepath.Join(t.TempDir(), "lock.yaml")

	res, err := e.Acquire(context.Background(), AcquireOptions{Descriptor: testDescriptor, ReceiptPath: path})
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if res.Outcome != "succeeded" || res.ReceiptPath != path {
		t.Errorf("result = %+v", res)
	}
	r, err := lock.LoadReceipt(path)
	if err != nil {
		t.Fatalf("LoadReceipt: %v", err)
	}
	if r.RunID != res.Token.RunID || r.State != lock.StateSucceeded || r.Workflow != lock.DefaultWorkflow {
		t.Errorf("receipt = %+v", r)
	}
}

func TestAcquireDeniedStillWritesReceipt(t *testing.T) {
	e, srv := newLockEngine(t)
	srv.Script(ghactionstest.Failure)
	path := filepath.Join(t.TempDir(), "lock.yaml")

	res, err := e.Acquire(context.Background(), AcquireOptions{Descriptor: testDescriptor, ReceiptPath: path})
	if !errors.Is(err, lock.ErrDenied) {
		t.Fatalf("err = %v, want ErrDenied", err)
	}
	if res.Outcome != "failed" {
		t.Errorf("outcome = %q", res.Outcome)
	}
	r, err := lock.LoadReceipt(path)
	if err != nil {
		t.Fatal(err)
	}
	if r.State != lock.StateFailed || r.Conclusion != "failure" {
		t.Errorf("receipt = %+v", r)
	}
}

func TestAcquireWithoutCoordinator(t *testing.T) {
	if _, err := (&Engine{}).Acquire(context.Background(), AcquireOptions{Descriptor: testDescriptor}); !errors.Is(err, ErrNoLock) {
		t.Errorf("err = %v, want ErrNoLock", err)
	}
}

func TestOutcome(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "succeeded"},
		{lock.ErrDenied, "failed"},
		{lock.ErrTimeout, "timed_out"},
		{lock.ErrNotDiscovered, "not_discovered"},
		{lock.ErrDispatch, "dispatch_failed"},
		{context.Canceled, "cancelled"},
		{errors.New("boom"), "error"},
	}
	for _, tt := range tests {
		if got := Outcome(tt.err); got != tt.want {
			t.Errorf("Outcome(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestDiscover(t *testing.T) {
	e, srv := newTestEngine(t)
	srv.SetFile("noarch/repodata.json", []byte("{}"))
	srv.SetFile("osx-64/repodata.json", []byte("{}"))

	archs, err := e.Discover(context.Background())
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(archs) != 2 || archs[0] != channel.NoArch || archs[1] != channel.OSX64 {
		t.Errorf("archs = %v, want [noarch osx-64]", archs)
	}
}

func TestOpen(t *testing.T) {
	cfg := config.Default()
	cfg.Channel.URL = "file://" + filepath.ToSlash(t.TempDir())
	e, err := Open(context.Background(), cfg, Credentials{GitHub: "ghp_x"}, nil, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer e.Close()
	if e.Store == nil || e.Lock == nil {
		t.Errorf("engine = %+v", e)
	}
	if _, ok := e.Indexer.(*indexer.Builtin); !ok {
		t.Errorf("indexer = %T, want builtin", e.Indexer)
	}

	cfg.Channel.URL = ""
	cfg.Indexer = config.Indexer{Type: config.IndexerCondaIndex, Python: "python3"}
	e, err = Open(context.Background(), cfg, Credentials{}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if e.Store != nil || e.Lock != nil {
		t.Errorf("engine = %+v, want no store and no lock", e)
	}
	if _, ok := e.Indexer.(*indexer.CondaIndex); !ok {
		t.Errorf("indexer = %T, want conda-index", e.Indexer)
	}
}
