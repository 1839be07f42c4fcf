package sandbox

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"
)

func realRoot(t *testing.T, root string) string {
	t.Helper()
	r, err := filepath.EvalSymlinks(root)
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func TestResolveWithinRoot(t *testing.T) {
	root := t.TempDir()

	resolved, err := Resolve(root, "linux-64/.cache/cache.db")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if want := filepath.Join(realRoot(t, root), "linux-64", ".cache", "cache.db"); resolved != want {
		t.Errorf("got %q, want %q", resolved, want)
	}

	if resolved, err := Resolve(root, "."); err != nil || resolved != realRoot(t, root) {
		t.Errorf("Resolve(.) = %q, %v", resolved, err)
	}
}

func TestResolveRejectsEscapes(t *testing.T) {
	root := t.TempDir()
	for _, rel := range []string{"../escape.json", "noarch/../../escape.json", "/etc/../../escape"} {
		_, err := Resolve(root, rel)
		var escape *EscapeError
		if !errors.As(err, &escape) {
			t.Errorf("Resolve(%q) err = %v, want *EscapeError", rel, err)
		}
	}
}

func TestResolveSymlinks(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlink test not reliable on Windows")
	}
	root := t.TempDir()
	outside := t.TempDir()

	if err := os.Symlink(outside, filepath.Join(root, "linux-64")); err != nil {
		t.Fatal(err)
	}
	var escape *EscapeError
	if _, err := Resolve(root, "linux-64/foo-1.0-0.conda"); !errors.As(err, &escape) {
		t.Errorf("symlink escape err = %v, want *EscapeError", err)
	}

	if err := os.MkdirAll(filepath.Join(root, "real"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(filepath.Join(root, "real"), filepath.Join(root, "noarch")); err != nil {
		t.Fatal(err)
	}
	resolved, err := Resolve(root, "noarch/repodata.json")
	if err != nil {
		t.Fatalf("internal symlink rejected: %v", err)
	}
	if want := filepath.Join(realRoot(t, root), "real", "repodata.json"); resolved != want {
		t.Errorf("got %q, want %q", resolved, want)
	}
}

func TestWriteFile(t *testing.T) {
	root := t.TempDir()

	if err := WriteFile(root, "osx-64/repodata.json", []byte("{}\n"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := WriteFile(root, "osx-64/repodata.json", []byte("{\"x\":1}\n"), 0600); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(realRoot(t, root), "osx-64", "repodata.json")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "{\"x\":1}\n" {
		t.Errorf("content = %q", data)
	}
	if runtime.GOOS != "windows" {
		info, _ := os.Stat(path)
		if info.Mode().Perm() != 0600 {
			t.Errorf("perm = %o, want 600", info.Mode().Perm())
		}
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("leftover temp files: %v", entries)
	}

	if err := WriteFile(root, "../escape.json", []byte("bad"), 0644); err == nil {
		t.Error("expected error for escape")
	}
}

func TestCopyFilePreservesMtime(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(t.TempDir(), "foo-1.0.0-0.tar.bz2")
	if err := os.WriteFile(src, []byte("package bytes"), 0644); err != nil {
		t.Fatal(err)
	}
	mtime := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	if err := os.Chtimes(src, mtime, mtime); err != nil {
		t.Fatal(err)
	}

	n, err := CopyFile(root, "linux-64/foo-1.0.0-0.tar.bz2", src)
	if err != nil {
		t.Fatalf("CopyFile: %v", err)
	}
	if n != int64(len("package bytes")) {
		t.Errorf("copied %d bytes", n)
	}

	info, err := os.Stat(filepath.Join(root, "linux-64", "foo-1.0.0-0.tar.bz2"))
	if err != nil {
		t.Fatal(err)
	}
	if !info.ModTime().Equal(mtime) {
		t.Errorf("mtime = %v, want %v", info.ModTime(), mtime)
	}

	if _, err := CopyFile(root, "linux-64/missing", filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected error for missing source")
	}
}

func TestRemoveMatching(t *testing.T) {
	root := t.TempDir()
	for _, f := range []string{
		"linux-64/repodata.json",
		"linux-64/repodata_from_packages.json",
		"linux-64/index.html",
		"linux-64/foo-1.0-0.conda",
		"linux-64/.cache/cache.db",
		"linux-64/.cache/notes.json",
	} {
		if err := WriteFile(root, f, []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	removed, err := RemoveMatching(root, "linux-64", "*.json", "*.html")
	if err != nil {
		t.Fatalf("RemoveMatching: %v", err)
	}
	want := []string{"index.html", "repodata.json", "repodata_from_packages.json"}
	if len(removed) != len(want) {
		t.Fatalf("removed = %v, want %v", removed, want)
	}
	for i := range want {
		if removed[i] != want[i] {
			t.Errorf("removed[%d] = %s, want %s", i, removed[i], want[i])
		}
	}
	for _, keep := range []string{"linux-64/foo-1.0-0.conda", "linux-64/.cache/cache.db", "linux-64/.cache/notes.json"} {
		if _, err := os.Stat(filepath.Join(root, keep)); err != nil {
			t.Errorf("%s should remain: %v", keep, err)
		}
	}

	if removed, err := RemoveMatching(root, "win-64", "*.json"); err != nil || removed != nil {
		t.Errorf("missing dir = %v, %v", removed, err)
	}
	if _, err := RemoveMatching(root, "../", "*.json"); err == nil {
		t.Error("expected error for escape")
	}
}

func TestRemoveAndMkdirAll(t *testing.T) {
	root := t.TempDir()

	dir, err := MkdirAll(root, "noarch/.cache")
	if err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Fatalf("directory missing: %v", err)
	}
	if _, err := MkdirAll(root, "../outside"); err == nil {
		t.Error("expected error for escape")
	}

	if err := WriteFile(root, "noarch/index.html", []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := Remove(root, "noarch/index.html"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := Remove(root, "noarch/index.html"); !os.IsNotExist(err) {
		t.Errorf("second remove err = %v, want not exist", err)
	}
	if err := Remove(root, "../escape"); err == nil {
		t.Error("expected error for escape")
	}
}
