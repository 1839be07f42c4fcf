// Package pkgmetatest builds small conda package archives for tests.
package pkgmetatest

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/dsnet/compress/bzip2"
	"github.com/klauspost/compress/zstd"
)

// Descriptor returns a minimal info/index.json for name/version/subdir.
func Descriptor(name, version, subdir string) map[string]any {
	return map[string]any{
		"name":         name,
		"version":      version,
		"build":        "0",
		"build_number": 0,
		"subdir":       subdir,
		"depends":      []string{},
		"timestamp":    int64(1700000000000),
	}
}

// WritePackage writes an archive at dir/filename holding descriptor as
// info/index.json. The format follows the filename extension. It returns
// the full path.
func WritePackage(t testing.TB, dir, filename string, descriptor map[string]any) string {
	t.Helper()

	index, err := json.Marshal(descriptor)
	if err != nil {
		t.Fatalf("marshal descriptor: %v", err)
	}
	path := filepath.Join(dir, filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}

	var data []byte
	switch {
	case strings.HasSuffix(filename, ".tar.bz2"):
		data = tarBz2(t, index)
	case strings.HasSuffix(filename, ".conda"):
		data = conda(t, strings.TrimSuffix(filename, ".conda"), index)
	default:
		t.Fatalf("unsupported package filename %q", filename)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

// WriteRaw writes a .tar.bz2 archive with arbitrary members, for malformed
// package cases.
func WriteRaw(t testing.TB, path string, members map[string][]byte) {
	t.Helper()
	var buf bytes.Buffer
	zw, err := bzip2.NewWriter(&buf, nil)
	if err != nil {
		t.Fatal(err)
	}
	writeTar(t, zw, members)
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}
}

func tarBz2(t testing.TB, index []byte) []byte {
	var buf bytes.Buffer
	zw, err := bzip2.NewWriter(&buf, nil)
	if err != nil {
		t.Fatal(err)
	}
	writeTar(t, zw, map[string][]byte{
		"info/index.json": index,
		"lib/payload.txt": []byte("payload\n"),
	})
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func conda(t testing.TB, stem string, index []byte) []byte {
	var info bytes.Buffer
	enc, err := zstd.NewWriter(&info)
	if err != nil {
		t.Fatal(err)
	}
	writeTar(t, enc, map[string][]byte{"info/index.json": index})
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	zw := zip.NewWriter(&out)
	members := []struct {
		name string
		data []byte
	}{
		{"metadata.json", []byte(`{"conda_pkg_format_version": 2}`)},
		{"pkg-" + stem + ".tar.zst", nil},
		{"info-" + stem + ".tar.zst", info.Bytes()},
	}
	for _, m := range members {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: m.name, Method: zip.Store, Modified: fixedTime})
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write(m.data); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return out.Bytes()
}

var fixedTime = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func writeTar(t testing.TB, w io.Writer, members map[string][]byte) {
	names := make([]string, 0, len(members))
	for n := range members {
		names = append(names, n)
	}
	sort.Strings(names)

	tw := tar.NewWriter(w)
	for _, n := range names {
		hdr := &tar.Header{Name: n, Mode: 0644, Size: int64(len(members[n])), ModTime: fixedTime}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatal(err)
		}
		if _, err := tw.Write(members[n]); err != nil {
			t.Fatal(err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
}
