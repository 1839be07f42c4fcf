// Package pkgmeta reads the metadata descriptor (info/index.json) out of
// conda package archives and computes their size and digests.
package pkgmeta

import (
	"archive/tar"
	"archive/zip"
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bianoble/conda-publish/internal/channel"
	"github.com/dsnet/compress/bzip2"
	"github.com/klauspost/compress/zstd"
)

// IndexMember is the archive path of the package descriptor.
const IndexMember = "info/index.json"

// ErrNoDescriptor is returned when an archive has no info/index.json.
var ErrNoDescriptor = errors.New("info/index.json not found")

// MetadataError reports an artifact whose descriptor could not be read.
type MetadataError struct {
	Path string
	Err  error
}

func (e *MetadataError) Error() string {
	return fmt.Sprintf("reading metadata from %s: %v", e.Path, e.Err)
}

func (e *MetadataError) Unwrap() error {
	return e.Err
}

// Digests are the size and content hashes of an artifact file.
type Digests struct {
	Size   int64
	MD5    string
	SHA256 string
}

// Extract returns the artifact's metadata record: its descriptor plus size,
// md5 and sha256.
func Extract(path string) (channel.Record, error) {
	rec, err := ReadDescriptor(path)
	if err != nil {
		return nil, err
	}
	d, err := Digest(path)
	if err != nil {
		return nil, err
	}
	return rec.WithDigests(d.Size, d.MD5, d.SHA256), nil
}

// ReadDescriptor returns the parsed info/index.json of the artifact at path.
func ReadDescriptor(path string) (channel.Record, error) {
	raw, err := ReadDescriptorBytes(path)
	if err != nil {
		return nil, err
	}
	rec, err := channel.DecodeRecord(raw)
	if err != nil {
		return nil, &MetadataError{Path: path, Err: fmt.Errorf("parsing %s: %w", IndexMember, err)}
	}
	return rec, nil
}

// ReadDescriptorBytes returns the raw info/index.json of the artifact at path.
func ReadDescriptorBytes(path string) ([]byte, error) {
	var (
		raw []byte
		err error
	)
	switch channel.FormatOf(filepath.Base(path)) {
	case channel.FormatTarBz2:
		raw, err = readTarBz2(path)
	case channel.FormatConda:
		raw, err = readConda(path)
	default:
		err = fmt.Errorf("unsupported package format")
	}
	if err != nil {
		return nil, &MetadataError{Path: path, Err: err}
	}
	return raw, nil
}

// Digest streams the file once, computing md5 and sha256 together.
func Digest(path string) (Digests, error) {
	f, err := os.Open(path)
	if err != nil {
		return Digests{}, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	m := md5.New()
	s := sha256.New()
	n, err := io.Copy(io.MultiWriter(m, s), f)
	if err != nil {
		return Digests{}, fmt.Errorf("hashing %s: %w", path, err)
	}
	return Digests{
		Size:   n,
		MD5:    hex.EncodeToString(m.Sum(nil)),
		SHA256: hex.EncodeToString(s.Sum(nil)),
	}, nil
}

func readTarBz2(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	zr, err := bzip2.NewReader(f, nil)
	if err != nil {
		return nil, fmt.Errorf("opening bzip2 stream: %w", err)
	}
	defer zr.Close()

	return findInTar(zr)
}

// readConda reads the descriptor from the zstd-compressed info tarball
// stored inside the outer zip container.
func readConda(path string) ([]byte, error) {
	zf, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("opening conda container: %w", err)
	}
	defer zf.Close()

	for _, member := range zf.File {
		if !strings.HasPrefix(member.Name, "info-") || !strings.HasSuffix(member.Name, ".tar.zst") {
			continue
		}
		rc, err := member.Open()
		if err != nil {
			return nil, fmt.Errorf("opening %s: %w", member.Name, err)
		}
		defer rc.Close()

		dec, err := zstd.NewReader(rc)
		if err != nil {
			return nil, fmt.Errorf("opening zstd stream %s: %w", member.Name, err)
		}
		defer dec.Close()

		return findInTar(dec)
	}
	return nil, fmt.Errorf("no info-*.tar.zst member: %w", ErrNoDescriptor)
}

func findInTar(r io.Reader) ([]byte, error) {
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil, ErrNoDescriptor
		}
		if err != nil {
			return nil, fmt.Errorf("reading tar: %w", err)
		}
		if strings.TrimPrefix(hdr.Name, "./") == IndexMember {
			return io.ReadAll(tr)
		}
	}
}
