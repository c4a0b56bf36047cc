package ingest

// streaming.go wraps upload bodies for the Reader:
//
//   - Decompress: picks a decompressor from the file name suffix
//   - CountingReader: tracks bytes read for progress reporting
//
// Byte order marks are handled by the Reader itself. No character set
// conversion happens anywhere: columns are opaque bytes.

import (
	"compress/gzip"
	"fmt"
	"io"
	"strings"
	"sync/atomic"

	"github.com/dustin/go-humanize"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

// Compression identifies a supported compression format.
type Compression string

const (
	CompressionNone Compression = ""
	CompressionGzip Compression = "gzip"
	CompressionZstd Compression = "zstd"
	CompressionXZ   Compression = "xz"
)

var compressionSuffixes = []struct {
	suffix string
	kind   Compression
}{
	{".gz", CompressionGzip},
	{".gzip", CompressionGzip},
	{".zst", CompressionZstd},
	{".zstd", CompressionZstd},
	{".xz", CompressionXZ},
}

// DetectCompression returns the compression implied by name and the name
// without its compression suffix.
func DetectCompression(name string) (Compression, string) {
	lower := strings.ToLower(name)
	for _, s := range compressionSuffixes {
		if strings.HasSuffix(lower, s.suffix) {
			return s.kind, name[:len(name)-len(s.suffix)]
		}
	}
	return CompressionNone, name
}

// Decompress wraps r with the decompressor implied by name. The returned
// name has the compression suffix removed so the caller can infer the file
// format from it. Close releases decoder resources; it does not close r.
func Decompress(name string, r io.Reader) (io.ReadCloser, string, error) {
	kind, base := DetectCompression(name)
	switch kind {
	case CompressionGzip:
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, "", fmt.Errorf("failed to create gzip reader: %w", err)
		}
		return gz, base, nil

	case CompressionXZ:
		xr, err := xz.NewReader(r)
		if err != nil {
			return nil, "", fmt.Errorf("failed to create xz reader: %w", err)
		}
		return io.NopCloser(xr), base, nil

	case CompressionZstd:
		decoder, err := zstd.NewReader(r)
		if err != nil {
			return nil, "", fmt.Errorf("failed to create zstd reader: %w", err)
		}
		return decoder.IOReadCloser(), base, nil

	default:
		return io.NopCloser(r), base, nil
	}
}

// CountingReader wraps an io.Reader to track bytes read. The count may be
// read from other goroutines while a load is running.
type CountingReader struct {
	reader io.Reader
	read   atomic.Int64
	total  int64 // 0 if unknown
}

// NewCountingReader creates a counting reader with an optional total size.
func NewCountingReader(r io.Reader, total int64) *CountingReader {
	return &CountingReader{reader: r, total: total}
}

// Read implements io.Reader.
func (r *CountingReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	r.read.Add(int64(n))
	return n, err
}

// BytesRead returns the number of bytes read so far.
func (r *CountingReader) BytesRead() int64 { return r.read.Load() }

// Total returns the expected size, or 0 if unknown.
func (r *CountingReader) Total() int64 { return r.total }

// Progress returns the read progress as a percentage (0-100).
// Returns 0 if total is unknown.
func (r *CountingReader) Progress() int {
	if r.total <= 0 {
		return 0
	}
	pct := int(r.read.Load() * 100 / r.total)
	if pct > 100 {
		pct = 100
	}
	return pct
}

// String reports progress in human-readable units, e.g. "1.5 MiB of 3.0 MiB".
func (r *CountingReader) String() string {
	read := humanize.IBytes(uint64(r.read.Load()))
	if r.total <= 0 {
		return read
	}
	return fmt.Sprintf("%s of %s", read, humanize.IBytes(uint64(r.total)))
}
