package apt

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"

	"github.com/dsnet/compress/bzip2"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
)

// Compression identifies one of the archive-file encodings janitord emits
// side by side for every Packages/Sources file, following apt-repository's
// Compression enum.
type Compression int

const (
	CompressionNone Compression = iota
	CompressionGzip
	CompressionBzip2
)

// Extension returns the file suffix this compression adds.
func (c Compression) Extension() string {
	switch c {
	case CompressionGzip:
		return ".gz"
	case CompressionBzip2:
		return ".bz2"
	default:
		return ""
	}
}

// MimeType returns the MIME type the archive's HTTP front end should
// advertise for a file compressed this way.
func (c Compression) MimeType() string {
	switch c {
	case CompressionGzip:
		return "application/gzip"
	case CompressionBzip2:
		return "application/x-bzip2"
	default:
		return "text/plain"
	}
}

func (c Compression) String() string {
	switch c {
	case CompressionGzip:
		return "gzip"
	case CompressionBzip2:
		return "bzip2"
	default:
		return "none"
	}
}

// AllCompressions are the encodings janitord generates for every archive
// file, matching Compression::all().
var AllCompressions = []Compression{CompressionNone, CompressionGzip, CompressionBzip2}

// finishWriter is implemented by compressors that must be explicitly
// closed to flush their trailer, as opposed to a plain io.Writer passthrough.
type finishWriter interface {
	io.Writer
	Close() error
}

type passthroughWriter struct {
	io.Writer
}

func (passthroughWriter) Close() error { return nil }

func newCompressor(c Compression, w io.Writer) (finishWriter, error) {
	switch c {
	case CompressionNone:
		return passthroughWriter{w}, nil
	case CompressionGzip:
		return gzip.NewWriter(w), nil
	case CompressionBzip2:
		bw, err := bzip2.NewWriter(w, nil)
		if err != nil {
			return nil, fmt.Errorf("creating bzip2 writer: %w", err)
		}
		return bw, nil
	default:
		return nil, fmt.Errorf("apt: unknown compression %d", c)
	}
}

// MultiCompressionWriter fans a single stream out to one compressed output
// per requested Compression, writing to in-memory buffers so the archive
// generator can size and hash each variant independently before committing
// any of them to the artifact store.
type MultiCompressionWriter struct {
	buffers map[Compression]*bytes.Buffer
	writers map[Compression]finishWriter
}

// NewMultiCompressionWriter constructs a writer producing one buffer per
// requested compression.
func NewMultiCompressionWriter(compressions []Compression) (*MultiCompressionWriter, error) {
	m := &MultiCompressionWriter{
		buffers: make(map[Compression]*bytes.Buffer, len(compressions)),
		writers: make(map[Compression]finishWriter, len(compressions)),
	}
	for _, c := range compressions {
		buf := &bytes.Buffer{}
		w, err := newCompressor(c, buf)
		if err != nil {
			return nil, err
		}
		m.buffers[c] = buf
		m.writers[c] = w
	}
	return m, nil
}

// Write feeds p to every configured compressor.
func (m *MultiCompressionWriter) Write(p []byte) (int, error) {
	for c, w := range m.writers {
		if _, err := w.Write(p); err != nil {
			return 0, fmt.Errorf("writing to %s compressor: %w", c, err)
		}
	}
	return len(p), nil
}

// Finish closes every compressor and returns the resulting bytes keyed by
// Compression. Each compressor's Close is called even if an earlier one
// fails, and every error is joined into a single aggregate so a caller
// sees all of them rather than only the first.
func (m *MultiCompressionWriter) Finish() (map[Compression][]byte, error) {
	var errs []error
	for c, w := range m.writers {
		if err := w.Close(); err != nil {
			errs = append(errs, fmt.Errorf("finishing %s compressor: %w", c, err))
		}
	}
	if len(errs) > 0 {
		return nil, utilerrors.NewAggregate(errs)
	}
	out := make(map[Compression][]byte, len(m.buffers))
	for c, buf := range m.buffers {
		out[c] = buf.Bytes()
	}
	return out, nil
}
