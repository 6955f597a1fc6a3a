package apt

import (
	"bytes"
	"compress/gzip"
	"io"
	"testing"

	"github.com/dsnet/compress/bzip2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtensionsAndMimeTypes(t *testing.T) {
	assert.Equal(t, "", CompressionNone.Extension())
	assert.Equal(t, ".gz", CompressionGzip.Extension())
	assert.Equal(t, ".bz2", CompressionBzip2.Extension())

	assert.Equal(t, "text/plain", CompressionNone.MimeType())
	assert.Equal(t, "application/gzip", CompressionGzip.MimeType())
	assert.Equal(t, "application/x-bzip2", CompressionBzip2.MimeType())
}

func TestMultiCompressionWriterProducesDecodableOutput(t *testing.T) {
	w, err := NewMultiCompressionWriter(AllCompressions)
	require.NoError(t, err)

	payload := []byte("Package: foo\nVersion: 1.0\n\n")
	_, err = w.Write(payload)
	require.NoError(t, err)

	out, err := w.Finish()
	require.NoError(t, err)

	assert.Equal(t, payload, out[CompressionNone])

	gz, err := gzip.NewReader(bytes.NewReader(out[CompressionGzip]))
	require.NoError(t, err)
	gzData, err := io.ReadAll(gz)
	require.NoError(t, err)
	assert.Equal(t, payload, gzData)

	bz, err := bzip2.NewReader(bytes.NewReader(out[CompressionBzip2]), nil)
	require.NoError(t, err)
	bzData, err := io.ReadAll(bz)
	require.NoError(t, err)
	assert.Equal(t, payload, bzData)
}
