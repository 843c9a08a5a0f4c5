package normalize

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeStructured(t *testing.T) {
	payload := map[string]any{"hits": 3.0}
	got, err := Normalize(payload, FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	got, err = Normalize(`{"hits": 3}`, FormatStructured)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"hits": 3.0}, got)

	_, err = Normalize("not json at all", FormatJSON)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed structured text")

	_, err = Normalize(42, FormatJSON)
	require.Error(t, err)
}

func TestNormalizeText(t *testing.T) {
	got, err := Normalize("hello", FormatText)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"content": "hello", "format": "text"}, got)

	got, err = Normalize([]byte("raw bytes"), FormatText)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"content": "raw bytes", "format": "text"}, got)
}

func TestNormalizeBinary(t *testing.T) {
	got, err := Normalize([]byte{0x01, 0x02}, FormatBinary)
	require.NoError(t, err)
	envelope, ok := got.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte{0x01, 0x02}), envelope["data"])
	assert.Equal(t, "base64", envelope["encoding"])
	assert.Equal(t, "binary", envelope["format"])

	// A valid base64 string passes through without double-encoding.
	encoded := base64.StdEncoding.EncodeToString([]byte("payload"))
	got, err = Normalize(encoded, FormatBinary)
	require.NoError(t, err)
	envelope = got.(map[string]any)
	assert.Equal(t, encoded, envelope["data"])
}

func TestNormalizeRaw(t *testing.T) {
	got, err := Normalize(42, FormatRaw)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"raw": 42, "format": "raw"}, got)
}

func TestNormalizeAuto(t *testing.T) {
	payload := map[string]any{"k": "v"}
	got, err := Normalize(payload, FormatAuto)
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	got, err = Normalize(`{"k": "v"}`, FormatAuto)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"k": "v"}, got)

	got, err = Normalize([]byte{0xff, 0xfe}, FormatAuto)
	require.NoError(t, err)
	envelope := got.(map[string]any)
	assert.Equal(t, "binary", envelope["format"])

	got, err = Normalize(3.14, FormatAuto)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"raw": 3.14, "format": "raw"}, got)
}

func TestNormalizeUnknownFormat(t *testing.T) {
	_, err := Normalize("x", Format("xml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	assert.True(t, Validate(map[string]any{"key": "value"}))
	assert.True(t, Validate(map[string]any{"content": "x", "format": "text"}))
	assert.True(t, Validate(map[string]any{"data": "x", "format": "binary"}))
	// A known format key alone is a well-formed envelope shape.
	assert.True(t, Validate(map[string]any{"format": "text"}))
	assert.False(t, Validate(map[string]any{}))
	assert.False(t, Validate(map[string]any{"content": "x", "format": "xml"}))
	assert.False(t, Validate("not a map"))
	assert.False(t, Validate(nil))
}

func TestExtractContent(t *testing.T) {
	assert.Equal(t, "body", ExtractContent(map[string]any{"content": "body", "format": "text"}))
	assert.Equal(t, 7, ExtractContent(map[string]any{"value": 7}))
	assert.Equal(t, "x", ExtractContent(map[string]any{"raw": "x"}))

	// content wins over lower-priority keys.
	assert.Equal(t, "first", ExtractContent(map[string]any{"content": "first", "raw": "last"}))

	// No known key: the envelope itself comes back.
	envelope := map[string]any{"unrelated": true}
	assert.Equal(t, envelope, ExtractContent(envelope))
	assert.Equal(t, "scalar", ExtractContent("scalar"))
}
