package validate

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidator_URL(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		wantErr bool
	}{
		{"valid http", "http://example.com", false},
		{"valid https with port", "https://example.com:8443", false},
		{"with path", "http://example.com/base", false},
		{"empty url", "", true},
		{"no host", "http://", true},
		{"invalid scheme", "ftp://example.com", true},
		{"no scheme", "example.com", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := New()
			v.URL("api.baseURL", tt.value, []string{"http", "https"})
			assert.Equal(t, tt.wantErr, !v.IsValid(), "err: %v", v.Err())
		})
	}
}

func TestValidator_URLPath(t *testing.T) {
	v := New()
	v.URLPath("a", "/api/v1/process")
	assert.True(t, v.IsValid())

	v.URLPath("b", "api/v1/process")
	v.URLPath("c", "/api?x=1")
	require.Len(t, v.Errors(), 2)
	assert.Equal(t, "b", v.Errors()[0].Field)
	assert.Equal(t, "c", v.Errors()[1].Field)
}

func TestValidator_ListenAddr(t *testing.T) {
	tests := []struct {
		addr    string
		wantErr bool
	}{
		{":8000", false},
		{"127.0.0.1:0", false},
		{"[::1]:9090", false},
		{"8000", true},
		{":http", true},
		{":70000", true},
	}
	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			v := New()
			v.ListenAddr("mockServer.listenAddr", tt.addr)
			assert.Equal(t, tt.wantErr, !v.IsValid())
		})
	}
}

func TestValidator_Ranges(t *testing.T) {
	v := New()
	v.Range("r", 5, 1, 10)
	v.FloatRange("f", 0.5, 0, 1)
	v.Duration("d", time.Second, time.Millisecond, time.Minute)
	v.Positive("p", 1)
	require.True(t, v.IsValid(), "unexpected: %v", v.Err())

	v.Range("r", 11, 1, 10)
	v.FloatRange("f", 1.5, 0, 1)
	v.Duration("d", time.Hour, time.Millisecond, time.Minute)
	v.Positive("p", 0)
	assert.Len(t, v.Errors(), 4)
}

func TestValidator_OneOfAndNotEmpty(t *testing.T) {
	v := New()
	v.OneOf("exporter", "grpc", []string{"grpc", "http"})
	v.NotEmpty("field", "video")
	assert.True(t, v.IsValid())

	v.OneOf("exporter", "zipkin", []string{"grpc", "http"})
	v.NotEmpty("field", "   ")
	assert.Len(t, v.Errors(), 2)
}

func TestValidator_Directory(t *testing.T) {
	root := t.TempDir()

	t.Run("creates missing", func(t *testing.T) {
		v := New()
		dir := filepath.Join(root, "data", "nested")
		v.Directory("dataDir", dir, false)
		require.True(t, v.IsValid(), "err: %v", v.Err())
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	})

	t.Run("must exist", func(t *testing.T) {
		v := New()
		v.Directory("dataDir", filepath.Join(root, "absent"), true)
		assert.False(t, v.IsValid())
	})

	t.Run("file is not a directory", func(t *testing.T) {
		f := filepath.Join(root, "file")
		require.NoError(t, os.WriteFile(f, []byte("x"), 0o600))
		v := New()
		v.Directory("dataDir", f, true)
		assert.False(t, v.IsValid())
	})

	t.Run("traversal rejected", func(t *testing.T) {
		v := New()
		v.Directory("dataDir", "../outside", false)
		assert.False(t, v.IsValid())
	})

	t.Run("dots inside a name are fine", func(t *testing.T) {
		v := New()
		v.Directory("dataDir", filepath.Join(root, "v1..2"), false)
		assert.True(t, v.IsValid(), "err: %v", v.Err())
	})
}

func TestValidationError_Format(t *testing.T) {
	v := New()
	assert.NoError(t, v.Err())

	v.AddError("a", "bad", 1)
	assert.EqualError(t, v.Err(), "validation failed for a: bad")

	v.AddError("b", "worse", 2)
	err := v.Err()
	assert.EqualError(t, err, "validation failed for a: bad; validation failed for b: worse")

	var ve ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Len(t, ve.Errors(), 2)
}

func TestParseLogLevel(t *testing.T) {
	lvl, err := ParseLogLevel(" DEBUG ")
	require.NoError(t, err)
	assert.Equal(t, LogLevelDebug, lvl)

	_, err = ParseLogLevel("verbose")
	assert.ErrorIs(t, err, ErrInvalidLogLevel)
}
