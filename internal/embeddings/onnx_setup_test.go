//go:build cgo

package embeddings

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetPlatformArchive(t *testing.T) {
	tests := []struct {
		goos   string
		goarch string
		want   string
	}{
		{"linux", "amd64", "linux-x64"},
		{"linux", "arm64", "linux-aarch64"},
		{"darwin", "amd64", "osx-x86_64"},
		{"darwin", "arm64", "osx-arm64"},
	}

	for _, tt := range tests {
		t.Run(tt.goos+"/"+tt.goarch, func(t *testing.T) {
			got, err := getPlatformArchive(tt.goos, tt.goarch)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGetPlatformArchive_Unsupported(t *testing.T) {
	_, err := getPlatformArchive("windows", "amd64")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported platform")
}

func TestGetLibraryName(t *testing.T) {
	tests := []struct {
		goos string
		want string
	}{
		{"linux", "libonnxruntime.so"},
		{"darwin", "libonnxruntime.dylib"},
	}

	for _, tt := range tests {
		t.Run(tt.goos, func(t *testing.T) {
			got := getLibraryName(tt.goos)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCurrentPlatformSupported(t *testing.T) {
	// Current platform should be supported (linux or darwin)
	if runtime.GOOS == "linux" || runtime.GOOS == "darwin" {
		_, err := getPlatformArchive(runtime.GOOS, runtime.GOARCH)
		assert.NoError(t, err)
	}
}

func TestBuildDownloadURL(t *testing.T) {
	assert.Equal(t,
		"https://github.com/microsoft/onnxruntime/releases/download/v1.23.0/onnxruntime-linux-x64-1.23.0.tgz",
		buildDownloadURL("1.23.0", "linux-x64"))
}

func TestExtractTarGz(t *testing.T) {
	if _, err := getPlatformArchive(runtime.GOOS, runtime.GOARCH); err != nil {
		t.Skip("unsupported platform")
	}
	libName := getLibraryName(runtime.GOOS)
	prefix := "onnxruntime-linux-x64-1.23.0/"

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	files := map[string]string{
		prefix + "lib/" + libName + ".1.23.0": "binary",
		prefix + "include/header.h":           "skip me",
	}
	for name, body := range files {
		require.NoError(t, tw.WriteHeader(&tar.Header{Name: name, Mode: 0o644, Size: int64(len(body)), Typeflag: tar.TypeReg}))
		_, err := tw.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, tw.WriteHeader(&tar.Header{
		Name:     "./" + prefix + "lib/" + libName,
		Linkname: libName + ".1.23.0",
		Typeflag: tar.TypeSymlink,
	}))
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())

	dest := t.TempDir()
	require.NoError(t, extractTarGz(&buf, dest, "1.23.0", "linux-x64"))

	data, err := os.ReadFile(filepath.Join(dest, libName))
	require.NoError(t, err)
	assert.Equal(t, "binary", string(data))
	_, err = os.Stat(filepath.Join(dest, "header.h"))
	assert.True(t, os.IsNotExist(err))
}

func TestExtractTarGz_MissingLibrary(t *testing.T) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())

	err := extractTarGz(&buf, t.TempDir(), "1.23.0", "linux-x64")
	assert.ErrorContains(t, err, "not found in archive")
}

func TestEnsureONNXRuntime_UsesEnvPath(t *testing.T) {
	t.Setenv("ONNX_PATH", "/opt/onnx/libonnxruntime.so")

	var exported string
	orig := setONNXPathEnv
	setONNXPathEnv = func(path string) error {
		exported = path
		return nil
	}
	t.Cleanup(func() { setONNXPathEnv = orig })

	path, err := EnsureONNXRuntime(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "/opt/onnx/libonnxruntime.so", path)
	assert.Equal(t, path, exported)
}
