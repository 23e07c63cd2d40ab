//go:build cgo

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitCmd_Help(t *testing.T) {
	cmd := findCommand(t, "init")
	assert.NotEmpty(t, cmd.Short)
	assert.Contains(t, strings.ToLower(cmd.Long), "onnx")
	assert.NotNil(t, cmd.Flags().Lookup("force"))
	assert.NotNil(t, cmd.Flags().Lookup("onnx-version"))
}

func TestInitCmd_AlreadyInstalled(t *testing.T) {
	libPath := filepath.Join(t.TempDir(), "libonnxruntime.so")
	require.NoError(t, os.WriteFile(libPath, []byte("fake lib"), 0o644))
	t.Setenv("ONNX_PATH", libPath)

	cmd := findCommand(t, "init")
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)

	require.NoError(t, cmd.RunE(cmd, nil))
	assert.Contains(t, out.String(), "already installed at: "+libPath)
}
