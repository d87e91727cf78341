package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Brownie44l1/plant-disease-api/internal/conf"
	"github.com/Brownie44l1/plant-disease-api/internal/errors"
)

func TestFlagsOverrideConfig(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("server:\n  port: 8080\nmodel:\n  path: from-file.onnx\n"), 0o600))

	cmd := &cobra.Command{Use: "test"}
	v := conf.New()
	var configFile string
	setupFlags(cmd, v, &configFile)

	require.NoError(t, cmd.ParseFlags([]string{
		"--config", cfgPath,
		"--port", "9000",
		"--classes", "labels.json",
		"--upload-dir", "/tmp/leaves",
		"--debug",
	}))

	s, err := conf.Load(v, configFile)
	require.NoError(t, err)
	assert.Equal(t, 9000, s.Server.Port)
	assert.Equal(t, "from-file.onnx", s.Model.Path)
	assert.Equal(t, "labels.json", s.Model.ClassIndices)
	assert.Equal(t, "/tmp/leaves", s.Upload.Dir)
	assert.True(t, s.Debug)
}

func TestPredictRequiresOneImage(t *testing.T) {
	cmd := newRootCommand()
	cmd.SetArgs([]string{"predict"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})

	require.Error(t, cmd.Execute())
}

func TestPredictFailsWithoutClassCatalog(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()

	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{
		"predict", filepath.Join(dir, "leaf.jpg"),
		"--classes", filepath.Join(dir, "missing.json"),
		"--model", filepath.Join(dir, "missing.onnx"),
	})

	err := cmd.Execute()
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryLabelLoad))
	assert.Empty(t, out.String())
}

func TestServeRejectsInvalidConfig(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("PLANTDOC_MODEL_IMAGESIZE", "0")

	cmd := newRootCommand()
	cmd.SetArgs([]string{"serve"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})

	err := cmd.Execute()
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}
