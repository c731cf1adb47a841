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

func TestBuildThenInspect(t *testing.T) {
	out := filepath.Join(t.TempDir(), "crate.rmesh")

	var stdout bytes.Buffer
	require.NoError(t, run([]string{"build", "-in", filepath.Join("testdata", "crate.yaml"), "-out", out}, &stdout))
	assert.Contains(t, stdout.String(), "2 LODs, 3 draw calls")

	stdout.Reset()
	require.NoError(t, run([]string{"inspect", "-in", out}, &stdout))
	text := stdout.String()
	assert.Contains(t, text, "mesh forced_lod=-1 lods=2")
	assert.Contains(t, text, "LOD:0/Group:decal draw=Dynamic")
	assert.Contains(t, text, "front material=2")
	assert.Equal(t, 2, strings.Count(text, "PolyGroup_0"))
}

func TestBuild_OlderArchiveVersion(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "tool.toml")
	require.NoError(t, os.WriteFile(cfg, []byte("[output]\nversion = 3\n"), 0o644))
	out := filepath.Join(dir, "crate.rmesh")

	var stdout bytes.Buffer
	require.NoError(t, run([]string{"-config", cfg, "build", "-in", filepath.Join("testdata", "crate.yaml"), "-out", out}, &stdout))
	stdout.Reset()
	require.NoError(t, run([]string{"-config", cfg, "inspect", "-in", out}, &stdout))
	assert.Contains(t, stdout.String(), "front material=2")
}

func TestBuild_LODLimit(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "tool.toml")
	require.NoError(t, os.WriteFile(cfg, []byte("[output]\nmax_lods = 1\n"), 0o644))
	err := run([]string{"-config", cfg, "build", "-in", filepath.Join("testdata", "crate.yaml"), "-out", filepath.Join(dir, "x")}, &bytes.Buffer{})
	assert.ErrorContains(t, err, "configured limit is 1")
}

func TestRun_Usage(t *testing.T) {
	assert.Error(t, run(nil, &bytes.Buffer{}))
	assert.ErrorContains(t, run([]string{"explode"}, &bytes.Buffer{}), "unknown command")
	assert.ErrorContains(t, run([]string{"build"}, &bytes.Buffer{}), "-in and -out are required")
	assert.Error(t, run([]string{"inspect", "-in", filepath.Join(t.TempDir(), "missing")}, &bytes.Buffer{}))
}
