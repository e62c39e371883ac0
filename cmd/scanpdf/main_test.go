package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font/gofont/goregular"
)

func execute(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func testConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	font := filepath.Join(dir, "goregular.ttf")
	require.NoError(t, os.WriteFile(font, goregular.TTF, 0o600))
	path := filepath.Join(dir, "scanpdf.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"data_dir: "+filepath.Join(dir, "data")+"\nfont_path: "+font+"\nlog_level: error\n",
	), 0o600))
	return path
}

func TestTextCommandFromStdin(t *testing.T) {
	cfg := testConfig(t)
	stdout, _, err := execute(t, "Привіт\nworld", "--config", cfg, "text", "-o", "-")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(stdout, "%PDF-"))
}

func TestTextCommandMarkdownFile(t *testing.T) {
	cfg := testConfig(t)
	dir := t.TempDir()
	in := filepath.Join(dir, "notes.md")
	require.NoError(t, os.WriteFile(in, []byte("# Notes\n\n- one\n- two"), 0o600))
	out := filepath.Join(dir, "notes.pdf")

	_, stderr, err := execute(t, "", "--config", cfg, "text", "--format", "markdown", "-o", out, in)
	require.NoError(t, err)
	assert.FileExists(t, out)
	assert.Contains(t, stderr, "wrote "+out)
}

func TestTextCommandPaperSize(t *testing.T) {
	cfg := testConfig(t)
	t.Setenv("PAPER_SIZE", "letter")

	stdout, _, err := execute(t, "letter page", "--config", cfg, "text", "-o", "-")
	require.NoError(t, err)
	assert.Contains(t, stdout, "[0 0 612 792]")
}

func TestTextCommandUnknownFormat(t *testing.T) {
	cfg := testConfig(t)
	_, _, err := execute(t, "x", "--config", cfg, "text", "--format", "rtf")
	assert.ErrorContains(t, err, "unknown format")
}

func TestImageCommandRequiresFile(t *testing.T) {
	_, _, err := execute(t, "", "image")
	assert.Error(t, err)
}

func TestRunChecks(t *testing.T) {
	var buf bytes.Buffer
	err := runChecks(&buf, []check{
		{name: "good", run: func() (string, error) { return "fine", nil }},
		{name: "bad", run: func() (string, error) { return "", errors.New("missing") }},
	})
	assert.ErrorIs(t, err, errChecksFailed)
	assert.Contains(t, buf.String(), "ok    good")
	assert.Contains(t, buf.String(), "FAIL  bad")
	assert.Contains(t, buf.String(), "missing")

	buf.Reset()
	assert.NoError(t, runChecks(&buf, []check{{name: "good", run: func() (string, error) { return "fine", nil }}}))
}

func TestCheckFont(t *testing.T) {
	_, err := checkFont("")
	assert.Error(t, err)

	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.ttf")
	require.NoError(t, os.WriteFile(bad, []byte("not a font"), 0o600))
	_, err = checkFont(bad)
	assert.Error(t, err)

	good := filepath.Join(dir, "good.ttf")
	require.NoError(t, os.WriteFile(good, goregular.TTF, 0o600))
	got, err := checkFont(good)
	require.NoError(t, err)
	assert.Equal(t, good, got)
}
