package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa/internal/config"
	"docqa/internal/domain"
)

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "ask", "ingest", "delete", "version"} {
		assert.True(t, names[want], "missing command %s", want)
	}
}

func TestVersionCommand(t *testing.T) {
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs([]string{"version"})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, buf.String(), "docqa version")
}

func TestAskRequiresCollection(t *testing.T) {
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs([]string{"ask"})
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		askCollection = ""
	})

	err := rootCmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--collection")
}

func TestNewEmbedder(t *testing.T) {
	emb, err := newEmbedder(config.EmbedderConfig{Type: "hashing", Hashing: &config.HashingEmbedderConfig{Dimension: 64}})
	require.NoError(t, err)
	assert.NotEmpty(t, emb.Name())

	_, err = newEmbedder(config.EmbedderConfig{Type: "openai"})
	assert.Error(t, err)

	_, err = newEmbedder(config.EmbedderConfig{Type: "bogus"})
	assert.Error(t, err)
}

func TestNewRerankerNoneIsNil(t *testing.T) {
	r, err := newReranker(config.RerankerConfig{Type: "none"})
	require.NoError(t, err)
	assert.Nil(t, r)

	_, err = newReranker(config.RerankerConfig{Type: "bogus"})
	assert.Error(t, err)
}

func TestDeleteRequiresCollection(t *testing.T) {
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs([]string{"delete"})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	err := rootCmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--collection")
}

func TestIngestReportsFailingPath(t *testing.T) {
	dir := t.TempDir()
	cfgFile := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgFile, []byte(`
log:
  level: error
embedder:
  type: hashing
vector_store:
  type: memory
reranker:
  type: none
generator:
  type: openai
`), 0o644))
	missing := filepath.Join(dir, "missing.pdf")

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs([]string{"ingest", "--config", cfgFile, missing})
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		cfgPath = ""
	})

	err := rootCmd.Execute()
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUnsupportedDocument)
	assert.Contains(t, err.Error(), missing+": ")
}
