package codebase

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	full := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

func TestAnalyze_GroupsByDirectoryAndLanguage(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "api/handler.go", "package api\n\nfunc Handler(w int) {}\n")
	writeFile(t, root, "api/util.go", "package api\n\nfunc helper() {}\n")
	writeFile(t, root, "web/app.ts", "export const x = 1\n")
	writeFile(t, root, "vendor/ignored.go", "package vendor\n")
	writeFile(t, root, ".git/HEAD", "ref: refs/heads/main\n")

	result, err := Analyze(context.Background(), root, nil)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"api/handler.go", "api/util.go"}, result.ByDirectory["api"])
	assert.ElementsMatch(t, []string{"web/app.ts"}, result.ByDirectory["web"])
	assert.NotContains(t, result.ByDirectory, "vendor")
	assert.ElementsMatch(t, []string{"go", "typescript"}, result.Languages)
}

func TestAnalyze_DetectsAPIChangePattern(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "handler.go", `package api

import "net/http"

func Handler(w http.ResponseWriter, r *http.Request) {}
`)

	result, err := Analyze(context.Background(), root, nil)
	require.NoError(t, err)
	require.Len(t, result.Files, 1)
	assert.True(t, result.Files[0].ParseOK)
	assert.Contains(t, result.Files[0].Patterns, PatternAPIChange)
	assert.Equal(t, 1, result.PatternCounts[PatternAPIChange])
}

func TestAnalyze_DetectsConcurrencyFocusPattern(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "worker.go", `package worker

func run() {
	ch := make(chan int)
	go func() { ch <- 1 }()
	<-ch
}
`)

	result, err := Analyze(context.Background(), root, nil)
	require.NoError(t, err)
	require.Len(t, result.Files, 1)
	assert.Contains(t, result.Files[0].Patterns, PatternConcurrencyFocus)
}

func TestAnalyze_ParseFailureIsAdvisoryNotFatal(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "broken.go", "this is not valid go source {{{")

	result, err := Analyze(context.Background(), root, nil)
	require.NoError(t, err)
	require.Len(t, result.Files, 1)
	assert.Empty(t, result.Files[0].Patterns)
}
