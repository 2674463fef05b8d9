// Package codebase implements the Codebase stage of the Decomposition
// Pipeline (C6): walks the repository, groups files by top-level
// directory, detects languages, and for Go files strengthens pattern
// confidence with a tree-sitter parse.
package codebase

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
)

// IgnorePatterns mirrors lockmgr.DefaultIgnorePatterns, kept as a
// separate copy here since decomposition must not import lockmgr for
// an unrelated concern.
var IgnorePatterns = []string{
	"**/.git/**",
	"**/node_modules/**",
	"**/vendor/**",
	"**/dist/**",
	"**/build/**",
	"**/__pycache__/**",
	"**/target/**",
}

// extensionToLanguage is an extension-to-language map, trimmed to the
// languages the Codebase stage scores.
var extensionToLanguage = map[string]string{
	".go":    "go",
	".ts":    "typescript",
	".tsx":   "typescript",
	".js":    "javascript",
	".jsx":   "javascript",
	".py":    "python",
	".java":  "java",
	".rs":    "rust",
	".rb":    "ruby",
	".svelte": "svelte",
}

// FileLister is the injected capability the Codebase stage walks through;
// a FileListerFunc.ListFiles implementation other than Walk (e.g. a git
// ls-files-backed one) can be substituted in production.
type FileLister interface {
	ListFiles(ctx context.Context, root string) (<-chan string, error)
}

// WalkLister is the default FileLister: os.ReadDir recursion filtered by
// doublestar.Match against IgnorePatterns.
type WalkLister struct{}

// ListFiles walks root breadth-first, emitting every non-ignored regular
// file's absolute path on the returned channel. The channel is closed
// when the walk completes or ctx is cancelled.
func (WalkLister) ListFiles(ctx context.Context, root string) (<-chan string, error) {
	out := make(chan string)
	go func() {
		defer close(out)
		_ = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return nil
			}
			select {
			case <-ctx.Done():
				return filepath.SkipAll
			default:
			}
			rel, relErr := filepath.Rel(root, path)
			if relErr != nil {
				rel = path
			}
			normalized := filepath.ToSlash(rel)
			for _, pattern := range IgnorePatterns {
				if ok, _ := doublestar.Match(pattern, normalized); ok {
					if info.IsDir() {
						return filepath.SkipDir
					}
					return nil
				}
			}
			if info.IsDir() {
				return nil
			}
			select {
			case out <- path:
			case <-ctx.Done():
				return filepath.SkipAll
			}
			return nil
		})
	}()
	return out, nil
}

// Pattern is a trait detected from source content, the same vocabulary
// the Strategy stage emits from task text (decomposition/strategy).
type Pattern string

const (
	PatternConcurrencyFocus Pattern = "concurrency-focus"
	PatternAPIChange        Pattern = "api-change"
)

// FileInfo is one scanned file's summary.
type FileInfo struct {
	Path      string    `json:"path"`
	Dir       string    `json:"dir"`
	Language  string    `json:"language"`
	Patterns  []Pattern `json:"patterns,omitempty"`
	ParseOK   bool      `json:"parse_ok"`
}

// Result is the Codebase stage's output, grouped by top-level directory.
type Result struct {
	Files          []FileInfo          `json:"files"`
	Languages      []string            `json:"languages"`
	ByDirectory    map[string][]string `json:"by_directory"`
	PatternCounts  map[Pattern]int     `json:"pattern_counts"`
}

var (
	handlerFuncRe = regexp.MustCompile(`func\s+\w*Handler\(`)
)

// Analyze walks root via lister and scores each file.
func Analyze(ctx context.Context, root string, lister FileLister) (*Result, error) {
	if lister == nil {
		lister = WalkLister{}
	}
	files, err := lister.ListFiles(ctx, root)
	if err != nil {
		return nil, err
	}

	langSeen := make(map[string]bool)
	byDir := make(map[string][]string)
	counts := make(map[Pattern]int)
	var infos []FileInfo

	for path := range files {
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			rel = path
		}
		rel = filepath.ToSlash(rel)

		ext := strings.ToLower(filepath.Ext(path))
		lang, known := extensionToLanguage[ext]
		if !known {
			continue
		}
		langSeen[lang] = true

		topDir := "."
		if idx := strings.Index(rel, "/"); idx >= 0 {
			topDir = rel[:idx]
		}
		byDir[topDir] = append(byDir[topDir], rel)

		info := FileInfo{Path: rel, Dir: topDir, Language: lang}
		if lang == "go" {
			patterns, ok := scoreGoFile(path)
			info.ParseOK = ok
			info.Patterns = patterns
			for _, p := range patterns {
				counts[p]++
			}
		}
		infos = append(infos, info)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
	}

	var languages []string
	for lang := range langSeen {
		languages = append(languages, lang)
	}

	return &Result{
		Files:         infos,
		Languages:     languages,
		ByDirectory:   byDir,
		PatternCounts: counts,
	}, nil
}

// scoreGoFile parses path with tree-sitter's Go grammar, using the same
// sitter.NewParser/SetLanguage/ParseCtx idiom as a TypeScript parser
// would, adapted here to the Go grammar for advisory pattern boosting
// rather than full entity extraction — go/ast would be the natural
// choice for that, but this stage only needs a confidence signal, and a
// parse failure is never fatal, just unscored.
func scoreGoFile(path string) ([]Pattern, bool) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}

	parser := sitter.NewParser()
	parser.SetLanguage(golang.GetLanguage())
	tree, err := parser.ParseCtx(context.Background(), nil, content)
	if err != nil || tree == nil {
		return nil, false
	}
	defer tree.Close()

	var patterns []Pattern
	if hasGoStatementOrChannel(tree.RootNode(), content) {
		patterns = append(patterns, PatternConcurrencyFocus)
	}
	if handlerFuncRe.Match(content) || strings.Contains(string(content), `"net/http"`) {
		patterns = append(patterns, PatternAPIChange)
	}
	return patterns, true
}

// hasGoStatementOrChannel walks node looking for a go_statement or
// channel-typed expression (send_statement / channel_type).
func hasGoStatementOrChannel(node *sitter.Node, src []byte) bool {
	if node == nil {
		return false
	}
	switch node.Type() {
	case "go_statement", "send_statement", "channel_type":
		return true
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		if hasGoStatementOrChannel(node.Child(i), src) {
			return true
		}
	}
	return false
}
