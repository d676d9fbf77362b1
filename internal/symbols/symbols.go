// Package symbols provides best-effort lexical lookup of identifier
// definitions within a project tree. It is not a semantic resolver; each
// supported language contributes a Strategy that recognizes definition
// shapes with regular expressions and extracts the full code block.
package symbols

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hashicorp/go-hclog"
)

// Definition is one candidate definition of a symbol found on disk.
type Definition struct {
	Symbol    string `json:"symbol"`
	FilePath  string `json:"file_path"`
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
	Language  string `json:"language"`
	Text      string `json:"text"`
}

// Strategy extracts a definition block for one language.
type Strategy interface {
	// Language returns the human-readable language name.
	Language() string
	// Extensions returns the file extensions this strategy handles, with dot.
	Extensions() []string
	// Extract searches content for a definition of symbol and returns the
	// extracted block with its 1-based line range. ok is false on no match.
	Extract(content, symbol string) (text string, startLine, endLine int, ok bool)
}

// Index searches project trees for symbol definitions using the registered
// strategies. It is read-only and safe for concurrent use.
type Index struct {
	logger         hclog.Logger
	strategies     map[string]Strategy
	fileSizeLimitB int64
}

// NewIndex builds an Index with the Go and Python strategies registered.
// fileSizeLimitMB bounds how much of any single file is read.
func NewIndex(logger hclog.Logger, fileSizeLimitMB int) *Index {
	index := &Index{
		logger:         logger,
		strategies:     make(map[string]Strategy),
		fileSizeLimitB: int64(fileSizeLimitMB) * 1024 * 1024,
	}
	index.Register(GoStrategy{})
	index.Register(PythonStrategy{})
	return index
}

// Register adds a language strategy, keyed by its file extensions.
func (i *Index) Register(s Strategy) {
	for _, ext := range s.Extensions() {
		i.strategies[ext] = s
	}
}

// Resolve walks projectRoot for definitions of symbol and returns the
// candidates ordered by confidence: non-test files rank above test files,
// ties broken by path. An empty result is a normal outcome, not an error.
func (i *Index) Resolve(symbol, projectRoot string) []Definition {
	var found []Definition

	walkErr := filepath.WalkDir(projectRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			i.logger.Debug("skipping unreadable path", "path", path, "err", err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if d.Name() == ".git" || d.Name() == "tmp_audit_data" {
				return filepath.SkipDir
			}
			return nil
		}

		strategy, ok := i.strategies[filepath.Ext(d.Name())]
		if !ok {
			return nil
		}

		content, err := i.readFileContent(path)
		if err != nil {
			i.logger.Debug("failed to read candidate file", "path", path, "err", err)
			return nil
		}

		text, startLine, endLine, ok := strategy.Extract(content, symbol)
		if !ok {
			return nil
		}

		relPath, relErr := filepath.Rel(projectRoot, path)
		if relErr != nil {
			relPath = path
		}
		found = append(found, Definition{
			Symbol:    symbol,
			FilePath:  relPath,
			StartLine: startLine,
			EndLine:   endLine,
			Language:  strategy.Language(),
			Text:      text,
		})
		return nil
	})
	if walkErr != nil {
		i.logger.Debug("symbol walk aborted", "symbol", symbol, "err", walkErr)
	}

	sort.SliceStable(found, func(a, b int) bool {
		aTest, bTest := isTestFile(found[a].FilePath), isTestFile(found[b].FilePath)
		if aTest != bTest {
			return !aTest
		}
		return found[a].FilePath < found[b].FilePath
	})

	return found
}

// readFileContent reads a file, truncating it at the configured size limit
// with an explicit marker so the reasoning engine knows the text is partial.
func (i *Index) readFileContent(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}

	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	if info.Size() > i.fileSizeLimitB {
		i.logger.Warn("file too large, truncating", "path", path, "size", info.Size())
		limited := make([]byte, i.fileSizeLimitB)
		n, err := io.ReadFull(file, limited)
		if err != nil && err != io.ErrUnexpectedEOF {
			return "", err
		}
		return string(limited[:n]) + "\n[WARNING: file too large, truncated]\n", nil
	}

	content, err := io.ReadAll(file)
	if err != nil {
		return "", err
	}
	return string(content), nil
}

func isTestFile(path string) bool {
	base := filepath.Base(path)
	return strings.HasSuffix(base, "_test.go") ||
		strings.HasPrefix(base, "test_") ||
		strings.HasSuffix(strings.TrimSuffix(base, filepath.Ext(base)), "_test")
}

// LanguageForExtension reports the language name a registered strategy claims
// for ext, or an error for unsupported extensions.
func (i *Index) LanguageForExtension(ext string) (string, error) {
	if s, ok := i.strategies[ext]; ok {
		return s.Language(), nil
	}
	return "", fmt.Errorf("no symbol strategy for extension %q", ext)
}
