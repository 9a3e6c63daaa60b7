package knowledge

import (
	"crypto/sha256"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	gitignore "github.com/sabhiram/go-gitignore"
)

// FallbackCollection receives documents that sit directly in the data dir
// root instead of a collection subdirectory. It is also the planner's
// default search target, so the two must stay in sync.
const FallbackCollection = "course"

// DocumentExtensions are the file types the walker picks up. Document
// loading beyond plain text (PDF, audio) is out of scope; such sources are
// expected to be converted before landing in the data dir.
var DocumentExtensions = map[string]bool{
	".md":  true,
	".txt": true,
	".rst": true,
}

// defaultIgnorePatterns are always skipped, in addition to anything the
// user lists in .sageignore at the data dir root.
var defaultIgnorePatterns = []string{
	".git",
	".DS_Store",
	"node_modules",
	".cache",
}

// Document is one source file discovered under the data directory.
type Document struct {
	Collection string // top-level subdirectory, or FallbackCollection
	Path       string // relative to the data dir
	AbsPath    string
	Hash       string // sha256 of content
	MtimeUnix  int64
	SizeBytes  int64
}

// Walk discovers documents under dataDir. The collection of a document is
// its first path segment; files at the root fall back to
// FallbackCollection. Ignore rules combine defaultIgnorePatterns with an
// optional .sageignore file (gitignore syntax).
func Walk(dataDir string) ([]Document, error) {
	info, err := os.Stat(dataDir)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("data directory does not exist: %s", dataDir)
	}

	matcher := buildIgnoreMatcher(dataDir)

	var docs []Document
	err = filepath.WalkDir(dataDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, relErr := filepath.Rel(dataDir, path)
		if relErr != nil {
			return relErr
		}
		if rel == "." {
			return nil
		}
		if matcher.MatchesPath(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if !DocumentExtensions[strings.ToLower(filepath.Ext(path))] {
			return nil
		}

		fi, err := d.Info()
		if err != nil {
			return err
		}
		hash, err := hashFile(path)
		if err != nil {
			return fmt.Errorf("hash %s: %w", rel, err)
		}

		docs = append(docs, Document{
			Collection: collectionFor(rel),
			Path:       filepath.ToSlash(rel),
			AbsPath:    path,
			Hash:       hash,
			MtimeUnix:  fi.ModTime().Unix(),
			SizeBytes:  fi.Size(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk data directory: %w", err)
	}
	return docs, nil
}

func collectionFor(rel string) string {
	rel = filepath.ToSlash(rel)
	if idx := strings.Index(rel, "/"); idx > 0 {
		return rel[:idx]
	}
	return FallbackCollection
}

func buildIgnoreMatcher(dataDir string) *gitignore.GitIgnore {
	lines := append([]string{}, defaultIgnorePatterns...)
	if data, err := os.ReadFile(filepath.Join(dataDir, ".sageignore")); err == nil {
		lines = append(lines, strings.Split(string(data), "\n")...)
	}
	return gitignore.CompileIgnoreLines(lines...)
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}
