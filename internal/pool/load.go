package pool

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/pavelanni/examgen/internal/model"
)

// ErrUnknownTest is returned when a test id has no directory under the questions root.
var ErrUnknownTest = errors.New("unknown test")

// Loader reads pool files laid out as <root>/<test id>/<pool file>.
type Loader struct {
	fsys fs.FS
}

// NewLoader creates a Loader over fsys, whose root holds one directory per test.
func NewLoader(fsys fs.FS) *Loader {
	return &Loader{fsys: fsys}
}

// NewDirLoader creates a Loader over a directory on disk.
func NewDirLoader(dir string) *Loader {
	return NewLoader(os.DirFS(dir))
}

// ListTests returns the names of the visible test directories, sorted.
func (l *Loader) ListTests() ([]string, error) {
	return listVisible(l.fsys, ".", true)
}

// HasTest reports whether testID is one of the visible test directories.
func (l *Loader) HasTest(testID string) (bool, error) {
	tests, err := l.ListTests()
	if err != nil {
		return false, err
	}
	for _, t := range tests {
		if t == testID {
			return true, nil
		}
	}
	return false, nil
}

// Load parses every visible pool file of a test. The returned sources are
// sorted by pool id.
func (l *Loader) Load(testID string) (model.Pools, []model.PoolSource, error) {
	ok, err := l.HasTest(testID)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownTest, testID)
	}

	files, err := listVisible(l.fsys, testID, false)
	if err != nil {
		return nil, nil, fmt.Errorf("list pools of %s: %w", testID, err)
	}

	pools := make(model.Pools, len(files))
	sources := make([]model.PoolSource, 0, len(files))
	for _, name := range files {
		res, hash, err := l.parseFile(path.Join(testID, name))
		if err != nil {
			return nil, nil, err
		}
		pools[name] = res.Questions
		sources = append(sources, model.PoolSource{
			PoolID:       name,
			SHA256:       hash,
			NumQuestions: len(res.Questions),
		})
	}
	return pools, sources, nil
}

func (l *Loader) parseFile(name string) (ParseResult, string, error) {
	data, err := fs.ReadFile(l.fsys, name)
	if err != nil {
		return ParseResult{}, "", fmt.Errorf("read %s: %w", name, err)
	}
	res, err := Parse(bytes.NewReader(data))
	if err != nil {
		return ParseResult{}, "", fmt.Errorf("parse %s: %w", name, err)
	}

	file := path.Base(name)
	for _, q := range res.Questions {
		slog.Debug("found question", "file", file, "text", q)
	}
	if res.Incomplete() {
		slog.Warn("incomplete question at end of file, ignoring it",
			"file", file, "lines", res.DanglingLines)
	}
	slog.Info("parsed pool", "file", file, "questions", len(res.Questions))

	sum := sha256.Sum256(data)
	return res, hex.EncodeToString(sum[:]), nil
}

func listVisible(fsys fs.FS, dir string, wantDirs bool) ([]string, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".") {
			continue
		}
		info, err := fs.Stat(fsys, path.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		if wantDirs && info.IsDir() || !wantDirs && info.Mode().IsRegular() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}
