package render

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/pavelanni/examgen/internal/model"
)

// TransitionMarker separates a question number from its text in generated files.
const TransitionMarker = "/t"

// FileName returns the output file name of a group, e.g. "K1G3.txt".
func FileName(testID string, groupID int) string {
	return fmt.Sprintf("%sG%d.txt", testID, groupID)
}

// Render writes one group: the header line, then every question as
// "*<n>", the transition marker and the verbatim question text.
func Render(w io.Writer, header string, g model.Group) error {
	bw := bufio.NewWriter(w)
	if _, err := fmt.Fprintf(bw, "%s\n", header); err != nil {
		return err
	}
	for i, q := range g.Questions {
		if _, err := fmt.Fprintf(bw, "*%d\n%s\n%s\n", i+1, TransitionMarker, q.Text); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Exists reports whether the file or directory at dir is present.
func Exists(dir string) (bool, error) {
	_, err := os.Stat(dir)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// HeaderFunc builds the header line of a group file.
type HeaderFunc func(testID string, groupID int) string

// Writer writes one file per group into its directory. The directory is
// removed and recreated right before the first group is written, so runs that
// fail before producing a group leave existing output untouched.
type Writer struct {
	dir    string
	testID string
	header HeaderFunc

	prepared bool
	written  []writtenGroup
}

type writtenGroup struct {
	file  string
	group model.Group
}

// NewWriter creates a Writer for the groups of testID under dir.
func NewWriter(dir, testID string, header HeaderFunc) *Writer {
	return &Writer{dir: dir, testID: testID, header: header}
}

// Dir returns the output directory.
func (w *Writer) Dir() string { return w.dir }

// Files returns the paths written so far, in group order.
func (w *Writer) Files() []string {
	files := make([]string, len(w.written))
	for i, wg := range w.written {
		files[i] = filepath.Join(w.dir, wg.file)
	}
	return files
}

// WriteGroup writes the file of one group.
func (w *Writer) WriteGroup(g model.Group) error {
	if !w.prepared {
		if err := os.RemoveAll(w.dir); err != nil {
			return fmt.Errorf("remove %s: %w", w.dir, err)
		}
		if err := os.MkdirAll(w.dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", w.dir, err)
		}
		w.prepared = true
	}

	name := FileName(w.testID, g.ID)
	path := filepath.Join(w.dir, name)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := Render(f, w.header(w.testID, g.ID), g); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}

	w.written = append(w.written, writtenGroup{file: name, group: g})
	slog.Info("generated test", "file", name, "group", g.ID)
	return nil
}
