package render

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pavelanni/examgen/internal/model"
)

// ManifestFile is the name of the allocation manifest inside the output directory.
const ManifestFile = "manifest.yaml"

// Manifest records which questions went into which group file.
type Manifest struct {
	RunID             string          `yaml:"run_id"`
	Test              string          `yaml:"test"`
	Seed              uint64          `yaml:"seed"`
	QuestionsPerGroup int             `yaml:"questions_per_group"`
	Status            model.RunStatus `yaml:"status"`
	CreatedAt         time.Time       `yaml:"created_at"`
	Groups            []ManifestGroup `yaml:"groups"`
}

// ManifestGroup is one group entry of a Manifest.
type ManifestGroup struct {
	Group     int                `yaml:"group"`
	File      string             `yaml:"file"`
	Questions []model.QuestionID `yaml:"questions"`
}

// WriteManifest stores m, filled with the groups written so far, next to the
// group files. It does nothing if no group was written.
func (w *Writer) WriteManifest(m Manifest) error {
	if !w.prepared {
		return nil
	}
	m.Groups = make([]ManifestGroup, 0, len(w.written))
	for _, wg := range w.written {
		m.Groups = append(m.Groups, ManifestGroup{
			Group:     wg.group.ID,
			File:      wg.file,
			Questions: wg.group.QuestionIDs(),
		})
	}

	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	path := filepath.Join(w.dir, ManifestFile)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

// ReadManifest loads the manifest from an output directory.
func ReadManifest(dir string) (Manifest, error) {
	var m Manifest
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		return m, fmt.Errorf("read manifest: %w", err)
	}
	if err := yaml.Unmarshal(data, &m); err != nil {
		return m, fmt.Errorf("parse manifest: %w", err)
	}
	return m, nil
}
