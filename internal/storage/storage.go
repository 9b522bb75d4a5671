// Package storage manages the on-disk artifacts of pipeline runs.
//
// Layout under the storage root:
//
//	<root>/uploads   images received from callers
//	<root>/plots     rendered bpm plots
//	<root>/results   JSON results written by the inbox watcher
//
// Every invocation gets an id, and artifact names are derived from it so
// concurrent runs never write the same file. Writes go to a temporary file
// in the target directory and are renamed into place.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrStorage wraps every filesystem failure of this package.
var ErrStorage = errors.New("storage error")

// Plot naming schemes.
const (
	// NamingUnique writes plots/<id>.png.
	NamingUnique = "unique"
	// NamingFixed always writes plots/ctg_plot.png. Concurrent runs
	// overwrite each other.
	NamingFixed = "fixed"
)

const fixedPlotName = "ctg_plot.png"

// Store resolves and writes artifact paths below a root directory.
type Store struct {
	root    string
	uploads string
	plots   string
	results string
	naming  string
	logger  zerolog.Logger
}

// New creates the directory layout under root.
func New(root, naming string, logger zerolog.Logger) (*Store, error) {
	switch naming {
	case "":
		naming = NamingUnique
	case NamingUnique, NamingFixed:
	default:
		return nil, fmt.Errorf("unknown plot naming %q", naming)
	}

	s := &Store{
		root:    root,
		uploads: filepath.Join(root, "uploads"),
		plots:   filepath.Join(root, "plots"),
		results: filepath.Join(root, "results"),
		naming:  naming,
		logger:  logger,
	}
	for _, dir := range []string{s.uploads, s.plots, s.results} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("%w: create %s: %v", ErrStorage, dir, err)
		}
	}
	return s, nil
}

// Root returns the storage root.
func (s *Store) Root() string { return s.root }

// NewID returns a fresh invocation id.
func NewID() string {
	return uuid.NewString()
}

// Sanitize reduces a caller-supplied file name to a safe base name.
// Directory components are dropped and characters outside [A-Za-z0-9._-]
// become underscores.
func Sanitize(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))

	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}

	out := strings.TrimLeft(b.String(), ".")
	if len(out) > 128 {
		out = out[len(out)-128:]
	}
	if out == "" || out == "_" {
		return "upload"
	}
	return out
}

// SaveUpload stores data as uploads/<id>_<sanitized name> and returns the path.
func (s *Store) SaveUpload(id, filename string, data []byte) (string, error) {
	path := filepath.Join(s.uploads, id+"_"+Sanitize(filename))
	err := WriteAtomic(path, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
	if err != nil {
		return "", err
	}
	s.logger.Debug().Str("path", path).Int("bytes", len(data)).Msg("upload saved")
	return path, nil
}

// PlotPath returns where the plot of invocation id is written.
func (s *Store) PlotPath(id string) string {
	if s.naming == NamingFixed {
		return filepath.Join(s.plots, fixedPlotName)
	}
	return filepath.Join(s.plots, id+".png")
}

// ResultPath returns where the JSON result of invocation id is written.
func (s *Store) ResultPath(id string) string {
	return filepath.Join(s.results, id+".json")
}

// WriteResult writes v as indented JSON to ResultPath(id).
func (s *Store) WriteResult(id string, v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("%w: encode result: %v", ErrStorage, err)
	}
	path := s.ResultPath(id)
	err = WriteAtomic(path, func(w io.Writer) error {
		_, err := w.Write(append(data, '\n'))
		return err
	})
	if err != nil {
		return "", err
	}
	return path, nil
}

// WriteAtomic writes a file through a temporary sibling and renames it into
// place, so readers never observe a partial file.
func WriteAtomic(path string, write func(io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-"+filepath.Base(path)+"-*")
	if err != nil {
		return fmt.Errorf("%w: create temp file: %v", ErrStorage, err)
	}
	tmpPath := tmp.Name()

	if err := write(tmp); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("%w: write %s: %v", ErrStorage, path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: close %s: %v", ErrStorage, path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: rename into %s: %v", ErrStorage, path, err)
	}
	return nil
}
