package storage

import (
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func newStore(t *testing.T, naming string) *Store {
	t.Helper()
	s, err := New(t.TempDir(), naming, zerolog.Nop())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return s
}

func TestNew_CreatesLayout(t *testing.T) {
	s := newStore(t, "")

	for _, dir := range []string{"uploads", "plots", "results"} {
		info, err := os.Stat(filepath.Join(s.Root(), dir))
		if err != nil || !info.IsDir() {
			t.Errorf("%s directory missing: %v", dir, err)
		}
	}
}

func TestNew_UnknownNaming(t *testing.T) {
	if _, err := New(t.TempDir(), "random", zerolog.Nop()); err == nil {
		t.Error("expected error for unknown naming")
	}
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"strip.png", "strip.png"},
		{"../../etc/passwd", "passwd"},
		{`C:\scans\ctg 01.jpg`, "ctg_01.jpg"},
		{".hidden", "hidden"},
		{"", "upload"},
		{"/", "upload"},
		{"tracé.png", "trac_.png"},
	}

	for _, tt := range tests {
		if got := Sanitize(tt.in); got != tt.want {
			t.Errorf("Sanitize(%q): got %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSanitize_Length(t *testing.T) {
	got := Sanitize(strings.Repeat("a", 300) + ".png")
	if len(got) != 128 || !strings.HasSuffix(got, ".png") {
		t.Errorf("long names should keep their tail, got %d chars %q", len(got), got[len(got)-8:])
	}
}

func TestSaveUpload(t *testing.T) {
	s := newStore(t, NamingUnique)
	id := NewID()

	path, err := s.SaveUpload(id, "../strip.png", []byte("data"))
	if err != nil {
		t.Fatalf("SaveUpload failed: %v", err)
	}
	if filepath.Dir(path) != filepath.Join(s.Root(), "uploads") {
		t.Errorf("upload escaped the uploads directory: %s", path)
	}
	if filepath.Base(path) != id+"_strip.png" {
		t.Errorf("name: got %s", filepath.Base(path))
	}

	data, err := os.ReadFile(path)
	if err != nil || string(data) != "data" {
		t.Errorf("content: got %q, %v", data, err)
	}
}

func TestPlotPath(t *testing.T) {
	unique := newStore(t, NamingUnique)
	a, b := unique.PlotPath(NewID()), unique.PlotPath(NewID())
	if a == b {
		t.Error("unique naming should give distinct plot paths")
	}

	fixed := newStore(t, NamingFixed)
	if fixed.PlotPath("x") != fixed.PlotPath("y") || filepath.Base(fixed.PlotPath("x")) != "ctg_plot.png" {
		t.Errorf("fixed naming should always give ctg_plot.png, got %s", fixed.PlotPath("x"))
	}
}

func TestWriteResult(t *testing.T) {
	s := newStore(t, NamingUnique)

	path, err := s.WriteResult("abc", map[string]int{"Decelerations": 2})
	if err != nil {
		t.Fatalf("WriteResult failed: %v", err)
	}
	if path != s.ResultPath("abc") {
		t.Errorf("path: got %s, want %s", path, s.ResultPath("abc"))
	}

	var got map[string]int
	data, _ := os.ReadFile(path)
	if err := json.Unmarshal(data, &got); err != nil || got["Decelerations"] != 2 {
		t.Errorf("round trip: got %v, %v", got, err)
	}
}

func TestWriteAtomic_FailureLeavesNothing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.png")

	err := WriteAtomic(path, func(w io.Writer) error {
		w.Write([]byte("partial"))
		return errors.New("encoder failed")
	})
	if !errors.Is(err, ErrStorage) {
		t.Fatalf("expected ErrStorage, got %v", err)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("failed write should leave no files, found %d", len(entries))
	}
}

func TestWriteAtomic_MissingDir(t *testing.T) {
	err := WriteAtomic(filepath.Join(t.TempDir(), "nope", "out.json"), func(io.Writer) error { return nil })
	if !errors.Is(err, ErrStorage) {
		t.Errorf("expected ErrStorage, got %v", err)
	}
}
