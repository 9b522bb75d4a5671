// Package watch analyzes CTG strips dropped into an inbox directory.
//
// Every image file that is created or rewritten in the inbox is analyzed
// once it has gone quiet for the settle delay. The result, or a structured
// failure, is written as JSON to the storage results directory.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/ironsheep/ctg-digitizer-mcp/internal/pipeline"
	"github.com/ironsheep/ctg-digitizer-mcp/internal/storage"
)

// Analyzer runs the full analysis on an image file.
type Analyzer interface {
	AnalyzeFile(path string) (*pipeline.Result, error)
}

// ResultWriter persists a JSON document under an id.
type ResultWriter interface {
	WriteResult(id string, v any) (string, error)
}

// Failure is written in place of a result when analysis fails.
type Failure struct {
	ID          string           `json:"id"`
	SourceImage string           `json:"source_image"`
	Error       pipeline.Payload `json:"error"`
}

// Outcome describes one processed file.
type Outcome struct {
	Path       string
	ResultPath string
	Err        error
}

var imageExts = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true,
	".bmp": true, ".tif": true, ".tiff": true,
}

// IsImage reports whether name has an image extension the loader reads.
func IsImage(name string) bool {
	return imageExts[strings.ToLower(filepath.Ext(name))]
}

// Watcher watches one inbox directory.
type Watcher struct {
	inbox    string
	settle   time.Duration
	analyzer Analyzer
	results  ResultWriter
	logger   zerolog.Logger

	// OnOutcome, if set, is called after each file is processed.
	OnOutcome func(Outcome)

	mu      sync.Mutex
	pending map[string]*time.Timer
	wg      sync.WaitGroup
}

// New creates a watcher for inbox.
func New(inbox string, settle time.Duration, a Analyzer, results ResultWriter, logger zerolog.Logger) *Watcher {
	return &Watcher{
		inbox:    inbox,
		settle:   settle,
		analyzer: a,
		results:  results,
		logger:   logger.With().Str("inbox", inbox).Logger(),
		pending:  make(map[string]*time.Timer),
	}
}

// Run watches the inbox until ctx is cancelled. Images already present
// when Run starts are analyzed too.
func (w *Watcher) Run(ctx context.Context) error {
	if err := os.MkdirAll(w.inbox, 0o755); err != nil {
		return fmt.Errorf("create inbox: %w", err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(w.inbox); err != nil {
		return fmt.Errorf("watch %s: %w", w.inbox, err)
	}
	w.logger.Info().Dur("settle", w.settle).Msg("watching inbox")

	if err := w.scan(); err != nil {
		w.logger.Warn().Err(err).Msg("initial scan failed")
	}

	defer w.stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !IsImage(event.Name) {
				continue
			}
			switch {
			case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
				w.schedule(event.Name)
			case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
				w.cancel(event.Name)
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error().Err(err).Msg("watcher error")
		}
	}
}

func (w *Watcher) scan() error {
	entries, err := os.ReadDir(w.inbox)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.Type().IsRegular() && IsImage(e.Name()) {
			w.schedule(filepath.Join(w.inbox, e.Name()))
		}
	}
	return nil
}

// schedule (re)starts the settle timer for path.
func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.pending[path]; ok && t.Stop() {
		w.wg.Done()
	}
	w.wg.Add(1)
	var t *time.Timer
	t = time.AfterFunc(w.settle, func() {
		defer w.wg.Done()
		w.release(path, t)
		w.process(path)
	})
	w.pending[path] = t
}

// release forgets the pending timer for path if it is still t. A timer
// that fired while schedule replaced it must not drop its successor.
func (w *Watcher) release(path string, t *time.Timer) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.pending[path] == t {
		delete(w.pending, path)
	}
}

func (w *Watcher) cancel(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.pending[path]; ok {
		if t.Stop() {
			w.wg.Done()
		}
		delete(w.pending, path)
	}
}

// stop cancels pending timers and waits for running analyses.
func (w *Watcher) stop() {
	w.mu.Lock()
	for path, t := range w.pending {
		if t.Stop() {
			w.wg.Done()
		}
		delete(w.pending, path)
	}
	w.mu.Unlock()
	w.wg.Wait()
}

func (w *Watcher) process(path string) {
	log := w.logger.With().Str("file", filepath.Base(path)).Logger()

	out := Outcome{Path: path}
	res, err := w.analyzer.AnalyzeFile(path)
	if err != nil {
		out.Err = err
		id := storage.NewID()
		out.ResultPath, err = w.results.WriteResult(id, Failure{
			ID:          id,
			SourceImage: path,
			Error:       pipeline.PayloadOf(err),
		})
		log.Warn().Err(out.Err).Msg("analysis failed")
	} else {
		out.ResultPath, err = w.results.WriteResult(res.ID, res)
		log.Info().Stringer("label", res.Label).Str("id", res.ID).Msg("analysis stored")
	}
	if err != nil {
		log.Error().Err(err).Msg("failed to write result")
		if out.Err == nil {
			out.Err = err
		}
	}

	if w.OnOutcome != nil {
		w.OnOutcome(out)
	}
}
