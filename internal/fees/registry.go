package fees

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"qledger/internal/logger"
)

// ChangeListener fires after the rule table has been replaced.
type ChangeListener func(Document)

// Registry owns the persisted fee-rule document. Readers take immutable
// snapshots; Update and external file edits replace the whole table in one
// swap so a concurrent Compute never observes a half-written rule set.
type Registry struct {
	path string

	mu        sync.RWMutex
	doc       Document
	listeners []ChangeListener

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewRegistry loads the rule document at path, writing the default table
// first when the file does not exist yet, and starts watching the file for
// out-of-band edits.
func NewRegistry(path string) (*Registry, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("fee registry requires a document path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	r := &Registry{path: path, done: make(chan struct{})}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := writeDocument(path, DefaultDocument()); err != nil {
			return nil, fmt.Errorf("write default fee document: %w", err)
		}
		logger.Infof("fees: generated default rule document at %s", path)
	}
	if err := r.reload(); err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("fee document watcher: %w", err)
	}
	// Watch the directory: editors and our own atomic rename replace the
	// file node, which would silently detach a file-level watch.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		_ = watcher.Close()
		return nil, err
	}
	r.watcher = watcher
	go r.watchLoop()
	return r, nil
}

func (r *Registry) watchLoop() {
	for {
		select {
		case <-r.done:
			return
		case evt, ok := <-r.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(evt.Name) != filepath.Clean(r.path) {
				continue
			}
			if !evt.Has(fsnotify.Write) && !evt.Has(fsnotify.Create) {
				continue
			}
			if err := r.reload(); err != nil {
				logger.Errorf("fees: reload after %s failed: %v", evt.Op, err)
				continue
			}
			logger.Infof("fees: rule document reloaded (%s)", evt.Name)
			r.notify()
		case err, ok := <-r.watcher.Errors:
			if !ok {
				return
			}
			logger.Warnf("fees: watcher error: %v", err)
		}
	}
}

func (r *Registry) reload() error {
	raw, err := os.ReadFile(r.path)
	if err != nil {
		return fmt.Errorf("read fee document: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("parse fee document: %w", err)
	}
	if err := ValidateDocument(doc); err != nil {
		return err
	}
	r.mu.Lock()
	r.doc = doc
	r.mu.Unlock()
	return nil
}

// Snapshot returns a copy of the current rule table. The copy is safe to hold
// across an Update.
func (r *Registry) Snapshot() Document {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return cloneDocument(r.doc)
}

// Compute evaluates fees against the current snapshot.
func (r *Registry) Compute(code string, price float64, volume int64, side int) Breakdown {
	return Compute(r.Snapshot(), code, price, volume, side)
}

// Update validates, persists and atomically installs a full replacement rule
// table. Partial updates are deliberately not supported.
func (r *Registry) Update(doc Document) error {
	if err := ValidateDocument(doc); err != nil {
		return err
	}
	if err := writeDocument(r.path, doc); err != nil {
		return fmt.Errorf("persist fee document: %w", err)
	}
	r.mu.Lock()
	r.doc = cloneDocument(doc)
	r.mu.Unlock()
	r.notify()
	return nil
}

// Subscribe registers a listener for table replacements and immediately
// delivers the current snapshot.
func (r *Registry) Subscribe(fn ChangeListener) {
	if fn == nil {
		return
	}
	r.mu.Lock()
	r.listeners = append(r.listeners, fn)
	doc := cloneDocument(r.doc)
	r.mu.Unlock()
	fn(doc)
}

func (r *Registry) notify() {
	r.mu.RLock()
	listeners := append([]ChangeListener(nil), r.listeners...)
	doc := cloneDocument(r.doc)
	r.mu.RUnlock()
	for _, fn := range listeners {
		fn(doc)
	}
}

func (r *Registry) Close() error {
	select {
	case <-r.done:
	default:
		close(r.done)
	}
	if r.watcher != nil {
		return r.watcher.Close()
	}
	return nil
}

// writeDocument persists via temp file + rename so a reader never sees a
// truncated document.
func writeDocument(path string, doc Document) error {
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
