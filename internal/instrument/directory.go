// Package instrument resolves security codes to display names. Lookups hit a
// local cache first; misses fall through to the terminal and are cached. A
// periodic bulk refresh keeps the whole mapping current.
package instrument

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"qledger/internal/broker"
	"qledger/internal/logger"
)

const lookupTimeout = 3 * time.Second

// Directory is the code -> name cache backed by a JSON document.
type Directory struct {
	path    string
	session broker.Session
	sectors []string

	mu    sync.RWMutex
	names map[string]string
}

// NewDirectory loads the cache document (an absent file is an empty cache)
// and binds the terminal session used for misses and bulk refresh.
func NewDirectory(path string, session broker.Session, sectors []string) (*Directory, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("instrument directory requires a cache path")
	}
	d := &Directory{
		path:    path,
		session: session,
		sectors: append([]string(nil), sectors...),
		names:   make(map[string]string),
	}
	raw, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// first run, cache starts empty
	case err != nil:
		return nil, fmt.Errorf("read instrument cache: %w", err)
	default:
		if err := json.Unmarshal(raw, &d.names); err != nil {
			logger.Warnf("instrument: cache document unreadable, starting empty: %v", err)
			d.names = make(map[string]string)
		}
	}
	return d, nil
}

// Resolve returns the display name for code. On a cache miss it asks the
// terminal once; when that also fails the code itself is returned so callers
// always get something printable.
func (d *Directory) Resolve(code string) string {
	code = strings.TrimSpace(code)
	if code == "" {
		return ""
	}
	d.mu.RLock()
	name, ok := d.names[code]
	d.mu.RUnlock()
	if ok {
		return name
	}

	if d.session != nil {
		ctx, cancel := context.WithTimeout(context.Background(), lookupTimeout)
		defer cancel()
		inst, err := d.session.InstrumentDetail(ctx, code)
		if err == nil && inst.Name != "" {
			d.mu.Lock()
			d.names[code] = inst.Name
			d.mu.Unlock()
			if err := d.save(); err != nil {
				logger.Warnf("instrument: persist cache failed: %v", err)
			}
			return inst.Name
		}
	}
	return code
}

// Size reports the number of cached names.
func (d *Directory) Size() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.names)
}

// RefreshAll reloads the full mapping from the terminal's configured board
// sectors and merges it over the cache. Returns the cache size afterwards.
func (d *Directory) RefreshAll(ctx context.Context) (int, error) {
	if d.session == nil {
		return d.Size(), fmt.Errorf("instrument directory has no session")
	}
	insts, err := d.session.ListInstruments(ctx, d.sectors)
	if err != nil {
		return d.Size(), fmt.Errorf("list instruments: %w", err)
	}
	added := 0
	d.mu.Lock()
	for _, inst := range insts {
		if inst.Code == "" || inst.Name == "" {
			continue
		}
		if _, ok := d.names[inst.Code]; !ok {
			added++
		}
		d.names[inst.Code] = inst.Name
	}
	total := len(d.names)
	d.mu.Unlock()

	if err := d.save(); err != nil {
		return total, fmt.Errorf("persist instrument cache: %w", err)
	}
	logger.Infof("instrument: refresh complete, %d entries (%d new)", total, added)
	return total, nil
}

func (d *Directory) save() error {
	d.mu.RLock()
	raw, err := json.Marshal(d.names)
	d.mu.RUnlock()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(d.path), 0o755); err != nil {
		return err
	}
	tmp := d.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, d.path)
}
