package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/don-licenciao/MapyChat-web/pkg/logger"
)

const preferencesFile = "preferences.json"

// DiskPreferences keeps client preferences in a single JSON object under
// dataDir. The whole file is rewritten on every Set.
type DiskPreferences struct {
	dataDir string
	mu      sync.RWMutex
	cache   map[string]string
}

func NewDiskPreferences(dataDir string) *DiskPreferences {
	return &DiskPreferences{
		dataDir: dataDir,
		cache:   make(map[string]string),
	}
}

func (d *DiskPreferences) Init() error {
	if err := os.MkdirAll(d.dataDir, 0755); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageInit, err)
	}

	if err := d.load(); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageInit, err)
	}

	logger.Debugf("preferences loaded from %s", d.path())
	return nil
}

func (d *DiskPreferences) path() string {
	return filepath.Join(d.dataDir, preferencesFile)
}

func (d *DiskPreferences) load() error {
	data, err := os.ReadFile(d.path())
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	values := make(map[string]string)
	if err := json.Unmarshal(data, &values); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidData, err)
	}

	d.mu.Lock()
	d.cache = values
	d.mu.Unlock()
	return nil
}

func (d *DiskPreferences) Get(key string) (string, bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	v, ok := d.cache[key]
	return v, ok, nil
}

func (d *DiskPreferences) Set(key, value string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.cache[key] = value
	data, err := json.MarshalIndent(d.cache, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidData, err)
	}

	tmp := d.path() + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("%w: %v", ErrFileOperation, err)
	}
	if err := os.Rename(tmp, d.path()); err != nil {
		return fmt.Errorf("%w: %v", ErrFileOperation, err)
	}
	return nil
}
