// Package assets serves the static datasheet images (logo, segment and
// contact icons) from a directory on disk.
package assets

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"catalog/internal/layout"
	"catalog/internal/pkg/errors"
)

// Library loads images from dir and keeps them in memory after first use.
type Library struct {
	dir   string
	mu    sync.RWMutex
	cache map[string]layout.InlineAsset
}

func NewLibrary(dir string) *Library {
	return &Library{dir: dir, cache: make(map[string]layout.InlineAsset)}
}

// Path returns the on-disk location of name.
func (l *Library) Path(name string) string {
	return filepath.Join(l.dir, filepath.Base(name))
}

// Load implements layout.AssetSource.
func (l *Library) Load(name string) (layout.InlineAsset, error) {
	l.mu.RLock()
	a, ok := l.cache[name]
	l.mu.RUnlock()
	if ok {
		return a, nil
	}

	typ, err := layout.ImageType(name)
	if err != nil {
		return layout.InlineAsset{}, errors.WrapWithCode(err, errors.CodeValidation, "assets.Load", "unsupported asset")
	}
	data, err := os.ReadFile(l.Path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return layout.InlineAsset{}, errors.NotFound("asset", name)
		}
		return layout.InlineAsset{}, errors.Wrap(err, "assets.Load", fmt.Sprintf("read %s", name))
	}

	a = layout.InlineAsset{Name: name, Type: typ, Data: data}
	l.mu.Lock()
	l.cache[name] = a
	l.mu.Unlock()
	return a, nil
}

// Check verifies that every named asset can be loaded.
func (l *Library) Check(names ...string) error {
	for _, n := range names {
		if _, err := l.Load(n); err != nil {
			return err
		}
	}
	return nil
}
