package app

import (
	"net/url"
	"os"
	"sync"

	"github.com/pkg/errors"
)

// FileLoader loads the file at a URL.
type FileLoader interface {
	Load(u *url.URL) ([]byte, error)
}

var (
	loadersMu sync.RWMutex
	loaders   = map[string]FileLoader{
		"":     LocalLoader{},
		"file": LocalLoader{},
	}
)

// RegisterFileLoader installs loader for URLs with scheme. It panics if the
// scheme already has a loader.
func RegisterFileLoader(scheme string, loader FileLoader) {
	loadersMu.Lock()
	defer loadersMu.Unlock()

	if _, exists := loaders[scheme]; exists {
		panic("file loader already registered for scheme " + scheme)
	}
	loaders[scheme] = loader
}

// LoadFile loads fileURL with the loader registered for its scheme. Plain
// paths are read from the local filesystem.
func LoadFile(fileURL string) ([]byte, error) {
	u, err := url.Parse(fileURL)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid file url %s", fileURL)
	}

	loadersMu.RLock()
	loader, ok := loaders[u.Scheme]
	loadersMu.RUnlock()
	if !ok {
		return nil, errors.Errorf("no file loader for scheme %q", u.Scheme)
	}

	return loader.Load(u)
}

// LocalLoader reads files from the local filesystem.
type LocalLoader struct{}

func (LocalLoader) Load(u *url.URL) ([]byte, error) {
	path := u.Host + u.Path
	if len(path) == 0 {
		path = u.Opaque
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", path)
	}
	return b, nil
}
