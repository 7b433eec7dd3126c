package loader

import (
	"context"
	"fmt"
	"io"
	"maps"
	"path"
	"strings"
	"sync"

	"github.com/Carmen-Shannon/oxy-resident/common"
	"github.com/Carmen-Shannon/oxy-resident/engine/asset"
	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"
)

// File extensions the loader understands.
const (
	ExtRMesh = ".rmesh"
	ExtRef   = ".ref"
)

// loader is the implementation of the Loader interface.
type loader struct {
	mu sync.RWMutex

	files   source
	objects source
	logger  logrus.FieldLogger

	cache map[string]asset.Content
}

// Loader reads content files from disk or an object store and caches the decoded content. It is safe for use
// from pipeline worker goroutines.
type Loader interface {
	// Load reads the content at locator for a LOD. Mesh files look for a "<name>.lod<N>.rmesh" variant first and
	// fall back to the base file when no variant exists. Results are cached per locator and LOD.
	//
	// Parameters:
	//   - ctx: cancels object store reads
	//   - locator: a file path, relative to the root, or an s3://bucket/key locator
	//   - lod: the level of detail
	//
	// Returns:
	//   - asset.Content: the decoded content; .ref files yield an asset.Reference
	//   - error: ErrNotFound if nothing exists at the locator, or a decode error
	Load(ctx context.Context, locator string, lod int) (asset.Content, error)

	// LoadReader decodes content from a reader and caches it under name at LOD 0.
	//
	// Parameters:
	//   - name: the cache name
	//   - r: the reader providing file data
	//   - ext: the file extension selecting the decoder, e.g. ".rmesh"
	//
	// Returns:
	//   - asset.Content: the decoded content
	//   - error: error if the extension is unknown or decoding fails
	LoadReader(name string, r io.Reader, ext string) (asset.Content, error)

	// Get retrieves cached content by locator and LOD. Returns nil if not found.
	Get(locator string, lod int) asset.Content

	// Contents returns a copy of the cache keyed by "<locator>:<lod>".
	Contents() map[string]asset.Content

	// Func adapts Load to the pipeline's loader signature.
	Func() asset.Loader

	// Register installs Load in registry for every extension the loader understands.
	//
	// Parameters:
	//   - registry: the pipeline registry
	//
	// Returns:
	//   - error: error if registration fails
	Register(registry asset.Registry) error
}

var _ Loader = &loader{}

// NewLoader creates a Loader with the options applied. Without WithRoot, relative locators are read from the
// working directory. Without WithObjectStore, s3 locators are rejected.
//
// Parameters:
//   - options: a variadic list of LoaderBuilderOption functions to configure the Loader
//
// Returns:
//   - Loader: the loader
func NewLoader(options ...LoaderBuilderOption) Loader {
	l := &loader{
		files: fileSource{},
		cache: make(map[string]asset.Content),
	}
	for _, option := range options {
		option(l)
	}
	l.logger = common.ComponentLogger(l.logger, "loader")
	return l
}

func cacheKey(locator string, lod int) string {
	return fmt.Sprintf("%s:%d", locator, lod)
}

func (l *loader) Load(ctx context.Context, locator string, lod int) (asset.Content, error) {
	key := cacheKey(locator, lod)
	l.mu.RLock()
	if cached, ok := l.cache[key]; ok {
		l.mu.RUnlock()
		return cached, nil
	}
	l.mu.RUnlock()

	ext := strings.ToLower(path.Ext(locator))
	backend, err := resolveBackend(ext)
	if err != nil {
		return nil, err
	}

	read := locator
	var rc io.ReadCloser
	if ext == ExtRMesh && lod > 0 {
		read = LODVariant(locator, lod)
		rc, err = l.open(ctx, read)
		if errors.Is(err, common.ErrNotFound) {
			l.logger.WithFields(logrus.Fields{"locator": locator, "lod": lod}).Debug("no lod variant, using base")
			read = locator
			rc, err = l.open(ctx, read)
		}
	} else {
		rc, err = l.open(ctx, read)
	}
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	c, err := backend.Decode(read, rc)
	if err != nil {
		return nil, errors.Wrapf(err, "decode %q", read)
	}

	l.mu.Lock()
	l.cache[key] = c
	l.mu.Unlock()
	l.logger.WithFields(logrus.Fields{"locator": read, "lod": lod}).Debug("content loaded")
	return c, nil
}

func (l *loader) open(ctx context.Context, locator string) (io.ReadCloser, error) {
	if strings.Contains(locator, "://") {
		if _, _, ok := ParseObjectLocator(locator); !ok {
			return nil, common.Unsupported("locator scheme " + locator)
		}
		if l.objects == nil {
			return nil, common.InvalidArgument("object locator %q: loader has no object store", locator)
		}
		return l.objects.Open(ctx, locator)
	}
	return l.files.Open(ctx, locator)
}

func (l *loader) LoadReader(name string, r io.Reader, ext string) (asset.Content, error) {
	key := cacheKey(name, 0)
	l.mu.RLock()
	if cached, ok := l.cache[key]; ok {
		l.mu.RUnlock()
		return cached, nil
	}
	l.mu.RUnlock()

	backend, err := resolveBackend(strings.ToLower(ext))
	if err != nil {
		return nil, err
	}
	c, err := backend.Decode(name, r)
	if err != nil {
		return nil, errors.Wrapf(err, "decode reader %q", name)
	}

	l.mu.Lock()
	l.cache[key] = c
	l.mu.Unlock()
	return c, nil
}

func (l *loader) Get(locator string, lod int) asset.Content {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cache[cacheKey(locator, lod)]
}

func (l *loader) Contents() map[string]asset.Content {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return maps.Clone(l.cache)
}

func (l *loader) Func() asset.Loader {
	return l.Load
}

func (l *loader) Register(registry asset.Registry) error {
	for _, ext := range []string{ExtRMesh, ExtRef} {
		if err := registry.Register("**"+ext, l.Load); err != nil {
			return errors.Wrapf(err, "register %s", ext)
		}
	}
	return nil
}

// LODVariant names the per-LOD file for a mesh locator: "a/b.rmesh" at LOD 2 is "a/b.lod2.rmesh".
func LODVariant(locator string, lod int) string {
	ext := path.Ext(locator)
	return fmt.Sprintf("%s.lod%d%s", strings.TrimSuffix(locator, ext), lod, ext)
}

// resolveBackend selects a decoder by file extension.
func resolveBackend(ext string) (loaderBackend, error) {
	switch ext {
	case ExtRMesh:
		return rmeshBackend{}, nil
	case ExtRef:
		return refBackend{}, nil
	default:
		return nil, common.Unsupported("content format " + ext)
	}
}
