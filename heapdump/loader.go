// ABOUTME: Cached loading of graph descriptions keyed by content digest
// ABOUTME: Parsed graphs stay in an LRU cache and callers always receive copies

package heapdump

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/prateek/heapshape/graph"
)

// DefaultCacheSize is the number of parsed descriptions a Loader keeps
const DefaultCacheSize = 64

// Loader parses descriptions through the registry and caches the results
type Loader struct {
	cache *lru.Cache[string, *graph.Memory]
	log   *slog.Logger
}

// NewLoader returns a Loader caching up to size parsed descriptions.
// A nil logger falls back to slog.Default().
func NewLoader(size int, log *slog.Logger) (*Loader, error) {
	cache, err := lru.New[string, *graph.Memory](size)
	if err != nil {
		return nil, fmt.Errorf("create description cache: %w", err)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Loader{cache: cache, log: log}, nil
}

// Load parses the description read from r. Identical content is parsed once.
func (l *Loader) Load(r io.Reader) (*graph.Memory, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read description: %w", err)
	}

	sum := sha256.Sum256(data)
	key := hex.EncodeToString(sum[:])
	if m, ok := l.cache.Get(key); ok {
		l.log.Debug("description cache hit", "digest", key[:12])
		return m.Copy(), nil
	}

	m, err := Open(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	l.cache.Add(key, m)
	l.log.Debug("description parsed", "digest", key[:12], "objects", m.NumObjects())
	return m.Copy(), nil
}

// LoadFile loads the description stored at path
func (l *Loader) LoadFile(path string) (*graph.Memory, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	m, err := l.Load(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// Len returns the number of cached descriptions
func (l *Loader) Len() int {
	return l.cache.Len()
}
