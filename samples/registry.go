// ABOUTME: Sample and buffer registry with keyword lookup
// ABOUTME: File stems and audio tags become implicit keywords on load

// Package samples maps sample set names to keyword-tagged buffer handles.
// Sets grow as files are loaded (the registry is append-only during a
// session); the buffers themselves are owned by the audio backend.
package samples

import (
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dhowden/tag"

	"megra/dispatch"
)

// Entry is one loaded sample: its keyword set and the backend buffer.
type Entry struct {
	Keywords map[string]bool
	Buffer   dispatch.BufferHandle
}

// Registry resolves sample set names and keyword queries to buffers.
// Reads vastly outnumber writes; the loader is the only writer.
type Registry struct {
	mu   sync.RWMutex
	sets map[string][]Entry

	dispatcher dispatch.Dispatcher
}

// NewRegistry returns an empty registry loading buffers through the given
// dispatcher.
func NewRegistry(d dispatch.Dispatcher) *Registry {
	return &Registry{
		sets:       make(map[string][]Entry),
		dispatcher: d,
	}
}

// LoadFile reads a sample file, hands it to the backend, and registers it
// under the set with the given extra keywords. The file stem and any audio
// metadata (genre, artist, title words) become implicit keywords.
func (r *Registry) LoadFile(set, path string, keywords ...string) (dispatch.BufferHandle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read sample: %w", err)
	}

	buffer, err := r.dispatcher.LoadSample(data)
	if err != nil {
		return 0, fmt.Errorf("failed to load sample into backend: %w", err)
	}

	kws := make(map[string]bool)
	for _, k := range keywords {
		kws[strings.ToLower(k)] = true
	}

	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	for _, part := range strings.FieldsFunc(stem, func(r rune) bool {
		return r == '_' || r == '-' || r == ' '
	}) {
		kws[strings.ToLower(part)] = true
	}

	for _, k := range metadataKeywords(path) {
		kws[k] = true
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.sets[set] = append(r.sets[set], Entry{Keywords: kws, Buffer: buffer})

	return buffer, nil
}

// metadataKeywords extracts keywords from the file's audio tags. Missing or
// unreadable tags are fine; path keywords already cover the basics.
func metadataKeywords(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}

	defer func() {
		_ = f.Close() // read-only file
	}()

	meta, err := tag.ReadFrom(f)
	if err != nil {
		return nil
	}

	var kws []string

	for _, field := range []string{meta.Genre(), meta.Artist(), meta.Title()} {
		for _, word := range strings.Fields(field) {
			kws = append(kws, strings.ToLower(word))
		}
	}

	return kws
}

// Sets returns the known set names.
func (r *Registry) Sets() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.sets))
	for name := range r.sets {
		names = append(names, name)
	}

	return names
}

// Count returns the number of entries in a set.
func (r *Registry) Count(set string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.sets[set])
}

// Lookup returns a buffer from the set whose keywords are a superset of the
// query. Ties are resolved randomly; an empty query picks any entry.
func (r *Registry) Lookup(set string, query []string, rng *rand.Rand) (dispatch.BufferHandle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := r.sets[set]
	if len(entries) == 0 {
		return 0, false
	}

	var matches []Entry

	for _, e := range entries {
		ok := true

		for _, q := range query {
			if !e.Keywords[strings.ToLower(q)] {
				ok = false

				break
			}
		}

		if ok {
			matches = append(matches, e)
		}
	}

	if len(matches) == 0 {
		return 0, false
	}

	return matches[rng.IntN(len(matches))].Buffer, true
}

// LookupIndex returns the nth entry of a set in insertion order.
func (r *Registry) LookupIndex(set string, n int) (dispatch.BufferHandle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := r.sets[set]
	if n < 0 || n >= len(entries) {
		return 0, false
	}

	return entries[n].Buffer, true
}
