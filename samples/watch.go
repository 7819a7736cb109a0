// ABOUTME: Watches the sample root and loads new files into the registry
// ABOUTME: Directory names become sample set names, one level deep

package samples

import (
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"megra/pool"
)

// audioExts are the file types the scanner picks up. Samples ship as FLAC;
// the other formats are tolerated for scratch material.
var audioExts = map[string]bool{
	".flac": true,
	".wav":  true,
	".aif":  true,
	".aiff": true,
}

// ScanRoot walks root once and loads every audio file, using the first-level
// directory name as the set name. Loads fan out across the batch; the call
// returns once every file is registered.
func (r *Registry) ScanRoot(root string, loads *pool.Batch) error {
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() || !audioExts[strings.ToLower(filepath.Ext(path))] {
			return nil
		}

		set := setNameFor(root, path)

		loads.Go(func() {
			if _, err := r.LoadFile(set, path); err != nil {
				log.Printf("samples: skipping %s: %v", path, err)
			}
		})

		return nil
	})
	if err != nil {
		return err
	}

	loads.Wait()

	return nil
}

// setNameFor derives the sample set from the path: the first directory
// below the root, or the file stem for files sitting directly in the root.
func setNameFor(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = filepath.Base(path)
	}

	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) > 1 {
		return parts[0]
	}

	stem := strings.TrimSuffix(parts[0], filepath.Ext(parts[0]))

	return stem
}

// Watch loads files dropped into the sample tree while a session runs.
// Returns a stop function; watcher errors are logged, never fatal.
func (r *Registry) Watch(root string) (func(), error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if err := watcher.Add(root); err != nil {
		_ = watcher.Close()

		return nil, err
	}

	// watch one level of set directories as well
	entries, err := os.ReadDir(root)
	if err == nil {
		for _, e := range entries {
			if e.IsDir() {
				_ = watcher.Add(filepath.Join(root, e.Name()))
			}
		}
	}

	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-done:
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}

				if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
					continue
				}

				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					_ = watcher.Add(ev.Name)

					continue
				}

				if !audioExts[strings.ToLower(filepath.Ext(ev.Name))] {
					continue
				}

				set := setNameFor(root, ev.Name)
				if _, err := r.LoadFile(set, ev.Name); err != nil {
					log.Printf("samples: live load failed for %s: %v", ev.Name, err)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}

				log.Printf("samples: watcher error: %v", err)
			}
		}
	}()

	return func() {
		close(done)
		_ = watcher.Close()
	}, nil
}
