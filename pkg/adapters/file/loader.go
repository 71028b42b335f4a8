package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
)

// DefaultPattern matches the tree descriptions a Loader serves.
const DefaultPattern = "**/*.{yaml,yml,json}"

var extensions = []string{".yaml", ".yml", ".json"}

// Loader implements ports.TreeLoader over a directory of YAML or JSON
// descriptions. A tree ID is the file path relative to the root, with
// forward slashes and without extension: "enemies/guard.yaml" is "enemies/guard".
//
// Hidden files and directories (such as the .arbor session directory) are
// never served.
type Loader struct {
	root    string
	pattern string
	ignore  []string
	fsys    fs.FS
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithPattern restricts the files served to a doublestar pattern.
func WithPattern(pattern string) LoaderOption {
	return func(l *Loader) { l.pattern = pattern }
}

// WithIgnore excludes files by path relative to the root, e.g. "actions.yaml".
func WithIgnore(names ...string) LoaderOption {
	return func(l *Loader) { l.ignore = append(l.ignore, names...) }
}

// NewLoader creates a loader rooted at dir.
func NewLoader(dir string, opts ...LoaderOption) *Loader {
	l := &Loader{
		root:    dir,
		pattern: DefaultPattern,
		fsys:    os.DirFS(dir),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// GetTree reads the description of tree id.
func (l *Loader) GetTree(id string) ([]byte, error) {
	if !fs.ValidPath(id) {
		return nil, fmt.Errorf("%w: invalid id %q", domain.ErrTreeNotFound, id)
	}
	for _, ext := range extensions {
		name := id + ext
		if !l.serves(name) {
			continue
		}
		data, err := fs.ReadFile(l.fsys, name)
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read tree %s: %w", id, err)
		}
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrTreeNotFound, id)
}

// ListTrees returns the IDs of every description under the root.
func (l *Loader) ListTrees() ([]string, error) {
	matches, err := doublestar.Glob(l.fsys, l.pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("failed to list trees: %w", err)
	}
	ids := make([]string, 0, len(matches))
	for _, m := range matches {
		if !l.serves(m) {
			continue
		}
		if id := trimExtension(m); !slices.Contains(ids, id) {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids, nil
}

// serves reports whether the slash-separated relative path is a description.
func (l *Loader) serves(name string) bool {
	if ok, _ := doublestar.Match(l.pattern, name); !ok {
		return false
	}
	for _, seg := range strings.Split(name, "/") {
		if strings.HasPrefix(seg, ".") {
			return false
		}
	}
	return !slices.Contains(l.ignore, name)
}

func trimExtension(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// Watch implements ports.Watchable. It reports the ID of every description
// written, created or renamed under the root until ctx is done.
func (l *Loader) Watch(ctx context.Context) (<-chan string, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := l.addDirs(w, l.root); err != nil {
		_ = w.Close()
		return nil, err
	}

	out := make(chan string, 16)
	go func() {
		defer close(out)
		defer w.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				l.handle(w, ev, out)
			case _, ok := <-w.Errors:
				if !ok {
					return
				}
			}
		}
	}()
	return out, nil
}

// addDirs watches dir and its subdirectories; fsnotify is not recursive.
func (l *Loader) addDirs(w *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := w.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		return nil
	})
}

func (l *Loader) handle(w *fsnotify.Watcher, ev fsnotify.Event, out chan<- string) {
	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			_ = l.addDirs(w, ev.Name)
			return
		}
	}
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
		return
	}
	rel, err := filepath.Rel(l.root, ev.Name)
	if err != nil {
		return
	}
	rel = filepath.ToSlash(rel)
	if !l.serves(rel) {
		return
	}
	select {
	case out <- trimExtension(rel):
	default:
	}
}
