package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/dmitrijs2005/crewkeeper/internal/filex"
	"github.com/dmitrijs2005/crewkeeper/internal/logging"
)

var errCorruptFile = errors.New("failed to parse metadata file")

// FileRepository stores all keys in one JSON document, written with owner
// only permissions. Every mutation rewrites the file through a temp file and
// rename, so a crash leaves either the old or the new document.
type FileRepository struct {
	mu     sync.Mutex
	path   string
	data   map[string][]byte
	logger logging.Logger
}

// FileOption configures a FileRepository.
type FileOption func(*FileRepository)

// WithFileLogger sets the logger used to report a recovered store.
func WithFileLogger(l logging.Logger) FileOption {
	return func(r *FileRepository) {
		if l != nil {
			r.logger = l
		}
	}
}

type fileDocument struct {
	Entries map[string][]byte `json:"entries"`
}

// NewFileRepository opens (or lazily creates) the store at path. An empty
// path resolves to <user config dir>/<appName>/session.json. A document that
// cannot be parsed is moved to <path>.corrupt and the store starts empty.
func NewFileRepository(path, appName string, opts ...FileOption) (*FileRepository, error) {
	if path == "" {
		configDir, err := os.UserConfigDir()
		if err != nil {
			home, herr := os.UserHomeDir()
			if herr != nil {
				return nil, fmt.Errorf("could not determine config directory: %w", herr)
			}
			configDir = filepath.Join(home, ".config")
		}
		if appName == "" {
			appName = "crewkeeper"
		}
		path = filepath.Join(configDir, appName, "session.json")
	}

	r := &FileRepository{path: path, data: make(map[string][]byte), logger: logging.Nop()}
	for _, opt := range opts {
		opt(r)
	}

	err := r.load()
	switch {
	case err == nil, errors.Is(err, os.ErrNotExist):
	case errors.Is(err, errCorruptFile):
		r.quarantine(err)
	default:
		return nil, err
	}
	return r, nil
}

func (r *FileRepository) quarantine(cause error) {
	ctx := context.Background()
	aside := r.path + ".corrupt"
	if err := os.Rename(r.path, aside); err != nil {
		r.logger.Warn(ctx, "unreadable metadata file left in place", "path", r.path, "cause", cause, "error", err)
		return
	}
	r.logger.Warn(ctx, "unreadable metadata file moved aside", "path", aside, "error", cause)
}

// Path returns the backing file location.
func (r *FileRepository) Path() string { return r.path }

func (r *FileRepository) load() error {
	raw, err := os.ReadFile(r.path)
	if err != nil {
		return err
	}
	var doc fileDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("%w: %v", errCorruptFile, err)
	}
	if doc.Entries != nil {
		r.data = doc.Entries
	}
	return nil
}

func (r *FileRepository) persist(data map[string][]byte) error {
	dir := filepath.Dir(r.path)
	if err := filex.EnsureParentDir(r.path); err != nil {
		return fmt.Errorf("failed to create metadata directory: %w", err)
	}

	raw, err := json.MarshalIndent(fileDocument{Entries: data}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize metadata: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".metadata-*")
	if err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write metadata: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write metadata: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}
	if err := os.Rename(tmpName, r.path); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}
	return nil
}

// mutate applies fn to a copy of the data and persists it; memory is only
// updated once the file write succeeded.
func (r *FileRepository) mutate(fn func(data map[string][]byte)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := cloneData(r.data)
	fn(next)
	if err := r.persist(next); err != nil {
		return err
	}
	r.data = next
	return nil
}

func (r *FileRepository) Get(_ context.Context, key string) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.data[key]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), v...), nil
}

func (r *FileRepository) Set(_ context.Context, key string, value []byte) error {
	return r.mutate(func(data map[string][]byte) {
		data[key] = append([]byte(nil), value...)
	})
}

func (r *FileRepository) Delete(_ context.Context, key string) error {
	return r.mutate(func(data map[string][]byte) {
		delete(data, key)
	})
}

func (r *FileRepository) List(_ context.Context) (map[string][]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return cloneData(r.data), nil
}

func (r *FileRepository) Clear(_ context.Context) error {
	return r.mutate(func(data map[string][]byte) {
		clear(data)
	})
}

// Tx stages fn's writes in memory and persists them with a single rename.
func (r *FileRepository) Tx(ctx context.Context, fn func(ctx context.Context, r Repository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	staged := newMemoryRepositoryFrom(r.data)
	if err := fn(ctx, staged); err != nil {
		return err
	}
	next := staged.snapshot()
	if err := r.persist(next); err != nil {
		return err
	}
	r.data = next
	return nil
}
