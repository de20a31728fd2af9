package fs

import (
	"bytes"
	"cmp"
	"context"
	"fmt"
	"sync"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/url"
	"github.com/viant/vigil/internal/idgen"
	"github.com/viant/vigil/service/dao"
)

// Store keeps a whole collection in a single JSON document on any afs
// supported storage (local file, mem://, s3://, gs:// ...).
type Store[K cmp.Ordered, T any] struct {
	URL string
	fs  afs.Service
	key dao.KeyFunc[K, T]
	mu  sync.Mutex
}

// Ensure Store implements dao.Snapshot
var _ dao.Snapshot[string, struct{}] = (*Store[string, struct{}])(nil)

// Load reads the collection document. A missing document yields an empty map.
func (s *Store[K, T]) Load(ctx context.Context) (map[K]*T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	exists, err := s.fs.Exists(ctx, s.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to check %s: %w", s.URL, err)
	}
	if !exists {
		return make(map[K]*T), nil
	}
	data, err := s.fs.DownloadWithURL(ctx, s.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", s.URL, err)
	}
	records, err := dao.Decode[K, T](data, s.key)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", s.URL, err)
	}
	return records, nil
}

// SaveAll writes the collection to a temporary object, then moves it over the
// target so readers see either the previous or the new document.
func (s *Store[K, T]) SaveAll(ctx context.Context, records map[K]*T) error {
	data, err := dao.Encode(records)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	parent, name := url.Split(s.URL, file.Scheme)
	tempURL := url.Join(parent, fmt.Sprintf(".%s.%s.tmp", name, idgen.New()))
	if err = s.fs.Upload(ctx, tempURL, file.DefaultFileOsMode, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write %s: %w", tempURL, err)
	}
	if err = s.fs.Move(ctx, tempURL, s.URL); err != nil {
		_ = s.fs.Delete(ctx, tempURL)
		return fmt.Errorf("failed to replace %s: %w", s.URL, err)
	}
	return nil
}

// New creates a store persisting to location (a path or afs URL). The parent
// directory is created when missing.
func New[K cmp.Ordered, T any](location string, key dao.KeyFunc[K, T]) (*Store[K, T], error) {
	if location == "" {
		return nil, fmt.Errorf("location cannot be empty")
	}
	if key == nil {
		return nil, fmt.Errorf("key selector cannot be nil")
	}
	fs := afs.New()
	location = url.Normalize(location, file.Scheme)

	ctx := context.Background()
	parent, _ := url.Split(location, file.Scheme)
	if exists, _ := fs.Exists(ctx, parent); !exists {
		if err := fs.Create(ctx, parent, file.DefaultDirOsMode, true); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", parent, err)
		}
	}
	return &Store[K, T]{URL: location, fs: fs, key: key}, nil
}
