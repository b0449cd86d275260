package yarn

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// Store persists finished records.
type Store interface {
	// SaveDiscussion persists d and returns where it was written.
	SaveDiscussion(ctx context.Context, d *Discussion) (string, error)
	// SaveAnnotation persists a and returns where it was written.
	SaveAnnotation(ctx context.Context, a *Annotation) (string, error)
}

// FilenameTimeLayout is the timestamp prefix of persisted record files.
const FilenameTimeLayout = "06-01-02-15-04-05"

// RecordFilename returns "<yy-mm-dd-HH-MM-SS>-<first 8 chars of id>.json".
func RecordFilename(now time.Time, id string) string {
	suffix := strings.ReplaceAll(id, "-", "")
	if len(suffix) > 8 {
		suffix = suffix[:8]
	}
	return now.Format(FilenameTimeLayout) + "-" + suffix + ".json"
}

// FileStore writes one indented JSON file per record into Dir.
type FileStore struct {
	Dir string
	// Now is the clock used for file names. Defaults to time.Now.
	Now func() time.Time
}

// NewFileStore creates a store rooted at dir. The directory is created on first save.
func NewFileStore(dir string) *FileStore {
	return &FileStore{Dir: dir, Now: time.Now}
}

func (s *FileStore) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

// SaveDiscussion writes d to a new file in Dir.
func (s *FileStore) SaveDiscussion(ctx context.Context, d *Discussion) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	path := filepath.Join(s.Dir, RecordFilename(s.now(), d.ID))
	return path, writeJSONAtomic(path, d)
}

// SaveAnnotation writes a to a new file in Dir.
func (s *FileStore) SaveAnnotation(ctx context.Context, a *Annotation) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	path := filepath.Join(s.Dir, RecordFilename(s.now(), a.ID))
	return path, writeJSONAtomic(path, a)
}

// Files lists the record files in Dir in name order, which is creation order.
func (s *FileStore) Files() ([]string, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		files = append(files, filepath.Join(s.Dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// Discussions lazily decodes every discussion file in Dir. Each call lists
// the directory again.
func (s *FileStore) Discussions() iter.Seq2[*Discussion, error] {
	return func(yield func(*Discussion, error) bool) {
		files, err := s.Files()
		if err != nil {
			yield(nil, err)
			return
		}
		for _, f := range files {
			d, err := LoadDiscussion(f)
			if !yield(d, err) {
				return
			}
		}
	}
}

// Annotations lazily decodes every annotation file in Dir.
func (s *FileStore) Annotations() iter.Seq2[*Annotation, error] {
	return func(yield func(*Annotation, error) bool) {
		files, err := s.Files()
		if err != nil {
			yield(nil, err)
			return
		}
		for _, f := range files {
			a, err := LoadAnnotation(f)
			if !yield(a, err) {
				return
			}
		}
	}
}

// FindDiscussion returns the discussion with the given id, or an id prefix
// of at least 8 characters.
func (s *FileStore) FindDiscussion(id string) (*Discussion, error) {
	for d, err := range s.Discussions() {
		if err != nil {
			continue
		}
		if d.ID == id || (len(id) >= 8 && strings.HasPrefix(d.ID, id)) {
			return d, nil
		}
	}
	return nil, fmt.Errorf("discussion %q: %w", id, os.ErrNotExist)
}

// LoadDiscussion reads a discussion file.
func LoadDiscussion(path string) (*Discussion, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var d Discussion
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if d.Messages == nil {
		return nil, fmt.Errorf("decode %s: %w", path, ErrNotDiscussion)
	}
	return &d, nil
}

// LoadAnnotation reads an annotation file.
func LoadAnnotation(path string) (*Annotation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var a Annotation
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if a.DiscussionID == "" || a.Items == nil {
		return nil, fmt.Errorf("decode %s: %w", path, ErrNotAnnotation)
	}
	return &a, nil
}

// Record kind errors returned when a file holds the other record type.
var (
	ErrNotDiscussion = errors.New("file is not a discussion record")
	ErrNotAnnotation = errors.New("file is not an annotation record")
)

// writeJSONAtomic writes v next to path and renames it into place.
func writeJSONAtomic(path string, v any) (err error) {
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*.json")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = os.Chmod(tmp.Name(), 0644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// MemoryStore keeps records in memory, for dry runs and tests.
type MemoryStore struct {
	mu          sync.RWMutex
	discussions map[string]*Discussion
	annotations map[string]*Annotation
	order       []string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		discussions: make(map[string]*Discussion),
		annotations: make(map[string]*Annotation),
	}
}

// SaveDiscussion stores d by id.
func (s *MemoryStore) SaveDiscussion(ctx context.Context, d *Discussion) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.discussions[d.ID]; !exists {
		s.order = append(s.order, d.ID)
	}
	s.discussions[d.ID] = d
	return "memory://" + d.ID, nil
}

// SaveAnnotation stores a by id.
func (s *MemoryStore) SaveAnnotation(ctx context.Context, a *Annotation) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.annotations[a.ID]; !exists {
		s.order = append(s.order, a.ID)
	}
	s.annotations[a.ID] = a
	return "memory://" + a.ID, nil
}

// Discussion returns a stored discussion.
func (s *MemoryStore) Discussion(id string) (*Discussion, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.discussions[id]
	return d, ok
}

// Annotation returns a stored annotation.
func (s *MemoryStore) Annotation(id string) (*Annotation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.annotations[id]
	return a, ok
}

// Discussions returns stored discussions in save order.
func (s *MemoryStore) Discussions() []*Discussion {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Discussion
	for _, id := range s.order {
		if d, ok := s.discussions[id]; ok {
			out = append(out, d)
		}
	}
	return out
}

// Count returns the number of stored records.
func (s *MemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.discussions) + len(s.annotations)
}
