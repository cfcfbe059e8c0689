// Package file implements the URL repository as an in-process table that is
// written through to a single JSON file on every mutation.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/vadimbarashkov/shorturl/internal/entity"
)

// urlJSON is the on-disk shape of a record. The file is one JSON object
// keyed by short code.
type urlJSON struct {
	ShortCode      string     `json:"shortCode"`
	OriginalURL    string     `json:"originalUrl"`
	LongURL        string     `json:"longUrl,omitempty"` // legacy name of OriginalURL, read only
	CreatedAt      time.Time  `json:"createdAt"`
	LastAccessedAt *time.Time `json:"lastAccessedAt"`
	Clicks         int64      `json:"clicks"`
}

func (u *urlJSON) toEntity(key string) *entity.URL {
	url := &entity.URL{
		ShortCode:   u.ShortCode,
		OriginalURL: u.OriginalURL,
		URLStats: entity.URLStats{
			Clicks:         u.Clicks,
			LastAccessedAt: u.LastAccessedAt,
		},
		CreatedAt: u.CreatedAt,
	}
	if url.ShortCode == "" {
		url.ShortCode = key
	}
	if url.OriginalURL == "" {
		url.OriginalURL = u.LongURL
	}
	return url
}

func fromEntity(url *entity.URL) urlJSON {
	return urlJSON{
		ShortCode:      url.ShortCode,
		OriginalURL:    url.OriginalURL,
		CreatedAt:      url.CreatedAt,
		LastAccessedAt: url.LastAccessedAt,
		Clicks:         url.Clicks,
	}
}

type URLRepository struct {
	mu   sync.RWMutex
	path string
	urls map[string]*entity.URL
}

// NewURLRepository creates an empty repository backed by the file at path.
// Call Load to read previously persisted records.
func NewURLRepository(path string) *URLRepository {
	return &URLRepository{
		path: path,
		urls: make(map[string]*entity.URL),
	}
}

// Load replaces the in-memory table with the file contents. A missing file
// leaves the repository empty.
func (r *URLRepository) Load(ctx context.Context) error {
	const op = "adapter.repository.file.URLRepository.Load"

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	data, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("%s: %w: failed to read file: %w", op, entity.ErrPersistence, err)
	}

	var raw map[string]urlJSON
	if len(data) > 0 {
		if err := json.Unmarshal(data, &raw); err != nil {
			return fmt.Errorf("%s: %w: failed to decode file: %w", op, entity.ErrPersistence, err)
		}
	}

	urls := make(map[string]*entity.URL, len(raw))
	for key, u := range raw {
		url := u.toEntity(key)
		urls[url.ShortCode] = url
	}

	r.mu.Lock()
	r.urls = urls
	r.mu.Unlock()

	return nil
}

// Len reports the number of stored records.
func (r *URLRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.urls)
}

func (r *URLRepository) Save(ctx context.Context, url *entity.URL) error {
	const op = "adapter.repository.file.URLRepository.Save"

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.urls[url.ShortCode]; ok {
		return fmt.Errorf("%s: %w", op, entity.ErrShortCodeExists)
	}

	r.urls[url.ShortCode] = url.Clone()

	if err := r.persist(); err != nil {
		delete(r.urls, url.ShortCode)
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (r *URLRepository) RetrieveByShortCode(ctx context.Context, shortCode string) (*entity.URL, error) {
	const op = "adapter.repository.file.URLRepository.RetrieveByShortCode"

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	url, ok := r.urls[shortCode]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, entity.ErrURLNotFound)
	}

	return url.Clone(), nil
}

// Update applies fn to a copy of the record and keeps only the changed
// stats. Identity fields (short code, original URL, creation time) are
// immutable.
func (r *URLRepository) Update(ctx context.Context, shortCode string, fn func(url *entity.URL) error) (*entity.URL, error) {
	const op = "adapter.repository.file.URLRepository.Update"

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	prev, ok := r.urls[shortCode]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, entity.ErrURLNotFound)
	}

	next := prev.Clone()
	if err := fn(next); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	updated := prev.Clone()
	updated.URLStats = next.Clone().URLStats
	r.urls[shortCode] = updated

	if err := r.persist(); err != nil {
		r.urls[shortCode] = prev
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return updated.Clone(), nil
}

// List returns all records, newest first.
func (r *URLRepository) List(ctx context.Context) ([]entity.URL, error) {
	const op = "adapter.repository.file.URLRepository.List"

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	r.mu.RLock()
	urls := make([]entity.URL, 0, len(r.urls))
	for _, url := range r.urls {
		urls = append(urls, *url.Clone())
	}
	r.mu.RUnlock()

	sort.SliceStable(urls, func(i, j int) bool {
		if urls[i].CreatedAt.Equal(urls[j].CreatedAt) {
			return urls[i].ShortCode < urls[j].ShortCode
		}
		return urls[i].CreatedAt.After(urls[j].CreatedAt)
	})

	return urls, nil
}

// persist writes the table next to the target file, syncs it and renames it
// into place. Callers must hold the write lock.
func (r *URLRepository) persist() error {
	const op = "adapter.repository.file.URLRepository.persist"

	raw := make(map[string]urlJSON, len(r.urls))
	for code, url := range r.urls {
		raw[code] = fromEntity(url)
	}

	data, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return fmt.Errorf("%s: %w: failed to encode urls: %w", op, entity.ErrPersistence, err)
	}

	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%s: %w: failed to create data directory: %w", op, entity.ErrPersistence, err)
	}

	f, err := os.CreateTemp(dir, filepath.Base(r.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("%s: %w: failed to create temp file: %w", op, entity.ErrPersistence, err)
	}
	tmp := f.Name()
	defer os.Remove(tmp)

	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("%s: %w: failed to write temp file: %w", op, entity.ErrPersistence, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("%s: %w: failed to sync temp file: %w", op, entity.ErrPersistence, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%s: %w: failed to close temp file: %w", op, entity.ErrPersistence, err)
	}

	if err := os.Rename(tmp, r.path); err != nil {
		return fmt.Errorf("%s: %w: failed to replace data file: %w", op, entity.ErrPersistence, err)
	}

	return nil
}
