// Package entity defines the entities and errors used in the application.
// It includes the URL struct, which represents a shortened URL, along with its
// associated metadata, and the error taxonomy shared by every layer.
package entity

import (
	"errors"
	"strings"
	"time"
)

var (
	// ErrShortCodeExists is returned when attempting to save a URL with a short code that already exists.
	ErrShortCodeExists = errors.New("short code exists")
	// ErrURLNotFound is returned when a URL with the specified short code cannot be found.
	ErrURLNotFound = errors.New("url not found")
	// ErrCodeSpaceExhausted is returned when no free short code was found within the allowed attempts.
	ErrCodeSpaceExhausted = errors.New("short code space exhausted")
	// ErrPersistence wraps failures of the underlying storage (file I/O or database).
	ErrPersistence = errors.New("persistence error")
)

// URL represents a shortened URL.
type URL struct {
	ShortCode   string    // ShortCode is the unique key the original URL is stored under.
	OriginalURL string    // OriginalURL is the full URL that the short code resolves to.
	URLStats              // URLStats contains usage statistics of the URL.
	CreatedAt   time.Time // CreatedAt is the timestamp when the URL was created.
}

// URLStats contains statistics related to a shortened URL.
type URLStats struct {
	Clicks         int64      // Clicks is the number of recorded visits.
	LastAccessedAt *time.Time // LastAccessedAt is the time of the latest visit, nil if never visited.
}

// Clone returns a deep copy of the URL.
func (u *URL) Clone() *URL {
	c := *u
	if u.LastAccessedAt != nil {
		t := *u.LastAccessedAt
		c.LastAccessedAt = &t
	}
	return &c
}

// View builds the record view of the URL for the given base URL.
func (u *URL) View(baseURL string) URLView {
	return URLView{
		URL:      *u.Clone(),
		ShortURL: ShortURL(baseURL, u.ShortCode),
	}
}

// URLView is a URL together with its display short URL.
type URLView struct {
	URL
	ShortURL string
}

// ShortURL joins base URL and short code.
func ShortURL(baseURL, shortCode string) string {
	return strings.TrimRight(baseURL, "/") + "/" + shortCode
}
