package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestURL_Clone(t *testing.T) {
	accessed := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	url := &URL{
		ShortCode:   "abc123",
		OriginalURL: "https://example.com",
		URLStats: URLStats{
			Clicks:         3,
			LastAccessedAt: &accessed,
		},
	}

	c := url.Clone()
	c.Clicks = 10
	*c.LastAccessedAt = accessed.Add(time.Hour)

	assert.Equal(t, int64(3), url.Clicks)
	assert.Equal(t, accessed, *url.LastAccessedAt)
}

func TestURL_View(t *testing.T) {
	url := &URL{ShortCode: "abc123", OriginalURL: "https://example.com"}

	tests := []struct {
		name    string
		baseURL string
		want    string
	}{
		{
			name:    "plain base url",
			baseURL: "http://localhost:8080",
			want:    "http://localhost:8080/abc123",
		},
		{
			name:    "trailing slash",
			baseURL: "https://sho.rt/",
			want:    "https://sho.rt/abc123",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			view := url.View(tt.baseURL)

			assert.Equal(t, tt.want, view.ShortURL)
			assert.Equal(t, "abc123", view.ShortCode)
			assert.Equal(t, "https://example.com", view.OriginalURL)
		})
	}
}
