package http

import (
	"time"

	"github.com/vadimbarashkov/shorturl/internal/entity"
)

type encodeRequest struct {
	OriginalURL string `json:"originalUrl" validate:"required,url"`
}

type encodeResponse struct {
	OriginalURL string `json:"originalUrl"`
	ShortURL    string `json:"shortUrl"`
	ShortCode   string `json:"shortCode"`
}

type decodeRequest struct {
	ShortCode string `json:"shortCode" validate:"required"`
}

type decodeResponse struct {
	OriginalURL string `json:"originalUrl"`
}

// urlResponse is the full record view returned by /list and /stats.
type urlResponse struct {
	ShortCode      string     `json:"shortCode"`
	OriginalURL    string     `json:"originalUrl"`
	ShortURL       string     `json:"shortUrl"`
	CreatedAt      time.Time  `json:"createdAt"`
	LastAccessedAt *time.Time `json:"lastAccessedAt"`
	Clicks         int64      `json:"clicks"`
}

func toURLResponse(view *entity.URLView) urlResponse {
	return urlResponse{
		ShortCode:      view.ShortCode,
		OriginalURL:    view.OriginalURL,
		ShortURL:       view.ShortURL,
		CreatedAt:      view.CreatedAt,
		LastAccessedAt: view.LastAccessedAt,
		Clicks:         view.Clicks,
	}
}

func toURLResponses(views []entity.URLView) []urlResponse {
	resp := make([]urlResponse, 0, len(views))
	for i := range views {
		resp = append(resp, toURLResponse(&views[i]))
	}

	return resp
}
