package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vadimbarashkov/shorturl/internal/entity"
)

const defaultMaxAttempts = 10

type urlRepository interface {
	Save(ctx context.Context, url *entity.URL) error
	RetrieveByShortCode(ctx context.Context, shortCode string) (*entity.URL, error)
	Update(ctx context.Context, shortCode string, fn func(url *entity.URL) error) (*entity.URL, error)
	List(ctx context.Context) ([]entity.URL, error)
}

type codeGenerator interface {
	Generate() (string, error)
}

// Clock provides the current time.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now().UTC() }

type Option func(*URLUseCase)

// WithMaxAttempts bounds how many codes ShortenURL tries before giving up.
func WithMaxAttempts(n int) Option {
	return func(uc *URLUseCase) {
		if n > 0 {
			uc.maxAttempts = n
		}
	}
}

func WithClock(c Clock) Option {
	return func(uc *URLUseCase) {
		uc.clock = c
	}
}

// WithReservedCodes excludes codes that would shadow other routes.
func WithReservedCodes(codes ...string) Option {
	return func(uc *URLUseCase) {
		for _, c := range codes {
			uc.reserved[c] = struct{}{}
		}
	}
}

type URLUseCase struct {
	urlRepo     urlRepository
	codeGen     codeGenerator
	clock       Clock
	maxAttempts int
	reserved    map[string]struct{}
}

func New(urlRepo urlRepository, codeGen codeGenerator, opts ...Option) *URLUseCase {
	uc := &URLUseCase{
		urlRepo:     urlRepo,
		codeGen:     codeGen,
		clock:       realClock{},
		maxAttempts: defaultMaxAttempts,
		reserved:    make(map[string]struct{}),
	}

	for _, opt := range opts {
		opt(uc)
	}

	return uc
}

func (uc *URLUseCase) ShortenURL(ctx context.Context, originalURL, baseURL string) (*entity.URLView, error) {
	const op = "usecase.URLUseCase.ShortenURL"

	for i := 0; i < uc.maxAttempts; i++ {
		shortCode, err := uc.codeGen.Generate()
		if err != nil {
			return nil, fmt.Errorf("%s: failed to generate short code: %w", op, err)
		}

		if _, ok := uc.reserved[shortCode]; ok {
			continue
		}

		url := &entity.URL{
			ShortCode:   shortCode,
			OriginalURL: originalURL,
			CreatedAt:   uc.clock.Now(),
		}

		if err := uc.urlRepo.Save(ctx, url); err != nil {
			if errors.Is(err, entity.ErrShortCodeExists) {
				continue
			}

			return nil, fmt.Errorf("%s: failed to shorten url: %w", op, err)
		}

		view := url.View(baseURL)
		return &view, nil
	}

	return nil, fmt.Errorf("%s: %d attempts: %w", op, uc.maxAttempts, entity.ErrCodeSpaceExhausted)
}

func (uc *URLUseCase) ResolveShortCode(ctx context.Context, shortCode string) (*entity.URL, error) {
	const op = "usecase.URLUseCase.ResolveShortCode"

	url, err := uc.urlRepo.RetrieveByShortCode(ctx, shortCode)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to resolve short code: %w", op, err)
	}

	return url, nil
}

func (uc *URLUseCase) GetURLStats(ctx context.Context, shortCode, baseURL string) (*entity.URLView, error) {
	const op = "usecase.URLUseCase.GetURLStats"

	url, err := uc.urlRepo.RetrieveByShortCode(ctx, shortCode)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to get url stats: %w", op, err)
	}

	view := url.View(baseURL)
	return &view, nil
}

// RecordVisit adds one click and moves LastAccessedAt forward, never back.
func (uc *URLUseCase) RecordVisit(ctx context.Context, shortCode, baseURL string) (*entity.URLView, error) {
	const op = "usecase.URLUseCase.RecordVisit"

	now := uc.clock.Now()

	url, err := uc.urlRepo.Update(ctx, shortCode, func(url *entity.URL) error {
		url.Clicks++
		if url.LastAccessedAt == nil || now.After(*url.LastAccessedAt) {
			url.LastAccessedAt = &now
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: failed to record visit: %w", op, err)
	}

	view := url.View(baseURL)
	return &view, nil
}

func (uc *URLUseCase) ListURLs(ctx context.Context, baseURL string) ([]entity.URLView, error) {
	const op = "usecase.URLUseCase.ListURLs"

	urls, err := uc.urlRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to list urls: %w", op, err)
	}

	views := make([]entity.URLView, 0, len(urls))
	for i := range urls {
		views = append(views, urls[i].View(baseURL))
	}

	return views, nil
}
