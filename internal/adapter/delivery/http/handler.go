package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httplog/v2"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"github.com/vadimbarashkov/shorturl/internal/entity"
	"github.com/vadimbarashkov/shorturl/pkg/response"
)

func handlePing(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "pong")
}

type urlUseCase interface {
	ShortenURL(ctx context.Context, originalURL, baseURL string) (*entity.URLView, error)
	ResolveShortCode(ctx context.Context, shortCode string) (*entity.URL, error)
	GetURLStats(ctx context.Context, shortCode, baseURL string) (*entity.URLView, error)
	RecordVisit(ctx context.Context, shortCode, baseURL string) (*entity.URLView, error)
	ListURLs(ctx context.Context, baseURL string) ([]entity.URLView, error)
}

type urlHandler struct {
	useCase  urlUseCase
	validate *validator.Validate
	baseURL  string
}

func newURLHandler(useCase urlUseCase, validate *validator.Validate, baseURL string) *urlHandler {
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &urlHandler{
		useCase:  useCase,
		validate: validate,
		baseURL:  strings.TrimRight(baseURL, "/"),
	}
}

// requestBaseURL returns the configured base URL or, when none is set, the
// scheme and host the client used to reach the server.
func (h *urlHandler) requestBaseURL(r *http.Request) string {
	if h.baseURL != "" {
		return h.baseURL
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = strings.ToLower(strings.TrimSpace(strings.SplitN(proto, ",", 2)[0]))
	}

	return scheme + "://" + r.Host
}

// decodeAndValidate reads a JSON body into v. An empty body decodes to the
// zero value so that validation reports the missing field.
func (h *urlHandler) decodeAndValidate(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := render.DecodeJSON(r.Body, v); err != nil && !errors.Is(err, io.EOF) {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.InvalidRequestBody)
		return false
	}

	if err := h.validate.Struct(v); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.ValidationError(err))
		return false
	}

	return true
}

// renderUseCaseError maps use case errors to responses. Anything other than
// a missing URL is logged and hidden behind a generic 500.
func renderUseCaseError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, entity.ErrURLNotFound) {
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, response.NotFound)
		return
	}

	httplog.LogEntrySetField(r.Context(), "err", slog.AnyValue(err))

	render.Status(r, http.StatusInternalServerError)
	render.JSON(w, r, response.InternalError)
}

func (h *urlHandler) encodeURL(w http.ResponseWriter, r *http.Request) {
	var req encodeRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	view, err := h.useCase.ShortenURL(r.Context(), req.OriginalURL, h.requestBaseURL(r))
	if err != nil {
		renderUseCaseError(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, encodeResponse{
		OriginalURL: view.OriginalURL,
		ShortURL:    view.ShortURL,
		ShortCode:   view.ShortCode,
	})
}

func (h *urlHandler) decodeURL(w http.ResponseWriter, r *http.Request) {
	var req decodeRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	url, err := h.useCase.ResolveShortCode(r.Context(), req.ShortCode)
	if err != nil {
		renderUseCaseError(w, r, err)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, decodeResponse{OriginalURL: url.OriginalURL})
}

func (h *urlHandler) listURLs(w http.ResponseWriter, r *http.Request) {
	views, err := h.useCase.ListURLs(r.Context(), h.requestBaseURL(r))
	if err != nil {
		renderUseCaseError(w, r, err)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, toURLResponses(views))
}

func (h *urlHandler) getURLStats(w http.ResponseWriter, r *http.Request) {
	shortCode := chi.URLParam(r, "shortCode")

	view, err := h.useCase.GetURLStats(r.Context(), shortCode, h.requestBaseURL(r))
	if err != nil {
		renderUseCaseError(w, r, err)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, toURLResponse(view))
}

func (h *urlHandler) redirectURL(w http.ResponseWriter, r *http.Request) {
	shortCode := chi.URLParam(r, "shortCode")

	view, err := h.useCase.RecordVisit(r.Context(), shortCode, h.requestBaseURL(r))
	if err != nil {
		renderUseCaseError(w, r, err)
		return
	}

	http.Redirect(w, r, view.OriginalURL, http.StatusFound)
}
