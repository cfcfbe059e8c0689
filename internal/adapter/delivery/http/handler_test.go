package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gavv/httpexpect/v2"
	"github.com/go-chi/httplog/v2"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	"github.com/vadimbarashkov/shorturl/internal/entity"
)

type mockURLUseCase struct {
	mock.Mock
}

func (m *mockURLUseCase) ShortenURL(ctx context.Context, originalURL, baseURL string) (*entity.URLView, error) {
	args := m.Called(ctx, originalURL, baseURL)
	view, _ := args.Get(0).(*entity.URLView)
	return view, args.Error(1)
}

func (m *mockURLUseCase) ResolveShortCode(ctx context.Context, shortCode string) (*entity.URL, error) {
	args := m.Called(ctx, shortCode)
	url, _ := args.Get(0).(*entity.URL)
	return url, args.Error(1)
}

func (m *mockURLUseCase) GetURLStats(ctx context.Context, shortCode, baseURL string) (*entity.URLView, error) {
	args := m.Called(ctx, shortCode, baseURL)
	view, _ := args.Get(0).(*entity.URLView)
	return view, args.Error(1)
}

func (m *mockURLUseCase) RecordVisit(ctx context.Context, shortCode, baseURL string) (*entity.URLView, error) {
	args := m.Called(ctx, shortCode, baseURL)
	view, _ := args.Get(0).(*entity.URLView)
	return view, args.Error(1)
}

func (m *mockURLUseCase) ListURLs(ctx context.Context, baseURL string) ([]entity.URLView, error) {
	args := m.Called(ctx, baseURL)
	views, _ := args.Get(0).([]entity.URLView)
	return views, args.Error(1)
}

var createdAt = time.Date(2024, 10, 1, 12, 0, 0, 0, time.UTC)

func newView(baseURL, shortCode, originalURL string, clicks int64) *entity.URLView {
	url := entity.URL{
		ShortCode:   shortCode,
		OriginalURL: originalURL,
		URLStats:    entity.URLStats{Clicks: clicks},
		CreatedAt:   createdAt,
	}
	view := url.View(baseURL)
	return &view
}

type HandlersTestSuite struct {
	suite.Suite
	logger         *httplog.Logger
	urlUseCaseMock *mockURLUseCase
	server         *httptest.Server
	e              *httpexpect.Expect
}

func (suite *HandlersTestSuite) SetupSuite() {
	suite.logger = httplog.NewLogger("", httplog.Options{Writer: io.Discard})
}

func (suite *HandlersTestSuite) SetupSubTest() {
	suite.urlUseCaseMock = new(mockURLUseCase)
	suite.server, suite.e = suite.newServer(Config{})
}

func (suite *HandlersTestSuite) TearDownSubTest() {
	suite.urlUseCaseMock.AssertExpectations(suite.T())
}

func (suite *HandlersTestSuite) newServer(cfg Config) (*httptest.Server, *httpexpect.Expect) {
	router := NewRouter(suite.logger, suite.urlUseCaseMock, cfg)
	server := httptest.NewServer(router)
	suite.T().Cleanup(func() {
		server.Close()
	})

	e := httpexpect.WithConfig(httpexpect.Config{
		BaseURL:  server.URL,
		Reporter: httpexpect.NewAssertReporter(suite.T()),
		Client: &http.Client{
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	})

	return server, e
}

func (suite *HandlersTestSuite) TestPing() {
	suite.Run("success", func() {
		suite.e.GET("/ping").
			Expect().
			Status(http.StatusOK).
			Text().IsEqual("pong")
	})
}

func (suite *HandlersTestSuite) TestEncodeURL() {
	const path = "/encode"

	suite.Run("empty request body", func() {
		suite.e.POST(path).
			Expect().
			Status(http.StatusBadRequest).
			JSON().Object().
			HasValue("error", "originalUrl is required")
	})

	suite.Run("missing original url", func() {
		suite.e.POST(path).
			WithJSON(map[string]string{}).
			Expect().
			Status(http.StatusBadRequest).
			JSON().Object().
			HasValue("error", "originalUrl is required")
	})

	suite.Run("invalid request body", func() {
		suite.e.POST(path).
			WithBytes([]byte("{not json")).
			WithHeader("Content-Type", "application/json").
			Expect().
			Status(http.StatusBadRequest).
			JSON().Object().
			HasValue("error", "Invalid request body")
	})

	suite.Run("invalid url", func() {
		resp := suite.e.POST(path).
			WithJSON(map[string]string{"originalUrl": "not-a-url"}).
			Expect().
			Status(http.StatusBadRequest).
			JSON().Object()

		resp.HasValue("error", "Invalid URL")
		resp.Value("details").Array().Value(0).Object().
			HasValue("field", "originalUrl")
	})

	suite.Run("code space exhausted", func() {
		suite.urlUseCaseMock.
			On("ShortenURL", mock.Anything, "https://example.com", suite.server.URL).
			Once().
			Return(nil, fmt.Errorf("usecase.URLUseCase.ShortenURL: %w", entity.ErrCodeSpaceExhausted))

		suite.e.POST(path).
			WithJSON(map[string]string{"originalUrl": "https://example.com"}).
			Expect().
			Status(http.StatusInternalServerError).
			JSON().Object().
			IsEqual(map[string]any{"error": "Internal Server Error"})
	})

	suite.Run("panic", func() {
		suite.urlUseCaseMock.
			On("ShortenURL", mock.Anything, "https://example.com", suite.server.URL).
			Once().
			Run(func(mock.Arguments) { panic("boom") })

		suite.e.POST(path).
			WithJSON(map[string]string{"originalUrl": "https://example.com"}).
			Expect().
			Status(http.StatusInternalServerError).
			JSON().Object().
			HasValue("error", "Internal Server Error")
	})

	suite.Run("success", func() {
		suite.urlUseCaseMock.
			On("ShortenURL", mock.Anything, "https://example.com", suite.server.URL).
			Once().
			Return(newView(suite.server.URL, "abc123", "https://example.com", 0), nil)

		resp := suite.e.POST(path).
			WithJSON(map[string]string{"originalUrl": "https://example.com"}).
			Expect().
			Status(http.StatusCreated).
			JSON().Object()

		resp.IsEqual(map[string]any{
			"originalUrl": "https://example.com",
			"shortUrl":    suite.server.URL + "/abc123",
			"shortCode":   "abc123",
		})
	})

	suite.Run("configured base url", func() {
		_, e := suite.newServer(Config{BaseURL: "https://sho.rt/"})

		suite.urlUseCaseMock.
			On("ShortenURL", mock.Anything, "https://example.com", "https://sho.rt").
			Once().
			Return(newView("https://sho.rt", "abc123", "https://example.com", 0), nil)

		e.POST(path).
			WithJSON(map[string]string{"originalUrl": "https://example.com"}).
			Expect().
			Status(http.StatusCreated).
			JSON().Object().
			HasValue("shortUrl", "https://sho.rt/abc123")
	})

	suite.Run("forwarded proto", func() {
		host := suite.server.Listener.Addr().String()

		suite.urlUseCaseMock.
			On("ShortenURL", mock.Anything, "https://example.com", "https://"+host).
			Once().
			Return(newView("https://"+host, "abc123", "https://example.com", 0), nil)

		suite.e.POST(path).
			WithHeader("X-Forwarded-Proto", "https").
			WithJSON(map[string]string{"originalUrl": "https://example.com"}).
			Expect().
			Status(http.StatusCreated)
	})
}

func (suite *HandlersTestSuite) TestDecodeURL() {
	const path = "/decode"

	suite.Run("missing short code", func() {
		suite.e.POST(path).
			WithJSON(map[string]string{}).
			Expect().
			Status(http.StatusBadRequest).
			JSON().Object().
			HasValue("error", "shortCode is required")
	})

	suite.Run("url not found", func() {
		suite.urlUseCaseMock.
			On("ResolveShortCode", mock.Anything, "unknown123").
			Once().
			Return(nil, entity.ErrURLNotFound)

		suite.e.POST(path).
			WithJSON(map[string]string{"shortCode": "unknown123"}).
			Expect().
			Status(http.StatusNotFound).
			JSON().Object().
			IsEqual(map[string]any{"error": "Short URL not found"})
	})

	suite.Run("server error", func() {
		suite.urlUseCaseMock.
			On("ResolveShortCode", mock.Anything, "abc123").
			Once().
			Return(nil, entity.ErrPersistence)

		suite.e.POST(path).
			WithJSON(map[string]string{"shortCode": "abc123"}).
			Expect().
			Status(http.StatusInternalServerError).
			JSON().Object().
			HasValue("error", "Internal Server Error")
	})

	suite.Run("success", func() {
		suite.urlUseCaseMock.
			On("ResolveShortCode", mock.Anything, "abc123").
			Once().
			Return(&entity.URL{ShortCode: "abc123", OriginalURL: "https://example.com"}, nil)

		suite.e.POST(path).
			WithJSON(map[string]string{"shortCode": "abc123"}).
			Expect().
			Status(http.StatusOK).
			JSON().Object().
			IsEqual(map[string]any{"originalUrl": "https://example.com"})
	})
}

func (suite *HandlersTestSuite) TestListURLs() {
	const path = "/list"

	suite.Run("empty", func() {
		suite.urlUseCaseMock.
			On("ListURLs", mock.Anything, suite.server.URL).
			Once().
			Return([]entity.URLView{}, nil)

		suite.e.GET(path).
			Expect().
			Status(http.StatusOK).
			JSON().Array().IsEmpty()
	})

	suite.Run("server error", func() {
		suite.urlUseCaseMock.
			On("ListURLs", mock.Anything, suite.server.URL).
			Once().
			Return(nil, errors.New("unknown error"))

		suite.e.GET(path).
			Expect().
			Status(http.StatusInternalServerError).
			JSON().Object().
			HasValue("error", "Internal Server Error")
	})

	suite.Run("success", func() {
		suite.urlUseCaseMock.
			On("ListURLs", mock.Anything, suite.server.URL).
			Once().
			Return([]entity.URLView{
				*newView(suite.server.URL, "def456", "https://example.org", 2),
				*newView(suite.server.URL, "abc123", "https://example.com", 0),
			}, nil)

		arr := suite.e.GET(path).
			Expect().
			Status(http.StatusOK).
			JSON().Array()

		arr.Length().IsEqual(2)
		first := arr.Value(0).Object()
		first.HasValue("shortCode", "def456")
		first.HasValue("clicks", 2)
		first.HasValue("shortUrl", suite.server.URL+"/def456")
		arr.Value(1).Object().HasValue("shortCode", "abc123")
	})
}

func (suite *HandlersTestSuite) TestGetURLStats() {
	path := "/stats/%s"

	suite.Run("url not found", func() {
		suite.urlUseCaseMock.
			On("GetURLStats", mock.Anything, "unknown123", suite.server.URL).
			Once().
			Return(nil, entity.ErrURLNotFound)

		suite.e.GET(fmt.Sprintf(path, "unknown123")).
			Expect().
			Status(http.StatusNotFound).
			JSON().Object().
			IsEqual(map[string]any{"error": "Short URL not found"})
	})

	suite.Run("success", func() {
		suite.urlUseCaseMock.
			On("GetURLStats", mock.Anything, "abc123", suite.server.URL).
			Once().
			Return(newView(suite.server.URL, "abc123", "https://example.com", 0), nil)

		resp := suite.e.GET(fmt.Sprintf(path, "abc123")).
			Expect().
			Status(http.StatusOK).
			JSON().Object()

		resp.HasValue("shortCode", "abc123")
		resp.HasValue("originalUrl", "https://example.com")
		resp.HasValue("shortUrl", suite.server.URL+"/abc123")
		resp.HasValue("clicks", 0)
		resp.HasValue("createdAt", createdAt.Format(time.RFC3339))
		resp.Value("lastAccessedAt").IsNull()
	})
}

func (suite *HandlersTestSuite) TestRedirectURL() {
	path := "/%s"

	suite.Run("url not found", func() {
		suite.urlUseCaseMock.
			On("RecordVisit", mock.Anything, "unknown123", suite.server.URL).
			Once().
			Return(nil, entity.ErrURLNotFound)

		suite.e.GET(fmt.Sprintf(path, "unknown123")).
			Expect().
			Status(http.StatusNotFound).
			JSON().Object().
			HasValue("error", "Short URL not found")
	})

	suite.Run("server error", func() {
		suite.urlUseCaseMock.
			On("RecordVisit", mock.Anything, "abc123", suite.server.URL).
			Once().
			Return(nil, entity.ErrPersistence)

		suite.e.GET(fmt.Sprintf(path, "abc123")).
			Expect().
			Status(http.StatusInternalServerError).
			JSON().Object().
			HasValue("error", "Internal Server Error")
	})

	suite.Run("success", func() {
		suite.urlUseCaseMock.
			On("RecordVisit", mock.Anything, "abc123", suite.server.URL).
			Once().
			Return(newView(suite.server.URL, "abc123", "https://example.com", 1), nil)

		suite.e.GET(fmt.Sprintf(path, "abc123")).
			Expect().
			Status(http.StatusFound).
			Header("Location").IsEqual("https://example.com")
	})
}

func TestURLHandler(t *testing.T) {
	suite.Run(t, new(HandlersTestSuite))
}
