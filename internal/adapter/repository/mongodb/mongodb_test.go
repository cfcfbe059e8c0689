package mongodb

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/vadimbarashkov/shorturl/internal/entity"
)

var (
	createdAt  = time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	accessedAt = createdAt.Add(time.Hour)
)

func incClicks(url *entity.URL) error {
	url.Clicks++
	return nil
}

func urlBSON(code string, clicks int64, rev int64) bson.D {
	return bson.D{
		{Key: "_id", Value: code},
		{Key: "original_url", Value: "https://example.com"},
		{Key: "clicks", Value: clicks},
		{Key: "created_at", Value: createdAt},
		{Key: "last_accessed_at", Value: nil},
		{Key: "rev", Value: rev},
	}
}

func findResponse(mt *mtest.T, docs ...bson.D) bson.D {
	return mtest.CreateCursorResponse(0, mt.Coll.Database().Name()+"."+mt.Coll.Name(), mtest.FirstBatch, docs...)
}

func updateResponse(matched int) bson.D {
	return bson.D{
		{Key: "ok", Value: 1},
		{Key: "n", Value: matched},
		{Key: "nModified", Value: matched},
	}
}

func TestURLRepository_Save(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("short code exists", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index:   0,
			Code:    11000,
			Message: "duplicate key error",
		}))

		err := NewURLRepository(mt.Coll).Save(context.Background(), &entity.URL{ShortCode: "abc123"})

		assert.ErrorIs(mt, err, entity.ErrShortCodeExists)
	})

	mt.Run("unknown error", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code:    1,
			Message: "unknown error",
		}))

		err := NewURLRepository(mt.Coll).Save(context.Background(), &entity.URL{ShortCode: "abc123"})

		assert.ErrorIs(mt, err, entity.ErrPersistence)
	})

	mt.Run("success", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		err := NewURLRepository(mt.Coll).Save(context.Background(), &entity.URL{
			ShortCode:   "abc123",
			OriginalURL: "https://example.com",
			CreatedAt:   createdAt,
		})

		assert.NoError(mt, err)
	})
}

func TestURLRepository_RetrieveByShortCode(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("url not found", func(mt *mtest.T) {
		mt.AddMockResponses(findResponse(mt))

		url, err := NewURLRepository(mt.Coll).RetrieveByShortCode(context.Background(), "abc123")

		assert.ErrorIs(mt, err, entity.ErrURLNotFound)
		assert.Nil(mt, url)
	})

	mt.Run("success", func(mt *mtest.T) {
		mt.AddMockResponses(findResponse(mt, urlBSON("abc123", 2, 2)))

		url, err := NewURLRepository(mt.Coll).RetrieveByShortCode(context.Background(), "abc123")

		require.NoError(mt, err)
		assert.Equal(mt, "abc123", url.ShortCode)
		assert.Equal(mt, "https://example.com", url.OriginalURL)
		assert.Equal(mt, int64(2), url.Clicks)
		assert.Nil(mt, url.LastAccessedAt)
		assert.True(mt, createdAt.Equal(url.CreatedAt))
	})
}

func TestURLRepository_Update(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("url not found", func(mt *mtest.T) {
		mt.AddMockResponses(findResponse(mt))

		url, err := NewURLRepository(mt.Coll).Update(context.Background(), "abc123", incClicks)

		assert.ErrorIs(mt, err, entity.ErrURLNotFound)
		assert.Nil(mt, url)
	})

	mt.Run("mutator error", func(mt *mtest.T) {
		errMutate := errors.New("mutate error")
		mt.AddMockResponses(findResponse(mt, urlBSON("abc123", 0, 0)))

		url, err := NewURLRepository(mt.Coll).Update(context.Background(), "abc123", func(*entity.URL) error {
			return errMutate
		})

		assert.ErrorIs(mt, err, errMutate)
		assert.Nil(mt, url)
	})

	mt.Run("retry on conflict", func(mt *mtest.T) {
		mt.AddMockResponses(
			findResponse(mt, urlBSON("abc123", 1, 1)),
			updateResponse(0),
			findResponse(mt, urlBSON("abc123", 2, 2)),
			updateResponse(1),
		)

		url, err := NewURLRepository(mt.Coll).Update(context.Background(), "abc123", func(url *entity.URL) error {
			url.Clicks++
			url.LastAccessedAt = &accessedAt
			return nil
		})

		require.NoError(mt, err)
		assert.Equal(mt, int64(3), url.Clicks)
		require.NotNil(mt, url.LastAccessedAt)
		assert.True(mt, accessedAt.Equal(*url.LastAccessedAt))
	})
}

func TestURLRepository_List(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("unknown error", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code:    1,
			Message: "unknown error",
		}))

		urls, err := NewURLRepository(mt.Coll).List(context.Background())

		assert.ErrorIs(mt, err, entity.ErrPersistence)
		assert.Nil(mt, urls)
	})

	mt.Run("success", func(mt *mtest.T) {
		mt.AddMockResponses(findResponse(mt, urlBSON("new123", 0, 0), urlBSON("old123", 4, 4)))

		urls, err := NewURLRepository(mt.Coll).List(context.Background())

		require.NoError(mt, err)
		require.Len(mt, urls, 2)
		assert.Equal(mt, "new123", urls[0].ShortCode)
		assert.Equal(mt, int64(4), urls[1].Clicks)
	})
}

func TestURLRepository_EnsureIndexes(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("success", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		err := NewURLRepository(mt.Coll).EnsureIndexes(context.Background())

		assert.NoError(mt, err)
	})
}
