// Package mongodb stores URLs as documents keyed by short code.
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/vadimbarashkov/shorturl/internal/entity"
)

// maxUpdateRetries bounds compare-and-set attempts against concurrent writers.
const maxUpdateRetries = 16

var errConflict = errors.New("concurrent update conflict")

type urlDoc struct {
	ShortCode      string     `bson:"_id"`
	OriginalURL    string     `bson:"original_url"`
	Clicks         int64      `bson:"clicks"`
	CreatedAt      time.Time  `bson:"created_at"`
	LastAccessedAt *time.Time `bson:"last_accessed_at"`
	Rev            int64      `bson:"rev"`
}

func (d *urlDoc) toEntity() *entity.URL {
	url := &entity.URL{
		ShortCode:   d.ShortCode,
		OriginalURL: d.OriginalURL,
		URLStats: entity.URLStats{
			Clicks: d.Clicks,
		},
		CreatedAt: d.CreatedAt.UTC(),
	}
	if d.LastAccessedAt != nil {
		t := d.LastAccessedAt.UTC()
		url.LastAccessedAt = &t
	}
	return url
}

// Connect dials the deployment at uri and verifies it with a ping.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	const op = "adapter.repository.mongodb.Connect"

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("%s: failed to connect to mongo: %w", op, err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("%s: failed to ping mongo: %w", op, err)
	}

	return client, nil
}

type URLRepository struct {
	coll *mongo.Collection
}

func NewURLRepository(coll *mongo.Collection) *URLRepository {
	return &URLRepository{coll: coll}
}

// EnsureIndexes creates the index List sorts on.
func (r *URLRepository) EnsureIndexes(ctx context.Context) error {
	const op = "adapter.repository.mongodb.URLRepository.EnsureIndexes"

	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "created_at", Value: -1}},
		Options: options.Index().SetName("created_at_desc"),
	})
	if err != nil {
		return fmt.Errorf("%s: %w: failed to create index: %w", op, entity.ErrPersistence, err)
	}

	return nil
}

func (r *URLRepository) Save(ctx context.Context, url *entity.URL) error {
	const op = "adapter.repository.mongodb.URLRepository.Save"

	doc := urlDoc{
		ShortCode:      url.ShortCode,
		OriginalURL:    url.OriginalURL,
		Clicks:         url.Clicks,
		CreatedAt:      url.CreatedAt,
		LastAccessedAt: url.LastAccessedAt,
	}

	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%s: %w", op, entity.ErrShortCodeExists)
		}

		return fmt.Errorf("%s: %w: failed to insert document: %w", op, entity.ErrPersistence, err)
	}

	return nil
}

func (r *URLRepository) RetrieveByShortCode(ctx context.Context, shortCode string) (*entity.URL, error) {
	const op = "adapter.repository.mongodb.URLRepository.RetrieveByShortCode"

	doc, err := r.find(ctx, shortCode)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return doc.toEntity(), nil
}

// Update reads the document, applies fn and writes the stats back only if
// nobody changed the document in between, retrying otherwise.
func (r *URLRepository) Update(ctx context.Context, shortCode string, fn func(url *entity.URL) error) (*entity.URL, error) {
	const op = "adapter.repository.mongodb.URLRepository.Update"

	for i := 0; i < maxUpdateRetries; i++ {
		doc, err := r.find(ctx, shortCode)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		url := doc.toEntity()
		if err := fn(url); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		filter := bson.M{"_id": shortCode, "rev": doc.Rev}
		update := bson.M{
			"$set": bson.M{
				"clicks":           url.Clicks,
				"last_accessed_at": url.LastAccessedAt,
			},
			"$inc": bson.M{"rev": 1},
		}

		res, err := r.coll.UpdateOne(ctx, filter, update)
		if err != nil {
			return nil, fmt.Errorf("%s: %w: failed to update document: %w", op, entity.ErrPersistence, err)
		}
		if res.MatchedCount == 1 {
			doc.Clicks = url.Clicks
			doc.LastAccessedAt = url.LastAccessedAt
			return doc.toEntity(), nil
		}
	}

	return nil, fmt.Errorf("%s: %w: %w", op, entity.ErrPersistence, errConflict)
}

func (r *URLRepository) List(ctx context.Context) ([]entity.URL, error) {
	const op = "adapter.repository.mongodb.URLRepository.List"

	opts := options.Find().SetSort(bson.D{
		{Key: "created_at", Value: -1},
		{Key: "_id", Value: 1},
	})

	cur, err := r.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: failed to find documents: %w", op, entity.ErrPersistence, err)
	}

	var docs []urlDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("%s: %w: failed to decode documents: %w", op, entity.ErrPersistence, err)
	}

	urls := make([]entity.URL, 0, len(docs))
	for i := range docs {
		urls = append(urls, *docs[i].toEntity())
	}

	return urls, nil
}

func (r *URLRepository) find(ctx context.Context, shortCode string) (*urlDoc, error) {
	var doc urlDoc

	if err := r.coll.FindOne(ctx, bson.M{"_id": shortCode}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, entity.ErrURLNotFound
		}

		return nil, fmt.Errorf("%w: failed to find document: %w", entity.ErrPersistence, err)
	}

	return &doc, nil
}
