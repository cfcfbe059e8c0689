package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/vadimbarashkov/shorturl/internal/entity"
)

const uniqueViolationErrCode = "23505"

func isUniqueViolationError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.SQLState() == uniqueViolationErrCode
}

const columns = `short_code, original_url, clicks, created_at, last_accessed_at`

type urlDB struct {
	ShortCode      string       `db:"short_code"`
	OriginalURL    string       `db:"original_url"`
	Clicks         int64        `db:"clicks"`
	CreatedAt      time.Time    `db:"created_at"`
	LastAccessedAt sql.NullTime `db:"last_accessed_at"`
}

func (u *urlDB) toEntity() *entity.URL {
	url := &entity.URL{
		ShortCode:   u.ShortCode,
		OriginalURL: u.OriginalURL,
		URLStats: entity.URLStats{
			Clicks: u.Clicks,
		},
		CreatedAt: u.CreatedAt,
	}
	if u.LastAccessedAt.Valid {
		t := u.LastAccessedAt.Time
		url.LastAccessedAt = &t
	}
	return url
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

type URLRepository struct {
	db *sqlx.DB
}

func NewURLRepository(db *sqlx.DB) *URLRepository {
	return &URLRepository{db: db}
}

func (r *URLRepository) Save(ctx context.Context, url *entity.URL) error {
	const op = "adapter.repository.postgres.URLRepository.Save"
	const query = `INSERT INTO urls(short_code, original_url, clicks, created_at, last_accessed_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := r.db.ExecContext(ctx, query,
		url.ShortCode, url.OriginalURL, url.Clicks, url.CreatedAt, nullTime(url.LastAccessedAt))
	if err != nil {
		if isUniqueViolationError(err) {
			return fmt.Errorf("%s: %w", op, entity.ErrShortCodeExists)
		}

		return fmt.Errorf("%s: %w: failed to insert into urls table: %w", op, entity.ErrPersistence, err)
	}

	return nil
}

func (r *URLRepository) RetrieveByShortCode(ctx context.Context, shortCode string) (*entity.URL, error) {
	const op = "adapter.repository.postgres.URLRepository.RetrieveByShortCode"
	const query = `SELECT ` + columns + ` FROM urls WHERE short_code = $1`

	var url urlDB

	if err := r.db.GetContext(ctx, &url, query, shortCode); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, entity.ErrURLNotFound)
		}

		return nil, fmt.Errorf("%s: %w: failed to get row from urls table: %w", op, entity.ErrPersistence, err)
	}

	return url.toEntity(), nil
}

// Update locks the row, applies fn and writes back the stats columns in a
// single transaction.
func (r *URLRepository) Update(ctx context.Context, shortCode string, fn func(url *entity.URL) error) (*entity.URL, error) {
	const op = "adapter.repository.postgres.URLRepository.Update"
	const selectQuery = `SELECT ` + columns + ` FROM urls WHERE short_code = $1 FOR UPDATE`
	const updateQuery = `UPDATE urls SET clicks = $1, last_accessed_at = $2
		WHERE short_code = $3 RETURNING ` + columns

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: failed to begin transaction: %w", op, entity.ErrPersistence, err)
	}
	defer tx.Rollback()

	var row urlDB

	if err := tx.GetContext(ctx, &row, selectQuery, shortCode); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, entity.ErrURLNotFound)
		}

		return nil, fmt.Errorf("%s: %w: failed to lock urls table row: %w", op, entity.ErrPersistence, err)
	}

	url := row.toEntity()
	if err := fn(url); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := tx.GetContext(ctx, &row, updateQuery, url.Clicks, nullTime(url.LastAccessedAt), shortCode); err != nil {
		return nil, fmt.Errorf("%s: %w: failed to update urls table row: %w", op, entity.ErrPersistence, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%s: %w: failed to commit transaction: %w", op, entity.ErrPersistence, err)
	}

	return row.toEntity(), nil
}

func (r *URLRepository) List(ctx context.Context) ([]entity.URL, error) {
	const op = "adapter.repository.postgres.URLRepository.List"
	const query = `SELECT ` + columns + ` FROM urls ORDER BY created_at DESC, short_code`

	var rows []urlDB

	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("%s: %w: failed to select from urls table: %w", op, entity.ErrPersistence, err)
	}

	urls := make([]entity.URL, 0, len(rows))
	for i := range rows {
		urls = append(urls, *rows[i].toEntity())
	}

	return urls, nil
}
