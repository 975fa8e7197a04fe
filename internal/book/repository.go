// AngelaMos | 2026
// repository.go

package book

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/angelamos/bookstore-api/internal/core"
	"github.com/angelamos/bookstore-api/internal/query"
)

type Repository interface {
	Create(ctx context.Context, book *Book) error
	GetByID(ctx context.Context, id string) (*Book, error)
	GetWithOwner(ctx context.Context, id string) (*Book, *OwnerResponse, error)
	Update(ctx context.Context, book *Book) error
	SetCover(ctx context.Context, id string, url, storageID *string) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, q query.Query) ([]Book, int, error)
	ListProjected(
		ctx context.Context,
		q query.Query,
	) ([]map[string]any, int, error)
}

const bookColumns = `id, title, author, description, isbn, genre, price,
		discount_price, stock, cover_url, cover_storage_id, rating,
		rating_count, is_active, is_featured, owner_id, created_at,
		updated_at`

// bookRenderer accepts the upstream camelCase aliases alongside the column
// names themselves. cover_storage_id stays out of the projection set.
var bookRenderer = query.Renderer{
	Table: "books",
	Columns: map[string]string{
		"discountPrice": "discount_price",
		"ratingCount":   "rating_count",
		"isActive":      "is_active",
		"isFeatured":    "is_featured",
		"createdAt":     "created_at",
		"updatedAt":     "updated_at",
	},
	Default: []string{
		"id", "title", "author", "description", "isbn", "genre", "price",
		"discount_price", "stock", "cover_url", "rating", "rating_count",
		"is_active", "is_featured", "owner_id", "created_at", "updated_at",
	},
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, book *Book) error {
	stmt := `
		INSERT INTO books (
			id, title, author, description, isbn, genre, price,
			discount_price, stock, is_featured, owner_id
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING rating, rating_count, is_active, created_at, updated_at`

	err := r.db.GetContext(ctx, book, stmt,
		book.ID,
		book.Title,
		book.Author,
		book.Description,
		book.ISBN,
		book.Genre,
		book.Price,
		book.DiscountPrice,
		book.Stock,
		book.IsFeatured,
		book.OwnerID,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return fmt.Errorf("create book: %w", core.ErrDuplicateKey)
		}
		return fmt.Errorf("create book: %w", err)
	}

	return nil
}

func (r *repository) GetByID(ctx context.Context, id string) (*Book, error) {
	stmt := fmt.Sprintf(`SELECT %s FROM books WHERE id = $1`, bookColumns)

	var book Book
	err := r.db.GetContext(ctx, &book, stmt, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get book: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get book: %w", err)
	}

	return &book, nil
}

func (r *repository) GetWithOwner(
	ctx context.Context,
	id string,
) (*Book, *OwnerResponse, error) {
	stmt := `
		SELECT b.id, b.title, b.author, b.description, b.isbn, b.genre,
			b.price, b.discount_price, b.stock, b.cover_url,
			b.cover_storage_id, b.rating, b.rating_count, b.is_active,
			b.is_featured, b.owner_id, b.created_at, b.updated_at,
			u.id AS "owner.id", u.name AS "owner.name",
			u.email AS "owner.email"
		FROM books b
		JOIN users u ON u.id = b.owner_id
		WHERE b.id = $1`

	var row struct {
		Book
		Owner struct {
			ID    string `db:"id"`
			Name  string `db:"name"`
			Email string `db:"email"`
		} `db:"owner"`
	}

	err := r.db.GetContext(ctx, &row, stmt, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, fmt.Errorf("get book: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("get book: %w", err)
	}

	owner := OwnerResponse{
		ID:    row.Owner.ID,
		Name:  row.Owner.Name,
		Email: row.Owner.Email,
	}
	return &row.Book, &owner, nil
}

func (r *repository) Update(ctx context.Context, book *Book) error {
	stmt := `
		UPDATE books
		SET title = $2, author = $3, description = $4, isbn = $5,
			genre = $6, price = $7, discount_price = $8, stock = $9,
			is_active = $10, is_featured = $11, updated_at = NOW()
		WHERE id = $1`

	err := r.execOne(ctx, "update book", stmt,
		book.ID,
		book.Title,
		book.Author,
		book.Description,
		book.ISBN,
		book.Genre,
		book.Price,
		book.DiscountPrice,
		book.Stock,
		book.IsActive,
		book.IsFeatured,
	)
	if err != nil && isDuplicateKeyError(err) {
		return fmt.Errorf("update book: %w", core.ErrDuplicateKey)
	}
	return err
}

func (r *repository) SetCover(
	ctx context.Context,
	id string,
	url, storageID *string,
) error {
	stmt := `
		UPDATE books
		SET cover_url = $2, cover_storage_id = $3, updated_at = NOW()
		WHERE id = $1`

	return r.execOne(ctx, "set cover", stmt, id, url, storageID)
}

func (r *repository) Delete(ctx context.Context, id string) error {
	return r.execOne(ctx, "delete book", `DELETE FROM books WHERE id = $1`, id)
}

func (r *repository) List(
	ctx context.Context,
	q query.Query,
) ([]Book, int, error) {
	countStmt, countArgs, err := bookRenderer.Count(q)
	if err != nil {
		return nil, 0, fmt.Errorf("count books: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, countStmt, countArgs...); err != nil {
		return nil, 0, fmt.Errorf("count books: %w", badQueryValue(err))
	}

	stmt, args, err := bookRenderer.Select(q)
	if err != nil {
		return nil, 0, fmt.Errorf("list books: %w", err)
	}

	var books []Book
	if err := r.db.SelectContext(ctx, &books, stmt, args...); err != nil {
		return nil, 0, fmt.Errorf("list books: %w", badQueryValue(err))
	}

	return books, total, nil
}

// ListProjected serves field-projected listings, where rows carry only the
// columns the caller asked for.
func (r *repository) ListProjected(
	ctx context.Context,
	q query.Query,
) ([]map[string]any, int, error) {
	countStmt, countArgs, err := bookRenderer.Count(q)
	if err != nil {
		return nil, 0, fmt.Errorf("count books: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, countStmt, countArgs...); err != nil {
		return nil, 0, fmt.Errorf("count books: %w", badQueryValue(err))
	}

	stmt, args, err := bookRenderer.Select(q)
	if err != nil {
		return nil, 0, fmt.Errorf("list books: %w", err)
	}

	rows, err := r.db.QueryxContext(ctx, stmt, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list books: %w", badQueryValue(err))
	}
	defer rows.Close() //nolint:errcheck

	items := make([]map[string]any, 0)
	for rows.Next() {
		row := map[string]any{}
		if err := rows.MapScan(row); err != nil {
			return nil, 0, fmt.Errorf("list books: %w", err)
		}
		items = append(items, row)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list books: %w", err)
	}

	return items, total, nil
}

func (r *repository) execOne(
	ctx context.Context,
	action, stmt string,
	args ...any,
) error {
	res, err := r.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", action, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", action, err)
	}
	if affected == 0 {
		return fmt.Errorf("%s: %w", action, core.ErrNotFound)
	}

	return nil
}

func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// badQueryValue folds postgres cast failures on filter values, such as a
// non-numeric bound on a numeric column, into the bad-field sentinel so
// handlers answer 400 instead of 500.
func badQueryValue(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "22P02" {
		return fmt.Errorf("%w: %s", query.ErrBadField, pgErr.Message)
	}
	return err
}
