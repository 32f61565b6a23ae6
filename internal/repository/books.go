package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/lib/pq"

	"github.com/bookledger/backend/internal/models"
)

const (
	dialectPostgres = "postgres"
	bookColumns     = `id, title, description, image, borrowing_price, available_copies`
)

func (t *pgTx) LockBook(ctx context.Context, bookID int64) (*models.Book, error) {
	var book models.Book
	err := t.tx.GetContext(ctx, &book, `SELECT `+bookColumns+` FROM books WHERE id = $1 FOR UPDATE`, bookID)
	if err != nil {
		return nil, notFound(err)
	}
	return &book, nil
}

func (t *pgTx) SetAvailableCopies(ctx context.Context, bookID int64, copies int) error {
	res, err := t.tx.ExecContext(ctx, `UPDATE books SET available_copies = $1 WHERE id = $2`, copies, bookID)
	if err := expectOneRow(res, err); err != nil {
		return fmt.Errorf("update copies of book %d: %w", bookID, err)
	}
	return nil
}

func (t *pgTx) CreateCategory(ctx context.Context, category *models.Category) error {
	err := t.tx.GetContext(ctx, &category.ID, `
		INSERT INTO categories (name, slug)
		VALUES ($1, $2)
		ON CONFLICT (slug) DO UPDATE SET name = EXCLUDED.name
		RETURNING id`, category.Name, category.Slug)
	if err != nil {
		return fmt.Errorf("insert category %s: %w", category.Slug, err)
	}
	return nil
}

// CreateBook inserts the book and links it to its categories, which must
// already carry their ids.
func (t *pgTx) CreateBook(ctx context.Context, book *models.Book) error {
	err := t.tx.GetContext(ctx, &book.ID, `
		INSERT INTO books (title, description, image, borrowing_price, available_copies)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		book.Title, book.Description, book.Image, book.BorrowingPrice, book.AvailableCopies)
	if err != nil {
		return fmt.Errorf("insert book %q: %w", book.Title, err)
	}

	for _, c := range book.Categories {
		if _, err := t.tx.ExecContext(ctx, `
			INSERT INTO book_categories (book_id, category_id)
			VALUES ($1, $2)
			ON CONFLICT DO NOTHING`, book.ID, c.ID); err != nil {
			return fmt.Errorf("link book %d to category %d: %w", book.ID, c.ID, err)
		}
	}
	return nil
}

// GetBook reads a book and its categories without locking.
func (s *Store) GetBook(ctx context.Context, bookID int64) (*models.Book, error) {
	var book models.Book
	if err := s.db.GetContext(ctx, &book, `SELECT `+bookColumns+` FROM books WHERE id = $1`, bookID); err != nil {
		return nil, notFound(err)
	}

	books := []models.Book{book}
	if err := s.attachCategories(ctx, books); err != nil {
		return nil, err
	}
	return &books[0], nil
}

// ListBooks returns the catalog ordered by title, optionally narrowed to a
// category slug and a case-insensitive title search.
func (s *Store) ListBooks(ctx context.Context, filter models.BookFilter) ([]models.Book, error) {
	query, args, err := buildListBooksQuery(filter)
	if err != nil {
		return nil, fmt.Errorf("build catalog query: %w", err)
	}

	books := []models.Book{}
	if err := s.db.SelectContext(ctx, &books, query, args...); err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}

	if err := s.attachCategories(ctx, books); err != nil {
		return nil, err
	}
	return books, nil
}

// likeEscaper makes LIKE wildcards in user input match literally. Backslash
// is the default ESCAPE character in PostgreSQL.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func buildListBooksQuery(filter models.BookFilter) (string, []any, error) {
	builder := goqu.Dialect(dialectPostgres)

	ds := builder.
		From("books").
		Select("id", "title", "description", "image", "borrowing_price", "available_copies").
		Order(goqu.I("title").Asc(), goqu.I("id").Asc()).
		Prepared(true)

	if slug := strings.TrimSpace(filter.CategorySlug); slug != "" {
		inCategory := builder.
			From(goqu.T("book_categories").As("bc")).
			Join(goqu.T("categories").As("c"), goqu.On(goqu.I("c.id").Eq(goqu.I("bc.category_id")))).
			Select(goqu.I("bc.book_id")).
			Where(goqu.I("c.slug").Eq(slug))
		ds = ds.Where(goqu.I("id").In(inCategory))
	}

	if q := strings.TrimSpace(filter.Query); q != "" {
		ds = ds.Where(goqu.I("title").ILike("%" + likeEscaper.Replace(q) + "%"))
	}

	return ds.ToSQL()
}

func (s *Store) ListCategories(ctx context.Context) ([]models.Category, error) {
	categories := []models.Category{}
	if err := s.db.SelectContext(ctx, &categories, `SELECT id, name, slug FROM categories ORDER BY name`); err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return categories, nil
}

type bookCategoryRow struct {
	BookID int64 `db:"book_id"`
	models.Category
}

func (s *Store) attachCategories(ctx context.Context, books []models.Book) error {
	if len(books) == 0 {
		return nil
	}

	ids := make([]int64, len(books))
	index := make(map[int64]int, len(books))
	for i := range books {
		ids[i] = books[i].ID
		index[books[i].ID] = i
		books[i].Categories = []models.Category{}
	}

	var rows []bookCategoryRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT bc.book_id, c.id, c.name, c.slug
		FROM book_categories bc
		JOIN categories c ON c.id = bc.category_id
		WHERE bc.book_id = ANY($1)
		ORDER BY c.name`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("load book categories: %w", err)
	}

	for _, row := range rows {
		if i, ok := index[row.BookID]; ok {
			books[i].Categories = append(books[i].Categories, row.Category)
		}
	}
	return nil
}
