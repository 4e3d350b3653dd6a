package db

// books.go deals with book (ledger) database calls. Deleting a book cascades
// to delete all of its transactions; this is the only cascading delete in the
// data layer.

import (
	"context"
	"fmt"
)

// Book is an independent ledger scoping transactions and their supporting
// entities.
type Book struct {
	ID         int64  `db:"id" json:"id"`
	Name       string `db:"name" json:"name"`
	CreatedAt  string `db:"created_at" json:"created_at"`
	UpdatedAt  string `db:"updated_at" json:"updated_at"`
	SyncStatus string `db:"sync_status" json:"sync_status"`
}

// CreateBook creates a book and returns its generated id.
func (db *DB) CreateBook(ctx context.Context, name string) (int64, error) {
	if name == "" {
		return 0, fmt.Errorf("book name must not be empty")
	}
	now := nowString()
	res, err := db.ExecContext(ctx,
		`INSERT INTO books (name, created_at, updated_at, sync_status) VALUES (?, ?, ?, ?)`,
		name, now, now, StatusPending,
	)
	if err != nil {
		return 0, fmt.Errorf("could not create book: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	db.publish(CollectionBooks)
	return id, nil
}

// GetBook retrieves a single book.
func (db *DB) GetBook(ctx context.Context, id int64) (Book, error) {
	var b Book
	err := db.GetContext(ctx, &b, `SELECT * FROM books WHERE id = ?`, id)
	if err != nil {
		return Book{}, fmt.Errorf("could not get book %d: %w", id, err)
	}
	return b, nil
}

// Books returns all books, most recently created first.
func (db *DB) Books(ctx context.Context) ([]Book, error) {
	var books []Book
	err := db.SelectContext(ctx, &books, `SELECT * FROM books ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("could not list books: %w", err)
	}
	return books, nil
}

// BookPatch lists the book fields that may be updated.
type BookPatch struct {
	Name *string `json:"name"`
}

// UpdateBook merges the patch into the stored row, refreshing updated_at and
// resetting sync_status to pending.
func (db *DB) UpdateBook(ctx context.Context, id int64, patch BookPatch) error {
	set := "updated_at = ?, sync_status = ?"
	args := []any{nowString(), StatusPending}
	if patch.Name != nil {
		set += ", name = ?"
		args = append(args, *patch.Name)
	}
	args = append(args, id)
	_, err := db.ExecContext(ctx, "UPDATE books SET "+set+" WHERE id = ?", args...)
	if err != nil {
		return fmt.Errorf("could not update book %d: %w", id, err)
	}
	db.publish(CollectionBooks)
	return nil
}

// DeleteBook deletes the book and every transaction belonging to it, together
// with those transactions' line items and category links.
func (db *DB) DeleteBook(ctx context.Context, id int64) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() // no-op after commit.

	for _, stmt := range []string{
		`DELETE FROM transaction_items WHERE transaction_id IN (SELECT id FROM transactions WHERE book_id = ?)`,
		`DELETE FROM transaction_categories WHERE transaction_id IN (SELECT id FROM transactions WHERE book_id = ?)`,
		`DELETE FROM transactions WHERE book_id = ?`,
		`DELETE FROM books WHERE id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, stmt, id); err != nil {
			return fmt.Errorf("could not delete book %d: %w", id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	db.publish(CollectionBooks)
	db.publish(CollectionTransactions)
	return nil
}

// BookStats summarizes a book's transactions.
type BookStats struct {
	TotalIn    float64 `db:"total_in" json:"total_in"`
	TotalOut   float64 `db:"total_out" json:"total_out"`
	NetBalance float64 `json:"net_balance"`
}

// GetBookStats sums the in and out totals for a book.
func (db *DB) GetBookStats(ctx context.Context, bookID int64) (BookStats, error) {
	var s BookStats
	err := db.GetContext(ctx, &s, `
		SELECT
			COALESCE(SUM(CASE WHEN type = 'in' THEN amount ELSE 0 END), 0) AS total_in,
			COALESCE(SUM(CASE WHEN type = 'out' THEN amount ELSE 0 END), 0) AS total_out
		FROM transactions WHERE book_id = ?`, bookID)
	if err != nil {
		return BookStats{}, fmt.Errorf("could not get stats for book %d: %w", bookID, err)
	}
	s.NetBalance = RoundAmount(s.TotalIn - s.TotalOut)
	return s, nil
}

// bookExists is the app-level referential check used by the scoped entity
// repositories: the embedded store has no foreign keys.
func (db *DB) bookExists(ctx context.Context, bookID int64) error {
	n, err := db.count(ctx, `SELECT COUNT(*) FROM books WHERE id = ?`, bookID)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("book %d does not exist", bookID)
	}
	return nil
}
