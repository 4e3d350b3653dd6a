package db

// categories.go deals with category database calls. Categories are scoped to
// one book and cannot be deleted while referenced by a transaction's category
// set or a product.

import (
	"context"
	"fmt"
)

// Category is a book-scoped transaction/product grouping.
type Category struct {
	ID          int64  `db:"id" json:"id"`
	Name        string `db:"name" json:"name"`
	Description string `db:"description" json:"description"`
	BookID      int64  `db:"book_id" json:"book_id"`
	Sort        int    `db:"sort" json:"sort"`
	CreatedAt   string `db:"created_at" json:"created_at"`
	UpdatedAt   string `db:"updated_at" json:"updated_at"`
	SyncStatus  string `db:"sync_status" json:"sync_status"`
}

// defaultCategorySort is the insertion-order weight given to new categories.
const defaultCategorySort = 999

// NewCategory carries the caller-supplied fields for CreateCategory.
type NewCategory struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	BookID      int64  `json:"book_id"`
}

// CreateCategory creates a category in the given book and returns its id.
func (db *DB) CreateCategory(ctx context.Context, nc NewCategory) (int64, error) {
	if nc.Name == "" {
		return 0, fmt.Errorf("category name must not be empty")
	}
	if err := db.bookExists(ctx, nc.BookID); err != nil {
		return 0, err
	}
	now := nowString()
	res, err := db.ExecContext(ctx,
		`INSERT INTO categories (name, description, book_id, sort, created_at, updated_at, sync_status)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		nc.Name, nc.Description, nc.BookID, defaultCategorySort, now, now, StatusPending,
	)
	if err != nil {
		return 0, fmt.Errorf("could not create category: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	db.publish(CollectionCategories)
	return id, nil
}

// GetCategory retrieves a single category.
func (db *DB) GetCategory(ctx context.Context, id int64) (Category, error) {
	var c Category
	err := db.GetContext(ctx, &c, `SELECT * FROM categories WHERE id = ?`, id)
	if err != nil {
		return Category{}, fmt.Errorf("could not get category %d: %w", id, err)
	}
	return c, nil
}

// CategoriesByBook returns the categories of a book ordered by their sort
// weight.
func (db *DB) CategoriesByBook(ctx context.Context, bookID int64) ([]Category, error) {
	var categories []Category
	err := db.SelectContext(ctx, &categories,
		`SELECT * FROM categories WHERE book_id = ? ORDER BY sort, id`, bookID)
	if err != nil {
		return nil, fmt.Errorf("could not list categories for book %d: %w", bookID, err)
	}
	return categories, nil
}

// CategoryPatch lists the category fields that may be updated.
type CategoryPatch struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Sort        *int    `json:"sort"`
}

// UpdateCategory merges the patch into the stored row.
func (db *DB) UpdateCategory(ctx context.Context, id int64, patch CategoryPatch) error {
	set := "updated_at = ?, sync_status = ?"
	args := []any{nowString(), StatusPending}
	if patch.Name != nil {
		set += ", name = ?"
		args = append(args, *patch.Name)
	}
	if patch.Description != nil {
		set += ", description = ?"
		args = append(args, *patch.Description)
	}
	if patch.Sort != nil {
		set += ", sort = ?"
		args = append(args, *patch.Sort)
	}
	args = append(args, id)
	_, err := db.ExecContext(ctx, "UPDATE categories SET "+set+" WHERE id = ?", args...)
	if err != nil {
		return fmt.Errorf("could not update category %d: %w", id, err)
	}
	db.publish(CollectionCategories)
	return nil
}

// DeleteCategory deletes a category unless it is referenced by a transaction
// or a product, in which case a *ReferentialIntegrityError is returned and
// nothing changes.
func (db *DB) DeleteCategory(ctx context.Context, id int64) error {
	n, err := db.count(ctx,
		`SELECT COUNT(*) FROM transaction_categories WHERE category_id = ?`, id)
	if err != nil {
		return err
	}
	if n > 0 {
		return &ReferentialIntegrityError{Kind: "transaction", Count: n}
	}
	n, err = db.count(ctx, `SELECT COUNT(*) FROM products WHERE category_id = ?`, id)
	if err != nil {
		return err
	}
	if n > 0 {
		return &ReferentialIntegrityError{Kind: "product", Count: n}
	}
	if _, err := db.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id); err != nil {
		return fmt.Errorf("could not delete category %d: %w", id, err)
	}
	db.publish(CollectionCategories)
	return nil
}
