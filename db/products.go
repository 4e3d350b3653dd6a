package db

// products.go deals with product and product rate history database calls.
//
// A product's rate column always equals the rate of its most recent
// product_rates row: a history row is appended on creation and on every
// update where the rounded rate differs from the stored rate. Rates are
// compared as normalized strings to avoid float-formatting mismatches.

import (
	"context"
	"fmt"
)

// QuantityTypes enumerates the unit labels selectable for a product.
var QuantityTypes = map[int]string{
	1: "Packet",
	2: "Kilo Gram",
	3: "Liter",
	4: "Piece",
	5: "Bundle",
	6: "Unit",
	7: "Plate",
	8: "Meter",
	9: "Tola",
}

// DefaultQuantityType is the unit used when none is supplied.
const DefaultQuantityType = 6 // Unit

// Product is a book-scoped sellable item with a current price and an
// append-only price history.
type Product struct {
	ID           int64      `db:"id" json:"id"`
	Name         string     `db:"name" json:"name"`
	Rate         float64    `db:"rate" json:"rate"`
	Description  string     `db:"description" json:"description"`
	QuantityType int        `db:"quantity_type" json:"quantity_type"`
	BookID       int64      `db:"book_id" json:"book_id"`
	CategoryID   *int64     `db:"category_id" json:"category_id"`
	Attachments  StringList `db:"attachments" json:"attachments"`
	CreatedAt    string     `db:"created_at" json:"created_at"`
	UpdatedAt    string     `db:"updated_at" json:"updated_at"`
	SyncStatus   string     `db:"sync_status" json:"sync_status"`
}

// ProductRate is one entry in a product's append-only price history.
type ProductRate struct {
	ID        int64   `db:"id" json:"id"`
	ProductID int64   `db:"product_id" json:"product_id"`
	Rate      float64 `db:"rate" json:"rate"`
	CreatedAt string  `db:"created_at" json:"created_at"`
	UpdatedAt string  `db:"updated_at" json:"updated_at"`
}

// NewProduct carries the caller-supplied fields for CreateProduct.
type NewProduct struct {
	Name         string   `json:"name"`
	Rate         float64  `json:"rate"`
	Description  string   `json:"description"`
	QuantityType int      `json:"quantity_type"`
	BookID       int64    `json:"book_id"`
	CategoryID   *int64   `json:"category_id"`
	Attachments  []string `json:"attachments"`
}

// CreateProduct creates a product and its first rate history row, and returns
// the product id.
func (db *DB) CreateProduct(ctx context.Context, np NewProduct) (int64, error) {
	if np.Name == "" {
		return 0, fmt.Errorf("product name must not be empty")
	}
	if err := db.bookExists(ctx, np.BookID); err != nil {
		return 0, err
	}
	if np.QuantityType == 0 {
		np.QuantityType = DefaultQuantityType
	}
	if _, ok := QuantityTypes[np.QuantityType]; !ok {
		return 0, fmt.Errorf("unknown quantity type %d", np.QuantityType)
	}
	rate := RoundAmount(np.Rate)
	now := nowString()
	res, err := db.ExecContext(ctx,
		`INSERT INTO products (name, rate, description, quantity_type, book_id, category_id, attachments,
			created_at, updated_at, sync_status)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		np.Name, rate, np.Description, np.QuantityType, np.BookID, np.CategoryID,
		StringList(np.Attachments), now, now, StatusPending,
	)
	if err != nil {
		return 0, fmt.Errorf("could not create product: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	if _, err := db.AddProductRate(ctx, id, rate); err != nil {
		return 0, err
	}
	db.publish(CollectionProducts)
	return id, nil
}

// GetProduct retrieves a single product.
func (db *DB) GetProduct(ctx context.Context, id int64) (Product, error) {
	var p Product
	err := db.GetContext(ctx, &p, `SELECT * FROM products WHERE id = ?`, id)
	if err != nil {
		return Product{}, fmt.Errorf("could not get product %d: %w", id, err)
	}
	return p, nil
}

// ProductsByBook returns the products of a book.
func (db *DB) ProductsByBook(ctx context.Context, bookID int64) ([]Product, error) {
	var products []Product
	err := db.SelectContext(ctx, &products,
		`SELECT * FROM products WHERE book_id = ? ORDER BY id`, bookID)
	if err != nil {
		return nil, fmt.Errorf("could not list products for book %d: %w", bookID, err)
	}
	return products, nil
}

// ProductPatch lists the product fields that may be updated.
type ProductPatch struct {
	Name         *string  `json:"name"`
	Rate         *float64 `json:"rate"`
	Description  *string  `json:"description"`
	QuantityType *int     `json:"quantity_type"`
	CategoryID   *int64   `json:"category_id"`
	Attachments  []string `json:"attachments"`
}

// UpdateProduct merges the patch into the stored row. If the patch changes the
// rounded rate (string-compared against the stored rate) a rate history row is
// appended.
func (db *DB) UpdateProduct(ctx context.Context, id int64, patch ProductPatch) error {
	current, err := db.GetProduct(ctx, id)
	if err != nil {
		return err
	}

	set := "updated_at = ?, sync_status = ?"
	args := []any{nowString(), StatusPending}
	if patch.Name != nil {
		set += ", name = ?"
		args = append(args, *patch.Name)
	}
	var rateChanged bool
	if patch.Rate != nil {
		rate := RoundAmount(*patch.Rate)
		rateChanged = rateString(current.Rate) != rateString(rate)
		set += ", rate = ?"
		args = append(args, rate)
	}
	if patch.Description != nil {
		set += ", description = ?"
		args = append(args, *patch.Description)
	}
	if patch.QuantityType != nil {
		if _, ok := QuantityTypes[*patch.QuantityType]; !ok {
			return fmt.Errorf("unknown quantity type %d", *patch.QuantityType)
		}
		set += ", quantity_type = ?"
		args = append(args, *patch.QuantityType)
	}
	if patch.CategoryID != nil {
		set += ", category_id = ?"
		args = append(args, *patch.CategoryID)
	}
	if patch.Attachments != nil {
		set += ", attachments = ?"
		args = append(args, StringList(patch.Attachments))
	}
	args = append(args, id)
	if _, err := db.ExecContext(ctx, "UPDATE products SET "+set+" WHERE id = ?", args...); err != nil {
		return fmt.Errorf("could not update product %d: %w", id, err)
	}
	if rateChanged {
		if _, err := db.AddProductRate(ctx, id, *patch.Rate); err != nil {
			return err
		}
	}
	db.publish(CollectionProducts)
	return nil
}

// DeleteProduct deletes a product and its rate history, unless a transaction
// line item still references the product.
func (db *DB) DeleteProduct(ctx context.Context, id int64) error {
	n, err := db.count(ctx,
		`SELECT COUNT(DISTINCT transaction_id) FROM transaction_items WHERE product_id = ?`, id)
	if err != nil {
		return err
	}
	if n > 0 {
		return &ReferentialIntegrityError{Kind: "transaction", Count: n}
	}
	// Rate history rows first, then the product. There is no cross-statement
	// rollback here: a failure between the two leaves the history deleted.
	if _, err := db.ExecContext(ctx, `DELETE FROM product_rates WHERE product_id = ?`, id); err != nil {
		return fmt.Errorf("could not delete rate history for product %d: %w", id, err)
	}
	if _, err := db.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, id); err != nil {
		return fmt.Errorf("could not delete product %d: %w", id, err)
	}
	db.publish(CollectionProductRates)
	db.publish(CollectionProducts)
	return nil
}

// AddProductRate appends a rate history row for the product.
func (db *DB) AddProductRate(ctx context.Context, productID int64, rate float64) (int64, error) {
	now := nowString()
	res, err := db.ExecContext(ctx,
		`INSERT INTO product_rates (product_id, rate, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		productID, RoundAmount(rate), now, now,
	)
	if err != nil {
		return 0, fmt.Errorf("could not add rate for product %d: %w", productID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	db.publish(CollectionProductRates)
	return id, nil
}

// ProductRates returns a product's rate history, most recent first.
func (db *DB) ProductRates(ctx context.Context, productID int64) ([]ProductRate, error) {
	var rates []ProductRate
	err := db.SelectContext(ctx, &rates,
		`SELECT * FROM product_rates WHERE product_id = ? ORDER BY created_at DESC, id DESC`, productID)
	if err != nil {
		return nil, fmt.Errorf("could not list rates for product %d: %w", productID, err)
	}
	return rates, nil
}
