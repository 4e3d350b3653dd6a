package db

// export.go provides the whole-collection readers used by the snapshot
// export, plus the post-upload status flip. Export reads every row into
// memory; the feature is bounded to datasets that fit, which is acceptable
// for a personal finance tool.

import (
	"context"
	"fmt"
)

// AllBooks returns every book ordered by id.
func (db *DB) AllBooks(ctx context.Context) ([]Book, error) {
	var rows []Book
	if err := db.SelectContext(ctx, &rows, `SELECT * FROM books ORDER BY id`); err != nil {
		return nil, fmt.Errorf("could not read books: %w", err)
	}
	return rows, nil
}

// AllTransactions returns every transaction ordered by id, with category sets
// and line items populated.
func (db *DB) AllTransactions(ctx context.Context) ([]Transaction, error) {
	var rows []Transaction
	if err := db.SelectContext(ctx, &rows, `SELECT * FROM transactions ORDER BY id`); err != nil {
		return nil, fmt.Errorf("could not read transactions: %w", err)
	}
	if err := db.loadTransactionChildrenInto(ctx, rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// AllCategories returns every category ordered by id.
func (db *DB) AllCategories(ctx context.Context) ([]Category, error) {
	var rows []Category
	if err := db.SelectContext(ctx, &rows, `SELECT * FROM categories ORDER BY id`); err != nil {
		return nil, fmt.Errorf("could not read categories: %w", err)
	}
	return rows, nil
}

// AllContacts returns every contact ordered by id.
func (db *DB) AllContacts(ctx context.Context) ([]Contact, error) {
	var rows []Contact
	if err := db.SelectContext(ctx, &rows, `SELECT * FROM contacts ORDER BY id`); err != nil {
		return nil, fmt.Errorf("could not read contacts: %w", err)
	}
	return rows, nil
}

// AllPaymentModes returns every payment mode ordered by id.
func (db *DB) AllPaymentModes(ctx context.Context) ([]PaymentMode, error) {
	var rows []PaymentMode
	if err := db.SelectContext(ctx, &rows, `SELECT * FROM payment_modes ORDER BY id`); err != nil {
		return nil, fmt.Errorf("could not read payment modes: %w", err)
	}
	return rows, nil
}

// AllProducts returns every product ordered by id.
func (db *DB) AllProducts(ctx context.Context) ([]Product, error) {
	var rows []Product
	if err := db.SelectContext(ctx, &rows, `SELECT * FROM products ORDER BY id`); err != nil {
		return nil, fmt.Errorf("could not read products: %w", err)
	}
	return rows, nil
}

// AllProductRates returns every product rate history row ordered by id.
func (db *DB) AllProductRates(ctx context.Context) ([]ProductRate, error) {
	var rows []ProductRate
	if err := db.SelectContext(ctx, &rows, `SELECT * FROM product_rates ORDER BY id`); err != nil {
		return nil, fmt.Errorf("could not read product rates: %w", err)
	}
	return rows, nil
}

// MarkSynced flips pending rows last updated at or before the cutoff to
// synced. The cutoff is the snapshot's export timestamp, so rows mutated
// while an upload was in flight stay pending for the next sync.
func (db *DB) MarkSynced(ctx context.Context, cutoff string) error {
	for _, table := range []string{
		"books", "transactions", "categories", "contacts", "payment_modes", "products",
	} {
		_, err := db.ExecContext(ctx,
			fmt.Sprintf(`UPDATE %s SET sync_status = ? WHERE sync_status = ? AND updated_at <= ?`, table),
			StatusSynced, StatusPending, cutoff,
		)
		if err != nil {
			return fmt.Errorf("could not mark %s synced: %w", table, err)
		}
		db.publish(table)
	}
	return nil
}
