package db

// schema.go declares the versioned schema history. Each migration lists the
// DDL for its version and, where a structural change requires row rewriting,
// an explicit Upgrade transformation run in the same database transaction.
// Versions are applied in order against sqlite's user_version pragma: opening
// a database at a lower on-disk version applies every intervening version
// before any repository call executes; opening at an equal-or-higher version
// is a no-op.

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// migration is one numbered schema version. Statements run first, then
// Upgrade (usually nil) for per-row rewrites.
type migration struct {
	Version    int
	Statements []string
	Upgrade    func(ctx context.Context, tx *sqlx.Tx) error
}

var migrations = []migration{
	{
		// The original single-book-era schema: transactions carry a single
		// category_id and categories/payment_modes are typed income/expense.
		Version: 1,
		Statements: []string{
			`CREATE TABLE books (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				name TEXT NOT NULL,
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL,
				sync_status TEXT NOT NULL DEFAULT 'pending'
			)`,
			`CREATE INDEX idx_books_name ON books(name)`,
			`CREATE TABLE transactions (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				book_id INTEGER NOT NULL,
				type TEXT NOT NULL,
				date TEXT NOT NULL,
				category_id INTEGER,
				contact_id INTEGER,
				payment_mode_id INTEGER,
				amount REAL NOT NULL DEFAULT 0,
				description TEXT NOT NULL DEFAULT '',
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL,
				sync_status TEXT NOT NULL DEFAULT 'pending'
			)`,
			`CREATE INDEX idx_transactions_book_id ON transactions(book_id)`,
			`CREATE INDEX idx_transactions_date ON transactions(date)`,
			`CREATE INDEX idx_transactions_contact_id ON transactions(contact_id)`,
			`CREATE INDEX idx_transactions_payment_mode_id ON transactions(payment_mode_id)`,
			`CREATE TABLE categories (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				name TEXT NOT NULL,
				type TEXT NOT NULL DEFAULT 'expense',
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL,
				sync_status TEXT NOT NULL DEFAULT 'pending'
			)`,
			`CREATE INDEX idx_categories_name ON categories(name)`,
			`CREATE TABLE contacts (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				name TEXT NOT NULL,
				phone TEXT NOT NULL DEFAULT '',
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL,
				sync_status TEXT NOT NULL DEFAULT 'pending'
			)`,
			`CREATE INDEX idx_contacts_name ON contacts(name)`,
			`CREATE TABLE payment_modes (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				name TEXT NOT NULL,
				type TEXT NOT NULL DEFAULT '',
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL,
				sync_status TEXT NOT NULL DEFAULT 'pending'
			)`,
			`CREATE TABLE products (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				name TEXT NOT NULL,
				rate REAL NOT NULL DEFAULT 0,
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL,
				sync_status TEXT NOT NULL DEFAULT 'pending'
			)`,
			`CREATE INDEX idx_products_name ON products(name)`,
		},
	},
	{
		// Categories become book-scoped with a free-text description and an
		// insertion-order sort weight; the income/expense typing goes away.
		Version: 2,
		Statements: []string{
			`ALTER TABLE categories DROP COLUMN type`,
			`ALTER TABLE categories ADD COLUMN book_id INTEGER`,
			`ALTER TABLE categories ADD COLUMN description TEXT NOT NULL DEFAULT ''`,
			`ALTER TABLE categories ADD COLUMN sort INTEGER NOT NULL DEFAULT 999`,
			`CREATE INDEX idx_categories_book_id ON categories(book_id)`,
			`ALTER TABLE products ADD COLUMN description TEXT NOT NULL DEFAULT ''`,
		},
	},
	{
		// Products become book-scoped sellable items with an append-only rate
		// history and per-transaction line items.
		Version: 3,
		Statements: []string{
			`ALTER TABLE products ADD COLUMN book_id INTEGER`,
			`ALTER TABLE products ADD COLUMN category_id INTEGER`,
			`ALTER TABLE products ADD COLUMN quantity_type INTEGER NOT NULL DEFAULT 6`,
			`ALTER TABLE products ADD COLUMN attachments TEXT NOT NULL DEFAULT '[]'`,
			`CREATE INDEX idx_products_book_id ON products(book_id)`,
			`CREATE INDEX idx_products_category_id ON products(category_id)`,
			`CREATE TABLE product_rates (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				product_id INTEGER NOT NULL,
				rate REAL NOT NULL DEFAULT 0,
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`,
			`CREATE INDEX idx_product_rates_product_id ON product_rates(product_id)`,
			`CREATE TABLE transaction_items (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				transaction_id INTEGER NOT NULL,
				position INTEGER NOT NULL DEFAULT 0,
				product_id INTEGER,
				rate REAL NOT NULL DEFAULT 0,
				amount REAL NOT NULL DEFAULT 0,
				quantity REAL NOT NULL DEFAULT 1
			)`,
			`CREATE INDEX idx_transaction_items_transaction_id ON transaction_items(transaction_id)`,
			`CREATE INDEX idx_transaction_items_product_id ON transaction_items(product_id)`,
		},
	},
	{
		// A transaction may belong to multiple categories. The multi-valued
		// index lives in transaction_categories; the Upgrade moves the legacy
		// single category_id across before the column is dropped. Payment
		// modes become book-scoped at the same time.
		Version: 4,
		Statements: []string{
			`CREATE TABLE transaction_categories (
				transaction_id INTEGER NOT NULL,
				category_id INTEGER NOT NULL,
				PRIMARY KEY (transaction_id, category_id)
			)`,
			`CREATE INDEX idx_transaction_categories_category_id ON transaction_categories(category_id)`,
			`ALTER TABLE payment_modes DROP COLUMN type`,
			`ALTER TABLE payment_modes ADD COLUMN book_id INTEGER`,
			`ALTER TABLE payment_modes ADD COLUMN description TEXT NOT NULL DEFAULT ''`,
			`CREATE INDEX idx_payment_modes_book_id ON payment_modes(book_id)`,
		},
		Upgrade: func(ctx context.Context, tx *sqlx.Tx) error {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO transaction_categories (transaction_id, category_id)
				 SELECT id, category_id FROM transactions WHERE category_id IS NOT NULL`)
			if err != nil {
				return fmt.Errorf("could not copy legacy category ids: %w", err)
			}
			if _, err := tx.ExecContext(ctx, `ALTER TABLE transactions DROP COLUMN category_id`); err != nil {
				return fmt.Errorf("could not drop legacy category_id column: %w", err)
			}
			return nil
		},
	},
	{
		// Settings key-value store, transaction attachments and adjustments,
		// and sync_status indexes for the sync engine's pending scans.
		Version: 5,
		Statements: []string{
			`CREATE TABLE settings (
				key TEXT PRIMARY KEY,
				value TEXT NOT NULL
			)`,
			`ALTER TABLE transactions ADD COLUMN attachments TEXT NOT NULL DEFAULT '[]'`,
			`ALTER TABLE transactions ADD COLUMN discount REAL NOT NULL DEFAULT 0`,
			`ALTER TABLE transactions ADD COLUMN charge REAL NOT NULL DEFAULT 0`,
			`CREATE INDEX idx_books_sync_status ON books(sync_status)`,
			`CREATE INDEX idx_transactions_sync_status ON transactions(sync_status)`,
			`CREATE INDEX idx_categories_sync_status ON categories(sync_status)`,
			`CREATE INDEX idx_contacts_sync_status ON contacts(sync_status)`,
			`CREATE INDEX idx_payment_modes_sync_status ON payment_modes(sync_status)`,
			`CREATE INDEX idx_products_sync_status ON products(sync_status)`,
		},
	},
}

// SchemaVersion is the latest declared schema version; also the version field
// of exported snapshot documents.
const SchemaVersion = 5

// migrate applies every outstanding migration in order. An inconsistent
// version history is a fatal configuration error surfaced here, at open time.
func (db *DB) migrate(ctx context.Context) error {

	for i, m := range migrations {
		if m.Version != i+1 {
			return fmt.Errorf(
				"inconsistent migration history: entry %d has version %d, want %d",
				i, m.Version, i+1,
			)
		}
	}
	if migrations[len(migrations)-1].Version != SchemaVersion {
		return fmt.Errorf(
			"inconsistent migration history: latest version %d does not match declared %d",
			migrations[len(migrations)-1].Version, SchemaVersion,
		)
	}

	var current int
	if err := db.GetContext(ctx, &current, "PRAGMA user_version"); err != nil {
		return fmt.Errorf("could not read user_version: %w", err)
	}

	for _, m := range migrations {
		if m.Version <= current {
			continue
		}
		if err := db.applyMigration(ctx, m); err != nil {
			return fmt.Errorf("migration to version %d failed: %w", m.Version, err)
		}
		db.logger.Debug("applied schema migration", "version", m.Version)
	}
	return nil
}

// applyMigration runs one migration's statements and upgrade in a single
// database transaction and advances user_version.
func (db *DB) applyMigration(ctx context.Context, m migration) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() // no-op after commit.

	for _, stmt := range m.Statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("statement %q: %w", stmt, err)
		}
	}
	if m.Upgrade != nil {
		if err := m.Upgrade(ctx, tx); err != nil {
			return fmt.Errorf("upgrade: %w", err)
		}
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", m.Version)); err != nil {
		return fmt.Errorf("could not set user_version: %w", err)
	}
	return tx.Commit()
}

// schemaVersion reports the on-disk schema version.
func (db *DB) schemaVersion(ctx context.Context) (int, error) {
	var v int
	err := db.GetContext(ctx, &v, "PRAGMA user_version")
	return v, err
}
