package db

// transactions.go deals with transaction database calls. A transaction row
// carries its multi-valued category set in transaction_categories and its
// ordered product line items in transaction_items; both are written together
// with the row in one database transaction.
//
// Contract note: transaction entry is treated as an implicit price-update
// signal. After a create, any line item whose rate differs from its product's
// current rate appends a product rate history entry; after an update, the
// product's stored rate is updated instead. This post-write hook is part of
// the repository contract, not hidden in generic update logic.

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Transaction types.
const (
	TypeIn  = "in"
	TypeOut = "out"
)

// LineItem is a product entry within a transaction's product list. Name is
// populated from the products table on reads and ignored on writes.
type LineItem struct {
	ProductID *int64  `db:"product_id" json:"product_id"`
	Name      string  `db:"-" json:"name,omitempty"`
	Rate      float64 `db:"rate" json:"rate"`
	Amount    float64 `db:"amount" json:"amount"`
	Quantity  float64 `db:"quantity" json:"quantity"`
}

// Transaction is a single ledger entry.
type Transaction struct {
	ID            int64      `db:"id" json:"id"`
	BookID        int64      `db:"book_id" json:"book_id"`
	Type          string     `db:"type" json:"type"`
	Date          string     `db:"date" json:"date"`
	CategoryIDs   []int64    `db:"-" json:"category_ids"`
	ContactID     *int64     `db:"contact_id" json:"contact_id"`
	PaymentModeID *int64     `db:"payment_mode_id" json:"payment_mode_id"`
	Discount      float64    `db:"discount" json:"discount"`
	Charge        float64    `db:"charge" json:"charge"`
	Amount        float64    `db:"amount" json:"amount"`
	Products      []LineItem `db:"-" json:"products"`
	Attachments   StringList `db:"attachments" json:"attachments"`
	Description   string     `db:"description" json:"description"`
	CreatedAt     string     `db:"created_at" json:"created_at"`
	UpdatedAt     string     `db:"updated_at" json:"updated_at"`
	SyncStatus    string     `db:"sync_status" json:"sync_status"`
}

// NewTransaction carries the caller-supplied fields for CreateTransaction.
// Date accepts any of the external representations understood by
// parseInputDate; empty means now.
type NewTransaction struct {
	BookID        int64      `json:"book_id"`
	Type          string     `json:"type"`
	Date          string     `json:"date"`
	CategoryIDs   []int64    `json:"category_ids"`
	ContactID     *int64     `json:"contact_id"`
	PaymentModeID *int64     `json:"payment_mode_id"`
	Discount      float64    `json:"discount"`
	Charge        float64    `json:"charge"`
	Amount        float64    `json:"amount"`
	Products      []LineItem `json:"products"`
	Attachments   []string   `json:"attachments"`
	Description   string     `json:"description"`
}

// CreateTransaction validates and stores a transaction, returning its id. All
// money fields are rounded, category_ids defaults to an empty set, and the
// product price history hook runs after the insert.
func (db *DB) CreateTransaction(ctx context.Context, nt NewTransaction) (int64, error) {
	id, err := db.insertTransaction(ctx, nt)
	if err != nil {
		return 0, err
	}
	if err := db.recordLineItemRates(ctx, nt.Products, false); err != nil {
		return 0, err
	}
	db.notifyTransactionWrite()
	return id, nil
}

// insertTransaction is the write path shared by CreateTransaction and the
// cross-book copy resolver, which must not trigger the price history hook.
func (db *DB) insertTransaction(ctx context.Context, nt NewTransaction) (int64, error) {
	if err := db.bookExists(ctx, nt.BookID); err != nil {
		return 0, err
	}
	if nt.Type != TypeIn && nt.Type != TypeOut {
		return 0, fmt.Errorf("transaction type must be %q or %q, got %q", TypeIn, TypeOut, nt.Type)
	}
	date, err := parseInputDate(nt.Date)
	if err != nil {
		return 0, err
	}
	for i := range nt.Products {
		nt.Products[i].Rate = RoundAmount(nt.Products[i].Rate)
		nt.Products[i].Amount = RoundAmount(nt.Products[i].Amount)
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback() // no-op after commit.

	now := nowString()
	res, err := tx.ExecContext(ctx,
		`INSERT INTO transactions (book_id, type, date, contact_id, payment_mode_id,
			discount, charge, amount, attachments, description,
			created_at, updated_at, sync_status)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		nt.BookID, nt.Type, date, nt.ContactID, nt.PaymentModeID,
		RoundAmount(nt.Discount), RoundAmount(nt.Charge), RoundAmount(nt.Amount),
		StringList(nt.Attachments), nt.Description, now, now, StatusPending,
	)
	if err != nil {
		return 0, fmt.Errorf("could not create transaction: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	if err := replaceTransactionChildren(ctx, tx, id, nt.CategoryIDs, nt.Products); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	db.publish(CollectionTransactions)
	return id, nil
}

// replaceTransactionChildren rewrites the category links and line items of a
// transaction within the enclosing database transaction.
func replaceTransactionChildren(
	ctx context.Context,
	tx *sqlx.Tx,
	id int64,
	categoryIDs []int64,
	items []LineItem,
) error {
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM transaction_categories WHERE transaction_id = ?`, id); err != nil {
		return err
	}
	for _, catID := range categoryIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO transaction_categories (transaction_id, category_id) VALUES (?, ?)`,
			id, catID); err != nil {
			return fmt.Errorf("could not link category %d: %w", catID, err)
		}
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM transaction_items WHERE transaction_id = ?`, id); err != nil {
		return err
	}
	for i, item := range items {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO transaction_items (transaction_id, position, product_id, rate, amount, quantity)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			id, i, item.ProductID, item.Rate, item.Amount, item.Quantity); err != nil {
			return fmt.Errorf("could not insert line item %d: %w", i, err)
		}
	}
	return nil
}

// recordLineItemRates is the price history hook. For each line item whose
// rounded rate differs (string-compared) from its product's current rate, the
// create path appends a rate history entry and the update path updates the
// product's stored rate, which itself appends the history entry.
func (db *DB) recordLineItemRates(ctx context.Context, items []LineItem, updatePath bool) error {
	for _, item := range items {
		if item.ProductID == nil {
			continue
		}
		product, err := db.GetProduct(ctx, *item.ProductID)
		if err != nil {
			db.logger.Warn("line item references unknown product", "product_id", *item.ProductID)
			continue
		}
		if rateString(product.Rate) == rateString(item.Rate) {
			continue
		}
		if updatePath {
			rate := item.Rate
			if err := db.UpdateProduct(ctx, product.ID, ProductPatch{Rate: &rate}); err != nil {
				return err
			}
			continue
		}
		if _, err := db.AddProductRate(ctx, product.ID, item.Rate); err != nil {
			return err
		}
	}
	return nil
}

// GetTransaction retrieves a single transaction with its category set and
// line items populated.
func (db *DB) GetTransaction(ctx context.Context, id int64) (Transaction, error) {
	var t Transaction
	err := db.GetContext(ctx, &t, `SELECT * FROM transactions WHERE id = ?`, id)
	if err != nil {
		return Transaction{}, fmt.Errorf("could not get transaction %d: %w", id, err)
	}
	ts := []Transaction{t}
	if err := db.loadTransactionChildrenInto(ctx, ts); err != nil {
		return Transaction{}, err
	}
	return ts[0], nil
}

// TransactionFilter narrows TransactionsFiltered. Zero values mean "no
// filter" for that dimension. The schema tags support decoding from URL query
// strings.
type TransactionFilter struct {
	BookID     int64  `schema:"book_id"`
	Type       string `schema:"type"`
	CategoryID int64  `schema:"category_id"`
	DateFrom   string `schema:"date_from"`
	DateTo     string `schema:"date_to"`
}

// TransactionsByBook returns a book's transactions, most recent date first,
// with category sets and enriched line items populated.
func (db *DB) TransactionsByBook(ctx context.Context, bookID int64) ([]Transaction, error) {
	return db.TransactionsFiltered(ctx, TransactionFilter{BookID: bookID})
}

// TransactionsFiltered returns transactions matching the filter, most recent
// date first.
func (db *DB) TransactionsFiltered(ctx context.Context, f TransactionFilter) ([]Transaction, error) {
	query := `SELECT * FROM transactions WHERE 1=1`
	var args []any
	if f.BookID != 0 {
		query += ` AND book_id = ?`
		args = append(args, f.BookID)
	}
	if f.Type != "" {
		query += ` AND type = ?`
		args = append(args, f.Type)
	}
	if f.CategoryID != 0 {
		query += ` AND id IN (SELECT transaction_id FROM transaction_categories WHERE category_id = ?)`
		args = append(args, f.CategoryID)
	}
	if f.DateFrom != "" {
		query += ` AND date >= ?`
		args = append(args, f.DateFrom)
	}
	if f.DateTo != "" {
		query += ` AND date <= ?`
		args = append(args, f.DateTo)
	}
	query += ` ORDER BY date DESC, id DESC`

	var transactions []Transaction
	if err := db.SelectContext(ctx, &transactions, query, args...); err != nil {
		return nil, fmt.Errorf("could not list transactions: %w", err)
	}
	if err := db.loadTransactionChildrenInto(ctx, transactions); err != nil {
		return nil, err
	}
	return transactions, nil
}

// loadTransactionChildrenInto populates CategoryIDs and Products (with names
// and attachments from the products table) for each transaction in place.
func (db *DB) loadTransactionChildrenInto(ctx context.Context, transactions []Transaction) error {
	for i := range transactions {
		t := &transactions[i]

		t.CategoryIDs = []int64{}
		if err := db.SelectContext(ctx, &t.CategoryIDs,
			`SELECT category_id FROM transaction_categories WHERE transaction_id = ? ORDER BY category_id`,
			t.ID); err != nil {
			return fmt.Errorf("could not load categories for transaction %d: %w", t.ID, err)
		}

		t.Products = []LineItem{}
		if err := db.SelectContext(ctx, &t.Products,
			`SELECT product_id, rate, amount, quantity FROM transaction_items
			 WHERE transaction_id = ? ORDER BY position`,
			t.ID); err != nil {
			return fmt.Errorf("could not load line items for transaction %d: %w", t.ID, err)
		}
		for j := range t.Products {
			item := &t.Products[j]
			if item.ProductID == nil {
				continue
			}
			var name string
			if err := db.GetContext(ctx, &name,
				`SELECT name FROM products WHERE id = ?`, *item.ProductID); err == nil {
				item.Name = name
			}
		}
	}
	return nil
}

// TransactionPatch lists the transaction fields that may be updated. A nil
// slice field leaves the stored value untouched; an empty non-nil slice
// clears it.
type TransactionPatch struct {
	Type          *string    `json:"type"`
	Date          *string    `json:"date"`
	CategoryIDs   []int64    `json:"category_ids"`
	ContactID     *int64     `json:"contact_id"`
	PaymentModeID *int64     `json:"payment_mode_id"`
	Discount      *float64   `json:"discount"`
	Charge        *float64   `json:"charge"`
	Amount        *float64   `json:"amount"`
	Products      []LineItem `json:"products"`
	Attachments   []string   `json:"attachments"`
	Description   *string    `json:"description"`
}

// UpdateTransaction merges the patch into the stored row, rewriting the
// category set and line items when supplied, and runs the price history hook
// on the update path.
func (db *DB) UpdateTransaction(ctx context.Context, id int64, patch TransactionPatch) error {
	set := "updated_at = ?, sync_status = ?"
	args := []any{nowString(), StatusPending}
	if patch.Type != nil {
		if *patch.Type != TypeIn && *patch.Type != TypeOut {
			return fmt.Errorf("transaction type must be %q or %q, got %q", TypeIn, TypeOut, *patch.Type)
		}
		set += ", type = ?"
		args = append(args, *patch.Type)
	}
	if patch.Date != nil {
		date, err := parseInputDate(*patch.Date)
		if err != nil {
			return err
		}
		set += ", date = ?"
		args = append(args, date)
	}
	if patch.ContactID != nil {
		set += ", contact_id = ?"
		args = append(args, *patch.ContactID)
	}
	if patch.PaymentModeID != nil {
		set += ", payment_mode_id = ?"
		args = append(args, *patch.PaymentModeID)
	}
	if patch.Discount != nil {
		set += ", discount = ?"
		args = append(args, RoundAmount(*patch.Discount))
	}
	if patch.Charge != nil {
		set += ", charge = ?"
		args = append(args, RoundAmount(*patch.Charge))
	}
	if patch.Amount != nil {
		set += ", amount = ?"
		args = append(args, RoundAmount(*patch.Amount))
	}
	if patch.Attachments != nil {
		set += ", attachments = ?"
		args = append(args, StringList(patch.Attachments))
	}
	if patch.Description != nil {
		set += ", description = ?"
		args = append(args, *patch.Description)
	}
	for i := range patch.Products {
		patch.Products[i].Rate = RoundAmount(patch.Products[i].Rate)
		patch.Products[i].Amount = RoundAmount(patch.Products[i].Amount)
	}

	// When only one of the category set and line items is being replaced, the
	// other must be fetched up front so the child rewrite keeps it.
	var currentCategoryIDs []int64
	var currentItems []LineItem
	if (patch.CategoryIDs == nil) != (patch.Products == nil) {
		current, err := db.GetTransaction(ctx, id)
		if err != nil {
			return err
		}
		currentCategoryIDs = current.CategoryIDs
		currentItems = current.Products
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() // no-op after commit.

	res, err := tx.ExecContext(ctx, "UPDATE transactions SET "+set+" WHERE id = ?", append(args, id)...)
	if err != nil {
		return fmt.Errorf("could not update transaction %d: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("transaction %d does not exist", id)
	}
	if patch.CategoryIDs != nil || patch.Products != nil {
		categoryIDs := patch.CategoryIDs
		if categoryIDs == nil {
			categoryIDs = currentCategoryIDs
		}
		items := patch.Products
		if items == nil {
			items = currentItems
		}
		if err := replaceTransactionChildren(ctx, tx, id, categoryIDs, items); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	db.publish(CollectionTransactions)

	if patch.Products != nil {
		if err := db.recordLineItemRates(ctx, patch.Products, true); err != nil {
			return err
		}
	}
	db.notifyTransactionWrite()
	return nil
}

// DeleteTransaction deletes a transaction and its child rows.
func (db *DB) DeleteTransaction(ctx context.Context, id int64) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() // no-op after commit.

	for _, stmt := range []string{
		`DELETE FROM transaction_items WHERE transaction_id = ?`,
		`DELETE FROM transaction_categories WHERE transaction_id = ?`,
		`DELETE FROM transactions WHERE id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, stmt, id); err != nil {
			return fmt.Errorf("could not delete transaction %d: %w", id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	db.publish(CollectionTransactions)
	db.notifyTransactionWrite()
	return nil
}
