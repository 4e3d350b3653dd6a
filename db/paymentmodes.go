package db

// paymentmodes.go deals with payment mode database calls.

import (
	"context"
	"fmt"
)

// PaymentMode is a book-scoped method of payment.
type PaymentMode struct {
	ID          int64  `db:"id" json:"id"`
	Name        string `db:"name" json:"name"`
	Description string `db:"description" json:"description"`
	BookID      int64  `db:"book_id" json:"book_id"`
	CreatedAt   string `db:"created_at" json:"created_at"`
	UpdatedAt   string `db:"updated_at" json:"updated_at"`
	SyncStatus  string `db:"sync_status" json:"sync_status"`
}

// NewPaymentMode carries the caller-supplied fields for CreatePaymentMode.
type NewPaymentMode struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	BookID      int64  `json:"book_id"`
}

// CreatePaymentMode creates a payment mode in the given book.
func (db *DB) CreatePaymentMode(ctx context.Context, npm NewPaymentMode) (int64, error) {
	if npm.Name == "" {
		return 0, fmt.Errorf("payment mode name must not be empty")
	}
	if err := db.bookExists(ctx, npm.BookID); err != nil {
		return 0, err
	}
	now := nowString()
	res, err := db.ExecContext(ctx,
		`INSERT INTO payment_modes (name, description, book_id, created_at, updated_at, sync_status)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		npm.Name, npm.Description, npm.BookID, now, now, StatusPending,
	)
	if err != nil {
		return 0, fmt.Errorf("could not create payment mode: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	db.publish(CollectionPaymentModes)
	return id, nil
}

// GetPaymentMode retrieves a single payment mode.
func (db *DB) GetPaymentMode(ctx context.Context, id int64) (PaymentMode, error) {
	var pm PaymentMode
	err := db.GetContext(ctx, &pm, `SELECT * FROM payment_modes WHERE id = ?`, id)
	if err != nil {
		return PaymentMode{}, fmt.Errorf("could not get payment mode %d: %w", id, err)
	}
	return pm, nil
}

// PaymentModesByBook returns the payment modes of a book.
func (db *DB) PaymentModesByBook(ctx context.Context, bookID int64) ([]PaymentMode, error) {
	var modes []PaymentMode
	err := db.SelectContext(ctx, &modes,
		`SELECT * FROM payment_modes WHERE book_id = ? ORDER BY id`, bookID)
	if err != nil {
		return nil, fmt.Errorf("could not list payment modes for book %d: %w", bookID, err)
	}
	return modes, nil
}

// PaymentModePatch lists the payment mode fields that may be updated.
type PaymentModePatch struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

// UpdatePaymentMode merges the patch into the stored row.
func (db *DB) UpdatePaymentMode(ctx context.Context, id int64, patch PaymentModePatch) error {
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
	args = append(args, id)
	_, err := db.ExecContext(ctx, "UPDATE payment_modes SET "+set+" WHERE id = ?", args...)
	if err != nil {
		return fmt.Errorf("could not update payment mode %d: %w", id, err)
	}
	db.publish(CollectionPaymentModes)
	return nil
}

// DeletePaymentMode deletes a payment mode unless it is referenced by a
// transaction.
func (db *DB) DeletePaymentMode(ctx context.Context, id int64) error {
	n, err := db.count(ctx, `SELECT COUNT(*) FROM transactions WHERE payment_mode_id = ?`, id)
	if err != nil {
		return err
	}
	if n > 0 {
		return &ReferentialIntegrityError{Kind: "transaction", Count: n}
	}
	if _, err := db.ExecContext(ctx, `DELETE FROM payment_modes WHERE id = ?`, id); err != nil {
		return fmt.Errorf("could not delete payment mode %d: %w", id, err)
	}
	db.publish(CollectionPaymentModes)
	return nil
}
