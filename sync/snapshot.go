// Package sync provides the snapshot export and one-way upload engine, plus
// the image upload client and attachment watcher. Sync here means a full
// point-in-time export of all local data pushed to a remote endpoint as a
// compressed file; it is not bidirectional replication.
package sync

import (
	"context"
	"fmt"

	"hisab/db"
)

// SnapshotVersion is the version field of exported snapshot documents. It
// tracks the schema version.
const SnapshotVersion = db.SchemaVersion

// Snapshot is the versioned full-database export document.
type Snapshot struct {
	Version    int          `json:"version"`
	ExportDate string       `json:"exportDate"`
	Data       SnapshotData `json:"data"`
}

// SnapshotData holds all rows of the fixed enumerated set of exported
// collections.
type SnapshotData struct {
	Books        []db.Book        `json:"books"`
	Transactions []db.Transaction `json:"transactions"`
	Categories   []db.Category    `json:"categories"`
	Contacts     []db.Contact     `json:"contacts"`
	PaymentModes []db.PaymentMode `json:"payment_modes"`
	Products     []db.Product     `json:"products"`
	ProductRates []db.ProductRate `json:"product_rates"`
}

// Export reads every row of every exported collection into a snapshot
// document.
func Export(ctx context.Context, database *db.DB) (*Snapshot, error) {
	snap := &Snapshot{
		Version:    SnapshotVersion,
		ExportDate: db.Now(),
	}
	var err error
	if snap.Data.Books, err = database.AllBooks(ctx); err != nil {
		return nil, fmt.Errorf("snapshot export: %w", err)
	}
	if snap.Data.Transactions, err = database.AllTransactions(ctx); err != nil {
		return nil, fmt.Errorf("snapshot export: %w", err)
	}
	if snap.Data.Categories, err = database.AllCategories(ctx); err != nil {
		return nil, fmt.Errorf("snapshot export: %w", err)
	}
	if snap.Data.Contacts, err = database.AllContacts(ctx); err != nil {
		return nil, fmt.Errorf("snapshot export: %w", err)
	}
	if snap.Data.PaymentModes, err = database.AllPaymentModes(ctx); err != nil {
		return nil, fmt.Errorf("snapshot export: %w", err)
	}
	if snap.Data.Products, err = database.AllProducts(ctx); err != nil {
		return nil, fmt.Errorf("snapshot export: %w", err)
	}
	if snap.Data.ProductRates, err = database.AllProductRates(ctx); err != nil {
		return nil, fmt.Errorf("snapshot export: %w", err)
	}
	return snap, nil
}
