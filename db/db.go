// Package db provides the local data layer of the hisab project.
//
// The database backend is sqlite to allow for cross-platform desktop use, but
// the store is treated as a schemaless-ish document store in the manner of the
// browser databases this design comes from: foreign key enforcement is
// deliberately not enabled and referential integrity is checked by the
// repositories at delete time. The schema is evolved through ordered, numbered
// migrations applied against sqlite's user_version pragma; see schema.go.
//
// Every write publishes a change notification for its collection, which drives
// the live query subscriptions in live.go.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/jmoiron/sqlx" // helper library
	_ "modernc.org/sqlite"    // pure go sqlite driver
)

// Collection names used for change notification and snapshot export.
const (
	CollectionBooks        = "books"
	CollectionTransactions = "transactions"
	CollectionCategories   = "categories"
	CollectionContacts     = "contacts"
	CollectionPaymentModes = "payment_modes"
	CollectionProducts     = "products"
	CollectionProductRates = "product_rates"
	CollectionSettings     = "settings"
)

// Row-level sync states. Rows are written pending and only the sync engine
// moves them to synced.
const (
	StatusPending = "pending"
	StatusSynced  = "synced"
)

// DB provides a wrapper around the sqlx.DB connection for application-specific
// db operations.
type DB struct {
	*sqlx.DB
	logger *log.Logger
	bus    *changeBus

	// transactionWriteHook, when set, runs after every transaction
	// create/update/delete. The sync engine registers its fire-and-forget
	// trigger here so the db package need not know about syncing.
	transactionWriteHook func()
}

// NewConnection creates a new connection to an SQLite database at the given
// path and applies any outstanding schema migrations before returning. A nil
// logger gets a default logging to stderr.
func NewConnection(dbPath string, logger *log.Logger) (*DB, error) {

	// dataSource is the default setting for file-based databases. Foreign key
	// enforcement stays off: integrity is application-level.
	dataSource := fmt.Sprintf("%s?_pragma=journal_mode(WAL)", dbPath)

	// for in-memory test databases, check the necessary cached setting is used.
	if strings.Contains(dbPath, ":memory:") {
		if !strings.Contains(dbPath, "cache=shared") {
			return nil, fmt.Errorf("in-memory connection %q should contain '?cache=shared'", dbPath)
		}
		dataSource = dbPath
	}
	dbDB, err := sql.Open("sqlite", dataSource)
	if err != nil {
		return nil, err
	}

	if err := dbDB.Ping(); err != nil {
		return nil, err
	}

	if logger == nil {
		logger = log.New(os.Stderr)
	}

	// Wrap the standard library *sql.DB with sqlx.
	db := &DB{
		DB:     sqlx.NewDb(dbDB, "sqlite"),
		logger: logger,
		bus:    newChangeBus(),
	}

	// Migrations must complete before any repository call executes.
	if err := db.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("could not migrate database: %w", err)
	}

	return db, nil
}

// OnTransactionWrite registers fn to run after every transaction write. Only
// one hook is held; a later registration replaces an earlier one.
func (db *DB) OnTransactionWrite(fn func()) {
	db.transactionWriteHook = fn
}

// notifyTransactionWrite runs the registered post-write hook, if any.
func (db *DB) notifyTransactionWrite() {
	if db.transactionWriteHook != nil {
		db.transactionWriteHook()
	}
}

// publish pushes a change notification for the named collection to all live
// subscriptions watching it.
func (db *DB) publish(collection string) {
	db.bus.publish(collection)
}

// count is a helper for the referential integrity guards.
func (db *DB) count(ctx context.Context, query string, args ...any) (int, error) {
	var n int
	if err := db.GetContext(ctx, &n, query, args...); err != nil {
		return 0, err
	}
	return n, nil
}
