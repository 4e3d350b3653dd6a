package db

// tests for the snapshot listing queries and sync status flipping

import (
	"context"
	"testing"
	"time"
)

func Test_MarkSyncedHonoursCutoff(t *testing.T) {

	testDB, closeDB := setupTestDB(t)
	t.Cleanup(closeDB)
	ctx := context.Background()

	base := time.Date(2026, 8, 30, 10, 0, 0, 0, time.Local)
	timeNow = func() time.Time { return base }
	t.Cleanup(func() { timeNow = time.Now })

	earlyID, err := testDB.CreateBook(ctx, "Shop")
	if err != nil {
		t.Fatalf("unexpected book creation error: %v", err)
	}
	cutoff := base.Format(TimeFormat)

	// a row written after the cutoff must stay pending.
	timeNow = func() time.Time { return base.Add(time.Minute) }
	lateID, err := testDB.CreateBook(ctx, "Household")
	if err != nil {
		t.Fatalf("unexpected book creation error: %v", err)
	}

	if err := testDB.MarkSynced(ctx, cutoff); err != nil {
		t.Fatalf("unexpected mark synced error: %v", err)
	}

	early, err := testDB.GetBook(ctx, earlyID)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := early.SyncStatus, StatusSynced; got != want {
		t.Errorf("early book status got %q want %q", got, want)
	}
	late, err := testDB.GetBook(ctx, lateID)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := late.SyncStatus, StatusPending; got != want {
		t.Errorf("late book status got %q want %q", got, want)
	}
}

func Test_MarkSyncedCoversAllCollections(t *testing.T) {

	testDB, closeDB := setupTestDB(t)
	t.Cleanup(closeDB)
	ctx := context.Background()

	bookID, err := testDB.CreateBook(ctx, "Shop")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := testDB.CreateCategory(ctx, NewCategory{Name: "Food", BookID: bookID}); err != nil {
		t.Fatal(err)
	}
	if _, err := testDB.CreateContact(ctx, "Anita", ""); err != nil {
		t.Fatal(err)
	}
	if _, err := testDB.CreatePaymentMode(ctx, NewPaymentMode{Name: "Cash", BookID: bookID}); err != nil {
		t.Fatal(err)
	}
	if _, err := testDB.CreateProduct(ctx, NewProduct{Name: "Coffee", Rate: 3.5, BookID: bookID}); err != nil {
		t.Fatal(err)
	}
	if _, err := testDB.CreateTransaction(ctx, NewTransaction{
		BookID: bookID, Type: TypeIn, Amount: 1,
	}); err != nil {
		t.Fatal(err)
	}

	if err := testDB.MarkSynced(ctx, Now()); err != nil {
		t.Fatalf("unexpected mark synced error: %v", err)
	}

	for _, table := range []string{
		"books", "transactions", "categories", "contacts", "payment_modes", "products",
	} {
		var count int
		if err := testDB.GetContext(ctx, &count,
			"SELECT COUNT(*) FROM "+table+" WHERE sync_status = ?", StatusPending); err != nil {
			t.Fatalf("could not count %s: %v", table, err)
		}
		if got, want := count, 0; got != want {
			t.Errorf("%s pending rows after mark synced got %d want %d", table, got, want)
		}
	}
}
