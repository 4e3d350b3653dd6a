package db

// tests for book-related database queries

import (
	"context"
	"testing"
)

func Test_BookCreateAndGet(t *testing.T) {

	testDB, closeDB := setupTestDB(t)
	t.Cleanup(closeDB)
	ctx := context.Background()

	id, err := testDB.CreateBook(ctx, "Household")
	if err != nil {
		t.Fatalf("unexpected book creation error: %v", err)
	}

	book, err := testDB.GetBook(ctx, id)
	if err != nil {
		t.Fatalf("unexpected book retrieval error: %v", err)
	}
	if got, want := book.Name, "Household"; got != want {
		t.Errorf("book name got %q want %q", got, want)
	}
	if got, want := book.SyncStatus, StatusPending; got != want {
		t.Errorf("sync status got %q want %q", got, want)
	}
	if book.CreatedAt == "" || book.UpdatedAt == "" {
		t.Error("expected timestamps to be set")
	}

	if _, err := testDB.CreateBook(ctx, ""); err == nil {
		t.Error("expected an error creating a book with an empty name")
	}
}

func Test_BookUpdate(t *testing.T) {

	testDB, closeDB := setupTestDB(t)
	t.Cleanup(closeDB)
	ctx := context.Background()

	id, err := testDB.CreateBook(ctx, "Household")
	if err != nil {
		t.Fatalf("unexpected book creation error: %v", err)
	}

	// mark the row synced, then verify an update flips it back to pending.
	if err := testDB.MarkSynced(ctx, Now()); err != nil {
		t.Fatalf("unexpected mark synced error: %v", err)
	}

	if err := testDB.UpdateBook(ctx, id, BookPatch{Name: ptrStr("Shop")}); err != nil {
		t.Fatalf("unexpected book update error: %v", err)
	}
	book, err := testDB.GetBook(ctx, id)
	if err != nil {
		t.Fatalf("unexpected book retrieval error: %v", err)
	}
	if got, want := book.Name, "Shop"; got != want {
		t.Errorf("book name got %q want %q", got, want)
	}
	if got, want := book.SyncStatus, StatusPending; got != want {
		t.Errorf("sync status after update got %q want %q", got, want)
	}
}

func Test_BookDeleteCascades(t *testing.T) {

	testDB, closeDB := setupTestDB(t)
	t.Cleanup(closeDB)
	ctx := context.Background()

	bookID, err := testDB.CreateBook(ctx, "Shop")
	if err != nil {
		t.Fatalf("unexpected book creation error: %v", err)
	}
	catID, err := testDB.CreateCategory(ctx, NewCategory{Name: "Food", BookID: bookID})
	if err != nil {
		t.Fatalf("unexpected category creation error: %v", err)
	}
	productID, err := testDB.CreateProduct(ctx, NewProduct{Name: "Coffee", Rate: 3, BookID: bookID})
	if err != nil {
		t.Fatalf("unexpected product creation error: %v", err)
	}
	_, err = testDB.CreateTransaction(ctx, NewTransaction{
		BookID:      bookID,
		Type:        TypeOut,
		Amount:      3,
		CategoryIDs: []int64{catID},
		Products:    []LineItem{{ProductID: &productID, Rate: 3, Amount: 3, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("unexpected transaction creation error: %v", err)
	}

	if err := testDB.DeleteBook(ctx, bookID); err != nil {
		t.Fatalf("unexpected book deletion error: %v", err)
	}

	for _, check := range []struct {
		table string
		query string
	}{
		{"transactions", `SELECT COUNT(*) FROM transactions WHERE book_id = ?`},
		{"transaction_items", `SELECT COUNT(*) FROM transaction_items`},
		{"transaction_categories", `SELECT COUNT(*) FROM transaction_categories`},
	} {
		var count int
		var err error
		if check.table == "transactions" {
			err = testDB.GetContext(ctx, &count, check.query, bookID)
		} else {
			err = testDB.GetContext(ctx, &count, check.query)
		}
		if err != nil {
			t.Fatalf("could not count %s: %v", check.table, err)
		}
		if got, want := count, 0; got != want {
			t.Errorf("%s count after cascade got %d want %d", check.table, got, want)
		}
	}

	// scoped entities other than transactions survive a book deletion.
	var count int
	if err := testDB.GetContext(ctx, &count, `SELECT COUNT(*) FROM categories WHERE book_id = ?`, bookID); err != nil {
		t.Fatal(err)
	}
	if got, want := count, 1; got != want {
		t.Errorf("category count after cascade got %d want %d", got, want)
	}
}

func Test_BookStats(t *testing.T) {

	testDB, closeDB := setupTestDB(t)
	t.Cleanup(closeDB)
	ctx := context.Background()

	bookID, err := testDB.CreateBook(ctx, "Shop")
	if err != nil {
		t.Fatalf("unexpected book creation error: %v", err)
	}
	for _, tr := range []NewTransaction{
		{BookID: bookID, Type: TypeIn, Amount: 100},
		{BookID: bookID, Type: TypeIn, Amount: 25.5},
		{BookID: bookID, Type: TypeOut, Amount: 40},
	} {
		if _, err := testDB.CreateTransaction(ctx, tr); err != nil {
			t.Fatalf("unexpected transaction creation error: %v", err)
		}
	}

	stats, err := testDB.GetBookStats(ctx, bookID)
	if err != nil {
		t.Fatalf("unexpected stats error: %v", err)
	}
	if got, want := stats.TotalIn, 125.5; got != want {
		t.Errorf("total in got %v want %v", got, want)
	}
	if got, want := stats.TotalOut, 40.0; got != want {
		t.Errorf("total out got %v want %v", got, want)
	}
	if got, want := stats.NetBalance, 85.5; got != want {
		t.Errorf("net balance got %v want %v", got, want)
	}
}
