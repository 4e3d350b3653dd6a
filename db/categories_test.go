package db

// tests for category-related database queries

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func Test_CategoryCreateDefaults(t *testing.T) {

	testDB, closeDB := setupTestDB(t)
	t.Cleanup(closeDB)
	ctx := context.Background()

	bookID, err := testDB.CreateBook(ctx, "Shop")
	if err != nil {
		t.Fatalf("unexpected book creation error: %v", err)
	}
	id, err := testDB.CreateCategory(ctx, NewCategory{Name: "Food", BookID: bookID})
	if err != nil {
		t.Fatalf("unexpected category creation error: %v", err)
	}

	cat, err := testDB.GetCategory(ctx, id)
	if err != nil {
		t.Fatalf("unexpected category retrieval error: %v", err)
	}
	if got, want := cat.Sort, defaultCategorySort; got != want {
		t.Errorf("default sort got %d want %d", got, want)
	}

	// creating against a missing book fails.
	if _, err := testDB.CreateCategory(ctx, NewCategory{Name: "x", BookID: 999}); err == nil {
		t.Error("expected an error creating a category in a missing book")
	}
}

func Test_CategoriesSortOrder(t *testing.T) {

	testDB, closeDB := setupTestDB(t)
	t.Cleanup(closeDB)
	ctx := context.Background()

	bookID, err := testDB.CreateBook(ctx, "Shop")
	if err != nil {
		t.Fatalf("unexpected book creation error: %v", err)
	}

	var ids []int64
	for _, name := range []string{"Food", "Travel", "Rent"} {
		id, err := testDB.CreateCategory(ctx, NewCategory{Name: name, BookID: bookID})
		if err != nil {
			t.Fatalf("unexpected category creation error: %v", err)
		}
		ids = append(ids, id)
	}

	// pull Rent to the front with a lower sort weight.
	if err := testDB.UpdateCategory(ctx, ids[2], CategoryPatch{Sort: ptrInt(1)}); err != nil {
		t.Fatalf("unexpected category update error: %v", err)
	}

	categories, err := testDB.CategoriesByBook(ctx, bookID)
	if err != nil {
		t.Fatalf("unexpected category listing error: %v", err)
	}
	var names []string
	for _, c := range categories {
		names = append(names, c.Name)
	}
	want := []string{"Rent", "Food", "Travel"}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("category order mismatch (-want +got):\n%s", diff)
	}
}

func Test_CategoryDeleteGuards(t *testing.T) {

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
	txID, err := testDB.CreateTransaction(ctx, NewTransaction{
		BookID: bookID, Type: TypeOut, Amount: 5, CategoryIDs: []int64{catID},
	})
	if err != nil {
		t.Fatalf("unexpected transaction creation error: %v", err)
	}

	// referenced by a transaction: blocked.
	err = testDB.DeleteCategory(ctx, catID)
	var rie *ReferentialIntegrityError
	if !errors.As(err, &rie) {
		t.Fatalf("expected a referential integrity error, got %v", err)
	}
	if got, want := rie.Kind, "transaction"; got != want {
		t.Errorf("error kind got %q want %q", got, want)
	}
	if got, want := rie.Count, 1; got != want {
		t.Errorf("error count got %d want %d", got, want)
	}

	// referenced by a product after the transaction goes: still blocked.
	if err := testDB.DeleteTransaction(ctx, txID); err != nil {
		t.Fatalf("unexpected transaction deletion error: %v", err)
	}
	if _, err := testDB.CreateProduct(ctx, NewProduct{
		Name: "Coffee", Rate: 3, BookID: bookID, CategoryID: &catID,
	}); err != nil {
		t.Fatalf("unexpected product creation error: %v", err)
	}
	err = testDB.DeleteCategory(ctx, catID)
	if !errors.As(err, &rie) {
		t.Fatalf("expected a referential integrity error, got %v", err)
	}
	if got, want := rie.Kind, "product"; got != want {
		t.Errorf("error kind got %q want %q", got, want)
	}

	// unreferenced categories delete cleanly.
	otherID, err := testDB.CreateCategory(ctx, NewCategory{Name: "Travel", BookID: bookID})
	if err != nil {
		t.Fatalf("unexpected category creation error: %v", err)
	}
	if err := testDB.DeleteCategory(ctx, otherID); err != nil {
		t.Errorf("unexpected category deletion error: %v", err)
	}
}
