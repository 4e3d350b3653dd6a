package sync

// tests for the snapshot export and packing

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"io"
	"mime"
	"mime/multipart"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"hisab/db"
)

// setupTestDB opens a migrated database on a temporary file.
func setupTestDB(t *testing.T) *db.DB {
	t.Helper()
	database, err := db.NewConnection(filepath.Join(t.TempDir(), "test.db"), log.New(io.Discard))
	if err != nil {
		t.Fatalf("test database opening error: %v", err)
	}
	t.Cleanup(func() { _ = database.Close() })
	return database
}

// seedTwoBooks populates two books with five transactions between them.
func seedTwoBooks(t *testing.T, database *db.DB) {
	t.Helper()
	ctx := context.Background()

	shopID, err := database.CreateBook(ctx, "Shop")
	if err != nil {
		t.Fatal(err)
	}
	houseID, err := database.CreateBook(ctx, "Household")
	if err != nil {
		t.Fatal(err)
	}
	catID, err := database.CreateCategory(ctx, db.NewCategory{Name: "Food", BookID: shopID})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := database.CreateContact(ctx, "Anita", "222"); err != nil {
		t.Fatal(err)
	}
	if _, err := database.CreatePaymentMode(ctx, db.NewPaymentMode{Name: "Cash", BookID: shopID}); err != nil {
		t.Fatal(err)
	}
	productID, err := database.CreateProduct(ctx, db.NewProduct{Name: "Coffee", Rate: 3.5, BookID: shopID})
	if err != nil {
		t.Fatal(err)
	}

	for _, tr := range []db.NewTransaction{
		{BookID: shopID, Type: db.TypeIn, Amount: 100, CategoryIDs: []int64{catID}},
		{BookID: shopID, Type: db.TypeOut, Amount: 3.5,
			Products: []db.LineItem{{ProductID: &productID, Rate: 3.5, Amount: 3.5, Quantity: 1}}},
		{BookID: shopID, Type: db.TypeOut, Amount: 20},
		{BookID: houseID, Type: db.TypeIn, Amount: 50},
		{BookID: houseID, Type: db.TypeOut, Amount: 12},
	} {
		if _, err := database.CreateTransaction(ctx, tr); err != nil {
			t.Fatal(err)
		}
	}
}

func Test_Export(t *testing.T) {

	database := setupTestDB(t)
	ctx := context.Background()
	seedTwoBooks(t, database)

	snap, err := Export(ctx, database)
	if err != nil {
		t.Fatalf("unexpected export error: %v", err)
	}

	if got, want := snap.Version, SnapshotVersion; got != want {
		t.Errorf("snapshot version got %d want %d", got, want)
	}
	if snap.ExportDate == "" {
		t.Error("expected an export date")
	}
	if got, want := len(snap.Data.Books), 2; got != want {
		t.Errorf("book count got %d want %d", got, want)
	}
	if got, want := len(snap.Data.Transactions), 5; got != want {
		t.Errorf("transaction count got %d want %d", got, want)
	}
	if got, want := len(snap.Data.Categories), 1; got != want {
		t.Errorf("category count got %d want %d", got, want)
	}
	if got, want := len(snap.Data.Contacts), 1; got != want {
		t.Errorf("contact count got %d want %d", got, want)
	}
	if got, want := len(snap.Data.PaymentModes), 1; got != want {
		t.Errorf("payment mode count got %d want %d", got, want)
	}
	if got, want := len(snap.Data.Products), 1; got != want {
		t.Errorf("product count got %d want %d", got, want)
	}
	if got, want := len(snap.Data.ProductRates), 1; got != want {
		t.Errorf("product rate count got %d want %d", got, want)
	}

	// transactions carry their children in the export.
	var withItems int
	for _, tr := range snap.Data.Transactions {
		if len(tr.Products) > 0 {
			withItems++
		}
	}
	if got, want := withItems, 1; got != want {
		t.Errorf("transactions with line items got %d want %d", got, want)
	}
}

func Test_ExportJSONShape(t *testing.T) {

	database := setupTestDB(t)
	seedTwoBooks(t, database)

	snap, err := Export(context.Background(), database)
	if err != nil {
		t.Fatalf("unexpected export error: %v", err)
	}
	b, err := json.Marshal(snap)
	if err != nil {
		t.Fatalf("unexpected marshalling error: %v", err)
	}

	// the document is consumed by an external server: the key casing is part
	// of the contract.
	for _, key := range []string{
		`"version":`, `"exportDate":`, `"data":`,
		`"books":`, `"transactions":`, `"categories":`, `"contacts":`,
		`"payment_modes":`, `"products":`, `"product_rates":`,
	} {
		if !strings.Contains(string(b), key) {
			t.Errorf("serialized snapshot is missing %s", key)
		}
	}
}

func Test_PackSnapshotRoundTrip(t *testing.T) {

	database := setupTestDB(t)
	seedTwoBooks(t, database)

	snap, err := Export(context.Background(), database)
	if err != nil {
		t.Fatalf("unexpected export error: %v", err)
	}
	body, contentType, err := packSnapshot(snap)
	if err != nil {
		t.Fatalf("unexpected packing error: %v", err)
	}

	// unwrap the multipart envelope, gunzip, and compare the document.
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		t.Fatalf("could not parse content type %q: %v", contentType, err)
	}
	mr := multipart.NewReader(body, params["boundary"])
	part, err := mr.NextPart()
	if err != nil {
		t.Fatalf("could not read multipart body: %v", err)
	}
	if got, want := part.FormName(), "file"; got != want {
		t.Errorf("form field got %q want %q", got, want)
	}
	if got, want := part.FileName(), "data.json.gz"; got != want {
		t.Errorf("filename got %q want %q", got, want)
	}

	gz, err := gzip.NewReader(part)
	if err != nil {
		t.Fatalf("payload is not gzip: %v", err)
	}
	var decoded Snapshot
	if err := json.NewDecoder(gz).Decode(&decoded); err != nil {
		t.Fatalf("could not decode payload: %v", err)
	}
	if got, want := decoded.Version, snap.Version; got != want {
		t.Errorf("round-tripped version got %d want %d", got, want)
	}
	if got, want := len(decoded.Data.Transactions), len(snap.Data.Transactions); got != want {
		t.Errorf("round-tripped transaction count got %d want %d", got, want)
	}
}
