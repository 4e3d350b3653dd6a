package db

// copy.go implements the cross-book copy/move resolver. Copying a transaction
// into a target book re-maps every referenced entity to an equivalent entity
// in that book, creating one if no row with the same name exists there.
// Contacts are global and carried as-is. Category resolution is cached within
// a single copy so a product's category and the transaction's own category
// set agree when they refer to the same source category.

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// CopyTransaction copies a transaction into the target book and returns the
// new transaction's id. The copy gets fresh audit fields, pending sync status
// and no attachments (file attachments are not duplicated across books).
func (db *DB) CopyTransaction(ctx context.Context, transactionID, targetBookID int64) (int64, error) {
	src, err := db.GetTransaction(ctx, transactionID)
	if err != nil {
		return 0, err
	}
	if err := db.bookExists(ctx, targetBookID); err != nil {
		return 0, fmt.Errorf("copy target: %w", err)
	}

	// Per-operation cache of source category id to target category id.
	categoryCache := make(map[int64]int64)

	var targetPaymentModeID *int64
	if src.PaymentModeID != nil {
		sourceMode, err := db.GetPaymentMode(ctx, *src.PaymentModeID)
		if err == nil {
			id, err := db.ensurePaymentMode(ctx, targetBookID, sourceMode)
			if err != nil {
				return 0, err
			}
			targetPaymentModeID = &id
		}
	}

	var targetCategoryIDs []int64
	for _, catID := range src.CategoryIDs {
		sourceCat, err := db.GetCategory(ctx, catID)
		if err != nil {
			continue
		}
		id, err := db.ensureCategory(ctx, targetBookID, sourceCat, categoryCache)
		if err != nil {
			return 0, err
		}
		targetCategoryIDs = append(targetCategoryIDs, id)
	}

	targetItems := make([]LineItem, 0, len(src.Products))
	for _, item := range src.Products {
		target := item
		target.Name = ""
		if item.ProductID != nil {
			sourceProduct, err := db.GetProduct(ctx, *item.ProductID)
			if err == nil {
				var targetCategoryID *int64
				if sourceProduct.CategoryID != nil {
					sourceCat, err := db.GetCategory(ctx, *sourceProduct.CategoryID)
					if err == nil {
						id, err := db.ensureCategory(ctx, targetBookID, sourceCat, categoryCache)
						if err != nil {
							return 0, err
						}
						targetCategoryID = &id
					}
				}
				id, err := db.ensureProduct(ctx, targetBookID, sourceProduct, targetCategoryID)
				if err != nil {
					return 0, err
				}
				target.ProductID = &id
			}
		}
		targetItems = append(targetItems, target)
	}

	// Insert directly rather than through CreateTransaction: the line item
	// rates already reflect the source products, and any just-created target
	// product carries the same rate, so the price history hook must not run.
	newID, err := db.insertTransaction(ctx, NewTransaction{
		BookID:        targetBookID,
		Type:          src.Type,
		Date:          src.Date,
		CategoryIDs:   targetCategoryIDs,
		ContactID:     src.ContactID,
		PaymentModeID: targetPaymentModeID,
		Discount:      src.Discount,
		Charge:        src.Charge,
		Amount:        src.Amount,
		Products:      targetItems,
		Description:   src.Description,
	})
	if err != nil {
		return 0, err
	}
	db.notifyTransactionWrite()
	return newID, nil
}

// MoveTransaction copies the transaction to the target book and then deletes
// the source. The delete only executes after the copy's insert succeeds, so a
// failed copy leaves the source intact.
func (db *DB) MoveTransaction(ctx context.Context, transactionID, targetBookID int64) (int64, error) {
	newID, err := db.CopyTransaction(ctx, transactionID, targetBookID)
	if err != nil {
		return 0, err
	}
	if err := db.DeleteTransaction(ctx, transactionID); err != nil {
		return 0, fmt.Errorf("copied as %d but could not delete source: %w", newID, err)
	}
	return newID, nil
}

// ensureCategory resolves a source category to the target book by exact name,
// creating an equivalent one (descriptive fields only) if absent.
func (db *DB) ensureCategory(
	ctx context.Context,
	targetBookID int64,
	source Category,
	cache map[int64]int64,
) (int64, error) {
	if id, ok := cache[source.ID]; ok {
		return id, nil
	}
	var id int64
	err := db.GetContext(ctx, &id,
		`SELECT id FROM categories WHERE book_id = ? AND name = ? LIMIT 1`,
		targetBookID, source.Name)
	if errors.Is(err, sql.ErrNoRows) {
		id, err = db.CreateCategory(ctx, NewCategory{
			Name:        source.Name,
			Description: source.Description,
			BookID:      targetBookID,
		})
	}
	if err != nil {
		return 0, fmt.Errorf("could not resolve category %q in book %d: %w", source.Name, targetBookID, err)
	}
	cache[source.ID] = id
	return id, nil
}

// ensurePaymentMode resolves a source payment mode to the target book by
// exact name, creating an equivalent one if absent.
func (db *DB) ensurePaymentMode(ctx context.Context, targetBookID int64, source PaymentMode) (int64, error) {
	var id int64
	err := db.GetContext(ctx, &id,
		`SELECT id FROM payment_modes WHERE book_id = ? AND name = ? LIMIT 1`,
		targetBookID, source.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return db.CreatePaymentMode(ctx, NewPaymentMode{
			Name:        source.Name,
			Description: source.Description,
			BookID:      targetBookID,
		})
	}
	if err != nil {
		return 0, fmt.Errorf("could not resolve payment mode %q in book %d: %w", source.Name, targetBookID, err)
	}
	return id, nil
}

// ensureProduct resolves a source product to the target book by exact name,
// creating an equivalent one (descriptive fields, no audit or sync fields,
// no attachments) if absent.
func (db *DB) ensureProduct(
	ctx context.Context,
	targetBookID int64,
	source Product,
	targetCategoryID *int64,
) (int64, error) {
	var id int64
	err := db.GetContext(ctx, &id,
		`SELECT id FROM products WHERE book_id = ? AND name = ? LIMIT 1`,
		targetBookID, source.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return db.CreateProduct(ctx, NewProduct{
			Name:         source.Name,
			Rate:         source.Rate,
			Description:  source.Description,
			QuantityType: source.QuantityType,
			BookID:       targetBookID,
			CategoryID:   targetCategoryID,
		})
	}
	if err != nil {
		return 0, fmt.Errorf("could not resolve product %q in book %d: %w", source.Name, targetBookID, err)
	}
	return id, nil
}
