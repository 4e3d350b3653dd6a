package db

// contacts.go deals with contact database calls. Contacts are global, not
// book-scoped.

import (
	"context"
	"fmt"
)

// Contact is a person or party a transaction can reference.
type Contact struct {
	ID         int64  `db:"id" json:"id"`
	Name       string `db:"name" json:"name"`
	Phone      string `db:"phone" json:"phone"`
	CreatedAt  string `db:"created_at" json:"created_at"`
	UpdatedAt  string `db:"updated_at" json:"updated_at"`
	SyncStatus string `db:"sync_status" json:"sync_status"`
}

// CreateContact creates a contact and returns its generated id.
func (db *DB) CreateContact(ctx context.Context, name, phone string) (int64, error) {
	if name == "" {
		return 0, fmt.Errorf("contact name must not be empty")
	}
	now := nowString()
	res, err := db.ExecContext(ctx,
		`INSERT INTO contacts (name, phone, created_at, updated_at, sync_status) VALUES (?, ?, ?, ?, ?)`,
		name, phone, now, now, StatusPending,
	)
	if err != nil {
		return 0, fmt.Errorf("could not create contact: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	db.publish(CollectionContacts)
	return id, nil
}

// GetContact retrieves a single contact.
func (db *DB) GetContact(ctx context.Context, id int64) (Contact, error) {
	var c Contact
	err := db.GetContext(ctx, &c, `SELECT * FROM contacts WHERE id = ?`, id)
	if err != nil {
		return Contact{}, fmt.Errorf("could not get contact %d: %w", id, err)
	}
	return c, nil
}

// Contacts returns all contacts ordered by name.
func (db *DB) Contacts(ctx context.Context) ([]Contact, error) {
	var contacts []Contact
	err := db.SelectContext(ctx, &contacts, `SELECT * FROM contacts ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("could not list contacts: %w", err)
	}
	return contacts, nil
}

// ContactPatch lists the contact fields that may be updated.
type ContactPatch struct {
	Name  *string `json:"name"`
	Phone *string `json:"phone"`
}

// UpdateContact merges the patch into the stored row.
func (db *DB) UpdateContact(ctx context.Context, id int64, patch ContactPatch) error {
	set := "updated_at = ?, sync_status = ?"
	args := []any{nowString(), StatusPending}
	if patch.Name != nil {
		set += ", name = ?"
		args = append(args, *patch.Name)
	}
	if patch.Phone != nil {
		set += ", phone = ?"
		args = append(args, *patch.Phone)
	}
	args = append(args, id)
	_, err := db.ExecContext(ctx, "UPDATE contacts SET "+set+" WHERE id = ?", args...)
	if err != nil {
		return fmt.Errorf("could not update contact %d: %w", id, err)
	}
	db.publish(CollectionContacts)
	return nil
}

// DeleteContact deletes a contact unless it is referenced by a transaction.
func (db *DB) DeleteContact(ctx context.Context, id int64) error {
	n, err := db.count(ctx, `SELECT COUNT(*) FROM transactions WHERE contact_id = ?`, id)
	if err != nil {
		return err
	}
	if n > 0 {
		return &ReferentialIntegrityError{Kind: "transaction", Count: n}
	}
	if _, err := db.ExecContext(ctx, `DELETE FROM contacts WHERE id = ?`, id); err != nil {
		return fmt.Errorf("could not delete contact %d: %w", id, err)
	}
	db.publish(CollectionContacts)
	return nil
}
