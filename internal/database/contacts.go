package database

import (
	"context"
	"fmt"

	"github.com/lib/pq"

	"github.com/Bhargavprasad-data/Jalrakshak-water-guarden-sub000/internal/model"
)

// InsertContact stores a notification recipient and returns it with
// its generated id.
func (db *DB) InsertContact(ctx context.Context, c *model.Contact) (*model.Contact, error) {
	query := `
		INSERT INTO contacts (name, phone, role, villages, whatsapp_opt_in)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	stored := *c
	err := db.conn.QueryRowContext(ctx, query,
		c.Name, c.Phone, c.Role, pq.Array(c.Villages), c.WhatsappOptIn,
	).Scan(&stored.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to insert contact: %w", err)
	}
	return &stored, nil
}

// ContactsForVillage returns opted-in contacts covering the given
// village. Contacts with an empty villages set receive everything.
func (db *DB) ContactsForVillage(ctx context.Context, village string) ([]*model.Contact, error) {
	query := `
		SELECT id, name, phone, role, villages, whatsapp_opt_in
		FROM contacts
		WHERE whatsapp_opt_in = TRUE
		  AND (cardinality(villages) = 0 OR $1 = ANY(villages))
		ORDER BY id
	`
	rows, err := db.conn.QueryContext(ctx, query, village)
	if err != nil {
		return nil, fmt.Errorf("failed to query contacts: %w", err)
	}
	defer rows.Close()

	var contacts []*model.Contact
	for rows.Next() {
		var c model.Contact
		if err := rows.Scan(
			&c.ID,
			&c.Name,
			&c.Phone,
			&c.Role,
			pq.Array(&c.Villages),
			&c.WhatsappOptIn,
		); err != nil {
			return nil, fmt.Errorf("failed to scan contact: %w", err)
		}
		contacts = append(contacts, &c)
	}
	return contacts, rows.Err()
}
