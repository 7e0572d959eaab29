package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"seasonstay/internal/models"
)

const listingColumns = `
	id, external_id, source,
	COALESCE(partner_id, '') as partner_id,
	COALESCE(url, '') as url,
	title,
	COALESCE(description, '') as description,
	price,
	COALESCE(surface, 0) as surface,
	COALESCE(rooms, 0) as rooms,
	COALESCE(property_type, '') as property_type,
	latitude, longitude,
	COALESCE(city, '') as city,
	COALESCE(address, '') as address,
	COALESCE(images, '[]') as images,
	COALESCE(unavailable, '[]') as unavailable
`

type listingRow struct {
	ID          int64    `db:"id"`
	ExternalID  string   `db:"external_id"`
	Source      string   `db:"source"`
	PartnerID   string   `db:"partner_id"`
	URL         string   `db:"url"`
	Title       string   `db:"title"`
	Description string   `db:"description"`
	Price       float64  `db:"price"`
	Surface     float64  `db:"surface"`
	Rooms       int      `db:"rooms"`
	Type        string   `db:"property_type"`
	Latitude    *float64 `db:"latitude"`
	Longitude   *float64 `db:"longitude"`
	City        string   `db:"city"`
	Address     string   `db:"address"`
	Images      string   `db:"images"`
	Unavailable string   `db:"unavailable"`
}

func (r listingRow) toListing() (models.Listing, error) {
	l := models.Listing{
		ID:          r.ID,
		ExternalID:  r.ExternalID,
		Source:      r.Source,
		PartnerID:   r.PartnerID,
		URL:         r.URL,
		Title:       r.Title,
		Description: r.Description,
		Price:       r.Price,
		Surface:     r.Surface,
		Rooms:       r.Rooms,
		Type:        models.PropertyType(r.Type),
		Latitude:    r.Latitude,
		Longitude:   r.Longitude,
		City:        r.City,
		Address:     r.Address,
	}
	if err := json.Unmarshal([]byte(r.Images), &l.Images); err != nil {
		return l, fmt.Errorf("listing %d images: %w", r.ID, err)
	}
	if err := json.Unmarshal([]byte(r.Unavailable), &l.Unavailable); err != nil {
		return l, fmt.Errorf("listing %d unavailability: %w", r.ID, err)
	}
	if l.Images == nil {
		l.Images = []string{}
	}
	return l, nil
}

// ListListings returns every listing ordered by ID
func (db *DB) ListListings(ctx context.Context) ([]models.Listing, error) {
	var rows []listingRow
	err := db.SelectContext(ctx, &rows, "SELECT "+listingColumns+" FROM listings ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to list listings: %w", err)
	}

	listings := make([]models.Listing, 0, len(rows))
	for _, r := range rows {
		l, err := r.toListing()
		if err != nil {
			return nil, err
		}
		listings = append(listings, l)
	}
	return listings, nil
}

// GetListing returns a single listing by ID
func (db *DB) GetListing(ctx context.Context, id int64) (*models.Listing, error) {
	var r listingRow
	err := db.GetContext(ctx, &r, "SELECT "+listingColumns+" FROM listings WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get listing: %w", err)
	}

	l, err := r.toListing()
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// UpsertListing inserts or updates a listing based on (external_id, source)
// and returns its ID. A non-zero l.ID is used for new rows; otherwise one is
// assigned. l.ID is set on return.
func (db *DB) UpsertListing(ctx context.Context, l *models.Listing) (int64, error) {
	if l.ExternalID == "" || l.Source == "" {
		return 0, fmt.Errorf("listing needs external_id and source")
	}

	images, err := json.Marshal(l.Images)
	if err != nil {
		return 0, fmt.Errorf("encode images: %w", err)
	}
	unavailable, err := json.Marshal(l.Unavailable)
	if err != nil {
		return 0, fmt.Errorf("encode unavailability: %w", err)
	}

	query := `
		INSERT INTO listings (
			id, external_id, source, partner_id, url,
			title, description, price, surface, rooms, property_type,
			latitude, longitude, city, address, images, unavailable
		) VALUES (
			NULLIF(?, 0), ?, ?, NULLIF(?, ''), NULLIF(?, ''),
			?, ?, ?, ?, ?, ?,
			?, ?, ?, ?, ?, ?
		)
		ON CONFLICT(external_id, source) DO UPDATE SET
			partner_id = COALESCE(excluded.partner_id, listings.partner_id),
			url = COALESCE(excluded.url, listings.url),
			title = excluded.title,
			description = excluded.description,
			price = excluded.price,
			surface = excluded.surface,
			rooms = excluded.rooms,
			property_type = excluded.property_type,
			latitude = COALESCE(excluded.latitude, listings.latitude),
			longitude = COALESCE(excluded.longitude, listings.longitude),
			city = excluded.city,
			address = excluded.address,
			images = excluded.images,
			unavailable = excluded.unavailable,
			updated_at = CURRENT_TIMESTAMP
		RETURNING id
	`

	var id int64
	err = db.GetContext(ctx, &id, query,
		l.ID, l.ExternalID, l.Source, l.PartnerID, l.URL,
		l.Title, l.Description, l.Price, l.Surface, l.Rooms, string(l.Type),
		l.Latitude, l.Longitude, l.City, l.Address, string(images), string(unavailable),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert listing %s/%s: %w", l.Source, l.ExternalID, err)
	}

	l.ID = id
	return id, nil
}

// CountListings returns total number of listings
func (db *DB) CountListings(ctx context.Context) (int, error) {
	var count int
	err := db.GetContext(ctx, &count, "SELECT COUNT(*) FROM listings")
	return count, err
}
