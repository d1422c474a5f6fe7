// Package database is the SQLite listing store. The schema is managed by
// goose migrations embedded in the migrations package.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pressly/goose/v3"

	"github.com/jredh-dev/foodshare/internal/database/migrations"
	"github.com/jredh-dev/foodshare/internal/store"
	"github.com/jredh-dev/foodshare/pkg/models"

	_ "modernc.org/sqlite"
)

// DB wraps a SQLite connection.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database at path and applies pending
// migrations.
func Open(ctx context.Context, path string) (*DB, error) {
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Single writer. Transactions serialize on this connection, which is what
	// makes the claim guard atomic.
	conn.SetMaxOpenConns(1)

	if err := migrate(ctx, conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return &DB{conn: conn}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func migrate(ctx context.Context, conn *sql.DB) error {
	provider, err := goose.NewProvider(goose.DialectSQLite3, conn, migrations.FS)
	if err != nil {
		return fmt.Errorf("create goose provider: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// Timestamps are stored as Unix microseconds so ordering in SQL matches
// ordering in Go.

func toMicros(t time.Time) int64 {
	return t.UTC().UnixMicro()
}

func fromMicros(v int64) time.Time {
	return time.UnixMicro(v).UTC()
}

func nullMicros(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toMicros(*t), Valid: true}
}

func timePtr(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := fromMicros(v.Int64)
	return &t
}

type scanner interface {
	Scan(dest ...any) error
}

// --- Listing operations ---

const listingColumns = `id, donor_id, donor_contact, food_type, category, quantity, unit, description,
	expiry_date, special_instructions, pickup_at, pickup_address, location, lat, lng, for_farmers,
	status, active_claim_id, image_url, image_path, created_at, updated_at`

func scanListing(row scanner) (*models.Listing, error) {
	var (
		l                    models.Listing
		expiry               sql.NullInt64
		lat, lng             sql.NullFloat64
		pickup, created, upd int64
	)
	err := row.Scan(
		&l.ID, &l.DonorID, &l.DonorContact, &l.FoodType, &l.Category, &l.Quantity, &l.Unit, &l.Description,
		&expiry, &l.SpecialInstructions, &pickup, &l.PickupAddress, &l.Location, &lat, &lng, &l.ForFarmers,
		&l.Status, &l.ActiveClaimID, &l.ImageURL, &l.ImagePath, &created, &upd,
	)
	if err != nil {
		return nil, err
	}
	l.ExpiryDate = timePtr(expiry)
	l.PickupAt = fromMicros(pickup)
	l.CreatedAt = fromMicros(created)
	l.UpdatedAt = fromMicros(upd)
	if lat.Valid && lng.Valid {
		l.Coordinates = &models.Coordinates{Lat: lat.Float64, Lng: lng.Float64}
	}
	return &l, nil
}

// CreateListing inserts a new listing.
func (db *DB) CreateListing(ctx context.Context, l *models.Listing) error {
	const q = `INSERT INTO listings (` + listingColumns + `)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	var lat, lng sql.NullFloat64
	if l.Coordinates != nil {
		lat = sql.NullFloat64{Float64: l.Coordinates.Lat, Valid: true}
		lng = sql.NullFloat64{Float64: l.Coordinates.Lng, Valid: true}
	}

	_, err := db.conn.ExecContext(ctx, q,
		l.ID, l.DonorID, l.DonorContact, l.FoodType, l.Category, l.Quantity, l.Unit, l.Description,
		nullMicros(l.ExpiryDate), l.SpecialInstructions, toMicros(l.PickupAt), l.PickupAddress, l.Location, lat, lng, l.ForFarmers,
		string(l.Status), l.ActiveClaimID, l.ImageURL, l.ImagePath, toMicros(l.CreatedAt), toMicros(l.UpdatedAt),
	)
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return store.ErrConflict
	}
	return err
}

// GetListing returns a listing by ID.
func (db *DB) GetListing(ctx context.Context, id string) (*models.Listing, error) {
	q := `SELECT ` + listingColumns + ` FROM listings WHERE id = ?`
	l, err := scanListing(db.conn.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return l, err
}

// ListListings returns listings matching f, newest first.
func (db *DB) ListListings(ctx context.Context, f models.ListingFilter) ([]models.Listing, error) {
	var (
		where []string
		args  []any
	)
	if f.DonorID != "" {
		where = append(where, "donor_id = ?")
		args = append(args, f.DonorID)
	}
	if f.AvailableOnly {
		where = append(where, "status = ? AND active_claim_id = ''")
		args = append(args, string(models.ListingUnclaimed))
	}
	if f.ForFarmers != nil {
		where = append(where, "for_farmers = ?")
		args = append(args, *f.ForFarmers)
	}

	q := `SELECT ` + listingColumns + ` FROM listings`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY created_at DESC, id`

	rows, err := db.conn.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	listings := []models.Listing{}
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		listings = append(listings, *l)
	}
	return listings, rows.Err()
}

// UpdateListingStatus overwrites a listing's status.
func (db *DB) UpdateListingStatus(ctx context.Context, id string, status models.ListingStatus, at time.Time) error {
	const q = `UPDATE listings SET status = ?, updated_at = ? WHERE id = ?`
	res, err := db.conn.ExecContext(ctx, q, string(status), toMicros(at), id)
	return affectedOne(res, err)
}

// SetListingImage records a listing's image.
func (db *DB) SetListingImage(ctx context.Context, id, url, path string, at time.Time) error {
	const q = `UPDATE listings SET image_url = ?, image_path = ?, updated_at = ? WHERE id = ?`
	res, err := db.conn.ExecContext(ctx, q, url, path, toMicros(at), id)
	return affectedOne(res, err)
}

func affectedOne(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// --- Claim operations ---

const claimColumns = `id, listing_id, receiver_id, receiver_contact, status, needs_volunteer,
	approved_by, reject_reason, claimed_at, approved_at, collected_at, updated_at`

func scanClaim(row scanner) (*models.Claim, error) {
	var (
		c                  models.Claim
		claimed, upd       int64
		approved, collectd sql.NullInt64
	)
	err := row.Scan(
		&c.ID, &c.ListingID, &c.ReceiverID, &c.ReceiverContact, &c.Status, &c.NeedsVolunteer,
		&c.ApprovedBy, &c.RejectReason, &claimed, &approved, &collectd, &upd,
	)
	if err != nil {
		return nil, err
	}
	c.ClaimedAt = fromMicros(claimed)
	c.ApprovedAt = timePtr(approved)
	c.CollectedAt = timePtr(collectd)
	c.UpdatedAt = fromMicros(upd)
	return &c, nil
}

// CreateClaim inserts c and makes it the listing's active claim in one
// transaction. The listing row is only updated while it is still UNCLAIMED
// with no active claim.
func (db *DB) CreateClaim(ctx context.Context, c *models.Claim) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	const guard = `UPDATE listings SET active_claim_id = ?, updated_at = ?
	               WHERE id = ? AND status = ? AND active_claim_id = ''`
	res, err := tx.ExecContext(ctx, guard, c.ID, toMicros(c.ClaimedAt), c.ListingID, string(models.ListingUnclaimed))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM listings WHERE id = ?`, c.ListingID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrNotFound
		}
		if err != nil {
			return err
		}
		return store.ErrConflict
	}

	const ins = `INSERT INTO claims (` + claimColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if _, err := tx.ExecContext(ctx, ins,
		c.ID, c.ListingID, c.ReceiverID, c.ReceiverContact, string(c.Status), c.NeedsVolunteer,
		c.ApprovedBy, c.RejectReason, toMicros(c.ClaimedAt), nullMicros(c.ApprovedAt), nullMicros(c.CollectedAt), toMicros(c.UpdatedAt),
	); err != nil {
		return err
	}

	return tx.Commit()
}

// GetClaim returns a claim by ID.
func (db *DB) GetClaim(ctx context.Context, id string) (*models.Claim, error) {
	q := `SELECT ` + claimColumns + ` FROM claims WHERE id = ?`
	c, err := scanClaim(db.conn.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return c, err
}

// TransitionClaim writes c if the stored status is still from. A terminal
// status also clears the listing's active claim, and a non-empty listing
// status is set in the same transaction.
func (db *DB) TransitionClaim(ctx context.Context, c *models.Claim, from models.ClaimStatus, listing models.ListingStatus) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	const q = `UPDATE claims SET status = ?, needs_volunteer = ?, approved_by = ?, reject_reason = ?,
	           approved_at = ?, collected_at = ?, updated_at = ?
	           WHERE id = ? AND status = ?`
	res, err := tx.ExecContext(ctx, q,
		string(c.Status), c.NeedsVolunteer, c.ApprovedBy, c.RejectReason,
		nullMicros(c.ApprovedAt), nullMicros(c.CollectedAt), toMicros(c.UpdatedAt),
		c.ID, string(from),
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM claims WHERE id = ?`, c.ID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrNotFound
		}
		if err != nil {
			return err
		}
		return store.ErrStaleState
	}

	if c.Status.Terminal() {
		const release = `UPDATE listings SET active_claim_id = '', updated_at = ?
		                 WHERE id = ? AND active_claim_id = ?`
		if _, err := tx.ExecContext(ctx, release, toMicros(c.UpdatedAt), c.ListingID, c.ID); err != nil {
			return err
		}
	}

	if listing != "" {
		res, err := tx.ExecContext(ctx, `UPDATE listings SET status = ?, updated_at = ? WHERE id = ?`,
			string(listing), toMicros(c.UpdatedAt), c.ListingID)
		if err := affectedOne(res, err); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// ListClaims returns every claim for a listing, oldest first.
func (db *DB) ListClaims(ctx context.Context, listingID string) ([]models.Claim, error) {
	q := `SELECT ` + claimColumns + ` FROM claims WHERE listing_id = ? ORDER BY claimed_at, id`
	return db.queryClaims(ctx, q, listingID)
}

// ListClaimsByStatus returns claims in status, oldest first.
func (db *DB) ListClaimsByStatus(ctx context.Context, status models.ClaimStatus) ([]models.Claim, error) {
	q := `SELECT ` + claimColumns + ` FROM claims WHERE status = ? ORDER BY claimed_at, id`
	return db.queryClaims(ctx, q, string(status))
}

func (db *DB) queryClaims(ctx context.Context, query string, args ...any) ([]models.Claim, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	claims := []models.Claim{}
	for rows.Next() {
		c, err := scanClaim(rows)
		if err != nil {
			return nil, err
		}
		claims = append(claims, *c)
	}
	return claims, rows.Err()
}
