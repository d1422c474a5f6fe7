// Package firestore is the Cloud Firestore listing store. Listings live in
// the "donations" collection and claims in "claims", keyed by their IDs.
package firestore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	fs "cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/jredh-dev/foodshare/internal/store"
	"github.com/jredh-dev/foodshare/pkg/models"
)

const (
	listingsCollection = "donations"
	claimsCollection   = "claims"
)

// Store persists listings and claims in Firestore.
type Store struct {
	client   *fs.Client
	listings string
	claims   string
}

// New returns a Store. prefix is prepended to the collection names and is
// normally empty; tests use it to isolate runs against the emulator.
func New(client *fs.Client, prefix string) *Store {
	return &Store{
		client:   client,
		listings: prefix + listingsCollection,
		claims:   prefix + claimsCollection,
	}
}

func (s *Store) listingRef(id string) *fs.DocumentRef {
	return s.client.Collection(s.listings).Doc(id)
}

func (s *Store) claimRef(id string) *fs.DocumentRef {
	return s.client.Collection(s.claims).Doc(id)
}

func notFound(err error) bool {
	return status.Code(err) == codes.NotFound
}

// CreateListing creates the listing document. An existing ID is a conflict.
func (s *Store) CreateListing(ctx context.Context, l *models.Listing) error {
	if _, err := s.listingRef(l.ID).Create(ctx, l); err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return store.ErrConflict
		}
		return fmt.Errorf("create listing %s: %w", l.ID, err)
	}
	return nil
}

// GetListing reads a listing document.
func (s *Store) GetListing(ctx context.Context, id string) (*models.Listing, error) {
	snap, err := s.listingRef(id).Get(ctx)
	if err != nil {
		if notFound(err) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("get listing %s: %w", id, err)
	}
	return decodeListing(snap)
}

func decodeListing(snap *fs.DocumentSnapshot) (*models.Listing, error) {
	var l models.Listing
	if err := snap.DataTo(&l); err != nil {
		return nil, fmt.Errorf("decode listing %s: %w", snap.Ref.ID, err)
	}
	l.ID = snap.Ref.ID
	return &l, nil
}

// ListListings queries listings matching f, newest first. Only equality
// filters go to Firestore so no composite index is needed; ordering happens
// here.
func (s *Store) ListListings(ctx context.Context, f models.ListingFilter) ([]models.Listing, error) {
	q := s.client.Collection(s.listings).Query
	if f.DonorID != "" {
		q = q.Where("donorId", "==", f.DonorID)
	}
	if f.AvailableOnly {
		q = q.Where("status", "==", string(models.ListingUnclaimed)).Where("activeClaimId", "==", "")
	}
	if f.ForFarmers != nil {
		q = q.Where("forFarmers", "==", *f.ForFarmers)
	}

	iter := q.Documents(ctx)
	defer iter.Stop()

	listings := []models.Listing{}
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list listings: %w", err)
		}
		l, err := decodeListing(snap)
		if err != nil {
			return nil, err
		}
		if f.Match(l) {
			listings = append(listings, *l)
		}
	}

	sort.SliceStable(listings, func(i, j int) bool {
		return listings[i].CreatedAt.After(listings[j].CreatedAt)
	})
	return listings, nil
}

// UpdateListingStatus sets the status field.
func (s *Store) UpdateListingStatus(ctx context.Context, id string, st models.ListingStatus, at time.Time) error {
	return s.updateListing(ctx, id, []fs.Update{
		{Path: "status", Value: string(st)},
		{Path: "updatedAt", Value: at},
	})
}

// SetListingImage records the attached image.
func (s *Store) SetListingImage(ctx context.Context, id, url, path string, at time.Time) error {
	return s.updateListing(ctx, id, []fs.Update{
		{Path: "imageUrl", Value: url},
		{Path: "imagePath", Value: path},
		{Path: "updatedAt", Value: at},
	})
}

func (s *Store) updateListing(ctx context.Context, id string, updates []fs.Update) error {
	if _, err := s.listingRef(id).Update(ctx, updates); err != nil {
		if notFound(err) {
			return store.ErrNotFound
		}
		return fmt.Errorf("update listing %s: %w", id, err)
	}
	return nil
}

// CreateClaim creates the claim and marks it active on the listing inside a
// transaction that first re-reads the listing.
func (s *Store) CreateClaim(ctx context.Context, c *models.Claim) error {
	listingRef := s.listingRef(c.ListingID)
	claimRef := s.claimRef(c.ID)

	return s.client.RunTransaction(ctx, func(ctx context.Context, tx *fs.Transaction) error {
		snap, err := tx.Get(listingRef)
		if err != nil {
			if notFound(err) {
				return store.ErrNotFound
			}
			return fmt.Errorf("read listing %s: %w", c.ListingID, err)
		}
		l, err := decodeListing(snap)
		if err != nil {
			return err
		}
		if !l.Available() {
			return store.ErrConflict
		}

		if err := tx.Create(claimRef, c); err != nil {
			return err
		}
		return tx.Update(listingRef, []fs.Update{
			{Path: "activeClaimId", Value: c.ID},
			{Path: "updatedAt", Value: c.ClaimedAt},
		})
	})
}

// GetClaim reads a claim document.
func (s *Store) GetClaim(ctx context.Context, id string) (*models.Claim, error) {
	snap, err := s.claimRef(id).Get(ctx)
	if err != nil {
		if notFound(err) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("get claim %s: %w", id, err)
	}
	return decodeClaim(snap)
}

func decodeClaim(snap *fs.DocumentSnapshot) (*models.Claim, error) {
	var c models.Claim
	if err := snap.DataTo(&c); err != nil {
		return nil, fmt.Errorf("decode claim %s: %w", snap.Ref.ID, err)
	}
	c.ID = snap.Ref.ID
	return &c, nil
}

// TransitionClaim overwrites the claim if its stored status is still from,
// releasing the listing when c is terminal and setting a non-empty listing
// status in the same transaction.
func (s *Store) TransitionClaim(ctx context.Context, c *models.Claim, from models.ClaimStatus, listing models.ListingStatus) error {
	claimRef := s.claimRef(c.ID)
	listingRef := s.listingRef(c.ListingID)

	return s.client.RunTransaction(ctx, func(ctx context.Context, tx *fs.Transaction) error {
		snap, err := tx.Get(claimRef)
		if err != nil {
			if notFound(err) {
				return store.ErrNotFound
			}
			return fmt.Errorf("read claim %s: %w", c.ID, err)
		}
		cur, err := decodeClaim(snap)
		if err != nil {
			return err
		}
		if cur.Status != from {
			return store.ErrStaleState
		}

		// Firestore requires every read before the first write.
		var release, found bool
		if c.Status.Terminal() || listing != "" {
			lsnap, err := tx.Get(listingRef)
			if err != nil && !notFound(err) {
				return fmt.Errorf("read listing %s: %w", c.ListingID, err)
			}
			if err == nil {
				l, err := decodeListing(lsnap)
				if err != nil {
					return err
				}
				found = true
				release = c.Status.Terminal() && l.ActiveClaimID == c.ID
			}
		}
		if listing != "" && !found {
			return store.ErrNotFound
		}

		if err := tx.Set(claimRef, c); err != nil {
			return err
		}

		var updates []fs.Update
		if release {
			updates = append(updates, fs.Update{Path: "activeClaimId", Value: ""})
		}
		if listing != "" {
			updates = append(updates, fs.Update{Path: "status", Value: listing})
		}
		if len(updates) == 0 {
			return nil
		}
		updates = append(updates, fs.Update{Path: "updatedAt", Value: c.UpdatedAt})
		return tx.Update(listingRef, updates)
	})
}

// ListClaims returns a listing's claims, oldest first.
func (s *Store) ListClaims(ctx context.Context, listingID string) ([]models.Claim, error) {
	return s.queryClaims(ctx, s.client.Collection(s.claims).Where("listingId", "==", listingID))
}

// ListClaimsByStatus returns claims in st, oldest first.
func (s *Store) ListClaimsByStatus(ctx context.Context, st models.ClaimStatus) ([]models.Claim, error) {
	return s.queryClaims(ctx, s.client.Collection(s.claims).Where("claimStatus", "==", string(st)))
}

func (s *Store) queryClaims(ctx context.Context, q fs.Query) ([]models.Claim, error) {
	iter := q.Documents(ctx)
	defer iter.Stop()

	claims := []models.Claim{}
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list claims: %w", err)
		}
		c, err := decodeClaim(snap)
		if err != nil {
			return nil, err
		}
		claims = append(claims, *c)
	}

	sort.SliceStable(claims, func(i, j int) bool {
		if claims[i].ClaimedAt.Equal(claims[j].ClaimedAt) {
			return claims[i].ID < claims[j].ID
		}
		return claims[i].ClaimedAt.Before(claims[j].ClaimedAt)
	})
	return claims, nil
}
