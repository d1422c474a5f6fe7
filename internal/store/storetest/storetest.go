// Package storetest is a behavioural test suite run against every listing
// store backend.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jredh-dev/foodshare/internal/donation"
	"github.com/jredh-dev/foodshare/internal/store"
	"github.com/jredh-dev/foodshare/pkg/models"
)

var base = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

// Listing returns a valid UNCLAIMED listing created offset after a fixed
// base time.
func Listing(id, donor string, offset time.Duration) *models.Listing {
	at := base.Add(offset)
	return &models.Listing{
		ID:            id,
		DonorID:       donor,
		DonorContact:  donor + "@example.com",
		FoodType:      "Bread",
		Category:      "Bakery",
		Quantity:      "10",
		Unit:          "loaves",
		PickupAt:      at.Add(24 * time.Hour),
		PickupAddress: "12 Main St, Springfield",
		Location:      "12 Main St",
		Status:        models.ListingUnclaimed,
		CreatedAt:     at,
		UpdatedAt:     at,
	}
}

// Claim returns a pending claim on listingID.
func Claim(id, listingID, receiver string, offset time.Duration) *models.Claim {
	at := base.Add(offset)
	return &models.Claim{
		ID:         id,
		ListingID:  listingID,
		ReceiverID: receiver,
		Status:     models.ClaimPendingApproval,
		ClaimedAt:  at,
		UpdatedAt:  at,
	}
}

// Run exercises s. newStore must return an empty store.
func Run(t *testing.T, newStore func(t *testing.T) donation.Store) {
	t.Run("ListingRoundTrip", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		l := Listing("l-1", "donor", 0)
		expiry := base.Add(72 * time.Hour)
		l.ExpiryDate = &expiry
		l.Coordinates = &models.Coordinates{Lat: 40.7128, Lng: -74.006}
		l.ForFarmers = true
		require.NoError(t, s.CreateListing(ctx, l))

		got, err := s.GetListing(ctx, "l-1")
		require.NoError(t, err)
		assert.Equal(t, l.FoodType, got.FoodType)
		assert.Equal(t, l.PickupAddress, got.PickupAddress)
		assert.Equal(t, l.Location, got.Location)
		assert.True(t, got.ForFarmers)
		assert.True(t, l.PickupAt.Equal(got.PickupAt))
		assert.True(t, l.CreatedAt.Equal(got.CreatedAt))
		require.NotNil(t, got.ExpiryDate)
		assert.True(t, expiry.Equal(*got.ExpiryDate))
		require.NotNil(t, got.Coordinates)
		assert.InDelta(t, 40.7128, got.Coordinates.Lat, 1e-9)
		assert.Equal(t, models.ListingUnclaimed, got.Status)
	})

	t.Run("GetListingNotFound", func(t *testing.T) {
		s := newStore(t)
		_, err := s.GetListing(context.Background(), "missing")
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("ListListingsFilters", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		a := Listing("a", "d1", 0)
		b := Listing("b", "d2", time.Minute)
		b.ForFarmers = true
		c := Listing("c", "d1", 2*time.Minute)
		c.Status = models.ListingCancelled
		for _, l := range []*models.Listing{a, b, c} {
			require.NoError(t, s.CreateListing(ctx, l))
		}

		mine, err := s.ListListings(ctx, models.ListingFilter{DonorID: "d1"})
		require.NoError(t, err)
		assert.Equal(t, []string{"c", "a"}, listingIDs(mine))

		avail, err := s.ListListings(ctx, models.ListingFilter{AvailableOnly: true})
		require.NoError(t, err)
		assert.Equal(t, []string{"b", "a"}, listingIDs(avail))

		farmers := true
		forFarmers, err := s.ListListings(ctx, models.ListingFilter{AvailableOnly: true, ForFarmers: &farmers})
		require.NoError(t, err)
		assert.Equal(t, []string{"b"}, listingIDs(forFarmers))
	})

	t.Run("UpdateStatusAndImage", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.CreateListing(ctx, Listing("l", "d", 0)))

		at := base.Add(time.Hour)
		require.NoError(t, s.UpdateListingStatus(ctx, "l", models.ListingCancelled, at))
		require.NoError(t, s.SetListingImage(ctx, "l", "https://img/x.jpg", "donations/l/x.jpg", at))

		got, err := s.GetListing(ctx, "l")
		require.NoError(t, err)
		assert.Equal(t, models.ListingCancelled, got.Status)
		assert.Equal(t, "https://img/x.jpg", got.ImageURL)
		assert.Equal(t, "donations/l/x.jpg", got.ImagePath)
		assert.True(t, at.Equal(got.UpdatedAt))

		assert.ErrorIs(t, s.UpdateListingStatus(ctx, "nope", models.ListingCompleted, at), store.ErrNotFound)
		assert.ErrorIs(t, s.SetListingImage(ctx, "nope", "u", "p", at), store.ErrNotFound)
	})

	t.Run("CreateClaimGuard", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.CreateListing(ctx, Listing("l", "d", 0)))

		require.NoError(t, s.CreateClaim(ctx, Claim("c1", "l", "r1", time.Minute)))
		assert.ErrorIs(t, s.CreateClaim(ctx, Claim("c2", "l", "r2", 2*time.Minute)), store.ErrConflict)
		assert.ErrorIs(t, s.CreateClaim(ctx, Claim("c3", "missing", "r2", time.Minute)), store.ErrNotFound)

		l, err := s.GetListing(ctx, "l")
		require.NoError(t, err)
		assert.Equal(t, "c1", l.ActiveClaimID)
		assert.False(t, l.Available())

		_, err = s.GetClaim(ctx, "c2")
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("CreateClaimRequiresUnclaimed", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		l := Listing("l", "d", 0)
		l.Status = models.ListingPendingPickup
		require.NoError(t, s.CreateListing(ctx, l))

		assert.ErrorIs(t, s.CreateClaim(ctx, Claim("c1", "l", "r", time.Minute)), store.ErrConflict)
	})

	t.Run("ConcurrentClaimsSingleWinner", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.CreateListing(ctx, Listing("l", "d", 0)))

		const n = 8
		var (
			wg   sync.WaitGroup
			mu   sync.Mutex
			wins int
		)
		for i := range n {
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := s.CreateClaim(ctx, Claim(fmt.Sprintf("c%d", i), "l", fmt.Sprintf("r%d", i), time.Minute))
				if err == nil {
					mu.Lock()
					wins++
					mu.Unlock()
					return
				}
				assert.ErrorIs(t, err, store.ErrConflict)
			}()
		}
		wg.Wait()
		assert.Equal(t, 1, wins)
	})

	t.Run("TransitionClaim", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.CreateListing(ctx, Listing("l", "d", 0)))
		require.NoError(t, s.CreateClaim(ctx, Claim("c1", "l", "r", time.Minute)))

		approvedAt := base.Add(2 * time.Minute)
		next := Claim("c1", "l", "r", time.Minute)
		next.Status = models.ClaimApproved
		next.ApprovedBy = "admin-1"
		next.ApprovedAt = &approvedAt
		next.UpdatedAt = approvedAt
		require.NoError(t, s.TransitionClaim(ctx, next, models.ClaimPendingApproval, ""))

		got, err := s.GetClaim(ctx, "c1")
		require.NoError(t, err)
		assert.Equal(t, models.ClaimApproved, got.Status)
		assert.Equal(t, "admin-1", got.ApprovedBy)
		require.NotNil(t, got.ApprovedAt)
		assert.True(t, approvedAt.Equal(*got.ApprovedAt))

		// Repeating the same transition must lose the compare-and-swap.
		assert.ErrorIs(t, s.TransitionClaim(ctx, next, models.ClaimPendingApproval, ""), store.ErrStaleState)

		missing := Claim("ghost", "l", "r", 0)
		assert.ErrorIs(t, s.TransitionClaim(ctx, missing, models.ClaimPendingApproval, ""), store.ErrNotFound)

		l, err := s.GetListing(ctx, "l")
		require.NoError(t, err)
		assert.Equal(t, "c1", l.ActiveClaimID)
	})

	t.Run("TerminalTransitionReleasesListing", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.CreateListing(ctx, Listing("l", "d", 0)))
		require.NoError(t, s.CreateClaim(ctx, Claim("c1", "l", "r1", time.Minute)))

		rejected := Claim("c1", "l", "r1", time.Minute)
		rejected.Status = models.ClaimRejected
		rejected.RejectReason = "duplicate"
		rejected.UpdatedAt = base.Add(3 * time.Minute)
		require.NoError(t, s.TransitionClaim(ctx, rejected, models.ClaimPendingApproval, ""))

		l, err := s.GetListing(ctx, "l")
		require.NoError(t, err)
		assert.Empty(t, l.ActiveClaimID)
		assert.True(t, l.Available())

		require.NoError(t, s.CreateClaim(ctx, Claim("c2", "l", "r2", 4*time.Minute)))

		history, err := s.ListClaims(ctx, "l")
		require.NoError(t, err)
		assert.Equal(t, []string{"c1", "c2"}, claimIDs(history))
		assert.Equal(t, "duplicate", history[0].RejectReason)
	})

	t.Run("CollectedTransitionCompletesListing", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.CreateListing(ctx, Listing("l", "d", 0)))
		require.NoError(t, s.CreateClaim(ctx, Claim("c1", "l", "r", time.Minute)))

		collectedAt := base.Add(5 * time.Minute)
		done := Claim("c1", "l", "r", time.Minute)
		done.Status = models.ClaimCollected
		done.CollectedAt = &collectedAt
		done.UpdatedAt = collectedAt
		require.NoError(t, s.TransitionClaim(ctx, done, models.ClaimPendingApproval, models.ListingCompleted))

		l, err := s.GetListing(ctx, "l")
		require.NoError(t, err)
		assert.Equal(t, models.ListingCompleted, l.Status)
		assert.Empty(t, l.ActiveClaimID)
		assert.False(t, l.Available())
		assert.True(t, collectedAt.Equal(l.UpdatedAt))

		assert.ErrorIs(t, s.CreateClaim(ctx, Claim("c2", "l", "r2", 6*time.Minute)), store.ErrConflict)
	})

	t.Run("ListingStatusWithMissingListingWritesNothing", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.CreateListing(ctx, Listing("l", "d", 0)))
		require.NoError(t, s.CreateClaim(ctx, Claim("c1", "l", "r", time.Minute)))

		orphan := Claim("c1", "elsewhere", "r", time.Minute)
		orphan.Status = models.ClaimCollected
		orphan.UpdatedAt = base.Add(5 * time.Minute)
		assert.ErrorIs(t, s.TransitionClaim(ctx, orphan, models.ClaimPendingApproval, models.ListingCompleted), store.ErrNotFound)

		got, err := s.GetClaim(ctx, "c1")
		require.NoError(t, err)
		assert.Equal(t, models.ClaimPendingApproval, got.Status)
	})

	t.Run("ListClaimsByStatus", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		for i, id := range []string{"a", "b", "c"} {
			require.NoError(t, s.CreateListing(ctx, Listing(id, "d", time.Duration(i)*time.Minute)))
		}
		// Claim in reverse order so claimed_at differs from listing order.
		require.NoError(t, s.CreateClaim(ctx, Claim("cc", "c", "r", 10*time.Minute)))
		require.NoError(t, s.CreateClaim(ctx, Claim("cb", "b", "r", 11*time.Minute)))
		require.NoError(t, s.CreateClaim(ctx, Claim("ca", "a", "r", 12*time.Minute)))

		done := Claim("cb", "b", "r", 11*time.Minute)
		done.Status = models.ClaimApproved
		done.UpdatedAt = base.Add(13 * time.Minute)
		require.NoError(t, s.TransitionClaim(ctx, done, models.ClaimPendingApproval, ""))

		pending, err := s.ListClaimsByStatus(ctx, models.ClaimPendingApproval)
		require.NoError(t, err)
		assert.Equal(t, []string{"cc", "ca"}, claimIDs(pending))
	})
}

func listingIDs(ls []models.Listing) []string {
	ids := make([]string, len(ls))
	for i, l := range ls {
		ids[i] = l.ID
	}
	return ids
}

func claimIDs(cs []models.Claim) []string {
	ids := make([]string, len(cs))
	for i, c := range cs {
		ids[i] = c.ID
	}
	return ids
}
