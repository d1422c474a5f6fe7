package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jredh-dev/foodshare/pkg/models"
)

// Memory holds listings and claims in process memory. Every method takes the
// single lock, so CreateClaim's availability check and write are atomic.
type Memory struct {
	mu sync.RWMutex

	listings map[string]*models.Listing
	claims   map[string]*models.Claim

	// claimsByListing keeps claim IDs per listing in creation order.
	claimsByListing map[string][]string
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		listings:        make(map[string]*models.Listing),
		claims:          make(map[string]*models.Claim),
		claimsByListing: make(map[string][]string),
	}
}

// CreateListing stores a new listing. The ID must be unused.
func (m *Memory) CreateListing(_ context.Context, l *models.Listing) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.listings[l.ID]; exists {
		return ErrConflict
	}
	cp := *l
	m.listings[l.ID] = &cp
	return nil
}

// GetListing returns a copy of the listing with the given ID.
func (m *Memory) GetListing(_ context.Context, id string) (*models.Listing, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	l, ok := m.listings[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *l
	return &cp, nil
}

// ListListings returns listings matching f, newest first.
func (m *Memory) ListListings(_ context.Context, f models.ListingFilter) ([]models.Listing, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.Listing, 0, len(m.listings))
	for _, l := range m.listings {
		if f.Match(l) {
			out = append(out, *l)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// UpdateListingStatus overwrites the status field.
func (m *Memory) UpdateListingStatus(_ context.Context, id string, status models.ListingStatus, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.listings[id]
	if !ok {
		return ErrNotFound
	}
	l.Status = status
	l.UpdatedAt = at
	return nil
}

// SetListingImage records the attached image.
func (m *Memory) SetListingImage(_ context.Context, id, url, path string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.listings[id]
	if !ok {
		return ErrNotFound
	}
	l.ImageURL = url
	l.ImagePath = path
	l.UpdatedAt = at
	return nil
}

// CreateClaim stores c and makes it the listing's active claim, provided the
// listing is still available.
func (m *Memory) CreateClaim(_ context.Context, c *models.Claim) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.listings[c.ListingID]
	if !ok {
		return ErrNotFound
	}
	if !l.Available() {
		return ErrConflict
	}

	cp := *c
	m.claims[c.ID] = &cp
	m.claimsByListing[c.ListingID] = append(m.claimsByListing[c.ListingID], c.ID)
	l.ActiveClaimID = c.ID
	l.UpdatedAt = c.ClaimedAt
	return nil
}

// GetClaim returns a copy of the claim with the given ID.
func (m *Memory) GetClaim(_ context.Context, id string) (*models.Claim, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.claims[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

// TransitionClaim replaces the stored claim with c if its status is still
// from. Moving to a terminal status releases the listing, and a non-empty
// listing status is applied under the same lock.
func (m *Memory) TransitionClaim(_ context.Context, c *models.Claim, from models.ClaimStatus, listing models.ListingStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.claims[c.ID]
	if !ok {
		return ErrNotFound
	}
	if cur.Status != from {
		return ErrStaleState
	}

	l := m.listings[c.ListingID]
	if listing != "" && l == nil {
		return ErrNotFound
	}

	cp := *c
	m.claims[c.ID] = &cp

	if l == nil {
		return nil
	}
	if c.Status.Terminal() && l.ActiveClaimID == c.ID {
		l.ActiveClaimID = ""
		l.UpdatedAt = c.UpdatedAt
	}
	if listing != "" {
		l.Status = listing
		l.UpdatedAt = c.UpdatedAt
	}
	return nil
}

// ListClaims returns every claim made against a listing, oldest first.
func (m *Memory) ListClaims(_ context.Context, listingID string) ([]models.Claim, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := m.claimsByListing[listingID]
	out := make([]models.Claim, 0, len(ids))
	for _, id := range ids {
		out = append(out, *m.claims[id])
	}
	return out, nil
}

// ListClaimsByStatus returns claims in the given status, oldest first.
func (m *Memory) ListClaimsByStatus(_ context.Context, status models.ClaimStatus) ([]models.Claim, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []models.Claim{}
	for _, c := range m.claims {
		if c.Status == status {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ClaimedAt.Before(out[j].ClaimedAt)
	})
	return out, nil
}
