// Package donation is the donation lifecycle manager. It validates input,
// authenticates callers, enforces listing ownership and drives the
// receiver-side claim workflow. Persistence, identity, object storage and
// geocoding are injected collaborators.
package donation

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jredh-dev/foodshare/internal/identity"
	"github.com/jredh-dev/foodshare/internal/store"
	"github.com/jredh-dev/foodshare/pkg/models"
)

// Store persists listings and claims. CreateClaim must atomically refuse a
// second active claim, and TransitionClaim must only write when the stored
// status still equals from. A non-empty listing status passed to
// TransitionClaim is written to the claim's listing in the same atomic write.
type Store interface {
	CreateListing(ctx context.Context, l *models.Listing) error
	GetListing(ctx context.Context, id string) (*models.Listing, error)
	ListListings(ctx context.Context, f models.ListingFilter) ([]models.Listing, error)
	UpdateListingStatus(ctx context.Context, id string, status models.ListingStatus, at time.Time) error
	SetListingImage(ctx context.Context, id, url, path string, at time.Time) error

	CreateClaim(ctx context.Context, c *models.Claim) error
	GetClaim(ctx context.Context, id string) (*models.Claim, error)
	TransitionClaim(ctx context.Context, c *models.Claim, from models.ClaimStatus, listing models.ListingStatus) error
	ListClaims(ctx context.Context, listingID string) ([]models.Claim, error)
	ListClaimsByStatus(ctx context.Context, status models.ClaimStatus) ([]models.Claim, error)
}

// Verifier maps a bearer credential to a caller.
type Verifier interface {
	Verify(ctx context.Context, credential string) (*identity.Caller, error)
}

// ObjectStore writes a publicly readable blob and returns its URL.
type ObjectStore interface {
	Put(ctx context.Context, path string, data []byte, contentType string) (string, error)
}

// Geocoder resolves an address. A nil result means unknown.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (*models.Coordinates, error)
}

// Deps are the collaborators a Manager needs. Geocoder may be nil.
type Deps struct {
	Store    Store
	Verifier Verifier
	Objects  ObjectStore
	Geocoder Geocoder
}

// Config tunes a Manager. The zero value is usable.
type Config struct {
	Approval ApprovalPolicy

	// AuthorityRole is the role allowed to approve claims. Defaults to "admin".
	AuthorityRole string

	// PickupLocation interprets pickup date and time. Defaults to UTC.
	PickupLocation *time.Location

	Logger *slog.Logger

	// Now and NewID are overridable for tests.
	Now   func() time.Time
	NewID func() string
}

// Manager implements the listing and claim lifecycle.
type Manager struct {
	store    Store
	verifier Verifier
	objects  ObjectStore
	geocoder Geocoder

	approval      ApprovalPolicy
	authorityRole string
	pickupLoc     *time.Location
	log           *slog.Logger
	now           func() time.Time
	newID         func() string
}

// New creates a Manager.
func New(deps Deps, cfg Config) *Manager {
	m := &Manager{
		store:         deps.Store,
		verifier:      deps.Verifier,
		objects:       deps.Objects,
		geocoder:      deps.Geocoder,
		approval:      cfg.Approval,
		authorityRole: cfg.AuthorityRole,
		pickupLoc:     cfg.PickupLocation,
		log:           cfg.Logger,
		now:           cfg.Now,
		newID:         cfg.NewID,
	}
	if m.approval.Mode == "" {
		m.approval.Mode = ApprovalManual
	}
	if m.authorityRole == "" {
		m.authorityRole = "admin"
	}
	if m.pickupLoc == nil {
		m.pickupLoc = time.UTC
	}
	if m.log == nil {
		m.log = slog.Default()
	}
	if m.now == nil {
		m.now = time.Now
	}
	if m.newID == nil {
		m.newID = uuid.NewString
	}
	return m
}

// AuthorityRole returns the role that may approve claims.
func (m *Manager) AuthorityRole() string {
	return m.authorityRole
}

// Authenticate verifies credential and returns the caller. Every operation
// authenticates on its own; transports use this to reject a request before
// reading its body.
func (m *Manager) Authenticate(ctx context.Context, credential string) (*identity.Caller, error) {
	return m.authenticate(ctx, credential)
}

func (m *Manager) authenticate(ctx context.Context, credential string) (*identity.Caller, error) {
	if strings.TrimSpace(credential) == "" {
		return nil, newError(KindUnauthenticated, "missing credential")
	}
	caller, err := m.verifier.Verify(ctx, credential)
	if err != nil {
		return nil, &Error{Kind: KindUnauthenticated, Message: "invalid credential", Err: err}
	}
	if caller == nil || caller.ID == "" {
		return nil, newError(KindUnauthenticated, "invalid credential")
	}
	return caller, nil
}

func (m *Manager) authenticateAuthority(ctx context.Context, credential string) (*identity.Caller, error) {
	caller, err := m.authenticate(ctx, credential)
	if err != nil {
		return nil, err
	}
	if !caller.HasRole(m.authorityRole) {
		return nil, newError(KindForbidden, "caller lacks the %s role", m.authorityRole)
	}
	return caller, nil
}

func (m *Manager) loadListing(ctx context.Context, id string) (*models.Listing, error) {
	if strings.TrimSpace(id) == "" {
		return nil, missingFields([]string{"listingId"})
	}
	l, err := m.store.GetListing(ctx, id)
	if err != nil {
		return nil, m.storeError("get listing", err, "listing %s not found", id)
	}
	return l, nil
}

// storeError maps store sentinels onto lifecycle kinds. notFound is the
// message used for store.ErrNotFound.
func (m *Manager) storeError(op string, err error, notFound string, args ...any) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return newError(KindNotFound, notFound, args...)
	case errors.Is(err, store.ErrConflict):
		return &Error{Kind: KindConflict, Message: "listing already has an active claim", Err: err}
	case errors.Is(err, store.ErrStaleState):
		return &Error{Kind: KindInvalidState, Message: "claim was modified concurrently", Err: err}
	default:
		m.log.Error("store failure", "op", op, "error", err)
		return internal(op, err)
	}
}

// stamp returns the current time, never earlier than prev.
func (m *Manager) stamp(prev time.Time) time.Time {
	now := m.now().UTC().Truncate(time.Microsecond)
	if now.Before(prev) {
		return prev
	}
	return now
}
