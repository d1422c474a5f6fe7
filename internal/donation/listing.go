package donation

import (
	"context"
	"strings"

	"github.com/jredh-dev/foodshare/internal/identity"
	"github.com/jredh-dev/foodshare/pkg/models"
)

// ListingInput carries the donor-supplied listing fields.
type ListingInput struct {
	FoodType            string `json:"foodType"`
	Category            string `json:"category"`
	Quantity            string `json:"quantity"`
	Unit                string `json:"unit"`
	Description         string `json:"description"`
	ExpiryDate          string `json:"expiryDate"`
	SpecialInstructions string `json:"specialInstructions"`
	PickupDate          string `json:"pickupDate"`
	PickupTime          string `json:"pickupTime"`
	PickupAddress       string `json:"pickupAddress"`
	ForFarmers          bool   `json:"forFarmers"`
}

func (in ListingInput) missing() []string {
	required := []struct {
		name  string
		value string
	}{
		{"foodType", in.FoodType},
		{"category", in.Category},
		{"quantity", in.Quantity},
		{"pickupDate", in.PickupDate},
		{"pickupTime", in.PickupTime},
		{"pickupAddress", in.PickupAddress},
	}

	var fields []string
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			fields = append(fields, r.name)
		}
	}
	return fields
}

// StatusResult is returned by UpdateStatus.
type StatusResult struct {
	ListingID string               `json:"listingId"`
	Status    models.ListingStatus `json:"status"`
}

// CreateListing validates in and persists a new UNCLAIMED listing owned by
// the caller.
func (m *Manager) CreateListing(ctx context.Context, credential string, in ListingInput) (*models.Listing, error) {
	caller, err := m.authenticate(ctx, credential)
	if err != nil {
		return nil, err
	}

	if fields := in.missing(); len(fields) > 0 {
		return nil, missingFields(fields)
	}

	pickupAt, err := ParsePickup(in.PickupDate, in.PickupTime, m.pickupLoc)
	if err != nil {
		return nil, &Error{
			Kind:    KindValidation,
			Message: "pickupDate and pickupTime must be YYYY-MM-DD and HH:MM",
			Fields:  []string{"pickupDate", "pickupTime"},
			Err:     err,
		}
	}

	l := &models.Listing{
		DonorID:             caller.ID,
		DonorContact:        caller.Contact,
		FoodType:            strings.TrimSpace(in.FoodType),
		Category:            strings.TrimSpace(in.Category),
		Quantity:            strings.TrimSpace(in.Quantity),
		Unit:                strings.TrimSpace(in.Unit),
		Description:         strings.TrimSpace(in.Description),
		SpecialInstructions: strings.TrimSpace(in.SpecialInstructions),
		PickupAt:            pickupAt,
		PickupAddress:       strings.TrimSpace(in.PickupAddress),
		Location:            DeriveLocation(in.PickupAddress),
		ForFarmers:          in.ForFarmers,
		Status:              models.ListingUnclaimed,
	}

	if strings.TrimSpace(in.ExpiryDate) != "" {
		expiry, err := ParseExpiry(in.ExpiryDate, m.pickupLoc)
		if err != nil {
			ve := invalidField("expiryDate", "expiryDate must be YYYY-MM-DD")
			ve.Err = err
			return nil, ve
		}
		l.ExpiryDate = &expiry
	}

	if m.geocoder != nil {
		coords, err := m.geocoder.Geocode(ctx, l.PickupAddress)
		if err != nil {
			m.log.Warn("geocoding failed", "address", l.PickupAddress, "error", err)
		} else {
			l.Coordinates = coords
		}
	}

	now := m.stamp(l.CreatedAt)
	l.ID = m.newID()
	l.CreatedAt = now
	l.UpdatedAt = now

	if err := m.store.CreateListing(ctx, l); err != nil {
		return nil, internal("create listing", err)
	}

	m.log.Info("listing created", "listing_id", l.ID, "caller_id", caller.ID, "for_farmers", l.ForFarmers)
	return l, nil
}

// UpdateStatus lets the owning donor set any of the four listing statuses.
// There is no transition graph: every status may move to every other one.
func (m *Manager) UpdateStatus(ctx context.Context, credential, listingID, status string) (*StatusResult, error) {
	caller, err := m.authenticate(ctx, credential)
	if err != nil {
		return nil, err
	}

	next := models.ListingStatus(strings.TrimSpace(status))
	if !next.Valid() {
		return nil, invalidField("status", "status must be one of UNCLAIMED, PENDING_PICKUP, COMPLETED, CANCELLED; got %q", status)
	}

	l, err := m.loadListing(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if err := requireOwner(caller, l); err != nil {
		return nil, err
	}

	if err := m.store.UpdateListingStatus(ctx, l.ID, next, m.stamp(l.UpdatedAt)); err != nil {
		return nil, m.storeError("update listing status", err, "listing %s not found", l.ID)
	}

	m.log.Info("listing status updated", "listing_id", l.ID, "caller_id", caller.ID, "from", l.Status, "to", next)
	return &StatusResult{ListingID: l.ID, Status: next}, nil
}

// GetListing returns a single listing to any authenticated caller.
func (m *Manager) GetListing(ctx context.Context, credential, listingID string) (*models.Listing, error) {
	if _, err := m.authenticate(ctx, credential); err != nil {
		return nil, err
	}
	return m.loadListing(ctx, listingID)
}

// ListAvailable returns the listings receivers can claim, newest first.
// forFarmers narrows the result when non-nil.
func (m *Manager) ListAvailable(ctx context.Context, credential string, forFarmers *bool) ([]models.Listing, error) {
	if _, err := m.authenticate(ctx, credential); err != nil {
		return nil, err
	}
	listings, err := m.store.ListListings(ctx, models.ListingFilter{AvailableOnly: true, ForFarmers: forFarmers})
	if err != nil {
		return nil, internal("list available listings", err)
	}
	return listings, nil
}

// ListMine returns the caller's own listings, newest first.
func (m *Manager) ListMine(ctx context.Context, credential string) ([]models.Listing, error) {
	caller, err := m.authenticate(ctx, credential)
	if err != nil {
		return nil, err
	}
	listings, err := m.store.ListListings(ctx, models.ListingFilter{DonorID: caller.ID})
	if err != nil {
		return nil, internal("list donor listings", err)
	}
	return listings, nil
}

func requireOwner(caller *identity.Caller, l *models.Listing) error {
	if caller.ID != l.DonorID {
		return newError(KindForbidden, "only the donor of listing %s may modify it", l.ID)
	}
	return nil
}
