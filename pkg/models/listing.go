package models

import "time"

// ListingStatus is the donor-controlled state of a donation listing.
type ListingStatus string

const (
	ListingUnclaimed     ListingStatus = "UNCLAIMED"
	ListingPendingPickup ListingStatus = "PENDING_PICKUP"
	ListingCompleted     ListingStatus = "COMPLETED"
	ListingCancelled     ListingStatus = "CANCELLED"
)

// ListingStatuses lists every accepted status value.
var ListingStatuses = []ListingStatus{
	ListingUnclaimed,
	ListingPendingPickup,
	ListingCompleted,
	ListingCancelled,
}

// Valid reports whether s is one of the four listing statuses.
func (s ListingStatus) Valid() bool {
	for _, v := range ListingStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Coordinates is a geocoded lat/lng pair.
type Coordinates struct {
	Lat float64 `json:"lat" firestore:"lat"`
	Lng float64 `json:"lng" firestore:"lng"`
}

// Listing is a surplus-food donation offered by a donor.
type Listing struct {
	ID           string `json:"listingId" firestore:"listingId"`
	DonorID      string `json:"donorId" firestore:"donorId"`
	DonorContact string `json:"donorContact" firestore:"donorContact"`

	FoodType            string     `json:"foodType" firestore:"foodType"`
	Category            string     `json:"category" firestore:"category"`
	Quantity            string     `json:"quantity" firestore:"quantity"`
	Unit                string     `json:"unit" firestore:"unit"`
	Description         string     `json:"description" firestore:"description"`
	ExpiryDate          *time.Time `json:"expiryDate,omitempty" firestore:"expiryDate"`
	SpecialInstructions string     `json:"specialInstructions" firestore:"specialInstructions"`

	PickupAt      time.Time    `json:"pickupAt" firestore:"pickupAt"`
	PickupAddress string       `json:"pickupAddress" firestore:"pickupAddress"`
	Location      string       `json:"location" firestore:"location"`
	Coordinates   *Coordinates `json:"coordinates" firestore:"coordinates"`
	ForFarmers    bool         `json:"forFarmers" firestore:"forFarmers"`

	Status        ListingStatus `json:"status" firestore:"status"`
	ActiveClaimID string        `json:"activeClaimId,omitempty" firestore:"activeClaimId"`

	ImageURL  string `json:"imageUrl,omitempty" firestore:"imageUrl"`
	ImagePath string `json:"imagePath,omitempty" firestore:"imagePath"`

	CreatedAt time.Time `json:"createdAt" firestore:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" firestore:"updatedAt"`
}

// Available reports whether receivers may claim the listing.
func (l *Listing) Available() bool {
	return l.Status == ListingUnclaimed && l.ActiveClaimID == ""
}

// ListingFilter narrows a listing query. Zero values match everything.
type ListingFilter struct {
	DonorID       string
	AvailableOnly bool
	ForFarmers    *bool
}

// Match reports whether l satisfies the filter.
func (f ListingFilter) Match(l *Listing) bool {
	if f.DonorID != "" && l.DonorID != f.DonorID {
		return false
	}
	if f.AvailableOnly && !l.Available() {
		return false
	}
	if f.ForFarmers != nil && l.ForFarmers != *f.ForFarmers {
		return false
	}
	return true
}
