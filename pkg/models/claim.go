package models

import "time"

// ClaimStatus represents the lifecycle state of a receiver's claim.
type ClaimStatus string

const (
	ClaimPendingApproval  ClaimStatus = "pending-admin-approval"
	ClaimApproved         ClaimStatus = "admin-approved"
	ClaimSelfCollection   ClaimStatus = "approved-self-collection"
	ClaimWaitingVolunteer ClaimStatus = "waiting-volunteer"
	ClaimCollected        ClaimStatus = "collected"
	ClaimRejected         ClaimStatus = "rejected"
)

// Terminal reports whether no further transition is possible. A terminal
// claim no longer holds its listing.
func (s ClaimStatus) Terminal() bool {
	return s == ClaimCollected || s == ClaimRejected
}

// Claim is one receiver's reservation against a listing.
type Claim struct {
	ID              string      `json:"claimId" firestore:"claimId"`
	ListingID       string      `json:"listingId" firestore:"listingId"`
	ReceiverID      string      `json:"receiverId" firestore:"receiverId"`
	ReceiverContact string      `json:"receiverContact" firestore:"receiverContact"`
	Status          ClaimStatus `json:"claimStatus" firestore:"claimStatus"`
	NeedsVolunteer  bool        `json:"needsVolunteer" firestore:"needsVolunteer"`
	ApprovedBy      string      `json:"approvedBy,omitempty" firestore:"approvedBy"`
	RejectReason    string      `json:"rejectReason,omitempty" firestore:"rejectReason"`
	ClaimedAt       time.Time   `json:"claimedAt" firestore:"claimedAt"`
	ApprovedAt      *time.Time  `json:"approvedAt,omitempty" firestore:"approvedAt"`
	CollectedAt     *time.Time  `json:"collectedAt,omitempty" firestore:"collectedAt"`
	UpdatedAt       time.Time   `json:"updatedAt" firestore:"updatedAt"`
}
