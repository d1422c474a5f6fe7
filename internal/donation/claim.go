package donation

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jredh-dev/foodshare/internal/identity"
	"github.com/jredh-dev/foodshare/pkg/models"
)

// Claim reserves an available listing for the caller. The store refuses a
// second active claim atomically, so concurrent claims on one listing
// produce exactly one winner.
func (m *Manager) Claim(ctx context.Context, credential, listingID string) (*models.Claim, error) {
	caller, err := m.authenticate(ctx, credential)
	if err != nil {
		return nil, err
	}

	l, err := m.loadListing(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if l.DonorID == caller.ID {
		return nil, newError(KindForbidden, "donors cannot claim their own listing")
	}
	if !l.Available() {
		return nil, newError(KindConflict, "listing %s is not available", l.ID)
	}

	now := m.stamp(l.UpdatedAt)
	c := &models.Claim{
		ID:              m.newID(),
		ListingID:       l.ID,
		ReceiverID:      caller.ID,
		ReceiverContact: caller.Contact,
		Status:          models.ClaimPendingApproval,
		ClaimedAt:       now,
		UpdatedAt:       now,
	}
	if err := m.store.CreateClaim(ctx, c); err != nil {
		return nil, m.storeError("create claim", err, "listing %s not found", l.ID)
	}

	m.log.Info("listing claimed", "listing_id", l.ID, "claim_id", c.ID, "caller_id", caller.ID)

	if m.approval.immediate() {
		approved, err := m.approve(ctx, c, SystemApprover)
		if err != nil {
			m.log.Warn("auto-approval failed", "claim_id", c.ID, "error", err)
			return c, nil
		}
		return approved, nil
	}
	return c, nil
}

// Approve moves the listing's pending claim to admin-approved. Only callers
// holding the authority role may approve.
func (m *Manager) Approve(ctx context.Context, credential, listingID string) (*models.Claim, error) {
	caller, err := m.authenticateAuthority(ctx, credential)
	if err != nil {
		return nil, err
	}
	c, err := m.activeClaim(ctx, listingID)
	if err != nil {
		return nil, err
	}
	return m.approve(ctx, c, caller.ID)
}

// Reject declines the listing's pending claim and returns the listing to the
// available pool.
func (m *Manager) Reject(ctx context.Context, credential, listingID, reason string) (*models.Claim, error) {
	caller, err := m.authenticateAuthority(ctx, credential)
	if err != nil {
		return nil, err
	}
	c, err := m.activeClaim(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if err := requireStatus(c, models.ClaimPendingApproval); err != nil {
		return nil, err
	}

	next := *c
	next.Status = models.ClaimRejected
	next.RejectReason = strings.TrimSpace(reason)
	next.UpdatedAt = m.stamp(c.UpdatedAt)
	if err := m.transition(ctx, &next, c.Status, ""); err != nil {
		return nil, err
	}

	m.log.Info("claim rejected", "listing_id", c.ListingID, "claim_id", c.ID, "caller_id", caller.ID)
	return &next, nil
}

// ChooseCollectionMethod records whether the receiver collects the food
// themselves or waits for a volunteer. Only valid from admin-approved.
func (m *Manager) ChooseCollectionMethod(ctx context.Context, credential, listingID string, needsVolunteer bool) (*models.Claim, error) {
	caller, err := m.authenticate(ctx, credential)
	if err != nil {
		return nil, err
	}
	c, err := m.activeClaim(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if err := requireReceiver(caller, c); err != nil {
		return nil, err
	}
	if err := requireStatus(c, models.ClaimApproved); err != nil {
		return nil, err
	}

	next := *c
	next.NeedsVolunteer = needsVolunteer
	next.Status = models.ClaimSelfCollection
	if needsVolunteer {
		next.Status = models.ClaimWaitingVolunteer
	}
	next.UpdatedAt = m.stamp(c.UpdatedAt)
	if err := m.transition(ctx, &next, c.Status, ""); err != nil {
		return nil, err
	}

	m.log.Info("collection method chosen", "listing_id", c.ListingID, "claim_id", c.ID, "needs_volunteer", needsVolunteer)
	return &next, nil
}

// ConfirmCollected closes a self-collection claim and marks the listing
// COMPLETED in one store write, so the listing is never available in
// between. Volunteer deliveries have no confirmation path.
func (m *Manager) ConfirmCollected(ctx context.Context, credential, listingID string) (*models.Claim, error) {
	caller, err := m.authenticate(ctx, credential)
	if err != nil {
		return nil, err
	}
	c, err := m.activeClaim(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if err := requireReceiver(caller, c); err != nil {
		return nil, err
	}
	if err := requireStatus(c, models.ClaimSelfCollection); err != nil {
		return nil, err
	}

	now := m.stamp(c.UpdatedAt)
	next := *c
	next.Status = models.ClaimCollected
	next.CollectedAt = &now
	next.UpdatedAt = now
	if err := m.transition(ctx, &next, c.Status, models.ListingCompleted); err != nil {
		return nil, err
	}

	m.log.Info("claim collected", "listing_id", c.ListingID, "claim_id", c.ID, "caller_id", caller.ID)
	return &next, nil
}

// ClaimHistory returns every claim made against a listing, oldest first.
// The donor and the authority see all of them; anyone else only their own.
func (m *Manager) ClaimHistory(ctx context.Context, credential, listingID string) ([]models.Claim, error) {
	caller, err := m.authenticate(ctx, credential)
	if err != nil {
		return nil, err
	}
	l, err := m.loadListing(ctx, listingID)
	if err != nil {
		return nil, err
	}

	claims, err := m.store.ListClaims(ctx, l.ID)
	if err != nil {
		return nil, internal("list claims", err)
	}
	if caller.ID == l.DonorID || caller.HasRole(m.authorityRole) {
		return claims, nil
	}

	own := make([]models.Claim, 0, len(claims))
	for _, c := range claims {
		if c.ReceiverID == caller.ID {
			own = append(own, c)
		}
	}
	return own, nil
}

// PendingClaims lists claims awaiting approval, oldest first.
func (m *Manager) PendingClaims(ctx context.Context, credential string) ([]models.Claim, error) {
	if _, err := m.authenticateAuthority(ctx, credential); err != nil {
		return nil, err
	}
	claims, err := m.store.ListClaimsByStatus(ctx, models.ClaimPendingApproval)
	if err != nil {
		return nil, internal("list pending claims", err)
	}
	return claims, nil
}

// ApproveDue approves every pending claim whose delay has elapsed at now,
// returning how many were approved. It does nothing under manual approval.
func (m *Manager) ApproveDue(ctx context.Context, now time.Time) (int, error) {
	if m.approval.Mode != ApprovalAuto {
		return 0, nil
	}

	pending, err := m.store.ListClaimsByStatus(ctx, models.ClaimPendingApproval)
	if err != nil {
		return 0, internal("list pending claims", err)
	}

	approved := 0
	var firstErr error
	for i := range pending {
		c := &pending[i]
		if !m.approval.due(c.ClaimedAt, now) {
			continue
		}
		if _, err := m.approve(ctx, c, SystemApprover); err != nil {
			if errors.Is(err, ErrInvalidState) {
				continue
			}
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		approved++
	}
	return approved, firstErr
}

func (m *Manager) approve(ctx context.Context, c *models.Claim, approver string) (*models.Claim, error) {
	if err := requireStatus(c, models.ClaimPendingApproval); err != nil {
		return nil, err
	}

	now := m.stamp(c.UpdatedAt)
	next := *c
	next.Status = models.ClaimApproved
	next.ApprovedBy = approver
	next.ApprovedAt = &now
	next.UpdatedAt = now
	if err := m.transition(ctx, &next, c.Status, ""); err != nil {
		return nil, err
	}

	m.log.Info("claim approved", "listing_id", c.ListingID, "claim_id", c.ID, "approved_by", approver)
	return &next, nil
}

// activeClaim loads the listing and its current non-terminal claim.
func (m *Manager) activeClaim(ctx context.Context, listingID string) (*models.Claim, error) {
	l, err := m.loadListing(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if l.ActiveClaimID == "" {
		return nil, newError(KindNotFound, "listing %s has no active claim", l.ID)
	}
	c, err := m.store.GetClaim(ctx, l.ActiveClaimID)
	if err != nil {
		return nil, m.storeError("get claim", err, "claim %s not found", l.ActiveClaimID)
	}
	return c, nil
}

func (m *Manager) transition(ctx context.Context, next *models.Claim, from models.ClaimStatus, listing models.ListingStatus) error {
	if err := m.store.TransitionClaim(ctx, next, from, listing); err != nil {
		return m.storeError("transition claim", err, "claim %s not found", next.ID)
	}
	return nil
}

func requireStatus(c *models.Claim, want models.ClaimStatus) error {
	if c.Status != want {
		return newError(KindInvalidState, "claim %s is %s; this action requires %s", c.ID, c.Status, want)
	}
	return nil
}

func requireReceiver(caller *identity.Caller, c *models.Claim) error {
	if caller.ID != c.ReceiverID {
		return newError(KindForbidden, "only the receiver of claim %s may act on it", c.ID)
	}
	return nil
}
