package donation_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jredh-dev/foodshare/internal/donation"
	"github.com/jredh-dev/foodshare/internal/identity"
	"github.com/jredh-dev/foodshare/pkg/models"
)

func TestClaim(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	l := h.listing(t)

	c, err := h.m.Claim(ctx, receiverToken, l.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, c.ID)
	assert.Equal(t, l.ID, c.ListingID)
	assert.Equal(t, "ngo-1", c.ReceiverID)
	assert.Equal(t, "ngo@example.com", c.ReceiverContact)
	assert.Equal(t, models.ClaimPendingApproval, c.Status)
	assert.Nil(t, c.ApprovedAt)
	assert.Equal(t, c.ClaimedAt, c.UpdatedAt)

	got, err := h.m.GetListing(ctx, receiverToken, l.ID)
	require.NoError(t, err)
	assert.Equal(t, c.ID, got.ActiveClaimID)
	assert.Equal(t, models.ListingUnclaimed, got.Status, "donor status is untouched")

	avail, err := h.m.ListAvailable(ctx, otherToken, nil)
	require.NoError(t, err)
	assert.Empty(t, avail, "claimed listing leaves the available pool")
}

func TestClaim_AlreadyClaimed(t *testing.T) {
	h := newHarness(t)
	l := h.claimed(t)

	_, err := h.m.Claim(context.Background(), otherToken, l.ID)
	requireKind(t, err, donation.KindConflict)
	assert.ErrorIs(t, err, donation.ErrConflict)
}

func TestClaim_NotUnclaimed(t *testing.T) {
	h := newHarness(t)
	l := h.listing(t)
	_, err := h.m.UpdateStatus(context.Background(), donorToken, l.ID, "PENDING_PICKUP")
	require.NoError(t, err)

	_, err = h.m.Claim(context.Background(), receiverToken, l.ID)
	requireKind(t, err, donation.KindConflict)
}

func TestClaim_OwnListingForbidden(t *testing.T) {
	h := newHarness(t)
	l := h.listing(t)

	_, err := h.m.Claim(context.Background(), donorToken, l.ID)
	requireKind(t, err, donation.KindForbidden)
}

func TestClaim_NotFound(t *testing.T) {
	h := newHarness(t)
	_, err := h.m.Claim(context.Background(), receiverToken, "missing")
	requireKind(t, err, donation.KindNotFound)
}

func TestClaim_ConcurrentSingleWinner(t *testing.T) {
	h := newHarness(t)
	l := h.listing(t)

	tokens := []string{receiverToken, otherToken, adminToken}
	const rounds = 4

	var wg sync.WaitGroup
	errs := make(chan error, len(tokens)*rounds)
	for range rounds {
		for _, tok := range tokens {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := h.m.Claim(context.Background(), tok, l.ID)
				errs <- err
			}()
		}
	}
	wg.Wait()
	close(errs)

	wins := 0
	for err := range errs {
		if err == nil {
			wins++
			continue
		}
		assert.Equal(t, donation.KindConflict, donation.KindOf(err), "error: %v", err)
	}
	assert.Equal(t, 1, wins)

	history, err := h.m.ClaimHistory(context.Background(), donorToken, l.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestApprove(t *testing.T) {
	h := newHarness(t)
	l := h.claimed(t)

	c, err := h.m.Approve(context.Background(), adminToken, l.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ClaimApproved, c.Status)
	assert.Equal(t, "admin-1", c.ApprovedBy)
	require.NotNil(t, c.ApprovedAt)
	assert.Equal(t, *c.ApprovedAt, c.UpdatedAt)

	_, err = h.m.Approve(context.Background(), adminToken, l.ID)
	requireKind(t, err, donation.KindInvalidState)
}

func TestApprove_RequiresAuthority(t *testing.T) {
	h := newHarness(t)
	l := h.claimed(t)

	for _, tok := range []string{donorToken, receiverToken, otherToken} {
		_, err := h.m.Approve(context.Background(), tok, l.ID)
		requireKind(t, err, donation.KindForbidden)
	}
}

func TestApprove_CustomAuthorityRole(t *testing.T) {
	h := newHarness(t, func(_ *donation.Deps, c *donation.Config) { c.AuthorityRole = "coordinator" })
	h.verify.callers["tok-coord"] = identity.Caller{ID: "coord-1", Roles: []string{"coordinator"}}
	l := h.claimed(t)

	_, err := h.m.Approve(context.Background(), adminToken, l.ID)
	requireKind(t, err, donation.KindForbidden)

	c, err := h.m.Approve(context.Background(), "tok-coord", l.ID)
	require.NoError(t, err)
	assert.Equal(t, "coord-1", c.ApprovedBy)
}

func TestApprove_NoActiveClaim(t *testing.T) {
	h := newHarness(t)
	l := h.listing(t)

	_, err := h.m.Approve(context.Background(), adminToken, l.ID)
	requireKind(t, err, donation.KindNotFound)
}

func TestReject(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	l := h.claimed(t)

	c, err := h.m.Reject(ctx, adminToken, l.ID, "  outside delivery area ")
	require.NoError(t, err)
	assert.Equal(t, models.ClaimRejected, c.Status)
	assert.Equal(t, "outside delivery area", c.RejectReason)

	got, err := h.m.GetListing(ctx, otherToken, l.ID)
	require.NoError(t, err)
	assert.True(t, got.Available(), "rejected claim releases the listing")

	second, err := h.m.Claim(ctx, otherToken, l.ID)
	require.NoError(t, err)

	history, err := h.m.ClaimHistory(ctx, donorToken, l.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, models.ClaimRejected, history[0].Status)
	assert.Equal(t, second.ID, history[1].ID)
}

func TestReject_OnlyPending(t *testing.T) {
	h := newHarness(t)
	l := h.approved(t)

	_, err := h.m.Reject(context.Background(), adminToken, l.ID, "")
	requireKind(t, err, donation.KindInvalidState)

	_, err = h.m.Reject(context.Background(), receiverToken, l.ID, "")
	requireKind(t, err, donation.KindForbidden)
}

func TestChooseCollectionMethod(t *testing.T) {
	for _, tc := range []struct {
		needsVolunteer bool
		want           models.ClaimStatus
	}{
		{false, models.ClaimSelfCollection},
		{true, models.ClaimWaitingVolunteer},
	} {
		t.Run(string(tc.want), func(t *testing.T) {
			h := newHarness(t)
			l := h.approved(t)

			c, err := h.m.ChooseCollectionMethod(context.Background(), receiverToken, l.ID, tc.needsVolunteer)
			require.NoError(t, err)
			assert.Equal(t, tc.want, c.Status)
			assert.Equal(t, tc.needsVolunteer, c.NeedsVolunteer)

			_, err = h.m.ChooseCollectionMethod(context.Background(), receiverToken, l.ID, !tc.needsVolunteer)
			requireKind(t, err, donation.KindInvalidState)
		})
	}
}

func TestChooseCollectionMethod_BeforeApproval(t *testing.T) {
	h := newHarness(t)
	l := h.claimed(t)

	_, err := h.m.ChooseCollectionMethod(context.Background(), receiverToken, l.ID, false)
	requireKind(t, err, donation.KindInvalidState)
	assert.ErrorIs(t, err, donation.ErrInvalidState)
}

func TestChooseCollectionMethod_OnlyReceiver(t *testing.T) {
	h := newHarness(t)
	l := h.approved(t)

	for _, tok := range []string{donorToken, otherToken, adminToken} {
		_, err := h.m.ChooseCollectionMethod(context.Background(), tok, l.ID, false)
		requireKind(t, err, donation.KindForbidden)
	}
}

func TestConfirmCollected_RequiresSelfCollection(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	approved := h.approved(t)
	_, err := h.m.ConfirmCollected(ctx, receiverToken, approved.ID)
	requireKind(t, err, donation.KindInvalidState)

	_, err = h.m.ChooseCollectionMethod(ctx, receiverToken, approved.ID, true)
	require.NoError(t, err)
	_, err = h.m.ConfirmCollected(ctx, receiverToken, approved.ID)
	requireKind(t, err, donation.KindInvalidState)
}

func TestConfirmCollected_OnlyReceiver(t *testing.T) {
	h := newHarness(t)
	l := h.approved(t)
	_, err := h.m.ChooseCollectionMethod(context.Background(), receiverToken, l.ID, false)
	require.NoError(t, err)

	_, err = h.m.ConfirmCollected(context.Background(), otherToken, l.ID)
	requireKind(t, err, donation.KindForbidden)
}

func TestClaimLifecycle_EndToEnd(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	l, err := h.m.CreateListing(ctx, donorToken, breadInput())
	require.NoError(t, err)
	assert.Equal(t, models.ListingUnclaimed, l.Status)

	c, err := h.m.Claim(ctx, receiverToken, l.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ClaimPendingApproval, c.Status)

	avail, err := h.m.ListAvailable(ctx, receiverToken, nil)
	require.NoError(t, err)
	assert.NotContains(t, ids(avail), l.ID)

	c, err = h.m.Approve(ctx, adminToken, l.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ClaimApproved, c.Status)

	c, err = h.m.ChooseCollectionMethod(ctx, receiverToken, l.ID, false)
	require.NoError(t, err)
	assert.Equal(t, models.ClaimSelfCollection, c.Status)

	c, err = h.m.ConfirmCollected(ctx, receiverToken, l.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ClaimCollected, c.Status)
	require.NotNil(t, c.CollectedAt)

	final, err := h.m.GetListing(ctx, donorToken, l.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ListingCompleted, final.Status)
	assert.Empty(t, final.ActiveClaimID)

	history, err := h.m.ClaimHistory(ctx, donorToken, l.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, c.ID, history[0].ID)
	assert.True(t, history[0].Status.Terminal())

	// A completed listing cannot be claimed again.
	_, err = h.m.Claim(ctx, otherToken, l.ID)
	requireKind(t, err, donation.KindConflict)
}

func TestConfirmCollected_ListingNeverAvailableMidway(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	l := h.approved(t)
	_, err := h.m.ChooseCollectionMethod(ctx, receiverToken, l.ID, false)
	require.NoError(t, err)

	var ops []string
	var rival error
	h.store.beforeWrite = func(op string) error {
		ops = append(ops, op)
		if op == "CreateClaim" {
			return nil
		}
		_, rival = h.m.Claim(ctx, otherToken, l.ID)
		return nil
	}

	_, err = h.m.ConfirmCollected(ctx, receiverToken, l.ID)
	require.NoError(t, err)
	requireKind(t, rival, donation.KindConflict)
	assert.Equal(t, []string{"TransitionClaim"}, ops, "claim and listing close in one write")

	// A claim attempted after the write must also lose.
	h.store.beforeWrite = nil
	_, err = h.m.Claim(ctx, otherToken, l.ID)
	requireKind(t, err, donation.KindConflict)

	got, err := h.m.GetListing(ctx, donorToken, l.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ListingCompleted, got.Status)
	assert.Empty(t, got.ActiveClaimID)
}

func TestConfirmCollected_StoreFailureLeavesClaimOpen(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	l := h.approved(t)
	_, err := h.m.ChooseCollectionMethod(ctx, receiverToken, l.ID, false)
	require.NoError(t, err)

	h.store.beforeWrite = func(string) error { return context.DeadlineExceeded }
	_, err = h.m.ConfirmCollected(ctx, receiverToken, l.ID)
	requireKind(t, err, donation.KindInternal)
	h.store.beforeWrite = nil

	avail, err := h.m.ListAvailable(ctx, otherToken, nil)
	require.NoError(t, err)
	assert.Empty(t, avail, "listing stays held by the open claim")

	history, err := h.m.ClaimHistory(ctx, donorToken, l.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, models.ClaimSelfCollection, history[0].Status)

	c, err := h.m.ConfirmCollected(ctx, receiverToken, l.ID)
	require.NoError(t, err, "confirmation can be retried")
	assert.Equal(t, models.ClaimCollected, c.Status)
}

func TestClaimHistory_Visibility(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	l := h.claimed(t)
	_, err := h.m.Reject(ctx, adminToken, l.ID, "")
	require.NoError(t, err)
	_, err = h.m.Claim(ctx, otherToken, l.ID)
	require.NoError(t, err)

	for tok, want := range map[string]int{donorToken: 2, adminToken: 2, receiverToken: 1, otherToken: 1} {
		history, err := h.m.ClaimHistory(ctx, tok, l.ID)
		require.NoError(t, err)
		assert.Len(t, history, want, "token %s", tok)
	}

	fresh := h.listing(t)
	history, err := h.m.ClaimHistory(ctx, receiverToken, fresh.ID)
	require.NoError(t, err)
	assert.NotNil(t, history)
	assert.Empty(t, history)
}

func TestPendingClaims(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	first := h.claimed(t)
	second := h.claimed(t)
	_ = h.approved(t)

	pending, err := h.m.PendingClaims(ctx, adminToken)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, first.ID, pending[0].ListingID)
	assert.Equal(t, second.ID, pending[1].ListingID)

	_, err = h.m.PendingClaims(ctx, receiverToken)
	requireKind(t, err, donation.KindForbidden)
}

func TestAutoApproval_Immediate(t *testing.T) {
	h := newHarness(t, withApproval(donation.ApprovalPolicy{Mode: donation.ApprovalAuto}))

	l := h.listing(t)
	c, err := h.m.Claim(context.Background(), receiverToken, l.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ClaimApproved, c.Status)
	assert.Equal(t, donation.SystemApprover, c.ApprovedBy)
}

func TestApproveDue(t *testing.T) {
	h := newHarness(t, withApproval(donation.ApprovalPolicy{Mode: donation.ApprovalAuto, Delay: 5 * time.Second}))
	ctx := context.Background()

	l := h.listing(t)
	c, err := h.m.Claim(ctx, receiverToken, l.ID)
	require.NoError(t, err)
	require.Equal(t, models.ClaimPendingApproval, c.Status)

	n, err := h.m.ApproveDue(ctx, c.ClaimedAt.Add(4*time.Second))
	require.NoError(t, err)
	assert.Zero(t, n, "not yet due")

	n, err = h.m.ApproveDue(ctx, c.ClaimedAt.Add(5*time.Second))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	history, err := h.m.ClaimHistory(ctx, adminToken, l.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, models.ClaimApproved, history[0].Status)
	assert.Equal(t, donation.SystemApprover, history[0].ApprovedBy)

	n, err = h.m.ApproveDue(ctx, c.ClaimedAt.Add(time.Minute))
	require.NoError(t, err)
	assert.Zero(t, n, "already approved")
}

func TestApproveDue_Manual(t *testing.T) {
	h := newHarness(t)
	h.claimed(t)

	n, err := h.m.ApproveDue(context.Background(), h.clock.Peek().Add(time.Hour))
	require.NoError(t, err)
	assert.Zero(t, n)

	pending, err := h.m.PendingClaims(context.Background(), adminToken)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}
