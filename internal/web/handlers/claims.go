package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jredh-dev/foodshare/internal/donation"
)

// Claim reserves a listing for the caller.
// POST /api/listings/{id}/claim
func (h *Handler) Claim(w http.ResponseWriter, r *http.Request) {
	c, err := h.m.Claim(r.Context(), bearer(r), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	jsonOK(w, http.StatusCreated, c)
}

// ClaimHistory lists the claims made against a listing.
// GET /api/listings/{id}/claims
func (h *Handler) ClaimHistory(w http.ResponseWriter, r *http.Request) {
	claims, err := h.m.ClaimHistory(r.Context(), bearer(r), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	jsonOK(w, http.StatusOK, claims)
}

// Approve approves the listing's pending claim.
// POST /api/listings/{id}/claim/approve
func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	c, err := h.m.Approve(r.Context(), bearer(r), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	jsonOK(w, http.StatusOK, c)
}

type rejectReq struct {
	Reason string `json:"reason"`
}

// Reject declines the listing's pending claim. The body is optional.
// POST /api/listings/{id}/claim/reject
func (h *Handler) Reject(w http.ResponseWriter, r *http.Request) {
	var req rejectReq
	if err := decode(r, &req, true); err != nil {
		h.fail(w, r, err)
		return
	}
	c, err := h.m.Reject(r.Context(), bearer(r), chi.URLParam(r, "id"), req.Reason)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	jsonOK(w, http.StatusOK, c)
}

type collectionReq struct {
	NeedsVolunteer *bool `json:"needsVolunteer"`
}

// ChooseCollectionMethod picks self-collection or volunteer delivery.
// POST /api/listings/{id}/claim/collection
func (h *Handler) ChooseCollectionMethod(w http.ResponseWriter, r *http.Request) {
	var req collectionReq
	if err := decode(r, &req, false); err != nil {
		h.fail(w, r, err)
		return
	}
	if req.NeedsVolunteer == nil {
		h.fail(w, r, &donation.Error{
			Kind:    donation.KindValidation,
			Message: "missing required fields: needsVolunteer",
			Fields:  []string{"needsVolunteer"},
		})
		return
	}

	c, err := h.m.ChooseCollectionMethod(r.Context(), bearer(r), chi.URLParam(r, "id"), *req.NeedsVolunteer)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	jsonOK(w, http.StatusOK, c)
}

// ConfirmCollected closes a self-collection claim.
// POST /api/listings/{id}/claim/collected
func (h *Handler) ConfirmCollected(w http.ResponseWriter, r *http.Request) {
	c, err := h.m.ConfirmCollected(r.Context(), bearer(r), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	jsonOK(w, http.StatusOK, c)
}

// PendingClaims lists claims awaiting approval.
// GET /api/claims/pending
func (h *Handler) PendingClaims(w http.ResponseWriter, r *http.Request) {
	claims, err := h.m.PendingClaims(r.Context(), bearer(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	jsonOK(w, http.StatusOK, claims)
}
